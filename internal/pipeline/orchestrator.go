// Package pipeline drives the asset catalog through the generation service
// one stage at a time, checkpointing the manifest after every success.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"assetgen/internal/domain"
	"assetgen/internal/generation"
	"assetgen/internal/infra"
	"assetgen/internal/manifest"
)

// Generator produces assets; generation.Generator is the production
// implementation.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) (generation.Asset, error)
	GenerateVideo(ctx context.Context, sourceImageURL, prompt string) (generation.Asset, error)
}

// ManifestStore is the durable home of the manifest.
type ManifestStore interface {
	Load(ctx context.Context) (*manifest.Manifest, error)
	Save(ctx context.Context, m *manifest.Manifest) error
}

// Recorder receives every step outcome of a run. Recording is best effort.
type Recorder interface {
	RecordStep(ctx context.Context, runID string, outcome StepOutcome) error
}

// Policy decides what happens to entries already present in the manifest.
type Policy string

const (
	// PolicyRegenerate starts from an empty manifest and regenerates everything.
	PolicyRegenerate Policy = "regenerate"
	// PolicyResume keeps populated entries and only generates what is missing.
	PolicyResume Policy = "resume"
)

// ParsePolicy validates a policy name. Empty means PolicyRegenerate.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyRegenerate:
		return PolicyRegenerate, nil
	case PolicyResume:
		return PolicyResume, nil
	default:
		return "", fmt.Errorf("pipeline: unknown policy %q", s)
	}
}

// AssetState tracks one definition through a run.
type AssetState string

const (
	AssetNotStarted AssetState = "not_started"
	AssetInProgress AssetState = "in_progress"
	AssetDone       AssetState = "done"
	AssetAborted    AssetState = "aborted"
	AssetSkipped    AssetState = "skipped"
)

// OutcomeKind tags a StepOutcome.
type OutcomeKind string

const (
	OutcomeGenerated OutcomeKind = "generated"
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeFailed    OutcomeKind = "failed"
)

// StepOutcome is the result of one stage of one asset.
type StepOutcome struct {
	Kind     OutcomeKind
	Asset    string
	Group    domain.AssetGroup
	Stage    domain.TaskKind
	TaskID   string
	URL      string
	Err      error
	Duration time.Duration
}

// Failed reports whether the step stops the run.
func (o StepOutcome) Failed() bool {
	return o.Kind == OutcomeFailed
}

// AbortError reports the asset, stage and error that halted a run together
// with the manifest as it stood at that moment.
type AbortError struct {
	RunID    string
	Asset    string
	Stage    domain.TaskKind
	Category domain.ErrorCategory
	Err      error
	Manifest *manifest.Manifest
}

func (e *AbortError) Error() string {
	stage := string(e.Stage)
	if stage == "" {
		stage = "-"
	}
	return fmt.Sprintf("pipeline: run aborted at %s (stage %s, %s): %v", e.Asset, stage, e.Category, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Summary describes a completed run.
type Summary struct {
	RunID     string
	Policy    Policy
	Generated int
	Skipped   int
	Locations int
	States    map[string]AssetState
	Outcomes  []StepOutcome
	Manifest  *manifest.Manifest
	Elapsed   time.Duration
}

// Options tunes an Orchestrator.
type Options struct {
	Policy   Policy
	Recorder Recorder
	Logger   *infra.Logger
	Now      func() time.Time
	RunID    string
}

// Orchestrator runs a catalog strictly in declaration order. A failure of
// any stage aborts the whole run.
type Orchestrator struct {
	gen      Generator
	store    ManifestStore
	defs     []domain.AssetDefinition
	policy   Policy
	recorder Recorder
	logger   *infra.Logger
	now      func() time.Time
	runID    string
}

// New builds an Orchestrator for defs.
func New(gen Generator, store ManifestStore, defs []domain.AssetDefinition, opts Options) *Orchestrator {
	if opts.Policy == "" {
		opts.Policy = PolicyRegenerate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Orchestrator{
		gen:      gen,
		store:    store,
		defs:     defs,
		policy:   opts.Policy,
		recorder: opts.Recorder,
		logger:   infra.OrDiscard(opts.Logger),
		now:      opts.Now,
		runID:    opts.RunID,
	}
}

// RunID identifies this orchestrator's run in logs and the journal.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run generates every asset. On failure the returned error is an
// *AbortError; the manifest on disk holds every entry completed before it.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := o.now()
	if err := validateDefinitions(o.defs); err != nil {
		return nil, err
	}

	m, err := o.initialManifest(ctx)
	if err != nil {
		return nil, &AbortError{RunID: o.runID, Asset: "-", Category: domain.Categorize(err), Err: err}
	}
	m.GeneratedAt = start.UTC().Truncate(time.Second)

	summary := &Summary{
		RunID:  o.runID,
		Policy: o.policy,
		States: make(map[string]AssetState, len(o.defs)),
	}
	for _, def := range o.defs {
		summary.States[def.Name] = AssetNotStarted
	}

	o.logger.Info().
		Str("run_id", o.runID).
		Str("policy", string(o.policy)).
		Int("assets", len(o.defs)).
		Int("locations", ExpectedLocations(o.defs)).
		Msg("pipeline: run started")

	for i, def := range o.defs {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = o.now().Sub(start)
			return summary, o.abort(summary, def.Name, "", err, m)
		}
		summary.States[def.Name] = AssetInProgress
		o.logger.Info().
			Str("run_id", o.runID).
			Str("asset", def.Name).
			Str("group", string(def.Group)).
			Msgf("pipeline: [%d/%d] processing", i+1, len(o.defs))

		outcomes := o.runAsset(ctx, def, m)
		for _, out := range outcomes {
			summary.Outcomes = append(summary.Outcomes, out)
			o.record(ctx, out)
			switch out.Kind {
			case OutcomeGenerated:
				summary.Generated++
			case OutcomeSkipped:
				summary.Skipped++
			case OutcomeFailed:
				summary.States[def.Name] = AssetAborted
				summary.Elapsed = o.now().Sub(start)
				return summary, o.abort(summary, def.Name, out.Stage, out.Err, m)
			}
		}
		if allSkipped(outcomes) {
			summary.States[def.Name] = AssetSkipped
		} else {
			summary.States[def.Name] = AssetDone
		}
	}

	if err := m.Validate(); err != nil {
		return summary, o.abort(summary, "-", "", err, m)
	}
	if err := m.Complete(o.defs); err != nil {
		return summary, o.abort(summary, "-", "", err, m)
	}
	summary.Manifest = m.Clone()
	summary.Locations = len(m.Locations())
	summary.Elapsed = o.now().Sub(start)
	o.logger.Info().
		Str("run_id", o.runID).
		Int("generated", summary.Generated).
		Int("skipped", summary.Skipped).
		Int("locations", summary.Locations).
		Dur("elapsed", summary.Elapsed.Round(time.Second)).
		Msg("pipeline: run complete")
	return summary, nil
}

func (o *Orchestrator) initialManifest(ctx context.Context) (*manifest.Manifest, error) {
	if o.policy == PolicyRegenerate {
		return manifest.Default(), nil
	}
	m, err := o.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		o.logger.Warn().Err(err).Msg("pipeline: loaded manifest is inconsistent, starting fresh")
		return manifest.Default(), nil
	}
	return m, nil
}

// runAsset executes the stages of def. A dependent stage only starts after
// the stage it consumes has been saved.
func (o *Orchestrator) runAsset(ctx context.Context, def domain.AssetDefinition, m *manifest.Manifest) []StepOutcome {
	image := o.imageStep(ctx, def, m)
	outcomes := []StepOutcome{image}
	if image.Failed() || !def.HasVideo() {
		return outcomes
	}
	return append(outcomes, o.videoStep(ctx, def, image, m))
}

func (o *Orchestrator) imageStep(ctx context.Context, def domain.AssetDefinition, m *manifest.Manifest) StepOutcome {
	out := StepOutcome{Asset: def.Name, Group: def.Group, Stage: domain.TaskKindImage}
	if url, ok := o.existingImage(def, m); ok {
		out.Kind = OutcomeSkipped
		out.URL = url
		o.logger.Info().Str("asset", def.Name).Msg("pipeline: image present, skipping")
		return out
	}

	started := o.now()
	asset, err := o.gen.GenerateImage(ctx, def.Image.Prompt)
	out.TaskID = asset.TaskID
	out.Duration = o.now().Sub(started)
	if err != nil {
		return failed(out, err)
	}
	out.URL = asset.URL

	switch def.Group {
	case domain.AssetGroupHero:
		err = m.SetHeroImage(def.Name, asset.URL)
	default:
		err = m.PutPortfolioItem(manifest.PortfolioItem{
			ID:       def.Name,
			Title:    def.Title,
			Location: def.Location,
			Image:    asset.URL,
		})
	}
	if err != nil {
		return failed(out, err)
	}
	if err := o.store.Save(ctx, m); err != nil {
		return failed(out, err)
	}
	out.Kind = OutcomeGenerated
	return out
}

func (o *Orchestrator) videoStep(ctx context.Context, def domain.AssetDefinition, image StepOutcome, m *manifest.Manifest) StepOutcome {
	out := StepOutcome{Asset: def.Name, Group: def.Group, Stage: domain.TaskKindVideo}
	if hero, ok := m.Hero(def.Name); ok && image.Kind == OutcomeSkipped && hero.Video != "" {
		out.Kind = OutcomeSkipped
		out.URL = hero.Video
		o.logger.Info().Str("asset", def.Name).Msg("pipeline: video present, skipping")
		return out
	}

	started := o.now()
	asset, err := o.gen.GenerateVideo(ctx, image.URL, def.Video.Prompt)
	out.TaskID = asset.TaskID
	out.Duration = o.now().Sub(started)
	if err != nil {
		return failed(out, err)
	}
	out.URL = asset.URL
	if err := m.SetHeroVideo(def.Name, asset.URL); err != nil {
		return failed(out, err)
	}
	if err := o.store.Save(ctx, m); err != nil {
		return failed(out, err)
	}
	out.Kind = OutcomeGenerated
	return out
}

func (o *Orchestrator) existingImage(def domain.AssetDefinition, m *manifest.Manifest) (string, bool) {
	if o.policy != PolicyResume {
		return "", false
	}
	switch def.Group {
	case domain.AssetGroupHero:
		if hero, ok := m.Hero(def.Name); ok && hero.Image != "" {
			return hero.Image, true
		}
	default:
		if item, ok := m.PortfolioItem(def.Name); ok && item.Image != "" {
			return item.Image, true
		}
	}
	return "", false
}

func (o *Orchestrator) record(ctx context.Context, out StepOutcome) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordStep(context.WithoutCancel(ctx), o.runID, out); err != nil {
		o.logger.Warn().Err(err).Str("asset", out.Asset).Msg("pipeline: journal write failed")
	}
}

func (o *Orchestrator) abort(summary *Summary, asset string, stage domain.TaskKind, err error, m *manifest.Manifest) error {
	abortErr := &AbortError{
		RunID:    o.runID,
		Asset:    asset,
		Stage:    stage,
		Category: domain.Categorize(err),
		Err:      err,
		Manifest: m.Clone(),
	}
	summary.Manifest = abortErr.Manifest
	summary.Locations = len(m.Locations())
	o.logger.Error().
		Err(err).
		Str("run_id", o.runID).
		Str("asset", asset).
		Str("stage", string(stage)).
		Str("category", string(abortErr.Category)).
		Str("task_id", domain.TaskIDOf(err)).
		Int("saved_locations", summary.Locations).
		Msg("pipeline: run aborted")
	return abortErr
}

func failed(out StepOutcome, err error) StepOutcome {
	out.Kind = OutcomeFailed
	out.Err = err
	if out.TaskID == "" {
		out.TaskID = domain.TaskIDOf(err)
	}
	return out
}

func allSkipped(outcomes []StepOutcome) bool {
	for _, out := range outcomes {
		if out.Kind != OutcomeSkipped {
			return false
		}
	}
	return len(outcomes) > 0
}

func validateDefinitions(defs []domain.AssetDefinition) error {
	if len(defs) == 0 {
		return fmt.Errorf("pipeline: %w: no asset definitions", domain.ErrInvalidCatalog)
	}
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		key := string(def.Group) + "/" + def.Name
		if def.Name == "" {
			return fmt.Errorf("pipeline: %w: definition without a name", domain.ErrInvalidCatalog)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("pipeline: %w: %s declared twice", domain.ErrInvalidCatalog, key)
		}
		seen[key] = struct{}{}
		if def.HasVideo() && def.Group != domain.AssetGroupHero {
			return fmt.Errorf("pipeline: %w: %s has a video stage outside the hero group", domain.ErrInvalidCatalog, def.Name)
		}
		if def.Group != domain.AssetGroupHero && def.Group != domain.AssetGroupPortfolio {
			return fmt.Errorf("pipeline: %w: %s has unknown group %q", domain.ErrInvalidCatalog, def.Name, def.Group)
		}
	}
	return nil
}

// IsAbort reports whether err halted a run, returning the details.
func IsAbort(err error) (*AbortError, bool) {
	var abortErr *AbortError
	if errors.As(err, &abortErr) {
		return abortErr, true
	}
	return nil, false
}
