package generation

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"assetgen/internal/domain"
	"assetgen/internal/infra"
	"assetgen/internal/kie"
)

// TaskClient submits generation jobs to the remote service.
type TaskClient interface {
	SubmitImageTask(ctx context.Context, prompt string, opts kie.ImageOptions) (string, error)
	SubmitVideoTask(ctx context.Context, sourceImageURL, prompt string, opts kie.VideoOptions) (string, error)
}

// Tracker waits for a submitted task to reach a terminal state.
type Tracker interface {
	Track(ctx context.Context, task *domain.GenerationTask, maxAttempts int, pollInterval time.Duration) error
}

// Asset is a produced resource location plus the task that produced it.
type Asset struct {
	URL    string
	TaskID string
	Kind   domain.TaskKind
}

// Options configures the polling budget applied to every task.
type Options struct {
	MaxAttempts  int
	PollInterval time.Duration
	ImageOptions kie.ImageOptions
	VideoOptions kie.VideoOptions
	Logger       *infra.Logger
}

// Generator composes the task client and the poller into blocking
// "generate an image" and "generate a video from an image" calls.
type Generator struct {
	client  TaskClient
	tracker Tracker
	opts    Options
	logger  *infra.Logger
}

// NewGenerator wires a Generator.
func NewGenerator(client TaskClient, tracker Tracker, opts Options) *Generator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 120
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Generator{
		client:  client,
		tracker: tracker,
		opts:    opts,
		logger:  infra.OrDiscard(opts.Logger),
	}
}

// GenerateImage submits a text-to-image task and waits for its result.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) (Asset, error) {
	g.logger.Info().Str("prompt", preview(prompt, 60)).Msg("generation: image requested")
	taskID, err := g.client.SubmitImageTask(ctx, prompt, g.opts.ImageOptions)
	if err != nil {
		return Asset{}, err
	}
	task := domain.NewGenerationTask(taskID, domain.TaskKindImage, domain.TaskInput{Prompt: prompt})
	return g.wait(ctx, task)
}

// GenerateVideo submits an image-to-video task seeded by sourceImageURL and
// waits for its result.
func (g *Generator) GenerateVideo(ctx context.Context, sourceImageURL, prompt string) (Asset, error) {
	g.logger.Info().Str("prompt", preview(prompt, 60)).Str("source", preview(sourceImageURL, 80)).Msg("generation: video requested")
	taskID, err := g.client.SubmitVideoTask(ctx, sourceImageURL, prompt, g.opts.VideoOptions)
	if err != nil {
		return Asset{}, err
	}
	task := domain.NewGenerationTask(taskID, domain.TaskKindVideo, domain.TaskInput{Prompt: prompt, SourceImageURL: sourceImageURL})
	return g.wait(ctx, task)
}

func (g *Generator) wait(ctx context.Context, task *domain.GenerationTask) (Asset, error) {
	g.logger.Info().Str("task_id", task.ID).Str("kind", string(task.Kind)).Msg("generation: task submitted, waiting")
	start := time.Now()
	if err := g.tracker.Track(ctx, task, g.opts.MaxAttempts, g.opts.PollInterval); err != nil {
		if domain.TaskIDOf(err) == "" {
			err = &domain.TaskError{TaskID: task.ID, Err: err}
		}
		return Asset{TaskID: task.ID, Kind: task.Kind}, err
	}
	g.logger.Info().
		Str("task_id", task.ID).
		Str("url", preview(task.ResultURL, 80)).
		Dur("elapsed", time.Since(start).Round(time.Millisecond)).
		Msg("generation: task succeeded")
	return Asset{URL: task.ResultURL, TaskID: task.ID, Kind: task.Kind}, nil
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
