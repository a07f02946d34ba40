package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"assetgen/internal/domain"
	"assetgen/internal/infra"
)

const (
	DefaultBaseURL       = "https://api.kie.ai/api/v1/jobs"
	DefaultImageModel    = "seedream/4.5-text-to-image"
	DefaultVideoModel    = "kling-2.6/image-to-video"
	DefaultAspectRatio   = "16:9"
	DefaultQuality       = "high"
	DefaultVideoDuration = "5"

	codeOK = 200

	pingTaskID = "connectivity-check"
)

// Options configures the kie.ai jobs client. Every value is explicit; the
// client never reads process environment.
type Options struct {
	APIKey         string
	BaseURL        string
	ImageModel     string
	VideoModel     string
	AspectRatio    string
	Quality        string
	VideoDuration  string
	VideoSound     bool
	RateInterval   time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client submits generation jobs to the kie.ai jobs API and queries their
// status. It performs no retries.
type Client struct {
	apiKey        string
	baseURL       string
	imageModel    string
	videoModel    string
	aspectRatio   string
	quality       string
	videoDuration string
	videoSound    bool
	limiter       *rate.Limiter
	httpClient    *http.Client
	logger        *infra.Logger
}

// ImageOptions overrides the client defaults for one image submission.
type ImageOptions struct {
	AspectRatio string
	Quality     string
}

// VideoOptions overrides the client defaults for one video submission.
type VideoOptions struct {
	Duration string
	Sound    *bool
}

// TaskStatus is the normalized result of a status query.
type TaskStatus struct {
	TaskID     string
	Model      string
	State      domain.TaskState
	ResultURLs []string
	FailCode   string
	FailReason string
	CostTime   time.Duration
}

// ResultURL returns the first non-empty result location.
func (s TaskStatus) ResultURL() string {
	for _, u := range s.ResultURLs {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

type createTaskRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type imageInput struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Quality     string `json:"quality,omitempty"`
}

type videoInput struct {
	Prompt    string   `json:"prompt"`
	ImageURLs []string `json:"image_urls"`
	Sound     bool     `json:"sound"`
	Duration  string   `json:"duration,omitempty"`
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type createTaskData struct {
	TaskID string `json:"taskId"`
}

type recordInfoData struct {
	TaskID       string     `json:"taskId"`
	Model        string     `json:"model"`
	State        string     `json:"state"`
	Param        string     `json:"param"`
	ResultJSON   string     `json:"resultJson"`
	FailCode     flexString `json:"failCode"`
	FailMsg      flexString `json:"failMsg"`
	CostTime     *int64     `json:"costTime"`
	CompleteTime *int64     `json:"completeTime"`
	CreateTime   int64      `json:"createTime"`
}

type resultPayload struct {
	ResultURLs []string `json:"resultUrls"`
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == "" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	*f = flexString(raw)
	return nil
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("kie: invalid base url: %w", err)
	}
	var limiter *rate.Limiter
	if opts.RateInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.RateInterval), 1)
	}
	return &Client{
		apiKey:        strings.TrimSpace(opts.APIKey),
		baseURL:       baseURL,
		imageModel:    firstNonEmpty(opts.ImageModel, DefaultImageModel),
		videoModel:    firstNonEmpty(opts.VideoModel, DefaultVideoModel),
		aspectRatio:   firstNonEmpty(opts.AspectRatio, DefaultAspectRatio),
		quality:       firstNonEmpty(opts.Quality, DefaultQuality),
		videoDuration: firstNonEmpty(opts.VideoDuration, DefaultVideoDuration),
		videoSound:    opts.VideoSound,
		limiter:       limiter,
		httpClient:    httpClient,
		logger:        infra.OrDiscard(opts.Logger),
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// ImageModel returns the configured image model identifier.
func (c *Client) ImageModel() string {
	return c.imageModel
}

// VideoModel returns the configured video model identifier.
func (c *Client) VideoModel() string {
	return c.videoModel
}

// SubmitImageTask creates a text-to-image task and returns its id.
func (c *Client) SubmitImageTask(ctx context.Context, prompt string, opts ImageOptions) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", &domain.SubmissionError{Kind: domain.TaskKindImage, Message: "prompt is required"}
	}
	payload := createTaskRequest{
		Model: c.imageModel,
		Input: imageInput{
			Prompt:      prompt,
			AspectRatio: firstNonEmpty(opts.AspectRatio, c.aspectRatio),
			Quality:     firstNonEmpty(opts.Quality, c.quality),
		},
	}
	return c.createTask(ctx, domain.TaskKindImage, payload)
}

// SubmitVideoTask creates an image-to-video task seeded by sourceImageURL.
func (c *Client) SubmitVideoTask(ctx context.Context, sourceImageURL, prompt string, opts VideoOptions) (string, error) {
	prompt = strings.TrimSpace(prompt)
	sourceImageURL = strings.TrimSpace(sourceImageURL)
	if prompt == "" {
		return "", &domain.SubmissionError{Kind: domain.TaskKindVideo, Message: "prompt is required"}
	}
	if sourceImageURL == "" {
		return "", &domain.SubmissionError{Kind: domain.TaskKindVideo, Message: "source image url is required"}
	}
	sound := c.videoSound
	if opts.Sound != nil {
		sound = *opts.Sound
	}
	payload := createTaskRequest{
		Model: c.videoModel,
		Input: videoInput{
			Prompt:    prompt,
			ImageURLs: []string{sourceImageURL},
			Sound:     sound,
			Duration:  firstNonEmpty(opts.Duration, c.videoDuration),
		},
	}
	return c.createTask(ctx, domain.TaskKindVideo, payload)
}

// GetTaskStatus queries the current state of a task. Any transport, HTTP or
// envelope failure is reported as a *domain.TransientStatusError; a state
// outside the known set is a *domain.UnknownStateError.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (TaskStatus, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return TaskStatus{}, fmt.Errorf("kie: task id is required")
	}
	if !c.HasCredentials() {
		return TaskStatus{}, domain.ErrMissingAPIKey
	}
	if err := c.wait(ctx); err != nil {
		return TaskStatus{}, err
	}

	endpoint := c.baseURL + "/recordInfo?taskId=" + url.QueryEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TaskStatus{}, fmt.Errorf("kie: build status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	status, raw, err := c.do(req)
	if err != nil {
		return TaskStatus{}, &domain.TransientStatusError{TaskID: taskID, Err: err}
	}
	if status >= 300 {
		return TaskStatus{}, &domain.TransientStatusError{TaskID: taskID, StatusCode: status, Message: errorDetail(raw)}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return TaskStatus{}, &domain.TransientStatusError{TaskID: taskID, Err: fmt.Errorf("decode response: %w", err)}
	}
	if env.Code != codeOK {
		return TaskStatus{}, &domain.TransientStatusError{TaskID: taskID, Code: env.Code, Message: fmt.Sprintf("%s (code %d)", firstNonEmpty(env.Msg, "unknown error"), env.Code)}
	}
	var data recordInfoData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return TaskStatus{}, &domain.TransientStatusError{TaskID: taskID, Err: fmt.Errorf("decode task data: %w", err)}
	}

	state, err := domain.ParseRemoteState(data.State)
	if err != nil {
		return TaskStatus{}, &domain.UnknownStateError{TaskID: taskID, State: data.State}
	}
	out := TaskStatus{
		TaskID:     firstNonEmpty(data.TaskID, taskID),
		Model:      data.Model,
		State:      state,
		FailCode:   string(data.FailCode),
		FailReason: string(data.FailMsg),
	}
	if data.CostTime != nil {
		out.CostTime = time.Duration(*data.CostTime) * time.Millisecond
	}
	if state == domain.TaskStateSucceeded {
		out.ResultURLs = c.decodeResultURLs(taskID, data.ResultJSON)
	}
	return out, nil
}

// Ping checks that the service is reachable and accepts the API key by
// querying a task id that cannot exist. Any business answer, including an
// envelope without a usable state, counts as success; only transport failures
// and rejected credentials are errors.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetTaskStatus(ctx, pingTaskID)
	if err == nil {
		return nil
	}
	var unknown *domain.UnknownStateError
	if errors.As(err, &unknown) {
		return nil
	}
	var transient *domain.TransientStatusError
	if !errors.As(err, &transient) {
		return err
	}
	var urlErr *url.Error
	switch {
	case isAuthStatus(transient.StatusCode), isAuthStatus(transient.Code):
		return fmt.Errorf("kie: credentials rejected: %w", err)
	case errors.As(transient.Err, &urlErr):
		return fmt.Errorf("kie: service unreachable: %w", err)
	default:
		return nil
	}
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func (c *Client) createTask(ctx context.Context, kind domain.TaskKind, payload createTaskRequest) (string, error) {
	if !c.HasCredentials() {
		return "", &domain.SubmissionError{Kind: kind, Err: domain.ErrMissingAPIKey}
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("kie: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/createTask", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("kie: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	status, raw, err := c.do(req)
	if err != nil {
		return "", &domain.SubmissionError{Kind: kind, Err: err}
	}
	if status >= 300 {
		return "", &domain.SubmissionError{Kind: kind, StatusCode: status, Message: errorDetail(raw)}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", &domain.SubmissionError{Kind: kind, Err: fmt.Errorf("decode response: %w", err)}
	}
	if env.Code != codeOK {
		return "", &domain.SubmissionError{Kind: kind, Code: env.Code, Message: firstNonEmpty(env.Msg, "unknown error")}
	}
	var data createTaskData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", &domain.SubmissionError{Kind: kind, Err: fmt.Errorf("decode task data: %w", err)}
		}
	}
	taskID := strings.TrimSpace(data.TaskID)
	if taskID == "" {
		return "", &domain.SubmissionError{Kind: kind, Code: env.Code, Message: firstNonEmpty(env.Msg, "response missing task id")}
	}
	c.logger.Debug().
		Str("kind", string(kind)).
		Str("model", payload.Model).
		Str("task_id", taskID).
		Msg("kie: task created")
	return taskID, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("kie: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("kie: read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return ctx.Err()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("kie: rate limiter: %w", err)
	}
	return nil
}

// decodeResultURLs unpacks the JSON-in-a-string result list. A malformed
// payload yields no URLs; the caller treats that as an empty result.
func (c *Client) decodeResultURLs(taskID, raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var payload resultPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.logger.Warn().Err(err).Str("task_id", taskID).Msg("kie: malformed resultJson")
		return nil
	}
	return payload.ResultURLs
}

func errorDetail(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Msg != "" {
		return env.Msg
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
