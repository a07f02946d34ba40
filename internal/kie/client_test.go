package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"assetgen/internal/domain"
)

func TestSubmitImageTaskPayload(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("/api/v1/jobs/createTask", http.StatusOK, map[string]any{
		"code": 200,
		"msg":  "success",
		"data": map[string]any{"taskId": "T1"},
	})
	client := newTestClient(t, transport)

	taskID, err := client.SubmitImageTask(context.Background(), "  Vienna penthouse at dusk ", ImageOptions{})
	if err != nil {
		t.Fatalf("submit image: %v", err)
	}
	if taskID != "T1" {
		t.Fatalf("taskID = %q, want T1", taskID)
	}
	if got := transport.lastHeader.Get("Authorization"); got != "Bearer test-key" {
		t.Fatalf("Authorization = %q, want Bearer test-key", got)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["model"] != DefaultImageModel {
		t.Fatalf("model = %v, want %s", payload["model"], DefaultImageModel)
	}
	input := payload["input"].(map[string]any)
	if input["prompt"] != "Vienna penthouse at dusk" {
		t.Fatalf("prompt = %v", input["prompt"])
	}
	if input["aspect_ratio"] != "16:9" {
		t.Fatalf("aspect_ratio = %v, want 16:9", input["aspect_ratio"])
	}
	if input["quality"] != "high" {
		t.Fatalf("quality = %v, want high", input["quality"])
	}
}

func TestSubmitVideoTaskPayload(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("/api/v1/jobs/createTask", http.StatusOK, map[string]any{
		"code": 200,
		"data": map[string]any{"taskId": "V1"},
	})
	client := newTestClient(t, transport)

	taskID, err := client.SubmitVideoTask(context.Background(), "https://x/1.png", "slow pan", VideoOptions{})
	if err != nil {
		t.Fatalf("submit video: %v", err)
	}
	if taskID != "V1" {
		t.Fatalf("taskID = %q, want V1", taskID)
	}
	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["model"] != DefaultVideoModel {
		t.Fatalf("model = %v, want %s", payload["model"], DefaultVideoModel)
	}
	input := payload["input"].(map[string]any)
	urls := input["image_urls"].([]any)
	if len(urls) != 1 || urls[0] != "https://x/1.png" {
		t.Fatalf("image_urls = %v", urls)
	}
	if input["duration"] != "5" {
		t.Fatalf("duration = %v, want 5", input["duration"])
	}
	if input["sound"] != false {
		t.Fatalf("sound = %v, want false", input["sound"])
	}
}

func TestSubmitRejectsEmbeddedFailureCode(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("/api/v1/jobs/createTask", http.StatusOK, map[string]any{
		"code": 402,
		"msg":  "insufficient credits",
	})
	client := newTestClient(t, transport)

	_, err := client.SubmitImageTask(context.Background(), "villa", ImageOptions{})
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.Code != 402 || subErr.Message != "insufficient credits" {
		t.Fatalf("submission error = %+v", subErr)
	}
}

func TestSubmitRejectsHTTPFailure(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("/api/v1/jobs/createTask", http.StatusUnauthorized, map[string]any{
		"code": 401,
		"msg":  "invalid api key",
	})
	client := newTestClient(t, transport)

	_, err := client.SubmitImageTask(context.Background(), "villa", ImageOptions{})
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.StatusCode != http.StatusUnauthorized || subErr.Message != "invalid api key" {
		t.Fatalf("submission error = %+v", subErr)
	}
}

func TestSubmitRejectsMissingTaskID(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("/api/v1/jobs/createTask", http.StatusOK, map[string]any{"code": 200, "data": map[string]any{}})
	client := newTestClient(t, transport)

	_, err := client.SubmitImageTask(context.Background(), "villa", ImageOptions{})
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
}

func TestSubmitWithoutCredentials(t *testing.T) {
	client, err := NewClient(Options{HTTPClient: &http.Client{Transport: newCaptureTransport()}})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.SubmitImageTask(context.Background(), "villa", ImageOptions{})
	if !errors.Is(err, domain.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSubmitTransportErrorIsSubmissionError(t *testing.T) {
	transport := newCaptureTransport()
	transport.err = errors.New("connection refused")
	client := newTestClient(t, transport)

	_, err := client.SubmitVideoTask(context.Background(), "https://x/1.png", "pan", VideoOptions{})
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.Kind != domain.TaskKindVideo {
		t.Fatalf("Kind = %q, want video", subErr.Kind)
	}
}

func TestGetTaskStatusSuccess(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("/api/v1/jobs/recordInfo", http.StatusOK, map[string]any{
		"code": 200,
		"data": map[string]any{
			"taskId":     "T1",
			"model":      DefaultImageModel,
			"state":      "success",
			"resultJson": `{"resultUrls":["https://x/1.png"]}`,
			"failCode":   nil,
			"failMsg":    nil,
			"costTime":   1500,
		},
	})
	client := newTestClient(t, transport)

	status, err := client.GetTaskStatus(context.Background(), "T1")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.State != domain.TaskStateSucceeded {
		t.Fatalf("State = %q, want succeeded", status.State)
	}
	if status.ResultURL() != "https://x/1.png" {
		t.Fatalf("ResultURL = %q", status.ResultURL())
	}
	if got := transport.lastReq.URL.Query().Get("taskId"); got != "T1" {
		t.Fatalf("taskId query = %q, want T1", got)
	}
	if status.CostTime.Milliseconds() != 1500 {
		t.Fatalf("CostTime = %s", status.CostTime)
	}
}

func TestGetTaskStatusFailure(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("/api/v1/jobs/recordInfo", http.StatusOK, map[string]any{
		"code": 200,
		"data": map[string]any{"taskId": "T1", "state": "fail", "failCode": 501, "failMsg": "nsfw content"},
	})
	client := newTestClient(t, transport)

	status, err := client.GetTaskStatus(context.Background(), "T1")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.State != domain.TaskStateFailed {
		t.Fatalf("State = %q, want failed", status.State)
	}
	if status.FailReason != "nsfw content" || status.FailCode != "501" {
		t.Fatalf("fail = %q/%q", status.FailCode, status.FailReason)
	}
}

func TestGetTaskStatusMalformedResultYieldsNoURL(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("/api/v1/jobs/recordInfo", http.StatusOK, map[string]any{
		"code": 200,
		"data": map[string]any{"taskId": "T1", "state": "success", "resultJson": "not-json"},
	})
	client := newTestClient(t, transport)

	status, err := client.GetTaskStatus(context.Background(), "T1")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.ResultURL() != "" {
		t.Fatalf("ResultURL = %q, want empty", status.ResultURL())
	}
}

func TestGetTaskStatusTransientFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		err    error
	}{
		{name: "server error", status: http.StatusBadGateway, body: map[string]any{"msg": "upstream"}},
		{name: "embedded code", status: http.StatusOK, body: map[string]any{"code": 500, "msg": "busy"}},
		{name: "transport", err: errors.New("connection reset")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transport := newCaptureTransport()
			transport.err = tc.err
			if tc.body != nil {
				transport.setJSON("/api/v1/jobs/recordInfo", tc.status, tc.body)
			}
			client := newTestClient(t, transport)

			_, err := client.GetTaskStatus(context.Background(), "T1")
			var transient *domain.TransientStatusError
			if !errors.As(err, &transient) {
				t.Fatalf("expected TransientStatusError, got %v", err)
			}
			if transient.TaskID != "T1" {
				t.Fatalf("TaskID = %q, want T1", transient.TaskID)
			}
		})
	}
}

func TestGetTaskStatusUnknownState(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSON("/api/v1/jobs/recordInfo", http.StatusOK, map[string]any{
		"code": 200,
		"data": map[string]any{"taskId": "T1", "state": "exploded"},
	})
	client := newTestClient(t, transport)

	_, err := client.GetTaskStatus(context.Background(), "T1")
	var unknown *domain.UnknownStateError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownStateError, got %v", err)
	}
	if unknown.State != "exploded" || unknown.TaskID != "T1" {
		t.Fatalf("unknown state error = %+v", unknown)
	}
}

func newTestClient(t *testing.T, transport http.RoundTripper) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "test-key",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

type captureTransport struct {
	responses  map[string]responseStub
	err        error
	lastBody   []byte
	lastHeader http.Header
	lastReq    *http.Request
}

type responseStub struct {
	status int
	body   []byte
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{responses: map[string]responseStub{}}
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.lastHeader = req.Header.Clone()
	c.lastReq = req
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
	}
	if c.err != nil {
		return nil, c.err
	}
	if stub, ok := c.responses[req.URL.Path]; ok {
		return &http.Response{
			StatusCode: stub.status,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewReader(stub.body)),
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSON(path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{status: status, body: body}
}

func TestPing(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		err     error
		wantErr string
	}{
		{name: "unknown task is fine", status: http.StatusOK, body: map[string]any{"code": 422, "msg": "task not found"}},
		{name: "empty task data is fine", status: http.StatusOK, body: map[string]any{"code": 200, "msg": "success", "data": nil}},
		{name: "rejected key", status: http.StatusOK, body: map[string]any{"code": 401, "msg": "unauthorized"}, wantErr: "credentials rejected"},
		{name: "forbidden", status: http.StatusForbidden, body: map[string]any{"msg": "forbidden"}, wantErr: "credentials rejected"},
		{name: "unreachable", err: errors.New("no route to host"), wantErr: "service unreachable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transport := newCaptureTransport()
			transport.err = tc.err
			if tc.body != nil {
				transport.setJSON("/api/v1/jobs/recordInfo", tc.status, tc.body)
			}
			err := newTestClient(t, transport).Ping(context.Background())
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Ping error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Ping error = %v, want %q", err, tc.wantErr)
			}
		})
	}
}
