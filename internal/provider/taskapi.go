package provider

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// TaskAPI talks to task-based JSON APIs that wrap every answer in
// {code, msg, data}. The envelope code, not the HTTP status, carries the outcome.
type TaskAPI struct {
	baseURL    string
	statusPath string
	httpClient *http.Client
}

var _ Adapter = (*TaskAPI)(nil)

// NewTaskAPI creates a task API adapter.
func NewTaskAPI(cfg ClientConfig) *TaskAPI {
	return &TaskAPI{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		statusPath: "/api/v1/jobs/recordInfo",
		httpClient: cfg.httpClient(),
	}
}

// Name implements Adapter.
func (a *TaskAPI) Name() string { return "taskapi" }

// Submit implements Adapter.
func (a *TaskAPI) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	body := make(map[string]any, len(req.Body)+1)
	maps.Copy(body, req.Body)
	if req.CallbackURL != "" {
		body["callBackUrl"] = req.CallbackURL
	}

	status, data, err := exchange(ctx, a.httpClient, http.MethodPost, a.baseURL+req.Path, req.APIKey, body, nil)
	if err != nil {
		return nil, ClassifyError(a.Name(), status, "", err)
	}

	code, msg, env := parseEnvelope(status, data)
	if code != http.StatusOK {
		return nil, ClassifyError(a.Name(), code, msg, nil)
	}

	taskID := firstString(env.Get("data"), "taskId", "task_id")
	if taskID == "" {
		return nil, ClassifyError(a.Name(), 0, "response did not include a task id", nil)
	}
	return &SubmitResult{ExternalTaskID: taskID}, nil
}

// Status implements Adapter.
func (a *TaskAPI) Status(ctx context.Context, apiKey, externalTaskID string) (*Callback, error) {
	u := a.baseURL + a.statusPath + "?taskId=" + url.QueryEscape(externalTaskID)
	status, data, err := exchange(ctx, a.httpClient, http.MethodGet, u, apiKey, nil, nil)
	if err != nil {
		return nil, ClassifyError(a.Name(), status, "", err)
	}

	code, msg, _ := parseEnvelope(status, data)
	if code != http.StatusOK {
		return nil, ClassifyError(a.Name(), code, msg, nil)
	}

	cb, err := NormalizeCallback(data)
	if err != nil {
		return nil, fmt.Errorf("taskapi status %s: %w", externalTaskID, err)
	}
	if cb.TaskID == "" {
		cb.TaskID = externalTaskID
	}
	return cb, nil
}

// parseEnvelope returns the effective code: the HTTP status when it is not
// 2xx or the body is not an envelope, otherwise the envelope code.
func parseEnvelope(httpStatus int, data []byte) (int, string, gjson.Result) {
	env := gjson.ParseBytes(data)
	msg := env.Get("msg").String()
	if msg == "" {
		msg = env.Get("message").String()
	}
	if httpStatus < 200 || httpStatus > 299 {
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return httpStatus, msg, env
	}
	if c := env.Get("code"); c.Exists() {
		return int(c.Int()), msg, env
	}
	return httpStatus, msg, env
}
