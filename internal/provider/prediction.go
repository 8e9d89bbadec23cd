package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Prediction talks to prediction-style APIs ({id, status, output}). When
// SyncWait is set the provider may hold the request open and return the
// finished prediction, which becomes an immediate result.
type Prediction struct {
	baseURL    string
	syncWait   time.Duration
	httpClient *http.Client
}

var _ Adapter = (*Prediction)(nil)

// PredictionConfig configures the prediction adapter.
type PredictionConfig struct {
	ClientConfig
	// SyncWait asks the provider to wait up to this long before answering (0 disables).
	SyncWait time.Duration
}

// NewPrediction creates a prediction adapter.
func NewPrediction(cfg PredictionConfig) *Prediction {
	return &Prediction{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		syncWait:   cfg.SyncWait,
		httpClient: cfg.httpClient(),
	}
}

// Name implements Adapter.
func (a *Prediction) Name() string { return "prediction" }

// Submit implements Adapter.
func (a *Prediction) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	payload := map[string]any{"input": req.Body}
	if req.CallbackURL != "" {
		payload["webhook"] = req.CallbackURL
		payload["webhook_events_filter"] = []string{"completed"}
	}

	var extra http.Header
	if a.syncWait > 0 {
		extra = http.Header{"Prefer": []string{fmt.Sprintf("wait=%d", int(a.syncWait.Seconds()))}}
	}

	status, data, err := exchange(ctx, a.httpClient, http.MethodPost, a.baseURL+req.Path, req.APIKey, payload, extra)
	if err != nil {
		return nil, ClassifyError(a.Name(), status, "", err)
	}
	if status < 200 || status > 299 {
		return nil, ClassifyError(a.Name(), status, predictionErrorText(data), nil)
	}

	id := gjson.GetBytes(data, "id").String()
	if id == "" {
		return nil, ClassifyError(a.Name(), 0, "response did not include a prediction id", nil)
	}
	result := &SubmitResult{ExternalTaskID: id}

	if cb, err := NormalizeCallback(data); err == nil && cb.Status.IsTerminal() {
		result.Immediate = cb
	}
	return result, nil
}

// Status implements Adapter.
func (a *Prediction) Status(ctx context.Context, apiKey, externalTaskID string) (*Callback, error) {
	u := a.baseURL + "/v1/predictions/" + url.PathEscape(externalTaskID)
	status, data, err := exchange(ctx, a.httpClient, http.MethodGet, u, apiKey, nil, nil)
	if err != nil {
		return nil, ClassifyError(a.Name(), status, "", err)
	}
	if status < 200 || status > 299 {
		return nil, ClassifyError(a.Name(), status, predictionErrorText(data), nil)
	}

	cb, err := NormalizeCallback(data)
	if err != nil {
		return nil, fmt.Errorf("prediction status %s: %w", externalTaskID, err)
	}
	return cb, nil
}

func predictionErrorText(data []byte) string {
	for _, path := range []string{"detail", "error", "title"} {
		if v := gjson.GetBytes(data, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return strings.TrimSpace(string(data))
}
