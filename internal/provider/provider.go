// Package provider contains the outbound generation adapters and the
// normalization of their callbacks and errors.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/version"
)

// DefaultTimeout bounds a single HTTP exchange with a provider when the
// ClientConfig sets no Timeout.
const DefaultTimeout = 2 * time.Minute

// maxResponseSize caps how much of a provider response is read.
const maxResponseSize = 1 << 20

// SubmitRequest is one generation submission.
type SubmitRequest struct {
	JobID string
	Kind  models.JobKind
	Model string

	// Path and Body come from the model's catalog route.
	Path string
	Body map[string]any

	CallbackURL string
	APIKey      string
}

// SubmitResult is a successful submission. Immediate is set when the
// provider answered synchronously with a terminal outcome.
type SubmitResult struct {
	ExternalTaskID string
	Immediate      *Callback
}

// Adapter submits jobs to one provider protocol and polls their status.
type Adapter interface {
	Name() string
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	// Status polls a task. Used when a callback never arrives.
	Status(ctx context.Context, apiKey, externalTaskID string) (*Callback, error)
}

// ClientConfig holds the common adapter configuration.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout bounds one HTTP exchange. It must not be shorter than the
	// caller's own deadline or it will cut submissions short.
	Timeout time.Duration
}

func (c ClientConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// exchange performs one JSON request and returns the status and body.
// A transport failure returns status 0.
func exchange(ctx context.Context, client *http.Client, method, url, apiKey string, payload any, extra http.Header) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}
