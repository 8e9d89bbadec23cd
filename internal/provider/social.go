package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// PublishRequest is a post handed to the social publisher.
type PublishRequest struct {
	PostID      string
	Caption     string
	Platforms   []string
	MediaURLs   []string
	ScheduledAt *time.Time
}

// Publisher submits finished posts to a social scheduling service.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (externalPostID string, err error)
}

// SocialClient is a Publisher over a JSON HTTP API.
type SocialClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Publisher = (*SocialClient)(nil)

// NewSocialClient creates a social publisher client.
func NewSocialClient(cfg ClientConfig, apiKey string) *SocialClient {
	return &SocialClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     apiKey,
		httpClient: cfg.httpClient(),
	}
}

// Publish implements Publisher.
func (c *SocialClient) Publish(ctx context.Context, req PublishRequest) (string, error) {
	payload := map[string]any{
		"content":    req.Caption,
		"platforms":  req.Platforms,
		"mediaUrls":  req.MediaURLs,
		"externalId": req.PostID,
	}
	if req.ScheduledAt != nil {
		payload["scheduledFor"] = req.ScheduledAt.UTC().Format(time.RFC3339)
	} else {
		payload["publishNow"] = true
	}

	status, data, err := exchange(ctx, c.httpClient, http.MethodPost, c.baseURL+"/api/v1/posts", c.apiKey, payload, nil)
	if err != nil {
		return "", ClassifyError("social", status, "", err)
	}
	if status < 200 || status > 299 {
		return "", ClassifyError("social", status, predictionErrorText(data), nil)
	}

	id := firstString(gjson.ParseBytes(data), "post._id", "post.id", "id", "postId", "jobId")
	if id == "" {
		return "", ClassifyError("social", 0, "response did not include a post id", nil)
	}
	return id, nil
}
