// Package routes provides shared route registration for the genmedia API.
// This allows both the main server and the OpenAPI generator to use
// the same route definitions, keeping the OpenAPI document in sync.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/genmedia-api/internal/http/mw"
	"github.com/jmylchreest/genmedia-api/internal/version"
)

// NewHumaConfig creates the shared Huma configuration for the API.
// This includes API metadata, security schemes, and tag definitions.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("genmedia API", version.Get().Short())
	cfg.Info.Description = "Credit-metered asynchronous AI media generation with scheduled social posts."

	// Disable $schema field in responses
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "HS256 JWT in the Authorization header as `Bearer <token>`. The `sub` claim is the user ID.",
		},
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Generation", Description: "Submit media generation jobs", Extensions: map[string]any{"x-displayName": "Generation"}},
		{Name: "Generations", Description: "Job status and results", Extensions: map[string]any{"x-displayName": "Generations"}},
		{Name: "Posts", Description: "Scheduled social posts and their media", Extensions: map[string]any{"x-displayName": "Posts"}},
		{Name: "Credits", Description: "Credit balance and history", Extensions: map[string]any{"x-displayName": "Credits"}},
		{Name: "Models", Description: "Available models and costs", Extensions: map[string]any{"x-displayName": "Models"}},
		{Name: "Health", Description: "System health and status", Extensions: map[string]any{"x-displayName": "Health"}},
	}

	return cfg
}
