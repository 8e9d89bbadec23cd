package routes

import (
	"context"

	"github.com/jmylchreest/genmedia-api/internal/http/handlers"
)

// GenerateHandlers defines the interface for job submission.
type GenerateHandlers interface {
	Generate(ctx context.Context, input *handlers.GenerateInput) (*handlers.GenerateOutput, error)
}

// GenerationsHandlers defines the interface for job status operations.
type GenerationsHandlers interface {
	GetGeneration(ctx context.Context, input *handlers.GetGenerationInput) (*handlers.GetGenerationOutput, error)
	ListGenerations(ctx context.Context, input *handlers.ListGenerationsInput) (*handlers.ListGenerationsOutput, error)
	RefreshGeneration(ctx context.Context, input *handlers.GetGenerationInput) (*handlers.GetGenerationOutput, error)
}

// CreditsHandlers defines the interface for credit account operations.
type CreditsHandlers interface {
	GetCredits(ctx context.Context, input *handlers.GetCreditsInput) (*handlers.GetCreditsOutput, error)
}

// PostsHandlers defines the interface for scheduled post operations.
type PostsHandlers interface {
	CreatePost(ctx context.Context, input *handlers.CreatePostInput) (*handlers.CreatePostOutput, error)
	GetPost(ctx context.Context, input *handlers.GetPostInput) (*handlers.GetPostOutput, error)
}

// CatalogHandlers defines the interface for the model listing.
type CatalogHandlers interface {
	ListModels(ctx context.Context, input *handlers.ListModelsInput) (*handlers.ListModelsOutput, error)
}

// AdminHandlers defines the interface for admin operations.
// These endpoints are hidden from public OpenAPI documentation.
type AdminHandlers interface {
	ListCredentials(ctx context.Context, input *struct{}) (*handlers.ListCredentialsOutput, error)
	RegisterCredential(ctx context.Context, input *handlers.RegisterCredentialInput) (*handlers.RegisterCredentialOutput, error)
	SetCredentialActive(ctx context.Context, input *handlers.SetCredentialActiveInput) (*handlers.SetCredentialActiveOutput, error)
	GrantCredits(ctx context.Context, input *handlers.GrantCreditsInput) (*handlers.GrantCreditsOutput, error)
	QueueStats(ctx context.Context, input *struct{}) (*handlers.QueueStatsOutput, error)
}

// Handlers aggregates all handler interfaces for route registration.
// For the main server, pass real handler implementations.
// For OpenAPI generation, pass stub implementations.
type Handlers struct {
	// Public endpoints
	HealthCheck func(ctx context.Context, input *struct{}) (*handlers.HealthCheckOutput, error)
	Catalog     CatalogHandlers

	// Kubernetes probes (hidden from docs)
	Livez  func(ctx context.Context, input *struct{}) (*handlers.ProbeOutput, error)
	Readyz func(ctx context.Context, input *struct{}) (*handlers.ProbeOutput, error)

	// Protected endpoint handlers
	Generate    GenerateHandlers
	Generations GenerationsHandlers
	Credits     CreditsHandlers
	Posts       PostsHandlers
	Admin       AdminHandlers
}
