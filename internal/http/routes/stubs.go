package routes

import (
	"context"

	"github.com/jmylchreest/genmedia-api/internal/http/handlers"
)

// StubHandlers returns a Handlers instance with stub implementations.
// All handlers return nil responses - these are only used for OpenAPI generation
// where Huma extracts type information from function signatures.
func StubHandlers() *Handlers {
	return &Handlers{
		HealthCheck: stubHealthCheck,
		Catalog:     stubCatalogHandlers{},
		Livez:       stubProbe,
		Readyz:      stubProbe,

		Generate:    stubGenerateHandlers{},
		Generations: stubGenerationsHandlers{},
		Credits:     stubCreditsHandlers{},
		Posts:       stubPostsHandlers{},
		Admin:       stubAdminHandlers{},
	}
}

func stubHealthCheck(_ context.Context, _ *struct{}) (*handlers.HealthCheckOutput, error) {
	return nil, nil
}

func stubProbe(_ context.Context, _ *struct{}) (*handlers.ProbeOutput, error) {
	return nil, nil
}

type stubCatalogHandlers struct{}

func (stubCatalogHandlers) ListModels(_ context.Context, _ *handlers.ListModelsInput) (*handlers.ListModelsOutput, error) {
	return nil, nil
}

type stubGenerateHandlers struct{}

func (stubGenerateHandlers) Generate(_ context.Context, _ *handlers.GenerateInput) (*handlers.GenerateOutput, error) {
	return nil, nil
}

type stubGenerationsHandlers struct{}

func (stubGenerationsHandlers) GetGeneration(_ context.Context, _ *handlers.GetGenerationInput) (*handlers.GetGenerationOutput, error) {
	return nil, nil
}

func (stubGenerationsHandlers) ListGenerations(_ context.Context, _ *handlers.ListGenerationsInput) (*handlers.ListGenerationsOutput, error) {
	return nil, nil
}

func (stubGenerationsHandlers) RefreshGeneration(_ context.Context, _ *handlers.GetGenerationInput) (*handlers.GetGenerationOutput, error) {
	return nil, nil
}

type stubCreditsHandlers struct{}

func (stubCreditsHandlers) GetCredits(_ context.Context, _ *handlers.GetCreditsInput) (*handlers.GetCreditsOutput, error) {
	return nil, nil
}

type stubPostsHandlers struct{}

func (stubPostsHandlers) CreatePost(_ context.Context, _ *handlers.CreatePostInput) (*handlers.CreatePostOutput, error) {
	return nil, nil
}

func (stubPostsHandlers) GetPost(_ context.Context, _ *handlers.GetPostInput) (*handlers.GetPostOutput, error) {
	return nil, nil
}

type stubAdminHandlers struct{}

func (stubAdminHandlers) ListCredentials(_ context.Context, _ *struct{}) (*handlers.ListCredentialsOutput, error) {
	return nil, nil
}

func (stubAdminHandlers) RegisterCredential(_ context.Context, _ *handlers.RegisterCredentialInput) (*handlers.RegisterCredentialOutput, error) {
	return nil, nil
}

func (stubAdminHandlers) SetCredentialActive(_ context.Context, _ *handlers.SetCredentialActiveInput) (*handlers.SetCredentialActiveOutput, error) {
	return nil, nil
}

func (stubAdminHandlers) GrantCredits(_ context.Context, _ *handlers.GrantCreditsInput) (*handlers.GrantCreditsOutput, error) {
	return nil, nil
}

func (stubAdminHandlers) QueueStats(_ context.Context, _ *struct{}) (*handlers.QueueStatsOutput, error) {
	return nil, nil
}
