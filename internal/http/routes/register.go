package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/genmedia-api/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
// Pass real handler implementations for the main server, or stub implementations
// for OpenAPI generation.
//
// Provider callbacks and the Stripe webhook need the raw request body and are
// mounted directly on the router by the server.
func Register(api huma.API, h *Handlers) {
	// =========================================================================
	// Public Routes (no auth required)
	// =========================================================================

	mw.PublicGet(api, "/api/v1/health", h.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	mw.PublicGet(api, "/api/v1/models", h.Catalog.ListModels,
		mw.WithTags("Models"),
		mw.WithSummary("List models"),
		mw.WithDescription("Returns every model that can be requested, with its credit cost and input rules."),
		mw.WithOperationID("listModels"))

	// Kubernetes probes (hidden from docs - internal use only)
	mw.HiddenGet(api, "/healthz", h.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz)

	// =========================================================================
	// Protected Routes (require bearer auth)
	// =========================================================================

	// --- Generation ---
	mw.ProtectedPost(api, "/api/v1/generate/{kind}", h.Generate.Generate,
		mw.WithTags("Generation"),
		mw.WithSummary("Generate media"),
		mw.WithDescription("Reserves the model's credit cost and queues the job. Poll the returned generation or wait for it to complete."),
		mw.WithOperationID("generate"),
		mw.WithDefaultStatus(http.StatusAccepted),
		mw.WithErrors(http.StatusBadRequest, http.StatusPaymentRequired, http.StatusConflict, http.StatusTooManyRequests, http.StatusServiceUnavailable),
		mw.WithRateLimit())

	// --- Generations ---
	mw.ProtectedGet(api, "/api/v1/generations", h.Generations.ListGenerations,
		mw.WithTags("Generations"),
		mw.WithSummary("List generations"),
		mw.WithOperationID("listGenerations"))
	mw.ProtectedGet(api, "/api/v1/generations/{id}", h.Generations.GetGeneration,
		mw.WithTags("Generations"),
		mw.WithSummary("Get generation"),
		mw.WithOperationID("getGeneration"),
		mw.WithErrors(http.StatusNotFound))
	mw.ProtectedPost(api, "/api/v1/generations/{id}/refresh", h.Generations.RefreshGeneration,
		mw.WithTags("Generations"),
		mw.WithSummary("Refresh generation"),
		mw.WithDescription("Asks the provider for the job's current status and records a final answer."),
		mw.WithOperationID("refreshGeneration"),
		mw.WithErrors(http.StatusNotFound),
		mw.WithRateLimit())

	// --- Credits ---
	mw.ProtectedGet(api, "/api/v1/credits", h.Credits.GetCredits,
		mw.WithTags("Credits"),
		mw.WithSummary("Get credit balance"),
		mw.WithOperationID("getCredits"))

	// --- Posts ---
	mw.ProtectedPost(api, "/api/v1/posts", h.Posts.CreatePost,
		mw.WithTags("Posts"),
		mw.WithSummary("Create scheduled post"),
		mw.WithDescription("Creates a post and queues generation of its media. The total cost of all media is reserved up front."),
		mw.WithOperationID("createPost"),
		mw.WithDefaultStatus(http.StatusCreated),
		mw.WithErrors(http.StatusBadRequest, http.StatusPaymentRequired, http.StatusTooManyRequests),
		mw.WithRateLimit())
	mw.ProtectedGet(api, "/api/v1/posts/{id}", h.Posts.GetPost,
		mw.WithTags("Posts"),
		mw.WithSummary("Get scheduled post"),
		mw.WithOperationID("getPost"),
		mw.WithErrors(http.StatusNotFound))

	// --- Admin Routes (require admin role, hidden from OpenAPI) ---
	mw.ProtectedGet(api, "/api/v1/admin/credentials", h.Admin.ListCredentials,
		mw.WithTags("Admin"),
		mw.WithSummary("List provider credentials"),
		mw.WithOperationID("adminListCredentials"),
		mw.WithAdmin(),
		mw.WithHidden())
	mw.ProtectedPost(api, "/api/v1/admin/credentials", h.Admin.RegisterCredential,
		mw.WithTags("Admin"),
		mw.WithSummary("Register provider credential"),
		mw.WithOperationID("adminRegisterCredential"),
		mw.WithAdmin(),
		mw.WithHidden())
	mw.ProtectedPut(api, "/api/v1/admin/credentials/{id}", h.Admin.SetCredentialActive,
		mw.WithTags("Admin"),
		mw.WithSummary("Enable or disable provider credential"),
		mw.WithOperationID("adminSetCredentialActive"),
		mw.WithAdmin(),
		mw.WithHidden())
	mw.ProtectedPost(api, "/api/v1/admin/credits/grant", h.Admin.GrantCredits,
		mw.WithTags("Admin"),
		mw.WithSummary("Grant credits"),
		mw.WithOperationID("adminGrantCredits"),
		mw.WithAdmin(),
		mw.WithHidden())
	mw.ProtectedGet(api, "/api/v1/admin/queue", h.Admin.QueueStats,
		mw.WithTags("Admin"),
		mw.WithSummary("Dispatch queue stats"),
		mw.WithOperationID("adminQueueStats"),
		mw.WithAdmin(),
		mw.WithHidden())
}
