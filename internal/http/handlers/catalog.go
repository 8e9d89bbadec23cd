package handlers

import (
	"context"

	"github.com/jmylchreest/genmedia-api/internal/catalog"
)

// ModelLister exposes the model catalog.
type ModelLister interface {
	List() []catalog.Route
	Cost(model string) int
}

// CatalogHandler lists the models users can request.
type CatalogHandler struct {
	catalog ModelLister
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(cat ModelLister) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// ModelResponse is one requestable model.
type ModelResponse struct {
	Model       string        `json:"model"`
	Kind        string        `json:"kind"`
	Cost        int           `json:"cost"`
	Description string        `json:"description,omitempty"`
	Rules       catalog.Rules `json:"rules"`
}

// ListModelsInput optionally filters by kind.
type ListModelsInput struct {
	Kind string `query:"kind" enum:"video,image,music,audio,speech,sound_effect" required:"false" doc:"Only list models of this kind"`
}

// ListModelsOutput is the model table.
type ListModelsOutput struct {
	Body struct {
		Models []ModelResponse `json:"models"`
	}
}

// ListModels returns each routed model with its effective credit cost.
func (h *CatalogHandler) ListModels(ctx context.Context, input *ListModelsInput) (*ListModelsOutput, error) {
	out := &ListModelsOutput{}
	out.Body.Models = []ModelResponse{}
	for _, route := range h.catalog.List() {
		if input.Kind != "" && string(route.Kind) != input.Kind {
			continue
		}
		out.Body.Models = append(out.Body.Models, ModelResponse{
			Model:       route.Model,
			Kind:        string(route.Kind),
			Cost:        h.catalog.Cost(route.Model),
			Description: route.Description,
			Rules:       route.Rules,
		})
	}
	return out, nil
}
