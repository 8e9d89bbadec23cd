package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/genmedia-api/internal/catalog"
	"github.com/jmylchreest/genmedia-api/internal/config"
)

// CatalogSync reloads the model catalog from object storage when it changes.
type CatalogSync struct {
	loader  *config.S3Loader
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewCatalogSync creates a catalog sync over loader.
func NewCatalogSync(loader *config.S3Loader, cat *catalog.Catalog, logger *slog.Logger) *CatalogSync {
	return &CatalogSync{
		loader:  loader,
		catalog: cat,
		logger:  logger.With("component", "catalog_sync"),
	}
}

// Sync fetches the catalog document if due and applies it. Returns 1 when the
// catalog was replaced.
func (s *CatalogSync) Sync(ctx context.Context) (int, error) {
	if !s.loader.IsEnabled() || !s.loader.NeedsRefresh() {
		return 0, nil
	}

	res, err := s.loader.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if res == nil || res.NotChanged || len(res.Data) == 0 {
		return 0, nil
	}

	if err := s.catalog.Reload(res.Data); err != nil {
		return 0, fmt.Errorf("catalog from object storage rejected: %w", err)
	}
	s.logger.Info("model catalog reloaded", "models", s.catalog.Len(), "etag", res.Etag)
	return 1, nil
}
