// Package service contains the business logic layer.
// The UserID in services is the subject of the caller's JWT.
package service

import (
	"fmt"
	"log/slog"

	"github.com/jmylchreest/genmedia-api/internal/catalog"
	"github.com/jmylchreest/genmedia-api/internal/config"
	"github.com/jmylchreest/genmedia-api/internal/crypto"
	"github.com/jmylchreest/genmedia-api/internal/provider"
	"github.com/jmylchreest/genmedia-api/internal/repository"
	"github.com/jmylchreest/genmedia-api/internal/ttlstore"
)

// Deps are the runtime collaborators built outside the service layer.
type Deps struct {
	Catalog   *catalog.Catalog
	Adapters  Adapters
	Queue     TaskQueue
	Store     ttlstore.Store
	Publisher provider.Publisher // nil disables auto-publish
}

// Services holds all service instances.
type Services struct {
	Ledger      *LedgerService
	Rotator     *Rotator
	Notifier    *Notifier
	Reconciler  *Reconciler
	Dispatcher  *Dispatcher
	Job         *JobService
	Post        *PostService
	Billing     *BillingService
	Storage     *StorageService
	Idempotency *IdempotencyGuard
	Catalog     *catalog.Catalog
	CatalogSync *CatalogSync // nil unless the catalog lives in object storage
}

// NewAdapters builds the provider adapters from configuration. The HTTP
// timeout follows DISPATCH_TIMEOUT so the dispatcher's deadline governs.
func NewAdapters(cfg *config.Config) Adapters {
	return Adapters{
		catalog.AdapterTaskAPI: provider.NewTaskAPI(provider.ClientConfig{
			BaseURL: cfg.TaskAPIBaseURL,
			Timeout: cfg.DispatchTimeout,
		}),
		catalog.AdapterPrediction: provider.NewPrediction(provider.PredictionConfig{
			ClientConfig: provider.ClientConfig{
				BaseURL: cfg.PredictionBaseURL,
				Timeout: cfg.DispatchTimeout,
			},
		}),
	}
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, deps Deps, logger *slog.Logger) (*Services, error) {
	var encryptor *crypto.Encryptor
	if len(cfg.EncryptionKey) > 0 {
		var err error
		encryptor, err = crypto.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
	} else {
		logger.Warn("no encryption key configured - provider secrets stored unencrypted")
	}

	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	if deps.Store == nil {
		deps.Store = ttlstore.NewMemoryStore()
	}

	ledgerSvc := NewLedgerService(repos.Ledger, cfg.Pricing.SignupCredits, logger)
	rotator := NewRotator(repos.Credential, encryptor, logger)
	notifier := NewNotifier(repos.Post, repos.Job, deps.Publisher, logger)

	reconciler := NewReconciler(repos.Job, notifier, storageSvc, deps.Catalog, rotator, deps.Adapters, ReconcilerConfig{
		PollAfter: cfg.PollAfter,
		MaxAge:    cfg.JobMaxAge,
	}, logger)

	dispatcher := NewDispatcher(ledgerSvc, repos.Job, repos.Post, deps.Catalog, rotator, deps.Adapters, deps.Queue, reconciler, DispatcherConfig{
		CallbackURL:   cfg.CallbackURL,
		SubmitTimeout: cfg.DispatchTimeout,
	}, logger)

	svcs := &Services{
		Ledger:      ledgerSvc,
		Rotator:     rotator,
		Notifier:    notifier,
		Reconciler:  reconciler,
		Dispatcher:  dispatcher,
		Job:         NewJobService(repos.Job, reconciler, logger),
		Post:        NewPostService(repos.Post, repos.Job, dispatcher, logger),
		Billing:     NewBillingService(ledgerSvc, logger),
		Storage:     storageSvc,
		Idempotency: NewIdempotencyGuard(deps.Store, cfg.IdempotencyTTL),
		Catalog:     deps.Catalog,
	}

	if cfg.ModelCatalogS3Key != "" {
		if !storageSvc.IsEnabled() {
			logger.Warn("MODEL_CATALOG_S3_KEY set but object storage is not configured")
		} else {
			loader := config.NewS3Loader(config.S3LoaderConfig{
				Client:   storageSvc.Client(),
				Bucket:   storageSvc.Bucket(),
				Key:      cfg.ModelCatalogS3Key,
				CacheTTL: cfg.CatalogRefreshInterval,
				Logger:   logger,
			})
			svcs.CatalogSync = NewCatalogSync(loader, deps.Catalog, logger)
		}
	}

	return svcs, nil
}
