// Package config handles application configuration.
package config

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string
	// CallbackBaseURL is the public prefix providers call back to. The job
	// callback URL is {CallbackBaseURL}/callback/{jobId}.
	CallbackBaseURL string

	// Database
	DatabaseURL    string
	TursoURL       string // Remote primary for embedded replica mode
	TursoAuthToken string

	// Authentication
	JWTSecret     string
	JWTIssuer     string // Optional; when set the iss claim must match
	EncryptionKey []byte // 32-byte key for AES-256-GCM encryption of provider secrets

	// Stripe (credit purchases)
	StripeSecretKey     string
	StripeWebhookSecret string

	// Provider callbacks (Standard Webhooks signing secret, optional)
	CallbackSigningSecret string

	// CORS
	CORSOrigins []string

	// Object Storage (Tigris/S3-compatible)
	StorageEnabled   bool
	StorageEndpoint  string // AWS_ENDPOINT_URL_S3 for Tigris
	StorageAccessKey string // AWS_ACCESS_KEY_ID
	StorageSecretKey string // AWS_SECRET_ACCESS_KEY
	StorageBucket    string // Bucket name (one per environment)
	StorageRegion    string // Region (auto for Tigris)
	ArchiveManifests bool   // Write a JSON manifest per terminal job to the bucket

	// Ephemeral state (idempotency keys). Empty means in-process memory.
	RedisURL string

	// Model catalog
	ModelCatalogPath       string        // Optional local YAML file
	ModelCatalogS3Key      string        // Optional object key in StorageBucket, hot reloaded
	CatalogRefreshInterval time.Duration // How often to check the S3 catalog for changes

	// Pricing and provider credentials
	Pricing             PricingConfig
	ProviderCredentials []ProviderCredential

	// Provider endpoints
	TaskAPIBaseURL    string
	PredictionBaseURL string

	// Social publisher
	SocialAPIURL string
	SocialAPIKey string

	// Dispatch queue
	DispatchTimeout time.Duration // Bound on a single provider submit (default 5m)
	QueueWorkers    int
	QueueCapacity   int
	ShutdownGrace   time.Duration // Max time to drain in-flight dispatches on shutdown

	// Scheduled sweeps
	PollInterval time.Duration // How often the sweeps run (default 1m)
	PollAfter    time.Duration // Processing jobs older than this are polled (default 2m)
	JobMaxAge    time.Duration // Non-terminal jobs older than this are failed (default 30m)

	// Request handling
	IdempotencyTTL             time.Duration
	RateLimitGeneratePerMinute int
	RateLimitIPPerMinute       int
	RequestTimeout             time.Duration
	BlocklistS3Key             string // Optional JSON list of IPs/CIDRs in StorageBucket

	// IdleTimeout stops the server after this long without requests or
	// queued work (scale-to-zero). Zero disables it.
	IdleTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL:    getEnv("DATABASE_URL", "file:genmedia.db?_journal=WAL&_timeout=5000"),
		TursoURL:       getEnv("TURSO_URL", ""),
		TursoAuthToken: getEnv("TURSO_AUTH_TOKEN", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", ""),

		StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CallbackSigningSecret: getEnv("CALLBACK_SIGNING_SECRET", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		// Object Storage (Tigris/S3-compatible) - uses Fly's standard env vars
		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		RedisURL: getEnv("REDIS_URL", ""),

		ModelCatalogPath:       getEnv("MODEL_CATALOG_PATH", ""),
		ModelCatalogS3Key:      getEnv("MODEL_CATALOG_S3_KEY", ""),
		CatalogRefreshInterval: getEnvDuration("CATALOG_REFRESH_INTERVAL", 5*time.Minute),

		TaskAPIBaseURL:    getEnv("TASKAPI_BASE_URL", "https://api.kie.ai"),
		PredictionBaseURL: getEnv("PREDICTION_BASE_URL", "https://api.replicate.com"),

		SocialAPIURL: getEnv("SOCIAL_API_URL", ""),
		SocialAPIKey: getEnv("SOCIAL_API_KEY", ""),

		DispatchTimeout: getEnvDuration("DISPATCH_TIMEOUT", 5*time.Minute),
		QueueWorkers:    getEnvInt("QUEUE_WORKERS", 4),
		QueueCapacity:   getEnvInt("QUEUE_CAPACITY", 256),
		ShutdownGrace:   getEnvDuration("SHUTDOWN_GRACE_PERIOD", 30*time.Second),

		PollInterval: getEnvDuration("POLL_INTERVAL", time.Minute),
		PollAfter:    getEnvDuration("POLL_AFTER", 2*time.Minute),
		JobMaxAge:    getEnvDuration("JOB_MAX_AGE", 30*time.Minute),

		IdempotencyTTL:             getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		RateLimitGeneratePerMinute: getEnvInt("RATE_LIMIT_GENERATE_PER_MINUTE", 20),
		RateLimitIPPerMinute:       getEnvInt("RATE_LIMIT_IP_PER_MINUTE", 100),
		RequestTimeout:             getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		BlocklistS3Key:             getEnv("BLOCKLIST_S3_KEY", ""),
		IdleTimeout:                getEnvDuration("IDLE_TIMEOUT", 0),
	}

	cfg.CallbackBaseURL = strings.TrimRight(getEnv("CALLBACK_BASE_URL", cfg.BaseURL+"/api/v1"), "/")

	// Enable storage if bucket is configured
	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""
	cfg.ArchiveManifests = cfg.StorageEnabled && getEnvBool("ARCHIVE_MANIFESTS", true)

	pricing, err := LoadPricing()
	if err != nil {
		return nil, err
	}
	cfg.Pricing = pricing

	creds, err := ParseProviderCredentials(getEnv("PROVIDER_CREDENTIALS", ""))
	if err != nil {
		return nil, err
	}
	cfg.ProviderCredentials = creds

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.QueueWorkers < 1 {
		return nil, fmt.Errorf("QUEUE_WORKERS must be at least 1")
	}
	if cfg.DispatchTimeout <= 0 {
		return nil, fmt.Errorf("DISPATCH_TIMEOUT must be positive")
	}

	// Set up encryption key (derive from JWT secret if not explicitly set)
	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		cfg.EncryptionKey = deriveEncryptionKey(cfg.JWTSecret)
	}

	return cfg, nil
}

// CallbackURL returns the provider callback URL for a job.
func (c *Config) CallbackURL(jobID string) string {
	return c.CallbackBaseURL + "/callback/" + jobID
}

// SocialEnabled returns true if a social publisher is configured.
func (c *Config) SocialEnabled() bool {
	return c.SocialAPIURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

// deriveEncryptionKey creates a 32-byte AES-256 key from a secret string using HKDF.
// HKDF is appropriate for high-entropy secrets like JWT secrets.
func deriveEncryptionKey(secret string) []byte {
	salt := []byte("genmedia-api-encryption-key-v1")
	info := []byte("provider-credential-aes-256-gcm")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
