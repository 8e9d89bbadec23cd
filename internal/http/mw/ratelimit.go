package mw

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/httprate"

	"github.com/jmylchreest/genmedia-api/internal/ttlstore"
)

const counterTimeout = 2 * time.Second

// StoreCounter is an httprate.LimitCounter kept in a ttlstore.Store, so all
// replicas sharing a Redis store share their limits. Each limiter needs its
// own counter.
type StoreCounter struct {
	store  ttlstore.Store
	prefix string
	window time.Duration
}

var _ httprate.LimitCounter = (*StoreCounter)(nil)

// NewStoreCounter creates a counter whose keys start with prefix.
func NewStoreCounter(store ttlstore.Store, prefix string) *StoreCounter {
	return &StoreCounter{store: store, prefix: prefix, window: time.Minute}
}

// Config implements httprate.LimitCounter.
func (c *StoreCounter) Config(_ int, windowLength time.Duration) {
	c.window = windowLength
}

// Increment implements httprate.LimitCounter.
func (c *StoreCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

// IncrementBy implements httprate.LimitCounter. Counters outlive their window
// by one window so the sliding estimate can read the previous one.
func (c *StoreCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), counterTimeout)
	defer cancel()
	_, err := c.store.IncrBy(ctx, c.key(key, currentWindow), int64(amount), 2*c.window)
	return err
}

// Get implements httprate.LimitCounter.
func (c *StoreCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), counterTimeout)
	defer cancel()

	curr, err := c.count(ctx, c.key(key, currentWindow))
	if err != nil {
		return 0, 0, err
	}
	prev, err := c.count(ctx, c.key(key, previousWindow))
	if err != nil {
		return 0, 0, err
	}
	return curr, prev, nil
}

func (c *StoreCounter) key(key string, window time.Time) string {
	return c.prefix + strconv.FormatUint(httprate.LimitCounterKey(key, window), 10)
}

func (c *StoreCounter) count(ctx context.Context, key string) (int, error) {
	v, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	return strconv.Atoi(v)
}

func limitOptions(counter httprate.LimitCounter, opts ...httprate.Option) []httprate.Option {
	if counter != nil {
		opts = append(opts, httprate.WithLimitCounter(counter))
	}
	return opts
}

// userKey keys a request by the authenticated user, falling back to IP.
func userKey(r *http.Request) (string, error) {
	claims := GetUserClaims(r.Context())
	if claims == nil || claims.UserID == "" {
		return httprate.KeyByIP(r)
	}
	return "user:" + claims.UserID, nil
}

// RateLimitByIP returns a middleware that rate limits by IP address.
// A nil counter keeps the counts in process.
func RateLimitByIP(requestsPerMinute int, counter httprate.LimitCounter) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requestsPerMinute, time.Minute, limitOptions(counter, httprate.WithKeyByIP())...)
}

// HumaRateLimit applies the per-user limit to operations registered with
// WithRateLimit. It must run after HumaAuth so the caller is known. When the
// counter store fails the request is let through.
func HumaRateLimit(api huma.API, requestsPerMinute int, counter httprate.LimitCounter) func(ctx huma.Context, next func(huma.Context)) {
	if requestsPerMinute <= 0 {
		return func(ctx huma.Context, next func(huma.Context)) { next(ctx) }
	}
	limiter := httprate.NewRateLimiter(requestsPerMinute, time.Minute, limitOptions(counter,
		httprate.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			slog.Default().Warn("rate limit counter unavailable", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
		}),
	)...)

	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !metaFlag(op, MetaKeyRateLimited) {
			next(ctx)
			return
		}

		// httprate only reads the request context and address; headers it
		// sets are copied onto the huma response.
		r, err := http.NewRequestWithContext(ctx.Context(), ctx.Method(), "/", nil)
		if err != nil {
			huma.WriteErr(api, ctx, http.StatusInternalServerError, "failed to resolve rate limit key")
			return
		}
		r.RemoteAddr = ctx.RemoteAddr()
		key, err := userKey(r)
		if err != nil {
			huma.WriteErr(api, ctx, http.StatusInternalServerError, "failed to resolve rate limit key")
			return
		}

		rec := &headerRecorder{header: http.Header{}}
		limited := limiter.OnLimit(rec, r, key)
		for name, values := range rec.header {
			for _, v := range values {
				ctx.SetHeader(name, v)
			}
		}
		switch {
		case rec.status == http.StatusInternalServerError:
			next(ctx)
		case limited:
			huma.WriteErr(api, ctx, http.StatusTooManyRequests, "rate limit exceeded")
		default:
			next(ctx)
		}
	}
}

// headerRecorder collects what httprate writes outside a real response.
type headerRecorder struct {
	header http.Header
	status int
}

func (h *headerRecorder) Header() http.Header         { return h.header }
func (h *headerRecorder) Write(b []byte) (int, error) { return len(b), nil }
func (h *headerRecorder) WriteHeader(status int)      { h.status = status }
