package mw

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// TimeoutConfig bounds request handling time.
type TimeoutConfig struct {
	// Default is the deadline placed on each request context.
	Default time.Duration
	// SkipPrefixes are path prefixes left without a deadline (provider
	// callbacks and payment webhooks must always be acknowledged).
	SkipPrefixes []string
}

// Timeout attaches a deadline to the request context. Handlers observe it
// through ctx; a request that overruns gets 504 if nothing was written yet.
func Timeout(cfg TimeoutConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Default <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			for _, prefix := range cfg.SkipPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			ctx, cancel := context.WithTimeout(r.Context(), cfg.Default)
			defer cancel()

			tw := &timeoutWriter{ResponseWriter: w}
			next.ServeHTTP(tw, r.WithContext(ctx))

			if !tw.wrote && ctx.Err() == context.DeadlineExceeded {
				w.WriteHeader(http.StatusGatewayTimeout)
			}
		})
	}
}

type timeoutWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *timeoutWriter) WriteHeader(status int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *timeoutWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}
