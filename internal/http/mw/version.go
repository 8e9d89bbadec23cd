package mw

import (
	"net/http"

	"github.com/jmylchreest/genmedia-api/internal/version"
)

// APIVersion returns middleware that stamps every response with the build version.
func APIVersion() func(http.Handler) http.Handler {
	v := version.Get()
	short := v.Short()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-API-Version", short)
			if v.Commit != "" && v.Commit != "unknown" {
				w.Header().Set("X-API-Commit", v.Commit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
