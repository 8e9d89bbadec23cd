package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmylchreest/genmedia-api/internal/version"
)

func TestAPIVersion(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusAccepted, http.StatusPaymentRequired, http.StatusInternalServerError} {
		handler := APIVersion()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

		if got := rec.Header().Get("X-API-Version"); got != version.Get().Short() {
			t.Errorf("status %d: X-API-Version = %q, want %q", status, got, version.Get().Short())
		}
	}
}
