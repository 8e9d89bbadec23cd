package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/catalog"
	"github.com/jmylchreest/genmedia-api/internal/config"
	"github.com/jmylchreest/genmedia-api/internal/provider"
)

func TestNewAdapters_UsesDispatchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"taskId":"late"}}`))
	}))
	t.Cleanup(srv.Close)

	adapters := NewAdapters(&config.Config{
		TaskAPIBaseURL:  srv.URL,
		DispatchTimeout: 100 * time.Millisecond,
	})

	start := time.Now()
	_, err := adapters[catalog.AdapterTaskAPI].Submit(context.Background(), provider.SubmitRequest{Path: "/x", APIKey: "k"})
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Category != provider.CategoryTimeout {
		t.Fatalf("Submit() error = %v, want a timeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Submit() took %v, want the configured 100ms bound", elapsed)
	}
}
