package shutdown

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(busy BusyFunc) (*IdleMonitor, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewIdleMonitor(IdleMonitorConfig{
		Timeout:      time.Minute,
		Logger:       testLogger(),
		ExcludePaths: []string{"/healthz"},
		Busy:         busy,
	})
	m.now = func() time.Time { return now }
	m.lastActivity = now
	return m, &now
}

func TestIdleMonitor_Timeout(t *testing.T) {
	m, now := newTestMonitor(nil)

	*now = now.Add(30 * time.Second)
	if ok, _ := m.idle(); ok {
		t.Fatal("idle before the timeout elapsed")
	}
	*now = now.Add(31 * time.Second)
	if ok, _ := m.idle(); !ok {
		t.Fatal("not idle after the timeout elapsed")
	}
}

func TestIdleMonitor_BusyResetsClock(t *testing.T) {
	var busy atomic.Bool
	busy.Store(true)
	m, now := newTestMonitor(busy.Load)

	*now = now.Add(2 * time.Minute)
	if ok, _ := m.idle(); ok {
		t.Fatal("idle while background work is running")
	}

	busy.Store(false)
	*now = now.Add(30 * time.Second)
	if ok, _ := m.idle(); ok {
		t.Fatal("busy period should restart the idle clock")
	}
	*now = now.Add(time.Minute)
	if ok, _ := m.idle(); !ok {
		t.Fatal("not idle a full timeout after work finished")
	}
}

func TestIdleMonitor_Middleware(t *testing.T) {
	m, now := newTestMonitor(nil)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*now = now.Add(2 * time.Minute)
		if ok, _ := m.idle(); ok && r.URL.Path != "/healthz" {
			t.Error("idle during an in-flight request")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/credits", nil))
	if ok, _ := m.idle(); ok {
		t.Error("a finished request should count as activity")
	}

	// Probes don't count as activity.
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if ok, _ := m.idle(); !ok {
		t.Error("probe requests should not keep the server awake")
	}
}

func TestIdleMonitor_Disabled(t *testing.T) {
	m := NewIdleMonitor(IdleMonitorConfig{Logger: testLogger()})
	if m.Enabled() {
		t.Fatal("zero timeout should disable the monitor")
	}
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	m.Start()
	m.Stop()
	m.Stop()
	select {
	case <-m.Done():
		t.Fatal("disabled monitor fired")
	default:
	}
	_ = m.Middleware(next)
}
