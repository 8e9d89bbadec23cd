// Package shutdown stops an idle server for scale-to-zero deployments.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BusyFunc reports whether background work (queued dispatches, sweeps) is in
// progress. A busy process is never considered idle.
type BusyFunc func() bool

// IdleMonitorConfig holds configuration for the idle monitor.
type IdleMonitorConfig struct {
	Timeout time.Duration // Zero disables the monitor
	Logger  *slog.Logger
	// ExcludePaths are path prefixes that don't count as activity, such as probes.
	ExcludePaths []string
	Busy         BusyFunc
	// CheckInterval overrides the polling period; zero derives it from Timeout.
	CheckInterval time.Duration
}

// IdleMonitor closes Done once no request has been in flight and no
// background work has been reported for Timeout.
type IdleMonitor struct {
	cfg    IdleMonitorConfig
	active atomic.Int64

	mu           sync.Mutex
	lastActivity time.Time

	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewIdleMonitor creates an idle monitor.
func NewIdleMonitor(cfg IdleMonitorConfig) *IdleMonitor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = min(max(cfg.Timeout/6, 5*time.Second), 30*time.Second)
	}
	m := &IdleMonitor{
		cfg:  cfg,
		done: make(chan struct{}),
		stop: make(chan struct{}),
		now:  time.Now,
	}
	m.lastActivity = m.now()
	return m
}

// Enabled reports whether the monitor will ever fire.
func (m *IdleMonitor) Enabled() bool { return m.cfg.Timeout > 0 }

// Start begins monitoring. It is a no-op when disabled.
func (m *IdleMonitor) Start() {
	if !m.Enabled() {
		return
	}
	m.cfg.Logger.Info("idle shutdown enabled", "timeout", m.cfg.Timeout)
	go m.run()
}

// Stop ends monitoring without firing Done.
func (m *IdleMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Done is closed when the idle timeout is reached.
func (m *IdleMonitor) Done() <-chan struct{} { return m.done }

// Middleware records request activity.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if !m.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range m.cfg.ExcludePaths {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		m.active.Add(1)
		m.touch()
		defer func() {
			m.active.Add(-1)
			m.touch()
		}()
		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) touch() {
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

// idle reports whether the timeout has elapsed, refreshing the activity
// clock while requests or background work are in progress.
func (m *IdleMonitor) idle() (bool, time.Duration) {
	if m.active.Load() > 0 || (m.cfg.Busy != nil && m.cfg.Busy()) {
		m.touch()
		return false, 0
	}
	m.mu.Lock()
	idleFor := m.now().Sub(m.lastActivity)
	m.mu.Unlock()
	return idleFor >= m.cfg.Timeout, idleFor
}

func (m *IdleMonitor) run() {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if ok, idleFor := m.idle(); ok {
				m.cfg.Logger.Info("idle timeout reached, shutting down", "idle_for", idleFor)
				close(m.done)
				return
			}
		}
	}
}
