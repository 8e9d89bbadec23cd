package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SweepFunc is a periodic maintenance pass. It returns how many items it touched.
type SweepFunc func(ctx context.Context) (int, error)

type sweep struct {
	name     string
	interval time.Duration
	fn       SweepFunc
}

// Scheduler runs registered sweeps on fixed intervals, each on its own goroutine.
// A sweep never overlaps with itself.
type Scheduler struct {
	sweeps []sweep
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger *slog.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		stop:   make(chan struct{}),
		logger: logger.With("component", "scheduler"),
	}
}

// Every registers fn. Registrations after Start are ignored; a non-positive
// interval disables the sweep.
func (s *Scheduler) Every(name string, interval time.Duration, fn SweepFunc) {
	if interval <= 0 {
		s.logger.Info("sweep disabled", "sweep", name)
		return
	}
	s.sweeps = append(s.sweeps, sweep{name: name, interval: interval, fn: fn})
}

// Start begins running sweeps.
func (s *Scheduler) Start(ctx context.Context) {
	for _, sw := range s.sweeps {
		s.logger.Info("scheduling sweep", "sweep", sw.name, "interval", sw.interval)
		s.wg.Add(1)
		go s.loop(ctx, sw)
	}
}

// Stop waits for in-progress sweeps to return.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// RunOnce runs the named sweep synchronously. Returns false if no such sweep exists.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (int, bool, error) {
	for _, sw := range s.sweeps {
		if sw.name == name {
			n, err := sw.fn(ctx)
			return n, true, err
		}
	}
	return 0, false, nil
}

func (s *Scheduler) loop(ctx context.Context, sw sweep) {
	defer s.wg.Done()

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx, sw)
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context, sw sweep) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep panicked", "sweep", sw.name, "panic", r)
		}
	}()

	start := time.Now()
	n, err := sw.fn(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "sweep", sw.name, "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("sweep completed", "sweep", sw.name, "count", n, "duration_ms", time.Since(start).Milliseconds())
	}
}
