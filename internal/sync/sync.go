// Package sync periodically exports the event archive to external
// destinations as JSONL.
package sync

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/store"
)

// Destination is the interface for an export target (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs and metrics.
	Name() string
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// ResultFunc observes the outcome of each destination write.
type ResultFunc func(destination string, err error)

// Scheduler runs periodic exports to one or more destinations.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger
	onResult     ResultFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		onResult:     func(string, error) {},
	}
}

// OnResult registers fn to observe every destination write. Call before Start.
func (s *Scheduler) OnResult(fn ResultFunc) {
	if fn != nil {
		s.onResult = fn
	}
}

// Start begins periodic export. It runs an initial export immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.ExportOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExportOnce(ctx)
		}
	}
}

// ExportOnce exports the archive to every destination now. Failures are
// logged per destination and do not stop the others.
func (s *Scheduler) ExportOnce(ctx context.Context) {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		s.logger.Error("export failed", "err", err)
		for _, dest := range s.destinations {
			s.onResult(dest.Name(), err)
		}
		return
	}
	data := buf.Bytes()

	for _, dest := range s.destinations {
		err := dest.Write(ctx, data)
		if err != nil {
			s.logger.Error("export destination write failed", "destination", dest.Name(), "err", err)
		}
		s.onResult(dest.Name(), err)
	}

	s.logger.Info("export completed", "destinations", len(s.destinations), "bytes", len(data))
}
