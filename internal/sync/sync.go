// Package sync periodically exports the call sheet as an .xlsx snapshot to
// one or more destinations (S3, a local directory), so there is an offline
// copy of who called whom even when the live document is unavailable.
package sync

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Destination is the interface for a sync target.
type Destination interface {
	// Write stores one complete xlsx snapshot.
	Write(ctx context.Context, data []byte) error
	// Name identifies the destination in logs.
	Name() string
}

// Scheduler exports the sheet on an interval and skips the upload when no
// cell changed since the last fully successful sync.
type Scheduler struct {
	source       Snapshotter
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu         sync.Mutex
	lastDigest string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(source Snapshotter, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:       source,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start syncs once immediately, then on every tick until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.SyncOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SyncOnce(ctx)
			}
		}
	}()
}

// Stop cancels the scheduler and waits for an in-flight sync.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// SyncOnce exports one snapshot and writes it to every destination,
// returning how many succeeded. An unchanged sheet writes nothing and
// returns 0. A partial failure leaves the digest unset so the next run
// retries every destination.
func (s *Scheduler) SyncOnce(ctx context.Context) int {
	tbl, st, err := fetch(ctx, s.source)
	if err != nil {
		s.logger.Error("sync export failed", "err", err)
		return 0
	}

	sum := digest(tbl)
	s.mu.Lock()
	unchanged := sum == s.lastDigest
	s.mu.Unlock()
	if unchanged {
		s.logger.Debug("sync skipped, sheet unchanged")
		return 0
	}

	var buf bytes.Buffer
	if err := writeXLSX(tbl, st, &buf); err != nil {
		s.logger.Error("sync export failed", "err", err)
		return 0
	}
	data := buf.Bytes()

	ok := 0
	for _, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("sync destination write failed", "destination", dest.Name(), "err", err)
			continue
		}
		ok++
	}
	if ok == len(s.destinations) {
		s.mu.Lock()
		s.lastDigest = sum
		s.mu.Unlock()
	}

	s.logger.Info("sync completed", "destinations", ok, "rows", tbl.Len(), "bytes", len(data))
	return ok
}
