package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/forms/internal/store"
)

// Destination is the interface for a sync target (S3, git, file).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
	// Name identifies the destination in logs.
	Name() string
}

// Scheduler exports the store on an interval and on demand, and hands each
// changed snapshot to every destination.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu         sync.Mutex
	lastDigest [sha256.Size]byte // records of the last fully delivered export
	delivered  bool
}

func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		trigger:      make(chan struct{}, 1),
	}
}

// Start syncs once, then again on every tick or Trigger until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for an in-flight sync to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Trigger requests a sync ahead of the next tick. Requests made while one is
// already pending are merged.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	_ = s.SyncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.trigger:
			s.logger.Info("sync triggered")
		}
		_ = s.SyncOnce(ctx)
	}
}

// SyncOnce exports the store and writes the snapshot to every destination in
// parallel. Every destination is tried; the joined failures are returned. An
// export whose records match the last snapshot all destinations accepted is
// not written again.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		s.logger.Error("sync export failed", "err", err)
		return fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()

	digest := recordsDigest(data)
	if s.delivered && digest == s.lastDigest {
		s.logger.Debug("sync skipped, no changes")
		return nil
	}

	errs := make([]error, len(s.destinations))
	var wg sync.WaitGroup
	for i, dest := range s.destinations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			if err := dest.Write(ctx, data); err != nil {
				s.logger.Error("sync destination write failed", "destination", dest.Name(), "err", err)
				errs[i] = fmt.Errorf("%s: %w", dest.Name(), err)
				return
			}
			s.logger.Debug("sync destination written", "destination", dest.Name(), "duration", time.Since(start))
		}()
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err == nil {
		s.lastDigest, s.delivered = digest, true
	}
	s.logger.Info("sync completed", "destinations", len(s.destinations), "bytes", len(data), "failed", err != nil)
	return err
}

// recordsDigest hashes everything after the header line, which carries the
// export timestamp.
func recordsDigest(data []byte) [sha256.Size]byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}
	return sha256.Sum256(data)
}
