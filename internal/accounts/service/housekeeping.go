package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/idempotency"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/store"
)

// HousekeepingService periodically prunes audit rows past retention and
// expired idempotency entries.
type HousekeepingService struct {
	Store     store.Store
	Ledger    idempotency.Pruner // Optional: nil for ledgers that expire on their own
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// NewHousekeepingService creates a housekeeping service. Non-positive
// interval defaults to 1 hour and retention to 90 days.
func NewHousekeepingService(
	st store.Store,
	ledger idempotency.Pruner,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	return &HousekeepingService{
		Store:     st,
		Ledger:    ledger,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		Now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	s.started = true
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "retention", s.Retention)
}

// Stop blocks until any in-progress cleanup finishes. It is a no-op if
// Start was never called.
func (s *HousekeepingService) Stop() {
	if !s.started {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Both audit tables are pruned in one transaction so
// a pass never leaves one table trimmed and the other not.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := s.Now()
	cutoff := now.Add(-s.Retention)
	s.Logger.Debug("starting housekeeping cleanup", "cutoff", cutoff)

	var deleted int64

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		invitations, err := tx.Invitations().DeleteInvitationsBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune invitations: %w", err)
		}
		events, err := tx.AccountEvents().DeleteAccountEventsBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune account events: %w", err)
		}
		deleted = invitations + events
		return nil
	})
	if err != nil {
		deleted = 0
		s.Logger.Error("failed to prune audit rows", "error", err)
	}

	if s.Ledger != nil {
		deleted += int64(s.Ledger.Prune(now))
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", deleted)
}
