// Package snapshot periodically publishes pool balances to the metrics
// gauges and the audit recorder. It only reads the ledger.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/moneypool/payout-engine/internal/metrics"
	"github.com/moneypool/payout-engine/internal/recorder"
	"github.com/moneypool/payout-engine/internal/store"
)

// Scheduler runs the snapshot job on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	store    store.Store
	recorder recorder.Recorder
	timeout  time.Duration
}

// NewScheduler creates a scheduler. Specs use the six-field form with
// seconds, e.g. "0 * * * * *" for every minute.
func NewScheduler(st store.Store, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		store:    st,
		recorder: rec,
		timeout:  10 * time.Second,
	}
}

// Register adds the snapshot job.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("snapshot scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("snapshot scheduler stopped")
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		slog.Error("pool snapshot failed", "err", err)
	}
}

// RunOnce snapshots every existing pool and returns how many were written.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	pools, err := s.store.ListPools(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pools: %w", err)
	}

	now := time.Now().UTC()
	written := 0
	for _, p := range pools {
		g := string(p.Game)
		metrics.PoolBalance.WithLabelValues(g).Set(p.PoolBalance.InexactFloat64())
		metrics.HouseEarnings.WithLabelValues(g).Set(p.HouseEarnings.InexactFloat64())

		if err := s.recorder.RecordPoolSnapshot(&recorder.PoolSnapshot{
			Game:          g,
			PoolBalance:   p.PoolBalance,
			HouseEarnings: p.HouseEarnings,
			NextPosition:  p.NextPosition,
			NextRound:     p.NextRound,
			Timestamp:     now,
		}); err != nil {
			slog.Warn("record pool snapshot failed", "game", g, "err", err)
			continue
		}
		written++
	}

	slog.Debug("pool snapshot taken", "pools", len(pools), "written", written)
	return written, nil
}
