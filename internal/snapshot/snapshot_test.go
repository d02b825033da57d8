package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/moneypool/payout-engine/internal/metrics"
	"github.com/moneypool/payout-engine/internal/model"
	"github.com/moneypool/payout-engine/internal/recorder"
	"github.com/moneypool/payout-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type countingRecorder struct {
	recorder.NoopRecorder
	mu    sync.Mutex
	snaps []recorder.PoolSnapshot
	fail  bool
}

func (c *countingRecorder) RecordPoolSnapshot(s *recorder.PoolSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("disk full")
	}
	c.snaps = append(c.snaps, *s)
	return nil
}

func (c *countingRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func seeded(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	ms := store.NewMemoryStore()
	acc := &model.Account{ID: "seed", Capital: decimal.Zero}
	ms.CreateAccount(ctx, acc)

	pool, _ := ms.GetOrCreatePool(ctx, model.GameFruit)
	pool.PoolBalance = d(1234)
	pool.HouseEarnings = d(56)
	pool.NextRound = 7
	if err := ms.CommitRound(ctx, &model.RoundCommit{
		Account: acc, AccountVersion: acc.Version,
		Pool: pool, PoolVersion: pool.Version,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ms.GetOrCreatePool(ctx, model.GamePosition)
	return ms
}

func TestRunOnce_PublishesEveryPool(t *testing.T) {
	rec := &countingRecorder{}
	s := NewScheduler(seeded(t), rec)

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 2 || rec.count() != 2 {
		t.Fatalf("expected 2 snapshots, got %d (recorded %d)", n, rec.count())
	}

	fruitSnap := rec.snaps[0]
	if fruitSnap.Game != "fruit" || !fruitSnap.PoolBalance.Equal(d(1234)) || fruitSnap.NextRound != 7 {
		t.Errorf("unexpected fruit snapshot: %+v", fruitSnap)
	}
	if got := testutil.ToFloat64(metrics.PoolBalance.WithLabelValues("fruit")); got != 1234 {
		t.Errorf("pool gauge: expected 1234, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.HouseEarnings.WithLabelValues("fruit")); got != 56 {
		t.Errorf("house gauge: expected 56, got %v", got)
	}
}

func TestRunOnce_RecorderFailureIsNotFatal(t *testing.T) {
	s := NewScheduler(seeded(t), &countingRecorder{fail: true})
	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("recorder failures should only be logged: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 written, got %d", n)
	}
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	rec := &countingRecorder{}
	s := NewScheduler(seeded(t), rec)
	if err := s.Register("* * * * * *"); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for rec.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("snapshot job never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(store.NewMemoryStore(), recorder.NewNoopRecorder())
	if err := s.Register("every minute please"); err == nil {
		t.Error("expected invalid spec error")
	}
}

func TestRunOnce_SQLiteRecorder(t *testing.T) {
	sr, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sr.Close()

	s := NewScheduler(seeded(t), sr)
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n, _ := sr.SnapshotCount(); n != 2 {
		t.Errorf("expected 2 stored snapshots, got %d", n)
	}
}
