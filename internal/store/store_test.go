package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/moneypool/payout-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newAccount(id string) *model.Account {
	now := time.Now().UTC()
	return &model.Account{
		ID:             id,
		Username:       "alice",
		Email:          "alice@example.com",
		Capital:        d(10000),
		LastPaidAmount: decimal.Zero,
		EarnedFromPool: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// exerciseStore runs the behaviour every Store implementation shares.
func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()

	if err := st.CreateAccount(ctx, newAccount(id)); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := st.CreateAccount(ctx, newAccount(id)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if _, err := st.GetAccount(ctx, "missing-"+id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	acc, err := st.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !acc.Capital.Equal(d(10000)) {
		t.Errorf("expected capital 10000, got %s", acc.Capital)
	}

	pool, err := st.GetOrCreatePool(ctx, model.GameLucky3)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.NextPosition != 1 || pool.NextRound != 1 || !pool.PoolBalance.IsZero() {
		t.Errorf("unexpected initial pool: %+v", pool)
	}

	accVer, poolVer := acc.Version, pool.Version
	acc.Capital = d(9500)
	acc.EarnedFromPool = d(400)
	pool.PoolBalance = d(450)
	pool.HouseEarnings = d(50)
	pool.NextRound = 2
	entry := &model.PayoutEntry{
		ID: uuid.NewString(), Game: model.GameLucky3, AccountID: id,
		Amount: d(400), Timestamp: time.Now().UTC(),
	}

	if err := st.CommitRound(ctx, &model.RoundCommit{
		Account: acc, AccountVersion: accVer,
		Pool: pool, PoolVersion: poolVer,
		Payout: entry,
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if acc.Version != accVer+1 || pool.Version != poolVer+1 {
		t.Errorf("versions should be bumped, got account=%d pool=%d", acc.Version, pool.Version)
	}

	// Replaying the same commit against the old versions must conflict.
	err = st.CommitRound(ctx, &model.RoundCommit{
		Account: acc, AccountVersion: accVer,
		Pool: pool, PoolVersion: poolVer,
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := st.GetAccount(ctx, id)
	if !got.Capital.Equal(d(9500)) || !got.EarnedFromPool.Equal(d(400)) {
		t.Errorf("account not persisted: %+v", got)
	}
	gotPool, _ := st.GetOrCreatePool(ctx, model.GameLucky3)
	if !gotPool.PoolBalance.Equal(d(450)) || gotPool.NextRound != 2 {
		t.Errorf("pool not persisted: %+v", gotPool)
	}

	payouts, err := st.ListPayouts(ctx, model.GameLucky3, 10)
	if err != nil {
		t.Fatalf("list payouts: %v", err)
	}
	found := false
	for _, p := range payouts {
		if p.ID == entry.ID {
			found = true
		}
	}
	if !found {
		t.Error("payout entry not listed")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	ms.CreateAccount(ctx, newAccount("a1"))

	a, _ := ms.GetAccount(ctx, "a1")
	a.Capital = d(1)

	again, _ := ms.GetAccount(ctx, "a1")
	if !again.Capital.Equal(d(10000)) {
		t.Error("mutating a returned account leaked into the store")
	}
}

func TestMemoryStore_ListPayoutsNewestFirst(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	ms.CreateAccount(ctx, newAccount("a1"))

	for i := 1; i <= 3; i++ {
		acc, _ := ms.GetAccount(ctx, "a1")
		pool, _ := ms.GetOrCreatePool(ctx, model.GamePosition)
		err := ms.CommitRound(ctx, &model.RoundCommit{
			Account: acc, AccountVersion: acc.Version,
			Pool: pool, PoolVersion: pool.Version,
			Payout: &model.PayoutEntry{
				ID: uuid.NewString(), Game: model.GamePosition, AccountID: "a1",
				Amount: d(float64(i)), Timestamp: time.Now().UTC(),
			},
		})
		if err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	got, _ := ms.ListPayouts(ctx, model.GamePosition, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(got))
	}
	if !got[0].Amount.Equal(d(3)) || !got[1].Amount.Equal(d(2)) {
		t.Errorf("expected newest first, got %s, %s", got[0].Amount, got[1].Amount)
	}

	other, _ := ms.ListPayouts(ctx, model.GameFruit, 0)
	if len(other) != 0 {
		t.Errorf("payouts leaked across games: %d", len(other))
	}
}

func TestMemoryStore_ListPoolsSorted(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	ms.GetOrCreatePool(ctx, model.GamePosition)
	ms.GetOrCreatePool(ctx, model.GameFruit)

	pools, _ := ms.ListPools(ctx)
	if len(pools) != 2 || pools[0].Game != model.GameFruit {
		t.Errorf("expected [fruit position], got %+v", pools)
	}
}

func newCachedStore(t *testing.T) (*CachedStore, *MemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	ms := NewMemoryStore()
	return NewCachedStore(ms, rdb, 30*time.Second), ms, mr
}

func TestCachedStore(t *testing.T) {
	cs, _, _ := newCachedStore(t)
	exerciseStore(t, cs)
}

func TestCachedStore_ReadThroughAndInvalidate(t *testing.T) {
	cs, ms, mr := newCachedStore(t)
	ctx := context.Background()
	ms.CreateAccount(ctx, newAccount("a1"))

	if _, err := cs.GetAccount(ctx, "a1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !mr.Exists("account:a1") {
		t.Fatal("expected account cached after read")
	}

	acc, _ := cs.GetAccount(ctx, "a1")
	pool, _ := cs.GetOrCreatePool(ctx, model.GameFruit)
	if !mr.Exists("pool:fruit") {
		t.Fatal("expected pool cached after read")
	}

	acc.Capital = d(1234)
	if err := cs.CommitRound(ctx, &model.RoundCommit{
		Account: acc, AccountVersion: acc.Version,
		Pool: pool, PoolVersion: pool.Version,
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if mr.Exists("account:a1") || mr.Exists("pool:fruit") {
		t.Error("commit should invalidate cached account and pool")
	}

	got, _ := cs.GetAccount(ctx, "a1")
	if !got.Capital.Equal(d(1234)) {
		t.Errorf("expected fresh capital 1234, got %s", got.Capital)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	ps := NewPostgresStore(pool)
	if err := ps.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE payouts, pools, accounts`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	exerciseStore(t, ps)
}
