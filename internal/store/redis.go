package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moneypool/payout-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for accounts and pools. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the
// primary. Cached values carry their version, so a stale read can only make
// CommitRound fail with ErrVersionConflict, never overwrite newer state.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAccount(ctx context.Context, a *model.Account) error {
	if err := s.primary.CreateAccount(ctx, a); err != nil {
		return err
	}
	s.cache(ctx, accountKey(a.ID), a)
	return nil
}

func (s *CachedStore) CommitRound(ctx context.Context, c *model.RoundCommit) error {
	err := s.primary.CommitRound(ctx, c)
	// Invalidate on conflict too: the cached copy is evidently stale.
	s.rdb.Del(ctx, accountKey(c.Account.ID), poolKey(c.Pool.Game))
	return err
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(id)).Bytes()
	if err == nil {
		var a model.Account
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, accountKey(id), a)
	return a, nil
}

func (s *CachedStore) GetOrCreatePool(ctx context.Context, game model.Game) (*model.PoolState, error) {
	data, err := s.rdb.Get(ctx, poolKey(game)).Bytes()
	if err == nil {
		var p model.PoolState
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetOrCreatePool(ctx, game)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, poolKey(game), p)
	return p, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListPools(ctx context.Context) ([]model.PoolState, error) {
	return s.primary.ListPools(ctx)
}

func (s *CachedStore) ListPayouts(ctx context.Context, game model.Game, limit int) ([]model.PayoutEntry, error) {
	return s.primary.ListPayouts(ctx, game, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func accountKey(id string) string     { return fmt.Sprintf("account:%s", id) }
func poolKey(game model.Game) string { return fmt.Sprintf("pool:%s", game) }
