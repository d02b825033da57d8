package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/moneypool/payout-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
	pools    map[model.Game]*model.PoolState
	payouts  []model.PayoutEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*model.Account),
		pools:    make(map[model.Game]*model.PoolState),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %s: %w", a.ID, ErrDuplicate)
	}
	// Store a copy to avoid external mutation.
	copy := *a
	s.accounts[a.ID] = &copy
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	copy := *a
	return &copy, nil
}

func (s *MemoryStore) GetOrCreatePool(_ context.Context, game model.Game) (*model.PoolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[game]
	if !ok {
		p = model.NewPoolState(game)
		s.pools[game] = p
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListPools(_ context.Context) ([]model.PoolState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pools := make([]model.PoolState, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, *p)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].Game < pools[j].Game })
	return pools, nil
}

func (s *MemoryStore) CommitRound(_ context.Context, c *model.RoundCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[c.Account.ID]
	if !ok {
		return fmt.Errorf("account %s: %w", c.Account.ID, ErrNotFound)
	}
	if a.Version != c.AccountVersion {
		return fmt.Errorf("account %s: %w", c.Account.ID, ErrVersionConflict)
	}
	p, ok := s.pools[c.Pool.Game]
	if !ok || p.Version != c.PoolVersion {
		return fmt.Errorf("pool %s: %w", c.Pool.Game, ErrVersionConflict)
	}

	now := time.Now().UTC()
	c.Account.Version = c.AccountVersion + 1
	c.Account.UpdatedAt = now
	c.Pool.Version = c.PoolVersion + 1
	c.Pool.UpdatedAt = now

	acc := *c.Account
	pool := *c.Pool
	s.accounts[acc.ID] = &acc
	s.pools[pool.Game] = &pool
	if c.Payout != nil {
		s.payouts = append(s.payouts, *c.Payout)
	}
	return nil
}

func (s *MemoryStore) ListPayouts(_ context.Context, game model.Game, limit int) ([]model.PayoutEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.PayoutEntry
	for i := len(s.payouts) - 1; i >= 0; i-- {
		if s.payouts[i].Game != game {
			continue
		}
		result = append(result, s.payouts[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}
