// Package store defines the ledger persistence interface for the payout
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/moneypool/payout-engine/internal/model"
)

var (
	// ErrNotFound is returned when an account does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrVersionConflict is returned by CommitRound when the account or
	// pool changed after it was read.
	ErrVersionConflict = errors.New("store: version conflict")

	// ErrDuplicate is returned when creating an account whose id exists.
	ErrDuplicate = errors.New("store: already exists")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Accounts ---

	// CreateAccount persists a new account.
	CreateAccount(ctx context.Context, account *model.Account) error

	// GetAccount retrieves an account by ID.
	GetAccount(ctx context.Context, id string) (*model.Account, error)

	// --- Pools ---

	// GetOrCreatePool returns the game's pool, creating the zero state on
	// first use.
	GetOrCreatePool(ctx context.Context, game model.Game) (*model.PoolState, error)

	// ListPools returns every pool that has been created.
	ListPools(ctx context.Context) ([]model.PoolState, error)

	// --- Rounds ---

	// CommitRound atomically writes the account, the pool and the optional
	// payout entry. It fails with ErrVersionConflict if either record moved
	// past the version it was read at, and bumps both versions on success.
	CommitRound(ctx context.Context, c *model.RoundCommit) error

	// ListPayouts returns the most recent payouts of a game, newest first.
	ListPayouts(ctx context.Context, game model.Game, limit int) ([]model.PayoutEntry, error)
}
