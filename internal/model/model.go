// Package model defines the core domain types shared across the payout engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game identifies one pool variant. Each game owns exactly one PoolState.
type Game string

const (
	GamePosition Game = "position"
	GameFruit    Game = "fruit"
	GameLucky3   Game = "lucky3"
)

// Games lists every supported variant in display order.
var Games = []Game{GamePosition, GameFruit, GameLucky3}

// Valid reports whether g names a supported variant.
func (g Game) Valid() bool {
	switch g {
	case GamePosition, GameFruit, GameLucky3:
		return true
	}
	return false
}

// Account is one user's balance record and per-user game counters.
type Account struct {
	ID              string          `json:"id" db:"id"`
	Username        string          `json:"username" db:"username"`
	Email           string          `json:"email" db:"email"`
	Capital         decimal.Decimal `json:"capital" db:"capital"`
	Position        int             `json:"position" db:"position"`                 // last position played
	LossStreak      int             `json:"loss_streak" db:"loss_streak"`           // consecutive odd-position rounds
	DowngradeLosses int             `json:"downgrade_losses" db:"downgrade_losses"` // forced downgrades since last excursion
	LastPaidAmount  decimal.Decimal `json:"last_paid_amount" db:"last_paid_amount"`
	EarnedFromPool  decimal.Decimal `json:"earned_from_pool" db:"earned_from_pool"`
	Version         int64           `json:"version" db:"version"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// PoolState is the global singleton aggregate of one game variant.
// NextPosition and NextRound are shared by every account playing the game.
type PoolState struct {
	Game          Game            `json:"game" db:"game"`
	PoolBalance   decimal.Decimal `json:"pool_balance" db:"pool_balance"`
	HouseEarnings decimal.Decimal `json:"house_earnings" db:"house_earnings"`
	NextPosition  int             `json:"next_position" db:"next_position"`
	NextRound     int             `json:"next_round" db:"next_round"`
	Version       int64           `json:"version" db:"version"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// NewPoolState returns the zero state a game starts from.
func NewPoolState(g Game) *PoolState {
	return &PoolState{
		Game:          g,
		PoolBalance:   decimal.Zero,
		HouseEarnings: decimal.Zero,
		NextPosition:  1,
		NextRound:     1,
		UpdatedAt:     time.Now().UTC(),
	}
}

// PayoutEntry is an immutable record of winnings paid from a pool.
type PayoutEntry struct {
	ID        string          `json:"id" db:"id"`
	Game      Game            `json:"game" db:"game"`
	AccountID string          `json:"account_id" db:"account_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// RoundCommit is the unit of work written at the end of a round: the updated
// account, the updated pool and an optional payout entry. Stores apply it
// atomically and reject it if either version has moved on.
type RoundCommit struct {
	Account        *Account
	AccountVersion int64 // version the account was read at
	Pool           *PoolState
	PoolVersion    int64 // version the pool was read at
	Payout         *PayoutEntry
}
