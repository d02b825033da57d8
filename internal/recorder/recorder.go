// Package recorder keeps an audit trail of every settled round and of
// periodic pool snapshots. It is write-only from the engine's point of view;
// the ledger store stays the source of truth for balances.
package recorder

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recorder persists audit events.
type Recorder interface {
	RecordRound(r *RoundRecord) error
	RecordPoolSnapshot(s *PoolSnapshot) error
	Close() error
}

// RoundRecord describes one settled round.
type RoundRecord struct {
	ID         string
	Game       string
	AccountID  string
	Stake      decimal.Decimal
	HouseShare decimal.Decimal
	PoolShare  decimal.Decimal
	Slot       int             // position (position game) or round index
	Odds       decimal.Decimal // chance percent or stake multiplier
	Winnings   decimal.Decimal
	PoolBefore decimal.Decimal
	PoolAfter  decimal.Decimal
	Jackpot    bool
	Guarded    bool // solvency guard altered the outcome
	Timestamp  time.Time
}

// PoolSnapshot is a point-in-time copy of one pool's balances.
type PoolSnapshot struct {
	Game          string
	PoolBalance   decimal.Decimal
	HouseEarnings decimal.Decimal
	NextPosition  int
	NextRound     int
	Timestamp     time.Time
}
