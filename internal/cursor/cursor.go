// Package cursor implements the position cursor of the position game.
//
// The cursor walks a primary cycle 1..10 and can be thrown onto one of two
// excursion positions (12 or 14). It is a single index shared by every
// account playing against the same pool; the per-account loss streak and
// downgrade counters travel alongside it in State.
//
// Advance is pure apart from the excursion draw, which uses the injected
// rng.Source.
package cursor

import (
	"github.com/shopspring/decimal"

	"github.com/moneypool/payout-engine/internal/rng"
)

const (
	// CycleLength is the size of the primary cycle 1..CycleLength.
	CycleLength = 10

	// ExcursionLow and ExcursionHigh are the jackpot-eligible positions
	// reached after repeated downgrades.
	ExcursionLow  = 12
	ExcursionHigh = 14

	// DowngradeThreshold forced downgrades trigger an excursion.
	DowngradeThreshold = 2

	// DefaultJackpotStreak consecutive odd-position rounds trigger the jackpot.
	DefaultJackpotStreak = 5
)

var two = decimal.NewFromInt(2)

// State is the cursor position plus the counters of the account staking.
type State struct {
	Position        int
	LossStreak      int
	DowngradeLosses int
}

// Input describes the stake being applied.
type Input struct {
	Amount decimal.Decimal
	// PoolBefore is the pool balance before this stake's pool share is added.
	PoolBefore decimal.Decimal
}

// Rules are the tunable parts of the state machine.
type Rules struct {
	// JackpotStreak is the loss streak at which the whole pool is paid out.
	JackpotStreak int
	// JackpotMinStake, when positive, additionally requires the stake to be
	// at least this large for the jackpot to fire.
	JackpotMinStake decimal.Decimal
}

// Step is the outcome of one Advance call.
type Step struct {
	// Position is where this round's payout is evaluated.
	Position int
	// Next is the shared cursor value for the following stake.
	Next int

	LossStreak      int
	DowngradeLosses int

	Advanced   bool
	Downgraded bool
	Excursion  bool
	Jackpot    bool
}

// Cursor evaluates the transition rules.
type Cursor struct {
	rules Rules
	rng   rng.Source
}

// New creates a cursor. A non-positive JackpotStreak falls back to
// DefaultJackpotStreak.
func New(rules Rules, src rng.Source) *Cursor {
	if rules.JackpotStreak <= 0 {
		rules.JackpotStreak = DefaultJackpotStreak
	}
	return &Cursor{rules: rules, rng: src}
}

// Rules returns the effective rules.
func (c *Cursor) Rules() Rules {
	return c.rules
}

// Advance applies one stake to the cursor. Rules are evaluated in order:
//
//  1. stake >= poolBefore/2 advances the cycle one step
//  2. otherwise an even position is downgraded by one
//  3. reaching DowngradeThreshold downgrades jumps to 12 or 14
//  4. odd positions extend the loss streak, even ones reset it
//  5. a full loss streak fires the jackpot and resets the cursor to 1
//  6. otherwise the cursor moves to the position after the one paid at
func (c *Cursor) Advance(s State, in Input) Step {
	pos := normalize(s.Position)
	step := Step{
		LossStreak:      s.LossStreak,
		DowngradeLosses: s.DowngradeLosses,
	}

	half := in.PoolBefore.Div(two)
	if in.Amount.GreaterThanOrEqual(half) {
		pos = nextInCycle(pos)
		step.Advanced = true
	} else if pos%2 == 0 {
		pos--
		step.DowngradeLosses++
		step.Downgraded = true
	}

	if step.DowngradeLosses >= DowngradeThreshold {
		if c.rng.Intn(2) == 0 {
			pos = ExcursionLow
		} else {
			pos = ExcursionHigh
		}
		step.DowngradeLosses = 0
		step.Excursion = true
	}

	if pos%2 == 1 {
		step.LossStreak++
	} else {
		step.LossStreak = 0
	}

	step.Position = pos

	if step.LossStreak >= c.rules.JackpotStreak && c.meetsJackpotStake(in.Amount) {
		step.Jackpot = true
		step.LossStreak = 0
		step.Next = 1
		return step
	}

	step.Next = nextInCycle(pos)
	return step
}

func (c *Cursor) meetsJackpotStake(amount decimal.Decimal) bool {
	if !c.rules.JackpotMinStake.IsPositive() {
		return true
	}
	return amount.GreaterThanOrEqual(c.rules.JackpotMinStake)
}

// nextInCycle maps any position onto the following primary-cycle slot.
// Excursion positions re-enter the cycle at (pos % 10) + 1.
func nextInCycle(pos int) int {
	return pos%CycleLength + 1
}

func normalize(pos int) int {
	if pos == ExcursionLow || pos == ExcursionHigh {
		return pos
	}
	if pos < 1 || pos > CycleLength {
		return 1
	}
	return pos
}
