// Package fruit implements the fruit-slot payout engine.
//
// Every round index 1..N maps to a fixed set of symbol lines. Winnings
// scale with the stake relative to a reference stake, and the next round is
// drawn uniformly at random, independent of the position game's cursor.
package fruit

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/moneypool/payout-engine/internal/payout"
	"github.com/moneypool/payout-engine/internal/rng"
)

// ZeroRound is the round index that pays nothing. The reserve guard falls
// back to it.
const ZeroRound = 1

var (
	// ErrNoRounds is returned when the round table is empty.
	ErrNoRounds = errors.New("fruit: round table is empty")

	// ErrZeroRoundPays is returned when round 1 has paying lines.
	ErrZeroRoundPays = errors.New("fruit: round 1 must not pay")

	// ErrInvalidReference is returned when the reference stake is not positive.
	ErrInvalidReference = errors.New("fruit: reference stake must be positive")

	// ErrInvalidLine is returned for negative quantities or payouts.
	ErrInvalidLine = errors.New("fruit: line quantity and payout must not be negative")
)

// Line is one symbol result within a round.
type Line struct {
	Symbol     string          `json:"symbol" yaml:"symbol"`
	Quantity   int             `json:"quantity" yaml:"quantity"`
	BasePayout decimal.Decimal `json:"base_payout" yaml:"base_payout"`
}

// Round is the static outcome of one round index.
type Round []Line

// base returns Σ basePayout × quantity for the round.
func (r Round) base() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range r {
		sum = sum.Add(l.BasePayout.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Outcome is the result of one spin.
type Outcome struct {
	Round      int             `json:"round"`
	Lines      Round           `json:"symbols"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Winnings   decimal.Decimal `json:"winnings"`
	PoolAfter  decimal.Decimal `json:"pool_after"`
	NextRound  int             `json:"next_round"`
	// Guarded is set when the reserve guard replaced the drawn round.
	Guarded bool `json:"guarded"`
}

// Engine evaluates spins against a round table.
type Engine struct {
	rounds     []Round // rounds[0] is round 1
	reference  decimal.Decimal
	minReserve decimal.Decimal
	precision  int32
	rng        rng.Source
}

// NewEngine validates the table and returns an engine.
func NewEngine(rounds []Round, reference, minReserve decimal.Decimal, precision int32, src rng.Source) (*Engine, error) {
	if len(rounds) == 0 {
		return nil, ErrNoRounds
	}
	if !reference.IsPositive() {
		return nil, ErrInvalidReference
	}
	for i, r := range rounds {
		for _, l := range r {
			if l.Quantity < 0 || l.BasePayout.IsNegative() {
				return nil, fmt.Errorf("%w: round %d symbol %q", ErrInvalidLine, i+1, l.Symbol)
			}
		}
	}
	if rounds[0].base().IsPositive() {
		return nil, ErrZeroRoundPays
	}
	return &Engine{
		rounds:     rounds,
		reference:  reference,
		minReserve: minReserve,
		precision:  precision,
		rng:        src,
	}, nil
}

// Rounds returns the number of configured rounds.
func (e *Engine) Rounds() int {
	return len(e.rounds)
}

// Winnings evaluates a round for a stake without any pool check:
// Σ base × qty × (amount / reference) + amount, or zero when nothing lines up.
func (e *Engine) Winnings(round int, amount decimal.Decimal) decimal.Decimal {
	base := e.round(round).base()
	if !base.IsPositive() {
		return decimal.Zero
	}
	scaled := base.Mul(amount).Div(e.reference)
	return payout.Floor(scaled.Add(amount), e.precision)
}

// Spin plays the stake at the given round against the pool. The pool share
// of the stake always counts toward solvency here; if the payout would leave
// less than the minimum reserve the zero round is played instead.
func (e *Engine) Spin(round int, amount, pool, poolShare decimal.Decimal) Outcome {
	round = e.clamp(round)
	out := Outcome{
		Round:      round,
		Multiplier: amount.Div(e.reference),
		Winnings:   e.Winnings(round, amount),
	}

	available := pool.Add(poolShare)
	if available.Sub(out.Winnings).LessThan(e.minReserve) {
		out.Round = ZeroRound
		out.Winnings = e.Winnings(ZeroRound, amount)
		out.Guarded = true
	}

	out.Lines = e.round(out.Round)
	out.PoolAfter = available.Sub(out.Winnings)
	out.NextRound = e.rng.Intn(len(e.rounds)) + 1
	return out
}

func (e *Engine) clamp(round int) int {
	if round < 1 || round > len(e.rounds) {
		return ZeroRound
	}
	return round
}

func (e *Engine) round(round int) Round {
	return e.rounds[e.clamp(round)-1]
}

func line(symbol string, qty int, base int64) Line {
	return Line{Symbol: symbol, Quantity: qty, BasePayout: decimal.NewFromInt(base)}
}

// DefaultRounds is the stock 30-round table, priced for a 3000 reference stake.
func DefaultRounds() []Round {
	return []Round{
		{}, // 1: nothing
		{line("cherry", 1, 300)},
		{},
		{line("lemon", 2, 200)},
		{line("cherry", 1, 300), line("lemon", 1, 200)},
		{},
		{line("orange", 3, 150)},
		{line("plum", 1, 600)},
		{},
		{line("grape", 2, 450)},
		{line("cherry", 3, 300)},
		{},
		{line("melon", 1, 900)},
		{line("lemon", 1, 200), line("orange", 1, 150)},
		{},
		{line("bell", 1, 1200)},
		{line("cherry", 2, 300), line("grape", 1, 450)},
		{},
		{line("plum", 2, 600)},
		{},
		{line("orange", 2, 150), line("melon", 1, 900)},
		{line("lemon", 3, 200)},
		{},
		{line("seven", 1, 3000)},
		{line("cherry", 1, 300)},
		{},
		{line("grape", 3, 450)},
		{line("bell", 2, 1200)},
		{},
		{line("seven", 3, 3000)},
	}
}
