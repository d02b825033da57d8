// Package payout computes winnings from a shared pool.
//
// All games share one rounding policy: winnings are floored to Precision
// decimal places (0 = whole currency units). Nothing here ever produces a
// payout that would take the pool below the configured minimum reserve.
package payout

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyOddsTable is returned when no positions are configured.
	ErrEmptyOddsTable = errors.New("payout: odds table is empty")

	// ErrInvalidChance is returned when a configured chance is outside [0, 100].
	ErrInvalidChance = errors.New("payout: chance must be within [0, 100]")

	// ErrNegativeReserve is returned for a negative minimum reserve.
	ErrNegativeReserve = errors.New("payout: minimum reserve must not be negative")
)

var hundred = decimal.NewFromInt(100)

// OddsTable maps a cursor position to the percentage of the pool it pays.
type OddsTable map[int]decimal.Decimal

// DefaultOdds is the position game's stock table. Odd positions are the
// lean part of the cycle; the excursion positions pay the most.
func DefaultOdds() OddsTable {
	return OddsTable{
		1:  decimal.NewFromInt(3),
		2:  decimal.NewFromInt(10),
		3:  decimal.NewFromInt(2),
		4:  decimal.NewFromInt(15),
		5:  decimal.NewFromInt(2),
		6:  decimal.NewFromInt(20),
		7:  decimal.NewFromInt(1),
		8:  decimal.NewFromInt(25),
		9:  decimal.NewFromInt(1),
		10: decimal.NewFromInt(30),
		12: decimal.NewFromInt(40),
		14: decimal.NewFromInt(50),
	}
}

// Validate checks every entry of the table.
func (t OddsTable) Validate() error {
	if len(t) == 0 {
		return ErrEmptyOddsTable
	}
	for pos, chance := range t {
		if chance.IsNegative() || chance.GreaterThan(hundred) {
			return fmt.Errorf("%w: position %d has %s", ErrInvalidChance, pos, chance)
		}
	}
	return nil
}

// Positions returns the configured positions in ascending order.
func (t OddsTable) Positions() []int {
	out := make([]int, 0, len(t))
	for pos := range t {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}

// Result is one evaluated payout.
type Result struct {
	Position int             `json:"position"`
	Chance   decimal.Decimal `json:"chance"` // percent of pool
	Winnings decimal.Decimal `json:"winnings"`
	// PoolAfter is the pool balance once winnings are deducted.
	PoolAfter decimal.Decimal `json:"pool_after"`
	// Guarded is set when the reserve guard forced a zero payout.
	Guarded bool `json:"guarded"`
}

// Calculator evaluates the odds table against a pool balance.
type Calculator struct {
	odds       OddsTable
	minReserve decimal.Decimal
	precision  int32
}

// NewCalculator validates the table and returns a calculator.
func NewCalculator(odds OddsTable, minReserve decimal.Decimal, precision int32) (*Calculator, error) {
	if err := odds.Validate(); err != nil {
		return nil, err
	}
	if minReserve.IsNegative() {
		return nil, ErrNegativeReserve
	}
	if precision < 0 {
		precision = 0
	}
	return &Calculator{odds: odds, minReserve: minReserve, precision: precision}, nil
}

// Chance returns the configured percentage for a position (0 if unknown).
func (c *Calculator) Chance(position int) decimal.Decimal {
	return c.odds[position]
}

// MinReserve returns the balance the pool must keep after any payout.
func (c *Calculator) MinReserve() decimal.Decimal {
	return c.minReserve
}

// Round floors an amount to the currency precision.
func (c *Calculator) Round(amount decimal.Decimal) decimal.Decimal {
	return Floor(amount, c.precision)
}

// Compute returns winnings = pool × chance / 100 for the position. A pool
// that is empty or negative pays nothing; so does any payout that would leave
// less than the minimum reserve behind.
func (c *Calculator) Compute(position int, pool decimal.Decimal) Result {
	chance := c.odds[position]
	res := Result{Position: position, Chance: chance, Winnings: decimal.Zero, PoolAfter: pool}

	if !pool.IsPositive() || !chance.IsPositive() {
		return res
	}

	winnings := c.Round(pool.Mul(chance).Div(hundred))
	if !c.Affordable(pool, winnings) {
		res.Guarded = true
		return res
	}

	res.Winnings = winnings
	res.PoolAfter = pool.Sub(winnings)
	return res
}

// Jackpot pays out the entire pool at 100% odds. The minimum reserve does
// not apply: the jackpot is defined as emptying the pool.
func (c *Calculator) Jackpot(position int, pool decimal.Decimal) Result {
	if !pool.IsPositive() {
		return Result{Position: position, Chance: hundred, Winnings: decimal.Zero, PoolAfter: pool}
	}
	return Result{
		Position:  position,
		Chance:    hundred,
		Winnings:  pool,
		PoolAfter: decimal.Zero,
	}
}

// Affordable reports whether paying winnings out of pool keeps the
// minimum reserve intact.
func (c *Calculator) Affordable(pool, winnings decimal.Decimal) bool {
	return pool.Sub(winnings).GreaterThanOrEqual(c.minReserve)
}

// Floor rounds an amount toward negative infinity at the given precision.
func Floor(amount decimal.Decimal, precision int32) decimal.Decimal {
	return amount.RoundFloor(precision)
}
