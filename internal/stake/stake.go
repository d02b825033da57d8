// Package stake validates stakes and splits them between the house and the
// shared pool.
package stake

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidStake is returned when the amount is zero or negative.
	ErrInvalidStake = errors.New("stake: amount must be positive")

	// ErrInsufficientFunds is returned when the amount exceeds the
	// account's capital at acceptance time.
	ErrInsufficientFunds = errors.New("stake: amount exceeds available capital")

	// ErrInvalidHouseShare is returned when the configured house share is
	// outside [0, 1).
	ErrInvalidHouseShare = errors.New("stake: house share must be in [0, 1)")
)

// Timing decides whether a stake's pool share joins the pool before or
// after that same round's payout is computed.
type Timing string

const (
	TimingBefore Timing = "before"
	TimingAfter  Timing = "after"
)

// Valid reports whether t is a known timing.
func (t Timing) Valid() bool {
	return t == TimingBefore || t == TimingAfter
}

// Split is the result of accepting a stake.
type Split struct {
	Amount decimal.Decimal `json:"amount"`
	House  decimal.Decimal `json:"house_share"`
	Pool   decimal.Decimal `json:"pool_share"`
}

// Processor accepts stakes against an account balance.
// It is stateless; balances are passed in, not stored.
type Processor struct {
	houseShare decimal.Decimal
	timing     Timing
}

// NewProcessor creates a processor keeping houseShare (e.g. 0.10) of every
// stake. An unknown timing falls back to TimingAfter.
func NewProcessor(houseShare decimal.Decimal, timing Timing) (*Processor, error) {
	if houseShare.IsNegative() || houseShare.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, ErrInvalidHouseShare
	}
	if !timing.Valid() {
		timing = TimingAfter
	}
	return &Processor{houseShare: houseShare, timing: timing}, nil
}

// HouseShare returns the configured house fraction.
func (p *Processor) HouseShare() decimal.Decimal {
	return p.houseShare
}

// Timing returns when the pool share is added relative to payout.
func (p *Processor) Timing() Timing {
	return p.timing
}

// Validate checks an amount against the capital available to stake.
func (p *Processor) Validate(capital, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidStake
	}
	if amount.GreaterThan(capital) {
		return ErrInsufficientFunds
	}
	return nil
}

// Process validates the stake and splits it. The house share is computed
// first and the pool receives the remainder, so House + Pool == amount
// exactly.
func (p *Processor) Process(capital, amount decimal.Decimal) (Split, error) {
	if err := p.Validate(capital, amount); err != nil {
		return Split{}, err
	}
	house := amount.Mul(p.houseShare)
	return Split{
		Amount: amount,
		House:  house,
		Pool:   amount.Sub(house),
	}, nil
}

// PoolBeforePayout reports whether the pool share must be added before the
// round's payout is computed.
func (p *Processor) PoolBeforePayout() bool {
	return p.timing == TimingBefore
}
