// Package lucky implements the lucky-3 number draw.
//
// The draw table is walked sequentially: round r is followed by r%N+1.
// When the pool cannot cover a win, the engine keeps stepping the cursor
// (up to a retry cap) looking for a round that shares no number with the
// player's picks, and the round is settled as a loss.
package lucky

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/moneypool/payout-engine/internal/payout"
)

// PickCount is how many numbers a player chooses and a round draws.
const PickCount = 3

// DefaultMaxRetries caps the search for a losing round.
const DefaultMaxRetries = 10

var (
	// ErrInvalidPicks is returned for a malformed set of chosen numbers.
	ErrInvalidPicks = errors.New("lucky: pick exactly 3 distinct numbers in range")

	// ErrNoDraws is returned when the draw table is empty.
	ErrNoDraws = errors.New("lucky: draw table is empty")

	// ErrInvalidDraw is returned for a table entry with repeated or
	// out-of-range numbers.
	ErrInvalidDraw = errors.New("lucky: invalid draw")
)

// Draw is the fixed set of numbers for one round.
type Draw [PickCount]int

// Picks is a validated set of chosen numbers.
type Picks [PickCount]int

// Outcome is the result of one play.
type Outcome struct {
	Round      int             `json:"round"`
	Drawn      Draw            `json:"drawn_numbers"`
	Matched    []int           `json:"matched_numbers"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Winnings   decimal.Decimal `json:"winnings"`
	NextRound  int             `json:"next_round"`
	// Retries is how many extra rounds the solvency search stepped through.
	Retries int `json:"retries"`
	// Forced is set when the pool could not cover the win.
	Forced  bool   `json:"forced"`
	Message string `json:"message"`
}

// Engine evaluates plays against the draw table.
type Engine struct {
	draws       []Draw
	maxNumber   int
	multipliers [PickCount + 1]decimal.Decimal
	maxRetries  int
	minReserve  decimal.Decimal
	precision   int32
}

// DefaultMultipliers pays 0x, 1.5x, 3x and 5x for 0..3 matches.
func DefaultMultipliers() [PickCount + 1]decimal.Decimal {
	return [PickCount + 1]decimal.Decimal{
		decimal.Zero,
		decimal.NewFromFloat(1.5),
		decimal.NewFromInt(3),
		decimal.NewFromInt(5),
	}
}

// NewEngine validates the draw table against maxNumber.
func NewEngine(draws []Draw, maxNumber int, multipliers [PickCount + 1]decimal.Decimal, maxRetries int, minReserve decimal.Decimal, precision int32) (*Engine, error) {
	if len(draws) == 0 {
		return nil, ErrNoDraws
	}
	for i, dr := range draws {
		if _, err := validate(dr[:], maxNumber); err != nil {
			return nil, fmt.Errorf("%w: round %d %v", ErrInvalidDraw, i+1, dr)
		}
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Engine{
		draws:       draws,
		maxNumber:   maxNumber,
		multipliers: multipliers,
		maxRetries:  maxRetries,
		minReserve:  minReserve,
		precision:   precision,
	}, nil
}

// Rounds returns the table length.
func (e *Engine) Rounds() int {
	return len(e.draws)
}

// MaxNumber returns the highest number a player may pick.
func (e *Engine) MaxNumber() int {
	return e.maxNumber
}

// ParsePicks validates raw player input.
func (e *Engine) ParsePicks(nums []int) (Picks, error) {
	return validate(nums, e.maxNumber)
}

func validate(nums []int, maxNumber int) (Picks, error) {
	var p Picks
	if len(nums) != PickCount {
		return p, ErrInvalidPicks
	}
	seen := make(map[int]bool, PickCount)
	for i, n := range nums {
		if n < 1 || n > maxNumber || seen[n] {
			return p, ErrInvalidPicks
		}
		seen[n] = true
		p[i] = n
	}
	return p, nil
}

// Play settles a stake at the given round against the pool balance
// available for payouts.
func (e *Engine) Play(round int, picks Picks, amount, pool decimal.Decimal) Outcome {
	round = e.clamp(round)
	matched := intersect(picks, e.draws[round-1])
	mult := e.multipliers[len(matched)]
	winnings := payout.Floor(amount.Mul(mult), e.precision)

	out := Outcome{
		Round:      round,
		Drawn:      e.draws[round-1],
		Matched:    matched,
		Multiplier: mult,
		Winnings:   winnings,
	}

	if winnings.IsPositive() && pool.Sub(winnings).LessThan(e.minReserve) {
		out.Forced = true
		out.Winnings = decimal.Zero
		out.Multiplier = decimal.Zero
		for out.Retries < e.maxRetries {
			round = e.next(round)
			out.Retries++
			out.Round = round
			out.Drawn = e.draws[round-1]
			out.Matched = intersect(picks, out.Drawn)
			if len(out.Matched) == 0 {
				break
			}
		}
	}

	out.NextRound = e.next(out.Round)
	out.Message = message(out)
	return out
}

func (e *Engine) next(round int) int {
	return round%len(e.draws) + 1
}

func (e *Engine) clamp(round int) int {
	if round < 1 || round > len(e.draws) {
		return 1
	}
	return round
}

// intersect returns the picked numbers present in the draw, in pick order.
func intersect(p Picks, dr Draw) []int {
	out := []int{}
	for _, n := range p {
		for _, m := range dr {
			if n == m {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

func message(o Outcome) string {
	switch {
	case o.Winnings.IsPositive() && len(o.Matched) == PickCount:
		return "Jackpot! You matched all 3 numbers."
	case o.Winnings.IsPositive():
		return fmt.Sprintf("You matched %d of 3 numbers.", len(o.Matched))
	default:
		return "No luck this round. Try again!"
	}
}

// DefaultDraws is the stock 40-round table over the numbers 1..9.
func DefaultDraws() []Draw {
	return []Draw{
		{8, 3, 4}, {6, 3, 4}, {1, 2, 7}, {9, 2, 3}, {1, 4, 9},
		{2, 7, 4}, {2, 4, 1}, {9, 7, 1}, {2, 4, 6}, {1, 7, 9},
		{4, 1, 5}, {3, 5, 4}, {3, 2, 5}, {5, 3, 1}, {4, 6, 1},
		{9, 2, 5}, {1, 4, 8}, {9, 7, 8}, {6, 8, 5}, {8, 6, 3},
		{4, 3, 6}, {4, 2, 5}, {5, 8, 3}, {8, 5, 9}, {2, 9, 5},
		{7, 3, 9}, {6, 3, 4}, {7, 1, 6}, {2, 6, 3}, {6, 8, 5},
		{8, 2, 7}, {2, 5, 4}, {2, 1, 6}, {5, 8, 3}, {7, 6, 1},
		{8, 6, 2}, {2, 8, 1}, {4, 5, 2}, {4, 7, 9}, {8, 2, 9},
	}
}

// DefaultMaxNumber is the highest number in the stock table.
const DefaultMaxNumber = 9
