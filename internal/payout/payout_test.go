package payout

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestNewCalculator_Validation(t *testing.T) {
	if _, err := NewCalculator(OddsTable{}, d(0), 0); err != ErrEmptyOddsTable {
		t.Errorf("expected ErrEmptyOddsTable, got %v", err)
	}
	if _, err := NewCalculator(OddsTable{1: d(120)}, d(0), 0); !errors.Is(err, ErrInvalidChance) {
		t.Errorf("expected ErrInvalidChance, got %v", err)
	}
	if _, err := NewCalculator(DefaultOdds(), d(-1), 0); err != ErrNegativeReserve {
		t.Errorf("expected ErrNegativeReserve, got %v", err)
	}
}

func TestDefaultOdds_CoversCycleAndExcursions(t *testing.T) {
	odds := DefaultOdds()
	for _, pos := range []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 12, 14} {
		if _, ok := odds[pos]; !ok {
			t.Errorf("position %d missing from default odds", pos)
		}
	}
	if !odds[1].Equal(d(3)) {
		t.Errorf("position 1 should pay 3%%, got %s", odds[1])
	}
	if got := odds.Positions(); got[0] != 1 || got[len(got)-1] != 14 {
		t.Errorf("positions should be sorted 1..14, got %v", got)
	}
}

func TestCompute(t *testing.T) {
	calc, _ := NewCalculator(DefaultOdds(), d(0), 0)

	tests := []struct {
		name     string
		position int
		pool     float64
		want     float64
	}{
		{"position 1 pays 3%", 1, 10000, 300},
		{"position 10 pays 30%", 10, 10000, 3000},
		{"floors to whole units", 1, 1001, 30},
		{"empty pool pays nothing", 4, 0, 0},
		{"unknown position pays nothing", 11, 10000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := calc.Compute(tt.position, d(tt.pool))
			if !res.Winnings.Equal(d(tt.want)) {
				t.Errorf("expected winnings %v, got %s", tt.want, res.Winnings)
			}
			if !res.PoolAfter.Equal(d(tt.pool).Sub(res.Winnings)) {
				t.Errorf("pool after should be pool - winnings, got %s", res.PoolAfter)
			}
			if res.PoolAfter.IsNegative() {
				t.Errorf("pool went negative: %s", res.PoolAfter)
			}
		})
	}
}

func TestCompute_Precision(t *testing.T) {
	calc, _ := NewCalculator(DefaultOdds(), d(0), 1)
	res := calc.Compute(1, d(1001))
	if !res.Winnings.Equal(d(30)) {
		t.Errorf("expected 30.0 at one decimal (30.03 floored), got %s", res.Winnings)
	}
	res = calc.Compute(1, d(1005))
	if !res.Winnings.Equal(d(30.1)) {
		t.Errorf("expected 30.1 (30.15 floored), got %s", res.Winnings)
	}
}

func TestCompute_ReserveGuardForcesZero(t *testing.T) {
	calc, _ := NewCalculator(DefaultOdds(), d(9000), 0)

	res := calc.Compute(10, d(10000)) // 3000 would leave 7000 < 9000
	if !res.Guarded {
		t.Error("expected reserve guard to trigger")
	}
	if !res.Winnings.IsZero() || !res.PoolAfter.Equal(d(10000)) {
		t.Errorf("guarded round must pay nothing, got winnings=%s pool=%s", res.Winnings, res.PoolAfter)
	}

	res = calc.Compute(1, d(10000)) // 300 leaves 9700
	if res.Guarded || !res.Winnings.Equal(d(300)) {
		t.Errorf("affordable payout should pass, got %+v", res)
	}
}

func TestJackpot_EmptiesPool(t *testing.T) {
	calc, _ := NewCalculator(DefaultOdds(), d(500), 0)

	res := calc.Jackpot(1, d(4321.5))
	if !res.Winnings.Equal(d(4321.5)) || !res.PoolAfter.IsZero() {
		t.Errorf("jackpot should pay the whole pool, got %+v", res)
	}
	if !res.Chance.Equal(d(100)) {
		t.Errorf("jackpot odds should be 100, got %s", res.Chance)
	}

	res = calc.Jackpot(1, d(0))
	if !res.Winnings.IsZero() {
		t.Errorf("empty pool jackpot pays nothing, got %s", res.Winnings)
	}
}

func TestFloor(t *testing.T) {
	if got := Floor(d(12.99), 0); !got.Equal(d(12)) {
		t.Errorf("expected 12, got %s", got)
	}
	if got := Floor(d(12.99), 1); !got.Equal(d(12.9)) {
		t.Errorf("expected 12.9, got %s", got)
	}
}
