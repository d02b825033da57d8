package stake

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestNewProcessor_InvalidHouseShare(t *testing.T) {
	for _, share := range []float64{-0.1, 1, 1.5} {
		if _, err := NewProcessor(d(share), TimingAfter); err != ErrInvalidHouseShare {
			t.Errorf("share %v: expected ErrInvalidHouseShare, got %v", share, err)
		}
	}
}

func TestNewProcessor_UnknownTimingDefaultsToAfter(t *testing.T) {
	p, err := NewProcessor(d(0.1), Timing("sideways"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Timing() != TimingAfter {
		t.Errorf("expected timing=after, got %s", p.Timing())
	}
	if p.PoolBeforePayout() {
		t.Error("after timing must not add pool share before payout")
	}
}

func TestProcess_SplitsTenNinety(t *testing.T) {
	p, _ := NewProcessor(d(0.1), TimingBefore)

	split, err := p.Process(d(10000), d(5000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !split.House.Equal(d(500)) {
		t.Errorf("expected house=500, got %s", split.House)
	}
	if !split.Pool.Equal(d(4500)) {
		t.Errorf("expected pool=4500, got %s", split.Pool)
	}
	if !split.House.Add(split.Pool).Equal(split.Amount) {
		t.Errorf("shares must sum to the stake: %s + %s != %s", split.House, split.Pool, split.Amount)
	}
}

func TestProcess_Rejections(t *testing.T) {
	p, _ := NewProcessor(d(0.1), TimingAfter)

	tests := []struct {
		name    string
		capital float64
		amount  float64
		want    error
	}{
		{"zero", 100, 0, ErrInvalidStake},
		{"negative", 100, -5, ErrInvalidStake},
		{"above capital", 100, 100.01, ErrInsufficientFunds},
		{"exact capital", 100, 100, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Process(d(tt.capital), d(tt.amount))
			if err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
