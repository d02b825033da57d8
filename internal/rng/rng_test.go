package rng

import "testing"

func TestCrypto_InRange(t *testing.T) {
	src := NewCrypto()
	for i := 0; i < 500; i++ {
		if v := src.Intn(30); v < 0 || v >= 30 {
			t.Fatalf("value out of range: %d", v)
		}
	}
	if v := src.Intn(1); v != 0 {
		t.Errorf("Intn(1) should be 0, got %d", v)
	}
}

func TestSequence_WrapsAndReduces(t *testing.T) {
	s := NewSequence(1, 7, -3)
	got := []int{s.Intn(5), s.Intn(5), s.Intn(5), s.Intn(5)}
	want := []int{1, 2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("draw %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}
