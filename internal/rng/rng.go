// Package rng supplies the random draws used by the games. Production code
// uses a crypto-seeded source; tests substitute a fixed sequence.
package rng

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// Source returns uniformly distributed integers in [0, n).
type Source interface {
	Intn(n int) int
}

// Crypto draws from crypto/rand.
type Crypto struct{}

// NewCrypto returns the production source.
func NewCrypto() Crypto { return Crypto{} }

func (Crypto) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic("rng: crypto/rand unavailable: " + err.Error())
	}
	return int(v.Int64())
}

// Sequence replays a fixed list of values, wrapping around. Each value is
// reduced modulo n.
type Sequence struct {
	mu   sync.Mutex
	vals []int
	i    int
}

// NewSequence returns a deterministic source for tests and replays.
func NewSequence(vals ...int) *Sequence {
	if len(vals) == 0 {
		vals = []int{0}
	}
	return &Sequence{vals: vals}
}

func (s *Sequence) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vals[s.i%len(s.vals)]
	s.i++
	if v < 0 {
		v = -v
	}
	return v % n
}
