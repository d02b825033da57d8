package gate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lease struct {
	token   string
	expires time.Time
}

// MemoryGate keeps leases in process memory. Suitable for a single
// instance; use RedisGate when several instances share a database.
type MemoryGate struct {
	mu     sync.Mutex
	leases map[string]lease
	opts   Options
	now    func() time.Time
}

// NewMemoryGate creates an in-process gate.
func NewMemoryGate(opts Options) *MemoryGate {
	return &MemoryGate{
		leases: make(map[string]lease),
		opts:   opts.withDefaults(),
		now:    time.Now,
	}
}

func (g *MemoryGate) Acquire(ctx context.Context, key string) (Release, error) {
	token := uuid.NewString()
	err := acquireLoop(ctx, g.opts, func(context.Context) (bool, error) {
		return g.tryAcquire(key, token), nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { g.release(key, token) })
	}, nil
}

// Held reports whether key currently has a live lease.
func (g *MemoryGate) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.leases[key]
	return ok && g.now().Before(l.expires)
}

func (g *MemoryGate) tryAcquire(key, token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if l, ok := g.leases[key]; ok && now.Before(l.expires) {
		return false
	}
	g.leases[key] = lease{token: token, expires: now.Add(g.opts.LeaseTTL)}
	return true
}

// release only drops the lease if it still belongs to token; a lease that
// expired and was taken over stays with its new owner.
func (g *MemoryGate) release(key, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.leases[key]; ok && l.token == token {
		delete(g.leases, key)
	}
}
