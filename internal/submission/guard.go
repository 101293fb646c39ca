package submission

import (
	"context"
	"sync"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
)

// LocalGuard is an in-process Guard
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalGuard creates an empty guard
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]bool)}
}

// Acquire takes key or fails with ErrSubmitInFlight
func (g *LocalGuard) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[key] {
		return nil, apperr.ErrSubmitInFlight
	}
	g.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}
