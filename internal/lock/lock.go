// Package lock prevents overlapping reconciliation runs for the same fuel type.
package lock

import (
	"context"
	"sync"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// Locker hands out per fuel type run locks without blocking.
type Locker interface {
	// TryLock acquires the lock for a fuel type. ok is false if another run
	// holds it. The returned unlock func must be called exactly once when ok
	// is true.
	TryLock(ctx context.Context, fuelType models.FuelType) (unlock func(), ok bool, err error)
}

// Local is an in-process Locker.
type Local struct {
	mu    sync.Mutex
	locks map[models.FuelType]*sync.Mutex
}

// NewLocal creates a new in-process Locker.
func NewLocal() *Local {
	return &Local{locks: make(map[models.FuelType]*sync.Mutex)}
}

// TryLock acquires the in-process lock for a fuel type.
func (l *Local) TryLock(_ context.Context, fuelType models.FuelType) (func(), bool, error) {
	l.mu.Lock()
	m, ok := l.locks[fuelType]
	if !ok {
		m = &sync.Mutex{}
		l.locks[fuelType] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, false, nil
	}

	var once sync.Once
	return func() { once.Do(m.Unlock) }, true, nil
}
