// README: In-memory ride ledger for local runs and tests.
package ride

import (
	"context"
	"sync"
	"time"

	"fareway/internal/types"
)

type MemoryStore struct {
	mu    sync.RWMutex
	rides map[types.ID][]Ride
	clock types.Clock
	loc   *time.Location
}

func NewMemoryStore(clock types.Clock, loc *time.Location) *MemoryStore {
	if clock == nil {
		clock = types.SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	return &MemoryStore{rides: make(map[types.ID][]Ride), clock: clock, loc: loc}
}

func (m *MemoryStore) Append(_ context.Context, r Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.UserID] = append(m.rides[r.UserID], clone(r))
	return nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID types.ID) ([]Ride, error) {
	m.mu.RLock()
	out := make([]Ride, 0, len(m.rides[userID]))
	for _, r := range m.rides[userID] {
		out = append(out, clone(r))
	}
	m.mu.RUnlock()

	Sort(out, SortByDate, true)
	return out, nil
}

func (m *MemoryStore) HasRideToday(_ context.Context, userID types.ID) (bool, error) {
	start, end := DayBounds(m.clock(), m.loc)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rides[userID] {
		if !r.Date.Before(start) && r.Date.Before(end) {
			return true, nil
		}
	}
	return false, nil
}
