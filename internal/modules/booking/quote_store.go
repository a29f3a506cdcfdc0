// README: In-memory quote store with expiry.
package booking

import (
	"context"
	"sync"
	"time"

	"fareway/internal/types"
)

type memoryQuote struct {
	quote     RideQuote
	expiresAt time.Time
}

type MemoryQuoteStore struct {
	mu     sync.Mutex
	quotes map[types.ID]memoryQuote
	ttl    time.Duration
	clock  types.Clock
}

func NewMemoryQuoteStore(ttl time.Duration, clock types.Clock) *MemoryQuoteStore {
	if clock == nil {
		clock = types.SystemClock
	}
	return &MemoryQuoteStore{quotes: make(map[types.ID]memoryQuote), ttl: ttl, clock: clock}
}

func (m *MemoryQuoteStore) Save(_ context.Context, q RideQuote) error {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(now)
	m.quotes[q.ID] = memoryQuote{quote: q, expiresAt: now.Add(m.ttl)}
	return nil
}

func (m *MemoryQuoteStore) Get(_ context.Context, id types.ID) (RideQuote, error) {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.quotes[id]
	if !ok || !now.Before(e.expiresAt) {
		delete(m.quotes, id)
		return RideQuote{}, ErrQuoteNotFound
	}
	return e.quote, nil
}

// evict drops expired entries. Callers hold mu.
func (m *MemoryQuoteStore) evict(now time.Time) {
	for id, e := range m.quotes {
		if !now.Before(e.expiresAt) {
			delete(m.quotes, id)
		}
	}
}
