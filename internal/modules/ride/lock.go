// README: Per-user booking lock held across the check-then-append sequence.
package ride

import (
	"context"
	"sync"

	"fareway/internal/types"
)

// KeyedMutex serializes callers that share a key. Different keys never block
// each other. Entries are dropped once nobody holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[types.ID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[types.ID]*slot)}
}

// Lock blocks until the key is free or ctx is done. The returned func
// releases the key and must be called exactly once.
func (k *KeyedMutex) Lock(ctx context.Context, key types.ID) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(key, s, true) })
	}, nil
}

func (k *KeyedMutex) release(key types.ID, s *slot, held bool) {
	if held {
		<-s.ch
	}
	k.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}
