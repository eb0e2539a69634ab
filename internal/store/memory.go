// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used for ephemeral rooms in development/testing or when durability is not
// required.
//
// Characteristics:
//   - Keeps encoded snapshots keyed by room code, so a Load always hands back
//     a fresh value and never aliases the live state.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/Lunberg88/hd-elias/internal/game"
)

// ErrNotFound is returned by Load when nothing was saved under a room code.
var ErrNotFound = errors.New("store: not found")

// Store persists whole-state snapshots. The format is opaque to callers; the
// only promise is that Load(Save(s)) reproduces s.
type Store interface {
	// Save persists or replaces the snapshot for a room.
	Save(ctx context.Context, code string, s game.State) error

	// Load returns the last snapshot for a room, ErrNotFound if there is none,
	// or a decode error if the stored blob is corrupt.
	Load(ctx context.Context, code string) (game.State, error)

	// Delete forgets a room. Deleting a missing room is not an error.
	Delete(ctx context.Context, code string) error
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex      // guards blobs
	blobs map[string][]byte // keyed by room code
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{blobs: make(map[string][]byte)}
}

func (m *memory) Save(ctx context.Context, code string, s game.State) error {
	b, err := game.Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[code] = b
	return nil
}

func (m *memory) Load(ctx context.Context, code string) (game.State, error) {
	m.mu.RLock()
	b, ok := m.blobs[code]
	m.mu.RUnlock()
	if !ok {
		return game.State{}, ErrNotFound
	}
	return game.Decode(b)
}

func (m *memory) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, code)
	return nil
}
