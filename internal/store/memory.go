// internal/store/memory.go
//
// In-memory registry of live memory games.
//
// Characteristics:
//   - Stores *game.Game objects keyed by Game.ID().
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Nothing survives a restart; games are process-local by design of the service.
//   - Delete closes the game so its pending resolution timer and observers are released.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/memorygame/server/internal/game"
)

// ErrNotFound is returned for unknown game ids.
var ErrNotFound = errors.New("game not found")

// Store defines the registry interface for live games.
type Store interface {
	// Save adds or replaces a game.
	Save(ctx context.Context, g *game.Game) error

	// Get retrieves a game by ID.
	Get(ctx context.Context, id string) (*game.Game, error)

	// Delete removes and closes a game.
	Delete(ctx context.Context, id string) error

	// Len reports how many games are live.
	Len() int
}

type memStore struct {
	mu    sync.RWMutex          // guards games map
	games map[string]*game.Game // keyed by Game.ID()
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memStore{games: make(map[string]*game.Game)}
}

func (m *memStore) Save(ctx context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.games[g.ID()]; ok && old != g {
		old.Close()
	}
	m.games[g.ID()] = g
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.games[id]; ok {
		return g, nil
	}
	return nil, ErrNotFound
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	g, ok := m.games[id]
	delete(m.games, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	g.Close()
	return nil
}

func (m *memStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}
