package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/downforce/internal/game"
	"github.com/lox/downforce/internal/protocol"
)

type entry struct {
	data      []byte
	revision  uint64
	expiresAt time.Time
}

// MemoryStore keeps encoded states in process memory. Values are stored as
// msgpack so no caller ever shares maps or slices with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[string]entry
	clock  quartz.Clock
	logger zerolog.Logger
}

// NewMemoryStore creates an empty store using clock for expiry.
func NewMemoryStore(clock quartz.Clock, logger zerolog.Logger) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryStore{
		rooms:  make(map[string]entry),
		clock:  clock,
		logger: logger.With().Str("component", "memory_store").Logger(),
	}
}

// live returns the entry for code if it has not expired. Callers hold mu.
func (m *MemoryStore) live(code string) (entry, bool) {
	e, ok := m.rooms[code]
	if !ok || !m.clock.Now().Before(e.expiresAt) {
		return entry{}, false
	}
	return e, true
}

func (m *MemoryStore) Get(ctx context.Context, code string) (*game.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	e, ok := m.live(code)
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	s, err := protocol.UnmarshalState(e.data)
	if err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	s.Revision = e.revision
	return s, nil
}

func (m *MemoryStore) Create(ctx context.Context, code string, s *game.State, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(code); ok {
		return fmt.Errorf("%w: %s", ErrExists, code)
	}
	return m.put(code, s, 1, ttl)
}

func (m *MemoryStore) Update(ctx context.Context, code string, s *game.State, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if e.revision != s.Revision {
		return fmt.Errorf("%w: %s at %d, have %d", ErrConflict, code, e.revision, s.Revision)
	}
	return m.put(code, s, e.revision+1, ttl)
}

// put encodes s at revision and stores it. Callers hold mu for writing.
func (m *MemoryStore) put(code string, s *game.State, revision uint64, ttl time.Duration) error {
	data, err := encodeAt(s, revision)
	if err != nil {
		return err
	}
	m.rooms[code] = entry{data: data, revision: revision, expiresAt: m.clock.Now().Add(ttlOrDefault(ttl))}
	s.Revision = revision
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.rooms, code)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteAt(ctx context.Context, code string, revision uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if e.revision != revision {
		return fmt.Errorf("%w: %s at %d, have %d", ErrConflict, code, e.revision, revision)
	}
	delete(m.rooms, code)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	_, ok := m.live(code)
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryStore) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for code, e := range m.rooms {
		if !now.Before(e.expiresAt) {
			delete(m.rooms, code)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug().Int("removed", removed).Int("remaining", len(m.rooms)).Msg("Swept expired rooms")
	}
	return removed, nil
}

// Len returns the number of stored rooms, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func (m *MemoryStore) Close() error { return nil }
