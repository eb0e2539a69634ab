package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Lunberg88/hd-elias/internal/game"
	"github.com/Lunberg88/hd-elias/internal/store"
)

const maxCodeAttempts = 32

// Manager is the registry of live rooms. Rooms that are not live are
// restored from the store on first access; idle rooms drop out again.
type Manager struct {
	ctx  context.Context
	deps Deps

	mu    sync.Mutex // guards rooms, codes
	rooms map[string]liveRoom
	codes *rand.Rand

	wg sync.WaitGroup
}

// NewManager creates a registry whose sessions live until ctx is cancelled.
func NewManager(ctx context.Context, deps Deps) *Manager {
	deps = deps.withDefaults()
	return &Manager{
		ctx:   ctx,
		deps:  deps,
		rooms: make(map[string]liveRoom),
		codes: deps.NewRand(),
	}
}

// Create opens a new room in tournament-setup with a fresh room code.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var code string
	for i := 0; ; i++ {
		if i == maxCodeAttempts {
			return nil, errors.New("could not allocate a room code")
		}
		code = game.NewRoomCode(m.codes)
		if _, live := m.rooms[code]; live {
			continue
		}
		if _, err := m.deps.Store.Load(ctx, code); errors.Is(err, store.ErrNotFound) {
			break
		}
	}

	env := game.Env{Rules: m.deps.Rules}
	initial := game.ApplyAll(game.Default(m.deps.Rules), env,
		game.SetRoomCode(code),
		game.SetStatus(game.StatusTournamentSetup),
	)
	if err := m.deps.Store.Save(ctx, code, initial); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	log.Info().Str("room", code).Msg("room created")
	return m.startLocked(code, initial), nil
}

// Get returns a live room, restoring it from the store when needed.
func (m *Manager) Get(ctx context.Context, code string) (*Session, error) {
	code = game.NormalizeRoomCode(code)
	if !game.ValidRoomCode(code) {
		return nil, ErrRoomNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if lr, ok := m.rooms[code]; ok && lr.running() {
		return lr.s, nil
	}

	st, err := m.deps.Store.Load(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("restore room %s: %w", code, err)
	}
	log.Info().Str("room", code).Str("status", string(st.Status)).Msg("room restored")
	return m.startLocked(code, st), nil
}

// Live reports how many rooms currently have a running session.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Remove stops a room and deletes its snapshot. Connected peers see the
// session end.
func (m *Manager) Remove(ctx context.Context, code string) error {
	code = game.NormalizeRoomCode(code)
	if !game.ValidRoomCode(code) {
		return ErrRoomNotFound
	}

	m.mu.Lock()
	lr, live := m.rooms[code]
	delete(m.rooms, code)
	m.mu.Unlock()

	if live {
		lr.cancel()
		<-lr.s.Done()
	} else if _, err := m.deps.Store.Load(ctx, code); errors.Is(err, store.ErrNotFound) {
		return ErrRoomNotFound
	}
	if err := m.deps.Store.Delete(ctx, code); err != nil {
		return fmt.Errorf("remove room %s: %w", code, err)
	}
	log.Info().Str("room", code).Msg("room removed")
	return nil
}

// Wait blocks until every session goroutine has exited.
func (m *Manager) Wait() { m.wg.Wait() }

type liveRoom struct {
	s      *Session
	cancel context.CancelFunc
}

func (lr liveRoom) running() bool {
	select {
	case <-lr.s.Done():
		return false
	default:
		return true
	}
}

func (m *Manager) startLocked(code string, st game.State) *Session {
	ctx, cancel := context.WithCancel(m.ctx)
	s := New(code, st, m.deps)
	m.rooms[code] = liveRoom{s: s, cancel: cancel}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		err := s.Run(ctx)
		m.mu.Lock()
		// A restore may already have replaced this session.
		if lr, ok := m.rooms[code]; ok && lr.s == s {
			delete(m.rooms, code)
		}
		m.mu.Unlock()
		log.Debug().Err(err).Str("room", code).Msg("room stopped")
	}()
	return s
}
