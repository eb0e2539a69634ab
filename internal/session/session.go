// internal/session/session.go
//
// Session drives one room. It is the only writer of that room's game.State:
// user actions and timer ticks are funnelled through one goroutine (Run), so
// transitions are applied strictly in arrival order and never overlap.
//
// After every transition that changes the state the session
//   - persists the snapshot (best effort, failures are logged),
//   - publishes it to subscribers (latest snapshot wins),
//   - starts or stops its ticker to match state.IsTimerRunning,
//   - fires OnFinish once when the tournament ends.
//
// With Deps.IdleTimeout set, a session that has neither subscribers nor
// actions for that long stops on its own and leaves the Manager. Its last
// snapshot stays in the store.

package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Lunberg88/hd-elias/internal/game"
	"github.com/Lunberg88/hd-elias/internal/store"
)

var (
	ErrRoomNotFound = errors.New("room-not-found")
	ErrClosed       = errors.New("room-closed")
	ErrBadSnapshot  = errors.New("bad-snapshot")
	ErrIdle         = errors.New("room-idle")
)

// Deps are the collaborators shared by every session of a Manager.
type Deps struct {
	// Catalog returns the content version to use for the next transition.
	Catalog   func() game.Catalog
	Rules     game.Rules
	Store     store.Store
	Now       func() time.Time
	NewRand   func() *rand.Rand
	NewTicker func(time.Duration) Ticker
	// OnFinish is called from the session goroutine when a room reaches tournament-end.
	OnFinish func(ctx context.Context, s game.State)
	// IdleTimeout stops an unwatched room after that long without actions.
	// Zero keeps rooms until the Manager's context ends.
	IdleTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Rules == (game.Rules{}) {
		d.Rules = game.DefaultRules
	}
	if d.Store == nil {
		d.Store = store.NewMemoryStore()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewRand == nil {
		d.NewRand = NewRand
	}
	if d.NewTicker == nil {
		d.NewTicker = NewTicker
	}
	return d
}

type request struct {
	action game.Action
	reply  chan game.State
}

// Session owns one room's state.
type Session struct {
	code string
	deps Deps
	rng  *rand.Rand // only touched by the Run goroutine

	requests chan request
	done     chan struct{}

	mu     sync.RWMutex // guards state, subs
	state  game.State
	subs   map[int]chan game.State
	nextID int

	ticker     Ticker
	lastActive time.Time // only touched by the Run goroutine
}

// New prepares a session around an initial state. Call Run to start it.
func New(code string, initial game.State, deps Deps) *Session {
	deps = deps.withDefaults()
	return &Session{
		code:     code,
		deps:     deps,
		rng:      deps.NewRand(),
		requests: make(chan request),
		done:     make(chan struct{}),
		state:    initial,
		subs:     make(map[int]chan game.State),
	}
}

// Code returns the room code.
func (s *Session) Code() string { return s.code }

// State returns the latest snapshot.
func (s *Session) State() game.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Env returns the environment a transition would see right now.
func (s *Session) Env() game.Env {
	env := game.Env{Rules: s.deps.Rules, Rand: s.rng, Now: s.deps.Now}
	if s.deps.Catalog != nil {
		env.Catalog = s.deps.Catalog()
	}
	return env
}

// Run processes actions and ticks until ctx is cancelled, or until the room
// has been idle for Deps.IdleTimeout, in which case it returns ErrIdle.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.stopTicker()

	var sweep <-chan time.Time
	if s.deps.IdleTimeout > 0 {
		t := s.deps.NewTicker(idleSweepInterval(s.deps.IdleTimeout))
		defer t.Stop()
		sweep = t.C()
	}
	s.lastActive = s.deps.Now()
	s.syncTicker()

	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.requests:
			s.lastActive = s.deps.Now()
			req.reply <- s.apply(ctx, req.action)
		case <-tick:
			s.apply(ctx, game.Simple(game.ActionTickTimer))
		case <-sweep:
			if s.idle() {
				log.Info().Str("room", s.code).Msg("room idle, stopping")
				return ErrIdle
			}
		}
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Dispatch queues an action and waits for the resulting state.
func (s *Session) Dispatch(ctx context.Context, a game.Action) (game.State, error) {
	reply := make(chan game.State, 1)
	select {
	case s.requests <- request{action: a, reply: reply}:
	case <-s.done:
		return game.State{}, ErrClosed
	case <-ctx.Done():
		return game.State{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.done:
		return game.State{}, ErrClosed
	case <-ctx.Done():
		return game.State{}, ctx.Err()
	}
}

// LoadSnapshot replaces the live state with a serialized one. A blob that
// does not decode leaves the room untouched and reports ErrBadSnapshot.
func (s *Session) LoadSnapshot(ctx context.Context, raw []byte) (game.State, error) {
	st, err := game.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Str("room", s.code).Msg("rejecting snapshot")
		return s.State(), ErrBadSnapshot
	}
	return s.Dispatch(ctx, game.LoadState(st))
}

// Subscribe returns a channel that receives every new snapshot. Slow readers
// only ever see the most recent one. Call cancel to unsubscribe.
func (s *Session) Subscribe() (<-chan game.State, func()) {
	ch := make(chan game.State, 1)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// ------------------------------- internals ---------------------------------

func idleSweepInterval(timeout time.Duration) time.Duration {
	if d := timeout / 4; d >= time.Second {
		return d
	}
	return time.Second
}

func (s *Session) idle() bool {
	s.mu.RLock()
	watched := len(s.subs) > 0
	s.mu.RUnlock()
	if watched {
		s.lastActive = s.deps.Now()
		return false
	}
	return s.deps.Now().Sub(s.lastActive) >= s.deps.IdleTimeout
}

func (s *Session) apply(ctx context.Context, a game.Action) game.State {
	if a.Type == game.ActionLoadState && a.State != nil {
		// A snapshot taken from another room still belongs to this one.
		st := *a.State
		st.RoomCode = s.code
		a.State = &st
	}
	prev := s.State()
	next := game.Apply(prev, a, s.Env())
	if reflect.DeepEqual(prev, next) {
		return prev
	}

	s.mu.Lock()
	s.state = next
	subs := make([]chan game.State, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	if prev.Status != next.Status {
		log.Debug().Str("room", s.code).Str("action", string(a.Type)).
			Str("from", string(prev.Status)).Str("to", string(next.Status)).Msg("status changed")
	}

	if err := s.deps.Store.Save(ctx, s.code, next); err != nil {
		log.Error().Err(err).Str("room", s.code).Msg("save snapshot")
	}
	for _, ch := range subs {
		publish(ch, next)
	}
	s.syncTicker()

	if prev.Status != game.StatusTournamentEnd && next.Status == game.StatusTournamentEnd && s.deps.OnFinish != nil {
		s.deps.OnFinish(ctx, next)
	}
	return next
}

// publish replaces whatever the subscriber has not read yet with st.
// Only the Run goroutine sends, so the second send cannot block.
func publish(ch chan game.State, st game.State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- st
}

func (s *Session) syncTicker() {
	st := s.State()
	running := st.Status == game.StatusPlaying && st.IsTimerRunning
	switch {
	case running && s.ticker == nil:
		s.ticker = s.deps.NewTicker(time.Second)
	case !running && s.ticker != nil:
		s.stopTicker()
	}
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}
