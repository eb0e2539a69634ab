package peer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Lunberg88/hd-elias/internal/game"
	"github.com/Lunberg88/hd-elias/internal/session"
)

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte), out: make(chan []byte, 64), closed: make(chan struct{})}
}

func (f *fakeConn) Read() ([]byte, error) {
	select {
	case b := <-f.in:
		return b, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeConn) Write(data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	f.out <- data
	return nil
}

func (f *fakeConn) Ping() error { return nil }

func (f *fakeConn) Close(string) { f.once.Do(func() { close(f.closed) }) }

func (f *fakeConn) send(t *testing.T, m Message) {
	t.Helper()
	raw, err := Encode(m)
	require.NoError(t, err)
	f.in <- raw
}

// waitFor returns the first outgoing frame that satisfies match.
func (f *fakeConn) waitFor(t *testing.T, match func(Message) bool) Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-f.out:
			m, err := Decode(raw)
			require.NoError(t, err)
			if match(m) {
				return m
			}
		case <-deadline:
			t.Fatal("timed out waiting for frame")
			return Message{}
		}
	}
}

func ofType(t MessageType) func(Message) bool {
	return func(m Message) bool { return m.Type == t }
}

func syncWhere(t *testing.T, pred func(game.State) bool) func(Message) bool {
	return func(m Message) bool {
		if m.Type != TypeSync {
			return false
		}
		st, err := m.State()
		require.NoError(t, err)
		return pred(st)
	}
}

func startRoom(t *testing.T) *session.Session {
	t.Helper()
	room := session.New("ABCDEF", game.Default(game.DefaultRules), session.Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = room.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-room.Done()
	})
	return room
}

func connect(t *testing.T, room Room, who Identity) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = NewClient(conn, room, who).Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return conn
}

func TestClient_SyncOnConnect(t *testing.T) {
	room := startRoom(t)
	conn := connect(t, room, Identity{ID: "p1"})

	m := conn.waitFor(t, ofType(TypeSync))
	st, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, room.State(), st)
}

func TestClient_PingPong(t *testing.T) {
	room := startRoom(t)
	conn := connect(t, room, Identity{ID: "p1"})

	conn.send(t, Message{Type: TypePing})
	conn.waitFor(t, ofType(TypePong))
}

func TestClient_OnlyHostDispatches(t *testing.T) {
	room := startRoom(t)
	guest := connect(t, room, Identity{ID: "guest"})
	host := connect(t, room, Identity{ID: "host", Host: true})

	action, err := NewMessage(TypeAction, game.SetStatus(game.StatusTournamentSetup))
	require.NoError(t, err)

	guest.send(t, action)
	m := guest.waitFor(t, ofType(TypeError))
	assert.Contains(t, string(m.Payload), ErrHostOnly.Error())
	assert.Equal(t, game.StatusWaiting, room.State().Status)

	host.send(t, action)
	host.waitFor(t, syncWhere(t, func(s game.State) bool { return s.Status == game.StatusTournamentSetup }))
	guest.waitFor(t, syncWhere(t, func(s game.State) bool { return s.Status == game.StatusTournamentSetup }))
}

func TestClient_HostSyncRestoresSnapshot(t *testing.T) {
	room := startRoom(t)
	guest := connect(t, room, Identity{ID: "guest"})
	host := connect(t, room, Identity{ID: "host", Host: true})

	snap := room.State()
	snap.Teams = []game.Team{{ID: "solo", Name: "Solo", Score: 4}}
	snap.RoomCode = "ZZZZZZ"
	frame, err := SyncMessage(snap)
	require.NoError(t, err)

	guest.send(t, frame)
	m := guest.waitFor(t, ofType(TypeError))
	assert.Contains(t, string(m.Payload), ErrHostOnly.Error())

	host.send(t, frame)
	guest.waitFor(t, syncWhere(t, func(s game.State) bool {
		return len(s.Teams) == 1 && s.Teams[0].Score == 4 && s.RoomCode == "ABCDEF"
	}))
}

func TestClient_ClosesWhenRoomStops(t *testing.T) {
	room := session.New("ABCDEF", game.Default(game.DefaultRules), session.Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = room.Run(ctx) }()

	conn := connect(t, room, Identity{ID: "p1"})
	conn.waitFor(t, ofType(TypeSync))

	cancel()
	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection left open after the room stopped")
	}
}

func TestClient_JoinAndLeave(t *testing.T) {
	room := startRoom(t)
	conn := connect(t, room, Identity{ID: "p7", Name: "Ann"})

	join, err := NewMessage(TypeJoin, joinPayload{TeamID: "team-2"})
	require.NoError(t, err)
	join.SenderName = "Anna"
	conn.send(t, join)

	conn.waitFor(t, syncWhere(t, func(s game.State) bool {
		return len(s.Teams[1].Players) == 1 && s.Teams[1].Players[0] == game.Player{ID: "p7", Name: "Anna"}
	}))

	conn.send(t, Message{Type: TypeLeave})
	conn.waitFor(t, syncWhere(t, func(s game.State) bool { return len(s.Teams[1].Players) == 0 }))
}

func TestClient_BadFrame(t *testing.T) {
	room := startRoom(t)
	conn := connect(t, room, Identity{ID: "p1", Host: true})

	conn.in <- []byte(`{"type":"shout"}`)
	conn.waitFor(t, ofType(TypeError))

	conn.in <- []byte(`not json`)
	conn.waitFor(t, ofType(TypeError))
}

func TestClient_RateLimited(t *testing.T) {
	room := startRoom(t)
	conn := newFakeConn()
	client := NewClient(conn, room, Identity{ID: "p1"})
	client.limiter = rate.NewLimiter(0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Serve(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	conn.send(t, Message{Type: TypePing})
	conn.waitFor(t, ofType(TypePong))

	conn.send(t, Message{Type: TypePing})
	m := conn.waitFor(t, func(m Message) bool { return m.Type == TypeError || m.Type == TypePong })
	require.Equal(t, TypeError, m.Type)
	assert.Contains(t, string(m.Payload), ErrRateLimited.Error())
}

func TestMessage_Decode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc    string
		raw     string
		want    MessageType
		wantErr bool
	}{
		{desc: "ping", raw: `{"type":"ping"}`, want: TypePing},
		{desc: "action with sender", raw: `{"type":"action","payload":{"type":"PAUSE_TIMER"},"senderId":"a"}`, want: TypeAction},
		{desc: "unknown type", raw: `{"type":"hello"}`, wantErr: true},
		{desc: "missing type", raw: `{}`, wantErr: true},
		{desc: "garbage", raw: `{`, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			m, err := Decode([]byte(tc.raw))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.Type)
		})
	}
}

func TestMessage_Payloads(t *testing.T) {
	t.Parallel()

	m, err := NewMessage(TypeAction, game.SelectCategory("food"))
	require.NoError(t, err)
	a, err := m.Action()
	require.NoError(t, err)
	assert.Equal(t, game.SelectCategory("food"), a)

	_, err = m.State()
	assert.Error(t, err)

	st := game.Default(game.DefaultRules)
	st.RoomCode = "QWERTY"
	m, err = SyncMessage(st)
	require.NoError(t, err)
	raw, err := Encode(m)
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.JSONEq(t, `"sync"`, string(generic["type"]))

	back, err := Decode(raw)
	require.NoError(t, err)
	got, err := back.State()
	require.NoError(t, err)
	assert.Equal(t, st, got)

	_, err = Encode(Message{Type: "nope"})
	assert.ErrorIs(t, err, ErrUnknownType)
}
