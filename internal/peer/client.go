// internal/peer/client.go
//
// Client pumps one connected device against one room.
//
//   - A writer goroutine owns every write: it pushes a sync on connect and on
//     every snapshot the room publishes, forwards replies queued by the
//     reader, and pings the device so dead peers are noticed. It stops when
//     the room stops.
//   - The reader decodes frames in arrival order and hands actions to the
//     room. Only the host identity may submit actions or push a sync
//     (restoring its own snapshot); everybody may join, leave and ping.
//
// The room stays the single authority: clients never apply actions locally,
// they only receive the snapshots the room produced.

package peer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Lunberg88/hd-elias/internal/game"
)

var (
	ErrHostOnly    = errors.New("host-only")
	ErrRateLimited = errors.New("rate-limited")
)

// Inbound frames allowed per device per second, and the burst.
const (
	frameRate  = 10
	frameBurst = 20
)

// Room is the part of a session a client needs.
type Room interface {
	Code() string
	State() game.State
	Subscribe() (<-chan game.State, func())
	Dispatch(ctx context.Context, a game.Action) (game.State, error)
	Done() <-chan struct{}
}

// Identity describes who sits behind a connection.
type Identity struct {
	ID   string
	Name string
	Host bool
}

type Client struct {
	conn Conn
	room Room
	who  Identity
	out  chan Message

	limiter *rate.Limiter

	teamID string // set by join, read by leave; reader goroutine only
}

func NewClient(conn Conn, room Room, who Identity) *Client {
	return &Client{
		conn:    conn,
		room:    room,
		who:     who,
		out:     make(chan Message, 8),
		limiter: rate.NewLimiter(frameRate, frameBurst),
	}
}

// Serve runs until the device disconnects or ctx is cancelled.
func (c *Client) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe := c.room.Subscribe()
	defer unsubscribe()

	writerDone := make(chan error, 1)
	go func() {
		err := c.writeLoop(ctx, updates)
		cancel()
		writerDone <- err
	}()

	log.Debug().Str("room", c.room.Code()).Str("peer", c.who.ID).Bool("host", c.who.Host).Msg("peer connected")
	err := c.readLoop(ctx)
	cancel()
	if werr := <-writerDone; err == nil {
		err = werr
	}
	log.Debug().Err(err).Str("room", c.room.Code()).Str("peer", c.who.ID).Msg("peer disconnected")
	return err
}

// ------------------------------- reader ------------------------------------

func (c *Client) readLoop(ctx context.Context) error {
	for {
		raw, err := c.conn.Read()
		if err != nil {
			return err
		}
		if !c.limiter.Allow() {
			c.replyError(ctx, ErrRateLimited)
			continue
		}
		m, err := Decode(raw)
		if err != nil {
			c.replyError(ctx, err)
			continue
		}
		if err := c.handle(ctx, m); err != nil {
			c.replyError(ctx, err)
		}
	}
}

func (c *Client) handle(ctx context.Context, m Message) error {
	switch m.Type {
	case TypePing:
		c.send(ctx, Message{Type: TypePong})
		return nil

	case TypeAction:
		if !c.who.Host {
			return ErrHostOnly
		}
		a, err := m.Action()
		if err != nil {
			return err
		}
		_, err = c.room.Dispatch(ctx, a)
		return err

	case TypeSync:
		if !c.who.Host {
			return ErrHostOnly
		}
		st, err := m.State()
		if err != nil {
			return err
		}
		_, err = c.room.Dispatch(ctx, game.LoadState(st))
		return err

	case TypeJoin:
		var p joinPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return err
		}
		name := c.who.Name
		if m.SenderName != "" {
			name = m.SenderName
		}
		player := game.Player{ID: c.who.ID, Name: name, IsHost: c.who.Host}
		if _, err := c.room.Dispatch(ctx, game.AddPlayer(p.TeamID, player)); err != nil {
			return err
		}
		c.teamID = p.TeamID
		return nil

	case TypeLeave:
		if c.teamID == "" {
			return nil
		}
		_, err := c.room.Dispatch(ctx, game.RemovePlayer(c.teamID, c.who.ID))
		c.teamID = ""
		return err
	}
	// pong and error frames from a device carry nothing for the room.
	return nil
}

func (c *Client) replyError(ctx context.Context, err error) {
	m, _ := NewMessage(TypeError, errorPayload{Error: err.Error()})
	c.send(ctx, m)
}

func (c *Client) send(ctx context.Context, m Message) {
	select {
	case c.out <- m:
	case <-ctx.Done():
	}
}

// ------------------------------- writer ------------------------------------

func (c *Client) writeLoop(ctx context.Context, updates <-chan game.State) error {
	defer c.conn.Close("bye")

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := c.writeState(c.room.State()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.room.Done():
			return nil
		case st := <-updates:
			if err := c.writeState(st); err != nil {
				return err
			}
		case m := <-c.out:
			if err := c.write(m); err != nil {
				return err
			}
		case <-ping.C:
			if err := c.conn.Ping(); err != nil {
				return err
			}
		}
	}
}

func (c *Client) writeState(st game.State) error {
	m, err := SyncMessage(st)
	if err != nil {
		return err
	}
	return c.write(m)
}

func (c *Client) write(m Message) error {
	raw, err := Encode(m)
	if err != nil {
		return err
	}
	return c.conn.Write(raw)
}
