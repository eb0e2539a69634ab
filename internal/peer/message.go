// internal/peer/message.go
//
// Wire shapes exchanged with connected devices. Every frame is one JSON
// object: {"type": ..., "payload": ..., "senderId": ..., "senderName": ...}.
//
//   sync   server → client  payload = full game.State
//   action client → server  payload = game.Action ({"type","payload"})
//   join   client → server  payload = {"teamId": "..."}; adds the sender to a team
//   leave  client → server  removes the sender from its team
//   ping   either way       answered with pong
//   error  server → client  payload = {"error": "..."}

package peer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Lunberg88/hd-elias/internal/game"
)

type MessageType string

const (
	TypeSync   MessageType = "sync"
	TypeAction MessageType = "action"
	TypeJoin   MessageType = "join"
	TypeLeave  MessageType = "leave"
	TypePing   MessageType = "ping"
	TypePong   MessageType = "pong"
	TypeError  MessageType = "error"
)

var ErrUnknownType = errors.New("unknown-message-type")

type Message struct {
	Type       MessageType     `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	SenderID   string          `json:"senderId,omitempty"`
	SenderName string          `json:"senderName,omitempty"`
}

type joinPayload struct {
	TeamID string `json:"teamId"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func (t MessageType) valid() bool {
	switch t {
	case TypeSync, TypeAction, TypeJoin, TypeLeave, TypePing, TypePong, TypeError:
		return true
	}
	return false
}

// NewMessage builds a message, encoding payload when it is not nil.
func NewMessage(t MessageType, payload any) (Message, error) {
	m := Message{Type: t}
	if payload == nil {
		return m, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	m.Payload = raw
	return m, nil
}

// SyncMessage wraps a snapshot for broadcast.
func SyncMessage(s game.State) (Message, error) { return NewMessage(TypeSync, s) }

// Encode serializes m for one websocket frame.
func Encode(m Message) ([]byte, error) {
	if !m.Type.valid() {
		return nil, ErrUnknownType
	}
	return json.Marshal(m)
}

// Decode parses one frame and rejects unknown types.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if !m.Type.valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	return m, nil
}

// State extracts the snapshot carried by a sync message.
func (m Message) State() (game.State, error) {
	if m.Type != TypeSync {
		return game.State{}, fmt.Errorf("not a sync message: %s", m.Type)
	}
	return game.Decode(m.Payload)
}

// Action extracts the action carried by an action message.
func (m Message) Action() (game.Action, error) {
	var a game.Action
	if m.Type != TypeAction {
		return a, fmt.Errorf("not an action message: %s", m.Type)
	}
	if err := json.Unmarshal(m.Payload, &a); err != nil {
		return game.Action{}, fmt.Errorf("decode action: %w", err)
	}
	return a, nil
}
