package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownStatus is returned by Decode for a snapshot whose status is not
// one of the lifecycle phases.
var ErrUnknownStatus = errors.New("unknown status")

// Encode serializes a snapshot. The format is plain JSON with the field names
// the browser client already uses.
func Encode(s State) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return b, nil
}

// Decode parses a snapshot produced by Encode. Besides well-formed JSON only
// the status is checked; callers keep their live state when this fails.
func Decode(b []byte) (State, error) {
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	if !s.Status.Valid() {
		return State{}, fmt.Errorf("decode state: %w %q", ErrUnknownStatus, s.Status)
	}
	return s, nil
}
