// internal/game/shuffle.go
//
// Randomness helpers. The reducer never reaches for a global source: the
// caller passes one in Env so a seeded source gives reproducible games.

package game

import (
	"math/rand/v2"
	"strings"
)

// roomCodeAlphabet omits characters that are easy to misread (I, O, 0, 1).
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const roomCodeLength = 6

// shuffleWords returns a uniformly permuted copy of words (Fisher–Yates).
// The input slice is left untouched.
func shuffleWords(r *rand.Rand, words []Word) []Word {
	out := make([]Word, len(words))
	copy(out, words)
	for i := len(out) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// NewRoomCode draws a six character room code.
func NewRoomCode(r *rand.Rand) string {
	var b strings.Builder
	b.Grow(roomCodeLength)
	for i := 0; i < roomCodeLength; i++ {
		b.WriteByte(roomCodeAlphabet[r.IntN(len(roomCodeAlphabet))])
	}
	return b.String()
}

// NormalizeRoomCode upper-cases and trims a code typed by a player.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether code could have been produced by NewRoomCode.
func ValidRoomCode(code string) bool {
	if len(code) != roomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(roomCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
