// internal/httpserver/tokens.go
//
// Host tokens. Creating a room hands back an HS256 JWT naming that room;
// presenting it marks a request (or a WebSocket) as coming from the host,
// the only party allowed to submit actions or load snapshots.
//
// Tokens travel as "Authorization: Bearer <token>" or, for browsers opening
// a WebSocket, as the ?token= query parameter.

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Lunberg88/hd-elias/internal/game"
)

var ErrWrongRoom = errors.New("token issued for another room")

type hostClaims struct {
	Room string `json:"room"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies host tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign issues a host token for room.
func (t *Tokens) Sign(room string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, hostClaims{
		Room: room,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "host",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	ss, err := tok.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign host token: %w", err)
	}
	return ss, exp, nil
}

// Verify checks signature, expiry and that the token names room.
func (t *Tokens) Verify(token, room string) error {
	claims := &hostClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	if claims.Room != room {
		return ErrWrongRoom
	}
	return nil
}

// bearerOrQuery extracts a token from the Authorization header or ?token=.
func bearerOrQuery(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return r.URL.Query().Get("token")
}

// ---------------------------- auth middleware ------------------------------

type ctxHostKey struct{}

// requireHost rejects requests without a valid host token for {code}.
func (s *Server) requireHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := game.NormalizeRoomCode(chi.URLParam(r, "code"))
		tok := bearerOrQuery(r)
		if tok == "" {
			jsonError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if err := s.opts.Tokens.Verify(tok, code); err != nil {
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxHostKey{}, code)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isHost reports whether the request presented a valid host token for code,
// either through requireHost or directly.
func (s *Server) isHost(r *http.Request, code string) bool {
	if c, _ := r.Context().Value(ctxHostKey{}).(string); c == code {
		return true
	}
	tok := bearerOrQuery(r)
	return tok != "" && s.opts.Tokens.Verify(tok, code) == nil
}
