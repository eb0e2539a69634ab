// internal/httpserver/server.go
//
// HTTP server wiring for the Elias backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Content endpoints: GET /categories, POST /admin/categories/reload.
//   - Room endpoints: create/join/read rooms, submit actions (host only),
//     load snapshots, derived views, and the WebSocket stream under /rooms.
//   - History endpoints: GET /history, GET /history/{code}.
//
// Notes:
//   - Rooms are driven by session.Manager; handlers never touch game.State
//     directly, they dispatch actions and render the returned snapshot.
//   - The WebSocket route is mounted outside the timeout group: a socket
//     lives as long as the device stays connected.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Lunberg88/hd-elias/internal/game"
	"github.com/Lunberg88/hd-elias/internal/history"
	"github.com/Lunberg88/hd-elias/internal/session"
	"github.com/Lunberg88/hd-elias/internal/words"
)

// Options are the collaborators a Server routes to.
type Options struct {
	// Context bounds WebSocket clients; cancelling it disconnects them.
	Context context.Context

	Rooms   *session.Manager
	Library *words.Library
	History *history.Store // nil when the process runs without a database
	Tokens  *Tokens
	Rules   game.Rules

	AdminPasswordHash string
	ClientOrigin      string
}

// Server bundles the router and its collaborators.
type Server struct {
	r    *chi.Mux
	opts Options
	http *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(opts Options) *Server {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{r: chi.NewRouter(), opts: opts}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // single-origin CORS
	s.r.Use(requestLogger)   // one line per request

	// --- streaming ---
	s.r.Get("/rooms/{code}/ws", s.handleSocket)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"elias-go","endpoints":["/health","/categories","POST /rooms","/rooms/{code}","/history"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "rooms": s.opts.Rooms.Live()})
		})

		s.mountContent(r)
		s.mountRooms(r)
		s.mountHistory(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.opts.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Password")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("http")
	})
}

// ------------------------------- small util --------------------------------

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// jsonError writes {"error": msg} with the given status.
func jsonError(w http.ResponseWriter, code int, msg string) {
	_ = writeJSON(w, code, map[string]string{"error": msg})
}
