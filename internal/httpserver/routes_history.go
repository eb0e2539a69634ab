// internal/httpserver/routes_history.go
//
// HTTP routes for finished tournaments.
//   - GET /history?limit=N → best team results across all tournaments (default 20)
//   - GET /history/{code}  → final lines of every tournament played in a room
//
// Without a database (STORE=memory) both return empty lists.

package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Lunberg88/hd-elias/internal/game"
	"github.com/Lunberg88/hd-elias/internal/history"
)

const maxHistoryLimit = 100

// lbRes is returned by /history.
type lbRes struct {
	Top []history.Result `json:"top"`
}

func (s *Server) mountHistory(r chi.Router) {
	r.Get("/history", s.handleLeaderboard)
	r.Get("/history/{code}", s.handleRoomHistory)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "bad_limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	if s.opts.History == nil {
		_ = json.NewEncoder(w).Encode(lbRes{Top: []history.Result{}})
		return
	}
	rows, err := s.opts.History.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		jsonError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if rows == nil {
		rows = []history.Result{}
	}
	_ = json.NewEncoder(w).Encode(lbRes{Top: rows})
}

func (s *Server) handleRoomHistory(w http.ResponseWriter, r *http.Request) {
	code := game.NormalizeRoomCode(chi.URLParam(r, "code"))
	if !game.ValidRoomCode(code) {
		jsonError(w, http.StatusNotFound, "room-not-found")
		return
	}
	if s.opts.History == nil {
		_ = json.NewEncoder(w).Encode([]history.Result{})
		return
	}
	rows, err := s.opts.History.ForRoom(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Str("room", code).Msg("room history")
		jsonError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if rows == nil {
		rows = []history.Result{}
	}
	_ = json.NewEncoder(w).Encode(rows)
}
