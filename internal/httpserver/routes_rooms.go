// internal/httpserver/routes_rooms.go
//
// Room endpoints.
//   - POST /rooms                    → new room in tournament-setup + host token
//   - GET  /rooms/{code}             → current snapshot
//   - POST /rooms/{code}/join        → player id, optionally seated on a team
//   - GET  /rooms/{code}/remaining   → unguessed words per category
//   - GET  /rooms/{code}/standings   → teams ranked, winner / tie
//   - GET  /rooms/{code}/turn        → summary of the turn in play
//   - POST /rooms/{code}/actions     → apply one action (host only)
//   - POST /rooms/{code}/load        → replace the state with a snapshot (host only)
//   - DELETE /rooms/{code}           → close the room and forget it (host only)
//   - GET  /rooms/{code}/ws          → WebSocket stream (see internal/peer)
//
// A room that is not live is restored from the store on first access.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Lunberg88/hd-elias/internal/game"
	"github.com/Lunberg88/hd-elias/internal/peer"
	"github.com/Lunberg88/hd-elias/internal/session"
)

const maxSnapshotBytes = 4 << 20

func (s *Server) mountRooms(r chi.Router) {
	r.Post("/rooms", s.handleCreateRoom)
	r.Get("/rooms/{code}", s.handleGetRoom)
	r.Post("/rooms/{code}/join", s.handleJoin)
	r.Get("/rooms/{code}/remaining", s.handleRemaining)
	r.Get("/rooms/{code}/standings", s.handleStandings)
	r.Get("/rooms/{code}/turn", s.handleTurn)
	r.With(s.requireHost).Post("/rooms/{code}/actions", s.handleAction)
	r.With(s.requireHost).Post("/rooms/{code}/load", s.handleLoad)
	r.With(s.requireHost).Delete("/rooms/{code}", s.handleDeleteRoom)
}

// room resolves {code}, writing the error response when it cannot.
func (s *Server) room(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.opts.Rooms.Get(r.Context(), chi.URLParam(r, "code"))
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
		return nil, false
	case err != nil:
		log.Error().Err(err).Str("room", chi.URLParam(r, "code")).Msg("load room")
		jsonError(w, http.StatusInternalServerError, "server_error")
		return nil, false
	}
	return sess, true
}

func dispatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrClosed) {
		jsonError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	jsonError(w, http.StatusGatewayTimeout, "timeout")
}

// ------------------------------ create/read --------------------------------

// createReq optionally seeds the setup screen.
type createReq struct {
	Teams       []game.Team `json:"teams"`
	CategoryIDs []string    `json:"categoryIds"`
}

type createRes struct {
	RoomCode  string     `json:"roomCode"`
	HostToken string     `json:"hostToken"`
	ExpiresAt time.Time  `json:"expiresAt"`
	State     game.State `json:"state"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			jsonError(w, http.StatusBadRequest, "bad_json")
			return
		}
	}

	sess, err := s.opts.Rooms.Create(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("create room")
		jsonError(w, http.StatusInternalServerError, "create_failed")
		return
	}
	st := sess.State()
	if len(req.Teams) > 0 {
		if st, err = sess.Dispatch(r.Context(), game.SetTeams(req.Teams)); err != nil {
			dispatchError(w, err)
			return
		}
	}
	if len(req.CategoryIDs) > 0 {
		if st, err = sess.Dispatch(r.Context(), game.SetTournamentCategories(req.CategoryIDs)); err != nil {
			dispatchError(w, err)
			return
		}
	}

	tok, exp, err := s.opts.Tokens.Sign(sess.Code())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	_ = writeJSON(w, http.StatusCreated, createRes{RoomCode: sess.Code(), HostToken: tok, ExpiresAt: exp, State: st})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.room(w, r)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(sess.State())
}

type joinReq struct {
	Name   string `json:"name"`
	TeamID string `json:"teamId"`
}

type joinRes struct {
	PlayerID string     `json:"playerId"`
	RoomCode string     `json:"roomCode"`
	State    game.State `json:"state"`
}

// handleJoin hands out a player id. With a teamId the player is seated too.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.room(w, r)
	if !ok {
		return
	}
	var req joinReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			jsonError(w, http.StatusBadRequest, "bad_json")
			return
		}
	}

	id := uuid.NewString()
	st := sess.State()
	if req.TeamID != "" {
		if !hasTeam(st, req.TeamID) {
			jsonError(w, http.StatusNotFound, "team-not-found")
			return
		}
		name := strings.TrimSpace(req.Name)
		var err error
		st, err = sess.Dispatch(r.Context(), game.AddPlayer(req.TeamID, game.Player{ID: id, Name: name}))
		if err != nil {
			dispatchError(w, err)
			return
		}
	}
	log.Info().Str("room", sess.Code()).Str("player", id).Str("team", req.TeamID).Msg("player joined")
	_ = json.NewEncoder(w).Encode(joinRes{PlayerID: id, RoomCode: sess.Code(), State: st})
}

func hasTeam(st game.State, id string) bool {
	for _, t := range st.Teams {
		if t.ID == id {
			return true
		}
	}
	return false
}

// ------------------------------ derived views ------------------------------

type remainingRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Remaining int    `json:"remaining"`
	Total     int    `json:"total"`
	Played    bool   `json:"played"`
}

type remainingRes struct {
	Total      int            `json:"total"`
	Categories []remainingRow `json:"categories"`
}

// handleRemaining reports word counts for the tournament categories, or for
// every category while none are chosen yet.
func (s *Server) handleRemaining(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.room(w, r)
	if !ok {
		return
	}
	st := sess.State()
	snap := s.opts.Library.Snapshot()

	ids := st.TournamentCategories
	if len(ids) == 0 {
		for _, c := range snap.Categories() {
			ids = append(ids, c.ID)
		}
	}
	played := make(map[string]bool, len(st.PlayedCategories))
	for _, id := range st.PlayedCategories {
		played[id] = true
	}

	res := remainingRes{Total: game.TotalRemaining(st, snap), Categories: make([]remainingRow, 0, len(ids))}
	for _, id := range ids {
		row := remainingRow{ID: id, Played: played[id]}
		if c, ok := snap.FindCategory(id); ok {
			row.Name, row.Icon = c.Name, c.Icon
		}
		row.Remaining, row.Total = game.Remaining(st, snap, id)
		res.Categories = append(res.Categories, row)
	}
	_ = json.NewEncoder(w).Encode(res)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.room(w, r)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(game.Rank(sess.State()))
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.room(w, r)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(game.SummarizeTurn(sess.State(), s.opts.Rules))
}

// -------------------------------- host only --------------------------------

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.room(w, r)
	if !ok {
		return
	}
	var a game.Action
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		jsonError(w, http.StatusBadRequest, "bad_action: "+err.Error())
		return
	}
	st, err := sess.Dispatch(r.Context(), a)
	if err != nil {
		dispatchError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(st)
}

// handleLoad replaces the room state with an uploaded snapshot. A snapshot
// that does not decode leaves the room untouched.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.room(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		jsonError(w, http.StatusRequestEntityTooLarge, "body_too_large")
		return
	}
	st, err := sess.LoadSnapshot(r.Context(), raw)
	if errors.Is(err, session.ErrBadSnapshot) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		dispatchError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(st)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	err := s.opts.Rooms.Remove(r.Context(), code)
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case err != nil:
		log.Error().Err(err).Str("room", code).Msg("remove room")
		jsonError(w, http.StatusInternalServerError, "server_error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// -------------------------------- websocket --------------------------------

func (s *Server) upgrader() websocket.Upgrader {
	origin := s.opts.ClientOrigin
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || origin == "*" || o == origin
		},
	}
}

// handleSocket upgrades to a WebSocket and pumps the room through it. The
// connection is the host's when it presents a valid host token.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.room(w, r)
	if !ok {
		return
	}
	who := peer.Identity{
		ID:   r.URL.Query().Get("playerId"),
		Name: r.URL.Query().Get("name"),
		Host: s.isHost(r, sess.Code()),
	}
	if who.ID == "" {
		who.ID = uuid.NewString()
	}

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("room", sess.Code()).Msg("ws upgrade failed")
		return
	}
	_ = peer.NewClient(peer.NewWebsocketConnection(conn), sess, who).Serve(s.opts.Context)
}
