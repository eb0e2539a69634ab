package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Lunberg88/hd-elias/internal/game"
	"github.com/Lunberg88/hd-elias/internal/peer"
	"github.com/Lunberg88/hd-elias/internal/session"
	"github.com/Lunberg88/hd-elias/internal/store"
	"github.com/Lunberg88/hd-elias/internal/words"
)

const adminPassword = "letmein"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	lib, err := words.FromCategories([]game.Category{
		{ID: "food", Name: "Food", Icon: "🍎", Words: []game.Word{{Word: "apple"}, {Word: "bread"}, {Word: "cheese"}}},
		{ID: "misc", Name: "Misc", Words: []game.Word{{Word: "x"}}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rooms := session.NewManager(ctx, session.Deps{
		Catalog: func() game.Catalog { return lib.Snapshot() },
		Rules:   game.DefaultRules,
		Store:   store.NewMemoryStore(),
	})
	t.Cleanup(func() {
		cancel()
		rooms.Wait()
	})

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return New(Options{
		Context:           ctx,
		Rooms:             rooms,
		Library:           lib,
		Tokens:            NewTokens("test-secret", time.Hour),
		Rules:             game.DefaultRules,
		AdminPasswordHash: string(hash),
		ClientOrigin:      "http://localhost:5173",
	})
}

func do(t *testing.T, s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func createRoom(t *testing.T, s *Server, body string) createRes {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/rooms", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res createRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) game.State {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st, err := game.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	return st
}

func action(t *testing.T, a game.Action) string {
	t.Helper()
	b, err := json.Marshal(a)
	require.NoError(t, err)
	return string(b)
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"rooms":0}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestCreateRoom(t *testing.T) {
	s := newTestServer(t)

	res := createRoom(t, s, `{"categoryIds":["food","misc","food"],"teams":[{"id":"a","name":"A"},{"id":"b","name":"B"},{"id":"c","name":"C"}]}`)
	assert.True(t, game.ValidRoomCode(res.RoomCode))
	assert.NotEmpty(t, res.HostToken)
	assert.Equal(t, game.StatusTournamentSetup, res.State.Status)
	assert.Equal(t, []string{"food", "misc"}, res.State.TournamentCategories)
	assert.Len(t, res.State.Teams, 3)
	assert.Equal(t, res.RoomCode, res.State.RoomCode)

	rec := do(t, s, http.MethodGet, "/rooms/"+strings.ToLower(res.RoomCode), "", nil)
	assert.Equal(t, res.State, decodeState(t, rec))
}

func TestCreateRoom_NoBody(t *testing.T) {
	s := newTestServer(t)
	res := createRoom(t, s, "")
	assert.Len(t, res.State.Teams, 2)
}

func TestUnknownRoom(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/rooms/ZZZZZZ", "/rooms/bad", "/rooms/ZZZZZZ/remaining"} {
		rec := do(t, s, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "room-not-found")
	}
}

func TestActions_RequireHostToken(t *testing.T) {
	s := newTestServer(t)
	room := createRoom(t, s, `{"categoryIds":["food"]}`)
	other := createRoom(t, s, "")
	body := action(t, game.SetStatus(game.StatusCategorySelect))
	path := "/rooms/" + room.RoomCode + "/actions"

	rec := do(t, s, http.MethodPost, path, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, path, body, bearer(other.HostToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, path, body, bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, path, `{"type":"FLY"}`, bearer(room.HostToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	st := decodeState(t, do(t, s, http.MethodPost, path, body, bearer(room.HostToken)))
	assert.Equal(t, game.StatusCategorySelect, st.Status)
}

func TestPlayThroughHTTP(t *testing.T) {
	s := newTestServer(t)
	room := createRoom(t, s, `{"categoryIds":["food"]}`)
	path := "/rooms/" + room.RoomCode + "/actions"
	h := bearer(room.HostToken)

	for _, a := range []game.Action{
		game.SetStatus(game.StatusCategorySelect),
		game.SelectCategory("food"),
		game.Simple(game.ActionStartRound),
		game.Simple(game.ActionWordGuessed),
	} {
		decodeState(t, do(t, s, http.MethodPost, path, action(t, a), h))
	}

	var rem remainingRes
	rec := do(t, s, http.MethodGet, "/rooms/"+room.RoomCode+"/remaining", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rem))
	assert.Equal(t, 2, rem.Total)
	require.Len(t, rem.Categories, 1)
	assert.Equal(t, remainingRow{ID: "food", Name: "Food", Icon: "🍎", Remaining: 2, Total: 3}, rem.Categories[0])

	var turn game.TurnSummary
	rec = do(t, s, http.MethodGet, "/rooms/"+room.RoomCode+"/turn", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	assert.Equal(t, "team-1", turn.TeamID)
	assert.Len(t, turn.Guessed, 1)
	assert.Equal(t, 1, turn.Score)

	var standings game.Standings
	rec = do(t, s, http.MethodGet, "/rooms/"+room.RoomCode+"/standings", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &standings))
	require.NotNil(t, standings.Winner)
	assert.Equal(t, "team-1", standings.Winner.ID)
}

func TestJoin(t *testing.T) {
	s := newTestServer(t)
	room := createRoom(t, s, "")
	path := "/rooms/" + room.RoomCode + "/join"

	rec := do(t, s, http.MethodPost, path, `{"name":" Ann ","teamId":"team-2"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res joinRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.PlayerID)
	require.Len(t, res.State.Teams[1].Players, 1)
	assert.Equal(t, game.Player{ID: res.PlayerID, Name: "Ann"}, res.State.Teams[1].Players[0])

	rec = do(t, s, http.MethodPost, path, `{"teamId":"team-9"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoadSnapshot(t *testing.T) {
	s := newTestServer(t)
	room := createRoom(t, s, "")
	path := "/rooms/" + room.RoomCode + "/load"
	h := bearer(room.HostToken)

	rec := do(t, s, http.MethodPost, path, `{"teams": 5`, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), session.ErrBadSnapshot.Error())
	assert.Equal(t, room.State, decodeState(t, do(t, s, http.MethodGet, "/rooms/"+room.RoomCode, "", nil)))

	want := room.State
	want.Teams = []game.Team{{ID: "x", Name: "X", Score: 7, Players: []game.Player{}}}
	raw, err := game.Encode(want)
	require.NoError(t, err)
	assert.Equal(t, want, decodeState(t, do(t, s, http.MethodPost, path, string(raw), h)))

	rec = do(t, s, http.MethodPost, path, string(raw), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	foreign := want
	foreign.RoomCode = "OTHER2"
	raw, err = game.Encode(foreign)
	require.NoError(t, err)
	assert.Equal(t, room.RoomCode, decodeState(t, do(t, s, http.MethodPost, path, string(raw), h)).RoomCode)
}

func TestDeleteRoom(t *testing.T) {
	s := newTestServer(t)
	room := createRoom(t, s, "")
	other := createRoom(t, s, "")
	path := "/rooms/" + room.RoomCode

	rec := do(t, s, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, s, http.MethodDelete, path, "", bearer(other.HostToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodDelete, path, "", bearer(room.HostToken))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodDelete, path, "", bearer(room.HostToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	decodeState(t, do(t, s, http.MethodGet, "/rooms/"+other.RoomCode, "", nil))
}

func TestCategoriesAndReload(t *testing.T) {
	s := newTestServer(t)

	var rows []categoryRow
	rec := do(t, s, http.MethodGet, "/categories", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Equal(t, []categoryRow{{ID: "food", Name: "Food", Icon: "🍎", Words: 3}, {ID: "misc", Name: "Misc", Words: 1}}, rows)

	doc := `{"categories":[{"id":"films","name":"Films","words":[{"word":"Up"},{"word":"Up"},{"word":"Jaws"}]}]}`

	rec = do(t, s, http.MethodPost, "/admin/categories/reload", doc, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, s, http.MethodPost, "/admin/categories/reload", doc, map[string]string{"X-Admin-Password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, s, http.MethodPost, "/admin/categories/reload", `{"categories":[]}`, map[string]string{"X-Admin-Password": adminPassword})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/admin/categories/reload", doc, map[string]string{"X-Admin-Password": adminPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"categories":1,"words":2}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/categories", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Equal(t, []categoryRow{{ID: "films", Name: "Films", Words: 2}}, rows)
}

func TestReload_DisabledWithoutHash(t *testing.T) {
	s := newTestServer(t)
	s.opts.AdminPasswordHash = ""
	rec := do(t, s, http.MethodPost, "/admin/categories/reload", "", map[string]string{"X-Admin-Password": adminPassword})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHistory_WithoutDatabase(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/history?limit=5", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"top":[]}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/history?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/history/ABCDEF", "", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestWebSocket(t *testing.T) {
	s := newTestServer(t)
	room := createRoom(t, s, `{"categoryIds":["food"]}`)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rooms/" + room.RoomCode + "/ws"
	dial := func(query string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+query, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}
	read := func(conn *websocket.Conn) peer.Message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		m, err := peer.Decode(raw)
		require.NoError(t, err)
		return m
	}
	write := func(conn *websocket.Conn, m peer.Message) {
		raw, err := peer.Encode(m)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
	}

	host := dial("?token=" + room.HostToken)
	guest := dial("?playerId=g1&name=Guest")
	assert.Equal(t, peer.TypeSync, read(host).Type)
	assert.Equal(t, peer.TypeSync, read(guest).Type)

	msg, err := peer.NewMessage(peer.TypeAction, game.SetStatus(game.StatusCategorySelect))
	require.NoError(t, err)

	write(guest, msg)
	assert.Equal(t, peer.TypeError, read(guest).Type)

	write(host, msg)
	for _, conn := range []*websocket.Conn{host, guest} {
		m := read(conn)
		require.Equal(t, peer.TypeSync, m.Type)
		st, err := m.State()
		require.NoError(t, err)
		assert.Equal(t, game.StatusCategorySelect, st.Status)
	}

	write(guest, peer.Message{Type: peer.TypePing})
	assert.Equal(t, peer.TypePong, read(guest).Type)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t)
	room := createRoom(t, s, "")
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rooms/" + room.RoomCode + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTokens(t *testing.T) {
	t.Parallel()
	tokens := NewTokens("s3cret", time.Minute)

	tok, exp, err := tokens.Sign("ABCDEF")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)
	assert.NoError(t, tokens.Verify(tok, "ABCDEF"))
	assert.ErrorIs(t, tokens.Verify(tok, "QWERTY"), ErrWrongRoom)
	assert.Error(t, NewTokens("other", time.Minute).Verify(tok, "ABCDEF"))

	later := NewTokens("s3cret", time.Minute)
	later.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Error(t, later.Verify(tok, "ABCDEF"))
}

func TestBearerOrQuery(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/x?token=q", bytes.NewReader(nil))
	assert.Equal(t, "q", bearerOrQuery(req))
	req.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", bearerOrQuery(req))
}
