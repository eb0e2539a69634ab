// internal/httpserver/routes_content.go
//
// Word content endpoints.
//   - GET  /categories                → categories with word counts
//   - POST /admin/categories/reload   → re-read WORDS_FILE, or replace the
//                                       content with the uploaded document
//
// The admin route is guarded by a bcrypt hash of the admin password
// (ADMIN_PASSWORD_HASH); with no hash configured it is disabled. Rooms pick
// up new content on their next transition; words already queued for a turn
// stay as they are.

package httpserver

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/Lunberg88/hd-elias/internal/words"
)

const maxContentBytes = 1 << 20

type categoryRow struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Words int    `json:"words"`
}

type contentStats struct {
	Categories int `json:"categories"`
	Words      int `json:"words"`
}

func (s *Server) mountContent(r chi.Router) {
	r.Get("/categories", s.handleCategories)
	r.Post("/admin/categories/reload", s.handleReload)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := s.opts.Library.Snapshot().Categories()
	out := make([]categoryRow, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryRow{ID: c.ID, Name: c.Name, Icon: c.Icon, Words: len(c.Words)})
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.opts.AdminPasswordHash == "" {
		jsonError(w, http.StatusForbidden, "admin_disabled")
		return
	}
	if !checkPassword(s.opts.AdminPasswordHash, r.Header.Get("X-Admin-Password")) {
		jsonError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxContentBytes))
	if err != nil {
		jsonError(w, http.StatusRequestEntityTooLarge, "body_too_large")
		return
	}

	if len(body) == 0 {
		err = s.opts.Library.Reload()
	} else {
		cats, perr := words.Parse(body)
		if perr != nil {
			jsonError(w, http.StatusBadRequest, perr.Error())
			return
		}
		err = s.opts.Library.Replace(cats)
	}
	if err != nil {
		log.Warn().Err(err).Msg("content reload rejected")
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	nc, nw := s.opts.Library.Snapshot().Stats()
	log.Info().Int("categories", nc).Int("words", nw).Msg("content replaced by admin")
	_ = json.NewEncoder(w).Encode(contentStats{Categories: nc, Words: nw})
}

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
