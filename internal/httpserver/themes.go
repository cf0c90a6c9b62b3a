// internal/httpserver/themes.go
//
// HTTP routes for the theme catalog:
//   - GET /themes         → list theme names
//   - GET /themes/{name}  → one theme with its cards
//   - PUT /themes/{name}  → create or replace a theme (admin only)

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/memorygame/server/internal/catalog"
	"github.com/memorygame/server/internal/game"
)

func (s *Server) mountThemes(r chi.Router) {
	r.Route("/themes", func(r chi.Router) {
		r.Get("/", s.handleListThemes)
		r.Get("/{name}", s.handleGetTheme)
		r.With(s.requireAdmin).Put("/{name}", s.handlePutTheme)
	})
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	names, err := s.themes.Names(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list themes")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"themes": names})
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	t, err := s.themes.Theme(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, catalog.ErrThemeNotFound) {
		writeError(w, http.StatusNotFound, "theme_not_found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("get theme")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type putThemeReq struct {
	Cards []game.CardDefinition `json:"cards"`
}

func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var req putThemeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	t := catalog.Theme{Name: chi.URLParam(r, "name"), Cards: req.Cards}
	if err := s.themes.PutTheme(r.Context(), t); err != nil {
		if errors.Is(err, catalog.ErrInvalidTheme) {
			writeError(w, http.StatusBadRequest, errorCode(err))
			return
		}
		log.Error().Err(err).Str("theme", t.Name).Msg("put theme")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	log.Info().Str("theme", t.Name).Int("cards", len(t.Cards)).Msg("theme saved")
	writeJSON(w, http.StatusOK, t)
}
