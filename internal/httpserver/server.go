// internal/httpserver/server.go
//
// HTTP server wiring for the memory game backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", theme catalog reads.
//   - Game endpoints (game token required): state, restart, flip, delete, WebSocket stream.
//   - Admin-only theme writes (HTTP basic auth checked against a bcrypt hash).
//
// Notes:
//   - POST /games issues the game token; every other game route needs it.
//   - The WebSocket route sits outside the timeout middleware because it is long-lived.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/memorygame/server/internal/catalog"
	"github.com/memorygame/server/internal/config"
	"github.com/memorygame/server/internal/game"
	"github.com/memorygame/server/internal/store"
)

const defaultTheme = "animals"

// Server bundles router, live game store, and theme catalog.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	store    store.Store
	themes   *catalog.Store
	gameOpts []game.Option
}

// New constructs a Server, installs middleware, and registers routes.
// gameOpts are appended to every game the server creates.
func New(cfg config.Config, st store.Store, themes *catalog.Store, gameOpts ...game.Option) *Server {
	s := &Server{r: chi.NewRouter(), cfg: cfg, store: st, themes: themes, gameOpts: gameOpts}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(requestLogger)
	s.r.Use(s.cors)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"memory-go","endpoints":["/health","/themes","POST /games","/games/{id}"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true,"games":` + strconv.Itoa(s.store.Len()) + `}`))
		})

		s.mountThemes(r)

		r.Post("/games", s.handleNewGame)
		r.Route("/games/{id}", func(r chi.Router) {
			r.Use(s.requireGame)
			r.Get("/", s.handleState)
			r.Post("/start", s.handleStart)
			r.Post("/flip", s.handleFlip)
			r.Delete("/", s.handleDelete)
		})
	})

	s.r.With(s.requireGame).Get("/games/{id}/ws", s.handleWatch)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Handler exposes the router (useful for tests and custom http.Server setups).
func (s *Server) Handler() http.Handler { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one debug line per request.
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
			Str("reqId", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}

// ------------------------------ GAME ---------------------------------------

// newGameReq/Res payloads for POST /games.
type newGameReq struct {
	Theme string                `json:"theme"` // catalog theme, default "animals"
	Cards []game.CardDefinition `json:"cards"` // explicit definitions, override theme
}
type newGameRes struct {
	GameID string        `json:"gameId"`
	Token  string        `json:"token"`
	State  game.Snapshot `json:"state"`
}

// handleNewGame builds a game from a theme (or explicit cards), registers it,
// and returns the token that grants access to it.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	defs := req.Cards
	if len(defs) == 0 {
		name := req.Theme
		if name == "" {
			name = defaultTheme
		}
		t, err := s.themes.Theme(r.Context(), name)
		if errors.Is(err, catalog.ErrThemeNotFound) {
			writeError(w, http.StatusNotFound, "theme_not_found")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("theme", name).Msg("load theme")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defs = t.Cards
	}

	opts := append([]game.Option{game.WithDelay(s.cfg.ResolveDelay)}, s.gameOpts...)
	g, err := game.New(defs, opts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorCode(err))
		return
	}
	if err := s.store.Save(r.Context(), g); err != nil {
		log.Error().Err(err).Msg("save game")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	tok, _, err := s.signGameToken(g.ID())
	if err != nil {
		log.Error().Err(err).Msg("sign token")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}

	log.Info().Str("gameId", g.ID()).Int("pairs", len(defs)).Msg("game created")
	writeJSON(w, http.StatusCreated, newGameRes{GameID: g.ID(), Token: tok, State: g.Snapshot()})
}

// handleState returns the current snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gameFrom(r).Snapshot())
}

// handleStart deals a fresh deck for the same definitions.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	g := gameFrom(r)
	g.StartGame()
	writeJSON(w, http.StatusOK, g.Snapshot())
}

// flipReq/Res payloads for POST /games/{id}/flip.
type flipReq struct {
	Index *int `json:"index"`
}
type flipRes struct {
	Accepted bool          `json:"accepted"` // false when the flip was ignored
	State    game.Snapshot `json:"state"`
}

func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request) {
	var req flipReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	g := gameFrom(r)
	ok, err := g.FlipCard(*req.Index)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorCode(err))
		return
	}
	writeJSON(w, http.StatusOK, flipRes{Accepted: ok, State: g.Snapshot()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), gameFrom(r).ID()); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ------------------------------- helpers -----------------------------------

// errorCode maps domain errors to stable JSON error codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, game.ErrNoCards):
		return "no_cards"
	case errors.Is(err, game.ErrDuplicateContent):
		return "duplicate_content"
	case errors.Is(err, catalog.ErrInvalidTheme):
		return "invalid_theme"
	case errors.Is(err, catalog.ErrThemeNotFound):
		return "theme_not_found"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
