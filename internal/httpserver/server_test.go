package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/memorygame/server/internal/catalog"
	"github.com/memorygame/server/internal/config"
	"github.com/memorygame/server/internal/game"
	"github.com/memorygame/server/internal/store"
)

// manualScheduler holds resolution callbacks until the test fires them.
type manualScheduler struct {
	mu  sync.Mutex
	fns []func()
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func (m *manualScheduler) AfterFunc(_ time.Duration, f func()) game.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, f)
	return noopTimer{}
}

func (m *manualScheduler) fire() {
	m.mu.Lock()
	fns := m.fns
	m.fns = nil
	m.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

type testEnv struct {
	srv   *Server
	store store.Store
	sched *manualScheduler
	cfg   config.Config
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := catalog.OpenDB(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, catalog.Migrate(db))
	themes := catalog.NewStore(db)
	require.NoError(t, themes.PutTheme(context.Background(), catalog.Theme{
		Name:  "animals",
		Cards: []game.CardDefinition{{Content: "cat"}, {Content: "dog"}},
	}))

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := config.Config{
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
		ResolveDelay:      time.Second,
		AdminPasswordHash: string(hash),
		ClientOrigin:      "http://localhost:5173",
	}
	sched := &manualScheduler{}
	st := store.NewMemoryStore()
	// identity rand keeps dealt order: cat-0 dog-1 cat-2 dog-3
	srv := New(cfg, st, themes,
		game.WithScheduler(sched),
		game.WithRand(func(n int) int { return n - 1 }),
		game.WithLogger(zerolog.Nop()),
	)
	return &testEnv{srv: srv, store: st, sched: sched, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) newGame(t *testing.T) newGameRes {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/games", "", map[string]string{"theme": "animals"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res newGameRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"games":0}`, rec.Body.String())
}

func TestNewGameFromTheme(t *testing.T) {
	e := newEnv(t)
	res := e.newGame(t)

	assert.NotEmpty(t, res.GameID)
	assert.NotEmpty(t, res.Token)
	assert.Len(t, res.State.Cards, 4)
	assert.Equal(t, 0, res.State.Moves)
	assert.Equal(t, 1, e.store.Len())
}

func TestNewGameDefaultsAndErrors(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/games", "", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/games", "", map[string]string{"theme": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"theme_not_found"}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/games", "", map[string]any{
		"cards": []map[string]string{{"content": "x"}, {"content": "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"duplicate_content"}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/games", "", map[string]any{
		"cards": []map[string]string{{"content": "x"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, decode[newGameRes](t, rec).State.Cards, 2)
}

func TestGameRoutesRequireToken(t *testing.T) {
	e := newEnv(t)
	a := e.newGame(t)
	b := e.newGame(t)

	rec := e.do(t, http.MethodGet, "/games/"+a.GameID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/games/"+a.GameID, "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a token is bound to its own game
	rec = e.do(t, http.MethodGet, "/games/"+a.GameID, b.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/games/"+a.GameID+"?token="+a.Token, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFlipFlow(t *testing.T) {
	e := newEnv(t)
	g := e.newGame(t)
	path := "/games/" + g.GameID

	rec := e.do(t, http.MethodPost, path+"/flip", g.Token, map[string]int{"index": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[flipRes](t, rec)
	assert.True(t, res.Accepted)
	assert.Equal(t, game.PhaseOnePending, res.State.Phase)

	// same card again is ignored
	rec = e.do(t, http.MethodPost, path+"/flip", g.Token, map[string]int{"index": 0})
	res = decode[flipRes](t, rec)
	assert.False(t, res.Accepted)

	rec = e.do(t, http.MethodPost, path+"/flip", g.Token, map[string]int{"index": 2})
	res = decode[flipRes](t, rec)
	assert.True(t, res.Accepted)
	assert.Equal(t, 1, res.State.Moves)
	assert.Equal(t, game.PhaseResolving, res.State.Phase)

	// third flip while resolving is ignored
	rec = e.do(t, http.MethodPost, path+"/flip", g.Token, map[string]int{"index": 1})
	assert.False(t, decode[flipRes](t, rec).Accepted)

	e.sched.fire()
	state := decode[game.Snapshot](t, e.do(t, http.MethodGet, path, g.Token, nil))
	assert.True(t, state.Cards[0].Matched)
	assert.True(t, state.Cards[2].Matched)
	assert.Empty(t, state.Selection)
	assert.False(t, state.GameOver)

	_ = e.do(t, http.MethodPost, path+"/flip", g.Token, map[string]int{"index": 1})
	_ = e.do(t, http.MethodPost, path+"/flip", g.Token, map[string]int{"index": 3})
	e.sched.fire()
	state = decode[game.Snapshot](t, e.do(t, http.MethodGet, path, g.Token, nil))
	assert.True(t, state.GameOver)
	assert.Equal(t, 2, state.Moves)
}

func TestFlipErrors(t *testing.T) {
	e := newEnv(t)
	g := e.newGame(t)
	path := "/games/" + g.GameID + "/flip"

	rec := e.do(t, http.MethodPost, path, g.Token, map[string]int{"index": 99})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"index_out_of_range"}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, path, g.Token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"bad_json"}`, rec.Body.String())
}

func TestStartAndDelete(t *testing.T) {
	e := newEnv(t)
	g := e.newGame(t)
	path := "/games/" + g.GameID

	_ = e.do(t, http.MethodPost, path+"/flip", g.Token, map[string]int{"index": 0})
	_ = e.do(t, http.MethodPost, path+"/flip", g.Token, map[string]int{"index": 1})

	rec := e.do(t, http.MethodPost, path+"/start", g.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[game.Snapshot](t, rec)
	assert.Equal(t, 0, state.Moves)
	assert.Empty(t, state.Selection)

	// the resolution scheduled for the discarded deck changes nothing
	e.sched.fire()
	state = decode[game.Snapshot](t, e.do(t, http.MethodGet, path, g.Token, nil))
	for _, c := range state.Cards {
		assert.False(t, c.Flipped)
	}

	rec = e.do(t, http.MethodDelete, path, g.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, path, g.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThemes(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/themes", "", nil)
	assert.JSONEq(t, `{"themes":["animals"]}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/themes/animals", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[catalog.Theme](t, rec).Cards, 2)

	body := map[string]any{"cards": []map[string]string{{"content": "red"}, {"content": "blue"}}}

	rec = e.do(t, http.MethodPut, "/themes/colors", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	put := func(user, pw string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPut, "/themes/colors", &buf)
		req.SetBasicAuth(user, pw)
		rec := httptest.NewRecorder()
		e.srv.Handler().ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusUnauthorized, put("admin", "wrong", body).Code)
	assert.Equal(t, http.StatusOK, put("admin", "hunter22", body).Code)
	assert.Equal(t, http.StatusBadRequest, put("admin", "hunter22", map[string]any{"cards": []any{}}).Code)

	rec = e.do(t, http.MethodPost, "/games", "", map[string]string{"theme": "colors"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, decode[newGameRes](t, rec).State.Cards, 4)
}

func TestThemeWritesDisabledWithoutHash(t *testing.T) {
	e := newEnv(t)
	e.srv.cfg.AdminPasswordHash = ""
	rec := e.do(t, http.MethodPut, "/themes/x", "", map[string]any{"cards": []any{}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNotFoundIsJSON(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found","path":"/nowhere"}`, rec.Body.String())
}

func TestWatchStreamsSnapshots(t *testing.T) {
	e := newEnv(t)
	g := e.newGame(t)
	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/games/" + g.GameID + "/ws?token=" + g.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() game.Snapshot {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var snap game.Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		return snap
	}

	first := read()
	assert.Equal(t, g.GameID, first.GameID)
	assert.Equal(t, game.PhaseEmpty, first.Phase)

	live, err := e.store.Get(context.Background(), g.GameID)
	require.NoError(t, err)

	_, err = live.FlipCard(0)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseOnePending, read().Phase)

	// version ordering means every later read is newer than the last
	_, err = live.FlipCard(2)
	require.NoError(t, err)
	snap := read()
	assert.Equal(t, game.PhaseResolving, snap.Phase)
	assert.Equal(t, 1, snap.Moves)

	e.sched.fire()
	snap = read()
	assert.Equal(t, game.PhaseEmpty, snap.Phase)
	assert.True(t, snap.Cards[0].Matched)

	// deleting the game closes the stream
	require.NoError(t, e.store.Delete(context.Background(), g.GameID))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWatchRequiresToken(t *testing.T) {
	e := newEnv(t)
	g := e.newGame(t)
	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/games/" + g.GameID + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
