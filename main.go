package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/memorygame/server/internal/catalog"
	"github.com/memorygame/server/internal/config"
	"github.com/memorygame/server/internal/httpserver"
	"github.com/memorygame/server/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := catalog.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open catalog")
	}
	defer db.Close()
	if err := catalog.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate catalog")
	}

	themes := catalog.NewStore(db)
	seed, err := catalog.LoadSeed(cfg.ThemesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load theme seed")
	}
	added, err := themes.Seed(context.Background(), seed)
	if err != nil {
		log.Fatal().Err(err).Msg("seed catalog")
	}
	log.Info().Int("added", added).Int("seeded", len(seed)).Msg("theme catalog ready")

	srv := httpserver.New(cfg, store.NewMemoryStore(), themes)
	hs := &http.Server{Addr: ":" + cfg.Port, Handler: srv.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", cfg.Port).Msg("starting memory game server")
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}
