// internal/config/config.go
//
// Runtime configuration for the memory game server.
// Values come from the environment; a .env file in the working directory is loaded
// first (development convenience, missing file is not an error).
//
// Environment variables:
//   PORT                 listen port (default 5175)
//   LOG_LEVEL            zerolog level (default info)
//   DB_PATH              SQLite catalog path (default ./data/catalog.db)
//   THEMES_FILE          YAML seed file (default: embedded themes)
//   JWT_SECRET           HS256 secret for game tokens
//   TOKEN_TTL            game token lifetime, Go duration (default 24h)
//   RESOLVE_DELAY        pair resolution delay, Go duration (default 1s)
//   ADMIN_PASSWORD_HASH  bcrypt hash guarding theme writes (unset disables writes)
//   CLIENT_ORIGIN        CORS origin (default http://localhost:5173)

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const devSecret = "dev_secret_change_me"

type Config struct {
	Port              string
	LogLevel          string
	DBPath            string
	ThemesFile        string
	JWTSecret         string
	TokenTTL          time.Duration
	ResolveDelay      time.Duration
	AdminPasswordHash string
	ClientOrigin      string
}

// Load reads .env (if present) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	c := Config{
		Port:              getEnv("PORT", "5175"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DBPath:            getEnv("DB_PATH", "./data/catalog.db"),
		ThemesFile:        os.Getenv("THEMES_FILE"),
		JWTSecret:         getEnv("JWT_SECRET", devSecret),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		ClientOrigin:      getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
	}
	var err error
	if c.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if c.ResolveDelay, err = getDuration("RESOLVE_DELAY", time.Second); err != nil {
		return Config{}, err
	}
	if c.JWTSecret == devSecret {
		log.Warn().Msg("JWT_SECRET not set, using development secret")
	}
	return c, nil
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", k, v)
	}
	return d, nil
}
