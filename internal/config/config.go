// internal/config/config.go
//
// Process configuration. Values come from the environment, optionally seeded
// from a .env file in development (godotenv never overrides variables that
// are already set).
//
// Keys:
//   PORT, LOG_LEVEL, LOG_FORMAT (json|console)
//   STORE (memory|sqlite), DB_PATH, WORDS_FILE
//   JWT_SECRET, HOST_TOKEN_TTL, ADMIN_PASSWORD_HASH, CLIENT_ORIGIN
//   TIMER_DURATION, POINTS_PER_WORD, HINT_PENALTY
//   SHUTDOWN_TIMEOUT

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Lunberg88/hd-elias/internal/game"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	Port      string `env:"PORT"       envDefault:"5175"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Store     string `env:"STORE"      envDefault:"sqlite"`
	DBPath    string `env:"DB_PATH"    envDefault:"data/elias.db"`
	WordsFile string `env:"WORDS_FILE"`

	JWTSecret         string        `env:"JWT_SECRET"     envDefault:"dev_secret_change_me"`
	HostTokenTTL      time.Duration `env:"HOST_TOKEN_TTL" envDefault:"24h"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	ClientOrigin      string        `env:"CLIENT_ORIGIN"  envDefault:"http://localhost:5173"`

	TimerDuration int `env:"TIMER_DURATION"  envDefault:"60"`
	PointsPerWord int `env:"POINTS_PER_WORD" envDefault:"1"`
	HintPenalty   int `env:"HINT_PENALTY"    envDefault:"1"`

	RoomIdleTimeout time.Duration `env:"ROOM_IDLE_TIMEOUT" envDefault:"30m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"  envDefault:"10s"`
}

// Load reads .env (if present) and the environment into a validated Config.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv fills target from the environment using its env struct tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StoreSQLite, c.Store))
	}
	if c.Store == StoreSQLite && strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("DB_PATH is required when STORE=sqlite"))
	}
	if c.TimerDuration <= 0 {
		errs = append(errs, fmt.Errorf("TIMER_DURATION must be positive, got %d", c.TimerDuration))
	}
	if c.PointsPerWord < 0 || c.HintPenalty < 0 {
		errs = append(errs, errors.New("POINTS_PER_WORD and HINT_PENALTY must not be negative"))
	}
	if c.RoomIdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("ROOM_IDLE_TIMEOUT must not be negative, got %s", c.RoomIdleTimeout))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Rules returns the scoring and timer rules every room uses.
func (c Config) Rules() game.Rules {
	return game.Rules{
		TimerDuration: c.TimerDuration,
		PointsPerWord: c.PointsPerWord,
		HintPenalty:   c.HintPenalty,
	}
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// ConfigureLogger sets the global zerolog level and output format.
func (c Config) ConfigureLogger() {
	if lvl, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if c.LogFormat == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
}
