// main.go
//
// Entry point for the Elias server.
//   - Loads configuration (.env + environment) and configures zerolog.
//   - Loads word content from WORDS_FILE or the embedded default.
//   - Opens the snapshot store: SQLite (with migrations and tournament
//     history) or in-memory.
//   - Starts the room manager and the HTTP server; shuts both down on
//     SIGINT/SIGTERM.

package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Lunberg88/hd-elias/internal/config"
	"github.com/Lunberg88/hd-elias/internal/game"
	"github.com/Lunberg88/hd-elias/internal/history"
	"github.com/Lunberg88/hd-elias/internal/httpserver"
	"github.com/Lunberg88/hd-elias/internal/session"
	"github.com/Lunberg88/hd-elias/internal/store"
	"github.com/Lunberg88/hd-elias/internal/words"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.ConfigureLogger()

	lib, err := words.Open(cfg.WordsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word content")
	}

	snapshots, hist, db := openStorage(cfg)
	if db != nil {
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rooms := session.NewManager(ctx, session.Deps{
		Catalog:     func() game.Catalog { return lib.Snapshot() },
		Rules:       cfg.Rules(),
		Store:       snapshots,
		OnFinish:    recordFinish(hist),
		IdleTimeout: cfg.RoomIdleTimeout,
	})

	srv := httpserver.New(httpserver.Options{
		Context:           ctx,
		Rooms:             rooms,
		Library:           lib,
		History:           hist,
		Tokens:            httpserver.NewTokens(cfg.JWTSecret, cfg.HostTokenTTL),
		Rules:             cfg.Rules(),
		AdminPasswordHash: cfg.AdminPasswordHash,
		ClientOrigin:      cfg.ClientOrigin,
	})

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("starting elias server")
		errc <- srv.Start(cfg.Addr())
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	rooms.Wait()
}

// openStorage returns the snapshot store, the history store (nil in memory
// mode) and the database handle to close on exit (nil in memory mode).
func openStorage(cfg config.Config) (store.Store, *history.Store, *sql.DB) {
	if cfg.Store == config.StoreMemory {
		log.Warn().Msg("STORE=memory: rooms and history are lost on restart")
		return store.NewMemoryStore(), nil, nil
	}
	db, err := store.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := store.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	return store.NewSQLiteStore(db), history.NewStore(db), db
}

// recordFinish writes the final standings of a finished tournament.
func recordFinish(hist *history.Store) func(context.Context, game.State) {
	return func(ctx context.Context, st game.State) {
		results := history.ResultsFor(st, time.Now())
		log.Info().Str("room", st.RoomCode).Int("teams", len(results)).Msg("tournament finished")
		if hist == nil {
			return
		}
		if err := hist.Record(ctx, results); err != nil {
			log.Error().Err(err).Str("room", st.RoomCode).Msg("record tournament")
		}
	}
}
