package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Lunberg88/hd-elias/internal/game"
)

// sqliteStore keeps one row per room in the snapshots table.
type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore wraps a migrated database.
func NewSQLiteStore(db *sql.DB) Store {
	return &sqliteStore{db: db, now: time.Now}
}

func (s *sqliteStore) Save(ctx context.Context, code string, st game.State) error {
	b, err := game.Encode(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO snapshots (room_code, state, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(room_code) DO UPDATE SET state=excluded.state, updated_at=excluded.updated_at`,
		code, b, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", code, err)
	}
	return nil
}

func (s *sqliteStore) Load(ctx context.Context, code string) (game.State, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM snapshots WHERE room_code=?`, code).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return game.State{}, ErrNotFound
	}
	if err != nil {
		return game.State{}, fmt.Errorf("load snapshot %s: %w", code, err)
	}
	return game.Decode(b)
}

func (s *sqliteStore) Delete(ctx context.Context, code string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE room_code=?`, code); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", code, err)
	}
	return nil
}
