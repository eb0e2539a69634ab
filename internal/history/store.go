// internal/history/store.go
//
// Finished tournaments, one row per team, and the all-time leaderboard built
// from them. Rows are written once, when a room reaches tournament-end.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Lunberg88/hd-elias/internal/game"
)

// Result is one team's final line in one tournament.
type Result struct {
	RoomCode   string `json:"roomCode"`
	TeamID     string `json:"teamId"`
	TeamName   string `json:"teamName"`
	Score      int    `json:"score"`
	Words      int    `json:"words"`
	Hints      int    `json:"hints"`
	Winner     bool   `json:"winner"`
	FinishedAt string `json:"finishedAt"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// ResultsFor derives the final lines of a finished tournament.
func ResultsFor(s game.State, finishedAt time.Time) []Result {
	standings := game.Rank(s)
	words := map[string]int{}
	hints := map[string]int{}
	for _, g := range s.GuessedWords {
		words[g.TeamID]++
		if g.UsedHint {
			hints[g.TeamID]++
		}
	}
	at := finishedAt.UTC().Format(time.RFC3339)
	out := make([]Result, 0, len(standings.Teams))
	for _, t := range standings.Teams {
		out = append(out, Result{
			RoomCode:   s.RoomCode,
			TeamID:     t.ID,
			TeamName:   t.Name,
			Score:      t.Score,
			Words:      words[t.ID],
			Hints:      hints[t.ID],
			Winner:     standings.Winner != nil && standings.Winner.ID == t.ID,
			FinishedAt: at,
		})
	}
	return out
}

// Record stores a finished tournament. Re-recording the same finish is ignored.
func (s *Store) Record(ctx context.Context, results []Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range results {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tournament_results
                (room_code, team_id, team_name, score, words, hints, winner, finished_at)
             VALUES (?,?,?,?,?,?,?,?)`,
			r.RoomCode, r.TeamID, r.TeamName, r.Score, r.Words, r.Hints, r.Winner, r.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("record %s/%s: %w", r.RoomCode, r.TeamID, err)
		}
	}
	return tx.Commit()
}

// Leaderboard returns the best team results ever, highest score first.
// Default limit is 20 if not specified.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_code, team_id, team_name, score, words, hints, winner, finished_at
        FROM tournament_results
        ORDER BY score DESC, hints ASC, finished_at ASC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.RoomCode, &r.TeamID, &r.TeamName, &r.Score, &r.Words, &r.Hints, &r.Winner, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ForRoom lists the recorded results of one room, newest first.
func (s *Store) ForRoom(ctx context.Context, roomCode string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_code, team_id, team_name, score, words, hints, winner, finished_at
        FROM tournament_results
        WHERE room_code=?
        ORDER BY finished_at DESC, score DESC`, roomCode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.RoomCode, &r.TeamID, &r.TeamName, &r.Score, &r.Words, &r.Hints, &r.Winner, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
