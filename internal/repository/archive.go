package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MatchRecord is a finished match as kept in the archive.
type MatchRecord struct {
	RoomCode   string    `json:"room_code"`
	Winner     string    `json:"winner"`
	Moves      int       `json:"moves"`
	FinishedAt time.Time `json:"finished_at"`
}

type ArchiveRepository interface {
	Record(ctx context.Context, match *MatchRecord) error
	ListRecent(ctx context.Context, limit int) ([]MatchRecord, error)
}

type dbArchive struct {
	conn *sql.DB
}

func NewArchiveRepository(conn *sql.DB) ArchiveRepository {
	return &dbArchive{
		conn: conn,
	}
}

func (that *dbArchive) Record(ctx context.Context, match *MatchRecord) error {
	query := `INSERT INTO matches (room_code, winner, moves, finished_at) VALUES (?, ?, ?, ?)`

	_, err := that.conn.ExecContext(ctx, query, match.RoomCode, match.Winner, match.Moves, match.FinishedAt)
	if err != nil {
		return fmt.Errorf("can't record match: %w", err)
	}

	return nil
}

func (that *dbArchive) ListRecent(ctx context.Context, limit int) ([]MatchRecord, error) {
	query := `SELECT room_code, winner, moves, finished_at FROM matches ORDER BY id DESC LIMIT ?`

	rows, err := that.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("can't query matches: %w", err)
	}
	defer rows.Close()

	// Non-nil even when empty, so an empty archive serializes as [].
	matches := []MatchRecord{}
	for rows.Next() {
		var match MatchRecord
		if err = rows.Scan(&match.RoomCode, &match.Winner, &match.Moves, &match.FinishedAt); err != nil {
			return nil, fmt.Errorf("can't scan match: %w", err)
		}
		matches = append(matches, match)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read matches: %w", err)
	}

	return matches, nil
}
