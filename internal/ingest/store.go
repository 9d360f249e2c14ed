// Package ingest is a reference collector: it accepts the follower's
// uploads and lands them in Postgres.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists uploaded events.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a connection pool for the given database URL.
func NewStore(ctx context.Context, dbURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateTables creates the schema if it doesn't exist.
func (s *Store) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			player_id TEXT NOT NULL DEFAULT '',
			client_version TEXT NOT NULL DEFAULT '',
			received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			blob JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			match_id TEXT NOT NULL,
			game_number INTEGER NOT NULL DEFAULT 1,
			player_id TEXT NOT NULL DEFAULT '',
			event_name TEXT NOT NULL DEFAULT '',
			won BOOLEAN NOT NULL DEFAULT FALSE,
			turns INTEGER NOT NULL DEFAULT 0,
			received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			blob JSONB NOT NULL,
			PRIMARY KEY (match_id, game_number, player_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_events_player ON events(player_id)`,
		`CREATE INDEX IF NOT EXISTS idx_games_player ON games(player_id)`,
	}
	for _, query := range queries {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// InsertEvent stores any non-game event blob.
func (s *Store) InsertEvent(ctx context.Context, kind string, blob map[string]any) error {
	data, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	playerID, _ := blob["player_id"].(string)
	clientVersion, _ := blob["client_version"].(string)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (kind, player_id, client_version, blob)
		VALUES ($1, $2, $3, $4)
	`, kind, playerID, clientVersion, data)
	return err
}

// InsertGame stores a completed game, keyed so a re-upload of the same
// game replaces rather than duplicates it.
func (s *Store) InsertGame(ctx context.Context, blob map[string]any) error {
	data, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	matchID, _ := blob["match_id"].(string)
	playerID, _ := blob["player_id"].(string)
	eventName, _ := blob["event_name"].(string)
	won, _ := blob["won"].(bool)

	gameNumber := 1
	if n, ok := blob["game_number"].(float64); ok {
		gameNumber = int(n)
	}
	turns := 0
	if n, ok := blob["turns"].(float64); ok {
		turns = int(n)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO games (match_id, game_number, player_id, event_name, won, turns, blob)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id, game_number, player_id) DO UPDATE
		SET event_name = EXCLUDED.event_name,
		    won = EXCLUDED.won,
		    turns = EXCLUDED.turns,
		    blob = EXCLUDED.blob,
		    received_at = now()
	`, matchID, gameNumber, playerID, eventName, won, turns, data)
	return err
}

// EventCount returns the number of stored non-game events.
func (s *Store) EventCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	return count, err
}

// GameCount returns the number of stored games.
func (s *Store) GameCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games`).Scan(&count)
	return count, err
}
