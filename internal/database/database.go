// Package database stores final game results in Postgres. The store is
// optional: a nil *Store accepts every call and does nothing, so deployments
// without a database need no special casing.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type Store struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// Connect opens a pgx pool against databaseURL and verifies it.
func Connect(ctx context.Context, databaseURL string, logger *logrus.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// EnsureSchema creates the results table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_results (
			game_id     UUID PRIMARY KEY,
			scores      JSONB NOT NULL,
			winners     JSONB NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// StoreFinalResult writes one finished game's scores and winners. It runs on
// its own goroutine so scoring never waits on the database.
func (s *Store) StoreFinalResult(gameID uuid.UUID, scores map[uuid.UUID]int, winners []uuid.UUID) {
	if s == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		scoresJSON, err := json.Marshal(scores)
		if err != nil {
			s.logger.WithError(err).Error("failed to marshal scores")
			return
		}
		winnersJSON, err := json.Marshal(winners)
		if err != nil {
			s.logger.WithError(err).Error("failed to marshal winners")
			return
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO game_results (game_id, scores, winners)
			VALUES ($1, $2, $3)
			ON CONFLICT (game_id) DO NOTHING`,
			gameID, scoresJSON, winnersJSON)
		if err != nil {
			s.logger.WithError(err).WithField("game_id", gameID).Error("failed to store final result")
		}
	}()
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil {
		s.pool.Close()
	}
}
