// Package cache persists per-game action streams to Redis. Writes are
// fire-and-forget so a slow or absent Redis never blocks a game.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/checkgame/server/internal/game"
)

const actionTTL = 24 * time.Hour

// Historian appends every game action to a per-game Redis list, keyed
// game:{id}:actions, for post-game review and debugging.
type Historian struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewHistorian connects to Redis and verifies the connection.
func NewHistorian(ctx context.Context, addr, password string, db int, logger *logrus.Logger) (*Historian, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Historian{client: client, logger: logger}, nil
}

// PublishAction records one action. Called from inside game handlers, so the
// Redis round trip happens on its own goroutine.
func (h *Historian) PublishAction(rec game.GameActionRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		data, err := json.Marshal(rec)
		if err != nil {
			h.logger.WithError(err).Warn("failed to marshal action record")
			return
		}
		key := fmt.Sprintf("game:%s:actions", rec.GameID)
		pipe := h.client.Pipeline()
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, actionTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			h.logger.WithError(err).WithField("game_id", rec.GameID).Warn("failed to persist action record")
		}
	}()
}

// Close releases the Redis connection.
func (h *Historian) Close() error {
	return h.client.Close()
}
