package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 4, cfg.CardsPerPlayer)
	assert.Equal(t, 30*time.Second, cfg.TurnTimer)
	assert.Equal(t, 60*time.Second, cfg.DisconnectGrace)
	assert.Equal(t, 6*time.Second, cfg.MatchingWindow)
	assert.Equal(t, 10*time.Second, cfg.InitialPeekReveal)
	assert.Equal(t, 5*time.Second, cfg.AbilityPeekReveal)
	assert.Empty(t, cfg.RedisAddr, "historian is opt-in")
	assert.Empty(t, cfg.DatabaseURL, "result store is opt-in")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("GAME_TURN_TIMER", "45s")
	t.Setenv("GAME_CARDS_PER_PLAYER", "6")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 45*time.Second, cfg.TurnTimer)
	assert.Equal(t, 6, cfg.CardsPerPlayer)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("GAME_TURN_TIMER", "soon")
	t.Setenv("GAME_CARDS_PER_PLAYER", "many")

	cfg := Load()
	assert.Equal(t, 30*time.Second, cfg.TurnTimer, "bad duration falls back to the default")
	assert.Equal(t, 4, cfg.CardsPerPlayer, "bad integer falls back to the default")
}
