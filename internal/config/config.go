// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the full server configuration. Zero values never survive Load;
// every field has a default.
type Config struct {
	HTTPAddr string
	LogLevel string

	// JWTSecret signs game join tokens.
	JWTSecret string

	// RedisAddr empty disables the action historian.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DatabaseURL empty disables the final-result audit sink.
	DatabaseURL string

	CardsPerPlayer    int
	TurnTimer         time.Duration
	DisconnectGrace   time.Duration
	MatchingWindow    time.Duration
	InitialPeekReveal time.Duration
	AbilityPeekReveal time.Duration
}

// Load reads a .env file when present and assembles the configuration from
// the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment variables")
	}

	return &Config{
		HTTPAddr:  getString("HTTP_ADDR", ":8080"),
		LogLevel:  getString("LOG_LEVEL", "info"),
		JWTSecret: getString("JWT_SECRET", "dev-insecure-secret"),

		RedisAddr:     getString("REDIS_ADDR", ""),
		RedisPassword: getString("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		DatabaseURL: getString("DATABASE_URL", ""),

		CardsPerPlayer:    getInt("GAME_CARDS_PER_PLAYER", 4),
		TurnTimer:         getDuration("GAME_TURN_TIMER", 30*time.Second),
		DisconnectGrace:   getDuration("GAME_DISCONNECT_GRACE", 60*time.Second),
		MatchingWindow:    getDuration("GAME_MATCHING_WINDOW", 6*time.Second),
		InitialPeekReveal: getDuration("GAME_INITIAL_PEEK_REVEAL", 10*time.Second),
		AbilityPeekReveal: getDuration("GAME_ABILITY_PEEK_REVEAL", 5*time.Second),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid integer %q, using default %d", v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid duration %q, using default %s", v, fallback)
		return fallback
	}
	return d
}
