package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/checkgame/server/internal/models"
)

// Manager owns every live game. It only guards the registry map; each game
// serializes its own state behind its own lock.
type Manager struct {
	mu    sync.RWMutex
	games map[uuid.UUID]*Game

	rules     Rules
	historian Historian
	logger    *logrus.Logger
}

func NewManager(rules Rules, historian Historian, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		games:     make(map[uuid.UUID]*Game),
		rules:     rules,
		historian: historian,
		logger:    logger,
	}
}

// CreateGame builds, registers and starts a game for the given players.
// The emitter is the transport fan-out for this game; onGameEnd fires once
// after scoring, with the game lock still held, and must not re-enter the
// engine.
func (m *Manager) CreateGame(players []models.Player, emitter Emitter, onGameEnd OnGameEndFunc) (*Game, error) {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return nil, fmt.Errorf("game requires %d to %d players, got %d", MinPlayers, MaxPlayers, len(players))
	}

	g := NewGame(time.Now().UnixNano(), m.rules, emitter, m.historian, onGameEnd, m.logger)
	for _, p := range players {
		if res := g.AddPlayer(p); !res.Success {
			return nil, fmt.Errorf("add player %s: %s", p.ID, res.Message)
		}
	}

	m.mu.Lock()
	m.games[g.ID] = g
	m.mu.Unlock()

	if err := g.Start(); err != nil {
		m.Remove(g.ID)
		return nil, err
	}
	m.logger.WithFields(logrus.Fields{"game_id": g.ID, "players": len(players)}).Info("game started")
	return g, nil
}

func (m *Manager) Get(id uuid.UUID) (*Game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, exists := m.games[id]
	return g, exists
}

func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, id)
}
