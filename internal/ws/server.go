// Package ws is the websocket transport in front of the game engine. It
// turns engine broadcasts into per-viewer redacted frames and inbound
// frames into engine operations.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/checkgame/server/internal/auth"
	"github.com/checkgame/server/internal/database"
	"github.com/checkgame/server/internal/game"
	"github.com/checkgame/server/internal/models"
)

const (
	joinTokenTTL       = 2 * time.Hour
	finishedGameLinger = 5 * time.Minute
)

// Server owns the client registry and implements game.Emitter. The engine
// calls Broadcast and EmitLog with the game lock held, so both only read
// the registry and enqueue frames; they never call back into the engine.
// Registration paths do the reverse: they call the engine only after
// releasing the registry lock.
type Server struct {
	manager *game.Manager
	store   *database.Store
	secret  string
	logger  *logrus.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]map[uuid.UUID]*Client // game id -> player id
}

func NewServer(manager *game.Manager, store *database.Store, secret string, logger *logrus.Logger) *Server {
	return &Server{
		manager: manager,
		store:   store,
		secret:  secret,
		logger:  logger,
		clients: make(map[uuid.UUID]map[uuid.UUID]*Client),
	}
}

// Routes registers the HTTP surface on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/games", s.handleCreateGame)
	mux.HandleFunc("/games/ws", s.handleJoin)
}

// Broadcast projects a per-viewer snapshot to every registered client of g.
// Called by the engine with g's lock held.
func (s *Server) Broadcast(g *game.Game) {
	s.mu.RLock()
	registered := make([]*Client, 0, 4)
	for _, c := range s.clients[g.ID] {
		registered = append(registered, c)
	}
	s.mu.RUnlock()

	for _, c := range registered {
		view := game.GeneratePlayerView(g, c.playerID, nil)
		data, err := json.Marshal(StateEvent{Type: "state", State: view})
		if err != nil {
			s.logger.WithError(err).Error("failed to marshal state event")
			continue
		}
		if !c.enqueue(data) {
			c.logger.Warn("send buffer full, dropping client")
			c.close()
		}
	}
}

// EmitLog forwards one public entry to every client of the game and the
// private companion, if any, to its recipient alone. Called by the engine
// with the game lock held.
func (s *Server) EmitLog(gameID uuid.UUID, public game.LogEntry, private *game.PrivateLogEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	publicData, err := json.Marshal(LogEvent{Type: "log", Entry: public})
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal log event")
		return
	}
	for _, c := range s.clients[gameID] {
		c.enqueue(publicData)
	}

	if private == nil {
		return
	}
	recipient, exists := s.clients[gameID][private.RecipientID]
	if !exists {
		return
	}
	privateData, err := json.Marshal(PrivateLogEvent{
		Type:    "private_log",
		Message: private.Message,
		Cards:   private.Cards,
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal private log event")
		return
	}
	recipient.enqueue(privateData)
}

// handleCreateGame starts a game for 2 to 4 named players and returns a
// join token per seat.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	players := make([]models.Player, 0, len(req.Players))
	for _, p := range req.Players {
		if p.Name == "" {
			http.Error(w, "player names must be non-empty", http.StatusBadRequest)
			return
		}
		players = append(players, models.Player{ID: uuid.New(), Name: p.Name})
	}

	g, err := s.manager.CreateGame(players, s, s.onGameEnd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := CreateGameResponse{GameID: g.ID}
	for _, p := range players {
		token, err := auth.CreateJoinToken(s.secret, g.ID, p.ID, p.Name, joinTokenTTL)
		if err != nil {
			s.logger.WithError(err).Error("failed to sign join token")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		resp.Players = append(resp.Players, CreatedPlayer{ID: p.ID, Name: p.Name, Token: token})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithError(err).Warn("failed to write create response")
	}
}

// handleJoin upgrades the connection, validates the join token, registers
// the client and runs its read loop until the connection drops.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ParseJoinToken(s.secret, r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid join token", http.StatusUnauthorized)
		return
	}
	g, exists := s.manager.Get(claims.GameID)
	if !exists {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Debug("websocket accept failed")
		return
	}

	c := newClient(conn, claims.GameID, claims.PlayerID, claims.PlayerName, s.logger)
	s.register(c)
	defer s.unregister(c, g)

	ctx := r.Context()
	go c.writePump(ctx)

	// Rejoining re-arms the player's timer and gets them a fresh snapshot.
	if res := g.AttemptRejoin(claims.PlayerID); !res.Success {
		c.logger.WithField("reason", res.Message).Info("join rejected")
		conn.Close(websocket.StatusPolicyViolation, res.Message)
		return
	}
	s.sendSnapshot(g, c)

	c.readPump(ctx, g)
	conn.Close(websocket.StatusNormalClosure, "")
}

// sendSnapshot pushes a fresh private view to one client, taking the game
// lock itself since it is not on an engine callback path.
func (s *Server) sendSnapshot(g *game.Game, c *Client) {
	g.Lock()
	view := game.GeneratePlayerView(g, c.playerID, nil)
	g.Unlock()

	data, err := json.Marshal(StateEvent{Type: "state", State: view})
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal snapshot")
		return
	}
	c.enqueue(data)
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seats, exists := s.clients[c.gameID]
	if !exists {
		seats = make(map[uuid.UUID]*Client)
		s.clients[c.gameID] = seats
	}
	if prior, dup := seats[c.playerID]; dup {
		prior.close()
	}
	seats[c.playerID] = c
}

// unregister drops the client and, when it was the live connection for its
// seat, tells the engine the player disconnected.
func (s *Server) unregister(c *Client, g *game.Game) {
	s.mu.Lock()
	current := s.clients[c.gameID][c.playerID] == c
	if current {
		delete(s.clients[c.gameID], c.playerID)
		if len(s.clients[c.gameID]) == 0 {
			delete(s.clients, c.gameID)
		}
	}
	s.mu.Unlock()

	c.close()
	if current {
		g.MarkDisconnected(c.playerID)
	}
}

// onGameEnd archives the result and schedules the game's removal from the
// registry. Runs with the game lock held, so everything it does is
// fire-and-forget.
func (s *Server) onGameEnd(g *game.Game, scores map[uuid.UUID]int, winners []uuid.UUID) {
	s.store.StoreFinalResult(g.ID, scores, winners)
	id := g.ID
	time.AfterFunc(finishedGameLinger, func() {
		s.manager.Remove(id)
	})
}

// Shutdown closes every live connection.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seats := range s.clients {
		for _, c := range seats {
			c.close()
			c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
	}
	s.clients = make(map[uuid.UUID]map[uuid.UUID]*Client)
}
