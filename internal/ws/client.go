package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/checkgame/server/internal/game"
)

const (
	writeTimeout   = 10 * time.Second
	sendBufferSize = 64
	maxMessageSize = 8192
)

// Client is one player's websocket connection to one game. Outbound frames
// go through the buffered send channel; a client that cannot keep up has its
// connection dropped rather than blocking the engine.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	gameID   uuid.UUID
	playerID uuid.UUID
	name     string
	logger   *logrus.Entry

	closeOnce chan struct{}
}

func newClient(conn *websocket.Conn, gameID, playerID uuid.UUID, name string, logger *logrus.Logger) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		gameID:   gameID,
		playerID: playerID,
		name:     name,
		logger: logger.WithFields(logrus.Fields{
			"game_id":   gameID,
			"player_id": playerID,
		}),
		closeOnce: make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump without blocking. Returns false
// when the buffer is full, which the server treats as a dead connection.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.closeOnce:
		return false
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	select {
	case <-c.closeOnce:
	default:
		close(c.closeOnce)
	}
}

// writePump drains the send channel onto the wire. It exits when the
// connection context ends or the client is closed.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeOnce:
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.logger.WithError(err).Debug("write failed, closing client")
				c.close()
				return
			}
		}
	}
}

// readPump parses inbound action frames and dispatches them to the engine.
// It returns when the connection drops.
func (c *Client) readPump(ctx context.Context, g *game.Game) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.logger.WithError(err).Debug("read loop ended")
			return
		}

		var msg ActionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", "invalid message format")
			continue
		}
		c.dispatch(g, msg)
	}
}

// dispatch routes one action frame to the matching engine operation and
// reports rejections back to the sender.
func (c *Client) dispatch(g *game.Game, msg ActionMessage) {
	var res game.ActionResult
	switch msg.Action {
	case ActionDeclareReady:
		res = g.DeclareReadyForPeek(c.playerID)
	case ActionDrawDeck:
		res = g.DrawFromDeck(c.playerID)
	case ActionDrawDiscard:
		res = g.DrawFromDiscard(c.playerID)
	case ActionDiscardDrawn:
		res = g.DiscardDrawnCard(c.playerID)
	case ActionSwapAndDiscard:
		if msg.HandIndex == nil {
			c.sendError(msg.Action, "handIndex is required")
			return
		}
		res = g.SwapAndDiscard(c.playerID, *msg.HandIndex)
	case ActionCallCheck:
		res = g.CallCheck(c.playerID)
	case ActionAttemptMatch:
		if msg.HandIndex == nil {
			c.sendError(msg.Action, "handIndex is required")
			return
		}
		res = g.AttemptMatch(c.playerID, *msg.HandIndex)
	case ActionPassMatch:
		res = g.PassMatch(c.playerID)
	case ActionAbilityPeek:
		res = g.RequestPeekReveal(c.playerID, msg.Targets)
	case ActionAbilitySwap:
		res = g.ResolveSpecialAbility(c.playerID, msg.Targets)
	case ActionAbilitySkip:
		res = g.SkipAbilityStage(c.playerID)
	default:
		c.sendError(msg.Action, "unknown action")
		return
	}

	if !res.Success {
		c.sendError(msg.Action, res.Message)
	}
}

func (c *Client) sendError(action, message string) {
	data, err := json.Marshal(ErrorEvent{Type: "error", Action: action, Message: message})
	if err != nil {
		return
	}
	c.enqueue(data)
}
