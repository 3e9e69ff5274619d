package ws

import (
	"github.com/google/uuid"

	"github.com/checkgame/server/internal/game"
	"github.com/checkgame/server/internal/models"
)

// ActionMessage is the single inbound frame shape. Action selects the
// handler; the remaining fields are read as that action requires.
type ActionMessage struct {
	Action    string            `json:"action"`
	HandIndex *int              `json:"handIndex,omitempty"`
	Targets   []game.CardTarget `json:"targets,omitempty"`
}

// Inbound action names.
const (
	ActionDeclareReady   = "declareReady"
	ActionDrawDeck       = "drawFromDeck"
	ActionDrawDiscard    = "drawFromDiscard"
	ActionDiscardDrawn   = "discardDrawnCard"
	ActionSwapAndDiscard = "swapAndDiscard"
	ActionCallCheck      = "callCheck"
	ActionAttemptMatch   = "attemptMatch"
	ActionPassMatch      = "passMatch"
	ActionAbilityPeek    = "abilityPeek"
	ActionAbilitySwap    = "abilitySwap"
	ActionAbilitySkip    = "abilitySkip"
)

// StateEvent carries a full redacted snapshot for one viewer.
type StateEvent struct {
	Type  string           `json:"type"`
	State game.ClientState `json:"state"`
}

// LogEvent carries one public log entry as it happens.
type LogEvent struct {
	Type  string        `json:"type"`
	Entry game.LogEntry `json:"entry"`
}

// PrivateLogEvent carries a log line visible only to its recipient, with
// the card identities it discloses.
type PrivateLogEvent struct {
	Type    string        `json:"type"`
	Message string        `json:"message"`
	Cards   []models.Card `json:"cards,omitempty"`
}

// ErrorEvent reports a rejected action back to its sender.
type ErrorEvent struct {
	Type    string `json:"type"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

// CreateGameRequest starts a new game for the named players.
type CreateGameRequest struct {
	Players []struct {
		Name string `json:"name"`
	} `json:"players"`
}

// CreateGameResponse returns the game id plus one join token per player.
type CreateGameResponse struct {
	GameID  uuid.UUID       `json:"gameId"`
	Players []CreatedPlayer `json:"players"`
}

type CreatedPlayer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Token string    `json:"token"`
}
