package game

import (
	"github.com/google/uuid"

	"github.com/checkgame/server/internal/models"
)

// PlayerState is the engine's per-player record. Hand order is semantically
// meaningful: position determines initial-peek eligibility and ability
// targeting.
type PlayerState struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	Hand []models.Card `json:"-"`

	HasCalledCheck bool `json:"hasCalledCheck"`
	IsLocked       bool `json:"isLocked"`
	Connected      bool `json:"connected"`
	Forfeited      bool `json:"forfeited"`

	// At most one pending drawn card at a time.
	PendingDrawnCard   *models.Card `json:"-"`
	PendingDrawnSource DrawSource   `json:"-"`

	// PendingSpecialAbility marks that this player owns at least one entry in
	// the game's ability queue.
	PendingSpecialAbility bool `json:"pendingSpecialAbility"`

	NumMatches   int `json:"numMatches"`
	NumPenalties int `json:"numPenalties"`

	// CardsToPeek are the slots currently disclosed to this player only
	// (initial peek or an in-flight King/Queen peek).
	CardsToPeek             []CardTarget `json:"-"`
	HasCompletedInitialPeek bool         `json:"hasCompletedInitialPeek"`
	readyForPeek            bool
}

func newPlayerState(p models.Player) *PlayerState {
	return &PlayerState{
		ID:        p.ID,
		Name:      p.Name,
		Connected: true,
	}
}

// eligibleForTurn reports whether the player can be handed a play turn.
func (p *PlayerState) eligibleForTurn() bool {
	return !p.IsLocked && !p.Forfeited
}

// eligibleForFinalTurn reports whether the player still owes a final turn
// after Check was called.
func (p *PlayerState) eligibleForFinalTurn() bool {
	return !p.IsLocked && !p.Forfeited && p.Connected && !p.HasCalledCheck
}

// canMatch reports whether the player may participate in a matching
// opportunity. Locked hands are frozen; forfeited players are out.
func (p *PlayerState) canMatch() bool {
	return !p.IsLocked && !p.Forfeited && p.Connected
}

// handValue sums the player's remaining card values for scoring.
func (p *PlayerState) handValue() int {
	total := 0
	for _, c := range p.Hand {
		total += c.Value()
	}
	return total
}
