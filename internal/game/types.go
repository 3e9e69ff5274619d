package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/checkgame/server/internal/models"
)

// Phase is the lifecycle state of a game. Only one phase is live at a time;
// ActivePlayers names who may act inside it.
type Phase string

const (
	PhaseInitialPeek       Phase = "initialPeekPhase"
	PhasePlay              Phase = "playPhase"
	PhaseMatching          Phase = "matchingStage"
	PhaseAbilityResolution Phase = "abilityResolutionPhase"
	PhaseFinalTurns        Phase = "finalTurnsPhase"
	PhaseScoring           Phase = "scoringPhase"
	PhaseGameOver          Phase = "gameOver"
	PhaseError             Phase = "errorOrStalemate"
)

// terminal reports whether the phase admits no further mutation.
func (p Phase) terminal() bool {
	return p == PhaseGameOver || p == PhaseError
}

// ActivityStatus describes what a player listed in ActivePlayers may do.
type ActivityStatus string

const (
	StatusAwaitingReady    ActivityStatus = "awaitingReady"
	StatusPlayTurn         ActivityStatus = "playPhaseActive"
	StatusAwaitingMatch    ActivityStatus = "awaitingMatchAction"
	StatusResolvingAbility ActivityStatus = "resolvingAbility"
)

// DrawSource records where a pending drawn card came from. A deck draw may be
// discarded outright; a discard draw must be swapped into the hand.
type DrawSource string

const (
	SourceDeck    DrawSource = "deck"
	SourceDiscard DrawSource = "discard"
)

// TurnSegment disambiguates which timeout default applies: before the draw
// the turn is forfeited with a no-op advance, after it the pending card is
// auto-discarded or auto-swapped.
type TurnSegment string

const (
	SegmentInitialAction  TurnSegment = "initialAction"
	SegmentPostDrawAction TurnSegment = "postDrawAction"
)

// AbilityKind is a closed enum of rank+stage combinations. Invalid pairs
// (e.g. a Jack peek) are unrepresentable.
type AbilityKind string

const (
	AbilityKingPeek  AbilityKind = "kingPeek"
	AbilityKingSwap  AbilityKind = "kingSwap"
	AbilityQueenPeek AbilityKind = "queenPeek"
	AbilityQueenSwap AbilityKind = "queenSwap"
	AbilityJackSwap  AbilityKind = "jackSwap"
)

// abilityKindForRank returns the entry stage for a special rank.
func abilityKindForRank(rank string) (AbilityKind, bool) {
	switch rank {
	case models.RankKing:
		return AbilityKingPeek, true
	case models.RankQueen:
		return AbilityQueenPeek, true
	case models.RankJack:
		return AbilityJackSwap, true
	}
	return "", false
}

// nextStage returns the stage following a completed or skipped peek.
// Swap stages are final.
func (k AbilityKind) nextStage() (AbilityKind, bool) {
	switch k {
	case AbilityKingPeek:
		return AbilityKingSwap, true
	case AbilityQueenPeek:
		return AbilityQueenSwap, true
	}
	return "", false
}

// isPeek reports whether the stage selects cards to privately reveal.
func (k AbilityKind) isPeek() bool {
	return k == AbilityKingPeek || k == AbilityQueenPeek
}

// peekCount is the exact number of card slots the peek stage selects.
func (k AbilityKind) peekCount() int {
	switch k {
	case AbilityKingPeek:
		return 2
	case AbilityQueenPeek:
		return 1
	}
	return 0
}

// AbilitySource orders queued abilities: stacked-pair abilities resolve
// before discard- or deck-sourced ones.
type AbilitySource string

const (
	AbilityFromDeck      AbilitySource = "deck"
	AbilityFromDiscard   AbilitySource = "discard"
	AbilityFromStack     AbilitySource = "stack"
	AbilityFromStackPair AbilitySource = "stackSecondOfPair"
)

func (s AbilitySource) stacked() bool {
	return s == AbilityFromStack || s == AbilityFromStackPair
}

// PendingAbility is one queued special-card ability awaiting resolution.
type PendingAbility struct {
	PlayerID     uuid.UUID     `json:"playerId"`
	Kind         AbilityKind   `json:"kind"`
	Source       AbilitySource `json:"source"`
	PairTargetID uuid.UUID     `json:"pairTargetId,omitempty"` // owner of the other half of a stacked pair
}

// CardTarget addresses a single hand slot of a specific player.
type CardTarget struct {
	PlayerID  uuid.UUID `json:"playerId"`
	HandIndex int       `json:"handIndex"`
}

// MatchingOpportunityInfo is the open "slap to match" window following a
// discard. Attempted tracks matchers whose single try is consumed.
type MatchingOpportunityInfo struct {
	DiscardedCard models.Card        `json:"discardedCard"`
	DiscarderID   uuid.UUID          `json:"discarderId"`
	Deadline      time.Time          `json:"deadline"`
	Attempted     map[uuid.UUID]bool `json:"-"`
}

// SwapInfo describes the most recent regular (non-ability) swap, kept
// transiently for client animation.
type SwapInfo struct {
	PlayerID    uuid.UUID `json:"playerId"`
	HandIndex   int       `json:"handIndex"`
	DiscardedID uuid.UUID `json:"discardedCardId"`
}

// ActionResult is the synchronous outcome of every engine handler. Failures
// carry a human-readable reason and imply no state mutation; accepted
// actions may carry a message describing an unfavorable outcome.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok() ActionResult { return ActionResult{Success: true} }

func fail(msg string) ActionResult { return ActionResult{Success: false, Message: msg} }

// LogEntry is a public log line; it must never leak hidden card identities.
// HasPrivate flags that an addressed private counterpart exists, so its
// recipient is not also shown this vaguer public line.
type LogEntry struct {
	Seq        int       `json:"seq"`
	Type       string    `json:"type"`
	ActorID    uuid.UUID `json:"actorId,omitempty"`
	Message    string    `json:"message"`
	HasPrivate bool      `json:"hasPrivate,omitempty"`
	At         time.Time `json:"at"`
}

// PrivateLogEntry is visible only to its recipient and may name real cards.
type PrivateLogEntry struct {
	RecipientID uuid.UUID      `json:"recipientId"`
	Message     string         `json:"message"`
	Cards       []models.Card  `json:"cards,omitempty"`
}

// Emitter is how the engine reaches back out to the transport. Implementations
// must not re-enter the engine: Broadcast and EmitLog are invoked with the
// game's lock held.
type Emitter interface {
	// Broadcast is invoked after every state-changing handler and every
	// timer-driven transition. The transport projects one view per player
	// via GeneratePlayerView.
	Broadcast(g *Game)
	// EmitLog delivers a public entry and an optional private counterpart.
	EmitLog(gameID uuid.UUID, public LogEntry, private *PrivateLogEntry)
}

// GameActionRecord is the ordered audit record published to the historian.
type GameActionRecord struct {
	GameID      uuid.UUID              `json:"gameId"`
	ActionIndex int                    `json:"actionIndex"`
	ActorID     uuid.UUID              `json:"actorId"`
	ActionType  string                 `json:"actionType"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
}

// Historian receives every accepted action for out-of-band archival. Calls
// must be fast or internally asynchronous; the engine does not retry.
type Historian interface {
	PublishAction(rec GameActionRecord)
}
