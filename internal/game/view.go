package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/checkgame/server/internal/models"
)

// ClientCard is a card as one particular viewer sees it. Rank and suit are
// blank when the card is face-down to that viewer; the ID always travels so
// clients can animate slot movement.
type ClientCard struct {
	ID    uuid.UUID `json:"id"`
	Rank  string    `json:"rank,omitempty"`
	Suit  string    `json:"suit,omitempty"`
	Known bool      `json:"known"`
}

// ClientPlayer is the redacted per-player record inside a ClientState.
type ClientPlayer struct {
	ID                      uuid.UUID    `json:"id"`
	Name                    string       `json:"name"`
	Hand                    []ClientCard `json:"hand"`
	HasCalledCheck          bool         `json:"hasCalledCheck"`
	IsLocked                bool         `json:"isLocked"`
	Connected               bool         `json:"connected"`
	Forfeited               bool         `json:"forfeited"`
	PendingSpecialAbility   bool         `json:"pendingSpecialAbility"`
	HasCompletedInitialPeek bool         `json:"hasCompletedInitialPeek"`
	NumMatches              int          `json:"numMatches"`
	NumPenalties            int          `json:"numPenalties"`

	// PendingDrawn is nil when the player holds no drawn card. It is fully
	// visible to its holder and to everyone when it came off the discard.
	PendingDrawn *ClientCard `json:"pendingDrawn,omitempty"`
}

// ClientMatching is the viewer-facing slice of an open matching window.
type ClientMatching struct {
	DiscardedCard models.Card `json:"discardedCard"`
	DiscarderID   uuid.UUID   `json:"discarderId"`
	Deadline      time.Time   `json:"deadline"`
	YouAttempted  bool        `json:"youAttempted"`
}

// ClientAbility shows whose ability is being resolved and at what stage.
// Targets already chosen are public as slots, never as identities.
type ClientAbility struct {
	PlayerID uuid.UUID    `json:"playerId"`
	Kind     AbilityKind  `json:"kind"`
	Targets  []CardTarget `json:"targets,omitempty"`
}

// ClientState is a complete snapshot of the game as seen by one viewer.
// Everything in it is safe to send to that viewer verbatim.
type ClientState struct {
	GameID           uuid.UUID                    `json:"gameId"`
	ViewerID         uuid.UUID                    `json:"viewerId"`
	Phase            Phase                        `json:"phase"`
	TurnID           int                          `json:"turnId"`
	CurrentPlayerID  uuid.UUID                    `json:"currentPlayerId"`
	TurnSegment      TurnSegment                  `json:"turnSegment"`
	Players          []ClientPlayer               `json:"players"`
	ActivePlayers    map[uuid.UUID]ActivityStatus `json:"activePlayers"`
	DeckSize         int                          `json:"deckSize"`
	DiscardTop       *models.Card                 `json:"discardTop,omitempty"`
	DiscardSealed    bool                         `json:"discardSealed"`
	DiscardSize      int                          `json:"discardSize"`
	Matching         *ClientMatching              `json:"matching,omitempty"`
	Ability          *ClientAbility               `json:"ability,omitempty"`
	CheckCallerID    uuid.UUID                    `json:"checkCallerId,omitempty"`
	TimerExpiries    map[uuid.UUID]time.Time      `json:"timerExpiries,omitempty"`
	MatchingDeadline *time.Time                   `json:"matchingDeadline,omitempty"`
	Scores           map[uuid.UUID]int            `json:"scores,omitempty"`
	Winners          []uuid.UUID                  `json:"winners,omitempty"`
	Log              []LogEntry                   `json:"log"`
}

// GeneratePlayerView projects the full game state into what viewerID is
// allowed to see. extraReveals are merged with the game's transient reveals,
// letting a transport replay an in-flight peek to a rejoining client. The
// caller must hold the game lock; the result shares no mutable state with
// the game.
func GeneratePlayerView(g *Game, viewerID uuid.UUID, extraReveals []CardTarget) ClientState {
	revealed := make(map[CardTarget]bool)
	for _, t := range g.transientReveals[viewerID] {
		revealed[t] = true
	}
	for _, t := range extraReveals {
		revealed[t] = true
	}

	players := make([]ClientPlayer, 0, len(g.TurnOrder))
	for _, pid := range g.TurnOrder {
		p := g.Players[pid]
		cp := ClientPlayer{
			ID:                      p.ID,
			Name:                    p.Name,
			Hand:                    make([]ClientCard, len(p.Hand)),
			HasCalledCheck:          p.HasCalledCheck,
			IsLocked:                p.IsLocked,
			Connected:               p.Connected,
			Forfeited:               p.Forfeited,
			PendingSpecialAbility:   p.PendingSpecialAbility,
			HasCompletedInitialPeek: p.HasCompletedInitialPeek,
			NumMatches:              p.NumMatches,
			NumPenalties:            p.NumPenalties,
		}
		for i, c := range p.Hand {
			visible := revealed[CardTarget{PlayerID: pid, HandIndex: i}] ||
				(pid == viewerID && g.ownerVisible[c.ID])
			if visible {
				cp.Hand[i] = ClientCard{ID: c.ID, Rank: c.Rank, Suit: c.Suit, Known: true}
			} else {
				cp.Hand[i] = ClientCard{ID: c.ID}
			}
		}
		if p.PendingDrawnCard != nil {
			c := *p.PendingDrawnCard
			if pid == viewerID || p.PendingDrawnSource == SourceDiscard {
				cp.PendingDrawn = &ClientCard{ID: c.ID, Rank: c.Rank, Suit: c.Suit, Known: true}
			} else {
				cp.PendingDrawn = &ClientCard{ID: c.ID}
			}
		}
		players = append(players, cp)
	}

	state := ClientState{
		GameID:          g.ID,
		ViewerID:        viewerID,
		Phase:           g.CurrentPhase,
		TurnID:          g.TurnID,
		CurrentPlayerID: g.CurrentPlayerID,
		TurnSegment:     g.TurnSegment,
		Players:         players,
		ActivePlayers:   make(map[uuid.UUID]ActivityStatus, len(g.ActivePlayers)),
		DeckSize:        len(g.Deck),
		DiscardSealed:   g.DiscardPileIsSealed,
		DiscardSize:     len(g.DiscardPile),
		CheckCallerID:   g.PlayerWhoCalledCheck,
		Log:             append([]LogEntry(nil), g.LogHistory...),
	}
	for pid, status := range g.ActivePlayers {
		state.ActivePlayers[pid] = status
	}
	if top, exists := g.discardTop(); exists {
		state.DiscardTop = &top
	}
	if len(g.TimerExpiries) > 0 {
		state.TimerExpiries = make(map[uuid.UUID]time.Time, len(g.TimerExpiries))
		for pid, t := range g.TimerExpiries {
			state.TimerExpiries[pid] = t
		}
	}
	if !g.MatchingDeadline.IsZero() {
		d := g.MatchingDeadline
		state.MatchingDeadline = &d
	}
	if g.MatchingOpportunity != nil {
		state.Matching = &ClientMatching{
			DiscardedCard: g.MatchingOpportunity.DiscardedCard,
			DiscarderID:   g.MatchingOpportunity.DiscarderID,
			Deadline:      g.MatchingOpportunity.Deadline,
			YouAttempted:  g.MatchingOpportunity.Attempted[viewerID],
		}
	}
	if g.CurrentPhase == PhaseAbilityResolution && len(g.PendingAbilities) > 0 {
		head := g.PendingAbilities[0]
		state.Ability = &ClientAbility{
			PlayerID: head.PlayerID,
			Kind:     head.Kind,
			Targets:  append([]CardTarget(nil), g.GlobalAbilityTargets...),
		}
	}
	if len(g.Scores) > 0 {
		state.Scores = make(map[uuid.UUID]int, len(g.Scores))
		for pid, s := range g.Scores {
			state.Scores[pid] = s
		}
		state.Winners = append([]uuid.UUID(nil), g.Winners...)
	}
	return state
}
