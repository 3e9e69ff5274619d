package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/checkgame/server/internal/models"
)

// requireTurn validates the common preconditions for a turn action: live
// game, the caller holds the turn, and play or final-turns is the current
// phase. Assumes lock is held.
func (g *Game) requireTurn(pid uuid.UUID) (*PlayerState, ActionResult) {
	if g.CurrentPhase.terminal() {
		return nil, fail("game is over")
	}
	p, exists := g.Players[pid]
	if !exists {
		return nil, fail("unknown player")
	}
	if p.Forfeited {
		return nil, fail("you have forfeited this game")
	}
	if g.CurrentPhase != PhasePlay && g.CurrentPhase != PhaseFinalTurns {
		return nil, fail("no turn action is possible right now")
	}
	if g.CurrentPlayerID != pid || g.ActivePlayers[pid] != StatusPlayTurn {
		return nil, fail("it's not your turn")
	}
	return p, ok()
}

// DeclareReadyForPeek records a player's readiness during the initial peek
// phase. Once everyone is ready, the bottom two cards are revealed.
func (g *Game) DeclareReadyForPeek(playerID uuid.UUID) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.CurrentPhase != PhaseInitialPeek {
		return fail("the game is past the peek phase")
	}
	p, exists := g.Players[playerID]
	if !exists {
		return fail("unknown player")
	}
	if p.readyForPeek {
		return fail("you are already ready")
	}
	g.declareReadyLocked(playerID)
	return ok()
}

// DrawFromDeck draws the top deck card face-down as the current player's
// pending card.
func (g *Game) DrawFromDeck(playerID uuid.UUID) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, res := g.requireTurn(playerID)
	if !res.Success {
		return res
	}
	if g.TurnSegment != SegmentInitialAction || p.PendingDrawnCard != nil {
		return fail("you have already drawn a card this turn")
	}
	if len(g.Deck) == 0 {
		return fail("the deck is empty")
	}

	card := g.drawTopOfDeck()
	p.PendingDrawnCard = &card
	p.PendingDrawnSource = SourceDeck
	g.TurnSegment = SegmentPostDrawAction
	g.startTurnTimer(playerID)

	g.emitLog("draw_deck", playerID, fmt.Sprintf("%s drew from the deck.", p.Name), true, &PrivateLogEntry{
		RecipientID: playerID,
		Message:     fmt.Sprintf("You drew the %s.", card),
		Cards:       []models.Card{card},
	})
	g.broadcastState()
	return ok()
}

// DrawFromDiscard takes the face-up top discard as the current player's
// pending card. Blocked while the pile is sealed or the top card is a
// King, Queen or Jack.
func (g *Game) DrawFromDiscard(playerID uuid.UUID) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, res := g.requireTurn(playerID)
	if !res.Success {
		return res
	}
	if g.TurnSegment != SegmentInitialAction || p.PendingDrawnCard != nil {
		return fail("you have already drawn a card this turn")
	}
	top, exists := g.discardTop()
	if !exists {
		return fail("the discard pile is empty")
	}
	if g.DiscardPileIsSealed {
		return fail("the discard pile is sealed")
	}
	if top.IsSpecial() {
		return fail("special cards cannot be drawn from the discard pile")
	}

	g.DiscardPile = g.DiscardPile[1:]
	p.PendingDrawnCard = &top
	p.PendingDrawnSource = SourceDiscard
	g.TurnSegment = SegmentPostDrawAction
	g.startTurnTimer(playerID)

	// The card was face-up, so the public log may name it.
	g.emitLog("draw_discard", playerID, fmt.Sprintf("%s took the %s from the discard pile.", p.Name, top), false, nil)
	g.broadcastState()
	return ok()
}

// DiscardDrawnCard places a deck-drawn pending card straight onto the
// discard pile, opening a matching window.
func (g *Game) DiscardDrawnCard(playerID uuid.UUID) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, res := g.requireTurn(playerID)
	if !res.Success {
		return res
	}
	if p.PendingDrawnCard == nil {
		return fail("you have no drawn card to discard")
	}
	if p.PendingDrawnSource != SourceDeck {
		return fail("a card taken from the discard pile must be swapped into your hand")
	}
	g.discardDrawnLocked(playerID)
	return ok()
}

// discardDrawnLocked is the shared discard path used by the handler and the
// timeout default. Assumes lock is held and preconditions checked.
func (g *Game) discardDrawnLocked(pid uuid.UUID) {
	p := g.Players[pid]
	card := *p.PendingDrawnCard
	p.PendingDrawnCard = nil
	g.placeOnDiscard(card)

	if kind, special := abilityKindForRank(card.Rank); special {
		g.enqueueAbility(PendingAbility{PlayerID: pid, Kind: kind, Source: AbilityFromDeck})
	}

	g.stopTurnTimer(pid)
	g.emitLog("discard", pid, fmt.Sprintf("%s discarded the %s.", p.Name, card), false, nil)
	g.openMatchingStage(card, pid)
}

// SwapAndDiscard puts the pending drawn card into the hand at handIndex and
// discards the replaced card, opening a matching window.
func (g *Game) SwapAndDiscard(playerID uuid.UUID, handIndex int) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, res := g.requireTurn(playerID)
	if !res.Success {
		return res
	}
	if p.PendingDrawnCard == nil {
		return fail("you have no drawn card to swap")
	}
	if handIndex < 0 || handIndex >= len(p.Hand) {
		return fail("hand index out of range")
	}
	g.swapAndDiscardLocked(playerID, handIndex)
	return ok()
}

// swapAndDiscardLocked is the shared swap path used by the handler, the
// timeout default and the forfeit default. Assumes lock is held and
// preconditions checked.
func (g *Game) swapAndDiscardLocked(pid uuid.UUID, handIndex int) {
	p := g.Players[pid]
	drawn := *p.PendingDrawnCard
	replaced := p.Hand[handIndex]

	p.Hand[handIndex] = drawn
	p.PendingDrawnCard = nil
	// A discard-sourced card was public when taken, so its owner keeps
	// seeing it; a deck-drawn card goes into the hand face-down to its owner.
	if p.PendingDrawnSource == SourceDiscard {
		g.ownerVisible[drawn.ID] = true
	} else {
		delete(g.ownerVisible, drawn.ID)
	}
	g.placeOnDiscard(replaced)

	if kind, special := abilityKindForRank(replaced.Rank); special {
		g.enqueueAbility(PendingAbility{PlayerID: pid, Kind: kind, Source: AbilityFromDiscard})
	}

	g.LastRegularSwap = &SwapInfo{PlayerID: pid, HandIndex: handIndex, DiscardedID: replaced.ID}
	g.stopTurnTimer(pid)
	g.emitLog("swap_discard", pid,
		fmt.Sprintf("%s swapped the drawn card into slot %d, discarding the %s.", p.Name, handIndex, replaced),
		false, nil)
	g.openMatchingStage(replaced, pid)
}

// CallCheck declares the endgame instead of drawing. The caller's hand is
// locked and every other eligible player gets exactly one more turn.
func (g *Game) CallCheck(playerID uuid.UUID) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, res := g.requireTurn(playerID)
	if !res.Success {
		return res
	}
	if g.TurnSegment != SegmentInitialAction || p.PendingDrawnCard != nil {
		return fail("you can only call Check instead of drawing")
	}
	if g.PlayerWhoCalledCheck != uuid.Nil {
		return fail("Check has already been called")
	}

	g.PlayerWhoCalledCheck = playerID
	p.HasCalledCheck = true
	p.IsLocked = true
	g.stopTurnTimer(playerID)
	g.emitLog("check_called", playerID, fmt.Sprintf("%s called Check!", p.Name), false, nil)
	g.setupFinalTurnsPhase()
	return ok()
}
