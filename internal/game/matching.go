package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/checkgame/server/internal/models"
)

// openMatchingStage starts the matching window after a discard. Every
// connected, unlocked, non-forfeited player (including the discarder) may
// attempt one match against the freshly discarded card. If nobody is
// eligible the stage is skipped entirely. Assumes lock is held.
func (g *Game) openMatchingStage(card models.Card, discarderID uuid.UUID) {
	eligible := make([]uuid.UUID, 0, len(g.TurnOrder))
	for _, pid := range g.TurnOrder {
		if g.Players[pid].canMatch() {
			eligible = append(eligible, pid)
		}
	}
	if len(eligible) == 0 {
		g.setupNextPlayTurn()
		return
	}

	g.CurrentPhase = PhaseMatching
	g.MatchingOpportunity = &MatchingOpportunityInfo{
		DiscardedCard: card,
		DiscarderID:   discarderID,
		Deadline:      time.Now().Add(g.rules.MatchingWindow),
		Attempted:     make(map[uuid.UUID]bool),
	}
	g.ActivePlayers = make(map[uuid.UUID]ActivityStatus, len(eligible))
	for _, pid := range eligible {
		g.ActivePlayers[pid] = StatusAwaitingMatch
	}
	g.startMatchingTimer()
	g.emitLog("matching_open", discarderID,
		fmt.Sprintf("Matching window open on the %s.", g.MatchingOpportunity.DiscardedCard), false, nil)
	g.broadcastState()
}

// AttemptMatch plays the card at handIndex against the matching
// opportunity. A rank match discards the card and seals the pile; a miss
// costs a face-down penalty card from the deck. Either way the player's
// single attempt is spent, and either outcome is an accepted action:
// Success reports acceptance, not whether the match hit.
func (g *Game) AttemptMatch(playerID uuid.UUID, handIndex int) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, res := g.requireMatchStanding(playerID)
	if !res.Success {
		return res
	}
	if handIndex < 0 || handIndex >= len(p.Hand) {
		return fail("hand index out of range")
	}

	opp := g.MatchingOpportunity
	opp.Attempted[playerID] = true
	played := p.Hand[handIndex]

	if played.Rank != opp.DiscardedCard.Rank {
		// Miss: the played card stays put, a penalty card is drawn.
		p.NumPenalties++
		if penalty, drew := g.drawRandomFromDeck(); drew {
			p.Hand = append(p.Hand, penalty)
		}
		delete(g.ActivePlayers, playerID)
		g.emitLog("match_fail", playerID,
			fmt.Sprintf("%s tried to match with the %s and drew a penalty card.", p.Name, played), false, nil)
		if len(g.ActivePlayers) == 0 {
			g.closeMatchingStage()
		} else {
			g.broadcastState()
		}
		return ActionResult{Success: true, Message: "no match, penalty card drawn"}
	}

	// Hit: the matched card joins the discard and seals it.
	p.Hand = append(p.Hand[:handIndex], p.Hand[handIndex+1:]...)
	g.placeOnDiscard(played)
	g.DiscardPileIsSealed = true
	p.NumMatches++
	g.emitLog("match_success", playerID,
		fmt.Sprintf("%s matched the %s!", p.Name, played), false, nil)

	// Matching two special cards of the same rank grants a paired ability:
	// the matcher resolves first, then the original discarder.
	if played.IsSpecial() && opp.DiscardedCard.IsSpecial() {
		kind, _ := abilityKindForRank(played.Rank)
		matcherAbility := PendingAbility{PlayerID: playerID, Kind: kind, Source: AbilityFromStack, PairTargetID: opp.DiscarderID}
		discarderAbility := PendingAbility{PlayerID: opp.DiscarderID, Kind: kind, Source: AbilityFromStackPair, PairTargetID: playerID}
		g.enqueueAbility(matcherAbility)
		g.enqueueAbility(discarderAbility)
	}

	if len(p.Hand) == 0 {
		// An emptied hand is locked from here on, whoever called Check.
		p.IsLocked = true
		if g.PlayerWhoCalledCheck == uuid.Nil {
			// Emptying your hand by matching is an automatic Check.
			g.PlayerWhoCalledCheck = playerID
			p.HasCalledCheck = true
			g.emitLog("check_called", playerID,
				fmt.Sprintf("%s emptied their hand and automatically called Check!", p.Name), false, nil)
			g.stopMatchingTimer()
			g.MatchingOpportunity = nil
			g.ActivePlayers = make(map[uuid.UUID]ActivityStatus)
			g.setupFinalTurnsPhase()
			return ok()
		}
	}

	// First successful match ends the stage for everyone.
	g.closeMatchingStage()
	return ok()
}

// PassMatch declines the current matching opportunity.
func (g *Game) PassMatch(playerID uuid.UUID) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, res := g.requireMatchStanding(playerID); !res.Success {
		return res
	}
	g.passMatchLocked(playerID)
	return ok()
}

func (g *Game) requireMatchStanding(pid uuid.UUID) (*PlayerState, ActionResult) {
	if g.CurrentPhase != PhaseMatching || g.MatchingOpportunity == nil {
		return nil, fail("no matching opportunity is open")
	}
	p, exists := g.Players[pid]
	if !exists {
		return nil, fail("unknown player")
	}
	if g.ActivePlayers[pid] != StatusAwaitingMatch {
		return nil, fail("you have no pending match decision")
	}
	if g.MatchingOpportunity.Attempted[pid] {
		return nil, fail("you already used your match attempt")
	}
	return p, ok()
}

// passMatchLocked removes a player from the matching stage, closing it when
// they were the last holdout. Assumes lock is held.
func (g *Game) passMatchLocked(pid uuid.UUID) {
	delete(g.ActivePlayers, pid)
	if g.MatchingOpportunity != nil {
		g.MatchingOpportunity.Attempted[pid] = true
	}
	if len(g.ActivePlayers) == 0 {
		g.closeMatchingStage()
	} else {
		g.broadcastState()
	}
}

// expireMatchingStage auto-passes every player still deciding when the
// matching window elapses. Assumes lock is held.
func (g *Game) expireMatchingStage() {
	g.emitLog("matching_expired", uuid.Nil, "The matching window closed.", false, nil)
	g.ActivePlayers = make(map[uuid.UUID]ActivityStatus)
	g.closeMatchingStage()
}

// closeMatchingStage tears down the matching stage and hands control to the
// phase dispatcher. Assumes lock is held.
func (g *Game) closeMatchingStage() {
	g.stopMatchingTimer()
	g.MatchingOpportunity = nil
	g.ActivePlayers = make(map[uuid.UUID]ActivityStatus)
	g.setupNextPlayTurn()
}
