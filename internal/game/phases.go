package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/checkgame/server/internal/models"
)

// The five setup helpers below are the only places a next phase is chosen.
// Action handlers and timer callbacks mutate state and then call exactly one
// of them; each inspects PlayerWhoCalledCheck and PendingAbilities and
// dispatches accordingly, so "what happens next" lives in one place.

// setupNextPlayTurn hands the turn to the next eligible player, or defers to
// ability resolution / final turns / scoring as the state requires.
// Assumes lock is held.
func (g *Game) setupNextPlayTurn() {
	if g.CurrentPhase.terminal() {
		return
	}
	if g.nonForfeitedCount() < 2 {
		g.setupScoringPhase()
		return
	}
	if len(g.PendingAbilities) > 0 {
		g.setupAbilityResolutionPhase()
		return
	}
	if g.PlayerWhoCalledCheck != uuid.Nil {
		g.continueOrEndFinalTurns()
		return
	}

	next := g.nextEligibleAfter(g.CurrentPlayerID, (*PlayerState).eligibleForTurn)
	if next == uuid.Nil {
		// Nobody can act: every remaining hand is locked. Stalemate scores out.
		g.setupScoringPhase()
		return
	}
	g.beginTurn(next, PhasePlay)
}

// setupFinalTurnsPhase starts the endgame countdown after a Check call.
// Assumes lock is held.
func (g *Game) setupFinalTurnsPhase() {
	if g.CurrentPhase.terminal() {
		return
	}
	g.FinalTurnsTaken = 0
	g.continueOrEndFinalTurns()
}

// continueOrEndFinalTurns grants the next final turn, or moves to scoring
// once every eligible player has had exactly one. Assumes lock is held.
func (g *Game) continueOrEndFinalTurns() {
	if g.CurrentPhase.terminal() {
		return
	}
	if g.nonForfeitedCount() < 2 {
		g.setupScoringPhase()
		return
	}
	if len(g.PendingAbilities) > 0 {
		g.setupAbilityResolutionPhase()
		return
	}

	eligible := 0
	for _, p := range g.Players {
		if p.eligibleForFinalTurn() {
			eligible++
		}
	}
	if g.FinalTurnsTaken >= eligible {
		g.setupScoringPhase()
		return
	}

	next := g.nextEligibleAfter(g.CurrentPlayerID, (*PlayerState).eligibleForFinalTurn)
	if next == uuid.Nil {
		g.setupScoringPhase()
		return
	}
	g.FinalTurnsTaken++
	g.beginTurn(next, PhaseFinalTurns)
}

// beginTurn installs a player as the sole actor for a play or final turn.
// Assumes lock is held.
func (g *Game) beginTurn(pid uuid.UUID, phase Phase) {
	g.CurrentPhase = phase
	g.CurrentPlayerID = pid
	g.TurnSegment = SegmentInitialAction
	g.TurnID++
	g.ActivePlayers = map[uuid.UUID]ActivityStatus{pid: StatusPlayTurn}
	g.GlobalAbilityTargets = nil
	g.LastRegularSwap = nil
	g.startTurnTimer(pid)

	msg := fmt.Sprintf("It is %s's turn.", g.playerName(pid))
	if phase == PhaseFinalTurns {
		msg = fmt.Sprintf("It is %s's final turn.", g.playerName(pid))
	}
	g.emitLog("turn_start", pid, msg, false, nil)
	g.broadcastState()
}

// declareReadyLocked records readiness for the initial peek and, once all
// non-forfeited players are ready, opens the reveal window. Assumes lock is
// held.
func (g *Game) declareReadyLocked(pid uuid.UUID) {
	p := g.Players[pid]
	p.readyForPeek = true
	delete(g.ActivePlayers, pid)
	g.stopTurnTimer(pid)
	g.emitLog("player_ready", pid, fmt.Sprintf("%s is ready.", p.Name), false, nil)

	for _, other := range g.Players {
		if !other.Forfeited && !other.readyForPeek {
			g.broadcastState()
			return
		}
	}
	g.beginInitialPeekReveal()
}

// beginInitialPeekReveal shows every player their own two bottom cards for a
// fixed duration, then hides them and starts the first turn. Assumes lock is
// held.
func (g *Game) beginInitialPeekReveal() {
	for _, pid := range g.TurnOrder {
		p := g.Players[pid]
		if p.Forfeited || len(p.Hand) < 2 {
			continue
		}
		targets := []CardTarget{
			{PlayerID: pid, HandIndex: len(p.Hand) - 2},
			{PlayerID: pid, HandIndex: len(p.Hand) - 1},
		}
		p.CardsToPeek = targets
		g.transientReveals[pid] = targets
		g.emitLog("initial_peek", pid, fmt.Sprintf("%s peeks at their two bottom cards.", p.Name), true, &PrivateLogEntry{
			RecipientID: pid,
			Message:     "Your bottom cards are revealed.",
			Cards:       []models.Card{p.Hand[len(p.Hand)-2], p.Hand[len(p.Hand)-1]},
		})
	}

	g.startRevealTimer(g.rules.InitialPeekReveal, g.endInitialPeekReveal)
	g.broadcastState()
}

// endInitialPeekReveal hides all hands again and advances to the play phase.
// Assumes lock is held.
func (g *Game) endInitialPeekReveal() {
	for _, p := range g.Players {
		p.CardsToPeek = nil
		p.HasCompletedInitialPeek = true
	}
	g.transientReveals = make(map[uuid.UUID][]CardTarget)
	g.emitLog("initial_peek_end", uuid.Nil, "Hands are hidden again. Play begins.", false, nil)
	g.setupNextPlayTurn()
}

// setupScoringPhase sums hands, picks the winners, clears all timers and
// retires the game. Assumes lock is held.
func (g *Game) setupScoringPhase() {
	if g.CurrentPhase.terminal() {
		return
	}
	g.CurrentPhase = PhaseScoring
	g.clearAllTimers()
	g.ActivePlayers = make(map[uuid.UUID]ActivityStatus)
	g.MatchingOpportunity = nil
	g.PendingAbilities = nil
	g.GlobalAbilityTargets = nil
	g.transientReveals = make(map[uuid.UUID][]CardTarget)

	g.Scores = make(map[uuid.UUID]int, len(g.Players))
	for pid, p := range g.Players {
		g.Scores[pid] = p.handValue()
	}

	// Lowest total wins; forfeited players are scored but cannot win.
	best := 0
	first := true
	for pid, score := range g.Scores {
		if g.Players[pid].Forfeited {
			continue
		}
		if first || score < best {
			best = score
			first = false
		}
	}
	g.Winners = nil
	for _, pid := range g.TurnOrder {
		if !g.Players[pid].Forfeited && g.Scores[pid] == best {
			g.Winners = append(g.Winners, pid)
		}
	}

	for _, pid := range g.TurnOrder {
		g.emitLog("score", pid, fmt.Sprintf("%s scored %d.", g.playerName(pid), g.Scores[pid]), false, nil)
	}
	names := ""
	for i, pid := range g.Winners {
		if i > 0 {
			names += ", "
		}
		names += g.playerName(pid)
	}
	g.emitLog("game_over", uuid.Nil, fmt.Sprintf("Game over. Winner(s): %s.", names), false, nil)

	g.CurrentPhase = PhaseGameOver
	g.broadcastState()

	if g.onGameEnd != nil {
		g.onGameEnd(g, g.Scores, g.Winners)
	}
}
