package game

import (
	"time"

	"github.com/google/uuid"
)

// Timer discipline: every schedule captures a generation number; starting or
// stopping a timer of the same class for the same key bumps the generation,
// so there is never more than one relevant turn timer per player and one
// matching-stage timer per game. A callback that fires with a mismatched
// generation is stale (the phase or actor changed while it was in flight)
// and is discarded with a debug log, never applied.

// startTurnTimer arms the turn timer for a player, replacing any prior one.
// Assumes lock is held.
func (g *Game) startTurnTimer(pid uuid.UUID) {
	g.stopTurnTimer(pid)
	if g.rules.TurnTimer <= 0 || g.CurrentPhase.terminal() {
		return
	}
	g.turnGen[pid]++
	gen := g.turnGen[pid]
	g.TimerExpiries[pid] = time.Now().Add(g.rules.TurnTimer)
	g.turnTimers[pid] = time.AfterFunc(g.rules.TurnTimer, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.turnGen[pid] != gen || g.CurrentPhase.terminal() {
			g.logger.WithField("player", pid).Debug("stale turn timer ignored")
			return
		}
		g.handleTurnTimeout(pid)
	})
}

// stopTurnTimer cancels a player's turn timer and invalidates any callback
// already in flight. Assumes lock is held.
func (g *Game) stopTurnTimer(pid uuid.UUID) {
	g.turnGen[pid]++
	if t, exists := g.turnTimers[pid]; exists {
		t.Stop()
		delete(g.turnTimers, pid)
	}
	delete(g.TimerExpiries, pid)
}

// handleTurnTimeout performs the default action the timed-out player could
// have chosen themselves, so timeouts and explicit actions share code paths.
// Assumes lock is held.
func (g *Game) handleTurnTimeout(pid uuid.UUID) {
	status, active := g.ActivePlayers[pid]
	if !active {
		g.logger.WithField("player", pid).Debug("turn timer fired for inactive player, ignoring")
		return
	}
	g.logger.WithFields(map[string]interface{}{"player": pid, "phase": g.CurrentPhase}).Info("turn timer expired")

	switch status {
	case StatusAwaitingReady:
		g.declareReadyLocked(pid)
	case StatusPlayTurn:
		g.emitLog("turn_timeout", pid, g.playerName(pid)+" ran out of time.", false, nil)
		g.performDefaultTurnAction(pid)
	case StatusResolvingAbility:
		g.emitLog("ability_timeout", pid, g.playerName(pid)+" ran out of time and skips.", false, nil)
		g.skipAbilityStageLocked(pid)
	default:
		g.logger.WithField("status", status).Debug("no timeout default for status")
	}
}

// performDefaultTurnAction resolves a turn-holder who can no longer act:
// auto-discard a deck-drawn card, auto-swap a discard-drawn card with the
// first hand card, or advance with no action taken. Assumes lock is held.
func (g *Game) performDefaultTurnAction(pid uuid.UUID) {
	p := g.Players[pid]
	switch {
	case p.PendingDrawnCard != nil && p.PendingDrawnSource == SourceDeck:
		g.discardDrawnLocked(pid)
	case p.PendingDrawnCard != nil && p.PendingDrawnSource == SourceDiscard:
		if len(p.Hand) > 0 {
			g.swapAndDiscardLocked(pid, 0)
		} else {
			// No swap target: the drawn card simply returns to the pile.
			card := *p.PendingDrawnCard
			p.PendingDrawnCard = nil
			g.placeOnDiscard(card)
			g.stopTurnTimer(pid)
			g.setupNextPlayTurn()
		}
	default:
		g.stopTurnTimer(pid)
		g.setupNextPlayTurn()
	}
}

// startGraceTimer arms the disconnect grace timer for a player. Expiry
// forfeits them permanently. Assumes lock is held.
func (g *Game) startGraceTimer(pid uuid.UUID) {
	g.stopGraceTimer(pid)
	if g.rules.DisconnectGrace <= 0 || g.CurrentPhase.terminal() {
		return
	}
	g.graceGen[pid]++
	gen := g.graceGen[pid]
	g.graceTimers[pid] = time.AfterFunc(g.rules.DisconnectGrace, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.graceGen[pid] != gen || g.CurrentPhase.terminal() {
			g.logger.WithField("player", pid).Debug("stale grace timer ignored")
			return
		}
		p, exists := g.Players[pid]
		if !exists || p.Connected || p.Forfeited {
			return
		}
		g.forfeitPlayer(pid)
	})
}

// stopGraceTimer cancels a player's disconnect grace timer. Assumes lock is
// held.
func (g *Game) stopGraceTimer(pid uuid.UUID) {
	g.graceGen[pid]++
	if t, exists := g.graceTimers[pid]; exists {
		t.Stop()
		delete(g.graceTimers, pid)
	}
}

// startMatchingTimer arms the single game-scoped matching window timer.
// Expiry auto-passes every still-pending matcher. Assumes lock is held.
func (g *Game) startMatchingTimer() {
	g.stopMatchingTimer()
	if g.rules.MatchingWindow <= 0 {
		return
	}
	g.matchingGen++
	gen := g.matchingGen
	g.MatchingDeadline = time.Now().Add(g.rules.MatchingWindow)
	g.matchingTimer = time.AfterFunc(g.rules.MatchingWindow, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.matchingGen != gen || g.CurrentPhase != PhaseMatching {
			g.logger.Debug("stale matching timer ignored")
			return
		}
		g.expireMatchingStage()
	})
}

// stopMatchingTimer cancels the matching window timer. Assumes lock is held.
func (g *Game) stopMatchingTimer() {
	g.matchingGen++
	if g.matchingTimer != nil {
		g.matchingTimer.Stop()
		g.matchingTimer = nil
	}
	g.MatchingDeadline = time.Time{}
}

// startRevealTimer arms the shared reveal timer used by the initial peek and
// ability peek windows. Assumes lock is held.
func (g *Game) startRevealTimer(d time.Duration, fn func()) {
	g.stopRevealTimer()
	if d <= 0 {
		// Timerless configurations (tests) complete the reveal immediately.
		fn()
		return
	}
	g.revealGen++
	gen := g.revealGen
	g.revealTimer = time.AfterFunc(d, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.revealGen != gen || g.CurrentPhase.terminal() {
			g.logger.Debug("stale reveal timer ignored")
			return
		}
		fn()
	})
}

// stopRevealTimer cancels the reveal timer. Assumes lock is held.
func (g *Game) stopRevealTimer() {
	g.revealGen++
	if g.revealTimer != nil {
		g.revealTimer.Stop()
		g.revealTimer = nil
	}
}

// clearAllTimers cancels every scheduled callback for this game. Called on
// entry to a terminal phase. Assumes lock is held.
func (g *Game) clearAllTimers() {
	for pid := range g.turnTimers {
		g.stopTurnTimer(pid)
	}
	for pid := range g.Players {
		g.turnGen[pid]++
		g.stopGraceTimer(pid)
	}
	g.stopMatchingTimer()
	g.stopRevealTimer()
	g.TimerExpiries = make(map[uuid.UUID]time.Time)
}
