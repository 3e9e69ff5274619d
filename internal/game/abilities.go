package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/checkgame/server/internal/models"
)

// enqueueAbility appends a pending King/Queen/Jack ability to the queue.
// Resolution order is decided later by setupAbilityResolutionPhase.
// Assumes lock is held.
func (g *Game) enqueueAbility(a PendingAbility) {
	g.PendingAbilities = append(g.PendingAbilities, a)
	if p, exists := g.Players[a.PlayerID]; exists {
		p.PendingSpecialAbility = true
	}
}

// setupAbilityResolutionPhase drops abilities whose owners are locked or
// forfeited, orders the rest, and activates the queue head. An ability
// survives a disconnect: its owner may rejoin within the grace period, and
// until then the turn timer skips stages on their behalf. With an empty
// queue it falls through to the normal phase flow. Assumes lock is held.
func (g *Game) setupAbilityResolutionPhase() {
	if g.CurrentPhase.terminal() {
		return
	}

	kept := g.PendingAbilities[:0]
	for _, a := range g.PendingAbilities {
		p, exists := g.Players[a.PlayerID]
		if !exists || p.IsLocked || p.Forfeited {
			continue
		}
		kept = append(kept, a)
	}
	g.PendingAbilities = kept
	g.refreshAbilityFlags()

	if len(g.PendingAbilities) == 0 {
		if g.PlayerWhoCalledCheck != uuid.Nil {
			g.continueOrEndFinalTurns()
		} else {
			g.setupNextPlayTurn()
		}
		return
	}

	g.sortAbilityQueue()
	head := g.PendingAbilities[0]
	g.CurrentPhase = PhaseAbilityResolution
	g.ActivePlayers = map[uuid.UUID]ActivityStatus{head.PlayerID: StatusResolvingAbility}
	g.GlobalAbilityTargets = nil
	g.startTurnTimer(head.PlayerID)

	g.emitLog("ability_start", head.PlayerID,
		fmt.Sprintf("%s resolves a %s ability.", g.playerName(head.PlayerID), head.Kind), false, nil)
	g.broadcastState()
}

// sortAbilityQueue puts stack-earned abilities ahead of turn-earned ones,
// preserving arrival order within each class. When the top two entries form
// a matched pair and the head belongs to whoever resolved most recently, the
// pair is flipped so resolution alternates. Assumes lock is held.
func (g *Game) sortAbilityQueue() {
	stacked := make([]PendingAbility, 0, len(g.PendingAbilities))
	regular := make([]PendingAbility, 0, len(g.PendingAbilities))
	for _, a := range g.PendingAbilities {
		if a.Source.stacked() {
			stacked = append(stacked, a)
		} else {
			regular = append(regular, a)
		}
	}
	g.PendingAbilities = append(stacked, regular...)

	if len(g.PendingAbilities) >= 2 {
		a, b := g.PendingAbilities[0], g.PendingAbilities[1]
		paired := a.Source.stacked() && b.Source.stacked() &&
			a.PairTargetID == b.PlayerID && b.PairTargetID == a.PlayerID
		if paired && a.PlayerID == g.lastAbilityResolver {
			g.PendingAbilities[0], g.PendingAbilities[1] = b, a
		}
	}
}

// RequestPeekReveal picks the target cards for the peek stage of a King or
// Queen ability. The identities go to the resolver alone; everyone else only
// learns which slots were inspected.
func (g *Game) RequestPeekReveal(playerID uuid.UUID, targets []CardTarget) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	head, res := g.requireAbilityTurn(playerID)
	if !res.Success {
		return res
	}
	if !head.Kind.isPeek() {
		return fail("this ability stage is a swap, not a peek")
	}
	want := head.Kind.peekCount()
	if len(targets) != want {
		return fail(fmt.Sprintf("this peek requires exactly %d target(s)", want))
	}
	if want == 2 && targets[0] == targets[1] {
		return fail("peek targets must be distinct")
	}
	for _, t := range targets {
		if _, r := g.resolveTarget(t); !r.Success {
			return r
		}
	}

	// The peek stage is spent the moment targets are chosen. The reveal
	// window below is display state only, so a repeat request cannot
	// disclose further cards.
	next, _ := head.Kind.nextStage()
	head.Kind = next

	p := g.Players[playerID]
	p.CardsToPeek = targets
	g.transientReveals[playerID] = targets
	g.GlobalAbilityTargets = targets

	cards := make([]models.Card, len(targets))
	for i, t := range targets {
		cards[i], _ = g.resolveTarget(t)
	}
	g.emitLog("ability_peek", playerID,
		fmt.Sprintf("%s peeks at %s.", p.Name, describeTargets(g, targets)), true, &PrivateLogEntry{
			RecipientID: playerID,
			Message:     fmt.Sprintf("You peeked: %s.", describeCards(cards)),
			Cards:       cards,
		})

	g.startTurnTimer(playerID)
	g.startRevealTimer(g.rules.AbilityPeekReveal, g.endAbilityPeekReveal)
	g.broadcastState()
	return ok()
}

// endAbilityPeekReveal hides the peeked cards once the reveal window lapses.
// The stage was already consumed when the peek was requested, so only
// display state changes here. Assumes lock is held.
func (g *Game) endAbilityPeekReveal() {
	if g.CurrentPhase != PhaseAbilityResolution || len(g.PendingAbilities) == 0 {
		return
	}
	head := g.PendingAbilities[0]
	if head.Kind.isPeek() {
		// The head changed before the window lapsed; nothing is on display.
		return
	}
	if p, exists := g.Players[head.PlayerID]; exists {
		p.CardsToPeek = nil
	}
	delete(g.transientReveals, head.PlayerID)
	g.broadcastState()
}

// ResolveSpecialAbility performs the swap stage of the head ability, moving
// the two target cards between their slots unseen. Both cards land face-down
// to their new owners.
func (g *Game) ResolveSpecialAbility(playerID uuid.UUID, targets []CardTarget) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	head, res := g.requireAbilityTurn(playerID)
	if !res.Success {
		return res
	}
	if head.Kind.isPeek() {
		return fail("finish the peek stage first")
	}
	if len(targets) != 2 || targets[0] == targets[1] {
		return fail("a swap requires two distinct targets")
	}

	for _, t := range targets {
		owner, exists := g.Players[t.PlayerID]
		if !exists {
			return fail("unknown swap target")
		}
		if owner.IsLocked || owner.Forfeited {
			return fail("that hand is locked and cannot be touched")
		}
		if t.HandIndex < 0 || t.HandIndex >= len(owner.Hand) {
			return fail("swap target index out of range")
		}
	}

	// Read both cards before writing either so a self-swap within one hand
	// cannot clobber a slot.
	a, b := targets[0], targets[1]
	cardA := g.Players[a.PlayerID].Hand[a.HandIndex]
	cardB := g.Players[b.PlayerID].Hand[b.HandIndex]
	g.Players[a.PlayerID].Hand[a.HandIndex] = cardB
	g.Players[b.PlayerID].Hand[b.HandIndex] = cardA
	delete(g.ownerVisible, cardA.ID)
	delete(g.ownerVisible, cardB.ID)

	g.emitLog("ability_swap", playerID,
		fmt.Sprintf("%s swapped %s with %s.", g.playerName(playerID),
			describeTargets(g, targets[:1]), describeTargets(g, targets[1:])), false, nil)

	g.completeAbility()
	return ok()
}

// SkipAbilityStage declines the current stage of the head ability. Skipping
// a peek still offers the swap; skipping a swap ends the ability.
func (g *Game) SkipAbilityStage(playerID uuid.UUID) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, res := g.requireAbilityTurn(playerID); !res.Success {
		return res
	}
	g.skipAbilityStageLocked(playerID)
	return ok()
}

// skipAbilityStageLocked advances past the head ability's current stage,
// used by the handler, timeouts and forfeit defaults. Assumes lock is held.
func (g *Game) skipAbilityStageLocked(pid uuid.UUID) {
	if g.CurrentPhase != PhaseAbilityResolution || len(g.PendingAbilities) == 0 {
		return
	}
	head := &g.PendingAbilities[0]
	if head.PlayerID != pid {
		return
	}

	next, more := head.Kind.nextStage()
	if head.Kind.isPeek() && more {
		head.Kind = next
		g.ActivePlayers = map[uuid.UUID]ActivityStatus{pid: StatusResolvingAbility}
		g.startTurnTimer(pid)
		g.emitLog("ability_stage", pid,
			fmt.Sprintf("%s skipped the peek and may now swap.", g.playerName(pid)), false, nil)
		g.broadcastState()
		return
	}

	g.emitLog("ability_skip", pid,
		fmt.Sprintf("%s declined the ability.", g.playerName(pid)), false, nil)
	g.completeAbility()
}

// completeAbility retires the head ability and re-dispatches the queue.
// Assumes lock is held.
func (g *Game) completeAbility() {
	if len(g.PendingAbilities) == 0 {
		return
	}
	head := g.PendingAbilities[0]
	g.PendingAbilities = g.PendingAbilities[1:]
	g.lastAbilityResolver = head.PlayerID

	if p, exists := g.Players[head.PlayerID]; exists {
		p.CardsToPeek = nil
	}
	delete(g.transientReveals, head.PlayerID)
	g.GlobalAbilityTargets = nil
	g.stopTurnTimer(head.PlayerID)
	g.stopRevealTimer()
	g.refreshAbilityFlags()
	g.setupAbilityResolutionPhase()
}

// fizzleAbilitiesOf removes every queued ability owned by pid, re-arming the
// queue if the active one was theirs. Assumes lock is held.
func (g *Game) fizzleAbilitiesOf(pid uuid.UUID) {
	headWasTheirs := len(g.PendingAbilities) > 0 && g.PendingAbilities[0].PlayerID == pid

	kept := g.PendingAbilities[:0]
	for _, a := range g.PendingAbilities {
		if a.PlayerID == pid {
			continue
		}
		kept = append(kept, a)
	}
	g.PendingAbilities = kept
	g.refreshAbilityFlags()

	if p, exists := g.Players[pid]; exists {
		p.CardsToPeek = nil
	}
	delete(g.transientReveals, pid)

	if g.CurrentPhase == PhaseAbilityResolution && headWasTheirs {
		g.stopTurnTimer(pid)
		g.stopRevealTimer()
		g.GlobalAbilityTargets = nil
		g.setupAbilityResolutionPhase()
	}
}

// refreshAbilityFlags recomputes each player's PendingSpecialAbility marker
// from the queue. Assumes lock is held.
func (g *Game) refreshAbilityFlags() {
	for _, p := range g.Players {
		p.PendingSpecialAbility = false
	}
	for _, a := range g.PendingAbilities {
		if p, exists := g.Players[a.PlayerID]; exists {
			p.PendingSpecialAbility = true
		}
	}
}

func (g *Game) requireAbilityTurn(pid uuid.UUID) (*PendingAbility, ActionResult) {
	if g.CurrentPhase != PhaseAbilityResolution || len(g.PendingAbilities) == 0 {
		return nil, fail("no ability is being resolved")
	}
	head := &g.PendingAbilities[0]
	if head.PlayerID != pid {
		return nil, fail("it's not your ability to resolve")
	}
	if g.ActivePlayers[pid] != StatusResolvingAbility {
		return nil, fail("you are not resolving an ability right now")
	}
	return head, ok()
}

// resolveTarget validates a card target and returns the card it points at.
// Assumes lock is held.
func (g *Game) resolveTarget(t CardTarget) (models.Card, ActionResult) {
	owner, exists := g.Players[t.PlayerID]
	if !exists {
		return models.Card{}, fail("unknown target player")
	}
	if owner.Forfeited {
		return models.Card{}, fail("that player has forfeited")
	}
	if t.HandIndex < 0 || t.HandIndex >= len(owner.Hand) {
		return models.Card{}, fail("target index out of range")
	}
	return owner.Hand[t.HandIndex], ok()
}

func describeTargets(g *Game, targets []CardTarget) string {
	s := ""
	for i, t := range targets {
		if i > 0 {
			s += " and "
		}
		s += fmt.Sprintf("%s's slot %d", g.playerName(t.PlayerID), t.HandIndex)
	}
	return s
}

func describeCards(cards []models.Card) string {
	s := ""
	for i, c := range cards {
		if i > 0 {
			s += ", "
		}
		s += c.String()
	}
	return s
}
