package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkgame/server/internal/models"
)

// discardSpecific puts a crafted card on the current player's pending slot
// and discards it, opening a deterministic matching window.
func discardSpecific(t *testing.T, g *Game, card models.Card) uuid.UUID {
	t.Helper()
	current := g.CurrentPlayerID
	require.True(t, g.DrawFromDeck(current).Success)

	g.mu.Lock()
	g.Players[current].PendingDrawnCard = &card
	g.mu.Unlock()

	require.True(t, g.DiscardDrawnCard(current).Success)
	require.Equal(t, PhaseMatching, g.CurrentPhase)
	return current
}

func TestMatchingOpensForAllEligiblePlayers(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3, timerlessRules())
	advancePastPeek(t, g, ids)

	discarder := discardSpecific(t, g, makeCard(models.RankSeven, models.SuitHearts))

	require.NotNil(t, g.MatchingOpportunity)
	assert.Equal(t, discarder, g.MatchingOpportunity.DiscarderID)
	assert.Len(t, g.ActivePlayers, 3, "the discarder may match their own card too")
	for _, pid := range ids {
		assert.Equal(t, StatusAwaitingMatch, g.ActivePlayers[pid])
	}
}

func TestMatchSuccessSealsPileAndEndsStage(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3, timerlessRules())
	advancePastPeek(t, g, ids)

	discarder := discardSpecific(t, g, makeCard(models.RankSeven, models.SuitHearts))
	matcher := ids[0]
	if matcher == discarder {
		matcher = ids[1]
	}

	g.mu.Lock()
	g.Players[matcher].Hand[1] = makeCard(models.RankSeven, models.SuitClubs)
	g.mu.Unlock()

	handBefore := len(g.Players[matcher].Hand)
	require.True(t, g.AttemptMatch(matcher, 1).Success)

	assert.Len(t, g.Players[matcher].Hand, handBefore-1)
	assert.True(t, g.DiscardPileIsSealed, "a stacked pile is sealed against draws")
	assert.Equal(t, 1, g.Players[matcher].NumMatches)
	assert.NotEqual(t, PhaseMatching, g.CurrentPhase, "the first successful match ends the stage")

	// The sealed pile cannot be drawn from on the next turn.
	res := g.DrawFromDiscard(g.CurrentPlayerID)
	assert.False(t, res.Success)
}

func TestMatchFailureDrawsPenaltyCard(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)

	discarder := discardSpecific(t, g, makeCard(models.RankSeven, models.SuitHearts))
	matcher := ids[0]
	if matcher == discarder {
		matcher = ids[1]
	}

	g.mu.Lock()
	g.Players[matcher].Hand[0] = makeCard(models.RankFour, models.SuitClubs)
	g.mu.Unlock()

	handBefore := len(g.Players[matcher].Hand)
	deckBefore := len(g.Deck)
	res := g.AttemptMatch(matcher, 0)

	assert.True(t, res.Success, "a miss is a legal play, not a rejected action")
	assert.Equal(t, "no match, penalty card drawn", res.Message)
	assert.Len(t, g.Players[matcher].Hand, handBefore+1, "penalty card joins the hand")
	assert.Equal(t, deckBefore-1, len(g.Deck))
	assert.Equal(t, 1, g.Players[matcher].NumPenalties)
	assert.False(t, g.ownerVisible[g.Players[matcher].Hand[handBefore].ID], "the penalty card is face-down to its owner")

	require.False(t, g.AttemptMatch(matcher, 0).Success, "one attempt per window")
	assert.Equal(t, DeckSize, g.cardCount())
}

func TestPassingAllPlayersClosesWindow(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3, timerlessRules())
	advancePastPeek(t, g, ids)

	discarder := discardSpecific(t, g, makeCard(models.RankSeven, models.SuitHearts))
	passMatchingStage(t, g)

	assert.Equal(t, PhasePlay, g.CurrentPhase)
	assert.Nil(t, g.MatchingOpportunity)
	assert.NotEqual(t, discarder, g.CurrentPlayerID, "the turn advances past the discarder")
}

func TestMatchingExcludesLockedAndForfeited(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3, timerlessRules())
	advancePastPeek(t, g, ids)

	g.mu.Lock()
	g.Players[ids[2]].IsLocked = true
	g.mu.Unlock()

	discardSpecific(t, g, makeCard(models.RankSeven, models.SuitHearts))
	assert.NotContains(t, g.ActivePlayers, ids[2], "a locked hand cannot match")
	res := g.AttemptMatch(ids[2], 0)
	assert.False(t, res.Success)
}

func TestEmptyingHandByMatchAutoCallsCheck(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)

	discarder := discardSpecific(t, g, makeCard(models.RankSeven, models.SuitHearts))
	matcher := ids[0]
	if matcher == discarder {
		matcher = ids[1]
	}

	// Shrink the matcher's hand to a single matching card.
	giveHands(t, g, map[uuid.UUID][]models.Card{
		matcher:   {makeCard(models.RankSeven, models.SuitClubs)},
		discarder: g.Players[discarder].Hand,
	})

	require.True(t, g.AttemptMatch(matcher, 0).Success)
	assert.Empty(t, g.Players[matcher].Hand)
	assert.Equal(t, matcher, g.PlayerWhoCalledCheck, "emptying the hand auto-calls Check")
	assert.True(t, g.Players[matcher].IsLocked)
	assert.Equal(t, PhaseFinalTurns, g.CurrentPhase)
}

func TestEmptyingHandAfterCheckStillLocks(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3, timerlessRules())
	advancePastPeek(t, g, ids)

	caller := g.CurrentPlayerID
	require.True(t, g.CallCheck(caller).Success)
	require.Equal(t, PhaseFinalTurns, g.CurrentPhase)

	discarder := g.CurrentPlayerID
	var matcher uuid.UUID
	for _, pid := range ids {
		if pid != caller && pid != discarder {
			matcher = pid
		}
	}

	// During a final turn, a third player matches away their last card.
	discardSpecific(t, g, makeCard(models.RankSeven, models.SuitHearts))
	giveHands(t, g, map[uuid.UUID][]models.Card{
		matcher:   {makeCard(models.RankSeven, models.SuitClubs)},
		caller:    g.Players[caller].Hand,
		discarder: g.Players[discarder].Hand,
	})

	require.True(t, g.AttemptMatch(matcher, 0).Success)
	assert.Empty(t, g.Players[matcher].Hand)
	assert.True(t, g.Players[matcher].IsLocked, "an emptied hand locks even after Check was called")
	assert.Equal(t, caller, g.PlayerWhoCalledCheck, "the original caller keeps the Check")
	assert.False(t, g.Players[matcher].HasCalledCheck)
	assert.Equal(t, PhaseGameOver, g.CurrentPhase, "the locked matcher owes no final turn")
}

func TestSpecialPairMatchQueuesBothAbilities(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)

	discarder := discardSpecific(t, g, makeCard(models.RankJack, models.SuitHearts))
	matcher := ids[0]
	if matcher == discarder {
		matcher = ids[1]
	}

	g.mu.Lock()
	g.Players[matcher].Hand[0] = makeCard(models.RankJack, models.SuitClubs)
	g.mu.Unlock()

	require.True(t, g.AttemptMatch(matcher, 0).Success)
	require.Equal(t, PhaseAbilityResolution, g.CurrentPhase)

	// The matcher's stacked ability resolves before the discarder's pair
	// half; the discarder's own jack-from-deck ability queues behind both.
	require.NotEmpty(t, g.PendingAbilities)
	head := g.PendingAbilities[0]
	assert.Equal(t, matcher, head.PlayerID)
	assert.Equal(t, AbilityFromStack, head.Source)
	assert.Equal(t, discarder, head.PairTargetID)
}
