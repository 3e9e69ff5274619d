package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkgame/server/internal/models"
)

// enterAbilityPhase discards a crafted special card from the current player
// and passes the matching window, leaving the game resolving that ability.
func enterAbilityPhase(t *testing.T, g *Game, rank string) uuid.UUID {
	t.Helper()
	owner := discardSpecific(t, g, makeCard(rank, models.SuitSpades))
	passMatchingStage(t, g)
	require.Equal(t, PhaseAbilityResolution, g.CurrentPhase)
	require.Equal(t, owner, g.PendingAbilities[0].PlayerID)
	return owner
}

func TestDiscardedSpecialCardQueuesAbility(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankJack)
	head := g.PendingAbilities[0]
	assert.Equal(t, AbilityJackSwap, head.Kind)
	assert.Equal(t, AbilityFromDeck, head.Source)
	assert.Equal(t, StatusResolvingAbility, g.ActivePlayers[owner])
	assert.True(t, g.Players[owner].PendingSpecialAbility)
}

func TestKingAbilityPeeksThenSwaps(t *testing.T) {
	g, ids, me := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankKing)
	other := ids[0]
	if other == owner {
		other = ids[1]
	}
	require.Equal(t, AbilityKingPeek, g.PendingAbilities[0].Kind)

	targets := []CardTarget{
		{PlayerID: owner, HandIndex: 0},
		{PlayerID: other, HandIndex: 1},
	}
	peekedOwn := g.Players[owner].Hand[0]
	peekedOther := g.Players[other].Hand[1]

	require.False(t, g.RequestPeekReveal(owner, targets[:1]).Success, "a King peek needs two targets")
	require.True(t, g.RequestPeekReveal(owner, targets).Success)

	priv := me.lastPrivate(owner)
	require.NotNil(t, priv, "peeked identities go to the resolver privately")
	assert.Equal(t, []models.Card{peekedOwn, peekedOther}, priv.Cards)

	// With no reveal timer the peek collapses straight into the swap stage.
	require.Equal(t, AbilityKingSwap, g.PendingAbilities[0].Kind)
	assert.Nil(t, g.transientReveals[owner], "the reveal must not outlive the peek stage")

	require.True(t, g.ResolveSpecialAbility(owner, targets).Success)
	assert.Equal(t, peekedOther.ID, g.Players[owner].Hand[0].ID)
	assert.Equal(t, peekedOwn.ID, g.Players[other].Hand[1].ID)
	assert.False(t, g.ownerVisible[peekedOwn.ID], "swapped cards land face-down")
	assert.False(t, g.ownerVisible[peekedOther.ID])

	assert.Empty(t, g.PendingAbilities)
	assert.Equal(t, PhasePlay, g.CurrentPhase, "play resumes after the ability")
	assert.Equal(t, DeckSize, g.cardCount())
}

func TestRepeatPeekRequestIsRejected(t *testing.T) {
	g, ids, me := setupTestGame(t, 2, Rules{CardsPerPlayer: 4, AbilityPeekReveal: time.Hour})
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankKing)
	other := ids[0]
	if other == owner {
		other = ids[1]
	}

	first := []CardTarget{{PlayerID: owner, HandIndex: 0}, {PlayerID: other, HandIndex: 0}}
	require.True(t, g.RequestPeekReveal(owner, first).Success)
	require.Equal(t, AbilityKingSwap, g.PendingAbilities[0].Kind, "the peek stage is spent on first use")

	second := []CardTarget{{PlayerID: owner, HandIndex: 1}, {PlayerID: other, HandIndex: 1}}
	res := g.RequestPeekReveal(owner, second)
	assert.False(t, res.Success, "a second peek during the reveal window is rejected")
	assert.Equal(t, 1, me.privateCount(owner), "a King peek discloses exactly one batch of cards")
	assert.Len(t, me.lastPrivate(owner).Cards, 2)
}

func TestPeekWindowLapseKeepsSwapAvailable(t *testing.T) {
	rules := timerlessRules()
	rules.AbilityPeekReveal = 30 * time.Millisecond
	g, ids, _ := setupTestGame(t, 2, rules)
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankQueen)
	other := ids[0]
	if other == owner {
		other = ids[1]
	}
	require.True(t, g.RequestPeekReveal(owner, []CardTarget{{PlayerID: owner, HandIndex: 0}}).Success)
	require.Equal(t, AbilityQueenSwap, g.PendingAbilities[0].Kind)

	// The lapse of the reveal window only hides the card; the swap stage
	// granted by the ability survives it.
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.transientReveals[owner]) == 0
	}, time.Second, 5*time.Millisecond, "the reveal should be hidden after the window")

	require.Equal(t, PhaseAbilityResolution, g.CurrentPhase)
	require.NotEmpty(t, g.PendingAbilities)
	assert.Equal(t, AbilityQueenSwap, g.PendingAbilities[0].Kind)
	targets := []CardTarget{{PlayerID: owner, HandIndex: 0}, {PlayerID: other, HandIndex: 0}}
	require.True(t, g.ResolveSpecialAbility(owner, targets).Success)
	assert.Empty(t, g.PendingAbilities)
}

func TestAbilityEndInvalidatesPeekRevealTimer(t *testing.T) {
	rules := timerlessRules()
	rules.AbilityPeekReveal = 20 * time.Millisecond
	g, ids, _ := setupTestGame(t, 2, rules)
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankKing)
	other := ids[0]
	if other == owner {
		other = ids[1]
	}
	targets := []CardTarget{{PlayerID: owner, HandIndex: 0}, {PlayerID: other, HandIndex: 0}}
	require.True(t, g.RequestPeekReveal(owner, targets).Success)
	require.True(t, g.SkipAbilityStage(owner).Success, "declining the swap ends the ability")
	require.Equal(t, PhasePlay, g.CurrentPhase)

	turnBefore := g.TurnID
	time.Sleep(60 * time.Millisecond)

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Equal(t, PhasePlay, g.CurrentPhase)
	assert.Equal(t, turnBefore, g.TurnID, "a lapsed reveal window must not advance play")
	assert.Empty(t, g.transientReveals)
}

func TestDisconnectedOwnerKeepsQueuedAbility(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3, timerlessRules())
	advancePastPeek(t, g, ids)

	owner := discardSpecific(t, g, makeCard(models.RankQueen, models.SuitSpades))
	require.True(t, g.MarkDisconnected(owner).Success)
	passMatchingStage(t, g)

	require.Equal(t, PhaseAbilityResolution, g.CurrentPhase)
	require.Equal(t, owner, g.PendingAbilities[0].PlayerID, "a disconnected owner keeps their ability")
	assert.True(t, g.Players[owner].PendingSpecialAbility)

	require.True(t, g.AttemptRejoin(owner).Success)
	res := g.RequestPeekReveal(owner, []CardTarget{{PlayerID: owner, HandIndex: 0}})
	assert.True(t, res.Success, "the rejoined owner resolves their ability normally")
}

func TestQueenPeeksExactlyOneCard(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankQueen)
	require.Equal(t, AbilityQueenPeek, g.PendingAbilities[0].Kind)

	two := []CardTarget{{PlayerID: owner, HandIndex: 0}, {PlayerID: owner, HandIndex: 1}}
	require.False(t, g.RequestPeekReveal(owner, two).Success, "a Queen peek takes one target")
	require.True(t, g.RequestPeekReveal(owner, two[:1]).Success)
	assert.Equal(t, AbilityQueenSwap, g.PendingAbilities[0].Kind)
}

func TestJackSwapHasNoPeekStage(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankJack)
	res := g.RequestPeekReveal(owner, []CardTarget{{PlayerID: owner, HandIndex: 0}})
	assert.False(t, res.Success, "a Jack has no peek stage")

	other := ids[0]
	if other == owner {
		other = ids[1]
	}
	targets := []CardTarget{
		{PlayerID: owner, HandIndex: 2},
		{PlayerID: other, HandIndex: 3},
	}
	require.True(t, g.ResolveSpecialAbility(owner, targets).Success)
	assert.Empty(t, g.PendingAbilities)
}

func TestSwapIntoLockedHandIsRejected(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3, timerlessRules())
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankJack)
	victim := ids[2]
	if victim == owner {
		victim = ids[1]
	}
	g.mu.Lock()
	g.Players[victim].IsLocked = true
	g.mu.Unlock()

	targets := []CardTarget{
		{PlayerID: owner, HandIndex: 0},
		{PlayerID: victim, HandIndex: 0},
	}
	res := g.ResolveSpecialAbility(owner, targets)
	assert.False(t, res.Success, "locked hands are untouchable")
	assert.Equal(t, PhaseAbilityResolution, g.CurrentPhase, "a rejected swap leaves the ability pending")
}

func TestSkipPeekStillOffersSwap(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankKing)
	require.True(t, g.SkipAbilityStage(owner).Success)
	assert.Equal(t, AbilityKingSwap, g.PendingAbilities[0].Kind, "skipping the peek advances to the swap")

	require.True(t, g.SkipAbilityStage(owner).Success)
	assert.Empty(t, g.PendingAbilities, "skipping the swap ends the ability")
	assert.Equal(t, PhasePlay, g.CurrentPhase)
}

func TestOffTurnAbilityActionsRejected(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankJack)
	other := ids[0]
	if other == owner {
		other = ids[1]
	}
	res := g.SkipAbilityStage(other)
	assert.False(t, res.Success, "only the ability owner may act")
}

func TestForfeitFizzlesOwnedAbilities(t *testing.T) {
	g, ids, _ := setupTestGame(t, 3, timerlessRules())
	advancePastPeek(t, g, ids)

	owner := enterAbilityPhase(t, g, models.RankQueen)

	g.mu.Lock()
	g.Players[owner].Connected = false
	g.forfeitPlayer(owner)
	g.mu.Unlock()

	assert.Empty(t, g.PendingAbilities, "a forfeited owner's abilities vanish")
	assert.False(t, g.Players[owner].PendingSpecialAbility)
	assert.NotEqual(t, PhaseAbilityResolution, g.CurrentPhase)
	assert.Equal(t, PhasePlay, g.CurrentPhase, "play resumes for the remaining players")
}

func TestStackedPairAlternatesResolvers(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)
	a, b := ids[0], ids[1]

	g.mu.Lock()
	g.PendingAbilities = []PendingAbility{
		{PlayerID: a, Kind: AbilityJackSwap, Source: AbilityFromStack, PairTargetID: b},
		{PlayerID: b, Kind: AbilityJackSwap, Source: AbilityFromStackPair, PairTargetID: a},
	}
	g.lastAbilityResolver = a
	g.setupAbilityResolutionPhase()
	g.mu.Unlock()

	assert.Equal(t, b, g.PendingAbilities[0].PlayerID, "a paired head repeating the last resolver is flipped")
}

func TestStackedAbilitiesResolveBeforeTurnAbilities(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, timerlessRules())
	advancePastPeek(t, g, ids)
	a, b := ids[0], ids[1]

	g.mu.Lock()
	g.PendingAbilities = []PendingAbility{
		{PlayerID: a, Kind: AbilityQueenPeek, Source: AbilityFromDiscard},
		{PlayerID: b, Kind: AbilityJackSwap, Source: AbilityFromStack, PairTargetID: a},
	}
	g.setupAbilityResolutionPhase()
	g.mu.Unlock()

	assert.Equal(t, b, g.PendingAbilities[0].PlayerID, "stack-earned abilities take priority")
	assert.Equal(t, AbilityFromDiscard, g.PendingAbilities[1].Source)
}
