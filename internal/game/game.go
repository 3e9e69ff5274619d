// Package game implements the authoritative engine for Check!: the
// seven-phase turn state machine, the timer subsystem, the matching window,
// the King/Queen/Jack ability queue, and the per-viewer state redaction.
//
// Concurrency model: single writer per game. Every exported handler locks the
// game's mutex; timer callbacks do the same and re-validate their relevance
// before acting. Different games are fully independent.
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/checkgame/server/internal/models"
)

const (
	// MinPlayers and MaxPlayers bound the per-game player count.
	MinPlayers = 2
	MaxPlayers = 4

	// logHistorySize bounds the public log ring carried in broadcast state.
	logHistorySize = 64
)

// Rules holds the per-game tunables. Zero durations disable the
// corresponding timers (used by tests).
type Rules struct {
	CardsPerPlayer    int
	TurnTimer         time.Duration
	DisconnectGrace   time.Duration
	MatchingWindow    time.Duration
	InitialPeekReveal time.Duration
	AbilityPeekReveal time.Duration
}

// DefaultRules returns the standard table rules.
func DefaultRules() Rules {
	return Rules{
		CardsPerPlayer:    4,
		TurnTimer:         30 * time.Second,
		DisconnectGrace:   60 * time.Second,
		MatchingWindow:    6 * time.Second,
		InitialPeekReveal: 10 * time.Second,
		AbilityPeekReveal: 5 * time.Second,
	}
}

// OnGameEndFunc is invoked once when a game reaches gameOver, with final
// scores and the winning player ids.
type OnGameEndFunc func(g *Game, scores map[uuid.UUID]int, winners []uuid.UUID)

// Game is the aggregate root for a single Check! game. All mutation happens
// through its handlers and timer callbacks under mu.
type Game struct {
	ID uuid.UUID

	mu    sync.Mutex
	rules Rules
	rng   *rand.Rand

	Deck                []models.Card
	DiscardPile         []models.Card // top of pile = index 0
	DiscardPileIsSealed bool

	Players   map[uuid.UUID]*PlayerState
	TurnOrder []uuid.UUID

	CurrentPhase    Phase
	CurrentPlayerID uuid.UUID
	TurnSegment     TurnSegment
	TurnID          int
	ActivePlayers   map[uuid.UUID]ActivityStatus

	MatchingOpportunity  *MatchingOpportunityInfo
	PendingAbilities     []PendingAbility
	PlayerWhoCalledCheck uuid.UUID
	FinalTurnsTaken      int

	// Transient visualization state, cleared on the next phase transition.
	GlobalAbilityTargets []CardTarget
	LastRegularSwap      *SwapInfo

	// Broadcastable timer deadlines so clients can render countdowns.
	TimerExpiries    map[uuid.UUID]time.Time
	MatchingDeadline time.Time

	Scores  map[uuid.UUID]int
	Winners []uuid.UUID

	LogHistory []LogEntry

	// ownerVisible marks hand cards whose identity the current owner is
	// allowed to see in their own view (e.g. a card swapped in face-up from
	// the discard pile). Everything else is face-down to its owner.
	ownerVisible map[uuid.UUID]bool

	// transientReveals are in-flight peek disclosures per viewer, distinct
	// from permanent ownership visibility.
	transientReveals map[uuid.UUID][]CardTarget

	// Timer handles and their generation guards. A fired callback whose
	// captured generation no longer matches is stale and must be ignored.
	turnTimers    map[uuid.UUID]*time.Timer
	turnGen       map[uuid.UUID]int
	graceTimers   map[uuid.UUID]*time.Timer
	graceGen      map[uuid.UUID]int
	matchingTimer *time.Timer
	matchingGen   int
	revealTimer   *time.Timer
	revealGen     int

	lastAbilityResolver uuid.UUID
	actionIndex         int
	started             bool

	emitter   Emitter
	historian Historian
	onGameEnd OnGameEndFunc
	logger    *logrus.Entry
}

// NewGame constructs an empty game. The emitter is the engine's only way to
// reach the transport and must be wired before Start; historian and
// onGameEnd are optional.
func NewGame(seed int64, rules Rules, emitter Emitter, historian Historian, onGameEnd OnGameEndFunc, logger *logrus.Logger) *Game {
	if rules.CardsPerPlayer <= 0 {
		rules.CardsPerPlayer = 4
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	id := uuid.New()
	return &Game{
		ID:               id,
		rules:            rules,
		rng:              rand.New(rand.NewSource(seed)),
		Players:          make(map[uuid.UUID]*PlayerState),
		ActivePlayers:    make(map[uuid.UUID]ActivityStatus),
		TimerExpiries:    make(map[uuid.UUID]time.Time),
		ownerVisible:     make(map[uuid.UUID]bool),
		transientReveals: make(map[uuid.UUID][]CardTarget),
		turnTimers:       make(map[uuid.UUID]*time.Timer),
		turnGen:          make(map[uuid.UUID]int),
		graceTimers:      make(map[uuid.UUID]*time.Timer),
		graceGen:         make(map[uuid.UUID]int),
		emitter:          emitter,
		historian:        historian,
		onGameEnd:        onGameEnd,
		logger:           logger.WithField("game", id),
	}
}

// Rules returns the game's rule set.
func (g *Game) Rules() Rules { return g.rules }

// Lock acquires the game's single-writer lock. Exposed for the transport,
// which must hold it while projecting views.
func (g *Game) Lock() { g.mu.Lock() }

// Unlock releases the game's single-writer lock.
func (g *Game) Unlock() { g.mu.Unlock() }

// AddPlayer registers a player before the game starts.
func (g *Game) AddPlayer(p models.Player) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return fail("game already in progress")
	}
	if _, exists := g.Players[p.ID]; exists {
		return fail("player already joined")
	}
	if len(g.Players) >= MaxPlayers {
		return fail("game is full")
	}
	g.Players[p.ID] = newPlayerState(p)
	g.TurnOrder = append(g.TurnOrder, p.ID)
	g.logger.WithField("player", p.ID).Info("player added")
	return ok()
}

// Start deals the hands and opens the initial peek phase. Every player must
// declare readiness before the two bottom cards are revealed.
func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return fmt.Errorf("game %s already started", g.ID)
	}
	if len(g.Players) < MinPlayers || len(g.Players) > MaxPlayers {
		return fmt.Errorf("game %s needs %d-%d players, has %d", g.ID, MinPlayers, MaxPlayers, len(g.Players))
	}

	g.Deck = newDeck(g.rng)
	need := g.rules.CardsPerPlayer * len(g.Players)
	if need > len(g.Deck) {
		return fmt.Errorf("game %s: cannot deal %d cards from a %d card deck", g.ID, need, len(g.Deck))
	}
	for _, pid := range g.TurnOrder {
		p := g.Players[pid]
		p.Hand = make([]models.Card, 0, g.rules.CardsPerPlayer)
		for i := 0; i < g.rules.CardsPerPlayer; i++ {
			p.Hand = append(p.Hand, g.drawTopOfDeck())
		}
	}

	g.started = true
	g.CurrentPhase = PhaseInitialPeek
	for _, pid := range g.TurnOrder {
		g.ActivePlayers[pid] = StatusAwaitingReady
		g.startTurnTimer(pid)
	}
	g.emitLog("game_start", uuid.Nil, "The game has started. Declare ready to peek at your two bottom cards.", false, nil)
	g.broadcastState()
	return nil
}

// drawTopOfDeck pops the top card. Callers must have checked len > 0.
func (g *Game) drawTopOfDeck() models.Card {
	card := g.Deck[len(g.Deck)-1]
	g.Deck = g.Deck[:len(g.Deck)-1]
	return card
}

// drawRandomFromDeck removes a uniformly random card, used for face-down
// penalty draws.
func (g *Game) drawRandomFromDeck() (models.Card, bool) {
	if len(g.Deck) == 0 {
		return models.Card{}, false
	}
	i := g.rng.Intn(len(g.Deck))
	card := g.Deck[i]
	g.Deck = append(g.Deck[:i], g.Deck[i+1:]...)
	return card, true
}

// placeOnDiscard puts a card on top of the discard pile. A new top card
// always unseals the pile.
func (g *Game) placeOnDiscard(card models.Card) {
	g.DiscardPile = append([]models.Card{card}, g.DiscardPile...)
	g.DiscardPileIsSealed = false
	delete(g.ownerVisible, card.ID)
}

// discardTop returns the top card without removing it.
func (g *Game) discardTop() (models.Card, bool) {
	if len(g.DiscardPile) == 0 {
		return models.Card{}, false
	}
	return g.DiscardPile[0], true
}

// nonForfeitedCount counts players still in the game.
func (g *Game) nonForfeitedCount() int {
	n := 0
	for _, p := range g.Players {
		if !p.Forfeited {
			n++
		}
	}
	return n
}

// turnIndex locates a player in the fixed turn order.
func (g *Game) turnIndex(pid uuid.UUID) int {
	for i, id := range g.TurnOrder {
		if id == pid {
			return i
		}
	}
	return -1
}

// nextEligibleAfter walks the turn order once, starting after pid, and
// returns the first player eligible for a play turn.
func (g *Game) nextEligibleAfter(pid uuid.UUID, eligible func(*PlayerState) bool) uuid.UUID {
	start := g.turnIndex(pid)
	n := len(g.TurnOrder)
	for i := 1; i <= n; i++ {
		cand := g.TurnOrder[(start+i+n)%n]
		if eligible(g.Players[cand]) {
			return cand
		}
	}
	return uuid.Nil
}

// MarkDisconnected flags a player as disconnected and starts their grace
// timer. Reconnecting within the grace period has no other effect; expiry
// forfeits the player permanently.
func (g *Game) MarkDisconnected(playerID uuid.UUID) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, exists := g.Players[playerID]
	if !exists {
		return fail("unknown player")
	}
	if !p.Connected || p.Forfeited || g.CurrentPhase.terminal() {
		return ok()
	}
	p.Connected = false
	g.startGraceTimer(playerID)
	g.emitLog("player_disconnected", playerID, fmt.Sprintf("%s disconnected.", p.Name), false, nil)
	g.broadcastState()
	return ok()
}

// AttemptRejoin marks a disconnected player as connected again and cancels
// their grace timer. Forfeited players may not return.
func (g *Game) AttemptRejoin(playerID uuid.UUID) ActionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, exists := g.Players[playerID]
	if !exists {
		return fail("unknown player")
	}
	if p.Forfeited {
		return fail("you have forfeited this game")
	}
	if g.CurrentPhase.terminal() {
		return fail("game is over")
	}
	p.Connected = true
	g.stopGraceTimer(playerID)
	g.emitLog("player_rejoined", playerID, fmt.Sprintf("%s reconnected.", p.Name), false, nil)

	// If the rejoiner holds the turn, give them a fresh timer window.
	if g.ActivePlayers[playerID] != "" {
		g.startTurnTimer(playerID)
	}
	g.broadcastState()
	return ok()
}

// forfeitPlayer permanently removes a player from the turn order after their
// grace period lapses. Assumes lock is held.
func (g *Game) forfeitPlayer(playerID uuid.UUID) {
	p, exists := g.Players[playerID]
	if !exists || p.Forfeited || g.CurrentPhase.terminal() {
		return
	}
	p.Forfeited = true
	p.Connected = false
	g.stopTurnTimer(playerID)
	g.emitLog("player_forfeited", playerID, fmt.Sprintf("%s forfeited the game.", p.Name), false, nil)

	if g.nonForfeitedCount() < 2 {
		g.setupScoringPhase()
		return
	}

	status := g.ActivePlayers[playerID]
	switch {
	case status == StatusAwaitingReady:
		g.declareReadyLocked(playerID)
	case status == StatusPlayTurn:
		g.performDefaultTurnAction(playerID)
	case status == StatusAwaitingMatch:
		g.passMatchLocked(playerID)
	case status == StatusResolvingAbility:
		g.fizzleAbilitiesOf(playerID)
	default:
		g.broadcastState()
	}
}

// invariantViolation isolates a structurally corrupt game: it enters the
// terminal error phase, clears every timer, and stops accepting actions.
// Other games are unaffected.
func (g *Game) invariantViolation(reason string) {
	g.logger.WithField("reason", reason).Error("structural invariant violated; game entering error phase")
	g.CurrentPhase = PhaseError
	g.ActivePlayers = make(map[uuid.UUID]ActivityStatus)
	g.MatchingOpportunity = nil
	g.clearAllTimers()
	g.emitLog("game_error", uuid.Nil, "The game was aborted due to an internal error.", false, nil)
	if g.emitter != nil {
		g.emitter.Broadcast(g)
	}
}

// cardCount tallies every card the game tracks: deck, discard pile, hands
// and pending drawn cards. It must equal DeckSize between handlers.
func (g *Game) cardCount() int {
	n := len(g.Deck) + len(g.DiscardPile)
	for _, p := range g.Players {
		n += len(p.Hand)
		if p.PendingDrawnCard != nil {
			n++
		}
	}
	return n
}

// broadcastState pushes the authoritative state to the transport. The card
// conservation invariant is checked on the way out.
func (g *Game) broadcastState() {
	if g.started && !g.CurrentPhase.terminal() && g.cardCount() != DeckSize {
		g.invariantViolation(fmt.Sprintf("card conservation broken: %d cards tracked", g.cardCount()))
		return
	}
	if g.emitter == nil {
		g.logger.Warn("emitter is nil, cannot broadcast state")
		return
	}
	g.emitter.Broadcast(g)
}

// emitLog appends a public entry to the bounded history ring, forwards the
// public/private pair to the transport, and publishes an audit record to the
// historian. Assumes lock is held.
func (g *Game) emitLog(entryType string, actor uuid.UUID, publicMsg string, hasPrivate bool, private *PrivateLogEntry) {
	g.actionIndex++
	entry := LogEntry{
		Seq:        g.actionIndex,
		Type:       entryType,
		ActorID:    actor,
		Message:    publicMsg,
		HasPrivate: hasPrivate,
		At:         time.Now(),
	}
	g.LogHistory = append(g.LogHistory, entry)
	if len(g.LogHistory) > logHistorySize {
		g.LogHistory = g.LogHistory[len(g.LogHistory)-logHistorySize:]
	}

	if g.emitter != nil {
		g.emitter.EmitLog(g.ID, entry, private)
	}
	if g.historian != nil {
		g.historian.PublishAction(GameActionRecord{
			GameID:      g.ID,
			ActionIndex: entry.Seq,
			ActorID:     actor,
			ActionType:  entryType,
			Payload:     map[string]interface{}{"message": publicMsg},
			Timestamp:   entry.At.UnixMilli(),
		})
	}
}

// playerName is a log helper tolerating unknown ids.
func (g *Game) playerName(pid uuid.UUID) string {
	if p, exists := g.Players[pid]; exists {
		return p.Name
	}
	return pid.String()
}
