package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkgame/server/internal/models"
)

// mockHistorian records published actions in arrival order.
type mockHistorian struct {
	mu      sync.Mutex
	records []GameActionRecord
}

func (m *mockHistorian) PublishAction(rec GameActionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

func TestHistorianReceivesOrderedRecords(t *testing.T) {
	me := newMockEmitter()
	mh := &mockHistorian{}
	g := NewGame(7, timerlessRules(), me, mh, nil, nil)

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	for i, pid := range ids {
		require.True(t, g.AddPlayer(models.Player{ID: pid, Name: string(rune('A' + i))}).Success)
	}
	require.NoError(t, g.Start())
	for _, pid := range ids {
		require.True(t, g.DeclareReadyForPeek(pid).Success)
	}
	current := g.CurrentPlayerID
	require.True(t, g.DrawFromDeck(current).Success)
	require.True(t, g.DiscardDrawnCard(current).Success)

	mh.mu.Lock()
	defer mh.mu.Unlock()
	require.NotEmpty(t, mh.records)
	for i, rec := range mh.records {
		assert.Equal(t, g.ID, rec.GameID)
		assert.Equal(t, i+1, rec.ActionIndex, "action indices are dense and ordered")
		assert.NotEmpty(t, rec.ActionType)
		assert.NotZero(t, rec.Timestamp)
	}
}

func TestRejoinReschedulesTurnTimer(t *testing.T) {
	g, ids, _ := setupTestGame(t, 2, Rules{
		CardsPerPlayer:  4,
		TurnTimer:       time.Hour,
		DisconnectGrace: time.Hour,
	})
	advancePastPeek(t, g, ids)
	current := g.CurrentPlayerID

	g.mu.Lock()
	before := g.TimerExpiries[current]
	g.mu.Unlock()
	require.False(t, before.IsZero())

	require.True(t, g.MarkDisconnected(current).Success)
	time.Sleep(5 * time.Millisecond)
	require.True(t, g.AttemptRejoin(current).Success)

	g.mu.Lock()
	after := g.TimerExpiries[current]
	g.mu.Unlock()
	assert.True(t, after.After(before), "the rejoining turn holder gets a fresh timer window")
}
