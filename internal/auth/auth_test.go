package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinTokenRoundTrip(t *testing.T) {
	gameID := uuid.New()
	playerID := uuid.New()

	token, err := CreateJoinToken("secret", gameID, playerID, "Alice", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJoinToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, gameID, claims.GameID)
	assert.Equal(t, playerID, claims.PlayerID)
	assert.Equal(t, "Alice", claims.PlayerName)
}

func TestJoinTokenWrongSecret(t *testing.T) {
	token, err := CreateJoinToken("secret", uuid.New(), uuid.New(), "Bob", time.Hour)
	require.NoError(t, err)

	_, err = ParseJoinToken("other-secret", token)
	assert.Error(t, err)
}

func TestJoinTokenExpired(t *testing.T) {
	token, err := CreateJoinToken("secret", uuid.New(), uuid.New(), "Bob", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJoinToken("secret", token)
	assert.Error(t, err)
}

func TestJoinTokenGarbage(t *testing.T) {
	_, err := ParseJoinToken("secret", "not-a-token")
	assert.Error(t, err)
}
