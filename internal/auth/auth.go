// Package auth issues and verifies game join tokens. A token binds one
// player identity to one game, so a websocket connection can present a
// single signed string instead of a session.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JoinClaims are the claims carried by a join token.
type JoinClaims struct {
	GameID     uuid.UUID `json:"gameId"`
	PlayerID   uuid.UUID `json:"playerId"`
	PlayerName string    `json:"playerName"`
	jwt.RegisteredClaims
}

// CreateJoinToken signs a token admitting playerID into gameID until ttl
// elapses.
func CreateJoinToken(secret string, gameID, playerID uuid.UUID, playerName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JoinClaims{
		GameID:     gameID,
		PlayerID:   playerID,
		PlayerName: playerName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJoinToken verifies the signature and expiry and returns the claims.
func ParseJoinToken(secret, tokenString string) (*JoinClaims, error) {
	claims := &JoinClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.GameID == uuid.Nil || claims.PlayerID == uuid.Nil {
		return nil, fmt.Errorf("token missing game or player binding")
	}
	return claims, nil
}
