// Package models holds the wire-level value types shared between the game
// engine and the transport layer.
package models

import "github.com/google/uuid"

// Card suits. Jokers are not used; a Check! deck is the plain 52.
const (
	SuitHearts   = "H"
	SuitDiamonds = "D"
	SuitClubs    = "C"
	SuitSpades   = "S"
)

// Card ranks. "T" represents Ten.
const (
	RankAce   = "A"
	RankTwo   = "2"
	RankThree = "3"
	RankFour  = "4"
	RankFive  = "5"
	RankSix   = "6"
	RankSeven = "7"
	RankEight = "8"
	RankNine  = "9"
	RankTen   = "T"
	RankJack  = "J"
	RankQueen = "Q"
	RankKing  = "K"
)

// Card is a value-identity playing card. The ID is stable for the life of a
// round and is what clients key animations and reveals on.
type Card struct {
	ID   uuid.UUID `json:"id"`
	Rank string    `json:"rank"`
	Suit string    `json:"suit"`
}

// Value returns the scoring value of the card: Ace is -1, numerals count
// face value, Jack 11, Queen 12, King 13.
func (c Card) Value() int {
	switch c.Rank {
	case RankAce:
		return -1
	case RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven, RankEight, RankNine:
		return int(c.Rank[0] - '0')
	case RankTen:
		return 10
	case RankJack:
		return 11
	case RankQueen:
		return 12
	case RankKing:
		return 13
	}
	return 0
}

// IsSpecial reports whether discarding or matching this card triggers a
// special ability (King, Queen or Jack).
func (c Card) IsSpecial() bool {
	return c.Rank == RankJack || c.Rank == RankQueen || c.Rank == RankKing
}

// String renders the card as rank+suit, e.g. "KS" for the king of spades.
func (c Card) String() string {
	return c.Rank + c.Suit
}

// Player identifies a participant joining a game. Connection state is owned
// by the engine; the transport keeps its own socket registry.
type Player struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// GameAction is the envelope the transport decodes from clients and feeds
// into the engine's dispatch surface.
type GameAction struct {
	ActionType string                 `json:"action"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}
