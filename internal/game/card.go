package game

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/checkgame/server/internal/models"
)

// DeckSize is the number of cards in a Check! deck.
const DeckSize = 52

var allSuits = []string{models.SuitHearts, models.SuitDiamonds, models.SuitClubs, models.SuitSpades}

var allRanks = []string{
	models.RankAce, models.RankTwo, models.RankThree, models.RankFour,
	models.RankFive, models.RankSix, models.RankSeven, models.RankEight,
	models.RankNine, models.RankTen, models.RankJack, models.RankQueen,
	models.RankKing,
}

// newDeck builds a shuffled 52-card deck. Each card gets a fresh ID; the ID
// is the redaction and animation key for the rest of the round.
func newDeck(rng *rand.Rand) []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	for _, suit := range allSuits {
		for _, rank := range allRanks {
			deck = append(deck, models.Card{ID: uuid.New(), Rank: rank, Suit: suit})
		}
	}
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
