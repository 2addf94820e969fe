package domain

import (
	"math/rand"
	"sort"
)

const (
	// HandSize is the number of cards dealt to each player in a 4-player game.
	HandSize = 13
	// SixPlayerHandSize is the number of cards dealt to each player in a 6-player game.
	SixPlayerHandSize = 8
)

// NewDeck returns the 52 unique cards of a standard deck.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, s := range Suits() {
		for _, r := range Ranks() {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// Shuffle permutes the deck in place using rng.
func Shuffle(deck []Card, rng *rand.Rand) {
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

// CardsPerPlayer returns the hand size for a table of n players.
func CardsPerPlayer(n int) int {
	if n == 6 {
		return SixPlayerHandSize
	}
	return HandSize
}

// Deal hands out cards one at a time in seat order, drawing from the end of
// the deck, until every hand holds CardsPerPlayer(n) cards. Leftover cards
// are not dealt. Each hand is sorted. The deck is not modified.
func Deal(deck []Card, n int) [][]Card {
	if n <= 0 {
		return nil
	}
	per := CardsPerPlayer(n)
	if per*n > len(deck) {
		panic("deal: deck too small for table")
	}

	hands := make([][]Card, n)
	for i := range hands {
		hands[i] = make([]Card, 0, per)
	}
	top := len(deck) - 1
	for i := 0; i < per*n; i++ {
		hands[i%n] = append(hands[i%n], deck[top])
		top--
	}
	for _, h := range hands {
		SortHand(h)
	}
	return hands
}

// SortHand orders a hand by suit (♦, ♣, ♥, ♠) then ascending rank.
func SortHand(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		return cardOrder(cards[i]) < cardOrder(cards[j])
	})
}

func cardOrder(c Card) int {
	return int(c.Suit)*16 + int(c.Rank)
}

// ContainsCard reports whether the card is in the hand.
func ContainsCard(hand []Card, card Card) bool {
	for _, c := range hand {
		if c == card {
			return true
		}
	}
	return false
}

// RemoveCard returns a copy of the hand without the given card.
func RemoveCard(hand []Card, card Card) []Card {
	out := make([]Card, 0, len(hand))
	removed := false
	for _, c := range hand {
		if !removed && c == card {
			removed = true
			continue
		}
		out = append(out, c)
	}
	return out
}
