package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Suit is a card suit. Declaration order is the hand sort order.
type Suit int8

const (
	SuitDiamonds Suit = iota
	SuitClubs
	SuitHearts
	SuitSpades
)

// Trump is the suit that outranks every other suit.
const Trump = SuitSpades

var suitSymbols = [...]string{"♦", "♣", "♥", "♠"}

// Suits lists every suit in sort order.
func Suits() []Suit {
	return []Suit{SuitDiamonds, SuitClubs, SuitHearts, SuitSpades}
}

func (s Suit) String() string {
	if s < SuitDiamonds || s > SuitSpades {
		return "?"
	}
	return suitSymbols[s]
}

// ParseSuit accepts the suit symbol or its initial letter (D, C, H, S).
func ParseSuit(v string) (Suit, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "♦", "D":
		return SuitDiamonds, nil
	case "♣", "C":
		return SuitClubs, nil
	case "♥", "H":
		return SuitHearts, nil
	case "♠", "S":
		return SuitSpades, nil
	}
	return 0, fmt.Errorf("unknown suit %q", v)
}

// Rank is a card rank. Rank2 is the lowest, RankAce the highest.
type Rank int8

const (
	Rank2 Rank = iota + 2
	Rank3
	Rank4
	Rank5
	Rank6
	Rank7
	Rank8
	Rank9
	Rank10
	RankJack
	RankQueen
	RankKing
	RankAce
)

// Ranks lists every rank in ascending order.
func Ranks() []Rank {
	out := make([]Rank, 0, 13)
	for r := Rank2; r <= RankAce; r++ {
		out = append(out, r)
	}
	return out
}

func (r Rank) String() string {
	switch r {
	case RankJack:
		return "J"
	case RankQueen:
		return "Q"
	case RankKing:
		return "K"
	case RankAce:
		return "A"
	}
	if r >= Rank2 && r <= Rank10 {
		return fmt.Sprint(int(r))
	}
	return "?"
}

// ParseRank accepts "2".."10", "J", "Q", "K" and "A" (case-insensitive).
func ParseRank(v string) (Rank, error) {
	for _, r := range Ranks() {
		if strings.EqualFold(strings.TrimSpace(v), r.String()) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown rank %q", v)
}

// Card is a single playing card.
type Card struct {
	Suit Suit
	Rank Rank
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Valid reports whether the card belongs to the standard 52-card deck.
func (c Card) Valid() bool {
	return c.Suit >= SuitDiamonds && c.Suit <= SuitSpades && c.Rank >= Rank2 && c.Rank <= RankAce
}

type wireCard struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

// MarshalJSON encodes the card as {"suit":"♦","value":"10"}.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireCard{Suit: c.Suit.String(), Value: c.Rank.String()})
}

// UnmarshalJSON decodes the {"suit","value"} form.
func (c *Card) UnmarshalJSON(data []byte) error {
	var w wireCard
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	suit, err := ParseSuit(w.Suit)
	if err != nil {
		return err
	}
	rank, err := ParseRank(w.Value)
	if err != nil {
		return err
	}
	*c = Card{Suit: suit, Rank: rank}
	return nil
}
