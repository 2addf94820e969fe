package domain

// LegalPlays returns the cards of hand that may be played next.
//
// lead is the suit of the trick in progress, or nil when the player is
// leading. Rules, in order:
//  1. A player holding the lead suit must follow it.
//  2. A player leading may not lead a spade before spades are broken,
//     unless the hand holds nothing but spades.
//  3. Otherwise any card may be played.
//
// The result is a new slice in hand order; it is empty only for an empty hand.
func LegalPlays(hand []Card, lead *Suit, spadesBroken bool) []Card {
	if lead != nil {
		if follow := filterSuit(hand, func(s Suit) bool { return s == *lead }); len(follow) > 0 {
			return follow
		}
	}

	if lead == nil && !spadesBroken {
		if nonTrump := filterSuit(hand, func(s Suit) bool { return s != Trump }); len(nonTrump) > 0 {
			return nonTrump
		}
	}

	return append([]Card(nil), hand...)
}

// IsLegalPlay reports whether card is among LegalPlays(hand, lead, spadesBroken).
func IsLegalPlay(hand []Card, lead *Suit, spadesBroken bool, card Card) bool {
	return ContainsCard(LegalPlays(hand, lead, spadesBroken), card)
}

func filterSuit(hand []Card, keep func(Suit) bool) []Card {
	var out []Card
	for _, c := range hand {
		if keep(c.Suit) {
			out = append(out, c)
		}
	}
	return out
}
