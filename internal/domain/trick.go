package domain

// Play is a single card placed into a trick by a seat.
type Play struct {
	Card   Card   `json:"card"`
	SeatID string `json:"playerId"`
}

// Trick holds the plays of the trick in progress, in play order.
type Trick []Play

// LeadSuit returns the suit of the first card, or nil when the trick is empty.
func (t Trick) LeadSuit() *Suit {
	if len(t) == 0 {
		return nil
	}
	s := t[0].Card.Suit
	return &s
}

// TrickWinner returns the winning play: the highest trump if any trump was
// played, otherwise the highest card of the lead suit.
func TrickWinner(trick Trick) Play {
	if len(trick) == 0 {
		panic("trick winner: empty trick")
	}

	target := trick[0].Card.Suit
	for _, p := range trick {
		if p.Card.Suit == Trump {
			target = Trump
			break
		}
	}

	winner := -1
	for i, p := range trick {
		if p.Card.Suit != target {
			continue
		}
		if winner < 0 || p.Card.Rank > trick[winner].Card.Rank {
			winner = i
		}
	}
	return trick[winner]
}
