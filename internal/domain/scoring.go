package domain

const (
	// NilBonus is awarded for a made nil bid and deducted for a failed one.
	NilBonus = 100
	// PointsPerBidTrick is the value of each trick of a made (or set) team bid.
	PointsPerBidTrick = 10
	// BagLimit is the bag count at which a penalty is applied.
	BagLimit = 10
	// BagPenalty is deducted each time bags reach BagLimit.
	BagPenalty = 100
)

// MemberResult is one seat's contribution to its team's round.
type MemberResult struct {
	Bid       int
	TricksWon int
}

// RoundOutcome is a team's raw result for one round.
type RoundOutcome struct {
	Points int // bid and nil component only
	Bags   int
}

// ScoreEntry is a team's running total.
type ScoreEntry struct {
	Score int `json:"score"`
	Bags  int `json:"bags"`
}

// ScoreTeam computes a team's round outcome from its members' bids and tricks.
// A bid of 0 is a nil bid. Every trick the team won, nil seats included,
// counts toward the combined bid.
func ScoreTeam(members []MemberResult) RoundOutcome {
	var out RoundOutcome
	teamBid, teamTricks := 0, 0

	for _, m := range members {
		teamTricks += m.TricksWon
		if m.Bid == 0 {
			if m.TricksWon == 0 {
				out.Points += NilBonus
			} else {
				out.Points -= NilBonus
				out.Bags += m.TricksWon
			}
			continue
		}
		teamBid += m.Bid
	}

	if teamBid > 0 {
		if teamTricks >= teamBid {
			out.Points += teamBid * PointsPerBidTrick
			out.Bags += teamTricks - teamBid
		} else {
			out.Points -= teamBid * PointsPerBidTrick
		}
	}
	return out
}

// Settle applies a round outcome to the running total, converting every full
// BagLimit of bags into a BagPenalty. It returns the round figure shown to
// players, Points minus Bags.
func (e *ScoreEntry) Settle(o RoundOutcome) int {
	e.Bags += o.Bags
	for e.Bags >= BagLimit {
		e.Score -= BagPenalty
		e.Bags -= BagLimit
	}
	e.Score += o.Points
	return o.Points - o.Bags
}

// WinningTeam returns the index of the first team whose score reached
// winScore, or -1 when no team has.
func WinningTeam(scores []ScoreEntry, winScore int) int {
	for i, s := range scores {
		if s.Score >= winScore {
			return i
		}
	}
	return -1
}
