package app

import "spades/internal/domain"

// PlayerView is the public projection of a seat. It never carries the hand.
type PlayerView struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Bid          *int   `json:"bid"`
	TricksWon    int    `json:"tricksWon"`
	IsHost       bool   `json:"isHost"`
	Disconnected bool   `json:"disconnected"`
	Team         string `json:"team,omitempty"`
	HandSize     int    `json:"handSize"`
}

// ScoreView is a team's running total.
type ScoreView struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Bags  int    `json:"bags"`
}

// GameView is the public snapshot of a session.
type GameView struct {
	Code            string        `json:"code"`
	MaxPlayers      int           `json:"maxPlayers"`
	WinScore        int           `json:"winScore"`
	State           domain.Phase  `json:"state"`
	Round           int           `json:"round"`
	Players         []PlayerView  `json:"players"`
	Teams           []domain.Team `json:"teams"`
	Scores          []ScoreView   `json:"scores"`
	SpadesBroken    bool          `json:"spadesBroken"`
	CurrentTrick    domain.Trick  `json:"currentTrick"`
	CurrentTurn     string        `json:"currentTurn,omitempty"`
	BiddingPlayerID string        `json:"biddingPlayerId,omitempty"`
}

// SelfView is the private part of a snapshot, for the seat it is sent to.
type SelfView struct {
	PlayerID   string        `json:"playerId"`
	Hand       []domain.Card `json:"hand"`
	ValidPlays []domain.Card `json:"validPlays,omitempty"`
}

func (s *Session) players() []PlayerView {
	g := s.game
	out := make([]PlayerView, 0, len(g.Seats))
	for _, seat := range g.Seats {
		v := PlayerView{
			ID:           seat.ID,
			Username:     seat.Username,
			Bid:          seat.Bid,
			TricksWon:    seat.TricksWon,
			IsHost:       seat.Host,
			Disconnected: seat.Disconnected,
			HandSize:     len(seat.Hand),
		}
		if seat.Team >= 0 && seat.Team < len(g.Teams) {
			v.Team = g.Teams[seat.Team].Name
		}
		out = append(out, v)
	}
	return out
}

func (s *Session) scores() []ScoreView {
	out := make([]ScoreView, len(s.game.Scores))
	for i, e := range s.game.Scores {
		out[i] = ScoreView{Name: teamName(i), Score: e.Score, Bags: e.Bags}
	}
	return out
}

func teamName(i int) string {
	if i == 0 {
		return domain.TeamOneName
	}
	return domain.TeamTwoName
}

// View returns the public snapshot of the session.
func (s *Session) View() GameView {
	g := s.game
	v := GameView{
		Code:         g.Code,
		MaxPlayers:   g.MaxPlayers,
		WinScore:     g.WinScore,
		State:        g.Phase,
		Round:        g.Round,
		Players:      s.players(),
		Teams:        g.Teams,
		Scores:       s.scores(),
		SpadesBroken: g.SpadesBroken,
		CurrentTrick: append(domain.Trick{}, g.Trick...),
	}
	if seat := g.SeatAt(g.Turn); seat != nil {
		v.CurrentTurn = seat.ID
	}
	if seat := g.SeatAt(g.BidCursor); seat != nil {
		v.BiddingPlayerID = seat.ID
	}
	return v
}

func (s *Session) selfView(seat *domain.Seat) SelfView {
	v := SelfView{
		PlayerID: seat.ID,
		Hand:     append([]domain.Card{}, seat.Hand...),
	}
	if s.game.Phase == domain.PhasePlaying && s.game.SeatAt(s.game.Turn) == seat {
		v.ValidPlays = domain.LegalPlays(seat.Hand, s.game.Trick.LeadSuit(), s.game.SpadesBroken)
	}
	return v
}
