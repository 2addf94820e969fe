package domain

// NoSeat marks a turn or bidding cursor that names nobody.
const NoSeat = -1

// Team names, in team order.
const (
	TeamOneName = "Team 1"
	TeamTwoName = "Team 2"
)

// Seat holds the state of one player position. ID is stable for the life of
// the game; the connection currently driving the seat is tracked elsewhere.
type Seat struct {
	ID           string
	Username     string
	Hand         []Card
	Bid          *int
	TricksWon    int
	Host         bool
	Disconnected bool
	Team         int // index into Game.Teams, -1 before assignment
}

// Team is a fixed partition of seats.
type Team struct {
	Name    string   `json:"name"`
	SeatIDs []string `json:"players"`
}

// Game is the authoritative state of one game.
type Game struct {
	Code       string
	MaxPlayers int
	WinScore   int
	Phase      Phase
	Round      int

	Seats  []*Seat
	Teams  []Team
	Scores [2]ScoreEntry

	SpadesBroken bool
	Trick        Trick
	Turn         int // seat index allowed to play, or NoSeat
	BidCursor    int // seat index allowed to bid, or NoSeat
}

// NewGame returns an empty game in the lobby.
func NewGame(code string, maxPlayers, winScore int) *Game {
	return &Game{
		Code:       code,
		MaxPlayers: maxPlayers,
		WinScore:   winScore,
		Phase:      PhaseLobby,
		Turn:       NoSeat,
		BidCursor:  NoSeat,
	}
}

// SeatIndex returns the index of the seat with the given ID, or NoSeat.
func (g *Game) SeatIndex(seatID string) int {
	for i, s := range g.Seats {
		if s.ID == seatID {
			return i
		}
	}
	return NoSeat
}

// SeatByID returns the seat with the given ID.
func (g *Game) SeatByID(seatID string) (*Seat, bool) {
	if i := g.SeatIndex(seatID); i != NoSeat {
		return g.Seats[i], true
	}
	return nil, false
}

// SeatAt returns the seat at index i, or nil when i is out of range.
func (g *Game) SeatAt(i int) *Seat {
	if i < 0 || i >= len(g.Seats) {
		return nil
	}
	return g.Seats[i]
}

// HostSeat returns the current host, or nil.
func (g *Game) HostSeat() *Seat {
	for _, s := range g.Seats {
		if s.Host {
			return s
		}
	}
	return nil
}

// ConnectedCount returns the number of seats not marked disconnected.
func (g *Game) ConnectedCount() int {
	n := 0
	for _, s := range g.Seats {
		if !s.Disconnected {
			n++
		}
	}
	return n
}

// Full reports whether every seat of the table is taken.
func (g *Game) Full() bool {
	return len(g.Seats) >= g.MaxPlayers
}

// RemoveSeat drops a seat from the roster.
func (g *Game) RemoveSeat(seatID string) bool {
	i := g.SeatIndex(seatID)
	if i == NoSeat {
		return false
	}
	g.Seats = append(g.Seats[:i], g.Seats[i+1:]...)
	return true
}

// AssignTeams partitions the seats by alternating index. It only acts once.
func (g *Game) AssignTeams() {
	if len(g.Teams) > 0 {
		return
	}
	g.Teams = []Team{{Name: TeamOneName}, {Name: TeamTwoName}}
	for i, s := range g.Seats {
		t := i % 2
		s.Team = t
		g.Teams[t].SeatIDs = append(g.Teams[t].SeatIDs, s.ID)
	}
}

// HandsEmpty reports whether every seat has played out its hand.
func (g *Game) HandsEmpty() bool {
	for _, s := range g.Seats {
		if len(s.Hand) > 0 {
			return false
		}
	}
	return true
}

// TeamResults collects the bids and tricks of each team member. It panics on a
// missing bid, which cannot happen once bidding has completed.
func (g *Game) TeamResults(team int) []MemberResult {
	var out []MemberResult
	for _, id := range g.Teams[team].SeatIDs {
		s, ok := g.SeatByID(id)
		if !ok {
			continue
		}
		if s.Bid == nil {
			panic("team results: seat " + s.ID + " has no bid")
		}
		out = append(out, MemberResult{Bid: *s.Bid, TricksWon: s.TricksWon})
	}
	return out
}
