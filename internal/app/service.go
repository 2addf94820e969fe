package app

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"spades/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameFull         = errors.New("game is full")
	ErrSessionClosed    = errors.New("game has ended")
	ErrInvalidTableSize = errors.New("players must be 4 or 6")
	ErrInvalidWinScore  = errors.New("winning score must be positive")
	ErrInvalidUsername  = errors.New("username is required")
	ErrUsernameTaken    = errors.New("username is already in this game")
	ErrAlreadySeated    = errors.New("connection already has a seat")
	ErrUnknownPlayer    = errors.New("player not in this game")
	ErrNotHost          = errors.New("only the host can do that")
	ErrNotInLobby       = errors.New("game has already started")
	ErrLobbyNotFull     = errors.New("lobby is not full")
	ErrCannotKickSelf   = errors.New("host cannot kick themselves")
	ErrNotBidding       = errors.New("not in bidding phase")
	ErrNotPlaying       = errors.New("not in playing phase")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrInvalidBid       = errors.New("invalid bid")
	ErrIllegalPlay      = errors.New("invalid card played")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrMalformedCommand = errors.New("malformed command")
)

// Options configures a new session.
type Options struct {
	MaxPlayers int
	WinScore   int
	Timings    Timings
	// Rng drives the shuffle; nil means a time-seeded default.
	Rng *rand.Rand
	// NewSeatID generates stable seat identities; nil means random UUIDs.
	NewSeatID func() string
}

// ValidateOptions checks the table size and win score of a game request.
func ValidateOptions(maxPlayers, winScore int) error {
	valid := false
	for _, n := range AllowedTableSizes {
		if n == maxPlayers {
			valid = true
		}
	}
	if !valid {
		return ErrInvalidTableSize
	}
	if winScore <= 0 {
		return ErrInvalidWinScore
	}
	return nil
}

// Session owns the state of one game and sequences it through lobby,
// bidding, playing and finished. It binds volatile connection handles to
// stable seats.
//
// A Session is not safe for concurrent use; its owner must serialize calls,
// which the match loop does by construction.
type Session struct {
	game      *domain.Game
	timings   Timings
	rng       *rand.Rand
	newSeatID func() string
	tasks     *Scheduler
	closed    bool

	seatByConn map[string]string // connection -> seat ID
	connBySeat map[string]string // seat ID -> connection
}

// NewSession allocates an empty lobby for the given code.
func NewSession(code string, opts Options) (*Session, error) {
	if err := ValidateOptions(opts.MaxPlayers, opts.WinScore); err != nil {
		return nil, err
	}
	rng := opts.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	newSeatID := opts.NewSeatID
	if newSeatID == nil {
		newSeatID = uuid.NewString
	}
	return &Session{
		game:       domain.NewGame(NormalizeCode(code), opts.MaxPlayers, opts.WinScore),
		timings:    opts.Timings.withDefaults(),
		rng:        rng,
		newSeatID:  newSeatID,
		tasks:      NewScheduler(),
		seatByConn: make(map[string]string),
		connBySeat: make(map[string]string),
	}, nil
}

// Code returns the session's game code.
func (s *Session) Code() string { return s.game.Code }

// Phase returns the current phase.
func (s *Session) Phase() domain.Phase { return s.game.Phase }

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool { return s.closed }

// Empty reports whether no seat has been taken.
func (s *Session) Empty() bool { return len(s.game.Seats) == 0 }

// OpenSeats returns the number of seats a new player could take.
func (s *Session) OpenSeats() int {
	if s.game.Phase != domain.PhaseLobby {
		return 0
	}
	return s.game.MaxPlayers - len(s.game.Seats)
}

// SeatOf returns the seat ID bound to a connection.
func (s *Session) SeatOf(conn string) (string, bool) {
	id, ok := s.seatByConn[conn]
	return id, ok
}

// CanJoin reports whether a player with this username would be admitted,
// either into a free seat or back into their disconnected seat.
func (s *Session) CanJoin(username string) error {
	if s.closed {
		return ErrSessionClosed
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidUsername
	}
	if s.disconnectedSeat(username) != nil {
		return nil
	}
	if s.connectedSeat(username) != nil {
		return ErrUsernameTaken
	}
	if s.game.Full() {
		return ErrGameFull
	}
	if s.game.Phase != domain.PhaseLobby {
		return ErrNotInLobby
	}
	return nil
}

// Join seats a connection. The first seat becomes host. A disconnected seat
// with the same username is taken over instead of creating a new seat.
func (s *Session) Join(conn, username string) ([]Event, error) {
	if err := s.CanJoin(username); err != nil {
		return nil, err
	}
	if _, bound := s.seatByConn[conn]; bound {
		return nil, ErrAlreadySeated
	}
	username = strings.TrimSpace(username)

	if seat := s.disconnectedSeat(username); seat != nil {
		return s.rejoin(conn, seat), nil
	}

	seat := &domain.Seat{
		ID:       s.newSeatID(),
		Username: username,
		Team:     -1,
	}
	creator := len(s.game.Seats) == 0
	seat.Host = creator
	s.game.Seats = append(s.game.Seats, seat)
	s.bind(conn, seat.ID)

	kind := EventGameJoined
	if creator {
		kind = EventGameCreated
	}
	return []Event{
		s.joinedEvent(kind, conn, seat),
		s.lobbyUpdated(),
	}, nil
}

func (s *Session) rejoin(conn string, seat *domain.Seat) []Event {
	seat.Disconnected = false
	s.bind(conn, seat.ID)
	if s.game.HostSeat() == nil {
		seat.Host = true
	}

	events := []Event{
		s.joinedEvent(EventGameJoined, conn, seat),
		s.lobbyUpdated(),
	}
	if s.game.Phase == domain.PhasePlaying && s.game.SeatAt(s.game.Turn) == seat {
		events = append(events, Event{
			Kind:       EventYourTurn,
			Payload:    YourTurnPayload{ValidPlays: s.selfView(seat).ValidPlays},
			Recipients: []string{conn},
		})
	}
	return events
}

// Leave handles a dropped connection. In the lobby the seat is removed; in
// any other phase it is kept and marked disconnected. The host role passes to
// the first connected seat. The session closes once nobody is connected.
func (s *Session) Leave(conn string) []Event {
	if s.closed {
		return nil
	}
	seatID, ok := s.seatByConn[conn]
	if !ok {
		return nil
	}
	s.unbind(conn)

	seat, _ := s.game.SeatByID(seatID)
	if s.game.Phase == domain.PhaseLobby {
		s.game.RemoveSeat(seatID)
	} else {
		seat.Disconnected = true
	}

	if seat.Host {
		seat.Host = false
		s.promoteHost()
	}

	if len(s.game.Seats) == 0 || s.game.ConnectedCount() == 0 {
		s.close()
		return nil
	}

	return []Event{
		s.broadcast(EventPlayerDisconnected, PlayerDisconnectedPayload{PlayerID: seatID, GameState: s.View()}),
		s.lobbyUpdated(),
	}
}

// Kick removes a seat from the lobby on the host's request. The kicked
// connection receives EventKicked and is unbound from the session.
func (s *Session) Kick(conn, targetSeatID string) ([]Event, error) {
	actor, err := s.actor(conn)
	if err != nil {
		return nil, err
	}
	if !actor.Host {
		return nil, ErrNotHost
	}
	if s.game.Phase != domain.PhaseLobby {
		return nil, ErrNotInLobby
	}
	if actor.ID == targetSeatID {
		return nil, ErrCannotKickSelf
	}
	if _, ok := s.game.SeatByID(targetSeatID); !ok {
		return nil, ErrUnknownPlayer
	}

	targetConn := s.connBySeat[targetSeatID]
	s.game.RemoveSeat(targetSeatID)
	s.unbind(targetConn)

	var events []Event
	if targetConn != "" {
		events = append(events, Event{
			Kind:       EventKicked,
			Payload:    KickedPayload{GameCode: s.game.Code},
			Recipients: []string{targetConn},
		})
	}
	return append(events, s.lobbyUpdated()), nil
}

// Start begins the first round. Only the host may start, and only with a full table.
func (s *Session) Start(conn string) ([]Event, error) {
	actor, err := s.actor(conn)
	if err != nil {
		return nil, err
	}
	if !actor.Host {
		return nil, ErrNotHost
	}
	if s.game.Phase != domain.PhaseLobby {
		return nil, ErrNotInLobby
	}
	if len(s.game.Seats) != s.game.MaxPlayers {
		return nil, ErrLobbyNotFull
	}
	if err := s.transition(domain.TriggerStart); err != nil {
		return nil, err
	}
	s.game.AssignTeams()
	return s.dealRound(), nil
}

// Bid records the bid of the seat at the bidding cursor.
func (s *Session) Bid(conn string, bid int) ([]Event, error) {
	seat, err := s.actor(conn)
	if err != nil {
		return nil, err
	}
	g := s.game
	if g.Phase != domain.PhaseBidding {
		return nil, ErrNotBidding
	}
	if g.SeatAt(g.BidCursor) != seat {
		return nil, ErrNotYourTurn
	}
	if bid < 0 || bid > domain.CardsPerPlayer(len(g.Seats)) {
		return nil, ErrInvalidBid
	}

	seat.Bid = &bid
	events := []Event{s.broadcast(EventBidPlaced, BidPlacedPayload{PlayerID: seat.ID, Bid: bid})}

	g.BidCursor++
	if g.BidCursor < len(g.Seats) {
		return append(events, s.broadcast(EventNextBidder, NextBidderPayload{
			BiddingPlayerID: g.Seats[g.BidCursor].ID,
			Players:         s.players(),
		})), nil
	}

	g.BidCursor = domain.NoSeat
	if err := s.transition(domain.TriggerBidsComplete); err != nil {
		return nil, err
	}
	bids := make(map[string]int, len(g.Seats))
	for _, st := range g.Seats {
		bids[st.ID] = *st.Bid
	}
	events = append(events, s.broadcast(EventBiddingEnded, BiddingEndedPayload{Bids: bids, Players: s.players()}))
	return append(events, s.openTrick(0)...), nil
}

// Play places a card for the seat whose turn it is. When the trick
// completes, the winner is announced and the next step is scheduled after
// the trick pause.
func (s *Session) Play(conn string, card domain.Card, now time.Time) ([]Event, error) {
	seat, err := s.actor(conn)
	if err != nil {
		return nil, err
	}
	g := s.game
	if g.Phase != domain.PhasePlaying {
		return nil, ErrNotPlaying
	}
	if g.SeatAt(g.Turn) != seat {
		return nil, ErrNotYourTurn
	}
	if !domain.IsLegalPlay(seat.Hand, g.Trick.LeadSuit(), g.SpadesBroken, card) {
		return nil, ErrIllegalPlay
	}

	seat.Hand = domain.RemoveCard(seat.Hand, card)
	g.Trick = append(g.Trick, domain.Play{Card: card, SeatID: seat.ID})
	if card.Suit == domain.Trump {
		g.SpadesBroken = true
	}
	events := []Event{s.broadcast(EventCardPlayed, CardPlayedPayload{
		Card:     card,
		PlayerID: seat.ID,
		HandSize: len(seat.Hand),
	})}

	if len(g.Trick) < len(g.Seats) {
		return append(events, s.setTurn((g.Turn+1)%len(g.Seats))...), nil
	}

	winner := domain.TrickWinner(g.Trick)
	winnerSeat, _ := g.SeatByID(winner.SeatID)
	winnerSeat.TricksWon++
	g.Trick = nil
	g.Turn = domain.NoSeat
	s.tasks.Schedule(Task{Kind: TaskTrickDone, Due: now.Add(s.timings.TrickPause), SeatID: winner.SeatID})

	return append(events, s.broadcast(EventTrickWon, TrickWonPayload{
		Winner:    winner,
		TricksWon: winnerSeat.TricksWon,
	})), nil
}

// Advance runs every continuation due at now. Tasks that no longer fit the
// session's phase are dropped.
func (s *Session) Advance(now time.Time) []Event {
	var events []Event
	for _, t := range s.tasks.Due(now) {
		if s.closed {
			break
		}
		events = append(events, s.runTask(t, now)...)
	}
	return events
}

func (s *Session) runTask(t Task, now time.Time) []Event {
	g := s.game
	switch t.Kind {
	case TaskTrickDone:
		if g.Phase != domain.PhasePlaying || g.Turn != domain.NoSeat {
			return nil
		}
		if !g.HandsEmpty() {
			return s.openTrick(g.SeatIndex(t.SeatID))
		}
		return s.settleRound(now)
	case TaskNextRound:
		if g.Phase != domain.PhasePlaying {
			return nil
		}
		if err := s.transition(domain.TriggerRoundContinues); err != nil {
			return nil
		}
		return s.dealRound()
	case TaskTeardown:
		if g.Phase == domain.PhaseFinished {
			s.close()
		}
	}
	return nil
}

func (s *Session) dealRound() []Event {
	g := s.game
	g.Round++
	g.SpadesBroken = false
	g.Trick = nil
	g.Turn = domain.NoSeat
	g.BidCursor = 0

	deck := domain.NewDeck()
	domain.Shuffle(deck, s.rng)
	hands := domain.Deal(deck, len(g.Seats))
	for i, seat := range g.Seats {
		seat.Hand = hands[i]
		seat.Bid = nil
		seat.TricksWon = 0
	}

	players := s.players()
	scores := s.scores()
	var events []Event
	for _, seat := range g.Seats {
		ev, ok := s.private(seat.ID, EventHandDealt, HandDealtPayload{
			Hand:    append([]domain.Card{}, seat.Hand...),
			Teams:   g.Teams,
			Players: players,
			Scores:  scores,
			Round:   g.Round,
		})
		if ok {
			events = append(events, ev)
		}
	}
	return append(events, s.broadcast(EventBiddingStarted, BiddingStartedPayload{
		BiddingPlayerID: g.Seats[0].ID,
		Teams:           g.Teams,
		Players:         players,
	}))
}

func (s *Session) openTrick(leader int) []Event {
	s.game.Trick = nil
	events := []Event{s.broadcast(EventNewTrick, NewTrickPayload{StartingPlayerID: s.game.Seats[leader].ID})}
	return append(events, s.setTurn(leader)...)
}

func (s *Session) setTurn(i int) []Event {
	g := s.game
	g.Turn = i
	seat := g.Seats[i]

	var events []Event
	if ev, ok := s.private(seat.ID, EventYourTurn, YourTurnPayload{
		ValidPlays: domain.LegalPlays(seat.Hand, g.Trick.LeadSuit(), g.SpadesBroken),
	}); ok {
		events = append(events, ev)
	}
	return append(events, s.broadcast(EventNextTurn, NextTurnPayload{NextPlayerID: seat.ID, Username: seat.Username}))
}

func (s *Session) settleRound(now time.Time) []Event {
	g := s.game
	roundScores := make([]int, len(g.Scores))
	for i := range g.Scores {
		roundScores[i] = g.Scores[i].Settle(domain.ScoreTeam(g.TeamResults(i)))
	}
	events := []Event{s.broadcast(EventRoundEnded, RoundEndedPayload{
		Scores:      s.scores(),
		RoundScores: roundScores,
		Teams:       g.Teams,
	})}

	winner := domain.WinningTeam(g.Scores[:], g.WinScore)
	if winner < 0 {
		s.tasks.Schedule(Task{Kind: TaskNextRound, Due: now.Add(s.timings.RoundPause)})
		return events
	}

	if err := s.transition(domain.TriggerGameWon); err != nil {
		return events
	}
	s.tasks.Schedule(Task{Kind: TaskTeardown, Due: now.Add(s.timings.FinishedTTL)})
	return append(events, s.broadcast(EventGameOver, GameOverPayload{
		Winner: g.Teams[winner].Name,
		Scores: s.scores(),
	}))
}

func (s *Session) transition(t domain.Trigger) error {
	next, err := s.game.Phase.Next(t)
	if err != nil {
		return err
	}
	s.game.Phase = next
	return nil
}

func (s *Session) close() {
	s.closed = true
	s.tasks.Clear()
}

func (s *Session) promoteHost() {
	for _, seat := range s.game.Seats {
		if !seat.Disconnected {
			seat.Host = true
			return
		}
	}
}

func (s *Session) actor(conn string) (*domain.Seat, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	seatID, ok := s.seatByConn[conn]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	seat, ok := s.game.SeatByID(seatID)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	return seat, nil
}

func (s *Session) disconnectedSeat(username string) *domain.Seat {
	for _, seat := range s.game.Seats {
		if seat.Disconnected && seat.Username == username {
			return seat
		}
	}
	return nil
}

func (s *Session) connectedSeat(username string) *domain.Seat {
	for _, seat := range s.game.Seats {
		if !seat.Disconnected && seat.Username == username {
			return seat
		}
	}
	return nil
}

func (s *Session) bind(conn, seatID string) {
	s.seatByConn[conn] = seatID
	s.connBySeat[seatID] = conn
}

func (s *Session) unbind(conn string) {
	if seatID, ok := s.seatByConn[conn]; ok {
		delete(s.connBySeat, seatID)
	}
	delete(s.seatByConn, conn)
}

// recipients lists the connections of every connected seat in seat order.
func (s *Session) recipients() []string {
	out := make([]string, 0, len(s.game.Seats))
	for _, seat := range s.game.Seats {
		if conn, ok := s.connBySeat[seat.ID]; ok {
			out = append(out, conn)
		}
	}
	return out
}

func (s *Session) broadcast(kind EventKind, payload any) Event {
	return Event{Kind: kind, Payload: payload, Recipients: s.recipients()}
}

func (s *Session) private(seatID string, kind EventKind, payload any) (Event, bool) {
	conn, ok := s.connBySeat[seatID]
	if !ok {
		return Event{}, false
	}
	return Event{Kind: kind, Payload: payload, Recipients: []string{conn}}, true
}

func (s *Session) joinedEvent(kind EventKind, conn string, seat *domain.Seat) Event {
	return Event{
		Kind: kind,
		Payload: JoinedPayload{
			GameCode:  s.game.Code,
			GameState: s.View(),
			You:       s.selfView(seat),
		},
		Recipients: []string{conn},
	}
}

func (s *Session) lobbyUpdated() Event {
	return s.broadcast(EventLobbyUpdated, LobbyUpdatedPayload{GameState: s.View()})
}
