package app

import "spades/internal/domain"

// EventKind identifies emitted session events for transport dispatch.
type EventKind string

const (
	EventGameCreated        EventKind = "game_created"
	EventGameJoined         EventKind = "game_joined"
	EventLobbyUpdated       EventKind = "lobby_updated"
	EventPlayerDisconnected EventKind = "player_disconnected"
	EventKicked             EventKind = "kicked"
	EventHandDealt          EventKind = "hand_dealt"
	EventBiddingStarted     EventKind = "bidding_started"
	EventBidPlaced          EventKind = "bid_placed"
	EventNextBidder         EventKind = "next_bidder"
	EventBiddingEnded       EventKind = "bidding_ended"
	EventYourTurn           EventKind = "your_turn"
	EventNextTurn           EventKind = "next_turn"
	EventCardPlayed         EventKind = "card_played"
	EventNewTrick           EventKind = "new_trick"
	EventTrickWon           EventKind = "trick_won"
	EventRoundEnded         EventKind = "round_ended"
	EventGameOver           EventKind = "game_over"
	EventError              EventKind = "error"
)

// Event is a session event addressed to specific connections.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // connection handles
}

// JoinedPayload is sent privately to a seat that created, joined or rejoined a game.
type JoinedPayload struct {
	GameCode  string   `json:"gameCode"`
	GameState GameView `json:"gameState"`
	You       SelfView `json:"you"`
}

type LobbyUpdatedPayload struct {
	GameState GameView `json:"gameState"`
}

type PlayerDisconnectedPayload struct {
	PlayerID  string   `json:"playerId"`
	GameState GameView `json:"gameState"`
}

type KickedPayload struct {
	GameCode string `json:"gameCode"`
}

type HandDealtPayload struct {
	Hand    []domain.Card `json:"hand"`
	Teams   []domain.Team `json:"teams"`
	Players []PlayerView  `json:"players"`
	Scores  []ScoreView   `json:"scores"`
	Round   int           `json:"round"`
}

type BiddingStartedPayload struct {
	BiddingPlayerID string        `json:"biddingPlayerId"`
	Teams           []domain.Team `json:"teams"`
	Players         []PlayerView  `json:"players"`
}

type BidPlacedPayload struct {
	PlayerID string `json:"playerId"`
	Bid      int    `json:"bid"`
}

type NextBidderPayload struct {
	BiddingPlayerID string       `json:"biddingPlayerId"`
	Players         []PlayerView `json:"players"`
}

type BiddingEndedPayload struct {
	Bids    map[string]int `json:"bids"`
	Players []PlayerView   `json:"players"`
}

type YourTurnPayload struct {
	ValidPlays []domain.Card `json:"validPlays"`
}

type NextTurnPayload struct {
	NextPlayerID string `json:"nextPlayerId"`
	Username     string `json:"username"`
}

type CardPlayedPayload struct {
	Card     domain.Card `json:"card"`
	PlayerID string      `json:"playerId"`
	HandSize int         `json:"handSize"`
}

type NewTrickPayload struct {
	StartingPlayerID string `json:"startingPlayerId"`
}

type TrickWonPayload struct {
	Winner    domain.Play `json:"winner"`
	TricksWon int         `json:"tricksWon"`
}

type RoundEndedPayload struct {
	Scores      []ScoreView   `json:"scores"`
	RoundScores []int         `json:"roundScores"`
	Teams       []domain.Team `json:"teams"`
}

type GameOverPayload struct {
	Winner string      `json:"winner"`
	Scores []ScoreView `json:"scores"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

// ErrorEvent wraps a rejected command's reason for the offending connection.
func ErrorEvent(conn string, err error) Event {
	return Event{
		Kind:       EventError,
		Payload:    ErrorPayload{Reason: err.Error()},
		Recipients: []string{conn},
	}
}
