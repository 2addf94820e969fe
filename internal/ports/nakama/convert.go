package nakama

import (
	"encoding/json"
	"fmt"

	"spades/internal/app"
	"spades/internal/domain"
)

var eventOpCodes = map[app.EventKind]int64{
	app.EventGameCreated:        OpGameCreated,
	app.EventGameJoined:         OpGameJoined,
	app.EventLobbyUpdated:       OpLobbyUpdated,
	app.EventPlayerDisconnected: OpPlayerDisconnected,
	app.EventKicked:             OpKicked,
	app.EventHandDealt:          OpHandDealt,
	app.EventBiddingStarted:     OpBiddingStarted,
	app.EventBidPlaced:          OpBidPlaced,
	app.EventNextBidder:         OpNextBidder,
	app.EventBiddingEnded:       OpBiddingEnded,
	app.EventYourTurn:           OpYourTurn,
	app.EventNextTurn:           OpNextTurn,
	app.EventCardPlayed:         OpCardPlayed,
	app.EventNewTrick:           OpNewTrick,
	app.EventTrickWon:           OpTrickWon,
	app.EventRoundEnded:         OpRoundEnded,
	app.EventGameOver:           OpGameOver,
	app.EventError:              OpError,
}

// encodeEvent maps an app event to its op code and JSON payload.
func encodeEvent(ev app.Event) (int64, []byte, error) {
	opCode, ok := eventOpCodes[ev.Kind]
	if !ok {
		return 0, nil, fmt.Errorf("no op code for event %q", ev.Kind)
	}
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal %s: %w", ev.Kind, err)
	}
	return opCode, data, nil
}

type kickPlayerRequest struct {
	PlayerID string `json:"playerId"`
}

type submitBidRequest struct {
	Bid *int `json:"bid"`
}

type playCardRequest struct {
	Card *domain.Card `json:"card"`
}

func decodeKick(data []byte) (string, error) {
	var req kickPlayerRequest
	if err := json.Unmarshal(data, &req); err != nil || req.PlayerID == "" {
		return "", app.ErrMalformedCommand
	}
	return req.PlayerID, nil
}

func decodeBid(data []byte) (int, error) {
	var req submitBidRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Bid == nil {
		return 0, app.ErrMalformedCommand
	}
	return *req.Bid, nil
}

func decodePlayCard(data []byte) (domain.Card, error) {
	var req playCardRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Card == nil {
		return domain.Card{}, app.ErrMalformedCommand
	}
	return *req.Card, nil
}
