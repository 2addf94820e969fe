package nakama

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"spades/internal/app"
	"spades/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var errAwaitingCreator = errors.New("waiting for the host to join")

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	Code       string                      `json:"code"`
	Tick       int64                       `json:"tick"`
	Label      string                      `json:"label"`
	CreatorID  string                      `json:"creator_id"`
	EmptySince time.Time                   `json:"-"` // last seen without a seated player
	EmptyTTL   time.Duration               `json:"-"`
	Session    *app.Session                `json:"-"`
	Presences  map[string]runtime.Presence `json:"-"` // session ID -> presence
	// usernames admitted by MatchJoinAttempt, keyed by session ID, until MatchJoin seats them.
	pending map[string]string
}

type matchHandler struct {
	registry *app.Registry
	now      func() time.Time
}

func newMatchHandler(registry *app.Registry) *matchHandler {
	return &matchHandler{registry: registry, now: time.Now}
}

// MatchInit is called when the match is created by the create_game RPC.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	code, _ := params[paramCode].(string)
	creatorID, _ := params[paramCreatorID].(string)
	maxPlayers := intParam(params, paramMaxPlayers)
	winScore := intParam(params, paramWinScore)
	logger.Debug("MatchInit: code=%s max_players=%d win_score=%d", code, maxPlayers, winScore)

	cfg := *config.GetGameConfig()
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		cfg = cfg.WithEnv(env)
	}

	session, err := app.NewSession(code, app.Options{
		MaxPlayers: maxPlayers,
		WinScore:   winScore,
		Timings: app.Timings{
			TrickPause:  cfg.TrickPause(),
			RoundPause:  cfg.RoundPause(),
			FinishedTTL: cfg.FinishedTTL(),
		},
	})
	if err != nil {
		logger.Error("MatchInit: Invalid match params: %v", err)
		return nil, 0, ""
	}

	state := &MatchState{
		Code:       session.Code(),
		CreatorID:  creatorID,
		EmptySince: mh.now(),
		EmptyTTL:   cfg.EmptyLobbyTTL(),
		Session:    session,
		Presences:  make(map[string]runtime.Presence),
		pending:    make(map[string]string),
	}
	label, err := buildLabel(state)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	state.Label = label

	return state, cfg.Ticks(), label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	if matchState.awaitingCreator() && presence.GetUserId() != matchState.CreatorID {
		logger.Debug("MatchJoinAttempt: Rejected %s before the creator joined %s", presence.GetUserId(), matchState.Code)
		return matchState, false, errAwaitingCreator.Error()
	}

	username := strings.TrimSpace(metadata[JoinMetadataUsername])
	if username == "" {
		username = presence.GetUsername()
	}
	if err := matchState.Session.CanJoin(username); err != nil {
		logger.Debug("MatchJoinAttempt: Rejected %s (%s): %v", presence.GetUserId(), username, err)
		return matchState, false, err.Error()
	}

	matchState.pending[presence.GetSessionId()] = username
	return matchState, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		conn := p.GetSessionId()
		username, ok := matchState.pending[conn]
		if !ok {
			username = p.GetUsername()
		}
		delete(matchState.pending, conn)

		matchState.Presences[conn] = p
		events, err := matchState.Session.Join(conn, username)
		if err != nil {
			// The roster changed between the join attempt and the join.
			logger.Warn("MatchJoin: User %s (%s) could not be seated: %v", p.GetUserId(), username, err)
			mh.dispatchEvents(matchState, dispatcher, logger, []app.Event{app.ErrorEvent(conn, err)})
			mh.kick(matchState, dispatcher, logger, conn)
			continue
		}
		seatID, _ := matchState.Session.SeatOf(conn)
		logger.Info("MatchJoin: User %s joined %s as %s (seat %s).", p.GetUserId(), matchState.Code, username, seatID)
		mh.dispatchEvents(matchState, dispatcher, logger, events)
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		conn := p.GetSessionId()
		delete(matchState.Presences, conn)
		delete(matchState.pending, conn)

		events := matchState.Session.Leave(conn)
		logger.Debug("MatchLeave: User %s left %s.", p.GetUserId(), matchState.Code)
		mh.dispatchEvents(matchState, dispatcher, logger, events)
	}

	if matchState.Session.Closed() {
		logger.Info("MatchLeave: Terminating match %s with no connected players.", matchState.Code)
		mh.release(matchState)
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick
	now := mh.now()

	for _, msg := range messages {
		events, err := mh.handleMessage(matchState, msg, now)
		if err != nil {
			logger.Warn("MatchLoop: User %s op %d rejected: %v", msg.GetUserId(), msg.GetOpCode(), err)
			events = []app.Event{app.ErrorEvent(msg.GetSessionId(), err)}
		}
		mh.dispatchEvents(matchState, dispatcher, logger, events)
	}

	mh.dispatchEvents(matchState, dispatcher, logger, matchState.Session.Advance(now))

	if matchState.Session.Closed() {
		logger.Info("MatchLoop: Match %s finished, releasing code.", matchState.Code)
		mh.release(matchState)
		return nil
	}
	if matchState.abandoned(now) {
		logger.Info("MatchLoop: Match %s had no players for %s, releasing code.", matchState.Code, matchState.EmptyTTL)
		mh.release(matchState)
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// awaitingCreator reports whether the seat of the player who created the
// match is still held for them.
func (s *MatchState) awaitingCreator() bool {
	return s.CreatorID != "" && s.Session.Empty()
}

// abandoned reports whether the match has gone EmptyTTL without a seated player.
func (s *MatchState) abandoned(now time.Time) bool {
	if !s.Session.Empty() {
		s.EmptySince = time.Time{}
		return false
	}
	if s.EmptySince.IsZero() {
		s.EmptySince = now
		return false
	}
	return now.Sub(s.EmptySince) >= s.EmptyTTL
}

func (mh *matchHandler) handleMessage(state *MatchState, msg runtime.MatchData, now time.Time) ([]app.Event, error) {
	conn := msg.GetSessionId()
	session := state.Session

	switch msg.GetOpCode() {
	case OpKickPlayer:
		target, err := decodeKick(msg.GetData())
		if err != nil {
			return nil, err
		}
		return session.Kick(conn, target)
	case OpStartGame:
		return session.Start(conn)
	case OpSubmitBid:
		bid, err := decodeBid(msg.GetData())
		if err != nil {
			return nil, err
		}
		return session.Bid(conn, bid)
	case OpPlayCard:
		card, err := decodePlayCard(msg.GetData())
		if err != nil {
			return nil, err
		}
		return session.Play(conn, card, now)
	default:
		return nil, app.ErrUnknownCommand
	}
}

// dispatchEvents encodes events and sends each to its connected recipients.
// A kicked event is followed by removing the kicked presence from the match.
func (mh *matchHandler) dispatchEvents(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	for _, ev := range events {
		opCode, data, err := encodeEvent(ev)
		if err != nil {
			logger.Error("Failed to encode event: %v", err)
			continue
		}

		recipients := make([]runtime.Presence, 0, len(ev.Recipients))
		for _, conn := range ev.Recipients {
			if p, ok := state.Presences[conn]; ok {
				recipients = append(recipients, p)
			}
		}
		// Never fall back to a broadcast to everyone for an unreachable recipient list.
		if len(recipients) == 0 {
			continue
		}

		if err := dispatcher.BroadcastMessage(opCode, data, recipients, nil, true); err != nil {
			logger.Error("Failed to send %s: %v", ev.Kind, err)
		}

		if ev.Kind == app.EventKicked {
			for _, conn := range ev.Recipients {
				mh.kick(state, dispatcher, logger, conn)
			}
		}
	}
}

func (mh *matchHandler) kick(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, conn string) {
	p, ok := state.Presences[conn]
	if !ok {
		return
	}
	delete(state.Presences, conn)
	if err := dispatcher.MatchKick([]runtime.Presence{p}); err != nil {
		logger.Error("Failed to kick %s: %v", p.GetUserId(), err)
	}
}

func (mh *matchHandler) release(state *MatchState) {
	if mh.registry != nil {
		mh.registry.Release(state.Code)
	}
}

// buildLabel renders the queryable match label as JSON.
func buildLabel(state *MatchState) (string, error) {
	label, err := structpb.NewStruct(map[string]interface{}{
		MatchLabelKey_Code:      state.Code,
		MatchLabelKey_OpenSeats: state.Session.OpenSeats(),
		MatchLabelKey_State:     string(state.Session.Phase()),
	})
	if err != nil {
		return "", err
	}
	data, err := protojson.Marshal(label)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := buildLabel(state)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if label == state.Label {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	state.Label = label
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated with %d grace seconds", graceSeconds)
	if matchState, ok := state.(*MatchState); ok {
		mh.release(matchState)
	}
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}

// intParam reads a numeric match param, which arrives as a float64 when it
// passed through JSON.
func intParam(params map[string]interface{}, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
