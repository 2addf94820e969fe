package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"spades/internal/app"
	"spades/internal/config"
	"spades/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sentMessage struct {
	opCode     int64
	data       []byte
	recipients []string // session IDs
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	sent   []sentMessage
	kicked []string
	labels []string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	msg := sentMessage{opCode: opCode, data: append([]byte(nil), data...)}
	for _, p := range presences {
		msg.recipients = append(msg.recipients, p.GetSessionId())
	}
	md.sent = append(md.sent, msg)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return md.BroadcastMessage(opCode, data, presences, sender, reliable)
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	for _, p := range presences {
		md.kicked = append(md.kicked, p.GetSessionId())
	}
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labels = append(md.labels, label)
	return nil
}

func (md *mockDispatcher) byOpCode(opCode int64) []sentMessage {
	var out []sentMessage
	for _, m := range md.sent {
		if m.opCode == opCode {
			out = append(out, m)
		}
	}
	return out
}

func (md *mockDispatcher) last(opCode int64) (sentMessage, bool) {
	msgs := md.byOpCode(opCode)
	if len(msgs) == 0 {
		return sentMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

type mockPresence struct {
	userID    string
	sessionID string
	username  string
}

func (p mockPresence) GetHidden() bool                   { return false }
func (p mockPresence) GetPersistence() bool              { return false }
func (p mockPresence) GetUsername() string               { return p.username }
func (p mockPresence) GetStatus() string                 { return "" }
func (p mockPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }
func (p mockPresence) GetUserId() string                 { return p.userID }
func (p mockPresence) GetSessionId() string              { return p.sessionID }
func (p mockPresence) GetNodeId() string                 { return "node-1" }

type mockMatchData struct {
	mockPresence
	opCode int64
	data   []byte
}

func (d mockMatchData) GetOpCode() int64      { return d.opCode }
func (d mockMatchData) GetData() []byte       { return d.data }
func (d mockMatchData) GetReliable() bool     { return true }
func (d mockMatchData) GetReceiveTime() int64 { return 0 }

func player(n int) mockPresence {
	return mockPresence{
		userID:    fmt.Sprintf("user-%d", n),
		sessionID: fmt.Sprintf("session-%d", n),
		username:  fmt.Sprintf("player%d", n),
	}
}

// testMatch drives a match handler with a fake clock.
type testMatch struct {
	t          *testing.T
	handler    *matchHandler
	registry   *app.Registry
	dispatcher *mockDispatcher
	state      *MatchState
	now        time.Time
	tick       int64
}

func newTestMatch(t *testing.T, maxPlayers, winScore int) *testMatch {
	t.Helper()
	return newTestMatchFor(t, maxPlayers, winScore, "")
}

// newTestMatchFor creates a match the way create_game does for creatorID.
func newTestMatchFor(t *testing.T, maxPlayers, winScore int, creatorID string) *testMatch {
	t.Helper()
	registry := app.NewRegistry(nil, 0)
	code, err := registry.Reserve()
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := registry.Bind(code, "match-1"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	tm := &testMatch{
		t:          t,
		handler:    newMatchHandler(registry),
		registry:   registry,
		dispatcher: &mockDispatcher{},
		now:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	tm.handler.now = func() time.Time { return tm.now }

	state, tickRate, label := tm.handler.MatchInit(context.Background(), noopLogger{}, nil, nil, map[string]interface{}{
		paramCode:       code,
		paramMaxPlayers: maxPlayers,
		paramWinScore:   float64(winScore),
		paramCreatorID:  creatorID,
	})
	if state == nil {
		t.Fatalf("MatchInit returned nil state")
	}
	if tickRate <= 0 {
		t.Fatalf("tick rate = %d", tickRate)
	}
	if label == "" {
		t.Fatalf("empty initial label")
	}
	tm.state = state.(*MatchState)
	return tm
}

func (tm *testMatch) join(p mockPresence) (bool, string) {
	tm.t.Helper()
	_, ok, reason := tm.handler.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, tm.dispatcher, tm.tick, tm.state, p, map[string]string{JoinMetadataUsername: p.username})
	if !ok {
		return false, reason
	}
	tm.handler.MatchJoin(context.Background(), noopLogger{}, nil, nil, tm.dispatcher, tm.tick, tm.state, []runtime.Presence{p})
	return true, ""
}

func (tm *testMatch) loop(messages ...runtime.MatchData) interface{} {
	tm.tick++
	return tm.handler.MatchLoop(context.Background(), noopLogger{}, nil, nil, tm.dispatcher, tm.tick, tm.state, messages)
}

func (tm *testMatch) fill(n int) []mockPresence {
	tm.t.Helper()
	players := make([]mockPresence, n)
	for i := range players {
		players[i] = player(i + 1)
		if ok, reason := tm.join(players[i]); !ok {
			tm.t.Fatalf("join %d rejected: %s", i+1, reason)
		}
	}
	return players
}

func send(p mockPresence, opCode int64, payload string) runtime.MatchData {
	return mockMatchData{mockPresence: p, opCode: opCode, data: []byte(payload)}
}

func decodeLabel(t *testing.T, label string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(label), &out); err != nil {
		t.Fatalf("label %q is not JSON: %v", label, err)
	}
	return out
}

func TestMatchInitRejectsInvalidParams(t *testing.T) {
	handler := newMatchHandler(nil)
	state, _, _ := handler.MatchInit(context.Background(), noopLogger{}, nil, nil, map[string]interface{}{
		paramCode:       "ABCDE",
		paramMaxPlayers: 5,
		paramWinScore:   500,
	})
	if state != nil {
		t.Fatalf("expected nil state for a 5 player table")
	}
}

func TestMatchInitLabel(t *testing.T) {
	tm := newTestMatch(t, 4, 500)
	label := decodeLabel(t, tm.state.Label)

	if label[MatchLabelKey_Code] != tm.state.Code {
		t.Fatalf("label code = %v, want %s", label[MatchLabelKey_Code], tm.state.Code)
	}
	if label[MatchLabelKey_OpenSeats] != float64(4) {
		t.Fatalf("label open = %v, want 4", label[MatchLabelKey_OpenSeats])
	}
	if label[MatchLabelKey_State] != "lobby" {
		t.Fatalf("label state = %v, want lobby", label[MatchLabelKey_State])
	}
}

func TestMatchJoinSeatsPlayersAndUpdatesLabel(t *testing.T) {
	tm := newTestMatch(t, 4, 500)
	p1 := player(1)
	tm.join(p1)

	created := tm.dispatcher.byOpCode(OpGameCreated)
	if len(created) != 1 || len(created[0].recipients) != 1 || created[0].recipients[0] != p1.sessionID {
		t.Fatalf("game_created should go privately to the creator, got %+v", created)
	}
	var joined app.JoinedPayload
	if err := json.Unmarshal(created[0].data, &joined); err != nil {
		t.Fatalf("decode game_created: %v", err)
	}
	if joined.GameCode != tm.state.Code || !joined.GameState.Players[0].IsHost {
		t.Fatalf("unexpected game_created payload: %+v", joined)
	}

	tm.join(player(2))
	if got := tm.dispatcher.byOpCode(OpGameJoined); len(got) != 1 {
		t.Fatalf("game_joined count = %d, want 1", len(got))
	}
	lobby, _ := tm.dispatcher.last(OpLobbyUpdated)
	if len(lobby.recipients) != 2 {
		t.Fatalf("lobby_updated recipients = %v, want both players", lobby.recipients)
	}

	if len(tm.dispatcher.labels) != 2 {
		t.Fatalf("label updates = %d, want 2", len(tm.dispatcher.labels))
	}
	label := decodeLabel(t, tm.dispatcher.labels[1])
	if label[MatchLabelKey_OpenSeats] != float64(2) {
		t.Fatalf("open seats = %v, want 2", label[MatchLabelKey_OpenSeats])
	}
}

func TestMatchJoinAttemptRejections(t *testing.T) {
	tm := newTestMatch(t, 4, 500)
	tm.join(player(1))

	dup := player(2)
	dup.username = "player1"
	if ok, reason := tm.join(dup); ok || reason != app.ErrUsernameTaken.Error() {
		t.Fatalf("duplicate username: ok=%t reason=%q", ok, reason)
	}

	tm.join(player(2))
	tm.join(player(3))
	tm.join(player(4))
	if ok, reason := tm.join(player(5)); ok || reason != app.ErrGameFull.Error() {
		t.Fatalf("full table: ok=%t reason=%q", ok, reason)
	}
}

func TestMatchJoinAttemptFallsBackToAccountUsername(t *testing.T) {
	tm := newTestMatch(t, 4, 500)
	p := player(1)
	_, ok, _ := tm.handler.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, tm.dispatcher, 0, tm.state, p, nil)
	if !ok {
		t.Fatalf("join attempt without metadata rejected")
	}
	if tm.state.pending[p.sessionID] != p.username {
		t.Fatalf("pending username = %q, want %q", tm.state.pending[p.sessionID], p.username)
	}
}

func TestMatchLoopStartDealsPrivately(t *testing.T) {
	tm := newTestMatch(t, 4, 500)
	players := tm.fill(4)

	if tm.loop(send(players[0], OpStartGame, "")) == nil {
		t.Fatalf("match terminated unexpectedly")
	}

	dealt := tm.dispatcher.byOpCode(OpHandDealt)
	if len(dealt) != 4 {
		t.Fatalf("hand_dealt messages = %d, want 4", len(dealt))
	}
	for i, msg := range dealt {
		if len(msg.recipients) != 1 || msg.recipients[0] != players[i].sessionID {
			t.Fatalf("hand_dealt %d recipients = %v", i, msg.recipients)
		}
		var payload app.HandDealtPayload
		if err := json.Unmarshal(msg.data, &payload); err != nil {
			t.Fatalf("decode hand_dealt: %v", err)
		}
		if len(payload.Hand) != domain.HandSize {
			t.Fatalf("hand size = %d, want %d", len(payload.Hand), domain.HandSize)
		}
	}

	label := decodeLabel(t, tm.state.Label)
	if label[MatchLabelKey_State] != "bidding" {
		t.Fatalf("label state = %v, want bidding", label[MatchLabelKey_State])
	}
}

func TestMatchLoopRepliesWithErrors(t *testing.T) {
	tm := newTestMatch(t, 4, 500)
	players := tm.fill(4)

	tests := []struct {
		name    string
		msg     runtime.MatchData
		expects string
	}{
		{"NotHost", send(players[1], OpStartGame, ""), app.ErrNotHost.Error()},
		{"UnknownOpCode", send(players[0], 42, ""), app.ErrUnknownCommand.Error()},
		{"MalformedBid", send(players[0], OpSubmitBid, `{"bid":"three"}`), app.ErrMalformedCommand.Error()},
		{"MissingCard", send(players[0], OpPlayCard, `{}`), app.ErrMalformedCommand.Error()},
		{"BadCard", send(players[0], OpPlayCard, `{"card":{"suit":"X","value":"2"}}`), app.ErrMalformedCommand.Error()},
		{"BidBeforeStart", send(players[0], OpSubmitBid, `{"bid":3}`), app.ErrNotBidding.Error()},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tm.loop(test.msg)
			msg, ok := tm.dispatcher.last(OpError)
			if !ok {
				t.Fatalf("no error sent")
			}
			if len(msg.recipients) != 1 || msg.recipients[0] != test.msg.GetSessionId() {
				t.Fatalf("error recipients = %v, want sender only", msg.recipients)
			}
			var payload app.ErrorPayload
			if err := json.Unmarshal(msg.data, &payload); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if payload.Reason != test.expects {
				t.Fatalf("reason = %q, want %q", payload.Reason, test.expects)
			}
		})
	}
}

func TestMatchLoopKick(t *testing.T) {
	tm := newTestMatch(t, 4, 500)
	players := tm.fill(3)

	view := tm.state.Session.View()
	target := view.Players[2].ID
	tm.loop(send(players[0], OpKickPlayer, fmt.Sprintf(`{"playerId":%q}`, target)))

	kicked, ok := tm.dispatcher.last(OpKicked)
	if !ok || len(kicked.recipients) != 1 || kicked.recipients[0] != players[2].sessionID {
		t.Fatalf("kicked message = %+v", kicked)
	}
	if len(tm.dispatcher.kicked) != 1 || tm.dispatcher.kicked[0] != players[2].sessionID {
		t.Fatalf("MatchKick calls = %v", tm.dispatcher.kicked)
	}
	if _, present := tm.state.Presences[players[2].sessionID]; present {
		t.Fatalf("kicked presence still tracked")
	}

	// Nakama reports the kicked presence as leaving; that is a no-op.
	if tm.handler.MatchLeave(context.Background(), noopLogger{}, nil, nil, tm.dispatcher, tm.tick, tm.state, []runtime.Presence{players[2]}) == nil {
		t.Fatalf("match terminated after a kick")
	}
	if got := len(tm.state.Session.View().Players); got != 2 {
		t.Fatalf("players = %d, want 2", got)
	}
}

func TestMatchLeaveTerminatesWhenEmpty(t *testing.T) {
	tm := newTestMatch(t, 4, 500)
	players := tm.fill(2)

	if tm.handler.MatchLeave(context.Background(), noopLogger{}, nil, nil, tm.dispatcher, 0, tm.state, []runtime.Presence{players[0]}) == nil {
		t.Fatalf("match terminated with a player left")
	}
	view := tm.state.Session.View()
	if !view.Players[0].IsHost || view.Players[0].Username != "player2" {
		t.Fatalf("host did not move to player2: %+v", view.Players)
	}

	if tm.handler.MatchLeave(context.Background(), noopLogger{}, nil, nil, tm.dispatcher, 0, tm.state, []runtime.Presence{players[1]}) != nil {
		t.Fatalf("expected termination once everyone left")
	}
	if _, ok := tm.registry.Lookup(tm.state.Code); ok {
		t.Fatalf("code still registered after termination")
	}
}

func TestMatchReconnectDuringGame(t *testing.T) {
	tm := newTestMatch(t, 4, 500)
	players := tm.fill(4)
	tm.loop(send(players[0], OpStartGame, ""))

	tm.handler.MatchLeave(context.Background(), noopLogger{}, nil, nil, tm.dispatcher, tm.tick, tm.state, []runtime.Presence{players[1]})
	if _, ok := tm.dispatcher.last(OpPlayerDisconnected); !ok {
		t.Fatalf("no player_disconnected broadcast")
	}

	back := players[1]
	back.sessionID = "session-2b"
	if ok, reason := tm.join(back); !ok {
		t.Fatalf("reconnect rejected: %s", reason)
	}
	msg, ok := tm.dispatcher.last(OpGameJoined)
	if !ok || msg.recipients[0] != back.sessionID {
		t.Fatalf("game_joined not sent to the new session: %+v", msg)
	}
	var joined app.JoinedPayload
	if err := json.Unmarshal(msg.data, &joined); err != nil {
		t.Fatalf("decode game_joined: %v", err)
	}
	if len(joined.You.Hand) != domain.HandSize {
		t.Fatalf("reconnected hand size = %d, want %d", len(joined.You.Hand), domain.HandSize)
	}
}

// presenceFor maps a seat ID to the presence driving it.
func (tm *testMatch) presenceFor(players []mockPresence, seatID string) mockPresence {
	tm.t.Helper()
	for _, pv := range tm.state.Session.View().Players {
		if pv.ID != seatID {
			continue
		}
		for _, p := range players {
			if p.username == pv.Username {
				return p
			}
		}
	}
	tm.t.Fatalf("no presence for seat %s", seatID)
	return mockPresence{}
}

func TestMatchPlaysToCompletionAndReleasesCode(t *testing.T) {
	// Every seat bids 3, so one team makes its bid and a win score of 1 ends
	// the game after one round.
	tm := newTestMatch(t, 4, 1)
	players := tm.fill(4)
	tm.loop(send(players[0], OpStartGame, ""))

	for i := 0; i < 500 && tm.state.Session.Phase() != domain.PhaseFinished; i++ {
		view := tm.state.Session.View()
		switch {
		case view.State == domain.PhaseBidding:
			p := tm.presenceFor(players, view.BiddingPlayerID)
			tm.loop(send(p, OpSubmitBid, `{"bid":3}`))
		case view.CurrentTurn != "":
			msg, ok := tm.dispatcher.last(OpYourTurn)
			if !ok {
				t.Fatalf("no your_turn prompt")
			}
			var prompt app.YourTurnPayload
			if err := json.Unmarshal(msg.data, &prompt); err != nil {
				t.Fatalf("decode your_turn: %v", err)
			}
			card, _ := json.Marshal(map[string]domain.Card{"card": prompt.ValidPlays[0]})
			p := tm.presenceFor(players, view.CurrentTurn)
			tm.loop(send(p, OpPlayCard, string(card)))
		default:
			tm.now = tm.now.Add(3 * time.Second)
			tm.loop()
		}
	}

	if tm.state.Session.Phase() != domain.PhaseFinished {
		t.Fatalf("phase = %s, want finished", tm.state.Session.Phase())
	}
	if _, ok := tm.dispatcher.last(OpGameOver); !ok {
		t.Fatalf("no game_over broadcast")
	}
	if errs := tm.dispatcher.byOpCode(OpError); len(errs) != 0 {
		t.Fatalf("unexpected errors: %d", len(errs))
	}

	tm.now = tm.now.Add(app.DefaultFinishedTTL)
	if tm.loop() != nil {
		t.Fatalf("expected the match to end after the retention period")
	}
	if _, ok := tm.registry.Lookup(tm.state.Code); ok {
		t.Fatalf("code still registered after teardown")
	}
}

func TestMatchJoinAttemptHoldsSeatForCreator(t *testing.T) {
	creator := player(2)
	tm := newTestMatchFor(t, 4, 500, creator.userID)

	if ok, reason := tm.join(player(1)); ok || reason != errAwaitingCreator.Error() {
		t.Fatalf("stranger before creator: ok=%t reason=%q", ok, reason)
	}
	if ok, reason := tm.join(creator); !ok {
		t.Fatalf("creator rejected: %s", reason)
	}
	if ok, reason := tm.join(player(1)); !ok {
		t.Fatalf("stranger after creator rejected: %s", reason)
	}

	view := tm.state.Session.View()
	if len(view.Players) != 2 || view.Players[0].Username != creator.username || !view.Players[0].IsHost {
		t.Fatalf("creator should hold the host seat: %+v", view.Players)
	}
}

func TestMatchLoopEndsNeverJoinedMatch(t *testing.T) {
	tm := newTestMatch(t, 4, 200)

	tm.now = tm.now.Add(config.DefaultEmptyLobbyTTL - time.Second)
	if tm.loop() == nil {
		t.Fatalf("match ended before the empty lobby ttl")
	}
	if _, ok := tm.registry.Lookup(tm.state.Code); !ok {
		t.Fatalf("code released early")
	}

	tm.now = tm.now.Add(time.Second)
	if tm.loop() != nil {
		t.Fatalf("expected the never-joined match to end")
	}
	if _, ok := tm.registry.Lookup(tm.state.Code); ok {
		t.Fatalf("code still registered after the empty lobby ttl")
	}
}

func TestMatchLoopKeepsSeatedLobby(t *testing.T) {
	tm := newTestMatch(t, 4, 200)
	tm.fill(1)

	for i := 0; i < 3; i++ {
		tm.now = tm.now.Add(24 * time.Hour)
		if tm.loop() == nil {
			t.Fatalf("lobby with a seated player ended")
		}
	}
	if _, ok := tm.registry.Lookup(tm.state.Code); !ok {
		t.Fatalf("code released for a seated lobby")
	}
}
