package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"spades/internal/app"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// CreateGameRequest is the create_game payload.
type CreateGameRequest struct {
	MaxPlayers int `json:"maxPlayers"`
	WinScore   int `json:"winScore"`
}

// JoinGameRequest is the join_game payload.
type JoinGameRequest struct {
	Code string `json:"code"`
}

// GameRef tells a client which match to join for a game code.
type GameRef struct {
	Code    string `json:"code"`
	MatchID string `json:"match_id"`
}

// OpenGame is one entry of the list_games response.
type OpenGame struct {
	GameRef
	OpenSeats int `json:"open_seats"`
}

func (m *module) registerRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcCreateGame, m.rpcCreateGame); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcJoinGame, m.rpcJoinGame); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcListGames, m.rpcListGames)
}

// rpcCreateGame reserves a game code and creates the authoritative match for it.
// The creator then joins the returned match and becomes host; until then the
// match admits nobody else.
//
// Payload: {"maxPlayers": 4, "winScore": 500}
// Returns: {"code": "K3X9Q", "match_id": "..."}
func (m *module) rpcCreateGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userId, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var req CreateGameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid create_game payload", codeInvalidArgument)
	}
	if err := app.ValidateOptions(req.MaxPlayers, req.WinScore); err != nil {
		return "", runtime.NewError(err.Error(), codeInvalidArgument)
	}

	code, err := m.registry.Reserve()
	if err != nil {
		logger.Error("RpcCreateGame [User:%s]: %v", userId, err)
		return "", runtime.NewError(err.Error(), codeInternal)
	}

	matchId, err := nk.MatchCreate(ctx, MatchNameSpades, map[string]interface{}{
		paramCode:       code,
		paramMaxPlayers: req.MaxPlayers,
		paramWinScore:   req.WinScore,
		paramCreatorID:  userId,
	})
	if err != nil {
		m.registry.Release(code)
		logger.Error("RpcCreateGame [User:%s]: Failed to create match: %v", userId, err)
		return "", runtime.NewError("failed to create game", codeInternal)
	}
	if err := m.registry.Bind(code, matchId); err != nil {
		logger.Error("RpcCreateGame [User:%s]: Failed to bind code %s: %v", userId, code, err)
		return "", runtime.NewError("failed to create game", codeInternal)
	}

	logger.Info("RpcCreateGame [User:%s]: Created game %s (match %s)", userId, code, matchId)
	return marshalResponse(GameRef{Code: code, MatchID: matchId})
}

// rpcJoinGame resolves a game code to its match id.
//
// Payload: {"code": "k3x9q"}
// Returns: {"code": "K3X9Q", "match_id": "..."}
func (m *module) rpcJoinGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req JoinGameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.Code == "" {
		return "", runtime.NewError("invalid join_game payload", codeInvalidArgument)
	}
	code := app.NormalizeCode(req.Code)

	matchId, ok := m.registry.Lookup(code)
	if !ok {
		return "", runtime.NewError(app.ErrGameNotFound.Error(), codeNotFound)
	}

	// A code can outlive its match if the match crashed without terminating cleanly.
	match, err := nk.MatchGet(ctx, matchId)
	if err != nil {
		logger.Error("RpcJoinGame: Failed to get match %s: %v", matchId, err)
		return "", runtime.NewError("failed to join game", codeInternal)
	}
	if match == nil {
		m.registry.Release(code)
		return "", runtime.NewError(app.ErrGameNotFound.Error(), codeNotFound)
	}

	return marshalResponse(GameRef{Code: code, MatchID: matchId})
}

// rpcListGames lists lobbies with at least one open seat.
//
// Returns: [{"code": "K3X9Q", "match_id": "...", "open_seats": 2}]
func (m *module) rpcListGames(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	limit := 20
	authoritative := true
	minSize := 0
	maxSize := 6
	query := fmt.Sprintf("+label.%s:>=1 +label.%s:lobby", MatchLabelKey_OpenSeats, MatchLabelKey_State)

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, query)
	if err != nil {
		logger.Error("RpcListGames: Failed to list matches: %v", err)
		return "", err
	}

	games := make([]OpenGame, 0, len(matches))
	for _, match := range matches {
		label := &structpb.Struct{}
		if err := protojson.Unmarshal([]byte(match.GetLabel().GetValue()), label); err != nil {
			logger.Warn("RpcListGames: Skipping match %s with unreadable label: %v", match.GetMatchId(), err)
			continue
		}
		fields := label.GetFields()
		games = append(games, OpenGame{
			GameRef: GameRef{
				Code:    fields[MatchLabelKey_Code].GetStringValue(),
				MatchID: match.GetMatchId(),
			},
			OpenSeats: int(fields[MatchLabelKey_OpenSeats].GetNumberValue()),
		})
	}
	return marshalResponse(games)
}

func marshalResponse(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError("failed to encode response", codeInternal)
	}
	return string(b), nil
}
