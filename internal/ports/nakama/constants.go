package nakama

const (
	// RpcCreateGame allocates a game code and its authoritative match.
	RpcCreateGame = "create_game"
	// RpcJoinGame resolves a game code to the match id clients join.
	RpcJoinGame = "join_game"
	// RpcListGames lists lobbies that still have open seats.
	RpcListGames = "list_games"

	// MatchNameSpades is the authoritative match handler name registered with Nakama.
	MatchNameSpades = "spades_match"
)

// Match label keys, queryable through MatchList.
const (
	MatchLabelKey_Code      = "code"
	MatchLabelKey_OpenSeats = "open"
	MatchLabelKey_State     = "state"
)

// Join metadata key carrying the player's display name.
const JoinMetadataUsername = "username"

// Op codes for client messages and server events. Payloads are JSON.
const (
	// Client -> Server
	OpKickPlayer int64 = 1
	OpStartGame  int64 = 2
	OpSubmitBid  int64 = 3
	OpPlayCard   int64 = 4

	// Server -> Client events
	OpGameCreated        int64 = 101 // send privately
	OpGameJoined         int64 = 102 // send privately
	OpLobbyUpdated       int64 = 103
	OpPlayerDisconnected int64 = 104
	OpKicked             int64 = 105 // send privately
	OpHandDealt          int64 = 106 // send privately
	OpBiddingStarted     int64 = 107
	OpBidPlaced          int64 = 108
	OpNextBidder         int64 = 109
	OpBiddingEnded       int64 = 110
	OpYourTurn           int64 = 111 // send privately
	OpNextTurn           int64 = 112
	OpCardPlayed         int64 = 113
	OpNewTrick           int64 = 114
	OpTrickWon           int64 = 115
	OpRoundEnded         int64 = 116
	OpGameOver           int64 = 117
	OpError              int64 = 199 // send privately
)

// gRPC status codes used for RPC errors.
const (
	codeInvalidArgument = 3
	codeNotFound        = 5
	codeInternal        = 13
)

// Match creation parameter keys.
const (
	paramCode       = "code"
	paramMaxPlayers = "max_players"
	paramWinScore   = "win_score"
	paramCreatorID  = "creator_id"
)
