package nakama

// RPC ids registered with Nakama.
const (
	RpcStartSession     = "start_session"
	RpcRollDice         = "roll_dice"
	RpcConfirmTask      = "confirm_task"
	RpcVerifyTask       = "verify_task"
	RpcGetActiveSession = "get_active_session"
	RpcListHistory      = "list_history"
)

// Storage collections.
const (
	collectionSessions = "game_sessions"
	collectionMoves    = "game_moves"
	collectionActive   = "active_sessions"
	collectionHistory  = "game_history"

	// activeKey is the single per-user pointer to the session in progress.
	activeKey = "current"

	historyPageSize = 100
)

// Notification codes for server events.
const (
	NotifyDiceRolled    = 101
	NotifyTaskTriggered = 102
	NotifyTaskExecuted  = 103
	NotifyTaskVerified  = 104
	NotifyTurnPassed    = 105
	NotifyGameEnded     = 106
)

// gRPC status codes used by runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codePermissionDenied   = 7
	codeFailedPrecondition = 9
	codeAborted            = 10
	codeInternal           = 13
	codeUnavailable        = 14
	codeUnauthenticated    = 16
)
