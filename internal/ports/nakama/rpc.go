package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"taskboard/internal/app"
	"taskboard/internal/config"
	"taskboard/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

type rpcFunc = func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

// RegisterRPCs registers every turn engine RPC.
func RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := []struct {
		id string
		fn rpcFunc
	}{
		{RpcStartSession, rpcStartSession},
		{RpcRollDice, rpcRollDice},
		{RpcConfirmTask, rpcConfirmTask},
		{RpcVerifyTask, rpcVerifyTask},
		{RpcGetActiveSession, rpcGetActiveSession},
		{RpcListHistory, rpcListHistory},
	}
	for _, r := range rpcs {
		if err := initializer.RegisterRpc(r.id, r.fn); err != nil {
			return err
		}
	}
	return nil
}

// newService builds the engine for one call. The engine is stateless, so a
// fresh one per call is cheap. Tests replace it.
var newService = func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) *app.Service {
	vars, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	envCfg, err := config.ParseEnvMap(vars)
	if err != nil {
		logger.Warn("newService: invalid env config, using defaults: %v", err)
	}
	catalog := NewSQLCatalog(db)
	return app.NewService(NewNakamaSessionStore(nk), catalog, catalog, nil, app.Options{TaskDrawLimit: envCfg.TaskDrawLimit})
}

type startSessionRequest struct {
	RoomID     string `json:"room_id"`
	OpponentID string `json:"opponent_id"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type verifyRequest struct {
	SessionID string `json:"session_id"`
	Confirmed *bool  `json:"confirmed"`
}

type historyRequest struct {
	Limit int `json:"limit"`
}

type sessionResponse struct {
	Session *sessionDoc `json:"session"`
}

type rollResponse struct {
	Dice    int                   `json:"dice"`
	Session sessionDoc            `json:"session"`
	History *domain.HistoryRecord `json:"history,omitempty"`
}

type historyResponse struct {
	Records []domain.HistoryRecord `json:"records"`
}

// rpcStartSession starts a game in a room the caller belongs to; the caller is
// player 1 and moves first. opponent_id is optional and must name the other
// room member when given.
// Payload: {"room_id": "...", "opponent_id": "..."}
func rpcStartSession(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req startSessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}

	size, cells := config.GetGameConfig().Layout()
	session, err := newService(ctx, logger, db, nk).StartInRoom(ctx, app.RoomStart{
		RoomID:       req.RoomID,
		ActorID:      userID,
		OpponentID:   req.OpponentID,
		BoardSize:    size,
		SpecialCells: cells,
	})
	if err != nil {
		return "", toRuntimeError(logger, RpcStartSession, userID, err)
	}
	logger.Info("rpcStartSession [User:%s]: started session %s in room %s", userID, session.ID, session.RoomID)

	doc := toSessionDoc(session)
	return encodeResponse(sessionResponse{Session: &doc})
}

// rpcRollDice rolls for the caller.
// Payload: {"session_id": "..."}
func rpcRollDice(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}

	res, err := newService(ctx, logger, db, nk).Roll(ctx, req.SessionID, userID)
	if err != nil {
		return "", toRuntimeError(logger, RpcRollDice, userID, err)
	}
	if res.FollowUpErr != nil {
		// The win is committed; a retry of archival can pick this up later.
		logger.Error("rpcRollDice [User:%s]: session %s ended but archival is incomplete: %v", userID, req.SessionID, res.FollowUpErr)
	}
	dispatchEvents(ctx, logger, nk, res.Events)

	return encodeResponse(rollResponse{Dice: res.Dice, Session: toSessionDoc(res.Session), History: res.History})
}

// rpcConfirmTask lets the executor confirm the pending task was performed.
// Payload: {"session_id": "..."}
func rpcConfirmTask(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}

	res, err := newService(ctx, logger, db, nk).ConfirmExecution(ctx, req.SessionID, userID)
	if err != nil {
		return "", toRuntimeError(logger, RpcConfirmTask, userID, err)
	}
	dispatchEvents(ctx, logger, nk, res.Events)

	doc := toSessionDoc(res.Session)
	return encodeResponse(sessionResponse{Session: &doc})
}

// rpcVerifyTask records the observer's verdict.
// Payload: {"session_id": "...", "confirmed": true|false}
func rpcVerifyTask(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req verifyRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	if req.Confirmed == nil {
		return "", runtime.NewError("confirmed is required", codeInvalidArgument)
	}

	res, err := newService(ctx, logger, db, nk).Verify(ctx, req.SessionID, userID, *req.Confirmed)
	if err != nil {
		return "", toRuntimeError(logger, RpcVerifyTask, userID, err)
	}
	dispatchEvents(ctx, logger, nk, res.Events)

	doc := toSessionDoc(res.Session)
	return encodeResponse(sessionResponse{Session: &doc})
}

// rpcGetActiveSession returns the caller's game in progress, or a null session.
func rpcGetActiveSession(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}

	session, err := newService(ctx, logger, db, nk).GetActiveSession(ctx, userID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return encodeResponse(sessionResponse{})
		}
		return "", toRuntimeError(logger, RpcGetActiveSession, userID, err)
	}
	doc := toSessionDoc(session)
	return encodeResponse(sessionResponse{Session: &doc})
}

// rpcListHistory returns the caller's finished games, newest first.
// Payload: (Optional) {"limit": 20}
func rpcListHistory(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req historyRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}

	records, err := newService(ctx, logger, db, nk).ListHistory(ctx, userID, req.Limit)
	if err != nil {
		return "", toRuntimeError(logger, RpcListHistory, userID, err)
	}
	return encodeResponse(historyResponse{Records: records})
}

func callerID(ctx context.Context) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("authentication required", codeUnauthenticated)
	}
	return userID, nil
}

func decodePayload(payload string, dst any) error {
	if payload == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return runtime.NewError("invalid payload", codeInvalidArgument)
	}
	return nil
}

func encodeResponse(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError("internal error", codeInternal)
	}
	return string(b), nil
}

// toRuntimeError maps an engine failure to a client-facing Nakama error. Only
// the reason reaches the client; causes are logged.
func toRuntimeError(logger runtime.Logger, rpc, userID string, err error) error {
	code := codeInternal
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument:
		code = codeInvalidArgument
	case domain.KindNotFound:
		code = codeNotFound
	case domain.KindIllegalActor:
		code = codePermissionDenied
	case domain.KindIllegalState:
		code = codeFailedPrecondition
	case domain.KindStateConflict:
		code = codeAborted
	case domain.KindUpstream:
		code = codeUnavailable
		logger.Error("%s [User:%s]: %v", rpc, userID, err)
	}
	if code != codeUnavailable {
		logger.Debug("%s [User:%s]: rejected: %v", rpc, userID, err)
	}
	return runtime.NewError(domain.ReasonOf(err), code)
}
