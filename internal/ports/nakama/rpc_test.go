package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/app"
	"taskboard/internal/domain"
	"taskboard/internal/ports"
	"taskboard/internal/ports/memory"
)

// fixedRand returns its own value, capped to the range.
type fixedRand int

func (r fixedRand) Intn(n int) int {
	if int(r) >= n {
		return n - 1
	}
	return int(r)
}

func withTestService(t *testing.T, rng app.Randomizer) *memory.Store {
	t.Helper()
	catalog := memory.NewStore()
	catalog.AddRoom("room-1", "p1", "p2")
	catalog.AddRoom("room-2", "p3", "p2")
	catalog.AddRoom("room-3", "p3", "p4")
	prev := newService
	newService = func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) *app.Service {
		return app.NewService(NewNakamaSessionStore(nk), catalog, catalog, rng, app.Options{})
	}
	t.Cleanup(func() { newService = prev })
	return catalog
}

func asUser(userID string) context.Context {
	return context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, userID)
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var rtErr *runtime.Error
	require.True(t, errors.As(err, &rtErr), "want *runtime.Error, got %T", err)
	assert.Equal(t, code, rtErr.Code, rtErr.Message)
}

func startGame(t *testing.T, nk *fakeNakama) string {
	t.Helper()
	out, err := rpcStartSession(asUser("p1"), noopLogger{}, nil, nk, `{"room_id":"room-1","opponent_id":"p2"}`)
	require.NoError(t, err)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Session)
	return resp.Session.ID
}

func TestRpcRollAndTaskFlow(t *testing.T) {
	catalog := withTestService(t, fixedRand(1))
	catalog.SetTheme("room-1", "p1", "theme-a")
	catalog.AddTasks("theme-a", domain.Task{ID: "t1", Description: "sing"})
	nk := newFakeNakama()
	id := startGame(t, nk)
	logger := noopLogger{}
	payload := `{"session_id":"` + id + `"}`

	_, err := rpcRollDice(asUser("p2"), logger, nil, nk, payload)
	requireCode(t, err, codePermissionDenied)

	out, err := rpcRollDice(asUser("p1"), logger, nil, nk, payload)
	require.NoError(t, err)
	var roll rollResponse
	require.NoError(t, json.Unmarshal([]byte(out), &roll))
	assert.Equal(t, 2, roll.Dice)
	require.NotNil(t, roll.Session.Pending)
	assert.Equal(t, "p2", roll.Session.Pending.ExecutorID)
	require.NotNil(t, roll.Session.Pending.Task)
	assert.Equal(t, "sing", roll.Session.Pending.Task.Description)

	// dice_rolled and task_triggered, each to both players.
	require.Len(t, nk.notifications, 4)
	assert.Equal(t, NotifyDiceRolled, nk.notifications[0].code)
	assert.Equal(t, id, nk.notifications[0].content["session_id"])
	assert.Equal(t, NotifyTaskTriggered, nk.notifications[2].code)

	_, err = rpcRollDice(asUser("p1"), logger, nil, nk, payload)
	requireCode(t, err, codeFailedPrecondition)

	_, err = rpcConfirmTask(asUser("p2"), logger, nil, nk, payload)
	require.NoError(t, err)

	_, err = rpcVerifyTask(asUser("p1"), logger, nil, nk, payload)
	requireCode(t, err, codeInvalidArgument)

	out, err = rpcVerifyTask(asUser("p1"), logger, nil, nk, `{"session_id":"`+id+`","confirmed":false}`)
	require.NoError(t, err)
	var verified sessionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &verified))
	assert.Equal(t, "p2", verified.Session.CurrentPlayerID)
	assert.Nil(t, verified.Session.Pending)
	assert.Zero(t, verified.Session.Board.Player2Position, "penalty cannot move below the start cell")
}

func TestRpcGetActiveSession(t *testing.T) {
	withTestService(t, fixedRand(0))
	nk := newFakeNakama()
	id := startGame(t, nk)

	out, err := rpcGetActiveSession(asUser("p2"), noopLogger{}, nil, nk, "")
	require.NoError(t, err)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Session)
	assert.Equal(t, id, resp.Session.ID)

	out, err = rpcGetActiveSession(asUser("p3"), noopLogger{}, nil, nk, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"session":null}`, out)
}

func TestRpcErrors(t *testing.T) {
	withTestService(t, fixedRand(0))
	nk := newFakeNakama()

	_, err := rpcRollDice(context.Background(), noopLogger{}, nil, nk, `{"session_id":"x"}`)
	requireCode(t, err, codeUnauthenticated)

	_, err = rpcRollDice(asUser("p1"), noopLogger{}, nil, nk, `{not json`)
	requireCode(t, err, codeInvalidArgument)

	_, err = rpcRollDice(asUser("p1"), noopLogger{}, nil, nk, `{"session_id":"missing"}`)
	requireCode(t, err, codeNotFound)

	_, err = rpcStartSession(asUser("p1"), noopLogger{}, nil, nk, `{}`)
	requireCode(t, err, codeInvalidArgument)
}

func activeSessionID(t *testing.T, nk *fakeNakama, userID string) string {
	t.Helper()
	out, err := rpcGetActiveSession(asUser(userID), noopLogger{}, nil, nk, "")
	require.NoError(t, err)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	if resp.Session == nil {
		return ""
	}
	return resp.Session.ID
}

func TestRpcStartSessionChecksRoomAndPlayers(t *testing.T) {
	tests := []struct {
		name    string
		caller  string
		payload string
		code    int
	}{
		{name: "caller outside the room", caller: "p3", payload: `{"room_id":"room-1","opponent_id":"p2"}`, code: codePermissionDenied},
		{name: "opponent outside the room", caller: "p1", payload: `{"room_id":"room-1","opponent_id":"p3"}`, code: codePermissionDenied},
		{name: "unknown room", caller: "p1", payload: `{"room_id":"nowhere"}`, code: codeNotFound},
		{name: "opponent still in a game", caller: "p3", payload: `{"room_id":"room-2","opponent_id":"p2"}`, code: codeFailedPrecondition},
		{name: "caller still in a game", caller: "p1", payload: `{"room_id":"room-1"}`, code: codeFailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTestService(t, fixedRand(0))
			nk := newFakeNakama()
			id := startGame(t, nk)

			_, err := rpcStartSession(asUser(tt.caller), noopLogger{}, nil, nk, tt.payload)
			requireCode(t, err, tt.code)

			assert.Equal(t, id, activeSessionID(t, nk, "p1"))
			assert.Equal(t, id, activeSessionID(t, nk, "p2"))
			assert.Empty(t, activeSessionID(t, nk, "p3"))
			assert.Equal(t, 1, nk.count(collectionSessions))
		})
	}
}

func TestRpcStartSessionOpponentIsOptional(t *testing.T) {
	withTestService(t, fixedRand(0))
	nk := newFakeNakama()

	out, err := rpcStartSession(asUser("p2"), noopLogger{}, nil, nk, `{"room_id":"room-1"}`)
	require.NoError(t, err)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Session)
	assert.Equal(t, "p2", resp.Session.Player1ID)
	assert.Equal(t, "p1", resp.Session.Player2ID)
	assert.Equal(t, "p2", resp.Session.CurrentPlayerID)
}

func TestRpcStartSessionRacingStartsCommitOnce(t *testing.T) {
	withTestService(t, fixedRand(0))
	nk := newFakeNakama()

	// p3 starts in room-2 against p2 while p1's start in room-1 is in flight.
	nk.beforeUpdate = func(f *fakeNakama) {
		f.beforeUpdate = nil
		f.mu.Unlock()
		defer f.mu.Lock()
		_, err := rpcStartSession(asUser("p3"), noopLogger{}, nil, nk, `{"room_id":"room-2","opponent_id":"p2"}`)
		require.NoError(t, err)
	}

	_, err := rpcStartSession(asUser("p1"), noopLogger{}, nil, nk, `{"room_id":"room-1","opponent_id":"p2"}`)
	requireCode(t, err, codeAborted)

	winner := activeSessionID(t, nk, "p2")
	require.NotEmpty(t, winner)
	assert.Equal(t, winner, activeSessionID(t, nk, "p3"))
	assert.Empty(t, activeSessionID(t, nk, "p1"))
	assert.Equal(t, 1, nk.count(collectionSessions))
}

func TestRpcWinArchivesAndListsHistory(t *testing.T) {
	withTestService(t, fixedRand(5))
	nk := newFakeNakama()
	id := startGame(t, nk)

	// Move the tokens next to the end through the store to keep the test short.
	store := NewNakamaSessionStore(nk)
	s, err := store.GetSession(context.Background(), id)
	require.NoError(t, err)
	next := s.Clone()
	next.Version++
	next.Board.Player1Position = next.Board.FinalCell() - 3
	require.NoError(t, store.Commit(context.Background(), ports.Commit{Session: next, Expect: s.Guard()}))

	out, err := rpcRollDice(asUser("p1"), noopLogger{}, nil, nk, `{"session_id":"`+id+`"}`)
	require.NoError(t, err)
	var roll rollResponse
	require.NoError(t, json.Unmarshal([]byte(out), &roll))
	assert.Equal(t, domain.StatusCompleted, roll.Session.Status)
	assert.Equal(t, "p1", roll.Session.WinnerID)
	require.NotNil(t, roll.History)

	assert.Zero(t, nk.count(collectionSessions))
	assert.Zero(t, nk.count(collectionMoves))
	assert.Zero(t, nk.count(collectionActive))

	out, err = rpcListHistory(asUser("p2"), noopLogger{}, nil, nk, `{"limit":5}`)
	require.NoError(t, err)
	var history historyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	require.Len(t, history.Records, 1)
	assert.Equal(t, id, history.Records[0].SessionID)
	assert.Equal(t, "p1", history.Records[0].WinnerID)
}

func TestEventContent(t *testing.T) {
	content, err := eventContent(app.Event{
		Kind:      app.EventTurnPassed,
		SessionID: "s1",
		Payload:   app.TurnPassedPayload{Turn: 4, NextPlayerID: "p2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", content["session_id"])
	assert.Equal(t, "p2", content["next_player_id"])
	assert.EqualValues(t, 4, content["turn"])
}
