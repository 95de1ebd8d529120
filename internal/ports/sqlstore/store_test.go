package sqlstore

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/app"
	"taskboard/internal/domain"
	"taskboard/internal/ports"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "taskboard.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func seedRoom(t *testing.T, store *Store) {
	t.Helper()
	require.NoError(t, store.ApplySeed(context.Background(), &Seed{
		Rooms: []Room{{ID: "room-1", Player1ID: "p1", Player2ID: "p2", Player1ThemeID: strPtr("th1")}},
		Themes: map[string][]domain.Task{
			"th1": {{ID: "t1", Description: "sing"}, {ID: "t2", Description: "dance"}},
		},
	}))
}

func TestStoreSessionCommit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	s, err := domain.NewSession("s1", "room-1", "p1", "p2", domain.NewBoard(0, nil), time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(ctx, s))
	require.ErrorIs(t, store.CreateSession(ctx, s), domain.ErrStateConflict)

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s.Guard(), got.Guard())
	assert.Equal(t, s.Board, got.Board)
	assert.Nil(t, got.Pending())

	old := 0
	next := s.Clone()
	next.Version++
	next.Board = next.Board.WithPosition(domain.SeatPlayer1, 2)
	next.State = domain.Playing{CurrentPlayerID: "p1", Pending: &domain.PendingTask{
		Trigger: domain.TriggerStar, Position: 2, ExecutorID: "p2", ObserverID: "p1",
		Status: domain.TaskStatusPending, Task: &domain.Task{ID: "t1", Description: "sing"},
		MoveID: "m1", Meta: domain.TaskMeta{Dice: 2, AttackerOldPosition: &old},
	}}
	move := &domain.Move{ID: "m1", SessionID: "s1", PlayerID: "p1", Dice: 2, NewPosition: 2, Trigger: domain.TriggerStar, TaskID: "t1", TaskText: "sing"}
	require.NoError(t, store.Commit(ctx, ports.Commit{Session: next, Expect: s.Guard(), AppendMove: move}))

	err = store.Commit(ctx, ports.Commit{Session: next, Expect: s.Guard(), AppendMove: &domain.Move{ID: "m2", SessionID: "s1"}})
	require.ErrorIs(t, err, domain.ErrTurnConflict)

	err = store.Commit(ctx, ports.Commit{Session: &domain.Session{ID: "missing"}, Expect: s.Guard()})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	got, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.Pending())
	assert.Equal(t, "sing", got.Pending().Task.Description)
	assert.Equal(t, 2, got.Board.Player1Position)

	final := got.Clone()
	final.Version++
	final.Turn++
	final.State = domain.Playing{CurrentPlayerID: "p2"}
	require.NoError(t, store.Commit(ctx, ports.Commit{Session: final, Expect: got.Guard(), PatchMove: &domain.MovePatch{MoveID: "m1", TaskCompleted: false}}))

	moves, err := store.ListMoves(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, moves, 1, "a rejected commit must not append its move")
	assert.Equal(t, domain.TriggerStar, moves[0].Trigger)
	require.NotNil(t, moves[0].TaskCompleted)
	assert.False(t, *moves[0].TaskCompleted)

	active, err := store.FindActiveSession(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "s1", active.ID)
	assert.Nil(t, active.Pending())
}

func TestStoreCreateSessionRefusesBusyPlayer(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	first, err := domain.NewSession("s1", "room-1", "p1", "p2", domain.NewBoard(0, nil), start)
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(ctx, first))

	second, err := domain.NewSession("s2", "room-2", "p3", "p1", domain.NewBoard(0, nil), start.Add(time.Minute))
	require.NoError(t, err)
	require.ErrorIs(t, store.CreateSession(ctx, second), domain.ErrAlreadyPlaying)

	active, err := store.FindActiveSession(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "s1", active.ID)

	done := first.Clone()
	done.Version++
	done.State = domain.Completed{WinnerID: "p1", EndedAt: start.Add(time.Hour)}
	require.NoError(t, store.Commit(ctx, ports.Commit{Session: done, Expect: first.Guard()}))
	require.NoError(t, store.CreateSession(ctx, second), "a finished game no longer blocks its players")
}

func TestStoreHistory(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b"} {
		rec := &domain.HistoryRecord{
			SessionID: id, Player1ID: "p1", Player2ID: "p2", WinnerID: "p2",
			EndedAt:     base.Add(time.Duration(i) * time.Hour),
			TaskResults: []domain.TaskResult{{ExecutorID: "p1", ObserverID: "p2", TaskText: "sing", Completed: true}},
		}
		require.NoError(t, store.InsertHistory(ctx, rec))
	}
	require.ErrorIs(t, store.InsertHistory(ctx, &domain.HistoryRecord{SessionID: "a", Player1ID: "p1", Player2ID: "p2"}), domain.ErrHistoryExists)

	records, err := store.ListHistory(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].SessionID)
	require.Len(t, records[0].TaskResults, 1)
	assert.True(t, records[0].TaskResults[0].Completed)
}

func TestStoreRoomsAndTasks(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	seedRoom(t, store)

	theme, err := store.ThemeFor(ctx, "room-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "th1", theme)
	theme, err = store.ThemeFor(ctx, "room-1", "p2")
	require.NoError(t, err)
	assert.Empty(t, theme)

	tasks, err := store.DrawCandidateTasks(ctx, "th1", 1)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	p1, p2, err := store.Seats(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, []string{p1, p2})
	_, _, err = store.Seats(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)

	require.NoError(t, store.MarkCompleted(ctx, "room-1"))
	room, err := store.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", room.Status)
}

func TestLoadSeedShippedFile(t *testing.T) {
	seed, err := LoadSeed(filepath.Join("..", "..", "..", "data", "seed.json"))
	require.NoError(t, err)
	require.NotEmpty(t, seed.Rooms)
	require.NotEmpty(t, seed.Themes)

	store := openTestStore(t)
	require.NoError(t, store.ApplySeed(context.Background(), seed))
	require.NoError(t, store.ApplySeed(context.Background(), seed), "seeding is repeatable")
}

// TestServiceOverSQLite plays whole games through the engine on a real database.
func TestServiceOverSQLite(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	seedRoom(t, store)
	svc := app.NewService(store, store, store, rand.New(rand.NewSource(11)), app.Options{})

	session, err := svc.StartSession(ctx, app.NewSession{RoomID: "room-1", Player1ID: "p1", Player2ID: "p2"})
	require.NoError(t, err)

	current := session
	for step := 0; step < 2000 && current.Status() == domain.StatusPlaying; step++ {
		pt := current.Pending()
		switch {
		case pt == nil:
			res, err := svc.Roll(ctx, session.ID, current.CurrentPlayerID())
			require.NoError(t, err)
			require.NoError(t, res.FollowUpErr)
			current = res.Session
		case pt.Status == domain.TaskStatusPending:
			res, err := svc.ConfirmExecution(ctx, session.ID, pt.ExecutorID)
			require.NoError(t, err)
			current = res.Session
		default:
			res, err := svc.Verify(ctx, session.ID, pt.ObserverID, step%3 != 0)
			require.NoError(t, err)
			current = res.Session
		}
	}
	require.Equal(t, domain.StatusCompleted, current.Status())

	_, err = store.GetSession(ctx, session.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	moves, err := store.ListMoves(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, moves)

	records, err := svc.ListHistory(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.WinnerOf(current), records[0].WinnerID)

	room, err := store.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", room.Status)
}
