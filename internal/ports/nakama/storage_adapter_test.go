package nakama

import (
	"context"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/domain"
	"taskboard/internal/ports"
)

func newStoredSession(t *testing.T, store *NakamaSessionStore, id string) *domain.Session {
	t.Helper()
	s, err := domain.NewSession(id, "room-1", "p1", "p2", domain.NewBoard(0, nil), time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(context.Background(), s))
	return s
}

func advance(s *domain.Session, next string) *domain.Session {
	out := s.Clone()
	out.Version++
	out.Turn++
	out.State = domain.Playing{CurrentPlayerID: next}
	return out
}

func TestNakamaSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	nk := newFakeNakama()
	store := NewNakamaSessionStore(nk)
	s := newStoredSession(t, store, "s1")

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s.Guard(), got.Guard())
	assert.Equal(t, s.Board.SpecialCells, got.Board.SpecialCells)

	err = store.CreateSession(ctx, s)
	require.ErrorIs(t, err, domain.ErrStateConflict)

	_, err = store.GetSession(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestNakamaSessionStoreCommit(t *testing.T) {
	ctx := context.Background()
	nk := newFakeNakama()
	store := NewNakamaSessionStore(nk)
	s := newStoredSession(t, store, "s1")

	pending := &domain.PendingTask{Trigger: domain.TriggerStar, ExecutorID: "p2", ObserverID: "p1", Status: domain.TaskStatusPending, MoveID: "m1"}
	next := s.Clone()
	next.Version++
	next.State = domain.Playing{CurrentPlayerID: "p1", Pending: pending}
	move := &domain.Move{ID: "m1", SessionID: "s1", PlayerID: "p1", Dice: 2, NewPosition: 2, Trigger: domain.TriggerStar, TaskID: "t1"}
	require.NoError(t, store.Commit(ctx, ports.Commit{Session: next, Expect: s.Guard(), AppendMove: move}))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.Pending())
	assert.Equal(t, "p2", got.Pending().ExecutorID)

	err = store.Commit(ctx, ports.Commit{Session: next, Expect: s.Guard(), AppendMove: move})
	require.ErrorIs(t, err, domain.ErrTurnConflict)

	final := advance(next, "p2")
	require.NoError(t, store.Commit(ctx, ports.Commit{Session: final, Expect: next.Guard(), PatchMove: &domain.MovePatch{MoveID: "m1", TaskCompleted: true}}))

	moves, err := store.ListMoves(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, 1, moves[0].Seq)
	require.NotNil(t, moves[0].TaskCompleted)
	assert.True(t, *moves[0].TaskCompleted)
}

func TestNakamaSessionStoreCommitLosesRace(t *testing.T) {
	ctx := context.Background()
	nk := newFakeNakama()
	store := NewNakamaSessionStore(nk)
	s := newStoredSession(t, store, "s1")

	// Another writer lands between our read and our write.
	nk.beforeUpdate = func(f *fakeNakama) {
		f.bump(collectionSessions, "s1", "")
		f.beforeUpdate = nil
	}
	move := &domain.Move{ID: "m1", SessionID: "s1", PlayerID: "p1", Dice: 1}
	err := store.Commit(ctx, ports.Commit{Session: advance(s, "p2"), Expect: s.Guard(), AppendMove: move})
	require.ErrorIs(t, err, domain.ErrTurnConflict)

	moves, err := store.ListMoves(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, moves, "move log must not change when the session write is rejected")
}

func TestNakamaSessionStoreActiveSession(t *testing.T) {
	ctx := context.Background()
	nk := newFakeNakama()
	store := NewNakamaSessionStore(nk)
	s := newStoredSession(t, store, "s1")

	for _, player := range []string{"p1", "p2"} {
		got, err := store.FindActiveSession(ctx, player)
		require.NoError(t, err)
		assert.Equal(t, "s1", got.ID)
	}
	_, err := store.FindActiveSession(ctx, "p3")
	require.ErrorIs(t, err, domain.ErrNoActiveSession)

	done := s.Clone()
	done.Version++
	done.State = domain.Completed{WinnerID: "p1", EndedAt: time.Now().UTC()}
	require.NoError(t, store.Commit(ctx, ports.Commit{Session: done, Expect: s.Guard()}))
	_, err = store.FindActiveSession(ctx, "p1")
	require.ErrorIs(t, err, domain.ErrNoActiveSession)

	require.NoError(t, store.DeleteMoves(ctx, "s1"))
	require.NoError(t, store.DeleteSession(ctx, "s1"))
	assert.Zero(t, nk.count(collectionActive))
	assert.Zero(t, nk.count(collectionSessions))
	require.NoError(t, store.DeleteSession(ctx, "s1"), "deleting twice is a no-op")
}

func TestNakamaSessionStoreKeepsNewerActivePointer(t *testing.T) {
	ctx := context.Background()
	nk := newFakeNakama()
	store := NewNakamaSessionStore(nk)
	old := newStoredSession(t, store, "old")

	done := old.Clone()
	done.Version++
	done.State = domain.Completed{WinnerID: "p2", EndedAt: time.Now().UTC()}
	require.NoError(t, store.Commit(ctx, ports.Commit{Session: done, Expect: old.Guard()}))
	newStoredSession(t, store, "new")

	require.NoError(t, store.DeleteSession(ctx, "old"))
	got, err := store.FindActiveSession(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)
}

func TestNakamaSessionStoreRefusesBusyPlayer(t *testing.T) {
	ctx := context.Background()
	nk := newFakeNakama()
	store := NewNakamaSessionStore(nk)
	newStoredSession(t, store, "s1")

	intruder, err := domain.NewSession("s2", "room-1", "p3", "p2", domain.NewBoard(0, nil), time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.ErrorIs(t, store.CreateSession(ctx, intruder), domain.ErrAlreadyPlaying)

	got, err := store.FindActiveSession(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	_, err = store.FindActiveSession(ctx, "p3")
	require.ErrorIs(t, err, domain.ErrNoActiveSession)
	assert.Equal(t, 1, nk.count(collectionSessions), "a refused session writes nothing")
}

func TestNakamaSessionStoreCreateLosesPointerRace(t *testing.T) {
	ctx := context.Background()
	nk := newFakeNakama()
	store := NewNakamaSessionStore(nk)

	// Another start claims p2 between our pointer read and the batch write.
	nk.beforeUpdate = func(f *fakeNakama) {
		f.beforeUpdate = nil
		k := objectKey{collectionActive, activeKey, "p2"}
		f.objects[k] = &api.StorageObject{Collection: collectionActive, Key: activeKey, UserId: "p2", Value: `{"session_id":"rival"}`, Version: f.nextVersion()}
	}

	s, err := domain.NewSession("s1", "room-1", "p1", "p2", domain.NewBoard(0, nil), time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.ErrorIs(t, store.CreateSession(ctx, s), domain.ErrStateConflict)

	assert.Zero(t, nk.count(collectionSessions))
	_, err = store.FindActiveSession(ctx, "p1")
	require.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestNakamaSessionStoreHistory(t *testing.T) {
	ctx := context.Background()
	nk := newFakeNakama()
	store := NewNakamaSessionStore(nk)
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		rec := &domain.HistoryRecord{SessionID: id, Player1ID: "p1", Player2ID: "p2", WinnerID: "p1", EndedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.InsertHistory(ctx, rec))
	}
	err := store.InsertHistory(ctx, &domain.HistoryRecord{SessionID: "b", Player1ID: "p1", Player2ID: "p2"})
	require.ErrorIs(t, err, domain.ErrHistoryExists)

	records, err := store.ListHistory(ctx, "p2", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "c", records[0].SessionID)
	assert.Equal(t, "b", records[1].SessionID)
}
