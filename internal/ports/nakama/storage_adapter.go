package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"taskboard/internal/domain"
	"taskboard/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// storage is the slice of runtime.NakamaModule the session store needs.
type storage interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error)
	StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error
	MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error)
}

// NakamaSessionStore implements ports.SessionStore on Nakama storage objects.
// Sessions and move logs are system-owned; every conditional write carries the
// object version that was read, so a concurrent writer makes the batch fail
// with runtime.ErrStorageRejectedVersion.
type NakamaSessionStore struct {
	nk storage
}

// NewNakamaSessionStore creates a new session store.
func NewNakamaSessionStore(nk storage) *NakamaSessionStore {
	return &NakamaSessionStore{nk: nk}
}

type movesDoc struct {
	Moves []domain.Move `json:"moves"`
}

type activeDoc struct {
	SessionID string `json:"session_id"`
}

func (a *NakamaSessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	value, err := json.Marshal(toSessionDoc(session))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	pointer, err := json.Marshal(activeDoc{SessionID: session.ID})
	if err != nil {
		return fmt.Errorf("failed to marshal active pointer: %w", err)
	}

	writes := []*runtime.StorageWrite{
		{
			Collection:      collectionSessions,
			Key:             session.ID,
			Value:           string(value),
			Version:         "*",
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	}
	for _, userID := range []string{session.Player1ID, session.Player2ID} {
		version, err := a.claimPointer(ctx, userID, session.ID)
		if err != nil {
			return err
		}
		writes = append(writes, &runtime.StorageWrite{
			Collection:      collectionActive,
			Key:             activeKey,
			UserID:          userID,
			Value:           string(pointer),
			Version:         version,
			PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		})
	}

	if _, _, err := a.nk.MultiUpdate(ctx, nil, writes, nil, nil, false); err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return &domain.Error{Kind: domain.KindStateConflict, Reason: "game already exists or a player just started another one"}
		}
		return fmt.Errorf("failed to create session %s: %w", session.ID, err)
	}
	return nil
}

// claimPointer returns the version to overwrite the player's active pointer
// with, "*" when there is none. A pointer still aimed at another game in
// progress refuses the new session.
func (a *NakamaSessionStore) claimPointer(ctx context.Context, userID, sessionID string) (string, error) {
	obj, err := a.read(ctx, collectionActive, activeKey, userID)
	if err != nil {
		return "", err
	}
	if obj == nil {
		return "*", nil
	}
	var pointer activeDoc
	if err := json.Unmarshal([]byte(obj.Value), &pointer); err != nil {
		return "", fmt.Errorf("failed to unmarshal active pointer: %w", err)
	}
	if pointer.SessionID == sessionID {
		return obj.Version, nil
	}

	current, _, err := a.loadSession(ctx, pointer.SessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
	case err != nil:
		return "", err
	case current.Status() == domain.StatusPlaying:
		return "", domain.ErrAlreadyPlaying
	}
	return obj.Version, nil
}

func (a *NakamaSessionStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, _, err := a.loadSession(ctx, sessionID)
	return session, err
}

func (a *NakamaSessionStore) FindActiveSession(ctx context.Context, playerID string) (*domain.Session, error) {
	obj, err := a.read(ctx, collectionActive, activeKey, playerID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, domain.ErrNoActiveSession
	}
	var pointer activeDoc
	if err := json.Unmarshal([]byte(obj.Value), &pointer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active pointer: %w", err)
	}

	session, _, err := a.loadSession(ctx, pointer.SessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	if session.Status() != domain.StatusPlaying {
		return nil, domain.ErrNoActiveSession
	}
	return session, nil
}

func (a *NakamaSessionStore) Commit(ctx context.Context, c ports.Commit) error {
	current, version, err := a.loadSession(ctx, c.Session.ID)
	if err != nil {
		return err
	}
	if current.Guard() != c.Expect {
		return domain.ErrTurnConflict
	}

	value, err := json.Marshal(toSessionDoc(c.Session))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	writes := []*runtime.StorageWrite{
		{
			Collection:      collectionSessions,
			Key:             c.Session.ID,
			Value:           string(value),
			Version:         version,
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	}

	if c.AppendMove != nil || c.PatchMove != nil {
		moves, movesVersion, err := a.loadMoves(ctx, c.Session.ID)
		if err != nil {
			return err
		}
		if c.PatchMove != nil {
			for i := range moves {
				if c.PatchMove.Apply(&moves[i]) {
					break
				}
			}
		}
		if c.AppendMove != nil {
			m := *c.AppendMove
			m.Seq = len(moves) + 1
			moves = append(moves, m)
		}
		movesValue, err := json.Marshal(movesDoc{Moves: moves})
		if err != nil {
			return fmt.Errorf("failed to marshal moves: %w", err)
		}
		writes = append(writes, &runtime.StorageWrite{
			Collection:      collectionMoves,
			Key:             c.Session.ID,
			Value:           string(movesValue),
			Version:         movesVersion,
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		})
	}

	if _, _, err := a.nk.MultiUpdate(ctx, nil, writes, nil, nil, false); err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return domain.ErrTurnConflict
		}
		return fmt.Errorf("failed to commit session %s: %w", c.Session.ID, err)
	}
	return nil
}

func (a *NakamaSessionStore) ListMoves(ctx context.Context, sessionID string) ([]domain.Move, error) {
	moves, _, err := a.loadMoves(ctx, sessionID)
	return moves, err
}

func (a *NakamaSessionStore) InsertHistory(ctx context.Context, record *domain.HistoryRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	// One create-only copy per player so each can list their own games.
	writes := make([]*runtime.StorageWrite, 0, 2)
	for _, userID := range []string{record.Player1ID, record.Player2ID} {
		writes = append(writes, &runtime.StorageWrite{
			Collection:      collectionHistory,
			Key:             record.SessionID,
			UserID:          userID,
			Value:           string(value),
			Version:         "*",
			PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		})
	}

	if _, _, err := a.nk.MultiUpdate(ctx, nil, writes, nil, nil, false); err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return domain.ErrHistoryExists
		}
		return fmt.Errorf("failed to insert history for %s: %w", record.SessionID, err)
	}
	return nil
}

func (a *NakamaSessionStore) ListHistory(ctx context.Context, playerID string, limit int) ([]domain.HistoryRecord, error) {
	records := make([]domain.HistoryRecord, 0)
	cursor := ""
	for {
		objs, next, err := a.nk.StorageList(ctx, "", playerID, collectionHistory, historyPageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list history for %s: %w", playerID, err)
		}
		for _, obj := range objs {
			var rec domain.HistoryRecord
			if err := json.Unmarshal([]byte(obj.Value), &rec); err != nil {
				return nil, fmt.Errorf("failed to unmarshal history %s: %w", obj.Key, err)
			}
			records = append(records, rec)
		}
		if next == "" || len(objs) == 0 {
			break
		}
		cursor = next
	}

	sort.Slice(records, func(i, j int) bool { return records[i].EndedAt.After(records[j].EndedAt) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (a *NakamaSessionStore) DeleteMoves(ctx context.Context, sessionID string) error {
	err := a.nk.StorageDelete(ctx, []*runtime.StorageDelete{{Collection: collectionMoves, Key: sessionID}})
	if err != nil {
		return fmt.Errorf("failed to delete moves of %s: %w", sessionID, err)
	}
	return nil
}

// DeleteSession removes the session and any active pointer still aimed at it.
func (a *NakamaSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	session, _, err := a.loadSession(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	deletes := []*runtime.StorageDelete{{Collection: collectionSessions, Key: sessionID}}
	for _, userID := range []string{session.Player1ID, session.Player2ID} {
		obj, err := a.read(ctx, collectionActive, activeKey, userID)
		if err != nil {
			return err
		}
		if obj == nil {
			continue
		}
		var pointer activeDoc
		if err := json.Unmarshal([]byte(obj.Value), &pointer); err == nil && pointer.SessionID == sessionID {
			deletes = append(deletes, &runtime.StorageDelete{Collection: collectionActive, Key: activeKey, UserID: userID, Version: obj.Version})
		}
	}

	if err := a.nk.StorageDelete(ctx, deletes); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

func (a *NakamaSessionStore) read(ctx context.Context, collection, key, userID string) (*api.StorageObject, error) {
	objs, err := a.nk.StorageRead(ctx, []*runtime.StorageRead{{Collection: collection, Key: key, UserID: userID}})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
	}
	if len(objs) == 0 {
		return nil, nil
	}
	return objs[0], nil
}

func (a *NakamaSessionStore) loadSession(ctx context.Context, sessionID string) (*domain.Session, string, error) {
	obj, err := a.read(ctx, collectionSessions, sessionID, "")
	if err != nil {
		return nil, "", err
	}
	if obj == nil {
		return nil, "", domain.ErrSessionNotFound
	}
	var doc sessionDoc
	if err := json.Unmarshal([]byte(obj.Value), &doc); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	return doc.toDomain(), obj.Version, nil
}

// loadMoves returns the move log and the version to write it back with; "*"
// means the log does not exist yet.
func (a *NakamaSessionStore) loadMoves(ctx context.Context, sessionID string) ([]domain.Move, string, error) {
	obj, err := a.read(ctx, collectionMoves, sessionID, "")
	if err != nil {
		return nil, "", err
	}
	if obj == nil {
		return []domain.Move{}, "*", nil
	}
	var doc movesDoc
	if err := json.Unmarshal([]byte(obj.Value), &doc); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal moves of %s: %w", sessionID, err)
	}
	if doc.Moves == nil {
		doc.Moves = []domain.Move{}
	}
	return doc.Moves, obj.Version, nil
}

var _ ports.SessionStore = (*NakamaSessionStore)(nil)
