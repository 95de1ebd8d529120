package ports

import (
	"context"

	"taskboard/internal/domain"
)

// Commit is one atomic session transition: the session write, guarded by
// Expect, together with the move-log change it implies.
type Commit struct {
	Session    *domain.Session
	Expect     domain.Guard
	AppendMove *domain.Move
	PatchMove  *domain.MovePatch
}

// SessionStore persists live sessions, their move logs and finished-game history.
// Implementations report a missing session with domain.ErrSessionNotFound and a
// failed guard with domain.ErrTurnConflict.
type SessionStore interface {
	// CreateSession inserts a new playing session and indexes it for both players.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession loads a session by id.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// FindActiveSession returns the playing session of the player, or domain.ErrNoActiveSession.
	FindActiveSession(ctx context.Context, playerID string) (*domain.Session, error)

	// Commit applies c atomically if the stored session still matches c.Expect.
	// On conflict nothing is written.
	Commit(ctx context.Context, c Commit) error

	// ListMoves returns the move log of a session in creation order.
	ListMoves(ctx context.Context, sessionID string) ([]domain.Move, error)

	// InsertHistory stores a history record once; a second insert for the same
	// session returns domain.ErrHistoryExists.
	InsertHistory(ctx context.Context, record *domain.HistoryRecord) error

	// ListHistory returns the player's history records, newest first.
	ListHistory(ctx context.Context, playerID string, limit int) ([]domain.HistoryRecord, error)

	// DeleteMoves removes the move log. Missing rows are not an error.
	DeleteMoves(ctx context.Context, sessionID string) error

	// DeleteSession removes the session row. Missing rows are not an error.
	DeleteSession(ctx context.Context, sessionID string) error
}
