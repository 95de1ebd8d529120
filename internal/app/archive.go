package app

import (
	"context"
	"errors"
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/ports"
)

// Archiver turns a completed session into a history record and removes its live rows.
type Archiver struct {
	store ports.SessionStore
	now   func() time.Time
}

func NewArchiver(store ports.SessionStore, now func() time.Time) *Archiver {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Archiver{store: store, now: now}
}

// Archive inserts the history record for session and then deletes its moves and
// the session itself. It is safe to repeat: an already stored record is kept and
// cleanup runs again. The returned record is nil when an earlier run stored it.
// Cleanup failures are returned alongside the record.
func (a *Archiver) Archive(ctx context.Context, session *domain.Session) (*domain.HistoryRecord, error) {
	if session.Status() != domain.StatusCompleted {
		return nil, domain.ErrGameNotCompleted
	}

	moves, err := a.store.ListMoves(ctx, session.ID)
	if err != nil {
		return nil, storeErr("could not read move log", err)
	}

	record := domain.BuildHistory(session, moves, a.now())
	stored := &record
	if err := a.store.InsertHistory(ctx, stored); err != nil {
		if !errors.Is(err, domain.ErrHistoryExists) {
			return nil, storeErr("could not store game history", err)
		}
		stored = nil
	}

	var errs []error
	if err := a.store.DeleteMoves(ctx, session.ID); err != nil {
		errs = append(errs, domain.Upstream("could not clean up moves", err))
	}
	if err := a.store.DeleteSession(ctx, session.ID); err != nil {
		errs = append(errs, domain.Upstream("could not clean up game", err))
	}
	return stored, errors.Join(errs...)
}
