package bot

import (
	"context"
	"errors"
	"fmt"

	"taskboard/internal/app"
	"taskboard/internal/domain"
)

// ErrStalled is returned when no seated agent can act on the session.
var ErrStalled = errors.New("no agent can act")

// Engine is the slice of the turn engine agents drive.
type Engine interface {
	Roll(ctx context.Context, sessionID, actorID string) (*app.RollResult, error)
	ConfirmExecution(ctx context.Context, sessionID, actorID string) (*app.TransitionResult, error)
	Verify(ctx context.Context, sessionID, actorID string, confirmed bool) (*app.TransitionResult, error)
}

// Table seats agents on one session and plays it to the end.
type Table struct {
	Engine   Engine
	Agents   []*Agent
	MaxSteps int
	// OnEvents, when set, sees the events of every step in order.
	OnEvents func([]app.Event)
}

// Play runs the session until it completes. It returns the last known session
// even when it fails, so callers can report where the game stopped.
func (t *Table) Play(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	maxSteps := t.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 5000
	}

	current := session
	for step := 0; step < maxSteps; step++ {
		if current.Status() == domain.StatusCompleted {
			return current, nil
		}
		if err := ctx.Err(); err != nil {
			return current, err
		}

		next, err := t.step(ctx, current)
		if next != nil {
			current = next
		}
		if err != nil {
			return current, err
		}
	}
	if current.Status() == domain.StatusCompleted {
		return current, nil
	}
	return current, fmt.Errorf("game %s did not finish within %d steps", current.ID, maxSteps)
}

func (t *Table) step(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	for _, agent := range t.Agents {
		move := agent.Play(session)
		switch move.Action {
		case ActionRoll:
			res, err := t.Engine.Roll(ctx, session.ID, agent.ID)
			if err != nil {
				return nil, err
			}
			t.emit(res.Events)
			if res.FollowUpErr != nil {
				return res.Session, fmt.Errorf("game finished but was not archived: %w", res.FollowUpErr)
			}
			return res.Session, nil
		case ActionConfirm:
			res, err := t.Engine.ConfirmExecution(ctx, session.ID, agent.ID)
			if err != nil {
				return nil, err
			}
			t.emit(res.Events)
			return res.Session, nil
		case ActionVerify:
			res, err := t.Engine.Verify(ctx, session.ID, agent.ID, move.Confirmed)
			if err != nil {
				return nil, err
			}
			t.emit(res.Events)
			return res.Session, nil
		}
	}
	return nil, ErrStalled
}

func (t *Table) emit(events []app.Event) {
	if t.OnEvents != nil && len(events) > 0 {
		t.OnEvents(events)
	}
}
