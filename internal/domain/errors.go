package domain

import "errors"

// ErrorKind classifies engine failures for callers and transports.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindStateConflict   ErrorKind = "state_conflict"
	KindIllegalActor    ErrorKind = "illegal_actor"
	KindIllegalState    ErrorKind = "illegal_state"
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindUpstream        ErrorKind = "upstream_failure"
)

// Error is a typed engine failure. Reason is safe to show to players; Err keeps
// the underlying cause for server-side logs.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind, and on reason too when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Kind-only sentinels.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrStateConflict   = &Error{Kind: KindStateConflict}
	ErrIllegalActor    = &Error{Kind: KindIllegalActor}
	ErrIllegalState    = &Error{Kind: KindIllegalState}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrUpstream        = &Error{Kind: KindUpstream}
)

var (
	ErrSessionNotFound  = &Error{Kind: KindNotFound, Reason: "game session not found"}
	ErrNoActiveSession  = &Error{Kind: KindNotFound, Reason: "no game in progress"}
	ErrTurnConflict     = &Error{Kind: KindStateConflict, Reason: "game state changed, refresh and try again"}
	ErrNotAPlayer       = &Error{Kind: KindIllegalActor, Reason: "you are not a player in this game"}
	ErrNotYourTurn      = &Error{Kind: KindIllegalActor, Reason: "not your turn"}
	ErrNotExecutor      = &Error{Kind: KindIllegalActor, Reason: "only the executor can confirm this task"}
	ErrNotObserver      = &Error{Kind: KindIllegalActor, Reason: "only the observer can verify this task"}
	ErrGameNotPlaying   = &Error{Kind: KindIllegalState, Reason: "game is not in progress"}
	ErrGameNotCompleted = &Error{Kind: KindIllegalState, Reason: "game is not completed"}
	ErrTaskPending      = &Error{Kind: KindIllegalState, Reason: "a task is pending"}
	ErrNoPendingTask    = &Error{Kind: KindIllegalState, Reason: "no task is pending"}
	ErrTaskConfirmed    = &Error{Kind: KindIllegalState, Reason: "task already confirmed"}
	ErrTaskNotExecuted  = &Error{Kind: KindIllegalState, Reason: "task has not been performed yet"}
	ErrHistoryExists    = &Error{Kind: KindStateConflict, Reason: "game already archived"}
	ErrAlreadyPlaying   = &Error{Kind: KindIllegalState, Reason: "player already has a game in progress"}
	ErrRoomNotFound     = &Error{Kind: KindNotFound, Reason: "room not found"}
	ErrNotRoomMember    = &Error{Kind: KindIllegalActor, Reason: "player is not a member of this room"}
)

// InvalidArgument builds a caller-input failure.
func InvalidArgument(reason string) *Error {
	return &Error{Kind: KindInvalidArgument, Reason: reason}
}

// Upstream wraps a failed store or task-source call.
func Upstream(reason string, err error) *Error {
	return &Error{Kind: KindUpstream, Reason: reason, Err: err}
}

// KindOf extracts the kind of err, defaulting to upstream failure for untyped errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// ReasonOf returns the player-facing message for err.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return "internal error"
}
