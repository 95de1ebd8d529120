package bot

import (
	"taskboard/internal/domain"
)

// Action is the kind of step an agent takes.
type Action int

const (
	ActionWait Action = iota
	ActionRoll
	ActionConfirm
	ActionVerify
)

func (a Action) String() string {
	switch a {
	case ActionRoll:
		return "roll"
	case ActionConfirm:
		return "confirm"
	case ActionVerify:
		return "verify"
	default:
		return "wait"
	}
}

// Move represents the decision made by the agent.
type Move struct {
	Action    Action
	Confirmed bool
}

// Brain is the interface that all judging strategies must implement.
type Brain interface {
	Judge(session *domain.Session, task *domain.PendingTask) bool
}
