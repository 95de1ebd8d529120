package bot

import (
	"taskboard/internal/domain"
)

// Agent represents an autonomous player.
type Agent struct {
	ID       string
	Strategy Brain
}

// Play returns the agent's next move in the session, or ActionWait when the
// session is not waiting on this agent.
func (a *Agent) Play(session *domain.Session) Move {
	if session.Status() != domain.StatusPlaying || session.SeatOf(a.ID) == domain.SeatNone {
		return Move{Action: ActionWait}
	}

	pt := session.Pending()
	switch {
	case pt == nil:
		if session.CurrentPlayerID() == a.ID {
			return Move{Action: ActionRoll}
		}
	case pt.Status == domain.TaskStatusPending:
		if pt.ExecutorID == a.ID {
			return Move{Action: ActionConfirm}
		}
	case pt.Status == domain.TaskStatusExecuted:
		if pt.ObserverID == a.ID {
			return Move{Action: ActionVerify, Confirmed: a.judge(session, pt)}
		}
	}
	return Move{Action: ActionWait}
}

func (a *Agent) judge(session *domain.Session, pt *domain.PendingTask) bool {
	if a.Strategy == nil {
		return true
	}
	return a.Strategy.Judge(session, pt)
}
