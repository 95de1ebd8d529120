package domain

import "time"

// Status is the persisted lifecycle marker of a session.
type Status string

const (
	// StatusPlaying indicates turns are still being taken.
	StatusPlaying Status = "playing"
	// StatusCompleted indicates a player reached the final cell.
	StatusCompleted Status = "completed"
)

// SessionState is either Playing or Completed.
type SessionState interface {
	Status() Status
	sessionState()
}

// Playing is the state of an unfinished game. CurrentPlayerID is never empty.
type Playing struct {
	CurrentPlayerID string
	Pending         *PendingTask
}

func (Playing) Status() Status { return StatusPlaying }
func (Playing) sessionState()  {}

// Completed is the terminal state; it has no current player and no pending task.
type Completed struct {
	WinnerID string
	EndedAt  time.Time
}

func (Completed) Status() Status { return StatusCompleted }
func (Completed) sessionState()  {}

// Session is one game between exactly two players.
type Session struct {
	ID        string
	RoomID    string
	Player1ID string
	Player2ID string
	Turn      int
	Board     Board
	Version   int64
	StartedAt time.Time
	State     SessionState
}

// Guard is the optimistic-concurrency token a write must match.
type Guard struct {
	CurrentPlayerID string
	Version         int64
}

// Guard captures the token of the session as read.
func (s *Session) Guard() Guard {
	return Guard{CurrentPlayerID: s.CurrentPlayerID(), Version: s.Version}
}

// Status returns the lifecycle status.
func (s *Session) Status() Status {
	if s.State == nil {
		return StatusPlaying
	}
	return s.State.Status()
}

// CurrentPlayerID is empty once the game is completed.
func (s *Session) CurrentPlayerID() string {
	if p, ok := s.State.(Playing); ok {
		return p.CurrentPlayerID
	}
	return ""
}

// Pending returns the pending task, if any.
func (s *Session) Pending() *PendingTask {
	if p, ok := s.State.(Playing); ok {
		return p.Pending
	}
	return nil
}

// SeatOf resolves which seat the user occupies.
func (s *Session) SeatOf(userID string) Seat {
	switch {
	case userID == "":
		return SeatNone
	case userID == s.Player1ID:
		return SeatPlayer1
	case userID == s.Player2ID:
		return SeatPlayer2
	default:
		return SeatNone
	}
}

// PlayerAt returns the user id seated at seat.
func (s *Session) PlayerAt(seat Seat) string {
	switch seat {
	case SeatPlayer1:
		return s.Player1ID
	case SeatPlayer2:
		return s.Player2ID
	default:
		return ""
	}
}

// Opponent returns the other player of the session.
func (s *Session) Opponent(userID string) string {
	return s.PlayerAt(s.SeatOf(userID).Other())
}

// Clone deep-copies the session so a transition can be computed without touching the read copy.
func (s *Session) Clone() *Session {
	out := *s
	out.Board = s.Board.Clone()
	if p, ok := s.State.(Playing); ok && p.Pending != nil {
		pt := p.Pending.Clone()
		out.State = Playing{CurrentPlayerID: p.CurrentPlayerID, Pending: pt}
	}
	return &out
}

// TriggerType names what created a pending task.
type TriggerType string

const (
	TriggerStar      TriggerType = "star"
	TriggerTrap      TriggerType = "trap"
	TriggerCollision TriggerType = "collision"
)

// TaskStatus tracks the executor's confirmation.
type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusExecuted TaskStatus = "executed"
)

// Task is a prompt drawn from a theme.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// TaskMeta carries the numbers needed to resolve a pending task.
type TaskMeta struct {
	Dice                int  `json:"dice"`
	AttackerOldPosition *int `json:"attacker_old_position,omitempty"`
	Penalty             *int `json:"penalty,omitempty"`
}

// PendingTask is the in-flight record of a trigger.
type PendingTask struct {
	Trigger    TriggerType `json:"type"`
	Position   int         `json:"position"`
	ExecutorID string      `json:"executor_id"`
	ObserverID string      `json:"observer_id"`
	Status     TaskStatus  `json:"status"`
	Task       *Task       `json:"task,omitempty"`
	MoveID     string      `json:"move_id"`
	Meta       TaskMeta    `json:"metadata"`
}

// Clone deep-copies the pending task.
func (p *PendingTask) Clone() *PendingTask {
	if p == nil {
		return nil
	}
	out := *p
	if p.Task != nil {
		t := *p.Task
		out.Task = &t
	}
	if p.Meta.AttackerOldPosition != nil {
		v := *p.Meta.AttackerOldPosition
		out.Meta.AttackerOldPosition = &v
	}
	if p.Meta.Penalty != nil {
		v := *p.Meta.Penalty
		out.Meta.Penalty = &v
	}
	return &out
}

// Move is the append-only log entry for one die roll.
type Move struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	Seq           int         `json:"seq"`
	PlayerID      string      `json:"player_id"`
	Dice          int         `json:"dice_value"`
	OldPosition   int         `json:"old_position"`
	NewPosition   int         `json:"new_position"`
	Trigger       TriggerType `json:"trigger,omitempty"`
	TaskID        string      `json:"task_id,omitempty"`
	TaskText      string      `json:"task_text,omitempty"`
	TaskCompleted *bool       `json:"task_completed,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// MovePatch records the verification outcome on the move that triggered a task.
type MovePatch struct {
	MoveID        string
	TaskCompleted bool
}

// Apply patches m when it is the targeted move.
func (p MovePatch) Apply(m *Move) bool {
	if m.ID != p.MoveID {
		return false
	}
	done := p.TaskCompleted
	m.TaskCompleted = &done
	return true
}

// NewSession creates a playing session at turn 1 with player 1 to move.
func NewSession(id, roomID, player1ID, player2ID string, board Board, startedAt time.Time) (*Session, error) {
	if id == "" {
		return nil, InvalidArgument("session id is required")
	}
	if player1ID == "" || player2ID == "" {
		return nil, InvalidArgument("both players are required")
	}
	if player1ID == player2ID {
		return nil, InvalidArgument("players must be different users")
	}
	if err := board.Validate(); err != nil {
		return nil, InvalidArgument(err.Error())
	}
	return &Session{
		ID:        id,
		RoomID:    roomID,
		Player1ID: player1ID,
		Player2ID: player2ID,
		Turn:      1,
		Board:     board,
		Version:   1,
		StartedAt: startedAt,
		State:     Playing{CurrentPlayerID: player1ID},
	}, nil
}
