package domain

import "time"

// TaskResult is one judged task in a finished game.
type TaskResult struct {
	ExecutorID string    `json:"executor_id"`
	ObserverID string    `json:"observer_id"`
	TaskText   string    `json:"task_text"`
	Completed  bool      `json:"completed"`
	Timestamp  time.Time `json:"timestamp"`
}

// HistoryRecord is the immutable summary of a finished game.
type HistoryRecord struct {
	RoomID      string       `json:"room_id"`
	SessionID   string       `json:"session_id"`
	Player1ID   string       `json:"player1_id"`
	Player2ID   string       `json:"player2_id"`
	WinnerID    string       `json:"winner_id,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     time.Time    `json:"ended_at"`
	TaskResults []TaskResult `json:"task_results"`
}

// WinnerOf returns the player whose token sits on the final cell, or "" if none does.
func WinnerOf(s *Session) string {
	switch s.Board.FinalCell() {
	case s.Board.Player1Position:
		return s.Player1ID
	case s.Board.Player2Position:
		return s.Player2ID
	}
	return ""
}

// BuildHistory summarises a completed session and its ordered move log.
// now is used when the session carries no end time.
func BuildHistory(s *Session, moves []Move, now time.Time) HistoryRecord {
	rec := HistoryRecord{
		RoomID:      s.RoomID,
		SessionID:   s.ID,
		Player1ID:   s.Player1ID,
		Player2ID:   s.Player2ID,
		WinnerID:    WinnerOf(s),
		StartedAt:   s.StartedAt,
		EndedAt:     now,
		TaskResults: make([]TaskResult, 0),
	}
	if c, ok := s.State.(Completed); ok && !c.EndedAt.IsZero() {
		rec.EndedAt = c.EndedAt
	}

	for _, m := range moves {
		if m.TaskID == "" {
			continue
		}
		roles, err := AssignRoles(moveTrigger(s, m), m.PlayerID, s.Opponent(m.PlayerID))
		if err != nil {
			continue
		}
		rec.TaskResults = append(rec.TaskResults, TaskResult{
			ExecutorID: roles.ExecutorID,
			ObserverID: roles.ObserverID,
			TaskText:   m.TaskText,
			Completed:  m.TaskCompleted != nil && *m.TaskCompleted,
			Timestamp:  m.CreatedAt,
		})
	}
	return rec
}

// moveTrigger prefers the trigger persisted on the move. Moves written before
// triggers were recorded fall back to the cell marking at the landing index.
func moveTrigger(s *Session, m Move) TriggerType {
	if m.Trigger != "" {
		return m.Trigger
	}
	if kind, ok := s.Board.CellAt(m.NewPosition); ok && kind == CellTrap {
		return TriggerTrap
	}
	return TriggerStar
}
