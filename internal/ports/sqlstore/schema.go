package sqlstore

import (
	"time"

	"taskboard/internal/domain"
)

// sessionRow is one live game. Board and pending task are JSON columns.
type sessionRow struct {
	ID              string              `gorm:"primaryKey"`
	RoomID          string              `gorm:"not null;default:'';index:idx_sessions_room"`
	Player1ID       string              `gorm:"not null;index:idx_sessions_player1"`
	Player2ID       string              `gorm:"not null;index:idx_sessions_player2"`
	Status          string              `gorm:"not null;default:'playing';check:status IN ('playing','completed')"`
	CurrentPlayerID string              `gorm:"not null;default:''"`
	CurrentTurn     int                 `gorm:"not null;default:1"`
	Version         int64               `gorm:"not null"`
	GameState       domain.Board        `gorm:"serializer:json;not null"`
	PendingTask     *domain.PendingTask `gorm:"serializer:json"`
	WinnerID        string              `gorm:"not null;default:''"`
	StartedAt       time.Time           `gorm:"not null;index:idx_sessions_started"`
	EndedAt         *time.Time          `gorm:"default:null"`
}

func (sessionRow) TableName() string { return "game_sessions" }

// moveRow is one die roll in a session's log.
type moveRow struct {
	ID            string `gorm:"primaryKey"`
	SessionID     string `gorm:"not null;uniqueIndex:idx_moves_session_seq"`
	Seq           int    `gorm:"not null;uniqueIndex:idx_moves_session_seq"`
	PlayerID      string `gorm:"not null"`
	DiceValue     int    `gorm:"not null"`
	OldPosition   int    `gorm:"not null"`
	NewPosition   int    `gorm:"not null"`
	Trigger       string `gorm:"column:trigger_type;not null;default:''"`
	TaskID        string `gorm:"not null;default:''"`
	TaskText      string `gorm:"not null;default:''"`
	TaskCompleted *bool  `gorm:"default:null"`
	CreatedAt     time.Time
}

func (moveRow) TableName() string { return "game_moves" }

// historyRow is the archived summary of a finished game, keyed by session so
// a second insert is detectable.
type historyRow struct {
	SessionID   string              `gorm:"primaryKey"`
	RoomID      string              `gorm:"not null;default:''"`
	Player1ID   string              `gorm:"not null;index:idx_history_player1"`
	Player2ID   string              `gorm:"not null;index:idx_history_player2"`
	WinnerID    string              `gorm:"not null;default:''"`
	StartedAt   time.Time           `gorm:"not null"`
	EndedAt     time.Time           `gorm:"not null;index:idx_history_ended"`
	TaskResults []domain.TaskResult `gorm:"serializer:json"`
}

func (historyRow) TableName() string { return "game_history" }

// Room mirrors the lobby's room: two seats and the theme each player picked.
type Room struct {
	ID             string  `gorm:"primaryKey" json:"id"`
	Player1ID      string  `gorm:"not null" json:"player1_id"`
	Player2ID      string  `gorm:"not null" json:"player2_id"`
	Player1ThemeID *string `gorm:"default:null" json:"player1_theme_id,omitempty"`
	Player2ThemeID *string `gorm:"default:null" json:"player2_theme_id,omitempty"`
	Status         string  `gorm:"not null;default:'waiting'" json:"status,omitempty"`
}

func (Room) TableName() string { return "rooms" }

// taskRow is one prompt of a theme.
type taskRow struct {
	ID          string `gorm:"primaryKey"`
	ThemeID     string `gorm:"not null;index:idx_tasks_theme"`
	Description string `gorm:"not null"`
}

func (taskRow) TableName() string { return "tasks" }

func toSessionRow(s *domain.Session) sessionRow {
	row := sessionRow{
		ID:          s.ID,
		RoomID:      s.RoomID,
		Player1ID:   s.Player1ID,
		Player2ID:   s.Player2ID,
		Status:      string(s.Status()),
		CurrentTurn: s.Turn,
		Version:     s.Version,
		GameState:   s.Board,
		StartedAt:   s.StartedAt,
	}
	switch st := s.State.(type) {
	case domain.Playing:
		row.CurrentPlayerID = st.CurrentPlayerID
		row.PendingTask = st.Pending
	case domain.Completed:
		row.WinnerID = st.WinnerID
		ended := st.EndedAt
		row.EndedAt = &ended
	}
	return row
}

func (r sessionRow) toDomain() *domain.Session {
	s := &domain.Session{
		ID:        r.ID,
		RoomID:    r.RoomID,
		Player1ID: r.Player1ID,
		Player2ID: r.Player2ID,
		Turn:      r.CurrentTurn,
		Version:   r.Version,
		Board:     r.GameState,
		StartedAt: r.StartedAt,
	}
	if domain.Status(r.Status) == domain.StatusCompleted {
		c := domain.Completed{WinnerID: r.WinnerID}
		if r.EndedAt != nil {
			c.EndedAt = *r.EndedAt
		}
		s.State = c
	} else {
		s.State = domain.Playing{CurrentPlayerID: r.CurrentPlayerID, Pending: r.PendingTask}
	}
	return s
}

func toMoveRow(m domain.Move) moveRow {
	return moveRow{
		ID:            m.ID,
		SessionID:     m.SessionID,
		Seq:           m.Seq,
		PlayerID:      m.PlayerID,
		DiceValue:     m.Dice,
		OldPosition:   m.OldPosition,
		NewPosition:   m.NewPosition,
		Trigger:       string(m.Trigger),
		TaskID:        m.TaskID,
		TaskText:      m.TaskText,
		TaskCompleted: m.TaskCompleted,
		CreatedAt:     m.CreatedAt,
	}
}

func (r moveRow) toDomain() domain.Move {
	return domain.Move{
		ID:            r.ID,
		SessionID:     r.SessionID,
		Seq:           r.Seq,
		PlayerID:      r.PlayerID,
		Dice:          r.DiceValue,
		OldPosition:   r.OldPosition,
		NewPosition:   r.NewPosition,
		Trigger:       domain.TriggerType(r.Trigger),
		TaskID:        r.TaskID,
		TaskText:      r.TaskText,
		TaskCompleted: r.TaskCompleted,
		CreatedAt:     r.CreatedAt,
	}
}

func toHistoryRow(rec *domain.HistoryRecord) historyRow {
	return historyRow{
		SessionID:   rec.SessionID,
		RoomID:      rec.RoomID,
		Player1ID:   rec.Player1ID,
		Player2ID:   rec.Player2ID,
		WinnerID:    rec.WinnerID,
		StartedAt:   rec.StartedAt,
		EndedAt:     rec.EndedAt,
		TaskResults: rec.TaskResults,
	}
}

func (r historyRow) toDomain() domain.HistoryRecord {
	results := r.TaskResults
	if results == nil {
		results = make([]domain.TaskResult, 0)
	}
	return domain.HistoryRecord{
		RoomID:      r.RoomID,
		SessionID:   r.SessionID,
		Player1ID:   r.Player1ID,
		Player2ID:   r.Player2ID,
		WinnerID:    r.WinnerID,
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
		TaskResults: results,
	}
}
