package nakama

import (
	"time"

	"taskboard/internal/domain"
)

// sessionDoc is the stored and client-facing JSON shape of a session.
type sessionDoc struct {
	ID              string              `json:"id"`
	RoomID          string              `json:"room_id"`
	Player1ID       string              `json:"player1_id"`
	Player2ID       string              `json:"player2_id"`
	Status          domain.Status       `json:"status"`
	CurrentPlayerID string              `json:"current_player_id,omitempty"`
	Turn            int                 `json:"current_turn"`
	Version         int64               `json:"version"`
	Board           domain.Board        `json:"game_state"`
	Pending         *domain.PendingTask `json:"pending_task,omitempty"`
	WinnerID        string              `json:"winner_id,omitempty"`
	StartedAt       time.Time           `json:"started_at"`
	EndedAt         *time.Time          `json:"ended_at,omitempty"`
}

func toSessionDoc(s *domain.Session) sessionDoc {
	doc := sessionDoc{
		ID:        s.ID,
		RoomID:    s.RoomID,
		Player1ID: s.Player1ID,
		Player2ID: s.Player2ID,
		Status:    s.Status(),
		Turn:      s.Turn,
		Version:   s.Version,
		Board:     s.Board,
		StartedAt: s.StartedAt,
	}
	switch st := s.State.(type) {
	case domain.Playing:
		doc.CurrentPlayerID = st.CurrentPlayerID
		doc.Pending = st.Pending
	case domain.Completed:
		doc.WinnerID = st.WinnerID
		ended := st.EndedAt
		doc.EndedAt = &ended
	}
	return doc
}

func (d sessionDoc) toDomain() *domain.Session {
	s := &domain.Session{
		ID:        d.ID,
		RoomID:    d.RoomID,
		Player1ID: d.Player1ID,
		Player2ID: d.Player2ID,
		Turn:      d.Turn,
		Version:   d.Version,
		Board:     d.Board,
		StartedAt: d.StartedAt,
	}
	if d.Status == domain.StatusCompleted {
		c := domain.Completed{WinnerID: d.WinnerID}
		if d.EndedAt != nil {
			c.EndedAt = *d.EndedAt
		}
		s.State = c
	} else {
		s.State = domain.Playing{CurrentPlayerID: d.CurrentPlayerID, Pending: d.Pending}
	}
	return s
}
