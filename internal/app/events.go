package app

import "taskboard/internal/domain"

// EventKind identifies emitted domain events for transport dispatch.
type EventKind string

const (
	EventDiceRolled    EventKind = "dice_rolled"
	EventTaskTriggered EventKind = "task_triggered"
	EventTaskExecuted  EventKind = "task_executed"
	EventTaskVerified  EventKind = "task_verified"
	EventTurnPassed    EventKind = "turn_passed"
	EventGameEnded     EventKind = "game_ended"
)

// Event is a domain/app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	SessionID  string
	Payload    any
	Recipients []string // user IDs; empty means both players
}

type DiceRolledPayload struct {
	PlayerID string `json:"player_id"`
	Dice     int    `json:"dice"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

type TaskTriggeredPayload struct {
	Trigger    domain.TriggerType `json:"trigger"`
	Position   int                `json:"position"`
	ExecutorID string             `json:"executor_id"`
	ObserverID string             `json:"observer_id"`
	Task       *domain.Task       `json:"task,omitempty"`
}

type TaskExecutedPayload struct {
	ExecutorID string `json:"executor_id"`
}

type TaskVerifiedPayload struct {
	Trigger         domain.TriggerType `json:"trigger"`
	ExecutorID      string             `json:"executor_id"`
	ObserverID      string             `json:"observer_id"`
	Confirmed       bool               `json:"confirmed"`
	Penalty         *int               `json:"penalty,omitempty"`
	Player1Position int                `json:"player1_position"`
	Player2Position int                `json:"player2_position"`
}

type TurnPassedPayload struct {
	Turn         int    `json:"turn"`
	NextPlayerID string `json:"next_player_id"`
}

type GameEndedPayload struct {
	WinnerID string `json:"winner_id"`
}

func newEvent(s *domain.Session, kind EventKind, payload any) Event {
	return Event{
		Kind:       kind,
		SessionID:  s.ID,
		Payload:    payload,
		Recipients: []string{s.Player1ID, s.Player2ID},
	}
}
