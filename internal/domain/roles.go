package domain

import "fmt"

// Roles assigns who performs and who judges a triggered task, and whose theme supplies it.
type Roles struct {
	ExecutorID   string
	ObserverID   string
	ThemeOwnerID string
}

// AssignRoles applies the role table for a trigger caused by moverID against otherID.
//
//	collision: executor=other, observer=mover, theme=mover's
//	star:      executor=other, observer=mover, theme=mover's
//	trap:      executor=mover, observer=other, theme=other's
func AssignRoles(trigger TriggerType, moverID, otherID string) (Roles, error) {
	if moverID == "" || otherID == "" || moverID == otherID {
		return Roles{}, fmt.Errorf("roles need two distinct players, got %q and %q", moverID, otherID)
	}
	switch trigger {
	case TriggerCollision, TriggerStar:
		return Roles{ExecutorID: otherID, ObserverID: moverID, ThemeOwnerID: moverID}, nil
	case TriggerTrap:
		return Roles{ExecutorID: moverID, ObserverID: otherID, ThemeOwnerID: otherID}, nil
	default:
		return Roles{}, fmt.Errorf("unknown trigger type %q", trigger)
	}
}

// DetectTrigger decides whether landing on newPos fires a task. A collision
// with the opponent takes precedence over the cell's own marking.
func DetectTrigger(b Board, mover Seat, newPos int) (TriggerType, bool) {
	if newPos == b.PositionOf(mover.Other()) {
		return TriggerCollision, true
	}
	switch kind, _ := b.CellAt(newPos); kind {
	case CellStar:
		return TriggerStar, true
	case CellTrap:
		return TriggerTrap, true
	}
	return "", false
}
