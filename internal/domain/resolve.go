package domain

// MaxPenalty is the largest step-back applied when a star or trap task is judged as not done.
const MaxPenalty = 3

// ResolveVerification returns the board after the observer's verdict on pt.
// penalty is only consulted for star and trap tasks judged as not done, and is
// recorded on pt.Meta.Penalty in that case.
func ResolveVerification(s *Session, pt *PendingTask, confirmed bool, penalty int) Board {
	board := s.Board.Clone()
	switch pt.Trigger {
	case TriggerCollision:
		if confirmed {
			old := 0
			if pt.Meta.AttackerOldPosition != nil {
				old = *pt.Meta.AttackerOldPosition
			}
			return board.WithPosition(s.SeatOf(pt.ObserverID), old)
		}
		return board.WithPosition(s.SeatOf(pt.ExecutorID), 0)
	default:
		if confirmed {
			return board
		}
		if penalty < 0 {
			penalty = 0
		}
		pt.Meta.Penalty = &penalty
		seat := s.SeatOf(pt.ExecutorID)
		return board.WithPosition(seat, board.PositionOf(seat)-penalty)
	}
}
