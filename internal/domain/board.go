package domain

import "fmt"

// DefaultBoardSize is the number of cells used when a session is created without an explicit layout.
const DefaultBoardSize = 49

// CellKind marks a special board cell.
type CellKind string

const (
	// CellStar hands the opponent a task drawn from the mover's theme.
	CellStar CellKind = "star"
	// CellTrap makes the mover perform a task drawn from the opponent's theme.
	CellTrap CellKind = "trap"
)

// Persisted layout defaults; clients render the same indices.
var (
	defaultStarCells = []int{2, 6, 10, 14, 18, 22, 26, 30, 34, 38, 42, 46}
	defaultTrapCells = []int{4, 8, 12, 16, 20, 24, 28, 32, 36, 40, 44, 47}
)

// DefaultSpecialCells returns a fresh copy of the default star and trap layout.
func DefaultSpecialCells() map[int]CellKind {
	cells := make(map[int]CellKind, len(defaultStarCells)+len(defaultTrapCells))
	for _, idx := range defaultStarCells {
		cells[idx] = CellStar
	}
	for _, idx := range defaultTrapCells {
		cells[idx] = CellTrap
	}
	return cells
}

// Seat identifies one of the two players of a session.
type Seat int

const (
	SeatNone Seat = iota
	SeatPlayer1
	SeatPlayer2
)

// Other returns the opposing seat.
func (s Seat) Other() Seat {
	switch s {
	case SeatPlayer1:
		return SeatPlayer2
	case SeatPlayer2:
		return SeatPlayer1
	default:
		return SeatNone
	}
}

// Board holds token positions and the fixed special-cell layout of a session.
type Board struct {
	Size            int              `json:"board_size"`
	Player1Position int              `json:"player1_position"`
	Player2Position int              `json:"player2_position"`
	SpecialCells    map[int]CellKind `json:"special_cells"`
}

// NewBoard builds a board with both tokens at the start cell.
// A zero size or nil layout falls back to the persisted defaults.
func NewBoard(size int, cells map[int]CellKind) Board {
	if size <= 0 {
		size = DefaultBoardSize
	}
	if cells == nil {
		cells = DefaultSpecialCells()
	} else {
		cells = copyCells(cells)
	}
	return Board{Size: size, SpecialCells: cells}
}

// FinalCell is the winning index.
func (b Board) FinalCell() int {
	return b.Size - 1
}

// Advance moves a token forward without overshooting the final cell.
func (b Board) Advance(from, steps int) int {
	return ClampPosition(from+steps, b.Size)
}

// PositionOf returns the token position for the seat.
func (b Board) PositionOf(seat Seat) int {
	if seat == SeatPlayer2 {
		return b.Player2Position
	}
	return b.Player1Position
}

// WithPosition returns a copy of the board with the seat's token moved to pos.
func (b Board) WithPosition(seat Seat, pos int) Board {
	next := b.Clone()
	pos = ClampPosition(pos, b.Size)
	if seat == SeatPlayer2 {
		next.Player2Position = pos
	} else {
		next.Player1Position = pos
	}
	return next
}

// CellAt reports the special kind of the cell, if any.
func (b Board) CellAt(pos int) (CellKind, bool) {
	kind, ok := b.SpecialCells[pos]
	if !ok || (kind != CellStar && kind != CellTrap) {
		return "", false
	}
	return kind, true
}

// Clone deep-copies the board.
func (b Board) Clone() Board {
	b.SpecialCells = copyCells(b.SpecialCells)
	return b
}

// Validate checks the layout and both positions against the board size.
func (b Board) Validate() error {
	if b.Size < 2 {
		return fmt.Errorf("board size %d is too small", b.Size)
	}
	for _, pos := range []int{b.Player1Position, b.Player2Position} {
		if pos < 0 || pos > b.FinalCell() {
			return fmt.Errorf("position %d outside board of size %d", pos, b.Size)
		}
	}
	for idx, kind := range b.SpecialCells {
		if idx <= 0 || idx >= b.FinalCell() {
			return fmt.Errorf("special cell %d must be between start and end", idx)
		}
		if kind != CellStar && kind != CellTrap {
			return fmt.Errorf("special cell %d has unknown kind %q", idx, kind)
		}
	}
	return nil
}

// ClampPosition keeps pos within [0, size-1].
func ClampPosition(pos, size int) int {
	if pos < 0 {
		return 0
	}
	if pos > size-1 {
		return size - 1
	}
	return pos
}

func copyCells(cells map[int]CellKind) map[int]CellKind {
	if cells == nil {
		return nil
	}
	out := make(map[int]CellKind, len(cells))
	for k, v := range cells {
		out[k] = v
	}
	return out
}
