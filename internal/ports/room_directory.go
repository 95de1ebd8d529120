package ports

import "context"

// RoomDirectory exposes the parts of a room the turn engine needs.
type RoomDirectory interface {
	// Seats returns the two members of the room in seat order.
	Seats(ctx context.Context, roomID string) (player1ID, player2ID string, err error)

	// ThemeFor returns the theme the player picked for the room, or "" when none was picked.
	ThemeFor(ctx context.Context, roomID, playerID string) (string, error)

	// MarkCompleted flags the room as finished so nobody joins it again.
	MarkCompleted(ctx context.Context, roomID string) error
}
