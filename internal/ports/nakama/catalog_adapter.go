package nakama

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskboard/internal/domain"
	"taskboard/internal/ports"
)

// SQLCatalog reads tasks and rooms from the tables the theme and lobby
// services keep in Nakama's database.
type SQLCatalog struct {
	db *sql.DB
}

// NewSQLCatalog creates a new catalog adapter.
func NewSQLCatalog(db *sql.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

func (c *SQLCatalog) DrawCandidateTasks(ctx context.Context, themeID string, limit int) ([]domain.Task, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, description FROM tasks WHERE theme_id = $1 LIMIT $2`, themeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks of theme %s: %w", themeID, err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return tasks, nil
}

func (c *SQLCatalog) ThemeFor(ctx context.Context, roomID, playerID string) (string, error) {
	var player1ID, player2ID string
	var theme1, theme2 sql.NullString
	err := c.db.QueryRowContext(ctx,
		`SELECT player1_id, player2_id, player1_theme_id, player2_theme_id FROM rooms WHERE id = $1`, roomID,
	).Scan(&player1ID, &player2ID, &theme1, &theme2)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load room %s: %w", roomID, err)
	}

	switch playerID {
	case player1ID:
		return theme1.String, nil
	case player2ID:
		return theme2.String, nil
	default:
		return "", nil
	}
}

func (c *SQLCatalog) Seats(ctx context.Context, roomID string) (string, string, error) {
	var player1ID, player2ID sql.NullString
	err := c.db.QueryRowContext(ctx, `SELECT player1_id, player2_id FROM rooms WHERE id = $1`, roomID).Scan(&player1ID, &player2ID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", domain.ErrRoomNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to load room %s: %w", roomID, err)
	}
	return player1ID.String, player2ID.String, nil
}

func (c *SQLCatalog) MarkCompleted(ctx context.Context, roomID string) error {
	if _, err := c.db.ExecContext(ctx, `UPDATE rooms SET status = 'completed' WHERE id = $1`, roomID); err != nil {
		return fmt.Errorf("failed to complete room %s: %w", roomID, err)
	}
	return nil
}

var (
	_ ports.TaskSource    = (*SQLCatalog)(nil)
	_ ports.RoomDirectory = (*SQLCatalog)(nil)
)
