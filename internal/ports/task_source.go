package ports

import (
	"context"

	"taskboard/internal/domain"
)

// TaskSource is the read-only view of theme tasks owned by the theme catalog.
type TaskSource interface {
	// DrawCandidateTasks returns at most limit tasks of the theme. An unknown or
	// empty theme yields an empty slice.
	DrawCandidateTasks(ctx context.Context, themeID string, limit int) ([]domain.Task, error)
}
