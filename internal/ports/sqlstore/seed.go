package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"taskboard/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seed is the fixture format of `taskboard seed`: rooms plus tasks grouped by theme.
type Seed struct {
	Rooms  []Room                   `json:"rooms"`
	Themes map[string][]domain.Task `json:"themes"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seed: %w", err)
	}
	return &seed, nil
}

// ApplySeed upserts rooms and tasks in one transaction.
func (s *Store) ApplySeed(ctx context.Context, seed *Seed) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for i := range seed.Rooms {
				room := seed.Rooms[i]
				if room.ID == "" || room.Player1ID == "" || room.Player2ID == "" {
					return fmt.Errorf("room %d needs an id and two players", i)
				}
				if room.Status == "" {
					room.Status = "waiting"
				}
				if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&room).Error; err != nil {
					return fmt.Errorf("failed to seed room %s: %w", room.ID, err)
				}
			}
			for themeID, tasks := range seed.Themes {
				for _, t := range tasks {
					row := taskRow{ID: t.ID, ThemeID: themeID, Description: t.Description}
					if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
						return fmt.Errorf("failed to seed task %s: %w", t.ID, err)
					}
				}
			}
			return nil
		})
	}, 3)
}

// GetRoom loads a room by id.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	var room Room
	err := s.db.WithContext(ctx).Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
	}
	return &room, nil
}
