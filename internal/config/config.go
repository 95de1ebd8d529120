package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"taskboard/internal/domain"
)

// GameConfig is the board layout new sessions are created with.
type GameConfig struct {
	BoardSize int   `json:"board_size"`
	StarCells []int `json:"star_cells"`
	TrapCells []int `json:"trap_cells"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		c, err := ReadGameConfig(path)
		if err != nil {
			loadErr = err
			return
		}
		cfg = c
	})
	return loadErr
}

// ReadGameConfig parses and validates a config file without touching the global.
func ReadGameConfig(path string) (*GameConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game config: %w", err)
	}

	var c GameConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	size, cells := c.Layout()
	if err := domain.NewBoard(size, cells).Validate(); err != nil {
		return nil, fmt.Errorf("invalid board layout in %s: %w", path, err)
	}
	return &c, nil
}

// GetGameConfig returns the global game configuration, or nil before a successful load.
func GetGameConfig() *GameConfig {
	return cfg
}

// Layout returns the board size and special cells. A nil config or empty
// cell lists fall back to the default layout.
func (c *GameConfig) Layout() (int, map[int]domain.CellKind) {
	if c == nil {
		return domain.DefaultBoardSize, domain.DefaultSpecialCells()
	}
	size := c.BoardSize
	if size <= 0 {
		size = domain.DefaultBoardSize
	}
	if len(c.StarCells) == 0 && len(c.TrapCells) == 0 {
		return size, domain.DefaultSpecialCells()
	}
	cells := make(map[int]domain.CellKind, len(c.StarCells)+len(c.TrapCells))
	for _, idx := range c.StarCells {
		cells[idx] = domain.CellStar
	}
	// Traps win when a cell is listed twice.
	for _, idx := range c.TrapCells {
		cells[idx] = domain.CellTrap
	}
	return size, cells
}
