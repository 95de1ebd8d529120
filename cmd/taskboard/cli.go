package main

import (
	"fmt"
	"io"
	"os"

	"taskboard/internal/app"
	"taskboard/internal/config"
	"taskboard/internal/logging"
	"taskboard/internal/ports/sqlstore"
)

// CLI represents the command-line interface structure.
type CLI struct {
	Debug         bool   `help:"Enable debug logging" short:"d" default:"${debug}"`
	DebugFile     string `help:"Write debug logs to this file instead of stderr" type:"path"`
	DBPath        string `help:"Path to SQLite database" type:"path" default:"${db_path}"`
	GameConfig    string `help:"Board layout file" type:"path" default:"${game_config}"`
	TaskDrawLimit int    `help:"Candidate tasks fetched per trigger" default:"${task_draw_limit}"`

	Seed     SeedCmd     `cmd:"" help:"Load rooms and themed tasks from a JSON file"`
	Start    StartCmd    `cmd:"" help:"Start a game in a room"`
	Show     ShowCmd     `cmd:"" help:"Show a game, or the active game of a player"`
	Roll     RollCmd     `cmd:"" help:"Roll the die for the current player"`
	Confirm  ConfirmCmd  `cmd:"" help:"Confirm, as executor, that the pending task was performed"`
	Verify   VerifyCmd   `cmd:"" help:"Judge, as observer, whether the task was really done"`
	Autoplay AutoplayCmd `cmd:"" help:"Play a whole game with random verdicts"`
	History  HistoryCmd  `cmd:"" help:"List finished games of a player"`
	Archive  ArchiveCmd  `cmd:"" help:"Retry archival of a completed game"`

	out io.Writer `kong:"-"`
}

// AfterApply initializes logging and the board layout after CLI parsing.
func (c *CLI) AfterApply() error {
	if err := logging.Initialize(c.Debug, c.DebugFile); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := config.LoadGameConfig(c.GameConfig); err != nil {
		logging.Logger.Warn("Using default board layout", "error", err)
	}
	return nil
}

func (c *CLI) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

// open returns the store and an engine bound to it. rng may be nil.
func (c *CLI) open(rng app.Randomizer) (*sqlstore.Store, *app.Service, error) {
	store, err := sqlstore.Open(c.DBPath, sqlstore.Options{Debug: c.Debug})
	if err != nil {
		return nil, nil, err
	}
	svc := app.NewService(store, store, store, rng, app.Options{TaskDrawLimit: c.TaskDrawLimit})
	return store, svc, nil
}
