package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"taskboard/internal/app"
	"taskboard/internal/bot"
	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/logging"
	"taskboard/internal/ports/sqlstore"
)

// SeedCmd loads fixtures.
type SeedCmd struct {
	File string `arg:"" help:"Seed file" type:"existingfile" default:"data/seed.json"`
}

// Run executes the seed command.
func (s *SeedCmd) Run(cli *CLI) error {
	seed, err := sqlstore.LoadSeed(s.File)
	if err != nil {
		return err
	}
	store, _, err := cli.open(nil)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ApplySeed(context.Background(), seed); err != nil {
		return err
	}
	tasks := 0
	for _, list := range seed.Themes {
		tasks += len(list)
	}
	fmt.Fprintf(cli.stdout(), "Seeded %d rooms and %d tasks in %d themes\n", len(seed.Rooms), tasks, len(seed.Themes))
	return nil
}

// StartCmd starts a game.
type StartCmd struct {
	Room string `arg:"" help:"Room ID"`
	As   string `help:"Player starting the game (defaults to the room's first seat)"`
	JSON bool   `help:"Print the session as JSON"`
}

// Run executes the start command.
func (s *StartCmd) Run(cli *CLI) error {
	store, svc, err := cli.open(nil)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	session, err := startInRoom(ctx, store, svc, s.Room, s.As)
	if err != nil {
		return err
	}
	return printSession(cli.stdout(), session, s.JSON)
}

// startInRoom starts a game with as moving first; an empty as picks the room's
// first seat.
func startInRoom(ctx context.Context, store *sqlstore.Store, svc *app.Service, roomID, as string) (*domain.Session, error) {
	if as == "" {
		seat1, _, err := store.Seats(ctx, roomID)
		if err != nil {
			return nil, err
		}
		as = seat1
	}

	size, cells := config.GetGameConfig().Layout()
	return svc.StartInRoom(ctx, app.RoomStart{
		RoomID:       roomID,
		ActorID:      as,
		BoardSize:    size,
		SpecialCells: cells,
	})
}

// ShowCmd prints a game.
type ShowCmd struct {
	Session string `help:"Session ID" xor:"target"`
	Player  string `help:"Show the active game of this player" xor:"target"`
	JSON    bool   `help:"Print the session as JSON"`
}

// Run executes the show command.
func (s *ShowCmd) Run(cli *CLI) error {
	if s.Session == "" && s.Player == "" {
		return errors.New("one of --session or --player is required")
	}
	store, svc, err := cli.open(nil)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	var session *domain.Session
	if s.Player != "" {
		session, err = svc.GetActiveSession(ctx, s.Player)
		if errors.Is(err, domain.ErrNoActiveSession) {
			fmt.Fprintf(cli.stdout(), "%s has no active game\n", s.Player)
			return nil
		}
	} else {
		session, err = store.GetSession(ctx, s.Session)
	}
	if err != nil {
		return err
	}
	return printSession(cli.stdout(), session, s.JSON)
}

// RollCmd rolls the die.
type RollCmd struct {
	Session string `arg:"" help:"Session ID"`
	As      string `help:"Acting player" required:""`
}

// Run executes the roll command.
func (r *RollCmd) Run(cli *CLI) error {
	store, svc, err := cli.open(nil)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := svc.Roll(context.Background(), r.Session, r.As)
	if err != nil {
		return err
	}
	printEvents(cli.stdout(), res.Events)
	if res.FollowUpErr != nil {
		logging.Logger.Warn("Game ended but archival did not finish", "session_id", r.Session, "error", res.FollowUpErr)
		fmt.Fprintf(cli.stdout(), "warning: archival incomplete, run `taskboard archive %s`\n", r.Session)
	}
	return nil
}

// ConfirmCmd confirms execution of a task.
type ConfirmCmd struct {
	Session string `arg:"" help:"Session ID"`
	As      string `help:"Acting player" required:""`
}

// Run executes the confirm command.
func (c *ConfirmCmd) Run(cli *CLI) error {
	store, svc, err := cli.open(nil)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := svc.ConfirmExecution(context.Background(), c.Session, c.As)
	if err != nil {
		return err
	}
	printEvents(cli.stdout(), res.Events)
	return nil
}

// VerifyCmd records the observer's verdict.
type VerifyCmd struct {
	Session  string `arg:"" help:"Session ID"`
	As       string `help:"Acting player" required:""`
	Rejected bool   `help:"The task was not really done"`
}

// Run executes the verify command.
func (v *VerifyCmd) Run(cli *CLI) error {
	store, svc, err := cli.open(nil)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := svc.Verify(context.Background(), v.Session, v.As, !v.Rejected)
	if err != nil {
		return err
	}
	printEvents(cli.stdout(), res.Events)
	return nil
}

// AutoplayCmd plays a full game.
type AutoplayCmd struct {
	Room       string  `arg:"" help:"Room ID"`
	Seed       int64   `help:"Random seed (0 picks one from the clock)"`
	AcceptRate float64 `help:"Chance that an observer accepts a task" default:"0.7"`
	MaxSteps   int     `help:"Give up after this many actions" default:"5000"`
}

// Run executes the autoplay command.
func (a *AutoplayCmd) Run(cli *CLI) error {
	if a.AcceptRate < 0 || a.AcceptRate > 1 {
		return fmt.Errorf("accept rate must be between 0 and 1, got %v", a.AcceptRate)
	}
	seed := a.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logging.Logger.Debug("Autoplay starting", "room_id", a.Room, "seed", seed)

	store, svc, err := cli.open(rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	session, err := startInRoom(ctx, store, svc, a.Room, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout(), "session %s (seed %d)\n", session.ID, seed)

	table := &bot.Table{
		Engine: svc,
		Agents: []*bot.Agent{
			{ID: session.Player1ID, Strategy: bot.NewSkeptic(a.AcceptRate, seed+1)},
			{ID: session.Player2ID, Strategy: bot.NewSkeptic(a.AcceptRate, seed+2)},
		},
		MaxSteps: a.MaxSteps,
		OnEvents: func(events []app.Event) { printEvents(cli.stdout(), events) },
	}
	_, err = table.Play(ctx, session)
	return err
}

// HistoryCmd lists finished games.
type HistoryCmd struct {
	Player string `arg:"" help:"Player ID"`
	Limit  int    `help:"Maximum records" default:"20"`
	Format string `help:"Output format" enum:"table,json" default:"table"`
}

// Run executes the history command.
func (h *HistoryCmd) Run(cli *CLI) error {
	store, svc, err := cli.open(nil)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := svc.ListHistory(context.Background(), h.Player, h.Limit)
	if err != nil {
		return err
	}
	if h.Format == "json" {
		return writeJSON(cli.stdout(), records)
	}
	printHistory(cli.stdout(), records)
	return nil
}

// ArchiveCmd retries archival.
type ArchiveCmd struct {
	Session string `arg:"" help:"Session ID"`
}

// Run executes the archive command.
func (a *ArchiveCmd) Run(cli *CLI) error {
	store, svc, err := cli.open(nil)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := svc.Archive(context.Background(), a.Session)
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Fprintf(cli.stdout(), "Session %s was already archived; leftovers removed\n", a.Session)
		return nil
	}
	fmt.Fprintf(cli.stdout(), "Archived session %s (winner %s, %d tasks)\n", rec.SessionID, rec.WinnerID, len(rec.TaskResults))
	return nil
}
