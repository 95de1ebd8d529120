package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"taskboard/internal/app"
	"taskboard/internal/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type sessionView struct {
	ID              string              `json:"id"`
	RoomID          string              `json:"room_id"`
	Player1ID       string              `json:"player1_id"`
	Player2ID       string              `json:"player2_id"`
	Status          domain.Status       `json:"status"`
	Turn            int                 `json:"current_turn"`
	Version         int64               `json:"version"`
	Board           domain.Board        `json:"game_state"`
	CurrentPlayerID string              `json:"current_player_id,omitempty"`
	Pending         *domain.PendingTask `json:"pending_task,omitempty"`
	WinnerID        string              `json:"winner_id,omitempty"`
}

func printSession(w io.Writer, s *domain.Session, asJSON bool) error {
	if asJSON {
		view := sessionView{
			ID: s.ID, RoomID: s.RoomID, Player1ID: s.Player1ID, Player2ID: s.Player2ID,
			Status: s.Status(), Turn: s.Turn, Version: s.Version, Board: s.Board,
			CurrentPlayerID: s.CurrentPlayerID(), Pending: s.Pending(),
		}
		if c, ok := s.State.(domain.Completed); ok {
			view.WinnerID = c.WinnerID
		}
		return writeJSON(w, view)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SESSION\t%s\n", s.ID)
	fmt.Fprintf(tw, "ROOM\t%s\n", s.RoomID)
	fmt.Fprintf(tw, "STATUS\t%s\n", s.Status())
	fmt.Fprintf(tw, "TURN\t%d\n", s.Turn)
	fmt.Fprintf(tw, "%s\tcell %d of %d\n", s.Player1ID, s.Board.Player1Position, s.Board.FinalCell())
	fmt.Fprintf(tw, "%s\tcell %d of %d\n", s.Player2ID, s.Board.Player2Position, s.Board.FinalCell())
	switch st := s.State.(type) {
	case domain.Playing:
		fmt.Fprintf(tw, "CURRENT\t%s\n", st.CurrentPlayerID)
		if pt := st.Pending; pt != nil {
			fmt.Fprintf(tw, "PENDING\t%s at cell %d, %s performs, %s judges (%s)\n", pt.Trigger, pt.Position, pt.ExecutorID, pt.ObserverID, pt.Status)
			if pt.Task != nil {
				fmt.Fprintf(tw, "TASK\t%s\n", pt.Task.Description)
			}
		}
	case domain.Completed:
		fmt.Fprintf(tw, "WINNER\t%s\n", st.WinnerID)
		fmt.Fprintf(tw, "ENDED\t%s\n", st.EndedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(tw, "SPECIAL\t%s\n", describeCells(s.Board.SpecialCells))
	return tw.Flush()
}

func describeCells(cells map[int]domain.CellKind) string {
	if len(cells) == 0 {
		return "none"
	}
	positions := make([]int, 0, len(cells))
	for pos := range cells {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	parts := make([]string, 0, len(positions))
	for _, pos := range positions {
		parts = append(parts, fmt.Sprintf("%d:%s", pos, cells[pos]))
	}
	return strings.Join(parts, " ")
}

func printEvents(w io.Writer, events []app.Event) {
	for _, ev := range events {
		fmt.Fprintln(w, describeEvent(ev))
	}
}

func describeEvent(ev app.Event) string {
	switch p := ev.Payload.(type) {
	case app.DiceRolledPayload:
		return fmt.Sprintf("%s rolled %d: %d -> %d", p.PlayerID, p.Dice, p.From, p.To)
	case app.TaskTriggeredPayload:
		task := "no task available"
		if p.Task != nil {
			task = p.Task.Description
		}
		return fmt.Sprintf("%s at cell %d: %s must %q, %s judges", p.Trigger, p.Position, p.ExecutorID, task, p.ObserverID)
	case app.TaskExecutedPayload:
		return fmt.Sprintf("%s says the task is done", p.ExecutorID)
	case app.TaskVerifiedPayload:
		verdict := "accepted"
		if !p.Confirmed {
			verdict = "rejected"
		}
		line := fmt.Sprintf("%s %s the %s task of %s; positions %d/%d", p.ObserverID, verdict, p.Trigger, p.ExecutorID, p.Player1Position, p.Player2Position)
		if p.Penalty != nil {
			line += fmt.Sprintf(" (penalty %d)", *p.Penalty)
		}
		return line
	case app.TurnPassedPayload:
		return fmt.Sprintf("turn %d: %s to roll", p.Turn, p.NextPlayerID)
	case app.GameEndedPayload:
		return fmt.Sprintf("game over, %s wins", p.WinnerID)
	default:
		return string(ev.Kind)
	}
}

func printHistory(w io.Writer, records []domain.HistoryRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tPLAYERS\tWINNER\tTASKS\tDONE\tENDED")
	for _, rec := range records {
		done := 0
		for _, r := range rec.TaskResults {
			if r.Completed {
				done++
			}
		}
		fmt.Fprintf(tw, "%s\t%s vs %s\t%s\t%d\t%d\t%s\n",
			rec.SessionID, rec.Player1ID, rec.Player2ID, rec.WinnerID,
			len(rec.TaskResults), done, rec.EndedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
