package app

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/ports"

	"github.com/google/uuid"
)

const (
	// DefaultTaskDrawLimit bounds how many candidate tasks are fetched per trigger.
	DefaultTaskDrawLimit = 50

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Randomizer supplies uniform integers in [0, n). *rand.Rand satisfies it.
type Randomizer interface {
	Intn(n int) int
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	TaskDrawLimit int
	Now           func() time.Time
	NewID         func() string
}

// Service is the session turn engine. It keeps no state between calls: every
// operation re-reads the session, validates, and commits conditionally.
type Service struct {
	sessions      ports.SessionStore
	tasks         ports.TaskSource
	rooms         ports.RoomDirectory
	rng           Randomizer
	archiver      *Archiver
	now           func() time.Time
	newID         func() string
	taskDrawLimit int
}

// NewService constructs a Service. rng may be nil to use a time-seeded default;
// tasks and rooms may be nil, in which case triggers carry no task.
func NewService(sessions ports.SessionStore, tasks ports.TaskSource, rooms ports.RoomDirectory, rng Randomizer, opts Options) *Service {
	if rng == nil {
		rng = &lockedRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.TaskDrawLimit <= 0 {
		opts.TaskDrawLimit = DefaultTaskDrawLimit
	}
	return &Service{
		sessions:      sessions,
		tasks:         tasks,
		rooms:         rooms,
		rng:           rng,
		archiver:      NewArchiver(sessions, opts.Now),
		now:           opts.Now,
		newID:         opts.NewID,
		taskDrawLimit: opts.TaskDrawLimit,
	}
}

// RollResult describes a committed roll.
type RollResult struct {
	Dice    int
	Move    domain.Move
	Session *domain.Session
	Events  []Event
	// History is set when the roll won the game and archival got as far as inserting the record.
	History *domain.HistoryRecord
	// FollowUpErr reports room or archival failures after a winning roll was committed.
	FollowUpErr error
}

// TransitionResult describes a committed confirm or verify.
type TransitionResult struct {
	Session *domain.Session
	Events  []Event
}

// NewSession describes a game to start.
type NewSession struct {
	RoomID       string
	Player1ID    string
	Player2ID    string
	BoardSize    int
	SpecialCells map[int]domain.CellKind
}

// StartSession creates a playing session with both tokens on the start cell.
func (s *Service) StartSession(ctx context.Context, req NewSession) (*domain.Session, error) {
	board := domain.NewBoard(req.BoardSize, req.SpecialCells)
	session, err := domain.NewSession(s.newID(), req.RoomID, req.Player1ID, req.Player2ID, board, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, storeErr("could not create game", err)
	}
	return session, nil
}

// RoomStart asks to start a game in a lobby room on behalf of one of its members.
type RoomStart struct {
	RoomID  string
	ActorID string
	// OpponentID is optional; when set it must be the other member of the room.
	OpponentID   string
	BoardSize    int
	SpecialCells map[int]domain.CellKind
}

// StartInRoom seats the room's two members with the actor as player 1 and
// starts their game. The store refuses players who are still in a game.
func (s *Service) StartInRoom(ctx context.Context, req RoomStart) (*domain.Session, error) {
	if req.RoomID == "" || req.ActorID == "" {
		return nil, domain.InvalidArgument("room id and player id are required")
	}
	if s.rooms == nil {
		return nil, domain.ErrRoomNotFound
	}
	seat1, seat2, err := s.rooms.Seats(ctx, req.RoomID)
	if err != nil {
		return nil, storeErr("could not load room", err)
	}

	var opponentID string
	switch req.ActorID {
	case seat1:
		opponentID = seat2
	case seat2:
		opponentID = seat1
	default:
		return nil, domain.ErrNotRoomMember
	}
	if req.OpponentID != "" && req.OpponentID != opponentID {
		return nil, &domain.Error{Kind: domain.KindIllegalActor, Reason: "opponent is not a member of this room"}
	}

	return s.StartSession(ctx, NewSession{
		RoomID:       req.RoomID,
		Player1ID:    req.ActorID,
		Player2ID:    opponentID,
		BoardSize:    req.BoardSize,
		SpecialCells: req.SpecialCells,
	})
}

// GetActiveSession resolves the single in-progress session of a player.
func (s *Service) GetActiveSession(ctx context.Context, actorID string) (*domain.Session, error) {
	if actorID == "" {
		return nil, domain.InvalidArgument("player id is required")
	}
	session, err := s.sessions.FindActiveSession(ctx, actorID)
	if err != nil {
		return nil, storeErr("could not load game", err)
	}
	return session, nil
}

// ListHistory returns finished games of a player, newest first.
func (s *Service) ListHistory(ctx context.Context, playerID string, limit int) ([]domain.HistoryRecord, error) {
	if playerID == "" {
		return nil, domain.InvalidArgument("player id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	records, err := s.sessions.ListHistory(ctx, playerID, limit)
	if err != nil {
		return nil, storeErr("could not load history", err)
	}
	return records, nil
}

// Roll throws the die for actorID and applies the landing rules.
func (s *Service) Roll(ctx context.Context, sessionID, actorID string) (*RollResult, error) {
	session, playing, err := s.loadPlaying(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if playing.CurrentPlayerID != actorID {
		return nil, domain.ErrNotYourTurn
	}
	if playing.Pending != nil {
		return nil, domain.ErrTaskPending
	}

	now := s.now()
	seat := session.SeatOf(actorID)
	opponentID := session.PlayerAt(seat.Other())
	dice := s.rng.Intn(6) + 1
	oldPos := session.Board.PositionOf(seat)
	newPos := session.Board.Advance(oldPos, dice)

	move := domain.Move{
		ID:          s.newID(),
		SessionID:   session.ID,
		PlayerID:    actorID,
		Dice:        dice,
		OldPosition: oldPos,
		NewPosition: newPos,
		CreatedAt:   now,
	}

	next := session.Clone()
	next.Board = next.Board.WithPosition(seat, newPos)
	next.Version++

	events := []Event{newEvent(session, EventDiceRolled, DiceRolledPayload{
		PlayerID: actorID,
		Dice:     dice,
		From:     oldPos,
		To:       newPos,
	})}

	trigger, fired := domain.DetectTrigger(session.Board, seat, newPos)
	switch {
	case newPos == session.Board.FinalCell():
		// A winning move never triggers a task.
		next.State = domain.Completed{WinnerID: actorID, EndedAt: now}
		events = append(events, newEvent(session, EventGameEnded, GameEndedPayload{WinnerID: actorID}))
	case !fired:
		next.Turn++
		next.State = domain.Playing{CurrentPlayerID: opponentID}
		events = append(events, newEvent(session, EventTurnPassed, TurnPassedPayload{Turn: next.Turn, NextPlayerID: opponentID}))
	default:
		pending, err := s.openTask(ctx, session, trigger, &move, opponentID)
		if err != nil {
			return nil, err
		}
		next.State = domain.Playing{CurrentPlayerID: actorID, Pending: pending}
		events = append(events, newEvent(session, EventTaskTriggered, TaskTriggeredPayload{
			Trigger:    pending.Trigger,
			Position:   pending.Position,
			ExecutorID: pending.ExecutorID,
			ObserverID: pending.ObserverID,
			Task:       pending.Task,
		}))
	}

	if err := s.sessions.Commit(ctx, ports.Commit{Session: next, Expect: session.Guard(), AppendMove: &move}); err != nil {
		return nil, storeErr("could not save roll", err)
	}

	result := &RollResult{Dice: dice, Move: move, Session: next, Events: events}
	if next.Status() == domain.StatusCompleted {
		result.History, result.FollowUpErr = s.finish(ctx, next)
	}
	return result, nil
}

// ConfirmExecution lets the executor declare the pending task performed.
func (s *Service) ConfirmExecution(ctx context.Context, sessionID, actorID string) (*TransitionResult, error) {
	session, playing, err := s.loadPlaying(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	pt := playing.Pending
	if pt == nil {
		return nil, domain.ErrNoPendingTask
	}
	if actorID != pt.ExecutorID {
		return nil, domain.ErrNotExecutor
	}
	if pt.Status != domain.TaskStatusPending {
		return nil, domain.ErrTaskConfirmed
	}

	next := session.Clone()
	next.Pending().Status = domain.TaskStatusExecuted
	next.Version++

	if err := s.sessions.Commit(ctx, ports.Commit{Session: next, Expect: session.Guard()}); err != nil {
		return nil, storeErr("could not save confirmation", err)
	}
	return &TransitionResult{
		Session: next,
		Events:  []Event{newEvent(session, EventTaskExecuted, TaskExecutedPayload{ExecutorID: actorID})},
	}, nil
}

// Verify applies the observer's verdict, clears the pending task and passes the turn.
func (s *Service) Verify(ctx context.Context, sessionID, actorID string, confirmed bool) (*TransitionResult, error) {
	session, playing, err := s.loadPlaying(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if playing.Pending == nil {
		return nil, domain.ErrNoPendingTask
	}
	if actorID != playing.Pending.ObserverID {
		return nil, domain.ErrNotObserver
	}
	if playing.Pending.Status != domain.TaskStatusExecuted {
		return nil, domain.ErrTaskNotExecuted
	}

	next := session.Clone()
	resolved := next.Pending()
	penalty := 0
	if resolved.Trigger != domain.TriggerCollision && !confirmed {
		penalty = s.rng.Intn(domain.MaxPenalty + 1)
	}
	next.Board = domain.ResolveVerification(next, resolved, confirmed, penalty)

	// The turn passes relative to who held it before resolution, whoever moved.
	nextPlayerID := session.Opponent(playing.CurrentPlayerID)
	next.Turn++
	next.Version++
	next.State = domain.Playing{CurrentPlayerID: nextPlayerID}

	commit := ports.Commit{Session: next, Expect: session.Guard()}
	if resolved.MoveID != "" {
		commit.PatchMove = &domain.MovePatch{MoveID: resolved.MoveID, TaskCompleted: confirmed}
	}
	if err := s.sessions.Commit(ctx, commit); err != nil {
		return nil, storeErr("could not save verification", err)
	}

	return &TransitionResult{
		Session: next,
		Events: []Event{
			newEvent(session, EventTaskVerified, TaskVerifiedPayload{
				Trigger:         resolved.Trigger,
				ExecutorID:      resolved.ExecutorID,
				ObserverID:      resolved.ObserverID,
				Confirmed:       confirmed,
				Penalty:         resolved.Meta.Penalty,
				Player1Position: next.Board.Player1Position,
				Player2Position: next.Board.Player2Position,
			}),
			newEvent(session, EventTurnPassed, TurnPassedPayload{Turn: next.Turn, NextPlayerID: nextPlayerID}),
		},
	}, nil
}

// Archive re-runs archival of a completed session, e.g. to retry a failed cleanup.
func (s *Service) Archive(ctx context.Context, sessionID string) (*domain.HistoryRecord, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.archiver.Archive(ctx, session)
}

func (s *Service) load(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, domain.InvalidArgument("session id is required")
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeErr("could not load game", err)
	}
	return session, nil
}

func (s *Service) loadPlaying(ctx context.Context, sessionID, actorID string) (*domain.Session, domain.Playing, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, domain.Playing{}, err
	}
	playing, ok := session.State.(domain.Playing)
	if !ok {
		return nil, domain.Playing{}, domain.ErrGameNotPlaying
	}
	if session.SeatOf(actorID) == domain.SeatNone {
		return nil, domain.Playing{}, domain.ErrNotAPlayer
	}
	return session, playing, nil
}

// openTask builds the pending task for a trigger and stamps the move with it.
func (s *Service) openTask(ctx context.Context, session *domain.Session, trigger domain.TriggerType, move *domain.Move, opponentID string) (*domain.PendingTask, error) {
	roles, err := domain.AssignRoles(trigger, move.PlayerID, opponentID)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindIllegalState, Reason: "game has invalid players", Err: err}
	}
	task, err := s.drawTask(ctx, session.RoomID, roles.ThemeOwnerID)
	if err != nil {
		return nil, err
	}

	pending := &domain.PendingTask{
		Trigger:    trigger,
		Position:   move.NewPosition,
		ExecutorID: roles.ExecutorID,
		ObserverID: roles.ObserverID,
		Status:     domain.TaskStatusPending,
		Task:       task,
		MoveID:     move.ID,
		Meta:       domain.TaskMeta{Dice: move.Dice},
	}
	if trigger == domain.TriggerCollision {
		old := move.OldPosition
		pending.Meta.AttackerOldPosition = &old
	}

	move.Trigger = trigger
	if task != nil {
		move.TaskID = task.ID
		move.TaskText = task.Description
	}
	return pending, nil
}

// drawTask picks one task uniformly from the theme owner's theme. No theme or
// an empty theme yields nil; the client shows a placeholder.
func (s *Service) drawTask(ctx context.Context, roomID, ownerID string) (*domain.Task, error) {
	if s.rooms == nil || s.tasks == nil {
		return nil, nil
	}
	themeID, err := s.rooms.ThemeFor(ctx, roomID, ownerID)
	if err != nil {
		return nil, storeErr("could not resolve task theme", err)
	}
	if themeID == "" {
		return nil, nil
	}
	candidates, err := s.tasks.DrawCandidateTasks(ctx, themeID, s.taskDrawLimit)
	if err != nil {
		return nil, storeErr("could not draw a task", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	picked := candidates[s.rng.Intn(len(candidates))]
	return &picked, nil
}

// finish closes the room and archives a just-completed session. Both are best effort.
func (s *Service) finish(ctx context.Context, session *domain.Session) (*domain.HistoryRecord, error) {
	var errs []error
	if s.rooms != nil && session.RoomID != "" {
		if err := s.rooms.MarkCompleted(ctx, session.RoomID); err != nil {
			errs = append(errs, domain.Upstream("could not close room", err))
		}
	}
	record, err := s.archiver.Archive(ctx, session)
	if err != nil {
		errs = append(errs, err)
	}
	return record, errors.Join(errs...)
}

// storeErr keeps typed domain errors and wraps everything else as an upstream failure.
func storeErr(reason string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Upstream(reason, err)
}

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}
