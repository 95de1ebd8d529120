// Package memory holds in-process adapters used by tests and the local CLI.
package memory

import (
	"context"
	"sort"
	"sync"

	"taskboard/internal/domain"
	"taskboard/internal/ports"
)

var (
	_ ports.SessionStore  = (*Store)(nil)
	_ ports.TaskSource    = (*Store)(nil)
	_ ports.RoomDirectory = (*Store)(nil)
)

type room struct {
	player1ID string
	player2ID string
	themes    map[string]string
	completed bool
}

// Store keeps sessions, moves, history, rooms and tasks in maps behind one mutex.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	moves    map[string][]domain.Move
	history  map[string]domain.HistoryRecord
	rooms    map[string]*room
	tasks    map[string][]domain.Task
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
		moves:    make(map[string][]domain.Move),
		history:  make(map[string]domain.HistoryRecord),
		rooms:    make(map[string]*room),
		tasks:    make(map[string][]domain.Task),
	}
}

// AddTasks appends tasks to a theme.
func (s *Store) AddTasks(themeID string, tasks ...domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[themeID] = append(s.tasks[themeID], tasks...)
}

// AddRoom seats two players in a room.
func (s *Store) AddRoom(roomID, player1ID, player2ID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(roomID)
	r.player1ID, r.player2ID = player1ID, player2ID
}

// SetTheme records the theme a player picked for a room.
func (s *Store) SetTheme(roomID, playerID, themeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(roomID)
	r.themes[playerID] = themeID
}

// RoomCompleted reports whether MarkCompleted ran for the room.
func (s *Store) RoomCompleted(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	return ok && r.completed
}

func (s *Store) room(roomID string) *room {
	r, ok := s.rooms[roomID]
	if !ok {
		r = &room{themes: make(map[string]string)}
		s.rooms[roomID] = r
	}
	return r
}

func (s *Store) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return &domain.Error{Kind: domain.KindStateConflict, Reason: "game already exists"}
	}
	for _, other := range s.sessions {
		if other.Status() != domain.StatusPlaying {
			continue
		}
		if other.SeatOf(session.Player1ID) != domain.SeatNone || other.SeatOf(session.Player2ID) != domain.SeatNone {
			return domain.ErrAlreadyPlaying
		}
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Store) FindActiveSession(_ context.Context, playerID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *domain.Session
	for _, session := range s.sessions {
		if session.Status() != domain.StatusPlaying || session.SeatOf(playerID) == domain.SeatNone {
			continue
		}
		if found == nil || session.StartedAt.After(found.StartedAt) {
			found = session
		}
	}
	if found == nil {
		return nil, domain.ErrNoActiveSession
	}
	return found.Clone(), nil
}

func (s *Store) Commit(_ context.Context, c ports.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[c.Session.ID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if current.Guard() != c.Expect {
		return domain.ErrTurnConflict
	}

	moves := s.moves[c.Session.ID]
	if c.PatchMove != nil {
		moves = append([]domain.Move(nil), moves...)
		for i := range moves {
			if c.PatchMove.Apply(&moves[i]) {
				break
			}
		}
	}
	if c.AppendMove != nil {
		m := *c.AppendMove
		m.Seq = len(moves) + 1
		moves = append(moves, m)
	}
	s.moves[c.Session.ID] = moves
	s.sessions[c.Session.ID] = c.Session.Clone()
	return nil
}

func (s *Store) ListMoves(_ context.Context, sessionID string) ([]domain.Move, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Move(nil), s.moves[sessionID]...), nil
}

func (s *Store) InsertHistory(_ context.Context, record *domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.history[record.SessionID]; ok {
		return domain.ErrHistoryExists
	}
	s.history[record.SessionID] = *record
	return nil
}

func (s *Store) ListHistory(_ context.Context, playerID string, limit int) ([]domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.HistoryRecord, 0)
	for _, rec := range s.history {
		if rec.Player1ID == playerID || rec.Player2ID == playerID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteMoves(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.moves, sessionID)
	return nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) DrawCandidateTasks(_ context.Context, themeID string, limit int) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.tasks[themeID]
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return append([]domain.Task(nil), tasks...), nil
}

func (s *Store) ThemeFor(_ context.Context, roomID, playerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return "", nil
	}
	return r.themes[playerID], nil
}

func (s *Store) Seats(_ context.Context, roomID string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok || r.player1ID == "" {
		return "", "", domain.ErrRoomNotFound
	}
	return r.player1ID, r.player2ID, nil
}

func (s *Store) MarkCompleted(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room(roomID).completed = true
	return nil
}
