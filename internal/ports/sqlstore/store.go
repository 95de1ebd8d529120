// Package sqlstore implements every engine port on a local SQLite database via gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/logging"
	"taskboard/internal/ports"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// gormLogger routes gorm output to the CLI slog logger.
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs SQL statements, only in debug mode.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		logging.Logger.Error("gorm query error", "error", err, "duration", elapsed, "sql", sql, "rows", rows)
	case elapsed > 200*time.Millisecond:
		logging.Logger.Warn("slow query", "duration", elapsed, "sql", sql, "rows", rows)
	default:
		logging.Logger.Debug("gorm query", "duration", elapsed, "sql", sql, "rows", rows)
	}
}

// Options tunes Open.
type Options struct {
	Debug bool
}

// Store implements ports.SessionStore, ports.TaskSource and ports.RoomDirectory.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at dbPath and migrates the schema.
func Open(dbPath string, opts Options) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	level := logger.Silent
	if opts.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		PrepareStmt: false,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		Logger:      (&gormLogger{}).LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")

	if err := db.AutoMigrate(&sessionRow{}, &moveRow{}, &historyRow{}, &Room{}, &taskRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	row := toSessionRow(session)
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var busy int64
			err := tx.Model(&sessionRow{}).
				Where("status = ? AND id <> ?", string(domain.StatusPlaying), row.ID).
				Where("(player1_id IN ? OR player2_id IN ?)", []string{row.Player1ID, row.Player2ID}, []string{row.Player1ID, row.Player2ID}).
				Count(&busy).Error
			if err != nil {
				return fmt.Errorf("failed to check active sessions: %w", err)
			}
			if busy > 0 {
				return domain.ErrAlreadyPlaying
			}

			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if result.Error != nil {
				return fmt.Errorf("failed to create session: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return &domain.Error{Kind: domain.KindStateConflict, Reason: "game already exists"}
			}
			return nil
		})
	}, 3)
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindActiveSession(ctx context.Context, playerID string) (*domain.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND (player1_id = ? OR player2_id = ?)", string(domain.StatusPlaying), playerID, playerID).
		Order("started_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session of %s: %w", playerID, err)
	}
	return row.toDomain(), nil
}

// Commit writes the session only where id, version and current player still
// match the guard, then applies the move change in the same transaction.
func (s *Store) Commit(ctx context.Context, c ports.Commit) error {
	row := toSessionRow(c.Session)
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&sessionRow{}).
				Where("id = ? AND version = ? AND current_player_id = ?", row.ID, c.Expect.Version, c.Expect.CurrentPlayerID).
				Select("*").
				Updates(&row)
			if result.Error != nil {
				return fmt.Errorf("failed to update session: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				var n int64
				if err := tx.Model(&sessionRow{}).Where("id = ?", row.ID).Count(&n).Error; err != nil {
					return fmt.Errorf("failed to check session: %w", err)
				}
				if n == 0 {
					return domain.ErrSessionNotFound
				}
				return domain.ErrTurnConflict
			}

			if c.PatchMove != nil {
				err := tx.Model(&moveRow{}).
					Where("id = ? AND session_id = ?", c.PatchMove.MoveID, row.ID).
					Update("task_completed", c.PatchMove.TaskCompleted).Error
				if err != nil {
					return fmt.Errorf("failed to patch move: %w", err)
				}
			}
			if c.AppendMove != nil {
				var n int64
				if err := tx.Model(&moveRow{}).Where("session_id = ?", row.ID).Count(&n).Error; err != nil {
					return fmt.Errorf("failed to count moves: %w", err)
				}
				m := toMoveRow(*c.AppendMove)
				m.Seq = int(n) + 1
				if err := tx.Create(&m).Error; err != nil {
					return fmt.Errorf("failed to append move: %w", err)
				}
			}
			return nil
		})
	}, 3)
}

func (s *Store) ListMoves(ctx context.Context, sessionID string) ([]domain.Move, error) {
	var rows []moveRow
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list moves of %s: %w", sessionID, err)
	}
	moves := make([]domain.Move, 0, len(rows))
	for _, r := range rows {
		moves = append(moves, r.toDomain())
	}
	return moves, nil
}

func (s *Store) InsertHistory(ctx context.Context, record *domain.HistoryRecord) error {
	row := toHistoryRow(record)
	return withRetry(func() error {
		result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("failed to insert history: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrHistoryExists
		}
		return nil
	}, 3)
}

func (s *Store) ListHistory(ctx context.Context, playerID string, limit int) ([]domain.HistoryRecord, error) {
	var rows []historyRow
	q := s.db.WithContext(ctx).Where("player1_id = ? OR player2_id = ?", playerID, playerID).Order("ended_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list history of %s: %w", playerID, err)
	}
	records := make([]domain.HistoryRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toDomain())
	}
	return records, nil
}

func (s *Store) DeleteMoves(ctx context.Context, sessionID string) error {
	return withRetry(func() error {
		if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&moveRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete moves of %s: %w", sessionID, err)
		}
		return nil
	}, 3)
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return withRetry(func() error {
		if err := s.db.WithContext(ctx).Where("id = ?", sessionID).Delete(&sessionRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
		}
		return nil
	}, 3)
}

func (s *Store) DrawCandidateTasks(ctx context.Context, themeID string, limit int) ([]domain.Task, error) {
	var rows []taskRow
	q := s.db.WithContext(ctx).Where("theme_id = ?", themeID)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query tasks of theme %s: %w", themeID, err)
	}
	tasks := make([]domain.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, domain.Task{ID: r.ID, Description: r.Description})
	}
	return tasks, nil
}

func (s *Store) ThemeFor(ctx context.Context, roomID, playerID string) (string, error) {
	var room Room
	err := s.db.WithContext(ctx).Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load room %s: %w", roomID, err)
	}
	var theme *string
	switch playerID {
	case room.Player1ID:
		theme = room.Player1ThemeID
	case room.Player2ID:
		theme = room.Player2ThemeID
	}
	if theme == nil {
		return "", nil
	}
	return *theme, nil
}

func (s *Store) Seats(ctx context.Context, roomID string) (string, string, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return "", "", err
	}
	return room.Player1ID, room.Player2ID, nil
}

func (s *Store) MarkCompleted(ctx context.Context, roomID string) error {
	return withRetry(func() error {
		err := s.db.WithContext(ctx).Model(&Room{}).Where("id = ?", roomID).Update("status", "completed").Error
		if err != nil {
			return fmt.Errorf("failed to complete room %s: %w", roomID, err)
		}
		return nil
	}, 3)
}

// withRetry retries operations on SQLITE_BUSY with linear backoff.
func withRetry(fn func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}
		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

var (
	_ ports.SessionStore  = (*Store)(nil)
	_ ports.TaskSource    = (*Store)(nil)
	_ ports.RoomDirectory = (*Store)(nil)
)
