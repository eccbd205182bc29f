package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/logging"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Options configures the SQLite store.
type Options struct {
	Logger logging.Logger
}

// SQLiteStore implements core.ConversationStore using modernc.org/sqlite.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteStore opens (or creates) the database at path. The schema is
// created if it doesn't exist and parent directories are created if needed.
// The special path ":memory:" opens a private in-memory database.
func NewSQLiteStore(path string, optFns ...func(o *Options)) (*SQLiteStore, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, logger: opts.Logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s.logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			user_id    TEXT NOT NULL,
			thread_id  TEXT NOT NULL,
			title      TEXT NOT NULL,
			summary    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, thread_id)
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_user_created
			ON conversations(user_id, created_at);

		CREATE TABLE IF NOT EXISTS favorite_destinations (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL,
			destination TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_favorites_user
			ON favorite_destinations(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertConversation creates or updates the record keyed by (UserID,
// ThreadID). The original created_at is preserved on update.
func (s *SQLiteStore) UpsertConversation(ctx context.Context, rec *core.ConversationRecord) error {
	if rec == nil || rec.UserID == "" || rec.ThreadID == "" {
		return core.NewValidationError("conversation", "user id and thread id are required")
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	query := `
		INSERT INTO conversations (user_id, thread_id, title, summary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, thread_id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.UserID,
		rec.ThreadID,
		rec.Title,
		rec.Summary,
		rec.CreatedAt.UTC().Format(timeLayout),
		rec.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}
	return nil
}

// CreateFavoriteDestination inserts a saved destination for userID.
func (s *SQLiteStore) CreateFavoriteDestination(ctx context.Context, userID, name string) (*core.FavoriteDestination, error) {
	name = strings.TrimSpace(name)
	if userID == "" || name == "" {
		return nil, core.NewValidationError("destination", "user id and name are required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO favorite_destinations (user_id, destination, created_at) VALUES (?, ?, ?)`,
		userID, name, now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting favorite destination: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading favorite destination id: %w", err)
	}
	return &core.FavoriteDestination{ID: id, UserID: userID, Name: name, CreatedAt: now}, nil
}

// ListConversations returns the user's conversations, most recently
// created first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*core.ConversationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, thread_id, title, summary, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY created_at DESC, thread_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	out := []*core.ConversationRecord{}
	for rows.Next() {
		var (
			rec                  core.ConversationRecord
			createdAt, updatedAt string
		)
		if err := rows.Scan(&rec.UserID, &rec.ThreadID, &rec.Title, &rec.Summary, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// DeleteConversation removes one conversation. Returns core.ErrNotFound when
// the user has no such conversation.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, userID, threadID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE user_id = ? AND thread_id = ?`, userID, threadID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListFavoriteDestinations returns the user's saved destinations in
// insertion order.
func (s *SQLiteStore) ListFavoriteDestinations(ctx context.Context, userID string) ([]*core.FavoriteDestination, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, destination, created_at
		FROM favorite_destinations
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying favorite destinations: %w", err)
	}
	defer rows.Close()

	out := []*core.FavoriteDestination{}
	for rows.Next() {
		var (
			fav       core.FavoriteDestination
			createdAt string
		)
		if err := rows.Scan(&fav.ID, &fav.UserID, &fav.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning favorite destination: %w", err)
		}
		if fav.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, &fav)
	}
	return out, rows.Err()
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

var _ core.ConversationStore = (*SQLiteStore)(nil)
