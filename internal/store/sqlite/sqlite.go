package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"societygate/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	author_id       TEXT NOT NULL,
	author_name     TEXT NOT NULL,
	author_avatar   TEXT,
	kind            TEXT NOT NULL DEFAULT 'text',
	body            TEXT NOT NULL DEFAULT '',
	attachment_url  TEXT,
	attachment_name TEXT,
	is_edited       BOOLEAN NOT NULL DEFAULT 0,
	edited_at       DATETIME,
	is_deleted      BOOLEAN NOT NULL DEFAULT 0,
	deleted_at      DATETIME,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author_id);

CREATE TABLE IF NOT EXISTS message_reads (
	message_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	read_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (message_id, user_id),
	FOREIGN KEY (message_id) REFERENCES messages(id)
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and ensures the schema exists.
// dbPath is the path to the SQLite database file (":memory:" for tests).
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append persists a new message.
func (s *SQLiteStore) Append(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (id, author_id, author_name, author_avatar, kind, body, attachment_url, attachment_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.AuthorID,
		msg.AuthorName,
		msg.AuthorAvatarURL,
		string(msg.Kind),
		msg.Body,
		msg.AttachmentURL,
		msg.AttachmentName,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

const messageColumns = `
	id, author_id, author_name, COALESCE(author_avatar, ''), kind, body,
	COALESCE(attachment_url, ''), COALESCE(attachment_name, ''),
	is_edited, edited_at, is_deleted, deleted_at, created_at
`

func scanMessage(row interface{ Scan(...any) error }) (*store.Message, error) {
	var (
		msg       store.Message
		kind      string
		editedAt  sql.NullTime
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&msg.ID,
		&msg.AuthorID,
		&msg.AuthorName,
		&msg.AuthorAvatarURL,
		&kind,
		&msg.Body,
		&msg.AttachmentURL,
		&msg.AttachmentName,
		&msg.IsEdited,
		&editedAt,
		&msg.IsDeleted,
		&deletedAt,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Kind = store.MessageKind(kind)
	if editedAt.Valid {
		t := editedAt.Time
		msg.EditedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		msg.DeletedAt = &t
	}
	return &msg, nil
}

// GetMessage retrieves a non-deleted message by ID, read set included.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ? AND is_deleted = 0`

	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	readBy, err := s.readSet(ctx, id)
	if err != nil {
		return nil, err
	}
	msg.ReadBy = readBy

	return msg, nil
}

// ListMessages returns non-deleted messages newest-first, capped at limit.
func (s *SQLiteStore) ListMessages(ctx context.Context, limit int, before *time.Time) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE is_deleted = 0`
	args := []any{}
	if before != nil {
		query += ` AND created_at < ?`
		args = append(args, *before)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	if err := s.attachReadSets(ctx, messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkRead adds userID to the message's read set. INSERT OR IGNORE keeps the
// operation idempotent; changed reports whether the set actually grew.
func (s *SQLiteStore) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	if _, err := s.lookupForMutation(ctx, id); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO message_reads (message_id, user_id) VALUES (?, ?)`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("insert read receipt: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// EditMessage replaces the body if callerID authored the message.
func (s *SQLiteStore) EditMessage(ctx context.Context, id, callerID, newBody string) (*store.Message, error) {
	authorID, err := s.lookupForMutation(ctx, id)
	if err != nil {
		return nil, err
	}
	if authorID != callerID {
		return nil, store.ErrForbidden
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`UPDATE messages SET body = ?, is_edited = 1, edited_at = ? WHERE id = ?`,
		newBody, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	return s.GetMessage(ctx, id)
}

// DeleteMessage soft-deletes the message if callerID authored it.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id, callerID string) error {
	authorID, err := s.lookupForMutation(ctx, id)
	if err != nil {
		return err
	}
	if authorID != callerID {
		return store.ErrForbidden
	}

	return s.softDelete(ctx, id)
}

// DeleteMessageByAdmin soft-deletes without the author gate.
func (s *SQLiteStore) DeleteMessageByAdmin(ctx context.Context, id string) error {
	if _, err := s.lookupForMutation(ctx, id); err != nil {
		return err
	}
	return s.softDelete(ctx, id)
}

// lookupForMutation returns the author of a live message. Deleted messages
// are reported as not found: the lifecycle ends at deletion.
func (s *SQLiteStore) lookupForMutation(ctx context.Context, id string) (string, error) {
	var (
		authorID  string
		isDeleted bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT author_id, is_deleted FROM messages WHERE id = ?`, id,
	).Scan(&authorID, &isDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("query message: %w", err)
	}
	if isDeleted {
		return "", store.ErrNotFound
	}
	return authorID, nil
}

func (s *SQLiteStore) softDelete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted = 1, deleted_at = ? WHERE id = ?`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("soft delete message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) readSet(ctx context.Context, messageID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM message_reads WHERE message_id = ? ORDER BY read_at`, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("query read set: %w", err)
	}
	defer rows.Close()

	readBy := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan read set: %w", err)
		}
		readBy = append(readBy, userID)
	}
	return readBy, rows.Err()
}

func (s *SQLiteStore) attachReadSets(ctx context.Context, messages []*store.Message) error {
	if len(messages) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(messages))
	args := make([]any, 0, len(messages))
	byID := make(map[string]*store.Message, len(messages))
	for _, msg := range messages {
		placeholders = append(placeholders, "?")
		args = append(args, msg.ID)
		byID[msg.ID] = msg
		msg.ReadBy = []string{}
	}

	query := `SELECT message_id, user_id FROM message_reads WHERE message_id IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY read_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query read sets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, userID string
		if err := rows.Scan(&messageID, &userID); err != nil {
			return fmt.Errorf("scan read sets: %w", err)
		}
		if msg, ok := byID[messageID]; ok {
			msg.ReadBy = append(msg.ReadBy, userID)
		}
	}
	return rows.Err()
}
