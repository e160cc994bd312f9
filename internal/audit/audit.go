// Package audit provides a SQLite-backed activity log for catalog and
// exchange operations.
package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
	"github.com/quotelineapp/quoteline-server/internal/id"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one recorded action. The log is append-only; entries are never
// updated or deleted by the application.
type Entry struct {
	ID         string    `json:"id"`
	TeamID     string    `json:"team_id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Log provides SQLite-backed persistence for audit entries.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a new audit log at the given path.
// It configures WAL mode, sets pragmas, and runs schema migrations.
func Open(path string, logger *slog.Logger) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	// Run schema migration.
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Log{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record inserts a new entry. ID and CreatedAt are filled in when empty.
func (l *Log) Record(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		generated, err := id.Generate("act")
		if err != nil {
			return fmt.Errorf("generate activity id: %w", err)
		}
		entry.ID = generated
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO activities (
			id, team_id, user_id, action, entity_type, entity_id, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.TeamID,
		entry.UserID,
		entry.Action,
		nullString(entry.EntityType),
		nullString(entry.EntityID),
		nullString(entry.Detail),
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// RecordBestEffort records an entry and logs instead of failing when the
// insert breaks. Audit writes must never abort the operation they describe.
func (l *Log) RecordBestEffort(ctx context.Context, entry *Entry) {
	if err := l.Record(ctx, entry); err != nil && l.logger != nil {
		l.logger.Warn("failed to record audit entry",
			"action", entry.Action,
			"team_id", entry.TeamID,
			"error", err,
		)
	}
}

// ListByTeam retrieves a team's entries sorted by created_at descending.
// Use 'before' for cursor-based pagination (pass the CreatedAt of the last
// item). Returns up to 'limit' entries.
func (l *Log) ListByTeam(ctx context.Context, teamID string, limit int, before *time.Time) ([]*Entry, error) {
	var query string
	var args []any

	if before != nil {
		query = `SELECT ` + entryColumns + ` FROM activities
			WHERE team_id = ? AND created_at < ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`
		args = append(args, teamID, formatTime(*before), limit)
	} else {
		query = `SELECT ` + entryColumns + ` FROM activities
			WHERE team_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`
		args = append(args, teamID, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByEntity retrieves a team's entries for one entity, newest first.
func (l *Log) ListByEntity(ctx context.Context, teamID, entityType, entityID string, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM activities
		WHERE team_id = ? AND entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		teamID, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// entryColumns is the ordered list of columns selected in entry queries.
// Must match the scan order in scanEntry.
const entryColumns = `id, team_id, user_id, action, entity_type, entity_id, detail, created_at`

// scanEntry scans a sql.Row (or sql.Rows via its Scan method) into an Entry.
func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var e Entry

	var (
		entityType sql.NullString
		entityID   sql.NullString
		detail     sql.NullString
		createdAt  string
	)

	err := scanner.Scan(
		&e.ID,
		&e.TeamID,
		&e.UserID,
		&e.Action,
		&entityType,
		&entityID,
		&detail,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	if entityType.Valid {
		e.EntityType = entityType.String
	}
	if entityID.Valid {
		e.EntityID = entityID.String
	}
	if detail.Valid {
		e.Detail = detail.String
	}

	return &e, nil
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// nullString returns a sql.NullString from a string, empty meaning NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
