// Package store handles SQLite persistence of session records.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/stats"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrNotFound is returned when a record does not exist for the caller.
	ErrNotFound = errors.New("session not found")
	// ErrSessionEnded is returned when a record already has a terminal outcome.
	ErrSessionEnded = errors.New("session already ended")
	// ErrInvalidOutcome is returned when a patch sets an outcome other than active or draft.
	ErrInvalidOutcome = errors.New("outcome can only be patched to active or draft")
)

// Store wraps SQLite access for session records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("failed to open store: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}
	dsn := "file:" + path + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// The HTTP server and the outbox worker write concurrently; one connection
	// serializes them.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, now: time.Now}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	return store, nil
}

// SetClock replaces the time source used for created/completed stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			completed_at TEXT,
			title TEXT NOT NULL DEFAULT '',
			duration_min INTEGER NOT NULL,
			min_wpm INTEGER NOT NULL,
			reminder_interval_min INTEGER NOT NULL DEFAULT 0,
			organizer_text TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			word_count INTEGER NOT NULL DEFAULT 0,
			wpm_at_end REAL NOT NULL DEFAULT 0,
			elapsed_sec INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_created ON sessions(user_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const selectColumns = `id, user_id, created_at, completed_at, title, duration_min, min_wpm,
	reminder_interval_min, organizer_text, content, word_count, wpm_at_end, elapsed_sec, outcome`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.SessionRecord, error) {
	var rec model.SessionRecord
	var createdAt string
	var completedAt sql.NullString
	var outcome string
	if err := row.Scan(&rec.ID, &rec.UserID, &createdAt, &completedAt, &rec.Title, &rec.DurationMin,
		&rec.MinWPM, &rec.ReminderIntervalMin, &rec.OrganizerText, &rec.Content, &rec.WordCount,
		&rec.WPMAtEnd, &rec.ElapsedSec, &outcome); err != nil {
		return rec, err
	}
	parsed, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return rec, fmt.Errorf("failed to parse created_at: %w", err)
	}
	rec.CreatedAt = parsed
	if completedAt.Valid {
		done, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return rec, fmt.Errorf("failed to parse completed_at: %w", err)
		}
		rec.CompletedAt = &done
	}
	rec.Outcome = model.Outcome(outcome)
	return rec, nil
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

// Create inserts a new record owned by userID. The outcome defaults to active.
func (s *Store) Create(ctx context.Context, userID string, req model.CreateRequest) (model.SessionRecord, error) {
	if req.DurationMin < 0 || req.MinWPM < 0 {
		return model.SessionRecord{}, fmt.Errorf("duration_min and min_wpm must not be negative")
	}
	outcome := req.Outcome
	if outcome == model.OutcomeNone {
		outcome = model.OutcomeActive
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, title, duration_min, min_wpm, reminder_interval_min,
			organizer_text, content, word_count, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		userID,
		s.stamp(),
		req.Title,
		req.DurationMin,
		req.MinWPM,
		req.ReminderIntervalMin,
		req.OrganizerText,
		req.Content,
		stats.CountWords(req.Content),
		string(outcome),
	)
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("failed to insert session: %w", err)
	}
	return s.Get(ctx, userID, id)
}

// Get returns the record id owned by userID.
func (s *Store) Get(ctx context.Context, userID, id string) (model.SessionRecord, error) {
	return s.get(ctx, s.db, userID, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) get(ctx context.Context, q querier, userID, id string) (model.SessionRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("failed to load session: %w", err)
	}
	return rec, nil
}

// List returns the caller's records newest-first, filtered by scope.
func (s *Store) List(ctx context.Context, userID string, filter model.ListFilter) ([]model.SessionRecord, error) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}
	switch filter.Scope {
	case model.ScopeAll:
	case model.ScopeDrafts:
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(model.OutcomeDraft))
	case model.ScopeHistory, "":
		clauses = append(clauses, "outcome NOT IN (?, ?)")
		args = append(args, string(model.OutcomeActive), string(model.OutcomeDraft))
	default:
		return nil, fmt.Errorf("unknown scope %q", filter.Scope)
	}
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE %s ORDER BY created_at DESC, rowid DESC`,
		selectColumns, strings.Join(clauses, " AND "))
	if filter.Last > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var records []model.SessionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Patch applies the non-nil fields of patch. Records with a terminal outcome
// cannot be patched, and terminal outcomes are only reachable through Finalize.
func (s *Store) Patch(ctx context.Context, userID, id string, patch model.SessionPatch) (model.SessionRecord, error) {
	if patch.Outcome != nil && *patch.Outcome != model.OutcomeActive && *patch.Outcome != model.OutcomeDraft {
		return model.SessionRecord{}, fmt.Errorf("%w: got %q", ErrInvalidOutcome, *patch.Outcome)
	}
	sets, args := patchColumns(patch)
	return s.update(ctx, userID, id, sets, args)
}

// Finalize writes the final metrics and outcome and stamps completed_at.
func (s *Store) Finalize(ctx context.Context, userID, id string, req model.FinalizeRequest) (model.SessionRecord, error) {
	if req.Outcome == model.OutcomeNone || req.Outcome == model.OutcomeActive {
		return model.SessionRecord{}, fmt.Errorf("invalid final outcome %q", req.Outcome)
	}
	sets := []string{"outcome = ?", "content = ?", "organizer_text = ?", "word_count = ?",
		"wpm_at_end = ?", "elapsed_sec = ?", "completed_at = ?"}
	args := []any{string(req.Outcome), req.Content, req.OrganizerText, req.WordCount,
		req.WPMAtEnd, req.ElapsedSec, s.stamp()}
	return s.update(ctx, userID, id, sets, args)
}

func (s *Store) update(ctx context.Context, userID, id string, sets []string, args []any) (rec model.SessionRecord, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rec, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	current, err := s.get(ctx, tx, userID, id)
	if err != nil {
		return rec, err
	}
	if current.Outcome.Terminal() {
		return rec, ErrSessionEnded
	}
	if len(sets) > 0 {
		query := fmt.Sprintf(`UPDATE sessions SET %s WHERE id = ? AND user_id = ?`, strings.Join(sets, ", "))
		if _, err = tx.ExecContext(ctx, query, append(args, id, userID)...); err != nil {
			return rec, fmt.Errorf("failed to update session: %w", err)
		}
	}
	rec, err = s.get(ctx, tx, userID, id)
	if err != nil {
		return rec, err
	}
	if err = tx.Commit(); err != nil {
		return rec, err
	}
	return rec, nil
}

func patchColumns(p model.SessionPatch) ([]string, []any) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if p.Content != nil {
		add("content", *p.Content)
	}
	if p.OrganizerText != nil {
		add("organizer_text", *p.OrganizerText)
	}
	if p.WordCount != nil {
		add("word_count", *p.WordCount)
	}
	if p.WPMAtEnd != nil {
		add("wpm_at_end", *p.WPMAtEnd)
	}
	if p.ElapsedSec != nil {
		add("elapsed_sec", *p.ElapsedSec)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Outcome != nil {
		add("outcome", string(*p.Outcome))
	}
	if p.DurationMin != nil {
		add("duration_min", *p.DurationMin)
	}
	if p.MinWPM != nil {
		add("min_wpm", *p.MinWPM)
	}
	return sets, args
}

// Delete removes the record id owned by userID.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
