// Package sqlstore implements storage.Driver over database/sql. The sqlite
// and postgres packages open the connection and hand it here.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/reflex/pkg/storage"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	// SQLite uses ? placeholders.
	SQLite Dialect = iota

	// Postgres uses $n placeholders.
	Postgres
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS captures (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_query TEXT NOT NULL,
		assistant_response TEXT NOT NULL,
		model TEXT NOT NULL,
		task_id TEXT NOT NULL,
		patterns_retrieved TEXT NOT NULL,
		patterns_applied TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS captures_session_idx ON captures (session_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS patterns (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		problem TEXT NOT NULL,
		solution TEXT NOT NULL,
		tags TEXT NOT NULL,
		success_rate DOUBLE PRECISION NOT NULL,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reflex_logs (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		model TEXT NOT NULL,
		task_id TEXT NOT NULL,
		patterns_retrieved INTEGER NOT NULL,
		patterns_applied INTEGER NOT NULL,
		patterns_skipped INTEGER NOT NULL,
		patterns_forged INTEGER NOT NULL,
		coverage DOUBLE PRECISION NOT NULL,
		legacy_fallback INTEGER NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reflex_logs_session_idx ON reflex_logs (session_id, created_at)`,
}

// Driver implements storage.Driver on a *sql.DB.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
}

// New wraps db and creates the schema if it does not exist.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	d := &Driver{DB: db, dialect: dialect}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return d, nil
}

// Reset deletes every row. Used to isolate tests sharing a database.
func (d *Driver) Reset(ctx context.Context) error {
	for _, table := range []string{"captures", "patterns", "reflex_logs"} {
		if _, err := d.DB.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// PutCapture stores a captured exchange.
func (d *Driver) PutCapture(ctx context.Context, c *storage.Capture) error {
	if c == nil {
		return errors.New("cannot store nil capture")
	}

	retrieved, err := encodeList(c.PatternsRetrieved)
	if err != nil {
		return err
	}
	applied, err := encodeList(c.PatternsApplied)
	if err != nil {
		return err
	}

	_, err = d.DB.ExecContext(ctx, d.rebind(`INSERT INTO captures
		(id, session_id, user_id, user_query, assistant_response, model, task_id, patterns_retrieved, patterns_applied, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.SessionID, c.UserID, c.UserQuery, c.AssistantResponse, c.Model, c.TaskID,
		retrieved, applied, c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}
	return nil
}

// Captures returns captures for a session, oldest first.
func (d *Driver) Captures(ctx context.Context, sessionID string) ([]*storage.Capture, error) {
	query := `SELECT id, session_id, user_id, user_query, assistant_response, model, task_id,
		patterns_retrieved, patterns_applied, created_at FROM captures`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := d.DB.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var out []*storage.Capture
	for rows.Next() {
		var (
			c                  storage.Capture
			retrieved, applied string
			created            int64
		)
		if err := rows.Scan(&c.ID, &c.SessionID, &c.UserID, &c.UserQuery, &c.AssistantResponse,
			&c.Model, &c.TaskID, &retrieved, &applied, &created); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		if c.PatternsRetrieved, err = decodeList(retrieved); err != nil {
			return nil, err
		}
		if c.PatternsApplied, err = decodeList(applied); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, &c)
	}
	return out, rows.Err()
}

// PutPattern stores or replaces a pattern.
func (d *Driver) PutPattern(ctx context.Context, p *storage.Pattern) error {
	if p == nil {
		return errors.New("cannot store nil pattern")
	}

	tags, err := encodeList(p.Tags)
	if err != nil {
		return err
	}

	_, err = d.DB.ExecContext(ctx, d.rebind(`INSERT INTO patterns
		(id, title, problem, solution, tags, success_rate, user_id, session_id, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			problem = excluded.problem,
			solution = excluded.solution,
			tags = excluded.tags,
			success_rate = excluded.success_rate,
			user_id = excluded.user_id,
			session_id = excluded.session_id,
			source = excluded.source,
			created_at = excluded.created_at`),
		p.ID, p.Title, p.Problem, p.Solution, tags, p.SuccessRate, p.UserID, p.SessionID, p.Source,
		p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pattern: %w", err)
	}
	return nil
}

const patternColumns = `id, title, problem, solution, tags, success_rate, user_id, session_id, source, created_at`

// GetPattern retrieves a pattern by ID.
func (d *Driver) GetPattern(ctx context.Context, id string) (*storage.Pattern, error) {
	row := d.DB.QueryRowContext(ctx, d.rebind(`SELECT `+patternColumns+` FROM patterns WHERE id = ?`), id)
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Kind: "pattern", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Patterns returns every pattern, newest first.
func (d *Driver) Patterns(ctx context.Context) ([]*storage.Pattern, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT `+patternColumns+` FROM patterns ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var out []*storage.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PutReflexLog stores a turn summary.
func (d *Driver) PutReflexLog(ctx context.Context, l *storage.ReflexLog) error {
	if l == nil {
		return errors.New("cannot store nil reflex log")
	}

	legacy := 0
	if l.LegacyFallback {
		legacy = 1
	}

	_, err := d.DB.ExecContext(ctx, d.rebind(`INSERT INTO reflex_logs
		(id, session_id, user_id, model, task_id, patterns_retrieved, patterns_applied, patterns_skipped,
		 patterns_forged, coverage, legacy_fallback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		l.ID, l.SessionID, l.UserID, l.Model, l.TaskID, l.PatternsRetrieved, l.PatternsApplied,
		l.PatternsSkipped, l.PatternsForged, l.Coverage, legacy, l.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reflex log: %w", err)
	}
	return nil
}

// ReflexLogs returns turn summaries for a session, oldest first.
func (d *Driver) ReflexLogs(ctx context.Context, sessionID string) ([]*storage.ReflexLog, error) {
	query := `SELECT id, session_id, user_id, model, task_id, patterns_retrieved, patterns_applied,
		patterns_skipped, patterns_forged, coverage, legacy_fallback, created_at FROM reflex_logs`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := d.DB.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reflex logs: %w", err)
	}
	defer rows.Close()

	var out []*storage.ReflexLog
	for rows.Next() {
		var (
			l       storage.ReflexLog
			legacy  int
			created int64
		)
		if err := rows.Scan(&l.ID, &l.SessionID, &l.UserID, &l.Model, &l.TaskID, &l.PatternsRetrieved,
			&l.PatternsApplied, &l.PatternsSkipped, &l.PatternsForged, &l.Coverage, &legacy, &created); err != nil {
			return nil, fmt.Errorf("failed to scan reflex log: %w", err)
		}
		l.LegacyFallback = legacy != 0
		l.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, &l)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPattern(s scanner) (*storage.Pattern, error) {
	var (
		p       storage.Pattern
		tags    string
		created int64
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Problem, &p.Solution, &tags, &p.SuccessRate,
		&p.UserID, &p.SessionID, &p.Source, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan pattern: %w", err)
	}

	var err error
	if p.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	return &p, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *Driver) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return list, nil
}
