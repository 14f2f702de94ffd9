// Package history keeps a campaign log of runs, their leads and the pitches
// sent to them in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jmylchreest/leadhunter/internal/compose"
	"github.com/jmylchreest/leadhunter/pkg/lead"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  id          TEXT PRIMARY KEY,
  niche       TEXT NOT NULL,
  location    TEXT NOT NULL,
  lead_limit  INTEGER NOT NULL,
  created_at  TEXT NOT NULL,
  lead_count  INTEGER NOT NULL DEFAULT 0,
  found_count INTEGER NOT NULL DEFAULT 0,
  error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS leads (
  run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  position       INTEGER NOT NULL,
  name           TEXT NOT NULL,
  location       TEXT NOT NULL,
  website        TEXT NOT NULL DEFAULT '',
  rating         TEXT NOT NULL DEFAULT '',
  contact_status TEXT NOT NULL,
  contact_email  TEXT NOT NULL DEFAULT '',
  contact_error  TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS pitches (
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  lead_name TEXT NOT NULL,
  recipient TEXT NOT NULL,
  subject   TEXT NOT NULL,
  body      TEXT NOT NULL,
  provider  TEXT NOT NULL DEFAULT '',
  model     TEXT NOT NULL DEFAULT '',
  sent_at   TEXT NOT NULL,
  error     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_pitches_run ON pitches(run_id);
`

// Store is the campaign log.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// dsn builds a file: URI for path. The driver splits the DSN at the first
// '?' and SQLite percent-decodes the path, so both must survive escaping.
func dsn(path string) string {
	u := url.URL{
		Scheme:   "file",
		Opaque:   (&url.URL{Path: filepath.ToSlash(path)}).EscapedPath(),
		RawQuery: "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
	}
	return u.String()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Run summarizes one recorded run.
type Run struct {
	ID        string    `json:"id" yaml:"id"`
	Niche     string    `json:"niche" yaml:"niche"`
	Location  string    `json:"location" yaml:"location"`
	Limit     int       `json:"limit" yaml:"limit"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Leads     int       `json:"leads" yaml:"leads"`
	Found     int       `json:"found" yaml:"found"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// PitchRecord is one recorded pitch attempt.
type PitchRecord struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	LeadName  string    `json:"lead_name" yaml:"lead_name"`
	Recipient string    `json:"recipient" yaml:"recipient"`
	Subject   string    `json:"subject" yaml:"subject"`
	Body      string    `json:"body" yaml:"body"`
	Provider  string    `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty"`
	SentAt    time.Time `json:"sent_at" yaml:"sent_at"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// RecordRun stores a run and its leads and returns the new run ID. A failed
// run is recorded with its error and no leads.
func (s *Store) RecordRun(ctx context.Context, params lead.Params, leads []lead.Lead, runErr error) (string, error) {
	id := uuid.NewString()
	found := 0
	for _, l := range leads {
		if l.Contact.Outcome == lead.ContactFound {
			found++
		}
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, niche, location, lead_limit, created_at, lead_count, found_count, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, params.Niche, params.Location, params.Limit, formatTime(s.now()), len(leads), found, errText)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (run_id, position, name, location, website, rating, contact_status, contact_email, contact_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, l := range leads {
		contactErr := ""
		if l.Contact.Err != nil {
			contactErr = l.Contact.Err.Error()
		}
		if _, err := stmt.ExecContext(ctx, id, i, l.Name, l.Location, l.Website, l.Rating,
			l.Contact.Outcome.String(), l.Email(), contactErr); err != nil {
			return "", fmt.Errorf("insert lead %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// RecordPitch stores a pitch attempt for a lead of runID. sendErr is nil for
// a delivered pitch.
func (s *Store) RecordPitch(ctx context.Context, runID string, l lead.Lead, p compose.Pitch, sendErr error) error {
	errText := ""
	if sendErr != nil {
		errText = sendErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pitches (run_id, lead_name, recipient, subject, body, provider, model, sent_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, l.Name, l.Email(), p.Subject, p.Body, p.Provider, p.Model, formatTime(s.now()), errText)
	if err != nil {
		return fmt.Errorf("insert pitch: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, niche, location, lead_limit, created_at, lead_count, found_count, error
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &r.Niche, &r.Location, &r.Limit, &created, &r.Leads, &r.Found, &r.Error); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, niche, location, lead_limit, created_at, lead_count, found_count, error
		 FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.Niche, &r.Location, &r.Limit, &created, &r.Leads, &r.Found, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = parseTime(created)
	return r, nil
}

// RunLeads returns the leads of runID in capture order.
func (s *Store) RunLeads(ctx context.Context, runID string) ([]lead.Lead, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, location, website, rating, contact_status, contact_email, contact_error
		 FROM leads WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []lead.Lead{}
	for rows.Next() {
		var l lead.Lead
		var status, email, contactErr string
		if err := rows.Scan(&l.Name, &l.Location, &l.Website, &l.Rating, &status, &email, &contactErr); err != nil {
			return nil, err
		}
		if err := l.Contact.Outcome.UnmarshalText([]byte(status)); err != nil {
			return nil, fmt.Errorf("lead %q: %w", l.Name, err)
		}
		l.Contact.Address = email
		if contactErr != "" {
			l.Contact.Err = errors.New(contactErr)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// RunPitches returns the pitch attempts of runID, oldest first.
func (s *Store) RunPitches(ctx context.Context, runID string) ([]PitchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, lead_name, recipient, subject, body, provider, model, sent_at, error
		 FROM pitches WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PitchRecord
	for rows.Next() {
		var p PitchRecord
		var sent string
		if err := rows.Scan(&p.RunID, &p.LeadName, &p.Recipient, &p.Subject, &p.Body, &p.Provider, &p.Model, &sent, &p.Error); err != nil {
			return nil, err
		}
		p.SentAt = parseTime(sent)
		out = append(out, p)
	}
	return out, rows.Err()
}

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
