// Package statusdb keeps the last outcome of every pair and a history of
// runs in a local SQLite database.
package statusdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/openmined/davsync/internal/db"
	"github.com/openmined/davsync/internal/sync"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var ErrRunNotFound = errors.New("run not found")

// PairStatus is the last reported outcome of one pair.
type PairStatus struct {
	LocalPath  string       `json:"local_path"`
	RemotePath string       `json:"remote_path"`
	Outcome    sync.Outcome `json:"outcome"`
	RunID      string       `json:"run_id"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Run is one check or sync invocation.
type Run struct {
	ID         string       `json:"id"`
	Mode       string       `json:"mode"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Summary    sync.Summary `json:"summary"`
	Error      string       `json:"error,omitempty"`
}

type dbPairStatus struct {
	LocalPath  string `db:"local_path"`
	RemotePath string `db:"remote_path"`
	Outcome    string `db:"outcome"`
	RunID      string `db:"run_id"`
	UpdatedAt  string `db:"updated_at"`
}

type dbRun struct {
	ID               string         `db:"id"`
	Mode             string         `db:"mode"`
	StartedAt        string         `db:"started_at"`
	FinishedAt       sql.NullString `db:"finished_at"`
	Synchronized     int            `db:"synchronized"`
	RemoteHasChanges int            `db:"remote_has_changes"`
	LocalHasChanges  int            `db:"local_has_changes"`
	Unsynchronizable int            `db:"unsynchronizable"`
	UploadedBytes    int64          `db:"uploaded_bytes"`
	DownloadedBytes  int64          `db:"downloaded_bytes"`
	Error            string         `db:"error"`
}

type Store struct {
	db    *sqlx.DB
	clock clockwork.Clock
}

type Option func(*Store)

func WithClock(c clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// Open opens or creates the database at path and migrates it.
func Open(path string, opts ...Option) (*Store, error) {
	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}

	conn, err := db.NewSqliteDb(db.WithPath(path), db.WithMaxOpenConns(1), db.WithMigrations(migrations))
	if err != nil {
		return nil, fmt.Errorf("failed to open status db: %w", err)
	}

	s := &Store{db: conn, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		slog.Error("failed to close status db", "error", err)
		return err
	}
	return nil
}

func (s *Store) now() string {
	return s.clock.Now().UTC().Format(timeLayout)
}

// BeginRun records the start of a run and returns its id.
func (s *Store) BeginRun(ctx context.Context, mode sync.Mode) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, mode, started_at) VALUES (?, ?, ?)",
		id, mode.String(), s.now())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// RecordOutcome replaces the stored status of the pair.
func (s *Store) RecordOutcome(ctx context.Context, runID string, pair sync.Pair, outcome sync.Outcome) error {
	row := dbPairStatus{
		LocalPath:  pair.LocalPath,
		RemotePath: pair.RemotePath,
		Outcome:    outcome.String(),
		RunID:      runID,
		UpdatedAt:  s.now(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO pair_status (local_path, remote_path, outcome, run_id, updated_at)
		VALUES (:local_path, :remote_path, :outcome, :run_id, :updated_at)
		ON CONFLICT(local_path) DO UPDATE SET
			remote_path = excluded.remote_path,
			outcome = excluded.outcome,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", pair.LocalPath, err)
	}
	return nil
}

// FinishRun stores the summary. runErr is the fatal error of the run, if any.
func (s *Store) FinishRun(ctx context.Context, runID string, summary sync.Summary, runErr error) error {
	var errText string
	if runErr != nil {
		errText = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?,
			synchronized = ?,
			remote_has_changes = ?,
			local_has_changes = ?,
			unsynchronizable = ?,
			uploaded_bytes = ?,
			downloaded_bytes = ?,
			error = ?
		WHERE id = ?`,
		s.now(),
		summary.Synchronized,
		summary.RemoteHasChanges,
		summary.LocalHasChanges,
		summary.Unsynchronizable,
		summary.Uploaded,
		summary.Downloaded,
		errText,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// PairStatuses lists the stored statuses ordered by local path.
func (s *Store) PairStatuses(ctx context.Context) ([]PairStatus, error) {
	var rows []dbPairStatus
	err := s.db.SelectContext(ctx, &rows,
		"SELECT local_path, remote_path, outcome, run_id, updated_at FROM pair_status ORDER BY local_path")
	if err != nil {
		return nil, fmt.Errorf("failed to list pair status: %w", err)
	}

	statuses := make([]PairStatus, 0, len(rows))
	for _, r := range rows {
		outcome, err := sync.ParseOutcome(r.Outcome)
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", r.LocalPath, err)
		}
		updated, err := time.Parse(timeLayout, r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("pair %s: failed to parse updated_at: %w", r.LocalPath, err)
		}
		statuses = append(statuses, PairStatus{
			LocalPath:  r.LocalPath,
			RemotePath: r.RemotePath,
			Outcome:    outcome,
			RunID:      r.RunID,
			UpdatedAt:  updated,
		})
	}
	return statuses, nil
}

// ForgetPair drops the status of a pair that no longer exists.
func (s *Store) ForgetPair(ctx context.Context, localPath string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pair_status WHERE local_path = ?", localPath)
	return err
}

// Runs returns the most recent runs first. limit <= 0 means all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT * FROM runs ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []dbRun
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		run, err := r.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r dbRun) toRun() (Run, error) {
	started, err := time.Parse(timeLayout, r.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: failed to parse started_at: %w", r.ID, err)
	}

	run := Run{
		ID:        r.ID,
		Mode:      r.Mode,
		StartedAt: started,
		Error:     r.Error,
		Summary: sync.Summary{
			Synchronized:     r.Synchronized,
			RemoteHasChanges: r.RemoteHasChanges,
			LocalHasChanges:  r.LocalHasChanges,
			Unsynchronizable: r.Unsynchronizable,
			Uploaded:         r.UploadedBytes,
			Downloaded:       r.DownloadedBytes,
		},
	}
	if r.FinishedAt.Valid {
		finished, err := time.Parse(timeLayout, r.FinishedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: failed to parse finished_at: %w", r.ID, err)
		}
		run.FinishedAt = &finished
		run.Summary.Duration = finished.Sub(started)
	}
	return run, nil
}
