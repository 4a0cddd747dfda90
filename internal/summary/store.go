package summary

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pupper42/roo-analysis/internal/compare"
)

//go:embed schema.sql
var schemaSQL string

// Run is one invocation of a batch command.
type Run struct {
	ID         string
	Command    string
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRun stamps a new run with a random id.
func NewRun(command, kind string) Run {
	return Run{
		ID:        uuid.NewString(),
		Command:   command,
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}
}

// Store is the SQLite summary index.
type Store struct {
	dbPath string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewStore creates a store backed by the database file at dbPath. The file
// and schema are created on first use.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}
		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

const insertRunSQL = `
INSERT INTO runs (id, command, kind, started_at, finished_at)
VALUES (?, ?, ?, ?, ?)`

const insertArtifactSQL = `
INSERT INTO artifacts (run_id, source, artifact, satellite, product, offset_ms, status, error,
                       records, extrapolated, ra_mean, ra_std, dec_mean, dec_std, norm)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectArtifactsSQL = `
SELECT run_id, source, COALESCE(artifact, ''), COALESCE(satellite, ''), COALESCE(product, ''),
       offset_ms, status, COALESCE(error, ''), records, extrapolated,
       ra_mean, ra_std, dec_mean, dec_std, norm
FROM artifacts
WHERE (? = '' OR satellite = ?) AND (? = '' OR run_id = ?)
ORDER BY satellite, offset_ms, source, id`

// Record stores a finished run and its summaries in one transaction.
func (s *Store) Record(ctx context.Context, run Run, rows []Summary) (err error) {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	if _, err = tx.ExecContext(ctx, insertRunSQL, run.ID, run.Command, run.Kind, run.StartedAt.UTC(), finished); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertArtifactSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	for _, r := range rows {
		_, err = stmt.ExecContext(ctx, run.ID, r.Source, nullString(r.Artifact), nullString(r.Satellite),
			nullString(r.Product), compare.OffsetMillis(r.Offset), string(r.Status), nullString(r.Error),
			r.Records, r.Extrapolated, r.RAMean, r.RAStd, r.DecMean, r.DecStd, r.Norm)
		if err != nil {
			_ = stmt.Close()
			return fmt.Errorf("inserting artifact %s: %w", r.Source, err)
		}
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("closing statement: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// List returns stored summaries, optionally filtered by satellite and run
// id (empty matches all), ordered by satellite then offset.
func (s *Store) List(ctx context.Context, satellite, runID string) (rows []Summary, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	res, err := db.QueryContext(ctx, selectArtifactsSQL, satellite, satellite, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer closeWithError(res, &err)

	for res.Next() {
		var r Summary
		var offsetMs int64
		var status string
		if err = res.Scan(&r.RunID, &r.Source, &r.Artifact, &r.Satellite, &r.Product, &offsetMs, &status, &r.Error,
			&r.Records, &r.Extrapolated, &r.RAMean, &r.RAStd, &r.DecMean, &r.DecStd, &r.Norm); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		r.Offset = time.Duration(offsetMs) * time.Millisecond
		r.Status = compare.Status(status)
		rows = append(rows, r)
	}
	if err = res.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifacts: %w", err)
	}
	return rows, nil
}

// Close releases the database.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
			s.db = nil
		}
	})
	return s.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ErrNoRuns is returned by Latest on an empty index.
var ErrNoRuns = errors.New("no runs recorded")

// Latest returns the id of the most recently started run.
func (s *Store) Latest(ctx context.Context) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}
	var id string
	err = db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("querying latest run: %w", err)
	}
	return id, nil
}
