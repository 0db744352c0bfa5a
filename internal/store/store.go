// Package store records screened applications.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/spigell/resume-screener/internal/apperr"
	"github.com/spigell/resume-screener/internal/store/migrations"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	StatusScreened = "screened"

	// fixed width so timestamps sort lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Application is one persisted screening result.
type Application struct {
	ID             string
	CandidateName  string
	CandidateEmail string
	JobTitle       string
	Company        string
	Score          int
	Feedback       string
	ResumeData     string
	JobData        string
	Status         string
	CreatedAt      time.Time
}

// Store persists applications in SQLite or PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
	logger *zap.Logger

	// writes are serialized so concurrent runs never interleave partial records
	mu sync.Mutex
}

// Open connects to the database and applies pending migrations.
// For sqlite, dsn is a file path; its directory is created when missing.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
		if dsn == "" {
			return nil, errors.New("sqlite database path is required")
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{db: db, driver: driver, logger: logger}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Persist inserts one application in its own transaction.
// The id is the run identifier, so persisting the same run twice fails instead of duplicating it.
func (s *Store) Persist(ctx context.Context, app Application) error {
	if strings.TrimSpace(app.ID) == "" {
		return apperr.New(apperr.KindStorage, "application id is required")
	}
	if app.Status == "" {
		app.Status = StatusScreened
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO applications (
			id, candidate_name, candidate_email, applied_job_title, company,
			match_score, feedback, resume_data, jd_data, status, application_timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), app.ID, app.CandidateName, app.CandidateEmail, app.JobTitle, app.Company,
		app.Score, app.Feedback, app.ResumeData, app.JobData, app.Status,
		app.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "insert application %s", app.ID)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "commit application %s", app.ID)
	}

	s.logger.Debug("application stored",
		zap.String("id", app.ID),
		zap.String("job_title", app.JobTitle),
		zap.Int("score", app.Score),
	)

	return nil
}

// ListByJob returns applications for a job title, newest first. Title matching ignores case.
func (s *Store) ListByJob(ctx context.Context, jobTitle string) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, candidate_name, candidate_email, applied_job_title, company,
			match_score, feedback, resume_data, jd_data, status, application_timestamp
		FROM applications
		WHERE LOWER(applied_job_title) = LOWER(?)
		ORDER BY application_timestamp DESC, id
	`), strings.TrimSpace(jobTitle))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "query applications")
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var (
			app     Application
			created string
		)
		if err := rows.Scan(&app.ID, &app.CandidateName, &app.CandidateEmail, &app.JobTitle, &app.Company,
			&app.Score, &app.Feedback, &app.ResumeData, &app.JobData, &app.Status, &created); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "scan application")
		}
		if app.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "parse timestamp of application %s", app.ID)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "iterate applications")
	}

	return apps, nil
}

// rebind rewrites ? placeholders for drivers that use numbered parameters.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// migrate applies NNN_name.up.sql files newer than the recorded schema version.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(ctx, version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		s.logger.Debug("migration applied", zap.String("name", name))
	}

	return nil
}

func (s *Store) applyMigration(ctx context.Context, version int, statement string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, statement); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
		version, time.Now().UTC().Format(timeLayout)); err != nil {
		return err
	}
	return tx.Commit()
}
