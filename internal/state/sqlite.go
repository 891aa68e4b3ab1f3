package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the SQLite backed deployment registry.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an already migrated connection.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Path returns the database file the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordDeployment stores d as the current deployment of its folder and
// appends it to the history.
func (s *Store) RecordDeployment(ctx context.Context, d Deployment, action Action) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if d.DeployedAt.IsZero() {
		d.DeployedAt = time.Now()
	}
	deployedAt := formatTime(d.DeployedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deployments (host, folder, dashboard_id, display_name, path, fingerprint, etag, deployed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (host, folder) DO UPDATE SET
			dashboard_id = excluded.dashboard_id,
			display_name = excluded.display_name,
			path = excluded.path,
			fingerprint = excluded.fingerprint,
			etag = excluded.etag,
			deployed_at = excluded.deployed_at`,
		d.Host, d.Folder, d.DashboardID, d.DisplayName, d.Path, d.Fingerprint, d.Etag, deployedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record deployment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO deploy_history (id, host, folder, dashboard_id, fingerprint, action, deployed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), d.Host, d.Folder, d.DashboardID, d.Fingerprint, string(action), deployedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record deploy history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deployment: %w", err)
	}
	return nil
}

// GetDeployment returns the current deployment of folder on host, or an
// error wrapping ErrNotFound.
func (s *Store) GetDeployment(ctx context.Context, host, folder string) (*Deployment, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT host, folder, dashboard_id, display_name, path, fingerprint, etag, deployed_at
		FROM deployments WHERE host = ? AND folder = ?`,
		host, folder,
	)
	d, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotFound, folder, host)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}
	return d, nil
}

// ListDeployments returns all current deployments, most recent first.
func (s *Store) ListDeployments(ctx context.Context) ([]*Deployment, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT host, folder, dashboard_id, display_name, path, fingerprint, etag, deployed_at
		FROM deployments ORDER BY deployed_at DESC, folder`)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// History returns the deploy events of folder on host, oldest first.
func (s *Store) History(ctx context.Context, host, folder string) ([]Event, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, host, folder, dashboard_id, fingerprint, action, deployed_at
		FROM deploy_history WHERE host = ? AND folder = ? ORDER BY deployed_at, rowid`,
		host, folder,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get deploy history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var (
			e          Event
			action, at string
		)
		if err := rows.Scan(&e.ID, &e.Host, &e.Folder, &e.DashboardID, &e.Fingerprint, &action, &at); err != nil {
			return nil, fmt.Errorf("failed to scan deploy event: %w", err)
		}
		e.Action = Action(action)
		if e.DeployedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row scanner) (*Deployment, error) {
	var (
		d  Deployment
		at string
	)
	if err := row.Scan(&d.Host, &d.Folder, &d.DashboardID, &d.DisplayName, &d.Path, &d.Fingerprint, &d.Etag, &at); err != nil {
		return nil, err
	}
	t, err := parseTime(at)
	if err != nil {
		return nil, err
	}
	d.DeployedAt = t
	return &d, nil
}

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
