package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/exova-dev/bmx-tfs/internal/host"
	"github.com/exova-dev/bmx-tfs/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite
// database. It doubles as the reference host.VariableStore and
// host.ArtifactRegistry for the standalone CLI.
type SQLiteStore struct {
	db *sqlx.DB
}

var (
	_ Store                 = (*SQLiteStore)(nil)
	_ host.VariableStore    = (*SQLiteStore)(nil)
	_ host.ArtifactRegistry = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertVariable creates or replaces a variable value within the given
// application/release/build scope.
func (s *SQLiteStore) UpsertVariable(
	ctx context.Context,
	scope host.VariableScope,
	name string,
	value string,
	sensitive bool,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO variables (
			application, release, build, name, value, sensitive, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scope.Application, scope.Release, scope.Build,
		name, value, boolToInt(sensitive), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting variable %s: %w", name, err)
	}

	return nil
}

// GetVariable retrieves a single variable by scope and name. A missing
// variable returns (nil, nil).
func (s *SQLiteStore) GetVariable(
	ctx context.Context,
	scope host.VariableScope,
	name string,
) (*model.Variable, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT application, release, build, name, value, sensitive, updated_at
		FROM variables
		WHERE application = ? AND release = ? AND build = ? AND name = ?`,
		scope.Application, scope.Release, scope.Build, name,
	)

	v, err := scanVariableRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting variable %s: %w", name, err)
	}

	return &v, nil
}

// ListVariables retrieves all variables in a scope, ordered by name.
func (s *SQLiteStore) ListVariables(
	ctx context.Context,
	scope host.VariableScope,
) ([]model.Variable, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT application, release, build, name, value, sensitive, updated_at
		FROM variables
		WHERE application = ? AND release = ? AND build = ?
		ORDER BY name`,
		scope.Application, scope.Release, scope.Build,
	)
	if err != nil {
		return nil, fmt.Errorf("querying variables: %w", err)
	}
	defer rows.Close()

	var variables []model.Variable
	for rows.Next() {
		v, err := scanVariable(rows)
		if err != nil {
			return nil, err
		}
		variables = append(variables, v)
	}

	return variables, rows.Err()
}

// RecordArtifact inserts or replaces the registry entry for a committed
// artifact.
func (s *SQLiteStore) RecordArtifact(
	ctx context.Context,
	spec host.ArtifactSpec,
	fileCount int,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO artifacts (
			id, application, release, build, deployable, name, file_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		spec.Application, spec.Release, spec.Build,
		spec.Deployable, spec.Name, fileCount, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording artifact %s: %w", spec.Name, err)
	}

	return nil
}

// ListArtifacts retrieves the registry entries for an application,
// newest first.
func (s *SQLiteStore) ListArtifacts(
	ctx context.Context,
	application string,
) ([]model.ArtifactRecord, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, application, release, build, deployable, name, file_count, created_at
		FROM artifacts
		WHERE application = ?
		ORDER BY created_at DESC`,
		application,
	)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	var records []model.ArtifactRecord
	for rows.Next() {
		r, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// scanVariable scans a variable row from a sqlx.Rows result set.
func scanVariable(rows *sqlx.Rows) (model.Variable, error) {
	var (
		v         model.Variable
		sensitive int
		updatedAt time.Time
	)

	err := rows.Scan(
		&v.Application, &v.Release, &v.Build,
		&v.Name, &v.Value, &sensitive, &updatedAt,
	)
	if err != nil {
		return model.Variable{}, fmt.Errorf("scanning variable row: %w", err)
	}

	v.Sensitive = sensitive != 0
	v.UpdatedAt = updatedAt

	return v, nil
}

// scanVariableRow scans a single variable row from a sqlx.Row.
func scanVariableRow(row *sqlx.Row) (model.Variable, error) {
	var (
		v         model.Variable
		sensitive int
		updatedAt time.Time
	)

	err := row.Scan(
		&v.Application, &v.Release, &v.Build,
		&v.Name, &v.Value, &sensitive, &updatedAt,
	)
	if err != nil {
		return model.Variable{}, err
	}

	v.Sensitive = sensitive != 0
	v.UpdatedAt = updatedAt

	return v, nil
}

// scanArtifact scans an artifact row from a sqlx.Rows result set.
func scanArtifact(rows *sqlx.Rows) (model.ArtifactRecord, error) {
	var (
		r         model.ArtifactRecord
		createdAt time.Time
	)

	err := rows.Scan(
		&r.ID, &r.Application, &r.Release, &r.Build,
		&r.Deployable, &r.Name, &r.FileCount, &createdAt,
	)
	if err != nil {
		return model.ArtifactRecord{}, fmt.Errorf("scanning artifact row: %w", err)
	}

	r.CreatedAt = createdAt

	return r, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
