package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS variables (
	application TEXT NOT NULL,
	release     TEXT NOT NULL,
	build       TEXT NOT NULL,
	name        TEXT NOT NULL,
	value       TEXT NOT NULL DEFAULT '',
	sensitive   INTEGER NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (application, release, build, name)
);

CREATE TABLE IF NOT EXISTS artifacts (
	id          TEXT PRIMARY KEY,
	application TEXT NOT NULL,
	release     TEXT NOT NULL,
	build       TEXT NOT NULL,
	deployable  TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	file_count  INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(application, release, build, name)
);

CREATE INDEX IF NOT EXISTS idx_artifacts_application ON artifacts(application);
CREATE INDEX IF NOT EXISTS idx_variables_application ON variables(application);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
