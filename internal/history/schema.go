package history

// Migration describes a single schema migration. Migrations are ordered by
// Version and are idempotent.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the ordered list of all schema migrations. Apply them
// sequentially; skip any whose Version is already recorded in the
// schema_migrations table.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: runs table with report payload",
		SQL: `
CREATE TABLE IF NOT EXISTS runs (
    id             TEXT PRIMARY KEY,
    base_ref       TEXT NOT NULL DEFAULT '',
    commit_sha     TEXT NOT NULL DEFAULT '',
    changed_files  INTEGER NOT NULL DEFAULT 0,
    affected_tests INTEGER NOT NULL DEFAULT 0,
    uncovered      INTEGER NOT NULL DEFAULT 0,
    status         TEXT NOT NULL DEFAULT '',
    exit_code      INTEGER NOT NULL DEFAULT 0,
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    report         TEXT NOT NULL DEFAULT '{}',
    created_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`,
	},
}
