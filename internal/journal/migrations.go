package journal

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

CREATE TABLE IF NOT EXISTS runs (
	id                   TEXT PRIMARY KEY,
	pipeline             TEXT NOT NULL,
	status               TEXT NOT NULL,
	message              TEXT NOT NULL DEFAULT '',
	emails_scanned       INTEGER NOT NULL DEFAULT 0,
	attachments_uploaded INTEGER NOT NULL DEFAULT 0,
	alert_count          INTEGER NOT NULL DEFAULT 0,
	errors               INTEGER NOT NULL DEFAULT 0,
	started_at           DATETIME NOT NULL,
	finished_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	message_id  TEXT NOT NULL,
	filename    TEXT NOT NULL,
	stored_name TEXT NOT NULL,
	size        INTEGER NOT NULL DEFAULT 0,
	stored      INTEGER NOT NULL DEFAULT 0,
	recorded    INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_attachments_run_id ON attachments(run_id);
CREATE INDEX IF NOT EXISTS idx_attachments_stored_name ON attachments(stored_name);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
