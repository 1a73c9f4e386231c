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

CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY,
	sender       TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	received_at  DATETIME NOT NULL,
	outcome      TEXT NOT NULL,
	action_title TEXT NOT NULL DEFAULT '',
	params       TEXT NOT NULL DEFAULT '{}',
	error        TEXT NOT NULL DEFAULT '',
	processed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_outcome ON records(outcome);
CREATE INDEX IF NOT EXISTS idx_records_sender ON records(sender);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
