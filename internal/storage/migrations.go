package storage

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// sqliteMigrations is the ordered migration list for the local backend.
// Versions must be sequential starting from 1.
var sqliteMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS todos (
	id                    TEXT PRIMARY KEY,
	owner_id              TEXT NOT NULL,
	text                  TEXT NOT NULL,
	completed             INTEGER NOT NULL DEFAULT 0,
	folder_id             TEXT,
	due_date              TEXT,
	reminder_at           TEXT,
	recurring_pattern     TEXT,
	completed_occurrences INTEGER NOT NULL DEFAULT 0,
	created_at            TEXT NOT NULL,
	updated_at            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_todos_owner ON todos(owner_id);
CREATE INDEX IF NOT EXISTS idx_todos_due_date ON todos(due_date);

CREATE TABLE IF NOT EXISTS completion_records (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	todo_id        TEXT NOT NULL,
	scheduled_date TEXT NOT NULL,
	completed_at   TEXT,
	updated_at     TEXT NOT NULL,
	UNIQUE(todo_id, scheduled_date)
);

CREATE INDEX IF NOT EXISTS idx_completions_owner_date
	ON completion_records(owner_id, scheduled_date);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// postgresMigrations is the ordered migration list for the remote backend.
// The notify triggers feed the LISTEN/NOTIFY change channel consumed by
// PostgresStore.Subscribe, so mutations from any device reach every session.
var postgresMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS todos (
	id                    BIGSERIAL PRIMARY KEY,
	owner_id              TEXT NOT NULL,
	text                  TEXT NOT NULL,
	completed             BOOLEAN NOT NULL DEFAULT FALSE,
	folder_id             TEXT,
	due_date              TIMESTAMPTZ,
	reminder_at           TIMESTAMPTZ,
	recurring_pattern     JSONB,
	completed_occurrences INTEGER NOT NULL DEFAULT 0,
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_todos_owner ON todos(owner_id);
CREATE INDEX IF NOT EXISTS idx_todos_due_date ON todos(due_date);

CREATE TABLE IF NOT EXISTS completion_records (
	id             BIGSERIAL PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	todo_id        BIGINT NOT NULL REFERENCES todos(id) ON DELETE CASCADE,
	scheduled_date TEXT NOT NULL,
	completed_at   TIMESTAMPTZ,
	updated_at     TIMESTAMPTZ NOT NULL,
	UNIQUE(todo_id, scheduled_date)
);

CREATE INDEX IF NOT EXISTS idx_completions_owner_date
	ON completion_records(owner_id, scheduled_date);

CREATE OR REPLACE FUNCTION evertodo_notify_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('evertodo_changes',
		TG_TABLE_NAME || ':' || COALESCE(NEW.owner_id, OLD.owner_id));
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS todos_notify ON todos;
CREATE TRIGGER todos_notify
	AFTER INSERT OR UPDATE OR DELETE ON todos
	FOR EACH ROW EXECUTE FUNCTION evertodo_notify_change();

DROP TRIGGER IF EXISTS completion_records_notify ON completion_records;
CREATE TRIGGER completion_records_notify
	AFTER INSERT OR UPDATE OR DELETE ON completion_records
	FOR EACH ROW EXECUTE FUNCTION evertodo_notify_change();

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
