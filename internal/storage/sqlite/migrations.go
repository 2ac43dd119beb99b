package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist. One table per cache
// partition: expenses, people, groups, pending operations, metadata.
const schema = `
CREATE TABLE IF NOT EXISTS expenses (
    key TEXT PRIMARY KEY,
    remote_id INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL,
    amount REAL NOT NULL,
    payer_id INTEGER NOT NULL DEFAULT 0,
    payer_name TEXT NOT NULL DEFAULT '',
    participants TEXT NOT NULL DEFAULT '[]',
    date TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    group_id INTEGER NOT NULL DEFAULT 0,
    group_name TEXT NOT NULL DEFAULT '',
    settled INTEGER NOT NULL DEFAULT 0,
    sync_state TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS people (
    id INTEGER PRIMARY KEY,
    display_name TEXT NOT NULL,
    is_default_participant INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS groups (
    key TEXT PRIMARY KEY,
    remote_id INTEGER NOT NULL DEFAULT 0,
    display_name TEXT NOT NULL,
    members TEXT NOT NULL DEFAULT '[]',
    sync_state TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_ops (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    entity TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '',
    local_key TEXT NOT NULL DEFAULT '',
    remote_id INTEGER NOT NULL DEFAULT 0,
    enqueued_at INTEGER NOT NULL,
    status TEXT NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_sync_state ON expenses(sync_state);
CREATE INDEX IF NOT EXISTS idx_expenses_remote_id ON expenses(remote_id);
CREATE INDEX IF NOT EXISTS idx_groups_sync_state ON groups(sync_state);
CREATE INDEX IF NOT EXISTS idx_pending_ops_status ON pending_ops(status);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
