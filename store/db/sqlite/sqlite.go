package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/manas/internal/profile"
	"github.com/hrygo/manas/store"
)

// SQLite is the default single-node driver for development and small deployments.
// Writes are serialized through a single connection.

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database at profile.DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// With modernc.org/sqlite each pragma must be prefixed with `_pragma=`.
	// WAL avoids reader/writer lock contention; busy_timeout absorbs short write bursts.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS user_profile (
	user_id TEXT NOT NULL PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	dietary_preference TEXT NOT NULL DEFAULT '',
	learning_level TEXT NOT NULL DEFAULT '',
	interests TEXT NOT NULL DEFAULT '[]',
	location TEXT NOT NULL DEFAULT '',
	latitude REAL,
	longitude REAL,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS task (
	id TEXT NOT NULL PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	priority TEXT NOT NULL DEFAULT '',
	due_ts BIGINT,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_user_status ON task (user_id, status);

CREATE TABLE IF NOT EXISTS memory (
	id TEXT NOT NULL PRIMARY KEY,
	user_id TEXT NOT NULL,
	content TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT 'explicit',
	created_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_user ON memory (user_id, created_ts);
`

func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply sqlite schema")
	}
	return nil
}
