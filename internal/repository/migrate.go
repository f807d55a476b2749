package repository

import (
	"context"
	"fmt"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           INTEGER,
	vendor            TEXT    NOT NULL,
	date              TEXT    NOT NULL,
	amount            REAL    NOT NULL DEFAULT 0,
	category          TEXT    NOT NULL,
	items_json        TEXT    NOT NULL DEFAULT '[]',
	subtotal          REAL    NOT NULL DEFAULT 0,
	tax               REAL    NOT NULL DEFAULT 0,
	payment_method    TEXT    NOT NULL,
	raw_data_json     TEXT,
	confidence_score  INTEGER NOT NULL DEFAULT 0,
	flagged           INTEGER NOT NULL DEFAULT 0,
	extraction_method TEXT    NOT NULL,
	source_file       TEXT    NOT NULL DEFAULT '',
	timestamp         TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                BIGSERIAL PRIMARY KEY,
	user_id           BIGINT,
	vendor            TEXT             NOT NULL,
	date              TEXT             NOT NULL,
	amount            DOUBLE PRECISION NOT NULL DEFAULT 0,
	category          TEXT             NOT NULL,
	items_json        TEXT             NOT NULL DEFAULT '[]',
	subtotal          DOUBLE PRECISION NOT NULL DEFAULT 0,
	tax               DOUBLE PRECISION NOT NULL DEFAULT 0,
	payment_method    TEXT             NOT NULL,
	raw_data_json     TEXT,
	confidence_score  INTEGER          NOT NULL DEFAULT 0,
	flagged           BOOLEAN          NOT NULL DEFAULT FALSE,
	extraction_method TEXT             NOT NULL,
	source_file       TEXT             NOT NULL DEFAULT '',
	timestamp         TEXT             NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
`

// Init creates the transactions table if it does not exist.
func (d *DB) Init(ctx context.Context) error {
	schema := sqliteSchema
	if d.Dialect == DialectPostgres {
		schema = postgresSchema
	}
	if _, err := d.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
