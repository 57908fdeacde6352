package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "modernc.org/sqlite"
)

// Open opens (or creates) the embedded store at path and applies the schema.
// A single connection serializes all writes at the handle, which is what the
// atomic allocation and compare-and-set paths rely on.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach store: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema. Statements are idempotent; uniqueness of the
// payment signature and deposit address lives here, not in application code.
func Migrate(ctx context.Context, db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS seal_sessions (
			session_id TEXT PRIMARY KEY,
			source_chain TEXT NOT NULL,
			destination_wallet TEXT NOT NULL,
			deposit_address TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			payment_tx_signature TEXT UNIQUE,
			nft_contract TEXT NOT NULL,
			token_id TEXT NOT NULL,
			metadata_uri TEXT NOT NULL DEFAULT '',
			seal_hash TEXT NOT NULL DEFAULT '',
			attestation_signature TEXT,
			attestation_public_key TEXT,
			presign_slot_id TEXT,
			mint_tx_ref TEXT,
			last_error TEXT,
			last_error_kind TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_seal_sessions_status ON seal_sessions(status, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_seal_sessions_seal_hash ON seal_sessions(seal_hash);`,
		`CREATE TABLE IF NOT EXISTS presign_slots (
			slot_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			allocated_at TIMESTAMP,
			expires_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_presign_slots_claim ON presign_slots(status, created_at);`,
		`CREATE TABLE IF NOT EXISTS listener_cursors (
			subscription_key TEXT PRIMARY KEY,
			position TEXT NOT NULL,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite constraint failure. The
// extended result codes all share the primary SQLITE_CONSTRAINT code (19).
func isUniqueViolation(err error) bool {
	var se *sqlite3.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == 19
	}
	return false
}
