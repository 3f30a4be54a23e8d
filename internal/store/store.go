// Package store persists the engine's history buffer to SQLite so a
// replica can resume its identifier counter and replay its operations
// across process restarts. It knows nothing about CL placement; it only
// ever writes operations after the engine has already executed them
// (spec §6's "identifier service... counter persists across sessions").
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/repcore/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store is a durable log of executed operations, one row per
// (creator, op_number) as spec §3.6 requires for global uniqueness.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path, in WAL mode with a
// single writer connection (SQLite's own concurrency model), and applies
// schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutOperation records an already-executed operation's encoded form.
// Recording is idempotent: re-recording the same (creator, op_number)
// replaces the prior row, matching the core's own idempotent re-execution
// semantics.
func (s *Store) PutOperation(ctx context.Context, id ir.Identifier, kind ir.OpKind, encoded []byte, recordedAtUnix int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (creator, op_number, kind, encoded, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(creator, op_number) DO UPDATE SET
			kind = excluded.kind,
			encoded = excluded.encoded,
			recorded_at = excluded.recorded_at
	`, string(id.Creator), id.OpNumber, string(kind), string(encoded), recordedAtUnix)
	if err != nil {
		return fmt.Errorf("store: put operation %s: %w", id, err)
	}
	return nil
}

// LoadAll returns every persisted operation's encoded form, ordered by
// recorded_at, then creator, then op_number, for replay into a freshly
// constructed Engine.
func (s *Store) LoadAll(ctx context.Context) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT encoded FROM operations ORDER BY recorded_at ASC, creator ASC, op_number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: load operations: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("store: scan operation: %w", err)
		}
		out = append(out, []byte(encoded))
	}
	return out, rows.Err()
}

// HighestOpNumber returns the highest op_number this store has ever
// recorded for peer, and whether any row exists at all. Used to seed
// IdentifierService above every previously issued value on resume.
func (s *Store) HighestOpNumber(ctx context.Context, peer ir.PeerID) (uint64, bool, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(op_number) FROM operations WHERE creator = ?
	`, string(peer)).Scan(&n)
	if err != nil {
		return 0, false, fmt.Errorf("store: highest op_number for %s: %w", peer, err)
	}
	if !n.Valid {
		return 0, false, nil
	}
	return uint64(n.Int64), true, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: apply pragma %q: %w", p, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("store: read user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("store: set user_version: %w", err)
		}
	}
	return nil
}
