// Package postgres provides the PostgreSQL-backed transcript store.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cuboid-ai/callingbot/internal/transcript"
)

// Schema is the SQL DDL for the call_transcripts table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS call_transcripts (
    id         BIGSERIAL PRIMARY KEY,
    call_id    TEXT NOT NULL,
    speaker    TEXT NOT NULL,
    line       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_call_transcripts_call ON call_transcripts(call_id, created_at);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a [transcript.Store] backed by a PostgreSQL database.
type Store struct {
	db DB
}

// Compile-time interface check.
var _ transcript.Store = (*Store)(nil)

// New creates a Store over the given database connection or pool. The caller
// is responsible for calling [Store.Migrate] to ensure the schema exists
// before issuing queries.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// call_transcripts table and index if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("transcript: migrate: %w", err)
	}
	return nil
}

// Record appends one line to the call's transcript.
func (s *Store) Record(ctx context.Context, callID, speaker, text string) error {
	const query = `INSERT INTO call_transcripts (call_id, speaker, line) VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, query, callID, speaker, text); err != nil {
		return fmt.Errorf("transcript: record %q: %w", callID, err)
	}
	return nil
}

// Recent returns the call's newest entries in chronological order. A
// non-positive limit returns the full transcript.
func (s *Store) Recent(ctx context.Context, callID string, limit int) ([]transcript.Entry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		const query = `
			SELECT call_id, speaker, line, created_at
			FROM call_transcripts
			WHERE call_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`
		rows, err = s.db.Query(ctx, query, callID, limit)
	} else {
		const query = `
			SELECT call_id, speaker, line, created_at
			FROM call_transcripts
			WHERE call_id = $1
			ORDER BY created_at DESC, id DESC`
		rows, err = s.db.Query(ctx, query, callID)
	}
	if err != nil {
		return nil, fmt.Errorf("transcript: recent %q: %w", callID, err)
	}
	defer rows.Close()

	var entries []transcript.Entry
	for rows.Next() {
		var e transcript.Entry
		if err := rows.Scan(&e.CallID, &e.Speaker, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("transcript: recent scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: recent %q: %w", callID, err)
	}

	// The query reads newest-first; flip to chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
