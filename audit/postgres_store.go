package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the trail in a pgx pool so it survives restarts and
// is shared across instances.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			action TEXT NOT NULL,
			username TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return fmt.Errorf("unable to create audit_log table: %v", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO audit_log (action, username, details, session_id) VALUES ($1, $2, $3, $4)`,
			e.Action, e.User, e.Details, e.SessionID)
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (ts, action, username, details, session_id) VALUES ($1, $2, $3, $4, $5)`,
		e.Timestamp, e.Action, e.User, e.Details, e.SessionID)
	return err
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT ts, action, username, details, session_id FROM audit_log WHERE 1=1`
	var args []any

	if f.User != "" {
		args = append(args, f.User)
		query += fmt.Sprintf(" AND username = $%d", len(args))
	}
	if f.ActionContains != "" {
		args = append(args, "%"+f.ActionContains+"%")
		query += fmt.Sprintf(" AND action ILIKE $%d", len(args))
	}
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	query += " ORDER BY ts ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Timestamp, &e.Action, &e.User, &e.Details, &e.SessionID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return applyLimit(entries, f.Limit), nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE audit_log`)
	return err
}
