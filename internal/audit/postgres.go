// internal/audit/postgres.go
package audit

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresSink mirrors every audit record into an audit_records table so the
// per-file history can be queried with SQL instead of grepping the JSONL log.
type PostgresSink struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id      TEXT PRIMARY KEY,
	ts      TIMESTAMPTZ NOT NULL,
	path    TEXT NOT NULL,
	stage   TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detail  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_records_path_idx ON audit_records (path, ts);
`

// NewPostgresSink connects and ensures the audit_records table exists.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}

	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) Append(rec *Record) error {
	const query = `
	INSERT INTO audit_records (id, ts, path, stage, outcome, detail)
	VALUES (:id, :ts, :path, :stage, :outcome, :detail)
	`
	if _, err := s.db.NamedExec(query, rec); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
