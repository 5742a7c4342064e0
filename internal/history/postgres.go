package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx used by PostgresRecorder.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS processing_history (
	id          UUID PRIMARY KEY,
	action      TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	row_count   INTEGER NOT NULL DEFAULT 0,
	col_count   INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	error_code  TEXT,
	ip_address  TEXT,
	user_agent  TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS processing_history_created_at_idx
	ON processing_history (created_at DESC);
`

const insertSQL = `
INSERT INTO processing_history
	(id, action, file_name, row_count, col_count, error, error_code, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const recentSQL = `
SELECT id, action, file_name, row_count, col_count, error, error_code, ip_address, user_agent, created_at
FROM processing_history
ORDER BY created_at DESC
LIMIT $1`

// PostgresRecorder stores events in PostgreSQL.
type PostgresRecorder struct {
	db DBTX
}

// NewPostgresRecorder creates a recorder over db. Call EnsureSchema once
// before the first Record.
func NewPostgresRecorder(db DBTX) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// EnsureSchema creates the history table and index if they do not exist.
func (p *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create processing_history: %w", err)
	}
	return nil
}

// Record inserts e.
func (p *PostgresRecorder) Record(ctx context.Context, e Event) error {
	e = prepare(e)

	_, err := p.db.Exec(ctx, insertSQL,
		toPgUUID(e.ID),
		string(e.Action),
		e.FileName,
		toPgInt4(e.Rows),
		toPgInt4(e.Columns),
		toPgText(e.Error),
		toPgText(e.ErrorCode),
		toPgText(e.IPAddress),
		toPgText(e.UserAgent),
		pgtype.Timestamptz{Time: e.CreatedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert history event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (p *PostgresRecorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := p.db.Query(ctx, recentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			id                       pgtype.UUID
			action, fileName         string
			rowCount, colCount       pgtype.Int4
			errText, errCode, ip, ua pgtype.Text
			createdAt                pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &action, &fileName, &rowCount, &colCount, &errText, &errCode, &ip, &ua, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		events = append(events, Event{
			ID:        uuidToString(id),
			Action:    Action(action),
			FileName:  fileName,
			Rows:      int(rowCount.Int32),
			Columns:   int(colCount.Int32),
			Error:     errText.String,
			ErrorCode: errCode.String,
			IPAddress: ip.String,
			UserAgent: ua.String,
			CreatedAt: createdAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return events, nil
}

// toPgText converts a string to pgtype.Text; empty strings become NULL.
func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgInt4(i int) pgtype.Int4 {
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

// toPgUUID parses s; invalid or empty input becomes NULL.
func toPgUUID(s string) pgtype.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
