package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS schedule_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER,
        run_id TEXT,
        status TEXT,
        record TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schedule_runs (ts, run_id, status, record) VALUES (?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.RunID, rec.Status, string(b))
	return err
}

// Query returns records matching q. Time and status filters run in SQL, the
// client filter on the decoded record.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT record FROM schedule_runs WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Status != "" {
		query += ` AND status = ?`
		args = append(args, q.Status)
	}
	query += ` ORDER BY ts, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		if q.Match(r) {
			res = append(res, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return q.limit(res), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
