package queue

import (
	"assettree/internal/core/ports"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

var _ ports.WriteSpoolPort[int] = (*SQLiteSpool[int])(nil)

// SQLiteSpool persists overflow writes as JSON payloads, scoped by partition.
type SQLiteSpool[T any] struct {
	db           *sql.DB
	partitionKey string
}

type spoolPayload[T any] struct {
	Version int `json:"version"`
	Request T   `json:"request"`
}

func OpenSQLiteSpool[T any](path string, partitionKey string) (*SQLiteSpool[T], error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("spool path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("spool path %q is a directory", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create spool directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open spool sqlite %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping spool sqlite %q: %w", cleanPath, err)
	}
	if err := migrateSpoolSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(partitionKey)
	if key == "" {
		key = "default"
	}
	return &SQLiteSpool[T]{db: db, partitionKey: key}, nil
}

func (s *SQLiteSpool[T]) Enqueue(req T) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("spool not initialized")
	}
	now := time.Now().UTC().UnixMilli()
	payload := spoolPayload[T]{Version: 1, Request: req}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal spool payload: %w", err)
	}
	_, err = s.db.Exec(`
INSERT INTO write_spool (partition_key, payload, attempts, next_attempt_at, created_at, last_error)
VALUES (?, ?, 0, ?, ?, '')
`, s.partitionKey, raw, now, now)
	if err != nil {
		return fmt.Errorf("enqueue spool write: %w", err)
	}
	return nil
}

func (s *SQLiteSpool[T]) DequeueBatch(ctx context.Context, maxItems int) ([]ports.SpoolRow[T], error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("spool not initialized")
	}
	if maxItems <= 0 {
		maxItems = 1
	}
	now := time.Now().UTC().UnixMilli()
	rows, err := s.db.QueryContext(ctx, `
SELECT id, payload, attempts
FROM write_spool
WHERE partition_key = ? AND next_attempt_at <= ?
ORDER BY id ASC
LIMIT ?
`, s.partitionKey, now, maxItems)
	if err != nil {
		return nil, fmt.Errorf("dequeue spool batch: %w", err)
	}
	defer rows.Close()

	out := make([]ports.SpoolRow[T], 0, maxItems)
	for rows.Next() {
		var (
			id       int64
			raw      []byte
			attempts int
		)
		if err := rows.Scan(&id, &raw, &attempts); err != nil {
			return nil, fmt.Errorf("scan spool row: %w", err)
		}
		var payload spoolPayload[T]
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode spool payload id=%d: %w", id, err)
		}
		out = append(out, ports.SpoolRow[T]{
			ID:       id,
			Request:  payload.Request,
			Attempts: attempts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spool rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteSpool[T]) Ack(ids []int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("spool not initialized")
	}
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin spool ack tx: %w", err)
	}
	stmt, err := tx.Prepare(`DELETE FROM write_spool WHERE partition_key = ? AND id = ?`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare spool ack: %w", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.Exec(s.partitionKey, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ack spool row %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit spool ack tx: %w", err)
	}
	return nil
}

func (s *SQLiteSpool[T]) Nack(rows []ports.SpoolRow[T], nextAttemptAt time.Time, lastErr string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("spool not initialized")
	}
	if len(rows) == 0 {
		return nil
	}
	nextMS := nextAttemptAt.UTC().UnixMilli()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin spool nack tx: %w", err)
	}
	stmt, err := tx.Prepare(`
UPDATE write_spool
SET attempts = ?, next_attempt_at = ?, last_error = ?
WHERE partition_key = ? AND id = ?
`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare spool nack: %w", err)
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.Exec(row.Attempts+1, nextMS, lastErr, s.partitionKey, row.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("nack spool row %d: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit spool nack tx: %w", err)
	}
	return nil
}

func (s *SQLiteSpool[T]) PendingCount(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("spool not initialized")
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM write_spool WHERE partition_key = ?`, s.partitionKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("count spool rows: %w", err)
	}
	return count, nil
}

func (s *SQLiteSpool[T]) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
