// Package ledger persists push attempts in SQLite.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Failure is one item the remote store rejected.
type Failure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// PushRecord is one push attempt. Error is set when the whole push failed.
type PushRecord struct {
	PushID       string        `json:"push_id"`
	TreeName     string        `json:"tree_name"`
	WorkbookName string        `json:"workbook_name"`
	Timestamp    time.Time     `json:"timestamp"`
	Submitted    int           `json:"submitted"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
	Failures     []Failure     `json:"failures,omitempty"`
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("ledger path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("ledger path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite ledger %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// RecordPushes writes a batch of push records in one transaction. Re-recording
// a push id replaces the earlier row.
func (s *Store) RecordPushes(records []PushRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("record pushes", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, rec := range records {
			if err := insertPush(tx, rec); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *Store) RecordPush(rec PushRecord) error {
	return s.RecordPushes([]PushRecord{rec})
}

func insertPush(tx *sql.Tx, rec PushRecord) error {
	if strings.TrimSpace(rec.PushID) == "" {
		return fmt.Errorf("push id must not be empty")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if _, err := tx.Exec(`DELETE FROM pushes WHERE push_id = ?`, rec.PushID); err != nil {
		return fmt.Errorf("replace push %s: %w", rec.PushID, err)
	}
	_, err := tx.Exec(`
INSERT INTO pushes (push_id, tree_name, workbook_name, ts_utc, submitted, succeeded, failed, duration_ms, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		rec.PushID,
		rec.TreeName,
		rec.WorkbookName,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Submitted,
		rec.Succeeded,
		rec.Failed,
		rec.Duration.Milliseconds(),
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert push %s: %w", rec.PushID, err)
	}
	for i, f := range rec.Failures {
		if _, err := tx.Exec(`INSERT INTO push_failures (push_id, seq, path, reason) VALUES (?, ?, ?, ?)`,
			rec.PushID, i, f.Path, f.Reason); err != nil {
			return fmt.Errorf("insert push failure %s/%d: %w", rec.PushID, i, err)
		}
	}
	return nil
}

// ListPushes returns the session's pushes, newest first. limit <= 0 means all.
func (s *Store) ListPushes(treeName, workbookName string, limit int) ([]PushRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT push_id, tree_name, workbook_name, ts_utc, submitted, succeeded, failed, duration_ms, error
FROM pushes
WHERE tree_name = ? AND workbook_name = ?
ORDER BY ts_utc DESC, push_id DESC
`
	args := []any{treeName, workbookName}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("list pushes", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}

	out := make([]PushRecord, 0)
	for rows.Next() {
		var (
			rec        PushRecord
			tsRaw      string
			durationMS int64
		)
		if err := rows.Scan(&rec.PushID, &rec.TreeName, &rec.WorkbookName, &tsRaw,
			&rec.Submitted, &rec.Succeeded, &rec.Failed, &durationMS, &rec.Error); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan push row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse push timestamp %q: %w", tsRaw, err)
		}
		rec.Timestamp = ts.UTC()
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate push rows: %w", err)
	}
	rows.Close()

	if err := s.loadFailures(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) loadFailures(out []PushRecord) error {
	for i := range out {
		rows, err := s.db.Query(`SELECT path, reason FROM push_failures WHERE push_id = ? ORDER BY seq`, out[i].PushID)
		if err != nil {
			return fmt.Errorf("load push failures %s: %w", out[i].PushID, err)
		}
		for rows.Next() {
			var f Failure
			if err := rows.Scan(&f.Path, &f.Reason); err != nil {
				rows.Close()
				return fmt.Errorf("scan push failure: %w", err)
			}
			out[i].Failures = append(out[i].Failures, f)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate push failures: %w", err)
		}
		rows.Close()
	}
	return nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
