// Package journal keeps an audit record of finished executions. Steps that
// succeeded had irreversible on-chain effects, so the final step list of every
// execution is preserved for reconciliation. The journal is write-only from
// the executor's perspective; nothing resumes a plan from it.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/ssandoval/treasury-cli/internal/model"
)

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS executions (
			plan_id TEXT PRIMARY KEY,
			currency TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			completed_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_executions_completed ON executions(completed_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init journal schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Record(result model.ExecutionResult) error {
	if strings.TrimSpace(result.PlanID) == "" {
		return fmt.Errorf("record execution: missing plan id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock journal: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal execution result: %w", err)
	}
	completed, ok := parseRFC3339Unix(result.CompletedAt)
	if !ok {
		completed = time.Now().UTC().Unix()
	}
	currency := ""
	if len(result.Steps) > 0 {
		currency = result.Steps[0].Asset
	}
	success := 0
	if result.Success {
		success = 1
	}

	_, err = s.db.Exec(`
		INSERT INTO executions (plan_id, currency, success, error, completed_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(plan_id) DO UPDATE SET
			success=excluded.success,
			error=excluded.error,
			completed_at=excluded.completed_at,
			payload=excluded.payload
	`, result.PlanID, currency, success, result.Error, completed, payload)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

func (s *Store) List(limit int) ([]model.ExecutionResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query("SELECT payload FROM executions ORDER BY completed_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	results := make([]model.ExecutionResult, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		var result model.ExecutionResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("decode execution row: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}
	return results, nil
}

func parseRFC3339Unix(v string) (int64, bool) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, false
	}
	return t.UTC().Unix(), true
}
