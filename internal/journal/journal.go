// Package journal records every mutating operation the tooling submits to
// the chain: what was sent, its transaction hash, and how it ended up. It is
// an audit trail of submissions, not a history of rates.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Record is one journaled operation.
type Record struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`  // e.g. "set_rates", "withdraw", "enable_trade"
	Token     string    `json:"token"` // hex address or empty for batch/global ops
	TxHash    string    `json:"tx_hash"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Journal is a sqlite-backed store. One connection keeps sqlite happy under
// concurrent writers.
type Journal struct {
	db *sql.DB
}

func Open(dbPath string) (*Journal, error) {
	if dbPath == "" {
		return nil, errors.New("journal: db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("journal: mkdir db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS operations (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  token TEXT NOT NULL,
  tx_hash TEXT NOT NULL,
  status TEXT NOT NULL,
  detail TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_created ON operations(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_tx_hash ON operations(tx_hash);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal: migrate: %w", err)
		}
	}
	return nil
}

// Insert journals a freshly submitted operation and returns the stored
// record.
func (j *Journal) Insert(ctx context.Context, kind, token, txHash, detail string) (Record, error) {
	now := time.Now().UTC()
	rec := Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Token:     token,
		TxHash:    txHash,
		Status:    StatusSubmitted,
		Detail:    detail,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO operations (id,kind,token,tx_hash,status,detail,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?)
`, rec.ID, rec.Kind, rec.Token, rec.TxHash, string(rec.Status), rec.Detail,
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// MarkStatus moves a journaled operation to a new status. Detail is
// appended context (receipt status, error text); empty leaves the stored
// detail alone.
func (j *Journal) MarkStatus(ctx context.Context, id string, status Status, detail string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if detail == "" {
		_, err := j.db.ExecContext(ctx, `UPDATE operations SET status=?, updated_at=? WHERE id=?`,
			string(status), now, id)
		return err
	}
	_, err := j.db.ExecContext(ctx, `UPDATE operations SET status=?, detail=?, updated_at=? WHERE id=?`,
		string(status), detail, now, id)
	return err
}

// Recent returns the newest records, capped at limit.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id,kind,token,tx_hash,status,detail,created_at,updated_at
FROM operations ORDER BY created_at DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FindByTxHash looks up the record for a transaction hash; nil when none
// exists.
func (j *Journal) FindByTxHash(ctx context.Context, txHash string) (*Record, error) {
	row := j.db.QueryRowContext(ctx, `
SELECT id,kind,token,tx_hash,status,detail,created_at,updated_at
FROM operations WHERE tx_hash=? LIMIT 1
`, txHash)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var status, created, updated string
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.Token, &rec.TxHash, &status, &rec.Detail, &created, &updated); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return rec, nil
}
