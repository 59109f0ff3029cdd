// Package sqlite provides a SQLite-backed persistent store. It reuses the
// in-memory implementation for transactional semantics and snapshots the
// full state to a single table after every successful transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"casecore/internal/infra/persistence/memory"
	"casecore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the backend interface.
var _ domain.Backend = (*Store)(nil)

// Store persists the in-memory state to SQLite as JSON bucket blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens a snapshotting SQLite-backed store, hydrating the in-memory
// state from any existing snapshot.
func NewStore(path string, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = "casecore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.New(opts...), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

const (
	bucketForms  = "forms"
	bucketCases  = "cases"
	bucketLedger = "ledger"
	bucketStubs  = "archive_stubs"
)

var sqliteBuckets = []string{bucketForms, bucketCases, bucketLedger, bucketStubs}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	payloads := map[string][]byte{}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		payloads[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if len(payloads) == 0 {
		return nil
	}
	snapshot := memory.Snapshot{}
	targets := map[string]any{
		bucketForms:  &snapshot.Forms,
		bucketCases:  &snapshot.Cases,
		bucketLedger: &snapshot.Ledger,
		bucketStubs:  &snapshot.ArchiveStubs,
	}
	for bucket, payload := range payloads {
		target, ok := targets[bucket]
		if !ok {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	payloads := map[string]any{
		bucketForms:  snapshot.Forms,
		bucketCases:  snapshot.Cases,
		bucketLedger: snapshot.Ledger,
		bucketStubs:  snapshot.ArchiveStubs,
	}
	for _, bucket := range sqliteBuckets {
		data, err := json.Marshal(payloads[bucket])
		if err != nil {
			retErr = fmt.Errorf("encode %s: %w", bucket, err)
			return retErr
		}
		if _, err := tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

// RunInTransaction applies fn in memory, then snapshots to SQLite on success.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	if err := s.Store.RunInTransaction(ctx, fn); err != nil {
		return err
	}
	return s.persist()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
