// Package sqlite implements the archive on an embedded SQLite database. One
// row per dataset, keyed by the same wire-format name the filesystem driver
// uses, so the two backends stay interchangeable entry for entry.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"insightcore/pkg/domain"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "insightcore.db"

// Archive implements domain.Archive on a single SQLite table.
type Archive struct {
	db   *sql.DB
	path string

	mu         sync.Mutex
	lastMillis int64
}

// New opens (creating if needed) the database at path and ensures the
// datasets table exists.
func New(path string) (*Archive, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, domain.StorageError{Op: "sqlite create dirs", Err: err}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.StorageError{Op: "sqlite open", Err: err}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS datasets (
		key TEXT PRIMARY KEY,
		millis INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, domain.StorageError{Op: "sqlite create table", Err: err}
	}
	return &Archive{db: db, path: path}, nil
}

func (a *Archive) Driver() domain.Driver { return domain.DriverSQLite }

// DB exposes the underlying sql.DB for integration testing hooks.
func (a *Archive) DB() *sql.DB { return a.db }

// Path returns the configured database path.
func (a *Archive) Path() string { return a.path }

// Close releases the database handle.
func (a *Archive) Close() error { return a.db.Close() }

func (a *Archive) nextMillis() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= a.lastMillis {
		now = a.lastMillis + 1
	}
	a.lastMillis = now
	return now
}

func (a *Archive) Save(ctx context.Context, d *domain.Dataset) (string, error) {
	payload, err := domain.EncodeRecords(d)
	if err != nil {
		return "", err
	}
	key := domain.DatasetKey{Millis: a.nextMillis(), ID: d.ID, Kind: d.Kind}
	name := key.String()
	if _, err := a.db.ExecContext(ctx,
		`INSERT INTO datasets(key, millis, payload) VALUES(?, ?, ?)`,
		name, key.Millis, payload); err != nil {
		return "", domain.StorageError{Op: "sqlite save " + name, Err: err}
	}
	return name, nil
}

func (a *Archive) Delete(ctx context.Context, id string) (bool, error) {
	// LIKE metacharacters (% and _) are legal in parts of a key name, so
	// match by parsing keys instead of a SQL pattern.
	rows, err := a.db.QueryContext(ctx, `SELECT key FROM datasets`)
	if err != nil {
		return false, domain.StorageError{Op: "sqlite delete " + id, Err: err}
	}
	var doomed []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return false, domain.StorageError{Op: "sqlite delete " + id, Err: err}
		}
		if domain.MatchesID(name, id) {
			doomed = append(doomed, name)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return false, domain.StorageError{Op: "sqlite delete " + id, Err: err}
	}
	_ = rows.Close()
	for _, name := range doomed {
		if _, err := a.db.ExecContext(ctx, `DELETE FROM datasets WHERE key = ?`, name); err != nil {
			return false, domain.StorageError{Op: "sqlite delete " + id, Err: err}
		}
	}
	return len(doomed) > 0, nil
}

func (a *Archive) LoadAll(ctx context.Context) ([]*domain.Dataset, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT key, payload FROM datasets ORDER BY millis ASC`)
	if err != nil {
		return nil, domain.StorageError{Op: "sqlite load", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var datasets []*domain.Dataset
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, domain.StorageError{Op: "sqlite load", Err: err}
		}
		key, err := domain.ParseDatasetKey(name)
		if err != nil {
			return nil, domain.StorageError{Op: "sqlite load " + name, Err: fmt.Errorf("bad key: %w", err)}
		}
		records, err := domain.DecodeRecords(key.Kind, payload)
		if err != nil {
			return nil, domain.StorageError{Op: "sqlite load " + name, Err: err}
		}
		datasets = append(datasets, &domain.Dataset{ID: key.ID, Kind: key.Kind, Records: records})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError{Op: "sqlite load", Err: err}
	}
	return datasets, nil
}
