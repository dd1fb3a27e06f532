// Package postgres implements the archive on PostgreSQL through the pgx
// database/sql driver. Row layout mirrors the SQLite driver so the backends
// stay interchangeable entry for entry.
package postgres

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"insightcore/pkg/domain"
)

const (
	driverName = "pgx"
	// DefaultDSN targets a local development database; deployments override
	// it through configuration.
	DefaultDSN = "postgres://localhost/insightcore?sslmode=disable"
)

// Compile-time contract assertion.
var _ domain.Archive = (*Archive)(nil)

// Archive implements domain.Archive on a PostgreSQL table.
type Archive struct {
	db *sql.DB

	mu         sync.Mutex
	lastMillis int64
}

// New connects to the database at dsn (falling back to DefaultDSN), verifies
// the connection, and ensures the datasets table exists.
func New(ctx context.Context, dsn string) (*Archive, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, domain.StorageError{Op: "postgres open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.StorageError{Op: "postgres ping", Err: err}
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS datasets (
		key TEXT PRIMARY KEY,
		millis BIGINT NOT NULL,
		payload BYTEA NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, domain.StorageError{Op: "postgres create table", Err: err}
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Driver() domain.Driver { return domain.DriverPostgres }

// DB exposes the underlying sql.DB for integration testing hooks.
func (a *Archive) DB() *sql.DB { return a.db }

// Close releases the connection pool.
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
		`INSERT INTO datasets(key, millis, payload) VALUES($1, $2, $3)`,
		name, key.Millis, payload); err != nil {
		return "", domain.StorageError{Op: "postgres save " + name, Err: err}
	}
	return name, nil
}

func (a *Archive) Delete(ctx context.Context, id string) (bool, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT key FROM datasets`)
	if err != nil {
		return false, domain.StorageError{Op: "postgres delete " + id, Err: err}
	}
	var doomed []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return false, domain.StorageError{Op: "postgres delete " + id, Err: err}
		}
		if domain.MatchesID(name, id) {
			doomed = append(doomed, name)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return false, domain.StorageError{Op: "postgres delete " + id, Err: err}
	}
	_ = rows.Close()
	for _, name := range doomed {
		if _, err := a.db.ExecContext(ctx, `DELETE FROM datasets WHERE key = $1`, name); err != nil {
			return false, domain.StorageError{Op: "postgres delete " + id, Err: err}
		}
	}
	return len(doomed) > 0, nil
}

func (a *Archive) LoadAll(ctx context.Context) ([]*domain.Dataset, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT key, payload FROM datasets ORDER BY millis ASC`)
	if err != nil {
		return nil, domain.StorageError{Op: "postgres load", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var datasets []*domain.Dataset
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, domain.StorageError{Op: "postgres load", Err: err}
		}
		key, err := domain.ParseDatasetKey(name)
		if err != nil {
			return nil, domain.StorageError{Op: "postgres load " + name, Err: err}
		}
		records, err := domain.DecodeRecords(key.Kind, payload)
		if err != nil {
			return nil, domain.StorageError{Op: "postgres load " + name, Err: err}
		}
		datasets = append(datasets, &domain.Dataset{ID: key.ID, Kind: key.Kind, Records: records})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError{Op: "postgres load", Err: err}
	}
	return datasets, nil
}
