package domain

import "context"

// Driver identifies a concrete archive backend implementation.
type Driver string

const (
	// DriverFS is the local filesystem backend (default, matches the
	// documented ./data layout).
	DriverFS Driver = "fs"
	// DriverMemory is the in-memory backend used by tests.
	DriverMemory Driver = "memory"
	// DriverSQLite is the embedded SQLite backend.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is the PostgreSQL backend.
	DriverPostgres Driver = "postgres"
	// DriverS3 is the S3 / MinIO compatible backend.
	DriverS3 Driver = "s3"
)

// Archive is the durable backend behind the dataset store. Every driver keeps
// one entry per dataset under a key in the shared
// <unixMillis>_<id>_<Section|Room>.json format, so a fresh process can
// re-derive store state from the backend contents alone.
type Archive interface {
	// Save persists a new dataset and returns the key it was stored under.
	// Keys embed a strictly increasing creation timestamp.
	Save(ctx context.Context, d *Dataset) (string, error)
	// Delete removes the entry matching *_<id>_*; false when no entry exists.
	Delete(ctx context.Context, id string) (bool, error)
	// LoadAll returns every stored dataset in embedded-timestamp order. An
	// empty or missing backend yields (nil, nil); any undecodable entry
	// aborts the whole load with a StorageError.
	LoadAll(ctx context.Context) ([]*Dataset, error)
	// Driver reports the backend implementation.
	Driver() Driver
}
