// Package archive selects and wraps the dataset archive backends. Higher
// layers depend on the domain.Archive interface through this package; the
// infra driver packages are an implementation detail behind it.
package archive

import (
	"context"

	"insightcore/internal/infra/archive/fs"
	"insightcore/internal/infra/archive/memory"
	"insightcore/internal/infra/archive/postgres"
	"insightcore/internal/infra/archive/s3"
	"insightcore/internal/infra/archive/sqlite"
	"insightcore/pkg/domain"
)

// Archive re-exports the domain persistence contract.
type Archive = domain.Archive

// Driver re-exports the backend identifier type and values.
type Driver = domain.Driver

const (
	DriverFS       = domain.DriverFS
	DriverMemory   = domain.DriverMemory
	DriverSQLite   = domain.DriverSQLite
	DriverPostgres = domain.DriverPostgres
	DriverS3       = domain.DriverS3
)

// NewFS returns the filesystem backend rooted at root ("" means ./data).
func NewFS(root string) (Archive, error) { return fs.New(root) }

// NewMemory returns the in-memory backend.
func NewMemory() Archive { return memory.New() }

// NewSQLite returns the embedded SQLite backend at path.
func NewSQLite(path string) (Archive, error) { return sqlite.New(path) }

// NewPostgres returns the PostgreSQL backend for dsn.
func NewPostgres(ctx context.Context, dsn string) (Archive, error) { return postgres.New(ctx, dsn) }

// S3Config re-exports the S3 driver configuration.
type S3Config = s3.Config

// NewS3 returns the S3 backend for cfg.
func NewS3(ctx context.Context, cfg S3Config) (Archive, error) { return s3.New(ctx, cfg) }
