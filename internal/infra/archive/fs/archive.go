// Package fs implements the filesystem archive driver. Each dataset is one
// JSON file named <unixMillis>_<id>_<Section|Room>.json under the root
// directory, so the directory listing alone recovers store state.
package fs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"insightcore/pkg/domain"
)

// DefaultRoot is where datasets land when no root is configured.
const DefaultRoot = "./data"

// Archive implements domain.Archive on a local directory. Writes go through a
// temp file and rename, so a crash mid-write never leaves a half-written
// dataset behind for the next hydration to trip over.
type Archive struct {
	root string

	mu         sync.Mutex
	lastMillis int64
}

// New returns a filesystem archive rooted at path, creating it if needed.
func New(root string) (*Archive, error) {
	if root == "" {
		root = DefaultRoot
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, domain.StorageError{Op: "fs create root", Err: err}
	}
	return &Archive{root: root}, nil
}

// Root returns the directory datasets are stored under.
func (a *Archive) Root() string { return a.root }

func (a *Archive) Driver() domain.Driver { return domain.DriverFS }

// nextMillis returns the current wall clock in milliseconds, bumped past the
// previous value so two saves in the same millisecond still produce strictly
// increasing keys.
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
	if err := ctx.Err(); err != nil {
		return "", err
	}
	payload, err := domain.EncodeRecords(d)
	if err != nil {
		return "", err
	}
	key := domain.DatasetKey{Millis: a.nextMillis(), ID: d.ID, Kind: d.Kind}
	name := key.String()

	tmp, err := os.CreateTemp(a.root, ".tmp-*")
	if err != nil {
		return "", domain.StorageError{Op: "fs save " + name, Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return "", domain.StorageError{Op: "fs save " + name, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", domain.StorageError{Op: "fs save " + name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", domain.StorageError{Op: "fs save " + name, Err: err}
	}
	if err := os.Rename(tmp.Name(), filepath.Join(a.root, name)); err != nil {
		return "", domain.StorageError{Op: "fs save " + name, Err: err}
	}
	return name, nil
}

func (a *Archive) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	entries, err := os.ReadDir(a.root)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, domain.StorageError{Op: "fs delete " + id, Err: err}
	}
	removed := false
	for _, entry := range entries {
		if entry.IsDir() || !domain.MatchesID(entry.Name(), id) {
			continue
		}
		if err := os.Remove(filepath.Join(a.root, entry.Name())); err != nil {
			return false, domain.StorageError{Op: "fs delete " + id, Err: err}
		}
		removed = true
	}
	return removed, nil
}

func (a *Archive) LoadAll(ctx context.Context) ([]*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(a.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StorageError{Op: "fs load", Err: err}
	}

	var keys []domain.DatasetKey
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// Foreign files (leftover temp files included) are not dataset
		// entries and do not poison the load.
		key, err := domain.ParseDatasetKey(entry.Name())
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Millis < keys[j].Millis })

	datasets := make([]*domain.Dataset, 0, len(keys))
	for _, key := range keys {
		name := key.String()
		payload, err := os.ReadFile(filepath.Join(a.root, name))
		if err != nil {
			return nil, domain.StorageError{Op: "fs load " + name, Err: err}
		}
		records, err := domain.DecodeRecords(key.Kind, payload)
		if err != nil {
			return nil, domain.StorageError{Op: "fs load " + name, Err: err}
		}
		datasets = append(datasets, &domain.Dataset{ID: key.ID, Kind: key.Kind, Records: records})
	}
	if len(datasets) == 0 {
		return nil, nil
	}
	return datasets, nil
}
