// Package memory implements an in-memory archive driver. It persists nothing
// across processes but keeps the same key discipline as the durable drivers,
// which makes it the hydration fixture of choice in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"insightcore/pkg/domain"
)

type entry struct {
	key     domain.DatasetKey
	payload []byte
}

// Archive implements domain.Archive on a process-local map. Safe for
// concurrent use.
type Archive struct {
	mu         sync.Mutex
	entries    map[string]entry // keyed by wire-format name
	lastMillis int64
}

// New returns an empty in-memory archive.
func New() *Archive {
	return &Archive{entries: make(map[string]entry)}
}

func (a *Archive) Driver() domain.Driver { return domain.DriverMemory }

func (a *Archive) Save(ctx context.Context, d *domain.Dataset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	payload, err := domain.EncodeRecords(d)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= a.lastMillis {
		now = a.lastMillis + 1
	}
	a.lastMillis = now
	key := domain.DatasetKey{Millis: now, ID: d.ID, Kind: d.Kind}
	a.entries[key.String()] = entry{key: key, payload: payload}
	return key.String(), nil
}

func (a *Archive) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := false
	for name, e := range a.entries {
		if e.key.ID == id {
			delete(a.entries, name)
			removed = true
		}
	}
	return removed, nil
}

func (a *Archive) LoadAll(ctx context.Context) ([]*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	ordered := make([]entry, 0, len(a.entries))
	for _, e := range a.entries {
		ordered = append(ordered, e)
	}
	a.mu.Unlock()
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key.Millis < ordered[j].key.Millis })

	datasets := make([]*domain.Dataset, 0, len(ordered))
	for _, e := range ordered {
		records, err := domain.DecodeRecords(e.key.Kind, e.payload)
		if err != nil {
			return nil, domain.StorageError{Op: "memory load " + e.key.String(), Err: err}
		}
		datasets = append(datasets, &domain.Dataset{ID: e.key.ID, Kind: e.key.Kind, Records: records})
	}
	if len(datasets) == 0 {
		return nil, nil
	}
	return datasets, nil
}

// Corrupt overwrites the stored payload for id with bytes that do not decode.
// Test hook for hydration failure paths.
func (a *Archive) Corrupt(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, e := range a.entries {
		if e.key.ID == id {
			e.payload = []byte("{corrupt")
			a.entries[name] = e
		}
	}
}
