// Package store keeps the registered datasets in memory and mirrors every
// mutation to the archive, so a fresh process recovers the same state from
// the backend alone.
package store

import (
	"context"
	"sync"

	"insightcore/pkg/domain"
)

// Store is the dataset registry. Reads and writes hydrate lazily from the
// archive on first use; after that the in-memory state is authoritative and
// the archive only mirrors mutations. Safe for concurrent use.
type Store struct {
	archive domain.Archive

	hydrateOnce sync.Once
	hydrateErr  error

	mu       sync.Mutex
	datasets []*domain.Dataset
	index    map[string]*domain.Dataset
}

// New returns a store backed by the given archive.
func New(archive domain.Archive) *Store {
	return &Store{archive: archive, index: make(map[string]*domain.Dataset)}
}

// hydrate loads archived datasets exactly once. The result, error included,
// is cached: a failed hydration keeps failing on every later call rather than
// silently proceeding over a half-loaded state.
func (s *Store) hydrate(ctx context.Context) error {
	s.hydrateOnce.Do(func() {
		datasets, err := s.archive.LoadAll(ctx)
		if err != nil {
			s.hydrateErr = err
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, d := range datasets {
			// An id stored twice keeps the newest entry, which sorts last.
			if _, exists := s.index[d.ID]; exists {
				for i, have := range s.datasets {
					if have.ID == d.ID {
						s.datasets = append(s.datasets[:i], s.datasets[i+1:]...)
						break
					}
				}
			}
			s.datasets = append(s.datasets, d)
			s.index[d.ID] = d
		}
	})
	return s.hydrateErr
}

// Add registers a new dataset, persists it, and returns the ids of all
// datasets now present (insertion order). The dataset must carry a valid id,
// at least one record, and an id not already in use.
func (s *Store) Add(ctx context.Context, d *domain.Dataset) ([]string, error) {
	if !domain.ValidID(d.ID) {
		return nil, domain.Insightf("invalid dataset id %q", d.ID)
	}
	if !d.Kind.Valid() {
		return nil, domain.Insightf("invalid dataset kind %q", d.Kind)
	}
	if d.NumRows() == 0 {
		return nil, domain.Insightf("dataset %q has no records", d.ID)
	}
	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[d.ID]; exists {
		return nil, domain.Insightf("dataset id %q already exists", d.ID)
	}
	if _, err := s.archive.Save(ctx, d); err != nil {
		return nil, err
	}
	s.datasets = append(s.datasets, d)
	s.index[d.ID] = d
	return s.idsLocked(), nil
}

// Remove deletes the dataset with the given id from memory and the archive.
// It echoes the removed id back on success.
func (s *Store) Remove(ctx context.Context, id string) (string, error) {
	if !domain.ValidID(id) {
		return "", domain.Insightf("invalid dataset id %q", id)
	}
	if err := s.hydrate(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[id]; !exists {
		return "", domain.NotFoundError{ID: id}
	}
	removed, err := s.archive.Delete(ctx, id)
	if err != nil {
		return "", err
	}
	delete(s.index, id)
	for i, d := range s.datasets {
		if d.ID == id {
			s.datasets = append(s.datasets[:i], s.datasets[i+1:]...)
			break
		}
	}
	if !removed {
		// In memory but not in the archive: the entry is gone either way,
		// but the caller asked to remove something the backend never had.
		return "", domain.NotFoundError{ID: id}
	}
	return id, nil
}

// List describes every registered dataset in insertion order.
func (s *Store) List(ctx context.Context) ([]domain.DatasetInfo, error) {
	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]domain.DatasetInfo, 0, len(s.datasets))
	for _, d := range s.datasets {
		infos = append(infos, d.Info())
	}
	return infos, nil
}

// Find returns the dataset registered under id. Unlike Remove, an unknown id
// here is a query-time addressing mistake, so it surfaces as an InsightError.
func (s *Store) Find(ctx context.Context, id string) (*domain.Dataset, error) {
	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.index[id]
	if !ok {
		return nil, domain.Insightf("dataset %q not found", id)
	}
	return d.Clone(), nil
}

func (s *Store) idsLocked() []string {
	ids := make([]string, 0, len(s.datasets))
	for _, d := range s.datasets {
		ids = append(ids, d.ID)
	}
	return ids
}
