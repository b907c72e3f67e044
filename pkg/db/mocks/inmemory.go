package mocks

import (
	"context"
	"sort"
	"sync"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	xe "github.com/fieldline/imagingdb/pkg/errors"
)

// InMemoryStore is a functional store for tests: keyed maps per entity
// type with the same contract as the real one. InsertAtomic is
// all-or-nothing; duplicate keys and missing key-inherited parents are
// rejected before anything is committed.
type InMemoryStore struct {
	mu      sync.Mutex
	cat     *catalog.Catalog
	records map[catalog.EntityType]map[string]domain.Record

	// OnInsert, when set, runs for each row of a write set before it is
	// staged. An error aborts the whole set.
	OnInsert func(domain.Record) error
}

func NewInMemoryStore(cat *catalog.Catalog) *InMemoryStore {
	return &InMemoryStore{
		cat:     cat,
		records: map[catalog.EntityType]map[string]domain.Record{},
	}
}

var _ kdb.StoreInterface = &InMemoryStore{}

// Seed commits rows directly, without duplicate or parent checks.
// Test setup only.
func (s *InMemoryStore) Seed(rows ...domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.commit(r)
	}
}

func (s *InMemoryStore) commit(r domain.Record) {
	t := r.Kind()
	if s.records[t] == nil {
		s.records[t] = map[string]domain.Record{}
	}
	s.records[t][r.RecordKey().String()] = r
}

func (s *InMemoryStore) normalize(t catalog.EntityType, key catalog.Key) (string, error) {
	schema, ok := s.cat.KeySchemaOf(t)
	if !ok {
		return "", xe.New("unknown entity type: " + t.String())
	}
	projected, err := key.Project(schema)
	if err != nil {
		return "", err
	}
	return projected.String(), nil
}

func (s *InMemoryStore) Exists(ctx context.Context, t catalog.EntityType, key catalog.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.normalize(t, key)
	if err != nil {
		return false, err
	}
	_, ok := s.records[t][id]
	return ok, nil
}

func (s *InMemoryStore) KeysPresent(ctx context.Context, t catalog.EntityType, onto catalog.KeySchema) ([]catalog.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.cat.KeySchemaOf(t)
	if !ok {
		return nil, xe.New("unknown entity type: " + t.String())
	}
	if !onto.SubsetOf(schema) {
		return nil, xe.New("projection is not a subset of the key of " + t.String())
	}

	distinct := map[string]catalog.Key{}
	for _, r := range s.records[t] {
		projected, err := r.RecordKey().Project(onto)
		if err != nil {
			return nil, err
		}
		distinct[projected.String()] = projected
	}

	keys := make([]catalog.Key, 0, len(distinct))
	for _, k := range distinct {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		for c := range a {
			if a[c].Value != b[c].Value {
				return a[c].Value < b[c].Value
			}
		}
		return false
	})
	return keys, nil
}

func (s *InMemoryStore) InsertAtomic(ctx context.Context, ws *domain.WriteSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := map[catalog.EntityType]map[string]domain.Record{}
	inStage := func(t catalog.EntityType, id string) bool {
		_, ok := staged[t][id]
		return ok
	}

	for _, r := range ws.Rows() {
		if s.OnInsert != nil {
			if err := s.OnInsert(r); err != nil {
				return err
			}
		}

		t := r.Kind()
		id := r.RecordKey().String()
		if _, ok := s.records[t][id]; ok || inStage(t, id) {
			return xe.WrapWithNote(t.String()+" "+id, domain.ErrDuplicateKey)
		}

		// key-inherited parents must be committed (or staged earlier in
		// this set). Attribute references are not modeled here.
		schema, ok := s.cat.KeySchemaOf(t)
		if !ok {
			return xe.New("unknown entity type: " + t.String())
		}
		for _, p := range s.cat.ParentsOf(t) {
			pschema, _ := s.cat.KeySchemaOf(p)
			if !pschema.SubsetOf(schema) {
				continue
			}
			pkey, err := r.RecordKey().Project(pschema)
			if err != nil {
				return err
			}
			pid := pkey.String()
			if _, ok := s.records[p][pid]; !ok && !inStage(p, pid) {
				return xe.WrapWithNote(
					t.String()+" "+id+" needs "+p.String()+" "+pid,
					domain.ErrDependencyMissing,
				)
			}
		}

		if staged[t] == nil {
			staged[t] = map[string]domain.Record{}
		}
		staged[t][id] = r
	}

	for t, rows := range staged {
		if s.records[t] == nil {
			s.records[t] = map[string]domain.Record{}
		}
		for id, r := range rows {
			s.records[t][id] = r
		}
	}
	return nil
}

func (s *InMemoryStore) FetchOne(ctx context.Context, t catalog.EntityType, key catalog.Key) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.normalize(t, key)
	if err != nil {
		return nil, err
	}
	r, ok := s.records[t][id]
	if !ok {
		return nil, xe.WrapWithNote(t.String()+" "+key.String(), domain.ErrMissing)
	}
	return r, nil
}

// Count reports how many rows of t are committed.
func (s *InMemoryStore) Count(t catalog.EntityType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[t])
}
