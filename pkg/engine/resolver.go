package engine

import (
	"context"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	xe "github.com/fieldline/imagingdb/pkg/errors"
	"github.com/fieldline/imagingdb/pkg/utils"
)

// Resolver computes which keys of an entity type are eligible for
// population but not yet materialized.
//
// It is read-only and derives everything from committed store state on
// every call: no caching, safe to call concurrently with running passes.
type Resolver struct {
	cat   *catalog.Catalog
	store kdb.StoreInterface
}

func NewResolver(cat *catalog.Catalog, store kdb.StoreInterface) *Resolver {
	return &Resolver{cat: cat, store: store}
}

// Eligible lists the pending keys of t, in deterministic sorted order.
//
// A key is eligible when:
//
//   - it is in the join (cartesian product) of the present keys of t's
//     key sources, and
//
//   - its projection is present in every required ancestor, and
//
//   - no record of t exists for it yet.
func (r *Resolver) Eligible(ctx context.Context, t catalog.EntityType) ([]catalog.Key, error) {
	sources, required, ok := r.cat.KeySource(t)
	if !ok {
		return nil, xe.New("entity type is not populatable: " + t.String())
	}

	candidates := []catalog.Key{{}}
	for _, src := range sources {
		schema, _ := r.cat.KeySchemaOf(src)
		keys, err := r.store.KeysPresent(ctx, src, schema)
		if err != nil {
			return nil, err
		}

		joined := make([]catalog.Key, 0, len(candidates)*len(keys))
		for _, c := range candidates {
			for _, k := range keys {
				joined = append(joined, c.Extend(k...))
			}
		}
		candidates = joined
	}

	for _, req := range required {
		schema, _ := r.cat.KeySchemaOf(req)
		present, err := r.presentSet(ctx, req, schema)
		if err != nil {
			return nil, err
		}

		kept := candidates[:0]
		for _, c := range candidates {
			projected, err := c.Project(schema)
			if err != nil {
				return nil, err
			}
			if _, ok := present[projected.String()]; ok {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	sourceSchema, _ := r.cat.SourceKeySchema(t)
	done, err := r.presentSet(ctx, t, sourceSchema)
	if err != nil {
		return nil, err
	}

	eligible := utils.Filter(candidates, func(c catalog.Key) bool {
		_, ok := done[c.String()]
		return !ok
	})

	return utils.Sorted(eligible, func(a, b catalog.Key) bool {
		for i := range a {
			if a[i].Value != b[i].Value {
				return a[i].Value < b[i].Value
			}
		}
		return false
	}), nil
}

func (r *Resolver) presentSet(ctx context.Context, t catalog.EntityType, onto catalog.KeySchema) (map[string]catalog.Key, error) {
	keys, err := r.store.KeysPresent(ctx, t, onto)
	if err != nil {
		return nil, err
	}
	return utils.ToMap(keys, catalog.Key.String), nil
}
