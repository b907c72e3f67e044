package db

import (
	"context"

	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
)

// StoreInterface is the minimal relational surface the resolver and the
// executor need. It is deliberately generic over entity types: new
// computed entities get population support without touching it.
type StoreInterface interface {
	// Exists tells whether a record with the given key is committed.
	//
	// Args
	//
	// - context.Context
	//
	// - catalog.EntityType: entity type to look in.
	//
	// - catalog.Key: full key of the record.
	//
	// Returns
	//
	// - bool: true when the record exists.
	//
	// - error
	Exists(ctx context.Context, t catalog.EntityType, key catalog.Key) (bool, error)

	// KeysPresent lists the distinct keys committed for entity type t,
	// projected onto the given schema.
	//
	// The projection schema must be a subset of t's key schema; pass t's
	// own key schema to get full keys. It always reflects the latest
	// committed state: no caching between calls.
	//
	// Returns
	//
	// - []catalog.Key: distinct projected keys, in stable (sorted) order.
	//
	// - error
	KeysPresent(ctx context.Context, t catalog.EntityType, onto catalog.KeySchema) ([]catalog.Key, error)

	// InsertAtomic writes every row of the write set in declared order,
	// in one transaction. Either all rows appear or none does.
	//
	// Returns
	//
	// - error:
	// domain.ErrDuplicateKey (when any row's key already exists; nothing
	// is written),
	// domain.ErrDependencyMissing (when a row's parent is absent; nothing
	// is written).
	InsertAtomic(ctx context.Context, ws *domain.WriteSet) error

	// FetchOne retrieves the record with the given key.
	//
	// Returns
	//
	// - domain.Record: the concrete record type of t.
	//
	// - error: domain.ErrMissing when no such record is committed.
	FetchOne(ctx context.Context, t catalog.EntityType, key catalog.Key) (domain.Record, error)
}
