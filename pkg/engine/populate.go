// Package engine drives incremental population: the resolver derives
// pending keys from committed state, the executor runs the registered
// make step per key and commits each key's rows atomically.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	xe "github.com/fieldline/imagingdb/pkg/errors"
)

// Maker builds the full write set of one entity type for one eligible
// key: the master row plus every part row describing that key.
//
// Returning an error classifies the key (see §Populate); a returned
// write set is committed as one unit.
type Maker interface {
	Make(ctx context.Context, key catalog.Key) (*domain.WriteSet, error)
}

// MakerFunc adapts a function to the Maker interface.
type MakerFunc func(ctx context.Context, key catalog.Key) (*domain.WriteSet, error)

func (f MakerFunc) Make(ctx context.Context, key catalog.Key) (*domain.WriteSet, error) {
	return f(ctx, key)
}

// Engine executes population passes over an immutable catalog.
//
// Makers are registered per entity type before the first pass; an entity
// type whose key source exists but has no maker registered (such as the
// classification extension points) rejects the pass at call time, not
// per key.
type Engine struct {
	cat      *catalog.Catalog
	store    kdb.StoreInterface
	resolver *Resolver
	makers   map[catalog.EntityType]Maker
	logger   *log.Logger
}

func New(cat *catalog.Catalog, store kdb.StoreInterface, logger *log.Logger) *Engine {
	return &Engine{
		cat:      cat,
		store:    store,
		resolver: NewResolver(cat, store),
		makers:   map[catalog.EntityType]Maker{},
		logger:   logger,
	}
}

// Register binds the make step for a populatable entity type.
func (e *Engine) Register(t catalog.EntityType, m Maker) error {
	if _, _, ok := e.cat.KeySource(t); !ok {
		return xe.New("entity type is not populatable: " + t.String())
	}
	if _, ok := e.makers[t]; ok {
		return xe.New("maker already registered for: " + t.String())
	}
	e.makers[t] = m
	return nil
}

// Eligible exposes the resolver view used by Populate.
func (e *Engine) Eligible(ctx context.Context, t catalog.EntityType) ([]catalog.Key, error) {
	return e.resolver.Eligible(ctx, t)
}

// KeyFailure attributes one per-key error within a pass.
type KeyFailure struct {
	Key catalog.Key
	Err error
}

// Summary is the outcome of one population pass.
type Summary struct {
	// keys whose full record set is now committed, including keys
	// committed by a concurrent worker racing this pass.
	Succeeded []catalog.Key

	// keys that stay eligible: their source is not ready yet.
	Pending []KeyFailure

	// keys whose make step failed. They stay eligible too, but retrying
	// without outside change will fail the same way.
	Failed []KeyFailure
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"succeeded=%d pending=%d failed=%d",
		len(s.Succeeded), len(s.Pending), len(s.Failed),
	)
}

// Populate runs one pass for entity type t: every currently eligible key
// is attempted once, sequentially, in resolver order.
//
// Per-key outcomes never abort the pass. Keys are classified by error:
//
//   - nil + committed write set: succeeded
//   - domain.ErrDuplicateKey on insert: succeeded (another worker won)
//   - domain.ErrNotYetTriggered, ErrSourceNotFound,
//     ErrSourceLocationUnavailable, ErrMalformedSource: pending
//   - domain.ErrUnsupportedMethod and anything else: failed
//
// domain.ErrDependencyMissing aborts the pass: the resolver guarantees
// parents exist, so observing it is a defect, not a key state.
func (e *Engine) Populate(ctx context.Context, t catalog.EntityType) (Summary, error) {
	maker, ok := e.makers[t]
	if !ok {
		return Summary{}, xe.New("no maker registered for entity type: " + t.String())
	}

	keys, err := e.resolver.Eligible(ctx, t)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		ws, err := maker.Make(ctx, key)
		if err == nil {
			err = e.store.InsertAtomic(ctx, ws)
			if errors.Is(err, domain.ErrDuplicateKey) {
				// lost the race against another worker; rows are there.
				e.logger.Printf("%s %s: made by another worker", t, key)
				summary.Succeeded = append(summary.Succeeded, key)
				continue
			}
		}

		switch {
		case err == nil:
			summary.Succeeded = append(summary.Succeeded, key)
		case errors.Is(err, domain.ErrDependencyMissing):
			return summary, xe.Wrap(err)
		case isPending(err):
			e.logger.Printf("%s %s: pending: %s", t, key, err)
			summary.Pending = append(summary.Pending, KeyFailure{Key: key, Err: err})
		default:
			e.logger.Printf("%s %s: failed: %s", t, key, err)
			summary.Failed = append(summary.Failed, KeyFailure{Key: key, Err: err})
		}
	}
	return summary, nil
}

func isPending(err error) bool {
	return errors.Is(err, domain.ErrNotYetTriggered) ||
		errors.Is(err, domain.ErrSourceNotFound) ||
		errors.Is(err, domain.ErrSourceLocationUnavailable) ||
		errors.Is(err, domain.ErrMalformedSource)
}
