// Package populate holds the make steps of the imported entity types.
//
// Every maker follows the same shape: resolve the task's method, open
// the method's loader on the located output directory, and transform the
// plane results into one write set. Method dispatch is a closed switch
// over the registered loaders; an unregistered method is
// domain.ErrUnsupportedMethod, never a silent no-op.
package populate

import (
	"context"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	"github.com/fieldline/imagingdb/pkg/engine"
	xe "github.com/fieldline/imagingdb/pkg/errors"
	"github.com/fieldline/imagingdb/pkg/loader"
)

// Deps are the collaborators every method-dispatched maker needs.
type Deps struct {
	Tasks   kdb.TaskInterface
	Locate  engine.Locator
	Loaders map[domain.Method]loader.Loader
}

// open resolves the method of the task behind key and opens its output.
//
// Every maker indexes into the plane results, so a handle reporting none
// is rejected here rather than trusted per loader.
func (d Deps) open(ctx context.Context, key catalog.Key) (domain.TaskKey, loader.Handle, error) {
	task, method, dir, err := d.locate(ctx, key)
	if err != nil {
		return task, nil, err
	}
	ld := d.Loaders[method]
	h, err := ld.Open(dir)
	if err != nil {
		return task, nil, err
	}
	if len(h.PlaneResults()) == 0 {
		return task, nil, xe.WrapWithNote(dir+" reports no planes", domain.ErrMalformedSource)
	}
	return task, h, nil
}

func (d Deps) locate(ctx context.Context, key catalog.Key) (domain.TaskKey, domain.Method, string, error) {
	task, err := domain.TaskKeyFrom(key)
	if err != nil {
		return domain.TaskKey{}, "", "", err
	}
	method, err := d.Tasks.MethodOf(ctx, task)
	if err != nil {
		return task, "", "", err
	}
	if _, ok := d.Loaders[method]; !ok {
		return task, method, "", xe.WrapWithNote(method.String(), domain.ErrUnsupportedMethod)
	}
	dir, err := d.Locate.PathFor(method, task)
	if err != nil {
		return task, method, "", err
	}
	return task, method, dir, nil
}
