package populate

import (
	"context"
	"errors"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	"github.com/fieldline/imagingdb/pkg/engine"
	xe "github.com/fieldline/imagingdb/pkg/errors"
)

type processing struct {
	deps  Deps
	files kdb.FileInterface
	root  engine.FileRoot

	// nil when this deployment does not launch the tool itself
	trigger engine.Trigger
}

// NewProcessing builds the Processing maker.
//
// Processing is the only triggerable entity type: when the output
// directory does not exist yet, the tool is (optionally) launched and
// the key is left pending. Nothing is inserted on that path, not even a
// placeholder.
func NewProcessing(deps Deps, files kdb.FileInterface, root engine.FileRoot, trigger engine.Trigger) engine.Maker {
	return &processing{deps: deps, files: files, root: root, trigger: trigger}
}

func (p *processing) Make(ctx context.Context, key catalog.Key) (*domain.WriteSet, error) {
	task, method, dir, err := p.deps.locate(ctx, key)
	if err != nil {
		return nil, err
	}

	h, err := p.deps.Loaders[method].Open(dir)
	if errors.Is(err, domain.ErrSourceNotFound) {
		if p.trigger != nil {
			if terr := p.trigger.Launch(ctx, method, task); terr != nil {
				return nil, terr
			}
		}
		return nil, xe.WrapWithNote(key.String(), domain.ErrNotYetTriggered)
	}
	if err != nil {
		return nil, err
	}

	rec := domain.Processing{
		TaskKey:        task,
		CompletionTime: h.CreationTime(),
		CurationTime:   h.CurationTime(),
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	ws := domain.NewWriteSet(rec)
	for _, abs := range h.OutputFiles() {
		rel, err := p.root.Relativize(abs)
		if err != nil {
			return nil, err
		}
		// the registry tolerates duplicates, so registering before the
		// write set commits is safe even if the commit fails.
		if err := p.files.RegisterIfAbsent(ctx, rel); err != nil {
			return nil, err
		}
		ws.Add(domain.ProcessingOutputFile{TaskKey: task, FilePath: rel})
	}
	return ws, nil
}
