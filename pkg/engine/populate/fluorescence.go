package populate

import (
	"context"

	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	"github.com/fieldline/imagingdb/pkg/engine"
)

type fluorescence struct {
	deps Deps
}

// NewFluorescence builds the Fluorescence maker: channel 0 traces for
// every mask, channel 1 traces for planes with second-channel output.
//
// Trace mask ids use the same cross-plane counter as Segmentation, so
// each trace lands on the cell it was extracted from.
func NewFluorescence(deps Deps) engine.Maker {
	return &fluorescence{deps: deps}
}

func (f *fluorescence) Make(ctx context.Context, key catalog.Key) (*domain.WriteSet, error) {
	task, h, err := f.deps.open(ctx, key)
	if err != nil {
		return nil, err
	}

	ws := domain.NewWriteSet(domain.Fluorescence{TaskKey: task})

	maskCount := 0
	for _, plane := range h.PlaneResults() {
		for i, fluo := range plane.Fluo.Fluo {
			ws.Add(domain.Trace{
				TaskKey:      task,
				Mask:         maskCount + i,
				FluoChannel:  0,
				Fluo:         fluo,
				NeuropilFluo: plane.Fluo.Neuropil[i],
			})
		}
		if chan2 := plane.Chan2; chan2 != nil {
			for i, fluo := range chan2.Fluo {
				ws.Add(domain.Trace{
					TaskKey:      task,
					Mask:         maskCount + i,
					FluoChannel:  1,
					Fluo:         fluo,
					NeuropilFluo: chan2.Neuropil[i],
				})
			}
		}

		// advance by masks, not traces: a second channel adds traces
		// for the same masks, not new masks.
		maskCount += len(plane.Fluo.Fluo)
	}
	return ws, nil
}
