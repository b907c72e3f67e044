package populate

import (
	"context"

	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	"github.com/fieldline/imagingdb/pkg/engine"
)

type segmentation struct {
	deps Deps
}

// NewSegmentation builds the Segmentation maker.
//
// Mask ids continue across planes: the counter carries over from one
// plane to the next in the handle's ascending field order, so the same
// plane results always yield the same ids.
func NewSegmentation(deps Deps) engine.Maker {
	return &segmentation{deps: deps}
}

func (s *segmentation) Make(ctx context.Context, key catalog.Key) (*domain.WriteSet, error) {
	task, h, err := s.deps.open(ctx, key)
	if err != nil {
		return nil, err
	}

	planes := h.PlaneResults()
	ws := domain.NewWriteSet(domain.Segmentation{
		TaskKey:    task,
		SegChannel: planes[0].SegmentationChannel,
	})

	cells := []domain.Cell{}
	maskID := 0
	for _, plane := range planes {
		for _, stat := range plane.Masks {
			ws.Add(domain.Mask{
				TaskKey: task,
				Mask:    maskID,
				Field:   plane.Field,
				NPix:    stat.NPix,
				CenterX: stat.CenterX,
				CenterY: stat.CenterY,
				XPix:    stat.XPix,
				YPix:    stat.YPix,
				Weights: stat.Weights,
			})
			cells = append(cells, domain.Cell{
				TaskKey:  task,
				Mask:     maskID,
				IsCell:   stat.IsCell,
				CellProb: stat.CellProb,
			})
			maskID++
		}
	}

	// cell rows go after every mask row they reference
	for _, c := range cells {
		ws.Add(c)
	}
	return ws, nil
}
