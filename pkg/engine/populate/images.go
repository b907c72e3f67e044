package populate

import (
	"context"

	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	"github.com/fieldline/imagingdb/pkg/engine"
)

type motionCorrectedImages struct {
	deps Deps
}

// NewMotionCorrectedImages builds the summary image maker. Its master is
// the MotionCorrection row already committed for the key; one image row
// per field is written here.
func NewMotionCorrectedImages(deps Deps) engine.Maker {
	return &motionCorrectedImages{deps: deps}
}

func (m *motionCorrectedImages) Make(ctx context.Context, key catalog.Key) (*domain.WriteSet, error) {
	task, h, err := m.deps.open(ctx, key)
	if err != nil {
		return nil, err
	}

	ws := domain.NewWriteSet()
	for _, plane := range h.PlaneResults() {
		ws.Add(domain.MotionCorrectedImages{
			TaskKey:          task,
			Field:            plane.Field,
			RefImage:         plane.Images.Ref,
			AverageImage:     plane.Images.Average,
			CorrelationImage: plane.Images.Correlation,
			MaxProjImage:     plane.Images.MaxProj,
		})
	}
	return ws, nil
}
