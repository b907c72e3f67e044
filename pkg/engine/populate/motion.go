package populate

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	"github.com/fieldline/imagingdb/pkg/engine"
)

type motionCorrection struct {
	deps Deps
}

// NewMotionCorrection builds the MotionCorrection maker: the master row
// plus per-field rigid rows, and non-rigid rows with their blocks for
// fields the tool corrected piece-wise.
func NewMotionCorrection(deps Deps) engine.Maker {
	return &motionCorrection{deps: deps}
}

func (m *motionCorrection) Make(ctx context.Context, key catalog.Key) (*domain.WriteSet, error) {
	task, h, err := m.deps.open(ctx, key)
	if err != nil {
		return nil, err
	}

	planes := h.PlaneResults()
	ws := domain.NewWriteSet(domain.MotionCorrection{
		TaskKey:   task,
		McChannel: planes[0].AlignmentChannel,
	})

	for _, plane := range planes {
		rigid := plane.Rigid
		ws.Add(domain.RigidMotionCorrection{
			TaskKey:       task,
			Field:         plane.Field,
			OutlierFrames: rigid.OutlierFrames,
			YShifts:       rigid.YShifts,
			XShifts:       rigid.XShifts,
			YStd:          nanStd(rigid.YShifts),
			XStd:          nanStd(rigid.XShifts),
			ZDrift:        rigid.ZDrift,
		})

		nr := plane.NonRigid
		if nr == nil {
			continue
		}
		ws.Add(domain.NonRigidMotionCorrection{
			TaskKey:       task,
			Field:         plane.Field,
			OutlierFrames: rigid.OutlierFrames,
			BlockHeight:   nr.BlockHeight,
			BlockWidth:    nr.BlockWidth,
			BlockCountY:   nr.BlockCountY,
			BlockCountX:   nr.BlockCountX,
			ZDrift:        rigid.ZDrift,
		})
		for blockID, block := range nr.Blocks {
			ws.Add(domain.MotionCorrectionBlock{
				TaskKey: task,
				Field:   plane.Field,
				BlockID: blockID,
				BlockY:  block.BlockY,
				BlockX:  block.BlockX,
				YShifts: block.YShifts,
				XShifts: block.XShifts,
				YStd:    nanStd(block.YShifts),
				XStd:    nanStd(block.XShifts),
			})
		}
	}
	return ws, nil
}

// nanStd is the population standard deviation over non-NaN samples.
func nanStd(xs []float64) float64 {
	kept := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			kept = append(kept, x)
		}
	}
	if len(kept) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(kept, nil)
	return math.Sqrt(stat.MomentAbout(2, kept, mean, nil))
}
