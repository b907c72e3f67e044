// Package loader is the boundary between external analysis tool output
// and canonical records.
//
// A Loader reads one tool's output directory and hands back plane-wise
// result structures. Loaders never touch the record store; they are pure
// read/transform adapters. One implementation exists per processing
// method, under this package.
package loader

import (
	"time"

	"github.com/fieldline/imagingdb/pkg/domain"
)

// Loader opens the output directory of one external tool run.
//
// Open fails with domain.ErrSourceNotFound when dir does not exist, and
// with domain.ErrMalformedSource when it exists but its contents do not
// match the tool's expected layout. It never partially succeeds.
type Loader interface {
	Open(dir string) (Handle, error)
}

// Handle is one successfully opened result set.
type Handle interface {
	// PlaneResults lists per-plane results, ordered by ascending field id,
	// never empty. The order is a contract: mask numbering across planes
	// depends on it.
	PlaneResults() []PlaneResult

	// CreationTime is when this result set was generated.
	CreationTime() time.Time

	// CurationTime is the latest later modification of the result files,
	// nil when the results were never touched after generation.
	CurationTime() *time.Time

	// OutputFiles lists the absolute paths of the regular files making up
	// this result set.
	OutputFiles() []string
}

// PlaneResult is the canonical result of one optical plane.
type PlaneResult struct {
	Field int

	// channel used by the tool for alignment
	AlignmentChannel int

	// channel the segmentation was run on
	SegmentationChannel int

	Rigid    RigidMotion
	NonRigid *NonRigidMotion

	Images SummaryImages

	// segmented masks in the tool's local order
	Masks []MaskStat

	// channel 0 traces, indexed like Masks
	Fluo ChannelTraces

	// second-channel traces; nil for single-channel recordings
	Chan2 *ChannelTraces
}

type RigidMotion struct {
	OutlierFrames []bool
	YShifts       []float64
	XShifts       []float64

	// optional; nil when the tool does not report z-drift
	ZDrift []float64
}

// NonRigidMotion exists only when the tool reports piece-wise rigid
// correction was used.
type NonRigidMotion struct {
	BlockHeight int
	BlockWidth  int
	BlockCountY int
	BlockCountX int
	Blocks      []BlockMotion
}

type BlockMotion struct {
	// (start, end) pixel bounds
	BlockY [2]int
	BlockX [2]int

	YShifts []float64
	XShifts []float64
}

type SummaryImages struct {
	Ref     domain.Image
	Average domain.Image

	// nil when the tool did not produce them
	Correlation *domain.Image
	MaxProj     *domain.Image
}

type MaskStat struct {
	NPix     int
	CenterX  int
	CenterY  int
	XPix     []int
	YPix     []int
	Weights  []float64
	IsCell   bool
	CellProb float64
}

// ChannelTraces carries per-mask traces of one channel,
// in the same order as PlaneResult.Masks.
type ChannelTraces struct {
	Fluo     [][]float64
	Neuropil [][]float64
}
