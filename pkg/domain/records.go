package domain

import (
	"time"

	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	xe "github.com/fieldline/imagingdb/pkg/errors"
)

// ---- upstream entities ----

type Scan struct {
	ScanID string
}

func (s Scan) Kind() catalog.EntityType { return catalog.Scan }
func (s Scan) RecordKey() catalog.Key {
	return catalog.KeyOf(catalog.KeyElem{Column: catalog.ColScanID, Value: s.ScanID})
}

// ScanInfo is the extracted metadata of a scan. Its presence gates the
// first population pass (no Processing is made before metadata exists).
type ScanInfo struct {
	ScanID    string
	NFields   int
	NChannels int
	NFrames   int
}

func (s ScanInfo) Kind() catalog.EntityType { return catalog.ScanInfo }
func (s ScanInfo) RecordKey() catalog.Key {
	return catalog.KeyOf(catalog.KeyElem{Column: catalog.ColScanID, Value: s.ScanID})
}

// Field is one optical plane of a scan.
type Field struct {
	ScanID string
	Field  int
	Height int
	Width  int
}

func (f Field) Kind() catalog.EntityType { return catalog.Field }
func (f Field) RecordKey() catalog.Key {
	return catalog.KeyOf(
		catalog.KeyElem{Column: catalog.ColScanID, Value: f.ScanID},
		intElem(catalog.ColField, f.Field),
	)
}

type Channel struct {
	Channel int
}

func (c Channel) Kind() catalog.EntityType { return catalog.Channel }
func (c Channel) RecordKey() catalog.Key {
	return catalog.KeyOf(intElem(catalog.ColChannel, c.Channel))
}

type PhysicalFile struct {
	// path relative to the deployment's file root, in posix form
	FilePath string
}

func (f PhysicalFile) Kind() catalog.EntityType { return catalog.PhysicalFile }
func (f PhysicalFile) RecordKey() catalog.Key {
	return catalog.KeyOf(catalog.KeyElem{Column: catalog.ColFilePath, Value: f.FilePath})
}

// ---- lookups & manual entities ----

// Lookup rows carry nothing but their key. Dedicated types keep their
// registration typed like every other record.

type ProcessingMethodRow struct {
	Method Method
}

func (r ProcessingMethodRow) Kind() catalog.EntityType { return catalog.ProcessingMethod }
func (r ProcessingMethodRow) RecordKey() catalog.Key {
	return catalog.KeyOf(catalog.KeyElem{Column: catalog.ColProcessingMethod, Value: r.Method.String()})
}

type MaskClassificationMethodRow struct {
	Method string
}

func (r MaskClassificationMethodRow) Kind() catalog.EntityType {
	return catalog.MaskClassificationMethod
}
func (r MaskClassificationMethodRow) RecordKey() catalog.Key {
	return catalog.KeyOf(catalog.KeyElem{Column: catalog.ColMaskClassificationMethod, Value: r.Method})
}

type DeconvolutionMethodRow struct {
	Method string
}

func (r DeconvolutionMethodRow) Kind() catalog.EntityType { return catalog.DeconvolutionMethod }
func (r DeconvolutionMethodRow) RecordKey() catalog.Key {
	return catalog.KeyOf(catalog.KeyElem{Column: catalog.ColDeconvolutionMethod, Value: r.Method})
}

type RoiTypeRow struct {
	RoiType string
}

func (r RoiTypeRow) Kind() catalog.EntityType { return catalog.RoiType }
func (r RoiTypeRow) RecordKey() catalog.Key {
	return catalog.KeyOf(catalog.KeyElem{Column: catalog.ColRoiType, Value: r.RoiType})
}

type ProcessingParamSet struct {
	Method      Method
	ParamsetIdx int
	Description string

	// method-specific reference into the method's own parameter storage
	ParamsRef string
}

func (p ProcessingParamSet) Kind() catalog.EntityType { return catalog.ProcessingParamSet }
func (p ProcessingParamSet) RecordKey() catalog.Key {
	return catalog.KeyOf(
		catalog.KeyElem{Column: catalog.ColProcessingMethod, Value: p.Method.String()},
		intElem(catalog.ColParamsetIdx, p.ParamsetIdx),
	)
}

// ProcessingTask is the manual record of intent:
// "run this param set on this scan".
type ProcessingTask struct {
	TaskKey
	Method      Method
	ParamsetIdx int
}

func (t ProcessingTask) Kind() catalog.EntityType { return catalog.ProcessingTask }
func (t ProcessingTask) RecordKey() catalog.Key   { return t.TaskKey.Key() }

// ---- computed entities ----

type Processing struct {
	TaskKey

	// when the engine launched the external tool; nil when results were
	// found already computed.
	StartTime *time.Time

	// set exactly once when the result set is committed, immutable after.
	CompletionTime time.Time

	// latest modification of the result files; nil when never curated.
	// Never before CompletionTime.
	CurationTime *time.Time
}

func (p Processing) Kind() catalog.EntityType { return catalog.Processing }
func (p Processing) RecordKey() catalog.Key   { return p.TaskKey.Key() }

// Validate rejects rows breaking the completion/curation ordering.
func (p Processing) Validate() error {
	if p.CompletionTime.IsZero() {
		return xe.WrapWithNote("processing "+p.TaskKey.Key().String(), ErrMalformedSource)
	}
	if p.CurationTime != nil && p.CurationTime.Before(p.CompletionTime) {
		return xe.WrapWithNote(
			"processing "+p.TaskKey.Key().String()+": curated before completion",
			ErrMalformedSource,
		)
	}
	return nil
}

type ProcessingOutputFile struct {
	TaskKey
	FilePath string
}

func (f ProcessingOutputFile) Kind() catalog.EntityType { return catalog.ProcessingOutputFile }
func (f ProcessingOutputFile) RecordKey() catalog.Key {
	return f.TaskKey.Key().Extend(catalog.KeyElem{Column: catalog.ColFilePath, Value: f.FilePath})
}

type MotionCorrection struct {
	TaskKey

	// channel used for alignment
	McChannel int
}

func (m MotionCorrection) Kind() catalog.EntityType { return catalog.MotionCorrection }
func (m MotionCorrection) RecordKey() catalog.Key   { return m.TaskKey.Key() }

type RigidMotionCorrection struct {
	TaskKey
	Field int

	// true for frames with outlier shifts (already corrected)
	OutlierFrames []bool

	YShifts []float64
	XShifts []float64
	YStd    float64
	XStd    float64

	// z-drift over frames of this field; nil when the tool does not report it
	ZDrift []float64
}

func (m RigidMotionCorrection) Kind() catalog.EntityType { return catalog.RigidMotionCorrection }
func (m RigidMotionCorrection) RecordKey() catalog.Key {
	return m.TaskKey.Key().Extend(intElem(catalog.ColField, m.Field))
}

// Piece-wise rigid motion correction: the FOV tiled into 2D blocks.
// Exists only when the upstream tool reports non-rigid correction was used.
type NonRigidMotionCorrection struct {
	TaskKey
	Field int

	OutlierFrames []bool
	BlockHeight   int
	BlockWidth    int
	BlockCountY   int
	BlockCountX   int
	ZDrift        []float64
}

func (m NonRigidMotionCorrection) Kind() catalog.EntityType {
	return catalog.NonRigidMotionCorrection
}
func (m NonRigidMotionCorrection) RecordKey() catalog.Key {
	return m.TaskKey.Key().Extend(intElem(catalog.ColField, m.Field))
}

type MotionCorrectionBlock struct {
	TaskKey
	Field   int
	BlockID int

	// (start, end) bounds of this block, in pixels
	BlockY [2]int
	BlockX [2]int

	YShifts []float64
	XShifts []float64
	YStd    float64
	XStd    float64
}

func (b MotionCorrectionBlock) Kind() catalog.EntityType { return catalog.MotionCorrectionBlock }
func (b MotionCorrectionBlock) RecordKey() catalog.Key {
	return b.TaskKey.Key().Extend(
		intElem(catalog.ColField, b.Field),
		intElem(catalog.ColBlockID, b.BlockID),
	)
}

// Image is a 2D summary image stored row-major.
type Image struct {
	Width  int
	Pixels []float64
}

type MotionCorrectedImages struct {
	TaskKey
	Field int

	// image used as alignment template
	RefImage Image

	// mean of registered frames
	AverageImage Image

	// computed during cell detection; not all runs have it
	CorrelationImage *Image

	MaxProjImage *Image
}

func (m MotionCorrectedImages) Kind() catalog.EntityType { return catalog.MotionCorrectedImages }
func (m MotionCorrectedImages) RecordKey() catalog.Key {
	return m.TaskKey.Key().Extend(intElem(catalog.ColField, m.Field))
}

type Segmentation struct {
	TaskKey

	// channel used for the segmentation
	SegChannel int
}

func (s Segmentation) Kind() catalog.EntityType { return catalog.Segmentation }
func (s Segmentation) RecordKey() catalog.Key   { return s.TaskKey.Key() }

type Mask struct {
	TaskKey

	// unique within one Segmentation, counted up across all fields
	Mask int

	// the field this ROI comes from
	Field int

	NPix    int
	CenterX int
	CenterY int
	XPix    []int
	YPix    []int
	Weights []float64
}

func (m Mask) Kind() catalog.EntityType { return catalog.Mask }
func (m Mask) RecordKey() catalog.Key {
	return m.TaskKey.Key().Extend(intElem(catalog.ColMask, m.Mask))
}

type Cell struct {
	TaskKey
	Mask int

	IsCell   bool
	CellProb float64
}

func (c Cell) Kind() catalog.EntityType { return catalog.Cell }
func (c Cell) RecordKey() catalog.Key {
	return c.TaskKey.Key().Extend(intElem(catalog.ColMask, c.Mask))
}

type MaskClassification struct {
	TaskKey
	ClassificationMethod string
}

func (m MaskClassification) Kind() catalog.EntityType { return catalog.MaskClassification }
func (m MaskClassification) RecordKey() catalog.Key {
	return m.TaskKey.Key().Extend(
		catalog.KeyElem{Column: catalog.ColMaskClassificationMethod, Value: m.ClassificationMethod},
	)
}

type MaskType struct {
	TaskKey
	ClassificationMethod string
	Mask                 int
	RoiType              string
}

func (m MaskType) Kind() catalog.EntityType { return catalog.MaskType }
func (m MaskType) RecordKey() catalog.Key {
	return m.TaskKey.Key().Extend(
		catalog.KeyElem{Column: catalog.ColMaskClassificationMethod, Value: m.ClassificationMethod},
		intElem(catalog.ColMask, m.Mask),
	)
}

type Fluorescence struct {
	TaskKey
}

func (f Fluorescence) Kind() catalog.EntityType { return catalog.Fluorescence }
func (f Fluorescence) RecordKey() catalog.Key   { return f.TaskKey.Key() }

type Trace struct {
	TaskKey
	Mask        int
	FluoChannel int

	Fluo         []float64
	NeuropilFluo []float64
}

func (t Trace) Kind() catalog.EntityType { return catalog.Trace }
func (t Trace) RecordKey() catalog.Key {
	return t.TaskKey.Key().Extend(
		intElem(catalog.ColMask, t.Mask),
		intElem(catalog.ColFluoChannel, t.FluoChannel),
	)
}

type DeconvolvedCalciumActivity struct {
	TaskKey
	DeconvolutionMethod string
}

func (d DeconvolvedCalciumActivity) Kind() catalog.EntityType {
	return catalog.DeconvolvedCalciumActivity
}
func (d DeconvolvedCalciumActivity) RecordKey() catalog.Key {
	return d.TaskKey.Key().Extend(
		catalog.KeyElem{Column: catalog.ColDeconvolutionMethod, Value: d.DeconvolutionMethod},
	)
}

type DFF struct {
	TaskKey
	DeconvolutionMethod string
	Mask                int
	FluoChannel         int

	DFF []float64
}

func (d DFF) Kind() catalog.EntityType { return catalog.DFF }
func (d DFF) RecordKey() catalog.Key {
	return d.TaskKey.Key().Extend(
		catalog.KeyElem{Column: catalog.ColDeconvolutionMethod, Value: d.DeconvolutionMethod},
		intElem(catalog.ColMask, d.Mask),
		intElem(catalog.ColFluoChannel, d.FluoChannel),
	)
}
