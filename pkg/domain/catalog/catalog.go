// Package catalog declares the entity types of the imaging pipeline:
// their key schemas, their parent entity types, and, for computed entity
// types, the key source their population is driven from.
//
// The catalog is an immutable value built once at process start and passed
// to whoever needs it. Its dependency edges form a DAG; New fails when the
// declaration is cyclic or dangling.
package catalog

import (
	"fmt"

	xe "github.com/fieldline/imagingdb/pkg/errors"
)

type EntityType string

func (t EntityType) String() string {
	return string(t)
}

const (
	// upstream entities (owned by scan acquisition, referenced here)
	Scan         EntityType = "scan"
	ScanInfo     EntityType = "scan_info"
	Field        EntityType = "field"
	Channel      EntityType = "channel"
	PhysicalFile EntityType = "physical_file"

	// lookups
	ProcessingMethod         EntityType = "processing_method"
	ProcessingParamSet       EntityType = "processing_paramset"
	MaskClassificationMethod EntityType = "mask_classification_method"
	RoiType                  EntityType = "roi_type"
	DeconvolutionMethod      EntityType = "deconvolution_method"

	// manual
	ProcessingTask EntityType = "processing_task"

	// computed masters and their part entities
	Processing                 EntityType = "processing"
	ProcessingOutputFile       EntityType = "processing_output_file"
	MotionCorrection           EntityType = "motion_correction"
	RigidMotionCorrection      EntityType = "rigid_motion_correction"
	NonRigidMotionCorrection   EntityType = "non_rigid_motion_correction"
	MotionCorrectionBlock      EntityType = "motion_correction_block"
	MotionCorrectedImages      EntityType = "motion_corrected_images"
	Segmentation               EntityType = "segmentation"
	Mask                       EntityType = "mask"
	Cell                       EntityType = "cell"
	MaskClassification         EntityType = "mask_classification"
	MaskType                   EntityType = "mask_type"
	Fluorescence               EntityType = "fluorescence"
	Trace                      EntityType = "trace"
	DeconvolvedCalciumActivity EntityType = "deconvolved_calcium_activity"
	DFF                        EntityType = "dff"
)

func AsEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if _, ok := entities[t]; !ok {
		return "", xe.New("unknown entity type: " + s)
	}
	return t, nil
}

// key column names shared between entity types
const (
	ColScanID                   = "scan_id"
	ColProcessingInstance       = "processing_instance"
	ColField                    = "field"
	ColChannel                  = "channel"
	ColFilePath                 = "file_path"
	ColProcessingMethod         = "processing_method"
	ColParamsetIdx              = "paramset_idx"
	ColBlockID                  = "block_id"
	ColMask                     = "mask"
	ColMaskClassificationMethod = "mask_classification_method"
	ColRoiType                  = "roi_type"
	ColFluoChannel              = "fluo_channel"
	ColDeconvolutionMethod      = "deconvolution_method"
)

// TaskKeySchema is the key shape shared by ProcessingTask and every
// entity computed per task. It is the unit of population.
var TaskKeySchema = KeySchema{ColScanID, ColProcessingInstance}

type spec struct {
	key     KeySchema
	parents []EntityType

	// key source, set only for populatable entity types:
	// sources are joined (cartesian product over their key schemas),
	// required restricts eligibility to keys whose projection is present.
	sources  []EntityType
	required []EntityType
}

var entities = map[EntityType]spec{
	Scan:         {key: KeySchema{ColScanID}},
	ScanInfo:     {key: KeySchema{ColScanID}, parents: []EntityType{Scan}},
	Field:        {key: KeySchema{ColScanID, ColField}, parents: []EntityType{ScanInfo}},
	Channel:      {key: KeySchema{ColChannel}},
	PhysicalFile: {key: KeySchema{ColFilePath}},

	ProcessingMethod: {key: KeySchema{ColProcessingMethod}},
	ProcessingParamSet: {
		key:     KeySchema{ColProcessingMethod, ColParamsetIdx},
		parents: []EntityType{ProcessingMethod},
	},
	MaskClassificationMethod: {key: KeySchema{ColMaskClassificationMethod}},
	RoiType:                  {key: KeySchema{ColRoiType}},
	DeconvolutionMethod:      {key: KeySchema{ColDeconvolutionMethod}},

	ProcessingTask: {
		key:     TaskKeySchema,
		parents: []EntityType{Scan, ProcessingParamSet},
	},

	Processing: {
		key:      TaskKeySchema,
		parents:  []EntityType{ProcessingTask},
		sources:  []EntityType{ProcessingTask},
		required: []EntityType{ScanInfo},
	},
	ProcessingOutputFile: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColFilePath},
		parents: []EntityType{Processing, PhysicalFile},
	},
	MotionCorrection: {
		key:      TaskKeySchema,
		parents:  []EntityType{ProcessingTask, Channel},
		sources:  []EntityType{ProcessingTask},
		required: []EntityType{Processing},
	},
	RigidMotionCorrection: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColField},
		parents: []EntityType{MotionCorrection, Field},
	},
	NonRigidMotionCorrection: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColField},
		parents: []EntityType{MotionCorrection, Field},
	},
	MotionCorrectionBlock: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColField, ColBlockID},
		parents: []EntityType{NonRigidMotionCorrection},
	},
	MotionCorrectedImages: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColField},
		parents: []EntityType{MotionCorrection, Field},
		sources: []EntityType{MotionCorrection},
	},
	Segmentation: {
		key:     TaskKeySchema,
		parents: []EntityType{MotionCorrection, Channel},
		sources: []EntityType{MotionCorrection},
	},
	Mask: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColMask},
		parents: []EntityType{Segmentation, Field},
	},
	Cell: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColMask},
		parents: []EntityType{Mask},
	},
	MaskClassification: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColMaskClassificationMethod},
		parents: []EntityType{Segmentation, MaskClassificationMethod},
		sources: []EntityType{Segmentation, MaskClassificationMethod},
	},
	MaskType: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColMaskClassificationMethod, ColMask},
		parents: []EntityType{MaskClassification, Cell, RoiType},
	},
	Fluorescence: {
		key:     TaskKeySchema,
		parents: []EntityType{Segmentation},
		sources: []EntityType{Segmentation},
	},
	Trace: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColMask, ColFluoChannel},
		parents: []EntityType{Fluorescence, Cell, Channel},
	},
	DeconvolvedCalciumActivity: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColDeconvolutionMethod},
		parents: []EntityType{Fluorescence, DeconvolutionMethod},
		sources: []EntityType{Fluorescence, DeconvolutionMethod},
	},
	DFF: {
		key:     KeySchema{ColScanID, ColProcessingInstance, ColDeconvolutionMethod, ColMask, ColFluoChannel},
		parents: []EntityType{DeconvolvedCalciumActivity, Trace},
	},
}

// Catalog is the validated, immutable entity declaration.
type Catalog struct {
	specs map[EntityType]spec
}

// New builds the catalog and validates it: every parent must be declared,
// the parent edges must be acyclic, and every non-root entity's key must
// extend (at least) one of its parents' keys.
func New() (*Catalog, error) {
	return build(entities)
}

func build(specs map[EntityType]spec) (*Catalog, error) {
	for t, s := range specs {
		for _, p := range s.parents {
			if _, ok := specs[p]; !ok {
				return nil, xe.New(fmt.Sprintf("entity %s has undeclared parent %s", t, p))
			}
		}
		for _, src := range append(append([]EntityType{}, s.sources...), s.required...) {
			if _, ok := specs[src]; !ok {
				return nil, xe.New(fmt.Sprintf("entity %s has undeclared key source %s", t, src))
			}
		}

		if len(s.parents) == 0 {
			continue
		}
		extendsOne := false
		for _, p := range s.parents {
			if specs[p].key.SubsetOf(s.key) {
				extendsOne = true
				break
			}
		}
		if !extendsOne {
			return nil, xe.New(fmt.Sprintf("entity %s: key does not extend any parent key", t))
		}
	}

	// cycle check: colors 0 = unseen, 1 = on stack, 2 = done
	colors := map[EntityType]int{}
	var visit func(t EntityType) error
	visit = func(t EntityType) error {
		switch colors[t] {
		case 1:
			return xe.New(fmt.Sprintf("entity dependency cycle through %s", t))
		case 2:
			return nil
		}
		colors[t] = 1
		for _, p := range specs[t].parents {
			if err := visit(p); err != nil {
				return err
			}
		}
		colors[t] = 2
		return nil
	}
	for t := range specs {
		if err := visit(t); err != nil {
			return nil, err
		}
	}

	return &Catalog{specs: specs}, nil
}

func (c *Catalog) Contains(t EntityType) bool {
	_, ok := c.specs[t]
	return ok
}

func (c *Catalog) ParentsOf(t EntityType) []EntityType {
	s, ok := c.specs[t]
	if !ok {
		return nil
	}
	parents := make([]EntityType, len(s.parents))
	copy(parents, s.parents)
	return parents
}

func (c *Catalog) KeySchemaOf(t EntityType) (KeySchema, bool) {
	s, ok := c.specs[t]
	if !ok {
		return nil, false
	}
	schema := make(KeySchema, len(s.key))
	copy(schema, s.key)
	return schema, true
}

// KeySource tells how population of entity type t finds its pending work.
//
// Returns:
//
// - sources: entity types whose present keys, joined (cartesian product),
// form the candidate universe.
//
// - required: entity types a candidate key's projection must be present in.
//
// - ok: false when t is not populatable (lookups, manual or part entities).
func (c *Catalog) KeySource(t EntityType) (sources []EntityType, required []EntityType, ok bool) {
	s, found := c.specs[t]
	if !found || len(s.sources) == 0 {
		return nil, nil, false
	}
	sources = make([]EntityType, len(s.sources))
	copy(sources, s.sources)
	required = make([]EntityType, len(s.required))
	copy(required, s.required)
	return sources, required, true
}

// SourceKeySchema is the key shape of eligible keys for t: the
// concatenation of the key schemas of t's sources.
func (c *Catalog) SourceKeySchema(t EntityType) (KeySchema, bool) {
	sources, _, ok := c.KeySource(t)
	if !ok {
		return nil, false
	}
	schema := KeySchema{}
	for _, src := range sources {
		s, _ := c.KeySchemaOf(src)
		schema = append(schema, s...)
	}
	return schema, true
}
