// Package tables holds the DDL of the record store and the per-entity
// insert statements.
//
// Note: this package does not verify consistency between records. The
// store layer decides transaction boundaries; everything here runs on the
// Queryer it is handed.
package tables

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgtype"

	kpgerr "github.com/fieldline/imagingdb/pkg/db/postgres/errors"
	"github.com/fieldline/imagingdb/pkg/db/postgres/pool"
	"github.com/fieldline/imagingdb/pkg/domain"
)

//go:embed schema.sql
var schema string

//go:embed seed.sql
var seed string

// Apply creates the entity tables and seeds the lookup tables.
// It is idempotent.
func Apply(ctx context.Context, conn pool.Queryer) error {
	if _, err := conn.Exec(ctx, schema); err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, seed); err != nil {
		return err
	}
	return nil
}

// Insert writes one record into its entity table.
//
// Constraint violations come back as the domain errors ErrDuplicateKey
// and ErrDependencyMissing.
func Insert(ctx context.Context, conn pool.Queryer, r domain.Record) error {
	stmt, args, err := bind(r)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, stmt, args...); err != nil {
		return kpgerr.Translate(err, string(r.Kind()), r.RecordKey().String())
	}
	return nil
}

func bind(r domain.Record) (string, []interface{}, error) {
	switch rec := r.(type) {
	case domain.Scan:
		return `insert into "scan" ("scan_id") values ($1)`,
			[]interface{}{rec.ScanID}, nil

	case domain.ScanInfo:
		return `
			insert into "scan_info" ("scan_id", "nfields", "nchannels", "nframes")
			values ($1, $2, $3, $4)
			`,
			[]interface{}{rec.ScanID, rec.NFields, rec.NChannels, rec.NFrames}, nil

	case domain.Field:
		return `
			insert into "field" ("scan_id", "field", "height", "width")
			values ($1, $2, $3, $4)
			`,
			[]interface{}{rec.ScanID, rec.Field, rec.Height, rec.Width}, nil

	case domain.Channel:
		return `insert into "channel" ("channel") values ($1)`,
			[]interface{}{rec.Channel}, nil

	case domain.PhysicalFile:
		return `insert into "physical_file" ("file_path") values ($1)`,
			[]interface{}{rec.FilePath}, nil

	case domain.ProcessingMethodRow:
		return `insert into "processing_method" ("processing_method") values ($1)`,
			[]interface{}{rec.Method.String()}, nil

	case domain.MaskClassificationMethodRow:
		return `insert into "mask_classification_method" ("mask_classification_method") values ($1)`,
			[]interface{}{rec.Method}, nil

	case domain.DeconvolutionMethodRow:
		return `insert into "deconvolution_method" ("deconvolution_method") values ($1)`,
			[]interface{}{rec.Method}, nil

	case domain.RoiTypeRow:
		return `insert into "roi_type" ("roi_type") values ($1)`,
			[]interface{}{rec.RoiType}, nil

	case domain.ProcessingParamSet:
		return `
			insert into "processing_paramset"
				("processing_method", "paramset_idx", "description", "params_ref")
			values ($1, $2, $3, $4)
			`,
			[]interface{}{rec.Method.String(), rec.ParamsetIdx, rec.Description, rec.ParamsRef}, nil

	case domain.ProcessingTask:
		return `
			insert into "processing_task"
				("scan_id", "processing_instance", "processing_method", "paramset_idx")
			values ($1, $2, $3, $4)
			`,
			[]interface{}{rec.ScanID, rec.Instance, rec.Method.String(), rec.ParamsetIdx}, nil

	case domain.Processing:
		return `
			insert into "processing"
				("scan_id", "processing_instance", "start_time", "completion_time", "curation_time")
			values ($1, $2, $3, $4, $5)
			`,
			[]interface{}{rec.ScanID, rec.Instance, rec.StartTime, rec.CompletionTime, rec.CurationTime}, nil

	case domain.ProcessingOutputFile:
		return `
			insert into "processing_output_file" ("scan_id", "processing_instance", "file_path")
			values ($1, $2, $3)
			`,
			[]interface{}{rec.ScanID, rec.Instance, rec.FilePath}, nil

	case domain.MotionCorrection:
		return `
			insert into "motion_correction" ("scan_id", "processing_instance", "mc_channel")
			values ($1, $2, $3)
			`,
			[]interface{}{rec.ScanID, rec.Instance, rec.McChannel}, nil

	case domain.RigidMotionCorrection:
		return `
			insert into "rigid_motion_correction"
				("scan_id", "processing_instance", "field",
				 "outlier_frames", "y_shifts", "x_shifts", "y_std", "x_std", "z_drift")
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`,
			[]interface{}{
				rec.ScanID, rec.Instance, rec.Field,
				boolArray(rec.OutlierFrames),
				float8Array(rec.YShifts), float8Array(rec.XShifts),
				rec.YStd, rec.XStd,
				float8Array(rec.ZDrift),
			}, nil

	case domain.NonRigidMotionCorrection:
		return `
			insert into "non_rigid_motion_correction"
				("scan_id", "processing_instance", "field", "outlier_frames",
				 "block_height", "block_width", "block_count_y", "block_count_x", "z_drift")
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`,
			[]interface{}{
				rec.ScanID, rec.Instance, rec.Field,
				boolArray(rec.OutlierFrames),
				rec.BlockHeight, rec.BlockWidth, rec.BlockCountY, rec.BlockCountX,
				float8Array(rec.ZDrift),
			}, nil

	case domain.MotionCorrectionBlock:
		return `
			insert into "motion_correction_block"
				("scan_id", "processing_instance", "field", "block_id",
				 "block_y", "block_x", "y_shifts", "x_shifts", "y_std", "x_std")
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
			[]interface{}{
				rec.ScanID, rec.Instance, rec.Field, rec.BlockID,
				int4Array(rec.BlockY[:]), int4Array(rec.BlockX[:]),
				float8Array(rec.YShifts), float8Array(rec.XShifts),
				rec.YStd, rec.XStd,
			}, nil

	case domain.MotionCorrectedImages:
		corrWidth, corrPixels := imageColumns(rec.CorrelationImage)
		maxWidth, maxPixels := imageColumns(rec.MaxProjImage)
		return `
			insert into "motion_corrected_images"
				("scan_id", "processing_instance", "field",
				 "ref_image_width", "ref_image",
				 "average_image_width", "average_image",
				 "correlation_image_width", "correlation_image",
				 "max_proj_image_width", "max_proj_image")
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`,
			[]interface{}{
				rec.ScanID, rec.Instance, rec.Field,
				rec.RefImage.Width, float8Array(rec.RefImage.Pixels),
				rec.AverageImage.Width, float8Array(rec.AverageImage.Pixels),
				corrWidth, corrPixels,
				maxWidth, maxPixels,
			}, nil

	case domain.Segmentation:
		return `
			insert into "segmentation" ("scan_id", "processing_instance", "seg_channel")
			values ($1, $2, $3)
			`,
			[]interface{}{rec.ScanID, rec.Instance, rec.SegChannel}, nil

	case domain.Mask:
		return `
			insert into "mask"
				("scan_id", "processing_instance", "mask", "field",
				 "npix", "center_x", "center_y", "x_pix", "y_pix", "weights")
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
			[]interface{}{
				rec.ScanID, rec.Instance, rec.Mask, rec.Field,
				rec.NPix, rec.CenterX, rec.CenterY,
				int4Array(rec.XPix), int4Array(rec.YPix), float8Array(rec.Weights),
			}, nil

	case domain.Cell:
		return `
			insert into "cell" ("scan_id", "processing_instance", "mask", "is_cell", "cell_prob")
			values ($1, $2, $3, $4, $5)
			`,
			[]interface{}{rec.ScanID, rec.Instance, rec.Mask, rec.IsCell, rec.CellProb}, nil

	case domain.MaskClassification:
		return `
			insert into "mask_classification"
				("scan_id", "processing_instance", "mask_classification_method")
			values ($1, $2, $3)
			`,
			[]interface{}{rec.ScanID, rec.Instance, rec.ClassificationMethod}, nil

	case domain.MaskType:
		return `
			insert into "mask_type"
				("scan_id", "processing_instance", "mask_classification_method", "mask", "roi_type")
			values ($1, $2, $3, $4, $5)
			`,
			[]interface{}{rec.ScanID, rec.Instance, rec.ClassificationMethod, rec.Mask, rec.RoiType}, nil

	case domain.Fluorescence:
		return `
			insert into "fluorescence" ("scan_id", "processing_instance")
			values ($1, $2)
			`,
			[]interface{}{rec.ScanID, rec.Instance}, nil

	case domain.Trace:
		return `
			insert into "trace"
				("scan_id", "processing_instance", "mask", "fluo_channel", "fluo", "neuropil_fluo")
			values ($1, $2, $3, $4, $5, $6)
			`,
			[]interface{}{
				rec.ScanID, rec.Instance, rec.Mask, rec.FluoChannel,
				float8Array(rec.Fluo), float8Array(rec.NeuropilFluo),
			}, nil

	case domain.DeconvolvedCalciumActivity:
		return `
			insert into "deconvolved_calcium_activity"
				("scan_id", "processing_instance", "deconvolution_method")
			values ($1, $2, $3)
			`,
			[]interface{}{rec.ScanID, rec.Instance, rec.DeconvolutionMethod}, nil

	case domain.DFF:
		return `
			insert into "dff"
				("scan_id", "processing_instance", "deconvolution_method", "mask", "fluo_channel", "dff")
			values ($1, $2, $3, $4, $5, $6)
			`,
			[]interface{}{
				rec.ScanID, rec.Instance, rec.DeconvolutionMethod, rec.Mask, rec.FluoChannel,
				float8Array(rec.DFF),
			}, nil
	}

	return "", nil, fmt.Errorf("no table binding for record type %T", r)
}

func float8Array(v []float64) pgtype.Float8Array {
	a := pgtype.Float8Array{}
	if err := a.Set(v); err != nil {
		panic(err)
	}
	return a
}

func int4Array(v []int) pgtype.Int4Array {
	a := pgtype.Int4Array{}
	if err := a.Set(v); err != nil {
		panic(err)
	}
	return a
}

func boolArray(v []bool) pgtype.BoolArray {
	a := pgtype.BoolArray{}
	if err := a.Set(v); err != nil {
		panic(err)
	}
	return a
}

// imageColumns splits an optional summary image into its width and pixel
// columns, both null when the image is absent.
func imageColumns(img *domain.Image) (interface{}, pgtype.Float8Array) {
	if img == nil {
		return nil, float8Array(nil)
	}
	return img.Width, float8Array(img.Pixels)
}
