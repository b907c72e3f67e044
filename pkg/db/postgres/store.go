package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	kpgerr "github.com/fieldline/imagingdb/pkg/db/postgres/errors"
	kpool "github.com/fieldline/imagingdb/pkg/db/postgres/pool"
	"github.com/fieldline/imagingdb/pkg/db/postgres/tables"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	xe "github.com/fieldline/imagingdb/pkg/errors"
)

type storePG struct { // implements kdb.StoreInterface
	cat  *catalog.Catalog
	pool kpool.Pool
}

func NewStore(cat *catalog.Catalog, pool kpool.Pool) *storePG {
	return &storePG{cat: cat, pool: pool}
}

var _ kdb.StoreInterface = &storePG{}

// keyCondition renders the WHERE clause matching key's projection onto
// schema. Key values are text; columns are compared via their canonical
// text rendering, which keeps the clause generic over column types.
func keyCondition(schema catalog.KeySchema, key catalog.Key, firstArg int) (string, []interface{}, error) {
	projected, err := key.Project(schema)
	if err != nil {
		return "", nil, err
	}
	conds := make([]string, len(projected))
	args := make([]interface{}, len(projected))
	for i, e := range projected {
		conds[i] = fmt.Sprintf(`"%s"::text = $%d`, e.Column, firstArg+i)
		args[i] = e.Value
	}
	return strings.Join(conds, " and "), args, nil
}

func (s *storePG) Exists(ctx context.Context, t catalog.EntityType, key catalog.Key) (bool, error) {
	schema, ok := s.cat.KeySchemaOf(t)
	if !ok {
		return false, xe.New("unknown entity type: " + t.String())
	}
	cond, args, err := keyCondition(schema, key, 1)
	if err != nil {
		return false, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	var found bool
	if err := conn.QueryRow(
		ctx,
		`select exists (select 1 from "`+t.String()+`" where `+cond+`)`,
		args...,
	).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func (s *storePG) KeysPresent(ctx context.Context, t catalog.EntityType, onto catalog.KeySchema) ([]catalog.Key, error) {
	schema, ok := s.cat.KeySchemaOf(t)
	if !ok {
		return nil, xe.New("unknown entity type: " + t.String())
	}
	if !onto.SubsetOf(schema) {
		return nil, xe.New(fmt.Sprintf(
			"projection %v is not a subset of the key of %s", onto, t,
		))
	}
	if len(onto) == 0 {
		return nil, xe.New("empty projection schema")
	}

	cols := make([]string, len(onto))
	ords := make([]string, len(onto))
	for i, c := range onto {
		cols[i] = `"` + c + `"::text`
		ords[i] = strconv.Itoa(i + 1)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`select distinct `+strings.Join(cols, ", ")+
			` from "`+t.String()+`" order by `+strings.Join(ords, ", "),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []catalog.Key{}
	values := make([]string, len(onto))
	dest := make([]interface{}, len(onto))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		key := make(catalog.Key, len(onto))
		for i, c := range onto {
			key[i] = catalog.KeyElem{Column: c, Value: values[i]}
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *storePG) InsertAtomic(ctx context.Context, ws *domain.WriteSet) error {
	if ws.Len() == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, r := range ws.Rows() {
		if err := tables.Insert(ctx, tx, r); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *storePG) FetchOne(ctx context.Context, t catalog.EntityType, key catalog.Key) (domain.Record, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return s.fetchOne(ctx, conn, t, key)
}

func (s *storePG) fetchOne(ctx context.Context, conn kpool.Conn, t catalog.EntityType, key catalog.Key) (domain.Record, error) {
	fetch := func(columns []string, dest ...interface{}) error {
		return s.fetchRow(ctx, conn, t, key, columns, dest...)
	}

	switch t {
	case catalog.Scan:
		rec := domain.Scan{}
		if err := fetch([]string{"scan_id"}, &rec.ScanID); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.ScanInfo:
		rec := domain.ScanInfo{}
		if err := fetch(
			[]string{"scan_id", "nfields", "nchannels", "nframes"},
			&rec.ScanID, &rec.NFields, &rec.NChannels, &rec.NFrames,
		); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.Field:
		rec := domain.Field{}
		if err := fetch(
			[]string{"scan_id", "field", "height", "width"},
			&rec.ScanID, &rec.Field, &rec.Height, &rec.Width,
		); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.Channel:
		rec := domain.Channel{}
		if err := fetch([]string{"channel"}, &rec.Channel); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.PhysicalFile:
		rec := domain.PhysicalFile{}
		if err := fetch([]string{"file_path"}, &rec.FilePath); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.ProcessingMethod:
		var method string
		if err := fetch([]string{"processing_method"}, &method); err != nil {
			return nil, err
		}
		return domain.ProcessingMethodRow{Method: domain.Method(method)}, nil

	case catalog.MaskClassificationMethod:
		rec := domain.MaskClassificationMethodRow{}
		if err := fetch([]string{"mask_classification_method"}, &rec.Method); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.DeconvolutionMethod:
		rec := domain.DeconvolutionMethodRow{}
		if err := fetch([]string{"deconvolution_method"}, &rec.Method); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.RoiType:
		rec := domain.RoiTypeRow{}
		if err := fetch([]string{"roi_type"}, &rec.RoiType); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.ProcessingParamSet:
		rec := domain.ProcessingParamSet{}
		var method string
		if err := fetch(
			[]string{"processing_method", "paramset_idx", "description", "params_ref"},
			&method, &rec.ParamsetIdx, &rec.Description, &rec.ParamsRef,
		); err != nil {
			return nil, err
		}
		rec.Method = domain.Method(method)
		return rec, nil

	case catalog.ProcessingTask:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.ProcessingTask{TaskKey: taskKey}
		var method string
		if err := fetch(
			[]string{"processing_method", "paramset_idx"},
			&method, &rec.ParamsetIdx,
		); err != nil {
			return nil, err
		}
		rec.Method = domain.Method(method)
		return rec, nil

	case catalog.Processing:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.Processing{TaskKey: taskKey}
		var start, curation pgtype.Timestamptz
		if err := fetch(
			[]string{"start_time", "completion_time", "curation_time"},
			&start, &rec.CompletionTime, &curation,
		); err != nil {
			return nil, err
		}
		if start.Status == pgtype.Present {
			t := start.Time
			rec.StartTime = &t
		}
		if curation.Status == pgtype.Present {
			t := curation.Time
			rec.CurationTime = &t
		}
		return rec, nil

	case catalog.ProcessingOutputFile:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.ProcessingOutputFile{TaskKey: taskKey}
		if err := fetch([]string{"file_path"}, &rec.FilePath); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.MotionCorrection:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.MotionCorrection{TaskKey: taskKey}
		if err := fetch([]string{"mc_channel"}, &rec.McChannel); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.RigidMotionCorrection:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.RigidMotionCorrection{TaskKey: taskKey}
		var zdrift pgtype.Float8Array
		if err := fetch(
			[]string{"field", "outlier_frames", "y_shifts", "x_shifts", "y_std", "x_std", "z_drift"},
			&rec.Field, &rec.OutlierFrames, &rec.YShifts, &rec.XShifts, &rec.YStd, &rec.XStd, &zdrift,
		); err != nil {
			return nil, err
		}
		if err := assignFloat8Array(zdrift, &rec.ZDrift); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.NonRigidMotionCorrection:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.NonRigidMotionCorrection{TaskKey: taskKey}
		var zdrift pgtype.Float8Array
		if err := fetch(
			[]string{
				"field", "outlier_frames",
				"block_height", "block_width", "block_count_y", "block_count_x", "z_drift",
			},
			&rec.Field, &rec.OutlierFrames,
			&rec.BlockHeight, &rec.BlockWidth, &rec.BlockCountY, &rec.BlockCountX, &zdrift,
		); err != nil {
			return nil, err
		}
		if err := assignFloat8Array(zdrift, &rec.ZDrift); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.MotionCorrectionBlock:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.MotionCorrectionBlock{TaskKey: taskKey}
		var blockY, blockX []int
		if err := fetch(
			[]string{"field", "block_id", "block_y", "block_x", "y_shifts", "x_shifts", "y_std", "x_std"},
			&rec.Field, &rec.BlockID, &blockY, &blockX, &rec.YShifts, &rec.XShifts, &rec.YStd, &rec.XStd,
		); err != nil {
			return nil, err
		}
		if len(blockY) != 2 || len(blockX) != 2 {
			return nil, xe.New("motion correction block bounds are not pairs")
		}
		copy(rec.BlockY[:], blockY)
		copy(rec.BlockX[:], blockX)
		return rec, nil

	case catalog.MotionCorrectedImages:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.MotionCorrectedImages{TaskKey: taskKey}
		var corrWidth, maxWidth pgtype.Int4
		var corrPixels, maxPixels pgtype.Float8Array
		if err := fetch(
			[]string{
				"field",
				"ref_image_width", "ref_image",
				"average_image_width", "average_image",
				"correlation_image_width", "correlation_image",
				"max_proj_image_width", "max_proj_image",
			},
			&rec.Field,
			&rec.RefImage.Width, &rec.RefImage.Pixels,
			&rec.AverageImage.Width, &rec.AverageImage.Pixels,
			&corrWidth, &corrPixels,
			&maxWidth, &maxPixels,
		); err != nil {
			return nil, err
		}
		if img, err := optionalImage(corrWidth, corrPixels); err != nil {
			return nil, err
		} else {
			rec.CorrelationImage = img
		}
		if img, err := optionalImage(maxWidth, maxPixels); err != nil {
			return nil, err
		} else {
			rec.MaxProjImage = img
		}
		return rec, nil

	case catalog.Segmentation:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.Segmentation{TaskKey: taskKey}
		if err := fetch([]string{"seg_channel"}, &rec.SegChannel); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.Mask:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.Mask{TaskKey: taskKey}
		if err := fetch(
			[]string{"mask", "field", "npix", "center_x", "center_y", "x_pix", "y_pix", "weights"},
			&rec.Mask, &rec.Field, &rec.NPix, &rec.CenterX, &rec.CenterY,
			&rec.XPix, &rec.YPix, &rec.Weights,
		); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.Cell:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.Cell{TaskKey: taskKey}
		if err := fetch(
			[]string{"mask", "is_cell", "cell_prob"},
			&rec.Mask, &rec.IsCell, &rec.CellProb,
		); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.MaskClassification:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.MaskClassification{TaskKey: taskKey}
		if err := fetch(
			[]string{"mask_classification_method"}, &rec.ClassificationMethod,
		); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.MaskType:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.MaskType{TaskKey: taskKey}
		if err := fetch(
			[]string{"mask_classification_method", "mask", "roi_type"},
			&rec.ClassificationMethod, &rec.Mask, &rec.RoiType,
		); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.Fluorescence:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.Fluorescence{TaskKey: taskKey}
		var one int
		if err := fetch(nil, &one); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.Trace:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.Trace{TaskKey: taskKey}
		if err := fetch(
			[]string{"mask", "fluo_channel", "fluo", "neuropil_fluo"},
			&rec.Mask, &rec.FluoChannel, &rec.Fluo, &rec.NeuropilFluo,
		); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.DeconvolvedCalciumActivity:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.DeconvolvedCalciumActivity{TaskKey: taskKey}
		if err := fetch(
			[]string{"deconvolution_method"}, &rec.DeconvolutionMethod,
		); err != nil {
			return nil, err
		}
		return rec, nil

	case catalog.DFF:
		taskKey, err := domain.TaskKeyFrom(key)
		if err != nil {
			return nil, err
		}
		rec := domain.DFF{TaskKey: taskKey}
		if err := fetch(
			[]string{"deconvolution_method", "mask", "fluo_channel", "dff"},
			&rec.DeconvolutionMethod, &rec.Mask, &rec.FluoChannel, &rec.DFF,
		); err != nil {
			return nil, err
		}
		return rec, nil
	}

	return nil, xe.New("no record binding for entity type: " + t.String())
}

// fetchRow reads one row of t matching key. A nil column list means
// presence-only entities; a constant is selected instead.
func (s *storePG) fetchRow(
	ctx context.Context, conn kpool.Conn,
	t catalog.EntityType, key catalog.Key,
	columns []string, dest ...interface{},
) error {
	schema, ok := s.cat.KeySchemaOf(t)
	if !ok {
		return xe.New("unknown entity type: " + t.String())
	}
	cond, args, err := keyCondition(schema, key, 1)
	if err != nil {
		return err
	}

	selected := "1"
	if len(columns) != 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = `"` + c + `"`
		}
		selected = strings.Join(quoted, ", ")
	}

	if err := conn.QueryRow(
		ctx, `select `+selected+` from "`+t.String()+`" where `+cond, args...,
	).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kpgerr.Missing{Table: t.String(), Identity: key.String()}
		}
		return err
	}
	return nil
}

func assignFloat8Array(src pgtype.Float8Array, dst *[]float64) error {
	if src.Status != pgtype.Present {
		*dst = nil
		return nil
	}
	return src.AssignTo(dst)
}

func optionalImage(width pgtype.Int4, pixels pgtype.Float8Array) (*domain.Image, error) {
	if width.Status != pgtype.Present {
		return nil, nil
	}
	img := &domain.Image{Width: int(width.Int)}
	if err := pixels.AssignTo(&img.Pixels); err != nil {
		return nil, err
	}
	return img, nil
}
