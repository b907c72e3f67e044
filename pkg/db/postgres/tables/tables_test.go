package tables

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
)

type fakeQueryer struct {
	execs []string
}

func (f *fakeQueryer) Exec(_ context.Context, sql string, _ ...interface{}) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return nil, nil
}

func (f *fakeQueryer) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("it should not be called")
}

func (f *fakeQueryer) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	panic(errors.New("it should not be called"))
}

func TestApply(t *testing.T) {
	conn := &fakeQueryer{}
	if err := Apply(context.Background(), conn); err != nil {
		t.Fatal(err)
	}
	if len(conn.execs) != 2 {
		t.Fatalf("unexpected statement count: %d", len(conn.execs))
	}
	if !strings.Contains(conn.execs[0], `CREATE TABLE IF NOT EXISTS "scan"`) {
		t.Error("the first statement is not the schema")
	}
	if !strings.Contains(conn.execs[1], `INSERT INTO "processing_method"`) {
		t.Error("the second statement is not the seed")
	}
}

var placeholder = regexp.MustCompile(`\$\d+`)

func TestBind(t *testing.T) {
	task := domain.NewTaskKey("scanA", domain.MethodSuite2p, 0)
	now := time.Now()

	// one value per record type, with optional columns both set and unset
	records := []domain.Record{
		domain.Scan{ScanID: "scanA"},
		domain.ScanInfo{ScanID: "scanA", NFields: 1, NChannels: 1, NFrames: 4},
		domain.Field{ScanID: "scanA", Field: 0, Height: 2, Width: 2},
		domain.Channel{Channel: 0},
		domain.PhysicalFile{FilePath: "a/b.npy"},
		domain.ProcessingMethodRow{Method: domain.MethodSuite2p},
		domain.MaskClassificationMethodRow{Method: "manual"},
		domain.DeconvolutionMethodRow{Method: "suite2p_deconvolution"},
		domain.RoiTypeRow{RoiType: "soma"},
		domain.ProcessingParamSet{Method: domain.MethodSuite2p, ParamsetIdx: 0, ParamsRef: "p.json"},
		domain.ProcessingTask{TaskKey: task, Method: domain.MethodSuite2p, ParamsetIdx: 0},
		domain.Processing{TaskKey: task, CompletionTime: now},
		domain.ProcessingOutputFile{TaskKey: task, FilePath: "a/b.npy"},
		domain.MotionCorrection{TaskKey: task, McChannel: 0},
		domain.RigidMotionCorrection{
			TaskKey: task, Field: 0,
			OutlierFrames: []bool{false}, YShifts: []float64{1}, XShifts: []float64{1},
		},
		domain.NonRigidMotionCorrection{
			TaskKey: task, Field: 0,
			OutlierFrames: []bool{false}, BlockHeight: 1, BlockWidth: 1,
			BlockCountY: 1, BlockCountX: 1, ZDrift: []float64{0},
		},
		domain.MotionCorrectionBlock{
			TaskKey: task, Field: 0, BlockID: 0,
			BlockY: [2]int{0, 1}, BlockX: [2]int{0, 1},
			YShifts: []float64{1}, XShifts: []float64{1},
		},
		domain.MotionCorrectedImages{
			TaskKey: task, Field: 0,
			RefImage:     domain.Image{Width: 1, Pixels: []float64{1}},
			AverageImage: domain.Image{Width: 1, Pixels: []float64{1}},
		},
		domain.Segmentation{TaskKey: task, SegChannel: 0},
		domain.Mask{TaskKey: task, Mask: 0, Field: 0, XPix: []int{0}, YPix: []int{0}, Weights: []float64{1}},
		domain.Cell{TaskKey: task, Mask: 0, IsCell: true, CellProb: 0.5},
		domain.MaskClassification{TaskKey: task, ClassificationMethod: "manual"},
		domain.MaskType{TaskKey: task, ClassificationMethod: "manual", Mask: 0, RoiType: "soma"},
		domain.Fluorescence{TaskKey: task},
		domain.Trace{TaskKey: task, Mask: 0, FluoChannel: 0, Fluo: []float64{1}, NeuropilFluo: []float64{1}},
		domain.DeconvolvedCalciumActivity{TaskKey: task, DeconvolutionMethod: "suite2p_deconvolution"},
		domain.DFF{TaskKey: task, DeconvolutionMethod: "suite2p_deconvolution", Mask: 0, FluoChannel: 0, DFF: []float64{1}},
	}

	for _, r := range records {
		t.Run(string(r.Kind()), func(t *testing.T) {
			stmt, args, err := bind(r)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(stmt, `into "`+string(r.Kind())+`"`) {
				t.Errorf("statement does not target %s: %s", r.Kind(), stmt)
			}

			distinct := map[string]bool{}
			for _, p := range placeholder.FindAllString(stmt, -1) {
				distinct[p] = true
			}
			if len(distinct) != len(args) {
				t.Errorf(
					"%d placeholders for %d arguments: %s",
					len(distinct), len(args), stmt,
				)
			}
		})
	}

	t.Run("an unknown record type is rejected", func(t *testing.T) {
		if _, _, err := bind(unknownRecord{}); err == nil {
			t.Error("bind accepts a record without a table")
		}
	})
}

type unknownRecord struct{}

func (unknownRecord) Kind() catalog.EntityType { return "unknown" }
func (unknownRecord) RecordKey() catalog.Key   { return catalog.Key{} }

func TestInsertTranslatesNothingOnSuccess(t *testing.T) {
	conn := &fakeQueryer{}
	if err := Insert(context.Background(), conn, domain.Scan{ScanID: "scanA"}); err != nil {
		t.Fatal(err)
	}
	if len(conn.execs) != 1 || !strings.Contains(conn.execs[0], `"scan"`) {
		t.Errorf("unexpected statements: %v", conn.execs)
	}
}
