package populate_test

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fieldline/imagingdb/pkg/cmp"
	"github.com/fieldline/imagingdb/pkg/db/mocks"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	"github.com/fieldline/imagingdb/pkg/engine"
	"github.com/fieldline/imagingdb/pkg/engine/populate"
	"github.com/fieldline/imagingdb/pkg/loader"
)

// ---- fakes ----

type fakeLoader struct {
	handles map[string]*fakeHandle
}

func (l *fakeLoader) Open(dir string) (loader.Handle, error) {
	h, ok := l.handles[dir]
	if !ok {
		return nil, domain.ErrSourceNotFound
	}
	return h, nil
}

type fakeHandle struct {
	planes   []loader.PlaneResult
	creation time.Time
	curation *time.Time
	files    []string
}

func (h *fakeHandle) PlaneResults() []loader.PlaneResult { return h.planes }
func (h *fakeHandle) CreationTime() time.Time            { return h.creation }
func (h *fakeHandle) CurationTime() *time.Time           { return h.curation }
func (h *fakeHandle) OutputFiles() []string              { return h.files }

type locatorFunc func(domain.Method, domain.TaskKey) (string, error)

func (f locatorFunc) PathFor(m domain.Method, k domain.TaskKey) (string, error) {
	return f(m, k)
}

type fakeRoot struct{ root string }

func (r fakeRoot) Root() string { return r.root }
func (r fakeRoot) Relativize(abs string) (string, error) {
	rel := strings.TrimPrefix(abs, r.root+"/")
	if rel == abs {
		return "", errors.New(abs + " is outside " + r.root)
	}
	return rel, nil
}

type fakeTrigger struct {
	launched []domain.TaskKey
}

func (t *fakeTrigger) Launch(_ context.Context, _ domain.Method, key domain.TaskKey) error {
	t.launched = append(t.launched, key)
	return nil
}

// ---- fixture ----

// twoPlaneHandle is a two-plane result set: three masks on field 0,
// two on field 1, with a second channel recorded on field 1 only.
func twoPlaneHandle(creation time.Time) *fakeHandle {
	return &fakeHandle{
		creation: creation,
		files: []string{
			"/data/out/scanA/F.npy",
			"/data/out/scanA/ops.json",
		},
		planes: []loader.PlaneResult{
			{
				Field:               0,
				AlignmentChannel:    1,
				SegmentationChannel: 0,
				Rigid: loader.RigidMotion{
					OutlierFrames: []bool{false, false, true, false},
					YShifts:       []float64{1, 3, 1, 3},
					XShifts:       []float64{2, 2, 2, 2},
					ZDrift:        []float64{0, 0.1, 0.2, 0.3},
				},
				NonRigid: &loader.NonRigidMotion{
					BlockHeight: 128,
					BlockWidth:  128,
					BlockCountY: 1,
					BlockCountX: 2,
					Blocks: []loader.BlockMotion{
						{
							BlockY:  [2]int{0, 128},
							BlockX:  [2]int{0, 128},
							YShifts: []float64{0, 2, 0, 2},
							XShifts: []float64{0, 0, 0, 0},
						},
						{
							BlockY:  [2]int{0, 128},
							BlockX:  [2]int{128, 256},
							YShifts: []float64{1, 1, 1, 1},
							XShifts: []float64{0, 4, 0, 4},
						},
					},
				},
				Images: loader.SummaryImages{
					Ref:         domain.Image{Width: 2, Pixels: []float64{1, 2, 3, 4}},
					Average:     domain.Image{Width: 2, Pixels: []float64{5, 6, 7, 8}},
					Correlation: &domain.Image{Width: 2, Pixels: []float64{0, 1, 0, 1}},
				},
				Masks: []loader.MaskStat{
					{NPix: 10, CenterX: 3, CenterY: 4, XPix: []int{3}, YPix: []int{4}, Weights: []float64{1}, IsCell: true, CellProb: 0.9},
					{NPix: 5, CenterX: 6, CenterY: 7, XPix: []int{6}, YPix: []int{7}, Weights: []float64{1}, IsCell: false, CellProb: 0.2},
					{NPix: 8, CenterX: 9, CenterY: 1, XPix: []int{9}, YPix: []int{1}, Weights: []float64{1}, IsCell: true, CellProb: 0.8},
				},
				Fluo: loader.ChannelTraces{
					Fluo:     [][]float64{{10, 11, 12, 13}, {20, 21, 22, 23}, {30, 31, 32, 33}},
					Neuropil: [][]float64{{1, 1, 1, 1}, {2, 2, 2, 2}, {3, 3, 3, 3}},
				},
			},
			{
				Field:               1,
				AlignmentChannel:    1,
				SegmentationChannel: 0,
				Rigid: loader.RigidMotion{
					OutlierFrames: []bool{false, false, false, false},
					YShifts:       []float64{1, math.NaN(), 3, math.NaN()},
					XShifts:       []float64{0, 0, 0, 0},
				},
				Images: loader.SummaryImages{
					Ref:     domain.Image{Width: 2, Pixels: []float64{1, 1, 1, 1}},
					Average: domain.Image{Width: 2, Pixels: []float64{2, 2, 2, 2}},
				},
				Masks: []loader.MaskStat{
					{NPix: 4, CenterX: 1, CenterY: 2, XPix: []int{1}, YPix: []int{2}, Weights: []float64{1}, IsCell: true, CellProb: 0.7},
					{NPix: 6, CenterX: 3, CenterY: 5, XPix: []int{3}, YPix: []int{5}, Weights: []float64{1}, IsCell: true, CellProb: 0.6},
				},
				Fluo: loader.ChannelTraces{
					Fluo:     [][]float64{{40, 41, 42, 43}, {50, 51, 52, 53}},
					Neuropil: [][]float64{{4, 4, 4, 4}, {5, 5, 5, 5}},
				},
				Chan2: &loader.ChannelTraces{
					Fluo:     [][]float64{{60, 61, 62, 63}, {70, 71, 72, 73}},
					Neuropil: [][]float64{{6, 6, 6, 6}, {7, 7, 7, 7}},
				},
			},
		},
	}
}

type pipeline struct {
	cat     *catalog.Catalog
	store   *mocks.InMemoryStore
	engine  *engine.Engine
	loader  *fakeLoader
	trigger *fakeTrigger
	task    domain.TaskKey
}

func newPipeline(t *testing.T, method domain.Method) *pipeline {
	t.Helper()

	cat, err := catalog.New()
	if err != nil {
		t.Fatal(err)
	}
	store := mocks.NewInMemoryStore(cat)

	task := domain.NewTaskKey("scanA", method, 0)
	store.Seed(
		domain.Scan{ScanID: "scanA"},
		domain.ScanInfo{ScanID: "scanA", NFields: 2, NChannels: 2, NFrames: 4},
		domain.Field{ScanID: "scanA", Field: 0, Height: 256, Width: 256},
		domain.Field{ScanID: "scanA", Field: 1, Height: 256, Width: 256},
		domain.Channel{Channel: 0},
		domain.Channel{Channel: 1},
		domain.ProcessingMethodRow{Method: method},
		domain.ProcessingParamSet{Method: method, ParamsetIdx: 0},
		domain.ProcessingTask{TaskKey: task, Method: method, ParamsetIdx: 0},
	)

	tasks := mocks.NewTaskInterface()
	tasks.Impl.MethodOf = func(context.Context, domain.TaskKey) (domain.Method, error) {
		return method, nil
	}

	files := mocks.NewFileInterface()
	files.Impl.RegisterIfAbsent = func(_ context.Context, rel string) error {
		store.Seed(domain.PhysicalFile{FilePath: rel})
		return nil
	}

	fl := &fakeLoader{handles: map[string]*fakeHandle{}}
	deps := populate.Deps{
		Tasks: tasks,
		Locate: locatorFunc(func(_ domain.Method, k domain.TaskKey) (string, error) {
			return "out/" + k.ScanID, nil
		}),
		Loaders: map[domain.Method]loader.Loader{domain.MethodSuite2p: fl},
	}

	trigger := &fakeTrigger{}
	eng := engine.New(cat, store, log.New(io.Discard, "", 0))
	for et, m := range map[catalog.EntityType]engine.Maker{
		catalog.Processing: populate.NewProcessing(
			deps, files, fakeRoot{root: "/data"}, trigger,
		),
		catalog.MotionCorrection:      populate.NewMotionCorrection(deps),
		catalog.MotionCorrectedImages: populate.NewMotionCorrectedImages(deps),
		catalog.Segmentation:          populate.NewSegmentation(deps),
		catalog.Fluorescence:          populate.NewFluorescence(deps),
	} {
		if err := eng.Register(et, m); err != nil {
			t.Fatal(err)
		}
	}

	return &pipeline{
		cat: cat, store: store, engine: eng,
		loader: fl, trigger: trigger, task: task,
	}
}

func (p *pipeline) populateOne(t *testing.T, et catalog.EntityType) {
	t.Helper()
	summary, err := p.engine.Populate(context.Background(), et)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Succeeded) != 1 || len(summary.Pending) != 0 || len(summary.Failed) != 0 {
		t.Fatalf("populate %s: %s", et, summary)
	}
}

func (p *pipeline) fetch(t *testing.T, et catalog.EntityType, key catalog.Key) domain.Record {
	t.Helper()
	rec, err := p.store.FetchOne(context.Background(), et, key)
	if err != nil {
		t.Fatalf("fetch %s %s: %v", et, key, err)
	}
	return rec
}

func maskKey(task domain.TaskKey, mask int) catalog.Key {
	return task.Key().Extend(catalog.KeyElem{Column: catalog.ColMask, Value: strconv.Itoa(mask)})
}

func fieldKey(task domain.TaskKey, field int) catalog.Key {
	return task.Key().Extend(catalog.KeyElem{Column: catalog.ColField, Value: strconv.Itoa(field)})
}

// ---- tests ----

func TestPipeline(t *testing.T) {
	creation := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	p := newPipeline(t, domain.MethodSuite2p)
	p.loader.handles["out/scanA"] = twoPlaneHandle(creation)

	p.populateOne(t, catalog.Processing)
	p.populateOne(t, catalog.MotionCorrection)
	p.populateOne(t, catalog.MotionCorrectedImages)
	p.populateOne(t, catalog.Segmentation)
	p.populateOne(t, catalog.Fluorescence)

	task := p.task

	t.Run("processing carries the result set times and files", func(t *testing.T) {
		rec := p.fetch(t, catalog.Processing, task.Key()).(domain.Processing)
		if !rec.CompletionTime.Equal(creation) {
			t.Errorf("completion time: %v (want %v)", rec.CompletionTime, creation)
		}
		if rec.CurationTime != nil {
			t.Errorf("unexpected curation time: %v", rec.CurationTime)
		}
		if rec.StartTime != nil {
			t.Errorf("found results should have no start time: %v", rec.StartTime)
		}

		if n := p.store.Count(catalog.ProcessingOutputFile); n != 2 {
			t.Fatalf("unexpected output file count: %d", n)
		}
		for _, rel := range []string{"out/scanA/F.npy", "out/scanA/ops.json"} {
			key := task.Key().Extend(catalog.KeyElem{Column: catalog.ColFilePath, Value: rel})
			p.fetch(t, catalog.ProcessingOutputFile, key)
			p.fetch(t, catalog.PhysicalFile, catalog.KeyOf(
				catalog.KeyElem{Column: catalog.ColFilePath, Value: rel},
			))
		}
	})

	t.Run("motion correction master picks the alignment channel", func(t *testing.T) {
		rec := p.fetch(t, catalog.MotionCorrection, task.Key()).(domain.MotionCorrection)
		if rec.McChannel != 1 {
			t.Errorf("mc channel: %d (want 1)", rec.McChannel)
		}
	})

	t.Run("rigid rows hold shifts and their deviation", func(t *testing.T) {
		rec := p.fetch(t, catalog.RigidMotionCorrection, fieldKey(task, 0)).(domain.RigidMotionCorrection)
		if rec.YStd != 1 { // population std of {1,3,1,3}
			t.Errorf("y std: %v (want 1)", rec.YStd)
		}
		if rec.XStd != 0 {
			t.Errorf("x std: %v (want 0)", rec.XStd)
		}
		if !cmp.SliceEq(rec.ZDrift, []float64{0, 0.1, 0.2, 0.3}) {
			t.Errorf("z drift: %v", rec.ZDrift)
		}
	})

	t.Run("NaN shifts are dropped from the deviation", func(t *testing.T) {
		rec := p.fetch(t, catalog.RigidMotionCorrection, fieldKey(task, 1)).(domain.RigidMotionCorrection)
		if rec.YStd != 1 { // population std over the non-NaN {1,3}
			t.Errorf("y std: %v (want 1)", rec.YStd)
		}
		if rec.ZDrift != nil {
			t.Errorf("z drift: %v (want none)", rec.ZDrift)
		}
	})

	t.Run("non-rigid rows exist only for piece-wise corrected fields", func(t *testing.T) {
		rec := p.fetch(t, catalog.NonRigidMotionCorrection, fieldKey(task, 0)).(domain.NonRigidMotionCorrection)
		if rec.BlockCountY != 1 || rec.BlockCountX != 2 {
			t.Errorf("block counts: (%d, %d)", rec.BlockCountY, rec.BlockCountX)
		}

		if _, err := p.store.FetchOne(
			context.Background(), catalog.NonRigidMotionCorrection, fieldKey(task, 1),
		); !errors.Is(err, domain.ErrMissing) {
			t.Errorf("field 1 has a non-rigid row: %v", err)
		}

		if n := p.store.Count(catalog.MotionCorrectionBlock); n != 2 {
			t.Fatalf("unexpected block count: %d", n)
		}
		block := p.fetch(t, catalog.MotionCorrectionBlock, fieldKey(task, 0).Extend(
			catalog.KeyElem{Column: catalog.ColBlockID, Value: "1"},
		)).(domain.MotionCorrectionBlock)
		if block.BlockX != [2]int{128, 256} {
			t.Errorf("block x bounds: %v", block.BlockX)
		}
		if block.XStd != 2 { // population std of {0,4,0,4}
			t.Errorf("block x std: %v (want 2)", block.XStd)
		}
	})

	t.Run("summary images are stored per field", func(t *testing.T) {
		rec := p.fetch(t, catalog.MotionCorrectedImages, fieldKey(task, 0)).(domain.MotionCorrectedImages)
		if !cmp.SliceEq(rec.RefImage.Pixels, []float64{1, 2, 3, 4}) {
			t.Errorf("ref image: %v", rec.RefImage)
		}
		if rec.CorrelationImage == nil {
			t.Error("correlation image is missing")
		}

		rec = p.fetch(t, catalog.MotionCorrectedImages, fieldKey(task, 1)).(domain.MotionCorrectedImages)
		if rec.CorrelationImage != nil || rec.MaxProjImage != nil {
			t.Error("field 1 has optional images it never produced")
		}
	})

	t.Run("masks are numbered across fields", func(t *testing.T) {
		seg := p.fetch(t, catalog.Segmentation, task.Key()).(domain.Segmentation)
		if seg.SegChannel != 0 {
			t.Errorf("seg channel: %d (want 0)", seg.SegChannel)
		}

		if n := p.store.Count(catalog.Mask); n != 5 {
			t.Fatalf("unexpected mask count: %d", n)
		}

		fields := []int{}
		isCell := []bool{}
		for mask := 0; mask < 5; mask++ {
			m := p.fetch(t, catalog.Mask, maskKey(task, mask)).(domain.Mask)
			c := p.fetch(t, catalog.Cell, maskKey(task, mask)).(domain.Cell)
			fields = append(fields, m.Field)
			isCell = append(isCell, c.IsCell)
		}
		if !cmp.SliceEq(fields, []int{0, 0, 0, 1, 1}) {
			t.Errorf("mask fields: %v", fields)
		}
		if !cmp.SliceEq(isCell, []bool{true, false, true, true, true}) {
			t.Errorf("is_cell: %v", isCell)
		}
	})

	t.Run("traces land on their masks, second channel included", func(t *testing.T) {
		p.fetch(t, catalog.Fluorescence, task.Key())

		if n := p.store.Count(catalog.Trace); n != 7 { // 5 masks + 2 second-channel
			t.Fatalf("unexpected trace count: %d", n)
		}

		traceKey := func(mask, channel int) catalog.Key {
			return maskKey(task, mask).Extend(
				catalog.KeyElem{Column: catalog.ColFluoChannel, Value: strconv.Itoa(channel)},
			)
		}

		// first mask of field 1 is mask 3 globally
		rec := p.fetch(t, catalog.Trace, traceKey(3, 0)).(domain.Trace)
		if !cmp.SliceEq(rec.Fluo, []float64{40, 41, 42, 43}) {
			t.Errorf("trace (3, 0): %v", rec.Fluo)
		}
		rec = p.fetch(t, catalog.Trace, traceKey(3, 1)).(domain.Trace)
		if !cmp.SliceEq(rec.Fluo, []float64{60, 61, 62, 63}) {
			t.Errorf("trace (3, 1): %v", rec.Fluo)
		}

		// field 0 had no second channel
		if _, err := p.store.FetchOne(
			context.Background(), catalog.Trace, traceKey(0, 1),
		); !errors.Is(err, domain.ErrMissing) {
			t.Errorf("unexpected second-channel trace on field 0: %v", err)
		}
	})

	t.Run("nothing stays eligible after the full chain", func(t *testing.T) {
		for _, et := range []catalog.EntityType{
			catalog.Processing,
			catalog.MotionCorrection,
			catalog.MotionCorrectedImages,
			catalog.Segmentation,
			catalog.Fluorescence,
		} {
			eligible, err := p.engine.Eligible(context.Background(), et)
			if err != nil {
				t.Fatal(err)
			}
			if len(eligible) != 0 {
				t.Errorf("%s still eligible: %v", et, eligible)
			}
		}
	})
}

func TestSegmentationDeterminism(t *testing.T) {
	creation := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newPipeline(t, domain.MethodSuite2p)
	p.loader.handles["out/scanA"] = twoPlaneHandle(creation)

	tasks := mocks.NewTaskInterface()
	tasks.Impl.MethodOf = func(context.Context, domain.TaskKey) (domain.Method, error) {
		return domain.MethodSuite2p, nil
	}
	maker := populate.NewSegmentation(populate.Deps{
		Tasks: tasks,
		Locate: locatorFunc(func(_ domain.Method, k domain.TaskKey) (string, error) {
			return "out/" + k.ScanID, nil
		}),
		Loaders: map[domain.Method]loader.Loader{domain.MethodSuite2p: p.loader},
	})

	first, err := maker.Make(context.Background(), p.task.Key())
	if err != nil {
		t.Fatal(err)
	}
	second, err := maker.Make(context.Background(), p.task.Key())
	if err != nil {
		t.Fatal(err)
	}

	if !cmp.SliceEqWith(
		first.Rows(), second.Rows(),
		func(a, b domain.Record) bool {
			return a.Kind() == b.Kind() && a.RecordKey().Equal(b.RecordKey())
		},
	) {
		t.Error("two makes of the same results differ")
	}
}

func TestEmptyResultSet(t *testing.T) {
	// a handle reporting no planes marks its key pending as malformed;
	// it never reaches the per-plane transforms
	p := newPipeline(t, domain.MethodSuite2p)
	p.loader.handles["out/scanA"] = &fakeHandle{creation: time.Now()}

	p.populateOne(t, catalog.Processing)

	summary, err := p.engine.Populate(context.Background(), catalog.MotionCorrection)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Pending) != 1 || len(summary.Failed) != 0 {
		t.Fatalf("unexpected summary: %s", summary)
	}
	if !errors.Is(summary.Pending[0].Err, domain.ErrMalformedSource) {
		t.Errorf("unexpected pending cause: %v", summary.Pending[0].Err)
	}
	if p.store.Count(catalog.MotionCorrection) != 0 {
		t.Error("a malformed source left rows behind")
	}
}

func TestProcessingTrigger(t *testing.T) {
	t.Run("an absent directory triggers the tool and stays pending", func(t *testing.T) {
		p := newPipeline(t, domain.MethodSuite2p)
		// no handle registered: the output directory does not exist

		summary, err := p.engine.Populate(context.Background(), catalog.Processing)
		if err != nil {
			t.Fatal(err)
		}
		if len(summary.Pending) != 1 {
			t.Fatalf("unexpected summary: %s", summary)
		}
		if !errors.Is(summary.Pending[0].Err, domain.ErrNotYetTriggered) {
			t.Errorf("unexpected pending cause: %v", summary.Pending[0].Err)
		}
		if len(p.trigger.launched) != 1 || !p.trigger.launched[0].Equal(p.task) {
			t.Errorf("unexpected launches: %v", p.trigger.launched)
		}
		if p.store.Count(catalog.Processing) != 0 {
			t.Error("a pending key left rows behind")
		}

		// results appear. the next pass picks them up without relaunching.
		p.loader.handles["out/scanA"] = twoPlaneHandle(time.Now())
		summary, err = p.engine.Populate(context.Background(), catalog.Processing)
		if err != nil {
			t.Fatal(err)
		}
		if len(summary.Succeeded) != 1 {
			t.Fatalf("unexpected summary: %s", summary)
		}
		if len(p.trigger.launched) != 1 {
			t.Errorf("relaunched after results appeared: %v", p.trigger.launched)
		}
	})

	t.Run("an unsupported method fails its key", func(t *testing.T) {
		p := newPipeline(t, domain.MethodCaiman)

		summary, err := p.engine.Populate(context.Background(), catalog.Processing)
		if err != nil {
			t.Fatal(err)
		}
		if len(summary.Failed) != 1 {
			t.Fatalf("unexpected summary: %s", summary)
		}
		if !errors.Is(summary.Failed[0].Err, domain.ErrUnsupportedMethod) {
			t.Errorf("unexpected failure cause: %v", summary.Failed[0].Err)
		}
		if len(p.trigger.launched) != 0 {
			t.Errorf("an unsupported method launched the tool: %v", p.trigger.launched)
		}
	})
}
