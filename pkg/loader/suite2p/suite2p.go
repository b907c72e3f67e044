// Package suite2p loads suite2p output directories.
//
// Expected layout: the output directory holds one `plane<N>` directory
// per optical plane. Each plane directory carries the exported arrays
// `F.npy`, `Fneu.npy`, `iscell.npy` (plus `F_chan2.npy`/`Fneu_chan2.npy`
// for dual-channel recordings) and the JSON sidecars `ops.json` and
// `stat.json` with the registration ops and the per-mask stats.
package suite2p

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/sbinet/npyio"

	"github.com/fieldline/imagingdb/pkg/domain"
	xe "github.com/fieldline/imagingdb/pkg/errors"
	"github.com/fieldline/imagingdb/pkg/loader"
)

type s2pLoader struct{}

func New() *s2pLoader {
	return &s2pLoader{}
}

var _ loader.Loader = &s2pLoader{}

var planeDir = regexp.MustCompile(`^plane(\d+)$`)

func (l *s2pLoader) Open(dir string) (loader.Handle, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, xe.WrapWithNote(dir, domain.ErrSourceNotFound)
	}
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if !info.IsDir() {
		return nil, malformed(dir + " is not a directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	fields := []int{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := planeDir.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		field, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		fields = append(fields, field)
	}
	if len(fields) == 0 {
		return nil, malformed(dir + " has no plane directories")
	}
	sort.Ints(fields)

	h := &s2pHandle{}
	for _, field := range fields {
		plane, err := loadPlane(filepath.Join(dir, "plane"+strconv.Itoa(field)), field)
		if err != nil {
			return nil, err
		}
		h.planes = append(h.planes, plane)
	}

	if err := h.scanTimes(dir); err != nil {
		return nil, xe.Wrap(err)
	}
	return h, nil
}

type s2pHandle struct {
	planes   []loader.PlaneResult
	creation time.Time
	curation *time.Time
	files    []string
}

var _ loader.Handle = &s2pHandle{}

func (h *s2pHandle) PlaneResults() []loader.PlaneResult { return h.planes }
func (h *s2pHandle) CreationTime() time.Time            { return h.creation }
func (h *s2pHandle) CurationTime() *time.Time           { return h.curation }
func (h *s2pHandle) OutputFiles() []string              { return h.files }

// scanTimes derives creation and curation from file modification times:
// the oldest file dates the generation, anything newer is curation.
// Top-level regular files are the registered output files.
func (h *s2pHandle) scanTimes(dir string) error {
	var oldest, newest time.Time
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mtime := info.ModTime()
		if oldest.IsZero() || mtime.Before(oldest) {
			oldest = mtime
		}
		if mtime.After(newest) {
			newest = mtime
		}
		if filepath.Dir(path) == dir {
			h.files = append(h.files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.creation = oldest
	if newest.After(oldest) {
		t := newest
		h.curation = &t
	}
	sort.Strings(h.files)
	return nil
}

// planeOps mirrors the keys of the exported suite2p ops, channels kept
// 1-based as suite2p reports them.
type planeOps struct {
	AlignByChan    int         `json:"align_by_chan"`
	FunctionalChan int         `json:"functional_chan"`
	YOff           []float64   `json:"yoff"`
	XOff           []float64   `json:"xoff"`
	BadFrames      []bool      `json:"badframes"`
	ZDrift         []float64   `json:"zdrift"`
	NonRigid       bool        `json:"nonrigid"`
	BlockSize      [2]int      `json:"block_size"`
	NBlocks        [2]int      `json:"nblocks"`
	YBlock         [][2]int    `json:"yblock"`
	XBlock         [][2]int    `json:"xblock"`
	YOff1          [][]float64 `json:"yoff1"`
	XOff1          [][]float64 `json:"xoff1"`
	RefImg         [][]float64 `json:"refImg"`
	MeanImg        [][]float64 `json:"meanImg"`
	Vcorr          [][]float64 `json:"Vcorr"`
	MaxProj        [][]float64 `json:"max_proj"`
}

type maskStat struct {
	NPix int       `json:"npix"`
	Med  [2]int    `json:"med"` // (y, x)
	XPix []int     `json:"xpix"`
	YPix []int     `json:"ypix"`
	Lam  []float64 `json:"lam"`
}

func loadPlane(dir string, field int) (loader.PlaneResult, error) {
	none := loader.PlaneResult{}

	ops := planeOps{}
	if err := readJSON(filepath.Join(dir, "ops.json"), &ops); err != nil {
		return none, malformed(dir + ": ops.json: " + err.Error())
	}
	if ops.AlignByChan < 1 || ops.FunctionalChan < 1 {
		return none, malformed(dir + ": ops.json: align_by_chan and functional_chan must be 1-based channel numbers")
	}
	if len(ops.YOff) == 0 || len(ops.XOff) != len(ops.YOff) || len(ops.BadFrames) != len(ops.YOff) {
		return none, malformed(dir + ": ops.json: inconsistent registration arrays")
	}

	stats := []maskStat{}
	if err := readJSON(filepath.Join(dir, "stat.json"), &stats); err != nil {
		return none, malformed(dir + ": stat.json: " + err.Error())
	}

	iscell, err := readMatrix(filepath.Join(dir, "iscell.npy"))
	if err != nil {
		return none, malformed(dir + ": iscell.npy: " + err.Error())
	}
	fluo, err := readMatrix(filepath.Join(dir, "F.npy"))
	if err != nil {
		return none, malformed(dir + ": F.npy: " + err.Error())
	}
	neuropil, err := readMatrix(filepath.Join(dir, "Fneu.npy"))
	if err != nil {
		return none, malformed(dir + ": Fneu.npy: " + err.Error())
	}

	n := len(stats)
	if len(iscell) != n || len(fluo) != n || len(neuropil) != n {
		return none, malformed(fmt.Sprintf(
			"%s: %d masks in stat.json but %d iscell, %d F, %d Fneu rows",
			dir, n, len(iscell), len(fluo), len(neuropil),
		))
	}

	result := loader.PlaneResult{
		Field:               field,
		AlignmentChannel:    ops.AlignByChan - 1,
		SegmentationChannel: ops.FunctionalChan - 1,
		Rigid: loader.RigidMotion{
			OutlierFrames: ops.BadFrames,
			YShifts:       ops.YOff,
			XShifts:       ops.XOff,
			ZDrift:        ops.ZDrift,
		},
		Fluo: loader.ChannelTraces{Fluo: fluo, Neuropil: neuropil},
	}

	for i, stat := range stats {
		if len(iscell[i]) != 2 {
			return none, malformed(dir + ": iscell.npy: rows must be (flag, probability) pairs")
		}
		result.Masks = append(result.Masks, loader.MaskStat{
			NPix:     stat.NPix,
			CenterX:  stat.Med[1],
			CenterY:  stat.Med[0],
			XPix:     stat.XPix,
			YPix:     stat.YPix,
			Weights:  stat.Lam,
			IsCell:   iscell[i][0] != 0,
			CellProb: iscell[i][1],
		})
	}

	if result.Images.Ref, err = imageOf(ops.RefImg); err != nil {
		return none, malformed(dir + ": refImg: " + err.Error())
	}
	if result.Images.Average, err = imageOf(ops.MeanImg); err != nil {
		return none, malformed(dir + ": meanImg: " + err.Error())
	}
	if len(ops.Vcorr) != 0 {
		img, err := imageOf(ops.Vcorr)
		if err != nil {
			return none, malformed(dir + ": Vcorr: " + err.Error())
		}
		result.Images.Correlation = &img
	}
	if len(ops.MaxProj) != 0 {
		img, err := imageOf(ops.MaxProj)
		if err != nil {
			return none, malformed(dir + ": max_proj: " + err.Error())
		}
		result.Images.MaxProj = &img
	}

	if ops.NonRigid {
		nonrigid, err := nonRigidOf(ops)
		if err != nil {
			return none, malformed(dir + ": " + err.Error())
		}
		result.NonRigid = nonrigid
	}

	if chan2, err := loadChan2(dir, n); err != nil {
		return none, err
	} else {
		result.Chan2 = chan2
	}

	return result, nil
}

func loadChan2(dir string, n int) (*loader.ChannelTraces, error) {
	path := filepath.Join(dir, "F_chan2.npy")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	fluo, err := readMatrix(path)
	if err != nil {
		return nil, malformed(dir + ": F_chan2.npy: " + err.Error())
	}
	neuropil, err := readMatrix(filepath.Join(dir, "Fneu_chan2.npy"))
	if err != nil {
		return nil, malformed(dir + ": Fneu_chan2.npy: " + err.Error())
	}
	if len(fluo) != n || len(neuropil) != n {
		return nil, malformed(fmt.Sprintf(
			"%s: second channel has %d F and %d Fneu rows for %d masks",
			dir, len(fluo), len(neuropil), n,
		))
	}
	return &loader.ChannelTraces{Fluo: fluo, Neuropil: neuropil}, nil
}

func nonRigidOf(ops planeOps) (*loader.NonRigidMotion, error) {
	blocks := len(ops.YBlock)
	if blocks == 0 ||
		len(ops.XBlock) != blocks || len(ops.YOff1) != blocks || len(ops.XOff1) != blocks {
		return nil, fmt.Errorf("inconsistent non-rigid block arrays")
	}

	nr := &loader.NonRigidMotion{
		BlockHeight: ops.BlockSize[0],
		BlockWidth:  ops.BlockSize[1],
		BlockCountY: ops.NBlocks[0],
		BlockCountX: ops.NBlocks[1],
	}
	for b := 0; b < blocks; b++ {
		nr.Blocks = append(nr.Blocks, loader.BlockMotion{
			BlockY:  ops.YBlock[b],
			BlockX:  ops.XBlock[b],
			YShifts: ops.YOff1[b],
			XShifts: ops.XOff1[b],
		})
	}
	return nr, nil
}

func imageOf(rows [][]float64) (domain.Image, error) {
	if len(rows) == 0 {
		return domain.Image{}, fmt.Errorf("empty image")
	}
	width := len(rows[0])
	img := domain.Image{Width: width}
	for _, row := range rows {
		if len(row) != width {
			return domain.Image{}, fmt.Errorf("ragged image rows")
		}
		img.Pixels = append(img.Pixels, row...)
	}
	return img, nil
}

func readJSON(path string, into interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, into)
}

// readMatrix reads a 2D float64 npy file into rows.
func readMatrix(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, err
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("expected a 2D array, got shape %v", shape)
	}

	var flat []float64
	if err := r.Read(&flat); err != nil {
		return nil, err
	}
	n, t := shape[0], shape[1]
	if len(flat) != n*t {
		return nil, fmt.Errorf("array size %d does not match shape %v", len(flat), shape)
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = flat[i*t : (i+1)*t]
	}
	return rows, nil
}

func malformed(note string) error {
	return xe.WrapWithNote(note, domain.ErrMalformedSource)
}
