// Package pipeline drives the six road-extraction stages over a sector:
// shading, RORPO filtering, Sobel gradients, blurred segment extraction,
// seed generation and track detection. It is the composition root: it
// imports the stage packages, none of them import it.
package pipeline

import (
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/amrel/internal/cloud"
	"github.com/banshee-data/amrel/internal/config"
	"github.com/banshee-data/amrel/internal/fbsd"
	"github.com/banshee-data/amrel/internal/geom"
	"github.com/banshee-data/amrel/internal/gradient"
	"github.com/banshee-data/amrel/internal/raster"
	"github.com/banshee-data/amrel/internal/report"
	"github.com/banshee-data/amrel/internal/rorpo"
	"github.com/banshee-data/amrel/internal/seeds"
	"github.com/banshee-data/amrel/internal/steps"
	"github.com/banshee-data/amrel/internal/terrain"
	"github.com/banshee-data/amrel/internal/track"
)

// Tool is the AMREL pipeline: configuration, loaded sector state, and the
// per-stage buffers. Buffers are released as soon as the next stage has
// consumed them.
type Tool struct {
	cfg   *config.Config
	store *steps.Store
	timer *report.Timer

	ptset      *cloud.TileSet
	dtm        *terrain.Map
	vmWidth    int
	vmHeight   int
	csize      float32
	subdiv     int
	iratio     float64
	tileLoaded bool
	bufCreated bool
	declared   bool

	shadeMap *raster.Image8
	rorpoMap *raster.Image8
	gmap     *gradient.Map
	bsdet    *fbsd.Detector
	dss      []fbsd.DSS

	outSeeds [][]geom.Pt2i
	sucSeeds [][]geom.Pt2i
	numSeeds int

	ctdet        *track.Detector
	labelMap     *raster.LabelMap
	roadSections []*track.CarriageTrack
	seedRoads    []geom.Pt2i // seed pair per accepted road, label order
	unused       int

	startedAt time.Time
}

// New returns a tool over the given configuration, with its step store
// rooted at steps/.
func New(cfg *config.Config) *Tool {
	t := &Tool{
		cfg:    cfg,
		store:  steps.NewStore(config.StepsDir),
		timer:  report.NewTimer(),
		subdiv: geom.SubdivisionFactor,
		iratio: 1.0,
		bsdet:  fbsd.NewDetector(),
	}
	return t
}

// Config returns the tool configuration.
func (t *Tool) Config() *config.Config { return t.cfg }

// Store returns the stage artifact store.
func (t *Tool) Store() *steps.Store { return t.store }

// VMWidth returns the sector raster width.
func (t *Tool) VMWidth() int { return t.vmWidth }

// VMHeight returns the sector raster height.
func (t *Tool) VMHeight() int { return t.vmHeight }

// NumberOfRoads returns the count of accepted road sections.
func (t *Tool) NumberOfRoads() int {
	if t.labelMap == nil {
		return 0
	}
	return t.labelMap.NumberOfRoads()
}

// LabelMap exposes the road label map of the last ASD run.
func (t *Tool) LabelMap() *raster.LabelMap { return t.labelMap }

func (t *Tool) verbose(format string, args ...interface{}) {
	if t.cfg.Verbose {
		log.Printf("[Pipeline] "+format, args...)
	}
}

// tileGeometry returns the sector tile grid of the loaded tile set.
func (t *Tool) tileGeometry() geom.TileGeometry {
	cols := t.ptset.ColumnsOfTiles()
	rows := t.ptset.RowsOfTiles()
	return geom.TileGeometry{
		Cols: cols, Rows: rows,
		TileW: t.vmWidth / cols, TileH: t.vmHeight / rows,
		SubDiv: t.subdiv,
		CellMu: int64(float64(t.csize)*cloud.XYZUnit + 0.5),
		X0:     t.ptset.Xref(), Y0: t.ptset.Yref(),
	}
}

// clearDtm releases the terrain map.
func (t *Tool) clearDtm() { t.dtm = nil }

// clearShading releases the shaded raster.
func (t *Tool) clearShading() { t.shadeMap = nil }

// clearRorpo releases the RORPO raster.
func (t *Tool) clearRorpo() { t.rorpoMap = nil }

// clearSobel releases the gradient map.
func (t *Tool) clearSobel() { t.gmap = nil }

// clearFbsd releases the segment list.
func (t *Tool) clearFbsd() { t.dss = nil }

// addTrackDetector builds the track detector with the nominal settings and
// the configured tail pruning.
func (t *Tool) addTrackDetector() {
	d := track.NewDetector()
	d.SetPlateauLackTolerance(track.NominalPlateauLackTolerance)
	d.SetMaxShiftLength(track.NominalMaxShiftLength)
	d.SetInitialDetection(false)
	d.SetPlateauMinLength(track.NominalPlateauMinLength)
	d.SetThicknessTolerance(track.NominalPlateauThicknessTolerance)
	d.SetSlopeTolerance(track.NominalSlopeTolerance)
	d.SetSideShiftTolerance(track.NominalSideShiftTolerance)
	d.SetPlateauMaxTilt(track.NominalPlateauMaxTilt)
	if t.cfg.TailMinSet {
		d.SetTailMinSize(t.cfg.TailMinSize)
	}
	if t.ptset != nil {
		d.SetPointsGrid(t.ptset, t.vmWidth, t.vmHeight, t.subdiv, t.csize)
	}
	d.SetAutomatic(true)
	t.ctdet = d
}

// loadTileSet reads the tile-set file and declares every tile: the normal
// maps when dtmOn, the point tiles always (points loaded when ptsOn).
func (t *Tool) loadTileSet(dtmOn, ptsOn bool) error {
	names, err := t.cfg.TileSetNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no tile specified in %s", t.cfg.InputName())
	}
	if dtmOn && t.dtm == nil {
		t.dtm = terrain.NewMap()
	}
	if t.ptset == nil {
		t.ptset = cloud.NewTileSet(t.cfg.BufferSize)
		t.ptset.SetAltTileFunc(t.cfg.AltTileFunc)
	}
	for _, name := range names {
		if dtmOn {
			t.dtm.AddNormalMapFile(t.cfg.NvmPath(name))
			t.verbose("Reading %s", t.cfg.NvmPath(name))
		}
		if t.declared {
			continue
		}
		if err := t.ptset.AddTile(t.cfg.TilPath(name), ptsOn); err != nil {
			return fmt.Errorf("header of %s inconsistent: %w", t.cfg.TilPath(name), err)
		}
		t.verbose("Reading %s", t.cfg.TilPath(name))
	}
	if !t.declared {
		if err := t.ptset.Create(); err != nil {
			return err
		}
		t.declared = true
		t.verbose("%d points in the whole tile set", t.ptset.Size())
	}
	if dtmOn {
		if err := t.dtm.AssembleMap(t.ptset.ColumnsOfTiles(), t.ptset.RowsOfTiles(),
			t.ptset.Xref(), t.ptset.Yref()); err != nil {
			return err
		}
		t.vmWidth = t.dtm.Width()
		t.vmHeight = t.dtm.Height()
		t.csize = t.dtm.CellSize()
	}
	if spread := t.ptset.XmSpread(); spread > 0 {
		t.iratio = float64(t.vmWidth) / (float64(spread) / cloud.XYZUnit)
	}
	return nil
}

// processShading renders the shaded DTM raster: slope shading on the
// normal path, expanded slope when RORPO is skipped so the gradient stage
// still sees the full dynamic range.
func (t *Tool) processShading() {
	t.verbose("Shading ...")
	defer t.timer.Stage("SHADE")()
	mode := terrain.ShadeSlope
	if t.cfg.RorpoOff {
		mode = terrain.ShadeExpSlope
	}
	if t.shadeMap == nil {
		t.shadeMap = raster.NewImage8(t.vmWidth, t.vmHeight)
	}
	for j := 0; j < t.vmHeight; j++ {
		for i := 0; i < t.vmWidth; i++ {
			t.shadeMap.Set(i, j, t.dtm.Get(i, j, mode))
		}
	}
	t.verbose("Shading OK")
}

// processRorpo filters the shaded raster.
func (t *Tool) processRorpo() {
	t.verbose("Rorpo ...")
	defer t.timer.Stage("RORPO")()
	if t.rorpoMap == nil {
		t.rorpoMap = raster.NewImage8(t.shadeMap.W, t.shadeMap.H)
	}
	rorpo.Filter(t.rorpoMap, t.shadeMap, rorpo.DefaultPathLength, 1)
	t.verbose("Rorpo OK")
}

// processSobel builds the gradient map of the RORPO raster, or of the
// shaded raster directly when RORPO is skipped.
func (t *Tool) processSobel() {
	t.verbose("Sobel 5x5 ...")
	defer t.timer.Stage("SOBEL")()
	src := t.rorpoMap
	if src == nil {
		src = t.shadeMap
	}
	t.gmap = gradient.Sobel5x5(src)
	t.bsdet.SetGradientMap(t.gmap)
	t.verbose("Sobel 5x5 OK")
}

// processFbsd extracts the blurred segments.
func (t *Tool) processFbsd() {
	t.verbose("FBSD ...")
	defer t.timer.Stage("FBSD")()
	t.bsdet.SetAssignedThickness(t.cfg.MaxBSThickness)
	t.bsdet.SetGradientMap(t.gmap)
	t.dss = t.bsdet.DetectAll()
	t.verbose("FBSD OK : %d blurred segments", len(t.dss))
}

// processSeeds samples the segments into seed buckets. kref is the pad
// anchor tile, or -1 outside sawing.
func (t *Tool) processSeeds(kref int) {
	t.verbose("Seeds ...")
	defer t.timer.Stage("SEEDS")()
	g := t.tileGeometry()
	if t.outSeeds == nil {
		t.outSeeds = make([][]geom.Pt2i, g.Cols*g.Rows)
	}
	kx, ky, padH := 0, 0, g.Rows
	if kref != -1 {
		kx = kref % g.Cols
		ky = kref / g.Cols
		if t.dtm != nil {
			padH = t.dtm.PadHeight()
		}
	}
	b := t.seedBuilder()
	st := b.Build(t.dss, g, kx, ky, padH, t.ptset.Declared, t.outSeeds)
	t.numSeeds += st.Seeds
	t.verbose("Seeds OK : %d seeds, %d rejected segments", st.Seeds, st.Rejected)
}

func (t *Tool) seedBuilder() *seeds.Builder {
	b := seeds.NewBuilder()
	b.SetMinBSLength(t.cfg.MinBSLength)
	b.SetSeedShift(t.cfg.SeedShift)
	b.SetSeedWidth(t.cfg.SeedWidth)
	if t.cfg.HalfSizeSeeds {
		b.SetHalfSize(true)
	}
	return b
}
