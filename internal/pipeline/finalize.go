package pipeline

import (
	"log"
	"time"

	"github.com/banshee-data/amrel/internal/cloud"
	"github.com/banshee-data/amrel/internal/config"
	"github.com/banshee-data/amrel/internal/export"
	"github.com/banshee-data/amrel/internal/geom"
	"github.com/banshee-data/amrel/internal/report"
	"github.com/banshee-data/amrel/internal/roaddb"
	"github.com/banshee-data/amrel/internal/steps"
)

// finalizeAsd writes every post-detection output: the road map PNG, the
// successful seeds, the detector snapshot, the run catalog entry, the
// vector exports and the timing report.
func (t *Tool) finalizeAsd() error {
	if err := t.saveAsdImage(); err != nil {
		return err
	}
	cellMu := int64(float64(t.csize)*cloud.XYZUnit + 0.5)
	if err := t.store.SaveSucseeds(t.sucSeeds,
		t.ptset.ColumnsOfTiles(), t.ptset.RowsOfTiles(),
		t.ptset.Xref(), t.ptset.Yref(), cellMu); err != nil {
		return err
	}
	if t.cfg.Verbose {
		log.Printf("[Pipeline] Successful seeds saved in %s", t.store.Path(steps.SucseedsFile))
	}
	if err := t.saveDetectorStatus(); err != nil {
		return err
	}
	if t.cfg.ExportOn {
		if err := t.exportVectors(); err != nil {
			return err
		}
	}
	// The catalog and the report are observability layers: failures are
	// reported, the run still succeeds.
	if err := t.recordRun(); err != nil {
		log.Printf("[Pipeline] run catalog unavailable: %v", err)
	}
	if t.cfg.OutMap {
		if err := report.WriteHTML(t.store.Path(steps.ReportFile),
			t.timer.Stages(), report.Summary{
				Sector: t.cfg.InputName(),
				Roads:  t.NumberOfRoads(),
				Seeds:  t.numSeeds,
				Unused: t.unused,
			}); err != nil {
			log.Printf("[Pipeline] report not written: %v", err)
		}
	}
	return nil
}

// saveDetectorStatus snapshots the run parameters to steps/autodet.ini.
func (t *Tool) saveDetectorStatus() error {
	if t.ctdet == nil {
		t.addTrackDetector()
	}
	return t.store.SaveDetectorStatus(steps.DetectorStatus{
		Version:              config.Version,
		Tile:                 t.cfg.InputName(),
		MaxBSThickness:       t.cfg.MaxBSThickness,
		MinBSLength:          t.cfg.MinBSLength,
		SeedShift:            t.cfg.SeedShift,
		SeedWidth:            t.cfg.SeedWidth,
		PadSize:              t.cfg.PadSize,
		BufferSize:           t.cfg.BufferSize,
		Connected:            t.cfg.Connected,
		CloudAccess:          t.cfg.CloudAccess,
		InitialDetection:     t.ctdet.InitialDetection(),
		PlateauLackTolerance: t.ctdet.PlateauLackTolerance(),
		PlateauMaxTilt:       t.ctdet.PlateauMaxTilt(),
		PlateauMinLength:     t.ctdet.PlateauMinLength(),
		ThicknessTolerance:   t.ctdet.ThicknessTolerance(),
		SlopeTolerance:       t.ctdet.SlopeTolerance(),
		SideShiftTolerance:   t.ctdet.SideShiftTolerance(),
		MaxShiftLength:       t.ctdet.MaxShiftLength(),
		TailMinSize:          t.ctdet.TailMinSize(),
	})
}

// exportVectors writes the shapefile pair for centerlines and bounds, plus
// the SVG centerline overlay.
func (t *Tool) exportVectors() error {
	world := export.World{
		Xref:   float64(t.ptset.Xref()) / cloud.XYZUnit,
		Yref:   float64(t.ptset.Yref()) / cloud.XYZUnit,
		CSize:  float64(t.csize),
		Height: t.vmHeight,
	}
	var centers, bounds [][]geom.Pt2i
	for _, ct := range t.roadSections {
		centers = append(centers, ct.Centerline())
		bounds = append(bounds, ct.LeftBound(), ct.RightBound())
	}
	if len(centers) == 0 {
		t.verbose("no road section to export")
		return nil
	}
	if err := export.WriteShapefile(t.store.Path(steps.CenterShp), centers, world); err != nil {
		return err
	}
	if err := export.WriteShapefile(t.store.Path(steps.BoundsShp), bounds, world); err != nil {
		return err
	}
	return export.WriteSVG(t.store.Path(steps.CenterSVGFile), centers, t.vmWidth, t.vmHeight)
}

// recordRun stores the run facts and per-road rows in the sqlite catalog.
func (t *Tool) recordRun() error {
	db, err := roaddb.Open(t.store.Path(steps.CatalogFile))
	if err != nil {
		return err
	}
	defer db.Close()
	run := &roaddb.Run{
		Sector:      t.cfg.InputName(),
		Step:        t.cfg.Step.String(),
		CloudAccess: t.cfg.CloudAccess,
		PadSize:     t.cfg.PadSize,
		BufferSize:  t.cfg.BufferSize,
		Seeds:       t.numSeeds,
		Unused:      t.unused,
		Roads:       t.NumberOfRoads(),
		Duration:    t.timer.Total(),
		StartedAt:   t.startedAt,
	}
	if err := db.RecordRun(run); err != nil {
		return err
	}
	for lab := 1; lab <= t.NumberOfRoads(); lab++ {
		minX, minY, maxX, maxY, err := t.labelMap.Bounds(uint16(lab))
		if err != nil {
			continue
		}
		road := &roaddb.Road{
			RunID: run.ID,
			Label: lab,
			MinX:  minX, MinY: minY, MaxX: maxX, MaxY: maxY,
			PixelCount: countLabel(t.labelMap.Labels(), uint16(lab)),
		}
		if 2*lab <= len(t.seedRoads) {
			road.SeedX1 = t.seedRoads[2*lab-2].X
			road.SeedY1 = t.seedRoads[2*lab-2].Y
			road.SeedX2 = t.seedRoads[2*lab-1].X
			road.SeedY2 = t.seedRoads[2*lab-1].Y
		}
		if err := db.InsertRoad(road); err != nil {
			return err
		}
	}
	return nil
}

func countLabel(labels []uint16, lab uint16) int {
	n := 0
	for _, v := range labels {
		if v == lab {
			n++
		}
	}
	return n
}

// markStart stamps the run start for the catalog entry.
func (t *Tool) markStart() { t.startedAt = time.Now() }
