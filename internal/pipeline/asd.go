package pipeline

import (
	"fmt"

	"github.com/banshee-data/amrel/internal/geom"
	"github.com/banshee-data/amrel/internal/raster"
)

// processAsd runs the track detector over every seed, tile by tile in
// serpentine order. Seeds whose centre pixel already carries a road label
// are suppressed and counted as unused.
func (t *Tool) processAsd() error {
	t.verbose("ASD ...")
	defer t.timer.Stage("ASD")()
	t.roadSections = nil
	t.seedRoads = nil
	t.unused = 0
	num := 0

	if t.cfg.BufferSize == 0 && !t.tileLoaded {
		if err := t.ptset.LoadPoints(); err != nil {
			return fmt.Errorf("tiles cannot be loaded: %w", err)
		}
		t.tileLoaded = true
	}
	cot := t.ptset.ColumnsOfTiles()
	rot := t.ptset.RowsOfTiles()
	t.sucSeeds = make([][]geom.Pt2i, cot*rot)
	t.labelMap = raster.NewLabelMap(t.vmWidth, t.vmHeight)
	if t.ctdet == nil {
		t.addTrackDetector()
	}

	if t.cfg.BufferSize != 0 {
		if !t.bufCreated {
			if err := t.ptset.CreateBuffers(); err != nil {
				return err
			}
			t.bufCreated = true
		}
		for k := t.ptset.NextTile(); k != -1; k = t.ptset.NextTile() {
			t.verbose("  --> Tile %d (%d, %d) : %d seeds",
				k, k%cot, k/cot, len(t.outSeeds[k])/2)
			num += t.detectTileSeeds(k)
			if outs := t.ctdet.Outs(); outs != 0 {
				t.verbose("  %d requests outside", outs)
				t.ctdet.ResetOuts()
			}
		}
	} else {
		ser := geom.NewSerpentine(cot, rot)
		for k := ser.Next(); k != -1; k = ser.Next() {
			num += t.detectTileSeeds(k)
		}
	}
	t.verbose("ASD OK : %d roads and %d unused seeds", num, t.unused)
	return nil
}

// detectTileSeeds consumes one tile's seed bucket and returns how many
// seeds produced a road.
func (t *Tool) detectTileSeeds(k int) int {
	num := 0
	bucket := t.outSeeds[k]
	for i := 0; i+1 < len(bucket); i += 2 {
		p1, p2 := bucket[i], bucket[i+1]
		if t.labelMap.Occupied(p1.Mid(p2)) {
			t.unused++
			continue
		}
		ct := t.ctdet.Detect(p1, p2)
		if ct == nil || ct.Plateau(0) == nil {
			continue
		}
		var strips [][]geom.Pt2i
		if t.cfg.Connected {
			strips = ct.GetConnectedPoints(t.iratio, t.vmWidth, t.vmHeight)
		} else {
			strips = ct.GetPoints(t.iratio, t.vmWidth, t.vmHeight)
		}
		if len(strips) == 0 {
			continue
		}
		t.labelMap.Add(strips)
		t.sucSeeds[k] = append(t.sucSeeds[k], p1, p2)
		t.seedRoads = append(t.seedRoads, p1, p2)
		num++
		if t.cfg.ExportOn {
			t.roadSections = append(t.roadSections, ct)
			t.ctdet.PreserveDetection()
		}
	}
	return num
}
