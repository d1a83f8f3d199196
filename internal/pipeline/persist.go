package pipeline

import (
	"github.com/banshee-data/amrel/internal/geom"
	"github.com/banshee-data/amrel/internal/seeds"
	"github.com/banshee-data/amrel/internal/steps"
)

// saveShadingMap persists the shaded raster artifact.
func (t *Tool) saveShadingMap() error {
	return t.store.SaveByteMap(steps.ShadeMapFile, t.shadeMap, t.csize)
}

// loadShadingMap restores the shaded raster and the sector frame.
func (t *Tool) loadShadingMap() error {
	im, csize, err := t.store.LoadByteMap(steps.ShadeMapFile)
	if err != nil {
		return err
	}
	t.shadeMap = im
	t.vmWidth, t.vmHeight, t.csize = im.W, im.H, csize
	return nil
}

// saveRorpoMap persists the RORPO raster artifact.
func (t *Tool) saveRorpoMap() error {
	return t.store.SaveByteMap(steps.RorpoMapFile, t.rorpoMap, t.csize)
}

// loadRorpoMap restores the RORPO raster and the sector frame.
func (t *Tool) loadRorpoMap() error {
	im, csize, err := t.store.LoadByteMap(steps.RorpoMapFile)
	if err != nil {
		return err
	}
	t.rorpoMap = im
	t.vmWidth, t.vmHeight, t.csize = im.W, im.H, csize
	return nil
}

// saveSobelMap persists the gradient artifact.
func (t *Tool) saveSobelMap() error {
	return t.store.SaveGradientMap(t.gmap, t.csize)
}

// loadSobelMap restores the gradient map and hands it to the segment
// detector.
func (t *Tool) loadSobelMap() error {
	m, csize, err := t.store.LoadGradientMap()
	if err != nil {
		return err
	}
	t.gmap = m
	t.vmWidth, t.vmHeight, t.csize = m.W, m.H, csize
	t.bsdet.SetGradientMap(m)
	return nil
}

// saveFbsdSegments persists the segment artifact.
func (t *Tool) saveFbsdSegments() error {
	tsw, tsh := 1, 1
	if t.ptset != nil {
		tsw, tsh = t.ptset.ColumnsOfTiles(), t.ptset.RowsOfTiles()
	}
	return t.store.SaveDSS(t.dss, t.vmWidth, t.vmHeight, t.csize, tsw, tsh)
}

// loadFbsdSegments restores the segment list and the sector frame.
func (t *Tool) loadFbsdSegments() error {
	dss, w, h, csize, _, _, err := t.store.LoadDSS()
	if err != nil {
		return err
	}
	t.dss = dss
	t.vmWidth, t.vmHeight, t.csize = w, h, csize
	return nil
}

// saveSeeds persists the seed buckets, doubling the recorded geometry in
// half-size mode.
func (t *Tool) saveSeeds() error {
	g := t.tileGeometry()
	buckets := t.outSeeds
	w, h := t.vmWidth, t.vmHeight
	tsw, tsh := g.Cols, g.Rows
	csize := t.csize
	if t.cfg.HalfSizeSeeds {
		expanded, outliers := seeds.ExpandHalfSize(buckets, g)
		if outliers != 0 {
			t.verbose("%d outsiders when retiling", outliers)
		}
		buckets = expanded
		w, h = 2*w, 2*h
		tsw, tsh = 2*tsw, 2*tsh
		csize /= 2
	}
	t.verbose("Saving seeds in %s", t.store.Path(steps.SeedsFile))
	return t.store.SaveSeeds(buckets, w, h, csize, tsw, tsh)
}

// loadSeeds restores the seed buckets and the sector frame.
func (t *Tool) loadSeeds() error {
	buckets, w, h, csize, _, _, err := t.store.LoadSeeds()
	if err != nil {
		return err
	}
	t.verbose("Loading seeds from %s", t.store.Path(steps.SeedsFile))
	t.outSeeds = buckets
	t.vmWidth, t.vmHeight, t.csize = w, h, csize
	for _, b := range buckets {
		t.numSeeds += len(b) / 2
	}
	return nil
}

// rebucketSeeds redistributes loaded seeds on the grid of the attached
// tile set, which may differ from the grid recorded in the artifact.
func (t *Tool) rebucketSeeds() {
	g := t.tileGeometry()
	buckets := make([][]geom.Pt2i, g.Cols*g.Rows)
	for _, b := range t.outSeeds {
		for i := 0; i+1 < len(b); i += 2 {
			tx, ty := g.TileOf(b[i].Mid(b[i+1]))
			k := g.TileIndex(tx, ty)
			buckets[k] = append(buckets[k], b[i], b[i+1])
		}
	}
	t.outSeeds = buckets
}
