package pipeline

import (
	"github.com/banshee-data/amrel/internal/raster"
	"github.com/banshee-data/amrel/internal/steps"
	"github.com/banshee-data/amrel/internal/terrain"
)

// backDtmImage renders the slope-shaded DTM for use as a PNG background,
// loading the tile set if no terrain is resident.
func (t *Tool) backDtmImage() *raster.Image8 {
	if t.dtm == nil {
		if err := t.loadTileSet(true, false); err != nil {
			t.verbose("no DTM background: %v", err)
			return nil
		}
	}
	im := raster.NewImage8(t.vmWidth, t.vmHeight)
	for j := 0; j < t.vmHeight; j++ {
		for i := 0; i < t.vmWidth; i++ {
			im.Set(i, j, t.dtm.Get(i, j, terrain.ShadeSlope))
		}
	}
	return im
}

// saveHillImage renders the hill-shaded DTM to steps/hill.png.
func (t *Tool) saveHillImage() error {
	if err := t.loadTileSet(true, false); err != nil {
		return err
	}
	im := raster.NewImage8(t.vmWidth, t.vmHeight)
	for j := 0; j < t.vmHeight; j++ {
		for i := 0; i < t.vmWidth; i++ {
			im.Set(i, j, t.dtm.Get(i, j, terrain.ShadeHill))
		}
	}
	return raster.SavePNG(im, t.store.Path(steps.HillImage))
}

// saveShadingImage writes the shaded raster preview.
func (t *Tool) saveShadingImage() error {
	return raster.SavePNG(t.shadeMap, t.store.Path(steps.ShadeImage))
}

// saveRorpoImage writes the RORPO raster preview.
func (t *Tool) saveRorpoImage() error {
	return raster.SavePNG(t.rorpoMap, t.store.Path(steps.RorpoImage))
}

// saveSobelImage writes the normalized gradient magnitude preview.
func (t *Tool) saveSobelImage() error {
	return raster.SavePNG(t.gmap.MagnitudeImage(), t.store.Path(steps.SobelImage))
}

// saveFbsdImage draws the detected segments over white or the DTM.
func (t *Tool) saveFbsdImage() error {
	im := raster.NewImage8(t.vmWidth, t.vmHeight)
	im.Fill(255)
	if t.cfg.BackDtm {
		if bg := t.backDtmImage(); bg != nil {
			copy(im.Bits, bg.Bits)
		}
	}
	for _, seg := range t.dss {
		x1r, y1r, x2r, y2r := seg.NaiveLine()
		drawLine(im, int(x1r.Float()+0.5), int(y1r.Float()+0.5),
			int(x2r.Float()+0.5), int(y2r.Float()+0.5), 0)
	}
	return raster.SavePNG(im, t.store.Path(steps.FbsdImage))
}

// saveSeedsImage draws every seed pair as a short stroke.
func (t *Tool) saveSeedsImage() error {
	im := raster.NewImage8(t.vmWidth, t.vmHeight)
	im.Fill(255)
	if t.cfg.BackDtm {
		if bg := t.backDtmImage(); bg != nil {
			copy(im.Bits, bg.Bits)
		}
	}
	// Seed pixels count y up from the south edge; image rows count down.
	for _, bucket := range t.outSeeds {
		for i := 0; i+1 < len(bucket); i += 2 {
			drawLine(im, bucket[i].X, t.vmHeight-1-bucket[i].Y,
				bucket[i+1].X, t.vmHeight-1-bucket[i+1].Y, 0)
		}
	}
	return raster.SavePNG(im, t.store.Path(steps.SeedsImage))
}

// saveAsdImage writes the road map PNG: white roads on black, optionally
// over the DTM, optionally false-colored per label.
func (t *Tool) saveAsdImage() error {
	if t.labelMap == nil {
		return nil
	}
	var bg *raster.Image8
	if t.cfg.BackDtm {
		bg = t.backDtmImage()
	}
	return raster.SaveLabelPNG(t.labelMap, bg, t.cfg.FalseColor,
		t.store.Path(steps.RoadsImage))
}

// drawLine strokes a raster line, clipping to the image.
func drawLine(im *raster.Image8, x1, y1, x2, y2 int, v byte) {
	dx := absInt(x2 - x1)
	dy := absInt(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		if x1 >= 0 && x1 < im.W && y1 >= 0 && y1 < im.H {
			im.Set(x1, y1, v)
		}
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
