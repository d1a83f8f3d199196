package pipeline

import (
	"fmt"

	"github.com/banshee-data/amrel/internal/cloud"
	"github.com/banshee-data/amrel/internal/geom"
	"github.com/banshee-data/amrel/internal/raster"
	"github.com/banshee-data/amrel/internal/terrain"
)

// processSawing produces the sector seed buckets, running stages 1 to 5
// either on the whole sector at once (pad size zero) or pad by pad to
// bound memory.
func (t *Tool) processSawing() error {
	if t.cfg.PadSize == 0 {
		if err := t.loadTileSet(true, false); err != nil {
			return err
		}
		t.processShading()
		t.clearDtm()
		if !t.cfg.RorpoOff {
			t.processRorpo()
			t.clearShading()
		}
		t.processSobel()
		t.clearRorpo()
		t.clearShading()
		t.processFbsd()
		t.clearSobel()
		t.processSeeds(-1)
		t.clearFbsd()
		return nil
	}

	if err := t.loadPadTileSet(); err != nil {
		return err
	}
	padW := t.dtm.PadWidth()
	padH := t.dtm.PadHeight()
	tw := t.dtm.TileWidth()
	th := t.dtm.TileHeight()
	t.vmWidth = tw * t.ptset.ColumnsOfTiles()
	t.vmHeight = th * t.ptset.RowsOfTiles()
	t.csize = t.dtm.CellSize()
	t.shadeMap = raster.NewImage8(padW*tw, padH*th)
	if !t.cfg.RorpoOff {
		t.rorpoMap = raster.NewImage8(padW*tw, padH*th)
	}
	cot := t.ptset.ColumnsOfTiles()
	t.outSeeds = make([][]geom.Pt2i, cot*t.ptset.RowsOfTiles())

	for k := t.dtm.NextPad(t.shadeMap); k != -1; k = t.dtm.NextPad(t.shadeMap) {
		t.verbose("  --> Pad %d (%d, %d):", k, k%cot, k/cot)
		if !t.cfg.RorpoOff {
			t.processRorpo()
		}
		t.processSobel()
		t.processFbsd()
		t.clearSobel()
		t.processSeeds(k)
		t.clearFbsd()
	}
	t.clearRorpo()
	t.clearShading()
	t.clearDtm()
	return nil
}

// loadPadTileSet declares the sector tiles for a sawing run: point tile
// headers plus the normal map arrangement, without loading any payload.
func (t *Tool) loadPadTileSet() error {
	names, err := t.cfg.TileSetNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no tile specified in %s", t.cfg.InputName())
	}
	t.dtm = terrain.NewMap()
	t.dtm.SetPadSize(t.cfg.PadSize)
	if t.cfg.RorpoOff {
		t.dtm.SetPadShadeMode(terrain.ShadeExpSlope)
	}
	t.ptset = cloud.NewTileSet(t.cfg.BufferSize)
	t.ptset.SetAltTileFunc(t.cfg.AltTileFunc)
	for _, name := range names {
		t.dtm.AddNormalMapFile(t.cfg.NvmPath(name))
		t.verbose("Reading %s", t.cfg.NvmPath(name))
		if err := t.ptset.AddTile(t.cfg.TilPath(name), false); err != nil {
			return fmt.Errorf("header of %s inconsistent: %w", t.cfg.TilPath(name), err)
		}
	}
	if err := t.ptset.Create(); err != nil {
		return fmt.Errorf("unable to create the point tile set: %w", err)
	}
	t.declared = true
	if err := t.dtm.ArrangeFiles(t.ptset.ColumnsOfTiles(), t.ptset.RowsOfTiles(),
		t.ptset.Xref(), t.ptset.Yref(), false); err != nil {
		return fmt.Errorf("unable to arrange DTM files in space: %w", err)
	}
	t.dtm.AdjustPadSize()
	return nil
}
