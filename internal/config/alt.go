package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/banshee-data/amrel/internal/cloud"
	"github.com/banshee-data/amrel/internal/geom"
	"github.com/banshee-data/amrel/internal/terrain"
)

// altSources lists, per requested class, the classes to derive from in
// order of preference: the next denser class first where one exists.
var altSources = map[int][2]int{
	cloud.ECO: {cloud.MID, cloud.TOP},
	cloud.MID: {cloud.TOP, cloud.ECO},
	cloud.TOP: {cloud.MID, cloud.ECO},
}

// CreateAltTile derives the tile file of the configured class for one tile
// name from another class present on disk, and reports success.
func (c *Config) CreateAltTile(name string) bool {
	target := c.TilPath(name)
	for _, access := range altSources[c.CloudAccess] {
		src := TilDir + cloud.ClassDir(access) + cloud.ClassPrefix(access) + name + cloud.TilSuffix
		var old cloud.Tile
		if err := old.Load(src); err != nil {
			continue
		}
		if c.Verbose {
			log.Printf("[Config] Creating from %s", src)
		}
		derived := cloud.DeriveTile(&old, c.CloudAccess)
		if err := derived.Save(target); err != nil {
			log.Printf("[Config] %v", err)
			return false
		}
		return true
	}
	return false
}

// AltTileFunc adapts CreateAltTile to the tile-set callback: it recovers
// the tile name from the failing path.
func (c *Config) AltTileFunc(path string) bool {
	base := filepath.Base(path)
	prefix := cloud.ClassPrefix(c.CloudAccess)
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, cloud.TilSuffix) {
		return false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(base, prefix), cloud.TilSuffix)
	return c.CreateAltTile(name)
}

// ImportRequested reports whether the run is an import run rather than a
// detection run.
func (c *Config) ImportRequested() bool {
	return len(c.DtmImports) > 0 || c.XyzFile != ""
}

// SetImportFile routes an import argument by extension: .asc files feed the
// DTM import, anything else the point import.
func (c *Config) SetImportFile(name string) {
	if strings.HasSuffix(name, ".asc") {
		c.DtmImports = append(c.DtmImports, name)
	} else {
		c.XyzFile = name
	}
}

// ImportDtm converts the declared ASC files into a normal map tile under
// nvm/.
func (c *Config) ImportDtm() error {
	if len(c.DtmImports) == 0 {
		return fmt.Errorf("no DTM file to import")
	}
	for i, f := range c.DtmImports {
		// The first file may be renamed by an explicit --tile name;
		// neighbour files keep their own.
		name := strings.TrimSuffix(f, filepath.Ext(f))
		if i == 0 && len(c.tileNames) > 0 {
			name = c.tileNames[0]
		}
		tile, err := terrain.ImportASC(filepath.Join(c.DtmDir, f))
		if err != nil {
			return err
		}
		out := c.NvmPath(name)
		if err := tile.Save(out); err != nil {
			return err
		}
		if c.Verbose {
			log.Printf("[Config] Saved %s", out)
		}
	}
	return nil
}

// ImportXyz converts the declared XYZ point file into a tile of the
// configured class, using the geometry of the matching normal map.
func (c *Config) ImportXyz() error {
	if c.XyzFile == "" {
		return fmt.Errorf("no XYZ file to import")
	}
	name := strings.TrimSuffix(c.XyzFile, filepath.Ext(c.XyzFile))
	if len(c.tileNames) > 0 {
		name = c.tileNames[0]
	}
	nvm, err := terrain.LoadNVMInfo(c.NvmPath(name))
	if err != nil {
		return fmt.Errorf("can't read tile features in %s: %w", c.NvmPath(name), err)
	}
	tile := &cloud.Tile{
		Access: c.CloudAccess,
		Cols:   (nvm.Cols * geom.SubdivisionFactor) / c.CloudAccess,
		Rows:   (nvm.Rows * geom.SubdivisionFactor) / c.CloudAccess,
		Xref:   int64(nvm.XMin*cloud.XYZUnit + 0.5),
		Yref:   int64(nvm.YMin*cloud.XYZUnit + 0.5),
		CellMu: int64(float64(nvm.CellSize)*cloud.XYZUnit*float64(c.CloudAccess)/geom.SubdivisionFactor + 0.5),
	}
	if err := tile.LoadXYZ(filepath.Join(c.XyzDir, c.XyzFile)); err != nil {
		return err
	}
	return tile.Save(c.TilPath(name))
}
