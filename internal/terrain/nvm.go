// Package terrain assembles the digital terrain model of a sector from
// per-tile normal map (NVM) files and produces the shaded rasters consumed
// by the road detection pipeline.
package terrain

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// NVMSuffix is the normal map file extension.
const NVMSuffix = ".nvm"

// Tile is one normal-vector-map tile: a Cols x Rows grid of unit normals,
// row 0 north-most, anchored at its south-west corner in metres.
type Tile struct {
	Cols     int
	Rows     int
	CellSize float32 // metres
	XMin     float64 // metres
	YMin     float64 // metres
	// Normals holds nx, ny, nz triples row-major; nil while only the
	// header has been read.
	Normals []float32
}

type nvmHeader struct {
	Cols     int32
	Rows     int32
	CellSize float32
	XMin     float64
	YMin     float64
}

// LoadNVM reads a complete normal map tile.
func LoadNVM(path string) (*Tile, error) {
	return loadNVM(path, true)
}

// LoadNVMInfo reads only the tile header.
func LoadNVMInfo(path string) (*Tile, error) {
	return loadNVM(path, false)
}

func loadNVM(path string, withData bool) (*Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var h nvmHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("read %s header: %w", path, err)
	}
	if h.Cols <= 0 || h.Rows <= 0 || h.CellSize <= 0 {
		return nil, fmt.Errorf("%s: inconsistent header (%dx%d cells, size %f)",
			path, h.Cols, h.Rows, h.CellSize)
	}
	t := &Tile{
		Cols:     int(h.Cols),
		Rows:     int(h.Rows),
		CellSize: h.CellSize,
		XMin:     h.XMin,
		YMin:     h.YMin,
	}
	if !withData {
		return t, nil
	}
	t.Normals = make([]float32, 3*t.Cols*t.Rows)
	if err := binary.Read(r, binary.LittleEndian, t.Normals); err != nil {
		return nil, fmt.Errorf("read %s normals: %w", path, err)
	}
	return t, nil
}

// Save writes the tile to path.
func (t *Tile) Save(path string) error {
	if len(t.Normals) != 3*t.Cols*t.Rows {
		return fmt.Errorf("save %s: normals not loaded", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	h := nvmHeader{
		Cols:     int32(t.Cols),
		Rows:     int32(t.Rows),
		CellSize: t.CellSize,
		XMin:     t.XMin,
		YMin:     t.YMin,
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		f.Close()
		return fmt.Errorf("write %s header: %w", path, err)
	}
	if err := binary.Write(w, binary.LittleEndian, t.Normals); err != nil {
		f.Close()
		return fmt.Errorf("write %s normals: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// NormalAt returns the normal triple at cell (i, j).
func (t *Tile) NormalAt(i, j int) (nx, ny, nz float32) {
	base := 3 * (j*t.Cols + i)
	return t.Normals[base], t.Normals[base+1], t.Normals[base+2]
}
