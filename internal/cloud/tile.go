// Package cloud manages the raw LiDAR point tiles of a sector: the binary
// .til tile files in their three resolution classes, conversion between
// classes, and the tile set with its sliding buffer used by track detection.
package cloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Resolution classes. The value is the cell regrouping factor relative to
// the densest grid: a TOP tile holds Tw*S x Th*S cells, an ECO tile a
// quarter of that per axis.
const (
	TOP = 1
	MID = 2
	ECO = 4
)

// TilSuffix is the point tile file extension.
const TilSuffix = ".til"

// XYZUnit converts metres to the integer micrometre unit of tile files.
const XYZUnit = 1_000_000

// ClassDir returns the tile sub-directory of a resolution class.
func ClassDir(access int) string {
	switch access {
	case MID:
		return "mid/"
	case ECO:
		return "eco/"
	default:
		return "top/"
	}
}

// ClassPrefix returns the tile file prefix of a resolution class.
func ClassPrefix(access int) string {
	switch access {
	case MID:
		return "mid_"
	case ECO:
		return "eco_"
	default:
		return "top_"
	}
}

// Point is one LiDAR return in integer micrometres, world coordinates.
type Point struct {
	X int64
	Y int64
	Z int64
}

// Tile is one point tile: a Cols x Rows cell grid anchored at its
// south-west corner (Xref, Yref) micrometres, cell side CellMu micrometres.
// Cell (0, 0) is the south-west cell; rows run north.
type Tile struct {
	Access int
	Cols   int
	Rows   int
	Xref   int64
	Yref   int64
	Zmax   int64
	CellMu int64

	counts []int32 // per-cell point counts, nil until header+index read
	starts []int32 // per-cell offsets into Points
	Points []Point // nil until loaded
	loaded bool
}

type tilHeader struct {
	Access int32
	Cols   int32
	Rows   int32
	Xref   int64
	Yref   int64
	Zmax   int64
	CellMu int64
	Count  int64
}

// LoadTilHeader reads the header and cell index of a tile file.
func LoadTilHeader(path string) (*Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	t, _, err := readHeader(r, path)
	return t, err
}

func readHeader(r *bufio.Reader, path string) (*Tile, int64, error) {
	var h tilHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("read %s header: %w", path, err)
	}
	if h.Cols <= 0 || h.Rows <= 0 || h.CellMu <= 0 || h.Count < 0 ||
		(h.Access != TOP && h.Access != MID && h.Access != ECO) {
		return nil, 0, fmt.Errorf("%s: inconsistent header", path)
	}
	t := &Tile{
		Access: int(h.Access),
		Cols:   int(h.Cols),
		Rows:   int(h.Rows),
		Xref:   h.Xref,
		Yref:   h.Yref,
		Zmax:   h.Zmax,
		CellMu: h.CellMu,
	}
	t.counts = make([]int32, t.Cols*t.Rows)
	if err := binary.Read(r, binary.LittleEndian, t.counts); err != nil {
		return nil, 0, fmt.Errorf("read %s cell index: %w", path, err)
	}
	t.buildStarts()
	return t, h.Count, nil
}

func (t *Tile) buildStarts() {
	t.starts = make([]int32, len(t.counts)+1)
	for i, c := range t.counts {
		t.starts[i+1] = t.starts[i] + c
	}
}

// Load reads the whole tile file, header and points.
func (t *Tile) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	tt, count, err := readHeader(r, path)
	if err != nil {
		return err
	}
	*t = *tt
	raw := make([]int64, 3*count)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return fmt.Errorf("read %s points: %w", path, err)
	}
	t.Points = make([]Point, count)
	for i := range t.Points {
		t.Points[i] = Point{raw[3*i], raw[3*i+1], raw[3*i+2]}
	}
	t.loaded = true
	return nil
}

// Save writes the tile to path.
func (t *Tile) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	h := tilHeader{
		Access: int32(t.Access),
		Cols:   int32(t.Cols),
		Rows:   int32(t.Rows),
		Xref:   t.Xref,
		Yref:   t.Yref,
		Zmax:   t.Zmax,
		CellMu: t.CellMu,
		Count:  int64(len(t.Points)),
	}
	if err := binary.Write(w, binary.LittleEndian, h); err == nil {
		err = binary.Write(w, binary.LittleEndian, t.counts)
		if err == nil {
			raw := make([]int64, 0, 3*len(t.Points))
			for _, p := range t.Points {
				raw = append(raw, p.X, p.Y, p.Z)
			}
			err = binary.Write(w, binary.LittleEndian, raw)
		}
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// Loaded reports whether the points are resident.
func (t *Tile) Loaded() bool { return t.loaded }

// Release drops the resident points, keeping header and cell index.
func (t *Tile) Release() {
	t.Points = nil
	t.loaded = false
}

// PointCount returns the number of points in the tile.
func (t *Tile) PointCount() int {
	if t.starts == nil {
		return 0
	}
	return int(t.starts[len(t.starts)-1])
}

// CellPoints returns the points of cell (cx, cy), south-west origin.
func (t *Tile) CellPoints(cx, cy int) []Point {
	if !t.loaded || cx < 0 || cx >= t.Cols || cy < 0 || cy >= t.Rows {
		return nil
	}
	idx := cy*t.Cols + cx
	return t.Points[t.starts[idx]:t.starts[idx+1]]
}

// cellOf buckets a point into the tile grid, or returns false when it falls
// outside the tile area.
func (t *Tile) cellOf(p Point) (int, int, bool) {
	cx := int((p.X - t.Xref) / t.CellMu)
	cy := int((p.Y - t.Yref) / t.CellMu)
	if p.X < t.Xref || p.Y < t.Yref || cx >= t.Cols || cy >= t.Rows {
		return 0, 0, false
	}
	return cx, cy, true
}

// SetPoints rebuilds this tile's cells from the points of src, which must
// cover the same area in another resolution class.
func (t *Tile) SetPoints(src *Tile) {
	buckets := make([][]Point, t.Cols*t.Rows)
	zmax := int64(0)
	for _, p := range src.Points {
		cx, cy, ok := t.cellOf(p)
		if !ok {
			continue
		}
		buckets[cy*t.Cols+cx] = append(buckets[cy*t.Cols+cx], p)
		if p.Z > zmax {
			zmax = p.Z
		}
	}
	t.fillFromBuckets(buckets, zmax)
}

func (t *Tile) fillFromBuckets(buckets [][]Point, zmax int64) {
	t.counts = make([]int32, len(buckets))
	total := 0
	for i, b := range buckets {
		t.counts[i] = int32(len(b))
		total += len(b)
	}
	t.buildStarts()
	t.Points = make([]Point, 0, total)
	for _, b := range buckets {
		t.Points = append(t.Points, b...)
	}
	t.Zmax = zmax
	t.loaded = true
}

// LoadXYZ fills the tile from a whitespace-separated x y z text file in
// metres. The tile geometry (size, area, cell size) must be set beforehand.
func (t *Tile) LoadXYZ(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buckets := make([][]Point, t.Cols*t.Rows)
	zmax := int64(0)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		x, errX := strconv.ParseFloat(fields[0], 64)
		y, errY := strconv.ParseFloat(fields[1], 64)
		z, errZ := strconv.ParseFloat(fields[2], 64)
		if errX != nil || errY != nil || errZ != nil {
			return fmt.Errorf("%s: bad point line %q", path, sc.Text())
		}
		p := Point{
			X: int64(x*XYZUnit + 0.5),
			Y: int64(y*XYZUnit + 0.5),
			Z: int64(z*XYZUnit + 0.5),
		}
		cx, cy, ok := t.cellOf(p)
		if !ok {
			continue
		}
		buckets[cy*t.Cols+cx] = append(buckets[cy*t.Cols+cx], p)
		if p.Z > zmax {
			zmax = p.Z
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	t.fillFromBuckets(buckets, zmax)
	return nil
}

// DeriveTile regroups src into a tile of the requested class over the same
// area. Works in both directions: regrouping to a sparser class merges
// cells, regrouping to a denser one re-buckets the same points.
func DeriveTile(src *Tile, access int) *Tile {
	scale := func(n, from, to int) int { return (n * from) / to }
	t := &Tile{
		Access: access,
		Cols:   scale(src.Cols, src.Access, access),
		Rows:   scale(src.Rows, src.Access, access),
		Xref:   src.Xref,
		Yref:   src.Yref,
		CellMu: src.CellMu * int64(access) / int64(src.Access),
	}
	t.SetPoints(src)
	return t
}
