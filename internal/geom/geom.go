// Package geom holds the integer pixel and raster geometry shared by every
// pipeline stage: 2D points and vectors, the tile grid layout of a sector,
// and the serpentine tile iteration order.
//
// World coordinates are integer micrometres anchored at a sector origin;
// raster row 0 is the north-most row, so converting between pixel and label
// storage space always goes through FlipIndex.
package geom

// Pt2i is an integer pixel position.
type Pt2i struct {
	X int
	Y int
}

// Mid returns the midpoint of p and q, truncated toward zero.
func (p Pt2i) Mid(q Pt2i) Pt2i {
	return Pt2i{(p.X + q.X) / 2, (p.Y + q.Y) / 2}
}

// Vr2i is an integer 2D vector, used for gradient values.
type Vr2i struct {
	X int32
	Y int32
}

// SqNorm returns the squared euclidean norm of v.
func (v Vr2i) SqNorm() int64 {
	return int64(v.X)*int64(v.X) + int64(v.Y)*int64(v.Y)
}

// TileGeometry fixes the raster layout of a sector: a Cols x Rows grid of
// tiles, each TileW x TileH DTM cells, with one DTM cell subdivided into
// SubDiv point-cloud cells. The world anchor (X0, Y0) and the DTM cell size
// are integer micrometres.
type TileGeometry struct {
	Cols   int
	Rows   int
	TileW  int
	TileH  int
	SubDiv int
	CellMu int64
	X0     int64
	Y0     int64
}

// SubdivisionFactor is the fixed DTM to point grid subdivision.
const SubdivisionFactor = 5

// Width returns the sector raster width in DTM cells.
func (g TileGeometry) Width() int { return g.Cols * g.TileW }

// Height returns the sector raster height in DTM cells.
func (g TileGeometry) Height() int { return g.Rows * g.TileH }

// TileIndex maps grid coordinates to the linear tile index.
func (g TileGeometry) TileIndex(tx, ty int) int { return ty*g.Cols + tx }

// TileOf returns the grid coordinates of the tile holding pixel p, clamped
// to the grid. Clamping, not wrapping: seeds built on a pad rim may overhang
// the declared grid by a cell.
func (g TileGeometry) TileOf(p Pt2i) (tx, ty int) {
	tx = p.X / g.TileW
	if tx < 0 {
		tx = 0
	} else if tx >= g.Cols {
		tx = g.Cols - 1
	}
	ty = p.Y / g.TileH
	if ty < 0 {
		ty = 0
	} else if ty >= g.Rows {
		ty = g.Rows - 1
	}
	return tx, ty
}

// PixelToWorld returns the world position of the south-west corner of raster
// pixel (i, j) in micrometres. Row 0 is the north-most row.
func (g TileGeometry) PixelToWorld(i, j int) (x, y int64) {
	x = g.X0 + int64(i)*g.CellMu
	y = g.Y0 + int64(g.Height()-1-j)*g.CellMu
	return x, y
}

// FlipIndex converts a raster position (x, y) into the storage index of the
// y-flipped dense arrays (label map, track map).
func FlipIndex(w, h, x, y int) int {
	return (h-1-y)*w + x
}

// SerpentineIndex returns the k-th tile index of the serpentine traversal:
// row by row, even rows west to east, odd rows east to west.
func SerpentineIndex(cols, rows, k int) int {
	j := k / cols
	i := k % cols
	if j%2 != 0 {
		i = cols - 1 - i
	}
	return j*cols + i
}

// Serpentine iterates the whole grid in serpentine order.
type Serpentine struct {
	cols int
	rows int
	next int
}

// NewSerpentine returns a cursor over a cols x rows grid.
func NewSerpentine(cols, rows int) *Serpentine {
	return &Serpentine{cols: cols, rows: rows}
}

// Next returns the next tile index, or -1 once the grid is exhausted.
func (s *Serpentine) Next() int {
	if s.next >= s.cols*s.rows {
		return -1
	}
	k := SerpentineIndex(s.cols, s.rows, s.next)
	s.next++
	return k
}

// Reset rewinds the cursor.
func (s *Serpentine) Reset() { s.next = 0 }
