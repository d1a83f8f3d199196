package terrain

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/amrel/internal/raster"
)

// ShadeMode selects how a DTM cell is rendered to a byte.
type ShadeMode int

const (
	// ShadeHill is Lambertian hill shading with a fixed north-west light.
	ShadeHill ShadeMode = iota
	// ShadeSlope maps local slope to intensity.
	ShadeSlope
	// ShadeExpSlope stretches the slope range over the full dynamic range.
	ShadeExpSlope
)

// Light vector for hill shading, unit length.
var lightX, lightY, lightZ = float32(-0.5), float32(0.5), float32(math.Sqrt2 / 2)

// Map is the assembled DTM of a sector: a Cols x Rows grid of NVM tiles of
// identical geometry. In pad mode only the tiles of the current pad are
// resident.
type Map struct {
	files []string // declared tile files, insertion order

	cols, rows   int
	tileW, tileH int
	cellSize     float32 // metres
	xref, yref   int64   // micrometres, sector south-west corner

	// arrangement: grid slot (ty*cols+tx) to index in files, -1 if absent.
	slots []int
	tiles map[int]*Tile // loaded tiles keyed by grid slot

	padSize int
	padMode ShadeMode
	padW    int
	padH    int
	padNext int

	slopeLow  float32
	slopeHigh float32
	stretched bool
}

// NewMap returns an empty terrain map.
func NewMap() *Map {
	return &Map{tiles: make(map[int]*Tile), padMode: ShadeSlope}
}

// AddNormalMapFile declares one tile file, in tile-set order.
func (m *Map) AddNormalMapFile(path string) {
	m.files = append(m.files, path)
}

// SetPadSize requests sawing with pads of size tiles per side.
func (m *Map) SetPadSize(size int) { m.padSize = size }

// SetPadShadeMode selects the shading mode NextPad renders with. The
// default is slope shading; the RORPO-skip path uses the expanded slope.
func (m *Map) SetPadShadeMode(mode ShadeMode) { m.padMode = mode }

// Width returns the sector raster width in cells.
func (m *Map) Width() int { return m.cols * m.tileW }

// Height returns the sector raster height in cells.
func (m *Map) Height() int { return m.rows * m.tileH }

// TileWidth returns the tile width in cells.
func (m *Map) TileWidth() int { return m.tileW }

// TileHeight returns the tile height in cells.
func (m *Map) TileHeight() int { return m.tileH }

// CellSize returns the DTM cell size in metres.
func (m *Map) CellSize() float32 { return m.cellSize }

// PadWidth returns the adjusted pad width in tiles.
func (m *Map) PadWidth() int { return m.padW }

// PadHeight returns the adjusted pad height in tiles.
func (m *Map) PadHeight() int { return m.padH }

// AssembleMap arranges the declared files on a cols x rows grid anchored at
// (xref, yref) micrometres and loads every tile. It fails when a tile does
// not line up with the grid or differs in geometry.
func (m *Map) AssembleMap(cols, rows int, xref, yref int64) error {
	if err := m.ArrangeFiles(cols, rows, xref, yref, true); err != nil {
		return err
	}
	return nil
}

// ArrangeFiles checks that every declared file fits the cols x rows grid
// anchored at (xref, yref) micrometres, recording the arrangement. When
// load is set the tile normals are read at once, otherwise only headers.
func (m *Map) ArrangeFiles(cols, rows int, xref, yref int64, load bool) error {
	if len(m.files) == 0 {
		return fmt.Errorf("terrain: empty sector, no normal map declared")
	}
	m.cols, m.rows = cols, rows
	m.xref, m.yref = xref, yref
	m.slots = make([]int, cols*rows)
	for i := range m.slots {
		m.slots[i] = -1
	}
	for fi, path := range m.files {
		t, err := loadNVM(path, load)
		if err != nil {
			return err
		}
		if fi == 0 {
			m.tileW, m.tileH = t.Cols, t.Rows
			m.cellSize = t.CellSize
		} else if t.Cols != m.tileW || t.Rows != m.tileH || t.CellSize != m.cellSize {
			return fmt.Errorf("terrain: %s geometry %dx%d/%g differs from sector %dx%d/%g",
				path, t.Cols, t.Rows, t.CellSize, m.tileW, m.tileH, m.cellSize)
		}
		tx, ty, err := m.slotOf(t, path)
		if err != nil {
			return err
		}
		slot := ty*cols + tx
		if m.slots[slot] != -1 {
			return fmt.Errorf("terrain: %s overlaps tile (%d, %d)", path, tx, ty)
		}
		m.slots[slot] = fi
		if load {
			m.tiles[slot] = t
		}
	}
	m.stretched = false
	return nil
}

// slotOf positions tile t on the sector grid, checking alignment with the
// sector anchor modulo the tile spread.
func (m *Map) slotOf(t *Tile, path string) (tx, ty int, err error) {
	mu := int64(m.cellSize*1e6 + 0.5)
	spreadX := mu * int64(m.tileW)
	spreadY := mu * int64(m.tileH)
	xmu := int64(t.XMin*1e6 + 0.5)
	ymu := int64(t.YMin*1e6 + 0.5)
	dx := xmu - m.xref
	dy := ymu - m.yref
	if dx < 0 || dy < 0 || dx%spreadX != 0 || dy%spreadY != 0 {
		return 0, 0, fmt.Errorf("terrain: %s not aligned with sector grid", path)
	}
	tx = int(dx / spreadX)
	ty = m.rows - 1 - int(dy/spreadY)
	if tx >= m.cols || ty < 0 {
		return 0, 0, fmt.Errorf("terrain: %s outside the %dx%d sector", path, m.cols, m.rows)
	}
	return tx, ty, nil
}

// normalAt returns the normal under sector pixel (i, j), or a vertical
// normal when the tile is absent or unloaded.
func (m *Map) normalAt(i, j int) (nx, ny, nz float32) {
	tx, ty := i/m.tileW, j/m.tileH
	t := m.tiles[ty*m.cols+tx]
	if t == nil || t.Normals == nil {
		return 0, 0, 1
	}
	return t.NormalAt(i-tx*m.tileW, j-ty*m.tileH)
}

// Get renders sector pixel (i, j) in the requested shading mode.
func (m *Map) Get(i, j int, mode ShadeMode) byte {
	nx, ny, nz := m.normalAt(i, j)
	switch mode {
	case ShadeHill:
		v := float64(nx*lightX + ny*lightY + nz*lightZ)
		if v < 0 {
			v = 0
		}
		return byte(v*255 + 0.5)
	case ShadeExpSlope:
		if !m.stretched {
			m.stretchSlopeRange()
		}
		s := slopeOf(nx, ny, nz)
		if m.slopeHigh <= m.slopeLow {
			return 0
		}
		v := (s - m.slopeLow) / (m.slopeHigh - m.slopeLow)
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		return byte(v*255 + 0.5)
	default:
		s := slopeOf(nx, ny, nz)
		if s > 1 {
			s = 1
		}
		return byte(s*255 + 0.5)
	}
}

func slopeOf(nx, ny, nz float32) float32 {
	return float32(math.Sqrt(float64(nx*nx + ny*ny)))
}

// stretchSlopeRange scans the resident tiles once for the slope range used
// by expanded-slope shading.
func (m *Map) stretchSlopeRange() {
	var all []float64
	for _, t := range m.tiles {
		if t.Normals == nil {
			continue
		}
		for j := 0; j < t.Rows; j++ {
			for i := 0; i < t.Cols; i++ {
				nx, ny, nz := t.NormalAt(i, j)
				all = append(all, float64(slopeOf(nx, ny, nz)))
			}
		}
	}
	if len(all) == 0 {
		m.slopeLow, m.slopeHigh = 0, 1
	} else {
		m.slopeLow = float32(floats.Min(all))
		m.slopeHigh = float32(floats.Max(all))
	}
	m.stretched = true
}

// AdjustPadSize clamps the requested pad size to the sector dimensions.
func (m *Map) AdjustPadSize() {
	m.padW = m.padSize
	if m.padW > m.cols {
		m.padW = m.cols
	}
	m.padH = m.padSize
	if m.padH > m.rows {
		m.padH = m.rows
	}
	if m.padW < 1 {
		m.padW = 1
	}
	if m.padH < 1 {
		m.padH = 1
	}
	m.padNext = 0
}

// NextPad renders the next pad into dst (sized PadWidth*TileWidth x
// PadHeight*TileHeight) in the pad shading mode (slope shading unless
// SetPadShadeMode chose another) and advances the pad cursor in
// serpentine order over pad anchors. It returns the pad anchor as a tile
// index on the south-up grid shared with the point tile set, or -1 once
// every pad has been delivered. Tiles of the previous pad that the new pad
// does not reuse are released.
func (m *Map) NextPad(dst *raster.Image8) int {
	stepX := m.padW - 2
	if stepX < 1 {
		stepX = 1
	}
	stepY := m.padH - 2
	if stepY < 1 {
		stepY = 1
	}
	nx := 1 + (m.cols-1+stepX-1)/stepX
	ny := 1 + (m.rows-1+stepY-1)/stepY
	if m.padNext >= nx*ny {
		return -1
	}
	pj := m.padNext / nx
	pi := m.padNext % nx
	if pj%2 != 0 {
		pi = nx - 1 - pi
	}
	m.padNext++

	kx := pi * stepX
	if kx+m.padW > m.cols {
		kx = m.cols - m.padW
	}
	ky := pj * stepY
	if ky+m.padH > m.rows {
		ky = m.rows - m.padH
	}

	if err := m.loadPadTiles(kx, ky); err != nil {
		log.Printf("[Terrain] pad (%d, %d): %v", kx, ky, err)
		return -1
	}
	dst.Fill(0)
	for j := 0; j < m.padH*m.tileH; j++ {
		sj := ky*m.tileH + j
		for i := 0; i < m.padW*m.tileW; i++ {
			dst.Set(i, j, m.Get(kx*m.tileW+i, sj, m.padMode))
		}
	}
	// ky addresses the raster rows (north down); the anchor is reported on
	// the south-up tile grid.
	return (m.rows-ky-m.padH)*m.cols + kx
}

// loadPadTiles makes the tiles of pad (kx, ky) resident and evicts the rest.
func (m *Map) loadPadTiles(kx, ky int) error {
	want := make(map[int]bool)
	for ty := ky; ty < ky+m.padH; ty++ {
		for tx := kx; tx < kx+m.padW; tx++ {
			want[ty*m.cols+tx] = true
		}
	}
	for slot := range m.tiles {
		if !want[slot] {
			delete(m.tiles, slot)
		}
	}
	for slot := range want {
		if m.tiles[slot] != nil || m.slots[slot] == -1 {
			continue
		}
		t, err := LoadNVM(m.files[m.slots[slot]])
		if err != nil {
			return err
		}
		m.tiles[slot] = t
	}
	// The expanded-slope range follows the resident tiles.
	m.stretched = false
	return nil
}
