package cloud

import (
	"fmt"
	"log"

	"github.com/banshee-data/amrel/internal/geom"
)

// AltTileFunc derives a missing tile file from another resolution class.
// It receives the failing tile path and reports whether a new file was
// produced so the load can be retried.
type AltTileFunc func(path string) bool

// TileSet owns the point tiles of a sector and their residency. With a
// buffer size of zero every tile is loaded up front; otherwise a sliding
// window follows the serpentine cursor, keeping the current tile and its
// eight neighbours resident.
type TileSet struct {
	bufSize int
	alt     AltTileFunc

	paths []string
	tiles []*Tile

	cols, rows int
	xref, yref int64
	spreadX    int64
	spreadY    int64
	slots      []int // grid slot -> tile index

	cursor  *TileCursor
	lastUse map[int]int
	tick    int
}

// NewTileSet returns an empty set with the given sliding buffer size
// (window side in tiles, zero for all-resident mode).
func NewTileSet(bufSize int) *TileSet {
	return &TileSet{bufSize: bufSize, lastUse: make(map[int]int)}
}

// SetAltTileFunc installs the fallback used when a tile file is missing at
// the configured resolution class.
func (s *TileSet) SetAltTileFunc(f AltTileFunc) { s.alt = f }

// AddTile declares a tile file, optionally loading its points at once.
// When the file is absent or unreadable and an alternative provider is
// installed, the provider is asked to derive the file and the load is
// retried once.
func (s *TileSet) AddTile(path string, loadNow bool) error {
	t, err := LoadTilHeader(path)
	if err != nil && s.alt != nil && s.alt(path) {
		t, err = LoadTilHeader(path)
	}
	if err != nil {
		return err
	}
	if loadNow {
		if err := t.Load(path); err != nil {
			return err
		}
	}
	s.paths = append(s.paths, path)
	s.tiles = append(s.tiles, t)
	return nil
}

// Create verifies the declared tiles form a consistent rectangular grid and
// computes the sector frame. It must be called once after the last AddTile.
func (s *TileSet) Create() error {
	if len(s.tiles) == 0 {
		return fmt.Errorf("cloud: empty tile set")
	}
	t0 := s.tiles[0]
	s.spreadX = t0.CellMu * int64(t0.Cols)
	s.spreadY = t0.CellMu * int64(t0.Rows)
	s.xref, s.yref = t0.Xref, t0.Yref
	for _, t := range s.tiles[1:] {
		if t.Cols != t0.Cols || t.Rows != t0.Rows || t.CellMu != t0.CellMu ||
			t.Access != t0.Access {
			return fmt.Errorf("cloud: tile geometry mismatch in set")
		}
		if t.Xref < s.xref {
			s.xref = t.Xref
		}
		if t.Yref < s.yref {
			s.yref = t.Yref
		}
	}
	s.cols, s.rows = 0, 0
	coords := make([][2]int, len(s.tiles))
	for i, t := range s.tiles {
		if (t.Xref-s.xref)%s.spreadX != 0 || (t.Yref-s.yref)%s.spreadY != 0 {
			return fmt.Errorf("cloud: %s not aligned with the sector grid", s.paths[i])
		}
		gx := int((t.Xref - s.xref) / s.spreadX)
		gy := int((t.Yref - s.yref) / s.spreadY)
		coords[i] = [2]int{gx, gy}
		if gx+1 > s.cols {
			s.cols = gx + 1
		}
		if gy+1 > s.rows {
			s.rows = gy + 1
		}
	}
	s.slots = make([]int, s.cols*s.rows)
	for i := range s.slots {
		s.slots[i] = -1
	}
	for i, c := range coords {
		// Slot rows count up from the sector south edge, like seed and
		// road pixels.
		slot := c[1]*s.cols + c[0]
		if s.slots[slot] != -1 {
			return fmt.Errorf("cloud: %s overlaps %s", s.paths[i], s.paths[s.slots[slot]])
		}
		s.slots[slot] = i
	}
	for slot, ti := range s.slots {
		if ti == -1 {
			return fmt.Errorf("cloud: tile (%d, %d) missing from the sector",
				slot%s.cols, slot/s.cols)
		}
	}
	return nil
}

// ColumnsOfTiles returns the grid width in tiles.
func (s *TileSet) ColumnsOfTiles() int { return s.cols }

// RowsOfTiles returns the grid height in tiles.
func (s *TileSet) RowsOfTiles() int { return s.rows }

// Xref returns the sector west edge in micrometres.
func (s *TileSet) Xref() int64 { return s.xref }

// Yref returns the sector south edge in micrometres.
func (s *TileSet) Yref() int64 { return s.yref }

// XmSpread returns the sector width in micrometres.
func (s *TileSet) XmSpread() int64 { return s.spreadX * int64(s.cols) }

// Size returns the total point count of the set.
func (s *TileSet) Size() int {
	n := 0
	for _, t := range s.tiles {
		n += t.PointCount()
	}
	return n
}

// Tile returns the tile at grid slot k (south-west origin, row-major).
func (s *TileSet) Tile(k int) *Tile {
	if k < 0 || k >= len(s.slots) || s.slots[k] == -1 {
		return nil
	}
	return s.tiles[s.slots[k]]
}

// IsLoaded reports whether the points of slot k are resident.
func (s *TileSet) IsLoaded(k int) bool {
	t := s.Tile(k)
	return t != nil && t.Loaded()
}

// Declared reports whether slot k holds a tile.
func (s *TileSet) Declared(k int) bool { return s.Tile(k) != nil }

// LoadPoints makes every tile resident (buffer size zero mode).
func (s *TileSet) LoadPoints() error {
	for i, t := range s.tiles {
		if t.Loaded() {
			continue
		}
		if err := t.Load(s.paths[i]); err != nil {
			return err
		}
	}
	return nil
}

// TileCursor walks the sector in serpentine order with residency
// management. Exactly one cursor is active per run.
type TileCursor struct {
	set *TileSet
	ser *geom.Serpentine
}

// CreateBuffers allocates the sliding window and pre-loads the first one.
// With a zero buffer size it simply loads everything.
func (s *TileSet) CreateBuffers() error {
	s.cursor = &TileCursor{set: s, ser: geom.NewSerpentine(s.cols, s.rows)}
	if s.bufSize == 0 {
		return s.LoadPoints()
	}
	return s.ensureNeighbours(0)
}

// NextTile advances the serpentine cursor and returns the next tile slot,
// with the guarantee that the slot and all its 8-neighbours are resident.
// Returns -1 when the iteration is exhausted.
func (s *TileSet) NextTile() int {
	if s.cursor == nil {
		if err := s.CreateBuffers(); err != nil {
			log.Printf("[Cloud] buffer creation failed: %v", err)
			return -1
		}
	}
	k := s.cursor.ser.Next()
	if k == -1 {
		return -1
	}
	if err := s.ensureNeighbours(k); err != nil {
		log.Printf("[Cloud] residency for tile %d failed: %v", k, err)
		return -1
	}
	return k
}

// ensureNeighbours loads the 3x3 block around slot k and evicts the least
// recently used tiles beyond the window capacity.
func (s *TileSet) ensureNeighbours(k int) error {
	if s.bufSize == 0 {
		return nil
	}
	tx, ty := k%s.cols, k/s.cols
	s.tick++
	needed := make(map[int]bool)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := tx+dx, ty+dy
			if nx < 0 || nx >= s.cols || ny < 0 || ny >= s.rows {
				continue
			}
			slot := ny*s.cols + nx
			needed[slot] = true
			s.lastUse[slot] = s.tick
			t := s.Tile(slot)
			if !t.Loaded() {
				if err := t.Load(s.paths[s.slots[slot]]); err != nil {
					return err
				}
			}
		}
	}
	capacity := s.bufSize * s.bufSize
	if capacity < 9 {
		capacity = 9
	}
	resident := 0
	for slot := range s.slots {
		if s.IsLoaded(slot) {
			resident++
		}
	}
	for resident > capacity {
		oldest, oldestTick := -1, s.tick+1
		for slot := range s.slots {
			if !s.IsLoaded(slot) || needed[slot] {
				continue
			}
			if s.lastUse[slot] < oldestTick {
				oldest, oldestTick = slot, s.lastUse[slot]
			}
		}
		if oldest == -1 {
			break
		}
		s.Tile(oldest).Release()
		delete(s.lastUse, oldest)
		resident--
	}
	return nil
}

// CellColumns returns the sector width in point-grid cells.
func (s *TileSet) CellColumns() int {
	if len(s.tiles) == 0 {
		return 0
	}
	return s.cols * s.tiles[0].Cols
}

// CellRows returns the sector height in point-grid cells.
func (s *TileSet) CellRows() int {
	if len(s.tiles) == 0 {
		return 0
	}
	return s.rows * s.tiles[0].Rows
}

// CellPoints returns the points of sector point-grid cell (cx, cy), with
// the south-west cell at (0, 0). Cells of unloaded tiles read as empty.
func (s *TileSet) CellPoints(cx, cy int) []Point {
	if len(s.tiles) == 0 || cx < 0 || cy < 0 {
		return nil
	}
	tc, tr := s.tiles[0].Cols, s.tiles[0].Rows
	gx, gy := cx/tc, cy/tr
	if gx >= s.cols || gy >= s.rows {
		return nil
	}
	t := s.Tile(gy*s.cols + gx)
	if t == nil || !t.Loaded() {
		return nil
	}
	return t.CellPoints(cx-gx*tc, cy-gy*tr)
}
