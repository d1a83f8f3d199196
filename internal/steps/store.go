// Package steps persists and restores the artifacts exchanged between
// pipeline stages. Every binary artifact is little-endian and starts with
// the triple (width: i32, height: i32, cell size: f32); a failed save
// removes the artifact so a later stage never reads a partial file.
package steps

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/amrel/internal/fbsd"
	"github.com/banshee-data/amrel/internal/fsutil"
	"github.com/banshee-data/amrel/internal/geom"
	"github.com/banshee-data/amrel/internal/gradient"
	"github.com/banshee-data/amrel/internal/raster"
)

// Artifact file names under the store directory.
const (
	ShadeMapFile  = "shade.map"
	RorpoMapFile  = "rorpo.map"
	SobelMapFile  = "sobel.map"
	FbsdFile      = "fbsd.dss"
	SeedsFile     = "seeds.pts"
	RoadsImage    = "roads.png"
	AutodetFile   = "autodet.ini"
	SucseedsFile  = "sucseeds.txt"
	HillImage     = "hill.png"
	ShadeImage    = "shade.png"
	RorpoImage    = "rorpo.png"
	SobelImage    = "sobel.png"
	FbsdImage     = "fbsd.png"
	SeedsImage    = "seeds.png"
	ReportFile    = "report.html"
	CatalogFile   = "amrel.db"
	BoundsShp     = "roads"
	CenterShp     = "road_lines"
	CenterSVGFile = "road_lines.svg"
)

// Store reads and writes stage artifacts under one directory.
type Store struct {
	fs  fsutil.FileSystem
	dir string
}

// NewStore returns a store over the OS filesystem.
func NewStore(dir string) *Store {
	return NewStoreFS(fsutil.OSFileSystem{}, dir)
}

// NewStoreFS returns a store over an explicit filesystem.
func NewStoreFS(fs fsutil.FileSystem, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Path returns the full path of an artifact name.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// Has reports whether an artifact is present.
func (s *Store) Has(name string) bool { return s.fs.Exists(s.Path(name)) }

// Header is the common artifact header.
type Header struct {
	Width    int32
	Height   int32
	CellSize float32
}

func (s *Store) create(name string) (io.WriteCloser, *bufio.Writer, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", s.dir, err)
	}
	f, err := s.fs.Create(s.Path(name))
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", s.Path(name), err)
	}
	return f, bufio.NewWriter(f), nil
}

// abort closes and removes a partially written artifact.
func (s *Store) abort(f io.WriteCloser, name string, err error) error {
	f.Close()
	s.fs.Remove(s.Path(name))
	return fmt.Errorf("write %s: %w", s.Path(name), err)
}

func (s *Store) finish(f io.WriteCloser, w *bufio.Writer, name string) error {
	if err := w.Flush(); err != nil {
		return s.abort(f, name, err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(s.Path(name))
		return fmt.Errorf("close %s: %w", s.Path(name), err)
	}
	return nil
}

// SaveByteMap writes an 8-bit raster artifact (shade.map, rorpo.map).
func (s *Store) SaveByteMap(name string, im *raster.Image8, cellSize float32) error {
	f, w, err := s.create(name)
	if err != nil {
		return err
	}
	h := Header{int32(im.W), int32(im.H), cellSize}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return s.abort(f, name, err)
	}
	if _, err := w.Write(im.Bits); err != nil {
		return s.abort(f, name, err)
	}
	return s.finish(f, w, name)
}

// LoadByteMap reads an 8-bit raster artifact.
func (s *Store) LoadByteMap(name string) (*raster.Image8, float32, error) {
	f, err := s.fs.Open(s.Path(name))
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", s.Path(name), err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("read %s header: %w", s.Path(name), err)
	}
	im := raster.NewImage8(int(h.Width), int(h.Height))
	if _, err := io.ReadFull(r, im.Bits); err != nil {
		return nil, 0, fmt.Errorf("read %s payload: %w", s.Path(name), err)
	}
	return im, h.CellSize, nil
}

// SaveGradientMap writes the Sobel artifact.
func (s *Store) SaveGradientMap(m *gradient.Map, cellSize float32) error {
	f, w, err := s.create(SobelMapFile)
	if err != nil {
		return err
	}
	h := Header{int32(m.W), int32(m.H), cellSize}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return s.abort(f, SobelMapFile, err)
	}
	if err := binary.Write(w, binary.LittleEndian, m.Vectors); err != nil {
		return s.abort(f, SobelMapFile, err)
	}
	return s.finish(f, w, SobelMapFile)
}

// LoadGradientMap reads the Sobel artifact.
func (s *Store) LoadGradientMap() (*gradient.Map, float32, error) {
	f, err := s.fs.Open(s.Path(SobelMapFile))
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", s.Path(SobelMapFile), err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("read %s header: %w", s.Path(SobelMapFile), err)
	}
	vectors := make([]geom.Vr2i, int(h.Width)*int(h.Height))
	if err := binary.Read(r, binary.LittleEndian, vectors); err != nil {
		return nil, 0, fmt.Errorf("read %s payload: %w", s.Path(SobelMapFile), err)
	}
	return gradient.NewMap(int(h.Width), int(h.Height), vectors), h.CellSize, nil
}

type dssRecord struct {
	X1n, X1d, Y1n, Y1d int32
	X2n, X2d, Y2n, Y2d int32
	Len2               int32
}

// SaveDSS writes the FBSD artifact: segment records after the tile grid
// dimensions.
func (s *Store) SaveDSS(dss []fbsd.DSS, w32, h32 int, cellSize float32, tsw, tsh int) error {
	f, w, err := s.create(FbsdFile)
	if err != nil {
		return err
	}
	h := Header{int32(w32), int32(h32), cellSize}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return s.abort(f, FbsdFile, err)
	}
	dims := []int32{int32(tsw), int32(tsh), int32(len(dss))}
	if err := binary.Write(w, binary.LittleEndian, dims); err != nil {
		return s.abort(f, FbsdFile, err)
	}
	for _, d := range dss {
		x1, y1, x2, y2 := d.NaiveLine()
		rec := dssRecord{
			x1.Num, x1.Den, y1.Num, y1.Den,
			x2.Num, x2.Den, y2.Num, y2.Den,
			int32(d.Length2()),
		}
		if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
			return s.abort(f, FbsdFile, err)
		}
	}
	return s.finish(f, w, FbsdFile)
}

// LoadDSS reads the FBSD artifact back.
func (s *Store) LoadDSS() (dss []fbsd.DSS, w, h int, cellSize float32, tsw, tsh int, err error) {
	f, err := s.fs.Open(s.Path(FbsdFile))
	if err != nil {
		return nil, 0, 0, 0, 0, 0, fmt.Errorf("open %s: %w", s.Path(FbsdFile), err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var hd Header
	if err := binary.Read(r, binary.LittleEndian, &hd); err != nil {
		return nil, 0, 0, 0, 0, 0, fmt.Errorf("read %s header: %w", s.Path(FbsdFile), err)
	}
	var dims [3]int32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, 0, 0, 0, 0, 0, fmt.Errorf("read %s dims: %w", s.Path(FbsdFile), err)
	}
	dss = make([]fbsd.DSS, dims[2])
	for i := range dss {
		var rec dssRecord
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, 0, 0, 0, 0, 0, fmt.Errorf("read %s record %d: %w", s.Path(FbsdFile), i, err)
		}
		dss[i] = fbsd.DSS{
			X1:   fbsd.Rat{Num: rec.X1n, Den: rec.X1d},
			Y1:   fbsd.Rat{Num: rec.Y1n, Den: rec.Y1d},
			X2:   fbsd.Rat{Num: rec.X2n, Den: rec.X2d},
			Y2:   fbsd.Rat{Num: rec.Y2n, Den: rec.Y2d},
			Len2: rec.Len2,
		}
	}
	return dss, int(hd.Width), int(hd.Height), hd.CellSize, int(dims[0]), int(dims[1]), nil
}

// SaveSeeds writes the seed buckets, tile by tile in serpentine order.
// The caller passes the geometry to record, which the half-size mode has
// already doubled if active.
func (s *Store) SaveSeeds(buckets [][]geom.Pt2i, w, h int, cellSize float32, tsw, tsh int) error {
	f, wr, err := s.create(SeedsFile)
	if err != nil {
		return err
	}
	hd := Header{int32(w), int32(h), cellSize}
	if err := binary.Write(wr, binary.LittleEndian, hd); err != nil {
		return s.abort(f, SeedsFile, err)
	}
	count := 0
	for _, b := range buckets {
		count += len(b)
	}
	dims := []int32{int32(tsw), int32(tsh), int32(count)}
	if err := binary.Write(wr, binary.LittleEndian, dims); err != nil {
		return s.abort(f, SeedsFile, err)
	}
	ser := geom.NewSerpentine(tsw, tsh)
	for k := ser.Next(); k != -1; k = ser.Next() {
		for _, p := range buckets[k] {
			if err := binary.Write(wr, binary.LittleEndian, []int32{int32(p.X), int32(p.Y)}); err != nil {
				return s.abort(f, SeedsFile, err)
			}
		}
	}
	return s.finish(f, wr, SeedsFile)
}

// LoadSeeds reads the seed artifact and re-buckets the pairs by midpoint
// tile on the recorded grid.
func (s *Store) LoadSeeds() (buckets [][]geom.Pt2i, w, h int, cellSize float32, tsw, tsh int, err error) {
	f, err := s.fs.Open(s.Path(SeedsFile))
	if err != nil {
		return nil, 0, 0, 0, 0, 0, fmt.Errorf("open %s: %w", s.Path(SeedsFile), err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var hd Header
	if err := binary.Read(r, binary.LittleEndian, &hd); err != nil {
		return nil, 0, 0, 0, 0, 0, fmt.Errorf("read %s header: %w", s.Path(SeedsFile), err)
	}
	var dims [3]int32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, 0, 0, 0, 0, 0, fmt.Errorf("read %s dims: %w", s.Path(SeedsFile), err)
	}
	tsw, tsh = int(dims[0]), int(dims[1])
	w, h = int(hd.Width), int(hd.Height)
	raw := make([]int32, 2*int(dims[2]))
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, 0, 0, 0, 0, 0, fmt.Errorf("read %s payload: %w", s.Path(SeedsFile), err)
	}
	g := geom.TileGeometry{Cols: tsw, Rows: tsh, TileW: w / tsw, TileH: h / tsh}
	buckets = make([][]geom.Pt2i, tsw*tsh)
	for i := 0; i+3 < len(raw); i += 4 {
		p1 := geom.Pt2i{X: int(raw[i]), Y: int(raw[i+1])}
		p2 := geom.Pt2i{X: int(raw[i+2]), Y: int(raw[i+3])}
		tx, ty := g.TileOf(p1.Mid(p2))
		k := g.TileIndex(tx, ty)
		buckets[k] = append(buckets[k], p1, p2)
	}
	return buckets, w, h, hd.CellSize, tsw, tsh, nil
}

// SaveSucseeds writes the successful seeds as world micrometre mid-cell
// coordinates, serpentine tile order.
func (s *Store) SaveSucseeds(buckets [][]geom.Pt2i, tsw, tsh int, xref, yref, cellMu int64) error {
	f, w, err := s.create(SucseedsFile)
	if err != nil {
		return err
	}
	half := cellMu / 2
	ser := geom.NewSerpentine(tsw, tsh)
	for k := ser.Next(); k != -1; k = ser.Next() {
		b := buckets[k]
		for i := 0; i+1 < len(b); i += 2 {
			p1, p2 := b[i], b[i+1]
			_, err := fmt.Fprintf(w, "%d %d %d %d\n",
				xref+int64(p1.X)*cellMu+half, yref+int64(p1.Y)*cellMu+half,
				xref+int64(p2.X)*cellMu+half, yref+int64(p2.Y)*cellMu+half)
			if err != nil {
				return s.abort(f, SucseedsFile, err)
			}
		}
	}
	return s.finish(f, w, SucseedsFile)
}
