// Package export writes the vector outputs of a run: ESRI shapefile
// polylines of road centerlines or bounds in world coordinates, and an SVG
// overlay in raster coordinates.
package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/banshee-data/amrel/internal/geom"
)

// World converts road pixels to world metre coordinates. Road pixels count
// y up from the sector south edge.
type World struct {
	Xref   float64 // metres, sector west edge
	Yref   float64 // metres, sector south edge
	CSize  float64 // metres per pixel
	Height int     // raster height in pixels
}

// ToWorld maps pixel p to the world position of its cell centre.
func (w World) ToWorld(p geom.Pt2i) (x, y float64) {
	x = w.Xref + (float64(p.X)+0.5)*w.CSize
	y = w.Yref + (float64(p.Y)+0.5)*w.CSize
	return x, y
}

const shapeTypePolyline = 3

// WriteShapefile writes base.shp and base.shx holding one polyline record
// per line. Lines with fewer than two points are skipped.
func WriteShapefile(base string, lines [][]geom.Pt2i, w World) error {
	var kept [][]geom.Pt2i
	for _, l := range lines {
		if len(l) >= 2 {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return fmt.Errorf("no polyline to export to %s", base)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, l := range kept {
		for _, p := range l {
			x, y := w.ToWorld(p)
			minX = math.Min(minX, x)
			minY = math.Min(minY, y)
			maxX = math.Max(maxX, x)
			maxY = math.Max(maxY, y)
		}
	}

	var body bytes.Buffer // record section of the .shp
	var index bytes.Buffer
	offsetWords := int32(50) // header length in 16-bit words
	for i, l := range kept {
		content := polylineContent(l, w)
		words := int32(len(content) / 2)

		binary.Write(&body, binary.BigEndian, int32(i+1))
		binary.Write(&body, binary.BigEndian, words)
		body.Write(content)

		binary.Write(&index, binary.BigEndian, offsetWords)
		binary.Write(&index, binary.BigEndian, words)
		offsetWords += 4 + words
	}

	box := [4]float64{minX, minY, maxX, maxY}
	if err := writeShapePart(base+".shp", body.Bytes(), box); err != nil {
		return err
	}
	return writeShapePart(base+".shx", index.Bytes(), box)
}

// polylineContent serializes one polyline record content block.
func polylineContent(line []geom.Pt2i, w World) []byte {
	var buf bytes.Buffer
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range line {
		x, y := w.ToWorld(p)
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	binary.Write(&buf, binary.LittleEndian, int32(shapeTypePolyline))
	binary.Write(&buf, binary.LittleEndian, [4]float64{minX, minY, maxX, maxY})
	binary.Write(&buf, binary.LittleEndian, int32(1)) // one part
	binary.Write(&buf, binary.LittleEndian, int32(len(line)))
	binary.Write(&buf, binary.LittleEndian, int32(0)) // part start
	for _, p := range line {
		x, y := w.ToWorld(p)
		binary.Write(&buf, binary.LittleEndian, [2]float64{x, y})
	}
	return buf.Bytes()
}

// writeShapePart writes one of the .shp/.shx pair: the common 100-byte
// header followed by the record block.
func writeShapePart(path string, records []byte, box [4]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	var head bytes.Buffer
	binary.Write(&head, binary.BigEndian, int32(9994))
	head.Write(make([]byte, 20))
	binary.Write(&head, binary.BigEndian, int32((100+len(records))/2))
	binary.Write(&head, binary.LittleEndian, int32(1000))
	binary.Write(&head, binary.LittleEndian, int32(shapeTypePolyline))
	binary.Write(&head, binary.LittleEndian, box)
	binary.Write(&head, binary.LittleEndian, [4]float64{}) // z and m ranges

	if _, err := f.Write(head.Bytes()); err == nil {
		_, err = f.Write(records)
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
