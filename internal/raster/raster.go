// Package raster provides the dense pixel buffers of the pipeline: 8-bit
// shading rasters and the 16-bit road label map.
package raster

import (
	"fmt"

	"github.com/banshee-data/amrel/internal/geom"
)

// Image8 is a dense 8-bit raster, row-major, row 0 north-most.
type Image8 struct {
	W    int
	H    int
	Bits []byte
}

// NewImage8 allocates a zeroed raster.
func NewImage8(w, h int) *Image8 {
	return &Image8{W: w, H: h, Bits: make([]byte, w*h)}
}

// At returns the pixel value at (x, y).
func (im *Image8) At(x, y int) byte { return im.Bits[y*im.W+x] }

// Set writes the pixel value at (x, y).
func (im *Image8) Set(x, y int, v byte) { im.Bits[y*im.W+x] = v }

// Fill sets every pixel to v.
func (im *Image8) Fill(v byte) {
	for i := range im.Bits {
		im.Bits[i] = v
	}
}

// LabelMap is the road label raster: 0 is free ground, label k >= 1 marks a
// pixel of the k-th accepted road section. Road pixels address the map with
// y counting up from the sector south edge; storage is y-flipped so that
// storage row 0 is the north-most raster row, matching the road map PNG.
type LabelMap struct {
	w      int
	h      int
	labels []uint16
	roads  int
}

// NewLabelMap allocates a free map of w x h labels.
func NewLabelMap(w, h int) *LabelMap {
	return &LabelMap{w: w, h: h, labels: make([]uint16, w*h)}
}

// Width returns the map width.
func (m *LabelMap) Width() int { return m.w }

// Height returns the map height.
func (m *LabelMap) Height() int { return m.h }

// NumberOfRoads returns how many road sections have been stamped.
func (m *LabelMap) NumberOfRoads() int { return m.roads }

// Labels exposes the backing label array (y-flipped storage order).
func (m *LabelMap) Labels() []uint16 { return m.labels }

// Occupied reports whether pixel p already belongs to a road.
func (m *LabelMap) Occupied(p geom.Pt2i) bool {
	return m.labels[geom.FlipIndex(m.w, m.h, p.X, p.Y)] != 0
}

// At returns the label of pixel (x, y).
func (m *LabelMap) At(x, y int) uint16 {
	return m.labels[geom.FlipIndex(m.w, m.h, x, y)]
}

// Add stamps every in-bounds pixel of every strip with the next road label
// and returns that label. Already labelled pixels keep their former label:
// labels only ever grow from zero, never mutate.
func (m *LabelMap) Add(strips [][]geom.Pt2i) uint16 {
	m.roads++
	lab := uint16(m.roads)
	for _, strip := range strips {
		for _, p := range strip {
			if p.X < 0 || p.X >= m.w || p.Y < 0 || p.Y >= m.h {
				continue
			}
			idx := geom.FlipIndex(m.w, m.h, p.X, p.Y)
			if m.labels[idx] == 0 {
				m.labels[idx] = lab
			}
		}
	}
	return lab
}

// Bounds returns the bounding box of road label lab in road-pixel space
// (y up from the south edge), or an error if the label was never stamped.
func (m *LabelMap) Bounds(lab uint16) (minX, minY, maxX, maxY int, err error) {
	minX, minY = m.w, m.h
	maxX, maxY = -1, -1
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if m.labels[geom.FlipIndex(m.w, m.h, x, y)] != lab {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return 0, 0, 0, 0, fmt.Errorf("label %d not present in map", lab)
	}
	return minX, minY, maxX, maxY, nil
}
