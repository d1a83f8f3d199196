// Package rorpo enhances elongated bright structures in an 8-bit raster.
// The filter takes the pointwise maximum of 1-D grayscale openings along a
// set of orientations: a structure survives only if it contains a straight
// path of the given length in some orientation, which keeps road-like
// ridges and flattens compact bumps.
package rorpo

import "github.com/banshee-data/amrel/internal/raster"

// DefaultPathLength is the structuring path length used by the pipeline.
const DefaultPathLength = 30

var orientations = [][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// Filter writes the filtered raster into dst. Both rasters must share the
// same dimensions. scales repeats the filter with the path length doubled
// at each extra scale, keeping the pointwise maximum.
func Filter(dst, src *raster.Image8, length, scales int) {
	if length < 2 {
		length = 2
	}
	if scales < 1 {
		scales = 1
	}
	dst.Fill(0)
	tmp := raster.NewImage8(src.W, src.H)
	open := raster.NewImage8(src.W, src.H)
	l := length
	for s := 0; s < scales; s++ {
		for _, o := range orientations {
			erode(tmp, src, o[0], o[1], l)
			dilate(open, tmp, o[0], o[1], l)
			for i, v := range open.Bits {
				if v > dst.Bits[i] {
					dst.Bits[i] = v
				}
			}
		}
		l *= 2
	}
}

// erode writes the running minimum of src over a centred path of the given
// length along (dx, dy).
func erode(dst, src *raster.Image8, dx, dy, length int) {
	lineMinMax(dst, src, dx, dy, length, true)
}

// dilate writes the running maximum of src over the same path.
func dilate(dst, src *raster.Image8, dx, dy, length int) {
	lineMinMax(dst, src, dx, dy, length, false)
}

func lineMinMax(dst, src *raster.Image8, dx, dy, length int, min bool) {
	half := length / 2
	w, h := src.W, src.H
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var best int = -1
			for t := -half; t <= half; t++ {
				px, py := x+t*dx, y+t*dy
				if px < 0 || px >= w || py < 0 || py >= h {
					continue
				}
				v := int(src.At(px, py))
				if best == -1 || (min && v < best) || (!min && v > best) {
					best = v
				}
			}
			if best < 0 {
				best = 0
			}
			dst.Set(x, y, byte(best))
		}
	}
}
