// Package seeds turns digital straight segments into oriented seed pairs
// for track detection. Each long-enough segment is sampled at a regular
// spacing; at each sample an orthogonal pair of pixels is laid out, one on
// each side of the segment, and bucketed by the tile holding its midpoint.
package seeds

import (
	"math"

	"github.com/banshee-data/amrel/internal/fbsd"
	"github.com/banshee-data/amrel/internal/geom"
)

// Floors of the builder knobs.
const (
	MinSeedShift = 10
	MinSeedWidth = 10
)

// Defaults of the builder knobs.
const (
	DefaultShift = 24
	DefaultWidth = 40
)

// Stats reports a build pass.
type Stats struct {
	Seeds    int // emitted seed pairs
	Rejected int // segments under the length floor
	Outside  int // seeds off the sector or on undeclared tiles
}

// Builder emits seeds from segments. Buckets hold seed endpoints as
// consecutive pairs, one bucket per tile.
type Builder struct {
	minLength int
	shift     int
	width     int
	halfSize  bool
}

// NewBuilder returns a builder with the default spacing and width.
func NewBuilder() *Builder {
	return &Builder{minLength: 0, shift: DefaultShift, width: DefaultWidth}
}

// SetMinBSLength sets the segment length floor (clamped at zero).
func (b *Builder) SetMinBSLength(v int) {
	if v < 0 {
		v = 0
	}
	b.minLength = v
	if b.halfSize {
		b.minLength = v / 2
	}
}

// SetSeedShift sets the spacing between successive seeds on one segment.
func (b *Builder) SetSeedShift(v int) {
	if v < MinSeedShift {
		v = MinSeedShift
	}
	b.shift = v
	if b.halfSize {
		b.shift = v / 2
	}
}

// SetSeedWidth sets the full seed width.
func (b *Builder) SetSeedWidth(v int) {
	if v < MinSeedWidth {
		v = MinSeedWidth
	}
	b.width = v
	if b.halfSize {
		b.width = v / 2
	}
}

// SetHalfSize switches the builder to half-size seeds: every knob is halved
// at set time; ExpandHalfSize undoes the scale when persisting.
func (b *Builder) SetHalfSize(on bool) {
	if on && !b.halfSize {
		b.minLength /= 2
		b.shift /= 2
		b.width /= 2
	}
	b.halfSize = on
}

// HalfSize reports whether half-size mode is active.
func (b *Builder) HalfSize() bool { return b.halfSize }

// MinBSLength returns the current segment length floor.
func (b *Builder) MinBSLength() int { return b.minLength }

// SeedShift returns the current seed spacing.
func (b *Builder) SeedShift() int { return b.shift }

// SeedWidth returns the current seed width.
func (b *Builder) SeedWidth() int { return b.width }

// Build samples every segment into out, a bucket slice of len Cols*Rows.
// For a pad run, (padKx, padKy) is the pad anchor tile and padH the pad
// height in tiles; a flat run passes (0, 0) and the sector height in tiles.
// declared filters buckets to existing tiles.
func (b *Builder) Build(dss []fbsd.DSS, g geom.TileGeometry, padKx, padKy, padH int,
	declared func(k int) bool, out [][]geom.Pt2i) Stats {

	var st Stats
	tw, th := g.TileW, g.TileH
	skx := padKx * tw
	sky := padKy*th + padH*th - 1
	w, h := g.Width(), g.Height()
	mbsl2 := b.minLength * b.minLength
	sw2 := float64(b.width / 2)

	for _, seg := range dss {
		if seg.Length2() < mbsl2 {
			st.Rejected++
			continue
		}
		x1r, y1r, x2r, y2r := seg.NaiveLine()
		x1, y1 := x1r.Float(), y1r.Float()
		x2, y2 := x2r.Float(), y2r.Float()
		ln := math.Sqrt((x2-x1)*(x2-x1) + (y2-y1)*(y2-y1))
		if ln == 0 {
			continue
		}
		dx := (x2 - x1) / ln
		dy := (y2 - y1) / ln
		for pos := 0.0; pos <= ln; pos += float64(b.shift) {
			// Truncation of v+0.5, not round-to-even.
			p1 := geom.Pt2i{
				X: skx + int(x1+pos*dx-sw2*dy+0.5),
				Y: sky - int(y1+pos*dy+sw2*dx+0.5),
			}
			p2 := geom.Pt2i{
				X: skx + int(x1+pos*dx+sw2*dy+0.5),
				Y: sky - int(y1+pos*dy-sw2*dx+0.5),
			}
			if p1.X < 0 || p1.X >= w || p1.Y < 0 || p1.Y >= h ||
				p2.X < 0 || p2.X >= w || p2.Y < 0 || p2.Y >= h {
				st.Outside++
				continue
			}
			tx, ty := g.TileOf(p1.Mid(p2))
			k := g.TileIndex(tx, ty)
			if declared != nil && !declared(k) {
				st.Outside++
				continue
			}
			out[k] = append(out[k], p1, p2)
			st.Seeds++
		}
	}
	return st
}

// ExpandHalfSize maps half-size seed buckets back to full scale: every
// coordinate is doubled and the pair nudged one pixel apart to keep its
// orientation, and the buckets are re-tiled on the doubled 2*Cols x 2*Rows
// grid. Returns the new buckets and the count of seeds that fell off the
// doubled grid.
func ExpandHalfSize(buckets [][]geom.Pt2i, g geom.TileGeometry) ([][]geom.Pt2i, int) {
	cot, rot := g.Cols, g.Rows
	tw := g.Width() / (2 * cot)
	th := g.Height() / (2 * rot)
	out := make([][]geom.Pt2i, cot*rot*4)
	outliers := 0
	for _, bucket := range buckets {
		for i := 0; i+1 < len(bucket); i += 2 {
			p1, p2 := bucket[i], bucket[i+1]
			kx := p1.Mid(p2).X / tw
			ky := p1.Mid(p2).Y / th
			if kx < 0 || ky < 0 || kx >= 2*cot || ky >= 2*rot {
				outliers++
				continue
			}
			p1 = geom.Pt2i{X: p1.X * 2, Y: p1.Y * 2}
			p2 = geom.Pt2i{X: p2.X * 2, Y: p2.Y * 2}
			if p2.X < p1.X {
				p1.X++
			} else {
				p2.X++
			}
			if p2.Y < p1.Y {
				p1.Y++
			} else {
				p2.Y++
			}
			out[ky*cot*2+kx] = append(out[ky*cot*2+kx], p1, p2)
		}
	}
	return out, outliers
}
