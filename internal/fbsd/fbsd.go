// Package fbsd extracts digital straight segments from a gradient map.
// Candidate edge pixels are the strong gradient points; each unvisited
// candidate seeds a walk along the local edge direction that aggregates
// aligned pixels within the assigned thickness, and the surviving walks are
// reported as straight segments with rational endpoints.
package fbsd

import (
	"math"

	"github.com/banshee-data/amrel/internal/gradient"
)

// MinThickness is the floor of the assigned thickness.
const MinThickness = 3

// Rat is an exact rational coordinate.
type Rat struct {
	Num int32
	Den int32
}

// Float converts the rational to a float64.
func (r Rat) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// DSS is a digital straight segment: two rational endpoints and the squared
// integer length of the span between them.
type DSS struct {
	X1, Y1 Rat
	X2, Y2 Rat
	Len2   int32
}

// Length2 returns the squared segment length.
func (d DSS) Length2() int { return int(d.Len2) }

// NaiveLine returns the rational endpoints of the segment's carrier line.
func (d DSS) NaiveLine() (x1, y1, x2, y2 Rat) {
	return d.X1, d.Y1, d.X2, d.Y2
}

// PointDSS builds a segment from two integer endpoints.
func PointDSS(x1, y1, x2, y2 int) DSS {
	dx, dy := int32(x2-x1), int32(y2-y1)
	return DSS{
		X1: Rat{int32(x1), 1}, Y1: Rat{int32(y1), 1},
		X2: Rat{int32(x2), 1}, Y2: Rat{int32(y2), 1},
		Len2: dx*dx + dy*dy,
	}
}

// Detector finds blurred segments over a gradient map. The zero value is
// not usable; construct with NewDetector.
type Detector struct {
	gmap      *gradient.Map
	thickness int
	single    bool
}

// NewDetector returns a detector in double-edge mode with the minimum
// assigned thickness.
func NewDetector() *Detector {
	return &Detector{thickness: MinThickness}
}

// SetGradientMap installs the gradient field to scan.
func (d *Detector) SetGradientMap(m *gradient.Map) { d.gmap = m }

// SetAssignedThickness sets the aggregation thickness, clamped to the floor.
func (d *Detector) SetAssignedThickness(t int) {
	if t < MinThickness {
		t = MinThickness
	}
	d.thickness = t
}

// AssignedThickness returns the current aggregation thickness.
func (d *Detector) AssignedThickness() int { return d.thickness }

// SetSingleEdge switches between single- and double-edge detection. The
// pipeline always runs double-edge mode.
func (d *Detector) SetSingleEdge(on bool) { d.single = on }

// DetectAll scans the whole map and returns every detected segment, in scan
// order. Repeated calls on the same map return the same segments.
func (d *Detector) DetectAll() []DSS {
	if d.gmap == nil {
		return nil
	}
	g := d.gmap
	thr := d.threshold()
	if thr == 0 {
		return nil
	}
	visited := make([]bool, g.W*g.H)
	var out []DSS
	minLen := d.thickness + 2
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			if visited[y*g.W+x] || g.SqNorm(x, y) < thr {
				continue
			}
			seg := d.grow(x, y, thr, visited)
			if len(seg) < minLen {
				continue
			}
			first, last := seg[0], seg[len(seg)-1]
			out = append(out, PointDSS(first[0], first[1], last[0], last[1]))
		}
	}
	return out
}

// threshold is a fixed fraction of the strongest gradient response, so the
// candidate set only depends on the map content.
func (d *Detector) threshold() int64 {
	g := d.gmap
	var max int64
	for _, v := range g.Vectors {
		if n := v.SqNorm(); n > max {
			max = n
		}
	}
	return max / 25
}

// grow follows the edge through (x0, y0) in both directions, collecting the
// best aligned pixel of each cross-section. The returned pixels run from
// one segment end to the other.
func (d *Detector) grow(x0, y0 int, thr int64, visited []bool) [][2]int {
	g := d.gmap
	v0 := g.At(x0, y0)
	n0 := math.Sqrt(float64(v0.SqNorm()))
	// Edge direction: perpendicular to the seed gradient.
	ux, uy := -float64(v0.Y)/n0, float64(v0.X)/n0

	visited[y0*g.W+x0] = true
	forward := d.walk(x0, y0, ux, uy, thr, v0.X, v0.Y, visited)
	backward := d.walk(x0, y0, -ux, -uy, thr, v0.X, v0.Y, visited)

	seg := make([][2]int, 0, len(forward)+len(backward)+1)
	for i := len(backward) - 1; i >= 0; i-- {
		seg = append(seg, backward[i])
	}
	seg = append(seg, [2]int{x0, y0})
	seg = append(seg, forward...)
	return seg
}

// walk marches from (x0, y0) along (ux, uy), one pixel step at a time. At
// each step it picks, inside a cross-section of the assigned thickness, the
// strongest unvisited pixel whose gradient stays aligned with the seed.
// The march stops at the first empty cross-section.
func (d *Detector) walk(x0, y0 int, ux, uy float64, thr int64, sgx, sgy int32, visited []bool) [][2]int {
	g := d.gmap
	half := d.thickness / 2
	var out [][2]int
	cx, cy := float64(x0), float64(y0)
	// Cross direction.
	px, py := -uy, ux
	for {
		cx += ux
		cy += uy
		bestX, bestY := -1, -1
		var bestN int64
		for t := -half; t <= half; t++ {
			x := int(cx + float64(t)*px + 0.5)
			y := int(cy + float64(t)*py + 0.5)
			if x < 0 || x >= g.W || y < 0 || y >= g.H || visited[y*g.W+x] {
				continue
			}
			v := g.At(x, y)
			n := v.SqNorm()
			if n < thr || !aligned(sgx, sgy, v.X, v.Y) {
				continue
			}
			if n > bestN {
				bestN, bestX, bestY = n, x, y
			}
		}
		if bestX == -1 {
			return out
		}
		visited[bestY*g.W+bestX] = true
		out = append(out, [2]int{bestX, bestY})
		cx, cy = float64(bestX), float64(bestY)
	}
}

// aligned reports whether two gradients point within 45 degrees of each
// other, compared without trigonometry: dot > 0 and dot^2 > |a|^2 |b|^2 / 2.
func aligned(ax, ay, bx, by int32) bool {
	dot := int64(ax)*int64(bx) + int64(ay)*int64(by)
	if dot <= 0 {
		return false
	}
	na := int64(ax)*int64(ax) + int64(ay)*int64(ay)
	nb := int64(bx)*int64(bx) + int64(by)*int64(by)
	return dot*dot*2 > na*nb
}
