package track

import (
	"math"

	"github.com/banshee-data/amrel/internal/cloud"
	"github.com/banshee-data/amrel/internal/geom"
)

// Nominal detector settings, applied by the pipeline.
const (
	NominalPlateauLackTolerance      = 5
	NominalPlateauMaxTilt            = 10
	NominalMaxShiftLength            = 0.5
	NominalPlateauMinLength          = 2.0
	NominalPlateauThicknessTolerance = 0.25
	NominalSlopeTolerance            = 0.10
	NominalSideShiftTolerance        = 0.5
)

// maxScansPerSide bounds a sweep so a runaway detection cannot cross the
// whole sector.
const maxScansPerSide = 1000

// Detector is the carriage track detector. Configure it with the setters,
// attach the point grid, then call Detect per seed.
type Detector struct {
	pts    *cloud.TileSet
	width  int // sector raster width in DTM pixels
	height int
	subdiv int
	csize  float64 // metres per DTM pixel

	plateauLackTolerance int
	maxShiftLength       float64
	initialDetection     bool
	plateauMinLength     float64
	thicknessTolerance   float64
	slopeTolerance       float64
	sideShiftTolerance   float64
	plateauMaxTilt       int
	tailMinSize          int

	automatic bool
	outs      int
	preserved bool
}

// NewDetector returns a detector with the nominal settings.
func NewDetector() *Detector {
	return &Detector{
		plateauLackTolerance: NominalPlateauLackTolerance,
		maxShiftLength:       NominalMaxShiftLength,
		plateauMinLength:     NominalPlateauMinLength,
		thicknessTolerance:   NominalPlateauThicknessTolerance,
		slopeTolerance:       NominalSlopeTolerance,
		sideShiftTolerance:   NominalSideShiftTolerance,
		plateauMaxTilt:       NominalPlateauMaxTilt,
	}
}

// SetPointsGrid attaches the sector point tiles and raster geometry.
func (d *Detector) SetPointsGrid(pts *cloud.TileSet, w, h, subdiv int, csize float32) {
	d.pts = pts
	d.width = w
	d.height = h
	d.subdiv = subdiv
	d.csize = float64(csize)
}

// SetPlateauLackTolerance sets how many consecutive scans may miss a
// plateau before a sweep direction stops.
func (d *Detector) SetPlateauLackTolerance(v int) { d.plateauLackTolerance = v }

// PlateauLackTolerance returns the current lack tolerance.
func (d *Detector) PlateauLackTolerance() int { return d.plateauLackTolerance }

// SetMaxShiftLength bounds the plateau centre drift between scans, metres.
func (d *Detector) SetMaxShiftLength(v float64) { d.maxShiftLength = v }

// MaxShiftLength returns the centre drift bound.
func (d *Detector) MaxShiftLength() float64 { return d.maxShiftLength }

// SetInitialDetection toggles the preliminary detection pass; the automatic
// pipeline keeps it off.
func (d *Detector) SetInitialDetection(on bool) { d.initialDetection = on }

// InitialDetection reports the preliminary detection toggle.
func (d *Detector) InitialDetection() bool { return d.initialDetection }

// SetPlateauMinLength sets the minimal plateau width, metres.
func (d *Detector) SetPlateauMinLength(v float64) { d.plateauMinLength = v }

// PlateauMinLength returns the minimal plateau width.
func (d *Detector) PlateauMinLength() float64 { return d.plateauMinLength }

// SetThicknessTolerance sets the ground height spread allowed inside a
// plateau, metres.
func (d *Detector) SetThicknessTolerance(v float64) { d.thicknessTolerance = v }

// ThicknessTolerance returns the plateau thickness tolerance.
func (d *Detector) ThicknessTolerance() float64 { return d.thicknessTolerance }

// SetSlopeTolerance bounds the height change between successive plateaus,
// as a grade per scan step.
func (d *Detector) SetSlopeTolerance(v float64) { d.slopeTolerance = v }

// SlopeTolerance returns the slope tolerance.
func (d *Detector) SlopeTolerance() float64 { return d.slopeTolerance }

// SetSideShiftTolerance widens the search strip around the previous
// plateau, metres.
func (d *Detector) SetSideShiftTolerance(v float64) { d.sideShiftTolerance = v }

// SideShiftTolerance returns the side shift tolerance.
func (d *Detector) SideShiftTolerance() float64 { return d.sideShiftTolerance }

// SetPlateauMaxTilt bounds the cross tilt of a plateau, degrees.
func (d *Detector) SetPlateauMaxTilt(v int) { d.plateauMaxTilt = v }

// PlateauMaxTilt returns the tilt bound.
func (d *Detector) PlateauMaxTilt() int { return d.plateauMaxTilt }

// SetTailMinSize prunes sweep tails shorter than v scans.
func (d *Detector) SetTailMinSize(v int) { d.tailMinSize = v }

// TailMinSize returns the tail pruning floor.
func (d *Detector) TailMinSize() int { return d.tailMinSize }

// SetAutomatic marks the detector as driven by the automatic pipeline.
func (d *Detector) SetAutomatic(on bool) { d.automatic = on }

// Outs returns how many point requests fell outside the loaded grid since
// the last reset.
func (d *Detector) Outs() int { return d.outs }

// ResetOuts clears the outside-request counter.
func (d *Detector) ResetOuts() { d.outs = 0 }

// PreserveDetection marks the last returned track as retained by the
// caller, so the next Detect allocates a fresh one.
func (d *Detector) PreserveDetection() { d.preserved = true }

// Detect runs a detection from the seed (p1, p2), given in sector raster
// pixels. It returns nil when no plateau is found under the seed.
func (d *Detector) Detect(p1, p2 geom.Pt2i) *CarriageTrack {
	if d.pts == nil || d.csize <= 0 {
		return nil
	}
	mid := p1.Mid(p2)
	if mid.X < 0 || mid.X >= d.width || mid.Y < 0 || mid.Y >= d.height {
		d.outs++
		return nil
	}
	// Scan frame in pixel space: u crosses the road (seed direction),
	// r runs along it.
	dx := float64(p2.X - p1.X)
	dy := float64(p2.Y - p1.Y)
	ln := math.Hypot(dx, dy)
	if ln == 0 {
		return nil
	}
	ux, uy := dx/ln, dy/ln
	rx, ry := -uy, ux
	cx := (float64(p1.X) + float64(p2.X)) / 2
	cy := (float64(p1.Y) + float64(p2.Y)) / 2
	halfw := ln / 2 * d.csize // metres

	seed := d.scanPlateau(cx, cy, ux, uy, 0, halfw, 0)
	if seed == nil {
		return nil
	}
	ct := &CarriageTrack{seed: seed}
	ct.forward = d.sweep(cx, cy, ux, uy, rx, ry, halfw, seed, 1)
	ct.backward = d.sweep(cx, cy, ux, uy, rx, ry, halfw, seed, -1)
	if d.tailMinSize > 0 {
		if accepted(ct.forward) < d.tailMinSize {
			ct.forward = nil
		}
		if accepted(ct.backward) < d.tailMinSize {
			ct.backward = nil
		}
	}
	return ct
}

func accepted(side []*Plateau) int {
	n := 0
	for _, p := range side {
		if p != nil {
			n++
		}
	}
	return n
}

// sweep walks scans away from the seed in direction sign until the lack
// tolerance is exhausted. Trailing lacks are trimmed.
func (d *Detector) sweep(cx, cy, ux, uy, rx, ry, halfw float64, seed *Plateau, sign int) []*Plateau {
	var out []*Plateau
	prev := seed
	lacks := 0
	center := seed.Center()
	for i := 1; i <= maxScansPerSide; i++ {
		off := float64(sign * i)
		sx := cx + off*rx
		sy := cy + off*ry
		p := d.scanPlateau(sx, sy, ux, uy, center, halfw, sign*i)
		if p != nil && d.compatible(prev, p) {
			out = append(out, p)
			prev = p
			center = p.Center()
			lacks = 0
			continue
		}
		lacks++
		if lacks > d.plateauLackTolerance {
			break
		}
		out = append(out, nil)
	}
	// Trim the trailing lacks left by the stop condition.
	for len(out) > 0 && out[len(out)-1] == nil {
		out = out[:len(out)-1]
	}
	return out
}

// compatible checks the continuity of two successive plateaus.
func (d *Detector) compatible(prev, next *Plateau) bool {
	shift := math.Abs(next.Center() - prev.Center())
	if shift > d.maxShiftLength+d.sideShiftTolerance {
		return false
	}
	rise := math.Abs(next.Height - prev.Height)
	return rise <= d.slopeTolerance*d.csize+d.thicknessTolerance
}

// scanPlateau extracts the plateau of one scan. The scan is centred on
// pixel-space point (sx, sy), crossed along (ux, uy); the strip spans
// prevCenter +- (halfw + side shift tolerance) metres. Returns nil when the
// profile holds no run flat within the thickness tolerance, long enough,
// and tilted less than the max tilt.
func (d *Detector) scanPlateau(sx, sy, ux, uy, prevCenter, halfw float64, scan int) *Plateau {
	step := d.csize / float64(d.subdiv) // sample spacing, metres
	reach := halfw + d.sideShiftTolerance
	n := int(2*reach/step) + 1
	if n < 3 {
		return nil
	}
	type sample struct {
		off float64
		z   float64
		px  geom.Pt2i
		ok  bool
	}
	samples := make([]sample, n)
	for i := 0; i < n; i++ {
		off := prevCenter - reach + float64(i)*step
		px := sx + off/d.csize*ux
		py := sy + off/d.csize*uy
		z, ok := d.groundAt(px, py)
		samples[i] = sample{
			off: off,
			z:   z,
			px:  geom.Pt2i{X: int(px + 0.5), Y: int(py + 0.5)},
			ok:  ok,
		}
	}

	// Longest run with height spread within the thickness tolerance.
	bestStart, bestEnd := -1, -1
	runStart := -1
	var runMin, runMax, bestMin, bestMax float64
	flush := func(end int) {
		if runStart >= 0 && end-runStart > bestEnd-bestStart {
			bestStart, bestEnd = runStart, end
			bestMin, bestMax = runMin, runMax
		}
		runStart = -1
	}
	for i, s := range samples {
		if !s.ok {
			flush(i)
			continue
		}
		if runStart < 0 {
			runStart = i
			runMin, runMax = s.z, s.z
			continue
		}
		lo, hi := runMin, runMax
		if s.z < lo {
			lo = s.z
		}
		if s.z > hi {
			hi = s.z
		}
		if hi-lo > d.thicknessTolerance {
			flush(i)
			runStart = i
			runMin, runMax = s.z, s.z
			continue
		}
		runMin, runMax = lo, hi
	}
	flush(n)

	if bestStart < 0 {
		return nil
	}
	width := samples[bestEnd-1].off - samples[bestStart].off
	if width < d.plateauMinLength {
		return nil
	}
	// Cross tilt of the run.
	rise := math.Abs(samples[bestEnd-1].z - samples[bestStart].z)
	if width > 0 {
		tilt := math.Atan2(rise, width) * 180 / math.Pi
		if tilt > float64(d.plateauMaxTilt) {
			return nil
		}
	}

	p := &Plateau{
		Scan:   scan,
		Start:  samples[bestStart].off,
		End:    samples[bestEnd-1].off,
		Height: (bestMin + bestMax) / 2,
	}
	last := geom.Pt2i{X: -1, Y: -1}
	for i := bestStart; i < bestEnd; i++ {
		if samples[i].px != last {
			p.Pixels = append(p.Pixels, samples[i].px)
			last = samples[i].px
		}
	}
	return p
}

// groundAt returns the ground height in metres under pixel-space position
// (px, py), taken as the lowest return in the point cell. The second result
// is false when the cell is empty or outside the loaded grid.
func (d *Detector) groundAt(px, py float64) (float64, bool) {
	sub := float64(d.subdiv)
	// Seed pixels count up from the sector south edge, like the point
	// cells; integer coordinates address pixel centres.
	cx := int((px + 0.5) * sub)
	cy := int((py + 0.5) * sub)
	pts := d.pts.CellPoints(cx, cy)
	if len(pts) == 0 {
		if cx < 0 || cy < 0 || cx >= d.pts.CellColumns() || cy >= d.pts.CellRows() {
			d.outs++
		}
		return 0, false
	}
	min := pts[0].Z
	for _, p := range pts[1:] {
		if p.Z < min {
			min = p.Z
		}
	}
	return float64(min) / cloud.XYZUnit, true
}
