// Package track detects carriage tracks (forest road sections) in the raw
// point cloud. A detection starts from a seed pair of pixels laid across a
// candidate road; the detector extracts a plateau — a narrow, locally flat
// run of ground heights — on the seed scan, then sweeps scan by scan along
// the road in both directions while the plateau stays stable in position,
// height and tilt.
package track

import "github.com/banshee-data/amrel/internal/geom"

// Plateau is the flat cross-section found on one scan.
type Plateau struct {
	// Scan is the signed scan offset from the seed scan (0 for the seed,
	// negative on the backward side).
	Scan int
	// Start and End bound the plateau along the scan axis, in metres from
	// the scan centre.
	Start float64
	End   float64
	// Height is the plateau ground height in metres.
	Height float64
	// Pixels is the strip of raster pixels covered by the plateau.
	Pixels []geom.Pt2i
}

// Center returns the plateau centre offset along the scan axis.
func (p *Plateau) Center() float64 { return (p.Start + p.End) / 2 }

// Width returns the plateau width in metres.
func (p *Plateau) Width() float64 { return p.End - p.Start }

// CarriageTrack is one detected road section: the seed plateau and the
// accepted plateaus of both sweep directions.
type CarriageTrack struct {
	seed     *Plateau
	forward  []*Plateau // scans +1, +2, ... (nil entries mark lacks)
	backward []*Plateau // scans -1, -2, ...
}

// Plateau returns the plateau at signed scan offset num, or nil when that
// scan had none. Plateau(0) is the seed scan and doubles as the success
// predicate of a detection.
func (ct *CarriageTrack) Plateau(num int) *Plateau {
	switch {
	case ct == nil:
		return nil
	case num == 0:
		return ct.seed
	case num > 0:
		if num-1 < len(ct.forward) {
			return ct.forward[num-1]
		}
	default:
		if -num-1 < len(ct.backward) {
			return ct.backward[-num-1]
		}
	}
	return nil
}

// SpreadMin returns the lowest signed scan offset of the track.
func (ct *CarriageTrack) SpreadMin() int { return -len(ct.backward) }

// SpreadMax returns the highest signed scan offset of the track.
func (ct *CarriageTrack) SpreadMax() int { return len(ct.forward) }

// GetPoints returns the pixel strips of every accepted scan, ordered from
// the backward end to the forward end, clipped to the w x h raster.
func (ct *CarriageTrack) GetPoints(iratio float64, w, h int) [][]geom.Pt2i {
	return ct.strips(w, h, false)
}

// GetConnectedPoints returns the pixel strips of the single connected run
// of scans around the seed: the sweep is cut at the first lacking scan on
// each side.
func (ct *CarriageTrack) GetConnectedPoints(iratio float64, w, h int) [][]geom.Pt2i {
	return ct.strips(w, h, true)
}

func (ct *CarriageTrack) strips(w, h int, connected bool) [][]geom.Pt2i {
	if ct == nil || ct.seed == nil {
		return nil
	}
	var out [][]geom.Pt2i
	appendStrip := func(p *Plateau) {
		var strip []geom.Pt2i
		for _, px := range p.Pixels {
			if px.X >= 0 && px.X < w && px.Y >= 0 && px.Y < h {
				strip = append(strip, px)
			}
		}
		if len(strip) > 0 {
			out = append(out, strip)
		}
	}
	back := ct.backward
	fwd := ct.forward
	if connected {
		back = cutAtLack(back)
		fwd = cutAtLack(fwd)
	}
	for i := len(back) - 1; i >= 0; i-- {
		if back[i] != nil {
			appendStrip(back[i])
		}
	}
	appendStrip(ct.seed)
	for _, p := range fwd {
		if p != nil {
			appendStrip(p)
		}
	}
	return out
}

func cutAtLack(side []*Plateau) []*Plateau {
	for i, p := range side {
		if p == nil {
			return side[:i]
		}
	}
	return side
}

// Centerline returns one pixel per accepted scan, at the plateau centre,
// ordered from the backward end to the forward end.
func (ct *CarriageTrack) Centerline() []geom.Pt2i {
	return ct.edgeLine(func(p *Plateau) int { return len(p.Pixels) / 2 })
}

// LeftBound returns the first pixel of every accepted scan.
func (ct *CarriageTrack) LeftBound() []geom.Pt2i {
	return ct.edgeLine(func(p *Plateau) int { return 0 })
}

// RightBound returns the last pixel of every accepted scan.
func (ct *CarriageTrack) RightBound() []geom.Pt2i {
	return ct.edgeLine(func(p *Plateau) int { return len(p.Pixels) - 1 })
}

func (ct *CarriageTrack) edgeLine(pick func(*Plateau) int) []geom.Pt2i {
	if ct == nil || ct.seed == nil {
		return nil
	}
	var out []geom.Pt2i
	add := func(p *Plateau) {
		if p != nil && len(p.Pixels) > 0 {
			out = append(out, p.Pixels[pick(p)])
		}
	}
	for i := len(ct.backward) - 1; i >= 0; i-- {
		add(ct.backward[i])
	}
	add(ct.seed)
	for _, p := range ct.forward {
		add(p)
	}
	return out
}
