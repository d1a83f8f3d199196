package export

import (
	"fmt"
	"os"

	svg "github.com/ajstarks/svgo"

	"github.com/banshee-data/amrel/internal/geom"
)

// WriteSVG draws the polylines as an SVG overlay. Input pixels count y up
// from the south edge; the SVG y axis points down, so rows are flipped.
func WriteSVG(path string, lines [][]geom.Pt2i, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	canvas := svg.New(f)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:white")
	for _, line := range lines {
		if len(line) < 2 {
			continue
		}
		xs := make([]int, len(line))
		ys := make([]int, len(line))
		for i, p := range line {
			xs[i] = p.X
			ys[i] = height - 1 - p.Y
		}
		canvas.Polyline(xs, ys, "fill:none;stroke:black;stroke-width:1")
	}
	canvas.End()
	return f.Close()
}
