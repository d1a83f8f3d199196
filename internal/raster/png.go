package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
)

// SavePNG writes an 8-bit raster as a grayscale PNG.
func SavePNG(im *Image8, path string) error {
	out := image.NewGray(image.Rect(0, 0, im.W, im.H))
	copy(out.Pix, im.Bits)
	return writePNG(out, path)
}

// SaveLabelPNG writes the label map as a PNG. Free pixels keep the
// background raster value; when bg is nil they are black in gray mode and
// white in false-color mode. Labelled pixels are drawn white, or in a
// per-label false color when falseColor is set.
// Colors are drawn from a deterministic sequence so reruns compare equal.
func SaveLabelPNG(m *LabelMap, bg *Image8, falseColor bool, path string) error {
	// Storage row 0 is the north-most raster row, so labels are read in
	// storage order; the background raster shares that orientation.
	w, h := m.w, m.h
	if falseColor {
		out := image.NewRGBA(image.Rect(0, 0, w, h))
		palette := labelPalette(m.roads)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var c color.RGBA
				switch lab := m.labels[y*w+x]; {
				case lab != 0:
					c = palette[lab]
				case bg != nil:
					v := bg.At(x, y)
					c = color.RGBA{v, v, v, 255}
				default:
					c = color.RGBA{255, 255, 255, 255}
				}
				out.SetRGBA(x, y, c)
			}
		}
		return writePNG(out, path)
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case m.labels[y*w+x] != 0:
				out.SetGray(x, y, color.Gray{255})
			case bg != nil:
				out.SetGray(x, y, color.Gray{bg.At(x, y)})
			}
		}
	}
	return writePNG(out, path)
}

// labelPalette assigns each label a dark-ish color, index 0 reserved white.
func labelPalette(n int) []color.RGBA {
	rng := rand.New(rand.NewSource(int64(n) + 1))
	pal := make([]color.RGBA, n+1)
	pal[0] = color.RGBA{255, 255, 255, 255}
	for i := 1; i <= n; i++ {
		for {
			r := byte(rng.Intn(256))
			g := byte(rng.Intn(256))
			b := byte(rng.Intn(256))
			if int(r)+int(g)+int(b) <= 300 {
				pal[i] = color.RGBA{r, g, b, 255}
				break
			}
		}
	}
	return pal
}

func writePNG(im image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, im); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
