package terrain

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// ImportASC reads an ESRI ASCII grid DTM and converts it to a normal map
// tile. Normals come from central differences of the elevations, unit
// length, z up.
func ImportASC(path string) (*Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	header := map[string]float64{}
	var elev []float64
	var cols, rows int
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) == 2 && !isNumber(fields[0]) {
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: bad header line %q", path, sc.Text())
			}
			header[strings.ToLower(fields[0])] = v
			continue
		}
		for _, fv := range fields {
			v, err := strconv.ParseFloat(fv, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: bad elevation %q", path, fv)
			}
			elev = append(elev, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cols = int(header["ncols"])
	rows = int(header["nrows"])
	cell := header["cellsize"]
	if cols <= 0 || rows <= 0 || cell <= 0 || len(elev) != cols*rows {
		return nil, fmt.Errorf("%s: inconsistent grid (%dx%d, %d values)",
			path, cols, rows, len(elev))
	}

	t := &Tile{
		Cols:     cols,
		Rows:     rows,
		CellSize: float32(cell),
		XMin:     header["xllcorner"],
		YMin:     header["yllcorner"],
		Normals:  make([]float32, 3*cols*rows),
	}
	at := func(i, j int) float64 {
		if i < 0 {
			i = 0
		} else if i >= cols {
			i = cols - 1
		}
		if j < 0 {
			j = 0
		} else if j >= rows {
			j = rows - 1
		}
		return elev[j*cols+i]
	}
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			dzdx := (at(i+1, j) - at(i-1, j)) / (2 * cell)
			// Row 0 is north-most, so +j runs south.
			dzdy := (at(i, j+1) - at(i, j-1)) / (2 * cell)
			nx, ny, nz := -dzdx, dzdy, 1.0
			n := math.Sqrt(nx*nx + ny*ny + nz*nz)
			base := 3 * (j*cols + i)
			t.Normals[base] = float32(nx / n)
			t.Normals[base+1] = float32(ny / n)
			t.Normals[base+2] = float32(nz / n)
		}
	}
	return t, nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
