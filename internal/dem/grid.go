package dem

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Grid samples elevation from an ESRI ASCII grid raster held in memory.
// Lookups are nearest-cell; positions outside the raster and NODATA cells
// sample as 0.
type Grid struct {
	ncols, nrows   int
	xll, yll, cell float64
	nodata         float64
	hasNodata      bool
	vals           []float64 // row-major, first row northmost
}

// LoadGrid reads an ESRI ASCII grid (.asc) file.
func LoadGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dem: open grid %s", path)
	}
	defer f.Close() //nolint:errcheck

	g, err := ReadGrid(f)
	if err != nil {
		return nil, eris.Wrapf(err, "dem: grid %s", path)
	}
	return g, nil
}

// ReadGrid parses an ESRI ASCII grid: a whitespace-separated header
// (ncols, nrows, xllcorner or xllcenter, yllcorner or yllcenter, cellsize,
// optional NODATA_value) followed by nrows*ncols cell values, north row
// first.
func ReadGrid(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	next := func() (string, bool) {
		if sc.Scan() {
			return sc.Text(), true
		}
		return "", false
	}

	g := &Grid{cell: 1}
	var xCentered, yCentered bool
	var pending string
	for {
		tok, ok := next()
		if !ok {
			return nil, eris.New("dem: grid header ends before data")
		}
		if tok != "" && (tok[0] == '-' || tok[0] == '.' || (tok[0] >= '0' && tok[0] <= '9')) {
			pending = tok
			break
		}
		val, ok := next()
		if !ok {
			return nil, eris.Errorf("dem: grid header %s has no value", tok)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "dem: grid header %s", tok)
		}
		switch strings.ToLower(tok) {
		case "ncols":
			g.ncols = int(f)
		case "nrows":
			g.nrows = int(f)
		case "xllcorner":
			g.xll = f
		case "xllcenter":
			g.xll = f
			xCentered = true
		case "yllcorner":
			g.yll = f
		case "yllcenter":
			g.yll = f
			yCentered = true
		case "cellsize":
			g.cell = f
		case "nodata_value":
			g.nodata = f
			g.hasNodata = true
		default:
			return nil, eris.Errorf("dem: unknown grid header %s", tok)
		}
	}
	if g.ncols <= 0 || g.nrows <= 0 {
		return nil, eris.New("dem: grid needs positive ncols and nrows")
	}
	if g.cell <= 0 {
		return nil, eris.New("dem: grid needs a positive cellsize")
	}
	if xCentered {
		g.xll -= g.cell / 2
	}
	if yCentered {
		g.yll -= g.cell / 2
	}

	want := g.ncols * g.nrows
	g.vals = make([]float64, 0, want)
	tok := pending
	for {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "dem: grid cell %d", len(g.vals))
		}
		g.vals = append(g.vals, f)
		if len(g.vals) == want {
			break
		}
		var ok bool
		tok, ok = next()
		if !ok {
			return nil, eris.Errorf("dem: grid has %d cells, want %d", len(g.vals), want)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "dem: read grid")
	}
	return g, nil
}

// Bounds returns the raster extent as (xmin, ymin, xmax, ymax).
func (g *Grid) Bounds() (float64, float64, float64, float64) {
	return g.xll, g.yll,
		g.xll + float64(g.ncols)*g.cell,
		g.yll + float64(g.nrows)*g.cell
}

// SampleZ looks up the nearest cell for each coordinate.
func (g *Grid) SampleZ(_ context.Context, coords []geom.Coord) ([]float64, error) {
	zs := make([]float64, len(coords))
	for i, c := range coords {
		zs[i] = g.at(c[0], c[1])
	}
	return zs, nil
}

func (g *Grid) at(x, y float64) float64 {
	fx := (x - g.xll) / g.cell
	fy := (y - g.yll) / g.cell
	if fx < 0 || fy < 0 || fx > float64(g.ncols) || fy > float64(g.nrows) {
		return 0
	}
	col := int(fx)
	if col >= g.ncols {
		col = g.ncols - 1
	}
	row := int(fy)
	if row >= g.nrows {
		row = g.nrows - 1
	}
	v := g.vals[(g.nrows-1-row)*g.ncols+col]
	if math.IsNaN(v) || (g.hasNodata && v == g.nodata) {
		return 0
	}
	return v
}
