package dewater

import (
	"iter"
	"math"

	"github.com/ctessum/geom"
)

// GridCell is one square of the output mesh. Ring is closed: the first
// corner is repeated as the fifth point.
type GridCell struct {
	Ring      [5]Point `json:"ring"`
	Center    Point    `json:"center"`
	Elevation float64  `json:"elevation"`
}

// Polygon returns the cell ring as a geom polygon
func (c GridCell) Polygon() geom.Polygon {
	path := make(geom.Path, len(c.Ring))
	for i, p := range c.Ring {
		path[i] = geom.Point{X: p.X, Y: p.Y}
	}
	return geom.Polygon{path}
}

// Grid is a uniform square mesh covering a bounding box plus one cell of
// padding on every side, so a rendered raster fills the viewport edges.
type Grid struct {
	box  BoundingBox
	side float64
	nx   int
	ny   int
}

// NewGrid validates the box and cell side and sizes the mesh
func NewGrid(box BoundingBox, side float64) (*Grid, error) {
	var errs ValidationErrors
	errs = append(errs, validateBox(box)...)
	if err := validateCellSide(side); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// sized in float64 so a tiny side cannot wrap the int counts
	nx := axisCount(box.XMin, box.XMax, side)
	ny := axisCount(box.YMin, box.YMax, side)
	if !(nx <= MaxGridCells && ny <= MaxGridCells && nx*ny <= MaxGridCells) {
		return nil, ValidationErrors{invalid("cellSide",
			"cell side %v yields a %gx%g grid, more than %d cells", side, nx, ny, MaxGridCells)}
	}

	return &Grid{
		box:  box,
		side: side,
		nx:   int(nx),
		ny:   int(ny),
	}, nil
}

// MaxGridCells bounds any grid regardless of Options.MaxCells. It keeps
// nx*ny representable as an int on every platform.
const MaxGridCells = math.MaxInt32

// axisCount is the number of half-open steps in [lo-side, hi+side)
func axisCount(lo, hi, side float64) float64 {
	start, stop := lo-side, hi+side
	return math.Ceil((stop - start) / side)
}

// Len returns the number of cells
func (g *Grid) Len() int {
	return g.nx * g.ny
}

// Dims returns the column and row counts
func (g *Grid) Dims() (nx, ny int) {
	return g.nx, g.ny
}

// Side returns the cell side length
func (g *Grid) Side() float64 {
	return g.side
}

// Box returns the requested (unpadded) bounding box
func (g *Grid) Box() BoundingBox {
	return g.box
}

// Cell returns the i-th cell in emission order: x outer, y inner.
// Elevation is left at zero for the caller to fill in.
func (g *Grid) Cell(i int) GridCell {
	ix, iy := i/g.ny, i%g.ny
	x := g.box.XMin - g.side + float64(ix)*g.side
	y := g.box.YMin - g.side + float64(iy)*g.side
	s := g.side

	return GridCell{
		Ring: [5]Point{
			{x, y},
			{x + s, y},
			{x + s, y + s},
			{x, y + s},
			{x, y},
		},
		Center: Point{x + s/2, y + s/2},
	}
}

// Cells yields every cell lazily. The sequence can be ranged over any
// number of times.
func (g *Grid) Cells() iter.Seq[GridCell] {
	return func(yield func(GridCell) bool) {
		for i := 0; i < g.Len(); i++ {
			if !yield(g.Cell(i)) {
				return
			}
		}
	}
}
