package dewater

import (
	"errors"
	"math"
	"testing"
)

// TestGrid_Coverage verifies the padded mesh for a 100x100 box with 50 unit cells
func TestGrid_Coverage(t *testing.T) {
	g, err := NewGrid(BoundingBox{XMin: 0, XMax: 100, YMin: 0, YMax: 100}, 50)
	if err != nil {
		t.Fatalf("NewGrid() failed: %v", err)
	}

	nx, ny := g.Dims()
	if nx != 4 || ny != 4 {
		t.Errorf("Dims() = (%d, %d), want (4, 4)", nx, ny)
	}
	if g.Len() != 16 {
		t.Errorf("Len() = %d, want 16", g.Len())
	}

	var sawCenter, sawPadding bool
	for c := range g.Cells() {
		if c.Center == (Point{X: 25, Y: 25}) {
			sawCenter = true
		}
		for _, p := range c.Ring {
			if p == (Point{X: -50, Y: -50}) {
				sawPadding = true
			}
		}
	}

	if !sawCenter {
		t.Error("expected a cell centred on (25, 25)")
	}
	if !sawPadding {
		t.Error("expected a padding cell with corner (-50, -50)")
	}
}

// TestGrid_RingOrder verifies the corner order and that rings are closed
func TestGrid_RingOrder(t *testing.T) {
	g, err := NewGrid(BoundingBox{XMin: 10, XMax: 20, YMin: 30, YMax: 40}, 5)
	if err != nil {
		t.Fatalf("NewGrid() failed: %v", err)
	}

	c := g.Cell(0)
	want := [5]Point{{5, 25}, {10, 25}, {10, 30}, {5, 30}, {5, 25}}
	if c.Ring != want {
		t.Errorf("Cell(0).Ring = %v, want %v", c.Ring, want)
	}
	if c.Center != (Point{X: 7.5, Y: 27.5}) {
		t.Errorf("Cell(0).Center = %v, want (7.5, 27.5)", c.Center)
	}

	for cell := range g.Cells() {
		if cell.Ring[0] != cell.Ring[4] {
			t.Fatalf("ring %v is not closed", cell.Ring)
		}
	}
}

// TestGrid_EmissionOrder verifies x is the outer loop and y the inner one
func TestGrid_EmissionOrder(t *testing.T) {
	g, err := NewGrid(BoundingBox{XMin: 0, XMax: 100, YMin: 0, YMax: 100}, 50)
	if err != nil {
		t.Fatalf("NewGrid() failed: %v", err)
	}

	first, second := g.Cell(0), g.Cell(1)
	if first.Ring[0].X != second.Ring[0].X {
		t.Errorf("consecutive cells should share x: %v vs %v", first.Ring[0], second.Ring[0])
	}
	if second.Ring[0].Y-first.Ring[0].Y != 50 {
		t.Errorf("consecutive cells should step y by the cell side: %v vs %v", first.Ring[0], second.Ring[0])
	}
}

// TestGrid_CellsIsRestartable verifies the lazy sequence can be consumed repeatedly and stopped early
func TestGrid_CellsIsRestartable(t *testing.T) {
	g, err := NewGrid(BoundingBox{XMin: 0, XMax: 30, YMin: 0, YMax: 20}, 10)
	if err != nil {
		t.Fatalf("NewGrid() failed: %v", err)
	}

	count := func() int {
		n := 0
		for range g.Cells() {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != b || a != g.Len() {
		t.Errorf("Cells() yielded %d then %d cells, want %d", a, b, g.Len())
	}

	n := 0
	for range g.Cells() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("early break consumed %d cells, want 3", n)
	}
}

// TestGrid_PolygonArea verifies the geom polygon matches the cell square
func TestGrid_PolygonArea(t *testing.T) {
	g, err := NewGrid(BoundingBox{XMin: 0, XMax: 10, YMin: 0, YMax: 10}, 2.5)
	if err != nil {
		t.Fatalf("NewGrid() failed: %v", err)
	}

	for c := range g.Cells() {
		if area := c.Polygon().Area(); math.Abs(area-6.25) > 1e-9 {
			t.Fatalf("Polygon().Area() = %v, want 6.25", area)
		}
	}
}

// TestNewGrid_Rejects verifies invalid geometry fails before iteration
func TestNewGrid_Rejects(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		side float64
	}{
		{"zero side", BoundingBox{XMax: 1, YMax: 1}, 0},
		{"negative side", BoundingBox{XMax: 1, YMax: 1}, -5},
		{"NaN side", BoundingBox{XMax: 1, YMax: 1}, math.NaN()},
		{"inverted x", BoundingBox{XMin: 5, XMax: 1, YMax: 1}, 1},
		{"flat y", BoundingBox{XMax: 1, YMin: 2, YMax: 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGrid(tt.box, tt.side)
			if err == nil {
				t.Fatalf("expected error, got grid with %d cells", g.Len())
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestNewGrid_TooManyCells(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		side float64
	}{
		{"vanishing side", BoundingBox{XMin: 0, XMax: 1e6, YMin: 0, YMax: 1e6}, 1e-300},
		{"one huge axis", BoundingBox{XMin: 0, XMax: 4.6e18, YMin: 0, YMax: 2}, 1},
		{"product overflows", BoundingBox{XMin: 0, XMax: 1e5, YMin: 0, YMax: 1e5}, 1},
		{"infinite span", BoundingBox{XMin: -1e308, XMax: 1e308, YMin: 0, YMax: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGrid(tt.box, tt.side)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got grid %+v, err %v", g, err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) || verrs[0].Field != "cellSide" {
				t.Errorf("expected a cellSide error, got %v", err)
			}
		})
	}
}

func TestNewGrid_LargestAllowed(t *testing.T) {
	// 2 + 2 padding columns by 46340 + 2 padding rows stays under the bound
	g, err := NewGrid(BoundingBox{XMin: 0, XMax: 2, YMin: 0, YMax: 46340}, 1)
	if err != nil {
		t.Fatalf("NewGrid() failed: %v", err)
	}
	nx, ny := g.Dims()
	if nx != 4 || ny != 46342 || g.Len() != nx*ny {
		t.Errorf("Dims() = (%d, %d), Len() = %d", nx, ny, g.Len())
	}
}
