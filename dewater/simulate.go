package dewater

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Options controls how a request is evaluated
type Options struct {
	// Workers is the number of goroutines evaluating cells.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int

	// MaxCells rejects requests whose grid is larger. Zero means no limit.
	MaxCells int
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		Workers:  runtime.GOMAXPROCS(0),
		MaxCells: 250000,
	}
}

// WarningCode identifies a kind of non-fatal condition
type WarningCode string

const (
	// WarnOverdrawn means summed drawdown exceeded the saturated thickness in
	// some cells; their elevations are reported through the abs() clamp.
	WarnOverdrawn WarningCode = "overdrawn"

	// WarnTargetMissed means some cell inside the bounding box sits above
	// the target elevation.
	WarnTargetMissed WarningCode = "target_missed"
)

// Warning is a non-fatal diagnostic attached to a result
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	Cells   int         `json:"cells"`
}

// Summary describes a computed grid
type Summary struct {
	CellCount         int       `json:"cellCount"`
	Columns           int       `json:"columns"`
	Rows              int       `json:"rows"`
	MinElevation      float64   `json:"minElevation"`
	MaxElevation      float64   `json:"maxElevation"`
	MaxElevationInBox float64   `json:"maxElevationInBox"`
	ClampedCells      int       `json:"clampedCells"`
	OverdrawnCells    int       `json:"overdrawnCells"`
	Flows             []float64 `json:"flows"`
	TargetElevation   *float64  `json:"targetElevation,omitempty"`
	TargetMet         *bool     `json:"targetMet,omitempty"`
	CellsAboveTarget  int       `json:"cellsAboveTarget,omitempty"`
}

// Result is the computed water table for one request
type Result struct {
	Cells    []GridCell `json:"cells"`
	Summary  Summary    `json:"summary"`
	Warnings []Warning  `json:"warnings"`
}

// Simulate validates req, then evaluates the water table at the centre of
// every grid cell. Cells are evaluated concurrently; the returned slice is
// in grid emission order.
func Simulate(ctx context.Context, req Request, opts Options) (*Result, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	grid, err := NewGrid(req.Box, req.CellSide)
	if err != nil {
		return nil, err
	}
	if opts.MaxCells > 0 && grid.Len() > opts.MaxCells {
		return nil, ValidationErrors{invalid("cellSide",
			"grid would contain %d cells, maximum allowed is %d", grid.Len(), opts.MaxCells)}
	}

	alloc, err := AllocatorFor(req.AllocationExpression)
	if err != nil {
		return nil, err
	}
	ev, err := NewEvaluator(req.Aquifer, req.Wells, alloc)
	if err != nil {
		return nil, err
	}

	cells, samples, err := evaluateGrid(ctx, grid, ev, opts.Workers)
	if err != nil {
		return nil, err
	}

	res := &Result{Cells: cells}
	res.Summary = summarize(grid, cells, samples, req.TargetElevation)
	res.Summary.Flows = ev.Flows()
	res.Warnings = warningsFor(res.Summary)

	return res, nil
}

func evaluateGrid(ctx context.Context, grid *Grid, ev *Evaluator, workers int) ([]GridCell, []Sample, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	n := grid.Len()
	cells := make([]GridCell, n)
	samples := make([]Sample, n)

	// one column per task keeps goroutine overhead low on fine grids
	nx, ny := grid.Dims()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for ix := 0; ix < nx; ix++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := ix * ny; i < (ix+1)*ny; i++ {
				c := grid.Cell(i)
				s := ev.Evaluate(c.Center.X, c.Center.Y)
				c.Elevation = s.Elevation
				cells[i] = c
				samples[i] = s
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("evaluation cancelled: %w", err)
	}
	return cells, samples, nil
}

func summarize(grid *Grid, cells []GridCell, samples []Sample, target *float64) Summary {
	nx, ny := grid.Dims()
	sum := Summary{
		CellCount:         len(cells),
		Columns:           nx,
		Rows:              ny,
		MinElevation:      math.Inf(1),
		MaxElevation:      math.Inf(-1),
		MaxElevationInBox: math.Inf(-1),
	}

	box := grid.Box()
	inBox := 0
	aboveTarget := 0
	for i, c := range cells {
		sum.MinElevation = math.Min(sum.MinElevation, c.Elevation)
		sum.MaxElevation = math.Max(sum.MaxElevation, c.Elevation)
		if samples[i].Clamped > 0 {
			sum.ClampedCells++
		}
		if samples[i].Overdrawn {
			sum.OverdrawnCells++
		}
		if box.Contains(c.Center) {
			inBox++
			sum.MaxElevationInBox = math.Max(sum.MaxElevationInBox, c.Elevation)
			if target != nil && c.Elevation > *target {
				aboveTarget++
			}
		}
	}
	if inBox == 0 {
		// box narrower than a cell: fall back to the whole grid
		sum.MaxElevationInBox = sum.MaxElevation
		if target != nil {
			for _, c := range cells {
				if c.Elevation > *target {
					aboveTarget++
				}
			}
		}
	}

	if target != nil {
		t := *target
		met := aboveTarget == 0
		sum.TargetElevation = &t
		sum.TargetMet = &met
		sum.CellsAboveTarget = aboveTarget
	}
	return sum
}

func warningsFor(sum Summary) []Warning {
	warnings := []Warning{}
	if sum.OverdrawnCells > 0 {
		warnings = append(warnings, Warning{
			Code: WarnOverdrawn,
			Message: fmt.Sprintf("summed drawdown exceeds the saturated thickness in %d cells; "+
				"elevations there are reported as |H^2 - S/(pi k)| and are not physical", sum.OverdrawnCells),
			Cells: sum.OverdrawnCells,
		})
	}
	if sum.TargetMet != nil && !*sum.TargetMet {
		warnings = append(warnings, Warning{
			Code: WarnTargetMissed,
			Message: fmt.Sprintf("water table inside the excavation peaks at %.2f, above the target %.2f",
				sum.MaxElevationInBox, *sum.TargetElevation),
			Cells: sum.CellsAboveTarget,
		})
	}
	return warnings
}
