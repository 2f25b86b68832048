package dewater

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

const (
	// RadiusOfInfluence is the distance at which a well's drawdown vanishes.
	// Fixed by the model; not user configurable.
	RadiusOfInfluence = 500.0

	// ElevationPrecision is the number of decimals kept in output elevations
	ElevationPrecision = 2

	// overdrawTolerance is the relative size of a negative radicand, in units
	// of H^2, that is still treated as floating-point residue.
	overdrawTolerance = 1e-9
)

// MinValidRadius returns the clamp radius for a well pumping q from an
// aquifer with conductivity k and saturated thickness h. Inside this radius
// a single well would draw the water table below bedrock.
func MinValidRadius(k, h, q float64) float64 {
	return math.Exp(math.Log(RadiusOfInfluence) - math.Pi*k*h*h/q)
}

// Sample is the evaluator's answer for one point
type Sample struct {
	Elevation float64

	// Clamped counts wells whose minimum-radius clamp engaged
	Clamped int

	// Overdrawn is set when the summed drawdown exceeds the saturated
	// thickness. Elevation is still reported using |H^2 - S/(pi k)|.
	Overdrawn bool
}

type wellTerm struct {
	x, y    float64
	q       float64
	rMin    float64
	maxTerm float64 // contribution at the clamp radius
}

// Evaluator computes steady-state water-table elevations by superposing
// Thiem-style radial drawdown from every well in terms of squared
// saturated thickness. It is immutable and safe for concurrent use.
type Evaluator struct {
	aquifer AquiferParameters
	h2      float64
	piK     float64
	terms   []wellTerm
}

// NewEvaluator validates its inputs, allocates flow to every well and
// precomputes the per-well clamp radius.
func NewEvaluator(aquifer AquiferParameters, wells WellConfiguration, alloc Allocator) (*Evaluator, error) {
	var errs ValidationErrors
	errs = append(errs, validateAquifer(aquifer)...)
	errs = append(errs, validateWells(wells)...)
	if len(errs) > 0 {
		return nil, errs
	}

	if alloc == nil {
		alloc = EqualShare{}
	}
	flows, err := alloc.Allocate(wells.TotalQ, wells.Wells)
	if err != nil {
		return nil, err
	}
	if len(flows) != len(wells.Wells) {
		return nil, ValidationErrors{invalid("allocation",
			"allocator returned %d flows for %d wells", len(flows), len(wells.Wells))}
	}

	h := aquifer.SaturatedThickness()
	ev := &Evaluator{
		aquifer: aquifer,
		h2:      h * h,
		piK:     math.Pi * aquifer.K,
		terms:   make([]wellTerm, len(flows)),
	}

	for i, q := range flows {
		if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
			return nil, ValidationErrors{invalid("allocation", "well %d flow must be finite and >= 0, got %v", i, q)}
		}
		t := wellTerm{x: wells.Wells[i].X, y: wells.Wells[i].Y, q: q}
		if q > 0 {
			t.rMin = MinValidRadius(aquifer.K, h, q)
			if t.rMin > 0 {
				t.maxTerm = q * math.Log(RadiusOfInfluence/t.rMin)
			} else {
				// exp underflow: use the analytical limit q*ln(R/rMin) = pi k H^2
				t.maxTerm = ev.piK * ev.h2
			}
		}
		ev.terms[i] = t
	}

	return ev, nil
}

// Flows returns the per-well pumping rates in well order
func (ev *Evaluator) Flows() []float64 {
	flows := make([]float64, len(ev.terms))
	for i, t := range ev.terms {
		flows[i] = t.q
	}
	return flows
}

// MinRadii returns the per-well clamp radii in well order
func (ev *Evaluator) MinRadii() []float64 {
	radii := make([]float64, len(ev.terms))
	for i, t := range ev.terms {
		radii[i] = t.rMin
	}
	return radii
}

// Evaluate returns the water-table elevation at (px, py)
func (ev *Evaluator) Evaluate(px, py float64) Sample {
	var sum float64
	var clamped int

	for _, t := range ev.terms {
		if t.q == 0 {
			continue
		}
		dx, dy := px-t.x, py-t.y
		r := math.Sqrt(dx*dx + dy*dy)

		switch {
		case r < t.rMin || r == 0:
			sum += t.maxTerm
			clamped++
		case math.Log(RadiusOfInfluence/r) < 0:
			// beyond the radius of influence
		default:
			sum += t.q * math.Log(RadiusOfInfluence/r)
		}
	}

	radicand := ev.h2 - sum/ev.piK

	return Sample{
		// abs() absorbs a negative radicand instead of producing a complex
		// elevation; Overdrawn reports when that was more than residue.
		Elevation: scalar.Round(math.Sqrt(math.Abs(radicand))+ev.aquifer.BedrockElevation, ElevationPrecision),
		Clamped:   clamped,
		Overdrawn: radicand < -overdrawTolerance*ev.h2,
	}
}

// Elevation is Evaluate without the diagnostics
func (ev *Evaluator) Elevation(px, py float64) float64 {
	return ev.Evaluate(px, py).Elevation
}
