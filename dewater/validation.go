package dewater

import "math"

// ValidateRequest checks every precondition of a water-table evaluation.
// All problems are reported together; nil means the request is valid.
func ValidateRequest(req Request) error {
	var errs ValidationErrors

	errs = append(errs, validateBox(req.Box)...)
	if err := validateCellSide(req.CellSide); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, validateWells(req.Wells)...)
	errs = append(errs, validateAquifer(req.Aquifer)...)

	if req.TargetElevation != nil && !isFinite(*req.TargetElevation) {
		errs = append(errs, invalid("targetElevation", "must be a finite number"))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateAquifer checks k and the elevation pair
func ValidateAquifer(a AquiferParameters) error {
	if errs := validateAquifer(a); len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateWells checks the well list and total flow
func ValidateWells(w WellConfiguration) error {
	if errs := validateWells(w); len(errs) > 0 {
		return errs
	}
	return nil
}

func validateAquifer(a AquiferParameters) ValidationErrors {
	var errs ValidationErrors

	// k appears as a divisor in both the clamp radius and the final radicand
	if !isFinite(a.K) || a.K <= 0 {
		errs = append(errs, invalid("k", "hydraulic conductivity must be > 0, got %v", a.K))
	}
	if !isFinite(a.BedrockElevation) {
		errs = append(errs, invalid("bedrockElevation", "must be a finite number"))
	}
	if !isFinite(a.InitialWaterTableElevation) {
		errs = append(errs, invalid("initialWaterTableElevation", "must be a finite number"))
	} else if a.InitialWaterTableElevation <= a.BedrockElevation {
		errs = append(errs, invalid("initialWaterTableElevation",
			"must exceed bedrock elevation %v, got %v", a.BedrockElevation, a.InitialWaterTableElevation))
	}

	return errs
}

func validateWells(w WellConfiguration) ValidationErrors {
	var errs ValidationErrors

	if len(w.Wells) == 0 {
		errs = append(errs, invalid("wells", "at least one well is required"))
	}
	for i, well := range w.Wells {
		if !isFinite(well.X) || !isFinite(well.Y) {
			errs = append(errs, invalid("wells", "well %d has a non-finite coordinate", i))
		}
	}
	if !isFinite(w.TotalQ) || w.TotalQ < 0 {
		errs = append(errs, invalid("totalQ", "total flow must be >= 0, got %v", w.TotalQ))
	}

	return errs
}

func validateBox(b BoundingBox) ValidationErrors {
	var errs ValidationErrors

	if !isFinite(b.XMin) || !isFinite(b.XMax) || !isFinite(b.YMin) || !isFinite(b.YMax) {
		return append(errs, invalid("boundingBox", "coordinates must be finite"))
	}
	if b.XMin >= b.XMax {
		errs = append(errs, invalid("boundingBox", "xMin %v must be less than xMax %v", b.XMin, b.XMax))
	}
	if b.YMin >= b.YMax {
		errs = append(errs, invalid("boundingBox", "yMin %v must be less than yMax %v", b.YMin, b.YMax))
	}

	return errs
}

func validateCellSide(side float64) *ValidationError {
	if !isFinite(side) || side <= 0 {
		return invalid("cellSide", "cell side must be > 0, got %v", side)
	}
	return nil
}

// ValidateCoords checks that parallel coordinate slices describe at least one well
func ValidateCoords(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return ValidationErrors{invalid("wellCoords",
			"x and y coordinate lists differ in length (%d vs %d)", len(xs), len(ys))}
	}
	if len(xs) == 0 {
		return ValidationErrors{invalid("wellCoords", "at least one well is required")}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
