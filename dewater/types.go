package dewater

// Point is a planar coordinate in the same system as the wells and grid
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AquiferParameters describes a single unconfined, homogeneous aquifer
type AquiferParameters struct {
	K                          float64 `json:"k"`
	BedrockElevation           float64 `json:"bedrockElevation"`
	InitialWaterTableElevation float64 `json:"initialWaterTableElevation"`
}

// SaturatedThickness returns H, the undisturbed saturated thickness
func (a AquiferParameters) SaturatedThickness() float64 {
	return a.InitialWaterTableElevation - a.BedrockElevation
}

// Well is a pumping well. Wells have no identity beyond their position.
type Well struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WellConfiguration is the set of wells sharing one total pumping rate
type WellConfiguration struct {
	Wells  []Well  `json:"wells"`
	TotalQ float64 `json:"totalQ"`
}

// WellsFromCoords zips parallel coordinate slices into wells.
// The slices must already have been checked for equal length.
func WellsFromCoords(xs, ys []float64) []Well {
	n := min(len(xs), len(ys))
	wells := make([]Well, n)
	for i := 0; i < n; i++ {
		wells[i] = Well{X: xs[i], Y: ys[i]}
	}
	return wells
}

// BoundingBox is an axis-aligned area of interest
type BoundingBox struct {
	XMin float64 `json:"xMin"`
	XMax float64 `json:"xMax"`
	YMin float64 `json:"yMin"`
	YMax float64 `json:"yMax"`
}

// Contains reports whether p lies inside the box, edges included
func (b BoundingBox) Contains(p Point) bool {
	return p.X >= b.XMin && p.X <= b.XMax && p.Y >= b.YMin && p.Y <= b.YMax
}

// Request is one water-table evaluation over a bounding box
type Request struct {
	Box      BoundingBox       `json:"boundingBox"`
	CellSide float64           `json:"cellSide"`
	Wells    WellConfiguration `json:"wells"`
	Aquifer  AquiferParameters `json:"aquifer"`

	// TargetElevation is the desired water-table elevation inside the
	// excavation. Optional.
	TargetElevation *float64 `json:"targetElevation,omitempty"`

	// AllocationExpression is a CEL weight expression; empty means equal share.
	AllocationExpression string `json:"allocationExpression,omitempty"`
}
