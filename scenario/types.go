package scenario

import (
	"time"

	"github.com/liamcoop/dewater/dewater"
)

// Scenario is a saved site configuration: wells, pumping rate and aquifer.
// A bounding box is supplied per run, not stored.
type Scenario struct {
	ID                   string                    `json:"id"`
	Name                 string                    `json:"name"`
	Wells                []dewater.Well            `json:"wells"`
	TotalQ               float64                   `json:"totalQ"`
	Aquifer              dewater.AquiferParameters `json:"aquifer"`
	TargetElevation      *float64                  `json:"targetElevation,omitempty"`
	AllocationExpression string                    `json:"allocationExpression,omitempty"`
	CreatedAt            time.Time                 `json:"createdAt"`
	UpdatedAt            time.Time                 `json:"updatedAt"`
}

// WellConfiguration returns the scenario's wells with their total flow
func (s *Scenario) WellConfiguration() dewater.WellConfiguration {
	return dewater.WellConfiguration{Wells: s.Wells, TotalQ: s.TotalQ}
}

// Request builds an evaluation request for the given area
func (s *Scenario) Request(box dewater.BoundingBox, cellSide float64) dewater.Request {
	return dewater.Request{
		Box:                  box,
		CellSide:             cellSide,
		Wells:                s.WellConfiguration(),
		Aquifer:              s.Aquifer,
		TargetElevation:      s.TargetElevation,
		AllocationExpression: s.AllocationExpression,
	}
}

// Validate checks the stored parameters without a grid
func (s *Scenario) Validate() error {
	if err := dewater.ValidateWells(s.WellConfiguration()); err != nil {
		return err
	}
	if err := dewater.ValidateAquifer(s.Aquifer); err != nil {
		return err
	}
	if s.AllocationExpression != "" {
		if _, err := dewater.NewExpressionAllocator(s.AllocationExpression); err != nil {
			return err
		}
	}
	return nil
}
