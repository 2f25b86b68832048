package main

import (
	"github.com/liamcoop/dewater/dewater"
	"github.com/liamcoop/dewater/scenario"
)

// API Request and Response Models with Swagger annotations

// BoundingBoxDTO is the excavation area in map coordinates
type BoundingBoxDTO struct {
	XMin float64 `json:"xMin" example:"4900"`
	XMax float64 `json:"xMax" example:"5100" validate:"gtfield=XMin"`
	YMin float64 `json:"yMin" example:"4900"`
	YMax float64 `json:"yMax" example:"5100" validate:"gtfield=YMin"`
} // @name BoundingBox

// AquiferDTO describes the unconfined aquifer
type AquiferDTO struct {
	K                          float64 `json:"k" example:"0.000231" validate:"gt=0"`
	BedrockElevation           float64 `json:"bedrockElevation" example:"0"`
	InitialWaterTableElevation float64 `json:"initialWaterTableElevation" example:"100" validate:"gtfield=BedrockElevation"`
} // @name Aquifer

// WellDTO is a pumping well location
type WellDTO struct {
	X float64 `json:"x" example:"5000"`
	Y float64 `json:"y" example:"5000"`
} // @name Well

// WaterTableRequest represents the request body for computing a water-table grid
type WaterTableRequest struct {
	BoundingBox          BoundingBoxDTO `json:"boundingBox"`
	CellSide             float64        `json:"cellSide" example:"10" validate:"gt=0"`
	Wells                []WellDTO      `json:"wells" validate:"min=1"`
	TotalQ               float64        `json:"totalQ" example:"2" validate:"gte=0"`
	Aquifer              AquiferDTO     `json:"aquifer"`
	TargetElevation      *float64       `json:"targetElevation,omitempty" example:"70"`
	AllocationExpression string         `json:"allocationExpression,omitempty" example:"index == 0 ? 2.0 : 1.0" validate:"max=1024"`
} // @name WaterTableRequest

// ElevationRequest represents the request body for a single-point evaluation
type ElevationRequest struct {
	X                    float64    `json:"x" example:"5000"`
	Y                    float64    `json:"y" example:"5020"`
	Wells                []WellDTO  `json:"wells" validate:"min=1"`
	TotalQ               float64    `json:"totalQ" example:"2" validate:"gte=0"`
	Aquifer              AquiferDTO `json:"aquifer"`
	AllocationExpression string     `json:"allocationExpression,omitempty" validate:"max=1024"`
} // @name ElevationRequest

// ScenarioRequest represents the request body for creating or replacing a scenario
type ScenarioRequest struct {
	Name                 string     `json:"name" example:"North pit" validate:"required,max=200"`
	Wells                []WellDTO  `json:"wells" validate:"min=1"`
	TotalQ               float64    `json:"totalQ" example:"2" validate:"gte=0"`
	Aquifer              AquiferDTO `json:"aquifer"`
	TargetElevation      *float64   `json:"targetElevation,omitempty" example:"70"`
	AllocationExpression string     `json:"allocationExpression,omitempty" validate:"max=1024"`
} // @name ScenarioRequest

// RunScenarioRequest represents the request body for running a saved scenario
type RunScenarioRequest struct {
	BoundingBox BoundingBoxDTO `json:"boundingBox"`
	CellSide    float64        `json:"cellSide" example:"10" validate:"gt=0"`
} // @name RunScenarioRequest

// WaterTableResponse represents a computed grid
type WaterTableResponse struct {
	Success         string                     `json:"success" example:"Data analysis complete!"`
	LocalWaterTable *dewater.FeatureCollection `json:"localWaterTable"`
	Summary         dewater.Summary            `json:"summary"`
	Warnings        []dewater.Warning          `json:"warnings"`
} // @name WaterTableResponse

// ElevationResponse represents a single-point evaluation
type ElevationResponse struct {
	X         float64   `json:"x" example:"5000"`
	Y         float64   `json:"y" example:"5020"`
	Elevation float64   `json:"elevation" example:"87.42"`
	Clamped   int       `json:"clampedWells" example:"0"`
	Overdrawn bool      `json:"overdrawn" example:"false"`
	Flows     []float64 `json:"flows"`
} // @name ElevationResponse

// ScenariosListResponse represents the response for listing scenarios
type ScenariosListResponse struct {
	Scenarios []*scenario.Scenario `json:"scenarios"`
} // @name ScenariosListResponse

// FieldError is one rejected request field
type FieldError struct {
	Field   string `json:"field" example:"aquifer.k"`
	Message string `json:"message" example:"must be greater than 0"`
} // @name FieldError

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string       `json:"error" example:"invalid request"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
} // @name ErrorResponse

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
	Store  string `json:"store" example:"postgres"`
	Cache  string `json:"cache" example:"redis"`
	Error  string `json:"error,omitempty"`
} // @name HealthResponse

func (b BoundingBoxDTO) toDomain() dewater.BoundingBox {
	return dewater.BoundingBox{XMin: b.XMin, XMax: b.XMax, YMin: b.YMin, YMax: b.YMax}
}

func (a AquiferDTO) toDomain() dewater.AquiferParameters {
	return dewater.AquiferParameters{
		K:                          a.K,
		BedrockElevation:           a.BedrockElevation,
		InitialWaterTableElevation: a.InitialWaterTableElevation,
	}
}

func wellsToDomain(wells []WellDTO) []dewater.Well {
	out := make([]dewater.Well, len(wells))
	for i, w := range wells {
		out[i] = dewater.Well{X: w.X, Y: w.Y}
	}
	return out
}

func (r WaterTableRequest) toDomain() dewater.Request {
	return dewater.Request{
		Box:                  r.BoundingBox.toDomain(),
		CellSide:             r.CellSide,
		Wells:                dewater.WellConfiguration{Wells: wellsToDomain(r.Wells), TotalQ: r.TotalQ},
		Aquifer:              r.Aquifer.toDomain(),
		TargetElevation:      r.TargetElevation,
		AllocationExpression: r.AllocationExpression,
	}
}

func (r ScenarioRequest) toScenario(id string) *scenario.Scenario {
	return &scenario.Scenario{
		ID:                   id,
		Name:                 r.Name,
		Wells:                wellsToDomain(r.Wells),
		TotalQ:               r.TotalQ,
		Aquifer:              r.Aquifer.toDomain(),
		TargetElevation:      r.TargetElevation,
		AllocationExpression: r.AllocationExpression,
	}
}
