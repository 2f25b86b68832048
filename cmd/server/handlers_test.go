package main

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/liamcoop/dewater/dewater"
	"github.com/liamcoop/dewater/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *scenario.InMemoryResultCache) {
	t.Helper()
	cache := scenario.NewInMemoryResultCache(scenario.DefaultCacheConfig())
	opts := dewater.Options{Workers: 2, MaxCells: 10000}
	return NewServerWithDeps(scenario.NewInMemoryStore(), cache, opts), cache
}

func do(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func singleWellRequest() WaterTableRequest {
	return WaterTableRequest{
		BoundingBox: BoundingBoxDTO{XMin: 0, XMax: 100, YMin: 0, YMax: 100},
		CellSide:    50,
		Wells:       []WellDTO{{X: 50, Y: 50}},
		TotalQ:      2,
		Aquifer: AquiferDTO{
			K:                          0.000231,
			BedrockElevation:           0,
			InitialWaterTableElevation: 100,
		},
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "memory", resp.Store)
}

func TestWaterTable_Post(t *testing.T) {
	s, cache := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/water-table", singleWellRequest())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[WaterTableResponse](t, rec)
	assert.Equal(t, "Data analysis complete!", resp.Success)
	require.NotNil(t, resp.LocalWaterTable)
	assert.Equal(t, "FeatureCollection", resp.LocalWaterTable.Type)
	assert.Len(t, resp.LocalWaterTable.Features, 16)
	assert.Equal(t, 16, resp.Summary.CellCount)
	assert.Equal(t, 4, resp.Summary.Columns)
	assert.NotNil(t, resp.Warnings)

	for _, f := range resp.LocalWaterTable.Features {
		assert.Equal(t, "Feature", f.Type)
		assert.Equal(t, "Polygon", f.Geometry.Type)
		elev, ok := f.Properties["elevation"].(float64)
		require.True(t, ok)
		assert.True(t, elev > 0 && elev <= 100, "elevation %v out of range", elev)
	}

	// second identical request is served from the cache
	assert.Equal(t, 1, cache.Len())
	again := do(t, s, http.MethodPost, "/api/v1/water-table", singleWellRequest())
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, 1, cache.Len())
	assert.JSONEq(t, rec.Body.String(), again.Body.String())
}

func TestWaterTable_TargetMissed(t *testing.T) {
	s, _ := newTestServer(t)

	req := singleWellRequest()
	target := 10.0
	req.TargetElevation = &target

	rec := do(t, s, http.MethodPost, "/api/v1/water-table", req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[WaterTableResponse](t, rec)
	require.NotNil(t, resp.Summary.TargetMet)
	assert.False(t, *resp.Summary.TargetMet)

	codes := []dewater.WarningCode{}
	for _, w := range resp.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, dewater.WarnTargetMissed)
}

func TestWaterTable_ValidationErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name  string
		edit  func(*WaterTableRequest)
		field string
	}{
		{"zero conductivity", func(r *WaterTableRequest) { r.Aquifer.K = 0 }, "aquifer.k"},
		{"no wells", func(r *WaterTableRequest) { r.Wells = nil }, "wells"},
		{"zero cell side", func(r *WaterTableRequest) { r.CellSide = 0 }, "cellSide"},
		{"negative flow", func(r *WaterTableRequest) { r.TotalQ = -1 }, "totalQ"},
		{"inverted box", func(r *WaterTableRequest) { r.BoundingBox.XMax = -10 }, "boundingBox.xMax"},
		{"water table below bedrock", func(r *WaterTableRequest) { r.Aquifer.BedrockElevation = 200 }, "aquifer.initialWaterTableElevation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := singleWellRequest()
			tt.edit(&req)

			rec := do(t, s, http.MethodPost, "/api/v1/water-table", req)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			resp := decode[ErrorResponse](t, rec)
			fields := []string{}
			for _, f := range resp.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestWaterTable_DomainValidationAfterDTO(t *testing.T) {
	s, _ := newTestServer(t)

	req := singleWellRequest()
	req.AllocationExpression = "index +"

	rec := do(t, s, http.MethodPost, "/api/v1/water-table", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWaterTable_MalformedBody(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/water-table", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[ErrorResponse](t, rec).Error)
}

func TestWaterTable_TooManyCells(t *testing.T) {
	s, _ := newTestServer(t)

	req := singleWellRequest()
	req.BoundingBox = BoundingBoxDTO{XMin: 0, XMax: 10000, YMin: 0, YMax: 10000}
	req.CellSide = 1

	rec := do(t, s, http.MethodPost, "/api/v1/water-table", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWaterTable_VanishingCellSide(t *testing.T) {
	s, _ := newTestServer(t)

	req := singleWellRequest()
	req.BoundingBox = BoundingBoxDTO{XMin: 0, XMax: 1e6, YMin: 0, YMax: 1e6}
	req.CellSide = 1e-300

	rec := do(t, s, http.MethodPost, "/api/v1/water-table", req)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	resp := decode[ErrorResponse](t, rec)
	require.NotEmpty(t, resp.Fields)
	assert.Equal(t, "cellSide", resp.Fields[0].Field)
}

func TestRespondJSON_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	respondJSON(rec, http.StatusOK, map[string]float64{"min": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to encode response", decode[ErrorResponse](t, rec).Error)
}

func TestLegacyWaterTable_MatchesPost(t *testing.T) {
	s, _ := newTestServer(t)

	q := url.Values{}
	q.Set("xIndex", "[0,100]")
	q.Set("yIndex", "[0,100]")
	q.Set("wXCoords", "[50]")
	q.Set("wYCoords", "[50]")
	q.Set("cellSide", "50")
	// the browser form sends input values as JSON strings
	q.Set("initial", `"100"`)
	q.Set("bedrock", `"0"`)
	q.Set("q", `"2"`)
	q.Set("k", `"0.000231"`)

	legacy := do(t, s, http.MethodGet, "/api/v1/water-table?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, legacy.Code, legacy.Body.String())

	post := do(t, s, http.MethodPost, "/api/v1/water-table", singleWellRequest())
	require.Equal(t, http.StatusOK, post.Code)

	a := decode[WaterTableResponse](t, legacy)
	b := decode[WaterTableResponse](t, post)
	require.Len(t, a.LocalWaterTable.Features, len(b.LocalWaterTable.Features))
	for i := range a.LocalWaterTable.Features {
		assert.Equal(t,
			b.LocalWaterTable.Features[i].Properties["elevation"],
			a.LocalWaterTable.Features[i].Properties["elevation"],
			"feature %d", i)
	}
}

func TestLegacyWaterTable_MissingAndMalformed(t *testing.T) {
	s, _ := newTestServer(t)

	q := url.Values{}
	q.Set("xIndex", "[0]")
	q.Set("yIndex", "[0,100]")
	q.Set("wXCoords", "[50, 60]")
	q.Set("wYCoords", "[50]")
	q.Set("cellSide", "fifty")

	rec := do(t, s, http.MethodGet, "/api/v1/water-table?"+q.Encode(), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	fields := map[string]bool{}
	for _, f := range decode[ErrorResponse](t, rec).Fields {
		fields[f.Field] = true
	}
	for _, name := range []string{"xIndex", "cellSide", "initial", "bedrock", "q", "k"} {
		assert.True(t, fields[name], "expected an error for %s", name)
	}
}

func TestElevation(t *testing.T) {
	s, _ := newTestServer(t)

	body := ElevationRequest{
		X:      150,
		Y:      50,
		Wells:  []WellDTO{{X: 50, Y: 50}},
		TotalQ: 2,
		Aquifer: AquiferDTO{
			K:                          0.000231,
			InitialWaterTableElevation: 100,
		},
	}

	rec := do(t, s, http.MethodPost, "/api/v1/elevation", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ElevationResponse](t, rec)
	want := math.Sqrt(10000-2*math.Log(5)/(math.Pi*0.000231))
	assert.InDelta(t, want, resp.Elevation, 0.005)
	assert.Equal(t, []float64{2}, resp.Flows)
	assert.False(t, resp.Overdrawn)

	// beyond the radius of influence the water table is undisturbed
	body.X = 50 + 600
	rec = do(t, s, http.MethodPost, "/api/v1/elevation", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100.0, decode[ElevationResponse](t, rec).Elevation)
}

func TestScenarios_Lifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	target := 70.0
	create := ScenarioRequest{
		Name:   "North pit",
		Wells:  []WellDTO{{X: 40, Y: 40}, {X: 60, Y: 60}},
		TotalQ: 2,
		Aquifer: AquiferDTO{
			K:                          0.000231,
			InitialWaterTableElevation: 100,
		},
		TargetElevation: &target,
	}

	rec := do(t, s, http.MethodPost, "/api/v1/scenarios", create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[scenario.Scenario](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "North pit", created.Name)

	base := "/api/v1/scenarios/" + created.ID

	rec = do(t, s, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[scenario.Scenario](t, rec).Wells, 2)

	rec = do(t, s, http.MethodGet, "/api/v1/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ScenariosListResponse](t, rec).Scenarios, 1)

	run := RunScenarioRequest{
		BoundingBox: BoundingBoxDTO{XMin: 0, XMax: 100, YMin: 0, YMax: 100},
		CellSide:    25,
	}
	rec = do(t, s, http.MethodPost, base+"/water-table", run)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[WaterTableResponse](t, rec)
	assert.Len(t, result.LocalWaterTable.Features, 36)
	require.NotNil(t, result.Summary.TargetElevation)
	assert.Equal(t, 70.0, *result.Summary.TargetElevation)
	assert.Equal(t, []float64{1, 1}, result.Summary.Flows)

	create.Name = "North pit, revised"
	create.TotalQ = 4
	rec = do(t, s, http.MethodPut, base, create)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[scenario.Scenario](t, rec)
	assert.Equal(t, 4.0, updated.TotalQ)
	assert.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())

	rec = do(t, s, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenarios_ChangeDropsLastRun(t *testing.T) {
	s, cache := newTestServer(t)

	create := ScenarioRequest{
		Name:    "South pit",
		Wells:   []WellDTO{{X: 50, Y: 50}},
		TotalQ:  2,
		Aquifer: AquiferDTO{K: 0.000231, InitialWaterTableElevation: 100},
	}
	rec := do(t, s, http.MethodPost, "/api/v1/scenarios", create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	base := "/api/v1/scenarios/" + decode[scenario.Scenario](t, rec).ID

	run := RunScenarioRequest{
		BoundingBox: BoundingBoxDTO{XMin: 0, XMax: 100, YMin: 0, YMax: 100},
		CellSide:    50,
	}
	rec = do(t, s, http.MethodPost, base+"/water-table", run)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, cache.Len())

	create.TotalQ = 3
	rec = do(t, s, http.MethodPut, base, create)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, cache.Len(), "update should drop the cached run")

	rec = do(t, s, http.MethodPost, base+"/water-table", run)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, cache.Len())

	rec = do(t, s, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, cache.Len(), "delete should drop the cached run")
}

func TestScenarios_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		method string
		target string
		body   any
	}{
		{http.MethodGet, "/api/v1/scenarios/not-a-uuid", nil},
		{http.MethodGet, "/api/v1/scenarios/7b0f6a8e-3f51-4c1a-9b59-1d2a4c1f0e11", nil},
		{http.MethodDelete, "/api/v1/scenarios/7b0f6a8e-3f51-4c1a-9b59-1d2a4c1f0e11", nil},
		{http.MethodPost, "/api/v1/scenarios/7b0f6a8e-3f51-4c1a-9b59-1d2a4c1f0e11/water-table",
			RunScenarioRequest{BoundingBox: BoundingBoxDTO{XMax: 10, YMax: 10}, CellSide: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestScenarios_CreateValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/scenarios", ScenarioRequest{
		Wells:  []WellDTO{{X: 0, Y: 0}},
		TotalQ: 1,
		Aquifer: AquiferDTO{
			K:                          1,
			InitialWaterTableElevation: 10,
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", decode[ErrorResponse](t, rec).Fields[0].Field)
}

func TestParseJSONNumber(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"100", 100, false},
		{"1e-4", 0.0001, false},
		{`"0.000231"`, 0.000231, false},
		{`" 2 "`, 2, false},
		{`"abc"`, 0, true},
		{"[1]", 0, true},
		{"nope", 0, true},
	}

	for _, tt := range tests {
		got, err := parseJSONNumber(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		assert.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
