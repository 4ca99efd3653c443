package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"pvyield/internal/pvwatts"
	"pvyield/internal/yield"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(v float64) []float64 {
	out := make([]float64, pvwatts.MonthsPerYear)
	for i := range out {
		out[i] = v
	}
	return out
}

type fakeEngine struct {
	mu       sync.Mutex
	requests []pvwatts.Request
	err      error
}

func (f *fakeEngine) Simulate(_ context.Context, req pvwatts.Request) (*pvwatts.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &pvwatts.Response{
		Version:     "8.2.1",
		StationInfo: pvwatts.StationInfo{City: "Denver", State: "CO", Location: "TMY-0-725650"},
		Outputs: pvwatts.Outputs{
			ACAnnual:       req.SystemCapacity * 1200,
			ACMonthly:      filled(req.SystemCapacity * 100),
			DCMonthly:      filled(req.SystemCapacity * 105),
			POAMonthly:     filled(160),
			CapacityFactor: 13.7,
		},
	}, nil
}

type capturingPublisher struct {
	mu      sync.Mutex
	results []*yield.CalculationResult
}

func (p *capturingPublisher) Publish(result *yield.CalculationResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
}

func newTestServer(t *testing.T, engine yield.Engine) (*Server, *capturingPublisher) {
	t.Helper()
	calc, err := yield.NewCalculator(engine, yield.DefaultOptions(), nil)
	require.NoError(t, err)
	pub := &capturingPublisher{}
	return NewServer(ServerConfig{
		Calculator: calc,
		Losses:     yield.DefaultLossParameters(),
		Publisher:  pub,
	}), pub
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func premiumModule() map[string]any {
	return map[string]any{
		"manufacturer":       "Acme",
		"model":              "AX-400",
		"power_rating":       400,
		"efficiency_percent": 21.5,
		"area_m2":            1.95,
	}
}

func simulationBody() map[string]any {
	return map[string]any{
		"location": map[string]any{"latitude": 39.74, "longitude": -105.17},
		"array":    map[string]any{"capacity_kw": 100, "tilt": 20, "azimuth": 180},
		"module":   premiumModule(),
	}
}

func TestSimulation_ReturnsCorrectedResult(t *testing.T) {
	engine := &fakeEngine{}
	s, pub := newTestServer(t, engine)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/simulations", simulationBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result yield.CalculationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, yield.ModeEngine, result.Mode)
	assert.Equal(t, "Premium", result.System.ModuleClass.ClassName)
	assert.Equal(t, 250, result.System.TotalModules)
	assert.Len(t, result.YearlyProduction, 25)
	// The engine scales with the adjusted capacity; back-correction restores
	// the nominal 100 kW.
	assert.InDelta(t, 100*100*12, result.Energy.Metrics.TotalYearly, 1e-6)

	require.Len(t, engine.requests, 1)
	assert.InDelta(t, 100*21.5/20.5, engine.requests[0].SystemCapacity, 1e-9)
	assert.Equal(t, 14.08, engine.requests[0].Losses)

	require.Len(t, pub.results, 1)
	assert.Equal(t, result.ID, pub.results[0].ID)
}

func TestSimulation_MissingLocation(t *testing.T) {
	s, pub := newTestServer(t, &fakeEngine{})

	body := simulationBody()
	body["location"] = map[string]any{"longitude": -105.17}
	rec := doJSON(t, s, http.MethodPost, "/api/v1/simulations", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Group  string   `json:"group"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "location", resp.Group)
	assert.Equal(t, []string{"latitude"}, resp.Fields)
	assert.Empty(t, pub.results)
}

func TestSimulation_UnresolvableModule(t *testing.T) {
	s, _ := newTestServer(t, &fakeEngine{})

	body := simulationBody()
	body["module"] = map[string]any{"efficiency": 0.2}
	rec := doJSON(t, s, http.MethodPost, "/api/v1/simulations", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Group  string   `json:"group"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pv-system", resp.Group)
	assert.ElementsMatch(t, []string{"module_watt_peak", "module_area"}, resp.Fields)
}

func TestSimulation_MalformedBody(t *testing.T) {
	s, _ := newTestServer(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/simulations", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulation_EngineErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"timeout", &pvwatts.EngineError{Kind: pvwatts.KindTimeout, Message: "deadline exceeded"}, http.StatusGatewayTimeout},
		{"unavailable", &pvwatts.EngineError{Kind: pvwatts.KindUnavailable, Message: "circuit breaker is open"}, http.StatusServiceUnavailable},
		{"rejected", &pvwatts.EngineError{Kind: pvwatts.KindEngine, StatusCode: 422, Errors: []string{"tilt must be between 0 and 90"}}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, pub := newTestServer(t, &fakeEngine{err: tt.err})

			rec := doJSON(t, s, http.MethodPost, "/api/v1/simulations", simulationBody())
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.err.Error())
			assert.Empty(t, pub.results)
		})
	}
}

func TestSiteSimulation_SumsArrays(t *testing.T) {
	engine := &fakeEngine{}
	s, _ := newTestServer(t, engine)

	body := map[string]any{
		"location": map[string]any{"latitude": 39.74, "longitude": -105.17},
		"arrays": []map[string]any{
			{"name": "south", "capacity_kw": 60, "tilt": 20, "azimuth": 180},
			{"name": "west", "capacity_kw": 40, "tilt": 15, "azimuth": 270},
			{"name": "planned", "capacity_kw": 0},
		},
		"module":   premiumModule(),
		"inverter": map[string]any{"model": "SG50CX", "power": 50000, "efficiency": 98.5, "quantity": 2, "dc_ac_ratio": 1.1},
	}
	rec := doJSON(t, s, http.MethodPost, "/api/v1/simulations/site", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result yield.CalculationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, engine.requests, 2)
	assert.Len(t, result.System.Arrays, 2)
	assert.InDelta(t, 100*100*12, result.Energy.Metrics.TotalYearly, 1e-6)
	for _, req := range engine.requests {
		assert.InDelta(t, 98.5, req.InverterEfficiency, 1e-9)
		assert.Equal(t, 1.1, req.DCACRatio)
	}
}

func TestSiteSimulation_NoValidSystems(t *testing.T) {
	s, _ := newTestServer(t, &fakeEngine{})

	body := map[string]any{
		"location": map[string]any{"latitude": 39.74, "longitude": -105.17},
		"arrays":   []map[string]any{{"capacity_kw": 0}, {"capacity_kw": 0}},
		"module":   premiumModule(),
	}
	rec := doJSON(t, s, http.MethodPost, "/api/v1/simulations/site", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEstimate_NeverCallsEngine(t *testing.T) {
	engine := &fakeEngine{}
	s, pub := newTestServer(t, engine)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/estimates", simulationBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Approximate bool                    `json:"approximate"`
		Result      yield.CalculationResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Approximate)
	assert.Equal(t, yield.ModeAnalytic, resp.Result.Mode)
	assert.Positive(t, resp.Result.Energy.Metrics.TotalYearly)
	assert.Empty(t, engine.requests)
	assert.Len(t, pub.results, 1)
}

func TestModuleClasses(t *testing.T) {
	s, _ := newTestServer(t, &fakeEngine{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/module-classes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var classes []yield.ModuleClass
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &classes))
	assert.Equal(t, yield.DefaultModuleClasses(), classes)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/module-classes/match?efficiency=0.13", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var match yield.ModuleClassMatch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &match))
	assert.Equal(t, "Standard", match.ClassName)
	assert.InDelta(t, 13.0, match.EfficiencyPercent, 1e-9)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/module-classes/match", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, s, http.MethodGet, "/api/v1/module-classes/match?efficiency=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, &fakeEngine{})

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = doJSON(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pvyield_")
}
