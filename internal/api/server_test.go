package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
	"github.com/lorenz-liu/disaster-agent/internal/service"
	"github.com/lorenz-liu/disaster-agent/internal/solver"
)

type stubConfigManager struct {
	cfg *domain.Config
}

func (s *stubConfigManager) GetConfig() *domain.Config                         { return s.cfg }
func (s *stubConfigManager) GetServerConfig() *domain.ServerConfig             { return &s.cfg.Server }
func (s *stubConfigManager) GetOptimizationConfig() *domain.OptimizationConfig { return &s.cfg.Optimization }
func (s *stubConfigManager) Reload() error                                     { return nil }
func (s *stubConfigManager) Validate() error                                   { return nil }

type stubRoster struct {
	facilities []domain.Facility
	err        error
}

func (s *stubRoster) Facilities(ctx context.Context) ([]domain.Facility, error) {
	return s.facilities, s.err
}

func testConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{
			Host:               "127.0.0.1",
			Port:               0,
			RateLimitPerSecond: 1000,
			RateLimitBurst:     1000,
		},
		Logging: domain.LoggingConfig{Level: "error", Format: "json"},
		Optimization: domain.OptimizationConfig{
			AcuityWeights: map[string]int{
				"dead": 0, "expectant": 80, "immediate": 100,
				"delayed": 50, "minimal": 10, "undefined": 10,
			},
			AcuityLevelScores: map[string]map[string]float64{
				"immediate": {"1": 200, "2": 100, "3": 25},
			},
			CapabilityMismatchPenalty:    10000,
			ResourceDeficitPenalty:       5000,
			ResourceStressMultiplier:     100,
			ResourceStressExponent:       2,
			GroundSpeedKMH:               50,
			AirSpeedKMH:                  200,
			Role1DeadlineMinutes:         60,
			Role2DeadlineMinutes:         120,
			DefaultSurvivalWindowMinutes: 1440,
			MaxAlternatives:              3,
			SolveTimeBudget:              2 * time.Second,
			ManagedCapabilities:          []string{"trauma_center", "neurosurgical"},
			ManagedResources:             []string{"ward", "ordinary_icu"},
		},
	}
}

func rosterFacilities() []domain.Facility {
	return []domain.Facility{
		{
			ID: "near", Name: "Near Hospital", Level: domain.LevelDefinitiveCare,
			Location: &domain.Location{Latitude: 0.1, Longitude: 0},
		},
		{
			ID: "far", Name: "Far Hospital", Level: domain.LevelDefinitiveCare,
			Location: &domain.Location{Latitude: 0.5, Longitude: 0},
		},
	}
}

func newTestServer(roster domain.FacilitySource) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cm := &stubConfigManager{cfg: testConfig()}
	backend := solver.NewBranchAndBound(logger)
	transfers := service.NewTransferService(logger, cm.GetOptimizationConfig(), backend, nil)
	return NewServer(logger, cm, transfers, roster)
}

func performJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&stubRoster{})
	rec := performJSON(t, s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestDecideEndpoint(t *testing.T) {
	s := newTestServer(&stubRoster{facilities: rosterFacilities()})

	rec := performJSON(t, s, http.MethodPost, "/api/v1/transfer/decide", map[string]interface{}{
		"patient": map[string]interface{}{
			"patient_id": "p1",
			"acuity":     "Immediate",
			"location":   map[string]float64{"latitude": 0, "longitude": 0},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, domain.TRANSFER, decision.Action)
	assert.Equal(t, domain.TransferOptimal, decision.ReasoningCode)
	require.NotNil(t, decision.Destination)
	assert.Equal(t, "near", decision.Destination.FacilityID)
	assert.NotEmpty(t, decision.DecisionID)
}

func TestDecideEndpointInlineFacilities(t *testing.T) {
	// Facilities in the request body override the roster entirely.
	s := newTestServer(&stubRoster{err: errors.New("roster must not be consulted")})

	rec := performJSON(t, s, http.MethodPost, "/api/v1/transfer/decide", map[string]interface{}{
		"patient": map[string]interface{}{
			"patient_id": "p1",
			"acuity":     "Delayed",
			"location":   map[string]float64{"latitude": 0, "longitude": 0},
		},
		"facilities": []map[string]interface{}{
			{
				"facility_id": "inline",
				"name":        "Inline Hospital",
				"level":       2,
				"location":    map[string]float64{"latitude": 0.1, "longitude": 0},
			},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	require.NotNil(t, decision.Destination)
	assert.Equal(t, "inline", decision.Destination.FacilityID)
}

func TestDecideEndpointMEDEVAC(t *testing.T) {
	facilities := []domain.Facility{
		{ID: "r1", Name: "Aid Post", Level: domain.LevelStabilization,
			Location: &domain.Location{Latitude: 0.1, Longitude: 0}},
		{ID: "r3", Name: "Medical Center", Level: domain.LevelDefinitiveCare,
			Location: &domain.Location{Latitude: 0.3, Longitude: 0}},
	}
	s := newTestServer(&stubRoster{facilities: facilities})

	rec := performJSON(t, s, http.MethodPost, "/api/v1/transfer/decide", map[string]interface{}{
		"patient": map[string]interface{}{
			"patient_id": "p1",
			"acuity":     "Immediate",
			"location":   map[string]float64{"latitude": 0, "longitude": 0},
		},
		"incident_type": "MEDEVAC",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, domain.EvacuationChainOptimal, decision.ReasoningCode)
	assert.NotEmpty(t, decision.EvacuationChain)
}

func TestDecideEndpointValidation(t *testing.T) {
	s := newTestServer(&stubRoster{facilities: rosterFacilities()})

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "missing patient",
			body: map[string]interface{}{},
		},
		{
			name: "missing patient_id",
			body: map[string]interface{}{
				"patient": map[string]interface{}{"acuity": "Immediate"},
			},
		},
		{
			name: "unknown acuity",
			body: map[string]interface{}{
				"patient": map[string]interface{}{"patient_id": "p1", "acuity": "Critical"},
			},
		},
		{
			name: "invalid inline facility",
			body: map[string]interface{}{
				"patient":    map[string]interface{}{"patient_id": "p1", "acuity": "Immediate"},
				"facilities": []map[string]interface{}{{"facility_id": "f1", "level": 2}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := performJSON(t, s, http.MethodPost, "/api/v1/transfer/decide", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
		})
	}
}

func TestDecideEndpointUnknownIncidentTypeDispatchesSingle(t *testing.T) {
	s := newTestServer(&stubRoster{facilities: rosterFacilities()})

	rec := performJSON(t, s, http.MethodPost, "/api/v1/transfer/decide", map[string]interface{}{
		"patient": map[string]interface{}{
			"patient_id": "p1",
			"acuity":     "Immediate",
			"location":   map[string]float64{"latitude": 0, "longitude": 0},
		},
		"incident_type": "EARTHQUAKE",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, domain.TransferOptimal, decision.ReasoningCode)
	require.NotNil(t, decision.Destination)
	assert.Empty(t, decision.EvacuationChain)
}

func TestDecideEndpointDefaultsAcuityToUndefined(t *testing.T) {
	s := newTestServer(&stubRoster{facilities: rosterFacilities()})

	rec := performJSON(t, s, http.MethodPost, "/api/v1/transfer/decide", map[string]interface{}{
		"patient": map[string]interface{}{
			"patient_id": "p1",
			"location":   map[string]float64{"latitude": 0, "longitude": 0},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, domain.TRANSFER, decision.Action)
}

func TestBatchEndpoint(t *testing.T) {
	s := newTestServer(&stubRoster{facilities: rosterFacilities()})

	rec := performJSON(t, s, http.MethodPost, "/api/v1/transfer/batch", map[string]interface{}{
		"patients": []map[string]interface{}{
			{
				"patient_id": "p1",
				"acuity":     "Immediate",
				"location":   map[string]float64{"latitude": 0, "longitude": 0},
			},
			{
				"patient_id": "p2",
				"acuity":     "Dead",
			},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Decisions map[string]*domain.Decision `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Decisions, 2)
	assert.Equal(t, domain.TRANSFER, resp.Decisions["p1"].Action)
	assert.Equal(t, domain.FORFEIT, resp.Decisions["p2"].Action)
	assert.Equal(t, domain.PatientDeceased, resp.Decisions["p2"].ReasoningCode)
}

func TestBatchEndpointValidation(t *testing.T) {
	s := newTestServer(&stubRoster{facilities: rosterFacilities()})

	t.Run("empty patients", func(t *testing.T) {
		rec := performJSON(t, s, http.MethodPost, "/api/v1/transfer/batch",
			map[string]interface{}{"patients": []map[string]interface{}{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("patient without id", func(t *testing.T) {
		rec := performJSON(t, s, http.MethodPost, "/api/v1/transfer/batch",
			map[string]interface{}{"patients": []map[string]interface{}{{"acuity": "Immediate"}}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFacilitiesEndpoint(t *testing.T) {
	s := newTestServer(&stubRoster{facilities: rosterFacilities()})

	rec := performJSON(t, s, http.MethodGet, "/api/v1/facilities", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Facilities []domain.Facility `json:"facilities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Facilities, 2)
}

func TestFacilitiesEndpointRosterError(t *testing.T) {
	s := newTestServer(&stubRoster{err: errors.New("disk gone")})

	rec := performJSON(t, s, http.MethodGet, "/api/v1/facilities", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "ROSTER_ERROR")
}

func TestRosterErrorOnDecide(t *testing.T) {
	s := newTestServer(&stubRoster{err: errors.New("disk gone")})

	rec := performJSON(t, s, http.MethodPost, "/api/v1/transfer/decide", map[string]interface{}{
		"patient": map[string]interface{}{
			"patient_id": "p1",
			"acuity":     "Immediate",
			"location":   map[string]float64{"latitude": 0, "longitude": 0},
		},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "ROSTER_ERROR")
}
