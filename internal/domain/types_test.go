package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityIsValid(t *testing.T) {
	for _, s := range []Severity{DEAD, EXPECTANT, IMMEDIATE, DELAYED, MINIMAL, UNDEFINED} {
		assert.True(t, s.IsValid(), string(s))
	}
	assert.False(t, Severity("Critical").IsValid())
	assert.False(t, Severity("").IsValid())
	assert.False(t, Severity("dead").IsValid(), "severity values are case sensitive")
}

func TestSeverityTerminal(t *testing.T) {
	assert.True(t, DEAD.Terminal())
	for _, s := range []Severity{EXPECTANT, IMMEDIATE, DELAYED, MINIMAL, UNDEFINED} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestIncidentTypeIsValid(t *testing.T) {
	for _, it := range []IncidentType{MCI, MEDEVAC, PHE} {
		assert.True(t, it.IsValid(), string(it))
	}
	assert.False(t, IncidentType("EARTHQUAKE").IsValid())
	assert.False(t, IncidentType("").IsValid())
}

func TestFacilityLevelRole(t *testing.T) {
	tests := []struct {
		level FacilityLevel
		role  string
	}{
		{LevelDefinitiveCare, "Role 3"},
		{LevelAdvancedTrauma, "Role 2"},
		{LevelStabilization, "Role 1"},
		{FacilityLevel(0), "Unknown"},
		{FacilityLevel(7), "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.role, tt.level.Role())
	}
}

func TestFacilityLevelIsValid(t *testing.T) {
	assert.True(t, LevelDefinitiveCare.IsValid())
	assert.True(t, LevelAdvancedTrauma.IsValid())
	assert.True(t, LevelStabilization.IsValid())
	assert.False(t, FacilityLevel(0).IsValid())
	assert.False(t, FacilityLevel(4).IsValid())
}

func TestFacilityValidate(t *testing.T) {
	valid := Facility{ID: "f1", Name: "Aid Post", Level: LevelStabilization}
	assert.NoError(t, valid.Validate())

	missingID := Facility{Name: "Aid Post", Level: LevelStabilization}
	assert.Error(t, missingID.Validate())

	missingName := Facility{ID: "f1", Level: LevelStabilization}
	assert.Error(t, missingName.Validate())

	badLevel := Facility{ID: "f1", Name: "Aid Post", Level: 9}
	assert.ErrorIs(t, badLevel.Validate(), ErrInvalidFacilityLevel)
}

func TestOptimizationConfigAccessors(t *testing.T) {
	cfg := &OptimizationConfig{
		AcuityWeights: map[string]int{"immediate": 100, "undefined": 10},
		AcuityLevelScores: map[string]map[string]float64{
			"immediate": {"1": 200, "3": 25},
		},
		ScarcityPenalties:        map[string]int{"burn": 500},
		ResourceDeficitPenalty:   5000,
		ResourceStressMultiplier: 100,
		ResourceStressExponent:   2,
		GroundSpeedKMH:           50,
		AirSpeedKMH:              200,
	}

	t.Run("acuity weight falls back to undefined then constant", func(t *testing.T) {
		assert.Equal(t, 100.0, cfg.AcuityWeight(IMMEDIATE))
		assert.Equal(t, 10.0, cfg.AcuityWeight(DELAYED))

		bare := &OptimizationConfig{}
		assert.Equal(t, 10.0, bare.AcuityWeight(IMMEDIATE))
	})

	t.Run("acuity level score zero for missing entries", func(t *testing.T) {
		assert.Equal(t, 200.0, cfg.AcuityLevelScore(IMMEDIATE, LevelDefinitiveCare))
		assert.Equal(t, 0.0, cfg.AcuityLevelScore(IMMEDIATE, LevelAdvancedTrauma))
		assert.Equal(t, 0.0, cfg.AcuityLevelScore(MINIMAL, LevelDefinitiveCare))
	})

	t.Run("resource stress", func(t *testing.T) {
		// (2/4)^2 * 100
		assert.InDelta(t, 25.0, cfg.ResourceStress(2, 4), 0.001)
		// Zero availability is priced as a full deficit.
		assert.Equal(t, 5000.0, cfg.ResourceStress(1, 0))
	})

	t.Run("transport speeds", func(t *testing.T) {
		assert.Equal(t, 50.0, cfg.SpeedKMH(GroundTransport))
		assert.Equal(t, 200.0, cfg.SpeedKMH(AirTransport))
		assert.Equal(t, 50.0, cfg.SpeedKMH(TransportMode("hovercraft")))
	})
}
