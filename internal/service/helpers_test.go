package service

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testOptimizationConfig() *domain.OptimizationConfig {
	return &domain.OptimizationConfig{
		AcuityWeights: map[string]int{
			"dead":      0,
			"expectant": 80,
			"immediate": 100,
			"delayed":   50,
			"minimal":   10,
			"undefined": 10,
		},
		ScarcityPenalties: map[string]int{
			"burn":          500,
			"pediatric":     500,
			"neurosurgical": 400,
			"trauma_center": 0,
		},
		AcuityLevelScores: map[string]map[string]float64{
			"immediate": {"1": 200, "2": 100, "3": 25},
			"expectant": {"1": 150, "2": 100, "3": 25},
			"delayed":   {"1": 25, "2": 100, "3": 50},
			"minimal":   {"1": -100, "2": 0, "3": 100},
			"undefined": {"1": 0, "2": 0, "3": 0},
			"dead":      {"1": 0, "2": 0, "3": 0},
		},
		CapabilityMismatchPenalty: 10000,
		ResourceDeficitPenalty:    5000,
		ResourceStressMultiplier:  100,
		ResourceStressExponent:    2,

		GroundSpeedKMH: 50,
		AirSpeedKMH:    200,

		Role1DeadlineMinutes:         60,
		Role2DeadlineMinutes:         120,
		DefaultSurvivalWindowMinutes: 1440,

		MaxAlternatives: 3,
		SolveTimeBudget: 2 * time.Second,

		ManagedCapabilities: []string{"trauma_center", "neurosurgical", "burn", "pediatric"},
		ManagedResources:    []string{"ward", "ordinary_icu", "ventilator"},
	}
}

func loc(lat, lon float64) *domain.Location {
	return &domain.Location{Latitude: lat, Longitude: lon}
}

// latOffsetKM converts a north-south distance in kilometers into degrees of
// latitude, keeping test geometry readable.
func latOffsetKM(km float64) float64 {
	return km / 111.19
}
