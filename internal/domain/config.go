package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Roster       RosterConfig       `mapstructure:"roster"`
	Reasoning    ReasoningConfig    `mapstructure:"reasoning"`
	Optimization OptimizationConfig `mapstructure:"optimization"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Per-client request budget for the decision endpoints.
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RosterConfig locates the facility roster document.
type RosterConfig struct {
	Path string `mapstructure:"path"`
}

// ReasoningConfig configures the external reasoning collaborator. The
// collaborator is advisory: any failure degrades the prose, never the
// decision, so every field here is safe to leave unset.
type ReasoningConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	CacheSize   int           `mapstructure:"cache_size"`
}

// OptimizationConfig carries every tunable of the transfer cost model and
// the two decision paths. Nothing in the engine hardwires these values:
// deployments retune by configuration, tests inject simplified tables.
type OptimizationConfig struct {
	// AcuityWeights multiply the ETA to form the time cost. Keys are
	// lowercase SALT severities.
	AcuityWeights map[string]int `mapstructure:"acuity_weights"`

	// ScarcityPenalties charge the pooled optimizer for parking a patient at
	// a facility whose specialized capability the patient does not need.
	ScarcityPenalties map[string]int `mapstructure:"scarcity_penalties"`

	// AcuityLevelScores reward matching acuity to echelon level; positive
	// scores are subtracted from cost. Outer keys are lowercase severities,
	// inner keys facility levels ("1".."3").
	AcuityLevelScores map[string]map[string]float64 `mapstructure:"acuity_level_scores"`

	CapabilityMismatchPenalty float64 `mapstructure:"capability_mismatch_penalty"`
	ResourceDeficitPenalty    float64 `mapstructure:"resource_deficit_penalty"`
	ResourceStressMultiplier  float64 `mapstructure:"resource_stress_multiplier"`
	ResourceStressExponent    float64 `mapstructure:"resource_stress_exponent"`

	GroundSpeedKMH float64 `mapstructure:"ground_speed_kmh"`
	AirSpeedKMH    float64 `mapstructure:"air_speed_kmh"`

	// NATO 10-1-2 timeline checkpoints, cumulative minutes from start.
	Role1DeadlineMinutes float64 `mapstructure:"role1_deadline_minutes"`
	Role2DeadlineMinutes float64 `mapstructure:"role2_deadline_minutes"`

	// Survival window assumed when the triage record predicts no death time.
	DefaultSurvivalWindowMinutes float64 `mapstructure:"default_survival_window_minutes"`

	MaxAlternatives int           `mapstructure:"max_alternatives"`
	SolveTimeBudget time.Duration `mapstructure:"solve_time_budget"`

	// Catalogs over which patient requirement and facility supply vectors
	// are interpreted.
	ManagedCapabilities []string `mapstructure:"managed_capabilities"`
	ManagedResources    []string `mapstructure:"managed_resources"`
}

// AcuityWeight returns the priority weight for a severity. Unknown or
// undefined severities map to a low default, never to an error.
func (c *OptimizationConfig) AcuityWeight(s Severity) float64 {
	if w, ok := c.AcuityWeights[strings.ToLower(string(s))]; ok {
		return float64(w)
	}
	if w, ok := c.AcuityWeights[strings.ToLower(string(UNDEFINED))]; ok {
		return float64(w)
	}
	return 10
}

// ScarcityPenalty returns the stewardship penalty for one capability.
// Capabilities outside the table are treated as commodity.
func (c *OptimizationConfig) ScarcityPenalty(capability string) float64 {
	return float64(c.ScarcityPenalties[strings.ToLower(capability)])
}

// AcuityLevelScore returns the affinity bonus for assigning a severity to a
// facility level. Missing entries score zero.
func (c *OptimizationConfig) AcuityLevelScore(s Severity, level FacilityLevel) float64 {
	row, ok := c.AcuityLevelScores[strings.ToLower(string(s))]
	if !ok {
		return 0
	}
	return row[strconv.Itoa(int(level))]
}

// ResourceStress computes the congestion penalty for one resource type. An
// availability of zero or less with a positive requirement is an automatic
// deficit rather than a stress signal.
func (c *OptimizationConfig) ResourceStress(required, available int) float64 {
	if available <= 0 {
		return c.ResourceDeficitPenalty
	}
	utilization := float64(required) / float64(available)
	return math.Pow(utilization, c.ResourceStressExponent) * c.ResourceStressMultiplier
}

// SpeedKMH returns the speed constant for a transport mode.
func (c *OptimizationConfig) SpeedKMH(mode TransportMode) float64 {
	if mode == AirTransport {
		return c.AirSpeedKMH
	}
	return c.GroundSpeedKMH
}
