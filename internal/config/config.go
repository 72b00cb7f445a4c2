// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
)

// Manager handles application configuration loading and access. It
// implements domain.ConfigManager.
type Manager struct {
	mu     sync.RWMutex
	config *domain.Config
	viper  *viper.Viper
}

// NewManager creates a new configuration manager and loads the configuration
// from file and environment.
func NewManager() (*Manager, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/disaster-agent/")

	v.SetEnvPrefix("DISASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and environment apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	m := &Manager{viper: v}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	var cfg domain.Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *domain.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetServerConfig returns the server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.GetConfig().Server
}

// GetOptimizationConfig returns the transfer cost model tunables.
func (m *Manager) GetOptimizationConfig() *domain.OptimizationConfig {
	return &m.GetConfig().Optimization
}

// Reload re-reads the configuration from its sources.
func (m *Manager) Reload() error {
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to reload config file: %w", err)
		}
	}
	return m.load()
}

// Validate checks the loaded configuration for values the engine cannot
// operate with.
func (m *Manager) Validate() error {
	cfg := m.GetConfig()

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	opt := &cfg.Optimization
	if opt.GroundSpeedKMH <= 0 {
		return fmt.Errorf("ground_speed_kmh must be positive, got %f", opt.GroundSpeedKMH)
	}
	if opt.AirSpeedKMH <= 0 {
		return fmt.Errorf("air_speed_kmh must be positive, got %f", opt.AirSpeedKMH)
	}
	if opt.DefaultSurvivalWindowMinutes <= 0 {
		return fmt.Errorf("default_survival_window_minutes must be positive, got %f", opt.DefaultSurvivalWindowMinutes)
	}
	if opt.Role1DeadlineMinutes <= 0 || opt.Role2DeadlineMinutes <= opt.Role1DeadlineMinutes {
		return fmt.Errorf("role deadlines must satisfy 0 < role1 (%f) < role2 (%f)",
			opt.Role1DeadlineMinutes, opt.Role2DeadlineMinutes)
	}
	if opt.MaxAlternatives < 0 {
		return fmt.Errorf("max_alternatives must not be negative, got %d", opt.MaxAlternatives)
	}
	if opt.SolveTimeBudget <= 0 {
		return fmt.Errorf("solve_time_budget must be positive, got %s", opt.SolveTimeBudget)
	}
	if len(opt.ManagedCapabilities) == 0 {
		return fmt.Errorf("managed_capabilities must not be empty")
	}
	if len(opt.ManagedResources) == 0 {
		return fmt.Errorf("managed_resources must not be empty")
	}

	if cfg.Reasoning.Enabled && cfg.Reasoning.BaseURL == "" {
		return fmt.Errorf("reasoning.base_url is required when reasoning is enabled")
	}
	return nil
}

// setDefaults installs the default tunables. Viper lowercases map keys on
// unmarshal, which is why every severity and capability accessor in the
// domain package does lowercase lookups.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.rate_limit_per_second", 50.0)
	v.SetDefault("server.rate_limit_burst", 100)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Roster defaults
	v.SetDefault("roster.path", "example_data/facilities.json")

	// Reasoning collaborator defaults (disabled unless configured)
	v.SetDefault("reasoning.enabled", false)
	v.SetDefault("reasoning.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("reasoning.model", "anthropic/claude-3.5-sonnet")
	v.SetDefault("reasoning.timeout", 10*time.Second)
	v.SetDefault("reasoning.max_tokens", 300)
	v.SetDefault("reasoning.temperature", 0.2)
	v.SetDefault("reasoning.cache_size", 256)

	// SALT acuity transport priority weights
	v.SetDefault("optimization.acuity_weights", map[string]int{
		"dead":      0,
		"expectant": 80,
		"immediate": 100,
		"delayed":   50,
		"minimal":   10,
		"undefined": 10,
	})

	// Stewardship penalties for parking patients at specialized facilities
	v.SetDefault("optimization.scarcity_penalties", map[string]int{
		"burn":          500,
		"pediatric":     500,
		"obstetric":     500,
		"neurosurgical": 400,
		"cardiac":       300,
		"hepatobiliary": 300,
		"thoracic":      200,
		"vascular":      200,
		"ophthalmology": 100,
		"ent":           100,
		"trauma_center": 0,
		"orthopedic":    0,
	})

	// Affinity of acuity category to echelon level (1 = Role 3 definitive
	// care). Positive scores are subtracted from the pairing cost.
	v.SetDefault("optimization.acuity_level_scores", map[string]map[string]float64{
		"immediate": {"1": 200, "2": 100, "3": 25},
		"expectant": {"1": 150, "2": 100, "3": 25},
		"delayed":   {"1": 25, "2": 100, "3": 50},
		"minimal":   {"1": -100, "2": 0, "3": 100},
		"undefined": {"1": 0, "2": 0, "3": 0},
		"dead":      {"1": 0, "2": 0, "3": 0},
	})

	v.SetDefault("optimization.capability_mismatch_penalty", 10000.0)
	v.SetDefault("optimization.resource_deficit_penalty", 5000.0)
	v.SetDefault("optimization.resource_stress_multiplier", 100.0)
	v.SetDefault("optimization.resource_stress_exponent", 2.0)

	v.SetDefault("optimization.ground_speed_kmh", 50.0)
	v.SetDefault("optimization.air_speed_kmh", 200.0)

	// NATO 10-1-2 cumulative timeline checkpoints
	v.SetDefault("optimization.role1_deadline_minutes", 60.0)
	v.SetDefault("optimization.role2_deadline_minutes", 120.0)
	v.SetDefault("optimization.default_survival_window_minutes", 24*60.0)

	v.SetDefault("optimization.max_alternatives", 3)
	v.SetDefault("optimization.solve_time_budget", 5*time.Second)

	v.SetDefault("optimization.managed_capabilities", []string{
		"trauma_center",
		"neurosurgical",
		"orthopedic",
		"ophthalmology",
		"burn",
		"pediatric",
		"obstetric",
		"cardiac",
		"thoracic",
		"vascular",
		"ent",
		"hepatobiliary",
	})
	v.SetDefault("optimization.managed_resources", []string{
		"ward",
		"ordinary_icu",
		"operating_room",
		"ventilator",
		"prbc_unit",
		"isolation",
		"decontamination_unit",
		"ct_scanner",
		"oxygen_cylinder",
		"interventional_radiology",
	})
}
