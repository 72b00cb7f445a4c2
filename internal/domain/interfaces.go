package domain

import (
	"context"
)

// ReasoningGenerator produces the human-readable rationale attached to an
// already-made Transfer decision. Implementations must never fail past this
// boundary: on any internal error they return a templated fallback sentence.
// The generator is advisory only and must not sit on the correctness path.
type ReasoningGenerator interface {
	Generate(ctx context.Context, req *ReasoningRequest) string
}

// FacilitySource supplies the candidate facility roster. The engine treats
// the returned slice as an immutable snapshot for one decision or batch.
type FacilitySource interface {
	Facilities(ctx context.Context) ([]Facility, error)
}

// ConfigManager defines the interface for configuration management.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetOptimizationConfig() *OptimizationConfig
	Reload() error
	Validate() error
}
