// Package reasoning integrates an OpenAI-compatible chat completion service
// to turn finished transfer decisions into clinician-readable prose. The
// collaborator is strictly advisory: it runs behind a circuit breaker, its
// output is cached, and every failure path yields a templated sentence so
// the decision pipeline never blocks or errors on prose generation.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultCacheSize = 256
	defaultMaxTokens = 300
)

// Generator calls a chat-completions endpoint to narrate transfer decisions.
// It implements domain.ReasoningGenerator.
type Generator struct {
	logger  *logrus.Logger
	cfg     domain.ReasoningConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	cache   *lru.Cache[string, string]
}

// NewGenerator creates the reasoning client. It fails only on cache
// construction; a missing API key or base URL is detected per request and
// degrades to the fallback sentence.
func NewGenerator(logger *logrus.Logger, cfg domain.ReasoningConfig) (*Generator, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	cache, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reasoning-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Generator{
		logger:  logger,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		cache:   cache,
	}, nil
}

// FallbackText is the templated sentence used whenever prose generation is
// unavailable. Callers rely on it never being empty.
func FallbackText(etaMinutes float64) string {
	return fmt.Sprintf("Optimal facility selected using constraint optimization (ETA: %.1f min)", etaMinutes)
}

// Generate returns prose for a finished decision. It never returns an error:
// disabled config, open breaker, transport failures and malformed responses
// all degrade to FallbackText.
func (g *Generator) Generate(ctx context.Context, req *domain.ReasoningRequest) string {
	if req == nil || req.Destination == nil {
		return FallbackText(0)
	}
	fallback := FallbackText(req.ETAMinutes)

	if !g.cfg.Enabled || g.cfg.BaseURL == "" || g.cfg.APIKey == "" {
		return fallback
	}

	key := cacheKey(req)
	if prose, ok := g.cache.Get(key); ok {
		return prose
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.complete(ctx, g.buildPrompt(req))
	})
	if err != nil {
		g.logger.WithError(err).WithField("patient_id", req.Patient.ID).
			Warn("Reasoning generation failed, using fallback")
		return fallback
	}

	prose := strings.TrimSpace(result.(string))
	if prose == "" {
		return fallback
	}
	g.cache.Add(key, prose)
	return prose
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a military medical evacuation coordinator. Explain patient transfer decisions in 2-3 concise sentences for field medics. Use plain clinical language."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := strings.TrimSuffix(g.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// buildPrompt renders the decision context for the model. Only data already
// present on the decision inputs goes in; the prompt never introduces facts
// the engine did not compute.
func (g *Generator) buildPrompt(req *domain.ReasoningRequest) string {
	var sb strings.Builder
	p := req.Patient

	fmt.Fprintf(&sb, "Incident type: %s\n", req.IncidentType)
	fmt.Fprintf(&sb, "Patient %s, triage category %s", p.ID, p.Acuity)
	if p.Age > 0 {
		fmt.Fprintf(&sb, ", age %d", p.Age)
	}
	sb.WriteString("\n")

	if len(p.Injuries) > 0 {
		sb.WriteString("Injuries:\n")
		for _, inj := range p.Injuries {
			fmt.Fprintf(&sb, "- %s", inj.Description)
			if len(inj.Locations) > 0 {
				fmt.Fprintf(&sb, " (%s)", strings.Join(inj.Locations, ", "))
			}
			sb.WriteString("\n")
		}
	}

	if v := p.VitalSigns; v != nil {
		sb.WriteString("Vital signs:")
		if v.HeartRate != nil {
			fmt.Fprintf(&sb, " HR %.0f", *v.HeartRate)
		}
		if v.SystolicBP != nil && v.DiastolicBP != nil {
			fmt.Fprintf(&sb, " BP %.0f/%.0f", *v.SystolicBP, *v.DiastolicBP)
		}
		if v.RespiratoryRate != nil {
			fmt.Fprintf(&sb, " RR %.0f", *v.RespiratoryRate)
		}
		if v.OxygenSaturation != nil {
			fmt.Fprintf(&sb, " SpO2 %.0f%%", *v.OxygenSaturation)
		}
		if v.GlasgowComaScale != nil {
			fmt.Fprintf(&sb, " GCS %d", *v.GlasgowComaScale)
		}
		sb.WriteString("\n")
	}

	if caps := requiredNames(p.RequiredCapabilities); len(caps) > 0 {
		fmt.Fprintf(&sb, "Required capabilities: %s\n", strings.Join(caps, ", "))
	}

	f := req.Destination
	fmt.Fprintf(&sb, "Selected destination: %s (%s), %.1f km away, ETA %.1f minutes\n",
		f.Name, f.Level.Role(), req.DistanceKM, req.ETAMinutes)

	if len(req.Alternatives) > 0 {
		sb.WriteString("Alternatives considered:\n")
		for _, alt := range req.Alternatives {
			fmt.Fprintf(&sb, "- %s (ETA %.1f min)\n", alt.FacilityName, alt.ETAMinutes)
		}
	}
	if req.SolverStatus != "" {
		fmt.Fprintf(&sb, "Optimizer status: %s\n", req.SolverStatus)
	}

	sb.WriteString("Explain why this destination was selected for this patient.")
	return sb.String()
}

func cacheKey(req *domain.ReasoningRequest) string {
	return fmt.Sprintf("%s|%s|%s|%.1f", req.Patient.ID, req.Destination.ID, req.Patient.Acuity, req.ETAMinutes)
}

func requiredNames(required map[string]bool) []string {
	var names []string
	for name, needed := range required {
		if needed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
