// Package roster loads the candidate facility roster from a JSON document.
// The roster is the default facility source for decision requests that do
// not carry their own facility list.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
)

// Loader reads facilities from a JSON file and serves them as an immutable
// snapshot. It implements domain.FacilitySource. Reload swaps the snapshot
// atomically so in-flight decisions keep the roster they started with.
type Loader struct {
	logger *logrus.Logger
	path   string

	mu         sync.RWMutex
	facilities []domain.Facility
}

// rosterDocument is the on-disk shape. A bare top-level array is also
// accepted for hand-written rosters.
type rosterDocument struct {
	Facilities []domain.Facility `json:"facilities"`
}

// NewLoader creates a roster loader and performs the initial load.
func NewLoader(logger *logrus.Logger, path string) (*Loader, error) {
	l := &Loader{logger: logger, path: path}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the roster file, validating every entry. On any error the
// previous snapshot is kept.
func (l *Loader) Reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to read roster %s: %w", l.path, err)
	}

	var doc rosterDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		// Fall back to a bare array of facilities.
		if arrErr := json.Unmarshal(data, &doc.Facilities); arrErr != nil {
			return fmt.Errorf("failed to parse roster %s: %w", l.path, err)
		}
	}

	seen := make(map[string]bool, len(doc.Facilities))
	for i := range doc.Facilities {
		f := &doc.Facilities[i]
		if err := f.Validate(); err != nil {
			return fmt.Errorf("roster %s entry %d: %w", l.path, i, err)
		}
		if seen[f.ID] {
			return fmt.Errorf("roster %s: duplicate facility_id %q", l.path, f.ID)
		}
		seen[f.ID] = true
	}

	l.mu.Lock()
	l.facilities = doc.Facilities
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"path":       l.path,
		"facilities": len(doc.Facilities),
	}).Info("Facility roster loaded")
	return nil
}

// Facilities returns a copy of the current roster snapshot.
func (l *Loader) Facilities(ctx context.Context) ([]domain.Facility, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Facility, len(l.facilities))
	copy(out, l.facilities)
	return out, nil
}
