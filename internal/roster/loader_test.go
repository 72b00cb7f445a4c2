package roster

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facilities.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderLoadsRoster(t *testing.T) {
	loader, err := NewLoader(testLogger(), "testdata/facilities.json")
	require.NoError(t, err)

	facilities, err := loader.Facilities(context.Background())
	require.NoError(t, err)
	require.Len(t, facilities, 2)

	assert.Equal(t, "fac-1", facilities[0].ID)
	assert.Equal(t, "Field Hospital North", facilities[0].Name)
	assert.Equal(t, domain.LevelAdvancedTrauma, facilities[0].Level)
	require.NotNil(t, facilities[0].Location)
	assert.Equal(t, 40.0, facilities[0].Location.Latitude)
	assert.True(t, facilities[0].Capabilities["trauma_center"])
	assert.Equal(t, 4, facilities[0].Resources["ordinary_icu"])

	assert.Equal(t, "fac-2", facilities[1].ID)
	assert.Equal(t, domain.LevelStabilization, facilities[1].Level)
}

func TestLoaderAcceptsBareArray(t *testing.T) {
	path := writeRoster(t, `[
		{"facility_id": "f1", "name": "Aid Post", "level": 3}
	]`)

	loader, err := NewLoader(testLogger(), path)
	require.NoError(t, err)

	facilities, err := loader.Facilities(context.Background())
	require.NoError(t, err)
	require.Len(t, facilities, 1)
	assert.Equal(t, "f1", facilities[0].ID)
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(testLogger(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoaderRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing facility_id",
			content: `{"facilities": [{"name": "Unnamed", "level": 2}]}`,
		},
		{
			name:    "missing name",
			content: `{"facilities": [{"facility_id": "f1", "level": 2}]}`,
		},
		{
			name:    "invalid level",
			content: `{"facilities": [{"facility_id": "f1", "name": "Aid Post", "level": 9}]}`,
		},
		{
			name:    "duplicate facility_id",
			content: `{"facilities": [{"facility_id": "f1", "name": "A", "level": 1}, {"facility_id": "f1", "name": "B", "level": 2}]}`,
		},
		{
			name:    "not json",
			content: `level: 2`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(testLogger(), writeRoster(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoaderReloadKeepsSnapshotOnError(t *testing.T) {
	path := writeRoster(t, `{"facilities": [{"facility_id": "f1", "name": "Aid Post", "level": 3}]}`)
	loader, err := NewLoader(testLogger(), path)
	require.NoError(t, err)

	// Corrupt the file; Reload must fail but the old snapshot survives.
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	assert.Error(t, loader.Reload())

	facilities, err := loader.Facilities(context.Background())
	require.NoError(t, err)
	require.Len(t, facilities, 1)
	assert.Equal(t, "f1", facilities[0].ID)
}

func TestLoaderReturnsCopies(t *testing.T) {
	path := writeRoster(t, `{"facilities": [{"facility_id": "f1", "name": "Aid Post", "level": 3}]}`)
	loader, err := NewLoader(testLogger(), path)
	require.NoError(t, err)

	first, err := loader.Facilities(context.Background())
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := loader.Facilities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Aid Post", second[0].Name)
}
