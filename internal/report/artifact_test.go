package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultArtifactPath)
	rep := sampleReport().WithVerdict(true, nil)

	require.NoError(t, WriteArtifact(context.Background(), path, rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "run-1", raw["run_id"])
	assert.Equal(t, true, raw["gate_passed"])
	assert.Contains(t, raw, "tools")
	assert.Contains(t, raw, "examples")
	assert.NotContains(t, raw, "coverage", "omitted when absent")

	back, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, rep.PassRate, back.PassRate)
	assert.Equal(t, len(rep.Examples), len(back.Examples))
	assert.Equal(t, rep.Totals, back.Totals)
}

func TestReadArtifact_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := ReadArtifact(path)
	assert.Error(t, err)
}
