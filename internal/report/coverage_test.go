package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLCOV = `TN:
SF:src/lexer.rs
FN:10,next_token
FNDA:4,next_token
LF:100
LH:80
FNF:10
FNH:9
BRF:20
BRH:10
end_of_record
`

func TestParseLCOV_WeightedOverall(t *testing.T) {
	cov, err := ParseLCOV(strings.NewReader(sampleLCOV))
	require.NoError(t, err)

	assert.Equal(t, 100, cov.LinesFound)
	assert.Equal(t, 80, cov.LinesHit)
	assert.InDelta(t, 80.0, cov.Line, 1e-9)
	assert.InDelta(t, 90.0, cov.Function, 1e-9)
	assert.InDelta(t, 50.0, cov.Branch, 1e-9)
	assert.InDelta(t, 77.0, cov.Overall, 1e-9)
}

func TestParseLCOV_RecordOrderIndependent(t *testing.T) {
	records := []string{"LF:100", "LH:80", "FNF:10", "FNH:9", "BRF:20", "BRH:10"}
	want, err := ParseLCOV(strings.NewReader(strings.Join(records, "\n")))
	require.NoError(t, err)

	permutations := [][]int{
		{5, 4, 3, 2, 1, 0},
		{1, 3, 5, 0, 2, 4},
		{2, 0, 4, 1, 5, 3},
	}
	for _, perm := range permutations {
		var lines []string
		for _, i := range perm {
			lines = append(lines, records[i])
		}
		got, err := ParseLCOV(strings.NewReader(strings.Join(lines, "\n")))
		require.NoError(t, err)
		assert.Equal(t, want, got, "order %v", perm)
	}
}

func TestParseLCOV_SumsAcrossFiles(t *testing.T) {
	input := "SF:a\nLF:10\nLH:5\nend_of_record\nSF:b\nLF:30\nLH:25\nend_of_record\n"
	cov, err := ParseLCOV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 40, cov.LinesFound)
	assert.Equal(t, 30, cov.LinesHit)
	assert.InDelta(t, 75.0, cov.Line, 1e-9)
	assert.Equal(t, 0.0, cov.Function, "no functions found scores zero")
	assert.InDelta(t, 37.5, cov.Overall, 1e-9)
}

func TestParseLCOV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "non numeric", input: "LF:abc\n", wantErr: "line 1: invalid LF"},
		{name: "negative", input: "SF:x\nBRH:-1\n", wantErr: "line 2: invalid BRH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLCOV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLCOV_IgnoresUnknownRecords(t *testing.T) {
	cov, err := ParseLCOV(strings.NewReader("VER:2\nDA:1,not-a-number\nLF:4\nLH:4\nweird line\n"))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, cov.Line, 1e-9)
	assert.InDelta(t, 50.0, cov.Overall, 1e-9)
}

func TestLoadLCOV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.lcov")
	require.NoError(t, os.WriteFile(path, []byte(sampleLCOV), 0o644))

	cov, err := LoadLCOV(path)
	require.NoError(t, err)
	assert.InDelta(t, 77.0, cov.Overall, 1e-9)

	_, err = LoadLCOV(filepath.Join(t.TempDir(), "missing.lcov"))
	assert.True(t, os.IsNotExist(err))
}

func TestWeighted(t *testing.T) {
	assert.InDelta(t, 77.0, Weighted(80, 90, 50), 1e-9)
	assert.InDelta(t, 100.0, Weighted(100, 100, 100), 1e-9)
	assert.Equal(t, 0.0, Weighted(0, 0, 0))
}
