package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/harrison/bookcheck/internal/filelock"
	"github.com/harrison/bookcheck/internal/models"
)

// DefaultArtifactPath is where the machine-readable report is written,
// relative to the book root.
const DefaultArtifactPath = "test/extracted-examples/validation-report.json"

// WriteArtifact writes rep as indented JSON to path. Concurrent writers are
// serialized through a lock file next to path and readers never see a
// partially written report.
func WriteArtifact(ctx context.Context, path string, rep models.ValidationReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')
	if err := filelock.LockAndWrite(ctx, path, data); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// ReadArtifact loads a report previously written by WriteArtifact.
func ReadArtifact(path string) (models.ValidationReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ValidationReport{}, err
	}
	var rep models.ValidationReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return models.ValidationReport{}, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return rep, nil
}
