package extract

import (
	"fmt"
	"os"

	"github.com/harrison/bookcheck/internal/models"
)

// FileStatus is the annotation audit for one chapter.
type FileStatus struct {
	File        string
	HasHeader   bool
	Examples    int
	Annotated   int
	Unannotated []models.Example
}

// Issues lists what is missing from the chapter, one message per problem.
func (f FileStatus) Issues() []string {
	var issues []string
	if f.Examples > 0 && !f.HasHeader {
		issues = append(issues, fmt.Sprintf("%s: missing DOC_STATUS header block", f.File))
	}
	for _, ex := range f.Unannotated {
		issues = append(issues, fmt.Sprintf("%s: example %d has no status annotation", ex.Location(), ex.Ordinal))
	}
	return issues
}

// Valid reports whether the chapter has nothing to fix.
func (f FileStatus) Valid() bool {
	return len(f.Issues()) == 0
}

// LintFiles audits status annotations in the given chapters. Chapters without
// examples are reported but never need a header.
func (e *Extractor) LintFiles(paths []string) ([]FileStatus, error) {
	results := make([]FileStatus, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		examples, err := e.Extract(models.SourceProse, path, content)
		if err != nil {
			return nil, err
		}
		status := FileStatus{
			File:      path,
			HasHeader: HasStatusHeader(content),
			Examples:  len(examples),
		}
		for _, ex := range examples {
			if ex.DeclaredStatus.IsAnnotated() {
				status.Annotated++
				continue
			}
			status.Unannotated = append(status.Unannotated, ex)
		}
		results = append(results, status)
	}
	return results, nil
}
