package disposition

import (
	"regexp"
	"strings"

	"github.com/harrison/bookcheck/internal/models"
)

var (
	methodPatterns  = []string{"no method named", "has no method", "method not found"}
	parserPatterns  = []string{"unexpected token", "syntax error", "parse error", "invalid syntax"}
	importPatterns  = []string{"unresolved import", "cannot find module"}
	plannedPatterns = []string{"not yet implemented", "planned for", "coming soon", "feature not available"}

	missingMethod = regexp.MustCompile("no method named `([^`]+)`")
)

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Categorize buckets failing tool output by likely cause.
func Categorize(output string) models.ErrorCategory {
	lower := strings.ToLower(output)
	switch {
	case containsAny(lower, methodPatterns):
		return models.CategoryMethod
	case containsAny(lower, parserPatterns):
		return models.CategoryParser
	case containsAny(lower, importPatterns):
		return models.CategoryImport
	case containsAny(lower, plannedPatterns):
		return models.CategoryPlanned
	default:
		return models.CategoryUnknown
	}
}

// RootCause returns a one-line hint for failing tool output.
func RootCause(output string) string {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "no method named"):
		if m := missingMethod.FindStringSubmatch(output); m != nil {
			return "missing method implementation: " + m[1] + "()"
		}
		return "missing method implementation"
	case containsAny(lower, methodPatterns):
		return "missing method implementation"
	case strings.Contains(lower, "unexpected token"):
		return "syntax not recognized by the parser"
	case containsAny(lower, parserPatterns):
		return "parse failure"
	case containsAny(lower, importPatterns):
		return "missing dependency or import path"
	case containsAny(lower, plannedPatterns):
		return "feature planned but not yet available"
	default:
		return "unknown error, needs manual investigation"
	}
}
