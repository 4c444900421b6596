package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/harrison/bookcheck/internal/models"
)

// statusLinePattern finds a "// Status: ..." (or "# Status: ...") annotation line.
var statusLinePattern = regexp.MustCompile(`(?im)^[ \t]*(?://|#)[ \t]*Status:[ \t]*(.*)$`)

// docStatusPattern matches the per-file status header block.
var docStatusPattern = regexp.MustCompile(`(?s)<!--\s*DOC_STATUS_START\s*-->.*?<!--\s*DOC_STATUS_END\s*-->`)

// statusVocabulary maps marker words to dispositions. Order matters:
// longer phrases are tried first.
var statusVocabulary = []struct {
	words       []string
	disposition models.Disposition
}{
	{[]string{"NOT IMPLEMENTED", "NOT_IMPLEMENTED", "NOT-IMPLEMENTED"}, models.DispositionNotImplemented},
	{[]string{"WORKING"}, models.DispositionWorking},
	{[]string{"BROKEN"}, models.DispositionBroken},
	{[]string{"PLANNED"}, models.DispositionPlanned},
}

// ParseStatus returns the disposition declared by the first status annotation in code.
// Missing or unrecognized annotations yield DispositionUnannotated.
func ParseStatus(code string) models.Disposition {
	m := statusLinePattern.FindStringSubmatch(code)
	if m == nil {
		return models.DispositionUnannotated
	}
	return parseStatusValue(m[1])
}

// parseStatusValue strips the emoji prefix and matches the closed vocabulary.
func parseStatusValue(value string) models.Disposition {
	word := strings.TrimLeftFunc(strings.ToUpper(value), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, entry := range statusVocabulary {
		for _, w := range entry.words {
			if strings.HasPrefix(word, w) {
				return entry.disposition
			}
		}
	}
	return models.DispositionUnannotated
}

// HasStatusHeader reports whether a chapter carries the DOC_STATUS header block.
func HasStatusHeader(content []byte) bool {
	return docStatusPattern.Match(content)
}
