package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/harrison/bookcheck/internal/models"
)

// skipTestPattern matches `<!-- skip-test: reason -->` placed right before a fence.
var skipTestPattern = regexp.MustCompile(`^\s*<!--\s*skip-test(?::\s*(.*?))?\s*-->\s*$`)

const defaultSkipReason = "marked as skip-test"

// fenceMarker is a parsed fence line.
type fenceMarker struct {
	char   byte
	length int
	info   string
	line   int
}

// parseFence recognizes a fence line: three or more backticks or tildes,
// optionally followed by an info string.
func parseFence(line string) (fenceMarker, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if len(trimmed) < 3 {
		return fenceMarker{}, false
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return fenceMarker{}, false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return fenceMarker{}, false
	}
	info := strings.TrimSpace(trimmed[n:])
	if c == '`' && strings.Contains(info, "`") {
		// Inline code span, not a fence.
		return fenceMarker{}, false
	}
	return fenceMarker{char: c, length: n, info: info}, true
}

// validateFences checks that every fence is closed before the next one opens.
// The markdown parser itself treats an unterminated fence as running to the
// end of the document, which would silently swallow later examples.
func validateFences(sourceFile string, lines []string) error {
	var open *fenceMarker
	for i, line := range lines {
		f, ok := parseFence(line)
		if !ok {
			continue
		}
		f.line = i + 1
		if open == nil {
			open = &f
			continue
		}
		if f.char != open.char || f.length < open.length {
			continue
		}
		if f.info == "" {
			open = nil
			continue
		}
		return &FormatError{
			File:   sourceFile,
			Line:   f.line,
			Reason: fmt.Sprintf("code fence %q opened inside the block started at line %d (missing closing fence?)", f.info, open.line),
		}
	}
	if open != nil {
		return &FormatError{
			File:   sourceFile,
			Line:   open.line,
			Reason: "unterminated code fence",
		}
	}
	return nil
}

func (e *Extractor) matchesLanguage(lang string) bool {
	// mdbook style attributes: ```ruchy,ignore
	if i := strings.IndexAny(lang, ", "); i >= 0 {
		lang = lang[:i]
	}
	return strings.EqualFold(lang, e.opts.Language)
}

func (e *Extractor) extractProse(sourceFile string, content []byte) ([]models.Example, error) {
	lines := strings.Split(string(content), "\n")
	if err := validateFences(sourceFile, lines); err != nil {
		return nil, err
	}

	doc := e.markdown.Parser().Parse(text.NewReader(content))

	var examples []models.Example
	ordinal := 0
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !e.matchesLanguage(string(block.Language(content))) {
			return ast.WalkSkipChildren, nil
		}

		code, startLine := blockBody(block, content)
		code = strings.TrimSpace(code)
		if code == "" {
			return ast.WalkSkipChildren, nil
		}

		ordinal++
		examples = append(examples, models.Example{
			SourceFile:     sourceFile,
			StartLine:      startLine,
			Ordinal:        ordinal,
			Code:           code,
			DeclaredStatus: ParseStatus(code),
			SkipReason:     skipReasonBefore(lines, startLine-1),
		})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", sourceFile, err)
	}
	return examples, nil
}

// blockBody concatenates the block's lines and returns the 1-based line of the first one.
func blockBody(block *ast.FencedCodeBlock, source []byte) (string, int) {
	segments := block.Lines()
	if segments.Len() == 0 {
		return "", 0
	}
	var buf bytes.Buffer
	for i := 0; i < segments.Len(); i++ {
		seg := segments.At(i)
		buf.Write(seg.Value(source))
	}
	first := segments.At(0)
	startLine := bytes.Count(source[:first.Start], []byte("\n")) + 1
	return buf.String(), startLine
}

// skipReasonBefore looks at the nearest non-blank line above the fence line
// (1-based fenceLine) for a skip-test marker.
func skipReasonBefore(lines []string, fenceLine int) string {
	for i := fenceLine - 2; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		m := skipTestPattern.FindStringSubmatch(lines[i])
		if m == nil {
			return ""
		}
		if reason := strings.TrimSpace(m[1]); reason != "" {
			return reason
		}
		return defaultSkipReason
	}
	return ""
}
