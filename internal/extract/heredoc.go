package extract

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/harrison/bookcheck/internal/models"
)

// Heredoc openers:
//
//	cat > FILE << 'EOF'
//	cat <<-"EOF" > FILE
var (
	heredocFileFirst  = regexp.MustCompile(`^\s*cat\s+>\s*(\S+)\s+<<(-?)\s*['"]?([A-Za-z_][A-Za-z0-9_]*)['"]?\s*$`)
	heredocTokenFirst = regexp.MustCompile(`^\s*cat\s+<<(-?)\s*['"]?([A-Za-z_][A-Za-z0-9_]*)['"]?\s*>\s*(\S+)\s*$`)

	echoDescription = regexp.MustCompile(`^\s*echo\s+(?:-e\s+)?["']?(.*?)["']?\s*$`)
)

// heredocOpen is a parsed heredoc opener line.
type heredocOpen struct {
	file      string
	token     string
	stripTabs bool
}

func parseHeredocOpen(line string) (heredocOpen, bool) {
	if m := heredocFileFirst.FindStringSubmatch(line); m != nil {
		return heredocOpen{file: unquote(m[1]), token: m[3], stripTabs: m[2] == "-"}, true
	}
	if m := heredocTokenFirst.FindStringSubmatch(line); m != nil {
		return heredocOpen{file: unquote(m[3]), token: m[2], stripTabs: m[1] == "-"}, true
	}
	return heredocOpen{}, false
}

func unquote(s string) string {
	return strings.Trim(s, `"'`)
}

func (e *Extractor) keepsFile(file string) bool {
	if e.opts.Extension == "" {
		return true
	}
	return strings.EqualFold(filepath.Ext(file), e.opts.Extension)
}

func (e *Extractor) extractHeredoc(sourceFile string, content []byte) ([]models.Example, error) {
	lines := strings.Split(string(content), "\n")

	var examples []models.Example
	ordinal := 0
	for i := 0; i < len(lines); i++ {
		open, ok := parseHeredocOpen(lines[i])
		if !ok {
			continue
		}

		end := -1
		for j := i + 1; j < len(lines); j++ {
			candidate := strings.TrimRight(lines[j], "\r")
			if open.stripTabs {
				candidate = strings.TrimLeft(candidate, "\t")
			}
			if candidate == open.token {
				end = j
				break
			}
		}
		if end < 0 {
			return nil, &FormatError{
				File:   sourceFile,
				Line:   i + 1,
				Reason: fmt.Sprintf("heredoc for %s is missing its %s terminator", open.file, open.token),
			}
		}

		body := lines[i+1 : end]
		openLine := i
		i = end

		if !e.keepsFile(open.file) {
			continue
		}
		code := strings.TrimSpace(strings.Join(body, "\n"))
		if code == "" {
			continue
		}

		ordinal++
		examples = append(examples, models.Example{
			SourceFile:     sourceFile,
			StartLine:      openLine + 2,
			Ordinal:        ordinal,
			Code:           code,
			DeclaredStatus: ParseStatus(code),
			Description:    heredocDescription(lines, openLine, open.file),
			FileName:       filepath.Base(open.file),
		})
	}
	return examples, nil
}

// heredocDescription reads the annotation on the line above the opener:
// an `echo "📝 ..."` banner or a shell comment. Anything else falls back to the file name.
func heredocDescription(lines []string, openLine int, file string) string {
	if openLine == 0 {
		return file
	}
	above := strings.TrimSpace(lines[openLine-1])
	var desc string
	switch {
	case strings.HasPrefix(above, "#!"):
	case strings.HasPrefix(above, "#"):
		desc = strings.TrimLeft(above, "# ")
	case strings.HasPrefix(above, "echo"):
		if m := echoDescription.FindStringSubmatch(above); m != nil {
			desc = m[1]
		}
	}
	desc = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(desc), "📝"))
	if desc == "" {
		return file
	}
	return desc
}
