// Package extract pulls candidate code examples out of book chapters and
// shell test scripts.
//
// Two source kinds are supported: markdown prose with fenced code blocks
// tagged with the documented language, and shell scripts that write example
// files through heredocs. Both fail closed on malformed input: an
// unterminated block yields a *FormatError and no examples for that file.
package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/harrison/bookcheck/internal/models"
)

// Options configures an Extractor.
type Options struct {
	Language  string // Fence info-string tag selecting prose examples ("ruchy")
	Extension string // Heredoc destination extension to keep (".ruchy"); empty keeps all
}

// Extractor turns source text into ordered examples.
type Extractor struct {
	opts     Options
	markdown goldmark.Markdown
}

// New creates an Extractor. An empty Language defaults to "ruchy".
func New(opts Options) *Extractor {
	if strings.TrimSpace(opts.Language) == "" {
		opts.Language = "ruchy"
	}
	if opts.Extension != "" && !strings.HasPrefix(opts.Extension, ".") {
		opts.Extension = "." + opts.Extension
	}
	return &Extractor{
		opts:     opts,
		markdown: goldmark.New(),
	}
}

// DetectKind picks the extraction mode from a file extension.
//   - .md, .markdown -> prose
//   - .sh, .bash -> heredoc
func DetectKind(path string) (models.SourceKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return models.SourceProse, nil
	case ".sh", ".bash":
		return models.SourceHeredoc, nil
	default:
		return "", fmt.Errorf("unsupported source file %s: expected .md or .sh", path)
	}
}

// Extract returns the examples in content, in source line order.
func (e *Extractor) Extract(kind models.SourceKind, sourceFile string, content []byte) ([]models.Example, error) {
	switch kind {
	case models.SourceProse:
		return e.extractProse(sourceFile, content)
	case models.SourceHeredoc:
		return e.extractHeredoc(sourceFile, content)
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

// ExtractFile reads path and extracts with the kind implied by its extension.
func (e *Extractor) ExtractFile(path string) ([]models.Example, error) {
	kind, err := DetectKind(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return e.Extract(kind, path, content)
}

// ListChapters returns the markdown files under dir in lexical order.
// A non-empty selection keeps only files whose base name starts with it
// or whose slash path contains it.
func ListChapters(dir, selection string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if kind, kerr := DetectKind(path); kerr != nil || kind != models.SourceProse {
			return nil
		}
		if selection != "" && !matchesSelection(path, selection) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return files, nil
}

func matchesSelection(path, selection string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, selection) {
		return true
	}
	return strings.Contains(filepath.ToSlash(path), selection)
}

// FileProgress is called before each file is extracted. index is zero based.
type FileProgress func(path string, index, total int)

// ExtractFiles extracts every file in order. Format errors from all files are
// collected and returned together, and no examples are returned in that case,
// so a single malformed chapter aborts the run before any tool executes.
// progress may be nil.
func (e *Extractor) ExtractFiles(paths []string, progress FileProgress) ([]models.Example, error) {
	var (
		examples []models.Example
		errs     []error
	)
	for i, path := range paths {
		if progress != nil {
			progress(path, i, len(paths))
		}
		found, err := e.ExtractFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		examples = append(examples, found...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return examples, nil
}

// ExtractDir lists the chapters under dir matching selection and extracts them.
func (e *Extractor) ExtractDir(dir, selection string, progress FileProgress) ([]models.Example, error) {
	files, err := ListChapters(dir, selection)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		if selection != "" {
			return nil, fmt.Errorf("%w in %s matching %q", ErrNoSources, dir, selection)
		}
		return nil, fmt.Errorf("%w in %s", ErrNoSources, dir)
	}
	return e.ExtractFiles(files, progress)
}
