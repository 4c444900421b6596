package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Disposition is an example's declared expected behavior.
type Disposition string

// Disposition values parsed from the fixed status-marker vocabulary.
const (
	DispositionWorking        Disposition = "working"
	DispositionNotImplemented Disposition = "not_implemented"
	DispositionBroken         Disposition = "broken"
	DispositionPlanned        Disposition = "planned"
	DispositionUnannotated    Disposition = "unannotated"
)

// IsAnnotated reports whether the example carried a recognized status marker.
func (d Disposition) IsAnnotated() bool {
	return d != "" && d != DispositionUnannotated
}

// SourceKind selects the extraction mode for a source text.
type SourceKind string

const (
	SourceProse   SourceKind = "prose"   // markdown chapters with fenced blocks
	SourceHeredoc SourceKind = "heredoc" // shell scripts writing files via heredocs
)

// Example is one extracted code snippet slated for validation.
// Examples are created once per extraction pass and never mutated afterwards.
type Example struct {
	SourceFile     string      // Path of the chapter or script the example came from
	StartLine      int         // 1-based line of the first code line
	Ordinal        int         // 1-based position among the file's examples (skipped ones included)
	Code           string      // Raw code, trimmed; never empty
	DeclaredStatus Disposition // Parsed from the status marker, Unannotated when absent
	Description    string      // Human readable label
	FileName       string      // Intended file name (heredoc destination), optional
	SkipReason     string      // Non-empty when the example is marked skip-test
}

// Chapter returns the source file's base name without extension ("ch01-02-hello").
func (e Example) Chapter() string {
	base := filepath.Base(e.SourceFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Key identifies the example across runs. Line numbers shift as prose is edited,
// so the key uses the file and the example's ordinal instead.
func (e Example) Key() string {
	return fmt.Sprintf("%s#%d", filepath.ToSlash(e.SourceFile), e.Ordinal)
}

// Location renders "file:line" for messages.
func (e Example) Location() string {
	return fmt.Sprintf("%s:%d", e.SourceFile, e.StartLine)
}

// Skipped reports whether the example is excluded from tool execution.
func (e Example) Skipped() bool {
	return e.SkipReason != ""
}

// Label returns the description, falling back to the location.
func (e Example) Label() string {
	if e.Description != "" {
		return e.Description
	}
	return fmt.Sprintf("%s example %d", e.Chapter(), e.Ordinal)
}
