package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FilePlaceholder is substituted with the materialized example path in a ToolSpec command.
const FilePlaceholder = "{file}"

// ToolSpec describes one external checker run against every example.
type ToolSpec struct {
	Name         string        // Unique key within a registry
	Phase        string        // Phase the tool belongs to (set by the registry)
	Command      []string      // Executable followed by the argument template
	Timeout      time.Duration // Hard wall-clock limit, strictly positive
	Blocking     bool          // A failure skips the example's later phases
	ChecksSyntax bool          // Syntax/compile oriented: intentional errors must fail here
	Stdin        bool          // Feed the example code on stdin
	OmitFile     bool          // Never pass the path unless the template names {file}
	PassPatterns []string      // Output substrings that turn a non-zero exit into a pass
}

// Validate checks that the tool has a name, a command and a positive timeout.
func (t ToolSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("tool name is required")
	}
	if len(t.Command) == 0 || strings.TrimSpace(t.Command[0]) == "" {
		return fmt.Errorf("tool %s: command is required", t.Name)
	}
	if t.Timeout <= 0 {
		return fmt.Errorf("tool %s: timeout must be > 0, got %v", t.Name, t.Timeout)
	}
	return nil
}

// Invocation expands the argument template for the given file path.
// When the template has no placeholder the path is appended as the last argument,
// unless the tool reads the example on stdin or is marked OmitFile.
func (t ToolSpec) Invocation(path string) (string, []string) {
	args := make([]string, 0, len(t.Command))
	substituted := false
	for _, arg := range t.Command[1:] {
		if strings.Contains(arg, FilePlaceholder) {
			arg = strings.ReplaceAll(arg, FilePlaceholder, path)
			substituted = true
		}
		args = append(args, arg)
	}
	if !substituted && !t.Stdin && !t.OmitFile {
		args = append(args, path)
	}
	return t.Command[0], args
}

// CommandLine renders the template for display.
func (t ToolSpec) CommandLine() string {
	return strings.Join(t.Command, " ")
}
