package registry

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/bookcheck/internal/models"
)

// catalogFile is the on-disk shape of a tools catalog:
//
//	phases:
//	  - name: core
//	    tools:
//	      - name: run
//	        command: [ruchy, run, "{file}"]
//	        timeout: 30s
//	        checks_syntax: true
type catalogFile struct {
	Phases []catalogPhase `yaml:"phases"`
}

type catalogPhase struct {
	Name  string        `yaml:"name"`
	Tools []catalogTool `yaml:"tools"`
}

type catalogTool struct {
	Name         string      `yaml:"name"`
	Command      commandLine `yaml:"command"`
	Timeout      string      `yaml:"timeout"`
	Blocking     bool        `yaml:"blocking"`
	ChecksSyntax bool        `yaml:"checks_syntax"`
	Stdin        bool        `yaml:"stdin"`
	OmitFile     bool        `yaml:"omit_file"`
	PassPatterns []string    `yaml:"pass_patterns"`
}

// commandLine accepts either a YAML sequence or a whitespace-separated string.
type commandLine []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *commandLine) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*c = strings.Fields(value.Value)
		return nil
	case yaml.SequenceNode:
		var parts []string
		if err := value.Decode(&parts); err != nil {
			return err
		}
		*c = parts
		return nil
	default:
		return fmt.Errorf("line %d: command must be a string or a list", value.Line)
	}
}

// Load reads a YAML catalog from path. Tools without a timeout get defaultTimeout.
func Load(path string, defaultTimeout time.Duration) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tools catalog: %w", err)
	}
	reg, err := Parse(data, defaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes a YAML catalog.
func Parse(data []byte, defaultTimeout time.Duration) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tools catalog: %w", err)
	}
	if len(file.Phases) == 0 {
		return nil, fmt.Errorf("tools catalog defines no phases")
	}

	phases := make([]Phase, 0, len(file.Phases))
	for _, p := range file.Phases {
		tools := make([]models.ToolSpec, 0, len(p.Tools))
		for _, t := range p.Tools {
			timeout := defaultTimeout
			if t.Timeout != "" {
				d, err := time.ParseDuration(t.Timeout)
				if err != nil {
					return nil, fmt.Errorf("tool %s: invalid timeout %q: %w", t.Name, t.Timeout, err)
				}
				timeout = d
			}
			tools = append(tools, models.ToolSpec{
				Name:         t.Name,
				Command:      t.Command,
				Timeout:      timeout,
				Blocking:     t.Blocking,
				ChecksSyntax: t.ChecksSyntax,
				Stdin:        t.Stdin,
				OmitFile:     t.OmitFile,
				PassPatterns: t.PassPatterns,
			})
		}
		phases = append(phases, Phase{Name: p.Name, Tools: tools})
	}
	return New(phases...)
}
