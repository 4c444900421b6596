// Package report reduces classified tool outcomes into a ValidationReport,
// renders it for humans and writes the machine-readable artifact.
package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/harrison/bookcheck/internal/models"
	"github.com/harrison/bookcheck/internal/registry"
)

// Input is everything one aggregation needs. Outcomes may arrive in any
// order; the report is always ordered by extraction order, then registry order.
type Input struct {
	RunID            string
	Mode             string
	Selection        string
	GeneratedAt      time.Time
	ToolchainVersion string
	BookRevision     string

	Examples    []models.Example
	Outcomes    []models.ToolOutcome
	Phases      []registry.Phase
	Blocked     int
	WallClockMs int64

	Coverage *models.Coverage
	Previous []models.ToolOutcome // Outcomes of the previous comparable run
}

// dispositionOrder fixes the row order of the disposition table.
var dispositionOrder = []models.Disposition{
	models.DispositionWorking,
	models.DispositionNotImplemented,
	models.DispositionBroken,
	models.DispositionPlanned,
	models.DispositionUnannotated,
}

// timing accumulates TimingStats. The first maximum seen wins ties.
type timing struct {
	stats models.TimingStats
}

func (t *timing) add(o models.ToolOutcome) {
	if o.LaunchFailed() {
		return
	}
	s := &t.stats
	if s.Count == 0 || o.DurationMs < s.MinMs {
		s.MinMs = o.DurationMs
	}
	if s.Count == 0 || o.DurationMs > s.MaxMs {
		s.MaxMs = o.DurationMs
		s.SlowestKey = o.ExampleKey
		s.SlowestTool = o.ToolName
	}
	s.Count++
	s.TotalMs += o.DurationMs
}

func (t *timing) result() models.TimingStats {
	s := t.stats
	if s.Count > 0 {
		s.AvgMs = float64(s.TotalMs) / float64(s.Count)
	}
	return s
}

// Aggregate builds the report. The gate verdict is not part of aggregation;
// attach it with ValidationReport.WithVerdict.
func Aggregate(in Input) models.ValidationReport {
	outcomes := orderOutcomes(in)

	// Tool rows in registry order; outcomes for unregistered tools follow in first-seen order.
	toolIndex := make(map[string]int)
	var tools []models.ToolSummary
	var toolTiming []*timing
	addTool := func(name, phase string) int {
		if i, ok := toolIndex[name]; ok {
			return i
		}
		toolIndex[name] = len(tools)
		tools = append(tools, models.ToolSummary{Tool: name, Phase: phase})
		toolTiming = append(toolTiming, &timing{})
		return len(tools) - 1
	}
	phaseIndex := make(map[string]int)
	var phases []models.GroupSummary
	for _, p := range in.Phases {
		phaseIndex[p.Name] = len(phases)
		phases = append(phases, models.GroupSummary{Name: p.Name})
		for _, tool := range p.Tools {
			addTool(tool.Name, p.Name)
		}
	}

	byExample := make([][]models.ToolOutcome, len(in.Examples))
	dispositionCounts := make(map[models.Disposition]*models.Counts)
	var totals models.Counts
	var overall timing

	for _, o := range outcomes {
		i := addTool(o.ToolName, "")
		tools[i].Counts.Add(o.Kind)
		toolTiming[i].add(o)
		if pi, ok := phaseIndex[tools[i].Phase]; ok {
			phases[pi].Counts.Add(o.Kind)
		}
		totals.Add(o.Kind)
		overall.add(o)

		if o.ExampleIndex >= 0 && o.ExampleIndex < len(in.Examples) {
			byExample[o.ExampleIndex] = append(byExample[o.ExampleIndex], o)
			d := in.Examples[o.ExampleIndex].DeclaredStatus
			if dispositionCounts[d] == nil {
				dispositionCounts[d] = &models.Counts{}
			}
			dispositionCounts[d].Add(o.Kind)
		}
	}

	for i := range tools {
		tools[i].Total = tools[i].Counts.Total()
		tools[i].PassRate = tools[i].Counts.PassRate()
		tools[i].Timing = toolTiming[i].result()
	}
	for i := range phases {
		phases[i].PassRate = phases[i].Counts.PassRate()
	}

	var dispositions []models.GroupSummary
	for _, d := range dispositionOrder {
		if c, ok := dispositionCounts[d]; ok {
			dispositions = append(dispositions, models.GroupSummary{Name: string(d), Counts: *c, PassRate: c.PassRate()})
		}
	}

	verdicts, skipped := exampleVerdicts(in.Examples, byExample)

	return models.ValidationReport{
		RunID:            in.RunID,
		Mode:             in.Mode,
		Selection:        in.Selection,
		GeneratedAt:      in.GeneratedAt,
		ToolchainVersion: in.ToolchainVersion,
		BookRevision:     in.BookRevision,
		Totals:           totals,
		PassRate:         totals.PassRate(),
		Tools:            tools,
		Phases:           phases,
		Dispositions:     dispositions,
		Examples:         verdicts,
		Chapters:         chapterSummaries(in.Examples, verdicts),
		Timing:           overall.result(),
		WallClockMs:      in.WallClockMs,
		Skipped:          skipped,
		Blocked:          in.Blocked,
		Coverage:         in.Coverage,
		Changes:          Compare(in.Previous, outcomes),
	}
}

// orderOutcomes sorts outcomes by example index, then by the tool's
// position in the registry, independent of completion order.
func orderOutcomes(in Input) []models.ToolOutcome {
	position := make(map[string]int)
	for _, p := range in.Phases {
		for _, tool := range p.Tools {
			position[tool.Name] = len(position)
		}
	}
	rank := func(name string) int {
		if pos, ok := position[name]; ok {
			return pos
		}
		return len(position)
	}

	ordered := append([]models.ToolOutcome(nil), in.Outcomes...)
	slices.SortStableFunc(ordered, func(a, b models.ToolOutcome) int {
		if c := cmp.Compare(a.ExampleIndex, b.ExampleIndex); c != 0 {
			return c
		}
		return cmp.Compare(rank(a.ToolName), rank(b.ToolName))
	})
	return ordered
}

func exampleVerdicts(examples []models.Example, byExample [][]models.ToolOutcome) ([]models.ExampleVerdict, int) {
	verdicts := make([]models.ExampleVerdict, 0, len(examples))
	skipped := 0
	for i, ex := range examples {
		v := models.ExampleVerdict{
			Key:         ex.Key(),
			SourceFile:  ex.SourceFile,
			StartLine:   ex.StartLine,
			Description: ex.Description,
			Disposition: ex.DeclaredStatus,
			Skipped:     ex.Skipped(),
			SkipReason:  ex.SkipReason,
			Outcomes:    byExample[i],
		}
		if v.Skipped {
			skipped++
		}
		for _, o := range byExample[i] {
			v.Counts.Add(o.Kind)
		}
		v.Passed = v.Counts.Failed == 0
		verdicts = append(verdicts, v)
	}
	return verdicts, skipped
}

func chapterSummaries(examples []models.Example, verdicts []models.ExampleVerdict) []models.ChapterSummary {
	index := make(map[string]int)
	var chapters []models.ChapterSummary
	for i, ex := range examples {
		name := ex.Chapter()
		ci, ok := index[name]
		if !ok {
			ci = len(chapters)
			index[name] = ci
			chapters = append(chapters, models.ChapterSummary{Chapter: name})
		}
		c := &chapters[ci]
		c.Examples++
		switch {
		case verdicts[i].Skipped:
			c.Skipped++
		case verdicts[i].Passed:
			c.Passed++
		default:
			c.Failed++
		}
	}
	for i := range chapters {
		if scored := chapters[i].Passed + chapters[i].Failed; scored > 0 {
			chapters[i].PassRate = float64(chapters[i].Passed) / float64(scored) * 100
		}
	}
	return chapters
}
