package report

import "github.com/harrison/bookcheck/internal/models"

type pairKey struct {
	example string
	tool    string
}

// Compare lists the (example, tool) pairs whose outcome moved since the
// previous run, in the order of current. Pairs absent from either run are
// not changes.
func Compare(previous, current []models.ToolOutcome) []models.OutcomeChange {
	if len(previous) == 0 {
		return nil
	}
	before := make(map[pairKey]models.ToolOutcome, len(previous))
	for _, o := range previous {
		before[pairKey{o.ExampleKey, o.ToolName}] = o
	}

	var changes []models.OutcomeChange
	for _, cur := range current {
		prev, ok := before[pairKey{cur.ExampleKey, cur.ToolName}]
		if !ok {
			continue
		}
		kind, changed := classifyChange(prev, cur)
		if !changed {
			continue
		}
		changes = append(changes, models.OutcomeChange{
			Kind:       kind,
			ExampleKey: cur.ExampleKey,
			ToolName:   cur.ToolName,
			From:       prev.Kind,
			To:         cur.Kind,
			FromExit:   prev.ExitCode,
			ToExit:     cur.ExitCode,
		})
	}
	return changes
}

func classifyChange(prev, cur models.ToolOutcome) (models.ChangeKind, bool) {
	switch {
	case prev.ClassifiedPass() && cur.Kind == models.OutcomeFail:
		return models.ChangeRegression, true
	case prev.Kind == models.OutcomeBaseline && cur.Kind == models.OutcomeFail:
		return models.ChangeBaselineDrift, true
	case prev.Kind == models.OutcomeBaseline && cur.Kind == models.OutcomeBaseline && prev.ExitCode != cur.ExitCode:
		return models.ChangeBaselineDrift, true
	case prev.Kind == models.OutcomeBaseline && cur.Kind == models.OutcomePass:
		return models.ChangeNewlyWorking, true
	default:
		return "", false
	}
}

// Regressions filters changes down to regressions.
func Regressions(changes []models.OutcomeChange) []models.OutcomeChange {
	var out []models.OutcomeChange
	for _, c := range changes {
		if c.Kind == models.ChangeRegression {
			out = append(out, c)
		}
	}
	return out
}
