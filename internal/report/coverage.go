package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/harrison/bookcheck/internal/models"
)

// Coverage weights. Lines matter most, branches least; the weights are fixed
// so scores stay comparable across runs.
const (
	LineWeight     = 0.5
	FunctionWeight = 0.3
	BranchWeight   = 0.2
)

// Weighted combines line, function and branch percentages into one score.
func Weighted(line, function, branch float64) float64 {
	return LineWeight*line + FunctionWeight*function + BranchWeight*branch
}

func percent(hit, found int) float64 {
	if found <= 0 {
		return 0
	}
	return float64(hit) * 100 / float64(found)
}

// ParseLCOV sums the LF/LH/FNF/FNH/BRF/BRH records of an LCOV trace and
// computes the percentages. Unknown record prefixes are ignored; a known
// prefix with a non-numeric value is an error.
func ParseLCOV(r io.Reader) (models.Coverage, error) {
	var cov models.Coverage
	counters := map[string]*int{
		"LF":  &cov.LinesFound,
		"LH":  &cov.LinesHit,
		"FNF": &cov.FunctionsFound,
		"FNH": &cov.FunctionsHit,
		"BRF": &cov.BranchesFound,
		"BRH": &cov.BranchesHit,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		prefix, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		counter, known := counters[prefix]
		if !known {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return models.Coverage{}, fmt.Errorf("line %d: invalid %s value %q", lineNo, prefix, value)
		}
		*counter += n
	}
	if err := scanner.Err(); err != nil {
		return models.Coverage{}, fmt.Errorf("failed to read coverage report: %w", err)
	}

	cov.Line = percent(cov.LinesHit, cov.LinesFound)
	cov.Function = percent(cov.FunctionsHit, cov.FunctionsFound)
	cov.Branch = percent(cov.BranchesHit, cov.BranchesFound)
	cov.Overall = Weighted(cov.Line, cov.Function, cov.Branch)
	return cov, nil
}

// LoadLCOV parses the LCOV file at path.
func LoadLCOV(path string) (models.Coverage, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Coverage{}, err
	}
	defer f.Close()

	cov, err := ParseLCOV(f)
	if err != nil {
		return models.Coverage{}, fmt.Errorf("%s: %w", path, err)
	}
	return cov, nil
}
