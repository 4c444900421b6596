package cmd

import (
	"errors"
	"fmt"
)

// buildRemediation is the hint shown when generated inputs are absent.
const buildRemediation = "Run the build step first (make test)"

// MissingInputError reports a required input file that does not exist.
type MissingInputError struct {
	What        string // "coverage report", "test script"
	Path        string
	Remediation string
}

func (e *MissingInputError) Error() string {
	msg := fmt.Sprintf("%s not found: %s", e.What, e.Path)
	if e.Remediation != "" {
		msg += " (" + e.Remediation + ")"
	}
	return msg
}

// IsMissingInput reports whether err is or wraps a *MissingInputError.
func IsMissingInput(err error) bool {
	var mie *MissingInputError
	return errors.As(err, &mie)
}
