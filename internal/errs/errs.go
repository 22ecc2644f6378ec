// Package errs defines the error kinds surfaced to the user: invalid input,
// file repair failures and remote service failures.
package errs

import "fmt"

// Rule identifies the input rule a ValidationError reports.
type Rule string

// Validation rules in the order the form checks them.
const (
	RuleUnit        Rule = "unit"
	RuleLevels      Rule = "levels"
	RuleModelLevel  Rule = "model-level"
	RuleHours       Rule = "hours"
	RuleGrid        Rule = "grid"
	RuleFile        Rule = "file"
	RuleDate        Rule = "date"
	RuleDateOrder   Rule = "date-order"
	RuleCoordinates Rule = "coordinates"
	RuleVariables   Rule = "variables"
)

// ValidationError reports malformed or out-of-range user input.
type ValidationError struct {
	Rule Rule
	Msg  string
}

// Validation returns a ValidationError for rule with a formatted message.
func Validation(rule Rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Rule, e.Msg)
}

// IOError reports a failure while reading, writing or replacing a file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RemoteError reports a failure returned by the remote data archive.
type RemoteError struct {
	Status int
	Job    string
	Msg    string
}

func (e *RemoteError) Error() string {
	switch {
	case e.Job != "":
		return fmt.Sprintf("remote job %s failed: %s", e.Job, e.Msg)
	case e.Status != 0:
		return fmt.Sprintf("remote service returned status %d: %s", e.Status, e.Msg)
	}
	return "remote service error: " + e.Msg
}
