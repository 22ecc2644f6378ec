// Package levels maps user-entered level values onto the canonical level
// identifiers of the archive.
package levels

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/rtm0/era5fetch/internal/errs"
)

// DefaultMaxModelLevel is the deepest ERA5 model level.
const DefaultMaxModelLevel = 137

// Resolve returns, for each requested value, the element of column closest to
// it. Ties go to the earliest element.
func Resolve(requested, column []float64) ([]float64, error) {
	if len(column) == 0 {
		return nil, errs.Validation(errs.RuleUnit, "you must select a unit for the level")
	}
	out := make([]float64, len(requested))
	diffs := make([]float64, len(column))
	for i, v := range requested {
		j, err := nearest(column, v, diffs)
		if err != nil {
			return nil, err
		}
		out[i] = column[j]
	}
	return out, nil
}

// nearest returns the index of the element of column closest to v. diffs is
// scratch space of len(column).
func nearest(column []float64, v float64, diffs []float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errs.Validation(errs.RuleLevels, "the level %v is not a finite number", v)
	}
	if len(column) == 0 {
		return 0, errs.Validation(errs.RuleUnit, "the level table has no rows")
	}
	for i, c := range column {
		if math.IsNaN(c) {
			diffs[i] = math.Inf(1)
			continue
		}
		diffs[i] = math.Abs(c - v)
	}
	// MinIdx returns the first minimum, which keeps ties stable.
	j := floats.MinIdx(diffs)
	if math.IsInf(diffs[j], 1) {
		return 0, errs.Validation(errs.RuleLevels, "the level column has no numeric values")
	}
	return j, nil
}

// ParseValues parses a comma-separated list of level values.
func ParseValues(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	vs := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errs.Validation(errs.RuleLevels, "the level %q is not a float value", p)
		}
		vs[i] = v
	}
	return vs, nil
}

// ResolveModelLevels parses a comma-separated list of model level numbers.
// Every item must be an integer in [1, max]; it is used directly as the
// identifier and as the level value.
func ResolveModelLevels(s string, max int) ([]Resolution, error) {
	if max <= 0 {
		max = DefaultMaxModelLevel
	}
	parts := strings.Split(s, ",")
	res := make([]Resolution, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errs.Validation(errs.RuleModelLevel, "the model level %q is not an integer", p)
		}
		if n < 1 || n > max {
			return nil, errs.Validation(errs.RuleModelLevel, "the model level %d is outside 1..%d", n, max)
		}
		res[i] = Resolution{Requested: float64(n), Value: float64(n), Row: -1, ID: n}
	}
	return res, nil
}
