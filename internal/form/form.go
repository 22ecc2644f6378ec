// Package form validates the raw text of a retrieval form. Validation is a
// pure step: it returns the first violated rule and never presents anything.
package form

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/rtm0/era5fetch/internal/errs"
	"github.com/rtm0/era5fetch/internal/levels"
	"github.com/rtm0/era5fetch/internal/mars"
)

// Fields is the raw content of the form.
type Fields struct {
	Unit      string
	Levels    string
	Hours     string
	Grid      string
	File      string
	Start     string
	End       string
	North     string
	West      string
	South     string
	East      string
	Variables []string
}

// Limits bounds the accepted dates and model levels.
type Limits struct {
	Earliest      time.Time
	Latest        time.Time
	MaxModelLevel int
}

// DefaultLimits accepts dates from January 1960 up to now.
func DefaultLimits(now time.Time) Limits {
	return Limits{
		Earliest:      time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC),
		Latest:        now,
		MaxModelLevel: levels.DefaultMaxModelLevel,
	}
}

// Submission is a validated form.
type Submission struct {
	Unit levels.Unit
	// Values holds the requested values for physical units.
	Values []float64
	// ModelLevels holds the resolved levels for levels.ModelLevel.
	ModelLevels []levels.Resolution
	Hours       []string
	Grid        string
	Target      string
	Start       time.Time
	End         time.Time
	Area        mars.Area
	Variables   []string
}

// Validate checks f rule by rule and returns the first violation as an
// *errs.ValidationError.
func Validate(f Fields, lim Limits) (*Submission, error) {
	unit, err := levels.ParseUnit(f.Unit)
	if err != nil {
		return nil, err
	}
	s := &Submission{Unit: unit}

	if unit == levels.ModelLevel {
		if s.ModelLevels, err = levels.ResolveModelLevels(f.Levels, lim.MaxModelLevel); err != nil {
			return nil, err
		}
	} else if s.Values, err = levels.ParseValues(f.Levels); err != nil {
		return nil, err
	}

	s.Hours = mars.SplitList(f.Hours)
	if err := mars.CheckHours(s.Hours); err != nil {
		return nil, err
	}

	if _, err := mars.ParseGrid(strings.TrimSpace(f.Grid)); err != nil {
		return nil, err
	}
	s.Grid = strings.TrimSpace(f.Grid)

	s.Target = strings.TrimSpace(f.File)
	if !strings.HasSuffix(s.Target, mars.TargetSuffix) || len(s.Target) == len(mars.TargetSuffix) {
		return nil, errs.Validation(errs.RuleFile, "the file name must end with %s", mars.TargetSuffix)
	}

	if s.Start, err = parseDate(f.Start, lim); err != nil {
		return nil, err
	}
	if s.End, err = parseDate(f.End, lim); err != nil {
		return nil, err
	}
	if s.End.Before(s.Start) {
		return nil, errs.Validation(errs.RuleDateOrder, "the last date must not precede the first date")
	}

	if s.Area, err = parseArea(f.North, f.West, f.South, f.East); err != nil {
		return nil, err
	}

	for _, v := range f.Variables {
		if v = strings.TrimSpace(v); v != "" {
			s.Variables = append(s.Variables, v)
		}
	}
	if len(s.Variables) == 0 {
		return nil, errs.Validation(errs.RuleVariables, "you must select at least one variable")
	}
	return s, nil
}

func parseDate(s string, lim Limits) (time.Time, error) {
	d, err := time.Parse(mars.DateLayout, strings.TrimSpace(s))
	if err != nil || d.Before(lim.Earliest) || d.After(lim.Latest) {
		return time.Time{}, errs.Validation(errs.RuleDate,
			"the date must be in format yyyy/mm/dd from %s to %s, got %q",
			lim.Earliest.Format(mars.DateLayout), lim.Latest.Format(mars.DateLayout), s)
	}
	return d, nil
}

func parseArea(north, west, south, east string) (mars.Area, error) {
	var vs [4]float64
	for i, s := range []string{north, west, south, east} {
		s = strings.TrimSpace(s)
		v, err := cast.ToFloat64E(s)
		if s == "" || err != nil {
			return mars.Area{}, errs.Validation(errs.RuleCoordinates, "the coordinates must be valid in degrees, got %q", s)
		}
		vs[i] = v
	}
	a := mars.Area{North: vs[0], West: vs[1], South: vs[2], East: vs[3]}
	return a, a.Validate()
}

// CheckLevels resolves the comma-separated levels against tbl and returns the
// matched values joined with commas. Model levels are checked against
// maxModelLevel instead; a non-positive bound means
// levels.DefaultMaxModelLevel.
func CheckLevels(unit, text string, tbl *levels.Table, maxModelLevel int) (string, error) {
	u, err := levels.ParseUnit(unit)
	if err != nil {
		return "", err
	}
	if u == levels.ModelLevel {
		res, err := levels.ResolveModelLevels(text, maxModelLevel)
		if err != nil {
			return "", err
		}
		return joinValues(levels.Values(res)), nil
	}
	vs, err := levels.ParseValues(text)
	if err != nil {
		return "", err
	}
	if tbl == nil {
		return "", errors.New("no level table loaded")
	}
	res, err := tbl.Resolve(u, vs)
	if err != nil {
		return "", err
	}
	return joinValues(levels.Values(res)), nil
}

func joinValues(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
