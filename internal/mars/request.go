// Package mars builds retrieval requests for the reanalysis archive using the
// MARS keyword conventions: every list is encoded as slash-separated values.
package mars

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rtm0/era5fetch/internal/errs"
)

// Dataset is the archive dataset serving model level data.
const Dataset = "reanalysis-era5-complete"

// TargetSuffix is the required suffix of the output file.
const TargetSuffix = ".nc"

// Fixed keywords of every request. Output needs to be a regular lat/lon grid
// to be delivered as NetCDF, which is why grid is always set.
const (
	levType = "ml"
	stream  = "oper"
	typ     = "an"
	format  = "netcdf"
)

// Input holds validated selections for one request.
type Input struct {
	Levels    []int
	Hours     []string
	Grid      string
	Start     time.Time
	End       time.Time
	Area      Area
	Variables []int
	Target    string
}

// Request is a fully encoded retrieval request.
type Request struct {
	Dataset   string
	Dates     []time.Time
	Levels    []int
	Hours     []string
	Grid      Grid
	Area      Area
	Variables []int
	Target    string
}

// Build checks in and expands it into a Request.
func Build(in Input) (*Request, error) {
	if len(in.Levels) == 0 {
		return nil, errs.Validation(errs.RuleLevels, "at least one level is required")
	}
	if err := CheckHours(in.Hours); err != nil {
		return nil, err
	}
	grid, err := ParseGrid(in.Grid)
	if err != nil {
		return nil, err
	}
	dates, err := ExpandDates(in.Start, in.End)
	if err != nil {
		return nil, err
	}
	if err := in.Area.Validate(); err != nil {
		return nil, err
	}
	if len(in.Variables) == 0 {
		return nil, errs.Validation(errs.RuleVariables, "you must select at least one variable")
	}
	if !strings.HasSuffix(in.Target, TargetSuffix) || len(in.Target) == len(TargetSuffix) {
		return nil, errs.Validation(errs.RuleFile, "the file name must end with %s", TargetSuffix)
	}
	return &Request{
		Dataset:   Dataset,
		Dates:     dates,
		Levels:    in.Levels,
		Hours:     in.Hours,
		Grid:      grid,
		Area:      in.Area,
		Variables: in.Variables,
		Target:    in.Target,
	}, nil
}

// Params returns the request keywords as sent to the archive.
func (r *Request) Params() map[string]string {
	return map[string]string{
		"date":     JoinDates(r.Dates),
		"levelist": JoinList(r.Levels),
		"levtype":  levType,
		"param":    JoinList(r.Variables),
		"stream":   stream,
		"time":     JoinList(r.Hours),
		"type":     typ,
		"area":     r.Area.String(),
		"grid":     r.Grid.String(),
		"format":   format,
	}
}

// LogValue implements slog.LogValuer.
func (r *Request) LogValue() slog.Value {
	var first, last string
	if len(r.Dates) > 0 {
		first = r.Dates[0].Format(isoDate)
		last = r.Dates[len(r.Dates)-1].Format(isoDate)
	}
	return slog.GroupValue(
		slog.String("dataset", r.Dataset),
		slog.String("from", first),
		slog.String("to", last),
		slog.Int("days", len(r.Dates)),
		slog.String("levelist", JoinList(r.Levels)),
		slog.String("param", JoinList(r.Variables)),
		slog.String("area", r.Area.String()),
		slog.String("grid", r.Grid.String()),
		slog.String("target", r.Target),
	)
}

// JoinList encodes items as a slash-separated list, keeping order and
// duplicates.
func JoinList[T any](items []T) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprint(it)
	}
	return strings.Join(parts, "/")
}

// SplitList splits a comma-separated list and trims each item.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
