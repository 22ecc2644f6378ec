package mars

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rtm0/era5fetch/internal/errs"
)

// DateLayout is the layout of user-entered dates.
const DateLayout = "2006/01/02"

const isoDate = "2006-01-02"

var (
	hourRE = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]:[0-5][0-9]$`)
	gridRE = regexp.MustCompile(`^(\d+\.\d+)x(\d+\.\d+)$`)
)

// ExpandDates returns every calendar date from start to end inclusive.
func ExpandDates(start, end time.Time) ([]time.Time, error) {
	start = day(start)
	end = day(end)
	if end.Before(start) {
		return nil, errs.Validation(errs.RuleDateOrder, "the last date %s precedes the first date %s",
			end.Format(DateLayout), start.Format(DateLayout))
	}
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}

// JoinDates encodes dates as slash-separated ISO dates.
func JoinDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(isoDate)
	}
	return strings.Join(parts, "/")
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckHours checks that every hour is in HH:MM:SS form.
func CheckHours(hours []string) error {
	if len(hours) == 0 {
		return errs.Validation(errs.RuleHours, "at least one hour is required")
	}
	for _, h := range hours {
		if !hourRE.MatchString(h) {
			return errs.Validation(errs.RuleHours, "the hours must be in format HH:MM:SS, got %q", h)
		}
	}
	return nil
}

// Grid is the lat/lon resolution of the output, kept as typed by the user.
type Grid struct {
	Lat string
	Lon string
}

// ParseGrid parses "AxB" where A and B are positive decimals such as "0.25".
func ParseGrid(s string) (Grid, error) {
	m := gridRE.FindStringSubmatch(s)
	if m == nil {
		return Grid{}, errs.Validation(errs.RuleGrid, "the grid must be in float format with a x (e.g 1.0x1.0), got %q", s)
	}
	for _, v := range m[1:] {
		if f, _ := strconv.ParseFloat(v, 64); f <= 0 {
			return Grid{}, errs.Validation(errs.RuleGrid, "the grid steps must be positive, got %q", s)
		}
	}
	return Grid{Lat: m[1], Lon: m[2]}, nil
}

func (g Grid) String() string { return g.Lat + "/" + g.Lon }

// Area is a bounding box in degrees.
type Area struct {
	North float64
	West  float64
	South float64
	East  float64
}

// Validate checks the ranges of the box and that it is not inverted.
func (a Area) Validate() error {
	switch {
	case a.North < -90 || a.North > 90 || a.South < -90 || a.South > 90:
		return errs.Validation(errs.RuleCoordinates, "latitudes must be within -90..90")
	case a.West < -180 || a.West > 180 || a.East < -180 || a.East > 180:
		return errs.Validation(errs.RuleCoordinates, "longitudes must be within -180..180")
	case a.North < a.South:
		return errs.Validation(errs.RuleCoordinates, "north %v is below south %v", a.North, a.South)
	case a.East < a.West:
		return errs.Validation(errs.RuleCoordinates, "east %v is west of west %v", a.East, a.West)
	}
	return nil
}

// String encodes the box as N/W/S/E.
func (a Area) String() string {
	return JoinList([]string{num(a.North), num(a.West), num(a.South), num(a.East)})
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
