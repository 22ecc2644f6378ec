package form

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/era5fetch/internal/errs"
	"github.com/rtm0/era5fetch/internal/levels"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func validFields() Fields {
	return Fields{
		Unit:      "m",
		Levels:    "900,1500",
		Hours:     "00:00:00,12:00:00",
		Grid:      "1.0x1.0",
		File:      "a.nc",
		Start:     "2000/01/01",
		End:       "2000/01/03",
		North:     "10",
		West:      "-10",
		South:     "-20",
		East:      "20",
		Variables: []string{"Temperature"},
	}
}

func Test_Validate(t *testing.T) {
	s, err := Validate(validFields(), DefaultLimits(now))
	require.NoError(t, err)
	assert.Equal(t, levels.Altitude, s.Unit)
	assert.Equal(t, []float64{900, 1500}, s.Values)
	assert.Equal(t, []string{"00:00:00", "12:00:00"}, s.Hours)
	assert.Equal(t, "10/-10/-20/20", s.Area.String())
	assert.Equal(t, time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC), s.End)
}

func Test_Validate_ModelLevels(t *testing.T) {
	f := validFields()
	f.Unit = "ml"
	f.Levels = "137,60"
	s, err := Validate(f, DefaultLimits(now))
	require.NoError(t, err)
	assert.Equal(t, []int{137, 60}, levels.IDs(s.ModelLevels))
	assert.Nil(t, s.Values)
}

func Test_Validate_FirstViolatedRule(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Fields)
		rule   errs.Rule
	}{
		{"no unit", func(f *Fields) { f.Unit = ""; f.Levels = "x" }, errs.RuleUnit},
		{"bad level", func(f *Fields) { f.Levels = "10,abc"; f.Hours = "bad" }, errs.RuleLevels},
		{"model level out of range", func(f *Fields) { f.Unit = "ml"; f.Levels = "138" }, errs.RuleModelLevel},
		{"bad hours", func(f *Fields) { f.Hours = "00:00"; f.Grid = "1x1" }, errs.RuleHours},
		{"bad grid", func(f *Fields) { f.Grid = "1x1" }, errs.RuleGrid},
		{"bad file", func(f *Fields) { f.File = "a.grib" }, errs.RuleFile},
		{"bad date", func(f *Fields) { f.Start = "2000-01-01" }, errs.RuleDate},
		{"date too early", func(f *Fields) { f.Start = "1959/12/31" }, errs.RuleDate},
		{"date in the future", func(f *Fields) { f.End = "2024/06/02" }, errs.RuleDate},
		{"reversed dates", func(f *Fields) { f.Start = "2000/01/04" }, errs.RuleDateOrder},
		{"north below south", func(f *Fields) { f.North = "-10"; f.South = "10" }, errs.RuleCoordinates},
		{"north out of range", func(f *Fields) { f.North = "100" }, errs.RuleCoordinates},
		{"coordinate not a number", func(f *Fields) { f.East = "east" }, errs.RuleCoordinates},
		{"empty coordinate", func(f *Fields) { f.West = "" }, errs.RuleCoordinates},
		{"no variables", func(f *Fields) { f.Variables = []string{" "} }, errs.RuleVariables},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := validFields()
			c.modify(&f)
			_, err := Validate(f, DefaultLimits(now))
			var verr *errs.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, c.rule, verr.Rule)
		})
	}
}

func Test_CheckLevels(t *testing.T) {
	tbl, err := levels.LoadTable(strings.NewReader("n,m\n0,500\n1,1000\n"))
	require.NoError(t, err)
	require.NoError(t, tbl.Bind(levels.Altitude, 1))

	got, err := CheckLevels("m", "900,10", tbl, 0)
	require.NoError(t, err)
	assert.Equal(t, "1000,500", got)

	_, err = CheckLevels("", "900", tbl, 0)
	assert.Error(t, err)
	_, err = CheckLevels("m", "nine hundred", tbl, 0)
	assert.Error(t, err)

	got, err = CheckLevels("ml", "5,6", tbl, 0)
	require.NoError(t, err)
	assert.Equal(t, "5,6", got)

	_, err = CheckLevels("ml", "138", nil, 0)
	var verr *errs.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, errs.RuleModelLevel, verr.Rule)
	got, err = CheckLevels("ml", "138", nil, 150)
	require.NoError(t, err)
	assert.Equal(t, "138", got)
	_, err = CheckLevels("ml", "60", nil, 50)
	assert.Error(t, err)

	_, err = CheckLevels("m", "900", nil, 0)
	assert.Error(t, err)
}
