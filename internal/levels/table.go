package levels

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rtm0/era5fetch/internal/errs"
)

// idColumn is the header of the row identifier column.
const idColumn = "n"

// Table is the reference level table. Rows keep file order; each row has an
// identifier (the "n" column) and one value per column. Cells that are not
// numbers are stored as NaN and never match a requested level.
type Table struct {
	ids     []int
	cols    [][]float64
	columns map[Unit]int
}

// OpenTable reads the level table from a CSV file.
func OpenTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := LoadTable(f)
	if err != nil {
		return nil, fmt.Errorf("level table %s: %w", path, err)
	}
	return t, nil
}

// LoadTable reads a level table in CSV form. The first record is the header.
func LoadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	t := &Table{
		cols:    make([][]float64, len(header)),
		columns: make(map[Unit]int),
	}
	id := 0
	for i, h := range header {
		if strings.TrimSpace(h) == idColumn {
			id = i
			break
		}
	}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(rec[id]), 64)
		if err != nil || n != math.Trunc(n) {
			return nil, fmt.Errorf("row %d: identifier %q in column %q is not an integer", row, rec[id], header[id])
		}
		t.ids = append(t.ids, int(n))
		for i, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				v = math.NaN()
			}
			t.cols[i] = append(t.cols[i], v)
		}
	}
	for _, u := range []Unit{Altitude, Pressure, Temperature} {
		if c := u.Column(); c < len(header) {
			t.columns[u] = c
		}
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.ids) }

// Bind binds u to the column at index col, replacing the default binding.
func (t *Table) Bind(u Unit, col int) error {
	if !u.Physical() {
		return fmt.Errorf("unit %s cannot be bound to a table column", u)
	}
	if col < 0 || col >= len(t.cols) {
		return fmt.Errorf("column %d out of range [0, %d)", col, len(t.cols))
	}
	t.columns[u] = col
	return nil
}

// Column returns the values of the column bound to u.
func (t *Table) Column(u Unit) ([]float64, error) {
	if u == UnitNone {
		return nil, errs.Validation(errs.RuleUnit, "you must select a unit for the level")
	}
	c, ok := t.columns[u]
	if !ok {
		return nil, errs.Validation(errs.RuleUnit, "the level table has no column for %s", u)
	}
	if len(t.cols[c]) == 0 {
		return nil, errs.Validation(errs.RuleUnit, "the level table has no rows")
	}
	return t.cols[c], nil
}

// Resolution is one requested level matched against the reference table.
type Resolution struct {
	Requested float64
	// Value is the matched reference value, or the model level number.
	Value float64
	// Row is the table row, or -1 for model levels.
	Row int
	// ID is the canonical level identifier sent to the archive.
	ID int
}

// Resolve finds the nearest table row for every requested value, in request
// order and without removing duplicates.
func (t *Table) Resolve(u Unit, requested []float64) ([]Resolution, error) {
	col, err := t.Column(u)
	if err != nil {
		return nil, err
	}
	res := make([]Resolution, len(requested))
	diffs := make([]float64, len(col))
	for i, v := range requested {
		row, err := nearest(col, v, diffs)
		if err != nil {
			return nil, err
		}
		res[i] = Resolution{Requested: v, Value: col[row], Row: row, ID: t.ids[row]}
	}
	return res, nil
}

// Values returns the resolved values of res in order.
func Values(res []Resolution) []float64 {
	vs := make([]float64, len(res))
	for i, r := range res {
		vs[i] = r.Value
	}
	return vs
}

// IDs returns the level identifiers of res in order.
func IDs(res []Resolution) []int {
	ids := make([]int, len(res))
	for i, r := range res {
		ids[i] = r.ID
	}
	return ids
}
