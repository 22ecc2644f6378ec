// Package catalog holds the table of requestable variables and the user's
// current selection.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Variable is one row of the variable table.
type Variable struct {
	Name string
	// ID is the parameter code used by the archive.
	ID int
}

// Catalog is the variable table in file order.
type Catalog struct {
	vars   []Variable
	byName map[string]int
}

// Open reads the variable table from a CSV file.
func Open(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("variable table %s: %w", path, err)
	}
	return c, nil
}

// Load reads a variable table in CSV form. The header must contain the
// columns "Name" and "id"; other columns are ignored.
func Load(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	name, id := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "Name":
			name = i
		case "id":
			id = i
		}
	}
	if name < 0 || id < 0 {
		return nil, fmt.Errorf("header %v must contain the columns Name and id", header)
	}
	c := &Catalog{byName: make(map[string]int)}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		code, err := strconv.Atoi(strings.TrimSpace(rec[id]))
		if err != nil {
			return nil, fmt.Errorf("row %d: id %q is not an integer", row, rec[id])
		}
		v := Variable{Name: strings.TrimSpace(rec[name]), ID: code}
		if _, dup := c.byName[v.Name]; dup {
			continue
		}
		c.byName[v.Name] = len(c.vars)
		c.vars = append(c.vars, v)
	}
	return c, nil
}

// New builds a catalogue from vars, keeping the first of any repeated name.
func New(vars ...Variable) *Catalog {
	c := &Catalog{byName: make(map[string]int)}
	for _, v := range vars {
		if _, dup := c.byName[v.Name]; dup {
			continue
		}
		c.byName[v.Name] = len(c.vars)
		c.vars = append(c.vars, v)
	}
	return c
}

// Len returns the number of variables.
func (c *Catalog) Len() int { return len(c.vars) }

// Lookup returns the variable called name.
func (c *Catalog) Lookup(name string) (Variable, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Variable{}, false
	}
	return c.vars[i], true
}

// Search returns the names starting with prefix, ignoring case, in table
// order.
func (c *Catalog) Search(prefix string) []string {
	p := strings.ToLower(prefix)
	var names []string
	for _, v := range c.vars {
		if strings.HasPrefix(strings.ToLower(v.Name), p) {
			names = append(names, v.Name)
		}
	}
	return names
}

// IDs returns the codes of the named variables in table order. Unknown names
// are skipped.
func (c *Catalog) IDs(names []string) []int {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var ids []int
	for _, v := range c.vars {
		if want[v.Name] {
			ids = append(ids, v.ID)
		}
	}
	return ids
}
