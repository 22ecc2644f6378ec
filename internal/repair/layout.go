package repair

import (
	"fmt"
	"slices"
)

// layout is the structure of the repaired file.
type layout struct {
	dims []dimension
	vars []placement
	// coordinate is the index in vars of the new level variable.
	coordinate int
}

// placement is a source variable and where it receives the level axis.
type placement struct {
	variable
	// axis is the position of the level axis in the output dimensions, or
	// -1 when the variable is copied unchanged.
	axis int
}

func (p placement) outDims(level string) []string {
	if p.axis < 0 {
		return p.dims
	}
	return slices.Insert(slices.Clone(p.dims), p.axis, level)
}

// plan places the level dimension before the anchor dimension, or last when
// the file has no anchor. Every data variable receives the level axis in the
// same relative position. Coordinate variables, text and scalars are
// unchanged.
func plan(src source, coord variable, anchor string, n int) (*layout, error) {
	if n <= 0 {
		return nil, fmt.Errorf("no level values")
	}
	level := coord.name
	in := src.dimensions()
	isDim := make(map[string]bool, len(in))
	unlimited := ""
	for _, d := range in {
		isDim[d.name] = true
		if d.unlimited {
			unlimited = d.name
		}
	}

	l := &layout{}
	at := slices.IndexFunc(in, func(d dimension) bool { return d.name == anchor })
	if at < 0 || in[at].unlimited {
		at = len(in)
	}
	l.dims = slices.Insert(slices.Clone(in), at, dimension{name: level, length: n})

	l.coordinate = -1
	for _, v := range src.variables() {
		if v.name == level {
			continue
		}
		if v.name == anchor && l.coordinate < 0 {
			l.coordinate = len(l.vars)
			l.vars = append(l.vars, placement{variable: coord, axis: -1})
		}
		p := placement{variable: v, axis: -1}
		if _, text := v.zero.(string); len(v.dims) > 0 && !isDim[v.name] && !text {
			p.axis = slices.Index(v.dims, anchor)
			if p.axis < 0 {
				p.axis = len(v.dims)
			}
			if p.axis == 0 && v.dims[0] == unlimited {
				p.axis = 1
			}
		}
		l.vars = append(l.vars, p)
	}
	if l.coordinate < 0 {
		l.coordinate = len(l.vars)
		l.vars = append(l.vars, placement{variable: coord, axis: -1})
	}
	return l, nil
}
