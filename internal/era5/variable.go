// Package era5 reads downloaded reanalysis files.
package era5

import (
	"fmt"
	"reflect"
)

// Variable is a variable read in full. Values is a flat slice of the element
// type in row-major order, or a string for one-dimensional char variables.
// Char variables of higher rank come back as bytes with the string length as
// the last dimension; variable-length string arrays as []string.
type Variable struct {
	Name       string
	Dimensions []string
	Shape      []int
	Values     any
	Attributes []Attribute
	// Type is the Go element type, e.g. "int16" or "float32".
	Type string
}

// Attribute is a named attribute value. Single values are scalars, longer
// ones slices, text is a string.
type Attribute struct {
	Name  string
	Value any
}

// flatten turns the nested slices returned by the reader into one slice and
// its shape. rank is the number of dimensions of the variable.
func flatten(v any, rank int) (any, []int, error) {
	if s, ok := v.(string); ok && rank <= 1 {
		return s, []int{len(s)}, nil
	}
	if v == nil {
		return nil, nil, fmt.Errorf("no values")
	}
	rv := reflect.ValueOf(v)
	if rank == 0 {
		if rv.Kind() == reflect.Slice {
			return v, nil, nil
		}
		out := reflect.MakeSlice(reflect.SliceOf(rv.Type()), 1, 1)
		out.Index(0).Set(rv)
		return out.Interface(), nil, nil
	}
	shape := make([]int, rank)
	elem := rv.Type()
	cur := rv
	for i := 0; i < rank; i++ {
		if i == rank-1 && elem.Kind() == reflect.String {
			out, shape := chars(rv, i)
			return out, shape, nil
		}
		if elem.Kind() != reflect.Slice {
			return nil, nil, fmt.Errorf("value of type %T has rank %d, want %d", v, i, rank)
		}
		elem = elem.Elem()
		if cur.IsValid() && cur.Len() > 0 {
			shape[i] = cur.Len()
			cur = cur.Index(0)
		} else {
			cur = reflect.Value{}
		}
	}
	if elem.Kind() == reflect.Slice {
		return nil, nil, fmt.Errorf("unsupported element type %s", elem)
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	out := reflect.MakeSlice(reflect.SliceOf(elem), 0, n)
	var walk func(reflect.Value, int)
	walk = func(x reflect.Value, depth int) {
		if depth == rank-1 {
			out = reflect.AppendSlice(out, x)
			return
		}
		for i := 0; i < x.Len(); i++ {
			walk(x.Index(i), depth+1)
		}
	}
	walk(rv, 0)
	return out.Interface(), shape, nil
}

// chars flattens char data read as strings spanning the last dimension.
// depth is the number of slice levels above the strings.
func chars(rv reflect.Value, depth int) ([]uint8, []int) {
	shape := make([]int, depth+1)
	var strs []string
	var walk func(reflect.Value, int)
	walk = func(x reflect.Value, d int) {
		if d == depth {
			strs = append(strs, x.String())
			return
		}
		shape[d] = max(shape[d], x.Len())
		for i := 0; i < x.Len(); i++ {
			walk(x.Index(i), d+1)
		}
	}
	walk(rv, 0)
	for _, s := range strs {
		shape[depth] = max(shape[depth], len(s))
	}
	w := shape[depth]
	out := make([]uint8, len(strs)*w)
	for i, s := range strs {
		copy(out[i*w:], s)
	}
	return out, shape
}

func toFloat64s(v any) ([]float64, bool) {
	switch vs := v.(type) {
	case []float64:
		return vs, true
	case []float32:
		return convert(vs), true
	case []int8:
		return convert(vs), true
	case []uint8:
		return convert(vs), true
	case []int16:
		return convert(vs), true
	case []uint16:
		return convert(vs), true
	case []int32:
		return convert(vs), true
	case []uint32:
		return convert(vs), true
	case []int64:
		return convert(vs), true
	case []uint64:
		return convert(vs), true
	}
	return nil, false
}

func convert[T int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32](vs []T) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}
