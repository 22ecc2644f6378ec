package repair

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ctessum/cdf"

	"github.com/rtm0/era5fetch/internal/era5"
)

type dimension struct {
	name      string
	length    int
	unlimited bool
}

type attribute struct {
	name  string
	value any
}

// variable describes a variable without its data. zero carries the element
// type in the form the classic writer expects: []uint8, string (char),
// []int16, []int32, []float32 or []float64.
type variable struct {
	name  string
	dims  []string
	attrs []attribute
	zero  any
}

// source is an open input file.
type source interface {
	dimensions() []dimension
	attributes() []attribute
	variables() []variable
	// read returns the data of a variable flattened in row-major order and
	// its shape.
	read(name string) (any, []int, error)
	// records returns the length of the unlimited dimension.
	records() int
	// dropped lists the variables that cannot be stored in a classic file.
	dropped() []string
	close() error
}

var (
	magicCDF1 = []byte{'C', 'D', 'F', 1}
	magicCDF2 = []byte{'C', 'D', 'F', 2}
	magicCDF5 = []byte{'C', 'D', 'F', 5}
	magicHDF5 = []byte{0x89, 'H', 'D', 'F'}
)

// openSource picks a reader from the file signature: classic files keep
// their record dimension, NetCDF-4 and CDF-5 files go through the native
// reader.
func openSource(path string) (source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading signature: %w", err)
	}
	switch {
	case bytes.Equal(magic, magicCDF1), bytes.Equal(magic, magicCDF2):
		return openClassic(f)
	case bytes.Equal(magic, magicCDF5), bytes.Equal(magic, magicHDF5):
		f.Close()
		return openNative(path)
	}
	f.Close()
	return nil, fmt.Errorf("not a NetCDF file (signature %q)", magic)
}

type classicSource struct {
	f       *os.File
	closed  bool
	cf      *cdf.File
	numRecs int
}

func openClassic(f *os.File) (*classicSource, error) {
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &classicSource{f: f, cf: cf, numRecs: int(cf.Header.NumRecs(fi.Size()))}, nil
}

func (s *classicSource) dimensions() []dimension {
	h := s.cf.Header
	names, lengths := h.Dimensions(""), h.Lengths("")
	dims := make([]dimension, len(names))
	for i, n := range names {
		dims[i] = dimension{name: n, length: lengths[i], unlimited: lengths[i] == 0}
	}
	return dims
}

func (s *classicSource) attrs(v string) []attribute {
	h := s.cf.Header
	names := h.Attributes(v)
	attrs := make([]attribute, len(names))
	for i, a := range names {
		attrs[i] = attribute{name: a, value: h.GetAttribute(v, a)}
	}
	return attrs
}

func (s *classicSource) attributes() []attribute { return s.attrs("") }

func (s *classicSource) variables() []variable {
	h := s.cf.Header
	names := h.Variables()
	vars := make([]variable, len(names))
	for i, v := range names {
		vars[i] = variable{
			name:  v,
			dims:  h.Dimensions(v),
			attrs: s.attrs(v),
			zero:  h.ZeroValue(v, 0),
		}
	}
	return vars
}

func (s *classicSource) shape(v string) []int {
	shape := append([]int(nil), s.cf.Header.Lengths(v)...)
	if s.cf.Header.IsRecordVariable(v) {
		shape[0] = s.numRecs
	}
	return shape
}

func (s *classicSource) read(v string) (any, []int, error) {
	shape := s.shape(v)
	n := product(shape)
	if n == 0 {
		return makeSlice(s.cf.Header.ZeroValue(v, 0), 0), shape, nil
	}
	var begin, end []int
	if len(shape) > 0 {
		begin = make([]int, len(shape))
		end = make([]int, len(shape))
		for i, l := range shape {
			end[i] = l - 1
		}
	}
	r := s.cf.Reader(v, begin, end)
	buf := r.Zero(n)
	got, err := r.Read(buf)
	if err != nil && !(errors.Is(err, io.EOF) && got == n) {
		return nil, nil, fmt.Errorf("reading %s: %w", v, err)
	}
	return buf, shape, nil
}

func (s *classicSource) records() int { return s.numRecs }

func (s *classicSource) dropped() []string { return nil }

func (s *classicSource) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

type nativeSource struct {
	s       *era5.Scanner
	vars    []variable
	skipped []string
	closed  bool
}

func openNative(path string) (*nativeSource, error) {
	s, err := era5.NewScanner(path)
	if err != nil {
		return nil, err
	}
	src := &nativeSource{s: s}
	for _, name := range s.Variables() {
		info, err := s.Describe(name)
		if err != nil {
			s.Close()
			return nil, err
		}
		if info.Type == "string" {
			// Char arrays are kept, variable-length strings have no classic
			// counterpart.
			v, err := s.Variable(name)
			if err != nil {
				s.Close()
				return nil, err
			}
			if _, ok := v.Values.([]string); ok {
				src.skipped = append(src.skipped, name)
				continue
			}
		}
		zero, err := classicZero(info.Type)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		attrs, err := classicAttributes(info.Attributes)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		src.vars = append(src.vars, variable{name: name, dims: info.Dimensions, attrs: attrs, zero: zero})
	}
	return src, nil
}

func (s *nativeSource) dimensions() []dimension {
	var dims []dimension
	for _, d := range s.s.Dimensions() {
		dims = append(dims, dimension{name: d.Name, length: d.Len})
	}
	return dims
}

func (s *nativeSource) attributes() []attribute {
	attrs, _ := classicAttributes(s.s.GlobalAttributes())
	return attrs
}

func (s *nativeSource) variables() []variable { return s.vars }

func (s *nativeSource) read(name string) (any, []int, error) {
	v, err := s.s.Variable(name)
	if err != nil {
		return nil, nil, err
	}
	switch vs := v.Values.(type) {
	case string:
		return []uint8(vs), v.Shape, nil
	case []int8:
		out := make([]uint8, len(vs))
		for i, x := range vs {
			out[i] = uint8(x)
		}
		return out, v.Shape, nil
	case []uint8, []int16, []int32, []float32, []float64:
		return vs, v.Shape, nil
	case []uint16:
		return widen(vs), v.Shape, nil
	case []uint32:
		return widen(vs), v.Shape, nil
	case []int64:
		return widen(vs), v.Shape, nil
	case []uint64:
		return widen(vs), v.Shape, nil
	}
	return nil, nil, fmt.Errorf("variable %s: type %s cannot be written to a classic file", name, v.Type)
}

func (s *nativeSource) records() int { return 0 }

func (s *nativeSource) dropped() []string { return s.skipped }

func (s *nativeSource) close() error {
	if !s.closed {
		s.closed = true
		s.s.Close()
	}
	return nil
}

func classicZero(goType string) (any, error) {
	switch goType {
	case "int8", "uint8":
		return []uint8{}, nil
	case "string":
		return "", nil
	case "int16":
		return []int16{}, nil
	case "int32":
		return []int32{}, nil
	case "float32":
		return []float32{}, nil
	case "float64", "uint16", "uint32", "int64", "uint64":
		// The classic format has no wide or unsigned integers.
		return []float64{}, nil
	}
	return nil, fmt.Errorf("type %s cannot be written to a classic file", goType)
}

// classicAttributes converts attributes read by the native reader to the
// value types of the classic format. Wide integer types become doubles.
// Bookkeeping attributes of the NetCDF-4 layer are dropped.
func classicAttributes(in []era5.Attribute) ([]attribute, error) {
	var out []attribute
	for _, a := range in {
		if strings.HasPrefix(a.Name, "_Netcdf4") || a.Name == "_NCProperties" {
			continue
		}
		v, err := classicValue(a.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		out = append(out, attribute{name: a.Name, value: v})
	}
	return out, nil
}

func classicValue(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int8:
		return []uint8{uint8(x)}, nil
	case []int8:
		out := make([]uint8, len(x))
		for i, b := range x {
			out[i] = uint8(b)
		}
		return out, nil
	case uint8:
		return []uint8{x}, nil
	case []uint8:
		return x, nil
	case int16:
		return []int16{x}, nil
	case []int16:
		return x, nil
	case int32:
		return []int32{x}, nil
	case []int32:
		return x, nil
	case float32:
		return []float32{x}, nil
	case []float32:
		return x, nil
	case float64:
		return []float64{x}, nil
	case []float64:
		return x, nil
	case uint16:
		return []float64{float64(x)}, nil
	case uint32:
		return []float64{float64(x)}, nil
	case int64:
		return []float64{float64(x)}, nil
	case uint64:
		return []float64{float64(x)}, nil
	case []uint16:
		return widen(x), nil
	case []uint32:
		return widen(x), nil
	case []int64:
		return widen(x), nil
	case []uint64:
		return widen(x), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func widen[T uint16 | uint32 | int64 | uint64](vs []T) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// makeSlice returns an empty-valued slice of n elements of the type of zero.
// Char variables are read and written as bytes.
func makeSlice(zero any, n int) any {
	switch zero.(type) {
	case string, []uint8:
		return make([]uint8, n)
	case []int16:
		return make([]int16, n)
	case []int32:
		return make([]int32, n)
	case []float32:
		return make([]float32, n)
	case []float64:
		return make([]float64, n)
	}
	return nil
}
