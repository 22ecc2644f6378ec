package era5

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// Scanner gives access to the dimensions and variables of a NetCDF file of
// any flavour (classic, 64-bit offset or NetCDF-4).
type Scanner struct {
	nc   api.Group
	vars []string
	dims []Dimension
}

// Dimension is a named axis and its length.
type Dimension struct {
	Name string
	Len  int
}

// NewScanner opens filePath.
func NewScanner(filePath string) (*Scanner, error) {
	nc, err := netcdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	s := &Scanner{nc: nc, vars: nc.ListVariables()}
	if s.dims, err = s.dimensions(); err != nil {
		nc.Close()
		return nil, err
	}
	return s, nil
}

// dimensions collects the dimensions in order of first use. Lengths come
// from the coordinate variable when there is one and from the first variable
// spanning the dimension otherwise.
func (s *Scanner) dimensions() ([]Dimension, error) {
	var dims []Dimension
	seen := make(map[string]bool)
	for _, name := range s.vars {
		vg, err := s.nc.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		var shape []int
		for i, d := range vg.Dimensions() {
			if seen[d] {
				continue
			}
			seen[d] = true
			n, err := s.dimLen(d)
			if err != nil {
				return nil, err
			}
			if n < 0 {
				if shape == nil {
					if shape, err = s.shapeOf(vg); err != nil {
						return nil, fmt.Errorf("variable %s: %w", name, err)
					}
				}
				n = shape[i]
			}
			dims = append(dims, Dimension{Name: d, Len: n})
		}
	}
	return dims, nil
}

// dimLen returns the length of the coordinate variable named d, or -1 if
// there is none.
func (s *Scanner) dimLen(d string) (int, error) {
	vg, err := s.nc.GetVarGetter(d)
	if err != nil {
		return -1, nil
	}
	dd := vg.Dimensions()
	if len(dd) != 1 || dd[0] != d {
		return -1, nil
	}
	return int(vg.Len()), nil
}

func (s *Scanner) shapeOf(vg api.VarGetter) ([]int, error) {
	v, err := vg.Values()
	if err != nil {
		return nil, err
	}
	_, shape, err := flatten(v, len(vg.Dimensions()))
	return shape, err
}

// Close closes the scanner.
func (s *Scanner) Close() {
	s.nc.Close()
}

// Summary returns the summary information about the dataset suitable for
// logging.
func (s *Scanner) Summary() []any {
	dims := make([]string, len(s.dims))
	for i, d := range s.dims {
		dims[i] = fmt.Sprintf("%s=%d", d.Name, d.Len)
	}
	return []any{
		"dims", dims,
		"vars", s.vars,
		"dimCnt", len(s.dims),
		"varCnt", len(s.vars),
		"attrCnt", len(s.nc.Attributes().Keys()),
	}
}

// Dimensions returns the dimensions in order of first use.
func (s *Scanner) Dimensions() []Dimension { return s.dims }

// HasDimension reports whether some variable spans the dimension name.
func (s *Scanner) HasDimension(name string) bool {
	for _, d := range s.dims {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Variables returns the variable names in file order.
func (s *Scanner) Variables() []string { return s.vars }

// GlobalAttributes returns the global attributes in file order.
func (s *Scanner) GlobalAttributes() []Attribute {
	return attributes(s.nc.Attributes())
}

// Variable reads the variable called name with its values flattened in
// row-major order.
func (s *Scanner) Variable(name string) (*Variable, error) {
	vg, err := s.nc.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	flat, shape, err := flatten(v, len(vg.Dimensions()))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return &Variable{
		Name:       name,
		Dimensions: vg.Dimensions(),
		Shape:      shape,
		Values:     flat,
		Attributes: attributes(vg.Attributes()),
		Type:       vg.GoType(),
	}, nil
}

// Describe returns the variable called name without reading its values.
func (s *Scanner) Describe(name string) (*Variable, error) {
	vg, err := s.nc.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	return &Variable{
		Name:       name,
		Dimensions: vg.Dimensions(),
		Attributes: attributes(vg.Attributes()),
		Type:       vg.GoType(),
	}, nil
}

// Float64s reads a numeric variable and converts its values to float64.
func (s *Scanner) Float64s(name string) ([]float64, error) {
	v, err := s.Variable(name)
	if err != nil {
		return nil, err
	}
	fs, ok := toFloat64s(v.Values)
	if !ok {
		return nil, fmt.Errorf("variable %s of type %s is not numeric", name, v.Type)
	}
	return fs, nil
}

func attributes(m api.AttributeMap) []Attribute {
	if m == nil {
		return nil
	}
	keys := m.Keys()
	attrs := make([]Attribute, 0, len(keys))
	for _, k := range keys {
		v, _ := m.Get(k)
		attrs = append(attrs, Attribute{Name: k, Value: v})
	}
	return attrs
}
