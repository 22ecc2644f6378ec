package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/era5fetch/internal/era5"
)

type fakeSource struct {
	dims []dimension
	vars []variable
}

func (s *fakeSource) dimensions() []dimension { return s.dims }
func (s *fakeSource) attributes() []attribute { return nil }
func (s *fakeSource) variables() []variable { return s.vars }
func (s *fakeSource) read(name string) (any, []int, error) { return nil, nil, nil }
func (s *fakeSource) records() int { return 0 }
func (s *fakeSource) dropped() []string { return nil }
func (s *fakeSource) close() error { return nil }

func Test_Plan(t *testing.T) {
	src := &fakeSource{
		dims: []dimension{
			{name: "time", unlimited: true},
			{name: "latitude", length: 2},
			{name: "longitude", length: 3},
		},
		vars: []variable{
			{name: "longitude", dims: []string{"longitude"}},
			{name: "latitude", dims: []string{"latitude"}},
			{name: "time", dims: []string{"time"}},
			{name: "level", dims: []string{"time"}},
			{name: "z", dims: []string{"time", "latitude", "longitude"}},
			{name: "lsm", dims: []string{"longitude", "time"}},
			{name: "crs"},
			{name: "expver", dims: []string{"time", "strlen"}, zero: ""},
		},
	}
	l, err := plan(src, coordinate("level", 0), "latitude", 2)
	require.NoError(t, err)

	var names []string
	for _, d := range l.dims {
		names = append(names, d.name)
	}
	assert.Equal(t, []string{"time", "level", "latitude", "longitude"}, names)
	assert.Equal(t, 2, l.dims[1].length)

	got := map[string][]string{}
	var order []string
	for _, p := range l.vars {
		got[p.name] = p.outDims("level")
		order = append(order, p.name)
	}
	assert.Equal(t, []string{"longitude", "level", "latitude", "time", "z", "lsm", "crs", "expver"}, order)
	assert.Equal(t, "level", l.vars[l.coordinate].name)
	assert.Equal(t, []string{"level"}, got["level"])
	assert.Equal(t, []string{"latitude"}, got["latitude"])
	assert.Equal(t, []string{"time", "level", "latitude", "longitude"}, got["z"])
	assert.Equal(t, []string{"longitude", "time", "level"}, got["lsm"])
	assert.Empty(t, got["crs"])
	assert.Equal(t, []string{"time", "strlen"}, got["expver"])
}

func Test_Plan_RecordAnchorStaysOutermost(t *testing.T) {
	src := &fakeSource{
		dims: []dimension{{name: "time", unlimited: true}, {name: "x", length: 4}},
		vars: []variable{{name: "v", dims: []string{"time", "x"}}},
	}
	l, err := plan(src, coordinate("level", 0), "time", 1)
	require.NoError(t, err)
	assert.Equal(t, "level", l.dims[2].name)
	assert.Equal(t, []string{"time", "level", "x"}, l.vars[0].outDims("level"))
	assert.Equal(t, 1, l.coordinate)

	_, err = plan(src, coordinate("level", 0), "time", 0)
	assert.Error(t, err)
}

func Test_Broadcast(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	shape := []int{2, 3}

	out, err := broadcast(data, shape, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 1, 2, 3, 4, 5, 6}, out)

	out, err = broadcast(data, shape, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 1, 2, 3, 4, 5, 6, 4, 5, 6}, out)

	out, err = broadcast(data, shape, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6}, out)

	out, err = broadcast([]uint8("ab"), []int{2}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint8("ab"), out)

	_, err = broadcast(data, []int{4}, 0, 2)
	assert.Error(t, err)
	_, err = broadcast(data, shape, 3, 2)
	assert.Error(t, err)
	_, err = broadcast([]string{"a"}, []int{1}, 0, 2)
	assert.Error(t, err)
}

func Test_ClassicAttributes(t *testing.T) {
	attrs, err := classicAttributes([]era5.Attribute{
		{Name: "_NCProperties", Value: "version=2"},
		{Name: "_Netcdf4Dimid", Value: int32(0)},
		{Name: "units", Value: "K"},
		{Name: "scale_factor", Value: float64(0.5)},
		{Name: "flag", Value: int8(-1)},
		{Name: "valid_range", Value: []int16{0, 10}},
		{Name: "count", Value: int64(7)},
	})
	require.NoError(t, err)
	assert.Equal(t, []attribute{
		{name: "units", value: "K"},
		{name: "scale_factor", value: []float64{0.5}},
		{name: "flag", value: []uint8{255}},
		{name: "valid_range", value: []int16{0, 10}},
		{name: "count", value: []float64{7}},
	}, attrs)

	_, err = classicAttributes([]era5.Attribute{{Name: "bad", Value: struct{}{}}})
	assert.Error(t, err)
}

func Test_ClassicZero(t *testing.T) {
	z, err := classicZero("int8")
	require.NoError(t, err)
	assert.IsType(t, []uint8{}, z)
	z, err = classicZero("string")
	require.NoError(t, err)
	assert.Equal(t, "", z)
	for _, typ := range []string{"int64", "uint64", "uint32", "uint16"} {
		z, err = classicZero(typ)
		require.NoError(t, err, typ)
		assert.Equal(t, []float64{}, z, typ)
	}
	_, err = classicZero("complex64")
	assert.Error(t, err)
}
