package era5

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.nc")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	h := cdf.NewHeader([]string{"time", "latitude", "longitude"}, []int{0, 2, 2})
	h.AddAttribute("", "title", "sample")
	h.AddVariable("latitude", []string{"latitude"}, []float32{})
	h.AddVariable("longitude", []string{"longitude"}, []float32{})
	h.AddVariable("time", []string{"time"}, []int32{})
	h.AddVariable("msl", []string{"time", "latitude", "longitude"}, []float64{})
	h.AddAttribute("msl", "units", "Pa")
	h.Define()

	cf, err := cdf.Create(f, h)
	require.NoError(t, err)
	for name, data := range map[string]any{
		"latitude":  []float32{1, 0},
		"longitude": []float32{5, 6},
		"time":      []int32{0, 1, 2},
		"msl":       []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	} {
		_, err := cf.Writer(name, nil, nil).Write(data)
		if err != nil {
			require.ErrorContains(t, err, "EOF")
		}
	}
	require.NoError(t, cdf.UpdateNumRecs(f))
	return path
}

func Test_Scanner(t *testing.T) {
	s, err := NewScanner(writeFile(t))
	require.NoError(t, err)
	defer s.Close()

	assert.ElementsMatch(t, []Dimension{
		{Name: "time", Len: 3},
		{Name: "latitude", Len: 2},
		{Name: "longitude", Len: 2},
	}, s.Dimensions())
	assert.True(t, s.HasDimension("time"))
	assert.False(t, s.HasDimension("level"))
	assert.ElementsMatch(t, []string{"latitude", "longitude", "time", "msl"}, s.Variables())

	msl, err := s.Variable("msl")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 2}, msl.Shape)
	assert.Equal(t, "float64", msl.Type)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, msl.Values)
	assert.Equal(t, []Attribute{{Name: "units", Value: "Pa"}}, msl.Attributes)

	info, err := s.Describe("msl")
	require.NoError(t, err)
	assert.Nil(t, info.Values)
	assert.Equal(t, []string{"time", "latitude", "longitude"}, info.Dimensions)

	lat, err := s.Float64s("latitude")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, lat)

	_, err = s.Variable("missing")
	assert.Error(t, err)

	summary := s.Summary()
	assert.Equal(t, "varCnt", summary[6])
	assert.Equal(t, 4, summary[7])
}

func Test_NewScanner_Missing(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "missing.nc"))
	assert.Error(t, err)
}

func Test_Flatten(t *testing.T) {
	flat, shape, err := flatten([][]int16{{1, 2, 3}, {4, 5, 6}}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3, 4, 5, 6}, flat)
	assert.Equal(t, []int{2, 3}, shape)

	flat, shape, err = flatten(float32(2.5), 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{2.5}, flat)
	assert.Nil(t, shape)

	flat, shape, err = flatten("abc", 1)
	require.NoError(t, err)
	assert.Equal(t, "abc", flat)
	assert.Equal(t, []int{3}, shape)

	flat, shape, err = flatten([][]float64{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{}, flat)
	assert.Equal(t, []int{0, 0}, shape)

	_, _, err = flatten([]int8{1}, 2)
	assert.Error(t, err)
	flat, shape, err = flatten([]string{"ab", "cde"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8("ab\x00cde"), flat)
	assert.Equal(t, []int{2, 3}, shape)

	flat, shape, err = flatten([][]string{{"a"}, {"b"}}, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint8("ab"), flat)
	assert.Equal(t, []int{2, 1, 1}, shape)

	flat, shape, err = flatten([]string{"0001", "0005"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001", "0005"}, flat)
	assert.Equal(t, []int{2}, shape)

	_, _, err = flatten([][]string{{"ab"}}, 1)
	assert.Error(t, err)
	_, _, err = flatten(nil, 1)
	assert.Error(t, err)
}

func Test_ToFloat64s(t *testing.T) {
	fs, ok := toFloat64s([]int16{-1, 2})
	require.True(t, ok)
	assert.Equal(t, []float64{-1, 2}, fs)
	_, ok = toFloat64s("text")
	assert.False(t, ok)
}
