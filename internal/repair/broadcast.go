package repair

import "fmt"

// broadcast inserts an axis of length n at position axis of data, which has
// the given shape, by repeating every block below the axis n times.
func broadcast(data any, shape []int, axis, n int) (any, error) {
	if axis < 0 || axis > len(shape) {
		return nil, fmt.Errorf("axis %d out of range for rank %d", axis, len(shape))
	}
	outer, inner := product(shape[:axis]), product(shape[axis:])
	switch v := data.(type) {
	case []uint8:
		return repeat(v, outer, inner, n)
	case []int16:
		return repeat(v, outer, inner, n)
	case []int32:
		return repeat(v, outer, inner, n)
	case []float32:
		return repeat(v, outer, inner, n)
	case []float64:
		return repeat(v, outer, inner, n)
	}
	return nil, fmt.Errorf("cannot broadcast values of type %T", data)
}

func repeat[T any](src []T, outer, inner, n int) ([]T, error) {
	if len(src) != outer*inner {
		return nil, fmt.Errorf("have %d values, shape needs %d", len(src), outer*inner)
	}
	out := make([]T, 0, len(src)*n)
	for o := 0; o < outer; o++ {
		block := src[o*inner : (o+1)*inner]
		for i := 0; i < n; i++ {
			out = append(out, block...)
		}
	}
	return out, nil
}

func length(data any) int {
	switch v := data.(type) {
	case []uint8:
		return len(v)
	case []int16:
		return len(v)
	case []int32:
		return len(v)
	case []float32:
		return len(v)
	case []float64:
		return len(v)
	}
	return 0
}
