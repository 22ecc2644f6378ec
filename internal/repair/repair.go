// Package repair rewrites a downloaded NetCDF file so that it has a level
// dimension and a level coordinate variable.
//
// The file is rebuilt in full: every dimension, variable and attribute is
// copied to a temporary file next to the original, data variables receive
// the level axis and the temporary file replaces the original only once it
// has been read back successfully.
package repair

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/ctessum/cdf"

	"github.com/rtm0/era5fetch/internal/era5"
	"github.com/rtm0/era5fetch/internal/errs"
	"github.com/rtm0/era5fetch/internal/levels"
)

const (
	// DefaultDimension is the name of the injected dimension.
	DefaultDimension = "level"
	// DefaultAnchor is the dimension the level axis is placed before.
	DefaultAnchor = "latitude"
)

// Levels are the canonical level values written to the level coordinate.
type Levels struct {
	Unit   levels.Unit
	Values []float64
}

// Result describes a finished repair.
type Result struct {
	Path string
	// Modified is false when the file already had the level dimension.
	Modified bool
	// Levels is the length of the level dimension.
	Levels int
	// Variables lists the variables that received the level axis.
	Variables []string
	// Dropped lists the variables left out of the repaired file.
	Dropped []string
}

type config struct {
	logger    *slog.Logger
	dimension string
	anchor    string
}

// Option configures Repair.
type Option func(*config)

// WithAnchor sets the dimension the level axis is inserted before. An empty
// name appends the level axis last.
func WithAnchor(name string) Option {
	return func(c *config) { c.anchor = name }
}

// WithDimension sets the name of the level dimension and variable.
func WithDimension(name string) Option {
	return func(c *config) { c.dimension = name }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Repair makes sure the file at path has a level dimension holding lv.
// A file that already has one is left untouched.
func Repair(ctx context.Context, path string, lv Levels, opts ...Option) (*Result, error) {
	c := config{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		dimension: DefaultDimension,
		anchor:    DefaultAnchor,
	}
	for _, o := range opts {
		o(&c)
	}
	if len(lv.Values) == 0 {
		return nil, &errs.IOError{Op: "repair", Path: path, Err: errors.New("no level values")}
	}

	src, err := openSource(path)
	if err != nil {
		return nil, &errs.IOError{Op: "open", Path: path, Err: err}
	}
	defer src.close()

	for _, d := range src.dimensions() {
		if d.name == c.dimension {
			c.logger.Info("File already has a level dimension", "file", path, "len", d.length)
			return &Result{Path: path, Levels: d.length}, nil
		}
	}

	l, err := plan(src, coordinate(c.dimension, lv.Unit), c.anchor, len(lv.Values))
	if err != nil {
		return nil, &errs.IOError{Op: "plan", Path: path, Err: err}
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, &errs.IOError{Op: "stat", Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, &errs.IOError{Op: "create", Path: path, Err: err}
	}
	fail := func(op string, err error) (*Result, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, &errs.IOError{Op: op, Path: path, Err: err}
	}
	if err := tmp.Chmod(fi.Mode().Perm()); err != nil {
		return fail("create", err)
	}

	if err := write(ctx, tmp, src, l, c.dimension, lv.Values); err != nil {
		return fail("write", err)
	}
	if err := tmp.Close(); err != nil {
		return fail("write", err)
	}
	if err := src.close(); err != nil {
		return fail("close", err)
	}

	dropped := src.dropped()
	for _, name := range dropped {
		c.logger.Warn("Variable dropped", "file", path, "variable", name,
			"reason", "variable-length strings cannot be stored in a classic file")
	}

	var reshaped []string
	names := make([]string, len(l.vars))
	for i, p := range l.vars {
		names[i] = p.name
		if p.axis >= 0 {
			reshaped = append(reshaped, p.name)
		}
	}
	if err := verify(tmp.Name(), c.dimension, lv.Values, names); err != nil {
		return fail("verify", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail("rename", err)
	}

	c.logger.Info("File formatted", "file", path, "dimension", c.dimension,
		"levels", lv.Values, "unit", lv.Unit, "reshaped", reshaped)
	return &Result{Path: path, Modified: true, Levels: len(lv.Values), Variables: reshaped, Dropped: dropped}, nil
}

func coordinate(name string, u levels.Unit) variable {
	v := variable{name: name, dims: []string{name}, zero: []float64{}}
	if units := u.Units(); units != "" {
		v.attrs = append(v.attrs, attribute{name: "units", value: units})
	}
	if ln := u.LongName(); ln != "" {
		v.attrs = append(v.attrs, attribute{name: "long_name", value: ln})
	}
	v.attrs = append(v.attrs, attribute{name: "axis", value: "Z"})
	return v
}

// write fills f with the repaired file.
func write(ctx context.Context, f *os.File, src source, l *layout, level string, values []float64) error {
	h, err := header(src, l, level)
	if err != nil {
		return err
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		return err
	}
	for i, p := range l.vars {
		if err := ctx.Err(); err != nil {
			return err
		}
		var data any
		if i == l.coordinate {
			data = values
		} else {
			var shape []int
			if data, shape, err = src.read(p.name); err != nil {
				return err
			}
			if p.axis >= 0 {
				if data, err = broadcast(data, shape, p.axis, len(values)); err != nil {
					return fmt.Errorf("variable %s: %w", p.name, err)
				}
			}
		}
		if err := put(cf, p.name, data); err != nil {
			return err
		}
	}
	if err := padRecords(f, h, src.records()); err != nil {
		return err
	}
	return cdf.UpdateNumRecs(f)
}

// padRecords extends the file to the padded end of the last record. Without
// it a last record ending in an unaligned variable is not counted.
func padRecords(f *os.File, h *cdf.Header, n int) error {
	if n == 0 {
		return nil
	}
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	size := fi.Size()
	for i := 0; i < 4 && h.NumRecs(size) < int64(n); i++ {
		size++
	}
	if size == fi.Size() {
		return nil
	}
	return f.Truncate(size)
}

// header builds the classic header of the repaired file. The header API
// panics on inconsistent definitions, which are reported as errors here.
func header(src source, l *layout, level string) (h *cdf.Header, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("defining header: %v", r)
		}
	}()
	names := make([]string, len(l.dims))
	lengths := make([]int, len(l.dims))
	for i, d := range l.dims {
		names[i] = d.name
		if !d.unlimited {
			lengths[i] = d.length
		}
	}
	h = cdf.NewHeader(names, lengths)
	for _, a := range src.attributes() {
		h.AddAttribute("", a.name, a.value)
	}
	for _, p := range l.vars {
		h.AddVariable(p.name, p.outDims(level), p.zero)
		for _, a := range p.attrs {
			h.AddAttribute(p.name, a.name, a.value)
		}
	}
	h.Define()
	if problems := h.Check(); len(problems) > 0 {
		return nil, fmt.Errorf("defining header: %w", errors.Join(problems...))
	}
	return h, nil
}

func put(cf *cdf.File, name string, data any) error {
	n := length(data)
	if n == 0 {
		return nil
	}
	got, err := cf.Writer(name, nil, nil).Write(data)
	if err != nil && !(errors.Is(err, io.EOF) && got == n) {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if got != n {
		return fmt.Errorf("writing %s: wrote %d of %d values", name, got, n)
	}
	return nil
}

// verify reads the repaired file back with an independent reader.
func verify(path, level string, want []float64, vars []string) error {
	s, err := era5.NewScanner(path)
	if err != nil {
		return err
	}
	defer s.Close()
	if !s.HasDimension(level) {
		return fmt.Errorf("dimension %s missing", level)
	}
	got, err := s.Float64s(level)
	if err != nil {
		return err
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("level values are %v, want %v", got, want)
	}
	have := s.Variables()
	for _, v := range vars {
		if !slices.Contains(have, v) {
			return fmt.Errorf("variable %s missing", v)
		}
	}
	return nil
}
