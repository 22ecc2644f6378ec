// Package pipeline runs a form submission end to end: validation, level
// resolution, request building, retrieval and file repair.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/rtm0/era5fetch/internal/catalog"
	"github.com/rtm0/era5fetch/internal/errs"
	"github.com/rtm0/era5fetch/internal/form"
	"github.com/rtm0/era5fetch/internal/levels"
	"github.com/rtm0/era5fetch/internal/mars"
	"github.com/rtm0/era5fetch/internal/repair"
)

// Fetcher retrieves dataset with params into target.
type Fetcher interface {
	Retrieve(ctx context.Context, dataset string, params map[string]string, target string) error
}

// Pipeline holds the collaborators of a submission. Fields left zero get
// defaults.
type Pipeline struct {
	Levels        *levels.Table
	Catalog       *catalog.Catalog
	Fetcher       Fetcher
	Logger        *slog.Logger
	MaxModelLevel int
	// Anchor is the dimension the level axis is placed before on repair.
	Anchor string
	// Dataset overrides mars.Dataset.
	Dataset string
	Now     func() time.Time
}

// Plan is a validated submission turned into a request.
type Plan struct {
	Unit   levels.Unit
	Levels []levels.Resolution
	// Variables are the selected variable names, newest first.
	Variables []string
	Request   *mars.Request
}

// Outcome is the result of a finished submission.
type Outcome struct {
	Plan
	Repair *repair.Result
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

func (p *Pipeline) limits() form.Limits {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	lim := form.DefaultLimits(now())
	if p.MaxModelLevel > 0 {
		lim.MaxModelLevel = p.MaxModelLevel
	}
	return lim
}

// Prepare validates f, resolves its levels and builds the request without
// contacting the archive.
func (p *Pipeline) Prepare(f form.Fields) (*Plan, error) {
	s, err := form.Validate(f, p.limits())
	if err != nil {
		return nil, err
	}

	res := s.ModelLevels
	if s.Unit != levels.ModelLevel {
		if p.Levels == nil {
			return nil, errors.New("no level table loaded")
		}
		if res, err = p.Levels.Resolve(s.Unit, s.Values); err != nil {
			return nil, err
		}
	}

	if p.Catalog == nil {
		return nil, errors.New("no variable table loaded")
	}
	sel := catalog.NewSelection(p.Catalog)
	for _, name := range s.Variables {
		if !sel.Add(name) && !sel.Selected(name) {
			return nil, errs.Validation(errs.RuleVariables, "unknown variable %q", name)
		}
	}

	req, err := mars.Build(mars.Input{
		Levels:    levels.IDs(res),
		Hours:     s.Hours,
		Grid:      s.Grid,
		Start:     s.Start,
		End:       s.End,
		Area:      s.Area,
		Variables: sel.IDs(),
		Target:    s.Target,
	})
	if err != nil {
		return nil, err
	}
	if p.Dataset != "" {
		req.Dataset = p.Dataset
	}
	return &Plan{Unit: s.Unit, Levels: res, Variables: sel.Names(), Request: req}, nil
}

// Submit runs the whole submission. Remote failures are returned as
// *errs.RemoteError, repair failures as *errs.IOError.
func (p *Pipeline) Submit(ctx context.Context, f form.Fields) (*Outcome, error) {
	plan, err := p.Prepare(f)
	if err != nil {
		return nil, err
	}
	if p.Fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	logger := p.logger()
	req := plan.Request
	logger.Info("Submitting request", "request", req)

	if err := p.Fetcher.Retrieve(ctx, req.Dataset, req.Params(), req.Target); err != nil {
		return nil, err
	}

	opts := []repair.Option{repair.WithLogger(logger)}
	if p.Anchor != "" {
		opts = append(opts, repair.WithAnchor(p.Anchor))
	}
	res, err := repair.Repair(ctx, req.Target, repair.Levels{Unit: plan.Unit, Values: levels.Values(plan.Levels)}, opts...)
	if err != nil {
		return nil, err
	}
	return &Outcome{Plan: *plan, Repair: res}, nil
}
