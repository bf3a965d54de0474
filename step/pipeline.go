package step

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Result bundles the outputs of one pipeline run: the slice-local storm
// labels, the same grids rewritten to persistent event ids, the event
// registry, and the per-event metrics.
type Result struct {
	Identified []*LabelGrid
	Tracked    []*LabelGrid
	Registry   *Registry
	Stats      *Stats
}

// Pipeline chains identification, tracking and quantification behind a
// single configured entry point. A pipeline holds no per-run state, so one
// instance may serve concurrent runs.
type Pipeline struct {
	cfg Config
	se  *StructuringElement
	o   options
}

// NewPipeline validates the configuration and the structuring element once,
// so Run can fail fast on shapes alone.
func NewPipeline(cfg Config, se *StructuringElement, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := se.validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, se: se, o: o}, nil
}

// Run identifies, tracks and quantifies a precipitation field. The latitude
// and longitude grids must match the field's spatial dimensions. Inputs are
// validated before any expensive stage runs and are never mutated.
func (p *Pipeline) Run(precip []*Grid, lat, lon *Grid) (*Result, error) {
	rows, cols, err := validateField("precipitation", precip)
	if err != nil {
		return nil, err
	}
	if err := validateCoordinateGrids(lat, lon, rows, cols); err != nil {
		return nil, err
	}

	seg := &Segmenter{se: p.se, morph: p.o.morph, labeler: p.o.labeler}
	identified, err := identifyAll(seg, precip, p.o.workers)
	if err != nil {
		return nil, errors.Wrap(err, "identify")
	}
	tracked, registry := trackAll(identified, precip, cols, p.cfg, p.o)
	stats := quantifyAll(tracked, precip, lat, lon, rows, cols, p.cfg)

	if p.o.logger != nil {
		p.o.logger.WithFields(logrus.Fields{
			"run_id": registry.RunID,
			"slices": len(precip),
			"events": registry.Len(),
		}).Debug("pipeline run complete")
	}
	return &Result{
		Identified: identified,
		Tracked:    tracked,
		Registry:   registry,
		Stats:      stats,
	}, nil
}
