package step

import (
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config carries the caller-supplied scalar parameters. All five must be
// positive and finite.
type Config struct {
	// Tau is the similarity threshold for linking storms across consecutive
	// time steps. Typical values sit near 0.7 for hourly continental data.
	Tau float64
	// Phi controls the exponential distance decay inside the similarity
	// measure, in inverse grid cells.
	Phi float64
	// KmPerCell converts grid-cell displacements to kilometers for the
	// linker's distance test.
	KmPerCell float64
	// TimeInterval is the duration one slice represents, in the caller's
	// time unit. Durations are reported in the same unit.
	TimeInterval float64
	// PixelArea is the surface area one grid cell represents, in the
	// caller's area unit. Sizes are reported in the same unit.
	PixelArea float64
}

// Validate reports the first unusable parameter.
func (c Config) Validate() error {
	if !positiveFinite(c.Tau) {
		return errors.Wrapf(ErrInvalidParameter, "tau %v must be positive and finite", c.Tau)
	}
	if !positiveFinite(c.Phi) {
		return errors.Wrapf(ErrInvalidParameter, "phi %v must be positive and finite", c.Phi)
	}
	if !positiveFinite(c.KmPerCell) {
		return errors.Wrapf(ErrInvalidParameter, "km per cell %v must be positive and finite", c.KmPerCell)
	}
	if !positiveFinite(c.TimeInterval) {
		return errors.Wrapf(ErrInvalidParameter, "time interval %v must be positive and finite", c.TimeInterval)
	}
	if !positiveFinite(c.PixelArea) {
		return errors.Wrapf(ErrInvalidParameter, "pixel area %v must be positive and finite", c.PixelArea)
	}
	return nil
}

// validateTracking checks only the parameters the linker consumes, so Track
// can run with a Config whose quantification fields are unset.
func (c Config) validateTracking() error {
	if !positiveFinite(c.Tau) {
		return errors.Wrapf(ErrInvalidParameter, "tau %v must be positive and finite", c.Tau)
	}
	if !positiveFinite(c.Phi) {
		return errors.Wrapf(ErrInvalidParameter, "phi %v must be positive and finite", c.Phi)
	}
	if !positiveFinite(c.KmPerCell) {
		return errors.Wrapf(ErrInvalidParameter, "km per cell %v must be positive and finite", c.KmPerCell)
	}
	return nil
}

// validateQuantify checks only the parameters the quantifier consumes.
func (c Config) validateQuantify() error {
	if !positiveFinite(c.TimeInterval) {
		return errors.Wrapf(ErrInvalidParameter, "time interval %v must be positive and finite", c.TimeInterval)
	}
	if !positiveFinite(c.PixelArea) {
		return errors.Wrapf(ErrInvalidParameter, "pixel area %v must be positive and finite", c.PixelArea)
	}
	return nil
}

// options collects the optional machinery shared by the package entry points.
type options struct {
	morph      Morphology
	labeler    Labeler
	logger     *logrus.Logger
	workers    int
	assignment Assignment
}

func defaultOptions() options {
	gm := GridMorphology{}
	return options{
		morph:      gm,
		labeler:    gm,
		logger:     nil,
		workers:    runtime.NumCPU(),
		assignment: AssignmentGreedy,
	}
}

func (o options) validate() error {
	if o.morph == nil {
		return errors.Wrap(ErrInvalidParameter, "morphology capability must not be nil")
	}
	if o.labeler == nil {
		return errors.Wrap(ErrInvalidParameter, "labeler capability must not be nil")
	}
	if o.workers < 1 {
		return errors.Wrapf(ErrInvalidParameter, "worker count %d must be at least 1", o.workers)
	}
	if o.assignment != AssignmentGreedy && o.assignment != AssignmentHungarian {
		return errors.Wrapf(ErrInvalidParameter, "unknown assignment mode %d", o.assignment)
	}
	return nil
}

// Option customizes the optional machinery of Identify, Track and Pipeline.
type Option func(*options)

// WithMorphology swaps in a custom erosion/dilation implementation.
func WithMorphology(m Morphology) Option {
	return func(o *options) {
		o.morph = m
	}
}

// WithLabeler swaps in a custom connected-component labeler.
func WithLabeler(l Labeler) Option {
	return func(o *options) {
		o.labeler = l
	}
}

// WithLogger attaches a logger. Linkage summaries log at Debug level and
// per-candidate gate decisions at Trace level; the default nil logger keeps
// the package silent.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithWorkers bounds the goroutine fan-out of the parallel stages. The
// default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithAssignment selects how qualifying candidates are assigned to events.
func WithAssignment(a Assignment) Option {
	return func(o *options) {
		o.assignment = a
	}
}
