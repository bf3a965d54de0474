package step

import (
	"math"

	"github.com/arthurkushman/go-hungarian"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Assignment selects how qualifying link candidates are resolved into a 1:1
// matching within one transition.
type Assignment uint16

const (
	// AssignmentGreedy links the best surviving candidate first; a storm
	// whose best event was claimed falls back to its next-best candidate.
	AssignmentGreedy Assignment = iota
	// AssignmentHungarian maximizes total similarity over the qualifying
	// candidates (Kuhn-Munkres).
	AssignmentHungarian
)

const (
	// maxDisplacementKm gates implausible jumps between consecutive slices.
	maxDisplacementKm = 120.0
	// maxTurningAngle admits fast movers that keep roughly their heading.
	maxTurningAngle = 120.0 * math.Pi / 180.0
)

// activeEvent pairs an event with its storm in the most recent slice, which
// the next transition scores candidates against.
type activeEvent struct {
	event *EventTrack
	storm *storm
}

// Track links identified storms across consecutive slices into persistent
// events. It returns the label grids rewritten to event ids together with
// the registry of event histories. Both returned structures are fresh; the
// inputs are never mutated.
//
// A candidate link between an active event and a storm qualifies when its
// similarity exceeds Tau and the displacement moves less than 120 km, or for
// events with at least two occurrences, turns less than 120 degrees off the
// previous displacement. Storms left unmatched found new events; events left
// unmatched simply stop extending.
func Track(labeled []*LabelGrid, precip []*Grid, cfg Config, opts ...Option) ([]*LabelGrid, *Registry, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, nil, err
	}
	if err := cfg.validateTracking(); err != nil {
		return nil, nil, err
	}
	if len(labeled) != len(precip) {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "labeled field has %d slices, precipitation field has %d", len(labeled), len(precip))
	}
	rows, cols, err := validateLabelField("labeled", labeled)
	if err != nil {
		return nil, nil, err
	}
	prows, pcols, err := validateField("precipitation", precip)
	if err != nil {
		return nil, nil, err
	}
	if rows != prows || cols != pcols {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "labeled slices are %dx%d, precipitation slices are %dx%d", rows, cols, prows, pcols)
	}
	tracked, registry := trackAll(labeled, precip, cols, cfg, o)
	return tracked, registry, nil
}

// trackAll is the sequential linking loop. Inputs are validated by the
// callers.
func trackAll(labeled []*LabelGrid, precip []*Grid, cols int, cfg Config, o options) ([]*LabelGrid, *Registry) {
	registry := NewRegistry()
	tracked := make([]*LabelGrid, len(labeled))
	var active []*activeEvent

	for t := range labeled {
		storms := buildStorms(labeled[t], precip[t])

		// storm label -> linked event, filled by the assignment below.
		linked := make(map[int]*EventTrack, len(storms))
		if t > 0 && len(active) > 0 && len(storms) > 0 {
			sims := pairSimilarities(active, storms, cols, cfg.Phi, o.workers)
			qualify := qualifyCandidates(active, storms, sims, cfg, o.logger, registry.RunID, t)
			switch o.assignment {
			case AssignmentHungarian:
				assignHungarian(active, storms, sims, qualify, linked)
			default:
				assignGreedy(active, storms, sims, qualify, linked)
			}
		}

		// Matched storms extend their events; the rest found new ones in
		// ascending label order. Either way the storm stays active for the
		// next transition.
		next := make([]*activeEvent, 0, len(storms))
		idOf := make(map[int]int, len(storms))
		matched := 0
		for _, st := range storms {
			ev, ok := linked[st.label]
			if ok {
				registry.extend(ev, t, st.label, st.centroid)
				matched++
			} else {
				ev = registry.newEvent(t, st.label, st.centroid)
			}
			idOf[st.label] = ev.ID
			next = append(next, &activeEvent{event: ev, storm: st})
		}
		active = next
		tracked[t] = rewriteLabels(labeled[t], idOf)

		if o.logger != nil {
			o.logger.WithFields(logrus.Fields{
				"run_id":     registry.RunID,
				"time_index": t,
				"storms":     len(storms),
				"matched":    matched,
				"new_events": len(storms) - matched,
			}).Debug("linked slice")
		}
	}
	return tracked, registry
}

// pairSimilarities scores every (active event, storm) pair. Columns are
// independent, so storms fan out across the worker pool.
func pairSimilarities(active []*activeEvent, storms []*storm, cols int, phi float64, workers int) [][]float64 {
	sims := make([][]float64, len(active))
	for i := range sims {
		sims[i] = make([]float64, len(storms))
	}
	fanOut(len(storms), workers, func(j int) {
		for i, act := range active {
			sims[i][j] = similarity(act.storm, storms[j], cols, phi)
		}
	})
	return sims
}

// qualifyCandidates applies the similarity threshold and the displacement
// gate to every pair.
func qualifyCandidates(active []*activeEvent, storms []*storm, sims [][]float64, cfg Config, logger *logrus.Logger, runID uuid.UUID, t int) [][]bool {
	trace := logger != nil && logger.IsLevelEnabled(logrus.TraceLevel)
	qualify := make([][]bool, len(active))
	for i, act := range active {
		qualify[i] = make([]bool, len(storms))
		prev, hasPrev := act.event.prevDisplacement()
		for j, st := range storms {
			disp := st.centroid.Sub(act.storm.centroid)
			distKm := disp.Magnitude() * cfg.KmPerCell
			angle, hasAngle := math.NaN(), false
			if hasPrev {
				angle, hasAngle = angleBetween(disp, prev)
			}

			decision := "accepted"
			switch {
			case sims[i][j] <= cfg.Tau:
				decision = "below-tau"
			case distKm >= maxDisplacementKm && !(hasAngle && angle < maxTurningAngle):
				decision = "gated"
			default:
				qualify[i][j] = true
			}

			if trace {
				fields := logrus.Fields{
					"run_id":          runID,
					"time_index":      t,
					"event_id":        act.event.ID,
					"label":           st.label,
					"similarity":      sims[i][j],
					"displacement_km": distKm,
					"decision":        decision,
				}
				if hasAngle {
					fields["angle_deg"] = angle * 180.0 / math.Pi
				}
				logger.WithFields(fields).Trace("link candidate")
			}
		}
	}
	return qualify
}

// assignGreedy resolves candidates with a max-similarity heap: pop the best
// surviving edge, claim both endpoints, and let storms whose best event was
// taken fall back to their next edge.
func assignGreedy(active []*activeEvent, storms []*storm, sims [][]float64, qualify [][]bool, linked map[int]*EventTrack) {
	h := make(candidateHeap, 0, len(active))
	for i, act := range active {
		for j, st := range storms {
			if qualify[i][j] {
				h.Push(&candidate{event: act.event, storm: st, sim: sims[i][j]})
			}
		}
	}
	claimed := make(map[int]struct{}, len(active))
	for h.Len() > 0 {
		cand := h.Pop()
		if _, ok := claimed[cand.event.ID]; ok {
			continue
		}
		if _, ok := linked[cand.storm.label]; ok {
			continue
		}
		claimed[cand.event.ID] = struct{}{}
		linked[cand.storm.label] = cand.event
	}
}

// assignHungarian resolves candidates with hungarian.SolveMax over the
// qualifying-similarity matrix, zero padded to a square. Padding cells and
// non-qualifying pairs stay unlinked no matter what the solver pairs up.
func assignHungarian(active []*activeEvent, storms []*storm, sims [][]float64, qualify [][]bool, linked map[int]*EventTrack) {
	n := maxInt(len(active), len(storms))
	padded := make([][]float64, n)
	for i := range padded {
		padded[i] = make([]float64, n)
	}
	for i := range active {
		for j := range storms {
			if qualify[i][j] {
				padded[i][j] = sims[i][j]
			}
		}
	}
	for i, row := range hungarian.SolveMax(padded) {
		if i >= len(active) {
			continue
		}
		for j := range row {
			if j < len(storms) && qualify[i][j] {
				linked[storms[j].label] = active[i].event
			}
		}
	}
}

// rewriteLabels maps slice-local labels to persistent event ids. Background
// stays 0.
func rewriteLabels(labels *LabelGrid, idOf map[int]int) *LabelGrid {
	out := NewLabelGrid(labels.Rows, labels.Cols)
	for idx, lab := range labels.Data {
		if lab != 0 {
			out.Data[idx] = idOf[lab]
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
