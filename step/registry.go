package step

import (
	"github.com/google/uuid"
)

// Occurrence records one appearance of an event: the time index, the
// slice-local label the storm carried before rewriting, and its
// intensity-weighted centroid.
type Occurrence struct {
	Time     int
	Label    int
	Centroid Point
}

// EventTrack is the ordered occurrence history of one persistent event.
// Occurrences are consecutive in time; an event that fails to extend is
// never revived.
type EventTrack struct {
	ID          int
	Occurrences []Occurrence
}

// last returns the most recent occurrence.
func (e *EventTrack) last() Occurrence {
	return e.Occurrences[len(e.Occurrences)-1]
}

// prevDisplacement returns the displacement from the event's predecessor
// position to its latest position. The second return is false for events
// with fewer than two occurrences.
func (e *EventTrack) prevDisplacement() (Vector, bool) {
	n := len(e.Occurrences)
	if n < 2 {
		return Vector{}, false
	}
	return e.Occurrences[n-1].Centroid.Sub(e.Occurrences[n-2].Centroid), true
}

// Registry is the append-only event store threaded through linking. Ids are
// allocated densely from 1 in creation order and never reused. The registry
// is extended only while tracking runs and is read-only afterwards.
type Registry struct {
	// RunID stamps one tracking run so concurrent runs can be told apart in
	// logs and downstream bookkeeping.
	RunID uuid.UUID

	events []*EventTrack
}

// NewRegistry creates an empty registry with a fresh run id.
func NewRegistry() *Registry {
	return &Registry{
		RunID: uuid.New(),
	}
}

// newEvent founds an event with its first occurrence and returns it.
func (r *Registry) newEvent(t, label int, centroid Point) *EventTrack {
	ev := &EventTrack{
		ID: len(r.events) + 1,
		Occurrences: []Occurrence{
			{Time: t, Label: label, Centroid: centroid},
		},
	}
	r.events = append(r.events, ev)
	return ev
}

// extend appends an occurrence to an existing event.
func (r *Registry) extend(ev *EventTrack, t, label int, centroid Point) {
	ev.Occurrences = append(ev.Occurrences, Occurrence{Time: t, Label: label, Centroid: centroid})
}

// Len returns the number of events founded so far.
func (r *Registry) Len() int {
	return len(r.events)
}

// Event returns the track with the given id, nil when out of range.
func (r *Registry) Event(id int) *EventTrack {
	if id < 1 || id > len(r.events) {
		return nil
	}
	return r.events[id-1]
}

// Events returns the tracks in ascending id order. The returned slice is
// shared with the registry and must not be mutated.
func (r *Registry) Events() []*EventTrack {
	return r.events
}
