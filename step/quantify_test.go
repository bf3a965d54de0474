package step

import (
	"errors"
	"math"
	"testing"
)

// flatCoordinates builds lat/lon grids with one degree per cell, starting
// near the equator so surface projections stay well conditioned.
func flatCoordinates(rows, cols int) (lat, lon *Grid) {
	lat = NewGrid(rows, cols)
	lon = NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			lat.Set(r, c, float64(r))
			lon.Set(r, c, float64(c))
		}
	}
	return lat, lon
}

func TestQuantifyDurations(t *testing.T) {
	tracked := []*LabelGrid{
		labelsFrom(t, [][]int{{1, 0, 0}}),
		labelsFrom(t, [][]int{{1, 0, 2}}),
		labelsFrom(t, [][]int{{1, 0, 0}}),
	}
	precip := []*Grid{
		gridFrom(t, [][]float64{{2, 0, 0}}),
		gridFrom(t, [][]float64{{2, 0, 4}}),
		gridFrom(t, [][]float64{{2, 0, 0}}),
	}
	lat, lon := flatCoordinates(1, 3)

	stats, err := Quantify(tracked, precip, lat, lon, Config{TimeInterval: 3, PixelArea: 16})
	if err != nil {
		t.Fatalf("Quantify failed: %v", err)
	}
	if len(stats.Durations) != 3 {
		t.Fatalf("incorrect durations length: %d, expected: 3", len(stats.Durations))
	}
	if stats.Durations[0] != 0 {
		t.Errorf("background duration must be 0, got %v", stats.Durations[0])
	}
	if math.Abs(stats.Durations[1]-9) > eps {
		t.Errorf("incorrect duration for event 1: %v, expected: 9", stats.Durations[1])
	}
	if math.Abs(stats.Durations[2]-3) > eps {
		t.Errorf("incorrect duration for event 2: %v, expected: 3", stats.Durations[2])
	}
}

func TestQuantifySizesAndIntensities(t *testing.T) {
	tracked := []*LabelGrid{
		labelsFrom(t, [][]int{
			{1, 1, 0},
			{0, 1, 0},
		}),
		labelsFrom(t, [][]int{
			{0, 0, 0},
			{0, 0, 0},
		}),
	}
	precip := []*Grid{
		gridFrom(t, [][]float64{
			{2, 4, 0},
			{0, 6, 0},
		}),
		gridFrom(t, [][]float64{
			{0, 0, 0},
			{0, 0, 0},
		}),
	}
	lat, lon := flatCoordinates(2, 3)

	stats, err := Quantify(tracked, precip, lat, lon, Config{TimeInterval: 3, PixelArea: 16})
	if err != nil {
		t.Fatalf("Quantify failed: %v", err)
	}
	if math.Abs(stats.Sizes[0][1]-48) > eps {
		t.Errorf("incorrect size: %v, expected: 48", stats.Sizes[0][1])
	}
	if math.Abs(stats.MeanIntensities[0][1]-4) > eps {
		t.Errorf("incorrect mean intensity: %v, expected: 4", stats.MeanIntensities[0][1])
	}
	if stats.Sizes[1][1] != 0 || stats.MeanIntensities[1][1] != 0 {
		t.Error("an absent event must read 0 for all per-slice metrics")
	}
	if stats.CentralOffsets[1][1] != (LocationOffset{}) {
		t.Error("an absent event must read a zero location offset")
	}
}

func TestQuantifyCentralOffsetUniformStorm(t *testing.T) {
	// Uniform precipitation makes the weighted and unweighted centroids
	// coincide, so the offset is (0, 0). A single-cell storm trivially so.
	tracked := []*LabelGrid{
		labelsFrom(t, [][]int{
			{1, 1, 0, 2},
			{1, 1, 0, 0},
		}),
	}
	precip := []*Grid{
		gridFrom(t, [][]float64{
			{3, 3, 0, 5},
			{3, 3, 0, 0},
		}),
	}
	lat, lon := flatCoordinates(2, 4)

	stats, err := Quantify(tracked, precip, lat, lon, Config{TimeInterval: 1, PixelArea: 1})
	if err != nil {
		t.Fatalf("Quantify failed: %v", err)
	}
	for id := 1; id <= 2; id++ {
		off := stats.CentralOffsets[0][id]
		if math.Abs(off.DLon) > eps || math.Abs(off.DLat) > eps {
			t.Errorf("incorrect offset for event %d: %+v, expected: (0, 0)", id, off)
		}
	}
}

func TestQuantifyCentralOffsetLeansTowardIntensity(t *testing.T) {
	// Two equatorial cells at longitudes 0 and 10 with precipitation 1 and 3:
	// the weighted position slides east of the geometric midpoint.
	tracked := []*LabelGrid{
		labelsFrom(t, [][]int{{1, 1}}),
	}
	precip := []*Grid{
		gridFrom(t, [][]float64{{1, 3}}),
	}
	lat, err := NewGridFrom([][]float64{{0, 0}})
	if err != nil {
		t.Fatalf("NewGridFrom failed: %v", err)
	}
	lon, err := NewGridFrom([][]float64{{0, 10}})
	if err != nil {
		t.Fatalf("NewGridFrom failed: %v", err)
	}

	stats, err := Quantify(tracked, precip, lat, lon, Config{TimeInterval: 1, PixelArea: 1})
	if err != nil {
		t.Fatalf("Quantify failed: %v", err)
	}
	off := stats.CentralOffsets[0][1]
	if off.DLon <= 0 || off.DLon >= 5 {
		t.Errorf("offset should lean toward the heavier cell: got DLon %v", off.DLon)
	}
	if math.Abs(off.DLat) > eps {
		t.Errorf("equatorial cells must give zero latitude offset, got %v", off.DLat)
	}
}

func TestQuantifyCentralOffsetWrapsAntimeridian(t *testing.T) {
	// Cells straddling the 180th meridian must report the short-way offset,
	// not a near-360 degree artifact.
	tracked := []*LabelGrid{
		labelsFrom(t, [][]int{{1, 1}}),
	}
	precip := []*Grid{
		gridFrom(t, [][]float64{{1, 3}}),
	}
	lat, err := NewGridFrom([][]float64{{0, 0}})
	if err != nil {
		t.Fatalf("NewGridFrom failed: %v", err)
	}
	lon, err := NewGridFrom([][]float64{{179.5, -179.5}})
	if err != nil {
		t.Fatalf("NewGridFrom failed: %v", err)
	}

	stats, err := Quantify(tracked, precip, lat, lon, Config{TimeInterval: 1, PixelArea: 1})
	if err != nil {
		t.Fatalf("Quantify failed: %v", err)
	}
	off := stats.CentralOffsets[0][1]
	correctAnswer := 0.25
	if math.Abs(off.DLon-correctAnswer) > 0.001 {
		t.Errorf("incorrect wrapped offset: %v, expected: %v", off.DLon, correctAnswer)
	}
}

func TestQuantifyValidation(t *testing.T) {
	tracked := []*LabelGrid{labelsFrom(t, [][]int{{1, 0}})}
	precip := []*Grid{gridFrom(t, [][]float64{{2, 0}})}
	lat, lon := flatCoordinates(1, 2)
	cfg := Config{TimeInterval: 3, PixelArea: 16}

	if _, err := Quantify(tracked, precip, lat, lon, Config{TimeInterval: 0, PixelArea: 16}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("incorrect error for zero time interval: %v, expected ErrInvalidParameter", err)
	}
	if _, err := Quantify(tracked, precip, lat, lon, Config{TimeInterval: 3, PixelArea: math.Inf(1)}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("incorrect error for infinite pixel area: %v, expected ErrInvalidParameter", err)
	}
	if _, err := Quantify(tracked, nil, lat, lon, cfg); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("incorrect error for mismatched lengths: %v, expected ErrShapeMismatch", err)
	}
	if _, err := Quantify(tracked, precip, NewGrid(3, 3), lon, cfg); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("incorrect error for a misshaped latitude grid: %v, expected ErrShapeMismatch", err)
	}
	if _, err := Quantify(tracked, precip, lat, nil, cfg); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("incorrect error for a nil longitude grid: %v, expected ErrShapeMismatch", err)
	}
}
