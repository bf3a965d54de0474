package step

import (
	"math"

	"github.com/pkg/errors"
)

// LocationOffset is the central-location descriptor of a storm at one slice:
// the intensity-weighted surface position minus the unweighted one, in
// degrees. A symmetric or single-cell storm reads (0, 0).
type LocationOffset struct {
	DLon float64
	DLat float64
}

// Stats aggregates the physical metrics of tracked events. Per-slice arrays
// are indexed [time][event id] and the duration array by event id; index 0
// is the background and always reads zero. Events absent from a slice read
// zero for that slice.
type Stats struct {
	// Durations holds slice count times TimeInterval per event.
	Durations []float64
	// Sizes holds cell count times PixelArea.
	Sizes [][]float64
	// MeanIntensities holds mean precipitation over the event's cells.
	MeanIntensities [][]float64
	// CentralOffsets holds the weighted-minus-unweighted location offsets.
	CentralOffsets [][]LocationOffset
}

// Quantify describes every tracked event by duration, per-slice size, mean
// intensity and central-location offset. It aggregates over the final grids
// alone, so callers can quantify any label field with aligned precipitation
// and coordinate grids.
func Quantify(tracked []*LabelGrid, precip []*Grid, lat, lon *Grid, cfg Config) (*Stats, error) {
	if err := cfg.validateQuantify(); err != nil {
		return nil, err
	}
	if len(tracked) != len(precip) {
		return nil, errors.Wrapf(ErrShapeMismatch, "tracked field has %d slices, precipitation field has %d", len(tracked), len(precip))
	}
	rows, cols, err := validateLabelField("tracked", tracked)
	if err != nil {
		return nil, err
	}
	prows, pcols, err := validateField("precipitation", precip)
	if err != nil {
		return nil, err
	}
	if rows != prows || cols != pcols {
		return nil, errors.Wrapf(ErrShapeMismatch, "tracked slices are %dx%d, precipitation slices are %dx%d", rows, cols, prows, pcols)
	}
	if err := validateCoordinateGrids(lat, lon, rows, cols); err != nil {
		return nil, err
	}
	return quantifyAll(tracked, precip, lat, lon, rows, cols, cfg), nil
}

// quantifyAll is the aggregation pass. Inputs are validated by the callers.
func quantifyAll(tracked []*LabelGrid, precip []*Grid, lat, lon *Grid, rows, cols int, cfg Config) *Stats {
	numIDs := 1
	for _, slice := range tracked {
		if m := slice.Max(); m+1 > numIDs {
			numIDs = m + 1
		}
	}

	// Unit-sphere Cartesian position of every cell, shared by all slices.
	xs := make([]float64, rows*cols)
	ys := make([]float64, rows*cols)
	zs := make([]float64, rows*cols)
	for i := range xs {
		latRad := lat.Data[i] * math.Pi / 180.0
		lonRad := lon.Data[i] * math.Pi / 180.0
		xs[i] = math.Cos(latRad) * math.Cos(lonRad)
		ys[i] = math.Cos(latRad) * math.Sin(lonRad)
		zs[i] = math.Sin(latRad)
	}

	stats := &Stats{
		Durations:       make([]float64, numIDs),
		Sizes:           make([][]float64, len(tracked)),
		MeanIntensities: make([][]float64, len(tracked)),
		CentralOffsets:  make([][]LocationOffset, len(tracked)),
	}

	counts := make([]int, numIDs)
	precipSum := make([]float64, numIDs)
	wx := make([]float64, numIDs)
	wy := make([]float64, numIDs)
	wz := make([]float64, numIDs)
	ux := make([]float64, numIDs)
	uy := make([]float64, numIDs)
	uz := make([]float64, numIDs)

	for t := range tracked {
		stats.Sizes[t] = make([]float64, numIDs)
		stats.MeanIntensities[t] = make([]float64, numIDs)
		stats.CentralOffsets[t] = make([]LocationOffset, numIDs)

		for i := range counts {
			counts[i] = 0
			precipSum[i] = 0
			wx[i], wy[i], wz[i] = 0, 0, 0
			ux[i], uy[i], uz[i] = 0, 0, 0
		}
		for idx, id := range tracked[t].Data {
			if id == 0 {
				continue
			}
			p := precip[t].Data[idx]
			counts[id]++
			precipSum[id] += p
			wx[id] += xs[idx] * p
			wy[id] += ys[idx] * p
			wz[id] += zs[idx] * p
			ux[id] += xs[idx]
			uy[id] += ys[idx]
			uz[id] += zs[idx]
		}

		for id := 1; id < numIDs; id++ {
			if counts[id] == 0 {
				continue
			}
			n := float64(counts[id])
			stats.Durations[id] += cfg.TimeInterval
			stats.Sizes[t][id] = n * cfg.PixelArea
			stats.MeanIntensities[t][id] = precipSum[id] / n

			uLon, uLat := surfacePosition(ux[id]/n, uy[id]/n, uz[id]/n)
			wLon, wLat := uLon, uLat
			if precipSum[id] > 0 {
				wLon, wLat = surfacePosition(wx[id]/precipSum[id], wy[id]/precipSum[id], wz[id]/precipSum[id])
			}
			stats.CentralOffsets[t][id] = LocationOffset{
				DLon: wrapDegrees(wLon - uLon),
				DLat: wLat - uLat,
			}
		}
	}
	return stats
}

// validateCoordinateGrids checks the latitude and longitude grids against
// the field dimensions.
func validateCoordinateGrids(lat, lon *Grid, rows, cols int) error {
	if lat == nil || lat.Rows != rows || lat.Cols != cols || len(lat.Data) != rows*cols {
		return errors.Wrapf(ErrShapeMismatch, "latitude grid must be %dx%d", rows, cols)
	}
	if lon == nil || lon.Rows != rows || lon.Cols != cols || len(lon.Data) != rows*cols {
		return errors.Wrapf(ErrShapeMismatch, "longitude grid must be %dx%d", rows, cols)
	}
	return nil
}

// surfacePosition projects a mean Cartesian position back to the nearest
// point on the unit sphere, returned as longitude and latitude in degrees.
func surfacePosition(x, y, z float64) (lonDeg, latDeg float64) {
	lon := math.Atan2(y, x)
	lat := math.Atan2(z, math.Hypot(x, y))
	return lon * 180.0 / math.Pi, lat * 180.0 / math.Pi
}

// wrapDegrees folds a longitude difference into (-180, 180], so storms
// straddling the antimeridian report small offsets rather than near-360
// artifacts.
func wrapDegrees(d float64) float64 {
	for d > 180 {
		d -= 360
	}
	for d <= -180 {
		d += 360
	}
	return d
}
