// Package step identifies rainstorms in gridded precipitation fields, tracks
// them through time, and quantifies the resulting storm events.
//
// The pipeline runs in three stages over a fully materialized, time-ordered
// field of 2D precipitation slices:
//
//  1. Identification. Each slice is segmented independently into storm
//     regions: connected components of nonzero cells, split by erosion into
//     large anchors and small fragments, smoothed by opening, and clustered
//     by near-adjacency within the radius of the caller's structuring
//     element. Output labels are slice-local, numbered 1..K by raster-scan
//     first appearance.
//  2. Tracking. Storms of consecutive slices are linked into persistent
//     events. A candidate link qualifies when the pair's similarity exceeds
//     Tau and its displacement is either under 120 km or turns less than
//     120 degrees off the event's previous displacement; qualifying
//     candidates resolve into a 1:1 matching, greedy by default or
//     Hungarian by option. Unmatched storms found new events with
//     monotonically increasing ids.
//  3. Quantification. Every event is described by duration, per-slice size,
//     mean intensity, and the offset between its intensity-weighted and
//     unweighted central locations on the Earth's surface.
//
// # Similarity
//
// The similarity of two storms is an intensity-weighted, distance-decayed
// overlap measure: with w the per-cell precipitation relative to the storm
// total,
//
//	sim(A, B) = sum_i sum_j wA(i) * wB(j) * exp(-phi * dist(i, j))
//
// computed over the union of the two storms' cells rather than the whole
// grid, which keeps the quadratic cost bounded by the storms' combined
// footprint. Identical single-cell storms score 1; well-separated storms
// decay toward 0 at the scale of 1/phi cells.
//
// # Usage
//
//	se := step.DiskElement(16, 8.5)
//	pipe, err := step.NewPipeline(step.Config{
//		Tau:          0.05,
//		Phi:          0.005,
//		KmPerCell:    6.452,
//		TimeInterval: 3,
//		PixelArea:    16,
//	}, se)
//	if err != nil {
//		// invalid parameters
//	}
//	res, err := pipe.Run(precip, lat, lon)
//
// The stages are also exposed individually as [Identify], [Track] and
// [Quantify] for callers that want intermediate grids or custom wiring, and
// [Threshold] preprocesses raw fields the way the pipeline expects.
//
// # Inputs
//
// Precipitation slices must share one spatial shape and hold non-negative,
// already thresholded intensities; cells below the storm threshold must be
// zero. Latitude and longitude grids align cell-for-cell with the slices.
// All validation failures wrap [ErrShapeMismatch] or [ErrInvalidParameter]
// and carry the offending input in the message. An all-zero slice is not an
// error; it simply contains no storms.
//
// The package holds no global state: every run threads its own [Registry],
// stamped with a fresh run id, so concurrent runs never interfere.
package step
