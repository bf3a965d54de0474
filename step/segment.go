package step

import (
	"github.com/pkg/errors"
)

// Segmenter converts one thresholded intensity slice into a grid of
// slice-local storm labels. Regions large enough to survive erosion anchor
// the storms; fragments near them are absorbed, remote fragments cluster
// among themselves.
type Segmenter struct {
	se      *StructuringElement
	morph   Morphology
	labeler Labeler
}

// NewSegmenter binds a structuring element and the morphological
// capabilities. The element must be non-empty with at least one set cell.
func NewSegmenter(se *StructuringElement, opts ...Option) (*Segmenter, error) {
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
	return &Segmenter{
		se:      se,
		morph:   o.morph,
		labeler: o.labeler,
	}, nil
}

// Segment labels the distinct storm regions of one slice. Ids are assigned
// 1..K by raster-scan first appearance and cover each region's original
// nonzero cells; smoothing and dilation only drive the grouping decisions.
// An all-zero slice yields an all-zero grid and nil error.
func (s *Segmenter) Segment(g *Grid) (*LabelGrid, error) {
	if g == nil || g.Rows <= 0 || g.Cols <= 0 || len(g.Data) != g.Rows*g.Cols {
		return nil, errors.Wrap(ErrShapeMismatch, "segment input grid is nil or malformed")
	}
	mask := nonzeroMask(g)
	if !mask.Any() {
		return NewLabelGrid(g.Rows, g.Cols), nil
	}

	initial, n := s.labeler.Label(mask)
	if err := checkLabelOutput(initial, n, g.Rows, g.Cols); err != nil {
		return nil, err
	}
	if n == 0 {
		return NewLabelGrid(g.Rows, g.Cols), nil
	}

	// Per-region masks, 1-based to match label values.
	regions := make([]*BinaryGrid, n+1)
	for lab := 1; lab <= n; lab++ {
		regions[lab] = NewBinaryGrid(g.Rows, g.Cols)
	}
	for idx, lab := range initial.Data {
		if lab != 0 {
			regions[lab].Data[idx] = true
		}
	}

	// A region is large iff at least one of its cells survives erosion.
	large := make([]bool, n+1)
	smoothed := make([]*BinaryGrid, n+1)
	for lab := 1; lab <= n; lab++ {
		eroded := s.morph.Erode(regions[lab], s.se)
		if err := checkCapabilityOutput("erode", eroded, g.Rows, g.Cols); err != nil {
			return nil, err
		}
		if !eroded.Any() {
			continue
		}
		large[lab] = true
		dilated := s.morph.Dilate(eroded, s.se)
		if err := checkCapabilityOutput("dilate", dilated, g.Rows, g.Cols); err != nil {
			return nil, err
		}
		smoothed[lab] = dilated
	}

	// Almost-connected clustering of the large regions: two belong together
	// when their smoothed silhouettes come within the element's radius,
	// realized as overlap after dilating the lower-labeled silhouette.
	uf := newUnionFind(n + 1)
	for i := 1; i <= n; i++ {
		if !large[i] {
			continue
		}
		var grown *BinaryGrid
		for j := i + 1; j <= n; j++ {
			if !large[j] || uf.find(i) == uf.find(j) {
				continue
			}
			if grown == nil {
				grown = s.morph.Dilate(smoothed[i], s.se)
				if err := checkCapabilityOutput("dilate", grown, g.Rows, g.Cols); err != nil {
					return nil, err
				}
			}
			if grown.Overlaps(smoothed[j]) {
				uf.union(i, j)
			}
		}
	}

	// Enumerate large clusters in ascending lowest-member order and collect
	// their original-cell footprints.
	clusterOf := make([]int, n+1)
	for lab := range clusterOf {
		clusterOf[lab] = -1
	}
	clusterIndex := make(map[int]int)
	var clusterCells []*BinaryGrid
	for lab := 1; lab <= n; lab++ {
		if !large[lab] {
			continue
		}
		root := uf.find(lab)
		k, ok := clusterIndex[root]
		if !ok {
			k = len(clusterCells)
			clusterIndex[root] = k
			clusterCells = append(clusterCells, NewBinaryGrid(g.Rows, g.Cols))
		}
		clusterOf[lab] = k
		for idx, v := range regions[lab].Data {
			if v {
				clusterCells[k].Data[idx] = true
			}
		}
	}

	// Small regions join the large cluster their dilated footprint overlaps
	// the most; all assignments are judged against the clusters as they came
	// out of the large pass. Leftovers cluster among themselves below.
	dilatedSmall := make([]*BinaryGrid, n+1)
	var leftovers []int
	for lab := 1; lab <= n; lab++ {
		if large[lab] {
			continue
		}
		dilated := s.morph.Dilate(regions[lab], s.se)
		if err := checkCapabilityOutput("dilate", dilated, g.Rows, g.Cols); err != nil {
			return nil, err
		}
		dilatedSmall[lab] = dilated
		best, bestCount := -1, 0
		for k := range clusterCells {
			count := overlapCount(dilated, clusterCells[k])
			if count > bestCount {
				best, bestCount = k, count
			}
		}
		if best >= 0 {
			clusterOf[lab] = best
		} else {
			leftovers = append(leftovers, lab)
		}
	}

	// Almost-connected clustering of the leftovers, dilated footprint against
	// original cells, same tolerance rule.
	for a, i := range leftovers {
		for _, j := range leftovers[a+1:] {
			if uf.find(i) != uf.find(j) && dilatedSmall[i].Overlaps(regions[j]) {
				uf.union(i, j)
			}
		}
	}
	for _, lab := range leftovers {
		root := uf.find(lab)
		k, ok := clusterIndex[root]
		if !ok {
			k = len(clusterCells)
			clusterIndex[root] = k
			clusterCells = append(clusterCells, nil)
		}
		clusterOf[lab] = k
	}

	// Final ids in raster-scan first-appearance order over original cells.
	out := NewLabelGrid(g.Rows, g.Cols)
	finalID := make([]int, len(clusterCells))
	next := 0
	for idx, lab := range initial.Data {
		if lab == 0 {
			continue
		}
		k := clusterOf[lab]
		if finalID[k] == 0 {
			next++
			finalID[k] = next
		}
		out.Data[idx] = finalID[k]
	}
	return out, nil
}

// overlapCount counts the cells set in both masks.
func overlapCount(a, b *BinaryGrid) int {
	count := 0
	for i, v := range a.Data {
		if v && b.Data[i] {
			count++
		}
	}
	return count
}

func checkCapabilityOutput(op string, got *BinaryGrid, rows, cols int) error {
	if got == nil || got.Rows != rows || got.Cols != cols || len(got.Data) != rows*cols {
		return errors.Wrapf(ErrShapeMismatch, "%s capability returned a malformed grid, expected %dx%d", op, rows, cols)
	}
	return nil
}

func checkLabelOutput(got *LabelGrid, n, rows, cols int) error {
	if got == nil || got.Rows != rows || got.Cols != cols || len(got.Data) != rows*cols {
		return errors.Wrapf(ErrShapeMismatch, "label capability returned a malformed grid, expected %dx%d", rows, cols)
	}
	for _, lab := range got.Data {
		if lab < 0 || lab > n {
			return errors.Wrapf(ErrShapeMismatch, "label capability returned label %d outside [0, %d]", lab, n)
		}
	}
	return nil
}

// unionFind is a plain disjoint-set forest over region labels.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(x, y int) {
	rx, ry := u.find(x), u.find(y)
	if rx == ry {
		return
	}
	// Lower root wins so cluster enumeration stays raster-ordered.
	if ry < rx {
		rx, ry = ry, rx
	}
	u.parent[ry] = rx
}
