package step

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// storm is one labeled region of a single slice, prepared for similarity
// computation. Cells are flat raster-order indices; weights are the per-cell
// precipitation relative to the storm total and sum to 1.
type storm struct {
	label    int
	cells    []int
	weights  []float64
	total    float64
	centroid Point
}

// buildStorms collects the storms of one slice in ascending label order.
func buildStorms(labels *LabelGrid, precip *Grid) []*storm {
	maxLabel := labels.Max()
	if maxLabel == 0 {
		return nil
	}
	byLabel := make([]*storm, maxLabel+1)
	for idx, lab := range labels.Data {
		if lab == 0 {
			continue
		}
		st := byLabel[lab]
		if st == nil {
			st = &storm{label: lab}
			byLabel[lab] = st
		}
		st.cells = append(st.cells, idx)
	}
	out := make([]*storm, 0, maxLabel)
	for lab := 1; lab <= maxLabel; lab++ {
		if st := byLabel[lab]; st != nil {
			st.finish(labels.Cols, precip)
			out = append(out, st)
		}
	}
	return out
}

// finish derives the relative weights and the intensity-weighted centroid.
// A zero-total storm keeps zero weights and falls back to the unweighted
// mean position, so downstream similarity is 0 instead of NaN.
func (st *storm) finish(cols int, precip *Grid) {
	st.weights = make([]float64, len(st.cells))
	for i, idx := range st.cells {
		st.weights[i] = precip.Data[idx]
	}
	st.total = floats.Sum(st.weights)
	if st.total > 0 {
		floats.Scale(1/st.total, st.weights)
		var row, col float64
		for i, idx := range st.cells {
			row += st.weights[i] * float64(idx/cols)
			col += st.weights[i] * float64(idx%cols)
		}
		st.centroid = NewPoint(row, col)
		return
	}
	for i := range st.weights {
		st.weights[i] = 0
	}
	var row, col float64
	for _, idx := range st.cells {
		row += float64(idx / cols)
		col += float64(idx % cols)
	}
	n := float64(len(st.cells))
	st.centroid = NewPoint(row/n, col/n)
}

// similarity scores how co-located and shape-similar two storms of adjacent
// slices are. The computation runs over the union of the two storms' nonzero
// weight cells rather than the full grid, which bounds the O(n²) matrices by
// the combined storm footprint: weight vectors over the union, their outer
// product, and an exponential decay of the pairwise cell distances,
// multiplied elementwise and summed.
func similarity(a, b *storm, cols int, phi float64) float64 {
	seen := make(map[int]int, len(a.cells)+len(b.cells))
	union := make([]int, 0, len(a.cells)+len(b.cells))
	wa := make([]float64, 0, len(a.cells)+len(b.cells))
	wb := make([]float64, 0, len(a.cells)+len(b.cells))
	for i, idx := range a.cells {
		if a.weights[i] == 0 {
			continue
		}
		seen[idx] = len(union)
		union = append(union, idx)
		wa = append(wa, a.weights[i])
		wb = append(wb, 0)
	}
	for j, idx := range b.cells {
		if b.weights[j] == 0 {
			continue
		}
		if pos, ok := seen[idx]; ok {
			wb[pos] = b.weights[j]
			continue
		}
		union = append(union, idx)
		wa = append(wa, 0)
		wb = append(wb, b.weights[j])
	}
	n := len(union)
	if n == 0 {
		return 0
	}

	var weightProd mat.Dense
	weightProd.Outer(1, mat.NewVecDense(n, wa), mat.NewVecDense(n, wb))

	coords := make([]Point, n)
	for i, idx := range union {
		coords[i] = NewPoint(float64(idx/cols), float64(idx%cols))
	}
	decay := mat.NewDense(n, n, nil)
	decay.Apply(func(i, j int, _ float64) float64 {
		return euclideanDistance(coords[i], coords[j])
	}, decay)
	decay.Apply(func(_, _ int, d float64) float64 {
		return math.Exp(-phi * d)
	}, decay)

	weightProd.MulElem(&weightProd, decay)
	return mat.Sum(&weightProd)
}
