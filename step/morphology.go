package step

// Morphology provides the binary morphological primitives segmentation is
// built on. Implementations must return a fresh grid with the input's
// dimensions and leave the input untouched. Opening is always expressed as
// erosion followed by dilation, never as a third primitive.
type Morphology interface {
	// Erode keeps a cell set iff every set cell of the element, anchored at
	// (Rows/2, Cols/2) over the cell, lands on a set input cell.
	// Out-of-bounds counts as background.
	Erode(g *BinaryGrid, se *StructuringElement) *BinaryGrid

	// Dilate marks, for every set input cell, all cells covered by the
	// element anchored there, clipped at the grid borders.
	Dilate(g *BinaryGrid, se *StructuringElement) *BinaryGrid
}

// Labeler assigns connected-component labels to a binary mask.
type Labeler interface {
	// Label returns 8-connectivity component labels assigned 1..n in
	// raster-scan first-appearance order, plus the component count n.
	Label(g *BinaryGrid) (*LabelGrid, int)
}

// GridMorphology is the built-in pure Go implementation of Morphology and
// Labeler.
type GridMorphology struct{}

// Erode implements Morphology.
func (GridMorphology) Erode(g *BinaryGrid, se *StructuringElement) *BinaryGrid {
	out := NewBinaryGrid(g.Rows, g.Cols)
	anchorR, anchorC := se.Rows/2, se.Cols/2
	for r := 0; r < g.Rows; r++ {
	cells:
		for c := 0; c < g.Cols; c++ {
			if !g.At(r, c) {
				continue
			}
			for kr := 0; kr < se.Rows; kr++ {
				for kc := 0; kc < se.Cols; kc++ {
					if !se.At(kr, kc) {
						continue
					}
					nr := r + kr - anchorR
					nc := c + kc - anchorC
					if nr < 0 || nr >= g.Rows || nc < 0 || nc >= g.Cols || !g.At(nr, nc) {
						continue cells
					}
				}
			}
			out.Set(r, c, true)
		}
	}
	return out
}

// Dilate implements Morphology.
func (GridMorphology) Dilate(g *BinaryGrid, se *StructuringElement) *BinaryGrid {
	out := NewBinaryGrid(g.Rows, g.Cols)
	anchorR, anchorC := se.Rows/2, se.Cols/2
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if !g.At(r, c) {
				continue
			}
			for kr := 0; kr < se.Rows; kr++ {
				for kc := 0; kc < se.Cols; kc++ {
					if !se.At(kr, kc) {
						continue
					}
					nr := r + kr - anchorR
					nc := c + kc - anchorC
					if nr < 0 || nr >= g.Rows || nc < 0 || nc >= g.Cols {
						continue
					}
					out.Set(nr, nc, true)
				}
			}
		}
	}
	return out
}

// Label implements Labeler with a stack-based flood fill over the Moore
// neighborhood.
func (GridMorphology) Label(g *BinaryGrid) (*LabelGrid, int) {
	labels := NewLabelGrid(g.Rows, g.Cols)
	next := 0
	for idx := 0; idx < len(g.Data); idx++ {
		if !g.Data[idx] || labels.Data[idx] != 0 {
			continue
		}
		next++
		stack := []int{idx}
		labels.Data[idx] = next
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			cr := current / g.Cols
			cc := current % g.Cols
			for dr := -1; dr <= 1; dr++ {
				nr := cr + dr
				if nr < 0 || nr >= g.Rows {
					continue
				}
				for dc := -1; dc <= 1; dc++ {
					nc := cc + dc
					if nc < 0 || nc >= g.Cols {
						continue
					}
					if dr == 0 && dc == 0 {
						continue
					}
					nIdx := nr*g.Cols + nc
					if !g.Data[nIdx] || labels.Data[nIdx] != 0 {
						continue
					}
					labels.Data[nIdx] = next
					stack = append(stack, nIdx)
				}
			}
		}
	}
	return labels, next
}
