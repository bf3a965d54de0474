package step

import (
	"errors"
	"reflect"
	"testing"
)

// fullElement builds an all-true square element, the simplest structure for
// exercising the segmentation rules.
func fullElement(size int) *StructuringElement {
	se := NewStructuringElement(size, size)
	for i := range se.Mask {
		se.Mask[i] = true
	}
	return se
}

// fillBlock sets a rectangle of cells to 1.0, upper bounds exclusive.
func fillBlock(g *Grid, r0, r1, c0, c1 int) {
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			g.Set(r, c, 1.0)
		}
	}
}

func mustSegment(t *testing.T, se *StructuringElement, g *Grid) *LabelGrid {
	t.Helper()
	seg, err := NewSegmenter(se)
	if err != nil {
		t.Fatalf("NewSegmenter failed: %v", err)
	}
	out, err := seg.Segment(g)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	return out
}

func TestSegmentEmptySlice(t *testing.T) {
	out := mustSegment(t, fullElement(3), NewGrid(6, 6))
	for _, lab := range out.Data {
		if lab != 0 {
			t.Fatal("an all-zero slice must yield an all-zero label grid")
		}
	}
}

func TestSegmentSingleLargeRegion(t *testing.T) {
	g := NewGrid(12, 14)
	fillBlock(g, 2, 7, 1, 6)
	out := mustSegment(t, fullElement(5), g)

	if out.Max() != 1 {
		t.Fatalf("incorrect number of storms: %d, expected: 1", out.Max())
	}
	labeled := 0
	for idx, lab := range out.Data {
		if lab != 0 {
			labeled++
			if g.Data[idx] == 0 {
				t.Fatal("labels must never cover background cells")
			}
		}
	}
	if labeled != 25 {
		t.Errorf("incorrect number of labeled cells: %d, expected: 25", labeled)
	}
}

func TestSegmentMergesAlmostConnectedRegions(t *testing.T) {
	// Two solid blocks separated by one background column: not connected, but
	// their smoothed silhouettes sit within the element's radius.
	g := NewGrid(12, 14)
	fillBlock(g, 2, 7, 1, 6)
	fillBlock(g, 2, 7, 7, 12)
	out := mustSegment(t, fullElement(5), g)

	if out.Max() != 1 {
		t.Errorf("incorrect number of storms: %d, expected: 1", out.Max())
	}
	if out.At(2, 1) != 1 || out.At(2, 7) != 1 {
		t.Errorf("both blocks should share label 1, got %d and %d", out.At(2, 1), out.At(2, 7))
	}
}

func TestSegmentKeepsDistantRegionsSeparate(t *testing.T) {
	// Three background columns exceed the element's radius; no merge.
	g := NewGrid(12, 15)
	fillBlock(g, 2, 7, 1, 6)
	fillBlock(g, 2, 7, 9, 14)
	out := mustSegment(t, fullElement(5), g)

	if out.Max() != 2 {
		t.Fatalf("incorrect number of storms: %d, expected: 2", out.Max())
	}
	if out.At(2, 1) != 1 {
		t.Errorf("the raster-first block must take label 1, got %d", out.At(2, 1))
	}
	if out.At(2, 9) != 2 {
		t.Errorf("the raster-second block must take label 2, got %d", out.At(2, 9))
	}
}

func TestSegmentAbsorbsSmallFragment(t *testing.T) {
	// A lone cell below the block dies under erosion, but its dilated
	// footprint overlaps the block's cluster, so it joins the storm.
	g := NewGrid(12, 14)
	fillBlock(g, 2, 7, 1, 6)
	g.Set(8, 3, 1.0)
	out := mustSegment(t, fullElement(5), g)

	if out.Max() != 1 {
		t.Fatalf("incorrect number of storms: %d, expected: 1", out.Max())
	}
	if out.At(8, 3) != 1 {
		t.Errorf("the fragment should join the large cluster, got label %d", out.At(8, 3))
	}
}

func TestSegmentFragmentTieJoinsLowerCluster(t *testing.T) {
	// The fragment's dilated footprint overlaps both clusters by exactly one
	// cell; the tie resolves to the lower cluster id.
	g := NewGrid(12, 15)
	fillBlock(g, 2, 7, 1, 6)
	fillBlock(g, 2, 7, 9, 14)
	g.Set(8, 7, 1.0)
	out := mustSegment(t, fullElement(5), g)

	if out.Max() != 2 {
		t.Fatalf("incorrect number of storms: %d, expected: 2", out.Max())
	}
	if out.At(8, 7) != 1 {
		t.Errorf("a tied fragment should join the lower cluster id, got %d", out.At(8, 7))
	}
	if out.At(2, 9) != 2 {
		t.Errorf("the second block should keep its own label 2, got %d", out.At(2, 9))
	}
}

func TestSegmentLeftoverFragmentsCluster(t *testing.T) {
	// Two lone cells with no large region nearby cluster among themselves
	// when the element reaches across the gap, and stay apart when it
	// does not.
	g := NewGrid(8, 8)
	g.Set(1, 1, 1.0)
	g.Set(3, 3, 1.0)

	wide := mustSegment(t, fullElement(5), g)
	if wide.Max() != 1 {
		t.Errorf("incorrect number of storms with the wide element: %d, expected: 1", wide.Max())
	}

	narrow := mustSegment(t, fullElement(3), g)
	if narrow.Max() != 2 {
		t.Errorf("incorrect number of storms with the narrow element: %d, expected: 2", narrow.Max())
	}
	if narrow.At(1, 1) != 1 || narrow.At(3, 3) != 2 {
		t.Errorf("incorrect labels: %d and %d, expected: 1 and 2", narrow.At(1, 1), narrow.At(3, 3))
	}
}

func TestSegmentRasterFirstAppearanceIDs(t *testing.T) {
	// The large block is processed before any leftover fragment, but final
	// ids follow raster-scan first appearance: the fragment on row 0 wins
	// label 1.
	g := NewGrid(12, 14)
	fillBlock(g, 2, 7, 1, 6)
	g.Set(0, 9, 1.0)
	out := mustSegment(t, fullElement(5), g)

	if out.At(0, 9) != 1 {
		t.Errorf("the raster-first fragment must take label 1, got %d", out.At(0, 9))
	}
	if out.At(2, 1) != 2 {
		t.Errorf("the block must take label 2, got %d", out.At(2, 1))
	}

	again := mustSegment(t, fullElement(5), g)
	if !reflect.DeepEqual(out.Data, again.Data) {
		t.Error("segmentation must be deterministic for identical input")
	}
}

// shrinkingMorphology violates the capability contract by returning grids of
// the wrong shape from Dilate.
type shrinkingMorphology struct {
	GridMorphology
}

func (shrinkingMorphology) Dilate(g *BinaryGrid, se *StructuringElement) *BinaryGrid {
	return NewBinaryGrid(1, 1)
}

func TestSegmentChecksCapabilityOutput(t *testing.T) {
	seg, err := NewSegmenter(fullElement(3), WithMorphology(shrinkingMorphology{}))
	if err != nil {
		t.Fatalf("NewSegmenter failed: %v", err)
	}
	g := NewGrid(8, 8)
	fillBlock(g, 1, 4, 1, 4)
	if _, err := seg.Segment(g); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("incorrect error: %v, expected ErrShapeMismatch", err)
	}
}

func TestNewSegmenterValidation(t *testing.T) {
	if _, err := NewSegmenter(NewStructuringElement(3, 3)); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("incorrect error for an empty element: %v, expected ErrInvalidParameter", err)
	}
	if _, err := NewSegmenter(nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("incorrect error for a nil element: %v, expected ErrInvalidParameter", err)
	}
	if _, err := NewSegmenter(fullElement(3), WithWorkers(0)); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("incorrect error for zero workers: %v, expected ErrInvalidParameter", err)
	}
}

func TestSegmentMalformedGrid(t *testing.T) {
	seg, err := NewSegmenter(fullElement(3))
	if err != nil {
		t.Fatalf("NewSegmenter failed: %v", err)
	}
	if _, err := seg.Segment(nil); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("incorrect error for a nil grid: %v, expected ErrShapeMismatch", err)
	}
	malformed := &Grid{Rows: 2, Cols: 2, Data: make([]float64, 3)}
	if _, err := seg.Segment(malformed); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("incorrect error for a malformed grid: %v, expected ErrShapeMismatch", err)
	}
}
