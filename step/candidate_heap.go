package step

// candidate is one qualifying link edge between an active event at t-1 and a
// storm at t.
type candidate struct {
	event *EventTrack
	storm *storm
	sim   float64
}

// Copied from container/heap - https://golang.org/pkg/container/heap/
// Why make copy? Just want to avoid type conversion

// candidateHeap orders link candidates best-first: higher similarity, then
// lower event id, then lower storm label. The deterministic tie order makes
// greedy assignment reproducible.
type candidateHeap []*candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].sim != h[j].sim {
		return h[i].sim > h[j].sim
	}
	if h[i].event.ID != h[j].event.ID {
		return h[i].event.ID < h[j].event.ID
	}
	return h[i].storm.label < h[j].storm.label
}
func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push pushes the element x onto the heap.
// The complexity is O(log n) where n = h.Len().
func (h *candidateHeap) Push(x *candidate) {
	*h = append(*h, x)
	h.up(h.Len() - 1)
}

// Pop removes and returns the best element (according to Less) from the heap.
// The complexity is O(log n) where n = h.Len().
func (h *candidateHeap) Pop() *candidate {
	n := h.Len() - 1
	h.Swap(0, n)
	h.down(0, n)
	heapSize := len(*h)
	lastNode := (*h)[heapSize-1]
	*h = (*h)[0 : heapSize-1]
	return lastNode
}

func (h candidateHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		j = i
	}
}

func (h candidateHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.Less(j2, j1) {
			j = j2
		}
		if !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		i = j
	}
	return i > i0
}
