package step

import (
	"sync"

	"github.com/pkg/errors"
)

// Identify segments every slice of a time-ordered precipitation field into
// slice-local storm labels. Slices are independent, so the work fans out
// across a bounded pool of workers (WithWorkers, default NumCPU). Failures
// are isolated per slice; the lowest failing time index is reported.
func Identify(precip []*Grid, se *StructuringElement, opts ...Option) ([]*LabelGrid, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if err := se.validate(); err != nil {
		return nil, err
	}
	if _, _, err := validateField("precipitation", precip); err != nil {
		return nil, err
	}
	seg := &Segmenter{se: se, morph: o.morph, labeler: o.labeler}
	return identifyAll(seg, precip, o.workers)
}

func identifyAll(seg *Segmenter, precip []*Grid, workers int) ([]*LabelGrid, error) {
	out := make([]*LabelGrid, len(precip))
	errs := make([]error, len(precip))
	fanOut(len(precip), workers, func(t int) {
		out[t], errs[t] = seg.Segment(precip[t])
	})
	for t, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "segmenting slice %d", t)
		}
	}
	return out, nil
}

// fanOut runs fn for every index in [0, n) on a bounded pool of workers.
// Callers keep result slots disjoint per index, so no locking is involved.
func fanOut(n, workers int, fn func(int)) {
	if n == 0 {
		return
	}
	if workers > n {
		workers = n
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
