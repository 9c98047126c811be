// Package parallel splits index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// Parallelize divides items into contiguous ranges, one per worker, and executes
// fn(start, end) for each range in parallel. workers <= 0 means one per CPU core.
func Parallelize(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > items {
		numWorkers = items // No need for more workers than items
	}

	// Calculate the number of items each worker handles (ceiling division)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}

		// Skip if there's no range to handle
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, 0, fn)
}

// ForEach runs fn(i) for every i in [0, items) on at most workers goroutines.
// workers <= 1 runs sequentially and stops at the first error. In parallel mode
// every index runs and the error of the lowest failing index is returned, so the
// reported error does not depend on scheduling. Panics inside fn are returned as
// *errors.PanicError tagged with op.
func ForEach(items, workers int, op string, fn func(i int) error) error {
	if workers <= 1 || items <= 1 {
		for i := 0; i < items; i++ {
			if err := errors.SafeExecute(op, func() error { return fn(i) }); err != nil {
				return err
			}
		}
		return nil
	}

	errs := make([]error, items)
	Parallelize(items, workers, func(start, end int) {
		for i := start; i < end; i++ {
			errs[i] = errors.SafeExecute(op, func() error { return fn(i) })
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
