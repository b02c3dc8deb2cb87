package images

import (
	"runtime"
	"sync"
)

// Parallel executes a function in parallel across one goroutine per CPU.
//
// Arguments:
// - dataSize: The size of the data to process.
// - fn: Function to execute for each partition (receives start and end indices).
//
// Returns:
// - None.
//
// @example
//
//	Parallel(height, func(start, end int) {
//	    for y := start; y < end; y++ {
//	        // Process row y
//	    }
//	})
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	ParallelN(dataSize, runtime.NumCPU(), func(_, partStart, partEnd int) {
		fn(partStart, partEnd)
	})
}

// ParallelN splits [0, dataSize) into at most n contiguous partitions and
// runs fn on each in its own goroutine. Partitions are numbered in index
// order, so callers can keep per-partition state in a slice and fold it
// deterministically afterwards.
//
// Arguments:
// - dataSize: The size of the data to process.
// - n: The maximum number of partitions.
// - fn: Function to execute for each partition.
//
// Returns:
// - int: The number of partitions used (1 when the data is small).
func ParallelN(dataSize, n int, fn func(part, partStart, partEnd int)) int {
	if n < 1 {
		n = 1
	}

	// For small data sizes, parallel processing overhead isn't worth it.
	if n == 1 || dataSize < n*2 {
		fn(0, 0, dataSize)
		return 1
	}

	partSize := dataSize / n

	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize

		// Last partition gets any remaining data.
		if i == n-1 {
			partEnd = dataSize
		}

		go func(part, start, end int) {
			defer wg.Done()
			fn(part, start, end)
		}(i, partStart, partEnd)
	}

	wg.Wait()
	return n
}
