// Package profiler - Per stage timing of evaluation runs.
package profiler

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// OperationStats summarizes the recorded durations of one operation.
type OperationStats struct {
	Name  string
	Count int
	Total time.Duration
	Mean  time.Duration
	Min   time.Duration
	Max   time.Duration
	// P95 is the 95th percentile duration.
	P95 time.Duration
}

// Profiler records operation durations. It is safe for concurrent use; a
// nil *Profiler records nothing.
type Profiler struct {
	mu         sync.Mutex
	startTime  time.Time
	operations map[string][]float64
}

// New returns an empty profiler.
func New() *Profiler {
	return &Profiler{
		startTime:  time.Now(),
		operations: make(map[string][]float64),
	}
}

// StartOperation starts timing name.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (p *Profiler) StartOperation(name string) func() {
	if p == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Record adds one duration of name.
func (p *Profiler) Record(name string, d time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.operations[name] = append(p.operations[name], float64(d))
}

// Stats returns the statistics of every operation, sorted by name.
func (p *Profiler) Stats() []OperationStats {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make([]OperationStats, 0, len(p.operations))
	for name, samples := range p.operations {
		sorted := append([]float64(nil), samples...)
		sort.Float64s(sorted)

		var total float64
		for _, v := range sorted {
			total += v
		}
		stats = append(stats, OperationStats{
			Name:  name,
			Count: len(sorted),
			Total: time.Duration(total),
			Mean:  time.Duration(stat.Mean(sorted, nil)),
			Min:   time.Duration(sorted[0]),
			Max:   time.Duration(sorted[len(sorted)-1]),
			P95:   time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil)),
		})
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Report logs the operation timings and the memory in use at debug level.
func (p *Profiler) Report(logger *slog.Logger) {
	if p == nil {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	logger.Debug("profile",
		"uptime", time.Since(p.startTime).Truncate(time.Millisecond),
		"goroutines", runtime.NumGoroutine(),
		"heapAlloc", formatBytes(mem.HeapAlloc),
		"gcCycles", mem.NumGC)

	for _, s := range p.Stats() {
		logger.Debug("operation timing",
			"operation", s.Name,
			"count", s.Count,
			"mean", s.Mean.Truncate(time.Microsecond),
			"min", s.Min.Truncate(time.Microsecond),
			"max", s.Max.Truncate(time.Microsecond),
			"p95", s.P95.Truncate(time.Microsecond))
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
