// Package pressure implements the Memory Pressure Monitor (spec §4.7,
// component C7): a background sampler that classifies system and process
// memory pressure and gives the Pipeline and Batch Indexer (§5 backpressure)
// a single place to ask "should I slow down".
package pressure

import (
	"context"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	lcidebug "github.com/standardbeagle/lci/internal/debug"
)

// Level classifies current memory pressure.
type Level string

const (
	Normal   Level = "normal"
	Moderate Level = "moderate"
	High     Level = "high"
	Critical Level = "critical"
)

// OpKind distinguishes operation classes for should_throttle's per-kind
// policy (§4.7: "under High, only memory-store reads are permitted").
type OpKind string

const (
	OpBatchIndexing OpKind = "batch_indexing"
	OpLargeSearch   OpKind = "large_search"
	OpMemoryRead    OpKind = "memory_read"
	OpOther         OpKind = "other"
)

const sampleInterval = 30 * time.Second

// Monitor samples memory state on an interval and exposes the derived
// level and throttling decisions. It is one of the process-wide mutable
// singletons named in §5 ("the Memory Pressure Monitor's current-level
// field"), so callers share a single instance via the Index Coordinator.
type Monitor struct {
	maxUsagePercent int

	mu    sync.RWMutex
	level Level

	lastGCHigh     time.Time
	lastGCCritical time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor builds a Monitor. maxUsagePercent is the configured
// MemoryLimits.MaxMemoryUsagePercent baseline the classification
// thresholds are additive on top of.
func NewMonitor(maxUsagePercent int) *Monitor {
	if maxUsagePercent <= 0 || maxUsagePercent > 100 {
		maxUsagePercent = 75
	}
	return &Monitor{maxUsagePercent: maxUsagePercent, level: Normal}
}

// Start launches the background sampling loop. Stop (or ctx cancellation)
// ends it.
func (m *Monitor) Start(ctx context.Context) {
	m.stopCh = make(chan struct{})
	m.sample() // establish an initial level before the first tick

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(sampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Stop ends the sampling loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.stopCh != nil {
		close(m.stopCh)
	}
	m.wg.Wait()
}

// CurrentLevel returns the most recently computed pressure level.
func (m *Monitor) CurrentLevel() Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// SetLevelForTest pins the monitor's level without waiting for a sample
// tick. Exported for other packages' tests that need to exercise
// pressure-dependent behavior (backpressure in C5/C8) deterministically.
func (m *Monitor) SetLevelForTest(level Level) {
	m.mu.Lock()
	m.level = level
	m.mu.Unlock()
}

func (m *Monitor) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	workingSet := ms.Sys
	gcHeap := ms.HeapAlloc
	systemPercent := readSystemMemoryPercent()

	level := classify(systemPercent, workingSet, gcHeap, m.maxUsagePercent)

	m.mu.Lock()
	changed := level != m.level
	m.level = level
	m.mu.Unlock()

	if changed {
		lcidebug.Log("PRESSURE", "level changed to %s (system=%.1f%% workingSet=%dMB gcHeap=%dMB)\n",
			level, systemPercent, workingSet/1024/1024, gcHeap/1024/1024)
	}

	m.maybeTriggerGC(level)
}

// classify applies the §4.7 threshold table, additive on top of max.
func classify(systemPercent float64, workingSet, gcHeap uint64, max int) Level {
	const gb = 1024 * 1024 * 1024
	const mb500 = 500 * 1024 * 1024

	switch {
	case systemPercent > float64(max)+10 || workingSet > 2*gb:
		return Critical
	case systemPercent > float64(max)+5 || workingSet > gb:
		return High
	case systemPercent > float64(max) || gcHeap > mb500:
		return Moderate
	default:
		return Normal
	}
}

// ShouldThrottle applies §4.7's per-operation-kind policy: under High or
// Critical only memory-store reads proceed; everything else is blocked.
func (m *Monitor) ShouldThrottle(op OpKind) bool {
	level := m.CurrentLevel()
	if level == Normal || level == Moderate {
		return false
	}
	return op != OpMemoryRead
}

// RecommendedBatchSize scales n down as pressure rises (§4.7: n/{1,2,4,∞}),
// collapsing to 1 under Critical rather than 0 so forward progress never
// fully stalls (§5's "effective batch size collapses to 1").
func (m *Monitor) RecommendedBatchSize(n int) int {
	if n <= 0 {
		n = 1
	}
	switch m.CurrentLevel() {
	case Moderate:
		return max(1, n/2)
	case High:
		return max(1, n/4)
	case Critical:
		return 1
	default:
		return n
	}
}

// RecommendedConcurrency scales a worker-pool size the same way.
func (m *Monitor) RecommendedConcurrency(n int) int {
	return m.RecommendedBatchSize(n)
}

// MaybeTriggerGC is the public hook callers (e.g. after a large flush) can
// use to ask for an opportunistic collection; it defers to the same
// rate-limited policy the sampler applies automatically.
func (m *Monitor) MaybeTriggerGC() {
	m.maybeTriggerGC(m.CurrentLevel())
}

func (m *Monitor) maybeTriggerGC(level Level) {
	now := time.Now()
	m.mu.Lock()
	var due bool
	switch level {
	case Critical:
		if now.Sub(m.lastGCCritical) >= 30*time.Second {
			m.lastGCCritical = now
			due = true
		}
	case High:
		if now.Sub(m.lastGCHigh) >= 2*time.Minute {
			m.lastGCHigh = now
			due = true
		}
	}
	m.mu.Unlock()

	if due {
		lcidebug.Log("PRESSURE", "forcing GC at level %s\n", level)
		runtime.GC()
		debug.FreeOSMemory()
	}
}

// readSystemMemoryPercent reads used/total from /proc/meminfo on Linux.
// Any other platform, or a malformed/missing file, degrades to 0 (treated
// as Normal) rather than failing — matching §7's DependencyUnavailable
// graceful-degradation policy for an optional signal.
func readSystemMemoryPercent() float64 {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}

	var totalKB, availableKB uint64
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		val, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB = val
		case "MemAvailable:":
			availableKB = val
		}
	}
	if totalKB == 0 {
		return 0
	}
	usedKB := totalKB - availableKB
	return float64(usedKB) / float64(totalKB) * 100
}
