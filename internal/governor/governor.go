package governor

import (
	"sync"
)

// Governor is the in-memory admission controller for per-job concurrency
// limits. State is process-local and lives only for the scheduler's
// lifetime; it is never persisted.
type Governor struct {
	mu      sync.Mutex
	running map[string]int
}

func New() *Governor {
	return &Governor{
		running: make(map[string]int),
	}
}

// TryAcquire admits or rejects a new execution attempt for the named job.
// The check and the increment happen under one lock so there is no window
// for two callers to both pass a limit of one. Rejection is a normal
// "skip this tick" outcome, not an error.
func (g *Governor) TryAcquire(name string, allowConcurrent bool, maxConcurrent *int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := g.running[name]

	if !allowConcurrent {
		if count > 0 {
			return false
		}
	} else if maxConcurrent != nil && count >= *maxConcurrent {
		return false
	}

	g.running[name] = count + 1
	return true
}

// Release decrements the running count for the named job. Zero-count
// entries are dropped so the map stays bounded by the number of jobs
// actually in flight.
func (g *Governor) Release(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	count, ok := g.running[name]
	if !ok {
		return
	}
	if count <= 1 {
		delete(g.running, name)
		return
	}
	g.running[name] = count - 1
}

// Running returns the current in-flight count for the named job.
func (g *Governor) Running(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[name]
}

// InFlight returns the total number of admitted executions across all jobs.
func (g *Governor) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, c := range g.running {
		total += c
	}
	return total
}
