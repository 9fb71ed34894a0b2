// Package registry tracks the job ids currently running on this executor.
//
// It is the duplicate-run guard: a job id can be claimed by at most one
// invocation at a time, and the idle-beat check reads the same set.
package registry

import (
	"sort"
	"sync"
)

// Registry is a mutex-guarded set of running job ids. The zero value is not
// usable; call New.
type Registry struct {
	mu      sync.Mutex
	running map[int64]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{running: make(map[int64]struct{})}
}

// TryClaim inserts jobID and returns true, or returns false and leaves the
// set unchanged if jobID is already running.
func (r *Registry) TryClaim(jobID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.running[jobID]; exists {
		return false
	}
	r.running[jobID] = struct{}{}
	return true
}

// Release removes jobID. Releasing an absent id is a no-op.
func (r *Registry) Release(jobID int64) {
	r.mu.Lock()
	delete(r.running, jobID)
	r.mu.Unlock()
}

// Contains reports whether jobID is currently running.
func (r *Registry) Contains(jobID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[jobID]
	return ok
}

// Len returns the number of running jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// Snapshot returns the running job ids in ascending order.
func (r *Registry) Snapshot() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
