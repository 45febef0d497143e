// Package tasks provides a named background-task launcher with a bounded
// result registry. Results of finished tasks are retained for polling
// consumers up to a fixed cap; running tasks are never evicted.
package tasks

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castellan/muse/internal/logger"
)

// Status enumerates the lifecycle of a background task
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Result is the queryable outcome of a task
type Result struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Status     Status      `json:"status"`
	Value      interface{} `json:"value,omitempty"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// Func is the unit of work a task executes
type Func func() (interface{}, error)

type entry struct {
	result  Result
	element *list.Element // position in insertion order, value is the task id
}

// Registry launches tasks on their own goroutines and retains their results.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // oldest at front
	limit   int
	wg      sync.WaitGroup
}

// NewRegistry creates a registry that keeps at most limit entries.
func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = 64
	}
	return &Registry{
		entries: make(map[string]*entry),
		order:   list.New(),
		limit:   limit,
	}
}

// Start launches fn on its own goroutine and returns the task id. A task
// that returns an error is recorded as failed; a task that panics is
// recorded as failed and then re-panics, crashing its goroutine loudly
// rather than swallowing the fault.
func (r *Registry) Start(name string, fn Func) string {
	id := uuid.NewString()

	r.mu.Lock()
	e := &entry{
		result: Result{
			ID:        id,
			Name:      name,
			Status:    StatusRunning,
			StartedAt: time.Now(),
		},
	}
	e.element = r.order.PushBack(id)
	r.entries[id] = e
	r.evictLocked()
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.finish(id, nil, fmt.Errorf("task panicked: %v", rec))
				panic(rec)
			}
		}()

		value, err := fn()
		r.finish(id, value, err)
	}()

	return id
}

// Status returns the result for a task id, or false if it is unknown or
// has been evicted.
func (r *Registry) Status(id string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Result{}, false
	}
	return e.result, true
}

// Len returns the number of retained entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Wait blocks until every launched task has finished. Intended for
// shutdown and tests.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func (r *Registry) finish(id string, value interface{}, err error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		// Evicted entries cannot happen while running; a missing entry
		// means the id was never registered.
		logger.Warn("finished task has no registry entry", "task_id", id)
		return
	}

	e.result.FinishedAt = &now
	e.result.Value = value
	if err != nil {
		e.result.Status = StatusError
		e.result.Error = err.Error()
	} else {
		e.result.Status = StatusComplete
	}
	r.evictLocked()
}

// evictLocked trims finished entries from the oldest end while the registry
// exceeds its cap. Running entries encountered at the front are rotated to
// the back instead of removed, so in-flight work is never lost. The scan
// stops once every retained entry has been visited.
func (r *Registry) evictLocked() {
	scanned := 0
	for r.order.Len() > r.limit && scanned < r.order.Len() {
		front := r.order.Front()
		id := front.Value.(string)
		e := r.entries[id]

		if e.result.Status == StatusRunning {
			r.order.MoveToBack(front)
			scanned++
			continue
		}

		r.order.Remove(front)
		delete(r.entries, id)
	}
}
