// internal/worker/task_registry.go
package worker

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fawad-mazhar/taskflow/internal/logging"
)

// ErrTaskTypeExists is returned when a task type key is registered twice
var ErrTaskTypeExists = errors.New("task type already registered")

// TaskType describes a registered task type
type TaskType struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry maps task type keys to their implementations
type Registry struct {
	types map[string]Runnable
	log   *logging.Logger
	mu    sync.RWMutex
}

// NewRegistry creates an empty task type registry
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		types: make(map[string]Runnable),
		log:   log.WithComponent("registry"),
	}
}

// Register adds an implementation under key. Implementations are wrapped with WithTiming.
func (r *Registry) Register(key string, impl Runnable) error {
	if key == "" {
		return fmt.Errorf("task type key must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[key]; exists {
		return fmt.Errorf("%w: %s", ErrTaskTypeExists, key)
	}

	r.types[key] = WithTiming(impl, r.log)
	r.log.Info("registered task type", "key", key, "name", impl.Name())
	return nil
}

// Lookup retrieves the implementation for key
func (r *Registry) Lookup(key string) (Runnable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	impl, exists := r.types[key]
	return impl, exists
}

// Types lists the registered task types ordered by key
func (r *Registry) Types() []TaskType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TaskType, 0, len(r.types))
	for key, impl := range r.types {
		out = append(out, TaskType{Key: key, Name: impl.Name(), Description: impl.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
