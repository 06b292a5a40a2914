package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownTaskType marks a job whose task type has no registered
	// factory. This is a configuration error and is never retried.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrPayloadDecode marks a payload the factory could not decode.
	// Also a configuration error, never retried.
	ErrPayloadDecode = errors.New("payload decode failed")
)

// Factory builds a task instance from a stored payload.
type Factory func(payload json.RawMessage) (Task, error)

// Registry maps a job's declared task type to a factory. It is the sole
// extension point for new background job kinds: register a factory, never
// touch the scheduler.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given task type. Registering the same
// type twice is an error.
func (r *Registry) Register(taskType string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[taskType]; exists {
		return fmt.Errorf("task type %q already registered", taskType)
	}
	r.factories[taskType] = factory
	return nil
}

// Build constructs a task for the given type from the stored payload. A nil
// payload is handed to the factory as an empty JSON object.
func (r *Registry) Build(taskType string, payload json.RawMessage) (Task, error) {
	r.mu.Lock()
	factory, exists := r.factories[taskType]
	r.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}

	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	t, err := factory(payload)
	if err != nil {
		return nil, fmt.Errorf("%w for task type %q: %v", ErrPayloadDecode, taskType, err)
	}
	return t, nil
}

// Exists reports whether a factory is registered for the given type.
func (r *Registry) Exists(taskType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.factories[taskType]
	return exists
}

// Types lists the registered task types in sorted order.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
