package pipeline

import (
	"fmt"
	"sync"
)

// Registry holds the stage set and resolves their execution order from
// declared dependencies.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	deps   map[string][]string
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		stages: make(map[string]Stage),
		deps:   make(map[string][]string),
	}
}

// Register adds a stage with its dependencies. Duplicate IDs are rejected.
func (r *Registry) Register(stage Stage, dependsOn ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := stage.ID()
	if _, exists := r.stages[id]; exists {
		return fmt.Errorf("stage %s already registered", id)
	}

	r.stages[id] = stage
	r.deps[id] = dependsOn
	r.order = append(r.order, id)
	return nil
}

// Ordered returns the stages topologically sorted by their dependencies,
// with registration order as the tie-break so runs are deterministic.
func (r *Registry) Ordered() ([]Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, deps := range r.deps {
		for _, dep := range deps {
			if _, ok := r.stages[dep]; !ok {
				return nil, fmt.Errorf("stage %s depends on unknown stage %s", id, dep)
			}
		}
	}

	indegree := make(map[string]int, len(r.stages))
	dependents := make(map[string][]string, len(r.stages))
	for _, id := range r.order {
		indegree[id] = len(r.deps[id])
		for _, dep := range r.deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for _, id := range r.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	ordered := make([]Stage, 0, len(r.stages))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, r.stages[id])

		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(ordered) != len(r.stages) {
		return nil, fmt.Errorf("stage dependency cycle detected")
	}
	return ordered, nil
}

// Len reports the number of registered stages.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stages)
}
