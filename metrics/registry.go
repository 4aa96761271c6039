package metrics

import "sync"

// Registry holds a set of named metrics. It is deliberately minimal: the
// asmcse module only needs enough of go-ethereum's metrics surface to expose
// a handful of optimizer counters, not the full reporting/export machinery.
type Registry interface {
	GetOrRegister(name string, metric interface{}) interface{}
	Each(func(string, interface{}))
}

type registry struct {
	mutex sync.Mutex
	byName map[string]interface{}
}

// NewRegistry creates a new, empty Registry.
func NewRegistry() Registry {
	return &registry{byName: make(map[string]interface{})}
}

func (r *registry) GetOrRegister(name string, metric interface{}) interface{} {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if existing, ok := r.byName[name]; ok {
		return existing
	}
	r.byName[name] = metric
	return metric
}

func (r *registry) Each(fn func(string, interface{})) {
	r.mutex.Lock()
	snapshot := make(map[string]interface{}, len(r.byName))
	for k, v := range r.byName {
		snapshot[k] = v
	}
	r.mutex.Unlock()
	for k, v := range snapshot {
		fn(k, v)
	}
}

// DefaultRegistry is the registry used by the package-level New*Registered*
// constructors when no registry is supplied.
var DefaultRegistry = NewRegistry()

func getOrRegister[T any](name string, constructor func() T, r Registry) T {
	if r == nil {
		r = DefaultRegistry
	}
	return r.GetOrRegister(name, constructor()).(T)
}
