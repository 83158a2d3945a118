package worker

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/sight/internal/logging"
)

// DefaultName is the name of the lazily created default worker.
const DefaultName = "sight::default"

// Registry names workers. It owns every worker it created.
type Registry struct {
	mu      sync.Mutex
	workers map[string]*Worker
	def     *Worker
	logger  *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger handed to created workers.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry. No goroutine is started until a worker is requested.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		workers: make(map[string]*Worker),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default returns the default worker, creating it on first use.
func (r *Registry) Default() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.def == nil {
		r.def = New(DefaultName, WithLogger(r.logger))
	}
	return r.def
}

// Get returns the named worker or nil.
func (r *Registry) Get(name string) *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workers[name]
}

// GetOrCreate returns the named worker, creating it when absent.
// created reports whether a new worker was started.
func (r *Registry) GetOrCreate(name string) (w *Worker, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workers[name]; ok {
		return w, false
	}
	w = New(name, WithLogger(r.logger))
	r.workers[name] = w
	return w, true
}

// Add registers an externally created worker under name, replacing any previous entry.
func (r *Registry) Add(name string, w *Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[name] = w
}

// Remove unregisters and stops the named worker.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	w, ok := r.workers[name]
	delete(r.workers, name)
	r.mu.Unlock()
	if ok {
		w.Stop()
	}
}

// Names returns the registered worker names in sorted order. The default worker is not listed.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.workers))
	for n := range r.workers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close stops every worker, the default one last.
func (r *Registry) Close() {
	r.mu.Lock()
	workers := r.workers
	def := r.def
	r.workers = make(map[string]*Worker)
	r.def = nil
	r.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
	if def != nil {
		def.Stop()
	}
}
