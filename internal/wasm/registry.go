package wasm

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Registry is the exclusive owner of every loaded module's runtime record.
// Imported-slot links are non-owning references
// into records this Registry holds; they stay valid for the Registry's
// lifetime because records are arena-stable and never removed
// except via Close.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*ModuleInstance
	log     logrus.FieldLogger
}

// NewRegistry constructs an empty registry. A nil logger falls back to
// logrus.StandardLogger(), mirroring the teacher's engineLessConfig default
// pattern (config.go).
func NewRegistry(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{modules: map[string]*ModuleInstance{}, log: log}
}

// Register adds a freshly-built module record under name. Returns an error
// if name is already taken.
func (r *Registry) Register(name string, m *ModuleInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.modules[name]; dup {
		return fmt.Errorf("module %q is already registered", name)
	}
	m.Name = name
	m.ID = ModuleID(uuid.NewString())
	r.modules[name] = m
	r.log.WithField("module", name).WithField("id", string(m.ID)).Debug("module registered")
	return nil
}

// Lookup returns the module record registered under name, or nil.
func (r *Registry) Lookup(name string) *ModuleInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules[name]
}

// Close removes name from the registry. Existing non-owning links into the
// removed record become dangling; callers must ensure nothing still
// references it (the core provides no reference counting,  "Persisted state: None").
func (r *Registry) Close(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, name)
	r.log.WithField("module", name).Debug("module closed")
}

// Names returns the registered module names, order unspecified.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.modules))
	for n := range r.modules {
		out = append(out, n)
	}
	return out
}

// Logger exposes the registry's diagnostic logger so the linker (C6) can
// share it without threading a separate parameter through every phase.
func (r *Registry) Logger() logrus.FieldLogger { return r.log }

// ExportRef is the (module, export) pair LookupExport resolves a
// (module name, export name) query to, which the linker's import
// resolution and the host's export iteration both need.
type ExportRef struct {
	Module *ModuleInstance
	Export *Export
}

// LookupExport finds the export named extern in the module named module.
func (r *Registry) LookupExport(module, extern string) (ExportRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mi, ok := r.modules[module]
	if !ok {
		return ExportRef{}, false
	}
	exp, ok := mi.Exports[extern]
	if !ok {
		return ExportRef{}, false
	}
	return ExportRef{Module: mi, Export: exp}, true
}
