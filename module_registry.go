// module_registry.go: Process-wide registry of plugin modules
//
// Plugin packages register their Module from init, the same way database
// drivers register with database/sql. The registry only records what is
// linked into the process; which modules are deployed is decided by the
// manifests found in the plugin directory.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"sort"
	"sync"
)

// ModuleRegistry stores module declarations by name.
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]Module
	logger  Logger
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		modules: make(map[string]Module),
		logger:  DefaultLogger(),
	}
}

var defaultModuleRegistry = NewModuleRegistry()

// DefaultModuleRegistry returns the process-wide registry used by hosts that
// are not given one explicitly.
func DefaultModuleRegistry() *ModuleRegistry {
	return defaultModuleRegistry
}

// RegisterModule registers m with the process-wide registry.
func RegisterModule(m Module) error {
	return defaultModuleRegistry.Register(m)
}

// MustRegisterModule is RegisterModule for use from init functions.
func MustRegisterModule(m Module) {
	if err := RegisterModule(m); err != nil {
		panic(err)
	}
}

// SetLogger replaces the registry logger.
func (r *ModuleRegistry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = NewLogger(logger)
}

// Register validates and adds a module.
func (r *ModuleRegistry) Register(m Module) error {
	if err := m.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[m.Name]; exists {
		return NewDuplicateModuleError(m.Name)
	}
	r.modules[m.Name] = m
	r.logger.Debug("Registered plugin module",
		"module", m.Name,
		"exports", len(m.Exports),
		"families", len(m.Families))
	return nil
}

// Unregister removes a module. It reports whether the module was present.
func (r *ModuleRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[name]; !exists {
		return false
	}
	delete(r.modules, name)
	return true
}

// Lookup returns the module registered under name.
func (r *ModuleRegistry) Lookup(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Names returns the registered module names in lexical order.
func (r *ModuleRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered modules.
func (r *ModuleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
