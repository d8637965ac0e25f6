// object_loader.go: Loading modules from Go plugin objects
//
// A manifest may point at a shared object built with -buildmode=plugin. The
// object must export a PlugHostModule symbol, either a Module variable or a
// func() Module.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"fmt"
	"plugin"
	"sync"
)

// ModuleSymbol is the symbol looked up in plugin objects.
const ModuleSymbol = "PlugHostModule"

// ModuleObjectLoader opens a module object.
type ModuleObjectLoader func(path string) (Module, error)

// openModuleObject is the default ModuleObjectLoader.
func openModuleObject(path string) (Module, error) {
	object, err := plugin.Open(path)
	if err != nil {
		return Module{}, NewModuleObjectLoadingError(path, err)
	}

	symbol, err := object.Lookup(ModuleSymbol)
	if err != nil {
		return Module{}, NewModuleObjectLoadingError(path, err)
	}

	switch v := symbol.(type) {
	case *Module:
		return *v, nil
	case func() Module:
		return v(), nil
	default:
		return Module{}, NewModuleObjectLoadingError(path,
			fmt.Errorf("symbol %s has unsupported type %T", ModuleSymbol, symbol))
	}
}

// objectCache remembers the module each object path produced. The runtime
// refuses to open the same plugin object twice with different contents, so
// objects are opened once per process.
type objectCache struct {
	mu      sync.Mutex
	modules map[string]Module
	loader  ModuleObjectLoader
}

func newObjectCache(loader ModuleObjectLoader) *objectCache {
	if loader == nil {
		loader = openModuleObject
	}
	return &objectCache{
		modules: make(map[string]Module),
		loader:  loader,
	}
}

func (c *objectCache) load(path string) (Module, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.modules[path]; ok {
		return m, nil
	}
	m, err := c.loader(path)
	if err != nil {
		return Module{}, err
	}
	if err := m.Validate(); err != nil {
		return Module{}, NewModuleObjectLoadingError(path, err)
	}
	c.modules[path] = m
	return m, nil
}
