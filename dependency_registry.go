// dependency_registry.go: Armed dependencies for host-supplied values
//
// Some values a part needs are not discoverable: the host creates them at
// runtime (a window handle, a session, the object being injected). Arming a
// dependency makes such a value visible to composition for the dynamic extent
// of one action.
//
// The armed value travels in the context handed to the action rather than in
// a global slot, so a resolution running concurrently outside the action can
// never observe it. The registry serializes arming per dependency type: two
// goroutines arming the same type run their actions one after the other.
//
// Callers nesting arm operations of different types must nest them in a
// consistent order, as with any set of mutexes.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"reflect"
	"sync"
)

type armedKey struct{}

// armedSet is an immutable stack of armed values.
type armedSet struct {
	parent   *armedSet
	contract reflect.Type
	value    any
}

func armedFromContext(ctx context.Context) *armedSet {
	if ctx == nil {
		return nil
	}
	set, _ := ctx.Value(armedKey{}).(*armedSet)
	return set
}

// armedValue returns the value armed for contract in ctx.
func armedValue(ctx context.Context, contract reflect.Type) (any, bool) {
	for set := armedFromContext(ctx); set != nil; set = set.parent {
		if set.contract == contract {
			return set.value, true
		}
	}
	return nil, false
}

// Armed returns the value currently armed for D in ctx.
func Armed[D any](ctx context.Context) (D, bool) {
	var zero D
	value, ok := armedValue(ctx, reflect.TypeFor[D]())
	if !ok {
		return zero, false
	}
	typed, ok := value.(D)
	if !ok {
		return zero, false
	}
	return typed, true
}

// DependencyRegistry owns one lock per dependency type.
type DependencyRegistry struct {
	mu    sync.Mutex
	locks map[reflect.Type]*sync.Mutex
}

// NewDependencyRegistry creates a registry.
func NewDependencyRegistry() *DependencyRegistry {
	return &DependencyRegistry{
		locks: make(map[reflect.Type]*sync.Mutex),
	}
}

var defaultDependencyRegistry = NewDependencyRegistry()

// DefaultDependencyRegistry returns the process-wide registry.
func DefaultDependencyRegistry() *DependencyRegistry {
	return defaultDependencyRegistry
}

func (r *DependencyRegistry) lockFor(contract reflect.Type) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[contract]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[contract] = lock
	}
	return lock
}

// ExecuteWhileArmed arms D with value, runs action and disarms.
//
// Every resolution performed with the context passed to action observes
// value when it needs a D. Re-arming D inside its own action is rejected.
//
//	err := plughost.ExecuteWhileArmed[Session](ctx, reg, session, func(ctx context.Context) error {
//	    handler, err = plughost.LoadRequired[Handler](ctx, host)
//	    return err
//	})
func ExecuteWhileArmed[D any](ctx context.Context, reg *DependencyRegistry, value D, action func(ctx context.Context) error) error {
	if reg == nil {
		reg = defaultDependencyRegistry
	}
	return reg.executeWhileArmed(ctx, reflect.TypeFor[D](), value, action)
}

func (r *DependencyRegistry) executeWhileArmed(ctx context.Context, contract reflect.Type, value any, action func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, armed := armedValue(ctx, contract); armed {
		return NewArmedReentryError(ContractName(contract))
	}

	lock := r.lockFor(contract)
	lock.Lock()
	defer lock.Unlock()

	armedCtx := context.WithValue(ctx, armedKey{}, &armedSet{
		parent:   armedFromContext(ctx),
		contract: contract,
		value:    value,
	})
	return action(armedCtx)
}
