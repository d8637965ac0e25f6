// plugin_context.go: Lazily built composition context and typed resolution
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Source is anything parts can be resolved from: a PluginContext or a Host.
type Source interface {
	// Container returns the current container, building it on first use
	Container(ctx context.Context) (*Container, error)

	// Dependencies returns the registry used to arm host-supplied values
	Dependencies() *DependencyRegistry
}

// PluginContext wraps the container built by a strategy.
//
// The container is built on first access. Concurrent first callers wait for
// the same build; a failed build is not kept and the next access retries.
type PluginContext struct {
	strategy     ContextStrategy
	dependencies *DependencyRegistry
	logger       Logger

	mu         sync.Mutex
	container  *Container
	generation uint64
}

// PluginContextOption configures a PluginContext.
type PluginContextOption func(*PluginContext)

// WithDependencyRegistry sets the registry used by ArmedLoad and SelfInject.
func WithDependencyRegistry(reg *DependencyRegistry) PluginContextOption {
	return func(pc *PluginContext) {
		if reg != nil {
			pc.dependencies = reg
		}
	}
}

// WithContextLogger sets the logger of the context.
func WithContextLogger(logger Logger) PluginContextOption {
	return func(pc *PluginContext) {
		pc.logger = NewLogger(logger)
	}
}

// WithGeneration sets the configuration generation stamped on containers.
func WithGeneration(generation uint64) PluginContextOption {
	return func(pc *PluginContext) {
		pc.generation = generation
	}
}

// NewPluginContext creates a context over strategy. Nothing is scanned until
// the first resolution.
func NewPluginContext(strategy ContextStrategy, opts ...PluginContextOption) *PluginContext {
	pc := &PluginContext{
		strategy:     strategy,
		dependencies: DefaultDependencyRegistry(),
		logger:       NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc
}

// Strategy returns the strategy the context builds with.
func (pc *PluginContext) Strategy() ContextStrategy { return pc.strategy }

// Dependencies implements Source.
func (pc *PluginContext) Dependencies() *DependencyRegistry { return pc.dependencies }

// Generation returns the generation stamped on the next or current container.
func (pc *PluginContext) Generation() uint64 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.generation
}

// Container implements Source.
func (pc *PluginContext) Container(ctx context.Context) (*Container, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.container != nil {
		return pc.container, nil
	}

	container, err := pc.strategy.CreateContainer(ctx)
	if err != nil {
		pc.logger.Error("Container build failed",
			"strategy", pc.strategy.Name(),
			"error", err)
		return nil, err
	}
	container.generation = pc.generation
	pc.container = container
	return container, nil
}

// Invalidate drops the container; the next access rebuilds it under a new
// generation.
func (pc *PluginContext) Invalidate() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.container = nil
	pc.generation++
}

// Load returns every part implementing T in discovery order. No match is an
// empty slice. A value armed for T in ctx is not a part and is not returned;
// use LoadRequired or Armed to observe it. Inside a factory, ImportMany does
// include the armed value, ahead of the parts.
func Load[T any](ctx context.Context, src Source) ([]T, error) {
	container, err := src.Container(ctx)
	if err != nil {
		return nil, err
	}
	values, err := container.resolveAll(ctx, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	typed := make([]T, 0, len(values))
	for _, value := range values {
		typed = append(typed, value.(T))
	}
	return typed, nil
}

// LoadFamily returns the part implementing T tagged with familyID. It reports
// false when the family has none. With several matches the first in
// discovery order is returned and a warning is logged.
func LoadFamily[T any](ctx context.Context, src Source, familyID uuid.UUID) (T, bool, error) {
	var zero T
	container, err := src.Container(ctx)
	if err != nil {
		return zero, false, err
	}
	value, ok, err := newScope(ctx, container).ImportFamily(reflect.TypeFor[T](), familyID)
	if err != nil || !ok {
		return zero, false, err
	}
	return value.(T), true, nil
}

// LoadRequired returns the only part implementing T, or the value armed for
// T in ctx. Zero and multiple matches fail with distinct error codes.
func LoadRequired[T any](ctx context.Context, src Source) (T, error) {
	var zero T
	container, err := src.Container(ctx)
	if err != nil {
		return zero, err
	}
	value, err := newScope(ctx, container).Import(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return value.(T), nil
}

// IsSupported reports whether exactly one part implements T. Nothing is
// instantiated.
func IsSupported[T any](ctx context.Context, src Source) bool {
	container, err := src.Container(ctx)
	if err != nil {
		return false
	}
	return len(container.partsFor(reflect.TypeFor[T]())) == 1
}

// ArmedLoad arms D with dep, resolves T and disarms. The returned T was
// composed with exactly dep.
func ArmedLoad[T, D any](ctx context.Context, src Source, dep D) (T, error) {
	var result T
	err := ExecuteWhileArmed(ctx, src.Dependencies(), dep, func(ctx context.Context) error {
		var err error
		result, err = LoadRequired[T](ctx, src)
		return err
	})
	return result, err
}

// SelfInject arms D with target and injects the import points of target.
// With a family, untagged imports resolve within that family.
func SelfInject[D any](ctx context.Context, src Source, target D, familyID ...uuid.UUID) error {
	var family *uuid.UUID
	if len(familyID) > 0 {
		family = &familyID[0]
	}
	return ExecuteWhileArmed(ctx, src.Dependencies(), target, func(ctx context.Context) error {
		return inject(ctx, src, target, family)
	})
}

// Inject populates the import points of target from src.
func Inject(ctx context.Context, src Source, target any) error {
	return inject(ctx, src, target, nil)
}
