// strategy.go: Context-building strategies producing composition containers
//
// Both strategies share one scan: the plugin directory manifests select the
// deployed modules and every export of those modules becomes a part. The
// filterable strategy applies a family predicate to the scanned catalog.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ContextStrategy builds the container of a PluginContext.
type ContextStrategy interface {
	// Name identifies the strategy in logs and metrics
	Name() string

	// CreateContainer scans the plugin directory and builds a container.
	// A missing or empty directory yields an empty container.
	CreateContainer(ctx context.Context) (*Container, error)
}

// StrategyOptions configures the scan shared by all strategies.
type StrategyOptions struct {
	// Discovery configures the plugin directory scan
	Discovery DiscoveryConfig

	// Registry holds the modules linked into the process.
	// Defaults to the process-wide registry.
	Registry *ModuleRegistry

	// ObjectLoader opens plugin objects referenced by manifests
	ObjectLoader ModuleObjectLoader

	// Logger receives scan diagnostics
	Logger Logger

	// Observability configures metrics and tracing of container builds
	Observability ObservabilityConfig
}

// scanner is the state shared by the strategies.
type scanner struct {
	options       StrategyOptions
	logger        Logger
	objects       *objectCache
	observability *observability
}

func newScanner(options StrategyOptions) *scanner {
	if options.Registry == nil {
		options.Registry = DefaultModuleRegistry()
	}
	return &scanner{
		options:       options,
		logger:        NewLogger(options.Logger),
		objects:       newObjectCache(options.ObjectLoader),
		observability: newObservability(options.Observability),
	}
}

// scan returns the catalog in discovery order together with the declared
// families.
func (s *scanner) scan(ctx context.Context) ([]*part, []Family, error) {
	manifests, err := NewDiscoveryEngine(s.options.Discovery, s.logger).Discover(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		parts    []*part
		families []Family
	)
	declared := make(map[uuid.UUID]Family)
	owners := make(map[uuid.UUID]string)
	deployed := make(map[string]bool)

	for _, manifest := range manifests {
		module, ok := s.resolveModule(manifest)
		if !ok {
			continue
		}
		if deployed[module.Name] {
			s.logger.Warn("Module deployed twice, keeping first manifest",
				"module", module.Name,
				"skipped", manifest.ManifestPath)
			continue
		}
		deployed[module.Name] = true

		for _, family := range module.Families {
			if previous, exists := declared[family.ID]; exists {
				if previous.Name != family.Name {
					return nil, nil, NewDuplicateFamilyError(family.ID.String(), owners[family.ID], module.Name+"/"+family.Name)
				}
				continue
			}
			declared[family.ID] = family
			owners[family.ID] = module.Name + "/" + family.Name
			families = append(families, family)
		}

		for _, export := range module.Exports {
			parts = append(parts, &part{
				module:   module.Name,
				manifest: manifest.ManifestPath,
				export:   export,
				lifetime: effectiveLifetime(manifest, export),
			})
		}
	}
	return parts, families, nil
}

// resolveModule finds the module a manifest deploys.
func (s *scanner) resolveModule(manifest *PluginManifest) (Module, bool) {
	if manifest.Object != "" {
		module, err := s.objects.load(manifest.Object)
		if err != nil {
			s.logger.Warn("Skipping plugin object", "path", manifest.Object, "error", err)
			return Module{}, false
		}
		if manifest.Module != "" && manifest.Module != module.Name {
			s.logger.Warn("Plugin object exports another module than its manifest names",
				"manifest_module", manifest.Module,
				"object_module", module.Name,
				"path", manifest.Object)
			return Module{}, false
		}
		return module, true
	}

	module, ok := s.options.Registry.Lookup(manifest.Module)
	if !ok {
		s.logger.Warn("Manifest refers to an unknown module",
			"module", manifest.Module,
			"path", manifest.ManifestPath)
		return Module{}, false
	}
	return module, true
}

// effectiveLifetime applies the manifest convention over the declared
// lifetime; anything left unspecified is per-request.
func effectiveLifetime(manifest *PluginManifest, export Export) Lifetime {
	if lifetime := manifest.lifetimeFor(export); lifetime != LifetimeDefault {
		return lifetime
	}
	if export.Lifetime != LifetimeDefault {
		return export.Lifetime
	}
	return LifetimePerRequest
}

// build runs scan, applies keep and assembles the container.
func (s *scanner) build(ctx context.Context, strategy string, keep partFilter, keepFamily func(Family) bool) (*Container, error) {
	ctx, span := s.observability.startSpan(ctx, "plughost.container.build",
		attribute.String("plughost.strategy", strategy),
		attribute.String("plughost.directory", s.options.Discovery.Directory))
	defer span.End()

	start := time.Now()
	parts, families, err := s.scan(ctx)
	if err != nil {
		s.observability.recordSpanError(span, err)
		return nil, err
	}

	if keep != nil {
		kept := parts[:0]
		for _, p := range parts {
			if keep(p) {
				kept = append(kept, p)
			}
		}
		parts = kept
	}
	if keepFamily != nil {
		kept := families[:0]
		for _, f := range families {
			if keepFamily(f) {
				kept = append(kept, f)
			}
		}
		families = kept
	}

	container := newContainer(strategy, parts, families, s.logger, s.observability)
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("plughost.parts", len(parts)))
	s.observability.recordContainerBuild(strategy, len(parts), elapsed)

	s.logger.Info("Composition container built",
		"strategy", strategy,
		"directory", s.options.Discovery.Directory,
		"parts", len(parts),
		"families", len(families),
		"duration", elapsed)
	return container, nil
}

// GlobalStrategy registers every part of every deployed module.
type GlobalStrategy struct {
	scanner *scanner
}

// NewGlobalStrategy creates a global strategy.
func NewGlobalStrategy(options StrategyOptions) *GlobalStrategy {
	return &GlobalStrategy{scanner: newScanner(options)}
}

// Name implements ContextStrategy.
func (g *GlobalStrategy) Name() string { return "global" }

// CreateContainer implements ContextStrategy.
func (g *GlobalStrategy) CreateContainer(ctx context.Context) (*Container, error) {
	return g.scanner.build(ctx, g.Name(), nil, nil)
}

// FilterableStrategy keeps only the parts tagged with one family. Parts
// without a family are excluded.
type FilterableStrategy struct {
	scanner  *scanner
	familyID uuid.UUID
}

// NewFilterableStrategy creates a strategy scoped to familyID.
func NewFilterableStrategy(options StrategyOptions, familyID uuid.UUID) *FilterableStrategy {
	return &FilterableStrategy{scanner: newScanner(options), familyID: familyID}
}

// Name implements ContextStrategy.
func (f *FilterableStrategy) Name() string { return "filterable:" + f.familyID.String() }

// FamilyID returns the family the strategy keeps.
func (f *FilterableStrategy) FamilyID() uuid.UUID { return f.familyID }

// CreateContainer implements ContextStrategy.
func (f *FilterableStrategy) CreateContainer(ctx context.Context) (*Container, error) {
	return f.scanner.build(ctx, f.Name(), familyFilter(f.familyID), func(family Family) bool {
		return family.ID == f.familyID
	})
}
