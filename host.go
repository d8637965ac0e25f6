// host.go: Plugin host facade with configuration hot swap
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// HostOptions configures a Host.
type HostOptions struct {
	// BasePath anchors a relative plugin directory. Empty means the
	// working directory.
	BasePath string

	// PluginDirectory overrides the directory named by the configuration
	PluginDirectory string

	// ScanDepth bounds the manifest scan (default DefaultDiscoveryDepth)
	ScanDepth int

	// ManifestPatterns overrides DefaultManifestPatterns
	ManifestPatterns []string

	// ExcludePaths are skipped by the scan
	ExcludePaths []string

	// Registry holds the linked-in modules (default: process-wide registry)
	Registry *ModuleRegistry

	// Dependencies arms host-supplied values (default: process-wide registry)
	Dependencies *DependencyRegistry

	// ObjectLoader opens Go plugin objects named by manifests
	ObjectLoader ModuleObjectLoader

	// Logger receives host diagnostics
	Logger Logger

	// Observability configures metrics and tracing
	Observability ObservabilityConfig

	// Configuration is the initial configuration (default: empty)
	Configuration *ExtensibilityConfiguration
}

// Host is the entry point applications resolve plugins through.
//
// It owns the current configuration and the PluginContext built for it.
// UpdateConfiguration swaps both and drops cached adapters; resolutions that
// already hold the previous context complete against it.
//
//	host, err := plughost.NewHost(plughost.HostOptions{BasePath: appDir})
//	if err != nil {
//	    return err
//	}
//	renderers, err := plughost.Load[Renderer](ctx, host)
//	editor, err := plughost.LoadAdapter[Editor](ctx, host)
type Host struct {
	options       HostOptions
	logger        Logger
	observability *observability

	mu         sync.RWMutex
	config     *ExtensibilityConfiguration
	context    *PluginContext
	generation uint64
	families   map[uuid.UUID]*PluginContext
	adapters   map[reflect.Type]any
}

// NewHost creates a host. Nothing is scanned until the first resolution.
func NewHost(options HostOptions) (*Host, error) {
	if options.Registry == nil {
		options.Registry = DefaultModuleRegistry()
	}
	if options.Dependencies == nil {
		options.Dependencies = DefaultDependencyRegistry()
	}
	if options.ScanDepth <= 0 {
		options.ScanDepth = DefaultDiscoveryDepth
	}

	h := &Host{
		options:       options,
		logger:        NewLogger(options.Logger),
		observability: newObservability(options.Observability),
	}

	cfg := options.Configuration
	if cfg == nil {
		cfg = &ExtensibilityConfiguration{}
	}
	if err := h.UpdateConfiguration(cfg); err != nil {
		return nil, err
	}
	return h, nil
}

var (
	defaultHostMu sync.Mutex
	defaultHost   *Host
)

// DefaultHost returns the process-wide host, creating it on first use from
// the PLUGHOST_* environment and, when PLUGHOST_CONFIG_FILE is set, from
// that configuration file.
func DefaultHost() (*Host, error) {
	defaultHostMu.Lock()
	defer defaultHostMu.Unlock()

	if defaultHost != nil {
		return defaultHost, nil
	}

	envOpts, err := LoadEnvOptions()
	if err != nil {
		return nil, err
	}
	var options HostOptions
	envOpts.Apply(&options)
	if envOpts.ConfigFile != "" {
		cfg, err := LoadConfigFromFile(envOpts.ConfigFile)
		if err != nil {
			return nil, err
		}
		options.Configuration = cfg
	}

	host, err := NewHost(options)
	if err != nil {
		return nil, err
	}
	defaultHost = host
	return host, nil
}

// SetDefaultHost replaces the process-wide host. Nil resets it so the next
// DefaultHost call builds a new one.
func SetDefaultHost(h *Host) {
	defaultHostMu.Lock()
	defer defaultHostMu.Unlock()
	defaultHost = h
}

// UpdateConfiguration validates cfg and atomically replaces the
// configuration and plugin context. Cached adapters are dropped so the next
// LoadAdapter rebuilds against cfg. An invalid cfg leaves the host unchanged.
func (h *Host) UpdateConfiguration(cfg *ExtensibilityConfiguration) error {
	if cfg == nil {
		cfg = &ExtensibilityConfiguration{}
	}
	if err := cfg.Validate(); err != nil {
		h.logger.Error("Configuration rejected", "error", err)
		return err
	}
	next := cfg.Clone()

	h.mu.Lock()
	changed := !h.config.Equal(next)
	h.generation++
	h.config = next
	h.context = h.newContext(nil)
	h.families = make(map[uuid.UUID]*PluginContext)
	h.adapters = make(map[reflect.Type]any)
	generation := h.generation
	h.mu.Unlock()

	h.observability.recordConfigurationUpdate(changed)
	h.logger.Info("Configuration updated",
		"generation", generation,
		"changed", changed,
		"plugin_directory", h.PluginDirectory(),
		"segmented_contracts", len(next.SegmentedContracts))
	return nil
}

// newContext builds a context for the current configuration. Callers hold
// h.mu.
func (h *Host) newContext(familyID *uuid.UUID) *PluginContext {
	options := StrategyOptions{
		Discovery: DiscoveryConfig{
			Directory:    h.pluginDirectoryLocked(),
			FilePatterns: h.options.ManifestPatterns,
			MaxDepth:     h.options.ScanDepth,
			ExcludePaths: h.options.ExcludePaths,
		},
		Registry:      h.options.Registry,
		ObjectLoader:  h.options.ObjectLoader,
		Logger:        h.logger,
		Observability: h.options.Observability,
	}

	var strategy ContextStrategy
	if familyID != nil {
		strategy = NewFilterableStrategy(options, *familyID)
	} else {
		strategy = NewGlobalStrategy(options)
	}
	return NewPluginContext(strategy,
		WithDependencyRegistry(h.options.Dependencies),
		WithContextLogger(h.logger),
		WithGeneration(h.generation))
}

func (h *Host) pluginDirectoryLocked() string {
	dir := h.options.PluginDirectory
	if dir == "" {
		dir = h.config.Directory()
	}
	if filepath.IsAbs(dir) || h.options.BasePath == "" {
		return filepath.Clean(dir)
	}
	return filepath.Join(h.options.BasePath, dir)
}

// PluginDirectory returns the directory scanned by the current context.
func (h *Host) PluginDirectory() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pluginDirectoryLocked()
}

// Context returns the current plugin context.
func (h *Host) Context() *PluginContext {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.context
}

// FamilyContext returns a context holding only the parts of one family,
// built with the filterable strategy and kept until the next configuration
// update.
func (h *Host) FamilyContext(familyID uuid.UUID) *PluginContext {
	h.mu.RLock()
	pc, ok := h.families[familyID]
	h.mu.RUnlock()
	if ok {
		return pc
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if pc, ok := h.families[familyID]; ok {
		return pc
	}
	pc = h.newContext(&familyID)
	h.families[familyID] = pc
	return pc
}

// Container implements Source with the current context.
func (h *Host) Container(ctx context.Context) (*Container, error) {
	return h.Context().Container(ctx)
}

// Dependencies implements Source.
func (h *Host) Dependencies() *DependencyRegistry { return h.options.Dependencies }

// Configuration returns a copy of the current configuration.
func (h *Host) Configuration() *ExtensibilityConfiguration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config.Clone()
}

// Generation returns the configuration generation, incremented by every
// UpdateConfiguration.
func (h *Host) Generation() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.generation
}

// IsFilterable reports whether any part belongs to the family.
func (h *Host) IsFilterable(ctx context.Context, familyID uuid.UUID) bool {
	container, err := h.Container(ctx)
	if err != nil {
		return false
	}
	return container.HasFamily(familyID)
}

// Families returns the families declared by the deployed modules.
func (h *Host) Families(ctx context.Context) ([]Family, error) {
	container, err := h.Container(ctx)
	if err != nil {
		return nil, err
	}
	return container.Families(), nil
}

// Parts describes the current catalog.
func (h *Host) Parts(ctx context.Context) ([]PartInfo, error) {
	container, err := h.Container(ctx)
	if err != nil {
		return nil, err
	}
	return container.Parts(), nil
}

// RoutingTable builds the routing table of a configured segmented contract
// by name, without typed access to the contract.
func (h *Host) RoutingTable(ctx context.Context, contractName string) (*RoutingTable, error) {
	h.mu.RLock()
	cfg := h.config
	pc := h.context
	h.mu.RUnlock()

	cc, ok := cfg.Contract(contractName)
	if !ok {
		return nil, NewContractNotConfiguredError(contractName)
	}
	container, err := pc.Container(ctx)
	if err != nil {
		return nil, err
	}
	for _, contract := range container.ContractTypes() {
		if contractMatchesName(contract, contractName) {
			return BuildRoutingTable(ctx, pc, contract, cc)
		}
	}
	return nil, NewEmptySegmentedContractError(contractName)
}

// LoadHostAdapter returns the adapter of C for the current configuration,
// building and caching it on first use.
func LoadHostAdapter[C any](ctx context.Context, h *Host) (*HostAdapter[C], error) {
	contract := reflect.TypeFor[C]()

	h.mu.RLock()
	cfg := h.config
	pc := h.context
	generation := h.generation
	cached, ok := h.adapters[contract]
	h.mu.RUnlock()
	if ok {
		return cached.(*HostAdapter[C]), nil
	}

	cc, ok := cfg.contractFor(contract)
	if !ok {
		return nil, NewContractNotConfiguredError(ContractName(contract))
	}
	adapter, err := NewHostAdapter[C](ctx, pc, cc)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.generation != generation {
		return adapter, nil
	}
	if existing, ok := h.adapters[contract]; ok {
		return existing.(*HostAdapter[C]), nil
	}
	h.adapters[contract] = adapter
	return adapter, nil
}

// LoadAdapter returns C as a single object whose methods are routed across
// the segments configured for C.
//
// The typed proxy registered for C wraps the adapter. Without one, a
// contract whose methods all route to the primary resolves to the primary
// itself; otherwise a ProxyNotRegistered error is returned.
func LoadAdapter[C any](ctx context.Context, h *Host) (C, error) {
	var zero C
	adapter, err := LoadHostAdapter[C](ctx, h)
	if err != nil {
		return zero, err
	}
	if HasProxy[C]() {
		return NewRoutableProxy[C](adapter)
	}
	if !adapter.Table().Claimed() {
		return adapter.Primary(), nil
	}
	return zero, NewProxyNotRegisteredError(ContractName(reflect.TypeFor[C]()))
}
