// host_adapter.go: Per-method routing of segmented contracts
//
// A segmented contract is implemented jointly by several routable plugins.
// The primary plugin serves every method; other plugins claim individual
// methods. The routing table maps each method name of the contract to the
// instance that serves it and is read-only once built.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"reflect"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Router returns the instance serving a method of C.
type Router[C any] interface {
	Route(method string) C
}

// Route describes where one method is dispatched.
type Route struct {
	Method   string `json:"method" yaml:"method"`
	PluginID string `json:"plugin_id" yaml:"plugin_id"`
	Primary  bool   `json:"primary" yaml:"primary"`
}

// RoutingTable is the untyped routing table of one contract.
type RoutingTable struct {
	contract  reflect.Type
	name      string
	primaryID uuid.UUID
	primary   any
	methods   []string
	targets   map[string]any
	owners    map[string]uuid.UUID
}

// BuildRoutingTable resolves the routable plugins of cfg and builds the
// table for contract, which must be an interface type.
func BuildRoutingTable(ctx context.Context, src Source, contract reflect.Type, cfg ContractConfiguration) (*RoutingTable, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if contract == nil || contract.Kind() != reflect.Interface {
		return nil, NewContractNotInterfaceError(ContractName(contract))
	}

	container, err := src.Container(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := container.observability.startSpan(ctx, "plughost.adapter.build",
		attribute.String("plughost.contract", ContractName(contract)),
		attribute.Int("plughost.segments", len(cfg.RoutablePlugins)))
	defer span.End()

	table, err := buildRoutingTable(ctx, container, contract, cfg)
	container.observability.recordAdapterBuild(ContractName(contract), err)
	if err != nil {
		container.observability.recordSpanError(span, err)
		container.logger.Error("Host adapter build failed",
			"contract", ContractName(contract),
			"error", err)
		return nil, err
	}

	container.logger.Info("Host adapter built",
		"contract", ContractName(contract),
		"segments", len(cfg.RoutablePlugins),
		"primary", table.primaryID.String())
	return table, nil
}

func buildRoutingTable(ctx context.Context, container *Container, contract reflect.Type, cfg ContractConfiguration) (*RoutingTable, error) {
	name := ContractName(contract)
	if len(cfg.RoutablePlugins) == 0 || len(container.partsFor(contract)) == 0 {
		return nil, NewEmptySegmentedContractError(name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	table := &RoutingTable{
		contract: contract,
		name:     name,
		methods:  make([]string, 0, contract.NumMethod()),
		targets:  make(map[string]any, contract.NumMethod()),
		owners:   make(map[string]uuid.UUID, contract.NumMethod()),
	}
	known := make(map[string]bool, contract.NumMethod())
	for i := 0; i < contract.NumMethod(); i++ {
		method := contract.Method(i).Name
		table.methods = append(table.methods, method)
		known[method] = true
	}

	s := newScope(ctx, container)
	instances := make(map[uuid.UUID]any, len(cfg.RoutablePlugins))
	for _, plugin := range cfg.RoutablePlugins {
		id, _ := plugin.PluginID()
		for _, method := range plugin.MethodClaims {
			if !known[method] {
				return nil, NewUnknownMethodClaimError(name, method, plugin.ID)
			}
		}

		matches := container.partsFor(contract, pluginFilter(id))
		if len(matches) == 0 {
			return nil, NewUnresolvedPluginError(name, plugin.ID)
		}
		if len(matches) > 1 {
			container.logger.Warn("Plugin ID resolves to more than one part, using first",
				"contract", name,
				"plugin_id", plugin.ID,
				"matches", len(matches))
		}
		instance, err := s.instantiate(matches[0], contract)
		if err != nil {
			return nil, err
		}
		instances[id] = instance

		if plugin.Primary {
			table.primaryID = id
			table.primary = instance
		}
	}

	for _, method := range table.methods {
		table.targets[method] = table.primary
		table.owners[method] = table.primaryID
	}
	for _, plugin := range cfg.RoutablePlugins {
		id, _ := plugin.PluginID()
		for _, method := range plugin.MethodClaims {
			table.targets[method] = instances[id]
			table.owners[method] = id
		}
	}
	return table, nil
}

// Contract returns the contract type.
func (t *RoutingTable) Contract() reflect.Type { return t.contract }

// Target returns the instance serving method. Unknown methods go to the
// primary.
func (t *RoutingTable) Target(method string) any {
	if target, ok := t.targets[method]; ok {
		return target
	}
	return t.primary
}

// PrimaryID returns the plugin ID of the primary segment.
func (t *RoutingTable) PrimaryID() uuid.UUID { return t.primaryID }

// Methods returns the method names of the contract in sorted order.
func (t *RoutingTable) Methods() []string {
	out := make([]string, len(t.methods))
	copy(out, t.methods)
	return out
}

// Claimed reports whether any method is served by a non-primary segment.
func (t *RoutingTable) Claimed() bool {
	for _, owner := range t.owners {
		if owner != t.primaryID {
			return true
		}
	}
	return false
}

// Routes describes the table sorted by method name.
func (t *RoutingTable) Routes() []Route {
	routes := make([]Route, 0, len(t.methods))
	for _, method := range t.methods {
		owner := t.owners[method]
		routes = append(routes, Route{
			Method:   method,
			PluginID: owner.String(),
			Primary:  owner == t.primaryID,
		})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Method < routes[j].Method })
	return routes
}

// HostAdapter routes the methods of C across its routable plugins.
// It is safe for concurrent use.
type HostAdapter[C any] struct {
	table   *RoutingTable
	primary C
	targets map[string]C
}

// NewHostAdapter builds the adapter of C from cfg.
//
//	adapter, err := plughost.NewHostAdapter[Editor](ctx, pc, cfg)
//	if err != nil {
//	    return err
//	}
//	adapter.Route("Save").Save(doc)
func NewHostAdapter[C any](ctx context.Context, src Source, cfg ContractConfiguration) (*HostAdapter[C], error) {
	table, err := BuildRoutingTable(ctx, src, reflect.TypeFor[C](), cfg)
	if err != nil {
		return nil, err
	}

	adapter := &HostAdapter[C]{
		table:   table,
		primary: table.primary.(C),
		targets: make(map[string]C, len(table.targets)),
	}
	for method, target := range table.targets {
		adapter.targets[method] = target.(C)
	}
	return adapter, nil
}

// Route implements Router.
func (a *HostAdapter[C]) Route(method string) C {
	if target, ok := a.targets[method]; ok {
		return target
	}
	return a.primary
}

// Primary returns the primary instance.
func (a *HostAdapter[C]) Primary() C { return a.primary }

// Methods returns the method names of C.
func (a *HostAdapter[C]) Methods() []string { return a.table.Methods() }

// Table returns the untyped routing table.
func (a *HostAdapter[C]) Table() *RoutingTable { return a.table }
