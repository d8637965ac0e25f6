// container.go: Composition container holding the resolved part catalog
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// part is one export of one deployed module.
type part struct {
	index    int
	module   string
	manifest string
	export   Export
	lifetime Lifetime

	mu       sync.Mutex
	built    bool
	instance any
	// armed dependency types looked up while building instance, hits or misses
	probes map[reflect.Type]bool
}

func (p *part) label() string {
	return p.module + "/" + p.export.label()
}

func (p *part) inFamily(id uuid.UUID) bool {
	return p.export.FamilyID != nil && *p.export.FamilyID == id
}

func (p *part) hasPluginID(id uuid.UUID) bool {
	return p.export.PluginID != nil && *p.export.PluginID == id
}

// observesArmed reports whether ctx arms a type the cached instance looked
// up. Callers hold p.mu.
func (p *part) observesArmed(ctx context.Context) bool {
	return armedAny(ctx, p.probes)
}

// PartInfo describes a part for inspection.
type PartInfo struct {
	Module    string   `json:"module" yaml:"module"`
	Name      string   `json:"name" yaml:"name"`
	Contracts []string `json:"contracts" yaml:"contracts"`
	FamilyID  string   `json:"family_id,omitempty" yaml:"family_id,omitempty"`
	PluginID  string   `json:"plugin_id,omitempty" yaml:"plugin_id,omitempty"`
	Lifetime  Lifetime `json:"lifetime" yaml:"lifetime"`
	Manifest  string   `json:"manifest,omitempty" yaml:"manifest,omitempty"`
}

// Container is the immutable part catalog built by a ContextStrategy.
//
// Parts keep their discovery order. Shared parts hold their instance for the
// life of the container; per-request parts are created on every resolution.
type Container struct {
	parts      []*part
	families   []Family
	strategy   string
	generation uint64
	builtAt    time.Time

	logger        Logger
	observability *observability
}

func newContainer(strategy string, parts []*part, families []Family, logger Logger, obs *observability) *Container {
	for i, p := range parts {
		p.index = i
	}
	return &Container{
		parts:         parts,
		families:      families,
		strategy:      strategy,
		builtAt:       timecache.CachedTime(),
		logger:        NewLogger(logger),
		observability: obs,
	}
}

// Len returns the number of parts.
func (c *Container) Len() int { return len(c.parts) }

// Strategy returns the name of the strategy that built the container.
func (c *Container) Strategy() string { return c.strategy }

// Generation returns the configuration generation the container belongs to.
func (c *Container) Generation() uint64 { return c.generation }

// BuiltAt returns when the container was built.
func (c *Container) BuiltAt() time.Time { return c.builtAt }

// Families returns the families declared by the deployed modules.
func (c *Container) Families() []Family {
	out := make([]Family, len(c.families))
	copy(out, c.families)
	return out
}

// HasFamily reports whether any part is tagged with the family.
func (c *Container) HasFamily(id uuid.UUID) bool {
	for _, p := range c.parts {
		if p.inFamily(id) {
			return true
		}
	}
	return false
}

// Parts describes the catalog in discovery order.
func (c *Container) Parts() []PartInfo {
	infos := make([]PartInfo, 0, len(c.parts))
	for _, p := range c.parts {
		info := PartInfo{
			Module:   p.module,
			Name:     p.export.label(),
			Lifetime: p.lifetime,
			Manifest: p.manifest,
		}
		for _, contract := range p.export.Contracts {
			info.Contracts = append(info.Contracts, ContractName(contract))
		}
		if p.export.FamilyID != nil {
			info.FamilyID = p.export.FamilyID.String()
		}
		if p.export.PluginID != nil {
			info.PluginID = p.export.PluginID.String()
		}
		infos = append(infos, info)
	}
	return infos
}

// ContractTypes returns every distinct contract type served by the catalog.
func (c *Container) ContractTypes() []reflect.Type {
	seen := make(map[reflect.Type]bool)
	var out []reflect.Type
	for _, p := range c.parts {
		for _, contract := range p.export.Contracts {
			if !seen[contract] {
				seen[contract] = true
				out = append(out, contract)
			}
		}
	}
	return out
}

// partFilter narrows a contract lookup.
type partFilter func(*part) bool

func familyFilter(id uuid.UUID) partFilter {
	return func(p *part) bool { return p.inFamily(id) }
}

func pluginFilter(id uuid.UUID) partFilter {
	return func(p *part) bool { return p.hasPluginID(id) }
}

// partsFor returns the parts serving contract that pass every filter.
func (c *Container) partsFor(contract reflect.Type, filters ...partFilter) []*part {
	var matches []*part
	for _, p := range c.parts {
		if !p.export.serves(contract) {
			continue
		}
		accepted := true
		for _, filter := range filters {
			if !filter(p) {
				accepted = false
				break
			}
		}
		if accepted {
			matches = append(matches, p)
		}
	}
	return matches
}

// resolveAll instantiates every part serving contract.
func (c *Container) resolveAll(ctx context.Context, contract reflect.Type, filters ...partFilter) ([]any, error) {
	matches := c.partsFor(contract, filters...)
	values := make([]any, 0, len(matches))
	scope := newScope(ctx, c)
	for _, p := range matches {
		value, err := scope.instantiate(p, contract)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	c.observability.recordResolution(ContractName(contract), len(values))
	return values, nil
}

// resolveSingle instantiates the only part serving contract. Zero and
// multiple matches are reported as distinct errors.
func (c *Container) resolveSingle(ctx context.Context, contract reflect.Type, filters ...partFilter) (any, error) {
	return newScope(ctx, c).resolveSingle(contract, filters...)
}

// scope is one resolution chain. It implements Importer for the factories it
// runs and remembers which armed types they looked up.
type scope struct {
	ctx       context.Context
	container *Container
	parent    *scope
	building  *part
	probes    map[reflect.Type]bool
}

func newScope(ctx context.Context, c *Container) *scope {
	if ctx == nil {
		ctx = context.Background()
	}
	return &scope{ctx: ctx, container: c}
}

func (s *scope) child(p *part) *scope {
	return &scope{ctx: s.ctx, container: s.container, parent: s, building: p}
}

// probe records that the part under construction looked up contract among
// the armed values.
func (s *scope) probe(contract reflect.Type) {
	if s.probes == nil {
		s.probes = make(map[reflect.Type]bool)
	}
	s.probes[contract] = true
}

func (s *scope) probeAll(contracts map[reflect.Type]bool) {
	for contract := range contracts {
		s.probe(contract)
	}
}

// chain returns the labels of the parts under construction, outermost first.
func (s *scope) chain() []string {
	var labels []string
	for current := s; current != nil; current = current.parent {
		if current.building != nil {
			labels = append([]string{current.building.label()}, labels...)
		}
	}
	return labels
}

func (s *scope) isBuilding(p *part) bool {
	for current := s; current != nil; current = current.parent {
		if current.building == p {
			return true
		}
	}
	return false
}

func (s *scope) resolveSingle(contract reflect.Type, filters ...partFilter) (any, error) {
	matches := s.container.partsFor(contract, filters...)
	switch len(matches) {
	case 0:
		return nil, NewContractNotFoundError(ContractName(contract))
	case 1:
		value, err := s.instantiate(matches[0], contract)
		if err != nil {
			return nil, err
		}
		s.container.observability.recordResolution(ContractName(contract), 1)
		return value, nil
	default:
		return nil, NewAmbiguousContractError(ContractName(contract), len(matches))
	}
}

// instantiate returns the instance of p for contract, honoring its lifetime.
func (s *scope) instantiate(p *part, contract reflect.Type) (any, error) {
	if s.isBuilding(p) {
		return nil, NewCircularDependencyError(append(s.chain(), p.label()))
	}

	if p.lifetime != LifetimeShared {
		value, _, err := s.create(p, contract)
		return value, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.built && !p.observesArmed(s.ctx) {
		if err := checkContract(p, contract, p.instance); err != nil {
			return nil, err
		}
		s.probeAll(p.probes)
		return p.instance, nil
	}

	value, probes, err := s.create(p, contract)
	if err != nil {
		return nil, err
	}
	if p.built || armedAny(s.ctx, probes) {
		// An instance built from an armed value belongs to that arming only.
		s.container.logger.Debug("Shared part depends on an armed value, not cached",
			"part", p.label())
		return value, nil
	}
	p.instance = value
	p.built = true
	p.probes = probes
	return value, nil
}

func armedAny(ctx context.Context, contracts map[reflect.Type]bool) bool {
	for contract := range contracts {
		if _, ok := armedValue(ctx, contract); ok {
			return true
		}
	}
	return false
}

// create runs the part factory in a child scope and returns the armed types
// the factory looked up.
func (s *scope) create(p *part, contract reflect.Type) (any, map[reflect.Type]bool, error) {
	child := s.child(p)
	value, err := p.export.Factory(child)
	if err != nil {
		if HasErrorCode(err, ErrCodeCircularDependency) {
			return nil, nil, err
		}
		return nil, nil, NewPartCreationError(p.module, ContractName(contract), err)
	}
	s.probeAll(child.probes)
	if err := checkContract(p, contract, value); err != nil {
		return nil, nil, err
	}
	return value, child.probes, nil
}

func checkContract(p *part, contract reflect.Type, value any) error {
	if value == nil {
		return NewPartCreationError(p.module, ContractName(contract), fmt.Errorf("factory returned nil"))
	}
	if actual := reflect.TypeOf(value); !actual.AssignableTo(contract) {
		return NewContractMismatchError(p.module, ContractName(contract), actual.String())
	}
	return nil
}
