// module.go: Plugin module declarations (exports, families, lifetimes)
//
// A plugin package describes what it contributes to the host with a Module
// value instead of decorating its types. Each Export names the contract types
// it serves, the factory creating the implementation and its optional family,
// routable plugin identity and lifetime.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// Lifetime is the instance policy of a part.
type Lifetime int

const (
	// LifetimeDefault leaves the choice to the manifest; resolves to PerRequest.
	LifetimeDefault Lifetime = iota

	// LifetimePerRequest creates a new instance on every resolution
	LifetimePerRequest

	// LifetimeShared creates one instance per container generation
	LifetimeShared
)

// String returns the manifest spelling of the lifetime.
func (l Lifetime) String() string {
	switch l {
	case LifetimePerRequest:
		return "per-request"
	case LifetimeShared:
		return "shared"
	default:
		return "default"
	}
}

// ParseLifetime parses the manifest spelling of a lifetime. The empty string
// yields LifetimeDefault.
func ParseLifetime(s string) (Lifetime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return LifetimeDefault, nil
	case "per-request", "perrequest", "per_request", "transient":
		return LifetimePerRequest, nil
	case "shared", "singleton":
		return LifetimeShared, nil
	default:
		return LifetimeDefault, fmt.Errorf("unknown lifetime %q", s)
	}
}

// UnmarshalText lets manifests spell lifetimes as strings in JSON and YAML.
func (l *Lifetime) UnmarshalText(text []byte) error {
	parsed, err := ParseLifetime(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Family is a named isolation boundary. Parts tagged with a family never
// resolve through a lookup scoped to another family.
type Family struct {
	ID   uuid.UUID `json:"id" yaml:"id"`
	Name string    `json:"name" yaml:"name"`
}

// ParseGUID parses a GUID, reporting malformed input as an InvalidGUID error
// attributed to field.
func ParseGUID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, NewInvalidGUIDError(field, value, err)
	}
	return id, nil
}

// Factory creates the implementation of an export. The Importer gives access
// to armed dependencies and to other parts of the same container.
type Factory func(imp Importer) (any, error)

// Export declares one part contributed by a module.
type Export struct {
	// Name is an optional label used in logs and inspection output
	Name string

	// Contracts served by the part, the first one being the primary contract
	Contracts []reflect.Type

	// Factory creates the implementation
	Factory Factory

	// FamilyID tags the part as belonging to a filterable family
	FamilyID *uuid.UUID

	// PluginID identifies the part as a routable segment
	PluginID *uuid.UUID

	// Lifetime is the declared instance policy
	Lifetime Lifetime
}

// ExportOption customizes an Export built by Provide.
type ExportOption func(*Export)

// Provide declares an export serving contract C.
//
//	plughost.Provide[Greeter](func(plughost.Importer) (Greeter, error) {
//	    return &englishGreeter{}, nil
//	}, plughost.InFamily(alphaID))
func Provide[C any](factory func(imp Importer) (C, error), opts ...ExportOption) Export {
	export := Export{
		Contracts: []reflect.Type{reflect.TypeFor[C]()},
	}
	if factory != nil {
		export.Factory = func(imp Importer) (any, error) {
			value, err := factory(imp)
			if err != nil {
				return nil, err
			}
			return value, nil
		}
	}
	for _, opt := range opts {
		opt(&export)
	}
	return export
}

// AlsoExports adds C to the contracts served by the part.
func AlsoExports[C any]() ExportOption {
	return func(e *Export) {
		e.Contracts = append(e.Contracts, reflect.TypeFor[C]())
	}
}

// InFamily tags the part with a filterable family.
func InFamily(id uuid.UUID) ExportOption {
	return func(e *Export) {
		family := id
		e.FamilyID = &family
	}
}

// WithPluginID marks the part as a routable segment.
func WithPluginID(id uuid.UUID) ExportOption {
	return func(e *Export) {
		plugin := id
		e.PluginID = &plugin
	}
}

// Shared declares the part as shared within a container generation.
func Shared() ExportOption {
	return func(e *Export) { e.Lifetime = LifetimeShared }
}

// PerRequest declares the part as created on every resolution.
func PerRequest() ExportOption {
	return func(e *Export) { e.Lifetime = LifetimePerRequest }
}

// Named sets the export label.
func Named(name string) ExportOption {
	return func(e *Export) { e.Name = name }
}

// label returns the export label, falling back to its primary contract.
func (e Export) label() string {
	if e.Name != "" {
		return e.Name
	}
	if len(e.Contracts) > 0 {
		return ContractName(e.Contracts[0])
	}
	return "<unnamed>"
}

// serves reports whether the export declares contract.
func (e Export) serves(contract reflect.Type) bool {
	for _, c := range e.Contracts {
		if c == contract {
			return true
		}
	}
	return false
}

// Module is the manifest of a plugin package.
type Module struct {
	// Name identifies the module; plugin directory manifests refer to it
	Name string

	// Description is free text shown by inspection tooling
	Description string

	// Families declared by this module
	Families []Family

	// Exports contributed by this module, in discovery order
	Exports []Export
}

// Validate checks the module declaration.
func (m Module) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return NewInvalidModuleError(m.Name, "module name is required")
	}

	seen := make(map[uuid.UUID]string, len(m.Families))
	for _, family := range m.Families {
		if family.ID == uuid.Nil {
			return NewInvalidModuleError(m.Name, "family "+family.Name+" has a nil identifier")
		}
		if previous, exists := seen[family.ID]; exists {
			return NewDuplicateFamilyError(family.ID.String(), previous, family.Name)
		}
		seen[family.ID] = family.Name
	}

	for i, export := range m.Exports {
		if export.Factory == nil {
			return NewInvalidExportError(m.Name, i, "factory is required")
		}
		if len(export.Contracts) == 0 {
			return NewInvalidExportError(m.Name, i, "at least one contract is required")
		}
		for _, contract := range export.Contracts {
			if contract == nil {
				return NewInvalidExportError(m.Name, i, "contract type is nil")
			}
		}
		if export.FamilyID != nil && *export.FamilyID == uuid.Nil {
			return NewInvalidExportError(m.Name, i, "family identifier is nil")
		}
		if export.PluginID != nil && *export.PluginID == uuid.Nil {
			return NewInvalidExportError(m.Name, i, "plugin identifier is nil")
		}
	}
	return nil
}

// ContractName returns the short name of a contract type as used by
// segmented contract configuration ("Greeter", "*Widget").
func ContractName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" {
		return t.Name()
	}
	if t.Kind() == reflect.Pointer {
		return "*" + ContractName(t.Elem())
	}
	return t.String()
}

// qualifiedContractName returns the import-path qualified name of t.
func qualifiedContractName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.PkgPath() != "" && t.Name() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// contractMatchesName reports whether a configured contract name designates t.
// Both the short name and the qualified name are accepted.
func contractMatchesName(t reflect.Type, name string) bool {
	name = strings.TrimSpace(name)
	return name == ContractName(t) || name == qualifiedContractName(t) || name == t.String()
}
