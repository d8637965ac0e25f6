// config.go: Extensibility configuration model and validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"encoding/json"
	"reflect"

	"github.com/google/uuid"
)

// DefaultPluginDirectory is used when the configuration names no directory.
const DefaultPluginDirectory = "plugins"

// ExtensibilityConfiguration is the configuration consumed by a Host.
//
// Example (YAML):
//
//	plugin_directory: plugins
//	segmented_contracts:
//	  - name: Editor
//	    routable_plugins:
//	      - id: 0b6a1f9e-7a53-4c61-9d0e-5a0f3c2b1d44
//	        primary: true
//	      - id: 9f2d8c1b-3e4a-4f5b-8c6d-7e8f9a0b1c2d
//	        method_claims: [Save, Export]
type ExtensibilityConfiguration struct {
	// PluginDirectory is relative to the host base path unless absolute
	PluginDirectory string `json:"plugin_directory,omitempty" yaml:"plugin_directory,omitempty" hcl:"plugin_directory,optional"`

	// SegmentedContracts lists the contracts split across routable plugins
	SegmentedContracts []ContractConfiguration `json:"segmented_contracts,omitempty" yaml:"segmented_contracts,omitempty" hcl:"segmented_contract,block"`
}

// ContractConfiguration routes the methods of one contract.
type ContractConfiguration struct {
	// Name matches the contract type name, e.g. "Editor"
	Name string `json:"name" yaml:"name" hcl:"name,label"`

	RoutablePlugins []RoutablePluginConfiguration `json:"routable_plugins" yaml:"routable_plugins" hcl:"routable_plugin,block"`
}

// RoutablePluginConfiguration is one segment of a contract.
type RoutablePluginConfiguration struct {
	// ID is the plugin ID of the part implementing the segment (GUID text)
	ID string `json:"id" yaml:"id" hcl:"id"`

	// Primary handles every method no other segment claims
	Primary bool `json:"primary,omitempty" yaml:"primary,omitempty" hcl:"primary,optional"`

	// MethodClaims names the methods this segment handles
	MethodClaims []string `json:"method_claims,omitempty" yaml:"method_claims,omitempty" hcl:"method_claims,optional"`
}

// PluginID parses the configured ID.
func (rp RoutablePluginConfiguration) PluginID() (uuid.UUID, error) {
	return ParseGUID("id", rp.ID)
}

// Validate checks the invariants that hold regardless of the contract type:
// a non-empty plugin list, well-formed unique IDs, exactly one primary and
// no method claimed twice.
func (cc ContractConfiguration) Validate() error {
	if cc.Name == "" {
		return NewConfigValidationError("segmented contract without a name", nil)
	}
	if len(cc.RoutablePlugins) == 0 {
		return NewEmptySegmentedContractError(cc.Name)
	}

	ids := make(map[uuid.UUID]bool, len(cc.RoutablePlugins))
	claims := make(map[string]string)
	primaries := 0
	for _, plugin := range cc.RoutablePlugins {
		id, err := plugin.PluginID()
		if err != nil {
			return err
		}
		if ids[id] {
			return NewDuplicateRoutablePluginError(cc.Name, id.String())
		}
		ids[id] = true

		if plugin.Primary {
			primaries++
		}
		for _, method := range plugin.MethodClaims {
			if owner, claimed := claims[method]; claimed && owner != plugin.ID {
				return NewDuplicateMethodClaimError(cc.Name, method, owner, plugin.ID)
			}
			claims[method] = plugin.ID
		}
	}

	switch {
	case primaries == 0:
		return NewMissingPrimaryError(cc.Name)
	case primaries > 1:
		return NewMultiplePrimariesError(cc.Name, primaries)
	}
	return nil
}

// Primary returns the primary segment. Call after Validate.
func (cc ContractConfiguration) Primary() (RoutablePluginConfiguration, bool) {
	for _, plugin := range cc.RoutablePlugins {
		if plugin.Primary {
			return plugin, true
		}
	}
	return RoutablePluginConfiguration{}, false
}

// Validate checks every segmented contract and rejects two configurations
// for the same contract name.
func (ec *ExtensibilityConfiguration) Validate() error {
	names := make(map[string]bool, len(ec.SegmentedContracts))
	for _, contract := range ec.SegmentedContracts {
		if err := contract.Validate(); err != nil {
			return err
		}
		if names[contract.Name] {
			return NewDuplicateContractConfigurationError(contract.Name)
		}
		names[contract.Name] = true
	}
	return nil
}

// Contract returns the configuration of the named contract.
func (ec *ExtensibilityConfiguration) Contract(name string) (ContractConfiguration, bool) {
	for _, contract := range ec.SegmentedContracts {
		if contract.Name == name {
			return contract, true
		}
	}
	return ContractConfiguration{}, false
}

// contractFor returns the configuration matching the contract type, by
// short or package-qualified name.
func (ec *ExtensibilityConfiguration) contractFor(contract reflect.Type) (ContractConfiguration, bool) {
	for _, cc := range ec.SegmentedContracts {
		if contractMatchesName(contract, cc.Name) {
			return cc, true
		}
	}
	return ContractConfiguration{}, false
}

// Directory returns the configured plugin directory or the default.
func (ec *ExtensibilityConfiguration) Directory() string {
	if ec == nil || ec.PluginDirectory == "" {
		return DefaultPluginDirectory
	}
	return ec.PluginDirectory
}

// Equal reports whether two configurations describe the same setup.
func (ec *ExtensibilityConfiguration) Equal(other *ExtensibilityConfiguration) bool {
	if ec == nil || other == nil {
		return ec == other
	}
	if ec.Directory() != other.Directory() {
		return false
	}
	if len(ec.SegmentedContracts) != len(other.SegmentedContracts) {
		return false
	}
	for i := range ec.SegmentedContracts {
		if !reflect.DeepEqual(normalizeContract(ec.SegmentedContracts[i]), normalizeContract(other.SegmentedContracts[i])) {
			return false
		}
	}
	return true
}

// normalizeContract maps empty claim lists to nil so decoded and literal
// configurations compare equal.
func normalizeContract(cc ContractConfiguration) ContractConfiguration {
	out := ContractConfiguration{Name: cc.Name}
	for _, plugin := range cc.RoutablePlugins {
		if len(plugin.MethodClaims) == 0 {
			plugin.MethodClaims = nil
		}
		out.RoutablePlugins = append(out.RoutablePlugins, plugin)
	}
	return out
}

// Clone returns a deep copy.
func (ec *ExtensibilityConfiguration) Clone() *ExtensibilityConfiguration {
	if ec == nil {
		return nil
	}
	out := &ExtensibilityConfiguration{PluginDirectory: ec.PluginDirectory}
	for _, cc := range ec.SegmentedContracts {
		copied := ContractConfiguration{Name: cc.Name}
		for _, plugin := range cc.RoutablePlugins {
			plugin.MethodClaims = append([]string(nil), plugin.MethodClaims...)
			copied.RoutablePlugins = append(copied.RoutablePlugins, plugin)
		}
		out.SegmentedContracts = append(out.SegmentedContracts, copied)
	}
	return out
}

// ToJSON converts the configuration to JSON
func (ec *ExtensibilityConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(ec, "", "  ")
}

// FromJSON loads configuration from JSON and validates it
func (ec *ExtensibilityConfiguration) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, ec); err != nil {
		return NewConfigParseError("<json>", err)
	}
	return ec.Validate()
}
