// errors.go: structured error definitions for the plughost system
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	stderrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for the plughost system
const (
	// Declaration errors (2100-2149)
	ErrCodeInvalidModule       = "PLUGHOST_2101"
	ErrCodeDuplicateModule     = "PLUGHOST_2102"
	ErrCodeInvalidExport       = "PLUGHOST_2103"
	ErrCodeDuplicateFamily     = "PLUGHOST_2104"
	ErrCodeInvalidGUID         = "PLUGHOST_2105"
	ErrCodeDuplicateProxy      = "PLUGHOST_2106"
	ErrCodeModuleObjectLoading = "PLUGHOST_2107"

	// Segmented contract configuration errors (2150-2199)
	ErrCodeEmptySegmentedContract = "PLUGHOST_2151"
	ErrCodeMissingPrimary         = "PLUGHOST_2152"
	ErrCodeMultiplePrimaries      = "PLUGHOST_2153"
	ErrCodeDuplicateMethodClaim   = "PLUGHOST_2154"
	ErrCodeUnknownMethodClaim     = "PLUGHOST_2155"
	ErrCodeUnresolvedPlugin       = "PLUGHOST_2156"
	ErrCodeDuplicateRoutablePlug  = "PLUGHOST_2157"
	ErrCodeDuplicateContractConf  = "PLUGHOST_2158"
	ErrCodeContractNotConfigured  = "PLUGHOST_2159"
	ErrCodeContractNotInterface   = "PLUGHOST_2160"

	// Resolution errors (2200-2249)
	ErrCodeContractNotFound       = "RESOLVE_2201"
	ErrCodeAmbiguousContract      = "RESOLVE_2202"
	ErrCodePartCreation           = "RESOLVE_2203"
	ErrCodeInvalidInjectionTarget = "RESOLVE_2204"
	ErrCodeInvalidImportTag       = "RESOLVE_2205"
	ErrCodeArmedReentry           = "RESOLVE_2206"
	ErrCodeCircularDependency     = "RESOLVE_2207"
	ErrCodeContractMismatch       = "RESOLVE_2208"

	// Dispatch errors (2250-2299)
	ErrCodeProxyNotRegistered = "DISPATCH_2251"
	ErrCodeInvalidProxyCall   = "DISPATCH_2252"

	// Configuration management errors (1700-1799)
	ErrCodeConfigNotFound        = "CONFIG_1701"
	ErrCodeConfigParseError      = "CONFIG_1702"
	ErrCodeConfigValidationError = "CONFIG_1703"
	ErrCodeConfigWatcherError    = "CONFIG_1704"
	ErrCodeConfigPathError       = "CONFIG_1705"
	ErrCodeConfigFileError       = "CONFIG_1706"
	ErrCodeEnvironmentError      = "CONFIG_1708"

	// Discovery errors (1900-1999)
	ErrCodeDiscoveryError = "REGISTRY_1906"
)

// ErrorCodeOf returns the go-errors code carried by err, or an empty code when
// err is not a structured plughost error.
func ErrorCodeOf(err error) errors.ErrorCode {
	var structured *errors.Error
	if stderrors.As(err, &structured) {
		return structured.ErrorCode()
	}
	return ""
}

// HasErrorCode reports whether err carries the given code.
func HasErrorCode(err error, code string) bool {
	return err != nil && ErrorCodeOf(err) == errors.ErrorCode(code)
}

// Declaration error constructors

func NewInvalidModuleError(name string, message string) *errors.Error {
	return errors.New(ErrCodeInvalidModule, "Invalid module declaration: "+message).
		WithUserMessage("The plugin module declaration is invalid").
		WithContext("module", name).
		WithSeverity("error")
}

func NewDuplicateModuleError(name string) *errors.Error {
	return errors.New(ErrCodeDuplicateModule, "Duplicate module name").
		WithUserMessage("Plugin module names must be unique within a registry").
		WithContext("module", name).
		WithSeverity("error")
}

func NewInvalidExportError(module string, index int, message string) *errors.Error {
	return errors.New(ErrCodeInvalidExport, "Invalid export: "+message).
		WithUserMessage("A plugin export declaration is invalid").
		WithContext("module", module).
		WithContext("export_index", index).
		WithSeverity("error")
}

func NewDuplicateFamilyError(familyID string, first, second string) *errors.Error {
	return errors.New(ErrCodeDuplicateFamily, "Duplicate family identifier").
		WithUserMessage("Two filterable families were declared with the same identifier").
		WithContext("family_id", familyID).
		WithContext("first", first).
		WithContext("second", second).
		WithSeverity("error")
}

func NewInvalidGUIDError(field string, value string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeInvalidGUID, "Malformed GUID").
		WithUserMessage("The identifier is not a well-formed GUID").
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity("error")
}

func NewDuplicateProxyError(contract string) *errors.Error {
	return errors.New(ErrCodeDuplicateProxy, "Proxy already registered").
		WithUserMessage("A routable proxy for this contract is already registered").
		WithContext("contract", contract).
		WithSeverity("error")
}

func NewModuleObjectLoadingError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeModuleObjectLoading, "Module object loading failed").
		WithUserMessage("Failed to load plugin module object").
		WithContext("object_path", path).
		WithSeverity("warning")
}

// Segmented contract configuration error constructors

func NewEmptySegmentedContractError(contract string) *errors.Error {
	return errors.New(ErrCodeEmptySegmentedContract, "Segmented contract has no plugins").
		WithUserMessage("A segmented contract cannot exist with zero implementations").
		WithContext("contract", contract).
		WithSeverity("error")
}

func NewMissingPrimaryError(contract string) *errors.Error {
	return errors.New(ErrCodeMissingPrimary, "Missing primary plugin").
		WithUserMessage("Exactly one routable plugin must be marked primary").
		WithContext("contract", contract).
		WithSeverity("error")
}

func NewMultiplePrimariesError(contract string, count int) *errors.Error {
	return errors.New(ErrCodeMultiplePrimaries, "Multiple primary plugins").
		WithUserMessage("Exactly one routable plugin must be marked primary").
		WithContext("contract", contract).
		WithContext("primary_count", count).
		WithSeverity("error")
}

func NewDuplicateMethodClaimError(contract, method string, first, second string) *errors.Error {
	return errors.New(ErrCodeDuplicateMethodClaim, "Method claimed by more than one plugin").
		WithUserMessage("A method may be claimed by at most one routable plugin").
		WithContext("contract", contract).
		WithContext("method", method).
		WithContext("first_plugin", first).
		WithContext("second_plugin", second).
		WithSeverity("error")
}

func NewUnknownMethodClaimError(contract, method, pluginID string) *errors.Error {
	return errors.New(ErrCodeUnknownMethodClaim, "Claimed method does not exist on contract").
		WithUserMessage("A routable plugin claims a method the contract does not declare").
		WithContext("contract", contract).
		WithContext("method", method).
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewUnresolvedPluginError(contract, pluginID string) *errors.Error {
	return errors.New(ErrCodeUnresolvedPlugin, "Routable plugin not found").
		WithUserMessage("No discovered plugin part matches the configured plugin identifier").
		WithContext("contract", contract).
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewDuplicateRoutablePluginError(contract, pluginID string) *errors.Error {
	return errors.New(ErrCodeDuplicateRoutablePlug, "Routable plugin configured twice").
		WithUserMessage("Each routable plugin may appear once per contract").
		WithContext("contract", contract).
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewDuplicateContractConfigurationError(contract string) *errors.Error {
	return errors.New(ErrCodeDuplicateContractConf, "Segmented contract configured twice").
		WithUserMessage("Each segmented contract may be configured once").
		WithContext("contract", contract).
		WithSeverity("error")
}

func NewContractNotConfiguredError(contract string) *errors.Error {
	return errors.New(ErrCodeContractNotConfigured, "Segmented contract not configured").
		WithUserMessage("The contract has no segmented contract configuration").
		WithContext("contract", contract).
		WithSeverity("error")
}

func NewContractNotInterfaceError(contract string) *errors.Error {
	return errors.New(ErrCodeContractNotInterface, "Segmented contract must be an interface").
		WithUserMessage("Only interface contracts can be routed across plugins").
		WithContext("contract", contract).
		WithSeverity("error")
}

// Resolution error constructors

func NewContractNotFoundError(contract string) *errors.Error {
	return errors.New(ErrCodeContractNotFound, "No part implements contract").
		WithUserMessage("The required contract has no implementation").
		WithContext("contract", contract).
		WithContext("matches", 0).
		WithSeverity("error")
}

func NewAmbiguousContractError(contract string, matches int) *errors.Error {
	return errors.New(ErrCodeAmbiguousContract, "Contract resolves to more than one part").
		WithUserMessage("The required contract has more than one implementation").
		WithContext("contract", contract).
		WithContext("matches", matches).
		WithSeverity("error")
}

func NewPartCreationError(module, contract string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodePartCreation, "Part creation failed").
		WithUserMessage("A plugin part factory failed").
		WithContext("module", module).
		WithContext("contract", contract).
		WithSeverity("error")
}

func NewInvalidInjectionTargetError(target string) *errors.Error {
	return errors.New(ErrCodeInvalidInjectionTarget, "Invalid injection target").
		WithUserMessage("Injection targets must be non-nil pointers to structs").
		WithContext("target", target).
		WithSeverity("error")
}

func NewInvalidImportTagError(field, tag string, cause error) *errors.Error {
	err := errors.New(ErrCodeInvalidImportTag, "Invalid import tag").
		WithUserMessage("A struct field carries a malformed import tag").
		WithContext("field", field).
		WithContext("tag", tag).
		WithSeverity("error")
	if cause != nil {
		return errors.Wrap(cause, ErrCodeInvalidImportTag, "Invalid import tag").
			WithUserMessage("A struct field carries a malformed import tag").
			WithContext("field", field).
			WithContext("tag", tag).
			WithSeverity("error")
	}
	return err
}

func NewArmedReentryError(dependency string) *errors.Error {
	return errors.New(ErrCodeArmedReentry, "Dependency already armed in this scope").
		WithUserMessage("A dependency type cannot be re-armed inside its own armed scope").
		WithContext("dependency", dependency).
		WithSeverity("error")
}

func NewCircularDependencyError(chain []string) *errors.Error {
	return errors.New(ErrCodeCircularDependency, "Circular part dependency").
		WithUserMessage("Plugin parts depend on each other in a cycle").
		WithContext("chain", chain).
		WithSeverity("error")
}

func NewContractMismatchError(module, contract, actual string) *errors.Error {
	return errors.New(ErrCodeContractMismatch, "Part does not implement its declared contract").
		WithUserMessage("A plugin part factory returned a value that does not satisfy the contract").
		WithContext("module", module).
		WithContext("contract", contract).
		WithContext("actual_type", actual).
		WithSeverity("error")
}

// Dispatch error constructors

func NewProxyNotRegisteredError(contract string) *errors.Error {
	return errors.New(ErrCodeProxyNotRegistered, "No routable proxy registered").
		WithUserMessage("Register a proxy constructor for the contract before loading its adapter").
		WithContext("contract", contract).
		WithSeverity("error")
}

func NewInvalidProxyCallError(contract, method, message string) *errors.Error {
	return errors.New(ErrCodeInvalidProxyCall, "Invalid proxy call: "+message).
		WithUserMessage("The dynamic proxy call does not match the contract method").
		WithContext("contract", contract).
		WithContext("method", method).
		WithSeverity("error")
}

// Configuration management error constructors

func NewConfigNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeConfigNotFound, "Configuration file not found").
		WithUserMessage("The configuration file could not be found").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParseError, "Configuration parse error").
		WithUserMessage("Failed to parse configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string, cause error) *errors.Error {
	err := errors.New(ErrCodeConfigValidationError, "Configuration validation error: "+message).
		WithUserMessage("Configuration validation failed").
		WithSeverity("error")
	if cause != nil {
		return errors.Wrap(cause, ErrCodeConfigValidationError, "Configuration validation error: "+message).
			WithUserMessage("Configuration validation failed").
			WithSeverity("error")
	}
	return err
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigWatcherError, "Configuration watcher error: "+message).
		WithUserMessage("Configuration monitoring failed").
		WithSeverity("error")
}

func NewConfigPathError(path string, message string) *errors.Error {
	return errors.New(ErrCodeConfigPathError, "Configuration path error: "+message).
		WithUserMessage("Invalid configuration file path").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigFileError(path string, message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigFileError, "Configuration file error: "+message).
		WithUserMessage("Configuration file access failed").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewEnvironmentError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeEnvironmentError, "Environment configuration error").
		WithUserMessage("Failed to read host options from the environment").
		WithSeverity("error")
}

// Discovery error constructors

func NewDiscoveryError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDiscoveryError, "Discovery error: "+message).
		WithUserMessage("Plugin discovery failed").
		WithSeverity("warning")
}
