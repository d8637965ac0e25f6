// env_config.go: Environment options and ${VAR} expansion in configuration
//
// Host defaults come from PLUGHOST_* environment variables. Configuration
// files may reference the environment with ${VAR} and ${VAR:-default}
// placeholders in the plugin directory and in plugin IDs.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvOptions holds the host settings read from the environment.
type EnvOptions struct {
	// BasePath anchors a relative plugin directory
	BasePath string `env:"PLUGHOST_BASE_PATH"`

	// PluginDirectory overrides the configured plugin directory
	PluginDirectory string `env:"PLUGHOST_PLUGIN_DIR"`

	// ConfigFile is loaded by DefaultHost when set
	ConfigFile string `env:"PLUGHOST_CONFIG_FILE"`

	// ScanDepth bounds the manifest scan below the plugin directory
	ScanDepth int `env:"PLUGHOST_SCAN_DEPTH" envDefault:"3"`
}

// LoadEnvOptions reads EnvOptions from the process environment.
func LoadEnvOptions() (EnvOptions, error) {
	var opts EnvOptions
	if err := env.Parse(&opts); err != nil {
		return EnvOptions{}, NewEnvironmentError(err)
	}
	if opts.ScanDepth < 0 {
		return EnvOptions{}, NewEnvironmentError(fmt.Errorf("PLUGHOST_SCAN_DEPTH must not be negative: %d", opts.ScanDepth))
	}
	return opts, nil
}

// Apply copies the set values onto opts.
func (e EnvOptions) Apply(opts *HostOptions) {
	if e.BasePath != "" {
		opts.BasePath = e.BasePath
	}
	if e.PluginDirectory != "" {
		opts.PluginDirectory = e.PluginDirectory
	}
	if e.ScanDepth > 0 {
		opts.ScanDepth = e.ScanDepth
	}
}

// EnvExpansionOptions configures ${VAR} expansion.
//
// Example usage:
//
//	options := EnvExpansionOptions{
//	    Prefix:        "MYAPP_",
//	    FailOnMissing: true,
//	}
type EnvExpansionOptions struct {
	// Prefix tried before the bare variable name (e.g. "MYAPP_")
	Prefix string `json:"prefix" yaml:"prefix"`

	// Whether to fail when a variable has no value and no default
	FailOnMissing bool `json:"fail_on_missing" yaml:"fail_on_missing"`

	// Whether to reject values containing control characters
	ValidateValues bool `json:"validate_values" yaml:"validate_values"`

	// Default values for undefined environment variables
	Defaults map[string]string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// DefaultEnvExpansionOptions returns the options used by LoadConfigFromFile.
func DefaultEnvExpansionOptions() EnvExpansionOptions {
	return EnvExpansionOptions{
		Prefix:         "PLUGHOST_",
		ValidateValues: true,
		Defaults:       make(map[string]string),
	}
}

var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvironmentVariables expands ${VAR} and ${VAR:-default} in input.
//
// Variable resolution priority:
//  1. Environment variable with the configured prefix
//  2. Environment variable without prefix
//  3. Inline default
//  4. Configured default
//  5. Empty string, or an error with FailOnMissing
func ExpandEnvironmentVariables(input string, options EnvExpansionOptions) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var firstErr error
	result := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		submatches := variablePattern.FindStringSubmatch(match)
		expanded, err := expandVariable(submatches[1], submatches[3], options)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return expanded
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func expandVariable(name, inlineDefault string, options EnvExpansionOptions) (string, error) {
	if options.Prefix != "" {
		if value := os.Getenv(options.Prefix + name); value != "" {
			return validateEnvValue(name, value, options)
		}
	}
	if value := os.Getenv(name); value != "" {
		return validateEnvValue(name, value, options)
	}
	if inlineDefault != "" {
		return validateEnvValue(name, inlineDefault, options)
	}
	if value, ok := options.Defaults[name]; ok {
		return validateEnvValue(name, value, options)
	}
	if options.FailOnMissing {
		return "", NewConfigValidationError(fmt.Sprintf("required environment variable not found: %s", name), nil)
	}
	return "", nil
}

func validateEnvValue(name, value string, options EnvExpansionOptions) (string, error) {
	if !options.ValidateValues {
		return value, nil
	}
	for i, r := range value {
		if r < 32 && r != '\t' {
			return "", NewConfigValidationError(
				fmt.Sprintf("environment variable %s contains control character at position %d", name, i), nil)
		}
	}
	return value, nil
}

// ExpandConfiguration expands placeholders in the plugin directory and the
// routable plugin IDs of cfg in place.
func ExpandConfiguration(cfg *ExtensibilityConfiguration, options EnvExpansionOptions) error {
	dir, err := ExpandEnvironmentVariables(cfg.PluginDirectory, options)
	if err != nil {
		return err
	}
	cfg.PluginDirectory = dir

	for i := range cfg.SegmentedContracts {
		plugins := cfg.SegmentedContracts[i].RoutablePlugins
		for j := range plugins {
			id, err := ExpandEnvironmentVariables(plugins[j].ID, options)
			if err != nil {
				return err
			}
			plugins[j].ID = id
		}
	}
	return nil
}
