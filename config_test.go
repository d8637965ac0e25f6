// config_test.go: Tests for the extensibility configuration model
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segmentConfig(plugins ...RoutablePluginConfiguration) ContractConfiguration {
	return ContractConfiguration{Name: "Segment", RoutablePlugins: plugins}
}

func primary(id string, claims ...string) RoutablePluginConfiguration {
	return RoutablePluginConfiguration{ID: id, Primary: true, MethodClaims: claims}
}

func claimer(id string, claims ...string) RoutablePluginConfiguration {
	return RoutablePluginConfiguration{ID: id, MethodClaims: claims}
}

func TestContractConfiguration_Validate(t *testing.T) {
	first, second, third := firstPluginID.String(), secondPluginID.String(), thirdPluginID.String()

	tests := []struct {
		name string
		cfg  ContractConfiguration
		code string
	}{
		{"missing name", ContractConfiguration{RoutablePlugins: []RoutablePluginConfiguration{primary(first)}}, ErrCodeConfigValidationError},
		{"no plugins", segmentConfig(), ErrCodeEmptySegmentedContract},
		{"malformed id", segmentConfig(primary("not-a-guid")), ErrCodeInvalidGUID},
		{"duplicate id", segmentConfig(primary(first), claimer(first, "SomeMethod")), ErrCodeDuplicateRoutablePlug},
		{"no primary", segmentConfig(claimer(first), claimer(second, "SomeMethod")), ErrCodeMissingPrimary},
		{"two primaries", segmentConfig(primary(first), primary(second)), ErrCodeMultiplePrimaries},
		{"method claimed twice", segmentConfig(primary(first), claimer(second, "SomeMethod"), claimer(third, "SomeMethod")), ErrCodeDuplicateMethodClaim},
		{"primary claim collides", segmentConfig(primary(first, "SomeMethod"), claimer(second, "SomeMethod")), ErrCodeDuplicateMethodClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireCode(t, tt.cfg.Validate(), tt.code)
		})
	}

	t.Run("valid", func(t *testing.T) {
		cfg := segmentConfig(primary(first), claimer(second, "SomeOtherMethod"), claimer(third))
		require.NoError(t, cfg.Validate())

		p, ok := cfg.Primary()
		require.True(t, ok)
		assert.Equal(t, first, p.ID)
	})

	t.Run("same plugin repeats a claim", func(t *testing.T) {
		cfg := segmentConfig(primary(first), claimer(second, "SomeMethod", "SomeMethod"))
		assert.NoError(t, cfg.Validate())
	})
}

func TestExtensibilityConfiguration_Validate(t *testing.T) {
	valid := segmentConfig(primary(firstPluginID.String()))

	assert.NoError(t, (&ExtensibilityConfiguration{}).Validate())
	assert.NoError(t, (&ExtensibilityConfiguration{SegmentedContracts: []ContractConfiguration{valid}}).Validate())

	duplicate := &ExtensibilityConfiguration{SegmentedContracts: []ContractConfiguration{valid, valid}}
	requireCode(t, duplicate.Validate(), ErrCodeDuplicateContractConf)

	invalid := &ExtensibilityConfiguration{SegmentedContracts: []ContractConfiguration{valid, segmentConfig()}}
	requireCode(t, invalid.Validate(), ErrCodeEmptySegmentedContract)
}

func TestExtensibilityConfiguration_Accessors(t *testing.T) {
	var nilConfig *ExtensibilityConfiguration
	assert.Equal(t, DefaultPluginDirectory, nilConfig.Directory())
	assert.Equal(t, DefaultPluginDirectory, (&ExtensibilityConfiguration{}).Directory())

	cfg := &ExtensibilityConfiguration{
		PluginDirectory:    "extensions",
		SegmentedContracts: []ContractConfiguration{segmentConfig(primary(firstPluginID.String()), claimer(secondPluginID.String(), "SomeMethod"))},
	}
	assert.Equal(t, "extensions", cfg.Directory())

	cc, ok := cfg.Contract("Segment")
	require.True(t, ok)
	assert.Len(t, cc.RoutablePlugins, 2)
	_, ok = cfg.Contract("Missing")
	assert.False(t, ok)

	byType, ok := cfg.contractFor(reflect.TypeFor[Segment]())
	require.True(t, ok)
	assert.Equal(t, "Segment", byType.Name)
}

func TestExtensibilityConfiguration_CloneAndEqual(t *testing.T) {
	cfg := &ExtensibilityConfiguration{
		PluginDirectory:    "plugins",
		SegmentedContracts: []ContractConfiguration{segmentConfig(primary(firstPluginID.String()), claimer(secondPluginID.String(), "SomeMethod"))},
	}
	clone := cfg.Clone()
	assert.True(t, cfg.Equal(clone))

	clone.SegmentedContracts[0].RoutablePlugins[1].MethodClaims[0] = "SomeOtherMethod"
	assert.Equal(t, "SomeMethod", cfg.SegmentedContracts[0].RoutablePlugins[1].MethodClaims[0])
	assert.False(t, cfg.Equal(clone))

	// The default directory equals an explicit "plugins"; empty claims equal nil.
	empty := &ExtensibilityConfiguration{SegmentedContracts: []ContractConfiguration{
		segmentConfig(RoutablePluginConfiguration{ID: firstPluginID.String(), Primary: true, MethodClaims: []string{}}, claimer(secondPluginID.String(), "SomeMethod")),
	}}
	assert.True(t, cfg.Equal(empty))

	var nilConfig *ExtensibilityConfiguration
	assert.True(t, nilConfig.Equal(nil))
	assert.False(t, nilConfig.Equal(cfg))
	assert.Nil(t, nilConfig.Clone())
}

func TestExtensibilityConfiguration_JSON(t *testing.T) {
	cfg := &ExtensibilityConfiguration{
		PluginDirectory:    "plugins",
		SegmentedContracts: []ContractConfiguration{segmentConfig(primary(firstPluginID.String()), claimer(secondPluginID.String(), "SomeOtherMethod"))},
	}
	data, err := cfg.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"method_claims"`)

	var decoded ExtensibilityConfiguration
	require.NoError(t, decoded.FromJSON(data))
	assert.True(t, cfg.Equal(&decoded))

	var broken ExtensibilityConfiguration
	requireCode(t, broken.FromJSON([]byte("{")), ErrCodeConfigParseError)

	var invalid ExtensibilityConfiguration
	requireCode(t, invalid.FromJSON([]byte(`{"segmented_contracts":[{"name":"Segment","routable_plugins":[]}]}`)), ErrCodeEmptySegmentedContract)
}
