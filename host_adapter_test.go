// host_adapter_test.go: Tests for segmented contract routing
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// containerSource serves a prebuilt container.
type containerSource struct{ container *Container }

func (s containerSource) Container(context.Context) (*Container, error) {
	return s.container, nil
}

func (s containerSource) Dependencies() *DependencyRegistry {
	return NewDependencyRegistry()
}

func memoryContainer(logger Logger, exports ...Export) *Container {
	parts := make([]*part, 0, len(exports))
	for _, e := range exports {
		parts = append(parts, &part{module: "memory", export: e, lifetime: LifetimePerRequest})
	}
	return newContainer("memory", parts, nil, logger, nil)
}

func segmentModules(env *testEnv) {
	env.deploy(Module{Name: "first", Exports: []Export{
		Provide[Segment](segmentFactory("First", "StillFirst"), WithPluginID(firstPluginID)),
	}})
	env.deploy(Module{Name: "second", Exports: []Export{
		Provide[Segment](segmentFactory("Second", "StillSecond"), WithPluginID(secondPluginID)),
	}})
}

func TestHostAdapter_RoutesClaimedMethods(t *testing.T) {
	env := newTestEnv(t)
	segmentModules(env)

	cfg := segmentConfig(primary(firstPluginID.String()), claimer(secondPluginID.String(), "SomeOtherMethod"))
	adapter, err := NewHostAdapter[Segment](context.Background(), env.context(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "First", adapter.Route("SomeMethod").SomeMethod())
	assert.Equal(t, "StillSecond", adapter.Route("SomeOtherMethod").SomeOtherMethod())
	assert.Equal(t, "StillFirst", adapter.Primary().SomeOtherMethod())
	assert.Equal(t, "First", adapter.Route("NoSuchMethod").SomeMethod())
	assert.Equal(t, []string{"SomeMethod", "SomeOtherMethod"}, adapter.Methods())

	table := adapter.Table()
	assert.Equal(t, firstPluginID, table.PrimaryID())
	assert.True(t, table.Claimed())
	assert.Equal(t, reflect.TypeFor[Segment](), table.Contract())
	assert.Equal(t, []Route{
		{Method: "SomeMethod", PluginID: firstPluginID.String(), Primary: true},
		{Method: "SomeOtherMethod", PluginID: secondPluginID.String(), Primary: false},
	}, table.Routes())
	assert.True(t, env.logger.HasMessage("INFO", "Host adapter built"))
}

func TestHostAdapter_PrimaryOnly(t *testing.T) {
	env := newTestEnv(t)
	segmentModules(env)

	cfg := segmentConfig(primary(secondPluginID.String()))
	adapter, err := NewHostAdapter[Segment](context.Background(), env.context(), cfg)
	require.NoError(t, err)

	assert.False(t, adapter.Table().Claimed())
	assert.Equal(t, "Second", adapter.Route("SomeMethod").SomeMethod())
	assert.Equal(t, "StillSecond", adapter.Route("SomeOtherMethod").SomeOtherMethod())
}

func TestHostAdapter_ConfigurationErrors(t *testing.T) {
	first, second := firstPluginID.String(), secondPluginID.String()

	tests := []struct {
		name string
		cfg  ContractConfiguration
		code string
	}{
		{"empty configuration", segmentConfig(), ErrCodeEmptySegmentedContract},
		{"missing primary", segmentConfig(claimer(first), claimer(second, "SomeMethod")), ErrCodeMissingPrimary},
		{"two primaries", segmentConfig(primary(first), primary(second)), ErrCodeMultiplePrimaries},
		{"duplicate claim", segmentConfig(primary(first, "SomeMethod"), claimer(second, "SomeMethod")), ErrCodeDuplicateMethodClaim},
		{"unknown claim", segmentConfig(primary(first), claimer(second, "Render")), ErrCodeUnknownMethodClaim},
		{"unresolved plugin", segmentConfig(primary(first), claimer(thirdPluginID.String(), "SomeMethod")), ErrCodeUnresolvedPlugin},
	}

	env := newTestEnv(t)
	segmentModules(env)
	pc := env.context()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHostAdapter[Segment](context.Background(), pc, tt.cfg)
			requireCode(t, err, tt.code)
		})
	}
	assert.True(t, env.logger.HasMessage("ERROR", "Host adapter build failed"))
}

func TestHostAdapter_NoImplementations(t *testing.T) {
	env := newTestEnv(t)

	cfg := segmentConfig(primary(firstPluginID.String()))
	_, err := NewHostAdapter[Segment](context.Background(), env.context(), cfg)
	requireCode(t, err, ErrCodeEmptySegmentedContract)
}

func TestBuildRoutingTable_RequiresInterface(t *testing.T) {
	env := newTestEnv(t)
	cfg := segmentConfig(primary(firstPluginID.String()))

	_, err := BuildRoutingTable(context.Background(), env.context(), reflect.TypeFor[*segment](), cfg)
	requireCode(t, err, ErrCodeContractNotInterface)

	_, err = BuildRoutingTable(context.Background(), env.context(), nil, cfg)
	requireCode(t, err, ErrCodeContractNotInterface)
}

func TestHostAdapter_DuplicatePluginIDUsesFirst(t *testing.T) {
	logger := NewTestLogger()
	container := memoryContainer(logger,
		Provide[Segment](segmentFactory("a", "a"), WithPluginID(firstPluginID)),
		Provide[Segment](segmentFactory("b", "b"), WithPluginID(firstPluginID)),
	)

	adapter, err := NewHostAdapter[Segment](context.Background(), containerSource{container}, segmentConfig(primary(firstPluginID.String())))
	require.NoError(t, err)
	assert.Equal(t, "a", adapter.Route("SomeMethod").SomeMethod())
	assert.True(t, logger.HasMessage("WARN", "Plugin ID resolves to more than one part, using first"))
}

func TestHostAdapter_SegmentsFromOtherContractsAreIgnored(t *testing.T) {
	container := memoryContainer(nil,
		Provide[Greeter](newGreeterFactory("greeter"), WithPluginID(secondPluginID)),
		Provide[Segment](segmentFactory("a", "a"), WithPluginID(firstPluginID)),
	)

	cfg := segmentConfig(primary(firstPluginID.String()), claimer(secondPluginID.String(), "SomeMethod"))
	_, err := NewHostAdapter[Segment](context.Background(), containerSource{container}, cfg)
	requireCode(t, err, ErrCodeUnresolvedPlugin)
}

// TestHostAdapter_RoutingProperty checks that every method routes to its
// claimant, or to the primary when unclaimed.
func TestHostAdapter_RoutingProperty(t *testing.T) {
	ids := []uuid.UUID{firstPluginID, secondPluginID, thirdPluginID, familyAlpha}
	methods := []string{"SomeMethod", "SomeOtherMethod"}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, len(ids)).Draw(t, "plugins")
		primaryIndex := rapid.IntRange(0, n-1).Draw(t, "primary")

		owners := make(map[string]int, len(methods))
		for _, method := range methods {
			owners[method] = rapid.IntRange(-1, n-1).Draw(t, "owner_"+method)
		}

		exports := make([]Export, 0, n)
		cfg := ContractConfiguration{Name: "Segment"}
		for i := 0; i < n; i++ {
			exports = append(exports, Provide[Segment](
				segmentFactory(fmt.Sprintf("p%d", i), fmt.Sprintf("p%d", i)),
				WithPluginID(ids[i])))

			plugin := RoutablePluginConfiguration{ID: ids[i].String(), Primary: i == primaryIndex}
			for _, method := range methods {
				if owners[method] == i {
					plugin.MethodClaims = append(plugin.MethodClaims, method)
				}
			}
			cfg.RoutablePlugins = append(cfg.RoutablePlugins, plugin)
		}

		adapter, err := NewHostAdapter[Segment](context.Background(), containerSource{memoryContainer(nil, exports...)}, cfg)
		require.NoError(t, err)

		claimed := false
		for _, method := range methods {
			expected := owners[method]
			if expected < 0 {
				expected = primaryIndex
			}
			if expected != primaryIndex {
				claimed = true
			}
			assert.Equal(t, fmt.Sprintf("p%d", expected), adapter.Route(method).SomeMethod(), "method %s", method)
		}
		assert.Equal(t, claimed, adapter.Table().Claimed())
		assert.Equal(t, ids[primaryIndex], adapter.Table().PrimaryID())
	})
}
