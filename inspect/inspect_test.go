// inspect_test.go: Tests for the inspection command tree
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package inspect

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	plughost "github.com/agilira/go-plughost"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type Pager interface {
	Next() string
	Previous() string
}

type pager struct{ name string }

func (p pager) Next() string     { return p.name }
func (p pager) Previous() string { return p.name }

var (
	familyID  = uuid.MustParse("6f1c2a7e-4b0d-4d51-9a53-0c2f5e1d8a11")
	primaryID = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	claimerID = uuid.MustParse("0b6a1f9e-7a53-4c61-9d0e-5a0f3c2b1d44")
)

func newTestHost(t *testing.T) *plughost.Host {
	t.Helper()
	dir := t.TempDir()
	registry := plughost.NewModuleRegistry()

	modules := []plughost.Module{
		{
			Name:     "pager-main",
			Families: []plughost.Family{{ID: familyID, Name: "readers"}},
			Exports: []plughost.Export{
				plughost.Provide[Pager](func(plughost.Importer) (Pager, error) { return pager{"main"}, nil },
					plughost.WithPluginID(primaryID), plughost.InFamily(familyID), plughost.Named("main")),
			},
		},
		{
			Name: "pager-extra",
			Exports: []plughost.Export{
				plughost.Provide[Pager](func(plughost.Importer) (Pager, error) { return pager{"extra"}, nil },
					plughost.WithPluginID(claimerID)),
			},
		},
	}
	for _, m := range modules {
		require.NoError(t, registry.Register(m))
		moduleDir := filepath.Join(dir, m.Name)
		require.NoError(t, os.MkdirAll(moduleDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(moduleDir, "plugin.yaml"), []byte("module: "+m.Name+"\n"), 0o600))
	}

	host, err := plughost.NewHost(plughost.HostOptions{
		PluginDirectory: dir,
		Registry:        registry,
		Dependencies:    plughost.NewDependencyRegistry(),
		Configuration: &plughost.ExtensibilityConfiguration{
			SegmentedContracts: []plughost.ContractConfiguration{{
				Name: "Pager",
				RoutablePlugins: []plughost.RoutablePluginConfiguration{
					{ID: primaryID.String(), Primary: true},
					{ID: claimerID.String(), MethodClaims: []string{"Previous"}},
				},
			}},
		},
	})
	require.NoError(t, err)
	return host
}

func execute(t *testing.T, host *plughost.Host, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(host)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPartsCommand(t *testing.T) {
	host := newTestHost(t)

	t.Run("table", func(t *testing.T) {
		out, err := execute(t, host, "parts")
		require.NoError(t, err)
		assert.Contains(t, out, "MODULE")
		assert.Contains(t, out, "pager-main")
		assert.Contains(t, out, "pager-extra")
		assert.Contains(t, out, familyID.String())
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, host, "parts", "--output", "json")
		require.NoError(t, err)

		var parts []plughost.PartInfo
		require.NoError(t, json.Unmarshal([]byte(out), &parts))
		require.Len(t, parts, 2)
		byModule := make(map[string]plughost.PartInfo, len(parts))
		for _, p := range parts {
			byModule[p.Module] = p
		}
		require.Contains(t, byModule, "pager-main")
		require.Contains(t, byModule, "pager-extra")
		assert.Equal(t, "main", byModule["pager-main"].Name)
		assert.Equal(t, []string{"Pager"}, byModule["pager-main"].Contracts)
		assert.Equal(t, claimerID.String(), byModule["pager-extra"].PluginID)
		assert.Equal(t, "pager-extra", parts[0].Module, "parts follow the lexical scan order")
	})
}

func TestFamiliesCommand(t *testing.T) {
	host := newTestHost(t)

	out, err := execute(t, host, "families", "-o", "yaml")
	require.NoError(t, err)

	var families []familyRow
	require.NoError(t, yaml.Unmarshal([]byte(out), &families))
	assert.Equal(t, []familyRow{{ID: familyID.String(), Name: "readers"}}, families)
}

func TestRoutesCommand(t *testing.T) {
	host := newTestHost(t)

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, host, "routes", "Pager", "--output", "json")
		require.NoError(t, err)

		var routes []plughost.Route
		require.NoError(t, json.Unmarshal([]byte(out), &routes))
		assert.Equal(t, []plughost.Route{
			{Method: "Next", PluginID: primaryID.String(), Primary: true},
			{Method: "Previous", PluginID: claimerID.String(), Primary: false},
		}, routes)
	})

	t.Run("unknown contract", func(t *testing.T) {
		_, err := execute(t, host, "routes", "Editor")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Editor")
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := execute(t, host, "routes")
		assert.Error(t, err)
	})
}

func TestUnknownOutputFormat(t *testing.T) {
	host := newTestHost(t)

	_, err := execute(t, host, "families", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
