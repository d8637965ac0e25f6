// testing_helpers_test.go: Shared fixtures for plughost tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Contracts used across the tests.

type Greeter interface {
	Greet() string
}

type Clock interface {
	Now() int64
}

type Session interface {
	ID() string
}

type Segment interface {
	SomeMethod() string
	SomeOtherMethod() string
}

type greeter struct {
	text     string
	instance int64
}

func (g *greeter) Greet() string { return g.text }

type fixedClock struct{ at int64 }

func (c *fixedClock) Now() int64 { return c.at }

type testSession string

func (s testSession) ID() string { return string(s) }

type segment struct {
	some, other string
}

func (s *segment) SomeMethod() string      { return s.some }
func (s *segment) SomeOtherMethod() string { return s.other }

var (
	familyAlpha = uuid.MustParse("6f1c2a7e-4b0d-4d51-9a53-0c2f5e1d8a11")
	familyBeta  = uuid.MustParse("a3d5c7e9-1b2f-4a6c-8e0d-2f4b6d8a0c1e")

	firstPluginID  = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	secondPluginID = uuid.MustParse("0b6a1f9e-7a53-4c61-9d0e-5a0f3c2b1d44")
	thirdPluginID  = uuid.MustParse("9f2d8c1b-3e4a-4f5b-8c6d-7e8f9a0b1c2d")
)

// instanceCounter numbers every greeter created by newGreeterFactory.
var instanceCounter atomic.Int64

func newGreeterFactory(text string) func(Importer) (Greeter, error) {
	return func(Importer) (Greeter, error) {
		return &greeter{text: text, instance: instanceCounter.Add(1)}, nil
	}
}

func segmentFactory(some, other string) func(Importer) (Segment, error) {
	return func(Importer) (Segment, error) {
		return &segment{some: some, other: other}, nil
	}
}

// testEnv is a plugin directory with its own module registry.
type testEnv struct {
	t            *testing.T
	dir          string
	registry     *ModuleRegistry
	dependencies *DependencyRegistry
	logger       *TestLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		t:            t,
		dir:          t.TempDir(),
		registry:     NewModuleRegistry(),
		dependencies: NewDependencyRegistry(),
		logger:       NewTestLogger(),
	}
}

// deploy registers m and writes a manifest for it. Extra lines are appended
// to the YAML manifest.
func (e *testEnv) deploy(m Module, extra ...string) {
	e.t.Helper()
	require.NoError(e.t, e.registry.Register(m))
	e.writeManifest(m.Name, "plugin.yaml", "module: "+m.Name+"\n"+strings.Join(extra, "\n"))
}

func (e *testEnv) writeManifest(subdir, name, content string) string {
	e.t.Helper()
	dir := filepath.Join(e.dir, subdir)
	require.NoError(e.t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (e *testEnv) strategyOptions() StrategyOptions {
	return StrategyOptions{
		Discovery: DiscoveryConfig{Directory: e.dir},
		Registry:  e.registry,
		Logger:    e.logger,
	}
}

func (e *testEnv) context() *PluginContext {
	return NewPluginContext(NewGlobalStrategy(e.strategyOptions()),
		WithDependencyRegistry(e.dependencies),
		WithContextLogger(e.logger))
}

func (e *testEnv) host(cfg *ExtensibilityConfiguration) *Host {
	e.t.Helper()
	host, err := NewHost(HostOptions{
		PluginDirectory: e.dir,
		Registry:        e.registry,
		Dependencies:    e.dependencies,
		Logger:          e.logger,
		Configuration:   cfg,
	})
	require.NoError(e.t, err)
	return host
}

// requireCode asserts that err carries code.
func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, string(ErrorCodeOf(err)), "unexpected error: %v", err)
}
