// discovery.go: Plugin directory scanning for deployment manifests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agilira/go-timecache"
	"gopkg.in/yaml.v3"
)

// PluginManifest deploys a module into a plugin directory.
//
// The manifest refers to a module registered in the process (or loaded from a
// Go plugin object next to it) and carries the lifetime convention for its
// exports.
//
// Example YAML manifest:
//
//	module: acme-greeters
//	lifetime: shared          # every export of the module is shared
//	shared: [Clock]           # or opt individual contracts in
//	enabled: true
//
// Example JSON manifest:
//
//	{"module": "acme-greeters", "object": "greeters.so", "shared": ["Clock"]}
type PluginManifest struct {
	Module      string   `json:"module" yaml:"module"`
	Object      string   `json:"object,omitempty" yaml:"object,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Lifetime    Lifetime `json:"lifetime,omitempty" yaml:"lifetime,omitempty"`
	Shared      []string `json:"shared,omitempty" yaml:"shared,omitempty"`

	// Discovery metadata
	ManifestPath string    `json:"-" yaml:"-"`
	DiscoveredAt time.Time `json:"-" yaml:"-"`
}

// IsEnabled reports whether the manifest deploys its module.
func (m *PluginManifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// lifetimeFor returns the lifetime convention the manifest declares for an
// export, or LifetimeDefault when the manifest is silent.
func (m *PluginManifest) lifetimeFor(export Export) Lifetime {
	for _, name := range m.Shared {
		for _, contract := range export.Contracts {
			if contractMatchesName(contract, name) {
				return LifetimeShared
			}
		}
		if export.Name != "" && export.Name == strings.TrimSpace(name) {
			return LifetimeShared
		}
	}
	return m.Lifetime
}

// DiscoveryConfig configures the plugin directory scan.
type DiscoveryConfig struct {
	// Directory is the plugin directory root
	Directory string `json:"directory" yaml:"directory"`

	// FilePatterns are the manifest file name patterns
	FilePatterns []string `json:"file_patterns,omitempty" yaml:"file_patterns,omitempty"`

	// MaxDepth bounds directory recursion; the root is depth 0
	MaxDepth int `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`

	// ExcludePaths skips directories whose path contains any entry
	ExcludePaths []string `json:"exclude_paths,omitempty" yaml:"exclude_paths,omitempty"`
}

// DefaultManifestPatterns are the manifest names recognized by default.
var DefaultManifestPatterns = []string{
	"plugin.json", "plugin.yaml", "plugin.yml",
	"*.plugin.json", "*.plugin.yaml", "*.plugin.yml",
}

// DefaultDiscoveryDepth is the default recursion bound of the scan.
const DefaultDiscoveryDepth = 3

func (c *DiscoveryConfig) applyDefaults() {
	if len(c.FilePatterns) == 0 {
		c.FilePatterns = DefaultManifestPatterns
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultDiscoveryDepth
	}
}

// DiscoveryEngine finds deployment manifests in a plugin directory.
//
// The scan is deterministic: directory entries are visited in lexical order
// so the resulting catalog has a stable discovery order. Unreadable or
// malformed manifests are logged and skipped; a missing directory yields no
// manifests.
type DiscoveryEngine struct {
	config DiscoveryConfig
	logger Logger
}

// NewDiscoveryEngine creates a discovery engine.
func NewDiscoveryEngine(config DiscoveryConfig, logger Logger) *DiscoveryEngine {
	config.applyDefaults()
	return &DiscoveryEngine{
		config: config,
		logger: NewLogger(logger),
	}
}

// Discover scans the plugin directory and returns the enabled manifests in
// discovery order. The only error it returns is context cancellation.
func (d *DiscoveryEngine) Discover(ctx context.Context) ([]*PluginManifest, error) {
	root := strings.TrimSpace(d.config.Directory)
	if root == "" {
		d.logger.Debug("No plugin directory configured")
		return nil, nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		d.logger.Warn("Cannot resolve plugin directory", "path", root, "error", err)
		return nil, nil
	}

	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		d.logger.Debug("Plugin directory not found", "path", absRoot)
		return nil, nil
	}

	manifests := make([]*PluginManifest, 0)
	seen := make(map[string]string)
	if err := d.scanDirectory(ctx, absRoot, 0, &manifests, seen); err != nil {
		return nil, err
	}

	d.logger.Debug("Plugin directory scanned", "path", absRoot, "manifests", len(manifests))
	return manifests, nil
}

// scanDirectory recursively scans a directory for manifests.
func (d *DiscoveryEngine) scanDirectory(ctx context.Context, path string, depth int, out *[]*PluginManifest, seen map[string]string) error {
	if !d.shouldScanPath(path, depth) {
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		d.logger.Warn("Failed to read plugin directory", "path", path, "error", err)
		return nil
	}

	// Files of a directory are processed before its subdirectories.
	var subdirs []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return NewDiscoveryError("plugin directory scan cancelled", err)
		}

		fullPath := filepath.Join(path, entry.Name())
		if entry.IsDir() {
			subdirs = append(subdirs, fullPath)
			continue
		}
		d.processManifestFile(entry.Name(), fullPath, out, seen)
	}

	for _, subdir := range subdirs {
		if err := d.scanDirectory(ctx, subdir, depth+1, out, seen); err != nil {
			return err
		}
	}
	return nil
}

// shouldScanPath applies the depth bound and exclusion rules.
func (d *DiscoveryEngine) shouldScanPath(path string, depth int) bool {
	if depth > d.config.MaxDepth {
		return false
	}
	for _, excludePath := range d.config.ExcludePaths {
		if excludePath != "" && strings.Contains(path, excludePath) {
			return false
		}
	}
	return true
}

// processManifestFile parses a candidate manifest and appends it when valid.
func (d *DiscoveryEngine) processManifestFile(fileName, fullPath string, out *[]*PluginManifest, seen map[string]string) {
	if !d.matchesPattern(fileName) {
		return
	}

	manifest, err := d.parseManifestFile(fullPath)
	if err != nil {
		d.logger.Warn("Skipping unreadable plugin manifest", "path", fullPath, "error", err)
		return
	}

	if manifest.Module == "" && manifest.Object == "" {
		d.logger.Warn("Skipping plugin manifest without module", "path", fullPath)
		return
	}

	if !manifest.IsEnabled() {
		d.logger.Info("Plugin manifest disabled", "module", manifest.Module, "path", fullPath)
		return
	}

	if manifest.Module != "" {
		if previous, exists := seen[manifest.Module]; exists {
			d.logger.Warn("Module deployed twice, keeping first manifest",
				"module", manifest.Module,
				"kept", previous,
				"skipped", fullPath)
			return
		}
		seen[manifest.Module] = fullPath
	}

	*out = append(*out, manifest)
	d.logger.Debug("Discovered plugin manifest",
		"module", manifest.Module,
		"lifetime", manifest.Lifetime.String(),
		"path", fullPath)
}

// matchesPattern checks a file name against the configured patterns.
func (d *DiscoveryEngine) matchesPattern(filename string) bool {
	for _, pattern := range d.config.FilePatterns {
		if matched, err := filepath.Match(pattern, filename); err == nil && matched {
			return true
		}
	}
	return false
}

// parseManifestFile parses a manifest (JSON or YAML).
func (d *DiscoveryEngine) parseManifestFile(filePath string) (*PluginManifest, error) {
	cleanPath := filepath.Clean(filePath)
	if !filepath.IsAbs(cleanPath) {
		return nil, NewDiscoveryError("manifest path must be absolute: "+filePath, nil)
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path comes from the directory walk
	if err != nil {
		return nil, NewDiscoveryError("failed to read manifest file", err)
	}

	var manifest PluginManifest

	// Try JSON first, then YAML
	if err := json.Unmarshal(data, &manifest); err != nil {
		manifest = PluginManifest{}
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return nil, NewDiscoveryError("failed to parse manifest as JSON or YAML", err)
		}
	}

	manifest.Module = strings.TrimSpace(manifest.Module)
	manifest.ManifestPath = cleanPath
	manifest.DiscoveredAt = timecache.CachedTime()
	if manifest.Object != "" && !filepath.IsAbs(manifest.Object) {
		manifest.Object = filepath.Join(filepath.Dir(cleanPath), manifest.Object)
	}
	return &manifest, nil
}
