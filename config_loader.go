// config_loader.go: Configuration files and Argus-powered hot reload
//
// Configuration files are parsed by extension: YAML with yaml.v3, HCL with
// hashicorp/hcl, JSON and TOML through Argus. A ConfigWatcher polls the file
// with Argus and hands every valid new configuration to the host; an invalid
// file leaves the running configuration in place.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// maxConfigSize bounds configuration files.
const maxConfigSize = 10 * 1024 * 1024

// ConfigurationUpdater receives reloaded configurations. *Host implements it.
type ConfigurationUpdater interface {
	UpdateConfiguration(cfg *ExtensibilityConfiguration) error
}

// LoadConfigFromFile loads and validates a configuration file.
//
// Supported formats, by extension: .json, .yaml/.yml, .toml, .hcl.
// ${VAR} placeholders are expanded before validation.
//
// Example usage:
//
//	cfg, err := plughost.LoadConfigFromFile("extensibility.yaml")
//	if err != nil {
//	    log.Fatalf("Failed to load config: %v", err)
//	}
//	err = host.UpdateConfiguration(cfg)
func LoadConfigFromFile(path string) (*ExtensibilityConfiguration, error) {
	securePath, err := validateConfigPath(path)
	if err != nil {
		return nil, err
	}

	content, err := readConfigFile(securePath)
	if err != nil {
		return nil, err
	}

	cfg := &ExtensibilityConfiguration{}
	if err := parseConfig(securePath, content, cfg); err != nil {
		return nil, NewConfigParseError(securePath, err)
	}
	if err := ExpandConfiguration(cfg, DefaultEnvExpansionOptions()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateConfigPath rejects traversal and returns the absolute path of a
// readable regular file.
func validateConfigPath(path string) (string, error) {
	if path == "" {
		return "", NewConfigPathError(path, "empty file path provided")
	}
	if strings.Contains(path, "\x00") {
		return "", NewConfigPathError(path, "null byte detected in path")
	}
	if strings.Contains(path, "..") {
		return "", NewConfigPathError(path, "path traversal detected: contains '..' component")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", NewConfigPathError(path, fmt.Sprintf("failed to resolve absolute path: %v", err))
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewConfigNotFoundError(absPath)
		}
		return "", NewConfigFileError(absPath, "cannot access config file", err)
	}
	if !info.Mode().IsRegular() {
		return "", NewConfigFileError(absPath, "config path is not a regular file", nil)
	}
	if info.Size() > maxConfigSize {
		return "", NewConfigFileError(absPath, fmt.Sprintf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize), nil)
	}
	return absPath, nil
}

func readConfigFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- path validated by validateConfigPath
	if err != nil {
		return nil, NewConfigFileError(path, "failed to read config file", err)
	}
	if len(content) == 0 {
		return nil, NewConfigFileError(path, "config file is empty", nil)
	}
	return content, nil
}

// parseConfig decodes content according to the file extension.
//
// Strategy:
//   - YAML: gopkg.in/yaml.v3 (full YAML spec support)
//   - HCL: hashicorp/hcl gohcl decoding with blocks
//   - Others: Argus (JSON, TOML) bound through JSON
func parseConfig(path string, content []byte, cfg *ExtensibilityConfiguration) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(content, cfg)
	case ".hcl":
		return parseHCLConfig(path, content, cfg)
	}

	configMap, err := argus.ParseConfig(content, argus.DetectFormat(path))
	if err != nil {
		return err
	}
	return bindConfig(configMap, cfg)
}

func parseHCLConfig(path string, content []byte, cfg *ExtensibilityConfiguration) error {
	file, diags := hclparse.NewParser().ParseHCL(content, path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL: %w", diags)
	}
	if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL: %w", diags)
	}
	return nil
}

// bindConfig converts a parsed map to the configuration struct.
func bindConfig(configMap map[string]interface{}, cfg *ExtensibilityConfiguration) error {
	if configMap == nil {
		return fmt.Errorf("configuration map is nil")
	}
	jsonBytes, err := json.Marshal(configMap)
	if err != nil {
		return fmt.Errorf("failed to marshal config map to JSON: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// WatcherOptions configures a ConfigWatcher.
type WatcherOptions struct {
	// PollInterval for file watching
	PollInterval time.Duration `json:"poll_interval"`

	// CacheTTL for Argus stat caching, at most PollInterval
	CacheTTL time.Duration `json:"cache_ttl"`

	// AuditConfig for the Argus audit trail
	AuditConfig argus.AuditConfig `json:"audit_config"`
}

// DefaultWatcherOptions returns the default watcher options.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		PollInterval: 5 * time.Second,
		CacheTTL:     2 * time.Second,
		AuditConfig: argus.AuditConfig{
			Enabled:       false,
			OutputFile:    "plughost-config-audit.jsonl",
			MinLevel:      argus.AuditInfo,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
		},
	}
}

// ConfigWatcher reloads a configuration file into a ConfigurationUpdater.
//
//	watcher, err := plughost.NewConfigWatcher(host, "extensibility.yaml", plughost.DefaultWatcherOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	if err := watcher.Start(); err != nil {
//	    return err
//	}
//	defer watcher.Stop()
type ConfigWatcher struct {
	target     ConfigurationUpdater
	watcher    *argus.Watcher
	configPath string
	logger     Logger
	options    WatcherOptions

	mu            sync.Mutex
	running       atomic.Bool
	stopped       atomic.Bool
	stopOnce      sync.Once
	currentConfig atomic.Pointer[ExtensibilityConfiguration]
	reloads       atomic.Int64
}

// NewConfigWatcher creates a watcher for configPath.
func NewConfigWatcher(target ConfigurationUpdater, configPath string, options WatcherOptions, logger any) (*ConfigWatcher, error) {
	if target == nil {
		return nil, NewConfigWatcherError("configuration target is nil", nil)
	}
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultWatcherOptions().PollInterval
	}
	if options.CacheTTL <= 0 || options.CacheTTL > options.PollInterval {
		options.CacheTTL = options.PollInterval
	}
	internalLogger := NewLogger(logger)

	watcher := argus.New(argus.Config{
		PollInterval:         options.PollInterval,
		CacheTTL:             options.CacheTTL,
		MaxWatchedFiles:      10,
		Audit:                options.AuditConfig,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, filepath string) {
			internalLogger.Error("Argus file watching error", "error", err, "file", filepath)
		},
	})

	return &ConfigWatcher{
		target:     target,
		watcher:    watcher,
		configPath: configPath,
		logger:     internalLogger,
		options:    options,
	}, nil
}

// Start loads and applies the file, then watches it for changes.
func (cw *ConfigWatcher) Start() error {
	if cw.stopped.Load() {
		return NewConfigWatcherError("config watcher has been permanently stopped and cannot be restarted", nil)
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.running.CompareAndSwap(false, true) {
		return NewConfigWatcherError("config watcher is already running", nil)
	}

	initial, err := LoadConfigFromFile(cw.configPath)
	if err != nil {
		cw.running.Store(false)
		return err
	}
	if err := cw.target.UpdateConfiguration(initial); err != nil {
		cw.running.Store(false)
		return err
	}
	cw.currentConfig.Store(initial)

	if err := cw.watcher.Watch(cw.configPath, cw.handleConfigChange); err != nil {
		cw.running.Store(false)
		return NewConfigWatcherError("failed to watch config file", err)
	}
	if err := cw.watcher.Start(); err != nil {
		cw.running.Store(false)
		return NewConfigWatcherError("failed to start Argus watcher", err)
	}

	cw.logger.Info("Configuration watcher started",
		"config_path", cw.configPath,
		"poll_interval", cw.options.PollInterval)
	return nil
}

// Stop stops watching. A stopped watcher cannot be restarted.
func (cw *ConfigWatcher) Stop() error {
	if cw.stopped.Load() {
		return NewConfigWatcherError("config watcher is already stopped", nil)
	}

	var stopErr error
	cw.stopOnce.Do(func() {
		cw.mu.Lock()
		defer cw.mu.Unlock()

		cw.stopped.Store(true)
		if !cw.running.CompareAndSwap(true, false) {
			stopErr = NewConfigWatcherError("config watcher is not running", nil)
			return
		}
		if err := cw.watcher.Stop(); err != nil {
			stopErr = NewConfigWatcherError("failed to stop Argus watcher", err)
			return
		}
		cw.logger.Info("Configuration watcher stopped", "config_path", cw.configPath)
	})
	return stopErr
}

// IsRunning reports whether the watcher is running.
func (cw *ConfigWatcher) IsRunning() bool {
	return cw.running.Load() && !cw.stopped.Load()
}

// Current returns the last configuration applied by the watcher.
func (cw *ConfigWatcher) Current() *ExtensibilityConfiguration {
	return cw.currentConfig.Load()
}

// Reloads returns the number of configurations applied after the initial one.
func (cw *ConfigWatcher) Reloads() int64 {
	return cw.reloads.Load()
}

// handleConfigChange processes configuration file changes from Argus
func (cw *ConfigWatcher) handleConfigChange(event argus.ChangeEvent) {
	cw.logger.Info("Configuration file change detected",
		"path", event.Path,
		"mod_time", event.ModTime,
		"size", event.Size,
		"is_create", event.IsCreate,
		"is_delete", event.IsDelete,
		"is_modify", event.IsModify)

	if event.IsDelete {
		cw.logger.Warn("Configuration file was deleted, keeping current configuration", "path", event.Path)
		return
	}

	next, err := LoadConfigFromFile(event.Path)
	if err != nil {
		cw.logger.Error("Failed to load new configuration, keeping current", "error", err, "path", event.Path)
		return
	}
	if err := cw.target.UpdateConfiguration(next); err != nil {
		cw.logger.Error("Failed to apply new configuration, keeping current", "error", err, "path", event.Path)
		return
	}

	cw.currentConfig.Store(next)
	cw.reloads.Add(1)
	cw.logger.Info("Configuration reload completed",
		"segmented_contracts", len(next.SegmentedContracts),
		"plugin_directory", next.Directory())
}
