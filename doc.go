// Package plughost is an in-process plugin host for Go applications.
//
// Plugins are Go packages that declare a Module: the contracts (interface
// types) they implement, the family each implementation belongs to, the
// plugin ID of routable segments and their lifetime. Modules are linked into
// the application and registered from init, or shipped as Go plugin objects.
// A plugin directory of manifests decides which modules are deployed.
//
// Key Features:
//   - Type-safe resolution with generics: Load, LoadFamily, LoadRequired
//   - Families isolating colliding contracts of different plugin sets
//   - Segmented contracts routed method by method across several plugins
//   - Armed dependencies for host-supplied values created at runtime
//   - Struct field injection with plughost:"import" tags
//   - Hot swap of the configuration with Argus file watching
//   - Structured errors, pluggable logging, metrics and OpenTelemetry spans
//
// Basic Usage:
//
//	// In the plugin package
//	func init() {
//		plughost.MustRegisterModule(plughost.Module{
//			Name: "markdown",
//			Exports: []plughost.Export{
//				plughost.Provide[editor.Renderer](newRenderer, plughost.Shared()),
//			},
//		})
//	}
//
//	// plugins/markdown/plugin.yaml
//	//   module: markdown
//
//	// In the application
//	host, err := plughost.NewHost(plughost.HostOptions{BasePath: appDir})
//	if err != nil {
//		log.Fatal(err)
//	}
//	renderers, err := plughost.Load[editor.Renderer](ctx, host)
//
// Segmented contracts are configured per contract name: exactly one primary
// plugin serves every method no other plugin claims.
//
//	editor, err := plughost.LoadAdapter[editor.Editor](ctx, host)
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package plughost
