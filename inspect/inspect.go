// inspect.go: Cobra commands describing a running plugin host
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package inspect provides a command tree an application can mount under its
// own CLI to describe the parts, families and routing of its plugin host.
package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	plughost "github.com/agilira/go-plughost"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// NewCommand creates the "plugins" command tree for host.
func NewCommand(host *plughost.Host) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect the plugin host",
		Long: `Inspect the plugin host: the parts discovered in the plugin directory,
the families they belong to and the routing of segmented contracts.`,
		Example: `  # List every part
  app plugins parts

  # List families as JSON
  app plugins families --output json

  # Show how the methods of a segmented contract are routed
  app plugins routes Editor`,
	}
	cmd.PersistentFlags().StringP("output", "o", OutputTable, "output format: table, json or yaml")

	cmd.AddCommand(newPartsCommand(host))
	cmd.AddCommand(newFamiliesCommand(host))
	cmd.AddCommand(newRoutesCommand(host))
	return cmd
}

func newPartsCommand(host *plughost.Host) *cobra.Command {
	return &cobra.Command{
		Use:   "parts",
		Short: "List discovered parts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parts, err := host.Parts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load parts: %w", err)
			}
			return render(cmd, parts, func(w io.Writer) {
				fmt.Fprintln(w, "MODULE\tNAME\tCONTRACTS\tLIFETIME\tFAMILY\tPLUGIN")
				for _, p := range parts {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						p.Module, p.Name, strings.Join(p.Contracts, ","), p.Lifetime,
						orDash(p.FamilyID), orDash(p.PluginID))
				}
			})
		},
	}
}

func newFamiliesCommand(host *plughost.Host) *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List declared families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			families, err := host.Families(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load families: %w", err)
			}
			rows := make([]familyRow, 0, len(families))
			for _, f := range families {
				rows = append(rows, familyRow{ID: f.ID.String(), Name: f.Name})
			}
			return render(cmd, rows, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tNAME")
				for _, f := range rows {
					fmt.Fprintf(w, "%s\t%s\n", f.ID, f.Name)
				}
			})
		},
	}
}

func newRoutesCommand(host *plughost.Host) *cobra.Command {
	return &cobra.Command{
		Use:   "routes <contract>",
		Short: "Show the method routing of a segmented contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := host.RoutingTable(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to build routing table for %s: %w", args[0], err)
			}
			routes := table.Routes()
			return render(cmd, routes, func(w io.Writer) {
				fmt.Fprintln(w, "METHOD\tPLUGIN\tPRIMARY")
				for _, r := range routes {
					fmt.Fprintf(w, "%s\t%s\t%t\n", r.Method, r.PluginID, r.Primary)
				}
			})
		},
	}
}

type familyRow struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

func render(cmd *cobra.Command, value any, table func(io.Writer)) error {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch format {
	case OutputJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	case OutputYAML:
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(value)
	case OutputTable, "":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		table(w)
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
