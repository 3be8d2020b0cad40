package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/soyidx/internal/cache"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List indexed namespaces and their templates",
	Long: `List the namespaces of every module with the templates they declare and
the files declaring them. With --delegates, list delegate packages and their
delegate templates instead.

Examples:
  soyidx list                     # Namespaces of every module
  soyidx list -d                  # Delegate packages
  soyidx list -m app -f yaml      # The "app" module as YAML`,
	RunE: runList,
}

var listFlags *OutputFlags

func init() {
	rootCmd.AddCommand(listCmd)
	listFlags = AddOutputFlags(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	project, _, err := openProject(cmd, nil)
	if err != nil {
		return err
	}
	defer project.Close()

	var snapshots []cache.Snapshot
	for _, module := range project.Workspace.Modules() {
		if listFlags.Module != "" && module != listFlags.Module {
			continue
		}
		snap := project.Store.Dump(module)
		if listFlags.Delegates {
			snap.Namespaces = nil
		} else {
			snap.Delegates = nil
		}
		snapshots = append(snapshots, snap)
	}
	if listFlags.Module != "" && len(snapshots) == 0 {
		return unknownModule(listFlags.Module)
	}

	return writeOutput(cmd.OutOrStdout(), listFlags.Format, snapshots, func(tw *tabwriter.Writer) {
		owner := "NAMESPACE"
		if listFlags.Delegates {
			owner = "DELEGATE PACKAGE"
		}
		fmt.Fprintf(tw, "MODULE\t%s\tTEMPLATE\tFILES\n", owner)
		for _, snap := range snapshots {
			buckets := snap.Namespaces
			if listFlags.Delegates {
				buckets = snap.Delegates
			}
			for _, b := range buckets {
				if len(b.Templates) == 0 {
					fmt.Fprintf(tw, "%s\t%s\t-\t%s\n", snap.Module, b.Owner, strings.Join(b.Files, ","))
					continue
				}
				for _, name := range slices.Sorted(maps.Keys(b.Templates)) {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", snap.Module, b.Owner, name, strings.Join(b.Templates[name], ","))
				}
			}
		}
	})
}
