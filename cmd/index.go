package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/conneroisu/soyidx/internal/cache"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:     "index",
	Aliases: []string{"i"},
	Short:   "Index the workspace and print a summary per module",
	Long: `Index every template file of the workspace and print, per module, how
many namespaces, delegate packages, templates and files were indexed.

Examples:
  soyidx index                    # Summary table
  soyidx index -f json            # Summary as JSON
  soyidx index -r ./web -m app    # Only the "app" module of ./web`,
	RunE: runIndex,
}

var indexFlags *OutputFlags

func init() {
	rootCmd.AddCommand(indexCmd)
	indexFlags = AddOutputFlags(indexCmd)
}

// ModuleSummary counts what one module's caches hold.
type ModuleSummary struct {
	Module     string `json:"module" yaml:"module"`
	Namespaces int    `json:"namespaces" yaml:"namespaces"`
	Delegates  int    `json:"delegate_packages" yaml:"delegate_packages"`
	Templates  int    `json:"templates" yaml:"templates"`
	Files      int    `json:"files" yaml:"files"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	project, _, err := openProject(cmd, nil)
	if err != nil {
		return err
	}
	defer project.Close()

	var summaries []ModuleSummary
	for _, module := range project.Workspace.Modules() {
		if indexFlags.Module != "" && module != indexFlags.Module {
			continue
		}
		summaries = append(summaries, summarize(project.Store, module))
	}
	if indexFlags.Module != "" && len(summaries) == 0 {
		return unknownModule(indexFlags.Module)
	}

	return writeOutput(cmd.OutOrStdout(), indexFlags.Format, summaries, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "MODULE\tNAMESPACES\tDELEGATE PACKAGES\tTEMPLATES\tFILES")
		for _, s := range summaries {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", s.Module, s.Namespaces, s.Delegates, s.Templates, s.Files)
		}
	})
}

func summarize(store *cache.Store, module string) ModuleSummary {
	summary := ModuleSummary{Module: module}
	ns, dp, ok := store.Existing(module)
	if !ok {
		return summary
	}
	summary.Namespaces = ns.Len()
	summary.Delegates = dp.Len()
	summary.Templates = len(ns.Entries()) + len(dp.Entries())
	summary.Files = len(ns.Files())
	return summary
}
