package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/conneroisu/soyidx/internal/cache"
	"github.com/conneroisu/soyidx/internal/directive"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup [<namespace|delegate-package>] <template>",
	Short: "Find the files declaring a template",
	Long: `Print every file declaring the named template. Without --module every
module is searched. With --delegates the first argument names a delegate
package and the second a delegate template.

Files without a {namespace} (or {delpackage}) are indexed under the default
namespace "` + directive.DefaultNamespace + `" (or "` + directive.DefaultDelegate + `").
With --default only the template is given and the default owner is searched.

Examples:
  soyidx lookup my.ns button
  soyidx lookup -d my.pkg my.ns.button -f json
  soyidx lookup --default button
  soyidx lookup -d --default my.ns.button`,
	Args: lookupArgs,
	RunE: runLookup,
}

var (
	lookupFlags   *OutputFlags
	lookupDefault bool
)

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupFlags = AddOutputFlags(lookupCmd)
	lookupCmd.Flags().BoolVar(&lookupDefault, "default", false, "Search the default namespace or delegate package")
}

func lookupArgs(cmd *cobra.Command, args []string) error {
	if lookupDefault {
		return cobra.ExactArgs(1)(cmd, args)
	}
	return cobra.ExactArgs(2)(cmd, args)
}

// lookupTarget returns the owner and template name to search for.
func lookupTarget(args []string) (owner, name string) {
	if !lookupDefault {
		return args[0], args[1]
	}
	if lookupFlags.Delegates {
		return directive.DefaultDelegate, args[0]
	}
	return directive.DefaultNamespace, args[0]
}

// LookupResult is one declaration found by lookup.
type LookupResult struct {
	Module      string `json:"module" yaml:"module"`
	cache.Entry `yaml:",inline"`
}

func runLookup(cmd *cobra.Command, args []string) error {
	project, _, err := openProject(cmd, nil)
	if err != nil {
		return err
	}
	defer project.Close()

	owner, name := lookupTarget(args)
	results := []LookupResult{}
	for _, module := range project.Workspace.Modules() {
		if lookupFlags.Module != "" && module != lookupFlags.Module {
			continue
		}
		var entries []cache.Entry
		if lookupFlags.Delegates {
			entries = project.Store.LookupDelegate(module, owner, name)
		} else {
			entries = project.Store.Lookup(module, owner, name)
		}
		for _, e := range entries {
			results = append(results, LookupResult{Module: module, Entry: e})
		}
	}
	if len(results) == 0 {
		return fmt.Errorf("no declaration of %s in %s", name, owner)
	}

	return writeOutput(cmd.OutOrStdout(), lookupFlags.Format, results, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "MODULE\tFILE\tDECLARATION")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Module, r.File, r.Entry)
		}
	})
}
