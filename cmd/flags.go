package cmd

import (
	"fmt"
	"slices"
	"strings"

	ierrors "github.com/conneroisu/soyidx/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var outputFormats = []string{"table", "json", "yaml"}

// OutputFlags are shared by the commands that print index contents.
type OutputFlags struct {
	Format    string
	Module    string
	Delegates bool
}

// AddOutputFlags registers --format, --module and --delegates on cmd.
func AddOutputFlags(cmd *cobra.Command) *OutputFlags {
	flags := &OutputFlags{}
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "table", "Output format ("+strings.Join(outputFormats, "|")+")")
	cmd.Flags().StringVarP(&flags.Module, "module", "m", "", "Only show this module")
	cmd.Flags().BoolVarP(&flags.Delegates, "delegates", "d", false, "Show delegate packages instead of namespaces")

	AddFlagValidation(cmd, "format", func(format string) error {
		return validateChoice("format", format, outputFormats)
	})
	return flags
}

// AddFlagValidation makes flagName reject values for which validator fails
// at parse time.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}

func validateChoice(name, value string, choices []string) error {
	if slices.Contains(choices, value) {
		return nil
	}
	return ierrors.NewValidationError(ierrors.CodeInvalidFormat,
		fmt.Sprintf("invalid %s %q, must be one of: %s", name, value, strings.Join(choices, ", ")))
}

// unknownModule reports a --module value naming no module.
func unknownModule(module string) error {
	return ierrors.NewValidationError(ierrors.CodeUnknownModule,
		fmt.Sprintf("unknown module %q", module)).WithModule(module)
}
