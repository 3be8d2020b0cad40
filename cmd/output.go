package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/conneroisu/soyidx/internal/logging"
	"github.com/conneroisu/soyidx/internal/workspace"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// openProject loads the configuration and builds an indexed project.
// Change log output, when enabled, goes to changeLog.
func openProject(cmd *cobra.Command, changeLog io.Writer) (*workspace.Project, logging.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}

	project, err := workspace.Open(cfg, logger, changeLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	if _, err := project.Index(cmdContext(cmd)); err != nil {
		project.Close()
		return nil, nil, fmt.Errorf("failed to index workspace: %w", err)
	}
	return project, logger, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// writeOutput renders v as JSON or YAML, or calls table with a tabwriter.
func writeOutput(w io.Writer, format string, v any, table func(tw *tabwriter.Writer)) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}
