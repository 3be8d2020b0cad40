package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/soyidx/internal/config"
	"github.com/conneroisu/soyidx/internal/watcher"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Keep the index current while files change",
	Long: `Index the workspace, then watch every module for template files being
created, edited, renamed or deleted and apply each change to the index.

With --debug the index reports what changed in it, once changes have
settled, as a tree of added and removed templates per module.

Examples:
  soyidx watch                    # Watch quietly
  soyidx watch --debug            # Print the index changes
  soyidx watch -v                 # Print every file event`,
	RunE: runWatch,
}

var watchVerbose bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Bool("debug", false, "Print the changes made to the index")
	watchCmd.Flags().Duration("debounce", config.DefaultDebounce, "Quiet period before a burst of file events is applied")
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Print every file event")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	out := cmd.OutOrStdout()
	project, logger, err := openProject(cmd, out)
	if err != nil {
		return err
	}
	defer project.Close()

	cfg, ws := project.Config, project.Workspace
	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.ExtensionFilter(cfg.Cache.Extension))
	fileWatcher.AddFilter(watcher.ExcludeFilter(ws.Excluded))
	fileWatcher.SkipDirs(ws.Excluded)

	if watchVerbose {
		fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
			for _, event := range events {
				fmt.Fprintln(out, event)
			}
			return nil
		})
	}
	fileWatcher.AddHandler(watcher.IndexHandler(project.Updater, ws))

	for _, module := range ws.ModuleList() {
		if err := fileWatcher.AddRecursive(module.Root); err != nil {
			return fmt.Errorf("failed to watch module %s: %w", module.Name, err)
		}
		logger.Info(ctx, "Watching module", "module", module.Name, "root", module.Root)
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	fmt.Fprintf(out, "Watching %d module(s), press Ctrl+C to stop\n", len(ws.ModuleList()))

	<-ctx.Done()
	logger.Debug(context.Background(), "Watch stopped", "cause", context.Cause(ctx))
	return nil
}
