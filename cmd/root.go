// Package cmd provides the soyidx command-line interface.
//
// Configuration is read, lowest priority first, from .soyidx.yml in the
// workspace root, the file named by SOYIDX_CONFIG_FILE or --config,
// SOYIDX_<SECTION>_<OPTION> environment variables and command-line flags.
//
// Environment Variables:
//
//	SOYIDX_CONFIG_FILE: Path to a configuration file
//	SOYIDX_WORKSPACE_ROOT: Workspace root directory
//	SOYIDX_CACHE_DEBUG: Enable the change log
//	SOYIDX_LOG_LEVEL: Log level
package cmd

import (
	"errors"
	"os"

	"github.com/conneroisu/soyidx/internal/config"
	"github.com/conneroisu/soyidx/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "soyidx",
	Short: "Incremental index of soy template declarations",
	Long: `soyidx keeps an index of the namespaces, templates and delegate
templates declared by the .soy files of a workspace, split per module, and
keeps it current as files change.

Quick Start:
  soyidx index                      Index the workspace and print a summary
  soyidx list                       List namespaces and their templates
  soyidx lookup my.ns button        Find the files declaring a template
  soyidx watch                      Keep the index current while editing
  soyidx watch --debug              Also print what changed in the index`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .soyidx.yml in the workspace root, can also use SOYIDX_CONFIG_FILE env var)")
	flags.StringVarP(&rootDir, "root", "r", "", "workspace root (default is the current directory)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
}

// loadConfig builds the configuration for one invocation of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case os.Getenv("SOYIDX_CONFIG_FILE") != "":
		v.SetConfigFile(os.Getenv("SOYIDX_CONFIG_FILE"))
	default:
		dir := rootDir
		if dir == "" {
			dir = "."
		}
		v.AddConfigPath(dir)
		v.SetConfigType("yaml")
		v.SetConfigName(".soyidx")
	}

	if err := config.BindEnv(v); err != nil {
		return nil, err
	}

	// Commands only carry some of these flags.
	flags := cmd.Flags()
	for key, name := range map[string]string{
		"log.level":      "log-level",
		"log.format":     "log-format",
		"cache.debug":    "debug",
		"watch.debounce": "debounce",
	} {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, err
		}
	}
	if rootDir != "" {
		v.Set("workspace.root", rootDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return config.LoadFrom(v)
}

// newLogger builds the logger described by cfg. Logs go to stderr so that
// command output stays machine readable.
func newLogger(cmd *cobra.Command, cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	}), nil
}
