package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/praetorian-inc/atomsel/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	verbose    bool
	quiet      bool
	configPath string

	// cfg holds the loaded configuration file. Flags the user did not set
	// take their values from it.
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "atomsel",
	Short: "Atom selection for pattern-matching rules",
	Long: `atomsel compiles regex, text and hex detection rules, picks the short
byte fragments (atoms) that a multi-pattern prefilter searches for, and scans
files with the compiled rules.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")

	// Add subcommands
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(atomsCmd)
	rootCmd.AddCommand(qualityCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup configures logging, loads the configuration file and applies it to
// flags the user left at their defaults.
func setup(cmd *cobra.Command, args []string) error {
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), verbose, quiet))

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	v, err := newViper(configPath)
	if err != nil {
		return err
	}
	return applyConfig(cmd.Flags(), v)
}

func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// flagKeys maps command flags to configuration keys.
var flagKeys = map[string]string{
	"rules":          "rules",
	"cache":          "cache",
	"workers":        "compile.workers",
	"max-file-size":  "scan.max_file_size",
	"include-hidden": "scan.include_hidden",
	"skip-binary":    "scan.skip_binary",
	"context":        "scan.snippet_context",
	"engine":         "scan.engine",
	"dedupe":         "scan.dedupe",
	"max-matches":    "scan.max_matches_per_rule",
}

// newViper reads the configuration file, if any, and ATOMSEL_* environment
// variables, e.g. ATOMSEL_SCAN_ENGINE for scan.engine. The file has already
// been checked by config.Load.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("atomsel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading configuration file '%s': %w", path, err)
		}
	}
	return v, nil
}

// applyConfig binds the flags of fs to their configuration keys and sets
// every flag the command line did not give from the file or environment.
func applyConfig(fs *pflag.FlagSet, v *viper.Viper) error {
	var flagErr error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || flagErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			flagErr = err
			return
		}
		// Bound flags count as set only when changed, so IsSet reports
		// values from the file or environment.
		if f.Changed || !v.IsSet(key) {
			return
		}
		if err := f.Value.Set(v.GetString(key)); err != nil {
			flagErr = fmt.Errorf("config value for --%s: %w", f.Name, err)
		}
	})
	return flagErr
}

// commandContext returns the command's context, which is nil when a run
// function is called directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
