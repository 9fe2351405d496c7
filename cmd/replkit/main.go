// Command replkit is an interactive Go evaluator built on the replkit
// packages. It also evaluates files, serves evaluators over Connect and
// writes reference images.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/replkit/config"
	"github.com/chazu/replkit/evaluator"
	"github.com/chazu/replkit/script"
)

var log = commonlog.GetLogger("replkit.cli")

var (
	configDir string
	verbosity int
	logFile   string
	colorMode string
	modeFlag  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:               "replkit",
	Short:             "Interactive Go evaluator",
	Long:              `replkit evaluates Go fragments incrementally, keeping declarations and imports between them.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runREPL,
}

func main() {
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(imageCmd)

	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory to search upwards for replkit.toml")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "evaluator mode (basic|full), overrides replkit.toml")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and configures logging and color before any
// command runs.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.FindAndLoad(configDir)
	if err != nil {
		return err
	}
	if modeFlag != "" {
		cfg.Evaluator.Mode = modeFlag
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Log.Verbosity = verbosity
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	commonlog.Configure(cfg.Log.Verbosity, cfg.LogFile())
	if err := applyColorMode(colorMode); err != nil {
		return err
	}
	if cfg.Dir != "" {
		log.Debugf("using %s/%s", cfg.Dir, config.FileName)
	}
	return nil
}

// replEvaluator is what the CLI needs from either evaluator mode.
type replEvaluator interface {
	Evaluate(source string) (*script.Result, error)
	Imports() []string
	History() []*script.Generation
	Close() error
}

func evaluatorOptions() evaluator.Options {
	return evaluator.Options{
		Imports:  cfg.Evaluator.Imports,
		Stdlib:   cfg.Evaluator.Stdlib,
		ImageDir: cfg.ImageDirPath(),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// newEvaluator builds the evaluator the configuration asks for. The Full
// evaluator is also returned separately so completion can use it.
func newEvaluator() (replEvaluator, *evaluator.Full, error) {
	opts := evaluatorOptions()
	if cfg.Evaluator.Mode == config.ModeBasic {
		b, err := evaluator.NewBasic(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("creating evaluator: %w", err)
		}
		return b, nil, nil
	}
	f, err := evaluator.NewFull(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("creating evaluator: %w", err)
	}
	return f, f, nil
}
