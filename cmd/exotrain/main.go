// Command exotrain trains the exoplanet light-curve classifier and works with
// the artifacts it saves.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/exotrain/pipeline"
	"github.com/YuminosukeSato/exotrain/pkg/log"
)

var (
	// Global flags
	configPath string
	flagValues = pipeline.DefaultConfig()
	noReport   bool

	// Resolved in PersistentPreRunE
	cfg    *pipeline.Config
	logger log.Logger = log.Nop()
)

// rootCmd trains when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "exotrain",
	Short: "Train a 1-D CNN that detects exoplanet transits in light curves",
	Long: `exotrain reads exoTrain.csv and exoTest.csv, cleans and standardizes the
flux readings, rebalances the training rows with SMOTE and trains a small
convolutional network. The fitted scaler and the trained model are saved to
the output directory.

Run without a subcommand to train with the default settings.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runTrain,
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the full training pipeline",
	Args:  cobra.NoArgs,
	RunE:  runTrain,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [csv]",
	Short: "Score the saved scaler and model on a labelled CSV",
	Long: `Loads the scaler and model artifacts and prints a classification report,
ROC AUC and log loss for a CSV laid out like the training tables.
The test table is used when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Describe the saved scaler and model",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func init() {
	defaults := pipeline.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&configPath, "config", "", "YAML file overriding the default settings")
	flags.StringVar(&flagValues.DataDir, "data-dir", defaults.DataDir, "directory holding the input tables")
	flags.StringVar(&flagValues.TrainFile, "train-file", defaults.TrainFile, "training table file name")
	flags.StringVar(&flagValues.TestFile, "test-file", defaults.TestFile, "test table file name")
	flags.StringVar(&flagValues.OutputDir, "output-dir", defaults.OutputDir, "directory receiving the artifacts")
	flags.StringVar(&flagValues.PlotFile, "plot", defaults.PlotFile, "write the training curves to this PNG in the output directory")
	flags.Int64Var(&flagValues.Seed, "seed", defaults.Seed, "random seed for oversampling and training")
	flags.IntVar(&flagValues.KNeighbors, "k-neighbors", defaults.KNeighbors, "SMOTE nearest neighbours")
	flags.IntVar(&flagValues.Epochs, "epochs", defaults.Epochs, "training epochs")
	flags.IntVar(&flagValues.BatchSize, "batch-size", defaults.BatchSize, "mini-batch size")
	flags.Float64Var(&flagValues.LearningRate, "learning-rate", defaults.LearningRate, "Adam learning rate")
	flags.Float64Var(&flagValues.ClipValue, "clip-value", defaults.ClipValue, "gradient clip value, 0 disables clipping")
	flags.BoolVar(&noReport, "no-report", false, "skip the classification report after training")
	flags.StringVar(&flagValues.LogLevel, "log-level", defaults.LogLevel, "debug, info, warn or error")
	flags.StringVar(&flagValues.LogFormat, "log-format", defaults.LogFormat, "console or json")

	rootCmd.AddCommand(trainCmd, evaluateCmd, inspectCmd)
}

// flagSetters copy a changed flag from flagValues onto the resolved config.
var flagSetters = map[string]func(dst *pipeline.Config){
	"data-dir":      func(dst *pipeline.Config) { dst.DataDir = flagValues.DataDir },
	"train-file":    func(dst *pipeline.Config) { dst.TrainFile = flagValues.TrainFile },
	"test-file":     func(dst *pipeline.Config) { dst.TestFile = flagValues.TestFile },
	"output-dir":    func(dst *pipeline.Config) { dst.OutputDir = flagValues.OutputDir },
	"plot":          func(dst *pipeline.Config) { dst.PlotFile = flagValues.PlotFile },
	"seed":          func(dst *pipeline.Config) { dst.Seed = flagValues.Seed },
	"k-neighbors":   func(dst *pipeline.Config) { dst.KNeighbors = flagValues.KNeighbors },
	"epochs":        func(dst *pipeline.Config) { dst.Epochs = flagValues.Epochs },
	"batch-size":    func(dst *pipeline.Config) { dst.BatchSize = flagValues.BatchSize },
	"learning-rate": func(dst *pipeline.Config) { dst.LearningRate = flagValues.LearningRate },
	"clip-value":    func(dst *pipeline.Config) { dst.ClipValue = flagValues.ClipValue },
	"no-report":     func(dst *pipeline.Config) { dst.Report = !noReport },
	"log-level":     func(dst *pipeline.Config) { dst.LogLevel = flagValues.LogLevel },
	"log-format":    func(dst *pipeline.Config) { dst.LogFormat = flagValues.LogFormat },
}

// resolveConfig loads the config file, or the defaults, and applies the flags
// set on the command line.
func resolveConfig(cmd *cobra.Command) (*pipeline.Config, error) {
	resolved := pipeline.DefaultConfig()
	if configPath != "" {
		var err error
		if resolved, err = pipeline.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	for name, set := range flagSetters {
		if cmd.Flags().Changed(name) {
			set(resolved)
		}
	}
	if err := resolved.Validate(); err != nil {
		return nil, err
	}
	return resolved, nil
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfg, err = resolveConfig(cmd); err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.LogLevel, cmd.ErrOrStderr()); err != nil {
		return err
	}
	zl := log.NewZerologLogger(cmd.ErrOrStderr(), level, cfg.LogFormat == "console")
	log.RouteWarnings(zl)
	logger = zl
	return nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	p, err := pipeline.New(cfg, pipeline.WithLogger(logger), pipeline.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	_, err = p.Run(cmd.Context())
	return err
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	path := cfg.TestPath()
	if len(args) == 1 {
		path = args[0]
	}
	_, err := pipeline.Evaluate(cmd.Context(), cfg, path, cmd.OutOrStdout(), logger)
	return err
}

func runInspect(cmd *cobra.Command, args []string) error {
	return pipeline.Inspect(cfg, cmd.OutOrStdout())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
