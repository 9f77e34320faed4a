package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cfg "github.com/maastricht-university/audioclf-eval/config"
	"github.com/maastricht-university/audioclf-eval/orchestrator"
)

var (
	configPath string
	logLevel   string

	mode      string
	k         int
	modelPath string

	filename string
	tag      string
)

var rootCmd = &cobra.Command{
	Use:           "audioclf-eval",
	Short:         "Score audio classifiers on a test set and analyse their errors",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Predict a class for every test file",
	Long: `Runs the model over the test metadata and writes <dset>_predictions_<mode>.csv.

Modes:
  k-random  score k randomly cropped windows per file and average them
  all       score every snippet (or segment) of each file and average them`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := load(cmd)
		if err != nil {
			return err
		}
		_, err = orchestrator.NewPipeline(c, orchestrator.WithProgress(os.Stderr)).Infer(cmd.Context())
		return err
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Write confusion matrix, plot and classification report for a predictions file",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := load(cmd)
		if err != nil {
			return err
		}
		t := c.Eval.Tag
		if cmd.Flags().Changed("tag") {
			t = tag
		}
		_, err = orchestrator.NewPipeline(c).ErrorAnalysis(filename, t)
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Infer, then analyse the resulting predictions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := load(cmd)
		if err != nil {
			return err
		}
		_, _, err = orchestrator.NewPipeline(c, orchestrator.WithProgress(os.Stderr)).Run(cmd.Context())
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override pipeline.log_level")

	for _, c := range []*cobra.Command{inferCmd, runCmd} {
		c.Flags().StringVar(&mode, "mode", "", "inference mode: k-random or all")
		c.Flags().IntVarP(&k, "k", "k", 0, "random windows per file in k-random mode")
		c.Flags().StringVar(&modelPath, "model", "", "model weights (.onnx)")
	}
	analyzeCmd.Flags().StringVar(&filename, "file", "", "predictions csv inside paths.outputs")
	analyzeCmd.Flags().StringVar(&tag, "tag", "", "suffix for the artifact names")

	rootCmd.AddCommand(inferCmd, analyzeCmd, runCmd)
}

// load reads the config, applies command line overrides and validates the
// result.
func load(cmd *cobra.Command) (*cfg.Root, error) {
	c, err := cfg.Load(configPath)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Lookup("mode") != nil && f.Changed("mode") {
		c.Inference.Mode = mode
	}
	if f.Lookup("k") != nil && f.Changed("k") {
		c.Inference.K = k
	}
	if f.Lookup("model") != nil && f.Changed("model") {
		c.Model.Path = modelPath
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	lvl := c.Pipeline.LogLvl
	if logLevel != "" {
		lvl = logLevel
	}
	if l, err := log.ParseLevel(lvl); err == nil {
		log.SetLevel(l)
	} else {
		log.WithField("level", lvl).Warn("unknown log level, keeping info")
	}
	log.WithFields(log.Fields{"name": c.Pipeline.Name, "version": c.Pipeline.Version}).Debug("config loaded")
	return c, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error(err)
		stop()
		os.Exit(1)
	}
}
