package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/seqlab/internal/config"
	"github.com/happyhackingspace/seqlab/internal/metric"
)

// CLI encapsulates the command-line interface with its dependencies.
type CLI struct {
	version     string
	verbose     bool
	silent      bool
	configPath  string
	metricsFile string
	initialized bool
	rootCmd     *cobra.Command

	cfg     *config.Config
	metrics *metric.Observer
}

// New creates a new CLI instance with the given version string.
func New(version string) *CLI {
	c := &CLI{version: version}
	c.setupCommands()
	return c
}

// setupCommands initializes all CLI commands and their configurations.
func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:           "seqlab",
		Short:         "Train and apply sparse linear sequence labelers",
		Version:       c.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.initApp()
			return c.loadConfig()
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	flags := c.rootCmd.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose/debug output")
	flags.BoolVarP(&c.silent, "silent", "s", false, "Suppress all logging")
	flags.StringVarP(&c.configPath, "config", "c", "", "Path to a YAML configuration file")
	flags.StringVar(&c.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")

	defaultHelp := c.rootCmd.HelpFunc()
	c.rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		c.initApp()
		defaultHelp(cmd, args)
	})

	c.rootCmd.AddCommand(c.newTrainCommand())
	c.rootCmd.AddCommand(c.newPredictCommand())
	c.rootCmd.AddCommand(c.newEvaluateCommand())
	c.rootCmd.AddCommand(c.newVocabCommand())
	c.rootCmd.AddCommand(c.newTaggerCommand())
	c.rootCmd.AddCommand(c.newConfigCommand())
}

// Run executes the CLI and returns any error.
func (c *CLI) Run() error {
	err := c.rootCmd.Execute()
	if err != nil {
		slog.Error("Command failed", "error", err)
	}
	if werr := c.writeMetrics(); werr != nil {
		slog.Error("Writing metrics failed", "error", werr)
		if err == nil {
			err = werr
		}
	}
	return err
}

// initApp initializes logging.
func (c *CLI) initApp() {
	if c.initialized {
		return
	}
	c.initialized = true

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	if c.silent {
		level = slog.Level(100)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// loadConfig reads the configuration and wires the metrics observer into it.
func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.metricsFile != "" {
		cfg.MetricsFile = c.metricsFile
	}
	if cfg.MetricsFile != "" {
		obs, err := metric.New()
		if err != nil {
			return err
		}
		c.metrics = obs
		cfg.Tagger.Trainer.Observer = obs
		cfg.Tagger.BeamObserver = obs
	}
	c.cfg = cfg
	slog.Debug("Configuration loaded", "path", c.configPath, "beam_width", cfg.Tagger.BeamWidth,
		"algorithm", cfg.Tagger.Trainer.Algorithm, "metrics_file", cfg.MetricsFile)
	return nil
}

func (c *CLI) writeMetrics() error {
	if c.metrics == nil {
		return nil
	}
	if err := c.metrics.WriteTextfile(c.cfg.MetricsFile); err != nil {
		return err
	}
	slog.Debug("Metrics written", "path", c.cfg.MetricsFile)
	return nil
}

func isStdinTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&os.ModeCharDevice != 0
}
