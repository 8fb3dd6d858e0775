package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/config"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	configFile     string
	verbose        bool
	assessmentType string
	format         string
	seed           uint64
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "profilectl",
	Short: "Inspect assessment definitions and exercise the scoring engine",
	Long: `profilectl validates assessment definitions, previews question
selections and scores simulated or stored sessions offline, using the same
engine and configuration as the profile server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "profile config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// addSessionFlags registers the flags shared by commands that build a session.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&assessmentType, "assessment", "dsi", "assessment type")
	cmd.Flags().StringVar(&format, "format", "standard", "assessment format")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
}

// toolkit is what every command needs: definitions and an engine built
// from the server configuration.
type toolkit struct {
	cfg    *config.Config
	defs   *assessment.Registry
	engine *scoring.Engine
	logger *slog.Logger
}

func loadToolkit() (tk toolkit, err error) {
	tk.cfg, err = config.Load(configFile)
	if err != nil {
		err = errors.Wrap(err, "failed to load config")
		return tk, err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	tk.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	tk.defs, err = assessment.NewRegistry(tk.cfg.Assessments.Dir, tk.cfg.Assessments.CacheSize, tk.logger)
	if err != nil {
		err = errors.Wrap(err, "failed to load assessments")
		return tk, err
	}

	tk.engine, err = scoring.NewEngine(tk.cfg.EngineConfig(), tk.logger, nil)
	if err != nil {
		err = errors.Wrap(err, "invalid scoring configuration")
		return tk, err
	}
	return tk, err
}

func printJSON(w io.Writer, v interface{}) (err error) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err = enc.Encode(v)
	if err != nil {
		err = errors.Wrap(err, "failed to encode output")
	}
	return err
}
