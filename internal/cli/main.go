package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/hlclip/internal/logging"
	"github.com/forPelevin/hlclip/internal/pipeline"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "hlclip",
		Short:         "Cut the highlight of a video into a captioned clip",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	root.PersistentFlags().String("config", "", "Path to a TOML config file (default ./"+pipeline.DefaultConfigFile+" when present)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "Log format: auto, console, json")
	root.PersistentFlags().String("work", "", "Directory for per-job temporary files")
	root.PersistentFlags().String("out", "", "Directory for rendered clips")

	root.AddCommand(newServeCommand(), newRunCommand())
	return root
}

// loadRuntime resolves the configuration for cmd and builds the logger.
// Flags win over the environment, which wins over the config file.
func loadRuntime(cmd *cobra.Command) (pipeline.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := pipeline.LoadConfig(path)
	if err != nil {
		return pipeline.Config{}, nil, err
	}

	overrideString(cmd, "log-level", &cfg.LogLevel)
	overrideString(cmd, "log-format", &cfg.LogFormat)
	overrideString(cmd, "work", &cfg.WorkDir)
	overrideString(cmd, "out", &cfg.OutDir)
	overrideString(cmd, "listen", &cfg.Listen)

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return pipeline.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, logger, nil
}

func overrideString(cmd *cobra.Command, name string, dst *string) {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return
	}
	*dst = f.Value.String()
}
