package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cognaterra/better-drinking-bird/internal/config"
	"github.com/cognaterra/better-drinking-bird/internal/hooks"
	"github.com/cognaterra/better-drinking-bird/internal/llm"
	"github.com/cognaterra/better-drinking-bird/internal/logging"
	"github.com/cognaterra/better-drinking-bird/internal/sentinel"
	"github.com/cognaterra/better-drinking-bird/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bdb",
		Short:        "Better Drinking Bird supervises AI coding agents",
		Long:         `Better Drinking Bird receives agent lifecycle hooks and decides whether the agent may stop, run a tool, or compact its context.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newModeCmd(),
		newConfigCmd(),
		newCheckCmd(),
	)

	return rootCmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Decide one hook event",
		Long:  `Reads one hook event as JSON from stdin and writes the decision as JSON to stdout. Always exits 0 so a supervisor fault never blocks the agent.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runHook(cmd)
			return nil
		},
	}
}

func runHook(cmd *cobra.Command) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dir, dirErr := config.Dir()
	var envErr error
	if dirErr == nil {
		envErr = config.LoadEnvFile(dir)
	}
	cfg, cfgErr := config.Load(config.ResolvePath())

	logger, logErr := logging.New(cfg.Logging, logging.MirrorFromEnv())
	defer logger.Close()
	for _, err := range []error{dirErr, envErr, cfgErr, logErr} {
		if err != nil {
			logger.WithError(err).Warn("continuing with defaults")
		}
	}

	recorder, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		logger.WithError(err).Warn("telemetry disabled")
		recorder = telemetry.NewNoOpRecorder()
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := recorder.Close(flushCtx); err != nil {
			logger.WithError(err).Debug("failed to flush telemetry")
		}
	}()

	event, err := hooks.ParseEvent(cmd.InOrStdin())
	if err != nil {
		logger.WithError(err).Error("unreadable hook event, allowing")
		return
	}
	if event.Cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			event.Cwd = wd
		}
	}

	supervisor := hooks.NewSupervisorFromConfig(cfg, hooks.Dependencies{
		Client:   newClient(cfg.LLM, logger),
		State:    sentinel.NewStore(dir),
		Recorder: recorder,
		Killer:   hooks.NewParentKiller(),
		Branches: hooks.NewGitHelper(logger),
		Logger:   logger,
	})

	decision := supervisor.Dispatch(ctx, event)
	if err := hooks.WriteDecision(cmd.OutOrStdout(), event.HookEventName, decision); err != nil {
		logger.WithError(err).Error("failed to write decision")
	}
}

// newClient returns nil when no model is configured.
func newClient(cfg config.LLMConfig, logger logrus.FieldLogger) llm.Client {
	apiKey := cfg.ResolveAPIKey()
	if cfg.Provider != "anthropic" {
		if cfg.Provider != "" {
			logger.WithField("provider", cfg.Provider).Warn("unsupported LLM provider, running without a model")
		}
		return nil
	}
	if apiKey == "" {
		logger.Debug("no API key, running without a model")
		return nil
	}
	return llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:    apiKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.TimeoutDuration(),
	})
}

func newStore() (*sentinel.Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return sentinel.NewStore(dir), nil
}

func newPauseCmd() *cobra.Command {
	var global bool
	var reason string

	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause supervision",
		Long:  `Creates a pause sentinel in the current repository, or in ~/.bdb with --global. While paused every hook is allowed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			path, err := store.Pause(wd, global, reason)
			if err != nil {
				return fmt.Errorf("failed to pause: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paused (%s)\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "pause for every repository")
	cmd.Flags().StringVar(&reason, "reason", "", "why supervision is paused")
	return cmd
}

func newResumeCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume supervision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			path, removed, err := store.Resume(wd, global)
			if err != nil {
				return fmt.Errorf("failed to resume: %w", err)
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Not paused (%s)\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resumed (%s)\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "remove the global pause")
	return cmd
}

func newModeCmd() *cobra.Command {
	var global bool
	var clearMode bool

	cmd := &cobra.Command{
		Use:       "mode [default|auto|interactive]",
		Short:     "Show or set the supervision mode",
		Long:      `Without an argument prints the effective mode. In interactive mode every stop is allowed while safety checks keep running.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(sentinel.ModeDefault), string(sentinel.ModeAuto), string(sentinel.ModeInteractive)},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			switch {
			case clearMode:
				if len(args) > 0 {
					return fmt.Errorf("--clear takes no mode argument")
				}
				path, removed, err := store.ClearMode(wd, global)
				if err != nil {
					return fmt.Errorf("failed to clear mode: %w", err)
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared mode (%s)\n", path)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "No mode set (%s)\n", path)
				}
			case len(args) == 1:
				mode, err := sentinel.ParseMode(args[0])
				if err != nil {
					return err
				}
				path, err := store.SetMode(wd, global, mode)
				if err != nil {
					return fmt.Errorf("failed to set mode: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mode set to %s (%s)\n", mode, path)
			default:
				mode, source := store.Mode(wd)
				if source == "" {
					source = "built-in default"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", mode, source)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "use the global mode file")
	cmd.Flags().BoolVar(&clearMode, "clear", false, "remove the mode file")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration",
		Long:  `Writes ~/.bdb/config.yaml with mode 0600. An existing file is kept unless --force is given.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultPath()
			if err != nil {
				return err
			}
			if err := config.WriteTemplate(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report configuration and supervision state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			dir, err := config.Dir()
			if err != nil {
				return err
			}
			if err := config.LoadEnvFile(dir); err != nil {
				fmt.Fprintf(out, "Env file: %v\n", err)
			}

			path := config.ResolvePath()
			cfg, err := config.Load(path)
			switch {
			case err != nil:
				fmt.Fprintf(out, "Config: %v (using defaults)\n", err)
			case path == "":
				fmt.Fprintln(out, "Config: none found (using defaults)")
			default:
				fmt.Fprintf(out, "Config: %s\n", path)
			}

			model := "not configured"
			if cfg.LLM.Provider == "anthropic" && cfg.LLM.ResolveAPIKey() != "" {
				model = fmt.Sprintf("%s/%s", cfg.LLM.Provider, cfg.LLM.Model)
			}
			fmt.Fprintf(out, "LLM: %s\n", model)

			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			store := sentinel.NewStore(dir)
			if paused, source := store.IsPaused(wd); paused {
				fmt.Fprintf(out, "Paused: yes (%s)\n", source)
			} else {
				fmt.Fprintln(out, "Paused: no")
			}
			mode, _ := store.Mode(wd)
			fmt.Fprintf(out, "Mode: %s\n", mode)
			return nil
		},
	}
}
