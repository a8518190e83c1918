package main

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/hookbus/internal/app"
	"github.com/dshills/hookbus/internal/config"
	"github.com/dshills/hookbus/internal/logging"
)

// defaultEnvFile is loaded when present; a missing file is not an error.
const defaultEnvFile = ".env"

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "hookbus",
		Short: "Hook pipeline and event bus runtime",
		Long: `hookbus runs priority-ordered hook callbacks at agent, tool and workflow
lifecycle points and routes events between components by type pattern.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.loadEnv(cmd.Flags().Changed("env-file"))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML or TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", defaultEnvFile, "Environment file loaded before the configuration")

	rootCmd.AddCommand(
		createRunCmd(opts),
		createPublishCmd(opts),
		createMatchCmd(),
		createPointsCmd(),
		createServeCmd(opts),
		createVersionCmd(),
	)
	return rootCmd
}

// loadEnv loads the env file without overriding variables already set. A
// missing file is only an error when the path was given explicitly.
func (o *rootOptions) loadEnv(explicit bool) error {
	if o.envFile == "" {
		return nil
	}
	err := godotenv.Load(o.envFile)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// loadConfig loads the configuration file, or the defaults when none is
// given, and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newApp builds an Application from cfg with a logger writing per
// cfg.Logging. The returned closer releases both.
func newApp(cfg *config.Config) (*app.Application, io.Closer, error) {
	logger, logCloser := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	application, err := app.New(app.Options{Config: cfg, Logger: &logger})
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}
	return application, appCloser{app: application, log: logCloser, logger: logger}, nil
}

type appCloser struct {
	app    *app.Application
	log    io.Closer
	logger zerolog.Logger
}

func (c appCloser) Close() error {
	err := c.app.Close(context.Background())
	if err != nil {
		c.logger.Warn().Err(err).Msg("shutdown")
	}
	return errors.Join(err, c.log.Close())
}
