package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	log        *logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Browse and manage campus marketplace listings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if c.configPath != "" {
				c.cfg, err = config.LoadFrom(c.configPath)
			} else {
				c.cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			c.log = logger.NewStderr(&logger.LoggerConfig{Level: c.logLevel, Format: "console"})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: $CONFIG_PATH or config.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.browseCmd(),
		c.favoriteCmd(),
		c.favoritesCmd(),
		c.createCmd(),
		c.editCmd(),
		c.deleteCmd(),
		c.pendingCmd(),
		c.retryCmd(),
		c.discardCmd(),
		c.watchCmd(),
		c.taxonomyCmd(),
	)
	return root
}

// run opens the engine around fn and closes it afterwards, waiting for mutations fn
// started.
func (c *cli) run(fn func(ctx context.Context, e *engine, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		e, err := openEngine(ctx, c.cfg, c.log)
		if err != nil {
			return fmt.Errorf("open local state: %w", err)
		}
		runErr := fn(ctx, e, cmd.OutOrStdout(), args)
		if err := e.close(); err != nil && runErr == nil {
			runErr = err
		}
		_ = c.log.Sync()
		return runErr
	}
}
