package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/app"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/config"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func realMain() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

// env holds what every subcommand needs. It is filled by the root
// PersistentPreRunE.
type env struct {
	cfg    *config.Config
	logger *logger.ZapLogger
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "tileengine",
		Short:         "Tile lifecycle engine: fetches, caches, fades and evicts map tiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if backend, _ := cmd.Flags().GetString("cache-backend"); backend != "" {
				cfg.Cache.Backend = backend
			}
			e.cfg = cfg
			e.logger = logger.NewZapLogger(cfg.Logger)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	root.PersistentFlags().String("cache-backend", "", "override CACHE_BACKEND (filesystem, sqlite, redis, memory)")

	root.AddCommand(newServeCmd(e), newCacheCmd(e))
	return root
}

func newServeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine loop and its HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), e.cfg, e.logger)
		},
	}
}

func newCacheCmd(e *env) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the disk tile cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Delete cached tiles that do not decode as images",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, closeCache, err := app.NewTileCache(e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer closeCache()

			removed, err := c.RemoveInvalid(cmd.Context())
			if err != nil {
				return fmt.Errorf("cache scan failed: %w", err)
			}
			e.logger.Info("removed invalid cached tiles", "count", removed)
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached tile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, closeCache, err := app.NewTileCache(e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer closeCache()

			removed, err := c.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("cache clear failed: %w", err)
			}
			e.logger.Info("tile cache cleared", "removed", removed)
			return nil
		},
	})

	return cacheCmd
}
