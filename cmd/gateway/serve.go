package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goclaw/router/internal/gatewayhttp"
	"github.com/goclaw/router/internal/sessioncache"
)

func serveCmd() *cobra.Command {
	var addr string
	var sqlitePath string
	var sweepExpr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			keys := authKeysFromEnv()
			if len(keys) == 0 {
				return fmt.Errorf("no inbound auth key: set WORKER_AUTH_KEY or WORKER_AUTH_KEYS")
			}

			var cache sessioncache.Cache
			if sqlitePath != "" {
				sq, err := sessioncache.OpenSQLite(sqlitePath)
				if err != nil {
					return fmt.Errorf("opening session cache: %w", err)
				}
				defer sq.Close()
				cache = sq
				sweeper := sessioncache.NewSweeper(sq, sweepExpr, logger)
				go sweeper.Run(cmd.Context())
			} else {
				cache = sessioncache.NewMemory()
			}

			srv := gatewayhttp.NewServer(gatewayhttp.Config{
				Initial:  cfg,
				AuthKeys: keys,
				Cache:    cache,
				Logger:   logger,
				Addr:     addr,
			})

			if cfgFile != "" {
				if err := srv.WatchConfigFile(cmd.Context(), cfgFile, logger); err != nil {
					logger.Warn("config hot-reload disabled", "error", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&sqlitePath, "session-cache-db", "", "path to a SQLite session cache (in-memory if unset)")
	cmd.Flags().StringVar(&sweepExpr, "session-cache-sweep", "0 * * * *", "cron expression for session cache expiry sweeps")
	return cmd
}
