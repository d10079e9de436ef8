// Command sessionctl inspects and ends the session held in the gateway's persistent store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/app"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/config"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Inspect or end the gateway session stored in the persistent store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		lvl, _ := cmd.Flags().GetString("log-level")
		logger.Init(lvl)
	}

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logoutCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openBackends loads the gateway configuration and connects the same stores it uses.
func openBackends(ctx context.Context) (*app.Backends, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	rdb := app.ConnectRedis(ctx, cfg.Redis)
	b, err := app.Open(ctx, cfg, rdb)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}
	return b, nil
}
