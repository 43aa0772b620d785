// Command tfsctl runs maintenance tasks against the rental database: catalog
// seeding, email queue processing and account management.
package main

import (
	"context"
	"fmt"
	"os"

	"tfsrentals/internal/bootstrap"
	"tfsrentals/internal/config"
	"tfsrentals/internal/http/handlers"
	applog "tfsrentals/internal/log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "tfsctl",
	Short:         "Maintenance tasks for the TFS rental backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(seedCmd, emailsCmd, usersCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env opens the database and services from the process configuration.
func env(ctx context.Context) (*sqlx.DB, *handlers.Deps, func(), error) {
	cfg := config.Load()
	lg, err := applog.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, nil, err
	}
	db, deps, err := bootstrap.Open(ctx, cfg, lg)
	if err != nil {
		return nil, nil, nil, err
	}
	done := func() {
		_ = db.Close()
		_ = lg.Sync()
	}
	return db, deps, done, nil
}

func logger() *zap.Logger { return applog.Named("tfsctl") }
