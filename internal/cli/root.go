// Package cli provides the dbmap command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/koustreak/dbmap/internal/config"
	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/logger"
	"github.com/spf13/cobra"

	// Dialects register themselves in init().
	_ "github.com/koustreak/dbmap/internal/database/mssql"
	_ "github.com/koustreak/dbmap/internal/database/mysql"
	_ "github.com/koustreak/dbmap/internal/database/postgres"
	_ "github.com/koustreak/dbmap/internal/database/sqlite"
)

// Version is set at build time.
var Version = "dev"

type envKey struct{}

// env is what every subcommand receives after flags and config are resolved.
type env struct {
	cfg *config.Config
	log *logger.Logger
}

func envFrom(cmd *cobra.Command) *env {
	e, _ := cmd.Context().Value(envKey{}).(*env)
	return e
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile  string
		logLevel string
	)

	root := &cobra.Command{
		Use:   "dbmap",
		Short: "Map database servers into one schema model",
		Long: `dbmap connects to MySQL, SQL Server, Postgres and SQLite servers,
introspects their catalogs and exposes the result as a unified
server > schema > table > column tree.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}

			lc := cfg.Log.Logger()
			lc.Output = cmd.ErrOrStderr()
			e := &env{cfg: cfg, log: logger.New(lc)}

			ctx := context.WithValue(cmd.Context(), envKey{}, e)
			cmd.SetContext(e.log.WithContext(ctx))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "dbmap.yaml", "config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug|info|warn|error)")

	root.AddCommand(
		newMapCommand(),
		newQueryCommand(),
		newServeCommand(),
		newSnapshotCommand(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errs.IsInvalidInput(err) {
			return 2
		}
		return 1
	}
	return 0
}
