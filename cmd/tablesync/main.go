package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lfsantos/tablesync/internal/connector"
	"github.com/lfsantos/tablesync/internal/syncer"
	"github.com/lfsantos/tablesync/internal/utils"
	"github.com/lfsantos/tablesync/pkg/models"
)

// endpointParams collects the connection flags for one side of the sync
type endpointParams struct {
	role      string
	envPrefix string
	dialect   string
	host      string
	user      string
	password  string
	database  string
	port      string
}

func main() {
	var (
		source      = endpointParams{role: "source", envPrefix: "SOURCE_DB"}
		dest        = endpointParams{role: "destination", envPrefix: "DEST_DB"}
		tableList   string
		envFile     string
		logLevel    string
		dryRun      bool
		orderByDeps bool
		verify      bool
	)

	rootCmd := &cobra.Command{
		Use:   "tablesync",
		Short: "A tool to reconcile table contents between two databases",
		Long: `Table Sync

Compares the content of configured tables between a source and a
destination database using content hashes, and upserts the source's
rows into the destination for any table that diverges. Only columns
present on both sides are synced; rows are never deleted.`,
		Run: func(cmd *cobra.Command, args []string) {
			// Setup logging
			logger := utils.SetupLogging(logLevel)

			// Load environment variables
			utils.LoadEnvironmentVariables(envFile, logger)

			// The table list is fatal configuration: without it there
			// is nothing to do, so fail before touching any database.
			if tableList == "" {
				tableList = os.Getenv("SYNC_TABLES")
			}
			tables := utils.ParseTableList(tableList)
			if len(tables) == 0 {
				logger.Error("No tables configured: set SYNC_TABLES or pass --tables")
				os.Exit(1)
			}
			logger.Infof("Tables configured for sync: %v", tables)

			opts := syncer.Options{
				DryRun:      dryRun,
				OrderByDeps: orderByDeps,
				Verify:      verify,
			}

			os.Exit(run(logger, tables, opts, source, dest))
		},
	}

	// Source endpoint flags (env fallback: SOURCE_DB_*)
	rootCmd.Flags().StringVar(&source.host, "source-host", "", "Source database host")
	rootCmd.Flags().StringVar(&source.user, "source-user", "", "Source database user")
	rootCmd.Flags().StringVar(&source.password, "source-password", "", "Source database password")
	rootCmd.Flags().StringVar(&source.database, "source-db", "", "Source database name")
	rootCmd.Flags().StringVar(&source.port, "source-port", "", "Source database port")
	rootCmd.Flags().StringVar(&source.dialect, "source-dialect", "", "Source dialect: postgres or mysql (default: postgres)")

	// Destination endpoint flags (env fallback: DEST_DB_*)
	rootCmd.Flags().StringVar(&dest.host, "dest-host", "", "Destination database host")
	rootCmd.Flags().StringVar(&dest.user, "dest-user", "", "Destination database user")
	rootCmd.Flags().StringVar(&dest.password, "dest-password", "", "Destination database password")
	rootCmd.Flags().StringVar(&dest.database, "dest-db", "", "Destination database name")
	rootCmd.Flags().StringVar(&dest.port, "dest-port", "", "Destination database port")
	rootCmd.Flags().StringVar(&dest.dialect, "dest-dialect", "", "Destination dialect: postgres or mysql (default: postgres)")

	rootCmd.Flags().StringVarP(&tableList, "tables", "t", "", "Comma-separated tables to sync (default: SYNC_TABLES)")
	rootCmd.Flags().StringVarP(&envFile, "env-file", "e", ".env", "Path to .env file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Compare and report only, without writing")
	rootCmd.Flags().BoolVar(&orderByDeps, "order-by-deps", false, "Sync foreign key parents before children")
	rootCmd.Flags().BoolVarP(&verify, "verify", "v", false, "Re-hash common columns after each synced table")

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// connect builds and opens one endpoint connection
func connect(p endpointParams, logger *logrus.Logger) (*connector.DatabaseConnector, error) {
	db, err := connector.NewDatabaseConnector(p.role, p.envPrefix, p.dialect, p.host, p.user, p.password, p.database, p.port, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid %s configuration: %w", p.role, err)
	}

	if !utils.ValidateConnectionParams(p.role, db.Host, db.User, db.Password, db.Database, db.Port, logger) {
		return nil, fmt.Errorf("incomplete %s configuration", p.role)
	}

	if err := db.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", p.role, err)
	}
	return db, nil
}

// run connects both endpoints, drives the sync, and returns the exit
// code. Disconnects are deferred here so both connections close on
// every exit path.
func run(logger *logrus.Logger, tables []string, opts syncer.Options, sourceParams, destParams endpointParams) int {
	source, err := connect(sourceParams, logger)
	if err != nil {
		logger.Error(err)
		return 1
	}
	defer source.Disconnect()

	dest, err := connect(destParams, logger)
	if err != nil {
		logger.Error(err)
		return 1
	}
	defer dest.Disconnect()

	logger.Info("Starting table sync...")
	results := syncer.NewTableSyncer(source, dest, opts, logger).SyncAll(tables)

	utils.PrintSummary(results)

	for _, res := range results {
		if res.Status == models.StatusFailed {
			return 1
		}
	}
	return 0
}
