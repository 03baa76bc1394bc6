package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shakram02/go-sql-console/internal/config"
	"github.com/shakram02/go-sql-console/internal/dbadapter"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile  string
		dbType   string
		readOnly bool
		maxRows  int
		timeout  time.Duration
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "sql-console [dsn]",
		Short: "MCP server for inspecting and editing a SQL database over stdio",
		Long: `sql-console speaks MCP (JSON-RPC 2.0) on stdin/stdout and exposes a
PostgreSQL, MySQL or SQLite database as tools: guarded queries, table browsing
with keyset paging, journaled single-row edits with undo, and a statement
history. It starts read-only unless MCP_READ_ONLY=false or --read-only=false.

Without a DSN argument the connection is built from MCP_PG_*, MCP_MYSQL_* or
MCP_SQLITE_PATH, depending on the database type.`,
		Example: `  MCP_DB_TYPE=sqlite MCP_SQLITE_PATH=./app.db sql-console
  sql-console --db-type mysql 'user:password@tcp(localhost:3306)/dbname'`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("db-type") {
				cfg.DBType = dbType
			}
			if flags.Changed("read-only") {
				cfg.ReadOnly = readOnly
			}
			if flags.Changed("max-rows") {
				cfg.MaxRows = maxRows
			}
			if flags.Changed("query-timeout") {
				cfg.QueryTimeout = timeout
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			for _, w := range cfg.Warnings {
				logger.Warn(w)
			}

			var dsn string
			if len(args) == 1 {
				dsn = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, dsn, logger, os.Stdin, os.Stdout)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "read variables from this file when present")
	flags.StringVar(&dbType, "db-type", config.DefaultDBType, "database type: postgres, mysql or sqlite")
	flags.BoolVar(&readOnly, "read-only", true, "refuse writes and open a read-only session")
	flags.IntVar(&maxRows, "max-rows", config.DefaultMaxRows, "rows returned per query before truncation")
	flags.DurationVar(&timeout, "query-timeout", config.DefaultQueryTimeout, "per-statement timeout")
	flags.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	return cmd
}

// run connects and serves until in is exhausted or ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, dsn string, logger *slog.Logger, in io.Reader, out io.Writer) error {
	adapter, err := dbadapter.New(cfg.DBType)
	if err != nil {
		return err
	}

	if dsn == "" {
		if dsn, err = adapter.BuildDSN(cfg.ReadOnly); err != nil {
			return fmt.Errorf("build %s DSN: %w", adapter.Name(), err)
		}
	} else if cfg.ReadOnly {
		logger.Warn("DSN given on the command line; read-only mode relies on the session setting only")
	}

	conn, err := dbadapter.Open(ctx, adapter, dsn, dbadapter.Options{
		ReadOnly: cfg.ReadOnly,
		MaxRows:  cfg.MaxRows,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return err
	}

	server := NewMCPServer(ctx, conn, cfg, logger)
	defer server.Close()

	logger.Info("MCP server started",
		"db", adapter.Name(),
		"database", conn.DatabaseName(),
		"read_only", cfg.ReadOnly,
	)

	if err := server.Run(in, out); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("server shutdown gracefully")
			return nil
		}
		logger.Error("server error", "error", err)
		return err
	}
	return nil
}
