package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbr-consolidate/internal/completeness"
	"github.com/sbr-consolidate/internal/config"
	"github.com/sbr-consolidate/internal/db"
	"github.com/sbr-consolidate/internal/debug"
	"github.com/sbr-consolidate/internal/etl"
	"github.com/sbr-consolidate/internal/pipeline"
	"github.com/sbr-consolidate/internal/store"
	"github.com/sbr-consolidate/internal/web"
)

var (
	// Global state shared by the subcommands
	cfg    *config.Config
	dbConn *db.Connection
	pipe   *pipeline.Pipeline

	localDebug bool
	dbDriver   string
	dbDSN      string
	syncLogger func()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "consolidate",
		Short:         "Business listing consolidation pipeline",
		Long:          `Merges scraped listing shards, removes duplicates, validates names and coordinates and exports the typed final dataset`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			teardown()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&localDebug, "debug", false, "verbose debug output")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "driver", "", "database driver (postgres or sqlite), overrides DB_DRIVER")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "dsn", "", "database connection string, overrides DB_DSN")

	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createMigrateCmd())
	rootCmd.AddCommand(createIngestCmd())
	rootCmd.AddCommand(createCheckCmd())
	rootCmd.AddCommand(createDedupCmd())
	rootCmd.AddCommand(createValidateCmd())
	rootCmd.AddCommand(createFinalizeCmd())
	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createStatsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		teardown()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if dbDriver != "" {
		cfg.DB.Driver = dbDriver
	}
	if dbDSN != "" {
		cfg.DB.DSN = dbDSN
	}
	localDebug = localDebug || cfg.Debug
	if err := cfg.Validate(); err != nil {
		return err
	}

	if syncLogger, err = debug.Init(localDebug); err != nil {
		return err
	}

	dbConn, err = db.NewConnection(ctx, cfg.DB)
	if err != nil {
		return err
	}
	st := store.New(dbConn)
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	pipe = pipeline.New(cfg, st)
	return nil
}

func teardown() {
	if dbConn != nil {
		dbConn.Close()
		dbConn = nil
	}
	if syncLogger != nil {
		syncLogger()
		syncLogger = nil
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// createPingCmd creates a command to test database connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dbConn.DB.PingContext(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Database connection successful (%s)\n", dbConn.Dialect)
			return nil
		},
	}
}

func createMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create pipeline tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			// setup already migrated; this only reports it.
			fmt.Println("Schema is up to date")
			return nil
		},
	}
}

func createIngestCmd() *cobra.Command {
	var dir, runID string
	cmd := &cobra.Command{
		Use:   "ingest [shard.csv...]",
		Short: "Load shards through staging into the raw set",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				summary *etl.Summary
				err     error
			)
			if len(args) > 0 {
				summary, err = pipe.Ingest(cmd.Context(), localDebug, runID, args)
			} else {
				if dir == "" {
					dir = cfg.ShardDir
				}
				summary, err = pipe.IngestDir(cmd.Context(), localDebug, runID, dir)
			}
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "shard directory (default SHARD_DIR)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id recorded with the merged rows")
	return cmd
}

func createCheckCmd() *cobra.Command {
	var queries, dir, out string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the query list with produced shards and list re-scrape tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if queries == "" {
				queries = cfg.QueryList
			}
			if dir == "" {
				dir = cfg.ShardDir
			}
			report, err := pipe.Check(cmd.Context(), localDebug, queries, dir)
			if err != nil {
				return err
			}

			fmt.Printf("Expected: %d  Produced: %d  Missing: %d  Unexpected: %d\n",
				len(report.Expected), len(report.Produced), len(report.Missing), len(report.Unexpected))
			for _, s := range report.Shards {
				if s.Status != completeness.StatusOK {
					fmt.Printf("  %-30s %-10s rows=%d %s\n", s.Name, s.Status, s.Rows, s.Error)
				}
			}

			if out == "" {
				return completeness.WriteTasks(os.Stdout, report.Tasks)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := completeness.WriteTasks(f, report.Tasks); err != nil {
				return err
			}
			fmt.Printf("Wrote %d re-scrape tasks to %s\n", len(report.Tasks), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&queries, "queries", "", "query list CSV (default QUERY_LIST)")
	cmd.Flags().StringVar(&dir, "dir", "", "shard directory (default SHARD_DIR)")
	cmd.Flags().StringVar(&out, "out", "", "task list output file (default stdout)")
	return cmd
}

func createDedupCmd() *cobra.Command {
	var showDuplicates bool
	var limit int
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Rebuild the distinct set from the raw set",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showDuplicates {
				groups, err := pipe.Duplicates(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Duplicate groups: %d\n", len(groups))
				for i, g := range groups {
					if limit > 0 && i >= limit {
						break
					}
					first := g.Rows[0]
					fmt.Printf("  x%d  idsbr=%q name=%q shards=%v\n",
						g.Size(), deref(first.IDSBR), deref(first.Name), g.Shards)
				}
			}

			n, err := pipe.Dedup(cmd.Context(), localDebug)
			if err != nil {
				return err
			}
			fmt.Printf("Distinct records: %d\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDuplicates, "show-duplicates", false, "list duplicate groups before collapsing")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum duplicate groups to list (0 for all)")
	return cmd
}

func createValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Score name similarity and coordinates of every distinct record",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := pipe.Validate(cmd.Context(), localDebug)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func createFinalizeCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Type the validated records and write the exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = cfg.OutputDir
			}
			res, stats, err := pipe.Finalize(cmd.Context(), localDebug, outDir)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"export": res, "fields": stats})
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "export directory (default OUTPUT_DIR)")
	return cmd
}

func createRunCmd() *cobra.Command {
	var opts pipeline.RunOptions
	cmd := &cobra.Command{
		Use:   "run [shard.csv...]",
		Short: "Run check, ingest, dedup, validate and finalize",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Paths = args
			if opts.ShardDir == "" {
				opts.ShardDir = cfg.ShardDir
			}
			if opts.QueryList == "" {
				opts.QueryList = cfg.QueryList
			}
			if opts.OutputDir == "" {
				opts.OutputDir = cfg.OutputDir
			}

			run, err := pipe.Run(cmd.Context(), localDebug, opts)
			if err != nil {
				if run != nil {
					zap.L().Error("run failed", zap.String("run_id", run.ID), zap.Error(err))
				}
				return err
			}
			return printJSON(run)
		},
	}
	cmd.Flags().StringVar(&opts.Label, "label", "", "run label")
	cmd.Flags().StringVar(&opts.ShardDir, "dir", "", "shard directory (default SHARD_DIR)")
	cmd.Flags().StringVar(&opts.QueryList, "queries", "", "query list CSV (default QUERY_LIST)")
	cmd.Flags().StringVar(&opts.OutputDir, "out-dir", "", "export directory (default OUTPUT_DIR)")
	return cmd
}

func createServeCmd() *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the re-scrape task feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			webCfg := cfg.Web
			if host != "" {
				webCfg.Host = host
			}
			if port > 0 {
				webCfg.Port = port
			}
			return web.NewServer(webCfg, pipe.Store()).Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default WEB_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default WEB_PORT)")
	return cmd
}

func createStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show table sizes and the latest run",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := pipe.Store().Counts(cmd.Context())
			if err != nil {
				return err
			}
			latest, err := pipe.Store().LatestRun(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"counts": counts, "latest_run": latest})
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
