package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/TobiSchelling/threadscout/internal/config"
	"github.com/TobiSchelling/threadscout/internal/database"
	"github.com/TobiSchelling/threadscout/internal/pipeline"
	"github.com/TobiSchelling/threadscout/internal/report"
	"github.com/TobiSchelling/threadscout/internal/server"
	"github.com/TobiSchelling/threadscout/internal/tabular"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "threadscout",
	Short:   "Find Reddit threads worth joining",
	Long:    "threadscout resolves cited Reddit threads, enriches them with activity statistics, and scores each one as a hijack or alternative opportunity.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Credentials may live in a local .env file.
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pruneCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("threadscout", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/threadscout/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the input file, then export REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET.")
		return nil
	},
}

// --- run command ---

var (
	debug     bool
	inputPath string
	outputDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: resolve -> enrich -> assess",
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputPath != "" {
			cfg.Input = inputPath
		}
		if outputDir != "" {
			cfg.Output.Dir = outputDir
		}
		if cfg.Input == "" {
			return fmt.Errorf("no input file: set input in the config or pass --input")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		deps, err := pipeline.NewDeps(ctx, cfg, db)
		if err != nil {
			return err
		}

		result := pipeline.New(cfg, db, deps).Run(ctx, debug)
		printSteps(result)
		if err := result.Err(); err != nil {
			return err
		}
		fmt.Printf("\nPipeline complete! Opportunities written to %s\n", cfg.OutputPath(tabular.OpportunitiesFile))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&debug, "debug", false, "Process only the first debug_limit input rows")
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Override the input CSV")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Override the output directory")
	assessCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Override the output directory")
}

// --- assess command ---

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Re-score existing thread tables without resolving or enriching",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputDir != "" {
			cfg.Output.Dir = outputDir
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		deps, err := pipeline.NewDeps(ctx, cfg, db)
		if err != nil {
			return err
		}

		result := pipeline.New(cfg, db, deps).Assess(ctx)
		printSteps(result)
		return result.Err()
	},
}

func printSteps(result *pipeline.Result) {
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
	if result.RunID != "" {
		fmt.Printf("\nRun ID: %s\n", result.RunID)
	}
}

// --- status command ---

var recentRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run history and cache status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("History:")
		fmt.Printf("  Runs: %d\n", stats.Runs)
		fmt.Printf("  Opportunities: %d\n", stats.Opportunities)
		fmt.Printf("  Hijack: %d\n", stats.Hijack)
		fmt.Printf("  Cached baselines: %d\n", stats.Baselines)

		runs, err := db.GetRecentRuns(recentRuns)
		if err != nil {
			return fmt.Errorf("getting runs: %w", err)
		}
		if len(runs) == 0 {
			return nil
		}

		fmt.Println("\nRecent runs:")
		for _, r := range runs {
			state := "ok"
			switch {
			case r.FinishedAt.IsZero():
				state = "unfinished"
			case r.Error != "":
				state = "failed: " + r.Error
			}
			fmt.Printf("  %s  %s  %d rows, %d resolved, %d hijack, %d alternative  [%s]\n",
				r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Counts.InputRows,
				r.Counts.Resolved, r.Counts.Hijack, r.Counts.Alternative, state)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVarP(&recentRuns, "runs", "n", 5, "Number of recent runs to list")
}

// --- show command ---

var showCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print the opportunity report for a run (latest by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var runID string
		if len(args) == 1 {
			runID = args[0]
		} else {
			runs, err := db.GetRecentRuns(1)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded yet. Start one with: threadscout run")
				return nil
			}
			runID = runs[0].ID
		}

		run, err := db.GetRun(runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", runID)
		}

		opps, err := db.GetOpportunities(runID)
		if err != nil {
			return err
		}
		fmt.Print(report.Markdown(run, opps))
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server for browsing runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Starting server at http://localhost:%d\n", servePort)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- prune command ---

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop cached community baselines older than the configured TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.PruneBaselines(time.Now().Add(-cfg.Baseline.TTL))
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cached baseline(s)\n", n)
		return nil
	},
}

func openDB() (*database.DB, error) {
	return database.Open(filepath.Join(cfg.GetDataDir(), database.FileName))
}
