package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/skycrawler/internal/compose"
	"github.com/TobiSchelling/skycrawler/internal/config"
	"github.com/TobiSchelling/skycrawler/internal/database"
	"github.com/TobiSchelling/skycrawler/internal/events"
	"github.com/TobiSchelling/skycrawler/internal/logging"
	"github.com/TobiSchelling/skycrawler/internal/pipeline"
	"github.com/TobiSchelling/skycrawler/internal/rank"
	"github.com/TobiSchelling/skycrawler/internal/schedule"
	"github.com/TobiSchelling/skycrawler/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "skycrawler",
	Short:   "Ranked satellite passes and flares from heavens-above.com",
	Long:    "skycrawler scrapes satellite pass and flare predictions, enriches them with their detail pages, and ranks them by how worthwhile they are to watch.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(); err != nil {
			return err
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			logger = logging.New("info")
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

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger = logging.New(level)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("skycrawler", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/skycrawler/",
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
		fmt.Println("Edit it to set your observer location and the satellites to track.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
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

		fmt.Printf("Today: %s\n", database.GetToday())
		fmt.Printf("Observer: %s (%.4f, %.4f)\n\n", cfg.Observer.Place, cfg.Observer.Latitude, cfg.Observer.Longitude)

		t := newTable()
		t.AppendHeader(table.Row{"Metric", "Value"})
		t.AppendRows([]table.Row{
			{"Runs", stats.Runs},
			{"Successful runs", stats.SuccessfulRuns},
			{"Events stored", stats.Events},
			{"Categories", stats.Categories},
			{"Charts saved", stats.ImagesSaved},
			{"Reports", stats.Reports},
		})
		t.Render()

		latest, err := db.GetLatestRun()
		if err != nil {
			return err
		}
		if latest != nil {
			fmt.Printf("\nLatest run: #%d, %s, %s\n", latest.ID, database.FormatRunDisplay(latest.StartedAt), latest.Status)
		}
		return nil
	},
}

// --- collect command ---

var collectPages int

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect and enrich events without ranking or storing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signalContext()
		defer stop()

		cats, err := pipeline.New(cfg, db, logger).Collect(ctx, pipeline.Options{Pages: collectPages})

		t := newTable()
		t.AppendHeader(table.Row{"Category", "Pages", "Events", "Enriched", "Summary only", "Charts", "Stopped"})
		for _, c := range cats {
			res := c.Collect
			stopped := ""
			if c.Err != nil {
				stopped = c.Err.Error()
			}
			t.AppendRow(table.Row{c.Type.Category, res.Pages, len(res.Records), res.Enriched, res.DetailFailures, res.ImagesSaved, stopped})
		}
		t.Render()
		fmt.Printf("\nArtifacts in %s\n", cfg.ArtifactDir())
		return err
	},
}

func init() {
	collectCmd.Flags().IntVar(&collectPages, "pages", 0, "Override the number of list pages per category")
}

// --- run command ---

var (
	dryRun     bool
	runPages   int
	resumeFrom int64
	keepRuns   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> rank -> persist -> publish -> compose",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signalContext()
		defer stop()

		pipe := pipeline.New(cfg, db, logger)
		opts := pipeline.Options{Pages: runPages, ResumeFrom: resumeFrom}

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(opts)
		} else {
			result = pipe.Run(ctx, opts)
		}
		printSteps(result)

		if dryRun {
			return nil
		}
		if keepRuns > 0 {
			if n, err := db.PruneRuns(keepRuns); err != nil {
				logger.Warn("pruning runs", "error", err)
			} else if n > 0 {
				fmt.Printf("\nPruned %d old run(s).\n", n)
			}
		}
		if result.Status == database.StatusFailed {
			return fmt.Errorf("run %d failed", result.RunID)
		}
		fmt.Printf("\nRun %d finished (%s). Run 'skycrawler serve' to browse it.\n", result.RunID, result.Status)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().IntVar(&runPages, "pages", 0, "Override the number of list pages per category")
	runCmd.Flags().Int64Var(&resumeFrom, "resume", 0, "Continue the pagination of an earlier run for --pages more pages")
	runCmd.Flags().IntVar(&keepRuns, "keep", 0, "Delete all but the newest N runs afterwards")
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
}

// --- rank command ---

var rankTop int

var rankCmd = &cobra.Command{
	Use:   "rank [run-id]",
	Short: "Re-rank the events of a stored run and print the best ones",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := resolveRun(db, args)
		if err != nil {
			return err
		}

		categories, err := db.GetCategories(run.ID)
		if err != nil {
			return err
		}
		for _, cat := range categories {
			stored, err := db.GetRankedForRun(run.ID, cat)
			if err != nil {
				return err
			}
			records := make([]events.Record, len(stored))
			for i, r := range stored {
				records[i] = r.Record
			}
			kind := kindOf(cat)
			ranked := rank.Rank(records, kind, rank.For(kind))

			fmt.Printf("\n%s (run %d)\n", compose.Title(cat), run.ID)
			t := newTable()
			t.AppendHeader(table.Row{"#", "When", "Magnitude", "Peak", "Score"})
			for i, r := range ranked {
				if i == rankTop {
					break
				}
				t.AppendRow(table.Row{i + 1, compose.When(r), r.Field("brightness"), compose.Peak(r), r.Score})
			}
			t.AppendFooter(table.Row{"", "", "", "Total", len(ranked)})
			t.Render()
		}
		return nil
	},
}

func init() {
	rankCmd.Flags().IntVarP(&rankTop, "top", "n", 10, "Events to show per category")
}

func resolveRun(db *database.DB, args []string) (*database.Run, error) {
	if len(args) == 0 {
		run, err := db.GetLatestRun()
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("no finished runs yet; try 'skycrawler run'")
		}
		return run, nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid run ID: %s", args[0])
	}
	run, err := db.GetRun(id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %d not found", id)
	}
	return run, nil
}

func kindOf(category string) events.Kind {
	if category == events.Flares().Category {
		return events.KindFlare
	}
	return events.KindSatellite
}

// --- watch command ---

var (
	watchCron string
	watchNow  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := cfg.Schedule.Cron
		if watchCron != "" {
			spec = watchCron
		}
		sched, err := schedule.New(spec, time.Local, logger)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signalContext()
		defer stop()

		pipe := pipeline.New(cfg, db, logger)
		job := func(ctx context.Context) {
			result := pipe.Run(ctx, pipeline.Options{})
			logger.Info("scheduled run finished", "run", result.RunID, "status", result.Status)
		}

		if watchNow {
			job(ctx)
		}
		fmt.Printf("Watching on %q, next run at %s. Press Ctrl+C to stop.\n", spec, sched.Next(time.Now()).Format(time.RFC1123))
		return sched.Run(ctx, job)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchCron, "cron", "", "Override the configured cron expression")
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Run once immediately before waiting for the schedule")
}

// --- serve command ---

var (
	servePort int
	publicURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port, server.Options{
			ArtifactDir: cfg.ArtifactDir(),
			PublicURL:   publicURL,
			Logger:      logger,
		})
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
	serveCmd.Flags().StringVar(&publicURL, "public-url", "", "Base URL used for links in the RSS feed")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.OpenWithLogger(cfg.DatabasePath(), logger)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
