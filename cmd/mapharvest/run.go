package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/mapharvest/internal/config"
	"github.com/nao1215/mapharvest/internal/database"
	"github.com/nao1215/mapharvest/internal/driver"
	"github.com/nao1215/mapharvest/internal/driver/roddriver"
	"github.com/nao1215/mapharvest/internal/export"
	"github.com/nao1215/mapharvest/internal/log"
	"github.com/nao1215/mapharvest/internal/model"
	"github.com/nao1215/mapharvest/internal/pipeline"
	"github.com/nao1215/mapharvest/internal/prompt"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run map searches and export the results",
		Long: `Run opens a browser, performs each search, scrolls the results panel until
enough listings are loaded, and extracts the details of every listing.

Searches come from, in order of precedence:
  1. --task flags
  2. the interactive prompt (--interactive)
  3. the tasks section of the configuration file
  4. the built-in demo searches

A task is written as "query|location|count". Location and count may be
omitted and default to --location and --count. The same defaults fill
configuration file tasks that leave them out.

Press Ctrl+C to stop early. The results collected so far are still
exported and stored in the history database.

Examples:
  # Run the demo searches
  mapharvest run

  # Run one search for 20 bakeries in Springfield
  mapharvest run --task "bakery|Springfield|20"

  # Several searches, also writing a Markdown summary
  mapharvest run -t "dentist|Haifa" -t "florist||10" -f csv,json,markdown

  # Ask for searches on the terminal
  mapharvest run --interactive

  # Show the browser window and write into ./out
  mapharvest run --headless=false -o out`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	// Task flags
	cmd.Flags().StringArrayP("task", "t", nil,
		`Search to run as "query|location|count" (repeatable)`)
	cmd.Flags().BoolP("interactive", "i", false,
		"Ask for searches on the terminal")
	cmd.Flags().String("location", config.DefaultLocation,
		"Location for tasks that do not name one")
	cmd.Flags().Int("count", model.DefaultTargetCount,
		"Result count for tasks that do not name one")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .mapharvest in the current directory, config.yaml in the XDG config directory, or .mapharvest in the home directory)")

	// Browser flags
	cmd.Flags().Bool("headless", true, "Run the browser without a window")
	cmd.Flags().Bool("no-sandbox", true, "Disable the browser sandbox")
	cmd.Flags().String("browser-bin", "", "Browser executable (default: auto-detect)")

	// Pagination and pacing flags
	cmd.Flags().Int("max-stable-rounds", 0,
		"Scrolls without new listings before a search stops loading (default 20)")
	cmd.Flags().Int("max-scroll-rounds", 0,
		"Maximum scrolls per search (0: no limit)")
	cmd.Flags().Duration("scroll-pause", 0,
		"Pause after each scroll of the results panel (default 2s)")
	cmd.Flags().Duration("task-delay", 0,
		"Pause between two searches (default 5s)")
	cmd.Flags().Bool("snapshot", false,
		"Read listing details from one HTML snapshot instead of live queries")

	// Output flags
	cmd.Flags().StringP("output-dir", "o", "",
		"Directory for export files (default: current directory)")
	cmd.Flags().StringSliceP("format", "f", nil,
		"Export formats: csv, json, markdown (default: csv,json)")
	cmd.Flags().String("csv-file", "", "CSV file path instead of a generated name")
	cmd.Flags().String("json-file", "", "JSON file path instead of a generated name")

	// History and logging flags
	cmd.Flags().Bool("no-db", false, "Do not store the run in the history database")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data dir)")
	cmd.Flags().String("log-format", config.LogFormatText, "Log format: text or json")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	logger := log.New(cmd.ErrOrStderr(), cfg.LogFormat, cfg.Verbose)
	slog.SetDefault(logger)

	out := cmd.OutOrStdout()
	if err := resolveTasks(cmd, cfg); err != nil {
		if errors.Is(err, prompt.ErrExit) {
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runHarvest(ctx, cfg, openBrowser, out, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags the user set, in that order.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path that does not exist is an error; a missing default
	// file is not.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	cfg.Verbose = getVerboseFlag(cmd)

	if flags.Changed("location") {
		if cfg.DefaultLocation, err = flags.GetString("location"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("count") {
		if cfg.DefaultCount, err = flags.GetInt("count"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("headless") {
		if cfg.Headless, err = flags.GetBool("headless"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("no-sandbox") {
		if cfg.NoSandbox, err = flags.GetBool("no-sandbox"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("browser-bin") {
		if cfg.BrowserBin, err = flags.GetString("browser-bin"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-stable-rounds") {
		if cfg.MaxStableRounds, err = flags.GetInt("max-stable-rounds"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-scroll-rounds") {
		if cfg.MaxScrollRounds, err = flags.GetInt("max-scroll-rounds"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("scroll-pause") {
		if cfg.ScrollPause, err = flags.GetDuration("scroll-pause"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("task-delay") {
		if cfg.TaskDelay, err = flags.GetDuration("task-delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("snapshot") {
		if cfg.Snapshot, err = flags.GetBool("snapshot"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("format") {
		if cfg.Formats, err = flags.GetStringSlice("format"); err != nil {
			return nil, err
		}
	}
	if cfg.CSVFile, err = flags.GetString("csv-file"); err != nil {
		return nil, err
	}
	if cfg.JSONFile, err = flags.GetString("json-file"); err != nil {
		return nil, err
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if flags.Changed("log-format") {
		if cfg.LogFormat, err = flags.GetString("log-format"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// resolveTasks fills cfg.Tasks from --task, the interactive prompt, the
// configuration file or the demo list, in that order of precedence.
func resolveTasks(cmd *cobra.Command, cfg *config.Config) error {
	specs, err := cmd.Flags().GetStringArray("task")
	if err != nil {
		return err
	}
	if len(specs) > 0 {
		tasks := make([]model.SearchTask, 0, len(specs))
		for _, arg := range specs {
			task, err := model.ParseSearchTask(arg, cfg.DefaultLocation, cfg.DefaultCount)
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		cfg.Tasks = tasks
		return nil
	}

	interactive, err := cmd.Flags().GetBool("interactive")
	if err != nil {
		return err
	}
	if interactive {
		p := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout(),
			prompt.WithDefaultLocation(cfg.DefaultLocation),
			prompt.WithDefaultCount(cfg.DefaultCount),
		)
		tasks, err := p.Tasks()
		if err != nil {
			return err
		}
		cfg.Tasks = tasks
		return nil
	}

	if len(cfg.Tasks) == 0 {
		cfg.Tasks = model.DemoTasks()
		return nil
	}
	cfg.FillTaskDefaults()
	return nil
}

// sessionOpener starts the browser session a run drives.
type sessionOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driver.Session, error)

// openBrowser launches a rod-controlled browser configured from cfg.
func openBrowser(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driver.Session, error) {
	s, err := roddriver.Open(ctx, roddriver.Options{
		Headless:     cfg.Headless,
		NoSandbox:    cfg.NoSandbox,
		BrowserBin:   cfg.BrowserBin,
		WindowWidth:  cfg.WindowWidth,
		WindowHeight: cfg.WindowHeight,
		UserAgent:    cfg.UserAgent,
		ProfileDir:   cfg.ProfileDir,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// runHarvest runs every task of cfg through one browser session, exports
// the aggregate and stores the run in the history database.
//
// An interrupted run still exports and stores what was collected before
// the interruption; it is not reported as an error.
func runHarvest(ctx context.Context, cfg *config.Config, open sessionOpener, out io.Writer, logger *slog.Logger) error {
	logger.Info("starting run",
		"tasks", len(cfg.Tasks),
		"headless", cfg.Headless,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.RunDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	fmt.Fprintln(out, "Starting browser...")
	session, err := open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	onRecord := func(r model.BusinessRecord) {
		fmt.Fprintf(out, "  %d. %s - %s\n", r.Index, r.Name, orNA(r.Phone))
	}
	p := pipeline.DefaultPipeline(session, cfg, onRecord, pipeline.WithLogger(logger))
	logger.Debug("pipeline ready", "steps", strings.Join(p.StepNames(), ","))
	runner := pipeline.NewRunner(p,
		pipeline.WithRunnerLogger(logger),
		pipeline.WithTaskDelay(cfg.TaskDelay),
		pipeline.WithTaskStartFunc(func(task model.SearchTask, index, total int) {
			fmt.Fprintf(out, "\n[%d/%d] Searching: %s (up to %d results)\n",
				index+1, total, task, task.TargetCount)
		}),
		pipeline.WithTaskFunc(func(run *pipeline.TaskRun, _ int) {
			printTaskSummary(out, run)
		}),
	)

	started := time.Now()
	records, runErr := runner.RunAll(ctx, cfg.Tasks)
	finished := time.Now()

	interrupted := runErr != nil
	if interrupted {
		fmt.Fprintf(out, "\nInterrupted. Saving %d collected results...\n", len(records))
	}

	// The run context may be cancelled already; flushing must still happen.
	flushCtx := context.WithoutCancel(ctx)

	if db != nil {
		run := &database.Run{
			Started:     started,
			Finished:    finished,
			Tasks:       cfg.Tasks,
			Interrupted: interrupted,
		}
		if id, err := db.SaveRun(flushCtx, run, records); err != nil {
			logger.Error("failed to store run", "error", err)
		} else {
			logger.Debug("run stored", "id", id)
		}
	}

	paths, err := exportRecords(flushCtx, cfg, records, logger)
	for _, path := range paths {
		fmt.Fprintf(out, "Saved %s\n", path)
	}
	if err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "\nNo results found.")
		return nil
	}
	fmt.Fprintf(out, "\nTotal results: %d\n", len(records))
	return nil
}

// exportRecords writes records in every format of cfg.
func exportRecords(ctx context.Context, cfg *config.Config, records []model.BusinessRecord, logger *slog.Logger) ([]string, error) {
	formats, err := export.ParseFormats(cfg.Formats)
	if err != nil {
		return nil, err
	}
	e := export.NewExporter(cfg.OutputDir, cfg.FilePrefix, formats,
		export.WithFileName(export.FormatCSV, cfg.CSVFile),
		export.WithFileName(export.FormatJSON, cfg.JSONFile),
		export.WithLogger(logger),
	)
	return e.Export(ctx, records)
}

// printTaskSummary prints the outcome of one task.
func printTaskSummary(out io.Writer, run *pipeline.TaskRun) {
	switch {
	case run.Interrupted:
		fmt.Fprintf(out, "Stopped %s after %d results\n", run.Task, len(run.Records))
	case run.Err != nil:
		fmt.Fprintf(out, "Search %s failed: %v\n", run.Task, run.Err)
	default:
		line := fmt.Sprintf("Found %d results for %s", len(run.Records), run.Task)
		if run.Skipped > 0 {
			line += fmt.Sprintf(" (%d skipped)", run.Skipped)
		}
		fmt.Fprintln(out, line)
	}
}

// orNA returns s, or "N/A" when s is blank.
func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
