package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/mapharvest/internal/config"
	"github.com/nao1215/mapharvest/internal/database"
	"github.com/nao1215/mapharvest/internal/export"
	"github.com/nao1215/mapharvest/internal/model"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// It lists stored runs and re-exports the records of one run.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs or export the records of one run",
		Long: `History reads the run database written by 'mapharvest run'.

Without --run it lists the most recent runs. With --run it writes the
records of that run to stdout or to --output in the chosen format.
With --import it stores the records of a CSV or JSON export as a new run.

Examples:
  # List the 20 most recent runs
  mapharvest history

  # List every run
  mapharvest history --limit 0

  # Print the records of run 3 as JSON
  mapharvest history --run 3

  # Write run 3 as CSV
  mapharvest history --run 3 -f csv -o run3.csv

  # Delete run 3
  mapharvest history --delete 3

  # Store an earlier export as a new run
  mapharvest history --import results/google_maps_results_20250601_093000.json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("run", "r", 0, "Run ID whose records are exported")
	cmd.Flags().StringP("format", "f", string(export.FormatJSON),
		"Export format for --run: csv, json or markdown")
	cmd.Flags().StringP("output", "o", "", "Write --run records to this file instead of stdout")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Number of runs to list (0: all)")
	cmd.Flags().Int64("delete", 0, "Delete the run with this ID")
	cmd.Flags().String("import", "", "Store the records of a CSV or JSON export as a new run")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data dir)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	runID, err := flags.GetInt64("run")
	if err != nil {
		return err
	}
	deleteID, err := flags.GetInt64("delete")
	if err != nil {
		return err
	}
	importPath, err := flags.GetString("import")
	if err != nil {
		return err
	}
	if countSet(runID != 0, deleteID != 0, importPath != "") > 1 {
		return errors.New("--run, --delete and --import cannot be used together")
	}

	// Validate before opening the database so a bad flag never locks it.
	formatName, err := flags.GetString("format")
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	if limit < 0 {
		return errors.New("--limit must not be negative")
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	var imported []model.BusinessRecord
	if importPath != "" {
		if imported, err = readExport(importPath); err != nil {
			return err
		}
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = importPath != ""
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch {
	case importPath != "":
		return importRun(ctx, db, importPath, imported, out)
	case deleteID != 0:
		return deleteRun(ctx, db, deleteID, out)
	case runID != 0:
		output, err := flags.GetString("output")
		if err != nil {
			return err
		}
		return exportRun(ctx, db, runID, format, output, out)
	default:
		return listRuns(ctx, db, limit, out)
	}
}

// listRuns prints the most recent runs as a table.
func listRuns(ctx context.Context, db *database.RunDB, limit int, out io.Writer) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'mapharvest run' to collect results.")
		return nil
	}

	distinct, err := db.CountDistinctBusinesses(ctx)
	if err != nil {
		return fmt.Errorf("failed to count businesses: %w", err)
	}

	fmt.Fprintf(out, "Runs (%d shown, %d distinct businesses stored):\n\n", len(runs), distinct)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tStarted\tDuration\tRecords\tStatus\tSearches")
	for _, r := range runs {
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%d\t%s\t%s\n",
			r.ID,
			r.Started.Local().Format("2006-01-02 15:04:05"),
			r.Finished.Sub(r.Started).Round(time.Second),
			r.RecordCount,
			runStatus(r),
			searchList(r.Tasks),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nUse 'mapharvest history --run <id>' to export the records of a run.")
	return nil
}

// exportRun writes the records of run id in format to path, or to out when
// path is empty.
func exportRun(ctx context.Context, db *database.RunDB, id int64, format export.Format, path string, out io.Writer) (err error) {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read run %d: %w", id, err)
	}
	if run == nil {
		return fmt.Errorf("run %d not found (use 'mapharvest history' to list runs)", id)
	}

	records, err := db.GetRunRecords(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read records of run %d: %w", id, err)
	}

	dst := out
	if path != "" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		}
		var f *os.File
		f, err = os.Create(path) //nolint:gosec // Output path is chosen by the user
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		dst = f
	}

	w, err := export.NewWriter(format, dst, run.Finished)
	if err != nil {
		return err
	}
	if _, err := w.Write(records); err != nil && !errors.Is(err, export.ErrNoRecords) {
		return fmt.Errorf("failed to write records: %w", err)
	}

	if path != "" {
		fmt.Fprintf(out, "Wrote %d records of run %d to %s\n", len(records), id, path)
	}
	return nil
}

// deleteRun removes run id and its records.
func deleteRun(ctx context.Context, db *database.RunDB, id int64, out io.Writer) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read run %d: %w", id, err)
	}
	if run == nil {
		return fmt.Errorf("run %d not found", id)
	}
	if err := db.DeleteRun(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted run %d (%d records)\n", id, run.RecordCount)
	return nil
}

// readExport parses a CSV or JSON file written by the exporter. The format
// is taken from the file extension.
func readExport(path string) ([]model.BusinessRecord, error) {
	format, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err == nil && format == export.FormatMarkdown {
		err = errors.New("markdown exports cannot be read back")
	}
	if err != nil {
		return nil, fmt.Errorf("cannot import %s: %w", path, err)
	}

	data, err := os.ReadFile(path) //nolint:gosec // Import path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var records []model.BusinessRecord
	if format == export.FormatCSV {
		records, err = export.ReadCSV(data)
	} else {
		records, err = export.ReadJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, export.ErrNoRecords)
	}
	return records, nil
}

// importRun stores records as a new run. The run spans the extraction times
// of its records and has one task per distinct search, in first-seen order.
func importRun(ctx context.Context, db *database.RunDB, path string, records []model.BusinessRecord, out io.Writer) error {
	run := &database.Run{
		Started:  records[0].ExtractedAt,
		Finished: records[0].ExtractedAt,
	}
	counts := make(map[model.SearchTask]int)
	for _, r := range records {
		if r.ExtractedAt.Before(run.Started) {
			run.Started = r.ExtractedAt
		}
		if r.ExtractedAt.After(run.Finished) {
			run.Finished = r.ExtractedAt
		}
		key := model.SearchTask{Query: r.SearchQuery, Location: r.SearchLocation}
		if counts[key] == 0 {
			run.Tasks = append(run.Tasks, key)
		}
		counts[key]++
	}
	for i, task := range run.Tasks {
		run.Tasks[i].TargetCount = counts[task]
	}

	id, err := db.SaveRun(ctx, run, records)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", path, err)
	}
	fmt.Fprintf(out, "Imported %d records from %s as run %d\n", len(records), path, id)
	return nil
}

// countSet returns how many of flags are true.
func countSet(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func runStatus(r database.Run) string {
	if r.Interrupted {
		return "interrupted"
	}
	return "complete"
}

// searchList joins the tasks of a run for display.
func searchList(tasks []model.SearchTask) string {
	parts := make([]string, len(tasks))
	for i, t := range tasks {
		parts[i] = t.String()
	}
	return strings.Join(parts, "; ")
}
