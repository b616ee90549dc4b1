package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/mapharvest/internal/model"
)

// StampLayout is the timestamp inside generated file names.
const StampLayout = "20060102_150405"

// Exporter writes one file per format.
type Exporter struct {
	dir       string
	prefix    string
	formats   []Format
	fileNames map[Format]string
	now       func() time.Time
	logger    *slog.Logger
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithFileName sets an explicit path for format instead of a generated
// name. Relative paths are used as given, not joined with the directory.
func WithFileName(format Format, path string) ExporterOption {
	return func(e *Exporter) {
		if path != "" {
			e.fileNames[format] = path
		}
	}
}

// WithClock sets the time source for generated file names.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		e.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExporterOption {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// NewExporter creates an Exporter writing formats into dir. Generated file
// names are "<prefix>_YYYYMMDD_HHMMSS.<ext>".
func NewExporter(dir, prefix string, formats []Format, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		dir:       dir,
		prefix:    prefix,
		formats:   formats,
		fileNames: make(map[Format]string),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// FileName returns the path format is written to for a run stamped at t.
func (e *Exporter) FileName(format Format, t time.Time) string {
	if name, ok := e.fileNames[format]; ok {
		return name
	}
	return filepath.Join(e.dir, fmt.Sprintf("%s_%s.%s", e.prefix, t.Format(StampLayout), format.Ext()))
}

// Export writes records in every configured format and returns the paths
// written, in format order. The files are written concurrently.
//
// CSV is skipped when records is empty. JSON and Markdown are always
// written so that an empty run still leaves a trace.
func (e *Exporter) Export(ctx context.Context, records []model.BusinessRecord) ([]string, error) {
	stamp := e.now()

	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, len(e.formats))
	eg, ctx := errgroup.WithContext(ctx)
	for i, format := range e.formats {
		if format == FormatCSV && len(records) == 0 {
			e.logger.Warn("no records, skipping csv export")
			continue
		}
		path := e.FileName(format, stamp)
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.writeFile(path, format, records, stamp); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			paths[i] = path
			return nil
		})
	}
	err := eg.Wait()

	written := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			written = append(written, p)
		}
	}
	return written, err
}

// writeFile creates path and writes records to it.
func (e *Exporter) writeFile(path string, format Format, records []model.BusinessRecord, stamp time.Time) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}

	f, err := os.Create(path) //nolint:gosec // Output path is chosen by the user
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w, err := NewWriter(format, f, stamp)
	if err != nil {
		return err
	}
	if _, err := w.Write(records); err != nil && !errors.Is(err, ErrNoRecords) {
		return err
	}
	return nil
}

// NewWriter returns the writer for format. stamp is the generation time
// shown in Markdown output.
func NewWriter(format Format, out io.Writer, stamp time.Time) (Writer, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(out), nil
	case FormatJSON:
		return NewJSONWriter(out, WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(out, WithGeneratedAt(stamp)), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}
