package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/mapharvest/internal/model"
)

var extractedAt = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

// sampleRecords covers quoting hazards: commas, quotes, newlines,
// non-ASCII text and an absent website.
func sampleRecords() []model.BusinessRecord {
	return []model.BusinessRecord{
		{
			Index:          1,
			Name:           "Joe's \"Best\" Bakery",
			Address:        "1 Main St, Springfield",
			Phone:          "+1 555-0100",
			Website:        model.StringPtr("https://joes.example/?a=1&b=2"),
			Rating:         "4.6",
			ReviewsCount:   "87",
			Category:       "Bakery",
			Hours:          "Mon 8-5\nTue 8-5",
			SourceURL:      "https://maps.example/place/joes",
			ExtractedAt:    extractedAt,
			SearchQuery:    "bakery",
			SearchLocation: "Springfield",
		},
		{
			Index:          2,
			Name:           "רהיטי הבית",
			SourceURL:      "https://maps.example/place/2",
			ExtractedAt:    extractedAt,
			SearchQuery:    "רהיטים",
			SearchLocation: "תל אביב",
		},
		{
			Index:          1,
			Name:           model.NotFoundName,
			SourceURL:      "https://maps.example/place/3",
			ExtractedAt:    extractedAt,
			SearchQuery:    "lawyers",
			SearchLocation: "Shelbyville",
		},
	}
}

func assertSameRecords(t *testing.T, got, want []model.BusinessRecord) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.WebsiteOrEmpty() != w.WebsiteOrEmpty() || (g.Website == nil) != (w.Website == nil) {
			t.Errorf("record %d: website = %v, want %v", i, g.Website, w.Website)
		}
		if !g.ExtractedAt.Equal(w.ExtractedAt) {
			t.Errorf("record %d: extractedAt = %v, want %v", i, g.ExtractedAt, w.ExtractedAt)
		}
		g.Website, w.Website = nil, nil
		g.ExtractedAt, w.ExtractedAt = time.Time{}, time.Time{}
		if g != w {
			t.Errorf("record %d mismatch\n got: %+v\nwant: %+v", i, g, w)
		}
	}
}

// TestCSVWriter tests CSV output.
func TestCSVWriter(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewCSVWriter(&buf).Write(sampleRecords())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}

		got, err := ReadCSV(buf.Bytes())
		if err != nil {
			t.Fatalf("failed to read csv back: %v", err)
		}
		assertSameRecords(t, got, sampleRecords())
	})

	t.Run("header follows record field order", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewCSVWriter(&buf).Write(sampleRecords()[:1]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid csv: %v", err)
		}
		want := []string{
			"index", "name", "address", "phone", "website", "rating", "reviewsCount",
			"category", "hours", "sourceUrl", "extractedAt", "searchQuery", "searchLocation",
		}
		if strings.Join(lines[0], ",") != strings.Join(want, ",") {
			t.Errorf("header = %v, want %v", lines[0], want)
		}
		if len(lines) != 2 {
			t.Errorf("expected header and one row, got %d lines", len(lines))
		}
	})

	t.Run("extractedAt keeps sub-second precision like json", func(t *testing.T) {
		t.Parallel()

		records := sampleRecords()[:1]
		records[0].ExtractedAt = time.Date(2025, 6, 1, 9, 30, 0, 123456789, time.UTC)

		var csvBuf, jsonBuf bytes.Buffer
		if _, err := NewCSVWriter(&csvBuf).Write(records); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewJSONWriter(&jsonBuf).Write(records); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines, err := csv.NewReader(bytes.NewReader(csvBuf.Bytes())).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid csv: %v", err)
		}
		var decoded []struct {
			ExtractedAt string `json:"extractedAt"`
		}
		if err := json.Unmarshal(jsonBuf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid json: %v", err)
		}
		const want = "2025-06-01T09:30:00.123456789Z"
		if got := lines[1][10]; got != want {
			t.Errorf("csv extractedAt = %q, want %q", got, want)
		}
		if got := decoded[0].ExtractedAt; got != want {
			t.Errorf("json extractedAt = %q, want %q", got, want)
		}

		got, err := ReadCSV(csvBuf.Bytes())
		if err != nil {
			t.Fatalf("failed to read csv back: %v", err)
		}
		if !got[0].ExtractedAt.Equal(records[0].ExtractedAt) {
			t.Errorf("extractedAt = %v, want %v", got[0].ExtractedAt, records[0].ExtractedAt)
		}
	})

	t.Run("empty set writes nothing", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewCSVWriter(&buf).Write(nil)
		if !errors.Is(err, ErrNoRecords) {
			t.Fatalf("expected ErrNoRecords, got %v", err)
		}
		if n != 0 || buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
}

// TestJSONWriter tests JSON output.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(sampleRecords()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := ReadJSON(buf.Bytes())
		if err != nil {
			t.Fatalf("failed to read json back: %v", err)
		}
		assertSameRecords(t, got, sampleRecords())
	})

	t.Run("non-ASCII and HTML characters are not escaped", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(sampleRecords()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"רהיטי הבית", "?a=1&b=2", "\n  {\n    \"index\": 1,"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, `\u`) {
			t.Errorf("expected no unicode escapes:\n%s", out)
		}
	})

	t.Run("absent website is null", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(sampleRecords()[1:2]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"website":null`) {
			t.Errorf("expected null website, got %s", buf.String())
		}
	})

	t.Run("empty set is an empty array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(buf.String()) != "[]" {
			t.Errorf("expected [], got %q", buf.String())
		}
	})
}

// TestMarkdownWriter tests the Markdown summary.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("summary with several searches", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf, WithGeneratedAt(extractedAt)).Write(sampleRecords())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected bytes written")
		}

		out := buf.String()
		for _, want := range []string{
			"# Map Search Results",
			"## Records per Search",
			"```mermaid",
			"pie",
			"## Bakery In Springfield",
			"Joe's \"Best\" Bakery",
			"1 listing(s) have no readable name",
			"2025-06-01 09:30:00 UTC",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q:\n%s", want, out)
			}
		}
	})

	t.Run("single search has no chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(sampleRecords()[:1]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "```mermaid") {
			t.Errorf("expected no chart:\n%s", buf.String())
		}
		if !strings.Contains(buf.String(), "Every listing has a name.") {
			t.Errorf("expected tip:\n%s", buf.String())
		}
	})

	t.Run("empty set", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No listings were extracted.") {
			t.Errorf("expected note:\n%s", buf.String())
		}
	})
}

// TestParseFormats tests format name parsing.
func TestParseFormats(t *testing.T) {
	t.Parallel()

	got, err := ParseFormats([]string{"CSV", "json", "md", "csv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Format{FormatCSV, FormatJSON, FormatMarkdown}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("format %d = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := ParseFormats([]string{"xlsx"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if FormatMarkdown.Ext() != "md" || FormatCSV.Ext() != "csv" {
		t.Error("unexpected extensions")
	}
}

func newTestExporter(dir string, formats []Format, opts ...ExporterOption) *Exporter {
	base := []ExporterOption{
		WithClock(func() time.Time { return extractedAt }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewExporter(dir, "google_maps_results", formats, append(base, opts...)...)
}

// TestExporter tests file naming and per-format export.
func TestExporter(t *testing.T) {
	t.Parallel()

	t.Run("writes every format with generated names", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		e := newTestExporter(dir, []Format{FormatCSV, FormatJSON, FormatMarkdown})

		paths, err := e.Export(context.Background(), sampleRecords())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{
			filepath.Join(dir, "google_maps_results_20250601_093000.csv"),
			filepath.Join(dir, "google_maps_results_20250601_093000.json"),
			filepath.Join(dir, "google_maps_results_20250601_093000.md"),
		}
		if strings.Join(paths, "|") != strings.Join(want, "|") {
			t.Fatalf("paths = %v, want %v", paths, want)
		}

		data, err := os.ReadFile(want[0])
		if err != nil {
			t.Fatalf("failed to read csv: %v", err)
		}
		got, err := ReadCSV(data)
		if err != nil {
			t.Fatalf("failed to parse csv: %v", err)
		}
		assertSameRecords(t, got, sampleRecords())

		data, err = os.ReadFile(want[1])
		if err != nil {
			t.Fatalf("failed to read json: %v", err)
		}
		got, err = ReadJSON(data)
		if err != nil {
			t.Fatalf("failed to parse json: %v", err)
		}
		assertSameRecords(t, got, sampleRecords())
	})

	t.Run("empty set skips csv only", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths, err := newTestExporter(dir, []Format{FormatCSV, FormatJSON}).Export(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(paths) != 1 || filepath.Ext(paths[0]) != ".json" {
			t.Fatalf("expected only the json file, got %v", paths)
		}
		if _, err := os.Stat(filepath.Join(dir, "google_maps_results_20250601_093000.csv")); !os.IsNotExist(err) {
			t.Errorf("expected no csv file, stat error: %v", err)
		}
	})

	t.Run("explicit file name", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		custom := filepath.Join(dir, "nested", "out.json")
		paths, err := newTestExporter(dir, []Format{FormatJSON}, WithFileName(FormatJSON, custom)).
			Export(context.Background(), sampleRecords())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(paths) != 1 || paths[0] != custom {
			t.Fatalf("expected %q, got %v", custom, paths)
		}
		if _, err := os.Stat(custom); err != nil {
			t.Errorf("expected file to exist: %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestExporter(t.TempDir(), []Format{FormatJSON}).Export(ctx, sampleRecords())
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
