package export

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/mapharvest/internal/model"
)

// MarkdownWriter outputs a summary of the records in GitHub flavored
// Markdown: totals, a per-search breakdown with a pie chart, and one table
// per search.
type MarkdownWriter struct {
	baseWriter

	// generatedAt is shown in the header. Zero hides it.
	generatedAt time.Time

	title cases.Caser
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithGeneratedAt sets the time shown in the summary header.
func WithGeneratedAt(t time.Time) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.generatedAt = t
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.Und),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// searchGroup is the records of one search, in arrival order.
type searchGroup struct {
	query    string
	location string
	records  []model.BusinessRecord
}

// groupBySearch groups records by query and location, keeping the order in
// which searches first appear.
func groupBySearch(records []model.BusinessRecord) []*searchGroup {
	var groups []*searchGroup
	index := make(map[[2]string]*searchGroup)
	for _, r := range records {
		key := [2]string{r.SearchQuery, r.SearchLocation}
		g, ok := index[key]
		if !ok {
			g = &searchGroup{query: r.SearchQuery, location: r.SearchLocation}
			index[key] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, r)
	}
	return groups
}

// Write outputs the summary.
func (w *MarkdownWriter) Write(records []model.BusinessRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)
	groups := groupBySearch(records)

	w.writeHeader(md, records, groups)
	w.writeBreakdown(md, groups)
	w.writeAlert(md, records)
	for _, g := range groups {
		w.writeGroup(md, g)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and the totals table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, records []model.BusinessRecord, groups []*searchGroup) {
	md.H1("Map Search Results")
	md.PlainText("")

	rows := [][]string{
		{"Records", strconv.Itoa(len(records))},
		{"Searches", strconv.Itoa(len(groups))},
		{"With website", strconv.Itoa(countWhere(records, func(r model.BusinessRecord) bool { return r.Website != nil }))},
		{"With phone", strconv.Itoa(countWhere(records, func(r model.BusinessRecord) bool { return r.Phone != "" }))},
	}
	if !w.generatedAt.IsZero() {
		rows = append(rows, []string{"Generated", w.generatedAt.Format("2006-01-02 15:04:05 MST")})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeBreakdown writes the per-search counts and, when more than one
// search produced records, a pie chart of them.
func (w *MarkdownWriter) writeBreakdown(md *markdown.Markdown, groups []*searchGroup) {
	if len(groups) == 0 {
		return
	}

	md.H2("Records per Search")
	md.PlainText("")

	rows := make([][]string, len(groups))
	for i, g := range groups {
		rows[i] = []string{escapeCell(g.query), escapeCell(g.location), strconv.Itoa(len(g.records))}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Query", "Location", "Records"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(groups) < 2 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records per Search"),
		piechart.WithShowData(true),
	)
	for _, g := range groups {
		chart.LabelAndIntValue(searchLabel(g.query, g.location), uint64(len(g.records)))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes a note about the overall result quality.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, records []model.BusinessRecord) {
	unnamed := countWhere(records, func(r model.BusinessRecord) bool { return !r.HasName() })
	switch {
	case len(records) == 0:
		md.Note("No listings were extracted.")
	case unnamed > 0:
		md.Warningf("%d listing(s) have no readable name. The detail panel may not have loaded in time.", unnamed)
	default:
		md.Tip("Every listing has a name.")
	}
	md.PlainText("")
}

// writeGroup writes the table of one search.
func (w *MarkdownWriter) writeGroup(md *markdown.Markdown, g *searchGroup) {
	md.H2(w.title.String(searchLabel(g.query, g.location)))
	md.PlainText("")

	rows := make([][]string, len(g.records))
	for i, r := range g.records {
		rows[i] = []string{
			strconv.Itoa(r.Index),
			escapeCell(truncateString(r.Name, 50)),
			escapeCell(truncateString(orDash(r.Address), 50)),
			escapeCell(orDash(r.Phone)),
			orDash(r.Rating),
			orDash(r.ReviewsCount),
			escapeCell(truncateString(orDash(r.Category), 30)),
			escapeCell(truncateString(orDash(r.WebsiteOrEmpty()), 40)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "Name", "Address", "Phone", "Rating", "Reviews", "Category", "Website"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the summary footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [mapharvest](https://github.com/nao1215/mapharvest)*")
}

func searchLabel(query, location string) string {
	if location == "" {
		return query
	}
	return query + " in " + location
}

func countWhere(records []model.BusinessRecord, pred func(model.BusinessRecord) bool) int {
	n := 0
	for _, r := range records {
		if pred(r) {
			n++
		}
	}
	return n
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// escapeCell keeps a value inside its table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
