package export

import (
	"encoding/json"
	"io"

	"github.com/nao1215/mapharvest/internal/model"
)

// JSONWriter outputs records as a JSON array.
// HTML characters and non-ASCII text are written unescaped.
type JSONWriter struct {
	baseWriter

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string. Empty means compact output.
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent sets the line prefix and the indentation of each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// Output is compact unless an indent option is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the records. An empty set is written as [].
func (w *JSONWriter) Write(records []model.BusinessRecord) (int, error) {
	if records == nil {
		records = []model.BusinessRecord{}
	}

	cw := &countingWriter{w: w.output}
	enc := json.NewEncoder(cw)
	enc.SetEscapeHTML(false)
	if w.indentString != "" || w.indentPrefix != "" {
		enc.SetIndent(w.indentPrefix, w.indentString)
	}
	if err := enc.Encode(records); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadJSON parses records written by JSONWriter.
func ReadJSON(data []byte) ([]model.BusinessRecord, error) {
	var records []model.BusinessRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
