package export

import (
	"errors"
	"io"

	"github.com/nao1215/mapharvest/internal/model"
)

// ErrNoRecords is returned by writers that produce nothing for an empty
// record set.
var ErrNoRecords = errors.New("no records to export")

// Writer defines the interface for record output.
type Writer interface {
	// Write outputs the records to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(records []model.BusinessRecord) (int, error)
}

// baseWriter provides common functionality for record writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countingWriter counts bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
