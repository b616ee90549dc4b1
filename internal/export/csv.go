package export

import (
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/nao1215/mapharvest/internal/model"
)

// TimeLayout is how ExtractedAt is written in CSV files. It matches the
// JSON encoding of time.Time, so both exports carry the same string.
const TimeLayout = time.RFC3339Nano

// csvRow is one CSV line. Field order defines the column order and must
// follow model.BusinessRecord.
type csvRow struct {
	Index          string `csv:"index"`
	Name           string `csv:"name"`
	Address        string `csv:"address"`
	Phone          string `csv:"phone"`
	Website        string `csv:"website"`
	Rating         string `csv:"rating"`
	ReviewsCount   string `csv:"reviewsCount"`
	Category       string `csv:"category"`
	Hours          string `csv:"hours"`
	SourceURL      string `csv:"sourceUrl"`
	ExtractedAt    string `csv:"extractedAt"`
	SearchQuery    string `csv:"searchQuery"`
	SearchLocation string `csv:"searchLocation"`
}

func newCSVRow(r model.BusinessRecord) csvRow {
	return csvRow{
		Index:          strconv.Itoa(r.Index),
		Name:           r.Name,
		Address:        r.Address,
		Phone:          r.Phone,
		Website:        r.WebsiteOrEmpty(),
		Rating:         r.Rating,
		ReviewsCount:   r.ReviewsCount,
		Category:       r.Category,
		Hours:          r.Hours,
		SourceURL:      r.SourceURL,
		ExtractedAt:    r.ExtractedAt.Format(TimeLayout),
		SearchQuery:    r.SearchQuery,
		SearchLocation: r.SearchLocation,
	}
}

// record converts the row back. An empty website becomes absent.
func (c csvRow) record() (model.BusinessRecord, error) {
	index, err := strconv.Atoi(c.Index)
	if err != nil {
		return model.BusinessRecord{}, err
	}
	extractedAt, err := time.Parse(TimeLayout, c.ExtractedAt)
	if err != nil {
		return model.BusinessRecord{}, err
	}
	r := model.BusinessRecord{
		Index:          index,
		Name:           c.Name,
		Address:        c.Address,
		Phone:          c.Phone,
		Rating:         c.Rating,
		ReviewsCount:   c.ReviewsCount,
		Category:       c.Category,
		Hours:          c.Hours,
		SourceURL:      c.SourceURL,
		ExtractedAt:    extractedAt,
		SearchQuery:    c.SearchQuery,
		SearchLocation: c.SearchLocation,
	}
	if c.Website != "" {
		r.Website = model.StringPtr(c.Website)
	}
	return r, nil
}

// CSVWriter outputs records as UTF-8 CSV with a header line.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the records. It returns ErrNoRecords and writes nothing
// when records is empty.
func (w *CSVWriter) Write(records []model.BusinessRecord) (int, error) {
	if len(records) == 0 {
		return 0, ErrNoRecords
	}

	rows := make([]csvRow, len(records))
	for i, r := range records {
		rows[i] = newCSVRow(r)
	}

	cw := &countingWriter{w: w.output}
	if err := gocsv.Marshal(rows, cw); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadCSV parses records written by CSVWriter.
func ReadCSV(data []byte) ([]model.BusinessRecord, error) {
	var rows []csvRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, err
	}
	records := make([]model.BusinessRecord, 0, len(rows))
	for _, row := range rows {
		r, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
