package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// CSVReader streams a semicolon-delimited file row by row. The first row is
// the required header.
type CSVReader struct {
	reader *csv.Reader
	header []string
}

// NewCSVReader reads the header row and prepares streaming of the data rows
func NewCSVReader(r io.Reader) (*CSVReader, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1 // rows may be shorter than the header
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("file is empty, header row required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	return &CSVReader{reader: cr, header: normalizeHeader(header)}, nil
}

// Next returns the next data row keyed by header name, io.EOF at the end
func (r *CSVReader) Next() (map[string]string, error) {
	row, err := r.reader.Read()
	if err != nil {
		return nil, err
	}
	return rowMap(r.header, row), nil
}
