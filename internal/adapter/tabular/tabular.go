// Package tabular adapts uploaded files into the row stream the ingestion
// pipeline consumes. Two formats are supported: semicolon-delimited CSV and
// XLSX (first sheet). Both present rows as header-keyed maps so the
// pipeline stays format-agnostic.
package tabular

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/nuamhub/taxqual-backend/internal/usecase/ingest"
)

// ErrUnsupportedFile is returned for file extensions other than .csv and .xlsx
var ErrUnsupportedFile = errors.New("unsupported file type, expected .csv or .xlsx")

// Open builds a row reader for an uploaded file based on its extension
func Open(filename string, r io.Reader) (ingest.RowReader, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return NewCSVReader(r)
	case ".xlsx":
		return NewXLSXReader(r)
	default:
		return nil, ErrUnsupportedFile
	}
}

// rowMap zips a header with one data row. Columns beyond the row's length
// are absent from the map; surplus cells are dropped.
func rowMap(header []string, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, name := range header {
		if i >= len(row) {
			break
		}
		m[name] = row[i]
	}
	return m
}

// normalizeHeader lower-cases and trims every column name
func normalizeHeader(raw []string) []string {
	header := make([]string, len(raw))
	for i, name := range raw {
		header[i] = strings.ToLower(strings.TrimSpace(name))
	}
	return header
}
