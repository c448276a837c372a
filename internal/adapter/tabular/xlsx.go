package tabular

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXReader iterates the first sheet of a workbook. The first row is the
// required header. The whole sheet is materialized up front; XLSX is not a
// streaming format at the sizes these files have.
type XLSXReader struct {
	header []string
	rows   [][]string
	pos    int
}

// NewXLSXReader opens the workbook and loads the first sheet
func NewXLSXReader(r io.Reader) (*XLSXReader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, errors.New("workbook is empty, header row required")
	}

	return &XLSXReader{header: normalizeHeader(rows[0]), rows: rows[1:]}, nil
}

// Next returns the next data row keyed by header name, io.EOF at the end
func (r *XLSXReader) Next() (map[string]string, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return rowMap(r.header, row), nil
}
