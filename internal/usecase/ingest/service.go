// Package ingest drives bulk loading of qualification records from tabular
// sources. Rows are consumed one at a time in file order; each row runs the
// same parse → compute → reconcile chain as single-record entry. A bad row
// is recorded and skipped, never aborting the batch and never partially
// committed.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nuamhub/taxqual-backend/internal/domain"
	"github.com/nuamhub/taxqual-backend/internal/usecase/compute"
	"github.com/nuamhub/taxqual-backend/internal/usecase/records"
	"github.com/shopspring/decimal"
)

// Mode selects which column family a file carries: direct factors or raw
// monetary amounts to be normalized.
type Mode string

const (
	ModeFactors Mode = "factors"
	ModeAmounts Mode = "amounts"
)

// DefaultPreviewLimit is the number of rows shown when no explicit preview
// limit is given
const DefaultPreviewLimit = 5

// RowReader yields tabular data rows keyed by lower-cased header name.
// Next returns io.EOF after the last row. A reader is finite and not
// restartable: a second pass requires re-reading the source.
type RowReader interface {
	Next() (map[string]string, error)
}

// RowError ties a failure to the 1-based data row it occurred on
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Summary is the outcome of one ingested file
type Summary struct {
	Created   int
	Updated   int
	RowErrors []RowError
}

// PreviewTable is the inspection view of a file's first rows: the parsed
// base columns plus the factor values each row would commit with. In
// amounts mode the factor columns are labeled "factor_N (calc)".
type PreviewTable struct {
	Columns   []string
	Rows      [][]string
	RowErrors []RowError
}

// Service wires the pipeline to the reconciler
type Service struct {
	Records *records.Service
}

// NewService creates a new ingestion Service instance
func NewService(records *records.Service) *Service {
	return &Service{Records: records}
}

// Ingest processes every row of the source sequentially, in file order.
// Duplicate natural keys within one file collapse onto one record with
// last-row-wins semantics. Row-local failures are collected in the summary;
// only a reader failure aborts the batch.
func (s *Service) Ingest(ctx context.Context, brokerID uuid.UUID, rows RowReader, mode Mode) (*Summary, error) {
	if mode != ModeFactors && mode != ModeAmounts {
		return nil, fmt.Errorf("unknown ingestion mode %q", mode)
	}

	summary := &Summary{}
	rowNum := 0
	for {
		fields, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rowNum+1, err)
		}
		rowNum++

		key, recFields, err := parseRow(fields, mode)
		if err != nil {
			summary.RowErrors = append(summary.RowErrors, RowError{Row: rowNum, Err: err})
			continue
		}

		_, created, err := s.Records.Reconcile(ctx, brokerID, key, recFields)
		if err != nil {
			summary.RowErrors = append(summary.RowErrors, RowError{Row: rowNum, Err: err})
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
	}
	return summary, nil
}

// Preview runs the identical parse+compute path on at most limit rows
// without touching any store, purely for inspection. Because it shares
// parseRow with Ingest, a previewed factor value is exactly the value a
// commit would produce.
func (s *Service) Preview(rows RowReader, mode Mode, limit int) (*PreviewTable, error) {
	if mode != ModeFactors && mode != ModeAmounts {
		return nil, fmt.Errorf("unknown ingestion mode %q", mode)
	}
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}

	table := &PreviewTable{Columns: previewColumns(mode)}
	for rowNum := 1; rowNum <= limit; rowNum++ {
		fields, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rowNum, err)
		}

		key, recFields, err := parseRow(fields, mode)
		if err != nil {
			table.RowErrors = append(table.RowErrors, RowError{Row: rowNum, Err: err})
			continue
		}
		table.Rows = append(table.Rows, previewRow(key, recFields))
	}
	return table, nil
}

// parseRow turns one raw tabular row into a natural key plus a full field
// set, running the decimal parser on every numeric column and, in amounts
// mode, the factor computation engine. Both Ingest and Preview go through
// here — the single point where row semantics are defined.
func parseRow(row map[string]string, mode Mode) (domain.RecordKey, domain.RecordFields, error) {
	var key domain.RecordKey
	var fields domain.RecordFields

	instrument := strings.TrimSpace(row["instrumento"])
	if instrument == "" {
		return key, fields, &domain.MissingColumnError{Column: "instrumento"}
	}
	rawDate := strings.TrimSpace(row["fecha"])
	if rawDate == "" {
		return key, fields, &domain.MissingColumnError{Column: "fecha"}
	}
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		return key, fields, fmt.Errorf("column %q: invalid date %q, want AAAA-MM-DD", "fecha", rawDate)
	}
	key = domain.RecordKey{Instrument: instrument, Date: date}

	fields.Sequence, err = parseInt(row, "secuencia")
	if err != nil {
		return key, fields, err
	}
	fields.DividendNumber, err = parseInt(row, "numero_dividendo")
	if err != nil {
		return key, fields, err
	}

	fields.CompanyType = domain.CompanyType(strings.TrimSpace(row["tipo_sociedad"]))
	if fields.CompanyType == "" {
		fields.CompanyType = domain.CompanyTypeOpen
	}

	fields.HistoricalValue, err = parseColumn(row, "valor_historico")
	if err != nil {
		return key, fields, err
	}

	fields.NotListed, err = parseBool(row, "instrumento_no_inscrito")
	if err != nil {
		return key, fields, err
	}

	fields.Origin = domain.OriginSystem

	switch mode {
	case ModeFactors:
		fields.EntrySource = domain.EntrySourceFactorUpload
		for i := domain.FactorMin; i <= domain.FactorMax; i++ {
			v, err := parseColumn(row, domain.FactorKey(i))
			if err != nil {
				return key, fields, err
			}
			fields.Factors.Set(i, v)
		}
	case ModeAmounts:
		fields.EntrySource = domain.EntrySourceAmountUpload
		var amounts domain.Factors
		for i := domain.FactorMin; i <= domain.FactorMax; i++ {
			v, err := parseColumn(row, domain.AmountKey(i))
			if err != nil {
				return key, fields, err
			}
			amounts.Set(i, v)
		}
		fields.Factors = compute.ComputeFactors(amounts)
	}

	return key, fields, nil
}

func parseColumn(row map[string]string, column string) (decimal.Decimal, error) {
	v, err := compute.ParseDecimal(row[column], decimal.Zero)
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %q: %w", column, err)
	}
	return v, nil
}

func parseInt(row map[string]string, column string) (int, error) {
	raw := strings.TrimSpace(row[column])
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", column, &domain.MalformedNumberError{Input: raw})
	}
	return n, nil
}

func parseBool(row map[string]string, column string) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(row[column]))
	switch raw {
	case "", "0", "false", "f", "no", "n":
		return false, nil
	case "1", "true", "t", "si", "sí", "yes", "y":
		return true, nil
	default:
		return false, fmt.Errorf("column %q: invalid boolean %q", column, raw)
	}
}

func previewColumns(mode Mode) []string {
	cols := []string{
		"instrumento", "fecha", "secuencia", "numero_dividendo",
		"tipo_sociedad", "valor_historico", "instrumento_no_inscrito",
	}
	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		name := domain.FactorKey(i)
		if mode == ModeAmounts {
			name += " (calc)"
		}
		cols = append(cols, name)
	}
	return cols
}

func previewRow(key domain.RecordKey, fields domain.RecordFields) []string {
	row := []string{
		key.Instrument,
		key.Date.Format("2006-01-02"),
		strconv.Itoa(fields.Sequence),
		strconv.Itoa(fields.DividendNumber),
		string(fields.CompanyType),
		fields.HistoricalValue.StringFixed(2),
		strconv.FormatBool(fields.NotListed),
	}
	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		row = append(row, fields.Factors.At(i).StringFixed(domain.FactorScale))
	}
	return row
}
