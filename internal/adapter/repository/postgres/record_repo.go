package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nuamhub/taxqual-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// recordRepository implements domain.RecordRepository
type recordRepository struct {
	db *DB
}

// NewRecordRepository creates a new qualification record repository
func NewRecordRepository(db *DB) domain.RecordRepository {
	return &recordRepository{db: db}
}

// Column layout is fixed: the 16 base columns below followed by the 30
// factor columns factor_8..factor_37, in index order.
var recordBaseColumns = []string{
	"id", "broker_id", "instrument", "date", "sequence", "dividend_number",
	"company_type", "historical_value", "not_listed", "market_type",
	"dividend_description", "tax_sheltered", "update_factor", "origin",
	"entry_source", "last_modified",
}

func recordColumns() []string {
	cols := make([]string, 0, len(recordBaseColumns)+domain.FactorCount)
	cols = append(cols, recordBaseColumns...)
	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		cols = append(cols, domain.FactorKey(i))
	}
	return cols
}

func placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ps, ", ")
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.QualificationRecord, error) {
	var rec domain.QualificationRecord
	var historicalValue, updateFactor string
	var marketType, description sql.NullString
	factorValues := make([]string, domain.FactorCount)

	dest := []any{
		&rec.ID, &rec.BrokerID, &rec.Instrument, &rec.Date,
		&rec.Sequence, &rec.DividendNumber, &rec.CompanyType,
		&historicalValue, &rec.NotListed, &marketType, &description,
		&rec.TaxSheltered, &updateFactor, &rec.Origin, &rec.EntrySource,
		&rec.LastModified,
	}
	for i := range factorValues {
		dest = append(dest, &factorValues[i])
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if rec.HistoricalValue, err = decimal.NewFromString(historicalValue); err != nil {
		return nil, fmt.Errorf("failed to parse historical_value: %w", err)
	}
	if rec.UpdateFactor, err = decimal.NewFromString(updateFactor); err != nil {
		return nil, fmt.Errorf("failed to parse update_factor: %w", err)
	}
	if marketType.Valid {
		rec.MarketType = domain.MarketType(marketType.String)
	}
	if description.Valid {
		rec.DividendDescription = description.String
	}
	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		v, err := decimal.NewFromString(factorValues[i-domain.FactorMin])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", domain.FactorKey(i), err)
		}
		rec.Factors.Set(i, v)
	}

	return &rec, nil
}

func recordArgs(rec *domain.QualificationRecord) []any {
	var marketType, description any
	if rec.MarketType != "" {
		marketType = string(rec.MarketType)
	}
	if rec.DividendDescription != "" {
		description = rec.DividendDescription
	}

	args := []any{
		rec.ID, rec.BrokerID, rec.Instrument, rec.Date,
		rec.Sequence, rec.DividendNumber, string(rec.CompanyType),
		rec.HistoricalValue.String(), rec.NotListed, marketType, description,
		rec.TaxSheltered, rec.UpdateFactor.String(), string(rec.Origin),
		string(rec.EntrySource), rec.LastModified,
	}
	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		args = append(args, rec.Factors.At(i).String())
	}
	return args
}

// GetByKey retrieves a record by its natural key within the broker scope
func (r *recordRepository) GetByKey(ctx context.Context, brokerID uuid.UUID, key domain.RecordKey) (*domain.QualificationRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM qualification_records
		WHERE broker_id = $1 AND instrument = $2 AND date = $3
	`, strings.Join(recordColumns(), ", "))

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, brokerID, key.Instrument, key.Date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record by key: %w", err)
	}
	return rec, nil
}

// GetByID retrieves a record by identity within the broker scope
func (r *recordRepository) GetByID(ctx context.Context, brokerID, id uuid.UUID) (*domain.QualificationRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM qualification_records
		WHERE broker_id = $1 AND id = $2
	`, strings.Join(recordColumns(), ", "))

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, brokerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record by ID: %w", err)
	}
	return rec, nil
}

// Create persists a new record
func (r *recordRepository) Create(ctx context.Context, rec *domain.QualificationRecord) error {
	cols := recordColumns()
	query := fmt.Sprintf(
		"INSERT INTO qualification_records (%s) VALUES (%s)",
		strings.Join(cols, ", "), placeholders(len(cols)),
	)

	if _, err := r.db.ExecContext(ctx, query, recordArgs(rec)...); err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// Update fully replaces the stored state of an existing record
func (r *recordRepository) Update(ctx context.Context, rec *domain.QualificationRecord) error {
	cols := recordColumns()
	// id and broker_id select the row; everything else is replaced
	assignments := make([]string, 0, len(cols)-2)
	for i, col := range cols[2:] {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", col, i+3))
	}
	query := fmt.Sprintf(
		"UPDATE qualification_records SET %s WHERE id = $1 AND broker_id = $2",
		strings.Join(assignments, ", "),
	)

	res, err := r.db.ExecContext(ctx, query, recordArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// Delete removes a record by identity within the broker scope
func (r *recordRepository) Delete(ctx context.Context, brokerID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM qualification_records WHERE broker_id = $1 AND id = $2",
		brokerID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// List retrieves the broker's records matching the filter, newest first
func (r *recordRepository) List(ctx context.Context, brokerID uuid.UUID, filter domain.RecordFilter) ([]*domain.QualificationRecord, error) {
	conditions := []string{"broker_id = $1"}
	args := []any{brokerID}

	if filter.MarketType != "" {
		args = append(args, string(filter.MarketType))
		conditions = append(conditions, fmt.Sprintf("market_type = $%d", len(args)))
	}
	if filter.Origin != "" {
		args = append(args, string(filter.Origin))
		conditions = append(conditions, fmt.Sprintf("origin = $%d", len(args)))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("EXTRACT(YEAR FROM date) = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM qualification_records
		WHERE %s
		ORDER BY date DESC, instrument ASC
	`, strings.Join(recordColumns(), ", "), strings.Join(conditions, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*domain.QualificationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}
