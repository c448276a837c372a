// Package records implements the record reconciler and the maintainer
// operations around qualification records. Reconciliation is the single
// write path: lookup by natural key within the broker scope, then create or
// fully replace, always behind factor validation.
package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nuamhub/taxqual-backend/internal/domain"
	"github.com/nuamhub/taxqual-backend/internal/usecase/compute"
	"github.com/shopspring/decimal"
)

// Service handles qualification record operations for one request at a time.
// All methods take the acting broker ID explicitly; there is no ambient
// identity.
type Service struct {
	Records domain.RecordRepository
}

// NewService creates a new record Service instance
func NewService(records domain.RecordRepository) *Service {
	return &Service{Records: records}
}

// BasicFields is the maintainer's step-1 field set: identity-adjacent and
// descriptive fields, no factors.
type BasicFields struct {
	Sequence            int
	DividendNumber      int
	CompanyType         domain.CompanyType
	HistoricalValue     decimal.Decimal
	NotListed           bool
	MarketType          domain.MarketType
	DividendDescription string
	TaxSheltered        bool
	UpdateFactor        decimal.Decimal
	Origin              domain.Origin
}

// Reconcile decides create-vs-update for the natural key within the broker
// scope and applies the fields as a full replace. Returns the resulting
// record and whether it was created.
//
// Validation always runs before any write; on failure the reconciliation
// fails atomically and the violations are returned. LastModified is stamped
// server-side on both branches.
func (s *Service) Reconcile(ctx context.Context, brokerID uuid.UUID, key domain.RecordKey, fields domain.RecordFields) (*domain.QualificationRecord, bool, error) {
	if verr := domain.ValidateFactors(fields.Factors); verr != nil {
		return nil, false, verr
	}
	if key.Instrument == "" {
		return nil, false, &domain.MissingColumnError{Column: "instrumento"}
	}
	if key.Date.IsZero() {
		return nil, false, &domain.MissingColumnError{Column: "fecha"}
	}

	existing, err := s.Records.GetByKey(ctx, brokerID, key)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()

	if existing == nil {
		rec := &domain.QualificationRecord{
			ID:         uuid.New(),
			BrokerID:   brokerID,
			Instrument: key.Instrument,
			Date:       key.Date,
		}
		rec.Apply(fields)
		rec.LastModified = now
		if err := s.Records.Create(ctx, rec); err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}

	existing.Apply(fields)
	existing.LastModified = now
	if err := s.Records.Update(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// CreateManual enters a record through the maintainer's step 1. Factors
// start at zero; the entry source is stamped MAN. An existing record under
// the same natural key is replaced, per the natural-key uniqueness rule.
func (s *Service) CreateManual(ctx context.Context, brokerID uuid.UUID, key domain.RecordKey, basic BasicFields) (*domain.QualificationRecord, bool, error) {
	fields := fieldsFromBasic(basic)
	fields.EntrySource = domain.EntrySourceManual
	return s.Reconcile(ctx, brokerID, key, fields)
}

// UpdateBasic modifies the step-1 fields of an existing record, leaving the
// factor set untouched
func (s *Service) UpdateBasic(ctx context.Context, brokerID, id uuid.UUID, key domain.RecordKey, basic BasicFields) (*domain.QualificationRecord, error) {
	rec, err := s.Records.GetByID(ctx, brokerID, id)
	if err != nil {
		return nil, err
	}

	fields := fieldsFromBasic(basic)
	fields.EntrySource = rec.EntrySource
	fields.Factors = rec.Factors
	rec.Apply(fields)
	if key.Instrument != "" {
		rec.Instrument = key.Instrument
	}
	if !key.Date.IsZero() {
		rec.Date = key.Date
	}
	rec.LastModified = time.Now().UTC()

	if err := s.Records.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ComputeAmounts derives the factor set from raw monetary amounts without
// persisting anything. This is the maintainer's step 2: the caller displays
// the result and commits it later through SaveFactors. It runs the same
// engine as bulk ingestion, so the two paths cannot diverge.
func (s *Service) ComputeAmounts(ctx context.Context, brokerID, id uuid.UUID, amounts domain.Factors) (domain.Factors, error) {
	// The record must exist within the scope before amounts can be attached to it
	if _, err := s.Records.GetByID(ctx, brokerID, id); err != nil {
		return domain.Factors{}, err
	}
	return compute.ComputeFactors(amounts), nil
}

// SaveFactors replaces all 30 factors of an existing record after
// validation. The maintainer's step 3.
func (s *Service) SaveFactors(ctx context.Context, brokerID, id uuid.UUID, factors domain.Factors) (*domain.QualificationRecord, error) {
	if verr := domain.ValidateFactors(factors); verr != nil {
		return nil, verr
	}

	rec, err := s.Records.GetByID(ctx, brokerID, id)
	if err != nil {
		return nil, err
	}

	rec.Factors = factors
	rec.LastModified = time.Now().UTC()

	if err := s.Records.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get retrieves a record by identity within the broker scope
func (s *Service) Get(ctx context.Context, brokerID, id uuid.UUID) (*domain.QualificationRecord, error) {
	return s.Records.GetByID(ctx, brokerID, id)
}

// List retrieves the broker's records matching the filter
func (s *Service) List(ctx context.Context, brokerID uuid.UUID, filter domain.RecordFilter) ([]*domain.QualificationRecord, error) {
	return s.Records.List(ctx, brokerID, filter)
}

// Delete removes a record by identity within the broker scope
func (s *Service) Delete(ctx context.Context, brokerID, id uuid.UUID) error {
	return s.Records.Delete(ctx, brokerID, id)
}

func fieldsFromBasic(basic BasicFields) domain.RecordFields {
	origin := basic.Origin
	if origin == "" {
		origin = domain.OriginSystem
	}
	return domain.RecordFields{
		Sequence:            basic.Sequence,
		DividendNumber:      basic.DividendNumber,
		CompanyType:         basic.CompanyType,
		HistoricalValue:     basic.HistoricalValue,
		NotListed:           basic.NotListed,
		MarketType:          basic.MarketType,
		DividendDescription: basic.DividendDescription,
		TaxSheltered:        basic.TaxSheltered,
		UpdateFactor:        basic.UpdateFactor,
		Origin:              origin,
	}
}
