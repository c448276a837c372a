package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CompanyType distinguishes open (publicly held) from closed corporations
type CompanyType string

const (
	CompanyTypeOpen   CompanyType = "A"
	CompanyTypeClosed CompanyType = "C"
)

// MarketType is the market segment of the instrument. Optional on a record.
type MarketType string

const (
	MarketTypeShares     MarketType = "ACC"
	MarketTypeCFI        MarketType = "CFI"
	MarketTypeMutualFund MarketType = "FFM"
)

// Origin records whether the qualification was entered by the broker or
// produced by the system
type Origin string

const (
	OriginBroker Origin = "COR"
	OriginSystem Origin = "SIS"
)

// EntrySource is the provenance tag stamped on every record: manual
// maintainer entry, factor-file upload, or amount-file upload
type EntrySource string

const (
	EntrySourceManual       EntrySource = "MAN"
	EntrySourceFactorUpload EntrySource = "FAC"
	EntrySourceAmountUpload EntrySource = "MON"
)

// RecordKey is the natural key of a qualification record within one broker's
// scope. Together with the broker it must be unique: a second write with the
// same key is an update, never a duplicate.
type RecordKey struct {
	Instrument string
	Date       time.Time
}

// RecordFields carries every caller-mutable field of a qualification record.
// Reconciliation applies it as a full replace: the factor set is always
// overwritten whole, never merged with previous values.
type RecordFields struct {
	Sequence            int
	DividendNumber      int
	CompanyType         CompanyType
	HistoricalValue     decimal.Decimal // 2 fraction digits
	NotListed           bool
	MarketType          MarketType // optional, empty when unset
	DividendDescription string
	TaxSheltered        bool
	UpdateFactor        decimal.Decimal // 5 fraction digits
	Origin              Origin
	EntrySource         EntrySource
	Factors             Factors
}

// QualificationRecord is the central entity: the per-instrument tax
// qualification of one dividend/distribution event, owned by exactly one
// broker and identified by (broker, instrument, date).
type QualificationRecord struct {
	ID       uuid.UUID
	BrokerID uuid.UUID

	Instrument string
	Date       time.Time

	Sequence            int
	DividendNumber      int
	CompanyType         CompanyType
	HistoricalValue     decimal.Decimal
	NotListed           bool
	MarketType          MarketType
	DividendDescription string
	TaxSheltered        bool
	UpdateFactor        decimal.Decimal
	Origin              Origin
	EntrySource         EntrySource

	// LastModified is stamped server-side on every write, never settable by a caller
	LastModified time.Time

	Factors Factors
}

// Apply overwrites every caller-mutable field with the given set.
// LastModified is deliberately untouched: the write path stamps it.
func (r *QualificationRecord) Apply(fields RecordFields) {
	r.Sequence = fields.Sequence
	r.DividendNumber = fields.DividendNumber
	r.CompanyType = fields.CompanyType
	r.HistoricalValue = fields.HistoricalValue
	r.NotListed = fields.NotListed
	r.MarketType = fields.MarketType
	r.DividendDescription = fields.DividendDescription
	r.TaxSheltered = fields.TaxSheltered
	r.UpdateFactor = fields.UpdateFactor
	r.Origin = fields.Origin
	r.EntrySource = fields.EntrySource
	r.Factors = fields.Factors
}

// Validate ensures the record adheres to domain rules.
// Factor violations are returned as a *ValidationError carrying every
// violation found, so callers can report all problems in one pass.
func (r *QualificationRecord) Validate() error {
	if r.Instrument == "" {
		return errors.New("instrument code cannot be empty")
	}
	if r.Date.IsZero() {
		return errors.New("record date cannot be zero")
	}
	if r.CompanyType != CompanyTypeOpen && r.CompanyType != CompanyTypeClosed {
		return errors.New("company type must be A (open) or C (closed)")
	}
	if err := ValidateFactors(r.Factors); err != nil {
		return err
	}
	return nil
}
