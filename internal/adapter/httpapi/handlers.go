package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/nuamhub/taxqual-backend/internal/adapter/tabular"
	"github.com/nuamhub/taxqual-backend/internal/domain"
	"github.com/nuamhub/taxqual-backend/internal/usecase/compute"
	"github.com/nuamhub/taxqual-backend/internal/usecase/ingest"
	"github.com/nuamhub/taxqual-backend/internal/usecase/records"
	"github.com/shopspring/decimal"
)

const maxUploadBytes = 32 << 20

const dateLayout = "2006-01-02"

// Handler exposes the record and ingestion services over JSON
type Handler struct {
	Records   *records.Service
	Ingestion *ingest.Service
}

// NewHandler creates a new Handler instance
func NewHandler(recordsSvc *records.Service, ingestionSvc *ingest.Service) *Handler {
	return &Handler{Records: recordsSvc, Ingestion: ingestionSvc}
}

// recordRequest is the JSON body of create/update calls. Numeric fields are
// dynamic so both native JSON numbers and locale-ambiguous strings parse
// through the same decimal parser as every other entry path.
type recordRequest struct {
	Instrument          string `json:"instrument"`
	Date                string `json:"date"`
	Sequence            int    `json:"sequence"`
	DividendNumber      int    `json:"dividend_number"`
	CompanyType         string `json:"company_type"`
	HistoricalValue     any    `json:"historical_value"`
	NotListed           bool   `json:"not_listed"`
	MarketType          string `json:"market_type"`
	DividendDescription string `json:"dividend_description"`
	TaxSheltered        bool   `json:"tax_sheltered"`
	UpdateFactor        any    `json:"update_factor"`
}

type recordResponse struct {
	ID                  string            `json:"id"`
	Instrument          string            `json:"instrument"`
	Date                string            `json:"date"`
	Sequence            int               `json:"sequence"`
	DividendNumber      int               `json:"dividend_number"`
	CompanyType         string            `json:"company_type"`
	HistoricalValue     string            `json:"historical_value"`
	NotListed           bool              `json:"not_listed"`
	MarketType          string            `json:"market_type,omitempty"`
	DividendDescription string            `json:"dividend_description,omitempty"`
	TaxSheltered        bool              `json:"tax_sheltered"`
	UpdateFactor        string            `json:"update_factor"`
	Origin              string            `json:"origin"`
	EntrySource         string            `json:"entry_source"`
	LastModified        time.Time         `json:"last_modified"`
	Factors             map[string]string `json:"factors"`
}

func toRecordResponse(rec *domain.QualificationRecord) recordResponse {
	factors := make(map[string]string, domain.FactorCount)
	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		factors[domain.FactorKey(i)] = rec.Factors.At(i).StringFixed(domain.FactorScale)
	}
	return recordResponse{
		ID:                  rec.ID.String(),
		Instrument:          rec.Instrument,
		Date:                rec.Date.Format(dateLayout),
		Sequence:            rec.Sequence,
		DividendNumber:      rec.DividendNumber,
		CompanyType:         string(rec.CompanyType),
		HistoricalValue:     rec.HistoricalValue.StringFixed(2),
		NotListed:           rec.NotListed,
		MarketType:          string(rec.MarketType),
		DividendDescription: rec.DividendDescription,
		TaxSheltered:        rec.TaxSheltered,
		UpdateFactor:        rec.UpdateFactor.StringFixed(5),
		Origin:              string(rec.Origin),
		EntrySource:         string(rec.EntrySource),
		LastModified:        rec.LastModified,
		Factors:             factors,
	}
}

// ListRecords returns the acting broker's records, optionally filtered by
// market_type, origin and year query parameters
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	broker, ok := ActingBroker(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusForbidden, domain.ErrUnknownBrokerScope.Error())
		return
	}

	filter := domain.RecordFilter{
		MarketType: domain.MarketType(r.URL.Query().Get("market_type")),
		Origin:     domain.Origin(r.URL.Query().Get("origin")),
	}
	if rawYear := r.URL.Query().Get("year"); rawYear != "" {
		if _, err := fmt.Sscanf(rawYear, "%d", &filter.Year); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid year parameter")
			return
		}
	}

	recs, err := h.Records.List(r.Context(), broker.ID, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]recordResponse, len(recs))
	for i, rec := range recs {
		out[i] = toRecordResponse(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

// GetRecord returns one record by ID within the acting broker's scope
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	broker, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}

	rec, err := h.Records.Get(r.Context(), broker.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// CreateRecord enters a record manually (maintainer step 1)
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	broker, ok := ActingBroker(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusForbidden, domain.ErrUnknownBrokerScope.Error())
		return
	}

	key, basic, err := decodeRecordRequest(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, created, err := h.Records.CreateManual(r.Context(), broker.ID, key, basic)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toRecordResponse(rec))
}

// UpdateRecord modifies the basic fields of an existing record
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	broker, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}

	key, basic, err := decodeRecordRequest(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.Records.UpdateBasic(r.Context(), broker.ID, id, key, basic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// DeleteRecord removes a record within the acting broker's scope
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	broker, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}

	if err := h.Records.Delete(r.Context(), broker.ID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "record deleted"})
}

// ComputeAmounts derives factors from raw amounts for an existing record
// without persisting anything (maintainer step 2)
func (h *Handler) ComputeAmounts(w http.ResponseWriter, r *http.Request) {
	broker, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}

	amounts, err := decodeIndexedDecimals(r, domain.AmountKey)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	factors, err := h.Records.ComputeAmounts(r.Context(), broker.ID, id, amounts)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make(map[string]string, domain.FactorCount)
	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		out[domain.FactorKey(i)] = factors.At(i).StringFixed(domain.FactorScale)
	}
	writeJSON(w, http.StatusOK, map[string]any{"record_id": id.String(), "factors": out})
}

// SaveFactors replaces all 30 factors of an existing record (maintainer step 3)
func (h *Handler) SaveFactors(w http.ResponseWriter, r *http.Request) {
	broker, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}

	factors, err := decodeIndexedDecimals(r, domain.FactorKey)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.Records.SaveFactors(r.Context(), broker.ID, id, factors)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// UploadFactors bulk-loads a factor-mode file
func (h *Handler) UploadFactors(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, ingest.ModeFactors)
}

// UploadAmounts bulk-loads an amount-mode file
func (h *Handler) UploadAmounts(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, ingest.ModeAmounts)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, mode ingest.Mode) {
	broker, ok := ActingBroker(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusForbidden, domain.ErrUnknownBrokerScope.Error())
		return
	}

	rows, ok := openUploadedFile(w, r)
	if !ok {
		return
	}

	summary, err := h.Ingestion.Ingest(r.Context(), broker.ID, rows, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse(summary))
}

// PreviewUpload runs the parse+compute path on the first rows of a file
// without persisting anything. The mode query parameter selects factors or
// amounts.
func (h *Handler) PreviewUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := ActingBroker(r.Context()); !ok {
		writeErrorMessage(w, http.StatusForbidden, domain.ErrUnknownBrokerScope.Error())
		return
	}

	mode := ingest.Mode(r.URL.Query().Get("mode"))
	if mode != ingest.ModeFactors && mode != ingest.ModeAmounts {
		writeErrorMessage(w, http.StatusBadRequest, "mode parameter must be \"factors\" or \"amounts\"")
		return
	}

	rows, ok := openUploadedFile(w, r)
	if !ok {
		return
	}

	table, err := h.Ingestion.Preview(rows, mode, ingest.DefaultPreviewLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"columns":    table.Columns,
		"rows":       table.Rows,
		"row_errors": rowErrorsResponse(table.RowErrors),
	})
}

// FactorNames returns the static factor index → human label table
func (h *Handler) FactorNames(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string, domain.FactorCount)
	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		out[domain.FactorKey(i)] = domain.FactorNames[i]
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) scopeAndID(w http.ResponseWriter, r *http.Request) (*domain.Broker, uuid.UUID, bool) {
	broker, ok := ActingBroker(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusForbidden, domain.ErrUnknownBrokerScope.Error())
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid record ID")
		return nil, uuid.Nil, false
	}
	return broker, id, true
}

func decodeRecordRequest(r *http.Request) (domain.RecordKey, records.BasicFields, error) {
	var key domain.RecordKey
	var basic records.BasicFields

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var req recordRequest
	if err := dec.Decode(&req); err != nil {
		return key, basic, fmt.Errorf("invalid request body: %w", err)
	}

	if req.Instrument == "" {
		return key, basic, &domain.MissingColumnError{Column: "instrument"}
	}
	if req.Date == "" {
		return key, basic, &domain.MissingColumnError{Column: "date"}
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return key, basic, fmt.Errorf("invalid date %q, want AAAA-MM-DD", req.Date)
	}
	key = domain.RecordKey{Instrument: req.Instrument, Date: date}

	historical, err := compute.ParseDecimalValue(req.HistoricalValue, decimal.Zero)
	if err != nil {
		return key, basic, err
	}
	updateFactor, err := compute.ParseDecimalValue(req.UpdateFactor, decimal.Zero)
	if err != nil {
		return key, basic, err
	}

	basic = records.BasicFields{
		Sequence:            req.Sequence,
		DividendNumber:      req.DividendNumber,
		CompanyType:         domain.CompanyType(req.CompanyType),
		HistoricalValue:     historical,
		NotListed:           req.NotListed,
		MarketType:          domain.MarketType(req.MarketType),
		DividendDescription: req.DividendDescription,
		TaxSheltered:        req.TaxSheltered,
		UpdateFactor:        updateFactor,
	}
	return key, basic, nil
}

// decodeIndexedDecimals reads a JSON object of keyFn(8)..keyFn(37) values
// into a factor-shaped array, running every value through the decimal parser
func decodeIndexedDecimals(r *http.Request, keyFn func(int) string) (domain.Factors, error) {
	var out domain.Factors

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	payload := make(map[string]any)
	if err := dec.Decode(&payload); err != nil {
		return out, fmt.Errorf("invalid request body: %w", err)
	}

	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		v, err := compute.ParseDecimalValue(payload[keyFn(i)], decimal.Zero)
		if err != nil {
			return out, fmt.Errorf("field %q: %w", keyFn(i), err)
		}
		out.Set(i, v)
	}
	return out, nil
}

func openUploadedFile(w http.ResponseWriter, r *http.Request) (ingest.RowReader, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, false
	}
	file, header, err := r.FormFile("archivo")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "missing uploaded file field \"archivo\"")
		return nil, false
	}
	// The reader consumes the file within this request; mux handlers close
	// multipart files when the request ends.
	rows, err := tabular.Open(header.Filename, file)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return rows, true
}

func summaryResponse(s *ingest.Summary) map[string]any {
	return map[string]any{
		"created":    s.Created,
		"updated":    s.Updated,
		"row_errors": rowErrorsResponse(s.RowErrors),
	}
}

func rowErrorsResponse(rowErrors []ingest.RowError) []map[string]any {
	out := make([]map[string]any, len(rowErrors))
	for i, re := range rowErrors {
		out[i] = map[string]any{"row": re.Row, "error": re.Err.Error()}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses. Validation failures
// carry every violation so the caller can report all problems in one pass.
func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		violations := make([]string, len(verr.Violations))
		for i, v := range verr.Violations {
			violations[i] = v.Error()
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "factor validation failed",
			"violations": violations,
		})
		return
	}

	var malformed *domain.MalformedNumberError
	var missing *domain.MissingColumnError
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnknownBrokerScope):
		writeErrorMessage(w, http.StatusForbidden, err.Error())
	case errors.As(err, &malformed), errors.As(err, &missing),
		errors.Is(err, tabular.ErrUnsupportedFile):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	default:
		writeErrorMessage(w, http.StatusInternalServerError, err.Error())
	}
}
