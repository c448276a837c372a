// Package httpapi is the JSON transport over the record and ingestion
// services. It is deliberately thin: request decoding, broker-scope
// resolution and status mapping only — no domain logic lives here.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nuamhub/taxqual-backend/internal/domain"
	"github.com/nuamhub/taxqual-backend/internal/usecase/ingest"
	"github.com/nuamhub/taxqual-backend/internal/usecase/records"
)

// NewRouter builds the full route table. Every /api/v1 route sits behind
// token auth and broker-scope resolution; /healthz does not.
func NewRouter(recordsSvc *records.Service, ingestionSvc *ingest.Service, brokers domain.BrokerRepository, apiToken string) *mux.Router {
	h := NewHandler(recordsSvc, ingestionSvc)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(TokenAuth(apiToken))
	api.Use(BrokerScope(brokers))

	api.HandleFunc("/records", h.ListRecords).Methods(http.MethodGet)
	api.HandleFunc("/records", h.CreateRecord).Methods(http.MethodPost)
	api.HandleFunc("/records/{id}", h.GetRecord).Methods(http.MethodGet)
	api.HandleFunc("/records/{id}", h.UpdateRecord).Methods(http.MethodPut)
	api.HandleFunc("/records/{id}", h.DeleteRecord).Methods(http.MethodDelete)
	api.HandleFunc("/records/{id}/amounts", h.ComputeAmounts).Methods(http.MethodPost)
	api.HandleFunc("/records/{id}/factors", h.SaveFactors).Methods(http.MethodPost)

	api.HandleFunc("/uploads/factors", h.UploadFactors).Methods(http.MethodPost)
	api.HandleFunc("/uploads/amounts", h.UploadAmounts).Methods(http.MethodPost)
	api.HandleFunc("/uploads/preview", h.PreviewUpload).Methods(http.MethodPost)

	api.HandleFunc("/factor-names", h.FactorNames).Methods(http.MethodGet)

	return r
}
