//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuamhub/taxqual-backend/internal/adapter/repository/postgres"
	"github.com/nuamhub/taxqual-backend/internal/domain"
)

var (
	db         *postgres.DB
	baseURL    string
	apiToken   string
	testUserID uuid.UUID
	testBroker *domain.Broker
)

// TestMain sets up the test environment
func TestMain(m *testing.M) {
	ctx := context.Background()

	// 1. Connect to Database
	dbConnStr := getDBConnectionString()
	var err error
	db, err = postgres.NewDB(dbConnStr)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()

	// 2. Locate the HTTP server
	baseURL = getAPIBaseURL()
	apiToken = getAPIToken()

	// 3. Self-Healing Setup: Create the test broker and its user link if missing
	if err := setupTestBroker(ctx, db); err != nil {
		panic(fmt.Sprintf("Failed to setup test broker: %v", err))
	}

	// Run tests
	code := m.Run()

	os.Exit(code)
}

// setupTestBroker ensures an active broker with a linked user exists
func setupTestBroker(ctx context.Context, db *postgres.DB) error {
	brokerRepo := postgres.NewBrokerRepository(db)

	const code = "ITEST"
	broker, err := brokerRepo.GetByCode(ctx, code)
	if err == nil {
		if broker.UserID == nil {
			return fmt.Errorf("broker %s has no linked user", code)
		}
		testBroker = broker
		testUserID = *broker.UserID
		return nil
	}
	if err != domain.ErrBrokerNotFound {
		return fmt.Errorf("failed to check broker existence: %w", err)
	}

	testUserID = uuid.New()
	testBroker = &domain.Broker{
		ID:     uuid.New(),
		Name:   "Integration Test Broker",
		Code:   code,
		Active: true,
		UserID: &testUserID,
	}
	if err := testBroker.Validate(); err != nil {
		return fmt.Errorf("broker validation failed: %w", err)
	}
	if err := brokerRepo.Create(ctx, testBroker); err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}
	return nil
}

// doRequest sends an authenticated request scoped to the test broker's user
func doRequest(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, baseURL+path, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", apiToken)
	req.Header.Set("X-User-ID", testUserID.String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func uploadCSV(t *testing.T, path, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("archivo", "factores.csv")
	require.NoError(t, err)
	_, err = io.Copy(fw, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return doRequest(t, http.MethodPost, path, &buf, mw.FormDataContentType())
}

func deleteRecordsFor(t *testing.T, instrument string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`DELETE FROM qualification_records WHERE broker_id = $1 AND instrument = $2`,
		testBroker.ID, instrument)
	require.NoError(t, err)
}

func getDBConnectionString() string {
	connStr := os.Getenv("DB_CONN_STR")
	if connStr != "" {
		return connStr
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("DB_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("DB_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("DB_NAME")
	if dbname == "" {
		dbname = "taxqual"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

func getAPIBaseURL() string {
	addr := os.Getenv("API_BASE_URL")
	if addr == "" {
		addr = "http://localhost:8080"
	}
	return addr
}

func getAPIToken() string {
	token := os.Getenv("API_TOKEN")
	if token == "" {
		token = "dev-token"
	}
	return token
}

// TestEndToEndFlow covers the full round trip: upload a factor file, verify
// the stored row, re-upload to hit the update branch, then read it back over
// the API.
func TestEndToEndFlow(t *testing.T) {
	ctx := context.Background()
	deleteRecordsFor(t, "ITESTACN")

	// Step A: upload a factor-mode file
	csv := "instrumento;fecha;secuencia;factor_8;factor_9\n" +
		"ITESTACN;2024-03-15;10001;0.4;0.6\n"
	resp := uploadCSV(t, "/api/v1/uploads/factors", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode, "Upload should succeed")

	var summary struct {
		Created   int   `json:"created"`
		Updated   int   `json:"updated"`
		RowErrors []any `json:"row_errors"`
	}
	decodeJSON(t, resp, &summary)
	assert.Equal(t, 1, summary.Created, "First upload should create the record")
	assert.Equal(t, 0, summary.Updated)
	assert.Empty(t, summary.RowErrors)

	// Step B: verify the row landed with the exact factor values
	var recordID uuid.UUID
	var factor8, factor9 string
	query := `
		SELECT id, factor_8, factor_9
		FROM qualification_records
		WHERE broker_id = $1 AND instrument = $2 AND date = $3
	`
	err := db.QueryRowContext(ctx, query, testBroker.ID, "ITESTACN", "2024-03-15").
		Scan(&recordID, &factor8, &factor9)
	require.NoError(t, err, "Should be able to query the uploaded record")

	f8, err := decimal.NewFromString(factor8)
	require.NoError(t, err)
	assert.True(t, f8.Equal(decimal.RequireFromString("0.4")), "factor_8 should match upload")
	f9, err := decimal.NewFromString(factor9)
	require.NoError(t, err)
	assert.True(t, f9.Equal(decimal.RequireFromString("0.6")), "factor_9 should match upload")

	// Step C: re-upload the same key with new values, must update in place
	csv = "instrumento;fecha;secuencia;factor_8;factor_9\n" +
		"ITESTACN;2024-03-15;20002;0.25;0.75\n"
	resp = uploadCSV(t, "/api/v1/uploads/factors", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &summary)
	assert.Equal(t, 0, summary.Created, "Second upload should hit the update branch")
	assert.Equal(t, 1, summary.Updated)

	var count int
	var sequence int
	countQuery := `
		SELECT COUNT(*), MAX(sequence)
		FROM qualification_records
		WHERE broker_id = $1 AND instrument = $2 AND date = $3
	`
	err = db.QueryRowContext(ctx, countQuery, testBroker.ID, "ITESTACN", "2024-03-15").
		Scan(&count, &sequence)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "Natural key must stay unique across uploads")
	assert.Equal(t, 20002, sequence, "Last upload's values should win")

	// Step D: read the record back over the API
	resp = doRequest(t, http.MethodGet, "/api/v1/records/"+recordID.String(), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec struct {
		Instrument  string            `json:"instrument"`
		EntrySource string            `json:"entry_source"`
		Factors     map[string]string `json:"factors"`
	}
	decodeJSON(t, resp, &rec)
	assert.Equal(t, "ITESTACN", rec.Instrument)
	assert.Equal(t, "FAC", rec.EntrySource)
	assert.Equal(t, "0.25000000", rec.Factors["factor_8"])
	assert.Equal(t, "0.75000000", rec.Factors["factor_9"])
}

// TestAmountUploadFlow verifies amount-mode ingestion normalizes into factors
func TestAmountUploadFlow(t *testing.T) {
	ctx := context.Background()
	deleteRecordsFor(t, "ITESTBCI")

	csv := "instrumento;fecha;monto_8;monto_9\n" +
		"ITESTBCI;2024-03-15;100;200\n"
	resp := uploadCSV(t, "/api/v1/uploads/amounts", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary struct {
		Created int `json:"created"`
	}
	decodeJSON(t, resp, &summary)
	require.Equal(t, 1, summary.Created)

	var factor8, factor9, entrySource string
	query := `
		SELECT factor_8, factor_9, entry_source
		FROM qualification_records
		WHERE broker_id = $1 AND instrument = $2 AND date = $3
	`
	err := db.QueryRowContext(ctx, query, testBroker.ID, "ITESTBCI", "2024-03-15").
		Scan(&factor8, &factor9, &entrySource)
	require.NoError(t, err)

	f8, err := decimal.NewFromString(factor8)
	require.NoError(t, err)
	assert.True(t, f8.Equal(decimal.RequireFromString("0.33333333")),
		"factor_8 should be 100/300 truncated to 8 digits, got %s", factor8)
	f9, err := decimal.NewFromString(factor9)
	require.NoError(t, err)
	assert.True(t, f9.Equal(decimal.RequireFromString("0.66666666")),
		"factor_9 should be 200/300 truncated to 8 digits, got %s", factor9)
	assert.Equal(t, "MON", entrySource)
}

// TestNegativeScenarios tests error handling for invalid inputs
func TestNegativeScenarios(t *testing.T) {
	t.Run("MissingToken", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/records", nil)
		require.NoError(t, err)
		req.Header.Set("X-User-ID", testUserID.String())

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("UnlinkedUser", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/records", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", apiToken)
		req.Header.Set("X-User-ID", uuid.NewString())

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("FactorSumViolationIsRowLocal", func(t *testing.T) {
		deleteRecordsFor(t, "ITESTCAP")
		deleteRecordsFor(t, "ITESTBAD")

		csv := "instrumento;fecha;factor_8;factor_9\n" +
			"ITESTCAP;2024-03-15;0.4;0.6\n" +
			"ITESTBAD;2024-03-15;0.6;0.5\n"
		resp := uploadCSV(t, "/api/v1/uploads/factors", csv)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var summary struct {
			Created   int `json:"created"`
			RowErrors []struct {
				Row int `json:"row"`
			} `json:"row_errors"`
		}
		decodeJSON(t, resp, &summary)
		assert.Equal(t, 1, summary.Created, "The clean row must still commit")
		require.Len(t, summary.RowErrors, 1)
		assert.Equal(t, 2, summary.RowErrors[0].Row)

		// The bad row must not exist in storage
		var count int
		err := db.QueryRowContext(context.Background(),
			`SELECT COUNT(*) FROM qualification_records WHERE broker_id = $1 AND instrument = $2`,
			testBroker.ID, "ITESTBAD").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("MalformedRecordID", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, "/api/v1/records/not-a-uuid", nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("UnknownRecordID", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, "/api/v1/records/"+uuid.NewString(), nil, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// TestManualFlow walks the maintainer's three steps over the API: create with
// basic fields, compute factors from amounts, save the factors.
func TestManualFlow(t *testing.T) {
	ctx := context.Background()
	deleteRecordsFor(t, "ITESTMAN")

	// Step 1: create with basic fields only
	body := `{"instrument": "ITESTMAN", "date": "2024-03-15", "sequence": 10001, "company_type": "A", "historical_value": "1500,50"}`
	resp := doRequest(t, http.MethodPost, "/api/v1/records", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID          string `json:"id"`
		EntrySource string `json:"entry_source"`
	}
	decodeJSON(t, resp, &created)
	assert.Equal(t, "MAN", created.EntrySource)
	recordID, err := uuid.Parse(created.ID)
	require.NoError(t, err)

	// Step 2: compute factors from amounts, nothing persists yet
	body = `{"monto_8": "100", "monto_9": "300"}`
	resp = doRequest(t, http.MethodPost, "/api/v1/records/"+recordID.String()+"/amounts", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var computed struct {
		Factors map[string]string `json:"factors"`
	}
	decodeJSON(t, resp, &computed)
	assert.Equal(t, "0.25000000", computed.Factors["factor_8"])
	assert.Equal(t, "0.75000000", computed.Factors["factor_9"])

	var factor8 string
	err = db.QueryRowContext(ctx,
		`SELECT factor_8 FROM qualification_records WHERE id = $1`, recordID).Scan(&factor8)
	require.NoError(t, err)
	f8, err := decimal.NewFromString(factor8)
	require.NoError(t, err)
	assert.True(t, f8.IsZero(), "Compute must not persist, stored factor_8 is still zero")

	// Step 3: save the computed factors
	body = `{"factor_8": "0.25", "factor_9": "0.75"}`
	resp = doRequest(t, http.MethodPost, "/api/v1/records/"+recordID.String()+"/factors", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	err = db.QueryRowContext(ctx,
		`SELECT factor_8 FROM qualification_records WHERE id = $1`, recordID).Scan(&factor8)
	require.NoError(t, err)
	f8, err = decimal.NewFromString(factor8)
	require.NoError(t, err)
	assert.True(t, f8.Equal(decimal.RequireFromString("0.25")))
}
