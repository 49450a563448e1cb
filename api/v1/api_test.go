package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf/circulation"
	"github.com/openshelf/openshelf/config"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/search"
	"github.com/openshelf/openshelf/store"
	"github.com/openshelf/openshelf/store/db"
	"github.com/openshelf/openshelf/worker"
)

func init() {
	config.Opts = config.GetDefaultOptions()
	config.Opts.LogLevel = "error"
	log.Logger = log.NewLogger()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	d, err := db.NewDB(t.TempDir() + "/test.db")
	require.NoError(t, err)
	require.NoError(t, d.Migrate(context.Background()))
	t.Cleanup(func() { d.Close() })

	s := store.NewStore(d)
	circulationService := circulation.NewService(s, worker.NewFineUpdatePool(s, 2), circulation.Config{
		LoanPeriodDays: 14,
		MaxActiveLoans: 3,
		DailyRate:      decimal.RequireFromString("0.25"),
	})

	router := mux.NewRouter()
	Server(router, s, search.NewService(s), circulationService)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp, decoded
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp, decoded
}

func TestCirculationEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := post(t, ts, "/api/v1/books/create",
		`{"isbn":"9780000000001","title":"First Book","authors":["An Author"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "First Book", body["title"])

	resp, body = post(t, ts, "/api/v1/borrower/create",
		`{"ssn":"123-45-6789","name":"Ada Lovelace","address":"100 Main St"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "ID000001", body["card_id"])

	resp, body = post(t, ts, "/api/v1/loans/checkout",
		`{"card_id":"ID000001","isbn":"9780000000001"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	loanID := body["loan_id"].(float64)
	require.Greater(t, loanID, 0.0)

	// Double checkout of the same copy conflicts.
	resp, body = post(t, ts, "/api/v1/loans/checkout",
		`{"card_id":"ID000001","isbn":"9780000000001"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "on loan")

	resp, _ = post(t, ts, "/api/v1/loans/checkin", `{"loan_id":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = post(t, ts, "/api/v1/loans/checkin", `{"loan_id":1}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// An on-time return leaves nothing to pay.
	resp, body = post(t, ts, "/api/v1/fines/pay/1", ``)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestCreateEndpointValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := post(t, ts, "/api/v1/books/create", `{"isbn":"123","title":"X"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = post(t, ts, "/api/v1/borrower/create", `{"ssn":"12345","name":"X","address":"Y"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, ts, "/api/v1/loans/checkout", `not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, ts, "/api/v1/loans/checkout", `{"card_id":"ID000009","isbn":"9780000000001"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := post(t, ts, "/api/v1/books/create",
		`{"isbn":"9780134190440","title":"The Go Programming Language","authors":["Alan Donovan"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = post(t, ts, "/api/v1/borrower/create",
		`{"ssn":"123-45-6789","name":"Ada Lovelace","address":"100 Main St"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = post(t, ts, "/api/v1/loans/checkout",
		`{"card_id":"ID000001","isbn":"9780134190440"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := get(t, ts, "/api/v1/books/search?query=go&page=1&limit=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["total"])
	assert.Equal(t, 1.0, body["page"])

	// Pagination is mandatory.
	resp, body = get(t, ts, "/api/v1/books/search?query=go")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, body = get(t, ts, "/api/v1/books/search?query=go&page=0&limit=10")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, body = get(t, ts, "/api/v1/books/search_with_loan?query=available:false&page=1&limit=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["total"])
	results := body["results"].([]any)
	pair := results[0].([]any)
	require.Len(t, pair, 2)
	assert.NotNil(t, pair[1])

	resp, body = get(t, ts, "/api/v1/loans/search_with_book?query=&page=1&limit=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results = body["results"].([]any)
	pair = results[0].([]any)
	loan := pair[0].(map[string]any)
	book := pair[1].(map[string]any)
	assert.Equal(t, "ID000001", loan["card_id"])
	assert.Equal(t, "The Go Programming Language", book["title"])

	resp, body = get(t, ts, "/api/v1/borrower/search_with_info?query=&page=1&limit=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results = body["results"].([]any)
	tuple := results[0].([]any)
	require.Len(t, tuple, 4)
	borrower := tuple[0].(map[string]any)
	assert.Equal(t, "Ada Lovelace", borrower["name"])
	assert.Equal(t, 1.0, tuple[1]) // active loans
	assert.Equal(t, 1.0, tuple[2]) // total loans

	resp, body = get(t, ts, "/api/v1/borrower/fines?card_id=ID000001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ID000001", body["card_id"])
}

func TestUpdateFinesEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := post(t, ts, "/api/v1/fines/update", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = post(t, ts, "/api/v1/fines/update", `{"date":"2024-03-20"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := post(t, ts, "/api/v1/fines/update", `{"date":"20-03-2024"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}
