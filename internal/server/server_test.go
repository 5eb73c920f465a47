package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"invoice-insights-service/internal/metrics"
	"invoice-insights-service/pkg/errors"
)

const testCSV = `Client Name,Invoice Reference,Date Invoiced,Invoice Amount,Paid Amount,Date Paid,Days To Pay
3,2021-001,2021-01-01,100.00,100.00,2021-01-10,9
3,2021-002,2021-02-01,200.00,150.00,2021-02-21,20
7,2021-003,2021-03-15,50.00,50.00,2021-03-16,1
`

type stubInsight struct {
	answer string
	err    error
	query  string
}

func (s *stubInsight) Generate(ctx context.Context, companyID, query string) (string, error) {
	s.query = query
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func newTestServer(t *testing.T, insight InsightGenerator) *Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "invoices_clean.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	ds, err := metrics.LoadDataset(path, nil)
	if err != nil {
		t.Fatalf("failed to load dataset: %v", err)
	}

	srv, err := New(DefaultConfig(), metrics.NewEngine(ds), insight)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func TestCompaniesEndpointEmptyDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	headerOnly := "Client Name,Invoice Reference,Date Invoiced,Invoice Amount,Paid Amount,Date Paid,Days To Pay\n"
	if err := os.WriteFile(path, []byte(headerOnly), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	ds, err := metrics.LoadDataset(path, nil)
	if err != nil {
		t.Fatalf("header-only file should load: %v", err)
	}

	srv, err := New(DefaultConfig(), metrics.NewEngine(ds), nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	rec := doRequest(t, srv, "GET", "/companies")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty JSON list, got %q", body)
	}
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCompaniesEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, "GET", "/companies")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var companies []string
	if err := json.Unmarshal(rec.Body.Bytes(), &companies); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(companies) != 2 || companies[0] != "company_3" || companies[1] != "company_7" {
		t.Errorf("expected [company_3 company_7], got %v", companies)
	}
}

func TestInvoicesEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, "GET", "/company/company_3/invoices")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(rows))
	}

	first := rows[0]
	if first["invoice_reference"] != "2021-001" {
		t.Errorf("expected earliest invoice first, got %v", first["invoice_reference"])
	}
	if first["date_invoiced"] != "2021-01-01" {
		t.Errorf("expected date 2021-01-01, got %v", first["date_invoiced"])
	}
	if first["days_to_pay"] != float64(9) {
		t.Errorf("expected 9 days, got %v", first["days_to_pay"])
	}
	if _, exists := first["client_name"]; exists {
		t.Error("invoice view should not expose client_name")
	}
}

func TestInvoicesEndpointUnknownCompany(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, "GET", "/company/company_99/invoices")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body["code"] != "company_not_found" {
		t.Errorf("expected company_not_found code, got %v", body["code"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, "GET", "/company/company_3/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	for _, key := range []string{
		"average_days_to_pay", "min_days_to_pay", "max_days_to_pay",
		"late_invoices", "monthly_totals", "weekly_totals", "annual_totals",
		"revenue_over_time", "seasonality", "late_definition",
	} {
		if _, exists := body[key]; !exists {
			t.Errorf("expected metrics field %q", key)
		}
	}

	if body["average_days_to_pay"] != 14.5 {
		t.Errorf("expected average 14.5, got %v", body["average_days_to_pay"])
	}

	monthly, ok := body["monthly_totals"].([]interface{})
	if !ok || len(monthly) != 2 {
		t.Fatalf("expected 2 monthly buckets, got %v", body["monthly_totals"])
	}
	bucket := monthly[0].(map[string]interface{})
	if bucket["month"] != "2021-01" {
		t.Errorf("expected month label key, got %v", bucket)
	}
	if bucket["invoice_total"] != "100" {
		t.Errorf("expected invoice_total 100, got %v", bucket["invoice_total"])
	}
}

func TestMetricsEndpointUnknownCompany(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, "GET", "/company/company_99/metrics")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestInsightEndpoint(t *testing.T) {
	stub := &stubInsight{answer: "They pay on time."}
	srv := newTestServer(t, stub)

	rec := doRequest(t, srv, "POST", "/client/company_3/insight?query=how+fast+do+they+pay")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["answer"] != "They pay on time." {
		t.Errorf("unexpected answer: %q", body["answer"])
	}
	if stub.query != "how fast do they pay" {
		t.Errorf("query not passed through, got %q", stub.query)
	}
}

func TestInsightEndpointMissingQuery(t *testing.T) {
	srv := newTestServer(t, &stubInsight{answer: "unused"})

	rec := doRequest(t, srv, "POST", "/client/company_3/insight")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestInsightEndpointDisabled(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, "POST", "/client/company_3/insight?query=anything")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when insight is disabled, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body["code"] != "missing_config" {
		t.Errorf("expected missing_config code, got %v", body["code"])
	}
}

func TestInsightEndpointGeneratorError(t *testing.T) {
	stub := &stubInsight{err: errors.NetworkError(errors.CodeTimeout, "openai chat completion", nil)}
	srv := newTestServer(t, stub)

	rec := doRequest(t, srv, "POST", "/client/company_3/insight?query=anything")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, "GET", "/companies")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard CORS origin, got %q", got)
	}

	rec = doRequest(t, srv, "OPTIONS", "/companies")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, "POST", "/companies")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestServerConfigValidate(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}

	config.Addr = ""
	if err := config.Validate(); err == nil {
		t.Error("expected error for empty address")
	}
}
