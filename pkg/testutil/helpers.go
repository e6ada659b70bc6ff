// Package testutil provides common utility functions for testing, including
// a fake sales backend served over httptest.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/iwvelando/top-planner/pkg/constants"
)

// SampleKPIs is a market dashboard KPI payload.
const SampleKPIs = `{
  "total_units": 1250,
  "total_projects": 14,
  "avg_price": 3450000,
  "avg_psm": 21500,
  "avg_bua": 160.5,
  "avg_down_payment": 10,
  "total_developers": 6,
  "total_locations": 4
}`

// SampleCharts is a market dashboard chart payload.
const SampleCharts = `{
  "price_by_asset": [{"asset_type": "Residential", "avg_price": 3000000}, {"asset_type": "Commercial", "avg_price": 5200000}],
  "units_by_developer": [{"developer_name": "Acme", "count": 700}, {"developer_name": "Nile", "count": 550}],
  "price_vs_bua": [
    {"asset_type": "Residential", "bua": 120, "unit_price": 2500000},
    {"asset_type": "Commercial", "bua": 80, "unit_price": 4000000},
    {"asset_type": "Residential", "bua": 200, "unit_price": 4100000}
  ],
  "units_by_location": [{"location": "New Cairo", "count": 900}, {"location": "Sheikh Zayed", "count": 350}],
  "unit_type_distribution": [{"unit_type": "Apartment", "count": 1000}, {"unit_type": "Villa", "count": 250}],
  "monthly_trends": [{"month": "2026-01", "count": 40, "avg_price": 3100000}, {"month": "2026-02", "count": 55, "avg_price": 3300000}]
}`

// SampleExport is a market dashboard export payload.
const SampleExport = `{"data": [
  {"unit_code": "A-101", "developer": "Acme", "price": 2500000},
  {"unit_code": "B-7", "developer": "Nile \"East\"", "price": 4000000}
]}`

// SampleUnits is a company units payload. Numbers arrive in mixed shapes.
const SampleUnits = `{"units": [
  {"project": "Palm", "unit_type": "Apartment", "status": "Contracted", "area_range": "100-150", "gross_area": "120", "sales_value": 3000000, "psm": 25000, "reservation_date": "2026-02-10"},
  {"project": "Palm", "unit_type": "Villa", "status": "Available", "area_range": "200-250", "gross_area": 220, "sales_value": "5500000", "psm": "25000", "reservation_date": ""},
  {"project": "Oasis", "unit_type": "Apartment", "status": "Contracted", "area_range": "100-150", "gross_area": 140, "sales_value": 2800000, "psm": 20000, "reservation_date": "2026-01-20T10:00:00Z"},
  {"project": "Oasis", "unit_type": "Apartment", "status": "", "area_range": "", "gross_area": null, "sales_value": "n/a", "psm": 0, "reservation_date": "2026-02-01"}
]}`

// SampleCalculation is an installment recalculation payload for a plan with
// four quarterly installments and a 10% down payment.
const SampleCalculation = `{
  "price_with_interest": 1100000,
  "new_npv": 0.9523,
  "percentage_change": 0.1,
  "calculated_pmt_percentages": {"1": 0.25, "2": 0.25, "3": 0.25, "4": 0.15},
  "delivery_payment_index": 3,
  "maintenance_payments": [0, 0, 50000, 0],
  "gas_payments": [0, 0, 0, 0],
  "maintenance": 50000,
  "gas_fees": 0,
  "dp1": 10,
  "dp2": 0,
  "new_base_dp": 10,
  "contract_date": "2029-01-01",
  "additional_discount_var": 0
}`

// Backend is a fake sales backend.
type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	kpis        string
	charts      string
	export      string
	units       map[string]string
	calculation func(fields map[string]string) (int, string)
	submissions []Submission
	calls       map[string]int
	queries     map[string]url.Values
}

// Submission is one multipart submission received by the fake backend.
type Submission struct {
	Fields  map[string]string
	Headers http.Header
}

// NewBackend starts a fake backend serving the sample payloads. The server
// is closed when the test finishes.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		kpis:   SampleKPIs,
		charts: SampleCharts,
		export: SampleExport,
		units:  map[string]string{},
		calculation: func(map[string]string) (int, string) {
			return http.StatusOK, SampleCalculation
		},
		calls:   map[string]int{},
		queries: map[string]url.Values{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(constants.KPIsPath, b.serveStatic(func() string { return b.kpis }))
	mux.HandleFunc(constants.ChartsPath, b.serveStatic(func() string { return b.charts }))
	mux.HandleFunc(constants.ExportPath, b.serveStatic(func() string { return b.export }))
	mux.HandleFunc(constants.CompanyUnitsPath, b.serveUnits)
	mux.HandleFunc(constants.DefaultSubmitPath, b.serveCalculation)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the fake backend.
func (b *Backend) URL() string {
	return b.Server.URL
}

// SetKPIs replaces the KPI payload.
func (b *Backend) SetKPIs(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kpis = body
}

// SetCharts replaces the chart payload.
func (b *Backend) SetCharts(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.charts = body
}

// SetUnits registers the units payload returned for a company.
func (b *Backend) SetUnits(companyID, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.units[companyID] = body
}

// SetCalculation replaces the recalculation handler.
func (b *Backend) SetCalculation(fn func(fields map[string]string) (int, string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calculation = fn
}

// Calls returns how many requests a path received.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// Submissions returns a copy of every recalculation submission received.
func (b *Backend) Submissions() []Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Submission(nil), b.submissions...)
}

// LastSubmission returns the most recent submission, or nil.
func (b *Backend) LastSubmission() *Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.submissions) == 0 {
		return nil
	}
	last := b.submissions[len(b.submissions)-1]
	return &last
}

// LastQuery returns the query of the most recent request to path.
func (b *Backend) LastQuery(path string) url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[path]
}

func (b *Backend) count(r *http.Request) {
	b.mu.Lock()
	b.calls[r.URL.Path]++
	b.queries[r.URL.Path] = r.URL.Query()
	b.mu.Unlock()
}

func (b *Backend) serveStatic(body func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.count(r)
		b.mu.Lock()
		payload := body()
		b.mu.Unlock()
		writeRaw(w, http.StatusOK, payload)
	}
}

func (b *Backend) serveUnits(w http.ResponseWriter, r *http.Request) {
	b.count(r)
	companyID := r.URL.Query().Get("company_id")

	b.mu.Lock()
	payload, ok := b.units[companyID]
	b.mu.Unlock()
	if !ok {
		payload = `{"units": []}`
	}
	writeRaw(w, http.StatusOK, payload)
}

func (b *Backend) serveCalculation(w http.ResponseWriter, r *http.Request) {
	b.count(r)
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, fmt.Sprintf("bad multipart body: %v", err), http.StatusBadRequest)
		return
	}

	fields := make(map[string]string, len(r.MultipartForm.Value))
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	b.mu.Lock()
	b.submissions = append(b.submissions, Submission{Fields: fields, Headers: r.Header.Clone()})
	handler := b.calculation
	b.mu.Unlock()

	status, body := handler(fields)
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
