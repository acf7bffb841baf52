package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"campusledger/internal/core"
	"campusledger/internal/log"
)

type fakeData struct {
	user      string
	userErr   error
	txs       []core.Transaction
	summary   []core.SummaryRow
	loadErr   error
	ents      []core.Entitlement
	refreshed bool
	pingErr   error
}

func (f *fakeData) CurrentUser(ctx context.Context) (string, error) { return f.user, f.userErr }
func (f *fakeData) Load(ctx context.Context) ([]core.Transaction, []core.SummaryRow, error) {
	return f.txs, f.summary, f.loadErr
}
func (f *fakeData) Entitlements(ctx context.Context, username string) ([]core.Entitlement, error) {
	return f.ents, nil
}
func (f *fakeData) Refresh(ctx context.Context)    { f.refreshed = true }
func (f *fakeData) Ping(ctx context.Context) error { return f.pingErr }

type fakeSessions struct {
	stored map[string]core.Selection
	err    error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{stored: make(map[string]core.Selection)}
}

func (f *fakeSessions) Selection(ctx context.Context, username string) (core.Selection, bool, error) {
	if f.err != nil {
		return core.Selection{}, false, f.err
	}
	sel, ok := f.stored[username]
	return sel, ok, nil
}

func (f *fakeSessions) Save(ctx context.Context, username string, sel core.Selection) error {
	if f.err != nil {
		return f.err
	}
	f.stored[username] = sel
	return nil
}

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func tx(dept, cat string, year, month, day int, amount string) core.Transaction {
	return core.Transaction{
		DepartmentName:  dept,
		DepartmentCode:  strings.ToUpper(dept[:3]),
		TransactionDate: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
		Category:        cat,
		Amount:          decimal.RequireFromString(amount),
		FiscalYear:      year,
		FiscalMonth:     month,
	}
}

func testServer(data *fakeData, sessions *fakeSessions) *Server {
	return NewServer(":0", "readonly", data, sessions, testLogger())
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestDashboardPage(t *testing.T) {
	data := &fakeData{
		user: "marketing_director",
		txs: []core.Transaction{
			tx("Marketing", "travel", 2024, 1, 15, "100.00"),
		},
		summary: []core.SummaryRow{{
			DepartmentName: "Marketing",
			FiscalYear:     2024,
			FiscalMonth:    1,
			Category:       "travel",
			TotalAmount:    decimal.RequireFromString("100.00"),
			Count:          1234,
		}},
		ents: []core.Entitlement{{AccessLevel: "department", DepartmentName: "Marketing"}},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"marketing_director", "Marketing", "travel", "2024", "1,234"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestDashboardUnknownPath(t *testing.T) {
	s := testServer(&fakeData{user: "admin"}, newFakeSessions())
	defer s.Shutdown(context.Background())

	if rec := get(t, s, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMetricsPartial(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs: []core.Transaction{
			tx("Marketing", "travel", 2024, 1, 15, "1000.00"),
			tx("Marketing", "travel", 2024, 2, 10, "500.00"),
		},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "$1,500.00") {
		t.Errorf("metrics missing total, body = %s", rec.Body.String())
	}
}

func TestMetricsLoadErrorRendersErrorPartial(t *testing.T) {
	data := &fakeData{user: "admin", loadErr: errors.New("connection refused")}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Error loading data") {
		t.Errorf("expected error partial, body = %s", rec.Body.String())
	}
}

func TestPartialDegenerateSelectionPrompt(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs:  []core.Transaction{tx("Marketing", "travel", 2024, 1, 15, "100.00")},
	}
	sessions := newFakeSessions()
	sessions.stored["admin"] = core.Selection{
		Years:      nil,
		Categories: []string{"travel"},
		Department: core.AllDepartments,
	}
	s := testServer(data, sessions)
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/trend")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Select at least one fiscal year") {
		t.Errorf("expected corrective prompt, body = %s", rec.Body.String())
	}
}

func TestDepartmentsPartialOmittedForSingleDepartment(t *testing.T) {
	data := &fakeData{
		user: "marketing_director",
		txs:  []core.Transaction{tx("Marketing", "travel", 2024, 1, 15, "100.00")},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/departments")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestDepartmentsPartialRendersComparison(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs: []core.Transaction{
			tx("Marketing", "travel", 2024, 1, 15, "100.00"),
			tx("Biology", "travel", 2024, 1, 20, "250.00"),
		},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/departments")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Marketing", "Biology", "FY 2024"} {
		if !strings.Contains(body, want) {
			t.Errorf("comparison missing %q", want)
		}
	}
}

func TestInsightsPartial(t *testing.T) {
	data := &fakeData{
		user: "marketing_director",
		txs: []core.Transaction{
			tx("Marketing", "travel", 2023, 3, 1, "1000.00"),
			tx("Marketing", "travel", 2024, 3, 1, "1600.00"),
		},
	}
	sessions := newFakeSessions()
	sessions.stored["marketing_director"] = core.Selection{
		Years:      []int{2023, 2024},
		Categories: []string{"travel"},
		Department: "Marketing",
	}
	s := testServer(data, sessions)
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/insights?category=travel")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	// html/template escapes the leading plus sign.
	if !strings.Contains(body, "&#43;60.0%") {
		t.Errorf("expected growth figure, body = %s", body)
	}
	if !strings.Contains(body, "$2,600.00") {
		t.Errorf("expected category total, body = %s", body)
	}
}

func TestInsightsPartialAllDepartments(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs: []core.Transaction{
			tx("Marketing", "travel", 2024, 1, 15, "100.00"),
			tx("Biology", "travel", 2024, 2, 10, "300.00"),
		},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/insights")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Biology") || !strings.Contains(body, "Marketing") {
		t.Errorf("expected per-department series, body = %s", body)
	}
	if !strings.Contains(body, "Biology ($300.00)") {
		t.Errorf("expected top department line, body = %s", body)
	}
}

func TestRecentPartialCapped(t *testing.T) {
	data := &fakeData{user: "admin"}
	for day := 1; day <= 25; day++ {
		data.txs = append(data.txs, tx("Marketing", "travel", 2024, 1, day, "10.00"))
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/recent")
	body := rec.Body.String()
	if !strings.Contains(body, "2024-01-25") {
		t.Error("most recent transaction missing")
	}
	if strings.Contains(body, "2024-01-05") {
		t.Error("table should cap at 20 most recent rows")
	}
}

func TestTransactionsPartialDefaultLimit(t *testing.T) {
	data := &fakeData{user: "admin"}
	for i := 0; i < 60; i++ {
		data.txs = append(data.txs, tx("Marketing", "travel", 2024, 1+i%12, 1+i%28, "10.00"))
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/transactions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Showing 50 of 60 transactions") {
		t.Errorf("expected default 50-row cap, body = %s", body)
	}
	if got := strings.Count(body, "<td>Marketing</td>"); got != 50 {
		t.Errorf("rows rendered = %d, want 50", got)
	}
}

func TestTransactionsPartialShowAll(t *testing.T) {
	data := &fakeData{user: "admin"}
	for i := 0; i < 60; i++ {
		data.txs = append(data.txs, tx("Marketing", "travel", 2024, 1+i%12, 1+i%28, "10.00"))
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/transactions?limit=all")
	body := rec.Body.String()
	if !strings.Contains(body, "Showing 60 of 60 transactions") {
		t.Errorf("expected every row, body = %s", body)
	}
}

func TestTransactionsPartialSortAmountHighest(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs: []core.Transaction{
			tx("Marketing", "travel", 2024, 1, 10, "50.00"),
			tx("Marketing", "travel", 2024, 2, 10, "900.00"),
			tx("Marketing", "travel", 2024, 3, 10, "200.00"),
		},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/transactions?sort=amount_desc&limit=1")
	body := rec.Body.String()
	if !strings.Contains(body, "$900.00") {
		t.Errorf("expected highest amount first, body = %s", body)
	}
	if strings.Contains(body, "$50.00") {
		t.Errorf("limit should drop the lower amounts, body = %s", body)
	}
}

func TestTransactionsPartialSortDateOldest(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs: []core.Transaction{
			tx("Marketing", "travel", 2024, 3, 10, "10.00"),
			tx("Marketing", "travel", 2023, 1, 5, "20.00"),
		},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/transactions?sort=date_asc&limit=1")
	if !strings.Contains(rec.Body.String(), "2023-01-05") {
		t.Errorf("expected oldest transaction first, body = %s", rec.Body.String())
	}
}

func TestInsightsPartialSpendingAlert(t *testing.T) {
	data := &fakeData{
		user: "marketing_director",
		txs: []core.Transaction{
			tx("Marketing", "software subscriptions", 2023, 3, 1, "1000.00"),
			tx("Marketing", "software subscriptions", 2024, 3, 1, "2000.00"),
		},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/ui/insights")
	body := rec.Body.String()
	if !strings.Contains(body, "Marketing software subscriptions spending is up 100.0% in FY 2024") {
		t.Errorf("expected spending alert, body = %s", body)
	}
}

func TestInsightsPartialNoAlertBelowThreshold(t *testing.T) {
	data := &fakeData{
		user: "marketing_director",
		txs: []core.Transaction{
			tx("Marketing", "travel", 2023, 3, 1, "1000.00"),
			tx("Marketing", "travel", 2024, 3, 1, "1100.00"),
		},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	body := get(t, s, "/ui/insights").Body.String()
	if strings.Contains(body, "spending is up") {
		t.Errorf("10%% growth should not raise an alert, body = %s", body)
	}
}

func TestInsightsPartialDefaultsToSoftwareSubscriptions(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs: []core.Transaction{
			tx("Marketing", "equipment", 2024, 1, 10, "100.00"),
			tx("Marketing", "software subscriptions", 2024, 2, 10, "200.00"),
			tx("Marketing", "travel", 2024, 3, 10, "300.00"),
		},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	body := get(t, s, "/ui/insights").Body.String()
	if !strings.Contains(body, "software subscriptions Deep Dive") {
		t.Errorf("deep dive should open on software subscriptions, body = %s", body)
	}
}

func TestSaveSelection(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs:  []core.Transaction{tx("Marketing", "travel", 2024, 1, 15, "100.00")},
	}
	sessions := newFakeSessions()
	s := testServer(data, sessions)
	defer s.Shutdown(context.Background())

	form := url.Values{
		"years":      {"2024", "2023", "2024"},
		"categories": {"travel", "equipment"},
		"department": {"Marketing"},
	}
	rec := postForm(t, s, "/selection", form)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("HX-Trigger") != "selection:changed" {
		t.Errorf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}

	sel, ok := sessions.stored["admin"]
	if !ok {
		t.Fatal("selection not stored")
	}
	if len(sel.Years) != 2 || sel.Years[0] != 2023 || sel.Years[1] != 2024 {
		t.Errorf("stored years = %v, want deduped sorted [2023 2024]", sel.Years)
	}
	if sel.Department != "Marketing" {
		t.Errorf("stored department = %q", sel.Department)
	}
}

func TestSaveSelectionRequiresPost(t *testing.T) {
	s := testServer(&fakeData{user: "admin"}, newFakeSessions())
	defer s.Shutdown(context.Background())

	if rec := get(t, s, "/selection"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRefreshInvalidatesCache(t *testing.T) {
	data := &fakeData{user: "admin"}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := postForm(t, s, "/refresh", url.Values{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !data.refreshed {
		t.Error("refresh did not reach the data source")
	}
	if rec.Header().Get("HX-Trigger") != "data:refreshed" {
		t.Errorf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}
}

func TestExportCSV(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs:  []core.Transaction{tx("Marketing", "travel", 2024, 1, 15, "100.00")},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/export/csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "finance_data_admin_") {
		t.Errorf("Content-Disposition = %q", got)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "department_name,") {
		t.Errorf("csv missing header, body = %s", body)
	}
	if !strings.Contains(body, "Marketing,MAR,2024-01-15,travel,100,") {
		t.Errorf("csv missing row, body = %s", body)
	}
}

func TestExportCSVDegenerateSelectionHeaderOnly(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs:  []core.Transaction{tx("Marketing", "travel", 2024, 1, 15, "100.00")},
	}
	sessions := newFakeSessions()
	sessions.stored["admin"] = core.Selection{Department: core.AllDepartments}
	s := testServer(data, sessions)
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/export/csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 1 {
		t.Errorf("expected header-only export, got %d lines", len(lines))
	}
}

func TestExportReport(t *testing.T) {
	data := &fakeData{
		user: "admin",
		txs: []core.Transaction{
			tx("Marketing", "travel", 2024, 1, 15, "100.00"),
			tx("Biology", "travel", 2024, 2, 10, "300.00"),
		},
	}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/export/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "complete_dashboard_admin_") {
		t.Errorf("Content-Disposition = %q", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "University Finance Dashboard Report") {
		t.Error("report missing title")
	}
	if !strings.Contains(body, "Generated for admin") {
		t.Error("report missing user context")
	}
}

func TestCurrentUserFallback(t *testing.T) {
	data := &fakeData{userErr: errors.New("no session")}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	rec := get(t, s, "/")
	if !strings.Contains(rec.Body.String(), "readonly") {
		t.Error("expected fallback user on identity failure")
	}
}

func TestReadyz(t *testing.T) {
	data := &fakeData{user: "admin"}
	s := testServer(data, newFakeSessions())
	defer s.Shutdown(context.Background())

	if rec := get(t, s, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	data.pingErr = errors.New("down")
	if rec := get(t, s, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d unexpectedly limited", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request 61 should be limited")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("different client should not be limited")
	}
}
