package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labstock/internal/core"
	applog "labstock/internal/log"
	"labstock/internal/report"
	"labstock/internal/services"
	"labstock/internal/storage"
)

// fakeStore satisfies every store port with in-memory state.
type fakeStore struct {
	purchases []core.PurchaseRecord
	budgets   map[string]core.Budget
	prefs     map[string][]storage.WidgetPref
	nextID    int64
	pingErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		budgets: map[string]core.Budget{},
		prefs:   map[string][]storage.WidgetPref{},
	}
}

func (f *fakeStore) InsertPurchase(_ context.Context, p core.PurchaseRecord) (int64, error) {
	f.nextID++
	p.ID = f.nextID
	f.purchases = append(f.purchases, p)
	return p.ID, nil
}

func (f *fakeStore) InsertPurchases(ctx context.Context, records []core.PurchaseRecord) ([]int64, error) {
	ids := make([]int64, 0, len(records))
	for _, p := range records {
		id, _ := f.InsertPurchase(ctx, p)
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) FindPurchases(_ context.Context, q report.Query) ([]core.PurchaseRecord, error) {
	var out []core.PurchaseRecord
	for _, rec := range f.purchases {
		if q.OrgID != "" && rec.OrgID != q.OrgID {
			continue
		}
		if !q.Start.IsZero() && rec.Date.Time.Before(q.Start.Time) {
			continue
		}
		if !q.End.IsZero() && rec.Date.Time.After(q.End.Time) {
			continue
		}
		if q.Vendor != "" && rec.Vendor != q.Vendor {
			continue
		}
		if q.Category != "" && rec.Category != q.Category {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) GetBudget(_ context.Context, orgID, period string) (core.Budget, error) {
	b, ok := f.budgets[orgID+"/"+period]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %s/%s: %w", orgID, period, core.ErrNotFound)
	}
	return b, nil
}

func (f *fakeStore) UpsertBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	key := b.OrgID + "/" + b.Period
	if prev, ok := f.budgets[key]; ok {
		b.ID = prev.ID
	} else {
		f.nextID++
		b.ID = f.nextID
	}
	f.budgets[key] = b
	return b, nil
}

func (f *fakeStore) ListBudgets(_ context.Context, orgID string) ([]core.Budget, error) {
	var out []core.Budget
	for _, b := range f.budgets {
		if b.OrgID == orgID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) GetWidgetPrefs(_ context.Context, orgID, userID string) ([]storage.WidgetPref, error) {
	return f.prefs[orgID+"/"+userID], nil
}

func (f *fakeStore) PutWidgetPrefs(_ context.Context, orgID, userID string, prefs []storage.WidgetPref) error {
	f.prefs[orgID+"/"+userID] = prefs
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func testServer(t *testing.T, store *fakeStore) *Server {
	t.Helper()
	logger := applog.New(applog.DefaultConfig())
	reports := report.NewService(store, store).WithClock(func() time.Time {
		return time.Date(2025, time.July, 18, 10, 0, 0, 0, time.UTC)
	})
	purchases := services.NewPurchaseService(store, nil, logger)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 1000
	s := NewServer(cfg, reports, purchases, store, store, store, store, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func seedJuly(t *testing.T, store *fakeStore) {
	t.Helper()
	for i, cents := range []int64{100000000, 51600000} {
		_, err := store.InsertPurchase(context.Background(), core.PurchaseRecord{
			OrgID:     "org-1",
			Date:      core.NewDate(2025, 7, i+1),
			Vendor:    "BioLegend",
			Category:  core.CategoryReagent,
			ItemName:  "ELISA Kit",
			Quantity:  1,
			UnitPrice: core.Money{Cents: cents},
			Amount:    core.Money{Cents: cents},
			Currency:  "KRW",
			Source:    core.SourceImport,
		})
		require.NoError(t, err)
	}
}

func TestReportSummaryEndpoint(t *testing.T) {
	store := newFakeStore()
	seedJuly(t, store)
	s := testServer(t, store)

	rec := doJSON(t, s, http.MethodGet, "/api/reports/purchases?organizationId=org-1&period=month", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result core.AggregationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, int64(151600000), result.TotalAmount.Cents)
	assert.Equal(t, 2, result.ItemCount)
	assert.Equal(t, 1, result.VendorCount)
}

func TestReportSummaryRequiresOrg(t *testing.T) {
	s := testServer(t, newFakeStore())

	rec := doJSON(t, s, http.MethodGet, "/api/reports/purchases", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "organizationId")
}

func TestReportSummaryCacheInvalidation(t *testing.T) {
	store := newFakeStore()
	seedJuly(t, store)
	s := testServer(t, store)

	first := doJSON(t, s, http.MethodGet, "/api/reports/purchases?organizationId=org-1", nil)
	require.Equal(t, http.StatusOK, first.Code)

	create := doJSON(t, s, http.MethodPost, "/api/purchases", purchaseRequest{
		OrganizationID: "org-1",
		Date:           "2025-07-10",
		Vendor:         "Merck",
		ItemName:       "Methanol",
		Quantity:       1,
		UnitPrice:      "1000",
		Amount:         "1000",
		Currency:       "KRW",
	})
	require.Equal(t, http.StatusCreated, create.Code)

	second := doJSON(t, s, http.MethodGet, "/api/reports/purchases?organizationId=org-1", nil)
	require.Equal(t, http.StatusOK, second.Code)

	var result core.AggregationResult
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &result))
	assert.Equal(t, 3, result.ItemCount, "write invalidates the cached report")
}

func TestBudgetUsageEndpoint(t *testing.T) {
	store := newFakeStore()
	seedJuly(t, store)
	store.budgets["org-1/2025-07"] = core.Budget{
		ID: 99, OrgID: "org-1", Period: "2025-07",
		Amount: core.Money{Cents: 300000000}, Currency: "KRW",
	}
	s := testServer(t, store)

	rec := doJSON(t, s, http.MethodGet, "/api/reports/budget-usage?organizationId=org-1&period=2025-07", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var usage core.BudgetUsage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.Equal(t, 50.5, usage.UsageRate)
	assert.Equal(t, core.BudgetNormal, usage.Status)

	missing := doJSON(t, s, http.MethodGet, "/api/reports/budget-usage?organizationId=org-1&period=2030-01", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	bad := doJSON(t, s, http.MethodGet, "/api/reports/budget-usage?organizationId=org-1&period=july", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, bad.Code)
}

func TestCreatePurchaseValidation(t *testing.T) {
	s := testServer(t, newFakeStore())

	rec := doJSON(t, s, http.MethodPost, "/api/purchases", purchaseRequest{
		OrganizationID: "org-1",
		Date:           "2025-07-10",
		Vendor:         "",
		ItemName:       "Methanol",
		UnitPrice:      "1000",
		Amount:         "1000",
		Currency:       "KRW",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	malformed := httptest.NewRequest(http.MethodPost, "/api/purchases", strings.NewReader("{"))
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, malformed)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestImportEndpoint(t *testing.T) {
	store := newFakeStore()
	s := testServer(t, store)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("organizationId", "org-1"))
	fw, err := mw.CreateFormFile("file", "purchases.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Date,Vendor,Item,Quantity,Unit Price,Amount,Currency\n" +
		"2025-07-15,BioLegend,ELISA Kit,2,450000,900000,KRW\n" +
		"bad-date,BioLegend,Kit,1,1,1,KRW\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/purchases/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp importResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Imported)
	assert.Equal(t, 1, resp.Skipped)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 3, resp.Errors[0].Line)

	assert.Len(t, store.purchases, 1)
}

func TestImportEndpointMissingFile(t *testing.T) {
	s := testServer(t, newFakeStore())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("organizationId", "org-1"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/purchases/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	store := newFakeStore()
	seedJuly(t, store)
	s := testServer(t, store)

	rec := doJSON(t, s, http.MethodGet, "/api/purchases/export?organizationId=org-1&format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\xEF\xBB\xBF"))

	tsv := doJSON(t, s, http.MethodGet, "/api/purchases/export?organizationId=org-1&format=tsv", nil)
	require.Equal(t, http.StatusOK, tsv.Code)
	assert.Contains(t, tsv.Header().Get("Content-Type"), "tab-separated")
	assert.False(t, strings.HasPrefix(tsv.Body.String(), "\xEF\xBB\xBF"))

	bad := doJSON(t, s, http.MethodGet, "/api/purchases/export?organizationId=org-1&format=xlsx", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, bad.Code)
}

func TestBudgetEndpoints(t *testing.T) {
	store := newFakeStore()
	s := testServer(t, store)

	rec := doJSON(t, s, http.MethodPut, "/api/budgets", budgetRequest{
		OrganizationID: "org-1",
		Period:         "2025-07",
		Amount:         "3,000,000",
		Currency:       "krw",
		Label:          "July",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved budgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "3000000", saved.Amount)
	assert.Equal(t, "KRW", saved.Currency)

	list := doJSON(t, s, http.MethodGet, "/api/budgets?organizationId=org-1", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var budgets []budgetResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &budgets))
	assert.Len(t, budgets, 1)

	bad := doJSON(t, s, http.MethodPut, "/api/budgets", budgetRequest{
		OrganizationID: "org-1", Period: "July-2025", Amount: "1", Currency: "KRW",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, bad.Code)
}

func TestWidgetPrefEndpoints(t *testing.T) {
	s := testServer(t, newFakeStore())

	empty := doJSON(t, s, http.MethodGet, "/api/prefs/widgets?organizationId=org-1&userId=u-1", nil)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Equal(t, "[]", strings.TrimSpace(empty.Body.String()))

	put := doJSON(t, s, http.MethodPut, "/api/prefs/widgets?organizationId=org-1&userId=u-1", []storage.WidgetPref{
		{WidgetID: "monthly-trend", X: 0, Y: 0, W: 6, H: 4},
	})
	require.Equal(t, http.StatusOK, put.Code)

	got := doJSON(t, s, http.MethodGet, "/api/prefs/widgets?organizationId=org-1&userId=u-1", nil)
	require.Equal(t, http.StatusOK, got.Code)
	var prefs []storage.WidgetPref
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &prefs))
	require.Len(t, prefs, 1)
	assert.Equal(t, "monthly-trend", prefs[0].WidgetID)

	dup := doJSON(t, s, http.MethodPut, "/api/prefs/widgets?organizationId=org-1&userId=u-1", []storage.WidgetPref{
		{WidgetID: "a", W: 1, H: 1},
		{WidgetID: "a", W: 1, H: 1},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, dup.Code)

	bad := doJSON(t, s, http.MethodPut, "/api/prefs/widgets?organizationId=org-1&userId=u-1", []storage.WidgetPref{
		{WidgetID: "a", W: 0, H: 1},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, bad.Code)
}

func TestHealthEndpoints(t *testing.T) {
	store := newFakeStore()
	s := testServer(t, store)

	health := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, health.Code)

	ready := doJSON(t, s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, ready.Code)

	store.pingErr = fmt.Errorf("connection refused")
	down := doJSON(t, s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
}

func TestSecurityHeaders(t *testing.T) {
	s := testServer(t, newFakeStore())

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}
