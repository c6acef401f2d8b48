package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/metrics"
	"github.com/aamamaludin23/electronkasir/internal/service"
	"github.com/aamamaludin23/electronkasir/internal/store"
	"github.com/aamamaludin23/electronkasir/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded("admin123", "cashier123")
	svc := service.New(repo, service.StaticSettings{TaxRatePercent: 11, LowStockThreshold: 5, StoreName: "Toko Test"}, service.Options{})
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", store.NewUserDirectory(repo.Users()), nil)

	return New(svc, auth, Options{AllowedOrigin: "*", Metrics: metrics.New()})
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

type apiClient struct {
	t       *testing.T
	handler http.Handler
	token   string
	csrf    string
}

func newClient(t *testing.T, api *API, username string, password string) *apiClient {
	t.Helper()
	return &apiClient{
		t:       t,
		handler: api.Handler(),
		token:   login(t, api, username, password),
		csrf:    fetchCSRFToken(t, api),
	}
}

func (c *apiClient) do(method string, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-CSRF-Token", c.csrf)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "admin123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody[domain.LoginResponse](t, rec)
	if body.AccessToken == "" || body.Role != domain.RoleAdmin {
		t.Fatalf("unexpected login response %+v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrongpassword"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleItems_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleItems_ListAndBarcodeLookup(t *testing.T) {
	api := newTestAPI(t)
	client := newClient(t, api, "cashier", "cashier123")

	rec := client.do(http.MethodGet, "/api/v1/items?q=kopi", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	list := decodeBody[struct {
		Items []domain.Item `json:"items"`
	}](t, rec)
	if len(list.Items) != 1 || list.Items[0].ID != "item-kopi" {
		t.Fatalf("unexpected items %+v", list.Items)
	}

	rec = client.do(http.MethodGet, "/api/v1/items/barcode/8990001000028", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	found := decodeBody[struct {
		Item domain.Item      `json:"item"`
		Tier domain.PriceTier `json:"tier"`
	}](t, rec)
	if found.Item.ID != "item-kopi" || found.Tier.UnitName != "box" {
		t.Fatalf("unexpected barcode match %+v", found)
	}

	rec = client.do(http.MethodGet, "/api/v1/items/barcode/000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown barcode, got %d", rec.Code)
	}
}

func TestCashierCannotSaveItems(t *testing.T) {
	api := newTestAPI(t)
	client := newClient(t, api, "cashier", "cashier123")

	rec := client.do(http.MethodPost, "/api/v1/items", domain.Item{
		Name:     "Teh",
		CostUnit: "pcs",
		Tiers:    []domain.PriceTier{{UnitName: "pcs", Price: 4000, ConversionFactor: 1}},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = client.do(http.MethodPost, "/api/v1/stock/receive", domain.StockInRequest{ItemID: "item-air"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stock receive, got %d", rec.Code)
	}
}

func TestQuoteAppliesWholesaleAndTax(t *testing.T) {
	api := newTestAPI(t)
	client := newClient(t, api, "cashier", "cashier123")

	rec := client.do(http.MethodPost, "/api/v1/cart/quote", map[string]any{
		"lines": []domain.CartLineRequest{{ItemID: "item-kopi", TierName: "pcs", Quantity: 10}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody[struct {
		Quote struct {
			Subtotal int64 `json:"subtotal"`
			Tax      int64 `json:"tax"`
			Total    int64 `json:"total"`
		} `json:"quote"`
	}](t, rec)
	if body.Quote.Subtotal != 200000 || body.Quote.Tax != 22000 || body.Quote.Total != 222000 {
		t.Fatalf("unexpected quote %+v", body.Quote)
	}
}

func TestCommitWithoutShiftReturnsConflict(t *testing.T) {
	api := newTestAPI(t)
	client := newClient(t, api, "cashier", "cashier123")

	rec := client.do(http.MethodPost, "/api/v1/transactions", domain.CommitRequest{
		Lines:         []domain.CartLineRequest{{ItemID: "item-kopi", TierName: "pcs", Quantity: 1}},
		PaymentMethod: domain.PaymentEMoney,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestSaleAndShiftFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	client := newClient(t, api, "cashier", "cashier123")

	rec := client.do(http.MethodPost, "/api/v1/shifts/start", domain.StartShiftRequest{CashierName: "kasir", OpeningBalance: 100000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start shift: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	started := decodeBody[struct {
		Shift domain.Shift `json:"shift"`
	}](t, rec)

	rec = client.do(http.MethodPost, "/api/v1/transactions", domain.CommitRequest{
		Lines:         []domain.CartLineRequest{{ItemID: "item-mie", TierName: "pcs", Quantity: 10}},
		OtherFees:     11150,
		PaymentMethod: domain.PaymentCash,
		CashTendered:  100000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("commit: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	committed := decodeBody[service.CommitResult](t, rec)
	if committed.Transaction.Total != 50000 || committed.Transaction.Change != 50000 {
		t.Fatalf("unexpected transaction %+v", committed.Transaction)
	}

	rec = client.do(http.MethodPost, "/api/v1/transactions", domain.CommitRequest{
		Lines:         []domain.CartLineRequest{{ItemID: "item-mie", TierName: "pcs", Quantity: 1}},
		PaymentMethod: domain.PaymentCredit,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("credit for walk-in: expected 400, got %d", rec.Code)
	}

	rec = client.do(http.MethodPost, "/api/v1/shifts/expenses", domain.ExpenseRequest{Amount: 20000, Description: "es batu"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expense: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = client.do(http.MethodGet, "/api/v1/shifts/active/balance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d", rec.Code)
	}
	balance := decodeBody[struct {
		Balance struct {
			CurrentBalance int64 `json:"current_balance"`
		} `json:"balance"`
	}](t, rec)
	if balance.Balance.CurrentBalance != 130000 {
		t.Fatalf("expected balance 130000, got %d", balance.Balance.CurrentBalance)
	}

	rec = client.do(http.MethodGet, "/api/v1/transactions/last/receipt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("receipt: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), committed.Transaction.ID) {
		t.Fatalf("receipt does not reference the last transaction")
	}

	rec = client.do(http.MethodPost, "/api/v1/shifts/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	closed := decodeBody[struct {
		Shift domain.Shift `json:"shift"`
	}](t, rec)
	if closed.Shift.FinalBalance != 130000 || closed.Shift.Status != domain.ShiftStatusClosed {
		t.Fatalf("unexpected closed shift %+v", closed.Shift)
	}

	rec = client.do(http.MethodGet, "/api/v1/shifts/"+started.Shift.ID+"/report", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d", rec.Code)
	}

	rec = client.do(http.MethodGet, "/api/v1/shifts/active", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("active after close: expected 409, got %d", rec.Code)
	}
}

func TestEditRequiresManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	client := newClient(t, api, "cashier", "cashier123")

	if rec := client.do(http.MethodPost, "/api/v1/shifts/start", domain.StartShiftRequest{}); rec.Code != http.StatusCreated {
		t.Fatalf("start shift failed: %d", rec.Code)
	}
	rec := client.do(http.MethodPost, "/api/v1/transactions", domain.CommitRequest{
		Lines:         []domain.CartLineRequest{{ItemID: "item-kopi", TierName: "pcs", Quantity: 3}},
		PaymentMethod: domain.PaymentEMoney,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("commit failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	committed := decodeBody[service.CommitResult](t, rec)
	path := "/api/v1/transactions/" + committed.Transaction.ID + "/edit"

	edit := map[string]any{
		"lines":       []domain.CartLineRequest{{ItemID: "item-kopi", TierName: "pcs", Quantity: 1}},
		"manager_pin": "000000",
	}
	if rec := client.do(http.MethodPost, path, edit); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong pin: expected 403, got %d", rec.Code)
	}

	edit["manager_pin"] = "123456"
	rec = client.do(http.MethodPost, path, edit)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	edited := decodeBody[service.EditResult](t, rec)
	if len(edited.Deltas) != 1 || edited.Deltas[0].Delta != 2 {
		t.Fatalf("unexpected deltas %+v", edited.Deltas)
	}
}

func TestHoldResumeOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	client := newClient(t, api, "cashier", "cashier123")

	if rec := client.do(http.MethodPost, "/api/v1/shifts/start", domain.StartShiftRequest{}); rec.Code != http.StatusCreated {
		t.Fatalf("start shift failed: %d", rec.Code)
	}
	rec := client.do(http.MethodPost, "/api/v1/holds", domain.HoldRequest{
		Lines: []domain.CartLineRequest{{ItemID: "item-gula", TierName: "kg", Quantity: 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("hold: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	held := decodeBody[struct {
		Transaction domain.Transaction `json:"transaction"`
	}](t, rec)

	rec = client.do(http.MethodGet, "/api/v1/holds", nil)
	holds := decodeBody[struct {
		Holds []domain.Transaction `json:"holds"`
	}](t, rec)
	if len(holds.Holds) != 1 {
		t.Fatalf("expected one hold, got %d", len(holds.Holds))
	}

	rec = client.do(http.MethodPost, "/api/v1/holds/"+held.Transaction.ID+"/resume", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	rec = client.do(http.MethodPost, "/api/v1/holds/"+held.Transaction.ID+"/resume", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second resume: expected 404, got %d", rec.Code)
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `electronkasir_http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("expected healthz request counter in metrics output")
	}
}

func TestRouteLabelCollapsesIDs(t *testing.T) {
	cases := map[string]string{
		"/api/v1/transactions/tx-123/edit":    "/api/v1/transactions/:id/edit",
		"/api/v1/transactions/last/receipt":   "/api/v1/transactions/last/receipt",
		"/api/v1/items/barcode/8990001":       "/api/v1/items/barcode/:code",
		"/api/v1/shifts/active/balance":       "/api/v1/shifts/active/balance",
		"/api/v1/customers/cust-budi/history": "/api/v1/customers/:id/history",
		"/healthz":                            "/healthz",
	}
	for path, want := range cases {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if got := routeLabel(req); got != want {
			t.Fatalf("routeLabel(%s) = %s, want %s", path, got, want)
		}
	}
}

// TestMustHashPassword verifies that the test helper produces valid bcrypt hashes.
func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}
