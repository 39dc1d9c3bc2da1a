package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkravets/finlog/internal/api/middleware"
	"github.com/mkravets/finlog/internal/domain"
	"github.com/mkravets/finlog/internal/store"
)

type fakeTransactionStore struct {
	txs map[string]*domain.Transaction
	err error
	now time.Time
	seq int
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{
		txs: make(map[string]*domain.Transaction),
		now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeTransactionStore) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	if f.err != nil {
		return f.err
	}
	f.seq++
	tx.CreatedAt = f.now.Add(time.Duration(f.seq) * time.Second)
	tx.UpdatedAt = tx.CreatedAt
	cp := *tx
	f.txs[tx.ID] = &cp
	return nil
}

func (f *fakeTransactionStore) TransactionByID(_ context.Context, userID, id string) (*domain.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	tx, ok := f.txs[id]
	if !ok || tx.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (f *fakeTransactionStore) UpdateTransaction(_ context.Context, tx *domain.Transaction) error {
	if f.err != nil {
		return f.err
	}
	existing, ok := f.txs[tx.ID]
	if !ok || existing.UserID != tx.UserID {
		return store.ErrNotFound
	}
	tx.CreatedAt = existing.CreatedAt
	tx.UpdatedAt = f.now
	cp := *tx
	f.txs[tx.ID] = &cp
	return nil
}

func (f *fakeTransactionStore) DeleteTransaction(_ context.Context, userID, id string) error {
	if f.err != nil {
		return f.err
	}
	tx, ok := f.txs[id]
	if !ok || tx.UserID != userID {
		return store.ErrNotFound
	}
	delete(f.txs, id)
	return nil
}

func (f *fakeTransactionStore) ordered(userID string) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range f.txs {
		if tx.UserID == userID {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (f *fakeTransactionStore) ListTransactions(_ context.Context, userID string, limit, offset int) ([]domain.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	all := f.ordered(userID)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeTransactionStore) CountTransactions(_ context.Context, userID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.ordered(userID))), nil
}

func (f *fakeTransactionStore) RecentTransactions(_ context.Context, userID string, limit int) ([]domain.Transaction, error) {
	return f.ListTransactions(context.Background(), userID, limit, 0)
}

func testUser(id string) *domain.User {
	return &domain.User{ID: id, ProviderID: "provider-" + id, Name: "Test", Email: id + "@example.com"}
}

func newTestHandler(fs *fakeTransactionStore) *TransactionsHandler {
	return NewTransactionsHandler(fs, NewViewCache(128, time.Minute), zerolog.Nop())
}

func doRequest(h http.HandlerFunc, method, target string, body interface{}, user *domain.User) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func validInput() map[string]interface{} {
	return map[string]interface{}{
		"type":        "EXPENSE",
		"amount":      42.00,
		"category":    "groceries",
		"description": "Weekly shop",
		"date":        "2024-03-01",
	}
}

func TestCreateTransactionRoundTripAmount(t *testing.T) {
	fs := newFakeTransactionStore()
	h := newTestHandler(fs)
	user := testUser("u1")

	in := validInput()
	in["amount"] = 123.45
	rec := doRequest(h.CreateTransaction, http.MethodPost, "/api/transactions", in, user)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created domain.Transaction
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Amount != 123.45 {
		t.Errorf("created amount = %v, want 123.45", created.Amount)
	}

	rec = doRequest(func(w http.ResponseWriter, r *http.Request) {
		h.GetTransaction(w, r, created.ID)
	}, http.MethodGet, "/api/transactions/"+created.ID, nil, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	var fetched domain.Transaction
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if fetched.Amount != 123.45 {
		t.Errorf("fetched amount = %v, want 123.45", fetched.Amount)
	}
}

func TestCrossUserAccessYieldsNotFound(t *testing.T) {
	fs := newFakeTransactionStore()
	h := newTestHandler(fs)
	owner := testUser("owner")
	other := testUser("other")

	rec := doRequest(h.CreateTransaction, http.MethodPost, "/api/transactions", validInput(), owner)
	var created domain.Transaction
	json.NewDecoder(rec.Body).Decode(&created)

	get := func(w http.ResponseWriter, r *http.Request) { h.GetTransaction(w, r, created.ID) }
	update := func(w http.ResponseWriter, r *http.Request) { h.UpdateTransaction(w, r, created.ID) }
	del := func(w http.ResponseWriter, r *http.Request) { h.DeleteTransaction(w, r, created.ID) }

	tests := []struct {
		name    string
		method  string
		handler http.HandlerFunc
		body    interface{}
	}{
		{name: "get", method: http.MethodGet, handler: get},
		{name: "update", method: http.MethodPut, handler: update, body: validInput()},
		{name: "delete", method: http.MethodDelete, handler: del},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(tt.handler, tt.method, "/api/transactions/"+created.ID, tt.body, other)
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}

			var body map[string]interface{}
			json.NewDecoder(rec.Body).Decode(&body)
			if _, leaked := body["amount"]; leaked {
				t.Error("response leaked the other user's transaction")
			}
		})
	}

	// Row untouched after the failed cross-user mutations.
	if _, err := fs.TransactionByID(context.Background(), owner.ID, created.ID); err != nil {
		t.Errorf("owner's transaction disappeared: %v", err)
	}
}

func TestUpdateOverwritesAllFields(t *testing.T) {
	fs := newFakeTransactionStore()
	h := newTestHandler(fs)
	user := testUser("u1")

	rec := doRequest(h.CreateTransaction, http.MethodPost, "/api/transactions", validInput(), user)
	var created domain.Transaction
	json.NewDecoder(rec.Body).Decode(&created)

	updated := map[string]interface{}{
		"type":     "INCOME",
		"amount":   999.99,
		"category": "salary",
		"date":     "2024-03-15",
	}
	rec = doRequest(func(w http.ResponseWriter, r *http.Request) {
		h.UpdateTransaction(w, r, created.ID)
	}, http.MethodPut, "/api/transactions/"+created.ID, updated, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := fs.TransactionByID(context.Background(), user.ID, created.ID)
	if err != nil {
		t.Fatalf("fetch after update: %v", err)
	}
	if got.Type != domain.Income || got.Amount != 999.99 || got.Category != "salary" {
		t.Errorf("update not applied: %+v", got)
	}
	if got.Description != "" {
		t.Errorf("description = %q, want empty after whole-record overwrite", got.Description)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(map[string]interface{})
		field string
	}{
		{name: "missing type", mod: func(m map[string]interface{}) { delete(m, "type") }, field: "Type"},
		{name: "bad type", mod: func(m map[string]interface{}) { m["type"] = "TRANSFER" }, field: "Type"},
		{name: "negative amount", mod: func(m map[string]interface{}) { m["amount"] = -5 }, field: "Amount"},
		{name: "missing category", mod: func(m map[string]interface{}) { delete(m, "category") }, field: "Category"},
		{name: "bad date", mod: func(m map[string]interface{}) { m["date"] = "03/01/2024" }, field: "Date"},
		{name: "unknown category", mod: func(m map[string]interface{}) { m["category"] = "crypto" }, field: "category"},
		{name: "income category on expense", mod: func(m map[string]interface{}) { m["category"] = "salary" }, field: "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeTransactionStore()
			h := newTestHandler(fs)

			in := validInput()
			tt.mod(in)
			rec := doRequest(h.CreateTransaction, http.MethodPost, "/api/transactions", in, testUser("u1"))
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
			}

			var body struct {
				Error  string            `json:"error"`
				Fields map[string]string `json:"fields"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Fields[tt.field] == "" {
				t.Errorf("missing field error for %q, got %v", tt.field, body.Fields)
			}
			if len(fs.txs) != 0 {
				t.Error("invalid input reached the store")
			}
		})
	}
}

type listResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
	Total        int64                `json:"total"`
	Page         int                  `json:"page"`
	Limit        int                  `json:"limit"`
	TotalPages   int64                `json:"totalPages"`
}

func seedTransactions(t *testing.T, h *TransactionsHandler, user *domain.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		in := validInput()
		in["amount"] = float64(i + 1)
		in["date"] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("2006-01-02")
		rec := doRequest(h.CreateTransaction, http.MethodPost, "/api/transactions", in, user)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed %d failed: %d %s", i, rec.Code, rec.Body.String())
		}
	}
}

func TestListPagination(t *testing.T) {
	fs := newFakeTransactionStore()
	h := newTestHandler(fs)
	user := testUser("u1")
	seedTransactions(t, h, user, 23)

	var seen int
	for page := 1; ; page++ {
		rec := doRequest(h.ListTransactions, http.MethodGet,
			fmt.Sprintf("/api/transactions?page=%d&limit=10", page), nil, user)
		if rec.Code != http.StatusOK {
			t.Fatalf("list status = %d", rec.Code)
		}

		var resp listResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		if resp.Total != 23 {
			t.Errorf("total = %d, want 23", resp.Total)
		}
		if resp.TotalPages != 3 {
			t.Errorf("totalPages = %d, want 3", resp.TotalPages)
		}

		remaining := 23 - (page-1)*10
		want := 10
		if remaining < want {
			want = remaining
		}
		if len(resp.Transactions) != want {
			t.Errorf("page %d has %d items, want %d", page, len(resp.Transactions), want)
		}

		seen += len(resp.Transactions)
		if page == int(resp.TotalPages) {
			break
		}
	}
	if seen != 23 {
		t.Errorf("pages summed to %d records, want 23", seen)
	}
}

func TestListOrderedByDateDescending(t *testing.T) {
	fs := newFakeTransactionStore()
	h := newTestHandler(fs)
	user := testUser("u1")
	seedTransactions(t, h, user, 5)

	rec := doRequest(h.ListTransactions, http.MethodGet, "/api/transactions", nil, user)
	var resp listResponse
	json.NewDecoder(rec.Body).Decode(&resp)

	for i := 1; i < len(resp.Transactions); i++ {
		if resp.Transactions[i].Date.After(resp.Transactions[i-1].Date) {
			t.Fatalf("transactions not in date-descending order")
		}
	}
}

func TestListLimitClamped(t *testing.T) {
	fs := newFakeTransactionStore()
	h := newTestHandler(fs)
	user := testUser("u1")
	seedTransactions(t, h, user, 3)

	tests := []struct {
		name      string
		target    string
		wantLimit int
	}{
		{name: "over max", target: "/api/transactions?limit=9999", wantLimit: 200},
		{name: "zero", target: "/api/transactions?limit=0", wantLimit: 50},
		{name: "negative", target: "/api/transactions?limit=-3", wantLimit: 50},
		{name: "garbage", target: "/api/transactions?limit=abc", wantLimit: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h.ListTransactions, http.MethodGet, tt.target, nil, user)
			var resp listResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", resp.Limit, tt.wantLimit)
			}
		})
	}
}

func TestDashboardNetAndInvalidation(t *testing.T) {
	fs := newFakeTransactionStore()
	h := newTestHandler(fs)
	user := testUser("u1")

	income := validInput()
	income["type"] = "INCOME"
	income["category"] = "salary"
	income["amount"] = 2500.0
	doRequest(h.CreateTransaction, http.MethodPost, "/api/transactions", income, user)

	expense := validInput()
	expense["amount"] = 300.0
	doRequest(h.CreateTransaction, http.MethodPost, "/api/transactions", expense, user)

	rec := doRequest(h.Dashboard, http.MethodGet, "/api/dashboard", nil, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rec.Code)
	}

	var s struct {
		TotalIncome   float64 `json:"totalIncome"`
		TotalExpenses float64 `json:"totalExpenses"`
		Net           float64 `json:"net"`
	}
	json.NewDecoder(rec.Body).Decode(&s)
	if s.Net != s.TotalIncome-s.TotalExpenses {
		t.Errorf("net = %v, want %v", s.Net, s.TotalIncome-s.TotalExpenses)
	}
	if s.Net != 2200 {
		t.Errorf("net = %v, want 2200", s.Net)
	}

	// A new transaction must show up on the next dashboard read even
	// though the previous payload was cached.
	expense2 := validInput()
	expense2["amount"] = 200.0
	doRequest(h.CreateTransaction, http.MethodPost, "/api/transactions", expense2, user)

	rec = doRequest(h.Dashboard, http.MethodGet, "/api/dashboard", nil, user)
	json.NewDecoder(rec.Body).Decode(&s)
	if s.Net != 2000 {
		t.Errorf("net after create = %v, want 2000", s.Net)
	}
}

func TestListCacheInvalidatedByDelete(t *testing.T) {
	fs := newFakeTransactionStore()
	h := newTestHandler(fs)
	user := testUser("u1")
	seedTransactions(t, h, user, 2)

	rec := doRequest(h.ListTransactions, http.MethodGet, "/api/transactions", nil, user)
	var resp listResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}

	id := resp.Transactions[0].ID
	rec = doRequest(func(w http.ResponseWriter, r *http.Request) {
		h.DeleteTransaction(w, r, id)
	}, http.MethodDelete, "/api/transactions/"+id, nil, user)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doRequest(h.ListTransactions, http.MethodGet, "/api/transactions", nil, user)
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Total != 1 {
		t.Errorf("total after delete = %d, want 1", resp.Total)
	}
}
