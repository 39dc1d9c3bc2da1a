package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkravets/finlog/internal/api/middleware"
	"github.com/mkravets/finlog/internal/domain"
	"github.com/mkravets/finlog/internal/store"
	"github.com/mkravets/finlog/internal/summary"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// dashboardWindow caps the summary query. Totals on accounts with a
	// longer history are approximate in exchange for bounded latency.
	dashboardWindow = 100
)

// TransactionsHandler handles transaction CRUD, listing and the dashboard.
type TransactionsHandler struct {
	store    store.TransactionStore
	views    *ViewCache
	validate *validator.Validate
	log      zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(s store.TransactionStore, views *ViewCache, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store:    s,
		views:    views,
		validate: validator.New(),
		log:      log,
	}
}

// transactionInput is the request body for create and update. Update has
// whole-record overwrite semantics, so the same shape serves both.
type transactionInput struct {
	Type        string  `json:"type" validate:"required,oneof=INCOME EXPENSE"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	Category    string  `json:"category" validate:"required"`
	Description string  `json:"description" validate:"max=500"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
}

// parseInput decodes and validates the body, returning per-field messages
// on violation.
func (h *TransactionsHandler) parseInput(r *http.Request) (*transactionInput, map[string]string, error) {
	var in transactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return nil, nil, fmt.Errorf("decode body: %w", err)
	}

	if err := h.validate.Struct(&in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fieldErrors(verrs), nil
		}
		return nil, nil, err
	}

	if !domain.ValidCategory(domain.TransactionType(in.Type), in.Category) {
		return nil, map[string]string{
			"category": fmt.Sprintf("unknown category %q for type %s", in.Category, in.Type),
		}, nil
	}

	return &in, nil, nil
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "oneof":
			msg = "must be one of: " + fe.Param()
		case "gte":
			msg = "must not be negative"
		case "max":
			msg = "is too long"
		case "datetime":
			msg = "must be a date in YYYY-MM-DD format"
		default:
			msg = "is invalid"
		}
		fields[fe.Field()] = msg
	}
	return fields
}

func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"error":  "Validation failed",
		"fields": fields,
	})
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.UserFrom(ctx)

	in, fields, err := h.parseInput(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fields != nil {
		writeValidationError(w, fields)
		return
	}

	date, _ := time.Parse("2006-01-02", in.Date)
	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Type:        domain.TransactionType(in.Type),
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        date,
	}

	if err := h.store.CreateTransaction(ctx, tx); err != nil {
		h.log.Error().Err(err).Msg("Failed to create transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	h.views.Invalidate(user.ID)
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	user := middleware.UserFrom(ctx)

	tx, err := h.store.TransactionByID(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to get transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tx)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	user := middleware.UserFrom(ctx)

	in, fields, err := h.parseInput(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fields != nil {
		writeValidationError(w, fields)
		return
	}

	date, _ := time.Parse("2006-01-02", in.Date)
	tx := &domain.Transaction{
		ID:          id,
		UserID:      user.ID,
		Type:        domain.TransactionType(in.Type),
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        date,
	}

	if err := h.store.UpdateTransaction(ctx, tx); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	h.views.Invalidate(user.ID)
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	user := middleware.UserFrom(ctx)

	if err := h.store.DeleteTransaction(ctx, user.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	h.views.Invalidate(user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.UserFrom(ctx)

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", defaultListLimit)
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	params := fmt.Sprintf("p%d-l%d", page, limit)
	cached, viewKey, ok := h.views.Get(user.ID, ViewTransactions, params)
	if ok {
		middleware.WriteJSON(w, http.StatusOK, cached)
		return
	}

	offset := (page - 1) * limit
	txs, err := h.store.ListTransactions(ctx, user.ID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	total, err := h.store.CountTransactions(ctx, user.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	if txs == nil {
		txs = []domain.Transaction{}
	}
	totalPages := (total + int64(limit) - 1) / int64(limit)

	payload := map[string]interface{}{
		"transactions": txs,
		"total":        total,
		"page":         page,
		"limit":        limit,
		"totalPages":   totalPages,
	}
	h.views.Put(viewKey, payload)
	middleware.WriteJSON(w, http.StatusOK, payload)
}

// Dashboard handles GET /api/dashboard
func (h *TransactionsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.UserFrom(ctx)

	cached, viewKey, ok := h.views.Get(user.ID, ViewDashboard, "")
	if ok {
		middleware.WriteJSON(w, http.StatusOK, cached)
		return
	}

	txs, err := h.store.RecentTransactions(ctx, user.ID, dashboardWindow)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load dashboard transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	s := summary.Compute(txs)
	h.views.Put(viewKey, s)
	middleware.WriteJSON(w, http.StatusOK, s)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
