package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/finsight-app/finsight/internal/api/middleware"
	"github.com/finsight-app/finsight/internal/infra/bigquery"
	"github.com/finsight-app/finsight/internal/pipeline"
)

// TransactionsHandler handles transaction CRUD and summary endpoints.
type TransactionsHandler struct {
	store bigquery.TransactionStore
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store bigquery.TransactionStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store: store,
		log:   log,
	}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	query := r.URL.Query()
	filter := bigquery.TransactionFilter{
		Category: query.Get("category"),
		Type:     query.Get("type"),
	}

	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil {
			filter.Page = page
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	transactions, total, err := h.store.ListTransactions(ctx, userID, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	if transactions == nil {
		transactions = []*bigquery.TransactionRow{}
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	pages := (total + int64(limit) - 1) / int64(limit)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"pagination": map[string]interface{}{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": pages,
		},
	})
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	row, err := h.store.GetTransaction(ctx, userID, id)
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to get transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transaction")
		return
	}
	if row == nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, row)
}

// transactionUpdateRequest is the PUT body. Absent fields leave the
// stored value untouched.
type transactionUpdateRequest struct {
	Date        *string  `json:"date"`
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
	Merchant    *string  `json:"merchant"`
	Category    *string  `json:"category"`
	Type        *string  `json:"type"`
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req transactionUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Date != nil && !pipeline.ValidDate(*req.Date) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}
	if req.Category != nil && !pipeline.ValidCategory(*req.Category) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid category")
		return
	}
	if req.Type != nil && !pipeline.ValidType(*req.Type) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid type")
		return
	}

	row, err := h.store.UpdateTransaction(ctx, userID, id, bigquery.TransactionUpdate{
		Date:        req.Date,
		Amount:      req.Amount,
		Description: req.Description,
		Merchant:    req.Merchant,
		Category:    req.Category,
		Type:        req.Type,
	})
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}
	if row == nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, row)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	existed, err := h.store.DeleteTransaction(ctx, userID, id)
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}
	if !existed {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Transaction deleted successfully",
	})
}

// DashboardSummary handles GET /api/transactions/dashboard/summary
func (h *TransactionsHandler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	rows, err := h.store.ListAllTransactions(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load transactions for summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, Summarize(rows))
}
