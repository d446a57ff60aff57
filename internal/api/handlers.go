/**
 * @description
 * This file contains the HTTP handlers for the ledger service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finvault/ledger-service/internal/app"
	"github.com/finvault/ledger-service/internal/domain"
	"github.com/finvault/ledger-service/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service     *app.Service
	rateLimiter app.RateLimiter
	txRateLimit int
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// SetRateLimiter enables per-user rate limiting on transaction creation.
func (h *LedgerHandlers) SetRateLimiter(limiter app.RateLimiter, perMinute int) {
	h.rateLimiter = limiter
	h.txRateLimit = perMinute
}

func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the service/store error taxonomy to HTTP status codes.
func (h *LedgerHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidTransactionType),
		errors.Is(err, app.ErrInvalidTransactionStructure),
		errors.Is(err, app.ErrInvalidCardNumber),
		errors.Is(err, app.ErrInvalidCardType),
		errors.Is(err, app.ErrInvalidCardExpiry),
		errors.Is(err, app.ErrInvalidCVV),
		errors.Is(err, app.ErrInvalidCurrency):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient balance")
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrCardNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNotAccountOwner), errors.Is(err, app.ErrNotCardOwner):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrCardNotActive),
		errors.Is(err, app.ErrTransactionNotCancellable),
		errors.Is(err, app.ErrCardHasPendingTransactions):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("level=error component=api msg=\"unexpected service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *LedgerHandlers) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return uuid.Nil, false
	}
	return userID, true
}

// CreateTransactionHandler executes a financial transaction for the
// authenticated user. The response carries the terminal record; failures are
// reported with the recorded FAILED transaction id where one exists.
func (h *LedgerHandlers) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if h.rateLimiter != nil && h.txRateLimit > 0 {
		count, retryAfter, err := h.rateLimiter.ConsumeRateLimit(r.Context(), userID, h.txRateLimit, time.Minute)
		if err != nil {
			log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		} else if count > h.txRateLimit {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many transaction requests")
			return
		}
	}

	var req domain.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_transaction outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("level=info component=api endpoint=create_transaction outcome=accepted user_id=%s type=%s amount=%d", userID, req.Type, req.Amount)

	tx, err := h.service.ExecuteTransaction(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_transaction outcome=failed user_id=%s err=%v", userID, err)
		// A FAILED record carries the audit trail even though the call failed.
		if tx != nil {
			status := statusForError(err)
			h.writeJSON(w, status, map[string]interface{}{
				"error":       err.Error(),
				"transaction": tx,
			})
			return
		}
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, tx)
}

// statusForError mirrors writeServiceError's mapping for responses that carry
// a body alongside the error.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, app.ErrInvalidTransactionStructure):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrAccountNotFound), errors.Is(err, store.ErrCardNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrCardNotActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// GetTransactionHandler returns a single transaction with display fields.
func (h *LedgerHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	txID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	detail, err := h.service.GetTransaction(r.Context(), userID, txID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// ListTransactionsHandler returns the user's transaction history with filters.
func (h *LedgerHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	opts := domain.TransactionListOptions{
		Type:     r.URL.Query().Get("type"),
		Status:   r.URL.Query().Get("status"),
		Category: r.URL.Query().Get("category"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		opts.Limit, _ = strconv.Atoi(limit)
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		opts.Offset, _ = strconv.Atoi(offset)
	}
	opts.From = parseTimeParam(r, "from")
	opts.To = parseTimeParam(r, "to")

	transactions, err := h.service.ListTransactions(r.Context(), userID, opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// CancelTransactionHandler cancels a PENDING transaction.
func (h *LedgerHandlers) CancelTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	txID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	tx, err := h.service.CancelTransaction(r.Context(), userID, txID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// TransactionStatsHandler returns aggregate statistics over a time window.
func (h *LedgerHandlers) TransactionStatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.service.GetTransactionStats(r.Context(), userID, parseTimeParam(r, "from"), parseTimeParam(r, "to"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// CreateAccountHandler opens a new ledger account.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// ListAccountsHandler returns all of the user's accounts.
func (h *LedgerHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

// GetAccountHandler returns one of the user's accounts.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	account, err := h.service.GetAccount(r.Context(), userID, accountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// BalanceHistoryHandler returns the audit snapshots for one of the user's accounts.
func (h *LedgerHandlers) BalanceHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	history, err := h.service.GetBalanceHistory(r.Context(), userID, accountID, parseTimeParam(r, "from"), parseTimeParam(r, "to"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if history == nil {
		history = []domain.AccountBalanceHistory{}
	}
	h.writeJSON(w, http.StatusOK, history)
}

// CreateCardHandler issues a new card. The response always masks the number.
func (h *LedgerHandlers) CreateCardHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req domain.CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	card, err := h.service.CreateCard(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, card.ToResponse())
}

// ListCardsHandler returns the user's cards with numbers masked.
func (h *LedgerHandlers) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	cards, err := h.service.ListCards(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	responses := make([]domain.CardResponse, 0, len(cards))
	for i := range cards {
		responses = append(responses, cards[i].ToResponse())
	}
	h.writeJSON(w, http.StatusOK, responses)
}

// BlockCardHandler moves a card to BLOCKED.
func (h *LedgerHandlers) BlockCardHandler(w http.ResponseWriter, r *http.Request) {
	h.updateCardStatus(w, r, h.service.BlockCard)
}

// UnblockCardHandler moves a card back to ACTIVE.
func (h *LedgerHandlers) UnblockCardHandler(w http.ResponseWriter, r *http.Request) {
	h.updateCardStatus(w, r, h.service.UnblockCard)
}

// DeleteCardHandler soft-deletes a card unless pending transactions reference it.
func (h *LedgerHandlers) DeleteCardHandler(w http.ResponseWriter, r *http.Request) {
	h.updateCardStatus(w, r, h.service.DeleteCard)
}

func (h *LedgerHandlers) updateCardStatus(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, cardID uuid.UUID) error) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cardID, err := uuid.Parse(chi.URLParam(r, "cardID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid card ID")
		return
	}

	if err := op(r.Context(), userID, cardID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseTimeParam(r *http.Request, name string) *time.Time {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}
