// internal/api/handler/ledger.go
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"finflow-ledger/internal/api/types"
	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/service"
	"finflow-ledger/internal/util"
)

// DefaultTimeout bounds the time a single request may take.
const DefaultTimeout = 30 * time.Second

// defaultPageSize is used when a history request carries no limit.
const defaultPageSize = 10

var validate = validator.New()

// LedgerHandler handles HTTP requests for ledger operations and reads.
type LedgerHandler struct {
	ledger   service.LedgerService
	balances service.BalanceService
	logger   *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger service.LedgerService, balances service.BalanceService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:   ledger,
		balances: balances,
		logger:   logger,
	}
}

// Helper function to send JSON responses.
func (h *LedgerHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses. The status follows the error kind.
func (h *LedgerHandler) respondWithError(w http.ResponseWriter, err error) {
	kind := util.KindOf(err)
	statusCode := statusFor(kind)
	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		h.logger.Error("Unhandled service error", "error", err)
		message = "Internal server error"
	}

	h.respondWithJSON(w, statusCode, ErrorResponse{Error: message, Code: string(kind)})
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusFor(kind util.ErrorKind) int {
	switch kind {
	case util.KindValidation:
		return http.StatusBadRequest
	case util.KindWalletNotFound:
		return http.StatusNotFound
	case util.KindInsufficientFunds:
		return http.StatusPaymentRequired // 402 Payment Required
	case util.KindUnsupportedCurrency:
		return http.StatusUnprocessableEntity
	case util.KindRateUnavailable:
		return http.StatusServiceUnavailable
	case util.KindStorageConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// bind decodes the JSON body into T and runs its validate tags.
func bind[T any](r *http.Request) (*T, error) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, util.Invalidf("invalid request body: %v", err)
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, util.Invalidf("field %s failed %s validation", verrs[0].Field(), verrs[0].Tag())
		}
		return nil, util.Invalidf("validation failed: %v", err)
	}
	return &req, nil
}

// MoneyRequest represents the request body for deposit and withdraw.
type MoneyRequest struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

// Deposit handles the deposit money request.
// POST /users/{userID}/deposit
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	req, err := bind[MoneyRequest](r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	result, err := h.ledger.Deposit(r.Context(), chi.URLParam(r, "userID"), req.Amount, req.Currency)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// Withdraw handles the withdraw money request.
// POST /users/{userID}/withdraw
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	req, err := bind[MoneyRequest](r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	result, err := h.ledger.Withdraw(r.Context(), chi.URLParam(r, "userID"), req.Amount, req.Currency)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// TransferRequest represents the request body for transfer.
type TransferRequest struct {
	SenderID   string `json:"sender_id" validate:"required"`
	ReceiverID string `json:"receiver_id" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Currency   string `json:"currency" validate:"required,len=3,alpha"`
}

// Transfer handles the transfer money request.
// POST /transfers
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	req, err := bind[TransferRequest](r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	result, err := h.ledger.Transfer(r.Context(), req.SenderID, req.ReceiverID, req.Amount, req.Currency)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// GetTotalBalance handles the total balance request.
// GET /users/{userID}/balance?currency=USD
func (h *LedgerHandler) GetTotalBalance(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		h.respondWithError(w, util.Invalidf("currency query parameter is required"))
		return
	}

	result, err := h.balances.TotalBalance(r.Context(), chi.URLParam(r, "userID"), currency)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// GetWallets handles the wallet listing request.
// GET /users/{userID}/wallets
func (h *LedgerHandler) GetWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.balances.Wallets(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, wallets)
}

// GetWallet handles the single wallet balance request.
// GET /users/{userID}/wallets/{currency}
func (h *LedgerHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.balances.WalletBalance(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "currency"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, wallet)
}

// GetTransactionHistory handles the transaction history request.
// GET /users/{userID}/transactions?limit=10&offset=0
func (h *LedgerHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	transactions, err := h.balances.History(r.Context(), chi.URLParam(r, "userID"), limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:   transactions,
		Limit:  limit,
		Offset: offset,
	})
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, util.Invalidf("%s must be a non-negative integer", name)
	}
	return v, nil
}
