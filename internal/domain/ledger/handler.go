package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/puzzlearena/arena-api/internal/middleware"
	"github.com/puzzlearena/arena-api/internal/pkg/errorhandler"
	"github.com/puzzlearena/arena-api/internal/pkg/response"
)

// Handler exposes the credits endpoints
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

type spendRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,max=64"`
}

// Spend handles POST /credits/spend
func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req spendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "amount must be greater than zero and reason is required")
		return
	}

	var key *string
	if k := r.Header.Get("Idempotency-Key"); k != "" {
		key = &k
	}

	newBalance, err := h.svc.Spend(r.Context(), accountID, req.Amount, Reason(req.Reason), key)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateRequest):
			// Replay of an already-applied debit; report current state.
			balance, berr := h.svc.GetBalance(r.Context(), accountID)
			if berr != nil {
				response.InternalError(w)
				return
			}
			response.OK(w, map[string]interface{}{"balance": balance, "duplicate": true})
		case errors.Is(err, ErrInsufficientFunds):
			writeInsufficientFunds(w, err)
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero")
		case errors.Is(err, ErrAccountNotFound):
			response.NotFound(w, "account not found")
		default:
			errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", err)
		}
		return
	}

	response.OK(w, map[string]interface{}{"balance": newBalance})
}

// Balance handles GET /credits/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			response.NotFound(w, "account not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"balance": balance})
}

// History handles GET /credits/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.svc.ListTransactions(r.Context(), accountID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	items := make([]map[string]interface{}, 0, len(transactions))
	for i := range transactions {
		tx := &transactions[i]
		item := map[string]interface{}{
			"id":         tx.ID,
			"delta":      tx.Delta,
			"reason":     tx.Reason,
			"created_at": tx.CreatedAt,
		}
		if tx.ReferenceTransactionID != nil {
			item["reference_transaction_id"] = *tx.ReferenceTransactionID
		}
		items = append(items, item)
	}

	response.OK(w, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/spend", h.Spend)
	r.Get("/balance", h.Balance)
	r.Get("/history", h.History)
	return r
}

// writeInsufficientFunds maps the typed ledger error to a 402 with the
// required amount in the details
func writeInsufficientFunds(w http.ResponseWriter, err error) {
	details := map[string]string{}
	var ife *InsufficientFundsError
	if errors.As(err, &ife) {
		details["required"] = strconv.FormatInt(ife.Required, 10)
		details["balance"] = strconv.FormatInt(ife.Balance, 10)
	}
	response.PaymentRequired(w, "INSUFFICIENT_FUNDS", "not enough credits", details)
}
