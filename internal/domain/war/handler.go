package war

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/puzzlearena/arena-api/internal/domain/account"
	"github.com/puzzlearena/arena-api/internal/domain/cooldown"
	"github.com/puzzlearena/arena-api/internal/domain/ledger"
	"github.com/puzzlearena/arena-api/internal/middleware"
	"github.com/puzzlearena/arena-api/internal/pkg/errorhandler"
	"github.com/puzzlearena/arena-api/internal/pkg/response"
)

// Handler exposes the war endpoints
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

type challengeRequest struct {
	ChallengedID uuid.UUID `json:"challenged_id" validate:"required"`
}

type actionRequest struct {
	Kind       string `json:"kind" validate:"required,oneof=boost unboost"`
	TargetRef  string `json:"target_ref" validate:"max=128"`
	BaseCost   int64  `json:"base_cost" validate:"required,gt=0"`
	BasePoints int64  `json:"base_points" validate:"required,gt=0"`
}

// Challenge handles POST /wars/challenge
func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil || req.ChallengedID == uuid.Nil {
		response.BadRequest(w, "challenged_id is required")
		return
	}

	war, err := h.svc.Challenge(r.Context(), accountID, req.ChallengedID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, war.ToResponse())
}

// Accept handles POST /wars/{id}/accept
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	warID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid war id")
		return
	}

	war, err := h.svc.Accept(r.Context(), warID, accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, war.ToResponse())
}

// Decline handles POST /wars/{id}/decline
func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	warID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid war id")
		return
	}

	war, err := h.svc.Decline(r.Context(), warID, accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, war.ToResponse())
}

// Action handles POST /wars/{id}/action
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	warID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid war id")
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "kind must be boost or unboost; base_cost and base_points must be greater than zero")
		return
	}

	war, err := h.svc.RecordAction(r.Context(), warID, accountID, ActionKind(req.Kind), req.TargetRef, req.BaseCost, req.BasePoints)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, war.ToResponse())
}

// Status handles GET /wars/{id}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	warID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid war id")
		return
	}

	war, err := h.svc.Status(r.Context(), warID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, war.ToResponse())
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/challenge", h.Challenge)
	r.Post("/{id}/accept", h.Accept)
	r.Post("/{id}/decline", h.Decline)
	r.Post("/{id}/action", h.Action)
	r.Get("/{id}", h.Status)
	return r
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var cooldownErr *cooldown.CooldownActiveError
	var fundsErr *ledger.InsufficientFundsError

	switch {
	case errors.Is(err, ErrWarNotFound):
		response.NotFound(w, "war not found")
	case errors.Is(err, account.ErrAccountNotFound):
		response.NotFound(w, "account not found")
	case errors.Is(err, ErrSelfChallenge):
		response.BadRequest(w, "cannot challenge yourself")
	case errors.Is(err, ErrNotParticipant):
		response.Forbidden(w, "not a participant of this war")
	case errors.Is(err, ErrNotChallenged):
		response.Forbidden(w, "only the challenged account may respond")
	case errors.Is(err, ErrDuplicateWar):
		response.Conflict(w, "DUPLICATE_WAR", "an open war already exists between these accounts")
	case errors.Is(err, ErrChallengeBlocked):
		response.Conflict(w, "CHALLENGE_BLOCKED", "challenger is under a promotion cooldown")
	case errors.Is(err, ErrWarExpired):
		response.Conflict(w, "WAR_EXPIRED", "war is no longer open")
	case errors.Is(err, ErrWarNotPending):
		response.Conflict(w, "WAR_NOT_PENDING", "war is not awaiting a response")
	case errors.Is(err, ErrWarNotActive):
		response.Conflict(w, "WAR_NOT_ACTIVE", "war is not active")
	case errors.As(err, &cooldownErr):
		response.TooManyRequests(w, map[string]string{
			"retry_after_seconds": strconv.FormatInt(cooldownErr.RemainingSeconds, 10),
		})
	case errors.As(err, &fundsErr):
		response.PaymentRequired(w, "INSUFFICIENT_FUNDS", "not enough credits", map[string]string{
			"required": strconv.FormatInt(fundsErr.Required, 10),
			"balance":  strconv.FormatInt(fundsErr.Balance, 10),
		})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		response.PaymentRequired(w, "INSUFFICIENT_FUNDS", "not enough credits", nil)
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", err)
	}
}
