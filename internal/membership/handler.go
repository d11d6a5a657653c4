package membership

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ladtc/ladtc/internal/auth"
	"github.com/ladtc/ladtc/internal/platform/httpx"
	"github.com/ladtc/ladtc/internal/rbac"
	"github.com/ladtc/ladtc/internal/shared"
)

// Handler exposes membership endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountSelfRoutes registers member-facing routes under /api/memberships.
func (h *Handler) MountSelfRoutes(r chi.Router) {
	r.With(h.rbac.RequireAction(rbac.ActionMembershipSelfView)).Get("/me", h.me)
}

// MountAdminRoutes registers administration routes under /api/admin/memberships.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAction(rbac.ActionMembershipManage))
		r.Get("/", h.list)
		r.Post("/payments", h.confirmPayment)
		r.Post("/{id}/suspend", h.suspend)
		r.Post("/{id}/reactivate", h.reactivate)
	})
}

// MountStatsRoutes registers the dashboard KPI route under /api/admin/stats.
func (h *Handler) MountStatsRoutes(r chi.Router) {
	r.With(h.rbac.RequireAction(rbac.ActionStatsRead)).Get("/", h.stats)
}

type membershipResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Status      Status     `json:"status"`
	AmountPaid  float64    `json:"amountPaid"`
	RenewalDate *time.Time `json:"renewalDate"`
	Expiring    bool       `json:"expiring"`
	Holder      *Holder    `json:"holder,omitempty"`
}

type listResponse struct {
	Items      []membershipResponse `json:"items"`
	Pagination shared.Pagination    `json:"pagination"`
}

type paymentRequest struct {
	UserID string   `json:"userId" validate:"required"`
	Amount *float64 `json:"amount" validate:"required"`
}

func (h *Handler) toResponse(m Membership) membershipResponse {
	resp := membershipResponse{
		ID:          m.ID.String(),
		UserID:      m.UserID,
		Status:      m.Status,
		AmountPaid:  m.AmountPaid,
		RenewalDate: m.RenewalDate,
		Expiring:    IsExpiring(m, h.service.Now(), h.service.ExpiringWindow()),
	}
	if m.Holder != (Holder{}) {
		holder := m.Holder
		resp.Holder = &holder
	}
	return resp
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	m, err := h.service.Get(r.Context(), identity.UserID)
	if err != nil {
		h.fail(w, r, "get membership failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(m))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{}
	if raw := q.Get("status"); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			httpx.Error(w, http.StatusUnprocessableEntity, shared.MsgValidation)
			return
		}
		filter.Status = status
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	items, paging, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list memberships failed", err)
		return
	}
	resp := listResponse{Items: make([]membershipResponse, 0, len(items)), Pagination: paging}
	for _, m := range items {
		resp.Items = append(resp.Items, h.toResponse(m))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, shared.MsgValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusUnprocessableEntity, shared.MsgValidation)
		return
	}
	actor := auth.IdentityFromContext(r.Context())
	m, err := h.service.ConfirmPayment(r.Context(), actor.UserID, req.UserID, *req.Amount)
	if err != nil {
		h.fail(w, r, "confirm payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(m))
}

func (h *Handler) suspend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Suspend)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reactivate)
}

type transitionFunc func(ctx context.Context, actorID string, id uuid.UUID) (Membership, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusNotFound, shared.MsgNotFound)
		return
	}
	actor := auth.IdentityFromContext(r.Context())
	m, err := apply(r.Context(), actor.UserID, id)
	if err != nil {
		h.fail(w, r, "membership transition failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(m))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "membership stats failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if status := httpx.StatusFor(err); status >= http.StatusInternalServerError || errors.Is(err, shared.ErrInvalidPayment) {
		h.logger.Warn(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}
