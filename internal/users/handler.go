package users

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ladtc/ladtc/internal/auth"
	"github.com/ladtc/ladtc/internal/platform/httpx"
	"github.com/ladtc/ladtc/internal/rbac"
	"github.com/ladtc/ladtc/internal/shared"
)

// Handler manages user endpoints.
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

// MountAdminRoutes registers administration routes under /api/admin/users.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.With(h.rbac.RequireAction(rbac.ActionUsersList)).Get("/", h.listUsers)
	r.With(h.rbac.RequireAction(rbac.ActionUserRoleUpdate)).Patch("/{id}/role", h.updateRole)
}

// MountSelfRoutes registers self-service routes under /api/users. Ownership
// is checked per request.
func (h *Handler) MountSelfRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAction(rbac.ActionProfileSelfService))
		r.Put("/{id}/image", h.updateImage)
		r.Get("/{id}/profile", h.getProfile)
		r.Patch("/{id}/profile", h.updateProfile)
	})
}

type listResponse struct {
	Items      []User            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

type roleRequest struct {
	Role          string `json:"role" validate:"required,oneof=MEMBER COACH COMMITTEE ADMIN"`
	CommitteeRole string `json:"committeeRole" validate:"omitempty,max=64"`
}

type imageRequest struct {
	Image string `json:"image" validate:"omitempty,url,max=2048"`
}

type profileRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=120"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Role:   rbac.Role(strings.ToUpper(strings.TrimSpace(q.Get("role")))),
		Search: q.Get("q"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	users, paging, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list users failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: users, Pagination: paging})
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, _ := rbac.ParseRole(req.Role)
	user, err := h.service.UpdateRole(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"),
		RoleChange{Role: role, CommitteeRole: req.CommitteeRole})
	if err != nil {
		h.fail(w, r, "update role failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.UpdateImage(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.Image)
	if err != nil {
		h.fail(w, r, "update image failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ProfileOf(user))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get profile failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !h.decode(w, r, &req) {
		return
	}
	profile, err := h.service.UpdateProfile(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"),
		ProfileChange{Name: req.Name})
	if err != nil {
		h.fail(w, r, "update profile failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Error(w, http.StatusBadRequest, shared.MsgValidation)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Error(w, http.StatusUnprocessableEntity, shared.MsgValidation)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}
