package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ladtc/ladtc/internal/platform/httpx"
)

// Handler exposes the resolved session to the UI.
type Handler struct {
	logger    *slog.Logger
	resolver  *Resolver
	extractor CredentialExtractor
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver, extractor CredentialExtractor) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, resolver: resolver, extractor: extractor}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/session", h.session)
}

type sessionResponse struct {
	User *Identity `json:"user"`
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolver.Resolve(r.Context(), h.extractor.Extract(r))
	if err != nil {
		h.logger.Error("session store unavailable", slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	if !identity.IsAuthenticated() {
		httpx.JSON(w, http.StatusOK, sessionResponse{})
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{User: &identity})
}

// SessionForTest exposes the session handler for tests.
func (h *Handler) SessionForTest(w http.ResponseWriter, r *http.Request) {
	h.session(w, r)
}
