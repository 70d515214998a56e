package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/defter-erp/defter/internal/platform/httpx"
)

// AccountProvider resolves a username into a stored user id, creating the
// account on first login.
type AccountProvider interface {
	EnsureUserID(ctx context.Context, username string) (string, error)
}

// Handler exposes login and logout over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *SessionStore
	accounts AccountProvider
	secure   bool
	validate *validator.Validate
}

// NewHandler constructs a Handler. secure controls the cookie Secure flag.
func NewHandler(logger *slog.Logger, service *Service, sessions *SessionStore, accounts AccountProvider, secure bool) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		accounts: accounts,
		secure:   secure,
		validate: validator.New(),
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// MountRoutes attaches the public auth routes. Login attempts are
// rate-limited per client IP.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Post("/login", h.login)
	})
	r.Post("/logout", h.logout)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Authenticate(req.Username, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := h.accounts.EnsureUserID(r.Context(), req.Username)
	if err != nil {
		h.logger.Error("ensure account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	token, err := h.sessions.Create(r.Context(), Identity{UserID: userID, Username: req.Username})
	if err != nil {
		h.logger.Error("create session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessions.TTL().Seconds()),
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"username": req.Username})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("delete session", slog.Any("error", err))
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}
