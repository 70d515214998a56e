package customers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/defter-erp/defter/internal/platform/httpx"
)

type createRequest struct {
	Type      CustomerType `json:"type" validate:"required,oneof=Individual Corporate"`
	Name      string       `json:"name" validate:"required,max=200"`
	TaxNumber string       `json:"taxNumber" validate:"omitempty,max=50"`
	Phone     string       `json:"phone" validate:"omitempty,max=50"`
	Email     string       `json:"email" validate:"omitempty,email"`
	Address   string       `json:"address" validate:"omitempty,max=500"`
}

type updateRequest struct {
	Type      *CustomerType `json:"type,omitempty" validate:"omitempty,oneof=Individual Corporate"`
	Name      *string       `json:"name,omitempty" validate:"omitempty,max=200"`
	TaxNumber *string       `json:"taxNumber,omitempty" validate:"omitempty,max=50"`
	Phone     *string       `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email     *string       `json:"email,omitempty" validate:"omitempty,email"`
	Address   *string       `json:"address,omitempty" validate:"omitempty,max=500"`
}

// Handler exposes customer operations over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers", h.list)
	r.Post("/customers", h.create)
	r.Get("/customers/{id}", h.show)
	r.Put("/customers/{id}", h.update)
	r.Delete("/customers/{id}", h.remove)
	r.Post("/customers/{id}/activate", h.setActive(true))
	r.Post("/customers/{id}/deactivate", h.setActive(false))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("page") != "" || q.Get("limit") != "" {
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		items, pagination, err := h.service.Paginate(r.Context(), page, limit, q.Get("q"))
		if err != nil {
			h.logger.Error("paginate customers", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pagination})
		return
	}
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	customer, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer, err := h.service.Create(r.Context(), CreateInput{
		Type:      req.Type,
		Name:      req.Name,
		TaxNumber: req.TaxNumber,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
	})
	if err != nil {
		h.logger.Error("create customer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), UpdateInput{
		Type:      req.Type,
		Name:      req.Name,
		TaxNumber: req.TaxNumber,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := h.service.SetActive(r.Context(), chi.URLParam(r, "id"), active)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, customer)
	}
}
