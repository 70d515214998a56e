package stock

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/platform/httpx"
)

type createRequest struct {
	Code            string          `json:"code" validate:"required,max=50"`
	Name            string          `json:"name" validate:"required,max=200"`
	Type            StockType       `json:"type" validate:"required,oneof=Product Service"`
	Unit            Unit            `json:"unit" validate:"required"`
	VATRate         decimal.Decimal `json:"vatRate"`
	SalePrice       decimal.Decimal `json:"salePrice"`
	OpeningQuantity decimal.Decimal `json:"stockQuantity"`
}

type updateRequest struct {
	Name      *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Unit      *Unit            `json:"unit,omitempty"`
	VATRate   *decimal.Decimal `json:"vatRate,omitempty"`
	SalePrice *decimal.Decimal `json:"salePrice,omitempty"`
}

type adjustRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

// Handler exposes catalog operations over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stocks", h.list)
	r.Post("/stocks", h.create)
	r.Get("/stocks/{id}", h.show)
	r.Put("/stocks/{id}", h.update)
	r.Delete("/stocks/{id}", h.remove)
	r.Post("/stocks/{id}/adjust", h.adjust)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("page") != "" || q.Get("limit") != "" {
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		items, pagination, err := h.service.Paginate(r.Context(), page, limit, q.Get("q"))
		if err != nil {
			h.logger.Error("paginate stocks", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pagination})
		return
	}
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list stocks", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
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
	item, err := h.service.Create(r.Context(), CreateInput{
		Code:            req.Code,
		Name:            req.Name,
		Type:            req.Type,
		Unit:            req.Unit,
		VATRate:         req.VATRate,
		SalePrice:       req.SalePrice,
		OpeningQuantity: req.OpeningQuantity,
	})
	if err != nil {
		h.logger.Error("create stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
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
	item, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), UpdateInput{
		Name:      req.Name,
		Unit:      req.Unit,
		VATRate:   req.VATRate,
		SalePrice: req.SalePrice,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	item, err := h.service.AdjustQuantity(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
