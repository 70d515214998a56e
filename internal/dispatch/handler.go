package dispatch

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/platform/httpx"
)

type lineRequest struct {
	StockID  string          `json:"stockId" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

type createRequest struct {
	DispatchNo  string        `json:"dispatchNo" validate:"required,max=50"`
	CustomerID  string        `json:"customerId" validate:"required"`
	Date        time.Time     `json:"date" validate:"required"`
	Items       []lineRequest `json:"items" validate:"required,min=1,dive"`
	Description string        `json:"description" validate:"omitempty,max=500"`
}

type linkRequest struct {
	InvoiceID string `json:"invoiceId" validate:"required"`
}

// Handler exposes dispatch note operations over JSON.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	invalidate func(context.Context)
	validate   *validator.Validate
}

// NewHandler constructs a Handler. invalidate is called after every
// successful write so cached read aggregates can be dropped; nil is allowed.
func NewHandler(logger *slog.Logger, service *Service, invalidate func(context.Context)) *Handler {
	return &Handler{logger: logger, service: service, invalidate: invalidate, validate: validator.New()}
}

func (h *Handler) invalidated(ctx context.Context) {
	if h.invalidate != nil {
		h.invalidate(ctx)
	}
}

// MountRoutes attaches dispatch note routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dispatch-notes", h.list)
	r.Post("/dispatch-notes", h.create)
	r.Get("/dispatch-notes/{id}", h.show)
	r.Delete("/dispatch-notes/{id}", h.remove)
	r.Post("/dispatch-notes/{id}/link", h.link)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if customerID := q.Get("customerId"); customerID != "" {
		items, err := h.service.ListByCustomer(r.Context(), customerID)
		if err != nil {
			h.logger.Error("list dispatch notes by customer", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
		return
	}
	if q.Get("page") != "" || q.Get("limit") != "" {
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		items, pagination, err := h.service.Paginate(r.Context(), page, limit, q.Get("q"))
		if err != nil {
			h.logger.Error("paginate dispatch notes", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pagination})
		return
	}
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list dispatch notes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
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
	items := make([]LineInput, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, LineInput{StockID: line.StockID, Quantity: line.Quantity})
	}
	note, err := h.service.Create(r.Context(), CreateInput{
		DispatchNo:  req.DispatchNo,
		CustomerID:  req.CustomerID,
		Date:        req.Date,
		Items:       items,
		Description: req.Description,
	})
	if err != nil {
		h.logger.Error("create dispatch note", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.logger.Error("delete dispatch note", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) link(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	note, err := h.service.LinkToInvoice(r.Context(), chi.URLParam(r, "id"), req.InvoiceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	httpx.JSON(w, http.StatusOK, note)
}
