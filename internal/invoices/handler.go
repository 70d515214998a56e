package invoices

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
	StockID   string          `json:"stockId" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type installmentRequest struct {
	DueDate time.Time       `json:"dueDate" validate:"required"`
	Amount  decimal.Decimal `json:"amount" validate:"required"`
}

type createRequest struct {
	InvoiceNo    string               `json:"invoiceNo" validate:"required,max=50"`
	Type         InvoiceType          `json:"type" validate:"required,oneof=Sales Purchase"`
	CustomerID   string               `json:"customerId" validate:"required"`
	Date         time.Time            `json:"date" validate:"required"`
	Items        []lineRequest        `json:"items" validate:"required,min=1,dive"`
	Description  string               `json:"description" validate:"omitempty,max=500"`
	Installments []installmentRequest `json:"installments" validate:"omitempty,dive"`
	PaidAmount   decimal.Decimal      `json:"paidAmount"`
}

type paymentRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Date          time.Time       `json:"date" validate:"required"`
	Method        PaymentMethod   `json:"paymentMethod" validate:"required,oneof=CashBox Bank"`
	SourceID      string          `json:"sourceId" validate:"required"`
	SourceName    string          `json:"sourceName" validate:"omitempty,max=200"`
	Description   string          `json:"description" validate:"omitempty,max=500"`
	InstallmentID string          `json:"installmentId"`
}

// Handler exposes invoice operations over JSON.
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

// MountRoutes attaches invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.list)
	r.Post("/invoices", h.create)
	r.Get("/invoices/{id}", h.show)
	r.Post("/invoices/{id}/cancel", h.cancel)
	r.Get("/invoices/{id}/payments", h.payments)
	r.Post("/invoices/{id}/payments", h.recordPayment)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if customerID := q.Get("customerId"); customerID != "" {
		items, err := h.service.ListByCustomer(r.Context(), customerID)
		if err != nil {
			h.logger.Error("list invoices by customer", slog.Any("error", err))
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
			h.logger.Error("paginate invoices", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pagination})
		return
	}
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
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
		items = append(items, LineInput{StockID: line.StockID, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	installments := make([]InstallmentInput, 0, len(req.Installments))
	for _, ins := range req.Installments {
		installments = append(installments, InstallmentInput{DueDate: ins.DueDate, Amount: ins.Amount})
	}
	invoice, err := h.service.Create(r.Context(), CreateInput{
		InvoiceNo:    req.InvoiceNo,
		Type:         req.Type,
		CustomerID:   req.CustomerID,
		Date:         req.Date,
		Items:        items,
		Description:  req.Description,
		Installments: installments,
		PaidAmount:   req.PaidAmount,
	})
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("cancel invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if invoice == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.invalidated(r.Context())
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Payments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), PaymentInput{
		InvoiceID:     chi.URLParam(r, "id"),
		Amount:        req.Amount,
		Date:          req.Date,
		Method:        req.Method,
		SourceID:      req.SourceID,
		SourceName:    req.SourceName,
		Description:   req.Description,
		InstallmentID: req.InstallmentID,
	})
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	httpx.JSON(w, http.StatusCreated, payment)
}
