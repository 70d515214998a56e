package finance

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/platform/httpx"
)

type cashBoxRequest struct {
	Name           string          `json:"name" validate:"required,max=100"`
	Code           string          `json:"code" validate:"omitempty,max=50"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	OpeningBalance decimal.Decimal `json:"balance"`
	IsActive       bool            `json:"isActive"`
}

type cashBoxUpdateRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Code     *string `json:"code,omitempty" validate:"omitempty,max=50"`
	Currency *string `json:"currency,omitempty" validate:"omitempty,len=3"`
	IsActive *bool   `json:"isActive,omitempty"`
}

type bankAccountRequest struct {
	BankName       string          `json:"bankName" validate:"required,max=100"`
	AccountName    string          `json:"accountName" validate:"required,max=100"`
	AccountNumber  string          `json:"accountNumber" validate:"omitempty,max=50"`
	IBAN           string          `json:"iban" validate:"omitempty,max=34"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	OpeningBalance decimal.Decimal `json:"balance"`
	IsActive       bool            `json:"isActive"`
}

type bankAccountUpdateRequest struct {
	BankName      *string `json:"bankName,omitempty" validate:"omitempty,max=100"`
	AccountName   *string `json:"accountName,omitempty" validate:"omitempty,max=100"`
	AccountNumber *string `json:"accountNumber,omitempty" validate:"omitempty,max=50"`
	IBAN          *string `json:"iban,omitempty" validate:"omitempty,max=34"`
	Currency      *string `json:"currency,omitempty" validate:"omitempty,len=3"`
	IsActive      *bool   `json:"isActive,omitempty"`
}

type movementRequest struct {
	CashBoxID        string          `json:"cashBoxId"`
	Type             MovementType    `json:"type" validate:"required,oneof=In Out"`
	Amount           decimal.Decimal `json:"amount"`
	Date             time.Time       `json:"date" validate:"required"`
	Description      string          `json:"description" validate:"omitempty,max=500"`
	RelatedInvoiceID string          `json:"relatedInvoiceId,omitempty"`
}

type bankTransactionRequest struct {
	BankAccountID    string              `json:"bankAccountId" validate:"required"`
	Type             BankTransactionKind `json:"type" validate:"required"`
	Amount           decimal.Decimal     `json:"amount"`
	Date             time.Time           `json:"date" validate:"required"`
	Description      string              `json:"description" validate:"omitempty,max=500"`
	RelatedInvoiceID string              `json:"relatedInvoiceId,omitempty"`
}

type rateRequest struct {
	Currency string          `json:"currency" validate:"omitempty,max=50"`
	Buying   decimal.Decimal `json:"buying"`
	Selling  decimal.Decimal `json:"selling"`
}

// Handler exposes the cash/bank ledger over JSON.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	enqueue    func(r *http.Request) error
	invalidate func(context.Context)
	validate   *validator.Validate
}

// NewHandler constructs a Handler. enqueueRefresh may be nil when no worker
// is wired (the refresh route then reports 503). invalidate is called after
// every successful balance-moving write; nil is allowed.
func NewHandler(logger *slog.Logger, service *Service, enqueueRefresh func(r *http.Request) error, invalidate func(context.Context)) *Handler {
	return &Handler{logger: logger, service: service, enqueue: enqueueRefresh, invalidate: invalidate, validate: validator.New()}
}

func (h *Handler) invalidated(ctx context.Context) {
	if h.invalidate != nil {
		h.invalidate(ctx)
	}
}

// MountRoutes attaches finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cash-boxes", h.listCashBoxes)
	r.Post("/cash-boxes", h.createCashBox)
	r.Put("/cash-boxes/{id}", h.updateCashBox)
	r.Delete("/cash-boxes/{id}", h.deleteCashBox)
	r.Get("/cash-balance", h.cashBalance)

	r.Get("/cash-movements", h.listMovements)
	r.Post("/cash-movements", h.createMovement)
	r.Delete("/cash-movements/{id}", h.deleteMovement)

	r.Get("/bank-accounts", h.listBankAccounts)
	r.Post("/bank-accounts", h.createBankAccount)
	r.Put("/bank-accounts/{id}", h.updateBankAccount)
	r.Delete("/bank-accounts/{id}", h.deleteBankAccount)

	r.Get("/bank-transactions", h.listBankTransactions)
	r.Post("/bank-transactions", h.createBankTransaction)
	r.Delete("/bank-transactions/{id}", h.deleteBankTransaction)

	r.Get("/rates", h.listRates)
	r.Put("/rates/{code}", h.updateRate)
	r.Delete("/rates/{code}", h.deleteRate)
	r.Post("/rates/refresh", h.refreshRates)
}

func (h *Handler) listCashBoxes(w http.ResponseWriter, r *http.Request) {
	boxes, err := h.service.ListCashBoxes(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": boxes})
}

func (h *Handler) createCashBox(w http.ResponseWriter, r *http.Request) {
	var req cashBoxRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	box, err := h.service.CreateCashBox(r.Context(), CashBoxInput{
		Name:           req.Name,
		Code:           req.Code,
		Currency:       req.Currency,
		OpeningBalance: req.OpeningBalance,
		IsActive:       req.IsActive,
	})
	if err != nil {
		h.logger.Error("create cash box", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	httpx.JSON(w, http.StatusCreated, box)
}

func (h *Handler) updateCashBox(w http.ResponseWriter, r *http.Request) {
	var req cashBoxUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	box, err := h.service.UpdateCashBox(r.Context(), chi.URLParam(r, "id"), req.Name, req.Code, req.Currency, req.IsActive)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, box)
}

func (h *Handler) deleteCashBox(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCashBox(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cashBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.CashBalance(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.ListCashMovements(r.Context(), r.URL.Query().Get("cashBoxId"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": movements})
}

func (h *Handler) createMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movement, err := h.service.CreateCashMovement(r.Context(), MovementInput{
		CashBoxID:        req.CashBoxID,
		Type:             req.Type,
		Amount:           req.Amount,
		Date:             req.Date,
		Description:      req.Description,
		RelatedInvoiceID: req.RelatedInvoiceID,
	})
	if err != nil {
		h.logger.Error("create cash movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) deleteMovement(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCashMovement(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listBankAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListBankAccounts(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": accounts})
}

func (h *Handler) createBankAccount(w http.ResponseWriter, r *http.Request) {
	var req bankAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.CreateBankAccount(r.Context(), BankAccountInput{
		BankName:       req.BankName,
		AccountName:    req.AccountName,
		AccountNumber:  req.AccountNumber,
		IBAN:           req.IBAN,
		Currency:       req.Currency,
		OpeningBalance: req.OpeningBalance,
		IsActive:       req.IsActive,
	})
	if err != nil {
		h.logger.Error("create bank account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) updateBankAccount(w http.ResponseWriter, r *http.Request) {
	var req bankAccountUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.UpdateBankAccount(r.Context(), chi.URLParam(r, "id"),
		req.BankName, req.AccountName, req.AccountNumber, req.IBAN, req.Currency, req.IsActive)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) deleteBankAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBankAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listBankTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.service.ListBankTransactions(r.Context(), r.URL.Query().Get("bankAccountId"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": txns})
}

func (h *Handler) createBankTransaction(w http.ResponseWriter, r *http.Request) {
	var req bankTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	txn, err := h.service.CreateBankTransaction(r.Context(), BankTransactionInput{
		BankAccountID:    req.BankAccountID,
		Type:             req.Type,
		Amount:           req.Amount,
		Date:             req.Date,
		Description:      req.Description,
		RelatedInvoiceID: req.RelatedInvoiceID,
	})
	if err != nil {
		h.logger.Error("create bank transaction", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) deleteBankTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBankTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.invalidated(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.ListExchangeRates(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rates})
}

func (h *Handler) updateRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	rate, err := h.service.UpdateExchangeRate(r.Context(), chi.URLParam(r, "code"), RateInput{
		Currency: req.Currency,
		Buying:   req.Buying,
		Selling:  req.Selling,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rate)
}

func (h *Handler) deleteRate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteExchangeRate(r.Context(), chi.URLParam(r, "code")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refreshRates(w http.ResponseWriter, r *http.Request) {
	if h.enqueue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "rate refresh worker not configured")
		return
	}
	if err := h.enqueue(r); err != nil {
		h.logger.Error("enqueue rates refresh", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
}
