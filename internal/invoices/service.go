package invoices

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/finance"
	"github.com/defter-erp/defter/internal/shared"
	"github.com/defter-erp/defter/internal/stock"
)

// Service is the invoice engine. Every compound operation runs inside one
// transaction so a failing step leaves no partial ledger writes behind.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// LineInput is one requested invoice line. Price and quantity come from the
// caller; VAT rate and name are snapshotted from the catalog.
type LineInput struct {
	StockID   string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// InstallmentInput is one requested schedule entry.
type InstallmentInput struct {
	DueDate time.Time
	Amount  decimal.Decimal
}

// CreateInput carries everything needed to create an invoice.
type CreateInput struct {
	InvoiceNo    string
	Type         InvoiceType
	CustomerID   string
	Date         time.Time
	Items        []LineInput
	Description  string
	Installments []InstallmentInput
	PaidAmount   decimal.Decimal
}

// PaymentInput carries everything needed to record a payment.
type PaymentInput struct {
	InvoiceID     string
	Amount        decimal.Decimal
	Date          time.Time
	Method        PaymentMethod
	SourceID      string
	SourceName    string
	Description   string
	InstallmentID string
}

// Create computes line totals, adjusts stock quantities and the customer
// balance, and persists the invoice in a single transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (Invoice, error) {
	if len(input.Items) == 0 {
		return Invoice{}, fmt.Errorf("invoices: invoice has no items: %w", shared.ErrValidation)
	}
	if input.Type != TypeSales && input.Type != TypePurchase {
		return Invoice{}, fmt.Errorf("invoices: unknown type %q: %w", input.Type, shared.ErrValidation)
	}
	if input.PaidAmount.IsNegative() {
		return Invoice{}, fmt.Errorf("invoices: negative down payment: %w", shared.ErrValidation)
	}

	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxLedger) error {
		customer, err := tx.GetCustomerForUpdate(ctx, input.CustomerID)
		if err != nil {
			return err
		}

		stocks, err := lockStocks(ctx, tx, stockIDs(input.Items))
		if err != nil {
			return err
		}

		subTotal := decimal.Zero
		vatTotal := decimal.Zero
		items := make([]Item, 0, len(input.Items))
		for _, line := range input.Items {
			st := stocks[line.StockID]
			lineSubTotal := line.Quantity.Mul(line.UnitPrice)
			lineVAT := lineSubTotal.Mul(st.VATRate).Div(decimal.NewFromInt(100))
			items = append(items, Item{
				StockID:   st.ID,
				StockName: st.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				VATRate:   st.VATRate,
				VATTotal:  lineVAT,
				LineTotal: lineSubTotal.Add(lineVAT),
			})
			subTotal = subTotal.Add(lineSubTotal)
			vatTotal = vatTotal.Add(lineVAT)

			st.ApplyDelta(input.Type.StockDelta(line.Quantity))
		}
		if err := updateStocks(ctx, tx, stocks); err != nil {
			return err
		}

		grandTotal := subTotal.Add(vatTotal)
		customer.Balance = customer.Balance.Add(input.Type.BalanceDelta(grandTotal))
		if err := tx.UpdateCustomer(ctx, customer); err != nil {
			return err
		}

		installments := make([]Installment, 0, len(input.Installments))
		for _, ins := range input.Installments {
			installments = append(installments, Installment{
				ID:      uuid.NewString(),
				DueDate: ins.DueDate,
				Amount:  ins.Amount,
				Status:  InstallmentPending,
			})
		}

		invoice = Invoice{
			InvoiceNo:    input.InvoiceNo,
			Type:         input.Type,
			CustomerID:   customer.ID,
			CustomerName: customer.Name,
			Date:         input.Date,
			Items:        items,
			SubTotal:     subTotal,
			VATTotal:     vatTotal,
			GrandTotal:   grandTotal,
			PaidAmount:   input.PaidAmount,
			Status:       StatusFor(input.PaidAmount, grandTotal, false),
			Description:  input.Description,
			Installments: installments,
		}
		return tx.InsertInvoice(ctx, &invoice)
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// RecordPayment appends a payment, moves the invoice status along the
// Open → PartiallyPaid → Paid machine, settles the named installment, shrinks
// the customer balance and routes the money into a cash box or bank account.
// Overpayment is accepted; a paidAmount above grandTotal still maps to Paid.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	if !input.Amount.IsPositive() {
		return Payment{}, fmt.Errorf("invoices: payment amount must be positive: %w", shared.ErrValidation)
	}
	if input.Method != MethodCashBox && input.Method != MethodBank {
		return Payment{}, fmt.Errorf("invoices: unknown payment method %q: %w", input.Method, shared.ErrValidation)
	}
	if input.SourceID == "" {
		return Payment{}, fmt.Errorf("invoices: payment source required: %w", shared.ErrValidation)
	}

	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxLedger) error {
		// Plain read first: the customer row must be locked before the
		// invoice row to keep the global lock order.
		peek, err := tx.GetInvoice(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		customer, err := tx.GetCustomerForUpdate(ctx, peek.CustomerID)
		if err != nil {
			return err
		}
		invoice, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}

		payment = Payment{
			InvoiceID:   invoice.ID,
			Date:        input.Date,
			Amount:      input.Amount,
			Method:      input.Method,
			SourceID:    input.SourceID,
			SourceName:  input.SourceName,
			Description: input.Description,
		}
		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return err
		}

		invoice.PaidAmount = invoice.PaidAmount.Add(input.Amount)
		invoice.Status = StatusFor(invoice.PaidAmount, invoice.GrandTotal, invoice.Status == StatusCancelled)
		if input.InstallmentID != "" {
			for i := range invoice.Installments {
				if invoice.Installments[i].ID == input.InstallmentID {
					invoice.Installments[i].Status = InstallmentPaid
					invoice.Installments[i].PaymentID = payment.ID
				}
			}
		}
		if err := tx.UpdateInvoice(ctx, invoice); err != nil {
			return err
		}

		// Payments move the balance opposite to creation: receivables and
		// payables both shrink.
		customer.Balance = customer.Balance.Sub(invoice.Type.BalanceDelta(input.Amount))
		if err := tx.UpdateCustomer(ctx, customer); err != nil {
			return err
		}

		description := input.Description
		if description == "" {
			description = fmt.Sprintf("Invoice %s payment", invoice.InvoiceNo)
		}
		if input.Method == MethodCashBox {
			return routeToCashBox(ctx, tx, invoice, input, description)
		}
		return routeToBank(ctx, tx, invoice, input, description)
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// Cancel reverses the creation-time customer and stock deltas and marks the
// invoice Cancelled. Payments already posted are deliberately left alone.
// Absent or already-cancelled invoices are a no-op returning nil.
func (s *Service) Cancel(ctx context.Context, id string) (*Invoice, error) {
	var cancelled *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxLedger) error {
		invoice, err := tx.GetInvoice(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		if invoice.Status == StatusCancelled {
			return nil
		}

		customer, err := tx.GetCustomerForUpdate(ctx, invoice.CustomerID)
		if err != nil {
			return err
		}
		// Exact inverse of creation, ignoring any payments since.
		customer.Balance = customer.Balance.Sub(invoice.Type.BalanceDelta(invoice.GrandTotal))
		if err := tx.UpdateCustomer(ctx, customer); err != nil {
			return err
		}

		ids := make([]string, 0, len(invoice.Items))
		for _, item := range invoice.Items {
			ids = append(ids, item.StockID)
		}
		stocks, err := lockStocks(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, item := range invoice.Items {
			st := stocks[item.StockID]
			st.ApplyDelta(invoice.Type.StockDelta(item.Quantity).Neg())
		}
		if err := updateStocks(ctx, tx, stocks); err != nil {
			return err
		}

		invoice, err = tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		invoice.Status = StatusCancelled
		if err := tx.UpdateInvoice(ctx, invoice); err != nil {
			return err
		}
		cancelled = &invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Get returns a single invoice.
func (s *Service) Get(ctx context.Context, id string) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns all invoices.
func (s *Service) List(ctx context.Context) ([]Invoice, error) {
	return s.repo.List(ctx)
}

// ListByCustomer returns the invoices referencing a customer.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Invoice, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

// Paginate returns one page of invoices matching the query.
func (s *Service) Paginate(ctx context.Context, page, limit int, query string) ([]Invoice, shared.Pagination, error) {
	out, total, err := s.repo.Paginate(ctx, page, limit, query)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(page, limit, total), nil
}

// Payments returns the payment history of an invoice.
func (s *Service) Payments(ctx context.Context, invoiceID string) ([]Payment, error) {
	return s.repo.ListPayments(ctx, invoiceID)
}

func routeToCashBox(ctx context.Context, tx TxLedger, invoice Invoice, input PaymentInput, description string) error {
	box, err := tx.GetCashBoxForUpdate(ctx, input.SourceID)
	if err != nil {
		return err
	}
	movementType := finance.MovementIn
	delta := input.Amount
	if invoice.Type == TypePurchase {
		movementType = finance.MovementOut
		delta = input.Amount.Neg()
	}
	movement := finance.CashMovement{
		CashBoxID:        box.ID,
		Date:             input.Date,
		Type:             movementType,
		Amount:           input.Amount,
		Description:      description,
		RelatedInvoiceID: invoice.ID,
	}
	if err := tx.InsertCashMovement(ctx, &movement); err != nil {
		return err
	}
	box.Balance = box.Balance.Add(delta)
	return tx.UpdateCashBox(ctx, box)
}

func routeToBank(ctx context.Context, tx TxLedger, invoice Invoice, input PaymentInput, description string) error {
	account, err := tx.GetBankAccountForUpdate(ctx, input.SourceID)
	if err != nil {
		return err
	}
	kind := finance.BankIncomingWire
	delta := input.Amount
	if invoice.Type == TypePurchase {
		kind = finance.BankOutgoingWire
		delta = input.Amount.Neg()
	}
	txn := finance.BankTransaction{
		BankAccountID:    account.ID,
		Date:             input.Date,
		Type:             kind,
		Amount:           input.Amount,
		Description:      description,
		RelatedInvoiceID: invoice.ID,
	}
	if err := tx.InsertBankTransaction(ctx, &txn); err != nil {
		return err
	}
	account.Balance = account.Balance.Add(delta)
	return tx.UpdateBankAccount(ctx, account)
}

func stockIDs(items []LineInput) []string {
	ids := make([]string, 0, len(items))
	for _, line := range items {
		ids = append(ids, line.StockID)
	}
	return ids
}

// lockStocks takes row locks on the referenced stocks in sorted id order so
// concurrent invoices cannot deadlock on each other.
func lockStocks(ctx context.Context, tx TxLedger, ids []string) (map[string]*stock.Stock, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	stocks := make(map[string]*stock.Stock, len(unique))
	for _, id := range unique {
		st, err := tx.GetStockForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		item := st
		stocks[id] = &item
	}
	return stocks, nil
}

func updateStocks(ctx context.Context, tx TxLedger, stocks map[string]*stock.Stock) error {
	ids := make([]string, 0, len(stocks))
	for id := range stocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := tx.UpdateStock(ctx, *stocks[id]); err != nil {
			return err
		}
	}
	return nil
}
