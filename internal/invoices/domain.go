package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/store"
)

// Entity store collections owned by this module.
const (
	Collection         = "invoices"
	PaymentsCollection = "payments"
)

// InvoiceType distinguishes sales from purchases. The type decides the sign
// of every ledger delta the engine applies.
type InvoiceType string

const (
	TypeSales    InvoiceType = "Sales"
	TypePurchase InvoiceType = "Purchase"
)

// StockDelta is the quantity change a line applies on creation: sales ship
// stock out, purchases bring it in.
func (t InvoiceType) StockDelta(quantity decimal.Decimal) decimal.Decimal {
	if t == TypeSales {
		return quantity.Neg()
	}
	return quantity
}

// BalanceDelta is the customer balance change on creation: a sale raises the
// receivable, a purchase raises the payable.
func (t InvoiceType) BalanceDelta(amount decimal.Decimal) decimal.Decimal {
	if t == TypeSales {
		return amount
	}
	return amount.Neg()
}

// Status is the invoice payment state.
type Status string

const (
	StatusOpen          Status = "Open"
	StatusPartiallyPaid Status = "PartiallyPaid"
	StatusPaid          Status = "Paid"
	StatusCancelled     Status = "Cancelled"
)

// StatusFor derives the status from cumulative paid amount versus grand
// total. Cancelled is terminal and overrides the paid-amount rule. A fresh
// invoice with nothing paid stays Open even when the grand total is zero;
// once any payment lands, covering the total means Paid.
func StatusFor(paidAmount, grandTotal decimal.Decimal, cancelled bool) Status {
	switch {
	case cancelled:
		return StatusCancelled
	case paidAmount.GreaterThanOrEqual(grandTotal) && paidAmount.IsPositive():
		return StatusPaid
	case paidAmount.IsPositive():
		return StatusPartiallyPaid
	default:
		return StatusOpen
	}
}

// Item is one invoice line. StockName and VATRate are snapshots frozen at
// creation time; later catalog edits do not touch past invoices.
type Item struct {
	StockID   string          `json:"stockId"`
	StockName string          `json:"stockName"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	VATRate   decimal.Decimal `json:"vatRate"`
	VATTotal  decimal.Decimal `json:"vatTotal"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// InstallmentStatus is the payment state of a scheduled installment.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "Pending"
	InstallmentPaid    InstallmentStatus = "Paid"
)

// Installment is a scheduled partial-payment obligation. PaymentID links the
// payment that settled it.
type Installment struct {
	ID        string            `json:"id"`
	DueDate   time.Time         `json:"dueDate"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    InstallmentStatus `json:"status"`
	PaymentID string            `json:"paymentId,omitempty"`
}

// Invoice is the persisted document. CustomerName is a snapshot of the name
// at creation time.
type Invoice struct {
	store.Meta
	InvoiceNo    string          `json:"invoiceNo"`
	Type         InvoiceType     `json:"type"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	Date         time.Time       `json:"date"`
	Items        []Item          `json:"items"`
	SubTotal     decimal.Decimal `json:"subTotal"`
	VATTotal     decimal.Decimal `json:"vatTotal"`
	GrandTotal   decimal.Decimal `json:"grandTotal"`
	PaidAmount   decimal.Decimal `json:"paidAmount"`
	Status       Status          `json:"status"`
	Description  string          `json:"description,omitempty"`
	Installments []Installment   `json:"installments,omitempty"`
}

// PaymentMethod routes money to a cash box or a bank account.
type PaymentMethod string

const (
	MethodCashBox PaymentMethod = "CashBox"
	MethodBank    PaymentMethod = "Bank"
)

// Payment is an append-only record of money received or paid against an
// invoice. SourceName is a snapshot of the box or account name.
type Payment struct {
	store.Meta
	InvoiceID   string          `json:"invoiceId"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"paymentMethod"`
	SourceID    string          `json:"sourceId"`
	SourceName  string          `json:"sourceName"`
	Description string          `json:"description,omitempty"`
}
