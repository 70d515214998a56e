package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/store"
)

// Entity store collections owned by this module.
const (
	CollectionCashBoxes        = "cash_boxes"
	CollectionBankAccounts     = "bank_accounts"
	CollectionCashMovements    = "cash_movements"
	CollectionBankTransactions = "bank_transactions"
	CollectionExchangeRates    = "exchange_rates"
)

// CashBox is a named till holding a running balance in one currency.
type CashBox struct {
	store.Meta
	Name     string          `json:"name"`
	Code     string          `json:"code"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	IsActive bool            `json:"isActive"`
}

// BankAccount mirrors CashBox for bank-held money.
type BankAccount struct {
	store.Meta
	BankName      string          `json:"bankName"`
	AccountName   string          `json:"accountName"`
	AccountNumber string          `json:"accountNumber"`
	IBAN          string          `json:"iban"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	IsActive      bool            `json:"isActive"`
}

// MovementType is the direction of a cash movement.
type MovementType string

const (
	MovementIn  MovementType = "In"
	MovementOut MovementType = "Out"
)

// CashMovement is an atomic balance-affecting event against a cash box.
// Creating one applies ±amount to the box; deleting one reverses it.
type CashMovement struct {
	store.Meta
	CashBoxID        string          `json:"cashBoxId"`
	Date             time.Time       `json:"date"`
	Type             MovementType    `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	RelatedInvoiceID string          `json:"relatedInvoiceId,omitempty"`
}

// BankTransactionKind enumerates the supported bank operations.
type BankTransactionKind string

const (
	BankIncomingWire   BankTransactionKind = "IncomingWire"
	BankOutgoingWire   BankTransactionKind = "OutgoingWire"
	BankEFT            BankTransactionKind = "EFT"
	BankCashDeposit    BankTransactionKind = "CashDeposit"
	BankCashWithdrawal BankTransactionKind = "CashWithdrawal"
	BankBillPayment    BankTransactionKind = "BillPayment"
)

// ValidBankTransactionKind reports whether k is a known kind.
func ValidBankTransactionKind(k BankTransactionKind) bool {
	switch k {
	case BankIncomingWire, BankOutgoingWire, BankEFT, BankCashDeposit, BankCashWithdrawal, BankBillPayment:
		return true
	}
	return false
}

// IncreasesBalance reports the direction of a kind. Incoming wires and cash
// deposits add to the account; every other kind subtracts.
func (k BankTransactionKind) IncreasesBalance() bool {
	return k == BankIncomingWire || k == BankCashDeposit
}

// BankTransaction is an atomic balance-affecting event against a bank account.
type BankTransaction struct {
	store.Meta
	BankAccountID    string              `json:"bankAccountId"`
	Date             time.Time           `json:"date"`
	Type             BankTransactionKind `json:"type"`
	Amount           decimal.Decimal     `json:"amount"`
	Description      string              `json:"description"`
	RelatedInvoiceID string              `json:"relatedInvoiceId,omitempty"`
}

// ExchangeRate is an externally supplied quote, keyed by currency code. The
// ledger stores and serves these; it never converts amounts itself.
type ExchangeRate struct {
	Code      string          `json:"code"`
	Currency  string          `json:"currency"`
	Buying    decimal.Decimal `json:"buying"`
	Selling   decimal.Decimal `json:"selling"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
