package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/shared"
)

// Service handles the cash/bank ledger rules.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CashBoxInput carries the fields of a new cash box.
type CashBoxInput struct {
	Name           string
	Code           string
	Currency       string
	OpeningBalance decimal.Decimal
	IsActive       bool
}

// BankAccountInput carries the fields of a new bank account.
type BankAccountInput struct {
	BankName       string
	AccountName    string
	AccountNumber  string
	IBAN           string
	Currency       string
	OpeningBalance decimal.Decimal
	IsActive       bool
}

// MovementInput describes a cash movement to record. CashBoxID may be empty;
// the first active box is used then.
type MovementInput struct {
	CashBoxID        string
	Type             MovementType
	Amount           decimal.Decimal
	Date             time.Time
	Description      string
	RelatedInvoiceID string
}

// BankTransactionInput describes a bank transaction to record.
type BankTransactionInput struct {
	BankAccountID    string
	Type             BankTransactionKind
	Amount           decimal.Decimal
	Date             time.Time
	Description      string
	RelatedInvoiceID string
}

// RateInput carries an exchange-rate quote.
type RateInput struct {
	Currency string
	Buying   decimal.Decimal
	Selling  decimal.Decimal
}

// CreateCashBox registers a cash box.
func (s *Service) CreateCashBox(ctx context.Context, input CashBoxInput) (CashBox, error) {
	if strings.TrimSpace(input.Name) == "" {
		return CashBox{}, fmt.Errorf("finance: cash box name required: %w", shared.ErrValidation)
	}
	box := CashBox{
		Name:     strings.TrimSpace(input.Name),
		Code:     input.Code,
		Currency: input.Currency,
		Balance:  input.OpeningBalance,
		IsActive: input.IsActive,
	}
	if err := s.repo.CreateCashBox(ctx, &box); err != nil {
		return CashBox{}, err
	}
	return box, nil
}

// UpdateCashBox merges name/code/currency/active changes. Balance moves only
// through movements.
func (s *Service) UpdateCashBox(ctx context.Context, id string, name, code, currency *string, isActive *bool) (CashBox, error) {
	box, err := s.repo.GetCashBox(ctx, id)
	if err != nil {
		return CashBox{}, err
	}
	if name != nil {
		box.Name = strings.TrimSpace(*name)
	}
	if code != nil {
		box.Code = *code
	}
	if currency != nil {
		box.Currency = *currency
	}
	if isActive != nil {
		box.IsActive = *isActive
	}
	if err := s.repo.UpdateCashBox(ctx, box); err != nil {
		return CashBox{}, err
	}
	return box, nil
}

// DeleteCashBox removes a cash box.
func (s *Service) DeleteCashBox(ctx context.Context, id string) error {
	removed, err := s.repo.DeleteCashBox(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("finance: cash box %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ListCashBoxes returns every cash box.
func (s *Service) ListCashBoxes(ctx context.Context) ([]CashBox, error) {
	return s.repo.ListCashBoxes(ctx)
}

// GetCashBox returns a single cash box.
func (s *Service) GetCashBox(ctx context.Context, id string) (CashBox, error) {
	return s.repo.GetCashBox(ctx, id)
}

// CashBalance sums the balances of all cash boxes.
func (s *Service) CashBalance(ctx context.Context) (decimal.Decimal, error) {
	boxes, err := s.repo.ListCashBoxes(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, box := range boxes {
		total = total.Add(box.Balance)
	}
	return total, nil
}

// CreateBankAccount registers a bank account.
func (s *Service) CreateBankAccount(ctx context.Context, input BankAccountInput) (BankAccount, error) {
	if strings.TrimSpace(input.BankName) == "" || strings.TrimSpace(input.AccountName) == "" {
		return BankAccount{}, fmt.Errorf("finance: bank and account name required: %w", shared.ErrValidation)
	}
	account := BankAccount{
		BankName:      strings.TrimSpace(input.BankName),
		AccountName:   strings.TrimSpace(input.AccountName),
		AccountNumber: input.AccountNumber,
		IBAN:          input.IBAN,
		Currency:      input.Currency,
		Balance:       input.OpeningBalance,
		IsActive:      input.IsActive,
	}
	if err := s.repo.CreateBankAccount(ctx, &account); err != nil {
		return BankAccount{}, err
	}
	return account, nil
}

// UpdateBankAccount merges identification changes. Balance moves only
// through transactions.
func (s *Service) UpdateBankAccount(ctx context.Context, id string, bankName, accountName, accountNumber, iban, currency *string, isActive *bool) (BankAccount, error) {
	account, err := s.repo.GetBankAccount(ctx, id)
	if err != nil {
		return BankAccount{}, err
	}
	if bankName != nil {
		account.BankName = strings.TrimSpace(*bankName)
	}
	if accountName != nil {
		account.AccountName = strings.TrimSpace(*accountName)
	}
	if accountNumber != nil {
		account.AccountNumber = *accountNumber
	}
	if iban != nil {
		account.IBAN = *iban
	}
	if currency != nil {
		account.Currency = *currency
	}
	if isActive != nil {
		account.IsActive = *isActive
	}
	if err := s.repo.UpdateBankAccount(ctx, account); err != nil {
		return BankAccount{}, err
	}
	return account, nil
}

// DeleteBankAccount removes a bank account.
func (s *Service) DeleteBankAccount(ctx context.Context, id string) error {
	removed, err := s.repo.DeleteBankAccount(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("finance: bank account %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ListBankAccounts returns every bank account.
func (s *Service) ListBankAccounts(ctx context.Context) ([]BankAccount, error) {
	return s.repo.ListBankAccounts(ctx)
}

// GetBankAccount returns a single bank account.
func (s *Service) GetBankAccount(ctx context.Context, id string) (BankAccount, error) {
	return s.repo.GetBankAccount(ctx, id)
}

// CreateCashMovement records a movement and applies ±amount to the box
// balance within one transaction.
func (s *Service) CreateCashMovement(ctx context.Context, input MovementInput) (CashMovement, error) {
	if input.Type != MovementIn && input.Type != MovementOut {
		return CashMovement{}, fmt.Errorf("finance: unknown movement type %q: %w", input.Type, shared.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return CashMovement{}, fmt.Errorf("finance: movement amount must be positive: %w", shared.ErrValidation)
	}

	boxID := input.CashBoxID
	if boxID == "" {
		boxes, err := s.repo.ListCashBoxes(ctx)
		if err != nil {
			return CashMovement{}, err
		}
		for _, box := range boxes {
			if box.IsActive {
				boxID = box.ID
				break
			}
		}
		if boxID == "" {
			return CashMovement{}, fmt.Errorf("finance: no active cash box: %w", shared.ErrNotFound)
		}
	}

	movement := CashMovement{
		CashBoxID:        boxID,
		Date:             input.Date,
		Type:             input.Type,
		Amount:           input.Amount,
		Description:      input.Description,
		RelatedInvoiceID: input.RelatedInvoiceID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		box, err := tx.GetCashBoxForUpdate(ctx, boxID)
		if err != nil {
			return err
		}
		if err := tx.InsertCashMovement(ctx, &movement); err != nil {
			return err
		}
		box.Balance = box.Balance.Add(movementDelta(movement.Type, movement.Amount))
		return tx.UpdateCashBox(ctx, box)
	})
	if err != nil {
		return CashMovement{}, err
	}
	return movement, nil
}

// DeleteCashMovement removes a movement and reverses its balance effect.
// Deleting an absent movement is a no-op.
func (s *Service) DeleteCashMovement(ctx context.Context, id string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movement, err := tx.GetCashMovement(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if _, err := tx.DeleteCashMovement(ctx, id); err != nil {
			return err
		}
		box, err := tx.GetCashBoxForUpdate(ctx, movement.CashBoxID)
		if err != nil {
			// The box may have been deleted since; the movement is gone
			// either way.
			if isNotFound(err) {
				return nil
			}
			return err
		}
		box.Balance = box.Balance.Sub(movementDelta(movement.Type, movement.Amount))
		return tx.UpdateCashBox(ctx, box)
	})
}

// ListCashMovements returns movements, optionally filtered by box.
func (s *Service) ListCashMovements(ctx context.Context, cashBoxID string) ([]CashMovement, error) {
	return s.repo.ListCashMovements(ctx, cashBoxID)
}

// CreateBankTransaction records a transaction and applies the kind's delta to
// the account balance within one transaction.
func (s *Service) CreateBankTransaction(ctx context.Context, input BankTransactionInput) (BankTransaction, error) {
	if !ValidBankTransactionKind(input.Type) {
		return BankTransaction{}, fmt.Errorf("finance: unknown bank transaction kind %q: %w", input.Type, shared.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return BankTransaction{}, fmt.Errorf("finance: transaction amount must be positive: %w", shared.ErrValidation)
	}
	if input.BankAccountID == "" {
		return BankTransaction{}, fmt.Errorf("finance: bank account required: %w", shared.ErrValidation)
	}

	txn := BankTransaction{
		BankAccountID:    input.BankAccountID,
		Date:             input.Date,
		Type:             input.Type,
		Amount:           input.Amount,
		Description:      input.Description,
		RelatedInvoiceID: input.RelatedInvoiceID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetBankAccountForUpdate(ctx, input.BankAccountID)
		if err != nil {
			return err
		}
		if err := tx.InsertBankTransaction(ctx, &txn); err != nil {
			return err
		}
		account.Balance = account.Balance.Add(bankDelta(txn.Type, txn.Amount))
		return tx.UpdateBankAccount(ctx, account)
	})
	if err != nil {
		return BankTransaction{}, err
	}
	return txn, nil
}

// DeleteBankTransaction removes a transaction and reverses its balance
// effect. Deleting an absent transaction is a no-op.
func (s *Service) DeleteBankTransaction(ctx context.Context, id string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := tx.GetBankTransaction(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if _, err := tx.DeleteBankTransaction(ctx, id); err != nil {
			return err
		}
		account, err := tx.GetBankAccountForUpdate(ctx, txn.BankAccountID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		account.Balance = account.Balance.Sub(bankDelta(txn.Type, txn.Amount))
		return tx.UpdateBankAccount(ctx, account)
	})
}

// ListBankTransactions returns transactions, optionally filtered by account.
func (s *Service) ListBankTransactions(ctx context.Context, bankAccountID string) ([]BankTransaction, error) {
	return s.repo.ListBankTransactions(ctx, bankAccountID)
}

// ListExchangeRates returns all stored quotes.
func (s *Service) ListExchangeRates(ctx context.Context) ([]ExchangeRate, error) {
	return s.repo.ListExchangeRates(ctx)
}

// UpdateExchangeRate upserts the quote for a currency code.
func (s *Service) UpdateExchangeRate(ctx context.Context, code string, input RateInput) (ExchangeRate, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ExchangeRate{}, fmt.Errorf("finance: currency code required: %w", shared.ErrValidation)
	}
	currency := input.Currency
	if currency == "" {
		currency = code
	}
	rate := ExchangeRate{
		Code:     code,
		Currency: currency,
		Buying:   input.Buying,
		Selling:  input.Selling,
	}
	if err := s.repo.UpsertExchangeRate(ctx, rate); err != nil {
		return ExchangeRate{}, err
	}
	return s.repo.GetExchangeRate(ctx, code)
}

// DeleteExchangeRate removes a quote. Absent codes are a no-op.
func (s *Service) DeleteExchangeRate(ctx context.Context, code string) error {
	_, err := s.repo.DeleteExchangeRate(ctx, code)
	return err
}

func movementDelta(t MovementType, amount decimal.Decimal) decimal.Decimal {
	if t == MovementIn {
		return amount
	}
	return amount.Neg()
}

func bankDelta(k BankTransactionKind, amount decimal.Decimal) decimal.Decimal {
	if k.IncreasesBalance() {
		return amount
	}
	return amount.Neg()
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
