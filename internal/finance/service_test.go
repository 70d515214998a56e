package finance

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/defter-erp/defter/internal/shared"
	"github.com/defter-erp/defter/internal/store"
)

type memoryFinanceRepo struct {
	boxes     map[string]CashBox
	accounts  map[string]BankAccount
	movements map[string]CashMovement
	bankTxns  map[string]BankTransaction
	rates     map[string]ExchangeRate
	boxOrder  []string
}

func newMemoryFinanceRepo() *memoryFinanceRepo {
	return &memoryFinanceRepo{
		boxes:     make(map[string]CashBox),
		accounts:  make(map[string]BankAccount),
		movements: make(map[string]CashMovement),
		bankTxns:  make(map[string]BankTransaction),
		rates:     make(map[string]ExchangeRate),
	}
}

func (r *memoryFinanceRepo) ListCashBoxes(_ context.Context) ([]CashBox, error) {
	out := make([]CashBox, 0, len(r.boxOrder))
	for _, id := range r.boxOrder {
		out = append(out, r.boxes[id])
	}
	return out, nil
}

func (r *memoryFinanceRepo) GetCashBox(_ context.Context, id string) (CashBox, error) {
	b, ok := r.boxes[id]
	if !ok {
		return CashBox{}, shared.ErrNotFound
	}
	return b, nil
}

func (r *memoryFinanceRepo) CreateCashBox(_ context.Context, box *CashBox) error {
	box.Meta = store.NewMeta(time.Now().UTC())
	r.boxes[box.ID] = *box
	r.boxOrder = append(r.boxOrder, box.ID)
	return nil
}

func (r *memoryFinanceRepo) UpdateCashBox(_ context.Context, box CashBox) error {
	if _, ok := r.boxes[box.ID]; !ok {
		return shared.ErrNotFound
	}
	r.boxes[box.ID] = box
	return nil
}

func (r *memoryFinanceRepo) DeleteCashBox(_ context.Context, id string) (bool, error) {
	if _, ok := r.boxes[id]; !ok {
		return false, nil
	}
	delete(r.boxes, id)
	return true, nil
}

func (r *memoryFinanceRepo) ListBankAccounts(_ context.Context) ([]BankAccount, error) {
	out := make([]BankAccount, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *memoryFinanceRepo) GetBankAccount(_ context.Context, id string) (BankAccount, error) {
	a, ok := r.accounts[id]
	if !ok {
		return BankAccount{}, shared.ErrNotFound
	}
	return a, nil
}

func (r *memoryFinanceRepo) CreateBankAccount(_ context.Context, account *BankAccount) error {
	account.Meta = store.NewMeta(time.Now().UTC())
	r.accounts[account.ID] = *account
	return nil
}

func (r *memoryFinanceRepo) UpdateBankAccount(_ context.Context, account BankAccount) error {
	if _, ok := r.accounts[account.ID]; !ok {
		return shared.ErrNotFound
	}
	r.accounts[account.ID] = account
	return nil
}

func (r *memoryFinanceRepo) DeleteBankAccount(_ context.Context, id string) (bool, error) {
	if _, ok := r.accounts[id]; !ok {
		return false, nil
	}
	delete(r.accounts, id)
	return true, nil
}

func (r *memoryFinanceRepo) ListCashMovements(_ context.Context, cashBoxID string) ([]CashMovement, error) {
	var out []CashMovement
	for _, mv := range r.movements {
		if cashBoxID == "" || mv.CashBoxID == cashBoxID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (r *memoryFinanceRepo) ListBankTransactions(_ context.Context, bankAccountID string) ([]BankTransaction, error) {
	var out []BankTransaction
	for _, txn := range r.bankTxns {
		if bankAccountID == "" || txn.BankAccountID == bankAccountID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (r *memoryFinanceRepo) ListExchangeRates(_ context.Context) ([]ExchangeRate, error) {
	out := make([]ExchangeRate, 0, len(r.rates))
	for _, rate := range r.rates {
		out = append(out, rate)
	}
	return out, nil
}

func (r *memoryFinanceRepo) GetExchangeRate(_ context.Context, code string) (ExchangeRate, error) {
	rate, ok := r.rates[code]
	if !ok {
		return ExchangeRate{}, shared.ErrNotFound
	}
	return rate, nil
}

func (r *memoryFinanceRepo) UpsertExchangeRate(_ context.Context, rate ExchangeRate) error {
	r.rates[rate.Code] = rate
	return nil
}

func (r *memoryFinanceRepo) DeleteExchangeRate(_ context.Context, code string) (bool, error) {
	if _, ok := r.rates[code]; !ok {
		return false, nil
	}
	delete(r.rates, code)
	return true, nil
}

func (r *memoryFinanceRepo) WithTx(_ context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(context.Background(), r)
}

func (r *memoryFinanceRepo) GetCashBoxForUpdate(ctx context.Context, id string) (CashBox, error) {
	return r.GetCashBox(ctx, id)
}

func (r *memoryFinanceRepo) InsertCashMovement(_ context.Context, movement *CashMovement) error {
	movement.Meta = store.NewMeta(time.Now().UTC())
	r.movements[movement.ID] = *movement
	return nil
}

func (r *memoryFinanceRepo) GetCashMovement(_ context.Context, id string) (CashMovement, error) {
	mv, ok := r.movements[id]
	if !ok {
		return CashMovement{}, shared.ErrNotFound
	}
	return mv, nil
}

func (r *memoryFinanceRepo) DeleteCashMovement(_ context.Context, id string) (bool, error) {
	if _, ok := r.movements[id]; !ok {
		return false, nil
	}
	delete(r.movements, id)
	return true, nil
}

func (r *memoryFinanceRepo) GetBankAccountForUpdate(ctx context.Context, id string) (BankAccount, error) {
	return r.GetBankAccount(ctx, id)
}

func (r *memoryFinanceRepo) InsertBankTransaction(_ context.Context, txn *BankTransaction) error {
	txn.Meta = store.NewMeta(time.Now().UTC())
	r.bankTxns[txn.ID] = *txn
	return nil
}

func (r *memoryFinanceRepo) GetBankTransaction(_ context.Context, id string) (BankTransaction, error) {
	txn, ok := r.bankTxns[id]
	if !ok {
		return BankTransaction{}, shared.ErrNotFound
	}
	return txn, nil
}

func (r *memoryFinanceRepo) DeleteBankTransaction(_ context.Context, id string) (bool, error) {
	if _, ok := r.bankTxns[id]; !ok {
		return false, nil
	}
	delete(r.bankTxns, id)
	return true, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedBox(t *testing.T, svc *Service, name string, active bool) CashBox {
	t.Helper()
	box, err := svc.CreateCashBox(context.Background(), CashBoxInput{
		Name:           name,
		Currency:       "TRY",
		OpeningBalance: dec("1000"),
		IsActive:       active,
	})
	require.NoError(t, err)
	return box
}

func TestCashMovementAppliesDelta(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo)
	box := seedBox(t, svc, "Merkez Kasa", true)

	mv, err := svc.CreateCashMovement(context.Background(), MovementInput{
		CashBoxID:   box.ID,
		Type:        MovementIn,
		Amount:      dec("250"),
		Date:        time.Now().UTC(),
		Description: "tahsilat",
	})
	require.NoError(t, err)
	require.True(t, repo.boxes[box.ID].Balance.Equal(dec("1250")))

	_, err = svc.CreateCashMovement(context.Background(), MovementInput{
		CashBoxID: box.ID,
		Type:      MovementOut,
		Amount:    dec("400"),
		Date:      time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, repo.boxes[box.ID].Balance.Equal(dec("850")))

	require.NoError(t, svc.DeleteCashMovement(context.Background(), mv.ID))
	require.True(t, repo.boxes[box.ID].Balance.Equal(dec("600")))
}

func TestDeleteCashMovementIdempotent(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo)
	box := seedBox(t, svc, "Merkez Kasa", true)

	require.NoError(t, svc.DeleteCashMovement(context.Background(), "missing"))
	require.True(t, repo.boxes[box.ID].Balance.Equal(dec("1000")))
}

func TestCashMovementDefaultsToFirstActiveBox(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo)
	seedBox(t, svc, "Kapalı Kasa", false)
	active := seedBox(t, svc, "Merkez Kasa", true)

	mv, err := svc.CreateCashMovement(context.Background(), MovementInput{
		Type:   MovementIn,
		Amount: dec("100"),
		Date:   time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Equal(t, active.ID, mv.CashBoxID)
	require.True(t, repo.boxes[active.ID].Balance.Equal(dec("1100")))
}

func TestCashMovementNoActiveBox(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo)
	seedBox(t, svc, "Kapalı Kasa", false)

	_, err := svc.CreateCashMovement(context.Background(), MovementInput{
		Type:   MovementIn,
		Amount: dec("100"),
		Date:   time.Now().UTC(),
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCashMovementValidation(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo)
	box := seedBox(t, svc, "Merkez Kasa", true)

	_, err := svc.CreateCashMovement(context.Background(), MovementInput{
		CashBoxID: box.ID,
		Type:      "Sideways",
		Amount:    dec("10"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateCashMovement(context.Background(), MovementInput{
		CashBoxID: box.ID,
		Type:      MovementIn,
		Amount:    dec("-5"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestBankTransactionDirections(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo)
	account, err := svc.CreateBankAccount(context.Background(), BankAccountInput{
		BankName:       "İş Bankası",
		AccountName:    "Defter Ticaret",
		Currency:       "TRY",
		OpeningBalance: dec("1000"),
		IsActive:       true,
	})
	require.NoError(t, err)

	cases := []struct {
		kind    BankTransactionKind
		balance string
	}{
		{BankIncomingWire, "1100"},
		{BankOutgoingWire, "1000"},
		{BankEFT, "900"},
		{BankCashDeposit, "1000"},
		{BankCashWithdrawal, "900"},
		{BankBillPayment, "800"},
	}
	for _, tc := range cases {
		_, err := svc.CreateBankTransaction(context.Background(), BankTransactionInput{
			BankAccountID: account.ID,
			Type:          tc.kind,
			Amount:        dec("100"),
			Date:          time.Now().UTC(),
		})
		require.NoError(t, err, "kind %s", tc.kind)
		require.True(t, repo.accounts[account.ID].Balance.Equal(dec(tc.balance)),
			"kind %s: balance %s, want %s", tc.kind, repo.accounts[account.ID].Balance, tc.balance)
	}
}

func TestDeleteBankTransactionReversesDelta(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo)
	account, err := svc.CreateBankAccount(context.Background(), BankAccountInput{
		BankName:       "İş Bankası",
		AccountName:    "Defter Ticaret",
		Currency:       "TRY",
		OpeningBalance: dec("1000"),
		IsActive:       true,
	})
	require.NoError(t, err)

	txn, err := svc.CreateBankTransaction(context.Background(), BankTransactionInput{
		BankAccountID: account.ID,
		Type:          BankIncomingWire,
		Amount:        dec("300"),
		Date:          time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, repo.accounts[account.ID].Balance.Equal(dec("1300")))

	require.NoError(t, svc.DeleteBankTransaction(context.Background(), txn.ID))
	require.True(t, repo.accounts[account.ID].Balance.Equal(dec("1000")))
}

func TestCashBalanceSumsBoxes(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo)
	seedBox(t, svc, "Kasa 1", true)
	seedBox(t, svc, "Kasa 2", true)

	total, err := svc.CashBalance(context.Background())
	require.NoError(t, err)
	require.True(t, total.Equal(dec("2000")))
}

func TestExchangeRateUpsert(t *testing.T) {
	repo := newMemoryFinanceRepo()
	svc := NewService(repo)

	rate, err := svc.UpdateExchangeRate(context.Background(), "usd", RateInput{
		Currency: "Amerikan Doları",
		Buying:   dec("41.20"),
		Selling:  dec("41.55"),
	})
	require.NoError(t, err)
	require.Equal(t, "USD", rate.Code)

	rate, err = svc.UpdateExchangeRate(context.Background(), "USD", RateInput{
		Currency: "Amerikan Doları",
		Buying:   dec("41.30"),
		Selling:  dec("41.65"),
	})
	require.NoError(t, err)
	require.True(t, rate.Buying.Equal(dec("41.30")))
	require.Len(t, repo.rates, 1)

	require.NoError(t, svc.DeleteExchangeRate(context.Background(), "USD"))
	require.Empty(t, repo.rates)
}
