package invoices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/defter-erp/defter/internal/customers"
	"github.com/defter-erp/defter/internal/finance"
	"github.com/defter-erp/defter/internal/shared"
	"github.com/defter-erp/defter/internal/stock"
	"github.com/defter-erp/defter/internal/store"
)

type memoryLedger struct {
	customers map[string]customers.Customer
	stocks    map[string]stock.Stock
	invoices  map[string]Invoice
	payments  map[string]Payment
	boxes     map[string]finance.CashBox
	accounts  map[string]finance.BankAccount
	movements map[string]finance.CashMovement
	bankTxns  map[string]finance.BankTransaction

	failOn string
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		customers: make(map[string]customers.Customer),
		stocks:    make(map[string]stock.Stock),
		invoices:  make(map[string]Invoice),
		payments:  make(map[string]Payment),
		boxes:     make(map[string]finance.CashBox),
		accounts:  make(map[string]finance.BankAccount),
		movements: make(map[string]finance.CashMovement),
		bankTxns:  make(map[string]finance.BankTransaction),
	}
}

func (m *memoryLedger) snapshot() *memoryLedger {
	clone := newMemoryLedger()
	for k, v := range m.customers {
		clone.customers[k] = v
	}
	for k, v := range m.stocks {
		clone.stocks[k] = v
	}
	for k, v := range m.invoices {
		clone.invoices[k] = v
	}
	for k, v := range m.payments {
		clone.payments[k] = v
	}
	for k, v := range m.boxes {
		clone.boxes[k] = v
	}
	for k, v := range m.accounts {
		clone.accounts[k] = v
	}
	for k, v := range m.movements {
		clone.movements[k] = v
	}
	for k, v := range m.bankTxns {
		clone.bankTxns[k] = v
	}
	return clone
}

func (m *memoryLedger) restore(s *memoryLedger) {
	m.customers = s.customers
	m.stocks = s.stocks
	m.invoices = s.invoices
	m.payments = s.payments
	m.boxes = s.boxes
	m.accounts = s.accounts
	m.movements = s.movements
	m.bankTxns = s.bankTxns
}

func (m *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxLedger) error) error {
	saved := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func (m *memoryLedger) fail(method string) error {
	if m.failOn == method {
		return errors.New(method + " exploded")
	}
	return nil
}

func (m *memoryLedger) GetCustomerForUpdate(_ context.Context, id string) (customers.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return customers.Customer{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memoryLedger) UpdateCustomer(_ context.Context, c customers.Customer) error {
	m.customers[c.ID] = c
	return nil
}

func (m *memoryLedger) GetStockForUpdate(_ context.Context, id string) (stock.Stock, error) {
	s, ok := m.stocks[id]
	if !ok {
		return stock.Stock{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memoryLedger) UpdateStock(_ context.Context, s stock.Stock) error {
	m.stocks[s.ID] = s
	return nil
}

func (m *memoryLedger) GetInvoice(_ context.Context, id string) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (m *memoryLedger) GetInvoiceForUpdate(ctx context.Context, id string) (Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *memoryLedger) InsertInvoice(_ context.Context, inv *Invoice) error {
	inv.Meta = store.NewMeta(time.Now().UTC())
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *memoryLedger) UpdateInvoice(_ context.Context, inv Invoice) error {
	m.invoices[inv.ID] = inv
	return nil
}

func (m *memoryLedger) InsertPayment(_ context.Context, p *Payment) error {
	if err := m.fail("InsertPayment"); err != nil {
		return err
	}
	p.Meta = store.NewMeta(time.Now().UTC())
	m.payments[p.ID] = *p
	return nil
}

func (m *memoryLedger) GetCashBoxForUpdate(_ context.Context, id string) (finance.CashBox, error) {
	b, ok := m.boxes[id]
	if !ok {
		return finance.CashBox{}, shared.ErrNotFound
	}
	return b, nil
}

func (m *memoryLedger) UpdateCashBox(_ context.Context, b finance.CashBox) error {
	m.boxes[b.ID] = b
	return nil
}

func (m *memoryLedger) InsertCashMovement(_ context.Context, mv *finance.CashMovement) error {
	if err := m.fail("InsertCashMovement"); err != nil {
		return err
	}
	mv.Meta = store.NewMeta(time.Now().UTC())
	m.movements[mv.ID] = *mv
	return nil
}

func (m *memoryLedger) GetBankAccountForUpdate(_ context.Context, id string) (finance.BankAccount, error) {
	a, ok := m.accounts[id]
	if !ok {
		return finance.BankAccount{}, shared.ErrNotFound
	}
	return a, nil
}

func (m *memoryLedger) UpdateBankAccount(_ context.Context, a finance.BankAccount) error {
	m.accounts[a.ID] = a
	return nil
}

func (m *memoryLedger) InsertBankTransaction(_ context.Context, t *finance.BankTransaction) error {
	t.Meta = store.NewMeta(time.Now().UTC())
	m.bankTxns[t.ID] = *t
	return nil
}

func (m *memoryLedger) Get(ctx context.Context, id string) (Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *memoryLedger) List(_ context.Context) ([]Invoice, error) {
	out := make([]Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (m *memoryLedger) ListByCustomer(_ context.Context, customerID string) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memoryLedger) Paginate(_ context.Context, page, limit int, _ string) ([]Invoice, int, error) {
	out, _ := m.List(context.Background())
	return out, len(out), nil
}

func (m *memoryLedger) ListPayments(_ context.Context, invoiceID string) ([]Payment, error) {
	var out []Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedLedger() *memoryLedger {
	repo := newMemoryLedger()
	repo.customers["cust-1"] = customers.Customer{
		Meta:     store.Meta{ID: "cust-1"},
		Type:     customers.TypeCorporate,
		Name:     "Yılmaz İnşaat",
		Balance:  decimal.Zero,
		IsActive: true,
	}
	repo.stocks["stock-1"] = stock.Stock{
		Meta:     store.Meta{ID: "stock-1"},
		Code:     "CIM-001",
		Name:     "Çimento 50kg",
		Type:     stock.TypeProduct,
		Unit:     stock.UnitPiece,
		VATRate:  dec("20"),
		Quantity: dec("100"),
	}
	repo.stocks["stock-2"] = stock.Stock{
		Meta:     store.Meta{ID: "stock-2"},
		Code:     "DAN-001",
		Name:     "Danışmanlık",
		Type:     stock.TypeService,
		Unit:     stock.UnitHour,
		VATRate:  dec("20"),
		Quantity: decimal.Zero,
	}
	repo.boxes["box-1"] = finance.CashBox{
		Meta:     store.Meta{ID: "box-1"},
		Name:     "Merkez Kasa",
		Currency: "TRY",
		Balance:  dec("1000"),
		IsActive: true,
	}
	repo.accounts["acct-1"] = finance.BankAccount{
		Meta:     store.Meta{ID: "acct-1"},
		BankName: "İş Bankası",
		Currency: "TRY",
		Balance:  dec("5000"),
		IsActive: true,
	}
	return repo
}

func salesInput(paid string) CreateInput {
	return CreateInput{
		InvoiceNo:  "FTR-2026-001",
		Type:       TypeSales,
		CustomerID: "cust-1",
		Date:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Items: []LineInput{
			{StockID: "stock-1", Quantity: dec("10"), UnitPrice: dec("100")},
		},
		PaidAmount: dec(paid),
	}
}

func TestCreateSalesInvoice(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), salesInput("0"))
	require.NoError(t, err)

	// 10 × 100 = 1000 net, 20% VAT = 200.
	require.True(t, inv.SubTotal.Equal(dec("1000")), "subtotal %s", inv.SubTotal)
	require.True(t, inv.VATTotal.Equal(dec("200")))
	require.True(t, inv.GrandTotal.Equal(dec("1200")))
	require.Equal(t, StatusOpen, inv.Status)
	require.Equal(t, "Yılmaz İnşaat", inv.CustomerName)
	require.Equal(t, "Çimento 50kg", inv.Items[0].StockName)
	require.True(t, inv.Items[0].VATRate.Equal(dec("20")))
	require.True(t, inv.Items[0].LineTotal.Equal(dec("1200")))

	require.True(t, repo.stocks["stock-1"].Quantity.Equal(dec("90")))
	require.True(t, repo.customers["cust-1"].Balance.Equal(dec("1200")))
}

func TestCreatePurchaseInvoice(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	input := salesInput("0")
	input.Type = TypePurchase
	inv, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	require.True(t, repo.stocks["stock-1"].Quantity.Equal(dec("110")))
	require.True(t, repo.customers["cust-1"].Balance.Equal(dec("-1200")))
	require.Equal(t, StatusOpen, inv.Status)
}

func TestCreateInvoiceServiceLineSkipsQuantity(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	input := salesInput("0")
	input.Items = append(input.Items, LineInput{StockID: "stock-2", Quantity: dec("4"), UnitPrice: dec("1500")})
	inv, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	require.True(t, repo.stocks["stock-2"].Quantity.Equal(decimal.Zero))
	// 1000 + 6000 net, 1400 VAT.
	require.True(t, inv.GrandTotal.Equal(dec("8400")))
}

func TestCreateInvoiceRejectsEmptyItems(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	input := salesInput("0")
	input.Items = nil
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.True(t, repo.customers["cust-1"].Balance.IsZero())
}

func TestCreateInvoiceUnknownCustomer(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	input := salesInput("0")
	input.CustomerID = "nope"
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.True(t, repo.stocks["stock-1"].Quantity.Equal(dec("100")))
}

func TestCreateInvoiceWithDownPayment(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), salesInput("600"))
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, inv.Status)
}

func TestCreateInvoiceWithInstallments(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	input := salesInput("0")
	input.Installments = []InstallmentInput{
		{DueDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Amount: dec("600")},
		{DueDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), Amount: dec("600")},
	}
	inv, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, inv.Installments, 2)
	for _, ins := range inv.Installments {
		require.NotEmpty(t, ins.ID)
		require.Equal(t, InstallmentPending, ins.Status)
	}
}

func TestRecordPaymentCashFlow(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), salesInput("0"))
	require.NoError(t, err)

	pay, err := svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: inv.ID,
		Amount:    dec("500"),
		Date:      time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC),
		Method:    MethodCashBox,
		SourceID:  "box-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, pay.ID)

	updated := repo.invoices[inv.ID]
	require.Equal(t, StatusPartiallyPaid, updated.Status)
	require.True(t, updated.PaidAmount.Equal(dec("500")))
	require.True(t, repo.customers["cust-1"].Balance.Equal(dec("700")))
	require.True(t, repo.boxes["box-1"].Balance.Equal(dec("1500")))

	var movement finance.CashMovement
	for _, mv := range repo.movements {
		movement = mv
	}
	require.Equal(t, finance.MovementIn, movement.Type)
	require.Equal(t, inv.ID, movement.RelatedInvoiceID)
	require.Equal(t, "Invoice FTR-2026-001 payment", movement.Description)

	// Second payment settles the invoice; overshoot still maps to Paid.
	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: inv.ID,
		Amount:    dec("800"),
		Date:      time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC),
		Method:    MethodCashBox,
		SourceID:  "box-1",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, repo.invoices[inv.ID].Status)
}

func TestRecordPaymentBankPurchase(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	input := salesInput("0")
	input.Type = TypePurchase
	inv, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: inv.ID,
		Amount:    dec("1200"),
		Date:      time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC),
		Method:    MethodBank,
		SourceID:  "acct-1",
	})
	require.NoError(t, err)

	require.Equal(t, StatusPaid, repo.invoices[inv.ID].Status)
	require.True(t, repo.customers["cust-1"].Balance.IsZero())
	require.True(t, repo.accounts["acct-1"].Balance.Equal(dec("3800")))

	var txn finance.BankTransaction
	for _, bt := range repo.bankTxns {
		txn = bt
	}
	require.Equal(t, finance.BankOutgoingWire, txn.Type)
	require.Equal(t, inv.ID, txn.RelatedInvoiceID)
}

func TestRecordPaymentMarksInstallment(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	input := salesInput("0")
	input.Installments = []InstallmentInput{
		{DueDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Amount: dec("1200")},
	}
	inv, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	pay, err := svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID:     inv.ID,
		Amount:        dec("1200"),
		Date:          time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Method:        MethodCashBox,
		SourceID:      "box-1",
		InstallmentID: inv.Installments[0].ID,
	})
	require.NoError(t, err)

	updated := repo.invoices[inv.ID]
	require.Equal(t, InstallmentPaid, updated.Installments[0].Status)
	require.Equal(t, pay.ID, updated.Installments[0].PaymentID)
}

func TestRecordPaymentValidation(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: "any",
		Amount:    decimal.Zero,
		Method:    MethodCashBox,
		SourceID:  "box-1",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: "any",
		Amount:    dec("10"),
		Method:    "Cheque",
		SourceID:  "box-1",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: "any",
		Amount:    dec("10"),
		Method:    MethodCashBox,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordPaymentRollsBackOnFailure(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), salesInput("0"))
	require.NoError(t, err)

	repo.failOn = "InsertCashMovement"
	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: inv.ID,
		Amount:    dec("500"),
		Date:      time.Now().UTC(),
		Method:    MethodCashBox,
		SourceID:  "box-1",
	})
	require.Error(t, err)

	// The failed transaction must leave no trace anywhere.
	require.True(t, repo.invoices[inv.ID].PaidAmount.IsZero())
	require.Equal(t, StatusOpen, repo.invoices[inv.ID].Status)
	require.True(t, repo.customers["cust-1"].Balance.Equal(dec("1200")))
	require.True(t, repo.boxes["box-1"].Balance.Equal(dec("1000")))
	require.Empty(t, repo.payments)
	require.Empty(t, repo.movements)
}

func TestCancelInvoice(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), salesInput("0"))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), inv.ID)
	require.NoError(t, err)
	require.NotNil(t, cancelled)
	require.Equal(t, StatusCancelled, cancelled.Status)

	require.True(t, repo.stocks["stock-1"].Quantity.Equal(dec("100")))
	require.True(t, repo.customers["cust-1"].Balance.IsZero())
}

func TestCancelInvoiceKeepsPayments(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), salesInput("0"))
	require.NoError(t, err)
	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: inv.ID,
		Amount:    dec("500"),
		Date:      time.Now().UTC(),
		Method:    MethodCashBox,
		SourceID:  "box-1",
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), inv.ID)
	require.NoError(t, err)

	// Payment record and cash movement survive cancellation untouched.
	require.Len(t, repo.payments, 1)
	require.Len(t, repo.movements, 1)
	require.True(t, repo.boxes["box-1"].Balance.Equal(dec("1500")))
}

func TestCancelInvoiceIdempotent(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), salesInput("0"))
	require.NoError(t, err)

	first, err := svc.Cancel(context.Background(), inv.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.Cancel(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Nil(t, second)

	// Deltas reversed exactly once.
	require.True(t, repo.stocks["stock-1"].Quantity.Equal(dec("100")))
	require.True(t, repo.customers["cust-1"].Balance.IsZero())
}

func TestCancelAbsentInvoice(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	out, err := svc.Cancel(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, StatusCancelled, StatusFor(dec("50"), dec("100"), true))
	require.Equal(t, StatusPaid, StatusFor(dec("100"), dec("100"), false))
	require.Equal(t, StatusPaid, StatusFor(dec("150"), dec("100"), false))
	require.Equal(t, StatusPaid, StatusFor(dec("10"), decimal.Zero, false))
	require.Equal(t, StatusPartiallyPaid, StatusFor(dec("50"), dec("100"), false))
	require.Equal(t, StatusOpen, StatusFor(decimal.Zero, dec("100"), false))
	require.Equal(t, StatusOpen, StatusFor(decimal.Zero, decimal.Zero, false))
}

func TestRecordPaymentSettlesZeroTotalInvoice(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	input := salesInput("0")
	input.Items = []LineInput{
		{StockID: "stock-1", Quantity: dec("10"), UnitPrice: decimal.Zero},
	}
	inv, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.True(t, inv.GrandTotal.IsZero())
	require.Equal(t, StatusOpen, inv.Status)

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID: inv.ID,
		Amount:    dec("10"),
		Date:      time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC),
		Method:    MethodCashBox,
		SourceID:  "box-1",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, repo.invoices[inv.ID].Status)
}

func TestPaymentsRoundTrip(t *testing.T) {
	repo := seedLedger()
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), salesInput("0"))
	require.NoError(t, err)

	date := time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC)
	recorded, err := svc.RecordPayment(context.Background(), PaymentInput{
		InvoiceID:   inv.ID,
		Amount:      dec("300"),
		Date:        date,
		Method:      MethodCashBox,
		SourceID:    "box-1",
		Description: "ilk taksit",
	})
	require.NoError(t, err)

	payments, err := svc.Payments(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, recorded.ID, payments[0].ID)
	require.Equal(t, inv.ID, payments[0].InvoiceID)
	require.True(t, payments[0].Amount.Equal(dec("300")))
	require.True(t, payments[0].Date.Equal(date))
	require.Equal(t, MethodCashBox, payments[0].Method)
	require.Equal(t, "box-1", payments[0].SourceID)
	require.Equal(t, "ilk taksit", payments[0].Description)
}
