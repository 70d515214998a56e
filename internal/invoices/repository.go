package invoices

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defter-erp/defter/internal/customers"
	"github.com/defter-erp/defter/internal/finance"
	"github.com/defter-erp/defter/internal/platform/db"
	"github.com/defter-erp/defter/internal/stock"
	"github.com/defter-erp/defter/internal/store"
)

// TxLedger exposes every write the invoice engine drives into the four
// ledgers plus its own collections, all bound to one transaction. Row locks
// must be taken in the fixed order customers, stocks, invoices, cash boxes /
// bank accounts.
type TxLedger interface {
	GetCustomerForUpdate(ctx context.Context, id string) (customers.Customer, error)
	UpdateCustomer(ctx context.Context, customer customers.Customer) error

	GetStockForUpdate(ctx context.Context, id string) (stock.Stock, error)
	UpdateStock(ctx context.Context, item stock.Stock) error

	GetInvoice(ctx context.Context, id string) (Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, id string) (Invoice, error)
	InsertInvoice(ctx context.Context, invoice *Invoice) error
	UpdateInvoice(ctx context.Context, invoice Invoice) error
	InsertPayment(ctx context.Context, payment *Payment) error

	GetCashBoxForUpdate(ctx context.Context, id string) (finance.CashBox, error)
	UpdateCashBox(ctx context.Context, box finance.CashBox) error
	InsertCashMovement(ctx context.Context, movement *finance.CashMovement) error

	GetBankAccountForUpdate(ctx context.Context, id string) (finance.BankAccount, error)
	UpdateBankAccount(ctx context.Context, account finance.BankAccount) error
	InsertBankTransaction(ctx context.Context, txn *finance.BankTransaction) error
}

// RepositoryPort defines data access for the invoice engine.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxLedger) error) error
	Get(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context) ([]Invoice, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Invoice, error)
	Paginate(ctx context.Context, page, limit int, query string) ([]Invoice, int, error)
	ListPayments(ctx context.Context, invoiceID string) ([]Payment, error)
}

// Repository persists invoices and payments through the entity store.
type Repository struct {
	pool  *pgxpool.Pool
	store *store.Store
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, store: store.New(pool)}
}

// WithTx runs fn against a transaction-bound ledger.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxLedger) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txLedger{store: r.store.WithQuerier(tx)})
	})
}

func (r *Repository) Get(ctx context.Context, id string) (Invoice, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return Invoice{}, err
	}
	return store.Decode[Invoice](doc)
}

func (r *Repository) List(ctx context.Context) ([]Invoice, error) {
	docs, err := r.store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[Invoice](docs)
}

func (r *Repository) ListByCustomer(ctx context.Context, customerID string) ([]Invoice, error) {
	docs, err := r.store.FindByField(ctx, Collection, "customerId", customerID)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[Invoice](docs)
}

func (r *Repository) Paginate(ctx context.Context, page, limit int, query string) ([]Invoice, int, error) {
	docs, total, err := r.store.Paginate(ctx, Collection, page, limit, query)
	if err != nil {
		return nil, 0, err
	}
	out, err := store.DecodeAll[Invoice](docs)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repository) ListPayments(ctx context.Context, invoiceID string) ([]Payment, error) {
	docs, err := r.store.FindByField(ctx, PaymentsCollection, "invoiceId", invoiceID)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[Payment](docs)
}

type txLedger struct {
	store *store.Store
}

func (l *txLedger) GetCustomerForUpdate(ctx context.Context, id string) (customers.Customer, error) {
	doc, err := l.store.GetForUpdate(ctx, customers.Collection, id)
	if err != nil {
		return customers.Customer{}, err
	}
	return store.Decode[customers.Customer](doc)
}

func (l *txLedger) UpdateCustomer(ctx context.Context, customer customers.Customer) error {
	customer.Touch(time.Now().UTC())
	return l.update(ctx, customers.Collection, customer.ID, customer, customer.UpdatedAt)
}

func (l *txLedger) GetStockForUpdate(ctx context.Context, id string) (stock.Stock, error) {
	doc, err := l.store.GetForUpdate(ctx, stock.Collection, id)
	if err != nil {
		return stock.Stock{}, err
	}
	return store.Decode[stock.Stock](doc)
}

func (l *txLedger) UpdateStock(ctx context.Context, item stock.Stock) error {
	item.Touch(time.Now().UTC())
	return l.update(ctx, stock.Collection, item.ID, item, item.UpdatedAt)
}

func (l *txLedger) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	doc, err := l.store.Get(ctx, Collection, id)
	if err != nil {
		return Invoice{}, err
	}
	return store.Decode[Invoice](doc)
}

func (l *txLedger) GetInvoiceForUpdate(ctx context.Context, id string) (Invoice, error) {
	doc, err := l.store.GetForUpdate(ctx, Collection, id)
	if err != nil {
		return Invoice{}, err
	}
	return store.Decode[Invoice](doc)
}

func (l *txLedger) InsertInvoice(ctx context.Context, invoice *Invoice) error {
	invoice.Meta = store.NewMeta(time.Now().UTC())
	return l.insert(ctx, Collection, invoice.ID, invoice, invoice.CreatedAt)
}

func (l *txLedger) UpdateInvoice(ctx context.Context, invoice Invoice) error {
	invoice.Touch(time.Now().UTC())
	return l.update(ctx, Collection, invoice.ID, invoice, invoice.UpdatedAt)
}

func (l *txLedger) InsertPayment(ctx context.Context, payment *Payment) error {
	payment.Meta = store.NewMeta(time.Now().UTC())
	return l.insert(ctx, PaymentsCollection, payment.ID, payment, payment.CreatedAt)
}

func (l *txLedger) GetCashBoxForUpdate(ctx context.Context, id string) (finance.CashBox, error) {
	doc, err := l.store.GetForUpdate(ctx, finance.CollectionCashBoxes, id)
	if err != nil {
		return finance.CashBox{}, err
	}
	return store.Decode[finance.CashBox](doc)
}

func (l *txLedger) UpdateCashBox(ctx context.Context, box finance.CashBox) error {
	box.Touch(time.Now().UTC())
	return l.update(ctx, finance.CollectionCashBoxes, box.ID, box, box.UpdatedAt)
}

func (l *txLedger) InsertCashMovement(ctx context.Context, movement *finance.CashMovement) error {
	movement.Meta = store.NewMeta(time.Now().UTC())
	return l.insert(ctx, finance.CollectionCashMovements, movement.ID, movement, movement.CreatedAt)
}

func (l *txLedger) GetBankAccountForUpdate(ctx context.Context, id string) (finance.BankAccount, error) {
	doc, err := l.store.GetForUpdate(ctx, finance.CollectionBankAccounts, id)
	if err != nil {
		return finance.BankAccount{}, err
	}
	return store.Decode[finance.BankAccount](doc)
}

func (l *txLedger) UpdateBankAccount(ctx context.Context, account finance.BankAccount) error {
	account.Touch(time.Now().UTC())
	return l.update(ctx, finance.CollectionBankAccounts, account.ID, account, account.UpdatedAt)
}

func (l *txLedger) InsertBankTransaction(ctx context.Context, txn *finance.BankTransaction) error {
	txn.Meta = store.NewMeta(time.Now().UTC())
	return l.insert(ctx, finance.CollectionBankTransactions, txn.ID, txn, txn.CreatedAt)
}

func (l *txLedger) insert(ctx context.Context, collection, id string, v any, now time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("invoices: marshal %s: %w", collection, err)
	}
	return l.store.Insert(ctx, collection, id, data, now)
}

func (l *txLedger) update(ctx context.Context, collection, id string, v any, now time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("invoices: marshal %s: %w", collection, err)
	}
	return l.store.Update(ctx, collection, id, data, now)
}
