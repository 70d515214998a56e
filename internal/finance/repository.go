package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defter-erp/defter/internal/platform/db"
	"github.com/defter-erp/defter/internal/shared"
	"github.com/defter-erp/defter/internal/store"
)

// RepositoryPort defines data access methods for the cash/bank ledger.
type RepositoryPort interface {
	ListCashBoxes(ctx context.Context) ([]CashBox, error)
	GetCashBox(ctx context.Context, id string) (CashBox, error)
	CreateCashBox(ctx context.Context, box *CashBox) error
	UpdateCashBox(ctx context.Context, box CashBox) error
	DeleteCashBox(ctx context.Context, id string) (bool, error)

	ListBankAccounts(ctx context.Context) ([]BankAccount, error)
	GetBankAccount(ctx context.Context, id string) (BankAccount, error)
	CreateBankAccount(ctx context.Context, account *BankAccount) error
	UpdateBankAccount(ctx context.Context, account BankAccount) error
	DeleteBankAccount(ctx context.Context, id string) (bool, error)

	ListCashMovements(ctx context.Context, cashBoxID string) ([]CashMovement, error)
	ListBankTransactions(ctx context.Context, bankAccountID string) ([]BankTransaction, error)

	ListExchangeRates(ctx context.Context) ([]ExchangeRate, error)
	GetExchangeRate(ctx context.Context, code string) (ExchangeRate, error)
	UpsertExchangeRate(ctx context.Context, rate ExchangeRate) error
	DeleteExchangeRate(ctx context.Context, code string) (bool, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the balance-affecting operations that must share one
// transaction.
type TxRepository interface {
	GetCashBoxForUpdate(ctx context.Context, id string) (CashBox, error)
	UpdateCashBox(ctx context.Context, box CashBox) error
	InsertCashMovement(ctx context.Context, movement *CashMovement) error
	GetCashMovement(ctx context.Context, id string) (CashMovement, error)
	DeleteCashMovement(ctx context.Context, id string) (bool, error)

	GetBankAccountForUpdate(ctx context.Context, id string) (BankAccount, error)
	UpdateBankAccount(ctx context.Context, account BankAccount) error
	InsertBankTransaction(ctx context.Context, txn *BankTransaction) error
	GetBankTransaction(ctx context.Context, id string) (BankTransaction, error)
	DeleteBankTransaction(ctx context.Context, id string) (bool, error)
}

// Repository persists the cash/bank ledger through the entity store.
type Repository struct {
	pool  *pgxpool.Pool
	store *store.Store
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, store: store.New(pool)}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{store: r.store.WithQuerier(tx)})
	})
}

func (r *Repository) ListCashBoxes(ctx context.Context) ([]CashBox, error) {
	docs, err := r.store.List(ctx, CollectionCashBoxes)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[CashBox](docs)
}

func (r *Repository) GetCashBox(ctx context.Context, id string) (CashBox, error) {
	doc, err := r.store.Get(ctx, CollectionCashBoxes, id)
	if err != nil {
		return CashBox{}, err
	}
	return store.Decode[CashBox](doc)
}

func (r *Repository) CreateCashBox(ctx context.Context, box *CashBox) error {
	box.Meta = store.NewMeta(time.Now().UTC())
	return insert(ctx, r.store, CollectionCashBoxes, box.ID, box, box.CreatedAt)
}

func (r *Repository) UpdateCashBox(ctx context.Context, box CashBox) error {
	box.Touch(time.Now().UTC())
	return update(ctx, r.store, CollectionCashBoxes, box.ID, box, box.UpdatedAt)
}

func (r *Repository) DeleteCashBox(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, CollectionCashBoxes, id)
}

func (r *Repository) ListBankAccounts(ctx context.Context) ([]BankAccount, error) {
	docs, err := r.store.List(ctx, CollectionBankAccounts)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[BankAccount](docs)
}

func (r *Repository) GetBankAccount(ctx context.Context, id string) (BankAccount, error) {
	doc, err := r.store.Get(ctx, CollectionBankAccounts, id)
	if err != nil {
		return BankAccount{}, err
	}
	return store.Decode[BankAccount](doc)
}

func (r *Repository) CreateBankAccount(ctx context.Context, account *BankAccount) error {
	account.Meta = store.NewMeta(time.Now().UTC())
	return insert(ctx, r.store, CollectionBankAccounts, account.ID, account, account.CreatedAt)
}

func (r *Repository) UpdateBankAccount(ctx context.Context, account BankAccount) error {
	account.Touch(time.Now().UTC())
	return update(ctx, r.store, CollectionBankAccounts, account.ID, account, account.UpdatedAt)
}

func (r *Repository) DeleteBankAccount(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, CollectionBankAccounts, id)
}

func (r *Repository) ListCashMovements(ctx context.Context, cashBoxID string) ([]CashMovement, error) {
	var (
		docs []store.Document
		err  error
	)
	if cashBoxID == "" {
		docs, err = r.store.List(ctx, CollectionCashMovements)
	} else {
		docs, err = r.store.FindByField(ctx, CollectionCashMovements, "cashBoxId", cashBoxID)
	}
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[CashMovement](docs)
}

func (r *Repository) ListBankTransactions(ctx context.Context, bankAccountID string) ([]BankTransaction, error) {
	var (
		docs []store.Document
		err  error
	)
	if bankAccountID == "" {
		docs, err = r.store.List(ctx, CollectionBankTransactions)
	} else {
		docs, err = r.store.FindByField(ctx, CollectionBankTransactions, "bankAccountId", bankAccountID)
	}
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[BankTransaction](docs)
}

func (r *Repository) ListExchangeRates(ctx context.Context) ([]ExchangeRate, error) {
	docs, err := r.store.List(ctx, CollectionExchangeRates)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[ExchangeRate](docs)
}

func (r *Repository) GetExchangeRate(ctx context.Context, code string) (ExchangeRate, error) {
	doc, err := r.store.Get(ctx, CollectionExchangeRates, code)
	if err != nil {
		return ExchangeRate{}, err
	}
	return store.Decode[ExchangeRate](doc)
}

// UpsertExchangeRate updates the quote for rate.Code, creating it when the
// currency is new. Rates are keyed by code, not by generated id.
func (r *Repository) UpsertExchangeRate(ctx context.Context, rate ExchangeRate) error {
	now := time.Now().UTC()
	rate.UpdatedAt = now
	data, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("finance: marshal rate: %w", err)
	}
	err = r.store.Update(ctx, CollectionExchangeRates, rate.Code, data, now)
	if errors.Is(err, shared.ErrNotFound) {
		return r.store.Insert(ctx, CollectionExchangeRates, rate.Code, data, now)
	}
	return err
}

func (r *Repository) DeleteExchangeRate(ctx context.Context, code string) (bool, error) {
	return r.store.Delete(ctx, CollectionExchangeRates, code)
}

type txRepo struct {
	store *store.Store
}

func (r *txRepo) GetCashBoxForUpdate(ctx context.Context, id string) (CashBox, error) {
	doc, err := r.store.GetForUpdate(ctx, CollectionCashBoxes, id)
	if err != nil {
		return CashBox{}, err
	}
	return store.Decode[CashBox](doc)
}

func (r *txRepo) UpdateCashBox(ctx context.Context, box CashBox) error {
	box.Touch(time.Now().UTC())
	return update(ctx, r.store, CollectionCashBoxes, box.ID, box, box.UpdatedAt)
}

func (r *txRepo) InsertCashMovement(ctx context.Context, movement *CashMovement) error {
	movement.Meta = store.NewMeta(time.Now().UTC())
	return insert(ctx, r.store, CollectionCashMovements, movement.ID, movement, movement.CreatedAt)
}

func (r *txRepo) GetCashMovement(ctx context.Context, id string) (CashMovement, error) {
	doc, err := r.store.GetForUpdate(ctx, CollectionCashMovements, id)
	if err != nil {
		return CashMovement{}, err
	}
	return store.Decode[CashMovement](doc)
}

func (r *txRepo) DeleteCashMovement(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, CollectionCashMovements, id)
}

func (r *txRepo) GetBankAccountForUpdate(ctx context.Context, id string) (BankAccount, error) {
	doc, err := r.store.GetForUpdate(ctx, CollectionBankAccounts, id)
	if err != nil {
		return BankAccount{}, err
	}
	return store.Decode[BankAccount](doc)
}

func (r *txRepo) UpdateBankAccount(ctx context.Context, account BankAccount) error {
	account.Touch(time.Now().UTC())
	return update(ctx, r.store, CollectionBankAccounts, account.ID, account, account.UpdatedAt)
}

func (r *txRepo) InsertBankTransaction(ctx context.Context, txn *BankTransaction) error {
	txn.Meta = store.NewMeta(time.Now().UTC())
	return insert(ctx, r.store, CollectionBankTransactions, txn.ID, txn, txn.CreatedAt)
}

func (r *txRepo) GetBankTransaction(ctx context.Context, id string) (BankTransaction, error) {
	doc, err := r.store.GetForUpdate(ctx, CollectionBankTransactions, id)
	if err != nil {
		return BankTransaction{}, err
	}
	return store.Decode[BankTransaction](doc)
}

func (r *txRepo) DeleteBankTransaction(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, CollectionBankTransactions, id)
}

func insert(ctx context.Context, s *store.Store, collection, id string, v any, now time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("finance: marshal %s: %w", collection, err)
	}
	return s.Insert(ctx, collection, id, data, now)
}

func update(ctx context.Context, s *store.Store, collection, id string, v any, now time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("finance: marshal %s: %w", collection, err)
	}
	return s.Update(ctx, collection, id, data, now)
}
