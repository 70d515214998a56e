package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defter-erp/defter/internal/customers"
	"github.com/defter-erp/defter/internal/platform/db"
	"github.com/defter-erp/defter/internal/stock"
	"github.com/defter-erp/defter/internal/store"
)

// TxRepository is the transaction-bound surface for dispatch writes. Locks
// follow the global order: customers first, then stocks, then notes.
type TxRepository interface {
	GetCustomerForUpdate(ctx context.Context, id string) (customers.Customer, error)

	GetStockForUpdate(ctx context.Context, id string) (stock.Stock, error)
	UpdateStock(ctx context.Context, item stock.Stock) error

	GetNote(ctx context.Context, id string) (Note, error)
	GetNoteForUpdate(ctx context.Context, id string) (Note, error)
	InsertNote(ctx context.Context, note *Note) error
	UpdateNote(ctx context.Context, note Note) error
	DeleteNote(ctx context.Context, id string) (bool, error)
}

// RepositoryPort defines data access for dispatch notes.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id string) (Note, error)
	List(ctx context.Context) ([]Note, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Note, error)
	Paginate(ctx context.Context, page, limit int, query string) ([]Note, int, error)
}

// Repository persists dispatch notes through the entity store.
type Repository struct {
	pool  *pgxpool.Pool
	store *store.Store
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, store: store.New(pool)}
}

// WithTx runs fn against a transaction-bound repository.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{store: r.store.WithQuerier(tx)})
	})
}

func (r *Repository) Get(ctx context.Context, id string) (Note, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return Note{}, err
	}
	return store.Decode[Note](doc)
}

func (r *Repository) List(ctx context.Context) ([]Note, error) {
	docs, err := r.store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[Note](docs)
}

func (r *Repository) ListByCustomer(ctx context.Context, customerID string) ([]Note, error) {
	docs, err := r.store.FindByField(ctx, Collection, "customerId", customerID)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[Note](docs)
}

func (r *Repository) Paginate(ctx context.Context, page, limit int, query string) ([]Note, int, error) {
	docs, total, err := r.store.Paginate(ctx, Collection, page, limit, query)
	if err != nil {
		return nil, 0, err
	}
	out, err := store.DecodeAll[Note](docs)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

type txRepository struct {
	store *store.Store
}

func (t *txRepository) GetCustomerForUpdate(ctx context.Context, id string) (customers.Customer, error) {
	doc, err := t.store.GetForUpdate(ctx, customers.Collection, id)
	if err != nil {
		return customers.Customer{}, err
	}
	return store.Decode[customers.Customer](doc)
}

func (t *txRepository) GetStockForUpdate(ctx context.Context, id string) (stock.Stock, error) {
	doc, err := t.store.GetForUpdate(ctx, stock.Collection, id)
	if err != nil {
		return stock.Stock{}, err
	}
	return store.Decode[stock.Stock](doc)
}

func (t *txRepository) UpdateStock(ctx context.Context, item stock.Stock) error {
	item.Touch(time.Now().UTC())
	return t.update(ctx, stock.Collection, item.ID, item, item.UpdatedAt)
}

func (t *txRepository) GetNote(ctx context.Context, id string) (Note, error) {
	doc, err := t.store.Get(ctx, Collection, id)
	if err != nil {
		return Note{}, err
	}
	return store.Decode[Note](doc)
}

func (t *txRepository) GetNoteForUpdate(ctx context.Context, id string) (Note, error) {
	doc, err := t.store.GetForUpdate(ctx, Collection, id)
	if err != nil {
		return Note{}, err
	}
	return store.Decode[Note](doc)
}

func (t *txRepository) InsertNote(ctx context.Context, note *Note) error {
	note.Meta = store.NewMeta(time.Now().UTC())
	return t.insert(ctx, Collection, note.ID, note, note.CreatedAt)
}

func (t *txRepository) UpdateNote(ctx context.Context, note Note) error {
	note.Touch(time.Now().UTC())
	return t.update(ctx, Collection, note.ID, note, note.UpdatedAt)
}

func (t *txRepository) DeleteNote(ctx context.Context, id string) (bool, error) {
	return t.store.Delete(ctx, Collection, id)
}

func (t *txRepository) insert(ctx context.Context, collection, id string, v any, now time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("dispatch: marshal %s: %w", collection, err)
	}
	return t.store.Insert(ctx, collection, id, data, now)
}

func (t *txRepository) update(ctx context.Context, collection, id string, v any, now time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("dispatch: marshal %s: %w", collection, err)
	}
	return t.store.Update(ctx, collection, id, data, now)
}
