package customers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defter-erp/defter/internal/store"
)

// RepositoryPort defines data access methods for customers.
type RepositoryPort interface {
	List(ctx context.Context) ([]Customer, error)
	Get(ctx context.Context, id string) (Customer, error)
	Create(ctx context.Context, customer *Customer) error
	Update(ctx context.Context, customer Customer) error
	Delete(ctx context.Context, id string) (bool, error)
	Paginate(ctx context.Context, page, limit int, query string) ([]Customer, int, error)
	CountReferences(ctx context.Context, customerID string) (invoices, dispatchNotes int, err error)
}

// Repository persists customers through the entity store.
type Repository struct {
	store *store.Store
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{store: store.New(pool)}
}

func (r *Repository) List(ctx context.Context) ([]Customer, error) {
	docs, err := r.store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[Customer](docs)
}

func (r *Repository) Get(ctx context.Context, id string) (Customer, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return Customer{}, err
	}
	return store.Decode[Customer](doc)
}

func (r *Repository) Create(ctx context.Context, customer *Customer) error {
	customer.Meta = store.NewMeta(time.Now().UTC())
	data, err := json.Marshal(customer)
	if err != nil {
		return fmt.Errorf("customers: marshal: %w", err)
	}
	return r.store.Insert(ctx, Collection, customer.ID, data, customer.CreatedAt)
}

func (r *Repository) Update(ctx context.Context, customer Customer) error {
	customer.Touch(time.Now().UTC())
	data, err := json.Marshal(customer)
	if err != nil {
		return fmt.Errorf("customers: marshal: %w", err)
	}
	return r.store.Update(ctx, Collection, customer.ID, data, customer.UpdatedAt)
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, Collection, id)
}

func (r *Repository) Paginate(ctx context.Context, page, limit int, query string) ([]Customer, int, error) {
	docs, total, err := r.store.Paginate(ctx, Collection, page, limit, query)
	if err != nil {
		return nil, 0, err
	}
	out, err := store.DecodeAll[Customer](docs)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountReferences counts invoices and dispatch notes still pointing at the
// customer. The collection names mirror the owning modules.
func (r *Repository) CountReferences(ctx context.Context, customerID string) (int, int, error) {
	invoices, err := r.store.CountByField(ctx, "invoices", "customerId", customerID)
	if err != nil {
		return 0, 0, err
	}
	dispatchNotes, err := r.store.CountByField(ctx, "dispatch_notes", "customerId", customerID)
	if err != nil {
		return 0, 0, err
	}
	return invoices, dispatchNotes, nil
}
