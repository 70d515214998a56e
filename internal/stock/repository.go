package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defter-erp/defter/internal/store"
)

// RepositoryPort defines data access methods for the stock catalog.
type RepositoryPort interface {
	List(ctx context.Context) ([]Stock, error)
	Get(ctx context.Context, id string) (Stock, error)
	FindByCode(ctx context.Context, code string) (Stock, bool, error)
	Create(ctx context.Context, item *Stock) error
	Update(ctx context.Context, item Stock) error
	Delete(ctx context.Context, id string) (bool, error)
	Paginate(ctx context.Context, page, limit int, query string) ([]Stock, int, error)
}

// Repository persists stock items through the entity store.
type Repository struct {
	store *store.Store
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{store: store.New(pool)}
}

func (r *Repository) List(ctx context.Context) ([]Stock, error) {
	docs, err := r.store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[Stock](docs)
}

func (r *Repository) Get(ctx context.Context, id string) (Stock, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return Stock{}, err
	}
	return store.Decode[Stock](doc)
}

// FindByCode looks up a stock item by its exact, case-sensitive code.
func (r *Repository) FindByCode(ctx context.Context, code string) (Stock, bool, error) {
	docs, err := r.store.FindByField(ctx, Collection, "code", code)
	if err != nil {
		return Stock{}, false, err
	}
	if len(docs) == 0 {
		return Stock{}, false, nil
	}
	item, err := store.Decode[Stock](docs[0])
	if err != nil {
		return Stock{}, false, err
	}
	return item, true, nil
}

func (r *Repository) Create(ctx context.Context, item *Stock) error {
	item.Meta = store.NewMeta(time.Now().UTC())
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("stock: marshal: %w", err)
	}
	return r.store.Insert(ctx, Collection, item.ID, data, item.CreatedAt)
}

func (r *Repository) Update(ctx context.Context, item Stock) error {
	item.Touch(time.Now().UTC())
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("stock: marshal: %w", err)
	}
	return r.store.Update(ctx, Collection, item.ID, data, item.UpdatedAt)
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, Collection, id)
}

func (r *Repository) Paginate(ctx context.Context, page, limit int, query string) ([]Stock, int, error) {
	docs, total, err := r.store.Paginate(ctx, Collection, page, limit, query)
	if err != nil {
		return nil, 0, err
	}
	out, err := store.DecodeAll[Stock](docs)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
