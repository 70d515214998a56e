package users

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defter-erp/defter/internal/store"
)

// RepositoryPort defines data access for user accounts.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, bool, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user User) error
}

// Repository persists users through the entity store.
type Repository struct {
	store *store.Store
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{store: store.New(pool)}
}

func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return User{}, err
	}
	return store.Decode[User](doc)
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (User, bool, error) {
	docs, err := r.store.FindByField(ctx, Collection, "username", username)
	if err != nil {
		return User{}, false, err
	}
	if len(docs) == 0 {
		return User{}, false, nil
	}
	user, err := store.Decode[User](docs[0])
	if err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

func (r *Repository) Create(ctx context.Context, user *User) error {
	user.Meta = store.NewMeta(time.Now().UTC())
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("users: marshal: %w", err)
	}
	return r.store.Insert(ctx, Collection, user.ID, data, user.CreatedAt)
}

func (r *Repository) Update(ctx context.Context, user User) error {
	user.Touch(time.Now().UTC())
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("users: marshal: %w", err)
	}
	return r.store.Update(ctx, Collection, user.ID, data, user.UpdatedAt)
}
