package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/shared"
)

// Service handles catalog and quantity rules.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields of a new catalog entry.
type CreateInput struct {
	Code            string
	Name            string
	Type            StockType
	Unit            Unit
	VATRate         decimal.Decimal
	SalePrice       decimal.Decimal
	OpeningQuantity decimal.Decimal
}

// UpdateInput carries optional fields for partial updates. Quantity changes
// go through AdjustQuantity, not here.
type UpdateInput struct {
	Name      *string
	Unit      *Unit
	VATRate   *decimal.Decimal
	SalePrice *decimal.Decimal
}

// Create registers a catalog entry. The code must be unused (exact,
// case-sensitive match); services always start and stay at quantity zero.
func (s *Service) Create(ctx context.Context, input CreateInput) (Stock, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return Stock{}, fmt.Errorf("stock: code required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return Stock{}, fmt.Errorf("stock: name required: %w", shared.ErrValidation)
	}
	if input.Type != TypeProduct && input.Type != TypeService {
		return Stock{}, fmt.Errorf("stock: unknown type %q: %w", input.Type, shared.ErrValidation)
	}
	if !ValidUnit(input.Unit) {
		return Stock{}, fmt.Errorf("stock: unknown unit %q: %w", input.Unit, shared.ErrValidation)
	}

	if _, exists, err := s.repo.FindByCode(ctx, code); err != nil {
		return Stock{}, err
	} else if exists {
		return Stock{}, fmt.Errorf("stock: code %s already in use: %w", code, shared.ErrDuplicate)
	}

	quantity := input.OpeningQuantity
	if input.Type == TypeService {
		quantity = decimal.Zero
	}
	item := Stock{
		Code:      code,
		Name:      strings.TrimSpace(input.Name),
		Type:      input.Type,
		Unit:      input.Unit,
		VATRate:   input.VATRate,
		SalePrice: input.SalePrice,
		Quantity:  quantity,
	}
	// The partial unique index on the code backs up this pre-check under
	// concurrent creates; the insert then also fails with ErrDuplicate.
	if err := s.repo.Create(ctx, &item); err != nil {
		return Stock{}, err
	}
	return item, nil
}

// Update merges the supplied fields into a catalog entry.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (Stock, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Stock{}, err
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return Stock{}, fmt.Errorf("stock: name required: %w", shared.ErrValidation)
		}
		item.Name = strings.TrimSpace(*input.Name)
	}
	if input.Unit != nil {
		if !ValidUnit(*input.Unit) {
			return Stock{}, fmt.Errorf("stock: unknown unit %q: %w", *input.Unit, shared.ErrValidation)
		}
		item.Unit = *input.Unit
	}
	if input.VATRate != nil {
		item.VATRate = *input.VATRate
	}
	if input.SalePrice != nil {
		item.SalePrice = *input.SalePrice
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return Stock{}, err
	}
	return item, nil
}

// AdjustQuantity adds delta (possibly negative) to the on-hand quantity and
// returns the resulting record. For services the call is a no-op and the
// unchanged record comes back. Quantities may go negative; there is no
// stock-out floor.
func (s *Service) AdjustQuantity(ctx context.Context, id string, delta decimal.Decimal) (Stock, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Stock{}, err
	}
	if !item.ApplyDelta(delta) {
		return item, nil
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return Stock{}, err
	}
	return item, nil
}

// Delete removes a catalog entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("stock: %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// Get returns a single catalog entry.
func (s *Service) Get(ctx context.Context, id string) (Stock, error) {
	return s.repo.Get(ctx, id)
}

// List returns the whole catalog ordered with Turkish collation.
func (s *Service) List(ctx context.Context) ([]Stock, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	shared.SortByName(out, func(item Stock) string { return item.Name })
	return out, nil
}

// Paginate returns one page of catalog entries matching the query.
func (s *Service) Paginate(ctx context.Context, page, limit int, query string) ([]Stock, shared.Pagination, error) {
	out, total, err := s.repo.Paginate(ctx, page, limit, query)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(page, limit, total), nil
}
