package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/shared"
)

// Service handles customer business rules.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields a new customer may set. Balance always
// starts at zero.
type CreateInput struct {
	Type      CustomerType
	Name      string
	TaxNumber string
	Phone     string
	Email     string
	Address   string
}

// UpdateInput carries optional fields for partial updates. Balance is absent
// on purpose: it belongs to the invoice engine.
type UpdateInput struct {
	Type      *CustomerType
	Name      *string
	TaxNumber *string
	Phone     *string
	Email     *string
	Address   *string
}

// Create registers a customer with a zero balance.
func (s *Service) Create(ctx context.Context, input CreateInput) (Customer, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Customer{}, fmt.Errorf("customers: name required: %w", shared.ErrValidation)
	}
	if input.Type != TypeIndividual && input.Type != TypeCorporate {
		return Customer{}, fmt.Errorf("customers: unknown type %q: %w", input.Type, shared.ErrValidation)
	}
	customer := Customer{
		Type:      input.Type,
		Name:      strings.TrimSpace(input.Name),
		TaxNumber: input.TaxNumber,
		Phone:     input.Phone,
		Email:     input.Email,
		Address:   input.Address,
		Balance:   decimal.Zero,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, &customer); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// Update merges the supplied fields into an existing customer.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (Customer, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if input.Type != nil {
		if *input.Type != TypeIndividual && *input.Type != TypeCorporate {
			return Customer{}, fmt.Errorf("customers: unknown type %q: %w", *input.Type, shared.ErrValidation)
		}
		customer.Type = *input.Type
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return Customer{}, fmt.Errorf("customers: name required: %w", shared.ErrValidation)
		}
		customer.Name = strings.TrimSpace(*input.Name)
	}
	if input.TaxNumber != nil {
		customer.TaxNumber = *input.TaxNumber
	}
	if input.Phone != nil {
		customer.Phone = *input.Phone
	}
	if input.Email != nil {
		customer.Email = *input.Email
	}
	if input.Address != nil {
		customer.Address = *input.Address
	}
	if err := s.repo.Update(ctx, customer); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// SetActive toggles the active flag independently of the balance.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (Customer, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	customer.IsActive = active
	if err := s.repo.Update(ctx, customer); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// Delete removes a customer unless invoices or dispatch notes still reference
// it; then it fails with a ConflictError carrying both counts.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	invoices, dispatchNotes, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return err
	}
	if invoices > 0 || dispatchNotes > 0 {
		return &shared.ConflictError{Invoices: invoices, DispatchNotes: dispatchNotes}
	}
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("customers: %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// Get returns a single customer.
func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns all customers ordered with Turkish collation.
func (s *Service) List(ctx context.Context) ([]Customer, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	shared.SortByName(out, func(c Customer) string { return c.Name })
	return out, nil
}

// Paginate returns one page of customers matching the query.
func (s *Service) Paginate(ctx context.Context, page, limit int, query string) ([]Customer, shared.Pagination, error) {
	out, total, err := s.repo.Paginate(ctx, page, limit, query)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(page, limit, total), nil
}
