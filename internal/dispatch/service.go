package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/shared"
	"github.com/defter-erp/defter/internal/stock"
)

// Service implements dispatch note operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// LineInput is one requested dispatch line.
type LineInput struct {
	StockID  string
	Quantity decimal.Decimal
}

// CreateInput carries everything needed to create a dispatch note.
type CreateInput struct {
	DispatchNo  string
	CustomerID  string
	Date        time.Time
	Items       []LineInput
	Description string
}

// Create snapshots the customer and stock names, decrements every line's
// stock quantity and persists the note unlinked, all in one transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (Note, error) {
	if len(input.Items) == 0 {
		return Note{}, fmt.Errorf("dispatch: note has no items: %w", shared.ErrValidation)
	}

	var note Note
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		customer, err := tx.GetCustomerForUpdate(ctx, input.CustomerID)
		if err != nil {
			return err
		}

		stocks, err := lockStocks(ctx, tx, lineStockIDs(input.Items))
		if err != nil {
			return err
		}
		items := make([]Item, 0, len(input.Items))
		for _, line := range input.Items {
			st := stocks[line.StockID]
			items = append(items, Item{
				StockID:   st.ID,
				StockName: st.Name,
				Quantity:  line.Quantity,
			})
			st.ApplyDelta(line.Quantity.Neg())
		}
		if err := updateStocks(ctx, tx, stocks); err != nil {
			return err
		}

		note = Note{
			DispatchNo:   input.DispatchNo,
			CustomerID:   customer.ID,
			CustomerName: customer.Name,
			Date:         input.Date,
			Items:        items,
			Description:  input.Description,
		}
		return tx.InsertNote(ctx, &note)
	})
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

// LinkToInvoice attaches an invoice reference to an existing note. The
// invoice engine never calls this; linking is always an explicit request.
func (s *Service) LinkToInvoice(ctx context.Context, noteID, invoiceID string) (Note, error) {
	if invoiceID == "" {
		return Note{}, fmt.Errorf("dispatch: invoice id required: %w", shared.ErrValidation)
	}
	var note Note
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetNoteForUpdate(ctx, noteID)
		if err != nil {
			return err
		}
		current.LinkedInvoiceID = invoiceID
		if err := tx.UpdateNote(ctx, current); err != nil {
			return err
		}
		note = current
		return nil
	})
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

// Delete removes a note and restores the stock it shipped. Deleting an
// absent note is a no-op.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		note, err := tx.GetNote(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}

		ids := make([]string, 0, len(note.Items))
		for _, item := range note.Items {
			ids = append(ids, item.StockID)
		}
		stocks, err := lockStocks(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, item := range note.Items {
			stocks[item.StockID].ApplyDelta(item.Quantity)
		}
		if err := updateStocks(ctx, tx, stocks); err != nil {
			return err
		}

		_, err = tx.DeleteNote(ctx, id)
		return err
	})
}

// Get returns a single note.
func (s *Service) Get(ctx context.Context, id string) (Note, error) {
	return s.repo.Get(ctx, id)
}

// List returns all notes.
func (s *Service) List(ctx context.Context) ([]Note, error) {
	return s.repo.List(ctx)
}

// ListByCustomer returns the notes referencing a customer.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Note, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

// Paginate returns one page of notes matching the query.
func (s *Service) Paginate(ctx context.Context, page, limit int, query string) ([]Note, shared.Pagination, error) {
	out, total, err := s.repo.Paginate(ctx, page, limit, query)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(page, limit, total), nil
}

func lineStockIDs(items []LineInput) []string {
	ids := make([]string, 0, len(items))
	for _, line := range items {
		ids = append(ids, line.StockID)
	}
	return ids
}

func lockStocks(ctx context.Context, tx TxRepository, ids []string) (map[string]*stock.Stock, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	stocks := make(map[string]*stock.Stock, len(unique))
	for _, id := range unique {
		st, err := tx.GetStockForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		item := st
		stocks[id] = &item
	}
	return stocks, nil
}

func updateStocks(ctx context.Context, tx TxRepository, stocks map[string]*stock.Stock) error {
	ids := make([]string, 0, len(stocks))
	for id := range stocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := tx.UpdateStock(ctx, *stocks[id]); err != nil {
			return err
		}
	}
	return nil
}
