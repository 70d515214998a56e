package dashboard

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/defter-erp/defter/internal/customers"
	"github.com/defter-erp/defter/internal/dispatch"
	"github.com/defter-erp/defter/internal/finance"
	"github.com/defter-erp/defter/internal/invoices"
	"github.com/defter-erp/defter/internal/platform/cache"
)

const (
	cacheKey    = "dashboard:summary"
	recentLimit = 5
)

// Summary is the landing-page aggregate.
type Summary struct {
	CashBalance          decimal.Decimal    `json:"cashBalance"`
	BankBalance          decimal.Decimal    `json:"bankBalance"`
	Receivables          decimal.Decimal    `json:"receivables"`
	Payables             decimal.Decimal    `json:"payables"`
	OpenInvoices         int                `json:"openInvoices"`
	PendingDispatchNotes int                `json:"pendingDispatchNotes"`
	RecentInvoices       []invoices.Invoice `json:"recentInvoices"`
}

// CustomerSource supplies customer balances.
type CustomerSource interface {
	List(ctx context.Context) ([]customers.Customer, error)
}

// FinanceSource supplies cash and bank balances.
type FinanceSource interface {
	ListCashBoxes(ctx context.Context) ([]finance.CashBox, error)
	ListBankAccounts(ctx context.Context) ([]finance.BankAccount, error)
}

// InvoiceSource supplies invoice records.
type InvoiceSource interface {
	List(ctx context.Context) ([]invoices.Invoice, error)
}

// DispatchSource supplies dispatch note records.
type DispatchSource interface {
	List(ctx context.Context) ([]dispatch.Note, error)
}

// Service builds the dashboard summary. Results are cached in redis with a
// short TTL and concurrent builds for the same key are deduplicated.
type Service struct {
	customers CustomerSource
	finance   FinanceSource
	invoices  InvoiceSource
	dispatch  DispatchSource
	cache     *cache.JSONCache
	group     singleflight.Group
}

// NewService builds a Service instance. cache may be nil, in which case every
// call recomputes.
func NewService(customers CustomerSource, finance FinanceSource, invoices InvoiceSource, dispatch DispatchSource, jsonCache *cache.JSONCache) *Service {
	return &Service{
		customers: customers,
		finance:   finance,
		invoices:  invoices,
		dispatch:  dispatch,
		cache:     jsonCache,
	}
}

// Summary returns the aggregate, from cache when fresh.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	out, err, _ := s.group.Do(cacheKey, func() (any, error) {
		var summary Summary
		if s.cache != nil {
			err := s.cache.Fetch(ctx, cacheKey, &summary, func(ctx context.Context) (any, error) {
				return s.build(ctx)
			})
			return summary, err
		}
		return s.build(ctx)
	})
	if err != nil {
		return Summary{}, err
	}
	return out.(Summary), nil
}

// Invalidate drops the cached summary after a ledger write.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, cacheKey)
	}
}

func (s *Service) build(ctx context.Context) (Summary, error) {
	summary := Summary{
		CashBalance: decimal.Zero,
		BankBalance: decimal.Zero,
		Receivables: decimal.Zero,
		Payables:    decimal.Zero,
	}

	boxes, err := s.finance.ListCashBoxes(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, box := range boxes {
		summary.CashBalance = summary.CashBalance.Add(box.Balance)
	}

	accounts, err := s.finance.ListBankAccounts(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, account := range accounts {
		summary.BankBalance = summary.BankBalance.Add(account.Balance)
	}

	// Positive balances are money owed to us, negative ones money we owe.
	people, err := s.customers.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, customer := range people {
		if customer.Balance.IsPositive() {
			summary.Receivables = summary.Receivables.Add(customer.Balance)
		} else if customer.Balance.IsNegative() {
			summary.Payables = summary.Payables.Add(customer.Balance.Neg())
		}
	}

	invs, err := s.invoices.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, inv := range invs {
		if inv.Status == invoices.StatusOpen || inv.Status == invoices.StatusPartiallyPaid {
			summary.OpenInvoices++
		}
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].Date.After(invs[j].Date) })
	if len(invs) > recentLimit {
		invs = invs[:recentLimit]
	}
	summary.RecentInvoices = invs

	notes, err := s.dispatch.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, note := range notes {
		if note.LinkedInvoiceID == "" {
			summary.PendingDispatchNotes++
		}
	}

	return summary, nil
}
