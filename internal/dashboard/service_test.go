package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/defter-erp/defter/internal/customers"
	"github.com/defter-erp/defter/internal/dispatch"
	"github.com/defter-erp/defter/internal/finance"
	"github.com/defter-erp/defter/internal/invoices"
	"github.com/defter-erp/defter/internal/platform/cache"
	"github.com/defter-erp/defter/internal/store"
)

type fakeSources struct {
	customers []customers.Customer
	boxes     []finance.CashBox
	accounts  []finance.BankAccount
	invoices  []invoices.Invoice
	notes     []dispatch.Note
	calls     int
}

func (f *fakeSources) List(_ context.Context) ([]customers.Customer, error) {
	f.calls++
	return f.customers, nil
}

func (f *fakeSources) ListCashBoxes(_ context.Context) ([]finance.CashBox, error) {
	return f.boxes, nil
}

func (f *fakeSources) ListBankAccounts(_ context.Context) ([]finance.BankAccount, error) {
	return f.accounts, nil
}

type invoiceSource struct{ invoices []invoices.Invoice }

func (s invoiceSource) List(_ context.Context) ([]invoices.Invoice, error) {
	return s.invoices, nil
}

type dispatchSource struct{ notes []dispatch.Note }

func (s dispatchSource) List(_ context.Context) ([]dispatch.Note, error) {
	return s.notes, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedSources() *fakeSources {
	return &fakeSources{
		customers: []customers.Customer{
			{Meta: store.Meta{ID: "c1"}, Name: "Alacaklı", Balance: dec("1500")},
			{Meta: store.Meta{ID: "c2"}, Name: "Borçlu", Balance: dec("-400")},
			{Meta: store.Meta{ID: "c3"}, Name: "Sıfır", Balance: decimal.Zero},
		},
		boxes: []finance.CashBox{
			{Meta: store.Meta{ID: "b1"}, Balance: dec("1000")},
			{Meta: store.Meta{ID: "b2"}, Balance: dec("250")},
		},
		accounts: []finance.BankAccount{
			{Meta: store.Meta{ID: "a1"}, Balance: dec("5000")},
		},
	}
}

func seedInvoices() []invoices.Invoice {
	date := func(day int) time.Time {
		return time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC)
	}
	return []invoices.Invoice{
		{Meta: store.Meta{ID: "i1"}, InvoiceNo: "F-1", Status: invoices.StatusOpen, Date: date(1)},
		{Meta: store.Meta{ID: "i2"}, InvoiceNo: "F-2", Status: invoices.StatusPartiallyPaid, Date: date(2)},
		{Meta: store.Meta{ID: "i3"}, InvoiceNo: "F-3", Status: invoices.StatusPaid, Date: date(3)},
		{Meta: store.Meta{ID: "i4"}, InvoiceNo: "F-4", Status: invoices.StatusCancelled, Date: date(4)},
		{Meta: store.Meta{ID: "i5"}, InvoiceNo: "F-5", Status: invoices.StatusOpen, Date: date(5)},
		{Meta: store.Meta{ID: "i6"}, InvoiceNo: "F-6", Status: invoices.StatusOpen, Date: date(6)},
	}
}

func TestSummaryAggregates(t *testing.T) {
	sources := seedSources()
	svc := NewService(sources, sources, invoiceSource{seedInvoices()}, dispatchSource{[]dispatch.Note{
		{Meta: store.Meta{ID: "n1"}},
		{Meta: store.Meta{ID: "n2"}, LinkedInvoiceID: "i1"},
	}}, nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	require.True(t, summary.CashBalance.Equal(dec("1250")))
	require.True(t, summary.BankBalance.Equal(dec("5000")))
	require.True(t, summary.Receivables.Equal(dec("1500")))
	require.True(t, summary.Payables.Equal(dec("400")))
	require.Equal(t, 4, summary.OpenInvoices)
	require.Equal(t, 1, summary.PendingDispatchNotes)

	require.Len(t, summary.RecentInvoices, 5)
	require.Equal(t, "F-6", summary.RecentInvoices[0].InvoiceNo)
	require.Equal(t, "F-2", summary.RecentInvoices[4].InvoiceNo)
}

func TestSummaryCacheHit(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	jsonCache := cache.NewJSONCache(client, time.Minute)

	sources := seedSources()
	svc := NewService(sources, sources, invoiceSource{nil}, dispatchSource{nil}, jsonCache)

	first, err := svc.Summary(context.Background())
	require.NoError(t, err)
	calls := sources.calls

	second, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, calls, sources.calls, "second call must come from cache")
	require.True(t, first.CashBalance.Equal(second.CashBalance))
}

func TestSummaryInvalidate(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	jsonCache := cache.NewJSONCache(client, time.Minute)

	sources := seedSources()
	svc := NewService(sources, sources, invoiceSource{nil}, dispatchSource{nil}, jsonCache)

	_, err := svc.Summary(context.Background())
	require.NoError(t, err)
	calls := sources.calls

	svc.Invalidate(context.Background())
	_, err = svc.Summary(context.Background())
	require.NoError(t, err)
	require.Greater(t, sources.calls, calls, "invalidate must force a rebuild")
}
