package jobs

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/defter-erp/defter/internal/finance"
	"github.com/defter-erp/defter/internal/shared"
)

type memoryRatesRepo struct {
	rates map[string]finance.ExchangeRate
}

func newMemoryRatesRepo() *memoryRatesRepo {
	return &memoryRatesRepo{rates: make(map[string]finance.ExchangeRate)}
}

func (r *memoryRatesRepo) ListCashBoxes(context.Context) ([]finance.CashBox, error) { return nil, nil }
func (r *memoryRatesRepo) GetCashBox(context.Context, string) (finance.CashBox, error) {
	return finance.CashBox{}, shared.ErrNotFound
}
func (r *memoryRatesRepo) CreateCashBox(context.Context, *finance.CashBox) error { return nil }
func (r *memoryRatesRepo) UpdateCashBox(context.Context, finance.CashBox) error  { return nil }
func (r *memoryRatesRepo) DeleteCashBox(context.Context, string) (bool, error)   { return false, nil }
func (r *memoryRatesRepo) ListBankAccounts(context.Context) ([]finance.BankAccount, error) {
	return nil, nil
}
func (r *memoryRatesRepo) GetBankAccount(context.Context, string) (finance.BankAccount, error) {
	return finance.BankAccount{}, shared.ErrNotFound
}
func (r *memoryRatesRepo) CreateBankAccount(context.Context, *finance.BankAccount) error { return nil }
func (r *memoryRatesRepo) UpdateBankAccount(context.Context, finance.BankAccount) error  { return nil }
func (r *memoryRatesRepo) DeleteBankAccount(context.Context, string) (bool, error) {
	return false, nil
}
func (r *memoryRatesRepo) ListCashMovements(context.Context, string) ([]finance.CashMovement, error) {
	return nil, nil
}
func (r *memoryRatesRepo) ListBankTransactions(context.Context, string) ([]finance.BankTransaction, error) {
	return nil, nil
}

func (r *memoryRatesRepo) ListExchangeRates(context.Context) ([]finance.ExchangeRate, error) {
	out := make([]finance.ExchangeRate, 0, len(r.rates))
	for _, rate := range r.rates {
		out = append(out, rate)
	}
	return out, nil
}

func (r *memoryRatesRepo) GetExchangeRate(_ context.Context, code string) (finance.ExchangeRate, error) {
	rate, ok := r.rates[code]
	if !ok {
		return finance.ExchangeRate{}, shared.ErrNotFound
	}
	return rate, nil
}

func (r *memoryRatesRepo) UpsertExchangeRate(_ context.Context, rate finance.ExchangeRate) error {
	r.rates[rate.Code] = rate
	return nil
}

func (r *memoryRatesRepo) DeleteExchangeRate(_ context.Context, code string) (bool, error) {
	delete(r.rates, code)
	return true, nil
}

func (r *memoryRatesRepo) WithTx(context.Context, func(context.Context, finance.TxRepository) error) error {
	return nil
}

func testRefresher(repo *memoryRatesRepo, at time.Time) *RatesRefresher {
	refresher := NewRatesRefresher(finance.NewService(repo), slog.Default())
	refresher.now = func() time.Time { return at }
	return refresher
}

func TestRefreshSeedsMissingRates(t *testing.T) {
	repo := newMemoryRatesRepo()
	refresher := testRefresher(repo, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))

	require.NoError(t, refresher.Handle(context.Background(), NewRatesRefreshTask()))
	require.Len(t, repo.rates, 3)
	require.True(t, repo.rates["USD"].Buying.Equal(decimal.RequireFromString("41.20")))
	require.Equal(t, "Euro", repo.rates["EUR"].Currency)
}

func TestRefreshDriftsExistingRates(t *testing.T) {
	repo := newMemoryRatesRepo()
	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	refresher := testRefresher(repo, at)

	require.NoError(t, refresher.Handle(context.Background(), NewRatesRefreshTask()))
	seeded := repo.rates["USD"].Buying

	refresher = testRefresher(repo, at.Add(time.Hour))
	require.NoError(t, refresher.Handle(context.Background(), NewRatesRefreshTask()))
	drifted := repo.rates["USD"].Buying

	// At most half a percent per tick, in either direction.
	ratio := drifted.Div(seeded)
	require.True(t, ratio.GreaterThanOrEqual(decimal.RequireFromString("0.995")), "ratio %s", ratio)
	require.True(t, ratio.LessThanOrEqual(decimal.RequireFromString("1.005")), "ratio %s", ratio)
}

func TestDriftFactorDeterministic(t *testing.T) {
	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	require.True(t, driftFactor("USD", at).Equal(driftFactor("USD", at)))
}

func TestDriftFactorBounds(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		factor := driftFactor("USD", base.Add(time.Duration(i)*time.Minute))
		require.True(t, factor.GreaterThanOrEqual(decimal.RequireFromString("0.995")))
		require.True(t, factor.LessThanOrEqual(decimal.RequireFromString("1.005")))
	}
}
