package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/finance"
)

// seedRates are the starting quotes used when a currency has no stored rate
// yet. TRY per unit of foreign currency.
var seedRates = []struct {
	code     string
	currency string
	buying   string
	selling  string
}{
	{"USD", "Amerikan Doları", "41.20", "41.55"},
	{"EUR", "Euro", "47.85", "48.25"},
	{"GBP", "İngiliz Sterlini", "55.10", "55.65"},
}

// RatesRefresher applies one simulated market tick to the stored quotes.
// There is no upstream feed; the drift factor is derived from the tick time
// so a given run is reproducible.
type RatesRefresher struct {
	finance *finance.Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewRatesRefresher constructs a RatesRefresher.
func NewRatesRefresher(financeService *finance.Service, logger *slog.Logger) *RatesRefresher {
	return &RatesRefresher{finance: financeService, logger: logger, now: time.Now}
}

// Handle processes TaskRatesRefresh tasks.
func (r *RatesRefresher) Handle(ctx context.Context, _ *asynq.Task) error {
	tick := r.now().UTC().Truncate(time.Minute)
	stored, err := r.finance.ListExchangeRates(ctx)
	if err != nil {
		return err
	}
	current := make(map[string]finance.ExchangeRate, len(stored))
	for _, rate := range stored {
		current[rate.Code] = rate
	}

	for _, seed := range seedRates {
		input := finance.RateInput{
			Currency: seed.currency,
			Buying:   decimal.RequireFromString(seed.buying),
			Selling:  decimal.RequireFromString(seed.selling),
		}
		if rate, ok := current[seed.code]; ok {
			factor := driftFactor(seed.code, tick)
			input.Currency = rate.Currency
			input.Buying = rate.Buying.Mul(factor).Round(4)
			input.Selling = rate.Selling.Mul(factor).Round(4)
		}
		if _, err := r.finance.UpdateExchangeRate(ctx, seed.code, input); err != nil {
			return err
		}
	}
	r.logger.Info("exchange rates refreshed", slog.Time("tick", tick))
	return nil
}

// driftFactor maps (code, tick) onto a factor in [0.995, 1.005].
func driftFactor(code string, tick time.Time) decimal.Decimal {
	h := uint64(14695981039346656037)
	for _, b := range []byte(code) {
		h = (h ^ uint64(b)) * 1099511628211
	}
	h ^= uint64(tick.Unix())
	h *= 1099511628211
	step := int64(h%11) - 5 // -5..+5
	return decimal.New(10000+step*10, -4)
}
