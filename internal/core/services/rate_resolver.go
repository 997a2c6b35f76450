package services

import (
	"context"
	"errors"
	"fmt"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/config"
	"estate-commission/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RateResult is the outcome of resolving the commission of one submission
type RateResult struct {
	Rate       decimal.Decimal
	Source     domain.RateSource
	BaseAmount decimal.Decimal
	RawAmount  decimal.Decimal
	Amount     decimal.Decimal
	Capped     bool
}

// RateResolver picks the commission rate of a submission and applies caps
type RateResolver struct {
	cfg config.CommissionConfig
}

// NewRateResolver creates a new rate resolver
func NewRateResolver(cfg config.CommissionConfig) *RateResolver {
	return &RateResolver{cfg: cfg}
}

// ResolveRate resolves the rate with unit > project > default precedence and
// returns the capped commission amount
func (r *RateResolver) ResolveRate(ctx context.Context, lookup RateLookup, sub *models.Submission) (*RateResult, error) {
	if !sub.Price.IsPositive() {
		return nil, invalidPriceError(sub.Price)
	}

	rate, source, err := r.pickRate(ctx, lookup, sub)
	if err != nil {
		return nil, err
	}

	raw := domain.PercentOf(sub.Price, rate)
	res := &RateResult{
		Rate:       rate,
		Source:     source,
		BaseAmount: sub.Price,
		RawAmount:  domain.RoundMoney(raw),
		Amount:     raw,
	}

	if sub.Kind == domain.KindSale || r.cfg.CapRentals {
		res.Amount, res.Capped = r.ApplyCaps(raw)
	}
	res.Amount = domain.RoundMoney(res.Amount)
	return res, nil
}

// ApplyCaps clamps amount into [MinCommission, MaxCommission]
func (r *RateResolver) ApplyCaps(amount decimal.Decimal) (decimal.Decimal, bool) {
	if amount.LessThan(r.cfg.MinCommission) {
		return r.cfg.MinCommission, true
	}
	if r.cfg.MaxCommission.IsPositive() && amount.GreaterThan(r.cfg.MaxCommission) {
		return r.cfg.MaxCommission, true
	}
	return amount, false
}

// DefaultRate is the rate used when neither unit nor project overrides it.
// Rentals pay RentalMonths of monthly rent.
func (r *RateResolver) DefaultRate(kind domain.TransactionKind) decimal.Decimal {
	if kind == domain.KindRental {
		return r.cfg.RentalMonths.Mul(domain.Hundred)
	}
	return r.cfg.DefaultSaleRate
}

func (r *RateResolver) pickRate(ctx context.Context, lookup RateLookup, sub *models.Submission) (decimal.Decimal, domain.RateSource, error) {
	if sub.UnitID != nil {
		rate, err := lookup.UnitRate(ctx, *sub.UnitID)
		if err != nil {
			return decimal.Zero, "", lookupError(err, domain.ErrUnitNotFound)
		}
		if usableRate(rate) {
			return rate.Decimal, domain.RateSourceUnit, nil
		}
	}

	if sub.ProjectID != nil {
		rate, err := lookup.ProjectRate(ctx, *sub.ProjectID)
		if err != nil {
			return decimal.Zero, "", lookupError(err, domain.ErrProjectNotFound)
		}
		if usableRate(rate) {
			return rate.Decimal, domain.RateSourceProject, nil
		}
	}

	return r.DefaultRate(sub.Kind), domain.RateSourceDefault, nil
}

// usableRate treats an absent or zero override as unset
func usableRate(rate decimal.NullDecimal) bool {
	return rate.Valid && rate.Decimal.IsPositive()
}

func lookupError(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, domain.ErrNotFound) {
		return notFound
	}
	return err
}

// invalidPriceError wraps domain.ErrInvalidPrice with the offending value
func invalidPriceError(price decimal.Decimal) error {
	return fmt.Errorf("%w (got %s)", domain.ErrInvalidPrice, price.String())
}
