package cdp

import (
	"fmt"
	"math/big"

	"ecdpchain/core/types"
	"ecdpchain/native/fixedpoint"
)

// Params holds the system-wide risk defaults and limits of the engine.
type Params struct {
	StableCurrency                 types.CurrencyID        `toml:"stable_currency" yaml:"stable_currency"`
	DefaultLiquidationRatio        fixedpoint.Ratio        `toml:"default_liquidation_ratio" yaml:"default_liquidation_ratio"`
	DefaultDebitExchangeRate       fixedpoint.ExchangeRate `toml:"default_debit_exchange_rate" yaml:"default_debit_exchange_rate"`
	DefaultLiquidationPenalty      fixedpoint.Rate         `toml:"default_liquidation_penalty" yaml:"default_liquidation_penalty"`
	MinimumDebitValue              *big.Int                `toml:"minimum_debit_value" yaml:"minimum_debit_value"`
	MinimumCollateralAmount        *big.Int                `toml:"minimum_collateral_amount" yaml:"minimum_collateral_amount"`
	MaxSwapSlippageCompareToOracle fixedpoint.Ratio        `toml:"max_swap_slippage_compare_to_oracle" yaml:"max_swap_slippage_compare_to_oracle"`
	MaxInterestRatePerSec          fixedpoint.Rate         `toml:"max_interest_rate_per_sec" yaml:"max_interest_rate_per_sec"`
	MaxLiquidationContracts        int                     `toml:"max_liquidation_contracts" yaml:"max_liquidation_contracts"`
	UnsignedPriority               uint64                  `toml:"unsigned_priority" yaml:"unsigned_priority"`
	UnsignedLongevity              uint64                  `toml:"unsigned_longevity" yaml:"unsigned_longevity"`
}

func DefaultParams() Params {
	return Params{
		StableCurrency:                 "USSD",
		DefaultLiquidationRatio:        fixedpoint.FromRational(3, 2),
		DefaultDebitExchangeRate:       fixedpoint.FromRational(1, 10),
		DefaultLiquidationPenalty:      fixedpoint.FromRational(1, 10),
		MinimumDebitValue:              big.NewInt(2),
		MinimumCollateralAmount:        big.NewInt(10),
		MaxSwapSlippageCompareToOracle: fixedpoint.FromRational(1, 2),
		MaxInterestRatePerSec:          fixedpoint.FromRational(1, 100_000),
		MaxLiquidationContracts:        10,
		UnsignedPriority:               1 << 20,
		UnsignedLongevity:              64,
	}
}

func (p Params) Validate() error {
	if err := p.StableCurrency.Validate(); err != nil {
		return fmt.Errorf("cdp: stable currency: %w", err)
	}
	if p.StableCurrency.IsDexShare() {
		return fmt.Errorf("cdp: stable currency must not be a share currency")
	}
	if p.DefaultLiquidationRatio.IsZero() {
		return fmt.Errorf("cdp: default liquidation ratio must be positive")
	}
	if p.DefaultDebitExchangeRate.IsZero() {
		return fmt.Errorf("cdp: default debit exchange rate must be positive")
	}
	if p.MinimumDebitValue == nil || p.MinimumDebitValue.Sign() < 0 {
		return fmt.Errorf("cdp: minimum debit value must not be negative")
	}
	if p.MinimumCollateralAmount == nil || p.MinimumCollateralAmount.Sign() < 0 {
		return fmt.Errorf("cdp: minimum collateral amount must not be negative")
	}
	if p.MaxSwapSlippageCompareToOracle.Cmp(fixedpoint.One()) >= 0 {
		return fmt.Errorf("cdp: max swap slippage must be below 100%%")
	}
	if p.MaxLiquidationContracts <= 0 {
		return fmt.Errorf("cdp: max liquidation contracts must be positive")
	}
	return nil
}

// Change is an optional update of one collateral parameter. The zero value
// leaves the parameter untouched.
type Change[T any] struct {
	set   bool
	value T
}

func NoChange[T any]() Change[T] { return Change[T]{} }

func NewValue[T any](value T) Change[T] { return Change[T]{set: true, value: value} }

// Get returns the new value and whether one was supplied.
func (c Change[T]) Get() (T, bool) { return c.value, c.set }

// CollateralParams are the per-collateral risk parameters. A nil field falls
// back to the system default, except InterestRatePerSec where nil disables
// interest accrual.
type CollateralParams struct {
	InterestRatePerSec      *fixedpoint.Rate
	LiquidationRatio        *fixedpoint.Ratio
	LiquidationPenalty      *fixedpoint.Rate
	RequiredCollateralRatio *fixedpoint.Ratio
	MaximumTotalDebitValue  *big.Int
}

// CollateralParamsUpdate carries one Change per collateral parameter. A
// NewValue of nil clears an optional parameter.
type CollateralParamsUpdate struct {
	InterestRatePerSec      Change[*fixedpoint.Rate]
	LiquidationRatio        Change[*fixedpoint.Ratio]
	LiquidationPenalty      Change[*fixedpoint.Rate]
	RequiredCollateralRatio Change[*fixedpoint.Ratio]
	MaximumTotalDebitValue  Change[*big.Int]
}

// storedCollateralParams is the RLP form of CollateralParams. Optional
// fixed-point values are kept as zero or one raw inner values.
type storedCollateralParams struct {
	InterestRatePerSec      []*big.Int
	LiquidationRatio        []*big.Int
	LiquidationPenalty      []*big.Int
	RequiredCollateralRatio []*big.Int
	MaximumTotalDebitValue  *big.Int
}

func encodeOptional(v *fixedpoint.FixedU128) []*big.Int {
	if v == nil {
		return nil
	}
	return []*big.Int{v.Inner()}
}

func decodeOptional(raw []*big.Int) (*fixedpoint.FixedU128, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	v, err := fixedpoint.FromInner(raw[0])
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (p CollateralParams) encode() storedCollateralParams {
	return storedCollateralParams{
		InterestRatePerSec:      encodeOptional(p.InterestRatePerSec),
		LiquidationRatio:        encodeOptional(p.LiquidationRatio),
		LiquidationPenalty:      encodeOptional(p.LiquidationPenalty),
		RequiredCollateralRatio: encodeOptional(p.RequiredCollateralRatio),
		MaximumTotalDebitValue:  orZero(p.MaximumTotalDebitValue),
	}
}

func (s storedCollateralParams) decode() (CollateralParams, error) {
	var (
		out CollateralParams
		err error
	)
	if out.InterestRatePerSec, err = decodeOptional(s.InterestRatePerSec); err != nil {
		return out, err
	}
	if out.LiquidationRatio, err = decodeOptional(s.LiquidationRatio); err != nil {
		return out, err
	}
	if out.LiquidationPenalty, err = decodeOptional(s.LiquidationPenalty); err != nil {
		return out, err
	}
	if out.RequiredCollateralRatio, err = decodeOptional(s.RequiredCollateralRatio); err != nil {
		return out, err
	}
	out.MaximumTotalDebitValue = orZero(s.MaximumTotalDebitValue)
	return out, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
