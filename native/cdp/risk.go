package cdp

import (
	"math/big"

	"ecdpchain/core/types"
	"ecdpchain/native/fixedpoint"
)

// Status classifies a position against its liquidation ratio.
type Status uint8

const (
	StatusSafe Status = iota
	StatusUnsafe
	StatusChecksFailed
)

func (s Status) String() string {
	switch s {
	case StatusSafe:
		return "safe"
	case StatusUnsafe:
		return "unsafe"
	default:
		return "checks_failed"
	}
}

// CollateralParams returns the stored risk parameters of currency.
func (e *Engine) CollateralParams(currency types.CurrencyID) (CollateralParams, bool, error) {
	if e == nil || e.state == nil {
		return CollateralParams{}, false, errNilState
	}
	return e.state.CollateralParams(currency)
}

// CollateralCurrencyIDs lists every currency accepted as collateral.
func (e *Engine) CollateralCurrencyIDs() ([]types.CurrencyID, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.CollateralCurrencies()
}

func (e *Engine) mustCollateralParams(currency types.CurrencyID) (CollateralParams, error) {
	params, ok, err := e.CollateralParams(currency)
	if err != nil {
		return CollateralParams{}, err
	}
	if !ok {
		return CollateralParams{}, ErrInvalidCollateralType
	}
	return params, nil
}

func (e *Engine) GetLiquidationRatio(currency types.CurrencyID) (fixedpoint.Ratio, error) {
	params, err := e.mustCollateralParams(currency)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	if params.LiquidationRatio != nil {
		return *params.LiquidationRatio, nil
	}
	return e.params.DefaultLiquidationRatio, nil
}

func (e *Engine) GetLiquidationPenalty(currency types.CurrencyID) (fixedpoint.Rate, error) {
	params, err := e.mustCollateralParams(currency)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	if params.LiquidationPenalty != nil {
		return *params.LiquidationPenalty, nil
	}
	return e.params.DefaultLiquidationPenalty, nil
}

// GetDebitExchangeRate returns the stable value of one debit unit.
func (e *Engine) GetDebitExchangeRate(currency types.CurrencyID) fixedpoint.ExchangeRate {
	if e.state == nil {
		return e.params.DefaultDebitExchangeRate
	}
	rate, ok, err := e.state.DebitExchangeRate(currency)
	if err != nil {
		e.log().Error("cdp: read debit exchange rate", "currency", currency, "error", err)
	}
	if !ok {
		return e.params.DefaultDebitExchangeRate
	}
	return rate
}

// GetDebitValue converts debit units into stable value, rounding down.
func (e *Engine) GetDebitValue(currency types.CurrencyID, debit *big.Int) *big.Int {
	return e.GetDebitExchangeRate(currency).SaturatingMulInt(orZero(debit))
}

// ConvertToDebitBalance converts a stable value into debit units.
func (e *Engine) ConvertToDebitBalance(currency types.CurrencyID, value *big.Int) *big.Int {
	inverse, ok := e.GetDebitExchangeRate(currency).Reciprocal()
	if !ok {
		return big.NewInt(0)
	}
	return inverse.SaturatingMulInt(orZero(value))
}

// CalculateCollateralRatio values collateral at price against debitValue.
// Zero debit yields the maximum ratio. A collateral value or ratio that does
// not fit 128 bits fails with ErrInvalidFeedPrice.
func CalculateCollateralRatio(collateral, debitValue *big.Int, price fixedpoint.Price) (fixedpoint.Ratio, error) {
	if debitValue == nil || debitValue.Sign() == 0 {
		return fixedpoint.Max(), nil
	}
	value, ok := price.CheckedMulInt(orZero(collateral))
	if !ok {
		return fixedpoint.Zero(), ErrInvalidFeedPrice
	}
	ratio, ok := fixedpoint.CheckedFromRational(value, debitValue)
	if !ok {
		return fixedpoint.Zero(), ErrInvalidFeedPrice
	}
	return ratio, nil
}

// CheckCDPStatus classifies the position of who.
func (e *Engine) CheckCDPStatus(currency types.CurrencyID, collateral, debit *big.Int) (Status, error) {
	price, ok := e.prices.GetRelativePrice(currency, e.stable())
	if !ok {
		return StatusChecksFailed, ErrInvalidFeedPrice
	}
	liquidationRatio, err := e.GetLiquidationRatio(currency)
	if err != nil {
		return StatusChecksFailed, err
	}
	ratio, err := CalculateCollateralRatio(collateral, e.GetDebitValue(currency, debit), price)
	if err != nil {
		return StatusChecksFailed, err
	}
	if ratio.Cmp(liquidationRatio) < 0 {
		return StatusUnsafe, nil
	}
	return StatusSafe, nil
}

// CheckDebitCap fails when the value of totalDebit exceeds the hard cap of
// currency.
func (e *Engine) CheckDebitCap(currency types.CurrencyID, totalDebit *big.Int) error {
	params, err := e.mustCollateralParams(currency)
	if err != nil {
		return err
	}
	if e.GetDebitValue(currency, totalDebit).Cmp(orZero(params.MaximumTotalDebitValue)) > 0 {
		return ErrExceedDebitValueHardCap
	}
	return nil
}

// CheckPositionValid validates a position after an adjustment. The required
// collateral ratio only binds when the adjustment increased risk.
func (e *Engine) CheckPositionValid(currency types.CurrencyID, collateral, debit *big.Int, increaseRisk bool) error {
	params, err := e.mustCollateralParams(currency)
	if err != nil {
		return err
	}
	collateral, debit = orZero(collateral), orZero(debit)
	if collateral.Sign() > 0 && collateral.Cmp(e.params.MinimumCollateralAmount) < 0 {
		return ErrCollateralAmountBelowMinimum
	}
	if debit.Sign() == 0 {
		return nil
	}
	price, ok := e.prices.GetRelativePrice(currency, e.stable())
	if !ok {
		return ErrInvalidFeedPrice
	}
	debitValue := e.GetDebitValue(currency, debit)
	if debitValue.Cmp(e.params.MinimumDebitValue) < 0 {
		return ErrRemainDebitValueTooSmall
	}
	ratio, err := CalculateCollateralRatio(collateral, debitValue, price)
	if err != nil {
		return err
	}
	liquidationRatio := e.params.DefaultLiquidationRatio
	if params.LiquidationRatio != nil {
		liquidationRatio = *params.LiquidationRatio
	}
	if ratio.Cmp(liquidationRatio) < 0 {
		return ErrBelowLiquidationRatio
	}
	if increaseRisk && params.RequiredCollateralRatio != nil && ratio.Cmp(*params.RequiredCollateralRatio) < 0 {
		return ErrBelowRequiredCollateralRatio
	}
	return nil
}
