package cdp

import (
	"math/big"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/fixedpoint"
)

func formatOptional(v *fixedpoint.FixedU128) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// SetCollateralParams creates or updates the risk parameters of currency.
// Share currencies are only accepted when one side is the stable currency.
func (e *Engine) SetCollateralParams(origin nativecommon.Origin, currency types.CurrencyID, update CollateralParamsUpdate) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.ensureAdmin(origin); err != nil {
		return err
	}
	if err := currency.Validate(); err != nil {
		return ErrInvalidCollateralType
	}
	if currency.IsDexShare() {
		a, b, ok := currency.SplitDexShare()
		if !ok || (a != e.stable() && b != e.stable()) {
			return ErrInvalidCollateralType
		}
	}
	if rate, ok := update.InterestRatePerSec.Get(); ok && rate != nil && rate.Cmp(e.params.MaxInterestRatePerSec) > 0 {
		return ErrInvalidRate
	}

	return e.state.Atomic(func() error {
		params, _, err := e.state.CollateralParams(currency)
		if err != nil {
			return err
		}
		var changed []events.Event
		if v, ok := update.InterestRatePerSec.Get(); ok {
			params.InterestRatePerSec = v
			changed = append(changed, events.CollateralParamUpdated{Kind: events.TypeCDPInterestRatePerSecUpdated, Currency: currency, Value: formatOptional(v)})
		}
		if v, ok := update.LiquidationRatio.Get(); ok {
			params.LiquidationRatio = v
			changed = append(changed, events.CollateralParamUpdated{Kind: events.TypeCDPLiquidationRatioUpdated, Currency: currency, Value: formatOptional(v)})
		}
		if v, ok := update.LiquidationPenalty.Get(); ok {
			params.LiquidationPenalty = v
			changed = append(changed, events.CollateralParamUpdated{Kind: events.TypeCDPLiquidationPenaltyUpdated, Currency: currency, Value: formatOptional(v)})
		}
		if v, ok := update.RequiredCollateralRatio.Get(); ok {
			params.RequiredCollateralRatio = v
			changed = append(changed, events.CollateralParamUpdated{Kind: events.TypeCDPRequiredCollateralRatioUpdated, Currency: currency, Value: formatOptional(v)})
		}
		if v, ok := update.MaximumTotalDebitValue.Get(); ok {
			params.MaximumTotalDebitValue = new(big.Int).Set(orZero(v))
			changed = append(changed, events.MaximumTotalDebitValueUpdated{Currency: currency, Value: new(big.Int).Set(params.MaximumTotalDebitValue)})
		}
		if err := e.state.PutCollateralParams(currency, params); err != nil {
			return err
		}
		for _, evt := range changed {
			e.emit(evt)
		}
		return nil
	})
}

// SetDebitExchangeRate overrides the accumulated debit exchange rate of a
// configured collateral.
func (e *Engine) SetDebitExchangeRate(origin nativecommon.Origin, currency types.CurrencyID, rate fixedpoint.ExchangeRate) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.ensureAdmin(origin); err != nil {
		return err
	}
	if rate.IsZero() {
		return ErrInvalidRate
	}
	if _, err := e.mustCollateralParams(currency); err != nil {
		return err
	}
	if err := e.state.PutDebitExchangeRate(currency, rate); err != nil {
		return err
	}
	e.recordRate(currency, rate)
	return nil
}
