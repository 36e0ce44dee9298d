package cdp

import (
	"ecdpchain/core/types"
	"ecdpchain/native/fixedpoint"
)

// AccumulateInterest compounds the per-second interest of every collateral
// over the seconds elapsed since the previous call. The accrued interest is
// issued to the treasury as surplus and folded into the debit exchange
// rate. Nothing accrues after shutdown or on the first call.
func (e *Engine) AccumulateInterest(now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.IsShutdown() {
		return nil
	}
	last, err := e.state.LastAccumulation()
	if err != nil {
		return err
	}
	if last != 0 && now > last {
		currencies, err := e.state.CollateralCurrencies()
		if err != nil {
			return err
		}
		for _, currency := range currencies {
			if err := e.accumulate(currency, now-last); err != nil {
				e.log().Warn("cdp: interest accumulation failed",
					"currency", currency,
					"error", err)
			}
		}
	}
	return e.state.PutLastAccumulation(now)
}

func (e *Engine) accumulate(currency types.CurrencyID, interval uint64) error {
	params, ok, err := e.state.CollateralParams(currency)
	if err != nil || !ok || params.InterestRatePerSec == nil {
		return err
	}
	rate := e.GetDebitExchangeRate(currency)
	totalDebit := e.loans.TotalPositions(currency).Debit
	one := fixedpoint.One()
	compound := one.SaturatingAdd(*params.InterestRatePerSec).SaturatingPow(interval).SaturatingSub(one)
	if !compound.IsZero() && totalDebit.Sign() > 0 {
		increment := rate.SaturatingMul(compound)
		issued := increment.SaturatingMulInt(totalDebit)
		err := e.state.Atomic(func() error {
			if err := e.treasury.OnSystemSurplus(issued); err != nil {
				return err
			}
			return e.state.PutDebitExchangeRate(currency, rate.SaturatingAdd(increment))
		})
		if err != nil {
			return err
		}
		rate = rate.SaturatingAdd(increment)
	}
	e.recordRate(currency, rate)
	e.telemetry.SetTotalDebit(currency.String(), e.GetDebitValue(currency, totalDebit))
	return nil
}

// OnInitialize runs the start-of-block hooks of the engine.
func (e *Engine) OnInitialize(height, now uint64) error {
	e.SetBlockHeight(height)
	return e.AccumulateInterest(now)
}
