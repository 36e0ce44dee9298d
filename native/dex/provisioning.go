package dex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/fixedpoint"
)

// ProvisioningTerms are the bootstrap parameters an admin sets when listing a
// pair, oriented to the currencies passed alongside them.
type ProvisioningTerms struct {
	MinContributionA *big.Int
	MinContributionB *big.Int
	TargetA          *big.Int
	TargetB          *big.Int
	NotBefore        uint64
}

func (t ProvisioningTerms) oriented(pair TradingPair, a types.CurrencyID) ProvisioningParameters {
	min0, min1 := orientAmounts(pair, a, t.MinContributionA, t.MinContributionB)
	target0, target1 := orientAmounts(pair, a, t.TargetA, t.TargetB)
	return ProvisioningParameters{
		MinContribution: [2]*big.Int{new(big.Int).Set(min0), new(big.Int).Set(min1)},
		Target:          [2]*big.Int{new(big.Int).Set(target0), new(big.Int).Set(target1)},
		Accumulated:     zeroPair(),
		NotBefore:       t.NotBefore,
	}
}

func (e *Engine) putStatus(pair TradingPair, st *PairState) error {
	if err := e.state.PutPairState(pair, st); err != nil {
		return err
	}
	e.telemetry.RecordStatus(pair.String(), st.Status.String())
	return nil
}

// ListProvisioning opens a disabled pair for bootstrap contributions.
func (e *Engine) ListProvisioning(origin nativecommon.Origin, a, b types.CurrencyID, terms ProvisioningTerms) error {
	if err := e.ensureAdmin(origin); err != nil {
		return err
	}
	return e.atomic(func() error {
		pair, err := NewTradingPair(a, b)
		if err != nil {
			return err
		}
		st, err := e.pairState(pair)
		if err != nil {
			return err
		}
		if st.Status != StatusDisabled {
			return ErrMustBeDisabled
		}
		if e.assets != nil && (!e.assets.IsRegistered(pair.Token0) || !e.assets.IsRegistered(pair.Token1)) {
			return ErrAssetUnregistered
		}
		params := terms.oriented(pair, a)
		if err := e.putStatus(pair, &PairState{Status: StatusProvisioning, Provisioning: params}); err != nil {
			return err
		}
		e.emit(events.TradingPairEvent{Kind: events.TypeDexListProvisioning, Currency0: pair.Token0, Currency1: pair.Token1})
		return nil
	})
}

// UpdateProvisioningParameters replaces the terms of a provisioning pair and
// keeps what has been accumulated so far.
func (e *Engine) UpdateProvisioningParameters(origin nativecommon.Origin, a, b types.CurrencyID, terms ProvisioningTerms) error {
	if err := e.ensureAdmin(origin); err != nil {
		return err
	}
	return e.atomic(func() error {
		pair, err := NewTradingPair(a, b)
		if err != nil {
			return err
		}
		st, err := e.pairState(pair)
		if err != nil {
			return err
		}
		if st.Status != StatusProvisioning {
			return ErrMustBeProvisioning
		}
		params := terms.oriented(pair, a)
		params.Accumulated = st.Provisioning.Accumulated
		if err := e.state.PutPairState(pair, &PairState{Status: StatusProvisioning, Provisioning: params}); err != nil {
			return err
		}
		e.emit(events.ProvisioningParametersUpdated{
			Currency0:       pair.Token0,
			Currency1:       pair.Token1,
			MinContribution: params.MinContribution,
			Target:          params.Target,
			NotBefore:       params.NotBefore,
		})
		return nil
	})
}

// AddProvision contributes to a provisioning pair. Every non-zero side must
// meet its minimum contribution.
func (e *Engine) AddProvision(origin nativecommon.Origin, a, b types.CurrencyID, amountA, amountB *big.Int) error {
	who, err := ensureSigned(origin)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	return e.atomic(func() error {
		pair, err := NewTradingPair(a, b)
		if err != nil {
			return err
		}
		st, err := e.pairState(pair)
		if err != nil {
			return err
		}
		if st.Status != StatusProvisioning {
			return ErrMustBeProvisioning
		}
		c0, c1 := orientAmounts(pair, a, amountA, amountB)
		params := st.Provisioning
		if c0.Sign() < 0 || c1.Sign() < 0 || (c0.Sign() == 0 && c1.Sign() == 0) {
			return ErrInvalidContributionIncrement
		}
		if (c0.Sign() > 0 && c0.Cmp(params.MinContribution[0]) < 0) || (c1.Sign() > 0 && c1.Cmp(params.MinContribution[1]) < 0) {
			return ErrInvalidContributionIncrement
		}

		if err := e.ledger.Transfer(pair.Token0, who, e.account, c0); err != nil {
			return err
		}
		if err := e.ledger.Transfer(pair.Token1, who, e.account, c1); err != nil {
			return err
		}
		existing, err := e.state.ProvisioningPool(pair, who)
		if err != nil {
			return err
		}
		if existing[0].Sign() == 0 && existing[1].Sign() == 0 {
			if err := e.ledger.IncConsumers(who); err != nil {
				return err
			}
		}
		updated := [2]*big.Int{new(big.Int).Add(existing[0], c0), new(big.Int).Add(existing[1], c1)}
		if err := e.state.PutProvisioningPool(pair, who, updated); err != nil {
			return err
		}
		params.Accumulated = [2]*big.Int{
			new(big.Int).Add(params.Accumulated[0], c0),
			new(big.Int).Add(params.Accumulated[1], c1),
		}
		if err := e.state.PutPairState(pair, &PairState{Status: StatusProvisioning, Provisioning: params}); err != nil {
			return err
		}
		e.emit(events.ProvisionMovement{
			Kind:      events.TypeDexAddProvision,
			Who:       who,
			Currency0: pair.Token0,
			Amount0:   new(big.Int).Set(c0),
			Currency1: pair.Token1,
			Amount1:   new(big.Int).Set(c1),
		})
		return nil
	})
}

// EndProvisioning enables a pair whose round is past NotBefore with at least
// one target met. The initial shares are minted to the module account and
// later claimed by contributors at the recorded exchange rates.
func (e *Engine) EndProvisioning(origin nativecommon.Origin, a, b types.CurrencyID) error {
	if _, err := ensureSigned(origin); err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	return e.atomic(func() error {
		pair, err := NewTradingPair(a, b)
		if err != nil {
			return err
		}
		st, err := e.pairState(pair)
		if err != nil {
			return err
		}
		if st.Status != StatusProvisioning {
			return ErrMustBeProvisioning
		}
		params := st.Provisioning
		acc0, acc1 := params.Accumulated[0], params.Accumulated[1]
		if e.height < params.NotBefore || !params.targetMet() || acc0.Sign() == 0 || acc1.Sign() == 0 {
			return ErrUnqualifiedProvision
		}
		rate1, ok := fixedpoint.CheckedFromRational(acc0, acc1)
		if !ok {
			return ErrUnqualifiedProvision
		}
		rates := [2]fixedpoint.ExchangeRate{fixedpoint.One(), rate1}
		totalShares, err := shareValue(rates[0], rates[1], acc0, acc1)
		if err != nil {
			return ErrUnqualifiedProvision
		}

		if err := e.ledger.Deposit(pair.DexShareCurrency(), e.account, totalShares); err != nil {
			return err
		}
		if err := e.setPool(pair, acc0, acc1); err != nil {
			return err
		}
		if err := e.state.PutInitialShareExchangeRates(pair, rates); err != nil {
			return err
		}
		if err := e.putStatus(pair, &PairState{Status: StatusEnabled}); err != nil {
			return err
		}
		e.emit(events.ProvisioningToEnabled{
			Currency0:   pair.Token0,
			Currency1:   pair.Token1,
			Pool0:       new(big.Int).Set(acc0),
			Pool1:       new(big.Int).Set(acc1),
			TotalShares: totalShares,
		})
		return nil
	})
}

// AbortProvisioning disables a pair whose round expired without reaching
// either target. Calls on rounds that are not expired succeed without effect.
func (e *Engine) AbortProvisioning(origin nativecommon.Origin, a, b types.CurrencyID) error {
	if _, err := ensureSigned(origin); err != nil {
		return err
	}
	return e.atomic(func() error {
		pair, err := NewTradingPair(a, b)
		if err != nil {
			return err
		}
		st, err := e.pairState(pair)
		if err != nil {
			return err
		}
		if st.Status != StatusProvisioning {
			return ErrMustBeProvisioning
		}
		_, err = e.abortIfExpired(pair, st)
		return err
	})
}

func (e *Engine) abortIfExpired(pair TradingPair, st *PairState) (bool, error) {
	params := st.Provisioning
	if e.height <= params.NotBefore+e.params.ProvisioningExpiry || params.targetMet() {
		return false, nil
	}
	if err := e.putStatus(pair, &PairState{Status: StatusDisabled}); err != nil {
		return false, err
	}
	e.emit(events.ProvisioningAborted{
		Currency0:    pair.Token0,
		Currency1:    pair.Token1,
		Accumulated0: new(big.Int).Set(params.Accumulated[0]),
		Accumulated1: new(big.Int).Set(params.Accumulated[1]),
	})
	return true, nil
}

// OnInitialize advances the block height and aborts every expired
// provisioning round. It returns the number of rounds aborted.
func (e *Engine) OnInitialize(height uint64) (int, error) {
	e.SetBlockHeight(height)
	if err := e.ready(); err != nil {
		return 0, err
	}
	pairs, err := e.state.TradingPairs()
	if err != nil {
		return 0, err
	}
	aborted := 0
	for _, pair := range pairs {
		pair := pair
		err := e.atomic(func() error {
			st, err := e.pairState(pair)
			if err != nil {
				return err
			}
			if st.Status != StatusProvisioning {
				return nil
			}
			done, err := e.abortIfExpired(pair, st)
			if done {
				aborted++
			}
			return err
		})
		if err != nil {
			e.log().Warn("dex: abort expired provisioning failed", "pair", pair.String(), "error", err)
		}
	}
	return aborted, nil
}

// RefundProvision returns owner's contributions to a pair whose round was
// aborted.
func (e *Engine) RefundProvision(origin nativecommon.Origin, owner common.Address, a, b types.CurrencyID) error {
	if _, err := ensureSigned(origin); err != nil {
		return err
	}
	return e.atomic(func() error {
		pair, err := NewTradingPair(a, b)
		if err != nil {
			return err
		}
		st, err := e.pairState(pair)
		if err != nil {
			return err
		}
		if st.Status != StatusDisabled {
			return ErrMustBeDisabled
		}
		if _, ok, err := e.state.InitialShareExchangeRates(pair); err != nil {
			return err
		} else if ok {
			return ErrNotAllowedRefund
		}
		contribution, err := e.state.ProvisioningPool(pair, owner)
		if err != nil {
			return err
		}
		if contribution[0].Sign() == 0 && contribution[1].Sign() == 0 {
			return nil
		}
		if err := e.ledger.Transfer(pair.Token0, e.account, owner, contribution[0]); err != nil {
			return err
		}
		if err := e.ledger.Transfer(pair.Token1, e.account, owner, contribution[1]); err != nil {
			return err
		}
		if err := e.state.PutProvisioningPool(pair, owner, zeroPair()); err != nil {
			return err
		}
		if err := e.ledger.DecConsumers(owner); err != nil {
			return err
		}
		e.emit(events.ProvisionMovement{
			Kind:      events.TypeDexRefundProvision,
			Who:       owner,
			Currency0: pair.Token0,
			Amount0:   contribution[0],
			Currency1: pair.Token1,
			Amount1:   contribution[1],
		})
		return nil
	})
}

// ClaimDexShare pays owner the liquidity shares earned by their provisioning
// contributions. The exchange rates are dropped once every share is claimed.
func (e *Engine) ClaimDexShare(origin nativecommon.Origin, owner common.Address, a, b types.CurrencyID) error {
	if _, err := ensureSigned(origin); err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	return e.atomic(func() error {
		pair, err := NewTradingPair(a, b)
		if err != nil {
			return err
		}
		st, err := e.pairState(pair)
		if err != nil {
			return err
		}
		if st.Status == StatusProvisioning {
			return ErrStillProvisioning
		}
		contribution, err := e.state.ProvisioningPool(pair, owner)
		if err != nil {
			return err
		}
		if contribution[0].Sign() == 0 && contribution[1].Sign() == 0 {
			return nil
		}
		rates, ok, err := e.state.InitialShareExchangeRates(pair)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMustBeEnabled
		}
		share, err := shareValue(rates[0], rates[1], contribution[0], contribution[1])
		if err != nil {
			return err
		}
		shareCurrency := pair.DexShareCurrency()
		if err := e.ledger.Transfer(shareCurrency, e.account, owner, share); err != nil {
			return err
		}
		if err := e.state.PutProvisioningPool(pair, owner, zeroPair()); err != nil {
			return err
		}
		if err := e.ledger.DecConsumers(owner); err != nil {
			return err
		}
		if e.ledger.FreeBalance(shareCurrency, e.account).Sign() == 0 {
			if err := e.state.DeleteInitialShareExchangeRates(pair); err != nil {
				return err
			}
		}
		e.emit(events.DexShareClaimed{Who: owner, ShareCurrency: shareCurrency, Amount: share})
		return nil
	})
}

// EnableTradingPair enables a pair directly, skipping provisioning. A
// provisioning pair can only be enabled this way before anyone contributed.
func (e *Engine) EnableTradingPair(origin nativecommon.Origin, a, b types.CurrencyID) error {
	if err := e.ensureAdmin(origin); err != nil {
		return err
	}
	return e.atomic(func() error {
		pair, err := NewTradingPair(a, b)
		if err != nil {
			return err
		}
		st, err := e.pairState(pair)
		if err != nil {
			return err
		}
		switch st.Status {
		case StatusEnabled:
			return ErrAlreadyEnabled
		case StatusProvisioning:
			if st.Provisioning.hasContributions() {
				return ErrStillProvisioning
			}
		}
		if e.assets != nil && (!e.assets.IsRegistered(pair.Token0) || !e.assets.IsRegistered(pair.Token1)) {
			return ErrAssetUnregistered
		}
		if err := e.putStatus(pair, &PairState{Status: StatusEnabled}); err != nil {
			return err
		}
		e.emit(events.TradingPairEvent{Kind: events.TypeDexEnableTradingPair, Currency0: pair.Token0, Currency1: pair.Token1})
		return nil
	})
}

// DisableTradingPair stops trading and liquidity additions on an enabled
// pair. Existing liquidity can still be removed.
func (e *Engine) DisableTradingPair(origin nativecommon.Origin, a, b types.CurrencyID) error {
	if err := e.ensureAdmin(origin); err != nil {
		return err
	}
	return e.atomic(func() error {
		pair, err := NewTradingPair(a, b)
		if err != nil {
			return err
		}
		st, err := e.pairState(pair)
		if err != nil {
			return err
		}
		if st.Status != StatusEnabled {
			return ErrMustBeEnabled
		}
		if err := e.putStatus(pair, &PairState{Status: StatusDisabled}); err != nil {
			return err
		}
		e.emit(events.TradingPairEvent{Kind: events.TypeDexDisableTradingPair, Currency0: pair.Token0, Currency1: pair.Token1})
		return nil
	})
}
