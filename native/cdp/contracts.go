package cdp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
)

// LiquidationContracts returns the registered contracts in registration
// order.
func (e *Engine) LiquidationContracts() ([]common.Address, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.LiquidationContracts()
}

// RegisterLiquidationContract appends address to the contract list.
// Registering a known contract is a no-op.
func (e *Engine) RegisterLiquidationContract(origin nativecommon.Origin, address common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.ensureAdmin(origin); err != nil {
		return err
	}
	contracts, err := e.state.LiquidationContracts()
	if err != nil {
		return err
	}
	for _, known := range contracts {
		if known == address {
			return nil
		}
	}
	if len(contracts) >= e.params.MaxLiquidationContracts {
		return ErrTooManyLiquidationContracts
	}
	if err := e.state.PutLiquidationContracts(append(contracts, address)); err != nil {
		return err
	}
	e.emit(events.LiquidationContractChanged{Kind: events.TypeCDPLiquidationContractRegistered, Address: address})
	return nil
}

// DeregisterLiquidationContract removes address from the contract list.
func (e *Engine) DeregisterLiquidationContract(origin nativecommon.Origin, address common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.ensureAdmin(origin); err != nil {
		return err
	}
	contracts, err := e.state.LiquidationContracts()
	if err != nil {
		return err
	}
	kept := contracts[:0]
	for _, known := range contracts {
		if known != address {
			kept = append(kept, known)
		}
	}
	if err := e.state.PutLiquidationContracts(kept); err != nil {
		return err
	}
	e.emit(events.LiquidationContractChanged{Kind: events.TypeCDPLiquidationContractDeregistered, Address: address})
	return nil
}

// LiquidateViaContracts offers amount of treasury collateral to each
// registered contract in turn. A contract succeeds when it reports and
// actually deposits at least minRepayment of stable into the treasury;
// otherwise its attempt is rolled back and the next contract is tried.
func (e *Engine) LiquidateViaContracts(owner common.Address, currency types.CurrencyID, amount, minRepayment *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.bridge == nil {
		return ErrLiquidationFailed
	}
	contracts, err := e.state.LiquidationContracts()
	if err != nil {
		return err
	}
	minRepayment = orZero(minRepayment)
	for _, contract := range contracts {
		err := e.atomicEvents(func() error {
			before := e.treasury.SurplusPool()
			if err := e.treasury.WithdrawCollateral(contract, currency, amount); err != nil {
				return err
			}
			repaid, err := e.bridge.CallLiquidationContract(contract, owner, currency, amount, minRepayment, e.treasury.Account())
			if err != nil {
				return err
			}
			if repaid == nil || repaid.Cmp(minRepayment) < 0 {
				return ErrLiquidationFailed
			}
			if gained := new(big.Int).Sub(e.treasury.SurplusPool(), before); gained.Cmp(minRepayment) < 0 {
				return ErrLiquidationFailed
			}
			return nil
		})
		if err == nil {
			return nil
		}
		e.log().Debug("cdp: liquidation contract failed",
			"contract", contract.Hex(),
			"currency", currency,
			"owner", owner.Hex(),
			"error", err)
	}
	return ErrLiquidationFailed
}
