package offchain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
	"ecdpchain/native/cdp"
	"ecdpchain/native/loans"
)

// Chain is the read-only view of the CDP state the scanner walks.
type Chain interface {
	CollateralCurrencyIDs() ([]types.CurrencyID, error)
	IteratePositions(currency types.CurrencyID, after *common.Address, fn func(who common.Address, pos loans.Position) bool) error
	CheckCDPStatus(currency types.CurrencyID, collateral, debit *big.Int) (cdp.Status, error)
	IsShutdown() bool
}

// EngineChain adapts the in-process engine and loans store to Chain.
type EngineChain struct {
	Engine *cdp.Engine
	Loans  *loans.Loans
}

func (c EngineChain) CollateralCurrencyIDs() ([]types.CurrencyID, error) {
	return c.Engine.CollateralCurrencyIDs()
}

func (c EngineChain) IteratePositions(currency types.CurrencyID, after *common.Address, fn func(who common.Address, pos loans.Position) bool) error {
	return c.Loans.IteratePositions(currency, after, fn)
}

func (c EngineChain) CheckCDPStatus(currency types.CurrencyID, collateral, debit *big.Int) (cdp.Status, error) {
	return c.Engine.CheckCDPStatus(currency, collateral, debit)
}

func (c EngineChain) IsShutdown() bool { return c.Engine.IsShutdown() }
