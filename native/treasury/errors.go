package treasury

import "errors"

var (
	ErrBadOrigin           = errors.New("treasury: bad origin")
	ErrCollateralNotEnough = errors.New("treasury: collateral not enough")
	ErrSurplusNotEnough    = errors.New("treasury: surplus pool not enough")
	ErrDebitPoolOverflow   = errors.New("treasury: debit pool overflow")
	ErrNotDexShare         = errors.New("treasury: currency is not a dex share")
	ErrAuctionNotFound     = errors.New("treasury: collateral auction not found")
	ErrModulePaused        = errors.New("treasury: module paused")
	errNilState            = errors.New("treasury: state not configured")
	errNilLedger           = errors.New("treasury: ledger not configured")
	errNilSwapper          = errors.New("treasury: swapper not configured")
	errNilLiquidity        = errors.New("treasury: liquidity provider not configured")
)
