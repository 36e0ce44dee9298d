package cdp

import "errors"

var (
	ErrBadOrigin                    = errors.New("cdp: bad origin")
	ErrInvalidCollateralType        = errors.New("cdp: invalid collateral type")
	ErrCollateralAmountBelowMinimum = errors.New("cdp: collateral amount below minimum")
	ErrCollateralNotEnough          = errors.New("cdp: collateral not enough")
	ErrRemainDebitValueTooSmall     = errors.New("cdp: remaining debit value too small")
	ErrExceedDebitValueHardCap      = errors.New("cdp: total debit value exceeds hard cap")
	ErrBelowLiquidationRatio        = errors.New("cdp: collateral ratio below liquidation ratio")
	ErrBelowRequiredCollateralRatio = errors.New("cdp: collateral ratio below required ratio")
	ErrInvalidFeedPrice             = errors.New("cdp: invalid feed price")
	ErrMustBeSafe                   = errors.New("cdp: position must be safe")
	ErrMustBeUnsafe                 = errors.New("cdp: position must be unsafe")
	ErrAlreadyShutdown              = errors.New("cdp: system already shut down")
	ErrMustAfterShutdown            = errors.New("cdp: only allowed after shutdown")
	ErrNoDebitValue                 = errors.New("cdp: position has no debit")
	ErrNotEnoughDebitDecrement      = errors.New("cdp: debit decrement below minimum")
	ErrLiquidationFailed            = errors.New("cdp: liquidation failed")
	ErrTooManyLiquidationContracts  = errors.New("cdp: too many liquidation contracts")
	ErrInvalidRate                  = errors.New("cdp: invalid rate")
	ErrModulePaused                 = errors.New("cdp: module paused")
	ErrStale                        = errors.New("cdp: stale unsigned call")
	errNilState                     = errors.New("cdp: state not configured")
	errNilCollaborators             = errors.New("cdp: loans, treasury or price source not configured")
	errNilLedger                    = errors.New("cdp: ledger not configured")
	errNilSwapper                   = errors.New("cdp: swapper not configured")
	errNilLiquidity                 = errors.New("cdp: liquidity provider not configured")
)
