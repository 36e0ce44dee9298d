package dex

import "errors"

var (
	ErrBadOrigin                      = errors.New("dex: bad origin")
	ErrInvalidCurrencyID              = errors.New("dex: invalid currency id")
	ErrAssetUnregistered              = errors.New("dex: asset unregistered")
	ErrMustBeDisabled                 = errors.New("dex: trading pair must be disabled")
	ErrMustBeProvisioning             = errors.New("dex: trading pair must be provisioning")
	ErrMustBeEnabled                  = errors.New("dex: trading pair must be enabled")
	ErrAlreadyEnabled                 = errors.New("dex: trading pair already enabled")
	ErrStillProvisioning              = errors.New("dex: trading pair still provisioning")
	ErrUnqualifiedProvision           = errors.New("dex: provision does not qualify to end provisioning")
	ErrNotAllowedRefund               = errors.New("dex: refund not allowed after provisioning ended")
	ErrInvalidContributionIncrement   = errors.New("dex: invalid contribution increment")
	ErrInvalidLiquidityIncrement      = errors.New("dex: invalid liquidity increment")
	ErrUnacceptableShareIncrement     = errors.New("dex: share increment below minimum")
	ErrUnacceptableLiquidityWithdrawn = errors.New("dex: withdrawn liquidity below minimum")
	ErrInvariantCheckFailed           = errors.New("dex: constant product invariant check failed")
	ErrInsufficientLiquidity          = errors.New("dex: insufficient liquidity")
	ErrInsufficientTargetAmount       = errors.New("dex: target amount below minimum")
	ErrExcessiveSupplyAmount          = errors.New("dex: supply amount above maximum")
	ErrZeroTargetAmount               = errors.New("dex: zero target amount")
	ErrZeroSupplyAmount               = errors.New("dex: zero supply amount")
	ErrInvalidTradingPathLength       = errors.New("dex: invalid trading path length")
	ErrInvalidTradingPath             = errors.New("dex: invalid trading path")
	ErrCannotSwap                     = errors.New("dex: cannot swap")
	ErrModulePaused                   = errors.New("dex: module paused")
	errNilState                       = errors.New("dex: state not configured")
	errNilLedger                      = errors.New("dex: ledger not configured")
)
