package loans

import "errors"

var (
	ErrDebitTooLow      = errors.New("loans: debit too low")
	ErrCollateralTooLow = errors.New("loans: collateral too low")
	ErrAlreadyOwned     = errors.New("loans: recipient already holds a position")
	errNilState         = errors.New("loans: state not configured")
	errNilLedger        = errors.New("loans: ledger not configured")
	errNilRisk          = errors.New("loans: risk manager not configured")
	errNilTreasury      = errors.New("loans: treasury not configured")
)
