package cdp

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
)

// CallKind names the permissionless calls accepted without a signature.
type CallKind uint8

const (
	CallLiquidate CallKind = iota + 1
	CallSettle
)

func (k CallKind) String() string {
	switch k {
	case CallLiquidate:
		return "liquidate"
	case CallSettle:
		return "settle"
	default:
		return "unknown"
	}
}

// UnsignedCall is a liquidate or settle call submitted without a signer.
type UnsignedCall struct {
	Kind     CallKind
	Currency types.CurrencyID
	Owner    common.Address
}

// ValidTransaction carries the pool metadata of an accepted unsigned call.
// Calls with equal Provides tags are duplicates.
type ValidTransaction struct {
	Priority  uint64
	Provides  []byte
	Longevity uint64
	Propagate bool
}

// ValidateUnsigned admits an unsigned call only while it would succeed:
// liquidations of unsafe positions before shutdown and settlements of
// indebted positions after it. Anything else is stale.
func (e *Engine) ValidateUnsigned(call UnsignedCall) (ValidTransaction, error) {
	if err := e.ready(); err != nil {
		return ValidTransaction{}, err
	}
	pos := e.loans.Positions(call.Currency, call.Owner)
	var provides string
	switch call.Kind {
	case CallLiquidate:
		status, err := e.CheckCDPStatus(call.Currency, pos.Collateral, pos.Debit)
		if err != nil || status != StatusUnsafe || e.IsShutdown() {
			return ValidTransaction{}, ErrStale
		}
		provides = fmt.Sprintf("cdp/liquidate/%s/%s/%d", call.Currency, call.Owner.Hex(), e.height)
	case CallSettle:
		if pos.Debit.Sign() == 0 || !e.IsShutdown() {
			return ValidTransaction{}, ErrStale
		}
		provides = fmt.Sprintf("cdp/settle/%s/%s", call.Currency, call.Owner.Hex())
	default:
		return ValidTransaction{}, ErrBadOrigin
	}
	return ValidTransaction{
		Priority:  e.params.UnsignedPriority,
		Provides:  []byte(provides),
		Longevity: e.params.UnsignedLongevity,
		Propagate: true,
	}, nil
}

// DispatchUnsigned executes a validated unsigned call.
func (e *Engine) DispatchUnsigned(call UnsignedCall) error {
	origin := nativecommon.UnsignedOrigin()
	switch call.Kind {
	case CallLiquidate:
		return e.Liquidate(origin, call.Currency, call.Owner)
	case CallSettle:
		return e.Settle(origin, call.Currency, call.Owner)
	default:
		return ErrBadOrigin
	}
}
