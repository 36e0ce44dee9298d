package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
)

const (
	TypeCDPLiquidationRatioUpdated         = "cdp.liquidation_ratio_updated"
	TypeCDPLiquidationPenaltyUpdated       = "cdp.liquidation_penalty_updated"
	TypeCDPRequiredCollateralRatioUpdated  = "cdp.required_collateral_ratio_updated"
	TypeCDPInterestRatePerSecUpdated       = "cdp.interest_rate_per_sec_updated"
	TypeCDPMaximumTotalDebitValueUpdated   = "cdp.maximum_total_debit_value_updated"
	TypeCDPLiquidateUnsafe                 = "cdp.liquidate_unsafe_cdp"
	TypeCDPSettleInDebit                   = "cdp.settle_cdp_in_debit"
	TypeCDPCloseInDebitByDEX               = "cdp.close_cdp_in_debit_by_dex"
	TypeCDPLiquidationContractRegistered   = "cdp.liquidation_contract_registered"
	TypeCDPLiquidationContractDeregistered = "cdp.liquidation_contract_deregistered"
	TypeLoansPositionUpdated               = "loans.position_updated"
	TypeLoansConfiscated                   = "loans.confiscate_collateral_and_debit"
)

// CollateralParamUpdated reports a change of one optional risk parameter.
// An empty Value means the parameter was cleared and the default applies.
type CollateralParamUpdated struct {
	Kind     string
	Currency types.CurrencyID
	Value    string
}

func (e CollateralParamUpdated) EventType() string { return e.Kind }

func (e CollateralParamUpdated) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"currency": string(e.Currency),
			"value":    e.Value,
		},
	}
}

type MaximumTotalDebitValueUpdated struct {
	Currency types.CurrencyID
	Value    *big.Int
}

func (MaximumTotalDebitValueUpdated) EventType() string {
	return TypeCDPMaximumTotalDebitValueUpdated
}

func (e MaximumTotalDebitValueUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeCDPMaximumTotalDebitValueUpdated,
		Attributes: map[string]string{
			"currency": string(e.Currency),
			"value":    formatAmount(e.Value),
		},
	}
}

type LiquidateUnsafeCDP struct {
	CollateralType   types.CurrencyID
	Owner            common.Address
	CollateralAmount *big.Int
	BadDebtValue     *big.Int
	TargetAmount     *big.Int
	Strategy         string
}

func (LiquidateUnsafeCDP) EventType() string { return TypeCDPLiquidateUnsafe }

func (e LiquidateUnsafeCDP) Event() *types.Event {
	return &types.Event{
		Type: TypeCDPLiquidateUnsafe,
		Attributes: map[string]string{
			"collateralType":   string(e.CollateralType),
			"owner":            formatAccount(e.Owner),
			"collateralAmount": formatAmount(e.CollateralAmount),
			"badDebtValue":     formatAmount(e.BadDebtValue),
			"targetAmount":     formatAmount(e.TargetAmount),
			"strategy":         e.Strategy,
		},
	}
}

type SettleCDPInDebit struct {
	CollateralType types.CurrencyID
	Owner          common.Address
}

func (SettleCDPInDebit) EventType() string { return TypeCDPSettleInDebit }

func (e SettleCDPInDebit) Event() *types.Event {
	return &types.Event{
		Type: TypeCDPSettleInDebit,
		Attributes: map[string]string{
			"collateralType": string(e.CollateralType),
			"owner":          formatAccount(e.Owner),
		},
	}
}

type CloseCDPInDebitByDEX struct {
	CollateralType   types.CurrencyID
	Owner            common.Address
	SoldCollateral   *big.Int
	RefundCollateral *big.Int
	DebitValue       *big.Int
}

func (CloseCDPInDebitByDEX) EventType() string { return TypeCDPCloseInDebitByDEX }

func (e CloseCDPInDebitByDEX) Event() *types.Event {
	return &types.Event{
		Type: TypeCDPCloseInDebitByDEX,
		Attributes: map[string]string{
			"collateralType":   string(e.CollateralType),
			"owner":            formatAccount(e.Owner),
			"soldCollateral":   formatAmount(e.SoldCollateral),
			"refundCollateral": formatAmount(e.RefundCollateral),
			"debitValue":       formatAmount(e.DebitValue),
		},
	}
}

// LiquidationContractChanged is shared by registration and deregistration.
type LiquidationContractChanged struct {
	Kind    string
	Address common.Address
}

func (e LiquidationContractChanged) EventType() string { return e.Kind }

func (e LiquidationContractChanged) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"address": e.Address.Hex(),
		},
	}
}

// PositionUpdated carries signed adjustments applied to a loan position.
type PositionUpdated struct {
	Kind                 string
	Owner                common.Address
	Currency             types.CurrencyID
	CollateralAdjustment *big.Int
	DebitAdjustment      *big.Int
}

func (e PositionUpdated) EventType() string {
	if e.Kind == "" {
		return TypeLoansPositionUpdated
	}
	return e.Kind
}

func (e PositionUpdated) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"owner":      formatAccount(e.Owner),
			"currency":   string(e.Currency),
			"collateral": formatAmount(e.CollateralAdjustment),
			"debit":      formatAmount(e.DebitAdjustment),
		},
	}
}
