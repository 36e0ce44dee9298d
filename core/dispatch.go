package core

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"

	"ecdpchain/core/types"
	"ecdpchain/crypto"
	"ecdpchain/native/cdp"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/dex"
	"ecdpchain/native/fixedpoint"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Account decodes either the bech32 or the hex form of an address.
type Account common.Address

func (a *Account) UnmarshalText(text []byte) error {
	addr, err := crypto.ParseAccount(string(text))
	if err != nil {
		return err
	}
	*a = Account(addr)
	return nil
}

func (a Account) MarshalText() ([]byte, error) {
	return []byte(crypto.FormatAccount(common.Address(a))), nil
}

func (a Account) Address() common.Address { return common.Address(a) }

// Call argument shapes. Amounts are decimal integers, rates and prices are
// fixed point strings.
type (
	adjustLoanArgs struct {
		Currency   types.CurrencyID `json:"currency"`
		Collateral *big.Int         `json:"collateral"`
		Debit      *big.Int         `json:"debit"`
	}
	expandCollateralArgs struct {
		Currency           types.CurrencyID `json:"currency"`
		IncreaseDebitValue *big.Int         `json:"increase_debit_value"`
		MinIncCollateral   *big.Int         `json:"min_increase_collateral"`
	}
	shrinkDebitArgs struct {
		Currency           types.CurrencyID `json:"currency"`
		DecreaseCollateral *big.Int         `json:"decrease_collateral"`
		MinDecDebitValue   *big.Int         `json:"min_decrease_debit_value"`
	}
	closeLoanArgs struct {
		Currency      types.CurrencyID `json:"currency"`
		MaxCollateral *big.Int         `json:"max_collateral"`
	}
	positionArgs struct {
		Currency types.CurrencyID `json:"currency"`
		Owner    Account          `json:"owner"`
	}
	collateralParamsArgs struct {
		Currency                types.CurrencyID  `json:"currency"`
		InterestRatePerSec      *fixedpoint.Rate  `json:"interest_rate_per_sec"`
		LiquidationRatio        *fixedpoint.Ratio `json:"liquidation_ratio"`
		LiquidationPenalty      *fixedpoint.Rate  `json:"liquidation_penalty"`
		RequiredCollateralRatio *fixedpoint.Ratio `json:"required_collateral_ratio"`
		MaximumTotalDebitValue  *big.Int          `json:"maximum_total_debit_value"`
		Clear                   []string          `json:"clear"`
	}
	exchangeRateArgs struct {
		Currency types.CurrencyID        `json:"currency"`
		Rate     fixedpoint.ExchangeRate `json:"rate"`
	}
	contractArgs struct {
		Contract Account `json:"contract"`
	}
	pairArgs struct {
		TokenA types.CurrencyID `json:"token_a"`
		TokenB types.CurrencyID `json:"token_b"`
	}
	addLiquidityArgs struct {
		TokenA   types.CurrencyID `json:"token_a"`
		TokenB   types.CurrencyID `json:"token_b"`
		MaxA     *big.Int         `json:"max_amount_a"`
		MaxB     *big.Int         `json:"max_amount_b"`
		MinShare *big.Int         `json:"min_share_increment"`
		Stake    bool             `json:"stake"`
	}
	removeLiquidityArgs struct {
		TokenA  types.CurrencyID `json:"token_a"`
		TokenB  types.CurrencyID `json:"token_b"`
		Share   *big.Int         `json:"remove_share"`
		MinA    *big.Int         `json:"min_withdrawn_a"`
		MinB    *big.Int         `json:"min_withdrawn_b"`
		Unstake bool             `json:"by_unstake"`
	}
	swapArgs struct {
		Path   []types.CurrencyID `json:"path"`
		Amount *big.Int           `json:"amount"`
		Limit  *big.Int           `json:"limit"`
	}
	provisioningArgs struct {
		TokenA           types.CurrencyID `json:"token_a"`
		TokenB           types.CurrencyID `json:"token_b"`
		MinContributionA *big.Int         `json:"min_contribution_a"`
		MinContributionB *big.Int         `json:"min_contribution_b"`
		TargetA          *big.Int         `json:"target_a"`
		TargetB          *big.Int         `json:"target_b"`
		NotBefore        uint64           `json:"not_before"`
	}
	provisionArgs struct {
		TokenA  types.CurrencyID `json:"token_a"`
		TokenB  types.CurrencyID `json:"token_b"`
		AmountA *big.Int         `json:"amount_a"`
		AmountB *big.Int         `json:"amount_b"`
	}
	ownerPairArgs struct {
		Owner  Account          `json:"owner"`
		TokenA types.CurrencyID `json:"token_a"`
		TokenB types.CurrencyID `json:"token_b"`
	}
	auctionSizeArgs struct {
		Currency types.CurrencyID `json:"currency"`
		Size     *big.Int         `json:"size"`
	}
	amountArgs struct {
		Amount *big.Int `json:"amount"`
	}
	auctionArgs struct {
		Currency types.CurrencyID `json:"currency"`
		Amount   *big.Int         `json:"amount"`
		Target   *big.Int         `json:"target"`
		Split    bool             `json:"split"`
	}
	exchangeCollateralArgs struct {
		Currency     types.CurrencyID `json:"currency"`
		SupplyAmount *big.Int         `json:"supply_amount"`
		MinTarget    *big.Int         `json:"min_target_amount"`
		TargetAmount *big.Int         `json:"target_amount"`
		MaxSupply    *big.Int         `json:"max_supply_amount"`
	}
	auctionIDArgs struct {
		ID string `json:"id"`
	}
	priceArgs struct {
		Currency types.CurrencyID `json:"currency"`
		Price    fixedpoint.Price `json:"price"`
	}
	currencyArgs struct {
		Currency types.CurrencyID `json:"currency"`
	}
	pauseArgs struct {
		Module string `json:"module"`
		Paused bool   `json:"paused"`
	}
	adminArgs struct {
		Account Account `json:"account"`
		Admin   bool    `json:"admin"`
	}
	transferArgs struct {
		Currency types.CurrencyID `json:"currency"`
		To       Account          `json:"to"`
		Amount   *big.Int         `json:"amount"`
	}
	unsignedArgs struct {
		Kind     string           `json:"kind"`
		Currency types.CurrencyID `json:"currency"`
		Owner    Account          `json:"owner"`
	}
)

func decodeArgs(tx *types.Transaction, out interface{}) error {
	if len(tx.Args) == 0 {
		return fmt.Errorf("%s.%s: arguments required", tx.Module, tx.Method)
	}
	if err := json.Unmarshal(tx.Args, out); err != nil {
		return fmt.Errorf("%s.%s: decode arguments: %w", tx.Module, tx.Method, err)
	}
	return nil
}

// NewCallTx builds a call transaction for a signer. Sign it before
// submission.
func NewCallTx(nonce uint64, module, method string, args interface{}) (*types.Transaction, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return &types.Transaction{
		Type:   types.TxTypeSigned,
		Nonce:  nonce,
		Module: module,
		Method: method,
		Args:   raw,
	}, nil
}

// NewUnsignedTx wraps a liquidate or settle call for the pool.
func NewUnsignedTx(call cdp.UnsignedCall) (*types.Transaction, error) {
	raw, err := json.Marshal(unsignedArgs{
		Kind:     call.Kind.String(),
		Currency: call.Currency,
		Owner:    Account(call.Owner),
	})
	if err != nil {
		return nil, err
	}
	return &types.Transaction{
		Type:   types.TxTypeUnsigned,
		Module: "cdp",
		Method: call.Kind.String(),
		Args:   raw,
	}, nil
}

func decodeUnsignedCall(tx *types.Transaction) (cdp.UnsignedCall, error) {
	if tx.Module != "cdp" {
		return cdp.UnsignedCall{}, fmt.Errorf("%w: %s.%s", ErrUnknownCall, tx.Module, tx.Method)
	}
	var args unsignedArgs
	if err := decodeArgs(tx, &args); err != nil {
		return cdp.UnsignedCall{}, err
	}
	call := cdp.UnsignedCall{Currency: args.Currency, Owner: args.Owner.Address()}
	switch args.Kind {
	case cdp.CallLiquidate.String():
		call.Kind = cdp.CallLiquidate
	case cdp.CallSettle.String():
		call.Kind = cdp.CallSettle
	default:
		return cdp.UnsignedCall{}, fmt.Errorf("%w: unsigned %q", ErrUnknownCall, args.Kind)
	}
	if args.Kind != tx.Method {
		return cdp.UnsignedCall{}, fmt.Errorf("%w: method %q does not match kind %q", ErrUnknownCall, tx.Method, args.Kind)
	}
	return call, nil
}

func (rt *Runtime) dispatch(origin nativecommon.Origin, tx *types.Transaction) error {
	if origin.Unsigned {
		call, err := decodeUnsignedCall(tx)
		if err != nil {
			return err
		}
		return rt.CDP.DispatchUnsigned(call)
	}
	switch strings.ToLower(tx.Module) {
	case "cdp":
		return rt.dispatchCDP(origin, tx)
	case "dex":
		return rt.dispatchDEX(origin, tx)
	case "treasury":
		return rt.dispatchTreasury(origin, tx)
	case "oracle":
		return rt.dispatchOracle(origin, tx)
	case "system":
		return rt.dispatchSystem(origin, tx)
	case "ledger":
		return rt.dispatchLedger(origin, tx)
	default:
		return fmt.Errorf("%w: %s.%s", ErrUnknownCall, tx.Module, tx.Method)
	}
}

func (rt *Runtime) dispatchCDP(origin nativecommon.Origin, tx *types.Transaction) error {
	switch tx.Method {
	case "adjust_loan", "adjust_loan_by_debit_value":
		var args adjustLoanArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		if tx.Method == "adjust_loan" {
			return rt.CDP.AdjustLoan(origin, args.Currency, args.Collateral, args.Debit)
		}
		return rt.CDP.AdjustLoanByDebitValue(origin, args.Currency, args.Collateral, args.Debit)
	case "expand_collateral":
		var args expandCollateralArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.CDP.ExpandCollateral(origin, args.Currency, args.IncreaseDebitValue, args.MinIncCollateral)
	case "shrink_debit":
		var args shrinkDebitArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.CDP.ShrinkDebit(origin, args.Currency, args.DecreaseCollateral, args.MinDecDebitValue)
	case "close_loan_has_debit_by_dex":
		var args closeLoanArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.CDP.CloseLoanHasDebitByDex(origin, args.Currency, args.MaxCollateral)
	case "liquidate", "settle":
		var args positionArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		if tx.Method == "liquidate" {
			return rt.CDP.Liquidate(origin, args.Currency, args.Owner.Address())
		}
		return rt.CDP.Settle(origin, args.Currency, args.Owner.Address())
	case "set_collateral_params":
		var args collateralParamsArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		update, err := args.update()
		if err != nil {
			return err
		}
		return rt.CDP.SetCollateralParams(origin, args.Currency, update)
	case "set_debit_exchange_rate":
		var args exchangeRateArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.CDP.SetDebitExchangeRate(origin, args.Currency, args.Rate)
	case "register_liquidation_contract", "deregister_liquidation_contract":
		var args contractArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		if tx.Method == "register_liquidation_contract" {
			return rt.CDP.RegisterLiquidationContract(origin, args.Contract.Address())
		}
		return rt.CDP.DeregisterLiquidationContract(origin, args.Contract.Address())
	}
	return fmt.Errorf("%w: cdp.%s", ErrUnknownCall, tx.Method)
}

// update maps present fields to new values. Optional parameters named in
// Clear are reset to unset.
func (a collateralParamsArgs) update() (cdp.CollateralParamsUpdate, error) {
	var update cdp.CollateralParamsUpdate
	if a.InterestRatePerSec != nil {
		update.InterestRatePerSec = cdp.NewValue(a.InterestRatePerSec)
	}
	if a.LiquidationRatio != nil {
		update.LiquidationRatio = cdp.NewValue(a.LiquidationRatio)
	}
	if a.LiquidationPenalty != nil {
		update.LiquidationPenalty = cdp.NewValue(a.LiquidationPenalty)
	}
	if a.RequiredCollateralRatio != nil {
		update.RequiredCollateralRatio = cdp.NewValue(a.RequiredCollateralRatio)
	}
	if a.MaximumTotalDebitValue != nil {
		update.MaximumTotalDebitValue = cdp.NewValue(a.MaximumTotalDebitValue)
	}
	for _, field := range a.Clear {
		switch field {
		case "interest_rate_per_sec":
			update.InterestRatePerSec = cdp.NewValue[*fixedpoint.Rate](nil)
		case "liquidation_ratio":
			update.LiquidationRatio = cdp.NewValue[*fixedpoint.Ratio](nil)
		case "liquidation_penalty":
			update.LiquidationPenalty = cdp.NewValue[*fixedpoint.Rate](nil)
		case "required_collateral_ratio":
			update.RequiredCollateralRatio = cdp.NewValue[*fixedpoint.Ratio](nil)
		default:
			return update, fmt.Errorf("cdp.set_collateral_params: cannot clear %q", field)
		}
	}
	return update, nil
}

func (rt *Runtime) dispatchDEX(origin nativecommon.Origin, tx *types.Transaction) error {
	switch tx.Method {
	case "add_liquidity":
		var args addLiquidityArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.DEX.AddLiquidity(origin, args.TokenA, args.TokenB, args.MaxA, args.MaxB, args.MinShare, args.Stake)
	case "remove_liquidity":
		var args removeLiquidityArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.DEX.RemoveLiquidity(origin, args.TokenA, args.TokenB, args.Share, args.MinA, args.MinB, args.Unstake)
	case "swap_with_exact_supply":
		var args swapArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.DEX.SwapWithExactSupply(origin, args.Path, args.Amount, args.Limit)
	case "swap_with_exact_target":
		var args swapArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.DEX.SwapWithExactTarget(origin, args.Path, args.Amount, args.Limit)
	case "list_provisioning", "update_provisioning_parameters":
		var args provisioningArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		terms := dex.ProvisioningTerms{
			MinContributionA: args.MinContributionA,
			MinContributionB: args.MinContributionB,
			TargetA:          args.TargetA,
			TargetB:          args.TargetB,
			NotBefore:        args.NotBefore,
		}
		if tx.Method == "list_provisioning" {
			return rt.DEX.ListProvisioning(origin, args.TokenA, args.TokenB, terms)
		}
		return rt.DEX.UpdateProvisioningParameters(origin, args.TokenA, args.TokenB, terms)
	case "add_provision":
		var args provisionArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.DEX.AddProvision(origin, args.TokenA, args.TokenB, args.AmountA, args.AmountB)
	case "end_provisioning", "abort_provisioning", "enable_trading_pair", "disable_trading_pair":
		var args pairArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		switch tx.Method {
		case "end_provisioning":
			return rt.DEX.EndProvisioning(origin, args.TokenA, args.TokenB)
		case "abort_provisioning":
			return rt.DEX.AbortProvisioning(origin, args.TokenA, args.TokenB)
		case "enable_trading_pair":
			return rt.DEX.EnableTradingPair(origin, args.TokenA, args.TokenB)
		default:
			return rt.DEX.DisableTradingPair(origin, args.TokenA, args.TokenB)
		}
	case "refund_provision", "claim_dex_share":
		var args ownerPairArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		if tx.Method == "refund_provision" {
			return rt.DEX.RefundProvision(origin, args.Owner.Address(), args.TokenA, args.TokenB)
		}
		return rt.DEX.ClaimDexShare(origin, args.Owner.Address(), args.TokenA, args.TokenB)
	}
	return fmt.Errorf("%w: dex.%s", ErrUnknownCall, tx.Method)
}

func (rt *Runtime) dispatchTreasury(origin nativecommon.Origin, tx *types.Transaction) error {
	switch tx.Method {
	case "set_expected_collateral_auction_size":
		var args auctionSizeArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.Treasury.SetExpectedCollateralAuctionSize(origin, args.Currency, args.Size)
	case "set_debit_offset_buffer", "extract_surplus_to_treasury":
		var args amountArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		if tx.Method == "set_debit_offset_buffer" {
			return rt.Treasury.SetDebitOffsetBuffer(origin, args.Amount)
		}
		return rt.Treasury.ExtractSurplusToTreasury(origin, args.Amount)
	case "auction_collateral":
		var args auctionArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.Treasury.AuctionCollateral(origin, args.Currency, args.Amount, args.Target, args.Split)
	case "exchange_collateral_to_stable":
		var args exchangeCollateralArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		limit := dex.ExactSupply(args.SupplyAmount, args.MinTarget)
		if args.TargetAmount != nil {
			limit = dex.ExactTarget(args.MaxSupply, args.TargetAmount)
		}
		return rt.Treasury.ExchangeCollateralToStable(origin, args.Currency, limit)
	case "cancel_collateral_auction":
		var args auctionIDArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.Treasury.CancelCollateralAuction(origin, args.ID)
	}
	return fmt.Errorf("%w: treasury.%s", ErrUnknownCall, tx.Method)
}

func (rt *Runtime) dispatchOracle(origin nativecommon.Origin, tx *types.Transaction) error {
	if err := nativecommon.EnsureAdmin(origin, rt.Registry); err != nil {
		return err
	}
	switch tx.Method {
	case "feed_price":
		var args priceArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.Oracle.FeedPrice(args.Currency, args.Price)
	case "clear_price":
		var args currencyArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.Oracle.ClearPrice(args.Currency)
	}
	return fmt.Errorf("%w: oracle.%s", ErrUnknownCall, tx.Method)
}

func (rt *Runtime) dispatchSystem(origin nativecommon.Origin, tx *types.Transaction) error {
	if err := nativecommon.EnsureAdmin(origin, rt.Registry); err != nil {
		return err
	}
	switch tx.Method {
	case "set_paused":
		var args pauseArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.Registry.SetPaused(args.Module, args.Paused)
	case "emergency_shutdown":
		if rt.Registry.IsShutdown() {
			return nil
		}
		rt.logger.Warn("system: emergency shutdown", "height", rt.height)
		return rt.Registry.SetShutdown(true)
	case "set_admin":
		var args adminArgs
		if err := decodeArgs(tx, &args); err != nil {
			return err
		}
		return rt.Registry.SetAdmin(args.Account.Address(), args.Admin)
	}
	return fmt.Errorf("%w: system.%s", ErrUnknownCall, tx.Method)
}

func (rt *Runtime) dispatchLedger(origin nativecommon.Origin, tx *types.Transaction) error {
	if tx.Method != "transfer" {
		return fmt.Errorf("%w: ledger.%s", ErrUnknownCall, tx.Method)
	}
	from, err := nativecommon.EnsureSigned(origin)
	if err != nil {
		return err
	}
	var args transferArgs
	if err := decodeArgs(tx, &args); err != nil {
		return err
	}
	if args.Amount == nil || args.Amount.Sign() <= 0 {
		return fmt.Errorf("ledger.transfer: amount must be positive")
	}
	return rt.Ledger.Transfer(args.Currency, from, args.To.Address(), args.Amount)
}
