package liquidator

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
	"ecdpchain/native/fixedpoint"
)

var (
	ErrNoPrice          = errors.New("liquidator: collateral price unavailable")
	ErrDeclined         = errors.New("liquidator: collateral value below minimum repayment")
	ErrInsufficientFund = errors.New("liquidator: keeper cannot cover repayment")
	ErrInvalidDiscount  = errors.New("liquidator: discount must be below one")
)

// Ledger moves stable out of keeper accounts.
type Ledger interface {
	FreeBalance(currency types.CurrencyID, who common.Address) *big.Int
	Transfer(currency types.CurrencyID, from, to common.Address, amount *big.Int) error
}

// PriceSource values seized collateral in stable.
type PriceSource interface {
	GetRelativePrice(base, quote types.CurrencyID) (fixedpoint.Price, bool)
}

// Params configures keepers. Discount is the haircut applied to the oracle
// value of collateral before comparing it with the requested repayment.
type Params struct {
	StableCurrency types.CurrencyID `toml:"stable_currency" yaml:"stable_currency"`
	Discount       fixedpoint.Rate  `toml:"discount" yaml:"discount"`
}

func DefaultParams() Params {
	return Params{
		StableCurrency: "USSD",
		Discount:       fixedpoint.FromRational(5, 100),
	}
}

func (p Params) Validate() error {
	if err := p.StableCurrency.Validate(); err != nil {
		return fmt.Errorf("liquidator: stable currency: %w", err)
	}
	if p.Discount.Cmp(fixedpoint.One()) >= 0 {
		return ErrInvalidDiscount
	}
	return nil
}

// Keeper answers liquidation offers on behalf of registered contract
// accounts. The collateral has already been moved to the contract when an
// offer arrives; declining returns an error so the caller rolls it back.
type Keeper struct {
	params Params
	ledger Ledger
	prices PriceSource
	logger *slog.Logger
}

func New(params Params, ledger Ledger, prices PriceSource) *Keeper {
	if params.StableCurrency == "" {
		params.StableCurrency = DefaultParams().StableCurrency
	}
	return &Keeper{params: params, ledger: ledger, prices: prices}
}

func (k *Keeper) SetLogger(logger *slog.Logger) {
	if k == nil {
		return
	}
	k.logger = logger
}

func (k *Keeper) Params() Params { return k.params }

func (k *Keeper) log() *slog.Logger {
	if k.logger != nil {
		return k.logger
	}
	return slog.Default()
}

// Quote is the stable a keeper is willing to pay for amount of currency.
func (k *Keeper) Quote(currency types.CurrencyID, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	price, ok := k.prices.GetRelativePrice(currency, k.params.StableCurrency)
	if !ok {
		return nil, ErrNoPrice
	}
	value := price.SaturatingMulInt(amount)
	haircut := k.params.Discount.SaturatingMulInt(value)
	return value.Sub(value, haircut), nil
}

// CallLiquidationContract accepts the offer when the discounted value of
// the collateral covers minRepayment, paying exactly minRepayment from the
// contract account to repayDest.
func (k *Keeper) CallLiquidationContract(contract, owner common.Address, currency types.CurrencyID, amount, minRepayment *big.Int, repayDest common.Address) (*big.Int, error) {
	if k == nil || k.ledger == nil || k.prices == nil {
		return nil, errors.New("liquidator: keeper not configured")
	}
	if minRepayment == nil {
		minRepayment = big.NewInt(0)
	}
	quote, err := k.Quote(currency, amount)
	if err != nil {
		return nil, err
	}
	if quote.Cmp(minRepayment) < 0 {
		k.log().Debug("liquidator: declined offer",
			"contract", contract.Hex(),
			"owner", owner.Hex(),
			"currency", string(currency),
			"quote", quote.String(),
			"min_repayment", minRepayment.String())
		return nil, ErrDeclined
	}
	if k.ledger.FreeBalance(k.params.StableCurrency, contract).Cmp(minRepayment) < 0 {
		return nil, ErrInsufficientFund
	}
	if err := k.ledger.Transfer(k.params.StableCurrency, contract, repayDest, minRepayment); err != nil {
		return nil, fmt.Errorf("liquidator: repay: %w", err)
	}
	k.log().Info("liquidator: accepted offer",
		"contract", contract.Hex(),
		"owner", owner.Hex(),
		"currency", string(currency),
		"amount", amount.String(),
		"repaid", minRepayment.String())
	return new(big.Int).Set(minRepayment), nil
}
