package core

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
	"ecdpchain/crypto"
	"ecdpchain/native/dex"
	"ecdpchain/native/fixedpoint"
	"ecdpchain/native/loans"
)

// QueryResult encapsulates the JSON value returned by state queries.
type QueryResult struct {
	Value []byte
}

// QueryRecord represents an individual key/value pair returned from a prefix query.
type QueryRecord struct {
	Key   string
	Value []byte
}

// ErrQueryNotSupported indicates the requested namespace/path is not handled by the state router.
var ErrQueryNotSupported = errors.New("query: not supported")

type positionView struct {
	Owner      string   `json:"owner"`
	Currency   string   `json:"currency"`
	Collateral *big.Int `json:"collateral"`
	Debit      *big.Int `json:"debit"`
	DebitValue *big.Int `json:"debit_value"`
	Status     string   `json:"status,omitempty"`
}

type collateralView struct {
	Currency                string                  `json:"currency"`
	InterestRatePerSec      *fixedpoint.Rate        `json:"interest_rate_per_sec,omitempty"`
	LiquidationRatio        *fixedpoint.Ratio       `json:"liquidation_ratio,omitempty"`
	LiquidationPenalty      *fixedpoint.Rate        `json:"liquidation_penalty,omitempty"`
	RequiredCollateralRatio *fixedpoint.Ratio       `json:"required_collateral_ratio,omitempty"`
	MaximumTotalDebitValue  *big.Int                `json:"maximum_total_debit_value"`
	DebitExchangeRate       fixedpoint.ExchangeRate `json:"debit_exchange_rate"`
	TotalCollateral         *big.Int                `json:"total_collateral"`
	TotalDebit              *big.Int                `json:"total_debit"`
}

type poolView struct {
	TokenA      string   `json:"token_a"`
	TokenB      string   `json:"token_b"`
	Status      string   `json:"status"`
	ReserveA    *big.Int `json:"reserve_a"`
	ReserveB    *big.Int `json:"reserve_b"`
	TotalShares *big.Int `json:"total_shares"`
}

type quoteView struct {
	Path   []types.CurrencyID `json:"path"`
	Supply *big.Int           `json:"supply"`
	Target *big.Int           `json:"target"`
}

type treasuryView struct {
	Surplus           *big.Int `json:"surplus"`
	Debit             *big.Int `json:"debit"`
	DebitOffsetBuffer *big.Int `json:"debit_offset_buffer"`
}

// QueryState answers a point query within namespace.
func (n *Node) QueryState(namespace, path string) (*QueryResult, error) {
	ns := strings.TrimSpace(strings.ToLower(namespace))
	path = strings.Trim(strings.TrimSpace(path), "/")
	var result *QueryResult
	err := n.View(func(rt *Runtime) error {
		var value interface{}
		var err error
		switch ns {
		case "cdp":
			value, err = rt.queryCDP(path)
		case "dex":
			value, err = rt.queryDEX(path)
		case "treasury":
			value, err = rt.queryTreasury(path)
		case "oracle":
			value, err = rt.queryOracle(path)
		case "ledger":
			value, err = rt.queryLedger(path)
		case "system":
			value, err = rt.querySystem(path)
		default:
			return ErrQueryNotSupported
		}
		if err != nil {
			return err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return err
		}
		result = &QueryResult{Value: payload}
		return nil
	})
	return result, err
}

// QueryPrefix lists records under prefix. Only cdp positions are
// enumerable.
func (n *Node) QueryPrefix(namespace, prefix string) ([]QueryRecord, error) {
	ns := strings.TrimSpace(strings.ToLower(namespace))
	parts := splitPath(prefix)
	if ns != "cdp" || len(parts) != 2 || parts[0] != "positions" {
		return nil, ErrQueryNotSupported
	}
	currency := types.NormalizeCurrency(parts[1])
	var records []QueryRecord
	err := n.View(func(rt *Runtime) error {
		var encodeErr error
		err := rt.Loans.IteratePositions(currency, nil, func(who common.Address, _ loans.Position) bool {
			view, err := rt.positionView(currency, who)
			if err != nil {
				encodeErr = err
				return false
			}
			payload, err := json.Marshal(view)
			if err != nil {
				encodeErr = err
				return false
			}
			records = append(records, QueryRecord{Key: view.Owner, Value: payload})
			return true
		})
		if err != nil {
			return err
		}
		return encodeErr
	})
	return records, err
}

func splitPath(path string) []string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func (rt *Runtime) positionView(currency types.CurrencyID, who common.Address) (positionView, error) {
	pos := rt.Loans.Positions(currency, who)
	view := positionView{
		Owner:      crypto.FormatAccount(who),
		Currency:   string(currency),
		Collateral: pos.Collateral,
		Debit:      pos.Debit,
		DebitValue: rt.CDP.GetDebitValue(currency, pos.Debit),
	}
	if !pos.IsEmpty() {
		status, err := rt.CDP.CheckCDPStatus(currency, pos.Collateral, pos.Debit)
		if err != nil {
			return view, err
		}
		view.Status = status.String()
	}
	return view, nil
}

func (rt *Runtime) queryCDP(path string) (interface{}, error) {
	parts := splitPath(path)
	switch {
	case len(parts) == 1 && parts[0] == "collaterals":
		return rt.CDP.CollateralCurrencyIDs()
	case len(parts) == 1 && parts[0] == "contracts":
		contracts, err := rt.CDP.LiquidationContracts()
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(contracts))
		for _, c := range contracts {
			out = append(out, crypto.FormatAccount(c))
		}
		return out, nil
	case len(parts) == 2 && parts[0] == "params":
		currency := types.NormalizeCurrency(parts[1])
		params, ok, err := rt.CDP.CollateralParams(currency)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("cdp: %s is not a collateral", currency)
		}
		total := rt.Loans.TotalPositions(currency)
		return collateralView{
			Currency:                string(currency),
			InterestRatePerSec:      params.InterestRatePerSec,
			LiquidationRatio:        params.LiquidationRatio,
			LiquidationPenalty:      params.LiquidationPenalty,
			RequiredCollateralRatio: params.RequiredCollateralRatio,
			MaximumTotalDebitValue:  params.MaximumTotalDebitValue,
			DebitExchangeRate:       rt.CDP.GetDebitExchangeRate(currency),
			TotalCollateral:         total.Collateral,
			TotalDebit:              total.Debit,
		}, nil
	case len(parts) == 3 && parts[0] == "positions":
		who, err := crypto.ParseAccount(parts[2])
		if err != nil {
			return nil, err
		}
		return rt.positionView(types.NormalizeCurrency(parts[1]), who)
	}
	return nil, ErrQueryNotSupported
}

func (rt *Runtime) queryDEX(path string) (interface{}, error) {
	parts := splitPath(path)
	switch {
	case len(parts) == 1 && parts[0] == "pools":
		pools, err := rt.DEX.Pools()
		if err != nil {
			return nil, err
		}
		out := make([]poolView, 0, len(pools))
		for _, p := range pools {
			out = append(out, poolView{
				TokenA:      string(p.Pair.Token0),
				TokenB:      string(p.Pair.Token1),
				Status:      p.Status.String(),
				ReserveA:    p.Reserve0,
				ReserveB:    p.Reserve1,
				TotalShares: p.TotalShares,
			})
		}
		return out, nil
	case len(parts) == 3 && parts[0] == "pools":
		a, b := types.NormalizeCurrency(parts[1]), types.NormalizeCurrency(parts[2])
		status, _, err := rt.DEX.Status(a, b)
		if err != nil {
			return nil, err
		}
		reserveA, reserveB := rt.DEX.GetLiquidity(a, b)
		return poolView{
			TokenA:      string(a),
			TokenB:      string(b),
			Status:      status.String(),
			ReserveA:    reserveA,
			ReserveB:    reserveB,
			TotalShares: rt.Ledger.TotalIssuance(types.DexShareCurrency(a, b)),
		}, nil
	case len(parts) == 4 && (parts[0] == "quote_supply" || parts[0] == "quote_target"):
		supply, target := types.NormalizeCurrency(parts[1]), types.NormalizeCurrency(parts[2])
		amount, ok := new(big.Int).SetString(parts[3], 10)
		if !ok || amount.Sign() <= 0 {
			return nil, fmt.Errorf("dex: invalid amount %q", parts[3])
		}
		limit := dex.ExactSupply(amount, big.NewInt(0))
		if parts[0] == "quote_target" {
			limit = dex.ExactTarget(fixedpoint.MaxBalance(), amount)
		}
		route, in, out, ok := rt.DEX.GetBestPriceSwapPath(supply, target, limit, rt.params.SwapJoints)
		if !ok {
			return nil, fmt.Errorf("dex: no route from %s to %s", supply, target)
		}
		return quoteView{Path: route, Supply: in, Target: out}, nil
	}
	return nil, ErrQueryNotSupported
}

func (rt *Runtime) queryTreasury(path string) (interface{}, error) {
	parts := splitPath(path)
	switch {
	case len(parts) == 0 || (len(parts) == 1 && parts[0] == "pools"):
		return treasuryView{
			Surplus:           rt.Treasury.SurplusPool(),
			Debit:             rt.Treasury.DebitPool(),
			DebitOffsetBuffer: rt.Treasury.DebitOffsetBuffer(),
		}, nil
	case len(parts) == 2 && parts[0] == "auctions":
		return rt.Treasury.CollateralAuctions(types.NormalizeCurrency(parts[1]))
	case len(parts) == 2 && parts[0] == "collaterals":
		currency := types.NormalizeCurrency(parts[1])
		return map[string]*big.Int{
			"total":      rt.Treasury.TotalCollaterals(currency),
			"in_auction": rt.Treasury.TotalCollateralInAuction(currency),
		}, nil
	}
	return nil, ErrQueryNotSupported
}

func (rt *Runtime) queryOracle(path string) (interface{}, error) {
	parts := splitPath(path)
	if len(parts) != 2 || parts[0] != "prices" {
		return nil, ErrQueryNotSupported
	}
	price, ok := rt.Oracle.GetPrice(types.NormalizeCurrency(parts[1]))
	if !ok {
		return nil, fmt.Errorf("oracle: no price for %s", parts[1])
	}
	return price, nil
}

func (rt *Runtime) queryLedger(path string) (interface{}, error) {
	parts := splitPath(path)
	switch {
	case len(parts) == 1 && parts[0] == "assets":
		return rt.Ledger.Assets()
	case len(parts) == 3 && parts[0] == "balances":
		who, err := crypto.ParseAccount(parts[2])
		if err != nil {
			return nil, err
		}
		currency := types.NormalizeCurrency(parts[1])
		return map[string]*big.Int{
			"free":     rt.Ledger.FreeBalance(currency, who),
			"reserved": rt.Ledger.ReservedBalance(currency, who),
		}, nil
	case len(parts) == 2 && parts[0] == "issuance":
		return rt.Ledger.TotalIssuance(types.NormalizeCurrency(parts[1])), nil
	}
	return nil, ErrQueryNotSupported
}

func (rt *Runtime) querySystem(path string) (interface{}, error) {
	parts := splitPath(path)
	switch {
	case len(parts) == 1 && parts[0] == "shutdown":
		return rt.Registry.IsShutdown(), nil
	case len(parts) == 1 && parts[0] == "admins":
		admins, err := rt.Registry.Admins()
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(admins))
		for _, a := range admins {
			out = append(out, crypto.FormatAccount(a))
		}
		return out, nil
	case len(parts) == 1 && parts[0] == "height":
		return rt.Height(), nil
	case len(parts) == 2 && parts[0] == "nonces":
		who, err := crypto.ParseAccount(parts[1])
		if err != nil {
			return nil, err
		}
		return rt.Nonce(who), nil
	}
	return nil, ErrQueryNotSupported
}
