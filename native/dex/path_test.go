package dex

import (
	"math/big"
	"testing"

	"ecdpchain/core/types"
)

func path(currencies ...types.CurrencyID) []types.CurrencyID { return currencies }

func newPathHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.enable(t, USSD, EDF)
	h.enable(t, USSD, WBTC)
	h.enable(t, EDF, WBTC)
	h.setLiquidity(t, USSD, EDF, big.NewInt(50000), big.NewInt(10000))
	h.setLiquidity(t, USSD, WBTC, big.NewInt(100000), big.NewInt(10))
	return h
}

func TestGetTargetAmounts(t *testing.T) {
	h := newPathHarness(t)

	if _, err := h.engine.GetTargetAmounts(path(EDF), big.NewInt(10000)); err != ErrInvalidTradingPathLength {
		t.Fatalf("expected invalid length, got %v", err)
	}
	if _, err := h.engine.GetTargetAmounts(path(EDF, USSD, WBTC, BTC), big.NewInt(10000)); err != ErrInvalidTradingPathLength {
		t.Fatalf("expected invalid length, got %v", err)
	}
	if _, err := h.engine.GetTargetAmounts(path(EDF, EDF), big.NewInt(10000)); err != ErrInvalidTradingPath {
		t.Fatalf("expected invalid path, got %v", err)
	}
	if _, err := h.engine.GetTargetAmounts(path(EDF, USSD, EDF), big.NewInt(10000)); err != ErrInvalidTradingPath {
		t.Fatalf("expected invalid path for revisit, got %v", err)
	}
	if _, err := h.engine.GetTargetAmounts(path(EDF, USSD, SEE), big.NewInt(10000)); err != ErrMustBeEnabled {
		t.Fatalf("expected must be enabled, got %v", err)
	}
	if _, err := h.engine.GetTargetAmounts(path(EDF, WBTC), big.NewInt(10000)); err != ErrInsufficientLiquidity {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}

	amounts, err := h.engine.GetTargetAmounts(path(EDF, USSD), big.NewInt(10000))
	if err != nil {
		t.Fatalf("target amounts: %v", err)
	}
	expectAmounts(t, amounts, 10000, 24874)

	amounts, err = h.engine.GetTargetAmounts(path(EDF, USSD, WBTC), big.NewInt(10000))
	if err != nil {
		t.Fatalf("target amounts: %v", err)
	}
	expectAmounts(t, amounts, 10000, 24874, 1)

	if _, err := h.engine.GetTargetAmounts(path(EDF, USSD, WBTC), big.NewInt(100)); err != ErrZeroTargetAmount {
		t.Fatalf("expected zero target, got %v", err)
	}
}

func TestGetSupplyAmounts(t *testing.T) {
	h := newPathHarness(t)

	amounts, err := h.engine.GetSupplyAmounts(path(EDF, USSD), big.NewInt(24874))
	if err != nil {
		t.Fatalf("supply amounts: %v", err)
	}
	expectAmounts(t, amounts, 10000, 24874)

	amounts, err = h.engine.GetSupplyAmounts(path(EDF, USSD), big.NewInt(25000))
	if err != nil {
		t.Fatalf("supply amounts: %v", err)
	}
	expectAmounts(t, amounts, 10102, 25000)

	amounts, err = h.engine.GetSupplyAmounts(path(EDF, USSD, WBTC), big.NewInt(1))
	if err != nil {
		t.Fatalf("supply amounts: %v", err)
	}
	expectAmounts(t, amounts, 2924, 11224, 1)

	if _, err := h.engine.GetSupplyAmounts(path(EDF, USSD), big.NewInt(50000)); err != ErrZeroSupplyAmount {
		t.Fatalf("expected zero supply, got %v", err)
	}
	if _, err := h.engine.GetSupplyAmounts(path(EDF, WBTC), big.NewInt(1)); err != ErrInsufficientLiquidity {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}

func TestGetSwapAmount(t *testing.T) {
	h := newHarness(t)
	h.enable(t, USSD, EDF)
	h.setLiquidity(t, USSD, EDF, big.NewInt(50000), big.NewInt(10000))

	supply, target, ok := h.engine.GetSwapAmount(path(EDF, USSD), ExactSupply(big.NewInt(10000), big.NewInt(0)))
	if !ok || supply.Int64() != 10000 || target.Int64() != 24874 {
		t.Fatalf("unexpected quote %v %v %v", supply, target, ok)
	}
	if _, _, ok := h.engine.GetSwapAmount(path(EDF, USSD), ExactSupply(big.NewInt(10000), big.NewInt(24875))); ok {
		t.Fatalf("quote below minimum must fail")
	}
	supply, target, ok = h.engine.GetSwapAmount(path(EDF, USSD), ExactTarget(big.NewInt(1_000_000), big.NewInt(24874)))
	if !ok || supply.Int64() != 10000 || target.Int64() != 24874 {
		t.Fatalf("unexpected quote %v %v %v", supply, target, ok)
	}
	if _, _, ok := h.engine.GetSwapAmount(path(EDF, USSD), ExactTarget(big.NewInt(9999), big.NewInt(24874))); ok {
		t.Fatalf("quote above maximum must fail")
	}
}

func TestGetBestPriceSwapPath(t *testing.T) {
	h := newHarness(t)
	h.enable(t, USSD, EDF)
	h.enable(t, USSD, WBTC)
	h.enable(t, EDF, WBTC)
	h.setLiquidity(t, USSD, EDF, big.NewInt(300000), big.NewInt(100000))
	h.setLiquidity(t, USSD, WBTC, big.NewInt(50000), big.NewInt(10000))
	h.setLiquidity(t, EDF, WBTC, big.NewInt(10000), big.NewInt(10000))

	type result struct {
		path           []types.CurrencyID
		supply, target int64
	}
	cases := []struct {
		name   string
		limit  SwapLimit
		joints [][]types.CurrencyID
		want   *result
	}{
		{"direct exact supply", ExactSupply(big.NewInt(10), big.NewInt(0)), nil, &result{path(EDF, USSD), 10, 29}},
		{"minimum unmet", ExactSupply(big.NewInt(10), big.NewInt(30)), nil, nil},
		{"zero supply", ExactSupply(big.NewInt(0), big.NewInt(0)), nil, nil},
		{"disabled joint ignored", ExactSupply(big.NewInt(10), big.NewInt(0)), [][]types.CurrencyID{{SEE}}, &result{path(EDF, USSD), 10, 29}},
		{"joint equals supply", ExactSupply(big.NewInt(10), big.NewInt(0)), [][]types.CurrencyID{{EDF}}, &result{path(EDF, USSD), 10, 29}},
		{"joint equals target", ExactSupply(big.NewInt(10), big.NewInt(0)), [][]types.CurrencyID{{USSD}}, &result{path(EDF, USSD), 10, 29}},
		{"better joint", ExactSupply(big.NewInt(10), big.NewInt(0)), [][]types.CurrencyID{{WBTC}}, &result{path(EDF, WBTC, USSD), 10, 44}},
		{"direct wins at size", ExactSupply(big.NewInt(10000), big.NewInt(0)), [][]types.CurrencyID{{WBTC}}, &result{path(EDF, USSD), 10000, 27024}},
		{"direct exact target", ExactTarget(big.NewInt(20), big.NewInt(30)), nil, &result{path(EDF, USSD), 11, 30}},
		{"maximum unmet", ExactTarget(big.NewInt(10), big.NewInt(30)), nil, nil},
		{"zero target", ExactTarget(big.NewInt(0), big.NewInt(0)), nil, nil},
		{"exact target joint", ExactTarget(big.NewInt(20), big.NewInt(30)), [][]types.CurrencyID{{WBTC}}, &result{path(EDF, WBTC, USSD), 8, 30}},
		{"exact target direct wins", ExactTarget(big.NewInt(100000), big.NewInt(20000)), [][]types.CurrencyID{{WBTC}}, &result{path(EDF, USSD), 7216, 20000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, supply, target, ok := h.engine.GetBestPriceSwapPath(EDF, USSD, tc.limit, tc.joints)
			if tc.want == nil {
				if ok {
					t.Fatalf("expected no path, got %v", got)
				}
				return
			}
			if !ok {
				t.Fatalf("expected a path")
			}
			if len(got) != len(tc.want.path) {
				t.Fatalf("unexpected path %v", got)
			}
			for i := range got {
				if got[i] != tc.want.path[i] {
					t.Fatalf("unexpected path %v", got)
				}
			}
			if supply.Int64() != tc.want.supply || target.Int64() != tc.want.target {
				t.Fatalf("unexpected amounts %s -> %s", supply, target)
			}
		})
	}
}
