package dex

import (
	"errors"
	"math/big"
	"testing"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/ledger"
)

func TestAddLiquidity(t *testing.T) {
	h := newHarness(t)
	for _, c := range path(USSD, EDF) {
		h.fund(t, alice, c, amount("1_000_000_000_000_000"))
		h.fund(t, bob, c, amount("1_000_000_000_000_000"))
	}
	lp := mustPair(t, USSD, EDF).DexShareCurrency()

	if err := h.engine.AddLiquidity(nativecommon.Signed(alice), USSD, EDF, big.NewInt(5), big.NewInt(1), nil, false); err != ErrMustBeEnabled {
		t.Fatalf("expected must be enabled, got %v", err)
	}
	h.enable(t, USSD, EDF)
	if err := h.engine.AddLiquidity(nativecommon.Signed(alice), USSD, EDF, big.NewInt(0), big.NewInt(1), nil, false); err != ErrInvalidLiquidityIncrement {
		t.Fatalf("expected invalid increment, got %v", err)
	}

	if err := h.engine.AddLiquidity(nativecommon.Signed(alice), USSD, EDF, amount("5_000_000_000_000"), amount("1_000_000_000_000"), nil, false); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, amount("5_000_000_000_000"), amount("1_000_000_000_000"))
	if got := h.ledger.FreeBalance(lp, alice); got.Cmp(amount("10_000_000_000_000")) != 0 {
		t.Fatalf("unexpected alice shares %s", got)
	}
	if got := h.ledger.FreeBalance(USSD, h.engine.Account()); got.Cmp(amount("5_000_000_000_000")) != 0 {
		t.Fatalf("unexpected module USSD balance %s", got)
	}

	if err := h.engine.AddLiquidity(nativecommon.Signed(bob), USSD, EDF, big.NewInt(4), big.NewInt(1), nil, true); err != ErrInvalidLiquidityIncrement {
		t.Fatalf("expected invalid increment for dust, got %v", err)
	}
	if err := h.engine.AddLiquidity(nativecommon.Signed(bob), USSD, EDF, amount("50_000_000_000_000"), amount("8_000_000_000_000"), amount("80_000_000_000_001"), true); err != ErrUnacceptableShareIncrement {
		t.Fatalf("expected unacceptable share increment, got %v", err)
	}
	if err := h.engine.AddLiquidity(nativecommon.Signed(bob), USSD, EDF, amount("50_000_000_000_000"), amount("8_000_000_000_000"), amount("80_000_000_000_000"), true); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, amount("45_000_000_000_000"), amount("9_000_000_000_000"))
	if got := h.ledger.ReservedBalance(lp, bob); got.Cmp(amount("80_000_000_000_000")) != 0 {
		t.Fatalf("unexpected bob staked shares %s", got)
	}
	if got := h.ledger.FreeBalance(lp, bob); got.Sign() != 0 {
		t.Fatalf("unexpected bob free shares %s", got)
	}
	if got := h.ledger.TotalIssuance(lp); got.Cmp(amount("90_000_000_000_000")) != 0 {
		t.Fatalf("unexpected share issuance %s", got)
	}
	if got := len(h.events.OfType(events.TypeDexAddLiquidity)); got != 2 {
		t.Fatalf("expected 2 add liquidity events, got %d", got)
	}
}

func TestRemoveLiquidity(t *testing.T) {
	h := newHarness(t)
	h.enable(t, USSD, EDF)
	for _, c := range path(USSD, EDF) {
		h.fund(t, alice, c, amount("1_000_000_000_000_000"))
		h.fund(t, bob, c, amount("1_000_000_000_000_000"))
	}
	lp := mustPair(t, USSD, EDF).DexShareCurrency()
	if err := h.engine.AddLiquidity(nativecommon.Signed(alice), USSD, EDF, amount("5_000_000_000_000"), amount("1_000_000_000_000"), nil, false); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	if err := h.engine.RemoveLiquidity(nativecommon.Signed(alice), lp, EDF, amount("8_000_000_000_000"), nil, nil, false); err != ErrInvalidCurrencyID {
		t.Fatalf("expected invalid currency, got %v", err)
	}
	if err := h.engine.RemoveLiquidity(nativecommon.Signed(alice), USSD, EDF, amount("8_000_000_000_000"), amount("4_000_000_000_001"), nil, false); err != ErrUnacceptableLiquidityWithdrawn {
		t.Fatalf("expected unacceptable withdrawal, got %v", err)
	}
	if err := h.engine.RemoveLiquidity(nativecommon.Signed(alice), USSD, EDF, big.NewInt(0), nil, nil, false); err != nil {
		t.Fatalf("zero removal: %v", err)
	}
	if err := h.engine.RemoveLiquidity(nativecommon.Signed(alice), USSD, EDF, amount("8_000_000_000_000"), amount("4_000_000_000_000"), amount("800_000_000_000"), false); err != nil {
		t.Fatalf("remove liquidity: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, amount("1_000_000_000_000"), amount("200_000_000_000"))
	if got := h.ledger.FreeBalance(lp, alice); got.Cmp(amount("2_000_000_000_000")) != 0 {
		t.Fatalf("unexpected alice shares %s", got)
	}
	if got := h.ledger.FreeBalance(USSD, alice); got.Cmp(amount("999_000_000_000_000")) != 0 {
		t.Fatalf("unexpected alice USSD %s", got)
	}

	if err := h.engine.AddLiquidity(nativecommon.Signed(bob), USSD, EDF, amount("5_000_000_000_000"), amount("1_000_000_000_000"), nil, true); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if got := h.ledger.ReservedBalance(lp, bob); got.Cmp(amount("10_000_000_000_000")) != 0 {
		t.Fatalf("unexpected bob staked shares %s", got)
	}
	if err := h.engine.RemoveLiquidity(nativecommon.Signed(bob), USSD, EDF, amount("10_000_000_000_000"), nil, nil, false); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected staked shares to be locked, got %v", err)
	}
	if err := h.engine.RemoveLiquidity(nativecommon.Signed(bob), USSD, EDF, amount("10_000_000_000_000"), nil, nil, true); err != nil {
		t.Fatalf("remove staked liquidity: %v", err)
	}
	if got := h.ledger.ReservedBalance(lp, bob); got.Sign() != 0 {
		t.Fatalf("unexpected bob staked shares %s", got)
	}
	if got := h.ledger.TotalIssuance(lp); got.Cmp(amount("2_000_000_000_000")) != 0 {
		t.Fatalf("unexpected share issuance %s", got)
	}
}

func TestRemoveLiquidityFromDisabledPair(t *testing.T) {
	h := newHarness(t)
	h.enable(t, USSD, EDF)
	h.fund(t, alice, USSD, big.NewInt(5_000))
	h.fund(t, alice, EDF, big.NewInt(1_000))
	if err := h.engine.AddLiquidity(nativecommon.Signed(alice), USSD, EDF, big.NewInt(5_000), big.NewInt(1_000), nil, false); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if err := h.engine.DisableTradingPair(nativecommon.RootOrigin(), USSD, EDF); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := h.engine.RemoveLiquidity(nativecommon.Signed(alice), EDF, USSD, big.NewInt(10_000), big.NewInt(1_000), big.NewInt(5_000), false); err != nil {
		t.Fatalf("remove liquidity: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, big.NewInt(0), big.NewInt(0))
}

func TestAddThenRemoveLiquidityReturnsDeposit(t *testing.T) {
	cases := []struct {
		name         string
		pool0, pool1 string
		add0, max1   string
	}{
		{"large reserves", "7_000_000_000_000_000_000_000_000", "3_000_000_000_000_000_000_000_000", "1_234_567_890_123_456_789_012", "1_000_000_000_000_000_000_000_000"},
		{"second side binds", "7_000_000_000_000_000_000_000_000", "3_000_000_000_000_000_000_000_000", "9_000_000_000_000_000_000_000_000", "123_456_789_012_345_678_901"},
		{"uneven small pool", "1_000_003", "999_983", "77_777", "100_000"},
		{"tiny deposit", "5_000_000_000_000_000_000", "1_000_000_000_000_000_000", "5", "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.enable(t, USSD, EDF)
			lp := mustPair(t, USSD, EDF).DexShareCurrency()
			h.fund(t, alice, USSD, amount(tc.pool0))
			h.fund(t, alice, EDF, amount(tc.pool1))
			if err := h.engine.AddLiquidity(nativecommon.Signed(alice), USSD, EDF, amount(tc.pool0), amount(tc.pool1), nil, false); err != nil {
				t.Fatalf("seed pool: %v", err)
			}

			h.fund(t, bob, USSD, amount(tc.add0))
			h.fund(t, bob, EDF, amount(tc.max1))
			startUSSD, startEDF := h.ledger.FreeBalance(USSD, bob), h.ledger.FreeBalance(EDF, bob)
			if err := h.engine.AddLiquidity(nativecommon.Signed(bob), USSD, EDF, amount(tc.add0), amount(tc.max1), nil, false); err != nil {
				t.Fatalf("add liquidity: %v", err)
			}
			heldUSSD, heldEDF := h.ledger.FreeBalance(USSD, bob), h.ledger.FreeBalance(EDF, bob)
			deposit0 := new(big.Int).Sub(startUSSD, heldUSSD)
			deposit1 := new(big.Int).Sub(startEDF, heldEDF)
			shares := h.ledger.FreeBalance(lp, bob)

			if err := h.engine.RemoveLiquidity(nativecommon.Signed(bob), USSD, EDF, shares, nil, nil, false); err != nil {
				t.Fatalf("remove liquidity: %v", err)
			}
			back0 := new(big.Int).Sub(h.ledger.FreeBalance(USSD, bob), heldUSSD)
			back1 := new(big.Int).Sub(h.ledger.FreeBalance(EDF, bob), heldEDF)
			for _, side := range []struct {
				currency      types.CurrencyID
				deposit, back *big.Int
			}{{USSD, deposit0, back0}, {EDF, deposit1, back1}} {
				loss := new(big.Int).Sub(side.deposit, side.back)
				if loss.Sign() < 0 || loss.Cmp(big.NewInt(1)) > 0 {
					t.Fatalf("%s: deposited %s, got back %s", side.currency, side.deposit, side.back)
				}
			}
		})
	}
}
