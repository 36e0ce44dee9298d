package dex

import (
	"math/big"
	"testing"

	"ecdpchain/core/events"
	nativecommon "ecdpchain/native/common"
)

func TestSwapKeepsConstantProduct(t *testing.T) {
	h := newHarness(t)
	h.setLiquidity(t, USSD, EDF, big.NewInt(50000), big.NewInt(10000))

	if err := h.engine.swap(USSD, EDF, big.NewInt(50000), big.NewInt(5001)); err != ErrInvariantCheckFailed {
		t.Fatalf("expected invariant failure, got %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, big.NewInt(50000), big.NewInt(10000))

	if err := h.engine.swap(USSD, EDF, big.NewInt(50000), big.NewInt(5000)); err != nil {
		t.Fatalf("swap: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, big.NewInt(100000), big.NewInt(5000))

	if err := h.engine.swap(EDF, USSD, big.NewInt(100), big.NewInt(800)); err != nil {
		t.Fatalf("swap: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, big.NewInt(99200), big.NewInt(5100))
}

func TestSwapByPath(t *testing.T) {
	h := newHarness(t)
	h.setLiquidity(t, USSD, EDF, big.NewInt(50000), big.NewInt(10000))
	h.setLiquidity(t, USSD, WBTC, big.NewInt(100000), big.NewInt(10))

	if err := h.engine.swapByPath(path(EDF, USSD), []*big.Int{big.NewInt(10000), big.NewInt(25000)}); err != nil {
		t.Fatalf("swap by path: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, big.NewInt(25000), big.NewInt(20000))

	amounts := []*big.Int{big.NewInt(100000), big.NewInt(20000), big.NewInt(1)}
	if err := h.engine.swapByPath(path(EDF, USSD, WBTC), amounts); err != nil {
		t.Fatalf("swap by path: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, big.NewInt(5000), big.NewInt(120000))
	h.expectLiquidity(t, USSD, WBTC, big.NewInt(120000), big.NewInt(9))
}

func seedSwapPools(t *testing.T, h *harness) {
	t.Helper()
	h.enable(t, USSD, EDF)
	h.enable(t, USSD, WBTC)
	h.fund(t, alice, USSD, amount("1_000_000_000_000_000"))
	h.fund(t, alice, EDF, amount("1_000_000_000_000_000"))
	h.fund(t, alice, WBTC, amount("1_000_000_000_000_000"))
	h.fund(t, bob, USSD, amount("1_000_000_000_000_000"))
	h.fund(t, bob, EDF, amount("1_000_000_000_000_000"))
	h.fund(t, bob, WBTC, amount("1_000_000_000_000_000"))

	if err := h.engine.AddLiquidity(nativecommon.Signed(alice), USSD, EDF, amount("500_000_000_000_000"), amount("100_000_000_000_000"), nil, false); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if err := h.engine.AddLiquidity(nativecommon.Signed(alice), USSD, WBTC, amount("100_000_000_000_000"), amount("10_000_000_000"), nil, false); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
}

func TestSwapWithExactSupply(t *testing.T) {
	h := newHarness(t)
	seedSwapPools(t, h)
	bobUSSD := h.ledger.FreeBalance(USSD, bob)

	err := h.engine.SwapWithExactSupply(nativecommon.Signed(bob), path(EDF, USSD), amount("100_000_000_000_000"), amount("250_000_000_000_000"))
	if err != ErrInsufficientTargetAmount {
		t.Fatalf("expected insufficient target, got %v", err)
	}
	if err := h.engine.SwapWithExactSupply(nativecommon.Signed(bob), path(EDF, USSD), amount("100_000_000_000_000"), amount("200_000_000_000_000")); err != nil {
		t.Fatalf("swap: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, amount("251_256_281_407_036"), amount("200_000_000_000_000"))
	gained := new(big.Int).Sub(h.ledger.FreeBalance(USSD, bob), bobUSSD)
	if gained.Cmp(amount("248_743_718_592_964")) != 0 {
		t.Fatalf("unexpected swap output %s", gained)
	}

	h.events.Reset()
	if err := h.engine.SwapWithExactSupply(nativecommon.Signed(bob), path(EDF, USSD, WBTC), amount("200_000_000_000_000"), big.NewInt(1)); err != nil {
		t.Fatalf("swap: %v", err)
	}
	swaps := h.events.OfType(events.TypeDexSwap)
	if len(swaps) != 1 {
		t.Fatalf("expected one swap event, got %d", len(swaps))
	}
	changes := swaps[0].(events.Swap).LiquidityChanges
	want := []*big.Int{amount("200_000_000_000_000"), amount("124_996_843_514_053"), amount("5_530_663_837")}
	for i := range want {
		if changes[i].Cmp(want[i]) != 0 {
			t.Fatalf("liquidity change %d: got %s, want %s", i, changes[i], want[i])
		}
	}
	h.expectLiquidity(t, USSD, WBTC, amount("224_996_843_514_053"), amount("4_469_336_163"))
}

func TestSwapWithExactTarget(t *testing.T) {
	h := newHarness(t)
	seedSwapPools(t, h)

	if err := h.engine.SwapWithExactTarget(nativecommon.Signed(bob), path(USSD, EDF), amount("10_000_000_000_000"), amount("50_000_000_000_000")); err != ErrExcessiveSupplyAmount {
		t.Fatalf("expected excessive supply, got %v", err)
	}
	if err := h.engine.SwapWithExactTarget(nativecommon.Signed(carol), path(USSD, EDF), big.NewInt(1_000), big.NewInt(10_000)); err == nil {
		t.Fatalf("expected unfunded caller to fail")
	}
	if err := h.engine.SwapWithExactTarget(nativecommon.UnsignedOrigin(), path(USSD, EDF), big.NewInt(1_000), big.NewInt(10_000)); err != ErrBadOrigin {
		t.Fatalf("expected bad origin, got %v", err)
	}
	if err := h.engine.SwapWithExactTarget(nativecommon.Signed(bob), path(USSD, EDF), big.NewInt(1_000), big.NewInt(10_000)); err != nil {
		t.Fatalf("swap: %v", err)
	}
	reserveUSSD, reserveEDF := h.engine.GetLiquidity(USSD, EDF)
	if reserveEDF.Cmp(amount("99_999_999_999_000")) != 0 {
		t.Fatalf("unexpected EDF reserve %s", reserveEDF)
	}
	if reserveUSSD.Cmp(amount("500_000_000_005_051")) != 0 {
		t.Fatalf("unexpected USSD reserve %s", reserveUSSD)
	}
}

func TestSwapWithSpecificPath(t *testing.T) {
	h := newHarness(t)
	seedSwapPools(t, h)

	if _, _, err := h.engine.SwapWithSpecificPath(bob, path(EDF, USSD), ExactSupply(amount("100_000_000_000_000"), amount("248_743_718_592_965"))); err != ErrInsufficientTargetAmount {
		t.Fatalf("expected insufficient target, got %v", err)
	}
	supply, target, err := h.engine.SwapWithSpecificPath(bob, path(EDF, USSD), ExactSupply(amount("100_000_000_000_000"), amount("200_000_000_000_000")))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if supply.Cmp(amount("100_000_000_000_000")) != 0 || target.Cmp(amount("248_743_718_592_964")) != 0 {
		t.Fatalf("unexpected amounts %s -> %s", supply, target)
	}

	if _, _, err := h.engine.SwapWithSpecificPath(bob, path(USSD, EDF), ExactTarget(amount("253_794_223_643_470"), amount("100_000_000_000_000"))); err != ErrExcessiveSupplyAmount {
		t.Fatalf("expected excessive supply, got %v", err)
	}
	supply, target, err = h.engine.SwapWithSpecificPath(bob, path(USSD, EDF), ExactTarget(amount("300_000_000_000_000"), amount("100_000_000_000_000")))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if supply.Cmp(amount("253_794_223_643_471")) != 0 || target.Cmp(amount("100_000_000_000_000")) != 0 {
		t.Fatalf("unexpected amounts %s -> %s", supply, target)
	}
}

func TestJointSwap(t *testing.T) {
	h := newHarness(t)
	h.enable(t, USSD, EDF)
	h.enable(t, USSD, WBTC)
	for _, c := range path(USSD, EDF, WBTC) {
		h.fund(t, alice, c, amount("100_000_000_000_000"))
		h.fund(t, bob, c, amount("100_000_000_000_000"))
	}
	if err := h.engine.AddLiquidity(nativecommon.Signed(alice), USSD, EDF, amount("5_000_000_000_000"), amount("1_000_000_000_000"), nil, false); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if err := h.engine.AddLiquidity(nativecommon.Signed(alice), USSD, WBTC, amount("5_000_000_000_000"), amount("1_000_000_000_000"), nil, false); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	viaUSSD := NewJointSwap(h.engine, path(USSD))
	viaSEE := NewJointSwap(h.engine, path(SEE))

	supply, target, ok := viaUSSD.GetSwapAmount(WBTC, EDF, ExactSupply(big.NewInt(10000), big.NewInt(0)))
	if !ok || supply.Int64() != 10000 || target.Int64() != 9800 {
		t.Fatalf("unexpected quote %v %v %v", supply, target, ok)
	}
	if _, _, ok := viaSEE.GetSwapAmount(WBTC, EDF, ExactSupply(big.NewInt(10000), big.NewInt(0))); ok {
		t.Fatalf("expected no route through a disabled pair")
	}

	if _, _, err := viaUSSD.Swap(carol, WBTC, EDF, ExactSupply(big.NewInt(10000), big.NewInt(0))); err == nil || err == ErrCannotSwap {
		t.Fatalf("expected balance error, got %v", err)
	}
	if _, _, err := viaUSSD.Swap(bob, WBTC, EDF, ExactSupply(big.NewInt(10000), big.NewInt(9801))); err != ErrCannotSwap {
		t.Fatalf("expected cannot swap, got %v", err)
	}
	if _, _, err := viaSEE.Swap(bob, WBTC, EDF, ExactSupply(big.NewInt(10000), big.NewInt(0))); err != ErrCannotSwap {
		t.Fatalf("expected cannot swap, got %v", err)
	}

	supply, target, err := viaUSSD.Swap(bob, WBTC, EDF, ExactSupply(big.NewInt(10000), big.NewInt(0)))
	if err != nil || supply.Int64() != 10000 || target.Int64() != 9800 {
		t.Fatalf("unexpected swap %v %v %v", supply, target, err)
	}
	supply, target, err = viaUSSD.Swap(bob, EDF, WBTC, ExactTarget(big.NewInt(20000), big.NewInt(10000)))
	if err != nil || supply.Int64() != 10204 || target.Int64() != 10000 {
		t.Fatalf("unexpected swap %v %v %v", supply, target, err)
	}
}
