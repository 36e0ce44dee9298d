package cdp

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/dex"
	"ecdpchain/native/ledger"
)

var keeper = common.HexToAddress("0xc0ffee")

// stubBridge mints the repayment into the destination, standing in for a
// liquidation contract that sold the collateral elsewhere.
type stubBridge struct {
	ledger *ledger.Ledger
	repay  *big.Int
	err    error
	calls  int
}

func (b *stubBridge) CallLiquidationContract(contract, owner common.Address, currency types.CurrencyID, amount, minRepayment *big.Int, repayDest common.Address) (*big.Int, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	repay := minRepayment
	if b.repay != nil {
		repay = b.repay
	}
	if err := b.ledger.Deposit(USSD, repayDest, repay); err != nil {
		return nil, err
	}
	return repay, nil
}

func lastLiquidation(t *testing.T, h *harness) events.LiquidateUnsafeCDP {
	t.Helper()
	all := h.events.OfType(events.TypeCDPLiquidateUnsafe)
	if len(all) == 0 {
		t.Fatalf("no liquidation event")
	}
	return all[len(all)-1].(events.LiquidateUnsafeCDP)
}

func expectLiquidationEvent(t *testing.T, evt events.LiquidateUnsafeCDP, collateral, badDebt, target int64, strategy string) {
	t.Helper()
	expectInt(t, "collateral amount", evt.CollateralAmount, collateral)
	expectInt(t, "bad debt value", evt.BadDebtValue, badDebt)
	expectInt(t, "target amount", evt.TargetAmount, target)
	if evt.Strategy != strategy {
		t.Fatalf("strategy: got %q, want %q", evt.Strategy, strategy)
	}
}

func TestLiquidateUnsafeCDPByAuction(t *testing.T) {
	h := newHarness(t)
	h.setupRisky(t, BTC, ratio(9, 5))
	h.adjust(t, alice, BTC, 100, 500)

	if err := h.engine.LiquidateUnsafeCDP(alice, BTC); err != ErrMustBeUnsafe {
		t.Fatalf("expected must be unsafe, got %v", err)
	}
	h.setLiquidationRatio(t, BTC, ratio(3, 1))
	if err := h.engine.LiquidateUnsafeCDP(alice, BTC); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	expectLiquidationEvent(t, lastLiquidation(t, h), 100, 50, 60, StrategyAuction)
	expectInt(t, "debit pool", h.treasury.DebitPool(), 50)
	h.expectBalance(t, BTC, alice, 900)
	h.expectBalance(t, USSD, alice, 50)
	h.expectPosition(t, BTC, alice, 0, 0)
	auctions, err := h.treasury.CollateralAuctions(BTC)
	if err != nil || len(auctions) != 1 {
		t.Fatalf("expected one auction, got %d %v", len(auctions), err)
	}
	expectInt(t, "auction target", auctions[0].Target, 60)

	h.adjust(t, bob, BTC, 100, 100)
	if err := h.registry.SetShutdown(true); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := h.engine.Liquidate(nativecommon.UnsignedOrigin(), BTC, bob); err != ErrAlreadyShutdown {
		t.Fatalf("expected already shutdown, got %v", err)
	}
}

func TestLiquidateRequiresUnsignedOrigin(t *testing.T) {
	h := newHarness(t)
	h.setupRisky(t, BTC, ratio(9, 5))
	if err := h.engine.Liquidate(nativecommon.Signed(alice), BTC, alice); err != ErrBadOrigin {
		t.Fatalf("expected bad origin, got %v", err)
	}
	if err := h.engine.Settle(nativecommon.RootOrigin(), BTC, alice); err != ErrBadOrigin {
		t.Fatalf("expected bad origin, got %v", err)
	}
}

func TestLiquidationSkipsSwapBeyondSlippage(t *testing.T) {
	h := newHarness(t)
	h.addLiquidity(t, carol, BTC, USSD, 100, 121)
	h.setupRisky(t, BTC, ratio(9, 5))
	h.adjust(t, alice, BTC, 100, 500)
	h.setLiquidationRatio(t, BTC, maxRatio())
	h.feed(t, BTC, 2, 1)

	if err := h.engine.LiquidateUnsafeCDP(alice, BTC); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	h.expectLiquidity(t, BTC, USSD, 100, 121)
	if evt := lastLiquidation(t, h); evt.Strategy != StrategyAuction {
		t.Fatalf("expected auction, got %s", evt.Strategy)
	}
}

func TestLiquidationSwapsCollateral(t *testing.T) {
	h := newHarness(t)
	h.addLiquidity(t, carol, BTC, USSD, 100, 121)
	h.setupRisky(t, BTC, ratio(9, 5))
	h.adjust(t, alice, BTC, 100, 500)
	h.setLiquidationRatio(t, BTC, maxRatio())

	if err := h.engine.LiquidateUnsafeCDP(alice, BTC); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	expectLiquidationEvent(t, lastLiquidation(t, h), 100, 50, 60, StrategyDEX)
	h.expectLiquidity(t, BTC, USSD, 199, 61)
	h.expectBalance(t, BTC, alice, 901)
	h.expectBalance(t, USSD, alice, 50)
	expectInt(t, "debit pool", h.treasury.DebitPool(), 50)
	expectInt(t, "surplus pool", h.treasury.SurplusPool(), 60)
}

// openSharePosition gives alice 1000 shares of the USSD/EDF pool seeded by
// carol and borrows debit units against them.
func openSharePosition(t *testing.T, h *harness, ussd, edf, debit int64) {
	t.Helper()
	h.addLiquidity(t, carol, USSD, EDF, ussd, edf)
	if err := h.ledger.Transfer(lpUSSDEDF, carol, alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("transfer shares: %v", err)
	}
	h.feed(t, EDF, 20, 1)
	h.setupRisky(t, lpUSSDEDF, ratio(2, 1))
	h.adjust(t, alice, lpUSSDEDF, 1_000, debit)
	h.setLiquidationRatio(t, lpUSSDEDF, maxRatio())
}

func TestLiquidateSharePositionSellsOtherSide(t *testing.T) {
	h := newHarness(t)
	openSharePosition(t, h, 10_000, 500, 5_000)

	if err := h.engine.LiquidateUnsafeCDP(alice, lpUSSDEDF); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	expectLiquidationEvent(t, lastLiquidation(t, h), 1_000, 500, 600, StrategyDEX)
	h.expectLiquidity(t, USSD, EDF, 9_400, 481)
	expectInt(t, "share issuance", h.ledger.TotalIssuance(lpUSSDEDF), 19_000)
	h.expectBalance(t, EDF, alice, 1_019)
	h.expectBalance(t, USSD, alice, 500)
	expectInt(t, "surplus pool", h.treasury.SurplusPool(), 600)
	expectInt(t, "debit pool", h.treasury.DebitPool(), 500)
}

func TestLiquidateSharePositionCoveredByStableSide(t *testing.T) {
	h := newHarness(t)
	openSharePosition(t, h, 10_000, 500, 2_000)

	if err := h.engine.LiquidateUnsafeCDP(alice, lpUSSDEDF); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	expectLiquidationEvent(t, lastLiquidation(t, h), 1_000, 200, 240, StrategyRefund)
	h.expectLiquidity(t, USSD, EDF, 9_500, 475)
	h.expectBalance(t, EDF, alice, 1_025)
	h.expectBalance(t, USSD, alice, 460)
	expectInt(t, "surplus pool", h.treasury.SurplusPool(), 240)
	expectInt(t, "debit pool", h.treasury.DebitPool(), 200)
}

func TestLiquidateSharePositionFallsBackToAuction(t *testing.T) {
	h := newHarness(t)
	openSharePosition(t, h, 500, 25, 5_000)

	if err := h.engine.LiquidateUnsafeCDP(alice, lpUSSDEDF); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, 0, 0)
	expectInt(t, "surplus pool", h.treasury.SurplusPool(), 500)
	expectInt(t, "treasury EDF", h.treasury.TotalCollaterals(EDF), 25)
	auctions, err := h.treasury.CollateralAuctions(EDF)
	if err != nil || len(auctions) != 1 {
		t.Fatalf("expected one auction, got %d %v", len(auctions), err)
	}
	if auctions[0].RefundRecipient != alice {
		t.Fatalf("unexpected refund recipient %s", auctions[0].RefundRecipient.Hex())
	}
	expectInt(t, "auction amount", auctions[0].Amount, 25)
	expectInt(t, "auction target", auctions[0].Target, 100)
	expectInt(t, "debit pool", h.treasury.DebitPool(), 500)
	h.expectBalance(t, EDF, alice, 1_000)
	h.expectBalance(t, USSD, alice, 500)
}

func TestSettleCDPHasDebit(t *testing.T) {
	h := newHarness(t)
	h.setupRisky(t, BTC, ratio(9, 5))
	h.adjust(t, alice, BTC, 100, 0)

	if err := h.engine.SettleCDPHasDebit(alice, BTC); err != ErrNoDebitValue {
		t.Fatalf("expected no debit value, got %v", err)
	}
	h.adjust(t, alice, BTC, 0, 500)
	if err := h.engine.Settle(nativecommon.UnsignedOrigin(), BTC, alice); err != ErrMustAfterShutdown {
		t.Fatalf("expected must after shutdown, got %v", err)
	}
	if err := h.engine.SettleCDPHasDebit(alice, BTC); err != nil {
		t.Fatalf("settle: %v", err)
	}
	h.expectPosition(t, BTC, alice, 50, 0)
	expectInt(t, "debit pool", h.treasury.DebitPool(), 50)
	expectInt(t, "treasury BTC", h.treasury.TotalCollaterals(BTC), 50)
	if got := len(h.events.OfType(events.TypeCDPSettleInDebit)); got != 1 {
		t.Fatalf("expected one settle event, got %d", got)
	}
}

func TestCloseCDPHasDebitByDex(t *testing.T) {
	h := newHarness(t)
	h.addLiquidity(t, carol, BTC, USSD, 100, 1_000)
	h.setupRisky(t, BTC, ratio(9, 5))
	h.adjust(t, alice, BTC, 100, 0)

	if err := h.engine.CloseCDPHasDebitByDex(alice, BTC, big.NewInt(100)); err != ErrNoDebitValue {
		t.Fatalf("expected no debit value, got %v", err)
	}
	h.adjust(t, alice, BTC, 0, 500)

	h.setLiquidationRatio(t, BTC, ratio(5, 2))
	if err := h.engine.CloseCDPHasDebitByDex(alice, BTC, big.NewInt(100)); err != ErrMustBeSafe {
		t.Fatalf("expected must be safe, got %v", err)
	}
	h.setLiquidationRatio(t, BTC, ratio(3, 2))

	if err := h.engine.CloseCDPHasDebitByDex(alice, BTC, big.NewInt(5)); err != dex.ErrCannotSwap {
		t.Fatalf("expected cannot swap, got %v", err)
	}
	h.expectPosition(t, BTC, alice, 100, 500)

	if err := h.engine.CloseCDPHasDebitByDex(alice, BTC, big.NewInt(6)); err != nil {
		t.Fatalf("close: %v", err)
	}
	closes := h.events.OfType(events.TypeCDPCloseInDebitByDEX)
	if len(closes) != 1 {
		t.Fatalf("expected one close event, got %d", len(closes))
	}
	evt := closes[0].(events.CloseCDPInDebitByDEX)
	expectInt(t, "sold", evt.SoldCollateral, 6)
	expectInt(t, "refund", evt.RefundCollateral, 94)
	expectInt(t, "debit value", evt.DebitValue, 50)
	h.expectLiquidity(t, BTC, USSD, 106, 950)
	h.expectBalance(t, BTC, alice, 994)
	h.expectBalance(t, USSD, alice, 50)
	h.expectPosition(t, BTC, alice, 0, 0)
	expectInt(t, "surplus pool", h.treasury.SurplusPool(), 50)
	expectInt(t, "debit pool", h.treasury.DebitPool(), 50)
}

func TestCloseCDPHasDebitByDexThroughJoint(t *testing.T) {
	h := newHarness(t)
	h.addLiquidity(t, carol, BTC, SEE, 100, 1_000)
	h.addLiquidity(t, carol, SEE, USSD, 1_000, 1_000)
	h.setupRisky(t, BTC, ratio(9, 5))
	h.adjust(t, alice, BTC, 100, 500)

	if err := h.engine.CloseCDPHasDebitByDex(alice, BTC, big.NewInt(100)); err != nil {
		t.Fatalf("close: %v", err)
	}
	h.expectLiquidity(t, BTC, SEE, 106, 947)
	h.expectLiquidity(t, SEE, USSD, 1_053, 950)
	h.expectBalance(t, BTC, alice, 994)
}

func TestLiquidationContractRegistry(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.RegisterLiquidationContract(nativecommon.Signed(bob), keeper); err != ErrBadOrigin {
		t.Fatalf("expected bad origin, got %v", err)
	}
	if err := h.engine.RegisterLiquidationContract(nativecommon.Signed(alice), keeper); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := h.engine.RegisterLiquidationContract(nativecommon.Signed(alice), keeper); err != nil {
		t.Fatalf("repeat registration must be a no-op: %v", err)
	}
	contracts, err := h.engine.LiquidationContracts()
	if err != nil || len(contracts) != 1 || contracts[0] != keeper {
		t.Fatalf("unexpected contracts %v %v", contracts, err)
	}
	if got := len(h.events.OfType(events.TypeCDPLiquidationContractRegistered)); got != 1 {
		t.Fatalf("expected one registration event, got %d", got)
	}

	if err := h.engine.DeregisterLiquidationContract(nativecommon.Signed(bob), keeper); err != ErrBadOrigin {
		t.Fatalf("expected bad origin, got %v", err)
	}
	if err := h.engine.DeregisterLiquidationContract(nativecommon.Signed(alice), keeper); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	contracts, _ = h.engine.LiquidationContracts()
	if len(contracts) != 0 {
		t.Fatalf("expected no contracts, got %v", contracts)
	}
	if got := len(h.events.OfType(events.TypeCDPLiquidationContractDeregistered)); got != 1 {
		t.Fatalf("expected one deregistration event, got %d", got)
	}

	for i := 0; i < h.engine.Params().MaxLiquidationContracts; i++ {
		addr := common.BigToAddress(big.NewInt(int64(0x1000 + i)))
		if err := h.engine.RegisterLiquidationContract(nativecommon.RootOrigin(), addr); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if err := h.engine.RegisterLiquidationContract(nativecommon.RootOrigin(), keeper); err != ErrTooManyLiquidationContracts {
		t.Fatalf("expected too many contracts, got %v", err)
	}
}

func TestLiquidateViaContracts(t *testing.T) {
	h := newHarness(t)
	if err := h.treasury.DepositCollateral(alice, EDF, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	bridge := &stubBridge{ledger: h.ledger}

	if err := h.engine.LiquidateViaContracts(alice, EDF, big.NewInt(100), big.NewInt(1_000)); err != ErrLiquidationFailed {
		t.Fatalf("expected failure without a bridge, got %v", err)
	}
	h.engine.SetLiquidationBridge(bridge)
	if err := h.engine.LiquidateViaContracts(alice, EDF, big.NewInt(100), big.NewInt(1_000)); err != ErrLiquidationFailed {
		t.Fatalf("expected failure without contracts, got %v", err)
	}
	if err := h.engine.RegisterLiquidationContract(nativecommon.Signed(alice), keeper); err != nil {
		t.Fatalf("register: %v", err)
	}

	bridge.err = errors.New("reverted")
	if err := h.engine.LiquidateViaContracts(alice, EDF, big.NewInt(100), big.NewInt(1_000)); err != ErrLiquidationFailed {
		t.Fatalf("expected failure on revert, got %v", err)
	}
	bridge.err = nil
	bridge.repay = big.NewInt(1)
	if err := h.engine.LiquidateViaContracts(alice, EDF, big.NewInt(100), big.NewInt(1_000)); err != ErrLiquidationFailed {
		t.Fatalf("expected failure on short repayment, got %v", err)
	}
	h.expectBalance(t, EDF, keeper, 0)
	expectInt(t, "surplus pool", h.treasury.SurplusPool(), 0)

	bridge.repay = nil
	if err := h.engine.LiquidateViaContracts(alice, EDF, big.NewInt(100), big.NewInt(1_000)); err != nil {
		t.Fatalf("liquidate via contracts: %v", err)
	}
	h.expectBalance(t, EDF, keeper, 100)
	expectInt(t, "surplus pool", h.treasury.SurplusPool(), 1_000)
	expectInt(t, "treasury EDF", h.treasury.TotalCollaterals(EDF), 900)
	if bridge.calls != 3 {
		t.Fatalf("expected 3 bridge calls, got %d", bridge.calls)
	}
}

func TestLiquidationPrefersContracts(t *testing.T) {
	h := newHarness(t)
	h.engine.SetLiquidationBridge(&stubBridge{ledger: h.ledger})
	if err := h.engine.RegisterLiquidationContract(nativecommon.Signed(alice), keeper); err != nil {
		t.Fatalf("register: %v", err)
	}
	h.setupRisky(t, BTC, ratio(9, 5))
	h.adjust(t, alice, BTC, 100, 500)
	h.setLiquidationRatio(t, BTC, ratio(3, 1))

	if err := h.engine.Liquidate(nativecommon.UnsignedOrigin(), BTC, alice); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	expectLiquidationEvent(t, lastLiquidation(t, h), 100, 50, 60, StrategyContract)
	h.expectBalance(t, BTC, keeper, 100)
	expectInt(t, "surplus pool", h.treasury.SurplusPool(), 60)
}

type attemptNoted struct{}

func (attemptNoted) EventType() string { return "test.attempt" }

// failingStrategy writes state and emits an event before giving up.
type failingStrategy struct{ h *harness }

func (failingStrategy) Name() string { return "failing" }

func (s failingStrategy) Attempt(LiquidationRequest) (Outcome, error) {
	if err := s.h.ledger.Deposit(USSD, carol, big.NewInt(5)); err != nil {
		return Outcome{}, err
	}
	s.h.engine.emit(attemptNoted{})
	return Outcome{}, errors.New("attempt failed")
}

func TestFailedStrategyLeavesNoEvents(t *testing.T) {
	h := newHarness(t)
	h.setupRisky(t, BTC, ratio(9, 5))
	h.adjust(t, alice, BTC, 100, 500)
	h.setLiquidationRatio(t, BTC, ratio(3, 1))
	h.engine.SetLiquidationStrategies(failingStrategy{h: h}, auctionStrategy{e: h.engine})

	if err := h.engine.LiquidateUnsafeCDP(alice, BTC); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if got := len(h.events.OfType("test.attempt")); got != 0 {
		t.Fatalf("events of the failed attempt survived: %d", got)
	}
	h.expectBalance(t, USSD, carol, 20_000)
	expectLiquidationEvent(t, lastLiquidation(t, h), 100, 50, 60, StrategyAuction)
}
