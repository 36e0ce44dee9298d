package dex

import (
	"math/big"
	"testing"

	"ecdpchain/core/events"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/fixedpoint"
)

func TestProvisioningToEnabledAndClaim(t *testing.T) {
	h := newHarness(t)
	for _, c := range path(USSD, EDF) {
		h.fund(t, alice, c, amount("10_000_000_000_000_000"))
		h.fund(t, bob, c, amount("10_000_000_000_000_000"))
	}
	terms := ProvisioningTerms{
		MinContributionA: amount("5_000_000_000_000"),
		MinContributionB: amount("1_000_000_000_000"),
		TargetA:          amount("5_000_000_000_000_000"),
		TargetB:          amount("1_000_000_000_000_000"),
		NotBefore:        10,
	}

	if err := h.engine.ListProvisioning(nativecommon.Signed(alice), USSD, EDF, terms); err != ErrBadOrigin {
		t.Fatalf("expected bad origin, got %v", err)
	}
	if err := h.engine.ListProvisioning(nativecommon.RootOrigin(), USSD, USSD, terms); err != ErrInvalidCurrencyID {
		t.Fatalf("expected invalid currency, got %v", err)
	}
	if err := h.engine.ListProvisioning(nativecommon.RootOrigin(), USSD, SEE, terms); err != ErrAssetUnregistered {
		t.Fatalf("expected unregistered asset, got %v", err)
	}
	if err := h.engine.ListProvisioning(nativecommon.RootOrigin(), USSD, EDF, terms); err != nil {
		t.Fatalf("list provisioning: %v", err)
	}
	if err := h.engine.ListProvisioning(nativecommon.RootOrigin(), EDF, USSD, terms); err != ErrMustBeDisabled {
		t.Fatalf("expected must be disabled, got %v", err)
	}
	status, params, err := h.engine.Status(USSD, EDF)
	if err != nil || status != StatusProvisioning {
		t.Fatalf("unexpected status %s: %v", status, err)
	}
	if params.MinContribution[0].Cmp(terms.MinContributionA) != 0 || params.Target[1].Cmp(terms.TargetB) != 0 {
		t.Fatalf("unexpected oriented parameters %+v", params)
	}

	if err := h.engine.AddProvision(nativecommon.Signed(alice), USSD, EDF, big.NewInt(0), big.NewInt(0)); err != ErrInvalidContributionIncrement {
		t.Fatalf("expected invalid contribution, got %v", err)
	}
	if err := h.engine.AddProvision(nativecommon.Signed(alice), USSD, EDF, big.NewInt(1), big.NewInt(0)); err != ErrInvalidContributionIncrement {
		t.Fatalf("expected invalid contribution below minimum, got %v", err)
	}
	if err := h.engine.AddProvision(nativecommon.Signed(alice), USSD, EDF, amount("1_000_000_000_000_000"), amount("200_000_000_000_000")); err != nil {
		t.Fatalf("add provision: %v", err)
	}
	if got := h.ledger.Consumers(alice); got != 1 {
		t.Fatalf("expected alice to be a consumer, got %d", got)
	}

	updated := ProvisioningTerms{
		MinContributionA: amount("1_000_000_000_000"),
		MinContributionB: amount("5_000_000_000_000"),
		TargetA:          amount("1_000_000_000_000_000"),
		TargetB:          amount("5_000_000_000_000_000"),
		NotBefore:        10,
	}
	if err := h.engine.UpdateProvisioningParameters(nativecommon.RootOrigin(), EDF, USSD, updated); err != nil {
		t.Fatalf("update provisioning: %v", err)
	}
	_, params, _ = h.engine.Status(EDF, USSD)
	if params.Accumulated[0].Cmp(amount("200_000_000_000_000")) != 0 || params.Accumulated[1].Cmp(amount("1_000_000_000_000_000")) != 0 {
		t.Fatalf("accumulated contributions lost: %+v", params.Accumulated)
	}
	if err := h.engine.UpdateProvisioningParameters(nativecommon.RootOrigin(), USSD, WBTC, updated); err != ErrMustBeProvisioning {
		t.Fatalf("expected must be provisioning, got %v", err)
	}

	if err := h.engine.AddProvision(nativecommon.Signed(bob), EDF, USSD, amount("800_000_000_000_000"), amount("4_000_000_000_000_000")); err != nil {
		t.Fatalf("add provision: %v", err)
	}
	if err := h.engine.ClaimDexShare(nativecommon.Signed(alice), alice, USSD, EDF); err != ErrStillProvisioning {
		t.Fatalf("expected still provisioning, got %v", err)
	}
	if err := h.engine.EnableTradingPair(nativecommon.RootOrigin(), USSD, EDF); err != ErrStillProvisioning {
		t.Fatalf("expected still provisioning, got %v", err)
	}

	h.engine.SetBlockHeight(9)
	if err := h.engine.EndProvisioning(nativecommon.Signed(bob), USSD, EDF); err != ErrUnqualifiedProvision {
		t.Fatalf("expected unqualified provision, got %v", err)
	}
	h.engine.SetBlockHeight(10)
	if err := h.engine.EndProvisioning(nativecommon.Signed(bob), USSD, EDF); err != nil {
		t.Fatalf("end provisioning: %v", err)
	}
	h.expectLiquidity(t, USSD, EDF, amount("5_000_000_000_000_000"), amount("1_000_000_000_000_000"))
	lp := mustPair(t, USSD, EDF).DexShareCurrency()
	if got := h.ledger.FreeBalance(lp, h.engine.Account()); got.Cmp(amount("2_000_000_000_000_000")) != 0 {
		t.Fatalf("unexpected minted shares %s", got)
	}
	rateEDF, rateUSSD, ok, err := h.engine.InitialShareExchangeRates(EDF, USSD)
	if err != nil || !ok {
		t.Fatalf("missing share rates: %v", err)
	}
	if !rateEDF.IsOne() || rateUSSD.Cmp(fixedpoint.FromRational(1, 5)) != 0 {
		t.Fatalf("unexpected share rates %s %s", rateEDF, rateUSSD)
	}
	if got := len(h.events.OfType(events.TypeDexProvisioningToEnabled)); got != 1 {
		t.Fatalf("expected one enabled event, got %d", got)
	}

	if err := h.engine.DisableTradingPair(nativecommon.RootOrigin(), USSD, EDF); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := h.engine.RefundProvision(nativecommon.Signed(alice), alice, USSD, EDF); err != ErrNotAllowedRefund {
		t.Fatalf("expected refund to be refused, got %v", err)
	}

	if err := h.engine.ClaimDexShare(nativecommon.Signed(carol), alice, USSD, EDF); err != nil {
		t.Fatalf("claim alice: %v", err)
	}
	if got := h.ledger.FreeBalance(lp, alice); got.Cmp(amount("400_000_000_000_000")) != 0 {
		t.Fatalf("unexpected alice shares %s", got)
	}
	if _, _, ok, _ := h.engine.InitialShareExchangeRates(USSD, EDF); !ok {
		t.Fatalf("share rates must survive until every share is claimed")
	}
	if err := h.engine.ClaimDexShare(nativecommon.Signed(bob), bob, USSD, EDF); err != nil {
		t.Fatalf("claim bob: %v", err)
	}
	if got := h.ledger.FreeBalance(lp, bob); got.Cmp(amount("1_600_000_000_000_000")) != 0 {
		t.Fatalf("unexpected bob shares %s", got)
	}
	if _, _, ok, _ := h.engine.InitialShareExchangeRates(USSD, EDF); ok {
		t.Fatalf("share rates must be dropped after the last claim")
	}
	if h.ledger.Consumers(alice) != 0 || h.ledger.Consumers(bob) != 0 {
		t.Fatalf("consumer references not released")
	}
	if err := h.engine.ClaimDexShare(nativecommon.Signed(alice), alice, USSD, EDF); err != nil {
		t.Fatalf("repeat claim must be a no-op: %v", err)
	}
}

func TestAbortAndRefundProvision(t *testing.T) {
	h := newHarness(t)
	h.fund(t, alice, USSD, big.NewInt(1_000))
	h.fund(t, alice, WBTC, big.NewInt(1_000))
	terms := ProvisioningTerms{
		MinContributionA: big.NewInt(1),
		MinContributionB: big.NewInt(1),
		TargetA:          amount("1_000_000_000_000_000"),
		TargetB:          amount("1_000_000_000_000_000"),
		NotBefore:        10,
	}
	if err := h.engine.ListProvisioning(nativecommon.RootOrigin(), USSD, WBTC, terms); err != nil {
		t.Fatalf("list provisioning: %v", err)
	}
	if err := h.engine.AddProvision(nativecommon.Signed(alice), USSD, WBTC, big.NewInt(100), big.NewInt(10)); err != nil {
		t.Fatalf("add provision: %v", err)
	}
	if err := h.engine.RefundProvision(nativecommon.Signed(alice), alice, USSD, WBTC); err != ErrMustBeDisabled {
		t.Fatalf("expected must be disabled, got %v", err)
	}

	h.engine.SetBlockHeight(2010)
	if err := h.engine.AbortProvisioning(nativecommon.Signed(bob), USSD, WBTC); err != nil {
		t.Fatalf("abort before expiry: %v", err)
	}
	if status, _, _ := h.engine.Status(USSD, WBTC); status != StatusProvisioning {
		t.Fatalf("round aborted before expiry: %s", status)
	}
	h.engine.SetBlockHeight(2011)
	if err := h.engine.AbortProvisioning(nativecommon.Signed(bob), USSD, WBTC); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if status, _, _ := h.engine.Status(USSD, WBTC); status != StatusDisabled {
		t.Fatalf("expected disabled after abort, got %s", status)
	}
	if got := len(h.events.OfType(events.TypeDexProvisioningAborted)); got != 1 {
		t.Fatalf("expected one aborted event, got %d", got)
	}
	if err := h.engine.AbortProvisioning(nativecommon.Signed(bob), USSD, WBTC); err != ErrMustBeProvisioning {
		t.Fatalf("expected must be provisioning, got %v", err)
	}

	if err := h.engine.RefundProvision(nativecommon.Signed(bob), alice, USSD, WBTC); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if h.ledger.FreeBalance(USSD, alice).Int64() != 1_000 || h.ledger.FreeBalance(WBTC, alice).Int64() != 1_000 {
		t.Fatalf("contributions not refunded")
	}
	if h.ledger.Consumers(alice) != 0 {
		t.Fatalf("consumer reference not released")
	}
	c0, c1, err := h.engine.ProvisioningPool(USSD, WBTC, alice)
	if err != nil || c0.Sign() != 0 || c1.Sign() != 0 {
		t.Fatalf("provision record not cleared: %v %v %v", c0, c1, err)
	}
}

func TestOnInitializeAbortsExpiredRounds(t *testing.T) {
	h := newHarness(t)
	terms := ProvisioningTerms{
		MinContributionA: big.NewInt(1),
		MinContributionB: big.NewInt(1),
		TargetA:          big.NewInt(1_000),
		TargetB:          big.NewInt(1_000),
	}
	if err := h.engine.ListProvisioning(nativecommon.RootOrigin(), EDF, WBTC, terms); err != nil {
		t.Fatalf("list: %v", err)
	}
	terms.NotBefore = 5_000
	if err := h.engine.ListProvisioning(nativecommon.RootOrigin(), USSD, WBTC, terms); err != nil {
		t.Fatalf("list: %v", err)
	}
	aborted, err := h.engine.OnInitialize(2_001)
	if err != nil {
		t.Fatalf("on initialize: %v", err)
	}
	if aborted != 1 {
		t.Fatalf("expected one aborted round, got %d", aborted)
	}
	if status, _, _ := h.engine.Status(EDF, WBTC); status != StatusDisabled {
		t.Fatalf("expected EDF/WBTC disabled, got %s", status)
	}
	if status, _, _ := h.engine.Status(USSD, WBTC); status != StatusProvisioning {
		t.Fatalf("expected USSD/WBTC provisioning, got %s", status)
	}
}
