package treasury

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/state"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/dex"
	"ecdpchain/native/fixedpoint"
	"ecdpchain/native/ledger"
	"ecdpchain/storage"
)

const (
	BTC  types.CurrencyID = "BTC"
	EDF  types.CurrencyID = "EDF"
	USSD types.CurrencyID = "USSD"
)

var (
	alice   = common.HexToAddress("0xa11ce")
	bob     = common.HexToAddress("0xb0b")
	charlie = common.HexToAddress("0xc4a1")
)

type harness struct {
	treasury *Treasury
	dex      *dex.Engine
	ledger   *ledger.Ledger
	events   *events.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := state.NewStore(storage.NewMemDB())
	l := ledger.New(store)
	for _, c := range []types.CurrencyID{BTC, EDF, USSD} {
		if err := l.RegisterAsset(ledger.Asset{Symbol: string(c), Name: string(c), Decimals: 12}); err != nil {
			t.Fatalf("register %s: %v", c, err)
		}
	}
	fund := map[common.Address][]types.CurrencyID{
		alice:   {EDF, USSD, BTC},
		bob:     {EDF, USSD, BTC},
		charlie: {EDF, BTC},
	}
	for who, currencies := range fund {
		for _, c := range currencies {
			if err := l.Deposit(c, who, big.NewInt(1_000)); err != nil {
				t.Fatalf("fund: %v", err)
			}
		}
	}
	registry := nativecommon.NewRegistry(store)
	recorder := &events.Recorder{}

	engine := dex.NewEngine(dex.Params{
		Fee:                dex.Fee{Numerator: 0, Denominator: 100},
		TradingPathLimit:   4,
		ProvisioningExpiry: 100,
		ModuleAccount:      "dex",
	})
	engine.SetState(dex.NewStateStore(store))
	engine.SetLedger(l)
	engine.SetAssets(l)
	engine.SetAdmins(registry)
	for _, pair := range [][2]types.CurrencyID{{EDF, USSD}, {BTC, EDF}, {BTC, USSD}} {
		if err := engine.EnableTradingPair(nativecommon.RootOrigin(), pair[0], pair[1]); err != nil {
			t.Fatalf("enable: %v", err)
		}
	}

	tr := New(Params{MaxAuctionsCount: 5})
	tr.SetState(NewStateStore(store))
	tr.SetLedger(l)
	tr.SetSwapper(dex.NewJointSwap(engine, []types.CurrencyID{EDF}))
	tr.SetLiquidity(engine)
	tr.SetAdmins(registry)
	tr.SetPauses(registry)
	tr.SetEmitter(recorder)
	return &harness{treasury: tr, dex: engine, ledger: l, events: recorder}
}

func (h *harness) addLiquidity(t *testing.T, who common.Address, a, b types.CurrencyID, amountA, amountB int64) {
	t.Helper()
	if _, _, _, err := h.dex.DoAddLiquidity(who, a, b, big.NewInt(amountA), big.NewInt(amountB), nil, false); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
}

func expectInt(t *testing.T, what string, got *big.Int, want int64) {
	t.Helper()
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: got %v, want %d", what, got, want)
	}
}

func TestSurplusAndDebitPools(t *testing.T) {
	h := newHarness(t)
	if err := h.treasury.OnSystemSurplus(big.NewInt(1_000)); err != nil {
		t.Fatalf("surplus: %v", err)
	}
	expectInt(t, "surplus", h.treasury.SurplusPool(), 1_000)
	if err := h.treasury.OnSystemDebit(big.NewInt(1_000)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	expectInt(t, "debit", h.treasury.DebitPool(), 1_000)
	if err := h.treasury.OnSystemDebit(fixedpoint.MaxBalance()); err != ErrDebitPoolOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
	expectInt(t, "debit", h.treasury.DebitPool(), 1_000)
}

func TestIssueAndBurnDebit(t *testing.T) {
	h := newHarness(t)
	if err := h.treasury.IssueDebit(charlie, big.NewInt(1_000), true); err != nil {
		t.Fatalf("issue: %v", err)
	}
	expectInt(t, "charlie USSD", h.ledger.FreeBalance(USSD, charlie), 1_000)
	expectInt(t, "debit", h.treasury.DebitPool(), 0)

	if err := h.treasury.IssueDebit(charlie, big.NewInt(1_000), false); err != nil {
		t.Fatalf("issue: %v", err)
	}
	expectInt(t, "charlie USSD", h.ledger.FreeBalance(USSD, charlie), 2_000)
	expectInt(t, "debit", h.treasury.DebitPool(), 1_000)

	if err := h.treasury.BurnDebit(charlie, big.NewInt(300)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	expectInt(t, "charlie USSD", h.ledger.FreeBalance(USSD, charlie), 1_700)
	if err := h.treasury.BurnDebit(charlie, big.NewInt(2_000)); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestSurplusTransfers(t *testing.T) {
	h := newHarness(t)
	if err := h.treasury.DepositSurplus(alice, big.NewInt(500)); err != nil {
		t.Fatalf("deposit surplus: %v", err)
	}
	expectInt(t, "surplus", h.treasury.SurplusPool(), 500)
	expectInt(t, "alice USSD", h.ledger.FreeBalance(USSD, alice), 500)
	if err := h.treasury.WithdrawSurplus(bob, big.NewInt(501)); err != ErrSurplusNotEnough {
		t.Fatalf("expected surplus not enough, got %v", err)
	}
	if err := h.treasury.WithdrawSurplus(bob, big.NewInt(200)); err != nil {
		t.Fatalf("withdraw surplus: %v", err)
	}
	expectInt(t, "bob USSD", h.ledger.FreeBalance(USSD, bob), 1_200)

	if err := h.treasury.ExtractSurplusToTreasury(nativecommon.Signed(alice), big.NewInt(100)); err != ErrBadOrigin {
		t.Fatalf("expected bad origin, got %v", err)
	}
	if err := h.treasury.ExtractSurplusToTreasury(nativecommon.RootOrigin(), big.NewInt(100)); err != nil {
		t.Fatalf("extract: %v", err)
	}
	expectInt(t, "surplus", h.treasury.SurplusPool(), 200)
	expectInt(t, "recipient USSD", h.ledger.FreeBalance(USSD, h.treasury.SurplusRecipient()), 100)
}

func TestCollateralCustody(t *testing.T) {
	h := newHarness(t)
	if err := h.treasury.DepositCollateral(alice, BTC, big.NewInt(1_001)); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := h.treasury.DepositCollateral(alice, BTC, big.NewInt(500)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	expectInt(t, "total", h.treasury.TotalCollaterals(BTC), 500)
	expectInt(t, "alice BTC", h.ledger.FreeBalance(BTC, alice), 500)

	if err := h.treasury.WithdrawCollateral(bob, BTC, big.NewInt(501)); err != ErrCollateralNotEnough {
		t.Fatalf("expected collateral not enough, got %v", err)
	}
	if err := h.treasury.WithdrawCollateral(bob, BTC, big.NewInt(400)); err != nil {
		t.Fatalf("withdraw collateral: %v", err)
	}
	expectInt(t, "total", h.treasury.TotalCollaterals(BTC), 100)
	expectInt(t, "bob BTC", h.ledger.FreeBalance(BTC, bob), 1_400)
}

func TestGetDebitProportion(t *testing.T) {
	h := newHarness(t)
	if got := h.treasury.GetDebitProportion(big.NewInt(100)); got.Cmp(fixedpoint.FromRational(1, 20)) != 0 {
		t.Fatalf("unexpected proportion %s", got)
	}
}

func TestOffsetSurplusAndDebit(t *testing.T) {
	h := newHarness(t)
	if err := h.treasury.OnSystemSurplus(big.NewInt(1_000)); err != nil {
		t.Fatalf("surplus: %v", err)
	}
	if err := h.treasury.OnSystemDebit(big.NewInt(300)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	h.treasury.OnFinalize(1)
	expectInt(t, "surplus", h.treasury.SurplusPool(), 700)
	expectInt(t, "debit", h.treasury.DebitPool(), 0)

	if err := h.treasury.OnSystemDebit(big.NewInt(800)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	h.treasury.OnFinalize(2)
	expectInt(t, "surplus", h.treasury.SurplusPool(), 0)
	expectInt(t, "debit", h.treasury.DebitPool(), 100)
}

func TestOffsetKeepsDebitBuffer(t *testing.T) {
	h := newHarness(t)
	if err := h.treasury.OnSystemSurplus(big.NewInt(1_000)); err != nil {
		t.Fatalf("surplus: %v", err)
	}
	if err := h.treasury.OnSystemDebit(big.NewInt(2_000)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	h.treasury.OnFinalize(1)
	expectInt(t, "surplus", h.treasury.SurplusPool(), 0)
	expectInt(t, "debit", h.treasury.DebitPool(), 1_000)

	if err := h.treasury.SetDebitOffsetBuffer(nativecommon.Signed(alice), big.NewInt(100)); err != ErrBadOrigin {
		t.Fatalf("expected bad origin, got %v", err)
	}
	if err := h.treasury.SetDebitOffsetBuffer(nativecommon.RootOrigin(), big.NewInt(100)); err != nil {
		t.Fatalf("set buffer: %v", err)
	}
	if err := h.treasury.OnSystemSurplus(big.NewInt(2_000)); err != nil {
		t.Fatalf("surplus: %v", err)
	}
	h.treasury.OnFinalize(2)
	expectInt(t, "surplus", h.treasury.SurplusPool(), 1_100)
	expectInt(t, "debit", h.treasury.DebitPool(), 100)

	if err := h.treasury.SetDebitOffsetBuffer(nativecommon.RootOrigin(), big.NewInt(200)); err != nil {
		t.Fatalf("set buffer: %v", err)
	}
	if err := h.treasury.OnSystemDebit(big.NewInt(1_400)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	h.treasury.OnFinalize(3)
	expectInt(t, "surplus", h.treasury.SurplusPool(), 0)
	expectInt(t, "debit", h.treasury.DebitPool(), 400)
	if got := len(h.events.OfType(events.TypeTreasuryDebitOffsetBufferUpdated)); got != 2 {
		t.Fatalf("expected 2 buffer events, got %d", got)
	}
}

func TestSwapCollateralToStable(t *testing.T) {
	h := newHarness(t)
	if err := h.treasury.DepositCollateral(bob, BTC, big.NewInt(200)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.treasury.DepositCollateral(charlie, EDF, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.addLiquidity(t, bob, EDF, USSD, 1_000, 1_000)

	if _, _, err := h.treasury.SwapCollateralToStable(BTC, dex.ExactTarget(big.NewInt(201), big.NewInt(200)), false); err != ErrCollateralNotEnough {
		t.Fatalf("expected collateral not enough, got %v", err)
	}
	if _, _, err := h.treasury.SwapCollateralToStable(EDF, dex.ExactSupply(big.NewInt(1_001), big.NewInt(0)), false); err != ErrCollateralNotEnough {
		t.Fatalf("expected collateral not enough, got %v", err)
	}
	if _, _, err := h.treasury.SwapCollateralToStable(BTC, dex.ExactTarget(big.NewInt(200), big.NewInt(399)), false); err != dex.ErrCannotSwap {
		t.Fatalf("expected cannot swap, got %v", err)
	}

	h.addLiquidity(t, alice, BTC, EDF, 100, 1_000)
	supply, target, err := h.treasury.SwapCollateralToStable(BTC, dex.ExactTarget(big.NewInt(200), big.NewInt(399)), false)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	expectInt(t, "supply", supply, 198)
	expectInt(t, "target", target, 399)
	expectInt(t, "surplus", h.treasury.SurplusPool(), 399)
	expectInt(t, "BTC not in auction", h.treasury.TotalCollateralsNotInAuction(BTC), 2)

	if _, _, err := h.treasury.SwapCollateralToStable(EDF, dex.ExactSupply(big.NewInt(1_000), big.NewInt(1_000)), false); err != dex.ErrCannotSwap {
		t.Fatalf("expected cannot swap, got %v", err)
	}
	supply, target, err = h.treasury.SwapCollateralToStable(EDF, dex.ExactSupply(big.NewInt(1_000), big.NewInt(0)), false)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	expectInt(t, "supply", supply, 1_000)
	expectInt(t, "target", target, 225)
	expectInt(t, "surplus", h.treasury.SurplusPool(), 624)
	expectInt(t, "EDF not in auction", h.treasury.TotalCollateralsNotInAuction(EDF), 0)
}

func TestCreateCollateralAuctions(t *testing.T) {
	h := newHarness(t)
	if err := h.ledger.Deposit(BTC, h.treasury.Account(), big.NewInt(10_000)); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	expectInt(t, "lot size", h.treasury.ExpectedCollateralAuctionSize(BTC), 0)
	if _, err := h.treasury.CreateCollateralAuctions(BTC, big.NewInt(10_001), big.NewInt(1_000), alice, true); err != ErrCollateralNotEnough {
		t.Fatalf("expected collateral not enough, got %v", err)
	}

	steps := []struct {
		amount      int64
		wantCreated int
		wantTotal   int
		wantLocked  int64
	}{
		{1_000, 1, 1, 1_000},
		{200, 1, 2, 1_200},
		{1_000, 4, 6, 2_200},
		{2_000, 5, 11, 4_200},
	}
	for i, step := range steps {
		if i == 1 {
			if err := h.treasury.SetExpectedCollateralAuctionSize(nativecommon.RootOrigin(), BTC, big.NewInt(300)); err != nil {
				t.Fatalf("set lot size: %v", err)
			}
		}
		created, err := h.treasury.CreateCollateralAuctions(BTC, big.NewInt(step.amount), big.NewInt(1_000), alice, true)
		if err != nil {
			t.Fatalf("step %d: create auctions: %v", i, err)
		}
		if created != step.wantCreated {
			t.Fatalf("step %d: created %d auctions, want %d", i, created, step.wantCreated)
		}
		auctions, err := h.treasury.CollateralAuctions(BTC)
		if err != nil {
			t.Fatalf("list auctions: %v", err)
		}
		if len(auctions) != step.wantTotal {
			t.Fatalf("step %d: %d open auctions, want %d", i, len(auctions), step.wantTotal)
		}
		expectInt(t, "in auction", h.treasury.TotalCollateralInAuction(BTC), step.wantLocked)
	}

	auctions, _ := h.treasury.CollateralAuctions(BTC)
	lotTotal := new(big.Int)
	for _, auction := range auctions {
		if auction.Amount.Cmp(big.NewInt(400)) == 0 {
			lotTotal.Add(lotTotal, auction.Amount)
		}
	}
	expectInt(t, "lots of 400", lotTotal, 2_000)
}

func TestCancelCollateralAuction(t *testing.T) {
	h := newHarness(t)
	if err := h.ledger.Deposit(BTC, h.treasury.Account(), big.NewInt(1_000)); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	if err := h.treasury.AuctionCollateral(nativecommon.Signed(alice), BTC, big.NewInt(800), big.NewInt(1_000), false); err != ErrBadOrigin {
		t.Fatalf("expected bad origin, got %v", err)
	}
	if err := h.treasury.AuctionCollateral(nativecommon.RootOrigin(), BTC, big.NewInt(800), big.NewInt(1_000), false); err != nil {
		t.Fatalf("auction collateral: %v", err)
	}
	created := h.events.OfType(events.TypeTreasuryAuctionCreated)
	if len(created) != 1 {
		t.Fatalf("expected one auction event, got %d", len(created))
	}
	id := created[0].(events.CollateralAuctionCreated).ID
	auction, ok, err := h.treasury.CollateralAuction(id)
	if err != nil || !ok {
		t.Fatalf("auction %s not found: %v", id, err)
	}
	if auction.RefundRecipient != h.treasury.Account() {
		t.Fatalf("unexpected refund recipient %s", auction.RefundRecipient.Hex())
	}
	expectInt(t, "not in auction", h.treasury.TotalCollateralsNotInAuction(BTC), 200)

	if err := h.treasury.CancelCollateralAuction(nativecommon.RootOrigin(), "missing"); err != ErrAuctionNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := h.treasury.CancelCollateralAuction(nativecommon.RootOrigin(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	expectInt(t, "not in auction", h.treasury.TotalCollateralsNotInAuction(BTC), 1_000)
	if _, ok, _ := h.treasury.CollateralAuction(id); ok {
		t.Fatalf("cancelled auction still open")
	}
}

func TestExchangeCollateralToStable(t *testing.T) {
	h := newHarness(t)
	h.addLiquidity(t, bob, BTC, USSD, 200, 1_000)
	if err := h.ledger.Deposit(BTC, h.treasury.Account(), big.NewInt(1_000)); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	if err := h.treasury.AuctionCollateral(nativecommon.RootOrigin(), BTC, big.NewInt(800), big.NewInt(1_000), false); err != nil {
		t.Fatalf("auction collateral: %v", err)
	}
	expectInt(t, "total", h.treasury.TotalCollaterals(BTC), 1_000)
	expectInt(t, "not in auction", h.treasury.TotalCollateralsNotInAuction(BTC), 200)

	if err := h.treasury.ExchangeCollateralToStable(nativecommon.Signed(alice), BTC, dex.ExactTarget(big.NewInt(200), big.NewInt(200))); err != ErrBadOrigin {
		t.Fatalf("expected bad origin, got %v", err)
	}
	if err := h.treasury.ExchangeCollateralToStable(nativecommon.RootOrigin(), BTC, dex.ExactTarget(big.NewInt(201), big.NewInt(200))); err != ErrCollateralNotEnough {
		t.Fatalf("expected collateral not enough, got %v", err)
	}
	if err := h.treasury.ExchangeCollateralToStable(nativecommon.RootOrigin(), BTC, dex.ExactSupply(big.NewInt(201), big.NewInt(0))); err != ErrCollateralNotEnough {
		t.Fatalf("expected collateral not enough, got %v", err)
	}
	if err := h.treasury.ExchangeCollateralToStable(nativecommon.RootOrigin(), BTC, dex.ExactTarget(big.NewInt(200), big.NewInt(1_000))); err != dex.ErrCannotSwap {
		t.Fatalf("expected cannot swap, got %v", err)
	}
	if err := h.treasury.ExchangeCollateralToStable(nativecommon.RootOrigin(), BTC, dex.ExactTarget(big.NewInt(200), big.NewInt(399))); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	expectInt(t, "surplus", h.treasury.SurplusPool(), 399)
	expectInt(t, "total", h.treasury.TotalCollaterals(BTC), 867)
	expectInt(t, "not in auction", h.treasury.TotalCollateralsNotInAuction(BTC), 67)
}

func TestRemoveLiquidityForLPCollateral(t *testing.T) {
	h := newHarness(t)
	h.addLiquidity(t, bob, USSD, EDF, 1_000, 100)
	lp := types.DexShareCurrency(USSD, EDF)
	if err := h.treasury.DepositCollateral(bob, lp, big.NewInt(200)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	expectInt(t, "issuance", h.ledger.TotalIssuance(lp), 2_000)

	if _, _, err := h.treasury.RemoveLiquidityForLPCollateral(EDF, big.NewInt(200)); err != ErrNotDexShare {
		t.Fatalf("expected not dex share, got %v", err)
	}
	out0, out1, err := h.treasury.RemoveLiquidityForLPCollateral(lp, big.NewInt(120))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	expectInt(t, "EDF out", out0, 6)
	expectInt(t, "USSD out", out1, 60)
	expectInt(t, "issuance", h.ledger.TotalIssuance(lp), 1_880)
	reserveUSSD, reserveEDF := h.dex.GetLiquidity(USSD, EDF)
	expectInt(t, "USSD reserve", reserveUSSD, 940)
	expectInt(t, "EDF reserve", reserveEDF, 94)
	expectInt(t, "treasury shares", h.ledger.FreeBalance(lp, h.treasury.Account()), 80)
	expectInt(t, "treasury USSD", h.ledger.FreeBalance(USSD, h.treasury.Account()), 60)
	expectInt(t, "treasury EDF", h.ledger.FreeBalance(EDF, h.treasury.Account()), 6)
}
