package loans

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/state"
	"ecdpchain/core/types"
	"ecdpchain/native/ledger"
	"ecdpchain/storage"
)

const (
	BTC  types.CurrencyID = "BTC"
	EDF  types.CurrencyID = "EDF"
	USSD types.CurrencyID = "USSD"
)

var (
	alice    = common.HexToAddress("0xa11ce")
	bob      = common.HexToAddress("0xb0b")
	treasury = common.HexToAddress("0x7ea5")
)

var errUnsafe = errors.New("unsafe position")

// stubRisk values one debit unit at a tenth of a stable unit and rejects
// positions whose collateral is below twice the debit value.
type stubRisk struct {
	cap *big.Int
}

func (stubRisk) GetDebitValue(_ types.CurrencyID, debit *big.Int) *big.Int {
	return new(big.Int).Quo(debit, big.NewInt(10))
}

func (r stubRisk) CheckDebitCap(currency types.CurrencyID, totalDebit *big.Int) error {
	if r.cap != nil && r.GetDebitValue(currency, totalDebit).Cmp(r.cap) > 0 {
		return errUnsafe
	}
	return nil
}

func (r stubRisk) CheckPositionValid(currency types.CurrencyID, collateral, debit *big.Int, _ bool) error {
	value := r.GetDebitValue(currency, debit)
	if collateral.Cmp(new(big.Int).Mul(value, big.NewInt(2))) < 0 {
		return errUnsafe
	}
	return nil
}

type stubTreasury struct {
	ledger    *ledger.Ledger
	debitPool *big.Int
}

func (s *stubTreasury) IssueDebit(who common.Address, amount *big.Int, _ bool) error {
	return s.ledger.Deposit(USSD, who, amount)
}

func (s *stubTreasury) BurnDebit(who common.Address, amount *big.Int) error {
	return s.ledger.Withdraw(USSD, who, amount)
}

func (s *stubTreasury) DepositCollateral(from common.Address, currency types.CurrencyID, amount *big.Int) error {
	return s.ledger.Transfer(currency, from, treasury, amount)
}

func (s *stubTreasury) OnSystemDebit(amount *big.Int) error {
	s.debitPool.Add(s.debitPool, amount)
	return nil
}

type harness struct {
	loans    *Loans
	ledger   *ledger.Ledger
	treasury *stubTreasury
	events   *events.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := state.NewStore(storage.NewMemDB())
	l := ledger.New(store)
	for _, c := range []types.CurrencyID{BTC, EDF} {
		if err := l.Deposit(c, alice, big.NewInt(1_000)); err != nil {
			t.Fatalf("fund: %v", err)
		}
		if err := l.Deposit(c, bob, big.NewInt(1_000)); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	tr := &stubTreasury{ledger: l, debitPool: new(big.Int)}
	recorder := &events.Recorder{}
	loans := New("")
	loans.SetState(NewStateStore(store))
	loans.SetLedger(l)
	loans.SetRiskManager(stubRisk{})
	loans.SetTreasury(tr)
	loans.SetEmitter(recorder)
	return &harness{loans: loans, ledger: l, treasury: tr, events: recorder}
}

func expectPosition(t *testing.T, got Position, collateral, debit int64) {
	t.Helper()
	if got.Collateral.Int64() != collateral || got.Debit.Int64() != debit {
		t.Fatalf("position: got (%s, %s), want (%d, %d)", got.Collateral, got.Debit, collateral, debit)
	}
}

func TestUpdateLoan(t *testing.T) {
	h := newHarness(t)
	if err := h.loans.UpdateLoan(alice, BTC, big.NewInt(3_000), big.NewInt(0)); err != nil {
		t.Fatalf("update: %v", err)
	}
	expectPosition(t, h.loans.Positions(BTC, alice), 3_000, 0)
	expectPosition(t, h.loans.TotalPositions(BTC), 3_000, 0)
	if got := h.ledger.Consumers(alice); got != 1 {
		t.Fatalf("expected a consumer reference, got %d", got)
	}

	if err := h.loans.UpdateLoan(alice, BTC, big.NewInt(-4_000), big.NewInt(0)); err != ErrCollateralTooLow {
		t.Fatalf("expected collateral too low, got %v", err)
	}
	if err := h.loans.UpdateLoan(alice, BTC, big.NewInt(0), big.NewInt(-1)); err != ErrDebitTooLow {
		t.Fatalf("expected debit too low, got %v", err)
	}
	if err := h.loans.UpdateLoan(bob, BTC, big.NewInt(500), big.NewInt(20)); err != nil {
		t.Fatalf("update: %v", err)
	}
	expectPosition(t, h.loans.TotalPositions(BTC), 3_500, 20)

	if err := h.loans.UpdateLoan(alice, BTC, big.NewInt(-3_000), big.NewInt(0)); err != nil {
		t.Fatalf("update: %v", err)
	}
	expectPosition(t, h.loans.Positions(BTC, alice), 0, 0)
	if got := h.ledger.Consumers(alice); got != 0 {
		t.Fatalf("expected consumer reference released, got %d", got)
	}
	if got := len(h.events.OfType(events.TypeLoansPositionUpdated)); got != 3 {
		t.Fatalf("expected 3 position events, got %d", got)
	}
}

func TestAdjustPosition(t *testing.T) {
	h := newHarness(t)
	if err := h.loans.AdjustPosition(alice, BTC, big.NewInt(500), big.NewInt(300)); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	expectPosition(t, h.loans.Positions(BTC, alice), 500, 300)
	if got := h.ledger.FreeBalance(BTC, alice).Int64(); got != 500 {
		t.Fatalf("unexpected alice BTC %d", got)
	}
	if got := h.ledger.FreeBalance(BTC, h.loans.Account()).Int64(); got != 500 {
		t.Fatalf("unexpected escrowed BTC %d", got)
	}
	if got := h.ledger.FreeBalance(USSD, alice).Int64(); got != 30 {
		t.Fatalf("unexpected alice USSD %d", got)
	}

	if err := h.loans.AdjustPosition(alice, BTC, big.NewInt(-450), big.NewInt(0)); err != errUnsafe {
		t.Fatalf("expected risk check failure, got %v", err)
	}
	expectPosition(t, h.loans.Positions(BTC, alice), 500, 300)
	if got := h.ledger.FreeBalance(BTC, alice).Int64(); got != 500 {
		t.Fatalf("failed adjustment moved collateral: %d", got)
	}

	if err := h.loans.AdjustPosition(alice, BTC, big.NewInt(-100), big.NewInt(-200)); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	expectPosition(t, h.loans.Positions(BTC, alice), 400, 100)
	if got := h.ledger.FreeBalance(USSD, alice).Int64(); got != 10 {
		t.Fatalf("unexpected alice USSD %d", got)
	}
	if got := h.ledger.FreeBalance(BTC, alice).Int64(); got != 600 {
		t.Fatalf("unexpected alice BTC %d", got)
	}
}

func TestAdjustPositionChecksDebitCap(t *testing.T) {
	h := newHarness(t)
	h.loans.SetRiskManager(stubRisk{cap: big.NewInt(10)})
	if err := h.loans.AdjustPosition(alice, BTC, big.NewInt(500), big.NewInt(110)); err != errUnsafe {
		t.Fatalf("expected cap failure, got %v", err)
	}
	expectPosition(t, h.loans.TotalPositions(BTC), 0, 0)
	if err := h.loans.AdjustPosition(alice, BTC, big.NewInt(500), big.NewInt(100)); err != nil {
		t.Fatalf("adjust: %v", err)
	}
}

func TestAdjustPositionWithoutFunds(t *testing.T) {
	h := newHarness(t)
	if err := h.loans.AdjustPosition(alice, BTC, big.NewInt(5_000), big.NewInt(0)); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	expectPosition(t, h.loans.Positions(BTC, alice), 0, 0)
	if got := h.ledger.Consumers(alice); got != 0 {
		t.Fatalf("failed adjustment kept a consumer reference")
	}
}

func TestConfiscateCollateralAndDebit(t *testing.T) {
	h := newHarness(t)
	if err := h.loans.AdjustPosition(alice, BTC, big.NewInt(500), big.NewInt(300)); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := h.loans.ConfiscateCollateralAndDebit(alice, BTC, big.NewInt(600), big.NewInt(100)); err == nil {
		t.Fatalf("expected confiscating more than escrowed to fail")
	}
	if err := h.loans.ConfiscateCollateralAndDebit(alice, BTC, big.NewInt(300), big.NewInt(200)); err != nil {
		t.Fatalf("confiscate: %v", err)
	}
	expectPosition(t, h.loans.Positions(BTC, alice), 200, 100)
	expectPosition(t, h.loans.TotalPositions(BTC), 200, 100)
	if got := h.ledger.FreeBalance(BTC, treasury).Int64(); got != 300 {
		t.Fatalf("unexpected treasury BTC %d", got)
	}
	if h.treasury.debitPool.Int64() != 20 {
		t.Fatalf("unexpected debit pool %s", h.treasury.debitPool)
	}
	if got := len(h.events.OfType(events.TypeLoansConfiscated)); got != 1 {
		t.Fatalf("expected one confiscation event, got %d", got)
	}
}

func TestTransferLoan(t *testing.T) {
	h := newHarness(t)
	if err := h.loans.UpdateLoan(alice, BTC, big.NewInt(400), big.NewInt(500)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := h.loans.UpdateLoan(bob, BTC, big.NewInt(100), big.NewInt(0)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := h.loans.TransferLoan(alice, bob, BTC); err != ErrAlreadyOwned {
		t.Fatalf("expected already owned, got %v", err)
	}
	if err := h.loans.UpdateLoan(bob, BTC, big.NewInt(-100), big.NewInt(0)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := h.loans.TransferLoan(alice, bob, BTC); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	expectPosition(t, h.loans.Positions(BTC, alice), 0, 0)
	expectPosition(t, h.loans.Positions(BTC, bob), 400, 500)
	expectPosition(t, h.loans.TotalPositions(BTC), 400, 500)
}

func TestIteratePositions(t *testing.T) {
	h := newHarness(t)
	owners := []common.Address{bob, alice, common.HexToAddress("0x01")}
	for _, who := range owners {
		if err := h.loans.UpdateLoan(who, BTC, big.NewInt(10), big.NewInt(1)); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if err := h.loans.UpdateLoan(alice, EDF, big.NewInt(10), big.NewInt(0)); err != nil {
		t.Fatalf("update: %v", err)
	}

	var seen []common.Address
	if err := h.loans.IteratePositions(BTC, nil, func(who common.Address, pos Position) bool {
		seen = append(seen, who)
		return true
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	want := []common.Address{common.HexToAddress("0x01"), bob, alice}
	if len(seen) != len(want) {
		t.Fatalf("unexpected owners %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("owner %d: got %s, want %s", i, seen[i].Hex(), want[i].Hex())
		}
	}

	seen = seen[:0]
	after := bob
	if err := h.loans.IteratePositions(BTC, &after, func(who common.Address, pos Position) bool {
		seen = append(seen, who)
		return false
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(seen) != 1 || seen[0] != alice {
		t.Fatalf("expected to resume at alice, got %v", seen)
	}
}
