package loans

import (
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	"ecdpchain/crypto"
)

const DefaultModuleAccount = "ecdp-loans"

// Ledger moves collateral between owners and the loans account.
type Ledger interface {
	Transfer(currency types.CurrencyID, from, to common.Address, amount *big.Int) error
	IncConsumers(who common.Address) error
	DecConsumers(who common.Address) error
}

// RiskManager values debit and validates positions after they change.
type RiskManager interface {
	GetDebitValue(currency types.CurrencyID, debit *big.Int) *big.Int
	CheckDebitCap(currency types.CurrencyID, totalDebit *big.Int) error
	CheckPositionValid(currency types.CurrencyID, collateral, debit *big.Int, increaseRisk bool) error
}

// Treasury issues and burns the stable currency backing debit and takes
// custody of confiscated collateral.
type Treasury interface {
	IssueDebit(who common.Address, amount *big.Int, backed bool) error
	BurnDebit(who common.Address, amount *big.Int) error
	DepositCollateral(from common.Address, currency types.CurrencyID, amount *big.Int) error
	OnSystemDebit(amount *big.Int) error
}

// Loans is the position store. Collateral of every open position is held by
// the loans account.
type Loans struct {
	state    loansState
	ledger   Ledger
	risk     RiskManager
	treasury Treasury
	emitter  events.Emitter
	account  common.Address
	logger   *slog.Logger
}

func New(moduleAccount string) *Loans {
	if moduleAccount == "" {
		moduleAccount = DefaultModuleAccount
	}
	return &Loans{
		account: crypto.ModuleAccount(moduleAccount),
		emitter: events.NoopEmitter{},
	}
}

func (l *Loans) SetState(state loansState) {
	if l == nil {
		return
	}
	l.state = state
}

func (l *Loans) SetLedger(ledger Ledger) {
	if l == nil {
		return
	}
	l.ledger = ledger
}

func (l *Loans) SetRiskManager(risk RiskManager) {
	if l == nil {
		return
	}
	l.risk = risk
}

func (l *Loans) SetTreasury(treasury Treasury) {
	if l == nil {
		return
	}
	l.treasury = treasury
}

func (l *Loans) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

func (l *Loans) SetLogger(logger *slog.Logger) {
	if l == nil {
		return
	}
	l.logger = logger
}

// Account returns the escrow account holding all loan collateral.
func (l *Loans) Account() common.Address { return l.account }

func (l *Loans) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

func (l *Loans) ready() error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if l.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (l *Loans) readyForAdjust() error {
	if err := l.ready(); err != nil {
		return err
	}
	if l.risk == nil {
		return errNilRisk
	}
	if l.treasury == nil {
		return errNilTreasury
	}
	return nil
}

func (l *Loans) emit(evt events.Event) {
	if l.emitter != nil {
		l.emitter.Emit(evt)
	}
}

// Positions returns the position of who. Missing positions are zero.
func (l *Loans) Positions(currency types.CurrencyID, who common.Address) Position {
	if l == nil || l.state == nil {
		return ZeroPosition()
	}
	pos, err := l.state.Position(currency, who)
	if err != nil {
		l.log().Error("loans: read position", "currency", currency, "owner", who.Hex(), "error", err)
		return ZeroPosition()
	}
	return pos
}

// TotalPositions returns the sum of every position of currency.
func (l *Loans) TotalPositions(currency types.CurrencyID) Position {
	if l == nil || l.state == nil {
		return ZeroPosition()
	}
	pos, err := l.state.Total(currency)
	if err != nil {
		l.log().Error("loans: read totals", "currency", currency, "error", err)
		return ZeroPosition()
	}
	return pos
}

// IteratePositions walks the positions of currency in owner order. A nil
// after starts from the first owner.
func (l *Loans) IteratePositions(currency types.CurrencyID, after *common.Address, fn func(who common.Address, pos Position) bool) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return l.state.IteratePositions(currency, after, fn)
}

// UpdateLoan applies signed deltas to a position and to the currency totals
// without moving any funds. Opening a position takes a consumer reference on
// the owner and closing it releases the reference.
func (l *Loans) UpdateLoan(who common.Address, currency types.CurrencyID, collateralAdjustment, debitAdjustment *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	collateralAdjustment, debitAdjustment = orZero(collateralAdjustment), orZero(debitAdjustment)
	if collateralAdjustment.Sign() == 0 && debitAdjustment.Sign() == 0 {
		return nil
	}
	pos, err := l.state.Position(currency, who)
	if err != nil {
		return err
	}
	total, err := l.state.Total(currency)
	if err != nil {
		return err
	}
	wasEmpty := pos.IsEmpty()

	collateral := new(big.Int).Add(pos.Collateral, collateralAdjustment)
	if collateral.Sign() < 0 {
		return ErrCollateralTooLow
	}
	debit := new(big.Int).Add(pos.Debit, debitAdjustment)
	if debit.Sign() < 0 {
		return ErrDebitTooLow
	}
	totalCollateral := new(big.Int).Add(total.Collateral, collateralAdjustment)
	totalDebit := new(big.Int).Add(total.Debit, debitAdjustment)
	if totalCollateral.Sign() < 0 {
		return ErrCollateralTooLow
	}
	if totalDebit.Sign() < 0 {
		return ErrDebitTooLow
	}

	updated := Position{Collateral: collateral, Debit: debit}
	switch {
	case wasEmpty && !updated.IsEmpty():
		if err := l.ledger.IncConsumers(who); err != nil {
			return err
		}
	case !wasEmpty && updated.IsEmpty():
		if err := l.ledger.DecConsumers(who); err != nil {
			return err
		}
	}
	if err := l.state.PutPosition(currency, who, updated); err != nil {
		return err
	}
	if err := l.state.PutTotal(currency, Position{Collateral: totalCollateral, Debit: totalDebit}); err != nil {
		return err
	}
	l.emit(events.PositionUpdated{
		Owner:                who,
		Currency:             currency,
		CollateralAdjustment: new(big.Int).Set(collateralAdjustment),
		DebitAdjustment:      new(big.Int).Set(debitAdjustment),
	})
	return nil
}

// AdjustPosition moves collateral between who and the loans account, issues
// or burns the stable value of the debit change and validates the result.
func (l *Loans) AdjustPosition(who common.Address, currency types.CurrencyID, collateralAdjustment, debitAdjustment *big.Int) error {
	if err := l.readyForAdjust(); err != nil {
		return err
	}
	collateralAdjustment, debitAdjustment = orZero(collateralAdjustment), orZero(debitAdjustment)
	return l.state.Atomic(func() error {
		if err := l.UpdateLoan(who, currency, collateralAdjustment, debitAdjustment); err != nil {
			return err
		}
		collateralAbs := new(big.Int).Abs(collateralAdjustment)
		switch collateralAdjustment.Sign() {
		case 1:
			if err := l.ledger.Transfer(currency, who, l.account, collateralAbs); err != nil {
				return err
			}
		case -1:
			if err := l.ledger.Transfer(currency, l.account, who, collateralAbs); err != nil {
				return err
			}
		}

		debitAbs := new(big.Int).Abs(debitAdjustment)
		switch debitAdjustment.Sign() {
		case 1:
			if err := l.risk.CheckDebitCap(currency, l.TotalPositions(currency).Debit); err != nil {
				return err
			}
			if err := l.treasury.IssueDebit(who, l.risk.GetDebitValue(currency, debitAbs), true); err != nil {
				return err
			}
		case -1:
			if err := l.treasury.BurnDebit(who, l.risk.GetDebitValue(currency, debitAbs)); err != nil {
				return err
			}
		}

		pos := l.Positions(currency, who)
		increaseRisk := collateralAdjustment.Sign() < 0 || debitAdjustment.Sign() > 0
		return l.risk.CheckPositionValid(currency, pos.Collateral, pos.Debit, increaseRisk)
	})
}

// ConfiscateCollateralAndDebit removes collateral and debit from a position,
// hands the collateral to the treasury and books the debit value as system
// debit.
func (l *Loans) ConfiscateCollateralAndDebit(who common.Address, currency types.CurrencyID, collateral, debit *big.Int) error {
	if err := l.readyForAdjust(); err != nil {
		return err
	}
	collateral, debit = orZero(collateral), orZero(debit)
	return l.state.Atomic(func() error {
		if err := l.treasury.DepositCollateral(l.account, currency, collateral); err != nil {
			return err
		}
		if err := l.treasury.OnSystemDebit(l.risk.GetDebitValue(currency, debit)); err != nil {
			return err
		}
		if err := l.UpdateLoan(who, currency, new(big.Int).Neg(collateral), new(big.Int).Neg(debit)); err != nil {
			return err
		}
		l.emit(events.PositionUpdated{
			Kind:                 events.TypeLoansConfiscated,
			Owner:                who,
			Currency:             currency,
			CollateralAdjustment: new(big.Int).Set(collateral),
			DebitAdjustment:      new(big.Int).Set(debit),
		})
		return nil
	})
}

// TransferLoan moves a whole position from one owner to another. The
// recipient must not hold a position of the same currency.
func (l *Loans) TransferLoan(from, to common.Address, currency types.CurrencyID) error {
	if err := l.ready(); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	return l.state.Atomic(func() error {
		pos, err := l.state.Position(currency, from)
		if err != nil {
			return err
		}
		if pos.IsEmpty() {
			return nil
		}
		existing, err := l.state.Position(currency, to)
		if err != nil {
			return err
		}
		if !existing.IsEmpty() {
			return ErrAlreadyOwned
		}
		if err := l.UpdateLoan(from, currency, new(big.Int).Neg(pos.Collateral), new(big.Int).Neg(pos.Debit)); err != nil {
			return err
		}
		return l.UpdateLoan(to, currency, pos.Collateral, pos.Debit)
	})
}
