package loans

import "math/big"

// Position is a loan held by one owner against one collateral currency.
// Debit is counted in debit units; its stable value depends on the
// currency's debit exchange rate.
type Position struct {
	Collateral *big.Int
	Debit      *big.Int
}

func ZeroPosition() Position {
	return Position{Collateral: big.NewInt(0), Debit: big.NewInt(0)}
}

func (p Position) IsEmpty() bool {
	return orZero(p.Collateral).Sign() == 0 && orZero(p.Debit).Sign() == 0
}

func (p Position) normalise() Position {
	return Position{Collateral: orZero(p.Collateral), Debit: orZero(p.Debit)}
}
