package dex

import (
	"math/big"

	"github.com/holiman/uint256"
)

func toU256(v *big.Int) (*uint256.Int, bool) {
	if v == nil || v.Sign() < 0 {
		return nil, false
	}
	out, overflow := uint256.FromBig(v)
	return out, !overflow
}

// mulDiv returns floor(a*b/c) computed at 512-bit precision. It fails on
// negative inputs, a zero divisor or a result above 256 bits.
func mulDiv(a, b, c *big.Int) (*big.Int, bool) {
	x, ok1 := toU256(a)
	y, ok2 := toU256(b)
	z, ok3 := toU256(c)
	if !ok1 || !ok2 || !ok3 || z.IsZero() {
		return nil, false
	}
	out, overflow := new(uint256.Int).MulDivOverflow(x, y, z)
	if overflow {
		return nil, false
	}
	return out.ToBig(), true
}

// TargetAmount returns the output of a single hop:
//
//	target = inc*(den-num)*targetReserve / (supplyReserve*den + inc*(den-num))
//
// rounded down. Degenerate inputs yield zero.
func TargetAmount(fee Fee, supplyReserve, targetReserve, supplyIncrement *big.Int) *big.Int {
	sr, ok1 := toU256(supplyReserve)
	tr, ok2 := toU256(targetReserve)
	inc, ok3 := toU256(supplyIncrement)
	if !ok1 || !ok2 || !ok3 || sr.IsZero() || tr.IsZero() || inc.IsZero() || fee.Denominator == 0 {
		return big.NewInt(0)
	}
	den := uint256.NewInt(fee.Denominator)
	retained := uint256.NewInt(fee.Denominator - fee.Numerator)

	incWithFee, overflow := new(uint256.Int).MulOverflow(inc, retained)
	if overflow {
		return big.NewInt(0)
	}
	denominator, overflow := new(uint256.Int).MulOverflow(sr, den)
	if overflow {
		return big.NewInt(0)
	}
	if _, overflow = denominator.AddOverflow(denominator, incWithFee); overflow {
		return big.NewInt(0)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(incWithFee, tr, denominator)
	if overflow {
		return big.NewInt(0)
	}
	return out.ToBig()
}

// SupplyAmount is the inverse of TargetAmount, rounded up so the pool never
// loses value:
//
//	supply = supplyReserve*den*target / ((targetReserve-target)*(den-num)) + 1
//
// It yields zero for degenerate inputs or when target would drain the pool.
func SupplyAmount(fee Fee, supplyReserve, targetReserve, targetDecrement *big.Int) *big.Int {
	sr, ok1 := toU256(supplyReserve)
	tr, ok2 := toU256(targetReserve)
	dec, ok3 := toU256(targetDecrement)
	if !ok1 || !ok2 || !ok3 || sr.IsZero() || tr.IsZero() || dec.IsZero() || fee.Denominator == 0 {
		return big.NewInt(0)
	}
	if !dec.Lt(tr) {
		return big.NewInt(0)
	}
	den := uint256.NewInt(fee.Denominator)
	retained := uint256.NewInt(fee.Denominator - fee.Numerator)

	numerator, overflow := new(uint256.Int).MulOverflow(sr, den)
	if overflow {
		return big.NewInt(0)
	}
	remaining := new(uint256.Int).Sub(tr, dec)
	denominator, overflow := new(uint256.Int).MulOverflow(remaining, retained)
	if overflow || denominator.IsZero() {
		return big.NewInt(0)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(numerator, dec, denominator)
	if overflow {
		return big.NewInt(0)
	}
	if _, overflow = out.AddOverflow(out, uint256.NewInt(1)); overflow {
		return big.NewInt(0)
	}
	return out.ToBig()
}

// productNotDecreased reports whether (r0+d0)*(r1+d1) >= r0*r1 where the
// deltas are already applied in after0/after1.
func productNotDecreased(before0, before1, after0, after1 *big.Int) bool {
	before := new(big.Int).Mul(before0, before1)
	after := new(big.Int).Mul(after0, after1)
	return after.Cmp(before) >= 0
}
