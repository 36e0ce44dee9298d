// Package fixedpoint implements an unsigned fixed-point decimal with 18
// fractional digits whose inner value is bounded to 128 bits.
package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Decimals is the number of fractional digits carried by FixedU128.
const Decimals = 18

var (
	accuracy   = uint256.NewInt(1_000_000_000_000_000_000)
	maxInner   = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	maxBalance = maxInner.ToBig()
)

// FixedU128 is value = inner / 10^18 with inner <= 2^128-1.
type FixedU128 struct {
	inner uint256.Int
}

// Rate, Ratio, Price and ExchangeRate share the FixedU128 representation.
type (
	Rate         = FixedU128
	Ratio        = FixedU128
	Price        = FixedU128
	ExchangeRate = FixedU128
)

// MaxBalance returns the largest amount produced by the saturating helpers.
func MaxBalance() *big.Int { return new(big.Int).Set(maxBalance) }

func Zero() FixedU128 { return FixedU128{} }

func One() FixedU128 {
	var f FixedU128
	f.inner.Set(accuracy)
	return f
}

func Max() FixedU128 {
	var f FixedU128
	f.inner.Set(maxInner)
	return f
}

// FromInteger converts a whole number.
func FromInteger(n uint64) FixedU128 {
	var f FixedU128
	f.inner.Mul(uint256.NewInt(n), accuracy)
	return f
}

// FromInner rebuilds a value from its raw representation.
func FromInner(inner *big.Int) (FixedU128, error) {
	var f FixedU128
	if inner == nil {
		return f, nil
	}
	if inner.Sign() < 0 {
		return f, fmt.Errorf("fixedpoint: negative inner value")
	}
	v, overflow := uint256.FromBig(inner)
	if overflow || v.Gt(maxInner) {
		return f, fmt.Errorf("fixedpoint: inner value exceeds 128 bits")
	}
	f.inner.Set(v)
	return f, nil
}

// Inner exposes the raw representation for persistence.
func (f FixedU128) Inner() *big.Int { return f.inner.ToBig() }

func toU256(n *big.Int) (*uint256.Int, bool) {
	if n == nil {
		return new(uint256.Int), true
	}
	if n.Sign() < 0 {
		return nil, false
	}
	v, overflow := uint256.FromBig(n)
	return v, !overflow
}

func bounded(v *uint256.Int, overflow bool) (FixedU128, bool) {
	var f FixedU128
	if overflow || v.Gt(maxInner) {
		return f, false
	}
	f.inner.Set(v)
	return f, true
}

// CheckedFromRational returns floor(n/d) as a fixed-point value. It fails on a
// zero denominator or when the result does not fit.
func CheckedFromRational(n, d *big.Int) (FixedU128, bool) {
	num, ok := toU256(n)
	if !ok {
		return FixedU128{}, false
	}
	den, ok := toU256(d)
	if !ok || den.IsZero() {
		return FixedU128{}, false
	}
	return bounded(new(uint256.Int).MulDivOverflow(num, accuracy, den))
}

// SaturatingFromRational is CheckedFromRational clamped to Max.
func SaturatingFromRational(n, d *big.Int) FixedU128 {
	if f, ok := CheckedFromRational(n, d); ok {
		return f
	}
	if n != nil && n.Sign() == 0 {
		return Zero()
	}
	return Max()
}

// FromRational is the uint64 form of SaturatingFromRational, convenient for
// constants.
func FromRational(n, d uint64) FixedU128 {
	return SaturatingFromRational(new(big.Int).SetUint64(n), new(big.Int).SetUint64(d))
}

// CheckedMulInt returns floor(n * f), failing if n is negative or the result
// exceeds 128 bits.
func (f FixedU128) CheckedMulInt(n *big.Int) (*big.Int, bool) {
	v, ok := toU256(n)
	if !ok {
		return nil, false
	}
	out, overflow := new(uint256.Int).MulDivOverflow(v, &f.inner, accuracy)
	if overflow || out.Gt(maxInner) {
		return nil, false
	}
	return out.ToBig(), true
}

// SaturatingMulInt returns floor(n * f) clamped to the maximum balance.
// Negative inputs yield zero.
func (f FixedU128) SaturatingMulInt(n *big.Int) *big.Int {
	if n != nil && n.Sign() < 0 {
		return big.NewInt(0)
	}
	if out, ok := f.CheckedMulInt(n); ok {
		return out
	}
	return MaxBalance()
}

// SaturatingMulAccInt returns n + n*f clamped to the maximum balance.
func (f FixedU128) SaturatingMulAccInt(n *big.Int) *big.Int {
	if n == nil || n.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Add(n, f.SaturatingMulInt(n))
	if out.Cmp(maxBalance) > 0 {
		return MaxBalance()
	}
	return out
}

func (f FixedU128) CheckedMul(o FixedU128) (FixedU128, bool) {
	return bounded(new(uint256.Int).MulDivOverflow(&f.inner, &o.inner, accuracy))
}

func (f FixedU128) SaturatingMul(o FixedU128) FixedU128 {
	if out, ok := f.CheckedMul(o); ok {
		return out
	}
	return Max()
}

func (f FixedU128) CheckedDiv(o FixedU128) (FixedU128, bool) {
	if o.inner.IsZero() {
		return FixedU128{}, false
	}
	return bounded(new(uint256.Int).MulDivOverflow(&f.inner, accuracy, &o.inner))
}

// Reciprocal returns 1/f; it fails for zero.
func (f FixedU128) Reciprocal() (FixedU128, bool) {
	return One().CheckedDiv(f)
}

func (f FixedU128) CheckedAdd(o FixedU128) (FixedU128, bool) {
	return bounded(new(uint256.Int).AddOverflow(&f.inner, &o.inner))
}

func (f FixedU128) SaturatingAdd(o FixedU128) FixedU128 {
	if out, ok := f.CheckedAdd(o); ok {
		return out
	}
	return Max()
}

func (f FixedU128) CheckedSub(o FixedU128) (FixedU128, bool) {
	if f.inner.Lt(&o.inner) {
		return FixedU128{}, false
	}
	var out FixedU128
	out.inner.Sub(&f.inner, &o.inner)
	return out, true
}

func (f FixedU128) SaturatingSub(o FixedU128) FixedU128 {
	if out, ok := f.CheckedSub(o); ok {
		return out
	}
	return Zero()
}

// SaturatingPow raises f to exp by repeated squaring.
func (f FixedU128) SaturatingPow(exp uint64) FixedU128 {
	result := One()
	base := f
	for exp > 0 {
		if exp&1 == 1 {
			result = result.SaturatingMul(base)
		}
		exp >>= 1
		if exp > 0 {
			base = base.SaturatingMul(base)
		}
	}
	return result
}

func (f FixedU128) Cmp(o FixedU128) int { return f.inner.Cmp(&o.inner) }

func (f FixedU128) IsZero() bool { return f.inner.IsZero() }

func (f FixedU128) IsOne() bool { return f.inner.Eq(accuracy) }

// String renders the value as a decimal without trailing zeros.
func (f FixedU128) String() string {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(&f.inner, accuracy, r)
	if r.IsZero() {
		return q.Dec()
	}
	frac := r.Dec()
	frac = strings.Repeat("0", Decimals-len(frac)) + frac
	return q.Dec() + "." + strings.TrimRight(frac, "0")
}

// Parse reads either a decimal ("1.5") or a rational ("3/2").
func Parse(raw string) (FixedU128, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return FixedU128{}, fmt.Errorf("fixedpoint: empty value")
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, okN := new(big.Int).SetString(strings.TrimSpace(num), 10)
		d, okD := new(big.Int).SetString(strings.TrimSpace(den), 10)
		if !okN || !okD {
			return FixedU128{}, fmt.Errorf("fixedpoint: invalid rational %q", s)
		}
		f, ok := CheckedFromRational(n, d)
		if !ok {
			return FixedU128{}, fmt.Errorf("fixedpoint: rational %q out of range", s)
		}
		return f, nil
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > Decimals {
		return FixedU128{}, fmt.Errorf("fixedpoint: too many fractional digits in %q", s)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", Decimals-len(frac))
	inner, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return FixedU128{}, fmt.Errorf("fixedpoint: invalid decimal %q", s)
	}
	return FromInner(inner)
}

// MustParse is Parse for package-level constants; it panics on error.
func MustParse(raw string) FixedU128 {
	f, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return f
}

func (f FixedU128) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FixedU128) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
