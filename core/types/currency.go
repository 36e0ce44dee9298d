package types

import (
	"fmt"
	"strings"
)

// CurrencyID identifies a token. Plain tokens use their upper-case symbol;
// liquidity shares use the form LP:<token0>/<token1> with token0 < token1.
type CurrencyID string

const dexSharePrefix = "LP:"

// NormalizeCurrency trims and upper-cases a raw symbol.
func NormalizeCurrency(raw string) CurrencyID {
	return CurrencyID(strings.ToUpper(strings.TrimSpace(raw)))
}

// DexShareCurrency returns the liquidity share currency of the pair formed by
// a and b, independent of argument order.
func DexShareCurrency(a, b CurrencyID) CurrencyID {
	if b < a {
		a, b = b, a
	}
	return CurrencyID(dexSharePrefix + string(a) + "/" + string(b))
}

// IsDexShare reports whether c is a liquidity share currency.
func (c CurrencyID) IsDexShare() bool {
	_, _, ok := c.SplitDexShare()
	return ok
}

// SplitDexShare returns the two underlying tokens of a liquidity share.
func (c CurrencyID) SplitDexShare() (CurrencyID, CurrencyID, bool) {
	rest, found := strings.CutPrefix(string(c), dexSharePrefix)
	if !found {
		return "", "", false
	}
	left, right, ok := strings.Cut(rest, "/")
	if !ok || left == "" || right == "" || left == right {
		return "", "", false
	}
	return CurrencyID(left), CurrencyID(right), true
}

// Validate checks that the identifier is non-empty and well formed.
func (c CurrencyID) Validate() error {
	if c == "" {
		return fmt.Errorf("currency id must not be empty")
	}
	if strings.HasPrefix(string(c), dexSharePrefix) && !c.IsDexShare() {
		return fmt.Errorf("malformed share currency %q", string(c))
	}
	if !c.IsDexShare() && strings.ContainsAny(string(c), "/: ") {
		return fmt.Errorf("invalid currency symbol %q", string(c))
	}
	return nil
}

func (c CurrencyID) String() string { return string(c) }
