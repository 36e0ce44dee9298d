package events

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
	"ecdpchain/crypto"
)

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func formatAccount(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return crypto.FormatAccount(addr)
}

func formatPath(path []types.CurrencyID) string {
	parts := make([]string, len(path))
	for i, c := range path {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func formatAmounts(amounts []*big.Int) string {
	parts := make([]string, len(amounts))
	for i, a := range amounts {
		parts[i] = formatAmount(a)
	}
	return strings.Join(parts, ",")
}
