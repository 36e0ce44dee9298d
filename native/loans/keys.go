package loans

import (
	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
)

var (
	positionPrefix = []byte("loans/position/")
	totalPrefix    = []byte("loans/total/")
)

func currencyPrefix(prefix []byte, currency types.CurrencyID) []byte {
	buf := make([]byte, 0, len(prefix)+len(currency)+1)
	buf = append(buf, prefix...)
	buf = append(buf, currency...)
	return append(buf, '#')
}

func positionKey(currency types.CurrencyID, who common.Address) []byte {
	return append(currencyPrefix(positionPrefix, currency), who.Bytes()...)
}

func totalKey(currency types.CurrencyID) []byte {
	return append(append([]byte{}, totalPrefix...), currency...)
}
