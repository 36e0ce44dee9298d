package dex

import "github.com/ethereum/go-ethereum/common"

var (
	pairStatusPrefix       = []byte("dex/status/")
	liquidityPoolPrefix    = []byte("dex/pool/")
	provisioningPoolPrefix = []byte("dex/provision/")
	shareRatesPrefix       = []byte("dex/rates/")
)

func pairKey(prefix []byte, pair TradingPair) []byte {
	id := pair.String()
	buf := make([]byte, len(prefix)+len(id))
	copy(buf, prefix)
	copy(buf[len(prefix):], id)
	return buf
}

func pairStatusKey(pair TradingPair) []byte { return pairKey(pairStatusPrefix, pair) }

func liquidityPoolKey(pair TradingPair) []byte { return pairKey(liquidityPoolPrefix, pair) }

func shareRatesKey(pair TradingPair) []byte { return pairKey(shareRatesPrefix, pair) }

func provisioningPoolKey(pair TradingPair, who common.Address) []byte {
	base := pairKey(provisioningPoolPrefix, pair)
	buf := make([]byte, 0, len(base)+1+common.AddressLength)
	buf = append(buf, base...)
	buf = append(buf, '#')
	return append(buf, who.Bytes()...)
}
