package cdp

import "ecdpchain/core/types"

var (
	collateralParamsPrefix  = []byte("cdp/collateral_params/")
	debitExchangeRatePrefix = []byte("cdp/debit_exchange_rate/")
	liquidationContractsKey = []byte("cdp/liquidation_contracts")
	lastAccumulationKey     = []byte("cdp/last_accumulation_secs")
)

func currencyKey(prefix []byte, currency types.CurrencyID) []byte {
	return append(append([]byte{}, prefix...), currency...)
}
