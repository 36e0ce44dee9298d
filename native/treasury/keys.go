package treasury

import "ecdpchain/core/types"

var (
	debitPoolKey         = []byte("treasury/debit_pool")
	debitOffsetBufferKey = []byte("treasury/debit_offset_buffer")
	auctionSeqKey        = []byte("treasury/auction_seq")
	auctionSizePrefix    = []byte("treasury/auction_size/")
	inAuctionPrefix      = []byte("treasury/in_auction/")
	auctionPrefix        = []byte("treasury/auction/")
)

func currencyKey(prefix []byte, currency types.CurrencyID) []byte {
	return append(append([]byte{}, prefix...), currency...)
}

func auctionKey(id string) []byte {
	return append(append([]byte{}, auctionPrefix...), id...)
}
