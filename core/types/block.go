package types

import (
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"
)

// BlockHeader commits to the ordered transactions of a block.
type BlockHeader struct {
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
	PrevHash  []byte `json:"prevHash"`
	TxRoot    []byte `json:"txRoot"`
	Proposer  []byte `json:"proposer"`
}

type Block struct {
	Header       *BlockHeader   `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

func NewBlock(header *BlockHeader, txs []*Transaction) *Block {
	return &Block{
		Header:       header,
		Transactions: txs,
	}
}

// Hash is the blake3 digest of the RLP encoded header and identifies the
// block.
func (h *BlockHeader) Hash() ([]byte, error) {
	b, err := rlp.EncodeToBytes(h)
	if err != nil {
		return nil, err
	}
	hash := blake3.Sum256(b)
	return hash[:], nil
}

// Receipt records the outcome of one transaction in a block.
type Receipt struct {
	TxHash []byte   `json:"txHash"`
	Status bool     `json:"status"`
	Error  string   `json:"error,omitempty"`
	Events []*Event `json:"events,omitempty"`
}
