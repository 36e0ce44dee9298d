package core

import (
	"bytes"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"ecdpchain/core/types"
)

// encodedTxs is a list of RLP encoded transactions in block order.
type encodedTxs [][]byte

func (l encodedTxs) Len() int { return len(l) }

func (l encodedTxs) EncodeIndex(i int, w *bytes.Buffer) { w.Write(l[i]) }

// ComputeTxRoot returns the root of the Merkle-Patricia trie mapping each
// RLP encoded index to its RLP encoded transaction. An empty block yields the
// empty trie root.
func ComputeTxRoot(txs []*types.Transaction) ([]byte, error) {
	list := make(encodedTxs, 0, len(txs))
	for _, tx := range txs {
		payload, err := rlp.EncodeToBytes(tx)
		if err != nil {
			return nil, err
		}
		list = append(list, payload)
	}
	root := gethtypes.DeriveSha(list, trie.NewStackTrie(nil))
	return root.Bytes(), nil
}
