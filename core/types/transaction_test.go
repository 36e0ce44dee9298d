package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestTransactionSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := &Transaction{
		Type:   TxTypeSigned,
		Nonce:  3,
		Module: "cdp",
		Method: "adjust_loan",
		Args:   json.RawMessage(`{"currency":"BTC"}`),
	}
	if _, err := tx.From(); !errors.Is(err, ErrUnsigned) {
		t.Fatalf("unsigned from = %v, want ErrUnsigned", err)
	}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	from, err := tx.From()
	if err != nil {
		t.Fatalf("from: %v", err)
	}
	if from != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("recovered %s", from.Hex())
	}

	before, _ := tx.Hash()
	tx.Nonce++
	after, _ := tx.Hash()
	if string(before) == string(after) {
		t.Fatalf("hash must cover the nonce")
	}
}

func TestBlockHeaderHashIsStable(t *testing.T) {
	h := &BlockHeader{Height: 7, Timestamp: 1700000000, PrevHash: []byte{1}, TxRoot: []byte{2}}
	a, err := h.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, _ := h.Hash()
	if string(a) != string(b) || len(a) != 32 {
		t.Fatalf("unstable hash")
	}
	h.Height++
	c, _ := h.Hash()
	if string(a) == string(c) {
		t.Fatalf("hash must cover the height")
	}
}
