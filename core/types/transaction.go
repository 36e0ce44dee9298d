package types

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"
)

// TxType defines how a transaction is authorised.
type TxType byte

const (
	TxTypeSigned   TxType = 0x01 // A module call dispatched by its signer
	TxTypeUnsigned TxType = 0x02 // A permissionless liquidate or settle call
)

var ErrUnsigned = errors.New("types: transaction carries no signature")

// Transaction invokes Method of Module with JSON encoded Args.
type Transaction struct {
	Type   TxType          `json:"type"`
	Nonce  uint64          `json:"nonce"`
	Module string          `json:"module"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`

	R *big.Int `json:"r,omitempty"`
	S *big.Int `json:"s,omitempty"`
	V *big.Int `json:"v,omitempty"`

	from *common.Address
}

// Hash is the blake3 digest of the RLP encoded unsigned payload.
func (tx *Transaction) Hash() ([]byte, error) {
	txData := struct {
		Type   TxType
		Nonce  uint64
		Module string
		Method string
		Args   []byte
	}{tx.Type, tx.Nonce, tx.Module, tx.Method, tx.Args}

	b, err := rlp.EncodeToBytes(txData)
	if err != nil {
		return nil, err
	}
	hash := blake3.Sum256(b)
	return hash[:], nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer. Unsigned transactions return ErrUnsigned.
func (tx *Transaction) From() (common.Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil || tx.V.Sign() == 0 {
		return common.Address{}, ErrUnsigned
	}
	hash, err := tx.Hash()
	if err != nil {
		return common.Address{}, err
	}
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, err
	}
	from := crypto.PubkeyToAddress(*pubKey)
	tx.from = &from
	return from, nil
}
