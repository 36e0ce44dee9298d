package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AccountPrefix is the human-readable part used when rendering accounts.
const AccountPrefix = "ecdp"

// FormatAccount renders a 20-byte account as a bech32 string.
func FormatAccount(addr common.Address) string {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AccountPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// ParseAccount accepts either a bech32 account string or a 0x-prefixed hex
// address.
func ParseAccount(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("account must not be empty")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return common.Address{}, fmt.Errorf("invalid hex account %q", trimmed)
		}
		return common.HexToAddress(trimmed), nil
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AccountPrefix {
		return common.Address{}, fmt.Errorf("unexpected account prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return common.Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != common.AddressLength {
		return common.Address{}, fmt.Errorf("account must be %d bytes", common.AddressLength)
	}
	return common.BytesToAddress(conv), nil
}

// ModuleAccount derives the custody account owned by a native module.
func ModuleAccount(name string) common.Address {
	hash := ethcrypto.Keccak256([]byte("modl/" + strings.TrimSpace(name)))
	return common.BytesToAddress(hash[12:])
}
