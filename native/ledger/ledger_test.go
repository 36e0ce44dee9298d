package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ecdpchain/core/state"
	"ecdpchain/core/types"
	"ecdpchain/storage"
)

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb0")
)

func newLedger(t *testing.T) (*Ledger, *state.Store) {
	t.Helper()
	store := state.NewStore(storage.NewMemDB())
	return New(store), store
}

func TestDepositTransferWithdraw(t *testing.T) {
	l, _ := newLedger(t)
	require.NoError(t, l.Deposit("USSD", alice, big.NewInt(100)))
	require.Equal(t, "100", l.TotalIssuance("USSD").String())

	require.NoError(t, l.Transfer("USSD", alice, bob, big.NewInt(40)))
	require.Equal(t, "60", l.FreeBalance("USSD", alice).String())
	require.Equal(t, "40", l.FreeBalance("USSD", bob).String())

	require.ErrorIs(t, l.Transfer("USSD", bob, alice, big.NewInt(41)), ErrInsufficientBalance)
	require.ErrorIs(t, l.Transfer("USSD", bob, alice, big.NewInt(-1)), ErrInvalidAmount)
	require.NoError(t, l.Transfer("USSD", bob, alice, big.NewInt(0)))

	require.NoError(t, l.Withdraw("USSD", bob, big.NewInt(40)))
	require.Equal(t, "0", l.FreeBalance("USSD", bob).String())
	require.Equal(t, "60", l.TotalIssuance("USSD").String())
	require.ErrorIs(t, l.Withdraw("USSD", bob, big.NewInt(1)), ErrInsufficientBalance)
}

func TestReserveUnreserve(t *testing.T) {
	l, _ := newLedger(t)
	require.NoError(t, l.Deposit("EDF", alice, big.NewInt(10)))
	require.NoError(t, l.Reserve("EDF", alice, big.NewInt(7)))
	require.Equal(t, "3", l.FreeBalance("EDF", alice).String())
	require.Equal(t, "7", l.ReservedBalance("EDF", alice).String())
	require.ErrorIs(t, l.Reserve("EDF", alice, big.NewInt(4)), ErrInsufficientBalance)
	require.ErrorIs(t, l.Unreserve("EDF", alice, big.NewInt(8)), ErrInsufficientReserved)
	require.NoError(t, l.Unreserve("EDF", alice, big.NewInt(7)))
	require.Equal(t, "10", l.FreeBalance("EDF", alice).String())
	require.Equal(t, "10", l.TotalIssuance("EDF").String())
}

func TestFailedCallLeavesNoWrites(t *testing.T) {
	l, store := newLedger(t)
	require.NoError(t, l.Deposit("USSD", alice, big.NewInt(5)))
	err := store.Atomic(func() error {
		if err := l.Transfer("USSD", alice, bob, big.NewInt(5)); err != nil {
			return err
		}
		return l.Withdraw("USSD", bob, big.NewInt(6))
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, "5", l.FreeBalance("USSD", alice).String())
	require.Equal(t, "0", l.FreeBalance("USSD", bob).String())
}

func TestAssetsAndConsumers(t *testing.T) {
	l, _ := newLedger(t)
	require.NoError(t, l.RegisterAsset(Asset{Symbol: "ussd", Name: "Setter", Decimals: 12}))
	require.NoError(t, l.RegisterAsset(Asset{Symbol: "EDF", Decimals: 12}))
	require.Error(t, l.RegisterAsset(Asset{Symbol: "LP:EDF/USSD"}))
	require.True(t, l.IsRegistered("USSD"))
	require.True(t, l.IsRegistered(types.DexShareCurrency("USSD", "EDF")))
	require.False(t, l.IsRegistered("BTC"))
	assets, err := l.Assets()
	require.NoError(t, err)
	require.Len(t, assets, 2)

	require.Equal(t, uint64(0), l.Consumers(alice))
	require.NoError(t, l.IncConsumers(alice))
	require.NoError(t, l.IncConsumers(alice))
	require.Equal(t, uint64(2), l.Consumers(alice))
	require.NoError(t, l.DecConsumers(alice))
	require.NoError(t, l.DecConsumers(alice))
	require.ErrorIs(t, l.DecConsumers(alice), ErrConsumerUnderflow)
}
