package common

import (
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ecdpchain/core/state"
	"ecdpchain/storage"
)

func TestRegistryFlags(t *testing.T) {
	reg := NewRegistry(state.NewStore(storage.NewMemDB()))
	require.False(t, reg.IsPaused("dex"))
	require.NoError(t, reg.SetPaused("DEX", true))
	require.True(t, reg.IsPaused("dex"))
	require.ErrorIs(t, Guard(reg, "dex"), ErrModulePaused)
	require.NoError(t, Guard(reg, "cdp"))

	require.False(t, IsShutdown(reg))
	require.NoError(t, reg.SetShutdown(true))
	require.True(t, IsShutdown(reg))
	require.False(t, IsShutdown(nil))
}

func TestEnsureAdmin(t *testing.T) {
	reg := NewRegistry(state.NewStore(storage.NewMemDB()))
	alice := ethcommon.HexToAddress("0xa1")
	bob := ethcommon.HexToAddress("0xb0")
	require.NoError(t, reg.SetAdmin(alice, true))

	require.NoError(t, EnsureAdmin(RootOrigin(), reg))
	require.NoError(t, EnsureAdmin(Signed(alice), reg))
	if err := EnsureAdmin(Signed(bob), reg); !errors.Is(err, ErrBadOrigin) {
		t.Fatalf("expected bad origin, got %v", err)
	}
	require.ErrorIs(t, EnsureAdmin(UnsignedOrigin(), reg), ErrBadOrigin)

	admins, err := reg.Admins()
	require.NoError(t, err)
	require.Equal(t, []ethcommon.Address{alice}, admins)

	require.NoError(t, reg.SetAdmin(alice, false))
	require.ErrorIs(t, EnsureAdmin(Signed(alice), reg), ErrBadOrigin)

	signer, err := EnsureSigned(Signed(bob))
	require.NoError(t, err)
	require.Equal(t, bob, signer)
	_, err = EnsureSigned(RootOrigin())
	require.ErrorIs(t, err, ErrBadOrigin)
}
