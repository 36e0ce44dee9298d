package common

import (
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/state"
)

var (
	pausedPrefix = []byte("system/paused/")
	adminPrefix  = []byte("system/admin/")
	shutdownKey  = []byte("system/shutdown")
)

func pausedKey(module string) []byte {
	return append(append([]byte{}, pausedPrefix...), strings.ToLower(strings.TrimSpace(module))...)
}

func adminKey(addr ethcommon.Address) []byte {
	return append(append([]byte{}, adminPrefix...), addr.Bytes()...)
}

// Registry keeps the system-wide switches in chain state: per-module pause
// flags, the emergency shutdown flag and the admin account set.
type Registry struct {
	store *state.Store
}

func NewRegistry(store *state.Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) flag(key []byte) bool {
	if r == nil || r.store == nil {
		return false
	}
	var on bool
	ok, err := r.store.KVGet(key, &on)
	return err == nil && ok && on
}

func (r *Registry) setFlag(key []byte, on bool) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("system registry: state not configured")
	}
	if !on {
		return r.store.KVDelete(key)
	}
	return r.store.KVPut(key, true)
}

func (r *Registry) IsPaused(module string) bool { return r.flag(pausedKey(module)) }

func (r *Registry) SetPaused(module string, paused bool) error {
	if strings.TrimSpace(module) == "" {
		return fmt.Errorf("system registry: module name required")
	}
	return r.setFlag(pausedKey(module), paused)
}

func (r *Registry) IsShutdown() bool { return r.flag(shutdownKey) }

// SetShutdown flips the emergency shutdown switch. Shutdown is terminal for
// the liquidation flow: unsafe positions are settled rather than liquidated.
func (r *Registry) SetShutdown(shutdown bool) error { return r.setFlag(shutdownKey, shutdown) }

func (r *Registry) IsAdmin(addr ethcommon.Address) bool { return r.flag(adminKey(addr)) }

func (r *Registry) SetAdmin(addr ethcommon.Address, admin bool) error {
	if addr == (ethcommon.Address{}) {
		return fmt.Errorf("system registry: admin address required")
	}
	return r.setFlag(adminKey(addr), admin)
}

// Admins lists the admin accounts in key order.
func (r *Registry) Admins() ([]ethcommon.Address, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	var out []ethcommon.Address
	err := r.store.KVIterate(adminPrefix, nil, func(key, _ []byte) bool {
		out = append(out, ethcommon.BytesToAddress(key[len(adminPrefix):]))
		return true
	})
	return out, err
}
