package common

import (
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var ErrBadOrigin = errors.New("bad origin")

// Origin identifies who dispatched a call. Root is used by genesis and by the
// node operator; signed origins carry the caller account; unsigned origins
// are permissionless calls validated on their own merits.
type Origin struct {
	Signer   ethcommon.Address
	Root     bool
	Unsigned bool
}

func RootOrigin() Origin { return Origin{Root: true} }

func Signed(addr ethcommon.Address) Origin { return Origin{Signer: addr} }

func UnsignedOrigin() Origin { return Origin{Unsigned: true} }

// AdminView reports whether an account may dispatch admin calls.
type AdminView interface {
	IsAdmin(addr ethcommon.Address) bool
}

// EnsureAdmin accepts root origins and signed origins held by an admin.
func EnsureAdmin(origin Origin, admins AdminView) error {
	if origin.Root {
		return nil
	}
	if origin.Unsigned || admins == nil {
		return ErrBadOrigin
	}
	if !admins.IsAdmin(origin.Signer) {
		return ErrBadOrigin
	}
	return nil
}

// EnsureSigned returns the signer of a signed origin.
func EnsureSigned(origin Origin) (ethcommon.Address, error) {
	if origin.Root || origin.Unsigned || origin.Signer == (ethcommon.Address{}) {
		return ethcommon.Address{}, ErrBadOrigin
	}
	return origin.Signer, nil
}
