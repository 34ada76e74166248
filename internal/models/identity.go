package models

import (
	"crypto/sha256"

	"github.com/core-coin/go-core/v2/common"
)

// DeriveAddress deterministically derives an account address from a label.
// Used for the well-known service accounts (coordinator, raffle, recovery)
// that are not backed by real key material.
func DeriveAddress(label string) common.Address {
	h := sha256.Sum256([]byte(label))
	return common.BytesToAddress(h[:common.AddressLength])
}
