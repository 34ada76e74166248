package validation

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// ValidateAddress validates a blockchain address format (22 bytes, hex
// encoded, optional 0x prefix).
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	normalized := normalize(addr)
	if len(normalized) != 44 {
		return fmt.Errorf("invalid address length: expected 44 characters (without 0x), got %d", len(normalized))
	}

	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid hex address: %w", err)
	}

	return nil
}

// ValidateHash validates a 256-bit identifier (subscription id, key hash)
// in hex form, optional 0x prefix.
func ValidateHash(h string) error {
	if h == "" {
		return fmt.Errorf("hash cannot be empty")
	}

	normalized := normalize(h)
	if len(normalized) != 64 {
		return fmt.Errorf("invalid hash length: expected 64 characters (without 0x), got %d", len(normalized))
	}

	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid hex hash: %w", err)
	}

	return nil
}

// ParseAmount parses a non-negative integer amount in the smallest unit of
// account. Fractional and negative values are rejected.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount cannot be negative: %q", s)
	}
	return amount, nil
}

func normalize(s string) string {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return strings.ToLower(s)
}
