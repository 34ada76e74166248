package models

import "fmt"

// Currency selects which of the two balances of a subscription an amount
// refers to: the native coin (XCB) or the payment token (CTN).
type Currency uint8

const (
	CurrencyNative Currency = iota
	CurrencyToken
)

func (c Currency) String() string {
	switch c {
	case CurrencyNative:
		return "xcb"
	case CurrencyToken:
		return "ctn"
	}
	return "unknown"
}

// ParseCurrency parses the textual currency representation used by the API.
func ParseCurrency(s string) (Currency, error) {
	switch s {
	case "xcb", "native":
		return CurrencyNative, nil
	case "ctn", "token":
		return CurrencyToken, nil
	}
	return 0, fmt.Errorf("unknown currency %q", s)
}
