package ethaddr

import (
	"errors"
	"strings"
)

// ErrInvalidAddress is returned when an input is not a well-formed chain address.
var ErrInvalidAddress = errors.New("invalid chain address")

// Normalize validates addr and returns its canonical lowercase form.
// A valid address is 0x-prefixed, 40 hex characters.
func Normalize(addr string) (string, error) {
	if !IsValid(addr) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(addr), nil
}

// NormalizeWallet canonicalizes a wallet address for user identity.
// Hex addresses are lowercased; anything else keeps its original casing
// (external collaborators may register non-hex identifiers).
func NormalizeWallet(addr string) string {
	if IsValid(addr) {
		return strings.ToLower(addr)
	}
	return addr
}

// IsValid reports whether addr is a well-formed 20-byte hex address.
func IsValid(addr string) bool {
	if len(addr) != 42 {
		return false
	}
	if addr[0] != '0' || (addr[1] != 'x' && addr[1] != 'X') {
		return false
	}
	for i := 2; i < len(addr); i++ {
		if !isHexDigit(addr[i]) {
			return false
		}
	}
	return true
}

// IsZero reports whether addr is the zero address (any casing).
func IsZero(addr string) bool {
	if !IsValid(addr) {
		return false
	}
	for i := 2; i < len(addr); i++ {
		if addr[i] != '0' {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	}
	return false
}
