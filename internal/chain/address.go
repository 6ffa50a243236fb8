package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies an account on the ledger: a user, a component
// (mint ladder, buyback engine, stake account) or a token contract.
type Address [20]byte

// ZeroAddress selects the native settlement currency when used as a
// token selector.
var ZeroAddress Address

// AddressOf derives a deterministic address from a label. Component
// accounts are labeled at build time ("dragonx:custody", "dragonx:stake:3")
// so wiring is reproducible across restarts.
func AddressOf(label string) Address {
	sum := sha256.Sum256([]byte(label))
	var a Address
	copy(a[:], sum[:20])
	return a
}

// ParseAddress decodes a 0x-prefixed or bare hex address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(s, "0x")
	var a Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("parse address %q: %w", s, err)
	}
	if len(raw) != len(a) {
		return a, fmt.Errorf("parse address: want %d bytes, got %d", len(a), len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return a.Hex()
}

// MarshalText makes addresses usable as JSON object values and keys.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
