package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Canonical normalizes a place name for keying: uppercase, trimmed, with
// internal whitespace runs collapsed to single spaces. "belo  horizonte "
// and "Belo Horizonte" canonicalize identically.
func Canonical(name string) string {
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}

// PlaceKey derives the cache key for one place name.
func PlaceKey(name string) string {
	return hashHex(Canonical(name))
}

// PairKey derives an order-independent cache key for a pair of place names:
// PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	ca, cb := Canonical(a), Canonical(b)
	if ca > cb {
		ca, cb = cb, ca
	}
	return hashHex(ca + "|" + cb)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
