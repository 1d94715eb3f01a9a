// Package domain defines the core ledger entities (projects, tickets, sell
// orders, settlement records), the event shapes emitted for observers, and
// the store/bus interfaces implemented by the infrastructure packages.
package domain

import "math/big"

// Amounts are integer quantities in the token's smallest unit (18 decimals,
// wei-scale), carried as *big.Int so ledger arithmetic cannot overflow.

// CopyAmount returns an independent copy of v, treating nil as zero.
func CopyAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// IsPositive reports whether v is a non-nil amount strictly greater than zero.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// AmountString renders v as a decimal string for event payloads and API
// responses. Wei-scale values exceed float64/JSON-number precision, so
// amounts always cross the wire as strings.
func AmountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
