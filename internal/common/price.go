// Package common holds the domain types shared by every package in vidar:
// fixed-point money, share quantities, sides, and symbol identifiers.
package common

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// priceScale is the number of 1/10000ths of a unit in a Price. All prices
// carry exactly four fractional digits.
const priceScale = 10000

var (
	ErrNegativePrice   = errors.New("common: price must be non-negative")
	ErrTooManyDecimals = errors.New("common: price has more than 4 fractional digits")
	ErrPriceOverflow   = errors.New("common: price overflows internal representation")
)

// Price is a non-negative fixed-point value with four decimal places,
// stored as a count of 1/10000 of a unit. All arithmetic on Price is exact
// integer arithmetic; float64 is never used for money.
type Price int64

// ParsePrice converts a decimal string (e.g. "10.0450") into a Price,
// rejecting overflow or more than four fractional digits, matching the
// ITCH event decoder's contract in spec.md §6.
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("common: invalid decimal %q: %w", s, err)
	}
	if d.Sign() < 0 {
		return 0, ErrNegativePrice
	}
	if d.Exponent() < -4 {
		return 0, ErrTooManyDecimals
	}
	scaled := d.Mul(decimal.New(priceScale, 0))
	if !scaled.IsInteger() {
		return 0, ErrTooManyDecimals
	}
	if !scaled.BigInt().IsInt64() {
		return 0, ErrPriceOverflow
	}
	return Price(scaled.BigInt().Int64()), nil
}

// String renders the price as a decimal with four fractional digits.
func (p Price) String() string {
	return decimal.New(int64(p), -4).StringFixed(4)
}

// Mid returns the midpoint of two prices, truncated to the internal tick.
func Mid(a, b Price) Price {
	return Price((int64(a) + int64(b)) / 2)
}

// Qty is a non-negative count of shares.
type Qty uint32

// SymbolId is a dense identifier assigned the first time a symbol is seen.
// See package symbol for the interning table.
type SymbolId uint32

// Side distinguishes resting bid (buy) interest from ask (sell) interest.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "BID"
	case Ask:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}
