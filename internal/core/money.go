// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// and formatting them for display. Amounts are kept at full decimal precision
// and only rounded when formatted.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the number of fractional digits shown to the user.
const DisplayPlaces = 2

// ParseAmount converts a decimal string to an exact, non-negative amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, so a
// comma is never a thousands separator: "1,000" is one. Exponent notation
// as produced by JSON encoders (1e2, 2.5E-1) is accepted with a dot only.
// Signs, thousands separators and empty input are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.345, nil (no rounding)
//	ParseAmount("1e2")    -> 100, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return parseExponent(s)
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := 0
	for _, part := range parts {
		for _, r := range part {
			if r < '0' || r > '9' {
				return decimal.Zero, ErrInvalidAmount
			}
			digits++
		}
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// parseExponent handles mantissa[eE][+-]exponent with an unsigned,
// dot-separated mantissa.
func parseExponent(s string) (decimal.Decimal, error) {
	if s[0] < '0' || s[0] > '9' || strings.Contains(s, ",") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount rounds d half away from zero to two decimals and prefixes
// the currency symbol, e.g. "$450.00".
func FormatAmount(d decimal.Decimal, symbol string) string {
	if d.IsNegative() {
		return "-" + symbol + d.Neg().StringFixed(DisplayPlaces)
	}
	return symbol + d.StringFixed(DisplayPlaces)
}
