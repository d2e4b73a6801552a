// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package fiscal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a monetary amount in integer centavos. Arithmetic and
// storage never touch floating point; the only float conversion happens
// at the JSON boundary, where amounts travel as plain numbers with two
// fixed decimal places.
type Money int64

// MoneyFromCents returns the amount for a raw centavo count.
func MoneyFromCents(cents int64) Money { return Money(cents) }

// Cents returns the raw centavo count.
func (m Money) Cents() int64 { return int64(m) }

// String returns the plain decimal representation with exactly two
// fractional digits (e.g. "150.00", "-3.07").
func (m Money) String() string {
	cents := int64(m)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// FormatBRL renders the amount for display in pt-BR convention:
// "R$ 1.234,56". Rendering always carries two fractional digits.
func (m Money) FormatBRL() string {
	cents := int64(m)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	integer := strconv.FormatInt(cents/100, 10)
	var grouped strings.Builder
	lead := len(integer) % 3
	if lead > 0 {
		grouped.WriteString(integer[:lead])
	}
	for i := lead; i < len(integer); i += 3 {
		if grouped.Len() > 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteString(integer[i : i+3])
	}

	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents%100)
}

// ParseBRL parses a pt-BR currency string ("1.234,56", "R$ 150,00")
// into an amount. Everything except digits, comma, period, and a
// leading minus is ignored; periods are thousands separators and the
// comma is the decimal mark.
func ParseBRL(s string) (Money, error) {
	negative := strings.Contains(s, "-")
	var cleaned strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			cleaned.WriteRune(r)
		}
	}
	normalized := strings.ReplaceAll(cleaned.String(), ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")
	if normalized == "" {
		return 0, fmt.Errorf("fiscal: no amount in %q", s)
	}
	m, err := parseDecimal(normalized)
	if err != nil {
		return 0, fmt.Errorf("fiscal: invalid amount %q: %w", s, err)
	}
	if negative {
		m = -m
	}
	return m, nil
}

// MarshalJSON emits the amount as a JSON number with two fixed decimal
// places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number (or a quoted decimal string, for
// lenience with hand-written payloads).
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := parseDecimal(s)
	if err != nil {
		return fmt.Errorf("fiscal: invalid money value %s: %w", data, err)
	}
	*m = parsed
	return nil
}

// parseDecimal converts a period-decimal numeric string to centavos.
// Plain forms ("150", "150.5", "150.00") are converted exactly;
// anything else (exponents, excess precision) goes through ParseFloat
// with round-half-away-from-zero at the second decimal.
func parseDecimal(s string) (Money, error) {
	negative := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")

	whole, frac, hasFrac := strings.Cut(body, ".")
	if isDigits(whole) && (!hasFrac || (isDigits(frac) && len(frac) <= 2)) {
		wholeValue, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, err
		}
		cents := wholeValue * 100
		if hasFrac {
			fracValue, err := strconv.ParseInt(frac, 10, 64)
			if err != nil {
				return 0, err
			}
			if len(frac) == 1 {
				fracValue *= 10
			}
			cents += fracValue
		}
		if negative {
			cents = -cents
		}
		return Money(cents), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return Money(math.Round(f * 100)), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
