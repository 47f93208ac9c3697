//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package types

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Number represents an arbitrary-precision decimal number.
//
// A Number is stored as a sign, an unscaled decimal coefficient and a scale:
// the numeric value is
//
//	(-1)^sign x coefficient x 10^(-scale)
//
// The coefficient digits and the scale are preserved exactly through
// encoding and decoding, including trailing zeros, so that data which must
// not be coerced through floating point round-trips bit-for-bit. A scale of
// zero denotes an integer; a negative scale denotes a value with trailing
// decimal exponent such as 1E+5.
//
// A Number is immutable once created.
type Number struct {
	// negative reports whether the value is negative.
	negative bool

	// digits holds the decimal digits of the unscaled coefficient with no
	// sign and no leading zeros. A zero value is represented as "0".
	digits string

	// scale is the number of digits to the right of the decimal point.
	// It may be negative.
	scale int
}

var errInvalidNumber = errors.New("types: invalid number literal")

// ParseNumber parses the string s as a decimal number, preserving the exact
// digit sequence and scale of the input. The accepted forms are an optional
// sign, a digit sequence with an optional fractional part, and an optional
// decimal exponent, for example "42", "-12.340" or "3.14E-2".
func ParseNumber(s string) (*Number, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return nil, errInvalidNumber
	}

	negative := false
	switch in[0] {
	case '+':
		in = in[1:]
	case '-':
		negative = true
		in = in[1:]
	}

	exp := 0
	if i := strings.IndexAny(in, "eE"); i >= 0 {
		e, err := strconv.Atoi(in[i+1:])
		if err != nil {
			return nil, errInvalidNumber
		}
		exp = e
		in = in[:i]
	}

	intPart := in
	fracPart := ""
	if i := strings.IndexByte(in, '.'); i >= 0 {
		intPart = in[:i]
		fracPart = in[i+1:]
	}

	if intPart == "" && fracPart == "" {
		return nil, errInvalidNumber
	}

	for _, part := range []string{intPart, fracPart} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return nil, errInvalidNumber
			}
		}
	}

	digits := strings.TrimLeft(intPart+fracPart, "0")
	scale := len(fracPart) - exp
	if digits == "" {
		// The value is zero. Zero has no meaningful sign or scale.
		return &Number{digits: "0"}, nil
	}

	return &Number{
		negative: negative,
		digits:   digits,
		scale:    scale,
	}, nil
}

// MustParseNumber is like ParseNumber but panics on invalid input.
// It simplifies initialization of constant-like values.
func MustParseNumber(s string) *Number {
	n, err := ParseNumber(s)
	if err != nil {
		panic(fmt.Sprintf("types: cannot parse number %q", s))
	}
	return n
}

// NewNumber creates a Number from its sign, coefficient digits and scale.
// It returns an error if digits is empty or contains non-digit characters.
func NewNumber(negative bool, digits string, scale int) (*Number, error) {
	if digits == "" {
		return nil, errInvalidNumber
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, errInvalidNumber
		}
	}

	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return &Number{digits: "0"}, nil
	}

	return &Number{
		negative: negative,
		digits:   trimmed,
		scale:    scale,
	}, nil
}

// IsNegative reports whether the number is negative.
func (n *Number) IsNegative() bool {
	return n.negative
}

// Digits returns the decimal digits of the unscaled coefficient.
func (n *Number) Digits() string {
	return n.digits
}

// Scale returns the number of digits to the right of the decimal point,
// which may be negative.
func (n *Number) Scale() int {
	return n.scale
}

// IsZero reports whether the number is zero.
func (n *Number) IsZero() bool {
	return n.digits == "0"
}

// Equal reports whether two numbers have the same sign, coefficient digits
// and scale. Values that are numerically equal but carry different scales,
// such as 1.5 and 1.50, are not Equal.
func (n *Number) Equal(other *Number) bool {
	if n == nil || other == nil {
		return n == other
	}

	return n.negative == other.negative &&
		n.digits == other.digits &&
		n.scale == other.scale
}

// Clone returns a copy of the number.
func (n *Number) Clone() *Number {
	c := *n
	return &c
}

// String returns a decimal representation of the number that parses back to
// an equal Number. Values with a non-positive scale render in plain integer
// or exponent form; values with a positive scale render with a decimal point.
//
// This implements the fmt.Stringer interface.
func (n *Number) String() string {
	var sb strings.Builder
	if n.negative {
		sb.WriteByte('-')
	}

	switch {
	case n.scale == 0:
		sb.WriteString(n.digits)

	case n.scale < 0:
		sb.WriteString(n.digits)
		sb.WriteString("E+")
		sb.WriteString(strconv.Itoa(-n.scale))

	case n.scale >= len(n.digits):
		sb.WriteString("0.")
		sb.WriteString(strings.Repeat("0", n.scale-len(n.digits)))
		sb.WriteString(n.digits)

	default:
		point := len(n.digits) - n.scale
		sb.WriteString(n.digits[:point])
		sb.WriteByte('.')
		sb.WriteString(n.digits[point:])
	}

	return sb.String()
}

// MarshalJSON returns the JSON encoding of the number.
//
// This implements the json.Marshaler interface.
func (n *Number) MarshalJSON() ([]byte, error) {
	return []byte(n.String()), nil
}

// Rat returns the exact value of the number as a big.Rat.
// This is used for numeric comparison across types; it never loses precision.
func (n *Number) Rat() *big.Rat {
	r := new(big.Rat)
	coeff, _ := new(big.Int).SetString(n.digits, 10)
	r.SetInt(coeff)
	if n.scale > 0 {
		denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.scale)), nil)
		r.Quo(r, new(big.Rat).SetInt(denom))
	} else if n.scale < 0 {
		mult := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.scale)), nil)
		r.Mul(r, new(big.Rat).SetInt(mult))
	}
	if n.negative {
		r.Neg(r)
	}
	return r
}

// Float64 returns the nearest float64 value to the number.
// It may lose precision; it is provided for interoperability only.
func (n *Number) Float64() float64 {
	f, _ := n.Rat().Float64()
	return f
}
