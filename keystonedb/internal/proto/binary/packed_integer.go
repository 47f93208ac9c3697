//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// This file implements the packed sorted integer encoding used for all
// variable-length integers on the wire.
//
// Values in the inclusive range [-119,120] are stored in a single byte as
// value+127. For values outside that range the first byte encodes the number
// of additional bytes: 0x08-n for negative values and 0xF7+n for positive
// ones, chosen so that encoded values sort byte-by-byte in numeric order.
// The additional bytes hold value+119 (negative) or value-121 (positive) as
// a big endian integer with the non-significant leading bytes omitted.

package binary

import (
	"errors"
	"math"
)

const (
	// The maximum number of bytes needed to store a signed 32-bit integer.
	maxPackedInt32Length = 5
	// The maximum number of bytes needed to store a signed 64-bit integer.
	maxPackedInt64Length = 9
)

var (
	errPackedIntTruncated = errors.New("packed integer is truncated")
	errPackedIntOverflow  = errors.New("packed integer overflows the target type")
)

// appendSortedInt64 appends the packed encoding of value to buf and returns
// the extended slice.
func appendSortedInt64(buf []byte, value int64) []byte {
	if value >= -119 && value <= 120 {
		return append(buf, byte(value+127))
	}

	negative := value < 0
	if negative {
		value += 119
	} else {
		value -= 121
	}

	// Lay the adjusted value out big endian, then drop the leading bytes
	// that carry no information: 0xFF for negative values, 0x00 for
	// positive ones. At least one byte always remains.
	var be [8]byte
	for i := 7; i >= 0; i-- {
		be[i] = byte(value)
		value >>= 8
	}

	skip := byte(0x00)
	if negative {
		skip = 0xFF
	}
	first := 0
	for first < 7 && be[first] == skip {
		first++
	}

	n := 8 - first
	if negative {
		buf = append(buf, byte(0x08-n))
	} else {
		buf = append(buf, byte(0xF7+n))
	}
	return append(buf, be[first:]...)
}

// appendSortedInt32 appends the packed encoding of value to buf and returns
// the extended slice. The encoding is identical to the int64 form.
func appendSortedInt32(buf []byte, value int32) []byte {
	return appendSortedInt64(buf, int64(value))
}

// readSortedInt64 decodes a packed integer from the start of buf.
// It returns the value and the number of bytes consumed.
func readSortedInt64(buf []byte) (int64, int, error) {
	if len(buf) == 0 {
		return 0, 0, errPackedIntTruncated
	}

	b1 := int(buf[0])
	var byteLen int
	var negative bool
	switch {
	case b1 < 0x08:
		byteLen = 0x08 - b1
		negative = true
	case b1 > 0xF7:
		byteLen = b1 - 0xF7
	default:
		return int64(b1 - 127), 1, nil
	}

	if byteLen > maxPackedInt64Length-1 {
		return 0, 0, errPackedIntOverflow
	}
	if len(buf) < 1+byteLen {
		return 0, 0, errPackedIntTruncated
	}

	value := int64(0)
	if negative {
		value = ^int64(0)
	}
	for i := 1; i <= byteLen; i++ {
		value = value<<8 | int64(buf[i])
	}

	if negative {
		value -= 119
	} else {
		value += 121
	}
	return value, 1 + byteLen, nil
}

// readSortedInt32 decodes a packed integer from the start of buf, rejecting
// encodings that do not fit in 32 bits.
func readSortedInt32(buf []byte) (int32, int, error) {
	value, n, err := readSortedInt64(buf)
	if err != nil {
		return 0, 0, err
	}
	if n > maxPackedInt32Length {
		return 0, 0, errPackedIntOverflow
	}
	if value < math.MinInt32 || value > math.MaxInt32 {
		return 0, 0, errPackedIntOverflow
	}
	return int32(value), n, nil
}
