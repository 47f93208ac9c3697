//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package binary

import (
	"testing"
)

const (
	v119     = 119
	v120     = 120
	max1     = 0xFF
	max2     = 0xFFFF
	max3     = 0xFFFFFF
	max4     = 0xFFFFFFFF
	max5     = 0xFFFFFFFFFF
	max6     = 0xFFFFFFFFFFFF
	max7     = 0xFFFFFFFFFFFFFF
	minInt32 = -1 << 31
	maxInt32 = 1<<31 - 1
	minInt64 = -1 << 63
	maxInt64 = 1<<63 - 1
)

func TestPackedInt32(t *testing.T) {
	tests := []struct {
		start, end int32
		want       int // expected number of bytes to be written
	}{
		// 1 byte
		{-v119, v120, 1},
		// 2 bytes
		{-max1 - v119 - 1, -v119 - 1, 2},
		{v120 + 1, max1 + v120 + 1, 2},
		// 3 bytes
		{-max2 - v119 - 1, -max2, 3},
		{-max1 - v119 - 99, -max1 - v119 - 2, 3},
		{max1 + v120 + 2, max1 + v120 + 99, 3},
		{max2, max2 + v120 + 1, 3},
		// 4 bytes
		{-max3 - v119 - 1, -max3, 4},
		{-max2 - v119 - 99, -max2 - v119 - 2, 4},
		{max2 + v120 + 2, max2 + v120 + 99, 4},
		{max3, max3 + v120 + 1, 4},
		// 5 bytes
		{minInt32, minInt32 + 99, 5},
		{maxInt32 - 99, maxInt32, 5},
	}

	for _, r := range tests {
		for v := r.start; ; v++ {
			buf := appendSortedInt32(nil, v)
			if len(buf) != r.want {
				t.Fatalf("appendSortedInt32(%d) wrote %d bytes; want %d", v, len(buf), r.want)
			}

			got, n, err := readSortedInt32(buf)
			if err != nil {
				t.Fatalf("readSortedInt32(%d) got error %v", v, err)
			}
			if got != v || n != len(buf) {
				t.Fatalf("readSortedInt32(%d) = (%d, %d); want (%d, %d)", v, got, n, v, len(buf))
			}

			if v == r.end {
				break
			}
		}
	}
}

func TestPackedInt64(t *testing.T) {
	tests := []struct {
		start, end int64
		want       int
	}{
		// 1 byte
		{-v119, v120, 1},
		// 2 bytes
		{-max1 - v119 - 1, -v119 - 1, 2},
		{v120 + 1, max1 + v120 + 1, 2},
		// 3 bytes
		{-max2 - v119 - 1, -max2, 3},
		{max2, max2 + v120 + 1, 3},
		// 4 bytes
		{-max3 - v119 - 1, -max3, 4},
		{max3, max3 + v120 + 1, 4},
		// 5 bytes
		{-max4 - v119 - 1, -max4, 5},
		{max4, max4 + v120 + 1, 5},
		// 6 bytes
		{-max5 - v119 - 1, -max5, 6},
		{max5, max5 + v120 + 1, 6},
		// 7 bytes
		{-max6 - v119 - 1, -max6, 7},
		{max6, max6 + v120 + 1, 7},
		// 8 bytes
		{-max7 - v119 - 1, -max7, 8},
		{max7, max7 + v120 + 1, 8},
		// 9 bytes
		{minInt64, minInt64 + 99, 9},
		{maxInt64 - 99, maxInt64, 9},
	}

	for _, r := range tests {
		for v := r.start; ; v++ {
			buf := appendSortedInt64(nil, v)
			if len(buf) != r.want {
				t.Fatalf("appendSortedInt64(%d) wrote %d bytes; want %d", v, len(buf), r.want)
			}

			got, n, err := readSortedInt64(buf)
			if err != nil {
				t.Fatalf("readSortedInt64(%d) got error %v", v, err)
			}
			if got != v || n != len(buf) {
				t.Fatalf("readSortedInt64(%d) = (%d, %d); want (%d, %d)", v, got, n, v, len(buf))
			}

			if v == r.end {
				break
			}
		}
	}
}

func TestPackedIntTruncated(t *testing.T) {
	values := []int64{0, -119, 120, -120, 121, -123456, 123456, minInt64, maxInt64}
	for _, v := range values {
		buf := appendSortedInt64(nil, v)
		for i := 0; i < len(buf); i++ {
			if _, _, err := readSortedInt64(buf[:i]); err == nil {
				t.Errorf("readSortedInt64(%d bytes of %d-byte encoding of %d) should have failed",
					i, len(buf), v)
			}
		}
	}
}

func TestPackedInt32Overflow(t *testing.T) {
	for _, v := range []int64{int64(maxInt32) + 1, int64(minInt32) - 1, maxInt64, minInt64} {
		buf := appendSortedInt64(nil, v)
		if _, _, err := readSortedInt32(buf); err == nil {
			t.Errorf("readSortedInt32(encoding of %d) should have failed", v)
		}
	}
}
