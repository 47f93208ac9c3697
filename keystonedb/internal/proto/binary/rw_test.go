//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package binary

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
	"github.com/stretchr/testify/suite"
)

type ReadWriteTestSuite struct {
	suite.Suite
}

func TestReadWrite(t *testing.T) {
	suite.Run(t, &ReadWriteTestSuite{})
}

var packedIntTests = []int{
	0, -123456789, 123456789,
	-v119, v120,
	-max1 - v119 - 1, -v119 - 1,
	v120 + 1, max1 + v120 + 1,
	minInt32, maxInt32,
}

var packedLongTests = []int64{
	0, -1234567890123456789, 1234567890123456789,
	-v119, v120,
	-max4 - v119 - 1, max4 + v120 + 1,
	minInt64, maxInt64,
}

var byteArrayTests = [][]byte{
	nil,
	{0},
	{0, 0},
	genBytes(1024),
}

var stringTests = []string{
	"",
	" ",
	"nil",
	"null",
	genString(1024),
	"☺☻☹",
	"日a本b語ç日ð本Ê語þ日¥本¼語i日©",
	"你好, 世界",
}

func (suite *ReadWriteTestSuite) TestReadWriteByte() {
	w := NewWriter()
	tests := []byte{0, 1, math.MaxUint8}
	for _, v := range tests {
		w.WriteByte(v)
	}

	r := NewReader(w.Bytes())
	for _, in := range tests {
		out, err := r.ReadByte()
		if suite.NoErrorf(err, "ReadByte() got error %v", err) {
			suite.Equalf(in, out, "ReadByte() got unexpected value")
		}
	}

	_, err := r.ReadByte()
	suite.Truef(kverr.IsBadProtocol(err), "ReadByte() at end of buffer got unexpected error %v", err)
}

func (suite *ReadWriteTestSuite) TestReadWriteInt16() {
	w := NewWriter()
	tests := []int16{0, math.MinInt16, math.MaxInt16}
	for _, v := range tests {
		w.WriteInt16(v)
	}

	r := NewReader(w.Bytes())
	for _, in := range tests {
		out, err := r.ReadInt16()
		if suite.NoErrorf(err, "ReadInt16() got error %v", err) {
			suite.Equalf(in, out, "ReadInt16() got unexpected value")
		}
	}

	_, err := r.ReadInt16()
	suite.Truef(kverr.IsBadProtocol(err), "ReadInt16() at end of buffer got unexpected error %v", err)
}

func (suite *ReadWriteTestSuite) TestReadWriteInt() {
	w := NewWriter()
	tests := []int{0, minInt32, maxInt32}
	for _, v := range tests {
		w.WriteInt(v)
	}

	r := NewReader(w.Bytes())
	for _, in := range tests {
		out, err := r.ReadInt()
		if suite.NoErrorf(err, "ReadInt() got error %v", err) {
			suite.Equalf(in, out, "ReadInt() got unexpected value")
		}
	}

	_, err := r.ReadInt()
	suite.Truef(kverr.IsBadProtocol(err), "ReadInt() at end of buffer got unexpected error %v", err)
}

func (suite *ReadWriteTestSuite) TestReadWritePackedInt() {
	w := NewWriter()
	for _, v := range packedIntTests {
		w.WritePackedInt(v)
	}

	r := NewReader(w.Bytes())
	for _, in := range packedIntTests {
		out, err := r.ReadPackedInt()
		if suite.NoErrorf(err, "ReadPackedInt() got error %v", err) {
			suite.Equalf(in, out, "ReadPackedInt() got unexpected value")
		}
	}

	_, err := r.ReadPackedInt()
	suite.Truef(kverr.IsBadProtocol(err), "ReadPackedInt() at end of buffer got unexpected error %v", err)
}

func (suite *ReadWriteTestSuite) TestReadWritePackedLong() {
	w := NewWriter()
	for _, v := range packedLongTests {
		w.WritePackedLong(v)
	}

	r := NewReader(w.Bytes())
	for _, in := range packedLongTests {
		out, err := r.ReadPackedLong()
		if suite.NoErrorf(err, "ReadPackedLong() got error %v", err) {
			suite.Equalf(in, out, "ReadPackedLong() got unexpected value")
		}
	}

	_, err := r.ReadPackedLong()
	suite.Truef(kverr.IsBadProtocol(err), "ReadPackedLong() at end of buffer got unexpected error %v", err)
}

func (suite *ReadWriteTestSuite) TestReadWriteDouble() {
	w := NewWriter()
	tests := []float64{math.SmallestNonzeroFloat64, math.MaxFloat64,
		0.0, -1.1231421132132132, 132124.132132132132}
	for _, v := range tests {
		w.WriteDouble(v)
	}

	r := NewReader(w.Bytes())
	for _, in := range tests {
		out, err := r.ReadDouble()
		if suite.NoErrorf(err, "ReadDouble() got error %v", err) {
			suite.Equalf(in, out, "ReadDouble() got unexpected value")
		}
	}
}

func (suite *ReadWriteTestSuite) TestReadWriteString() {
	w := NewWriter()
	for _, v := range stringTests {
		s := v
		w.WriteString(&s)
	}
	w.WriteString(nil)

	r := NewReader(w.Bytes())
	for _, in := range stringTests {
		out, err := r.ReadString()
		if suite.NoErrorf(err, "ReadString() got error %v", err) {
			suite.Equalf(in, *out, "ReadString() got unexpected value")
		}
	}

	out, err := r.ReadString()
	if suite.NoErrorf(err, "ReadString() got error %v", err) {
		suite.Nilf(out, "ReadString() of a nil string got unexpected value")
	}
}

func (suite *ReadWriteTestSuite) TestReadWriteBoolean() {
	w := NewWriter()
	tests := []bool{true, false}
	for _, v := range tests {
		w.WriteBoolean(v)
	}

	// A zero byte is parsed as false, any non-zero byte as true.
	w.WriteByte(0)
	w.WriteByte(1)
	w.WriteByte(2)
	tests = append(tests, []bool{false, true, true}...)

	r := NewReader(w.Bytes())
	for _, in := range tests {
		out, err := r.ReadBoolean()
		if suite.NoErrorf(err, "ReadBoolean() got error %v", err) {
			suite.Equalf(in, out, "ReadBoolean() got unexpected value")
		}
	}
}

func (suite *ReadWriteTestSuite) TestReadWriteByteArray() {
	w := NewWriter()
	for _, v := range byteArrayTests {
		w.WriteByteArray(v)
	}

	// Invalid length of byte array.
	w.WritePackedInt(-2)

	r := NewReader(w.Bytes())
	for _, in := range byteArrayTests {
		out, err := r.ReadByteArray()
		if suite.NoErrorf(err, "ReadByteArray() got error %v", err) {
			suite.Equalf(in, out, "ReadByteArray() got unexpected value")
		}
	}

	_, err := r.ReadByteArray()
	suite.Truef(kverr.IsBadProtocol(err), "ReadByteArray() of length -2 got unexpected error %v", err)
}

func (suite *ReadWriteTestSuite) TestReadWriteByteArrayWithInt() {
	w := NewWriter()
	tests := byteArrayTests[1:]
	for _, v := range tests {
		w.WriteByteArrayWithInt(v)
	}

	r := NewReader(w.Bytes())
	for _, in := range tests {
		out, err := r.ReadByteArrayWithInt()
		if suite.NoErrorf(err, "ReadByteArrayWithInt() got error %v", err) {
			suite.Equalf(in, out, "ReadByteArrayWithInt() got unexpected value")
		}
	}
}

func (suite *ReadWriteTestSuite) TestReadWriteVersion() {
	w := NewWriter()
	tests := byteArrayTests[1:]
	for _, v := range tests {
		w.WriteVersion(types.Version(v))
	}

	r := NewReader(w.Bytes())
	for _, in := range tests {
		out, err := r.ReadVersion()
		if suite.NoErrorf(err, "ReadVersion() got error %v", err) {
			suite.Equalf(types.Version(in), out, "ReadVersion() got unexpected value")
		}
	}
}

func (suite *ReadWriteTestSuite) TestReadWriteFieldValue() {
	t := suite.T()

	t.Run("BinaryValue", func(t *testing.T) {
		for _, v := range byteArrayTests {
			suite.roundTrip(v)
		}
	})

	t.Run("BooleanValue", func(t *testing.T) {
		for _, v := range []bool{true, false} {
			suite.roundTrip(v)
		}
	})

	t.Run("IntegerValue", func(t *testing.T) {
		for _, v := range packedIntTests {
			suite.roundTrip(v)
		}
	})

	t.Run("LongValue", func(t *testing.T) {
		for _, v := range packedLongTests {
			suite.roundTrip(v)
		}
	})

	t.Run("DoubleValue", func(t *testing.T) {
		for _, v := range []float64{math.SmallestNonzeroFloat64, math.MaxFloat64,
			0.0, -1.1231421132132132, 132124.132132132132} {
			suite.roundTrip(v)
		}
	})

	t.Run("StringValue", func(t *testing.T) {
		for _, v := range stringTests {
			suite.roundTrip(v)
		}
	})

	t.Run("ArrayValue", func(t *testing.T) {
		arrayTests := [][]types.FieldValue{
			{1, 2, 3, 4},
			{int64(1), int64(2), int64(3), int64(4)},
			{"a", "b", "c", "d"},
			{},
		}
		for _, v := range arrayTests {
			suite.roundTrip(v)
		}
	})

	t.Run("MapValue", func(t *testing.T) {
		mv := &types.MapValue{}
		mv.Put("int", 1).Put("long", int64(1))
		mv.Put("float64", float64(3.14))
		mv.Put("string", "Keystone NoSQL Database")
		mv.Put("bytes", []byte{1, 2, 3, 4, 5, 6, 7, 8})
		suite.roundTrip(mv)
	})

	t.Run("SpecialValues", func(t *testing.T) {
		suite.roundTrip(types.NullValueInstance)
		suite.roundTrip(types.JSONNullValueInstance)
		suite.roundTrip(types.EmptyValueInstance)
	})
}

func (suite *ReadWriteTestSuite) TestReadWriteNumberValue() {
	tests := []string{
		"0",
		"1",
		"-1",
		"1.50",
		"-1.50",
		"0.000000000000000000001",
		"123456789012345678901234567890.123456789",
		"-123456789012345678901234567890",
		"9.223372036854775808", // does not fit in an int64 coefficient scale
		"1E+5",
	}
	for _, s := range tests {
		in := types.MustParseNumber(s)
		w := NewWriter()
		_, err := w.WriteFieldValue(in)
		if !suite.NoErrorf(err, "WriteFieldValue(%s) got error %v", s, err) {
			continue
		}

		out, err := NewReader(w.Bytes()).ReadFieldValue()
		if !suite.NoErrorf(err, "ReadFieldValue(%s) got error %v", s, err) {
			continue
		}

		num, ok := out.(*types.Number)
		if suite.Truef(ok, "ReadFieldValue(%s) got %T; want *types.Number", s, out) {
			suite.Truef(in.Equal(num), "ReadFieldValue(%s) got %s", s, num.String())
		}
	}
}

func (suite *ReadWriteTestSuite) TestReadWriteTimestampValue() {
	tests := []time.Time{
		time.UnixMilli(0).UTC(),
		time.UnixMilli(-1).UTC(),
		time.Date(2025, time.March, 14, 9, 26, 53, 589_000_000, time.UTC),
		time.Date(1969, time.December, 31, 23, 59, 59, 999_000_000, time.UTC),
		time.Date(2025, time.March, 14, 9, 26, 53, 0, time.FixedZone("", 5*3600+30*60)),
		time.Date(2025, time.March, 14, 9, 26, 53, 0, time.FixedZone("", -8*3600)),
	}
	for _, in := range tests {
		w := NewWriter()
		_, err := w.WriteFieldValue(in)
		if !suite.NoErrorf(err, "WriteFieldValue(%v) got error %v", in, err) {
			continue
		}

		out, err := NewReader(w.Bytes()).ReadFieldValue()
		if !suite.NoErrorf(err, "ReadFieldValue(%v) got error %v", in, err) {
			continue
		}

		got, ok := out.(time.Time)
		if !suite.Truef(ok, "ReadFieldValue(%v) got %T; want time.Time", in, out) {
			continue
		}
		suite.Truef(in.Equal(got), "ReadFieldValue(%v) decoded a different instant %v", in, got)

		_, inOffset := in.Zone()
		_, gotOffset := got.Zone()
		suite.Equalf(inOffset, gotOffset, "ReadFieldValue(%v) lost the UTC offset", in)
	}
}

// Map entries must come back in the order the bytes carry them.
func (suite *ReadWriteTestSuite) TestMapOrderPreserved() {
	keys := []string{"zulu", "alpha", "mike", "bravo", "yankee"}
	in := types.NewOrderedMapValue()
	for i, k := range keys {
		in.Put(k, i)
	}

	w := NewWriter()
	_, err := w.WriteMap(in)
	suite.Require().NoErrorf(err, "WriteMap() got error %v", err)

	out, err := NewReader(w.Bytes()).ReadMap()
	suite.Require().NoErrorf(err, "ReadMap() got error %v", err)
	suite.Equalf(keys, out.Keys(), "ReadMap() did not preserve entry order")
}

// Cutting an encoded value at any byte boundary must produce an error,
// not a bogus value or a panic.
func (suite *ReadWriteTestSuite) TestTruncatedFieldValue() {
	mv := &types.MapValue{}
	mv.Put("id", 12345).
		Put("name", "truncation probe").
		Put("data", genBytes(64)).
		Put("nested", []types.FieldValue{int64(1), "two", 3.0})

	w := NewWriter()
	_, err := w.WriteFieldValue(mv)
	suite.Require().NoErrorf(err, "WriteFieldValue() got error %v", err)

	full := w.Bytes()
	for i := 0; i < len(full); i++ {
		_, err := NewReader(full[:i]).ReadFieldValue()
		suite.Truef(kverr.IsBadProtocol(err),
			"ReadFieldValue() of %d of %d bytes got %v; want BadProtocolMessage", i, len(full), err)
	}
}

func (suite *ReadWriteTestSuite) TestUnknownTypeTag() {
	for _, tag := range []byte{13, 99, 255} {
		_, err := NewReader([]byte{tag, 0, 0}).ReadFieldValue()
		suite.Truef(kverr.IsBadProtocol(err),
			"ReadFieldValue() with type tag %d got %v; want BadProtocolMessage", tag, err)
	}
}

// The declared byte size of a map must match the bytes its entries occupy.
func (suite *ReadWriteTestSuite) TestMapSizeMismatch() {
	mv := &types.MapValue{}
	mv.Put("k", 1)

	w := NewWriter()
	_, err := w.WriteFieldValue(mv)
	suite.Require().NoErrorf(err, "WriteFieldValue() got error %v", err)

	// Grow the declared byte size at offset 1 and pad the buffer so the
	// size still fits, leaving the entry bytes inconsistent.
	buf := append([]byte{}, w.Bytes()...)
	buf[4]++
	buf = append(buf, 0)

	_, err = NewReader(buf).ReadFieldValue()
	suite.Truef(kverr.IsBadProtocol(err),
		"ReadFieldValue() with inconsistent map size got %v; want BadProtocolMessage", err)
}

func genBytes(n int) []byte {
	buf := make([]byte, n)
	rand.Read(buf)
	return buf
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func genString(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

func (suite *ReadWriteTestSuite) roundTrip(in types.FieldValue) {
	w := NewWriter()
	_, err := w.WriteFieldValue(in)
	if !suite.NoErrorf(err, "WriteFieldValue(value=%v, type=%[1]T) got error %v", in, err) {
		return
	}

	out, err := NewReader(w.Bytes()).ReadFieldValue()
	if !suite.NoErrorf(err, "ReadFieldValue(value=%v, type=%[1]T) got error %v", in, err) {
		return
	}

	if inMV, ok := in.(*types.MapValue); ok {
		outMV, ok := out.(*types.MapValue)
		if suite.Truef(ok, "ReadFieldValue() got %#[1]v (type %[1]T); want %#[2]v (type %[2]T)", out, in) {
			suite.Truef(reflect.DeepEqual(inMV.Map(), outMV.Map()),
				"ReadFieldValue() got %#[1]v (type %[1]T); want %#[2]v (type %[2]T)", out, in)
		}
		return
	}

	suite.Truef(reflect.DeepEqual(in, out),
		"ReadFieldValue() got %#[1]v (type %[1]T); want %#[2]v (type %[2]T)", out, in)
}
