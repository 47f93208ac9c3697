//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package binary implements the binary wire format used to exchange requests
// and results between the client and the Keystone NoSQL server.
package binary

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/internal/proto"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
)

// Writer is a binary protocol writer that serializes atomic values and
// composite objects into an internal buffer according to the protocol
// established between client and server.
//
// Writer implements the proto.Writer, io.Writer and io.ByteWriter interfaces.
type Writer struct {
	buf bytes.Buffer
}

var _ proto.Writer = (*Writer)(nil)

// NewWriter creates a binary protocol Writer with an empty buffer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write appends len(p) bytes from p to the buffer.
func (w *Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// WriteByte appends the specified byte to the buffer.
func (w *Writer) WriteByte(b byte) error {
	return w.buf.WriteByte(b)
}

// Size returns the number of bytes written so far.
func (w *Writer) Size() int {
	return w.buf.Len()
}

// Reset discards all written bytes, making the Writer reusable.
func (w *Writer) Reset() {
	w.buf.Reset()
}

// Bytes returns the written bytes. The slice is only valid until the next
// write or Reset.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteInt16 writes the specified int16 value as 2 bytes big endian.
func (w *Writer) WriteInt16(value int16) (int, error) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(value))
	return w.Write(b[:])
}

// WriteInt writes the specified int value as 4 bytes big endian.
func (w *Writer) WriteInt(value int) (int, error) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(value))
	return w.Write(b[:])
}

// WritePackedInt writes the specified int value using the packed integer
// encoding.
func (w *Writer) WritePackedInt(value int) (int, error) {
	var b [maxPackedInt32Length]byte
	return w.Write(appendSortedInt32(b[:0], int32(value)))
}

// WritePackedLong writes the specified int64 value using the packed integer
// encoding.
func (w *Writer) WritePackedLong(value int64) (int, error) {
	var b [maxPackedInt64Length]byte
	return w.Write(appendSortedInt64(b[:0], value))
}

// WriteDouble writes the specified float64 value as its IEEE-754 bit pattern
// in 8 bytes big endian.
func (w *Writer) WriteDouble(value float64) (int, error) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(value))
	return w.Write(b[:])
}

// WriteString writes the specified string value as a packed integer byte
// length followed by the UTF-8 bytes. A nil value is written as length -1.
func (w *Writer) WriteString(value *string) (n int, err error) {
	if value == nil {
		return w.WritePackedInt(-1)
	}

	n, err = w.WritePackedInt(len(*value))
	if err != nil || len(*value) == 0 {
		return
	}
	cnt, err := w.buf.WriteString(*value)
	n += cnt
	return
}

// WriteBoolean writes the specified bool value as a single byte.
// A true value is written as one and a false value is written as zero.
func (w *Writer) WriteBoolean(value bool) (int, error) {
	if value {
		return w.writeOneByte(1)
	}
	return w.writeOneByte(0)
}

// WriteMap writes the specified MapValue as a 4-byte byte size, a 4-byte
// entry count and the key/value pairs. Ordered maps are written in their
// insertion order, unordered maps in Go map iteration order.
func (w *Writer) WriteMap(value *types.MapValue) (n int, err error) {
	if value == nil {
		return 0, kverr.NewIllegalArgument("binary.Writer: nil MapValue")
	}

	content := NewWriter()
	if _, err = content.WriteInt(value.Len()); err != nil {
		return
	}

	if value.IsOrdered() {
		for _, k := range value.Keys() {
			v, _ := value.Get(k)
			if err = content.writeMapEntry(k, v); err != nil {
				return
			}
		}
	} else {
		for k, v := range value.Map() {
			if err = content.writeMapEntry(k, v); err != nil {
				return
			}
		}
	}

	return w.WriteByteArrayWithInt(content.Bytes())
}

func (w *Writer) writeMapEntry(key string, value types.FieldValue) error {
	if _, err := w.WriteString(&key); err != nil {
		return err
	}
	_, err := w.WriteFieldValue(value)
	return err
}

// WriteArray writes the specified slice of FieldValues as a 4-byte byte
// size, a 4-byte element count and the elements.
func (w *Writer) WriteArray(value []types.FieldValue) (n int, err error) {
	content := NewWriter()
	if _, err = content.WriteInt(len(value)); err != nil {
		return
	}

	for _, v := range value {
		if _, err = content.WriteFieldValue(v); err != nil {
			return
		}
	}

	return w.WriteByteArrayWithInt(content.Bytes())
}

// WriteByteArray writes the specified slice of bytes as a packed integer
// length followed by the bytes. A nil or empty slice is written as length -1.
func (w *Writer) WriteByteArray(value []byte) (n int, err error) {
	if len(value) == 0 {
		return w.WritePackedInt(-1)
	}

	n, err = w.WritePackedInt(len(value))
	if err != nil {
		return
	}
	cnt, err := w.Write(value)
	n += cnt
	return
}

// WriteByteArrayWithInt writes the specified slice of bytes as a 4-byte
// length followed by the bytes.
func (w *Writer) WriteByteArrayWithInt(value []byte) (n int, err error) {
	n, err = w.WriteInt(len(value))
	if err != nil {
		return
	}
	cnt, err := w.Write(value)
	n += cnt
	return
}

// WriteFieldRange writes the specified FieldRange to the buffer.
// A nil range is written as a single false byte.
func (w *Writer) WriteFieldRange(fieldRange *types.FieldRange) (n int, err error) {
	if fieldRange == nil {
		return w.WriteBoolean(false)
	}

	n, err = w.WriteBoolean(true)
	if err != nil {
		return
	}
	cnt, err := w.WriteString(&fieldRange.FieldPath)
	n += cnt
	if err != nil {
		return
	}

	for _, bound := range []struct {
		value     interface{}
		inclusive bool
	}{
		{fieldRange.Start, fieldRange.StartInclusive},
		{fieldRange.End, fieldRange.EndInclusive},
	} {
		if bound.value == nil {
			cnt, err = w.WriteBoolean(false)
			n += cnt
			if err != nil {
				return
			}
			continue
		}
		if cnt, err = w.WriteBoolean(true); err != nil {
			return n + cnt, err
		}
		n += cnt
		if cnt, err = w.WriteFieldValue(bound.value); err != nil {
			return n + cnt, err
		}
		n += cnt
		cnt, err = w.WriteBoolean(bound.inclusive)
		n += cnt
		if err != nil {
			return
		}
	}
	return
}

// WriteSerialVersion writes the specified serial version v to the buffer.
func (w *Writer) WriteSerialVersion(v int16) (int, error) {
	return w.WriteInt16(v)
}

// WriteOpCode writes the specified OpCode op as a single byte.
func (w *Writer) WriteOpCode(op proto.OpCode) (int, error) {
	return w.writeOneByte(byte(op))
}

// WriteTimeout writes the specified timeout in milliseconds as a packed
// integer.
func (w *Writer) WriteTimeout(timeout time.Duration) (int, error) {
	return w.WritePackedInt(int(timeout.Milliseconds()))
}

// WriteConsistency writes the specified consistency as a single byte.
// The server accepts zero-based values, which is types.Consistency minus one.
func (w *Writer) WriteConsistency(c types.Consistency) (int, error) {
	if c == types.Absolute || c == types.Eventual {
		return w.writeOneByte(byte(c) - 1)
	}
	return w.writeOneByte(byte(c))
}

// WriteTTL writes the specified TTL value as a packed long value followed by
// a unit byte. A nil TTL is written as value -1 with no unit byte.
func (w *Writer) WriteTTL(ttl *types.TimeToLive) (n int, err error) {
	if ttl == nil {
		return w.WritePackedLong(-1)
	}
	if ttl.Unit != types.Days && ttl.Unit != types.Hours {
		return 0, kverr.NewIllegalArgument("binary.Writer: invalid TTL unit %v", ttl.Unit)
	}

	if n, err = w.WritePackedLong(ttl.Value); err != nil {
		return
	}
	cnt, err := w.writeOneByte(byte(ttl.Unit))
	n += cnt
	return
}

// WriteVersion writes the specified row version to the buffer.
func (w *Writer) WriteVersion(version types.Version) (int, error) {
	if version == nil {
		return 0, kverr.NewIllegalArgument("binary.Writer: version cannot be nil")
	}
	return w.WriteByteArray(version)
}

// WriteFieldValue writes the specified field value, as a one-byte type tag
// followed by the type-specific encoding of the value.
func (w *Writer) WriteFieldValue(value types.FieldValue) (int, error) {
	switch v := value.(type) {
	case string:
		return w.writeStringValue(&v)

	case *string:
		return w.writeStringValue(v)

	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return w.writeIntegerValue(v)
		}
		return w.writeLongValue(int64(v))

	case int8:
		return w.writeIntegerValue(int(v))

	case int16:
		return w.writeIntegerValue(int(v))

	case int32:
		return w.writeIntegerValue(int(v))

	case int64:
		return w.writeLongValue(v)

	case uint:
		if v <= math.MaxInt32 {
			return w.writeIntegerValue(int(v))
		}
		if uint64(v) <= math.MaxInt64 {
			return w.writeLongValue(int64(v))
		}
		return w.writeUintAsNumber(uint64(v))

	case uint8:
		return w.writeIntegerValue(int(v))

	case uint16:
		return w.writeIntegerValue(int(v))

	case uint32:
		if v <= math.MaxInt32 {
			return w.writeIntegerValue(int(v))
		}
		return w.writeLongValue(int64(v))

	case uint64:
		if v <= math.MaxInt64 {
			return w.writeLongValue(int64(v))
		}
		return w.writeUintAsNumber(v)

	case float32:
		return w.writeDoubleValue(float64(v))

	case float64:
		return w.writeDoubleValue(v)

	case bool:
		return w.writeBooleanValue(v)

	case *types.Number:
		return w.writeNumberValue(v)

	case time.Time:
		return w.writeTimestampValue(v)

	case []byte:
		return w.writeBinaryValue(v)

	case *types.MapValue:
		return w.writeMapValue(v)

	case map[string]interface{}:
		return w.writeMapValue(types.NewMapValue(v))

	case []types.FieldValue:
		return w.writeArrayValue(v)

	case []interface{}:
		arr := make([]types.FieldValue, len(v))
		for i, e := range v {
			arr[i] = e
		}
		return w.writeArrayValue(arr)

	case json.Number:
		if iv, err := v.Int64(); err == nil {
			if iv >= math.MinInt32 && iv <= math.MaxInt32 {
				return w.writeIntegerValue(int(iv))
			}
			return w.writeLongValue(iv)
		}
		if num, err := types.ParseNumber(v.String()); err == nil {
			return w.writeNumberValue(num)
		}
		if fv, err := v.Float64(); err == nil {
			return w.writeDoubleValue(fv)
		}
		return 0, kverr.NewIllegalArgument("binary.Writer: cannot encode json.Number %q", v.String())

	case *types.EmptyValue:
		return w.writeOneByte(byte(types.Empty))

	case *types.NullValue:
		return w.writeOneByte(byte(types.Null))

	case *types.JSONNullValue:
		return w.writeOneByte(byte(types.JSONNull))

	case nil:
		return w.writeOneByte(byte(types.Null))

	default:
		return 0, kverr.NewIllegalArgument("binary.Writer: unsupported field value %v of type %[1]T", v)
	}
}

func (w *Writer) writeIntegerValue(value int) (n int, err error) {
	if n, err = w.writeOneByte(byte(types.Integer)); err != nil {
		return
	}
	cnt, err := w.WritePackedInt(value)
	n += cnt
	return
}

func (w *Writer) writeLongValue(value int64) (n int, err error) {
	if n, err = w.writeOneByte(byte(types.Long)); err != nil {
		return
	}
	cnt, err := w.WritePackedLong(value)
	n += cnt
	return
}

func (w *Writer) writeDoubleValue(value float64) (n int, err error) {
	if n, err = w.writeOneByte(byte(types.Double)); err != nil {
		return
	}
	cnt, err := w.WriteDouble(value)
	n += cnt
	return
}

func (w *Writer) writeStringValue(value *string) (n int, err error) {
	if n, err = w.writeOneByte(byte(types.String)); err != nil {
		return
	}
	cnt, err := w.WriteString(value)
	n += cnt
	return
}

func (w *Writer) writeBooleanValue(value bool) (n int, err error) {
	if n, err = w.writeOneByte(byte(types.Boolean)); err != nil {
		return
	}
	cnt, err := w.WriteBoolean(value)
	n += cnt
	return
}

func (w *Writer) writeMapValue(value *types.MapValue) (n int, err error) {
	if n, err = w.writeOneByte(byte(types.Map)); err != nil {
		return
	}
	cnt, err := w.WriteMap(value)
	n += cnt
	return
}

func (w *Writer) writeArrayValue(value []types.FieldValue) (n int, err error) {
	if n, err = w.writeOneByte(byte(types.Array)); err != nil {
		return
	}
	cnt, err := w.WriteArray(value)
	n += cnt
	return
}

// writeTimestampValue writes the timestamp as a packed long of milliseconds
// since the Unix epoch followed by a packed int of the UTC offset in minutes.
// The offset preserves the civil time of the original value; the instant and
// the offset round-trip exactly at millisecond granularity.
func (w *Writer) writeTimestampValue(value time.Time) (n int, err error) {
	if n, err = w.writeOneByte(byte(types.Timestamp)); err != nil {
		return
	}
	cnt, err := w.WritePackedLong(value.UnixMilli())
	n += cnt
	if err != nil {
		return
	}
	_, offsetSec := value.Zone()
	cnt, err = w.WritePackedInt(offsetSec / 60)
	n += cnt
	return
}

// writeNumberValue writes the decimal as a sign byte, a packed int scale and
// the coefficient digit string. The digits are never coerced through binary
// floating point.
func (w *Writer) writeNumberValue(value *types.Number) (n int, err error) {
	if value == nil {
		return 0, kverr.NewIllegalArgument("binary.Writer: nil Number")
	}
	if n, err = w.writeOneByte(byte(types.NumberType)); err != nil {
		return
	}

	var sign byte
	if value.IsNegative() {
		sign = 1
	}
	cnt, err := w.writeOneByte(sign)
	n += cnt
	if err != nil {
		return
	}
	cnt, err = w.WritePackedInt(value.Scale())
	n += cnt
	if err != nil {
		return
	}
	digits := value.Digits()
	cnt, err = w.WriteString(&digits)
	n += cnt
	return
}

func (w *Writer) writeUintAsNumber(value uint64) (int, error) {
	num, err := types.ParseNumber(strconv.FormatUint(value, 10))
	if err != nil {
		return 0, err
	}
	return w.writeNumberValue(num)
}

func (w *Writer) writeBinaryValue(value []byte) (n int, err error) {
	if n, err = w.writeOneByte(byte(types.Binary)); err != nil {
		return
	}
	cnt, err := w.WriteByteArray(value)
	n += cnt
	return
}

func (w *Writer) writeOneByte(b byte) (n int, err error) {
	err = w.WriteByte(b)
	if err == nil {
		n = 1
	}
	return
}
