//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package binary

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/internal/proto"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
)

// Reader is a binary protocol reader that decodes atomic values and
// composite objects from a byte buffer.
//
// Every read is bounds checked against the buffer. Truncated input, unknown
// type tags and inconsistent declared lengths are reported as
// BadProtocolMessage errors; malformed data never causes a panic and never
// yields a partially decoded value as success.
type Reader struct {
	buf []byte
	off int
}

var _ proto.Reader = (*Reader)(nil)

// NewReader creates a Reader that decodes from buf. The Reader does not copy
// buf; the caller must not modify it while reading.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the current read position in the buffer.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// need checks that at least n more bytes are available.
func (r *Reader) need(n int) error {
	if n < 0 || r.Remaining() < n {
		return kverr.NewBadProtocol("unexpected end of message at offset %d, need %d more bytes", r.off, n)
	}
	return nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

// ReadBoolean reads a single byte as a bool. Any non-zero value is true.
func (r *Reader) ReadBoolean() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadInt16 reads a 2-byte big endian int16 value.
func (r *Reader) ReadInt16() (int16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := int16(binary.BigEndian.Uint16(r.buf[r.off:]))
	r.off += 2
	return v, nil
}

// ReadInt reads a 4-byte big endian int value.
func (r *Reader) ReadInt() (int, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return int(v), nil
}

// ReadPackedInt reads a packed integer value that must fit in 32 bits.
func (r *Reader) ReadPackedInt() (int, error) {
	v, n, err := readSortedInt32(r.buf[r.off:])
	if err != nil {
		return 0, kverr.NewBadProtocol("invalid packed int at offset %d: %v", r.off, err)
	}
	r.off += n
	return int(v), nil
}

// ReadPackedLong reads a packed integer value as an int64.
func (r *Reader) ReadPackedLong() (int64, error) {
	v, n, err := readSortedInt64(r.buf[r.off:])
	if err != nil {
		return 0, kverr.NewBadProtocol("invalid packed long at offset %d: %v", r.off, err)
	}
	r.off += n
	return v, nil
}

// ReadDouble reads an 8-byte big endian IEEE-754 float64 value.
func (r *Reader) ReadDouble() (float64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	bits := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return math.Float64frombits(bits), nil
}

// ReadString reads a packed integer byte length followed by that many UTF-8
// bytes. A length of -1 yields a nil pointer.
func (r *Reader) ReadString() (*string, error) {
	byteLen, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	switch {
	case byteLen < -1:
		return nil, kverr.NewBadProtocol("invalid string length %d at offset %d", byteLen, r.off)
	case byteLen == -1:
		return nil, nil
	case byteLen == 0:
		s := ""
		return &s, nil
	}

	if err := r.need(byteLen); err != nil {
		return nil, err
	}
	s := string(r.buf[r.off : r.off+byteLen])
	r.off += byteLen
	return &s, nil
}

// ReadNonNilString is like ReadString but rejects a nil string.
func (r *Reader) ReadNonNilString() (string, error) {
	s, err := r.ReadString()
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", kverr.NewBadProtocol("unexpected nil string at offset %d", r.off)
	}
	return *s, nil
}

// ReadByteArray reads a packed integer length followed by that many bytes.
// A length of -1 yields a nil slice.
func (r *Reader) ReadByteArray() ([]byte, error) {
	byteLen, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	switch {
	case byteLen < -1:
		return nil, kverr.NewBadProtocol("invalid byte array length %d at offset %d", byteLen, r.off)
	case byteLen == -1:
		return nil, nil
	case byteLen == 0:
		return []byte{}, nil
	}

	if err := r.need(byteLen); err != nil {
		return nil, err
	}
	b := make([]byte, byteLen)
	copy(b, r.buf[r.off:])
	r.off += byteLen
	return b, nil
}

// ReadByteArrayWithInt reads a 4-byte length followed by that many bytes.
func (r *Reader) ReadByteArrayWithInt() ([]byte, error) {
	byteLen, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	if byteLen < 0 {
		return nil, kverr.NewBadProtocol("invalid byte array length %d at offset %d", byteLen, r.off)
	}
	if err := r.need(byteLen); err != nil {
		return nil, err
	}
	b := make([]byte, byteLen)
	copy(b, r.buf[r.off:])
	r.off += byteLen
	return b, nil
}

// ReadVersion reads a row version.
func (r *Reader) ReadVersion() (types.Version, error) {
	b, err := r.ReadByteArray()
	if err != nil {
		return nil, err
	}
	return types.Version(b), nil
}

// ReadFieldValue reads a one-byte type tag followed by the type-specific
// encoding of the value.
func (r *Reader) ReadFieldValue() (types.FieldValue, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch types.DbType(tag) {
	case types.Array:
		return r.readArrayBody()

	case types.Binary:
		return r.ReadByteArray()

	case types.Boolean:
		return r.ReadBoolean()

	case types.Double:
		return r.ReadDouble()

	case types.Integer:
		return r.ReadPackedInt()

	case types.Long:
		return r.ReadPackedLong()

	case types.Map:
		return r.readMapBody()

	case types.String:
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		if s == nil {
			return types.NullValueInstance, nil
		}
		return *s, nil

	case types.Timestamp:
		return r.readTimestampBody()

	case types.NumberType:
		return r.readNumberBody()

	case types.JSONNull:
		return types.JSONNullValueInstance, nil

	case types.Null:
		return types.NullValueInstance, nil

	case types.Empty:
		return types.EmptyValueInstance, nil

	default:
		return nil, kverr.NewBadProtocol("unknown field value type tag %d at offset %d", tag, r.off)
	}
}

// ReadMap reads a field value that must be a map.
func (r *Reader) ReadMap() (*types.MapValue, error) {
	return r.readMapBody()
}

// readMapBody reads a 4-byte byte size, a 4-byte entry count and the
// key/value pairs. The declared byte size is validated against the bytes
// actually consumed. Entries retain the order in which the server sent them.
func (r *Reader) readMapBody() (*types.MapValue, error) {
	byteSize, start, count, err := r.readCompositeHeader()
	if err != nil {
		return nil, err
	}

	m := types.NewOrderedMapValue()
	for i := 0; i < count; i++ {
		k, err := r.ReadNonNilString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadFieldValue()
		if err != nil {
			return nil, err
		}
		m.Put(k, v)
	}

	if consumed := r.off - start; consumed != byteSize {
		return nil, kverr.NewBadProtocol("map declared %d bytes but encoded %d", byteSize, consumed)
	}
	return m, nil
}

// readArrayBody reads a 4-byte byte size, a 4-byte element count and the
// elements, validating the declared byte size.
func (r *Reader) readArrayBody() ([]types.FieldValue, error) {
	byteSize, start, count, err := r.readCompositeHeader()
	if err != nil {
		return nil, err
	}

	arr := make([]types.FieldValue, 0, count)
	for i := 0; i < count; i++ {
		v, err := r.ReadFieldValue()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}

	if consumed := r.off - start; consumed != byteSize {
		return nil, kverr.NewBadProtocol("array declared %d bytes but encoded %d", byteSize, consumed)
	}
	return arr, nil
}

// readCompositeHeader reads and validates the byte size and element count
// that prefix maps and arrays. It returns the declared byte size, the offset
// the size is measured from and the element count.
func (r *Reader) readCompositeHeader() (byteSize, start, count int, err error) {
	byteSize, err = r.ReadInt()
	if err != nil {
		return
	}
	if byteSize < 4 || byteSize > r.Remaining() {
		err = kverr.NewBadProtocol("invalid composite value size %d at offset %d", byteSize, r.off)
		return
	}

	start = r.off
	count, err = r.ReadInt()
	if err != nil {
		return
	}
	if count < 0 {
		err = kverr.NewBadProtocol("invalid composite element count %d at offset %d", count, r.off)
	}
	return
}

// readTimestampBody reads a packed long of milliseconds since the Unix epoch
// and a packed int of the UTC offset in minutes.
func (r *Reader) readTimestampBody() (time.Time, error) {
	ms, err := r.ReadPackedLong()
	if err != nil {
		return time.Time{}, err
	}
	offsetMin, err := r.ReadPackedInt()
	if err != nil {
		return time.Time{}, err
	}

	t := time.UnixMilli(ms)
	if offsetMin == 0 {
		return t.UTC(), nil
	}
	return t.In(time.FixedZone("", offsetMin*60)), nil
}

// readNumberBody reads a sign byte, a packed int scale and the coefficient
// digit string of a decimal value.
func (r *Reader) readNumberBody() (*types.Number, error) {
	sign, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if sign > 1 {
		return nil, kverr.NewBadProtocol("invalid number sign byte %d at offset %d", sign, r.off)
	}
	scale, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	digits, err := r.ReadNonNilString()
	if err != nil {
		return nil, err
	}

	num, err := types.NewNumber(sign == 1, digits, scale)
	if err != nil {
		return nil, kverr.NewBadProtocol("invalid number coefficient %q", digits)
	}
	return num, nil
}
