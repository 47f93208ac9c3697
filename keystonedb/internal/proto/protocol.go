//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package proto defines the protocol constants and the interfaces used to
// serialize requests and deserialize results exchanged between the client
// and the Keystone NoSQL server.
package proto

import (
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
)

const (
	// SerialVersion represents the protocol version used to serialize
	// requests and deserialize results between client and server.
	SerialVersion int16 = 2

	// MinSerialVersion is the oldest protocol version the client can fall
	// back to when the server rejects a newer one.
	MinSerialVersion int16 = 1
)

const (
	// RequestSizeLimit is the maximum size of a single request payload.
	RequestSizeLimit = 2 * 1024 * 1024

	// BatchRequestSizeLimit is the maximum size of a batch request payload.
	BatchRequestSizeLimit = 25 * 1024 * 1024

	// BatchOpNumberLimit is the maximum number of operations in a batch.
	BatchOpNumberLimit = 50
)

// OpCode is the one-byte operation code carried at the head of each request.
type OpCode int

const (
	Delete              OpCode = iota // 0
	DeleteIfVersion                   // 1
	Get                               // 2
	Put                               // 3
	PutIfAbsent                       // 4
	PutIfPresent                      // 5
	PutIfVersion                      // 6
	Query                             // 7
	Prepare                           // 8
	MultiDelete                       // 9
	GetTable                          // 10
	ListTables                        // 11
	TableRequest                      // 12
	SystemStatusRequest               // 13
)

// Reader is the interface for deserializing values from the wire format.
// All methods return an error describing a protocol violation when the data
// is truncated or malformed; they never panic on bad input.
type Reader interface {
	ReadInt16() (int16, error)
	ReadInt() (int, error)
	ReadPackedInt() (int, error)
	ReadPackedLong() (int64, error)
	ReadDouble() (float64, error)
	ReadString() (*string, error)
	ReadNonNilString() (string, error)
	ReadBoolean() (bool, error)
	ReadByte() (byte, error)
	ReadVersion() (types.Version, error)
	ReadFieldValue() (types.FieldValue, error)
	ReadMap() (*types.MapValue, error)
	ReadByteArray() ([]byte, error)
	ReadByteArrayWithInt() ([]byte, error)
}

// Writer is the interface for serializing values into the wire format.
type Writer interface {
	Write(p []byte) (int, error)
	WriteByte(b byte) error
	WriteInt16(value int16) (int, error)
	WriteInt(value int) (int, error)
	WritePackedInt(value int) (int, error)
	WritePackedLong(value int64) (int, error)
	WriteDouble(value float64) (int, error)
	WriteString(value *string) (int, error)
	WriteBoolean(value bool) (int, error)
	WriteMap(value *types.MapValue) (int, error)
	WriteArray(value []types.FieldValue) (int, error)
	WriteByteArray(value []byte) (int, error)
	WriteByteArrayWithInt(value []byte) (int, error)
	WriteFieldValue(value types.FieldValue) (int, error)
	WriteFieldRange(fieldRange *types.FieldRange) (int, error)
	WriteOpCode(op OpCode) (int, error)
	WriteTimeout(timeout time.Duration) (int, error)
	WriteConsistency(c types.Consistency) (int, error)
	WriteTTL(ttl *types.TimeToLive) (int, error)
	WriteVersion(version types.Version) (int, error)
	WriteSerialVersion(serialVersion int16) (int, error)
	Size() int
	Reset()
	Bytes() []byte
}
