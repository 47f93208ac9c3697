//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package types

import (
	"time"
)

// Consistency is used to provide consistency guarantees for read operations.
//
// There are two consistency values available: Eventual and Absolute.
//
// 1. Eventual consistency means that the values read may be very slightly
// out of date.
//
// 2. Absolute consistency may be specified to guarantee that current values
// are read. Absolute consistency results in higher cost, consuming twice the
// number of read units for the same data relative to Eventual consistency,
// and should only be used when required.
//
// If no Consistency is specified for an operation and there is no default
// value configured, Eventual consistency is used.
type Consistency int

const (
	// Absolute consistency.
	Absolute Consistency = iota + 1 // 1

	// Eventual consistency.
	Eventual // 2
)

// String returns a string representation for the consistency value.
func (c Consistency) String() string {
	switch c {
	case Absolute:
		return "Absolute"
	case Eventual:
		return "Eventual"
	default:
		return "N/A"
	}
}

// TableState represents current state of a table.
type TableState int

const (
	// Active represents the table is ready to be used.
	// This is the steady state after table creation or modification.
	Active TableState = iota // 0

	// Creating represents the table is being created and cannot yet be used.
	Creating // 1

	// Dropped represents the table has been dropped or does not exist.
	Dropped // 2

	// Dropping represents the table is being dropped and cannot be used.
	Dropping // 3

	// Updating represents the table is being updated.
	// It is available for normal use, but additional table modification
	// operations are not permitted while the table is in this state.
	Updating // 4
)

// IsTerminal checks if current table state is a terminal state.
// This returns true if current state is either Active or Dropped, returns
// false otherwise.
func (st TableState) IsTerminal() bool {
	return st == Active || st == Dropped
}

// String returns a string representation for the table state.
func (st TableState) String() string {
	switch st {
	case Active:
		return "Active"
	case Creating:
		return "Creating"
	case Dropped:
		return "Dropped"
	case Dropping:
		return "Dropping"
	case Updating:
		return "Updating"
	default:
		return "N/A"
	}
}

// Version represents the version of a row in the database.
// This is an opaque object from an application perspective.
//
// It is returned by successful get or put operations and can be used in
// PutRequest.MatchVersion and DeleteRequest.MatchVersion to conditionally
// perform those operations, ensuring an atomic read-modify-write cycle.
type Version []byte

// PutOption represents an option for the put operation.
// The available put options are:
//
//	PutIfAbsent
//	PutIfPresent
//	PutIfVersion
type PutOption int

const (
	// PutIfAbsent means the put operation should only succeed if the row
	// does not exist.
	PutIfAbsent PutOption = 4 // 4

	// PutIfPresent means the put operation should only succeed if the row exists.
	PutIfPresent PutOption = 5 // 5

	// PutIfVersion means the put operation should succeed only if the row
	// exists and its Version matches the specified version.
	PutIfVersion PutOption = 6 // 6
)

// TimeUnit represents time durations at a given unit.
type TimeUnit int

const (
	// Hours represents time durations in hours.
	Hours TimeUnit = iota + 1 // 1

	// Days represents time durations in days.
	Days // 2
)

// TimeToLive represents a period of time, specialized to the needs of this
// driver.
//
// This is restricted to durations of days and hours. It is only used as
// input related to time to live (TTL) for row instances.
//
// Durations of days are recommended as they result in the least amount of
// storage overhead.
type TimeToLive struct {
	// Value represents number of time units.
	Value int64

	// Unit represents the time unit that is either Hours or Days.
	Unit TimeUnit
}

// ToDuration converts the TimeToLive value into a time.Duration value.
func (ttl TimeToLive) ToDuration() time.Duration {
	var numOfHours int64
	switch ttl.Unit {
	case Hours:
		numOfHours = ttl.Value
	case Days:
		fallthrough
	default:
		numOfHours = ttl.Value * 24
	}

	return time.Duration(numOfHours) * time.Hour
}

// FieldRange defines a range of values to be used in a multi-delete
// operation, as specified in MultiDeleteRequest.FieldRange.
//
// FieldRange is used as the least significant component in a partially
// specified key value in order to create a value range for an operation that
// affects multiple rows. The data types supported by FieldRange are limited
// to the atomic types which are valid for primary keys.
//
// The FieldPath specified must name a field in a table's primary key.
// The Start and End values used must be of the same type and that type must
// match the type of the field specified. Validation of this object is
// performed when it is used in an operation.
type FieldRange struct {
	// FieldPath specifies the path to the field used in the range.
	FieldPath string

	// Start specifies the start value of the range.
	Start interface{}

	// End specifies the end value of the range.
	End interface{}

	// StartInclusive specifies whether Start value is included in the range.
	// This value is valid only if the Start value is specified.
	StartInclusive bool

	// EndInclusive specifies whether End value is included in the range.
	// This value is valid only if the End value is specified.
	EndInclusive bool
}

// OperationState represents the current state of an administrative
// operation performed on the server.
type OperationState int

const (
	// Complete represents the operation is complete and was successful.
	Complete OperationState = iota + 1 // 1

	// Working represents the operation is in progress.
	Working // 2
)

// String returns a string representation for the operation state.
func (st OperationState) String() string {
	switch st {
	case Complete:
		return "Complete"
	case Working:
		return "Working"
	default:
		return "N/A"
	}
}

// DbType represents the Keystone NoSQL database types used for field values.
// The values double as the one-byte type tags of the wire protocol.
type DbType int

const (
	// Array represents the Array data type.
	// An array is an ordered collection of zero or more elements.
	Array DbType = iota // 0

	// Binary is an uninterpreted sequence of zero or more bytes.
	Binary // 1

	// Boolean data type has only two possible values: true and false.
	Boolean // 2

	// Double represents the set of all IEEE-754 64-bit floating-point numbers.
	Double // 3

	// Integer represents the set of all signed 32-bit integers.
	Integer // 4

	// Long represents the set of all signed 64-bit integers.
	Long // 5

	// Map represents the Map data type.
	// A map is a collection of string keys to values; the wire protocol and
	// this driver preserve the server-observed ordering of its entries.
	Map // 6

	// String represents the set of string values.
	String // 7

	// Timestamp represents a point in time with an explicit UTC offset.
	Timestamp // 8

	// NumberType represents arbitrary precision decimal numbers.
	NumberType // 9

	// JSONNull represents a special value that indicates the absence of an
	// actual value within a JSON data type.
	JSONNull // 10

	// Null represents a special value that indicates the absence of an
	// actual value, or the fact that a value is unknown or inapplicable.
	Null // 11

	// Empty represents the Empty data type.
	// It is used to describe the result of a query expression is empty.
	Empty // 12
)

// String returns a name for the database type.
func (t DbType) String() string {
	switch t {
	case Array:
		return "Array"
	case Binary:
		return "Binary"
	case Boolean:
		return "Boolean"
	case Double:
		return "Double"
	case Integer:
		return "Integer"
	case Long:
		return "Long"
	case Map:
		return "Map"
	case String:
		return "String"
	case Timestamp:
		return "Timestamp"
	case NumberType:
		return "Number"
	case JSONNull:
		return "JSONNull"
	case Null:
		return "Null"
	case Empty:
		return "Empty"
	default:
		return "N/A"
	}
}
