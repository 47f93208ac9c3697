//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package types defines types and values used to represent and manipulate
// data in the Keystone NoSQL Database. A row in a table, a primary key and a
// query result are all represented as dynamic value trees built from the
// types in this package.
//
// On input, the mappings between Go driver types and database types:
//
//	Go Driver Types                              Database Types
//	=========================================    ===============
//	byte, int8, uint8, int16, uint16, int32      INTEGER
//	int (math.MinInt32 <= x <= math.MaxInt32)
//	-----------------------------------------    ---------------
//	int64, int (otherwise)                       LONG
//	-----------------------------------------    ---------------
//	*Number                                      NUMBER
//	-----------------------------------------    ---------------
//	float32, float64                             DOUBLE
//	-----------------------------------------    ---------------
//	string, *string                              STRING
//	-----------------------------------------    ---------------
//	[]byte                                       BINARY
//	-----------------------------------------    ---------------
//	bool                                         BOOLEAN
//	-----------------------------------------    ---------------
//	*MapValue, map[string]interface{}            MAP
//	-----------------------------------------    ---------------
//	[]FieldValue, []interface{}                  ARRAY
//	-----------------------------------------    ---------------
//	time.Time                                    TIMESTAMP
//
// On output the driver produces int, int64, *Number, float64, string,
// []byte, bool, *MapValue, []FieldValue and time.Time respectively.
//
// A value tree is a pure, owned tree: it contains no cycles and no
// references shared with other trees, so it can be safely copied with Clone
// and compared with Equal.
//
// The special values JSONNullValueInstance, NullValueInstance and
// EmptyValueInstance are produced as output of queries; they should not be
// used as input values except that JSONNullValueInstance may be stored in a
// field of type JSON.
package types

import (
	"encoding/json"
	"strings"
	"time"
)

// FieldValue represents a field value of Keystone NoSQL database tables.
// This is an empty interface.
type FieldValue interface{}

// JSONNullValue represents an explicit JSON null value in a JSON object or
// array. On input this type can only be used in a table field of type JSON.
//
// This should be used as an immutable singleton object.
type JSONNullValue struct{}

// MarshalJSON returns the JSON encoding of JSONNullValue.
//
// This implements the json.Marshaler interface.
func (jn *JSONNullValue) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// NullValue represents a null value or missing value in a fully-typed schema.
//
// This should be used as an immutable singleton object.
type NullValue struct{}

// MarshalJSON returns the JSON encoding of NullValue.
//
// This implements the json.Marshaler interface.
func (n *NullValue) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// EmptyValue represents an empty value.
//
// It is used in query results to represent a missing value for an indexed
// field. It is different from a JSONNullValue, which is a concrete value,
// and from NullValue, which represents a null or missing field in a
// fully-typed field of the table schema.
type EmptyValue struct{}

// MarshalJSON returns the JSON encoding of EmptyValue.
//
// This implements the json.Marshaler interface.
func (e *EmptyValue) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

var (
	// JSONNullValueInstance represents an instance of JSONNullValue.
	// This should be used as an immutable singleton object.
	JSONNullValueInstance = &JSONNullValue{}

	// NullValueInstance represents an instance of NullValue.
	// This should be used as an immutable singleton object.
	NullValueInstance = &NullValue{}

	// EmptyValueInstance represents an instance of EmptyValue.
	// This should be used as an immutable singleton object.
	EmptyValueInstance = &EmptyValue{}
)

// MapValue represents a row in a Keystone NoSQL Database table. A top-level
// row is always a MapValue instance that contains FieldValue objects which
// may be instances of atomic types, embedded MapValue or an array of the
// aforementioned types, creating a structured row.
//
// MapValue is also used to represent key values used in get operations as
// well as nested maps or records within a row.
//
// Field names in a MapValue are case-sensitive string values with no
// duplicates. When a MapValue is received on output, such as from a get or a
// query, it is always ordered: entries appear in the column order the server
// returned them, which is required for row reconstruction.
type MapValue struct {
	// m represents a map that stores key/value pairs.
	m map[string]interface{}

	// keepInsertionOrder specifies whether to keep insertion order for the map.
	keepInsertionOrder bool

	// keys is a slice of string that contains keys in insertion order.
	keys []string
}

// NewMapValue creates a MapValue with the specified map m.
func NewMapValue(m map[string]interface{}) *MapValue {
	return &MapValue{
		m:                  m,
		keepInsertionOrder: false,
	}
}

// NewMapValueFromJSON creates a MapValue from the specified JSON string.
// It returns an error if jsonStr is not a valid JSON encoding.
//
// It unmarshals a number specified in jsonStr as a json.Number instead of as
// a float64. Non-numeric numbers such as NaN, -Inf, +Inf are not allowed.
func NewMapValueFromJSON(jsonStr string) (*MapValue, error) {
	var m map[string]interface{}
	d := json.NewDecoder(strings.NewReader(jsonStr))
	d.UseNumber()
	if err := d.Decode(&m); err != nil {
		return nil, err
	}

	return NewMapValue(m), nil
}

// NewOrderedMapValue creates an ordered MapValue which keeps insertion
// orders when key/value pairs are inserted over the Put() method. An ordered
// MapValue guarantees that key/value pairs can be retrieved over the
// GetByIndex(i int) method by specifying the insertion order.
func NewOrderedMapValue() *MapValue {
	return &MapValue{
		m:                  make(map[string]interface{}),
		keepInsertionOrder: true,
		keys:               make([]string, 0, 16),
	}
}

// Len returns the number of key/value pairs stored in MapValue.
func (m *MapValue) Len() int {
	return len(m.m)
}

// IsOrdered reports whether the MapValue keeps insertion order.
func (m *MapValue) IsOrdered() bool {
	return m.keepInsertionOrder
}

// Map returns the underlying map of MapValue.
func (m *MapValue) Map() map[string]interface{} {
	return m.m
}

// Keys returns the keys of an ordered MapValue in insertion order.
// It returns nil for an unordered MapValue.
func (m *MapValue) Keys() []string {
	return m.keys
}

// MarshalJSON returns MapValue m as the JSON encoding of m.
//
// This implements the json.Marshaler interface.
func (m *MapValue) MarshalJSON() ([]byte, error) {
	if m == nil || m.m == nil {
		return []byte("null"), nil
	}

	return json.Marshal(m.m)
}

// Put inserts a value v indexed by key k into MapValue.
// If MapValue is ordered, it keeps track of the insertion order.
func (m *MapValue) Put(k string, v interface{}) *MapValue {
	if m.m == nil {
		m.m = make(map[string]interface{})
	}

	if m.keepInsertionOrder {
		if _, ok := m.Get(k); !ok {
			m.keys = append(m.keys, k)
		}
	}

	m.m[k] = v
	return m
}

// Get looks for a value v with specified key k. If it finds the value, it
// returns that value and sets ok to true. Otherwise, it returns nil and sets
// ok to false.
func (m *MapValue) Get(k string) (v interface{}, ok bool) {
	v, ok = m.m[k]
	return
}

// GetByIndex only applies to an ordered MapValue. It looks for key k and
// value v at the specified index idx, which is a 1-based index representing
// the insertion order.
// If the method finds k and v, it returns them and sets ok to true.
// Otherwise, it returns zero values for k and v, and sets ok to false.
func (m *MapValue) GetByIndex(idx int) (k string, v interface{}, ok bool) {
	if !m.keepInsertionOrder {
		return
	}

	if idx < 1 || idx > len(m.keys) {
		return
	}

	k = m.keys[idx-1]
	v, ok = m.Get(k)
	return
}

// Delete removes the value indexed by k from MapValue.
// If MapValue is ordered and the desired value is removed, the insertion
// order is adjusted accordingly to reflect the changes.
func (m *MapValue) Delete(k string) {
	var ok bool
	if m.keepInsertionOrder {
		_, ok = m.Get(k)
	}

	delete(m.m, k)

	if !ok {
		return
	}

	n := len(m.keys)
	for i := 0; i < n; i++ {
		if k == m.keys[i] {
			switch i {
			case n - 1:
				m.keys = m.keys[:i]
			default:
				m.keys = append(m.keys[:i], m.keys[i+1:]...)
			}
			break
		}
	}
}

// GetString returns the string value s associated with the specified key k.
// If the value does not exist, or is not a string value, this method returns
// an empty string and sets ok to false.
func (m *MapValue) GetString(k string) (s string, ok bool) {
	v, ok := m.Get(k)
	if !ok {
		return
	}

	s, ok = v.(string)
	return
}

// GetInt returns the int value i associated with the specified key k.
// If the value does not exist, or is not an int value, this method returns 0
// and sets ok to false.
func (m *MapValue) GetInt(k string) (i int, ok bool) {
	v, ok := m.Get(k)
	if !ok {
		return
	}

	i, ok = v.(int)
	if ok {
		return
	}

	// If the MapValue is created from a JSON, v may be a json.Number.
	number, ok := v.(json.Number)
	if !ok {
		return
	}

	i64, err := number.Int64()
	if err != nil {
		return 0, false
	}
	return int(i64), true
}

// GetInt64 returns the int64 value i64 associated with the specified key k.
// If the value does not exist, or is not an int64 value, this method returns
// 0 and sets ok to false.
func (m *MapValue) GetInt64(k string) (i64 int64, ok bool) {
	v, ok := m.Get(k)
	if !ok {
		return
	}

	i64, ok = v.(int64)
	if ok {
		return
	}

	// If the MapValue is created from a JSON, v may be a json.Number.
	number, ok := v.(json.Number)
	if !ok {
		return
	}

	i64, err := number.Int64()
	if err != nil {
		return 0, false
	}
	return i64, true
}

// GetFloat64 returns the float64 value f64 associated with the specified key
// k. If the value does not exist, or is not a float64 value, this method
// returns 0 and sets ok to false.
func (m *MapValue) GetFloat64(k string) (f64 float64, ok bool) {
	v, ok := m.Get(k)
	if !ok {
		return
	}

	f64, ok = v.(float64)
	if ok {
		return
	}

	// If the MapValue is created from a JSON, v may be a json.Number.
	number, ok := v.(json.Number)
	if !ok {
		return
	}

	f64, err := number.Float64()
	if err != nil {
		return 0, false
	}
	return f64, true
}

// ToMapValue is a convenience function that converts a key/value pair into a
// MapValue.
func ToMapValue(k string, v interface{}) *MapValue {
	m := map[string]interface{}{
		k: v,
	}
	return NewMapValue(m)
}

// GetAtPath walks the specified path of field names down a tree of nested
// MapValues starting at m and returns the value found at the end of the
// path. It returns nil and false if any path element is missing or names a
// field whose value is not a nested MapValue.
func (m *MapValue) GetAtPath(path ...string) (v interface{}, ok bool) {
	cur := m
	for i, k := range path {
		v, ok = cur.Get(k)
		if !ok {
			return nil, false
		}

		if i == len(path)-1 {
			return v, true
		}

		cur, ok = v.(*MapValue)
		if !ok {
			return nil, false
		}
	}

	return nil, false
}

// Equal reports whether two field values are structurally equal.
//
// Scalars compare by value, Numbers compare by exact digits, scale and
// sign, timestamps compare by instant and UTC offset, arrays compare
// elementwise and maps compare by their key/value sets. Ordering of map
// entries does not affect equality.
func Equal(a, b FieldValue) bool {
	switch av := a.(type) {
	case *MapValue:
		bv, ok := b.(*MapValue)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for k, v1 := range av.Map() {
			v2, ok := bv.Get(k)
			if !ok || !Equal(v1, v2) {
				return false
			}
		}
		return true

	case []FieldValue:
		bv, ok := b.([]FieldValue)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true

	case []byte:
		bv, ok := b.([]byte)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true

	case *Number:
		bv, ok := b.(*Number)
		return ok && av.Equal(bv)

	case time.Time:
		bv, ok := b.(time.Time)
		if !ok || !av.Equal(bv) {
			return false
		}
		_, aoff := av.Zone()
		_, boff := bv.Zone()
		return aoff == boff

	default:
		return a == b
	}
}

// Clone returns a deep copy of the specified field value.
// The returned tree shares no mutable state with the original.
func Clone(v FieldValue) FieldValue {
	switch val := v.(type) {
	case *MapValue:
		var c *MapValue
		if val.IsOrdered() {
			c = NewOrderedMapValue()
			for _, k := range val.keys {
				e, _ := val.Get(k)
				c.Put(k, Clone(e))
			}
		} else {
			c = NewMapValue(make(map[string]interface{}, val.Len()))
			for k, e := range val.Map() {
				c.Put(k, Clone(e))
			}
		}
		return c

	case []FieldValue:
		c := make([]FieldValue, len(val))
		for i := range val {
			c[i] = Clone(val[i])
		}
		return c

	case []byte:
		c := make([]byte, len(val))
		copy(c, val)
		return c

	case *Number:
		return val.Clone()

	default:
		return v
	}
}
