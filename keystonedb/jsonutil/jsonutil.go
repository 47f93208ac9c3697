//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package jsonutil provides utility functions for working with JSON,
// used by the driver to render values and results as readable strings.
package jsonutil

import (
	"encoding/json"
)

const emptyJSONObject = "{}"

// AsJSON encodes the specified value into a JSON string.
// It returns an empty JSON object string if the value cannot be encoded.
func AsJSON(v interface{}) string {
	return asJSONString(v, false)
}

// AsPrettyJSON encodes the specified value into an indented JSON string.
// It returns an empty JSON object string if the value cannot be encoded.
func AsPrettyJSON(v interface{}) string {
	return asJSONString(v, true)
}

func asJSONString(v interface{}, pretty bool) string {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return emptyJSONObject
	}
	return string(b)
}

// ToObject decodes a JSON string into a map keyed by field name.
func ToObject(jsonStr string) (map[string]interface{}, error) {
	var v map[string]interface{}
	err := json.Unmarshal([]byte(jsonStr), &v)
	return v, err
}
