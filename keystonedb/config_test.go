//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package keystonedb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint     string
		wantErr      bool
		wantProtocol string
		wantHost     string
		wantPort     string
	}{
		// Protocol and port omitted.
		{"db.example.com", false, "https", "db.example.com", "443"},
		// Port omitted.
		{"https://db.example.com", false, "https", "db.example.com", "443"},
		{"http://db.example.com", false, "http", "db.example.com", "8080"},
		// Protocol omitted.
		{"db.example.com:443", false, "https", "db.example.com", "443"},
		{"db.example.com:8000", false, "http", "db.example.com", "8000"},
		{"localhost:8080", false, "http", "localhost", "8080"},
		// Fully specified.
		{"https://db.example.com:8443", false, "https", "db.example.com", "8443"},
		{"HTTPS://db.example.com:443", false, "https", "db.example.com", "443"},
		{"http://localhost:8080", false, "http", "localhost", "8080"},
		// Trailing slash.
		{"https://db.example.com/", false, "https", "db.example.com", "443"},
		// IPv6.
		{"http://[fe80::1]:8080", false, "http", "fe80::1", "8080"},
		// Invalid.
		{"", true, "", "", ""},
		{"ftp://db.example.com", true, "", "", ""},
		{"db.example.com:notaport", true, "", "", ""},
		{"db.example.com:-1", true, "", "", ""},
		{"https://", true, "", "", ""},
	}

	for _, r := range tests {
		protocol, host, port, err := parseEndpoint(r.endpoint)
		if r.wantErr {
			assert.Errorf(t, err, "parseEndpoint(%q) should have failed", r.endpoint)
			continue
		}

		if !assert.NoErrorf(t, err, "parseEndpoint(%q) failed", r.endpoint) {
			continue
		}
		assert.Equalf(t, r.wantProtocol, protocol, "parseEndpoint(%q): wrong protocol", r.endpoint)
		assert.Equalf(t, r.wantHost, host, "parseEndpoint(%q): wrong host", r.endpoint)
		assert.Equalf(t, r.wantPort, port, "parseEndpoint(%q): wrong port", r.endpoint)
	}
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := Config{Endpoint: "localhost:8080"}
	err := cfg.setDefaults()
	assert.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Endpoint)
	assert.False(t, cfg.UseHTTPS)
	assert.NotNil(t, cfg.RetryHandler)
	assert.Equal(t, uint(defaultMaxNumRetries), cfg.RetryHandler.MaxNumRetries())
	assert.NotNil(t, cfg.Logger)

	cfg = Config{}
	err = cfg.setDefaults()
	assert.Error(t, err, "an empty endpoint should be rejected")
}

func TestRequestConfigDefaults(t *testing.T) {
	var cfg *RequestConfig
	assert.Equal(t, 5*time.Second, cfg.DefaultRequestTimeout())
	assert.Equal(t, 10*time.Second, cfg.DefaultTableRequestTimeout())
	assert.Equal(t, types.Eventual, cfg.DefaultConsistency())

	cfg = &RequestConfig{
		RequestTimeout:      time.Second,
		TableRequestTimeout: 4 * time.Second,
		Consistency:         types.Absolute,
	}
	assert.Equal(t, time.Second, cfg.DefaultRequestTimeout())
	assert.Equal(t, 4*time.Second, cfg.DefaultTableRequestTimeout())
	assert.Equal(t, types.Absolute, cfg.DefaultConsistency())
}
