//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package access

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"testing"
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genTestKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func newTestRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "https://db.example.com:8080/V2/keystone/data", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/octet-stream")
	return req
}

func TestSignatureProviderScheme(t *testing.T) {
	p, err := NewSignatureProvider("tenant/user/fingerprint", genTestKeyPEM(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "Signature", p.AuthorizationScheme())
}

func TestSignatureHeaderFormat(t *testing.T) {
	p, err := NewSignatureProvider("tenant/user/fingerprint", genTestKeyPEM(t), nil)
	require.NoError(t, err)

	req := newTestRequest(t, []byte("payload"))
	require.NoError(t, p.SignHTTPRequest(req))

	authz := req.Header.Get("Authorization")
	assert.Contains(t, authz, `Signature version="1"`)
	assert.Contains(t, authz, `keyId="tenant/user/fingerprint"`)
	assert.Contains(t, authz, `algorithm="rsa-sha256"`)
	assert.Contains(t, authz, `headers="(request-target) host date"`)
	assert.Contains(t, authz, `signature="`)
	assert.NotEmpty(t, req.Header.Get("Date"))
}

func TestSignatureIsCached(t *testing.T) {
	p, err := NewSignatureProvider("key-id", genTestKeyPEM(t), nil)
	require.NoError(t, err)

	req1 := newTestRequest(t, []byte("one"))
	req2 := newTestRequest(t, []byte("two"))
	require.NoError(t, p.SignHTTPRequest(req1))
	require.NoError(t, p.SignHTTPRequest(req2))

	// Without body coverage the signature only depends on target, host
	// and date, so the second request reuses the cached value.
	assert.Equal(t, req1.Header.Get("Authorization"), req2.Header.Get("Authorization"))
	assert.Equal(t, req1.Header.Get("Date"), req2.Header.Get("Date"))
}

func TestRefreshInvalidatesCache(t *testing.T) {
	p, err := NewSignatureProvider("key-id", genTestKeyPEM(t), nil)
	require.NoError(t, err)

	req1 := newTestRequest(t, nil)
	require.NoError(t, p.SignHTTPRequest(req1))
	require.NoError(t, p.Refresh())

	p.mutex.RLock()
	sig := p.signature
	p.mutex.RUnlock()
	assert.Empty(t, sig, "Refresh() must discard the cached signature")

	req2 := newTestRequest(t, nil)
	require.NoError(t, p.SignHTTPRequest(req2))
	assert.NotEmpty(t, req2.Header.Get("Authorization"))
}

func TestBodyCoverageChangesSignature(t *testing.T) {
	p, err := NewSignatureProvider("key-id", genTestKeyPEM(t), nil)
	require.NoError(t, err)
	p.SetIncludeBody(true)

	req1 := newTestRequest(t, []byte("payload A"))
	req2 := newTestRequest(t, []byte("payload B"))
	require.NoError(t, p.SignHTTPRequest(req1))
	require.NoError(t, p.SignHTTPRequest(req2))

	assert.Contains(t, req1.Header.Get("Authorization"), "x-content-sha256")
	assert.NotEqual(t, req1.Header.Get("X-Content-Sha256"), req2.Header.Get("X-Content-Sha256"),
		"different bodies must produce different content hashes")
	assert.NotEqual(t, req1.Header.Get("Authorization"), req2.Header.Get("Authorization"),
		"a body change must change the signature")
}

func TestBodyCoverageIsDeterministic(t *testing.T) {
	pemKey := genTestKeyPEM(t)
	p, err := NewSignatureProvider("key-id", pemKey, nil)
	require.NoError(t, err)
	p.SetIncludeBody(true)

	// RSA PKCS#1 v1.5 is deterministic: same key, same bytes, same date
	// yield the same signature.
	req1 := newTestRequest(t, []byte("same payload"))
	req2 := newTestRequest(t, []byte("same payload"))
	require.NoError(t, p.SignHTTPRequest(req1))
	req2.Header.Set("Date", req1.Header.Get("Date"))
	require.NoError(t, p.signRequest(req2, mustParseDate(t, req1.Header.Get("Date"))))

	assert.Equal(t, req1.Header.Get("Authorization"), req2.Header.Get("Authorization"))
}

func TestInvalidPrivateKey(t *testing.T) {
	_, err := NewSignatureProvider("key-id", []byte("not a pem"), nil)
	assert.True(t, kverr.Is(err, kverr.InvalidPrivateKey), "got %v", err)

	_, err = NewSignatureProvider("key-id", pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: []byte{1, 2, 3},
	}), nil)
	assert.True(t, kverr.Is(err, kverr.InvalidPrivateKey), "got %v", err)
}

func TestNonRSAKeyRejected(t *testing.T) {
	// An Ed25519 PKCS#8 key must be rejected as an unsupported algorithm.
	der := mustGenEd25519PKCS8(t)
	_, err := NewSignatureProvider("key-id", pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	}), nil)
	assert.True(t, kverr.Is(err, kverr.UnsupportedSigningAlgorithm), "got %v", err)
}

func mustParseDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(http.TimeFormat, s)
	require.NoError(t, err)
	return d
}

func mustGenEd25519PKCS8(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	return der
}

func TestEmptyKeyID(t *testing.T) {
	_, err := NewSignatureProvider("", genTestKeyPEM(t), nil)
	assert.True(t, kverr.IsIllegalArgument(err), "got %v", err)
}
