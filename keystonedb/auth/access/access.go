//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package access implements the request signature authorization scheme.
//
// Every outbound request carries an Authorization header of the form
//
//	Signature version="1",keyId="...",algorithm="rsa-sha256",
//	    headers="(request-target) host date",signature="..."
//
// where the signature is an RSA PKCS#1 v1.5 signature over the SHA-256
// digest of a canonical string assembled from the named headers.
package access

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/auth"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/logger"
)

const (
	requestTargetHeader = "(request-target)"
	hostHeader          = "host"
	dateHeader          = "date"
	contentTypeHeader   = "content-type"
	contentLengthHeader = "content-length"
	contentSHA256Header = "x-content-sha256"

	signatureAlgorithm = "rsa-sha256"
	signatureVersion   = "1"

	// defaultSignatureExpiry is how long a computed signature is reused
	// before it is recomputed with a fresh date.
	defaultSignatureExpiry = 4 * time.Minute
)

// SignatureProvider signs requests with an RSA private key.
//
// A computed signature covers the request target, host and date headers and
// is therefore valid for any request to the same endpoint within the
// server's clock skew allowance. The provider caches it and reuses it until
// the expiry interval elapses; renewal is serialized so concurrent callers
// do not recompute it repeatedly.
//
// This implements the auth.Provider interface.
type SignatureProvider struct {
	// keyID identifies the public key the server verifies against.
	keyID string

	// privateKey is the RSA signing key.
	privateKey *rsa.PrivateKey

	// includeBody selects per-request signing that also covers the
	// content-type, content-length and x-content-sha256 headers.
	// Body-covering signatures cannot be cached.
	includeBody bool

	expiryInterval time.Duration
	logger         *logger.Logger

	// cached signature state, guarded by mutex
	mutex                  sync.RWMutex
	signature              string
	signatureFormattedDate string
	signatureExpiresAt     time.Time
}

var _ auth.Provider = (*SignatureProvider)(nil)

// NewSignatureProvider creates a signature provider from a PEM-encoded RSA
// private key. The key may be in PKCS#1 or PKCS#8 form; an encrypted key
// requires the passphrase.
func NewSignatureProvider(keyID string, privateKeyPEM, passphrase []byte) (*SignatureProvider, error) {
	return NewSignatureProviderWithOptions(keyID, privateKeyPEM, passphrase, auth.ProviderOptions{})
}

// NewSignatureProviderFromFile creates a signature provider reading the
// PEM-encoded RSA private key from the specified file.
func NewSignatureProviderFromFile(keyID, privateKeyFile string, passphrase []byte) (*SignatureProvider, error) {
	pemData, err := os.ReadFile(privateKeyFile)
	if err != nil {
		return nil, kverr.NewWithCause(kverr.InvalidPrivateKey, err,
			"cannot read private key file %q", privateKeyFile)
	}
	return NewSignatureProvider(keyID, pemData, passphrase)
}

// NewSignatureProviderWithOptions creates a signature provider with the
// specified provider options.
func NewSignatureProviderWithOptions(keyID string, privateKeyPEM, passphrase []byte,
	opts auth.ProviderOptions) (*SignatureProvider, error) {

	if keyID == "" {
		return nil, kverr.NewIllegalArgument("access: keyID must be non-empty")
	}

	key, err := parsePrivateKey(privateKeyPEM, passphrase)
	if err != nil {
		return nil, err
	}

	expiry := opts.ExpiryWindow
	if expiry < time.Millisecond {
		expiry = defaultSignatureExpiry
	}
	lg := opts.Logger
	if lg == nil {
		lg = logger.DefaultLogger
	}

	return &SignatureProvider{
		keyID:          keyID,
		privateKey:     key,
		expiryInterval: expiry,
		logger:         lg,
	}, nil
}

// SetIncludeBody selects whether signatures also cover the request body via
// the x-content-sha256 header. Body-covering signatures are computed per
// request and never cached.
func (p *SignatureProvider) SetIncludeBody(include bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.includeBody = include
	p.signature = ""
}

// parsePrivateKey decodes a PEM-encoded RSA private key in PKCS#1 or PKCS#8
// form, decrypting it with the passphrase when required.
func parsePrivateKey(pemData, passphrase []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, kverr.New(kverr.InvalidPrivateKey, "no PEM block found in private key data")
	}

	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) {
		if len(passphrase) == 0 {
			return nil, kverr.New(kverr.InvalidPrivateKey,
				"private key is encrypted but no passphrase was provided")
		}
		var err error
		der, err = x509.DecryptPEMBlock(block, passphrase)
		if err != nil {
			return nil, kverr.NewWithCause(kverr.InvalidPrivateKey, err, "cannot decrypt private key")
		}
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, kverr.NewWithCause(kverr.InvalidPrivateKey, err, "cannot parse private key")
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, kverr.New(kverr.UnsupportedSigningAlgorithm,
			"private key is of type %T, only RSA keys are supported with %s", parsed, signatureAlgorithm)
	}
	return key, nil
}

// AuthorizationScheme returns "Signature" for this provider.
func (p *SignatureProvider) AuthorizationScheme() string {
	return auth.Signature
}

// SignHTTPRequest signs the request, setting the Date and Authorization
// headers. A cached signature is reused if it has not expired.
func (p *SignatureProvider) SignHTTPRequest(req *http.Request) error {
	if p.includeBody {
		// Signatures covering the body are request-specific.
		return p.signRequest(req, time.Now())
	}

	now := time.Now()

	p.mutex.RLock()
	if p.signature != "" && p.signatureExpiresAt.After(now) {
		req.Header.Set("Date", p.signatureFormattedDate)
		req.Header.Set("Authorization", p.signature)
		p.mutex.RUnlock()
		return nil
	}
	p.mutex.RUnlock()

	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Another goroutine may have renewed the signature while we waited
	// for the lock.
	if p.signature != "" && p.signatureExpiresAt.After(now) {
		req.Header.Set("Date", p.signatureFormattedDate)
		req.Header.Set("Authorization", p.signature)
		return nil
	}

	if err := p.signLocked(req, now); err != nil {
		return err
	}

	p.signature = req.Header.Get("Authorization")
	p.signatureFormattedDate = req.Header.Get("Date")
	p.signatureExpiresAt = now.Add(p.expiryInterval)
	p.logger.Fine("renewed request signature, valid until %v", p.signatureExpiresAt)
	return nil
}

// signRequest computes a per-request signature under the read lock only,
// used when the body is covered and caching does not apply.
func (p *SignatureProvider) signRequest(req *http.Request, now time.Time) error {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.signLocked(req, now)
}

// signLocked assembles the canonical string for req, signs it and sets the
// Date and Authorization headers. The caller must hold the mutex.
func (p *SignatureProvider) signLocked(req *http.Request, now time.Time) error {
	date := now.UTC().Format(http.TimeFormat)
	req.Header.Set("Date", date)

	headersToSign := []string{requestTargetHeader, hostHeader, dateHeader}
	values := map[string]string{
		requestTargetHeader: requestTarget(req),
		hostHeader:          req.Host,
		dateHeader:          date,
	}
	if values[hostHeader] == "" && req.URL != nil {
		values[hostHeader] = req.URL.Host
	}

	if p.includeBody {
		body, err := requestBody(req)
		if err != nil {
			return kverr.NewWithCause(kverr.InvalidAuthorization, err, "cannot read request body for signing")
		}
		digest := sha256.Sum256(body)
		bodyHash := base64.StdEncoding.EncodeToString(digest[:])

		contentType := req.Header.Get("Content-Type")
		req.Header.Set("Content-Length", strconv.Itoa(len(body)))
		req.Header.Set("X-Content-Sha256", bodyHash)

		headersToSign = append(headersToSign, contentTypeHeader, contentLengthHeader, contentSHA256Header)
		values[contentTypeHeader] = contentType
		values[contentLengthHeader] = strconv.Itoa(len(body))
		values[contentSHA256Header] = bodyHash
	}

	var sb strings.Builder
	for i, h := range headersToSign {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(h)
		sb.WriteString(": ")
		sb.WriteString(values[h])
	}

	digest := sha256.Sum256([]byte(sb.String()))
	sig, err := rsa.SignPKCS1v15(rand.Reader, p.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return kverr.NewWithCause(kverr.InvalidPrivateKey, err, "cannot sign request")
	}

	authHeader := fmt.Sprintf(
		"Signature version=%q,keyId=%q,algorithm=%q,headers=%q,signature=%q",
		signatureVersion, p.keyID, signatureAlgorithm,
		strings.Join(headersToSign, " "),
		base64.StdEncoding.EncodeToString(sig))
	req.Header.Set("Authorization", authHeader)
	return nil
}

// requestTarget returns the canonical (request-target) value: the lowercase
// method followed by the path and, when present, the raw query.
func requestTarget(req *http.Request) string {
	target := strings.ToLower(req.Method) + " "
	if req.URL == nil {
		return target
	}
	target += req.URL.EscapedPath()
	if req.URL.RawQuery != "" {
		target += "?" + req.URL.RawQuery
	}
	return target
}

// requestBody returns the request body bytes without consuming them.
func requestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body is not replayable")
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Refresh discards the cached signature so the next request is signed with
// a fresh date. The client calls this once when the server rejects a
// signature, to recover from clock skew.
func (p *SignatureProvider) Refresh() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.signature = ""
	p.signatureExpiresAt = time.Time{}
	return nil
}

// Close releases resources allocated by the provider.
// Currently nothing to release.
func (p *SignatureProvider) Close() error {
	return nil
}
