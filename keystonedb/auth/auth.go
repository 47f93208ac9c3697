//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package auth provides functionality and types used for authorization providers.
package auth

import (
	"net/http"
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/logger"
)

const (
	// BearerToken represents the bearer token authorization scheme: the
	// bearer who holds the access token can access authorized resources.
	//
	// This is used for servers that authorize requests by themselves.
	BearerToken string = "Bearer"

	// Signature represents the request signature authorization scheme.
	// Each request carries an RSA signature over a canonical set of its
	// headers.
	Signature string = "Signature"
)

// Provider is an interface that provides request authorization for clients.
//
// The client calls SignHTTPRequest for every outbound request; the provider
// adds whatever headers its scheme requires.
//
// Implementations of this interface must be safe for concurrent use by
// multiple goroutines.
type Provider interface {
	// AuthorizationScheme returns the authorization scheme this provider
	// supports, either BearerToken or Signature.
	AuthorizationScheme() string

	// SignHTTPRequest authorizes the request by adding or replacing header
	// fields. It must never modify the request body.
	SignHTTPRequest(req *http.Request) error

	// Refresh invalidates any cached authorization state so the next
	// request is authorized from scratch. The client calls this once when
	// the server rejects a signature, to recover from clock skew between
	// client and server.
	Refresh() error

	// Close releases resources allocated by the provider.
	Close() error
}

// Token represents the credentials used to authorize requests with the
// bearer token scheme.
type Token struct {
	// The access token issued by the authorization server.
	AccessToken string `json:"access_token"`

	// Token type. If not set, this is "Bearer" by default.
	Type string `json:"token_type,omitempty"`

	// The time when the access token expires.
	// A zero value of Expiry means the access token does not expire.
	Expiry time.Time `json:"expiry,omitempty"`
}

// NewToken creates a token with the specified access token, token type and
// expiry.
func NewToken(accessToken, tokenType string, expiry time.Time) *Token {
	if tokenType == "" {
		tokenType = BearerToken
	}
	return &Token{
		AccessToken: accessToken,
		Type:        tokenType,
		Expiry:      expiry,
	}
}

// Expired checks whether the access token has expired.
func (t Token) Expired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return t.Expiry.Before(time.Now())
}

// AuthString returns the string set in the HTTP "Authorization" header.
func (t Token) AuthString() string {
	if t.Type == "" {
		return BearerToken + " " + t.AccessToken
	}
	return t.Type + " " + t.AccessToken
}

// ProviderOptions represents options common to authorization providers.
type ProviderOptions struct {
	// ExpiryWindow specifies for how long a computed authorization value
	// may be reused before the provider renews it.
	// If not set, the provider uses its own default.
	ExpiryWindow time.Duration

	// Logger specifies a logger for the provider.
	// If not set, logger.DefaultLogger is used.
	Logger *logger.Logger
}

// BearerTokenProvider authorizes requests with a fixed bearer token.
// It is mainly useful for development setups and tests; production
// deployments use the signature scheme from the access package.
//
// This implements the Provider interface.
type BearerTokenProvider struct {
	token *Token
}

// NewBearerTokenProvider creates a provider that sets the given token on
// every request.
func NewBearerTokenProvider(token *Token) *BearerTokenProvider {
	return &BearerTokenProvider{token: token}
}

// AuthorizationScheme returns "Bearer" for this provider.
func (p *BearerTokenProvider) AuthorizationScheme() string {
	return BearerToken
}

// SignHTTPRequest sets the Authorization header from the configured token.
func (p *BearerTokenProvider) SignHTTPRequest(req *http.Request) error {
	req.Header.Set("Authorization", p.token.AuthString())
	return nil
}

// Refresh is a no-op for a fixed token.
func (p *BearerTokenProvider) Refresh() error {
	return nil
}

// Close releases resources allocated by the provider.
// Currently nothing to release.
func (p *BearerTokenProvider) Close() error {
	return nil
}
