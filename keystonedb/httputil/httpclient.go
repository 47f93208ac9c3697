//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package httputil provides the HTTP client used to communicate with the
// Keystone NoSQL server.
package httputil

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"
)

// RequestExecutor represents an interface used to execute an HTTP request.
type RequestExecutor interface {
	// Do sends an http request to the server, returning an http response
	// and an error if one occurred during execution.
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient handles connections to the server: it sends HTTP requests and
// receives HTTP responses. It is implemented on top of http.Client, adding
// configuration options to control client connections.
//
// The underlying Transport caches TCP connections for reuse, so an
// HTTPClient should be shared rather than created per request.
//
// This implements the RequestExecutor interface.
type HTTPClient struct {
	client *http.Client
}

// DefaultHTTPClient is a ready to use HTTPClient instance.
var DefaultHTTPClient = &HTTPClient{
	client: http.DefaultClient,
}

// HTTPConfig contains parameters used to configure HTTPClient.
type HTTPConfig struct {
	// UseHTTPS indicates if HTTPS is used.
	UseHTTPS bool

	// ProxyURL specifies an HTTP proxy server URL.
	// If specified, all transports go through the proxy server.
	ProxyURL string

	// ProxyUsername and ProxyPassword specify the credentials used to
	// authenticate with the HTTP proxy server if required.
	ProxyUsername string
	ProxyPassword string

	// UseProxyFromEnv indicates whether to use the proxy server set by the
	// environment variables HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
	// If true, it takes precedence over ProxyURL.
	UseProxyFromEnv bool

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts. The default is 100.
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle (keep-alive)
	// connections to keep per host. The default is 100.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is the maximum amount of time an idle (keep-alive)
	// connection remains idle before closing itself.
	// The default is 90 seconds.
	IdleConnTimeout time.Duration

	// DialTimeout is the timeout for establishing a new connection.
	// The default is 30 seconds.
	DialTimeout time.Duration

	// InsecureSkipVerify controls whether the client verifies the server's
	// certificate chain and host name. If true, TLS accepts any
	// certificate presented by the server and is susceptible to
	// man-in-the-middle attacks.
	InsecureSkipVerify bool

	// CertPath specifies the path to a PEM-encoded certificate file whose
	// certificates are used in addition to the system certificates.
	// This is typically used for local self-signed certificates.
	// If InsecureSkipVerify is true, this field is ignored.
	CertPath string

	// ServerName is used to verify the host name for self-signed
	// certificates. It is only used if CertPath is non-empty.
	ServerName string
}

// NewHTTPClient creates an HTTPClient using the specified configurations.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	if cfg.UseProxyFromEnv {
		tr.Proxy = http.ProxyFromEnvironment
	} else if cfg.ProxyURL != "" {
		pu, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		tr.Proxy = http.ProxyURL(pu)
		if cfg.ProxyUsername != "" && cfg.ProxyPassword != "" {
			tr.ProxyConnectHeader = http.Header{}
			tr.ProxyConnectHeader.Add("Proxy-Authorization",
				BasicAuth(cfg.ProxyUsername, []byte(cfg.ProxyPassword)))
		}
	}

	if cfg.MaxIdleConns != 0 {
		tr.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost != 0 {
		tr.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.IdleConnTimeout != 0 {
		tr.IdleConnTimeout = cfg.IdleConnTimeout
	}

	if cfg.UseHTTPS {
		tlsCfg, err := newTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		tr.TLSClientConfig = tlsCfg
	}

	dialTimeout := 30 * time.Second
	if cfg.DialTimeout != 0 {
		dialTimeout = cfg.DialTimeout
	}
	tr.DialContext = (&net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &HTTPClient{client: &http.Client{Transport: tr}}, nil
}

func newTLSConfig(cfg HTTPConfig) (*tls.Config, error) {
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}

	if !cfg.InsecureSkipVerify && cfg.CertPath != "" {
		certs, err := os.ReadFile(cfg.CertPath)
		if err != nil {
			return nil, err
		}
		if !rootCAs.AppendCertsFromPEM(certs) {
			return nil, fmt.Errorf("no valid PEM certs found in %s", cfg.CertPath)
		}
	}

	return &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		RootCAs:            rootCAs,
		ServerName:         cfg.ServerName,
	}, nil
}

// Do sends an HTTP request and returns an HTTP response.
// It implements the RequestExecutor interface.
func (hc *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return hc.client.Do(req)
}

// NewPostRequest creates an http POST request using the specified url and
// data.
func NewPostRequest(url string, data []byte) (*http.Request, error) {
	return http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
}

// NewGetRequest creates an http GET request using the specified url.
func NewGetRequest(url string) (*http.Request, error) {
	return http.NewRequest(http.MethodGet, url, http.NoBody)
}

// BasicAuth returns a basic authentication string of the format:
//
//	Basic base64(clientId:clientSecret)
func BasicAuth(clientID string, clientSecret []byte) string {
	s := clientID + ":" + string(clientSecret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(s))
}
