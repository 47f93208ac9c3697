//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package keystonedb

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/auth"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/httputil"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/logger"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
)

const (
	// The default timeout value for requests.
	// This applies to any requests other than TableRequest.
	defaultRequestTimeout = 5 * time.Second

	// The default timeout value for TableRequest.
	defaultTableRequestTimeout = 10 * time.Second

	// The default Consistency value.
	defaultConsistency = types.Eventual

	// The default maximum number of retries performed by the default
	// retry handler.
	defaultMaxNumRetries = 5
)

// Config represents a group of configuration parameters for a Client.
//
// When creating a Client, the Config instance is copied so modifications on
// the instance have no effect on the existing Client which is immutable.
//
// Most of the configuration parameters are optional and have default values
// if not specified. The only required parameters are the Endpoint and an
// AuthorizationProvider.
type Config struct {
	// Endpoint specifies the Keystone service endpoint the client connects
	// to. It is required.
	// It must include the target address, and may include protocol and port.
	// The syntax is:
	//
	//	[http[s]://]host[:port]
	//
	// If port is omitted, the endpoint defaults to 443.
	// If protocol is omitted, the endpoint uses https if the port is 443,
	// and http in all other cases.
	Endpoint string

	// AuthorizationProvider specifies the provider used to authorize
	// requests. Production deployments use access.SignatureProvider;
	// development servers may use auth.BearerTokenProvider.
	AuthorizationProvider auth.Provider

	// Configurations for requests.
	RequestConfig

	// Configurations for the HTTP client.
	httputil.HTTPConfig

	// Configurations for logging.
	LoggingConfig

	// RetryHandler specifies a handler used to handle operation retries.
	// If not set, a DefaultRetryHandler with exponential backoff is used.
	RetryHandler

	// RateLimitingEnabled turns on internal client-side rate limiting.
	// When enabled, the client maintains a read and a write token bucket
	// per table, sized from the table limits reported by the server, and
	// delays requests that would exceed them.
	RateLimitingEnabled bool

	// RateLimiterPercentage limits the internal rate limiters to a
	// percentage of the table limits reported by the server. This is
	// useful when multiple clients share the capacity of one table.
	// A value of zero means 100 percent.
	RateLimiterPercentage float64

	host     string
	port     string
	protocol string

	// httpClient is set by tests to supply a preconfigured client.
	httpClient *httputil.HTTPClient
}

// setDefaults validates the configuration and fills in default values.
func (c *Config) setDefaults() error {
	if err := c.parseEndpoint(); err != nil {
		return err
	}

	if c.RetryHandler == nil {
		h, err := NewDefaultRetryHandler(defaultMaxNumRetries, 0)
		if err != nil {
			return err
		}
		c.RetryHandler = h
	}

	if c.Logger == nil && !c.DisableLogging {
		c.Logger = logger.DefaultLogger
	}

	return nil
}

// parseEndpoint tries to parse the specified Endpoint, returning an error
// if Endpoint does not conform to the syntax:
//
//	[http[s]://]host[:port]
//
// The following rules are applied to the Endpoint:
//
// 1. If protocol and port are both omitted, the Endpoint uses https with
// port 443.
//
// 2. If port is omitted, the Endpoint uses 443 for https, or 8080 for http.
//
// 3. If protocol is omitted, the Endpoint uses https if the port is 443,
// and http in all other cases.
func (c *Config) parseEndpoint() (err error) {
	c.protocol, c.host, c.port, err = parseEndpoint(c.Endpoint)
	if err != nil {
		return
	}

	c.Endpoint = c.protocol + "://" + c.host + ":" + c.port
	c.UseHTTPS = c.protocol == "https"
	return nil
}

func parseEndpoint(endpoint string) (protocol, host, port string, err error) {
	if endpoint == "" {
		err = kverr.NewIllegalArgument("Endpoint must be specified")
		return
	}

	if idx := strings.Index(endpoint, "://"); idx == -1 {
		host = endpoint
	} else {
		protocol = strings.ToLower(endpoint[:idx])
		if protocol != "https" && protocol != "http" {
			return "", "", "", kverr.NewIllegalArgument(
				"the specified protocol %q is not supported, must use \"https\" or \"http\"", protocol)
		}
		host = endpoint[idx+3:]
	}

	host = strings.TrimRight(host, "/")

	bracket := strings.IndexByte(host, ']')
	colon := strings.LastIndexByte(host, ':')
	if colon > bracket {
		host, port, err = net.SplitHostPort(host)
		if err != nil {
			return "", "", "", err
		}
		if port != "" {
			portNum, err := strconv.Atoi(port)
			if err != nil || portNum < 0 {
				return "", "", "", fmt.Errorf("invalid port number %s", port)
			}
		}
	}

	if host == "" {
		return "", "", "", kverr.NewIllegalArgument("invalid endpoint %q", endpoint)
	}

	switch {
	case protocol == "" && port == "":
		protocol = "https"
		port = "443"

	case protocol == "":
		if port == "443" {
			protocol = "https"
		} else {
			protocol = "http"
		}

	case port == "":
		if protocol == "https" {
			port = "443"
		} else {
			port = "8080"
		}
	}

	return
}

// RequestConfig represents a group of configuration parameters for requests.
type RequestConfig struct {
	// RequestTimeout specifies a timeout value for requests.
	// This applies to any requests other than TableRequest.
	// If set, it must be greater than or equal to 1 millisecond.
	RequestTimeout time.Duration

	// TableRequestTimeout specifies a timeout value for TableRequest.
	// If set, it must be greater than or equal to 1 millisecond.
	TableRequestTimeout time.Duration

	// Consistency specifies a Consistency value for read requests, which
	// include GetRequest and QueryRequest.
	// If set, it must be either types.Eventual or types.Absolute.
	Consistency types.Consistency
}

// DefaultRequestTimeout returns the default timeout value for requests.
// If there is no configured timeout or it is configured as 0, a default
// value of 5 seconds is used.
func (r *RequestConfig) DefaultRequestTimeout() time.Duration {
	if r == nil || r.RequestTimeout == 0 {
		return defaultRequestTimeout
	}
	return r.RequestTimeout
}

// DefaultTableRequestTimeout returns the default timeout value for table
// requests. If there is no configured timeout or it is configured as 0, a
// default value of 10 seconds is used.
func (r *RequestConfig) DefaultTableRequestTimeout() time.Duration {
	if r == nil || r.TableRequestTimeout == 0 {
		return defaultTableRequestTimeout
	}
	return r.TableRequestTimeout
}

// DefaultConsistency returns the default Consistency value. If there is a
// configured Consistency it is returned. Otherwise types.Eventual is used.
func (r *RequestConfig) DefaultConsistency() types.Consistency {
	if r == nil || r.Consistency == 0 {
		return defaultConsistency
	}
	return r.Consistency
}

// LoggingConfig represents logging configurations.
type LoggingConfig struct {
	// Configurations for the logger.
	// If this is not set, logger.DefaultLogger is used unless
	// DisableLogging is set.
	*logger.Logger

	// DisableLogging represents whether logging is disabled.
	DisableLogging bool
}
