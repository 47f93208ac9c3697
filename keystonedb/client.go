//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package keystonedb

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/common"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/httputil"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/internal/proto"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/internal/proto/binary"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/logger"
)

const (
	// dataServiceURI is the path at which the server accepts data
	// operations.
	dataServiceURI = "/V2/keystone/data"

	// requestIDHeader carries a unique id per HTTP request, used to
	// correlate client and server logs.
	requestIDHeader = "x-keystone-request-id"

	// rateLimiterMapLimit bounds the number of tables for which the client
	// keeps rate limiter pairs.
	rateLimiterMapLimit = 256
)

// Client represents a client used to access the Keystone NoSQL database.
//
// A single Client instance is goroutine-safe and is intended to be shared:
// it caches HTTP connections, the negotiated protocol version and, when rate
// limiting is enabled, per-table rate limiters.
type Client struct {
	// Config specifies the configurations for the client.
	// The Config instance is copied on client creation.
	Config

	// HTTPClient represents an HTTP client associated with the Client
	// instance.
	HTTPClient *httputil.HTTPClient

	// requestURL is the server URL to which data operations are posted.
	requestURL string

	// serverHost is the host of the server, set as the Host header of the
	// HTTP requests.
	serverHost string

	// executor executes the HTTP requests.
	// It is set to HTTPClient by default, and may be replaced by tests.
	executor httputil.RequestExecutor

	// logger for the client.
	logger *logger.Logger

	// serialVersion is the protocol version used to communicate with the
	// server. It starts at proto.SerialVersion and is decremented when the
	// server rejects it, until proto.MinSerialVersion.
	serialVersion int16

	// serialVerMutex guards serialVersion.
	serialVerMutex sync.RWMutex

	// rateLimiterMap holds a pair of rate limiters per table, keyed by
	// lowercased table name. It is non-nil only when rate limiting is
	// enabled.
	rateLimiterMap map[string]common.RateLimiterPair

	// rlMutex guards rateLimiterMap.
	rlMutex sync.Mutex

	// isClosed indicates if the client is closed.
	isClosed bool

	// closeMutex guards isClosed.
	closeMutex sync.RWMutex
}

// NewClient creates a Client instance with the specified configurations.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AuthorizationProvider == nil {
		return nil, kverr.NewIllegalArgument("AuthorizationProvider must be specified")
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		var err error
		httpClient, err = httputil.NewHTTPClient(cfg.HTTPConfig)
		if err != nil {
			return nil, err
		}
	}

	c := &Client{
		Config:        cfg,
		HTTPClient:    httpClient,
		requestURL:    cfg.Endpoint + dataServiceURI,
		serverHost:    cfg.host,
		executor:      httpClient,
		logger:        cfg.LoggingConfig.Logger,
		serialVersion: proto.SerialVersion,
	}

	if cfg.RateLimitingEnabled {
		c.rateLimiterMap = make(map[string]common.RateLimiterPair, 8)
	}

	return c, nil
}

// Close releases any resources used by the client.
// The client must not be used after a call to Close.
func (c *Client) Close() error {
	c.closeMutex.Lock()
	defer c.closeMutex.Unlock()

	if c.isClosed {
		return nil
	}
	c.isClosed = true

	if c.AuthorizationProvider != nil {
		return c.AuthorizationProvider.Close()
	}
	return nil
}

func (c *Client) checkClosed() error {
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()

	if c.isClosed {
		return kverr.NewIllegalState("the client is closed")
	}
	return nil
}

// Get retrieves a single row identified by the key specified in the request.
func (c *Client) Get(req *GetRequest) (*GetResult, error) {
	return c.GetWithContext(context.Background(), req)
}

// GetWithContext retrieves a single row identified by the key specified in
// the request. The operation is canceled when the specified context is done.
func (c *Client) GetWithContext(ctx context.Context, req *GetRequest) (*GetResult, error) {
	res, err := c.executeWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*GetResult), nil
}

// Put puts a row into a table.
func (c *Client) Put(req *PutRequest) (*PutResult, error) {
	return c.PutWithContext(context.Background(), req)
}

// PutWithContext puts a row into a table. The operation is canceled when the
// specified context is done.
func (c *Client) PutWithContext(ctx context.Context, req *PutRequest) (*PutResult, error) {
	res, err := c.executeWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*PutResult), nil
}

// Delete deletes a row identified by the key specified in the request.
func (c *Client) Delete(req *DeleteRequest) (*DeleteResult, error) {
	return c.DeleteWithContext(context.Background(), req)
}

// DeleteWithContext deletes a row identified by the key specified in the
// request. The operation is canceled when the specified context is done.
func (c *Client) DeleteWithContext(ctx context.Context, req *DeleteRequest) (*DeleteResult, error) {
	res, err := c.executeWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*DeleteResult), nil
}

// MultiDelete deletes multiple rows from a table in an atomic operation.
func (c *Client) MultiDelete(req *MultiDeleteRequest) (*MultiDeleteResult, error) {
	return c.MultiDeleteWithContext(context.Background(), req)
}

// MultiDeleteWithContext deletes multiple rows from a table in an atomic
// operation. The operation is canceled when the specified context is done.
func (c *Client) MultiDeleteWithContext(ctx context.Context, req *MultiDeleteRequest) (*MultiDeleteResult, error) {
	res, err := c.executeWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*MultiDeleteResult), nil
}

// Prepare prepares a query statement for execution and reuse.
func (c *Client) Prepare(req *PrepareRequest) (*PrepareResult, error) {
	return c.PrepareWithContext(context.Background(), req)
}

// PrepareWithContext prepares a query statement for execution and reuse.
// The operation is canceled when the specified context is done.
func (c *Client) PrepareWithContext(ctx context.Context, req *PrepareRequest) (*PrepareResult, error) {
	res, err := c.executeWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*PrepareResult), nil
}

// Query executes one batch of a query and returns its results.
//
// A query may return part of its results in each batch. Call Query
// repeatedly with the same request until QueryRequest.IsDone() reports the
// query is complete, see QueryRequest for an example.
func (c *Client) Query(req *QueryRequest) (*QueryResult, error) {
	return c.QueryWithContext(context.Background(), req)
}

// QueryWithContext executes one batch of a query and returns its results.
// The operation is canceled when the specified context is done.
func (c *Client) QueryWithContext(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	if req == nil {
		return nil, kverr.NewIllegalArgument("QueryRequest must be non-nil")
	}

	// Internal requests fetch one batch for one partition on behalf of the
	// query driver and bypass it.
	if req.isInternal {
		res, err := c.executeWithContext(ctx, req)
		if err != nil {
			return nil, err
		}
		return res.(*QueryResult), nil
	}

	// Once a driver exists the results are computed client-side from the
	// per-partition streams. The returned result computes lazily.
	if req.hasDriver() {
		return newQueryResult(req, false), nil
	}

	// A prepared query known to require sorting, grouping or duplicate
	// elimination across partitions goes straight to the driver.
	if req.isPrepared() && !req.isSimpleQuery() {
		req.setDefaults(&c.RequestConfig)
		if err := req.validate(); err != nil {
			return nil, err
		}
		newQueryDriver(c, req)
		return newQueryResult(req, false), nil
	}

	res, err := c.executeWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	qres := res.(*QueryResult)

	// A statement submitted without preparation may turn out to require
	// driver-side computation, which the server reports with the compiled
	// statement attached to the first response. That response carries no
	// rows; the driver takes over from here.
	if !req.isSimpleQuery() {
		driver := newQueryDriver(c, req)
		driver.prepareCost = qres.Capacity
		return newQueryResult(req, false), nil
	}
	return qres, nil
}

// DoTableRequest performs an operation that manages table schema or changes
// table limits.
//
// These operations are implicitly asynchronous. The returned TableResult can
// be polled for completion using its WaitForCompletion method.
func (c *Client) DoTableRequest(req *TableRequest) (*TableResult, error) {
	return c.DoTableRequestWithContext(context.Background(), req)
}

// DoTableRequestWithContext performs an operation that manages table schema
// or changes table limits. The operation is canceled when the specified
// context is done.
func (c *Client) DoTableRequestWithContext(ctx context.Context, req *TableRequest) (*TableResult, error) {
	res, err := c.executeWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*TableResult), nil
}

// DoTableRequestAndWait performs an operation that manages table schema or
// changes table limits, and waits for the operation to complete.
func (c *Client) DoTableRequestAndWait(req *TableRequest, timeout, pollInterval time.Duration) (*TableResult, error) {
	res, err := c.DoTableRequest(req)
	if err != nil {
		return nil, err
	}
	return res.WaitForCompletion(c, timeout, pollInterval)
}

// GetTable retrieves static information about the specified table.
func (c *Client) GetTable(req *GetTableRequest) (*TableResult, error) {
	return c.GetTableWithContext(context.Background(), req)
}

// GetTableWithContext retrieves static information about the specified
// table. The operation is canceled when the specified context is done.
func (c *Client) GetTableWithContext(ctx context.Context, req *GetTableRequest) (*TableResult, error) {
	res, err := c.executeWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*TableResult), nil
}

// ListTables lists the names of all available tables.
func (c *Client) ListTables(req *ListTablesRequest) (*ListTablesResult, error) {
	return c.ListTablesWithContext(context.Background(), req)
}

// ListTablesWithContext lists the names of all available tables.
// The operation is canceled when the specified context is done.
func (c *Client) ListTablesWithContext(ctx context.Context, req *ListTablesRequest) (*ListTablesResult, error) {
	res, err := c.executeWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*ListTablesResult), nil
}

// GetSystemStatus checks the status of an administrative operation performed
// by the server.
func (c *Client) GetSystemStatus(req *SystemStatusRequest) (*SystemStatusResult, error) {
	res, err := c.executeWithContext(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return res.(*SystemStatusResult), nil
}

// VerifyConnection checks that the client can reach and authenticate with
// the configured endpoint, using a minimal list tables operation.
func (c *Client) VerifyConnection() error {
	_, err := c.ListTables(&ListTablesRequest{Limit: 1})
	return err
}

func (c *Client) getSerialVersion() int16 {
	c.serialVerMutex.RLock()
	defer c.serialVerMutex.RUnlock()
	return c.serialVersion
}

// decrementSerialVersion falls back to an earlier protocol version after the
// server rejected the current one. It returns false when there is no earlier
// version to fall back to.
func (c *Client) decrementSerialVersion(rejected int16) bool {
	c.serialVerMutex.Lock()
	defer c.serialVerMutex.Unlock()

	// Another request may have negotiated the version down already.
	if c.serialVersion < rejected {
		return true
	}
	if c.serialVersion <= proto.MinSerialVersion {
		return false
	}
	c.serialVersion--
	return true
}

// serializeRequest encodes the request into its wire representation headed
// by the serial version.
func (c *Client) serializeRequest(req Request, serialVersion int16) ([]byte, error) {
	w := binary.NewWriter()
	if _, err := w.WriteSerialVersion(serialVersion); err != nil {
		return nil, err
	}
	if err := req.serialize(w, serialVersion); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// execute runs a request through the execution pipeline with a background
// context.
func (c *Client) execute(req Request) (Result, error) {
	return c.executeWithContext(context.Background(), req)
}

// executeWithContext runs a request through the execution pipeline:
// serialize, rate-admit, sign, send, decode and classify, retrying failed
// attempts as directed by the retry handler until the request's timeout
// budget is spent.
func (c *Client) executeWithContext(ctx context.Context, req Request) (Result, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	req.setDefaults(&c.RequestConfig)
	if err := req.validate(); err != nil {
		return nil, err
	}

	timeout := req.timeout()
	startTime := time.Now()

	serialVersion := c.getSerialVersion()
	data, err := c.serializeRequest(req, serialVersion)
	if err != nil {
		return nil, err
	}

	if c.RateLimitingEnabled {
		c.attachRateLimiters(req)
	}

	var numRetries uint
	var rateDelayedTime time.Duration
	retryTime := req.GetRetryTime()
	authRefreshed := false
	var lastErr error

	for {
		elapsed := time.Since(startTime)
		if elapsed > timeout {
			return nil, kverr.NewWithCause(kverr.RequestTimeout, lastErr,
				"request timed out after %v and %d retries", elapsed, numRetries)
		}
		remaining := timeout - elapsed

		// Rate admission: wait until the relevant limiters are below their
		// limits before sending. The actual cost is charged after the
		// response arrives.
		if d, err := c.admitRequest(req, remaining); err != nil {
			return nil, kverr.NewWithCause(kverr.RequestTimeout, err,
				"request timed out waiting for rate limiters")
		} else {
			rateDelayedTime += d
		}

		result, err := c.doRequest(ctx, req, data, serialVersion, remaining)
		if err == nil {
			capacity, capErr := result.ConsumedCapacity()
			if capErr == nil {
				rateDelayedTime += c.consumeLimiterUnits(req, capacity, remaining)
			}

			if d := result.Delayed(); d != nil {
				d.RateLimitTime = rateDelayedTime
				d.RetryTime = retryTime
			}
			req.SetRetryTime(retryTime)

			if tres, ok := result.(*TableResult); ok && c.RateLimitingEnabled {
				c.updateRateLimiters(tres)
			}
			return result, nil
		}

		lastErr = err

		// The server rejected the protocol version. Fall back and
		// re-encode; this is a negotiation step, not a retry.
		if kverr.IsUnsupportedProtocol(err) {
			if !c.decrementSerialVersion(serialVersion) {
				return nil, err
			}
			serialVersion = c.getSerialVersion()
			if data, err = c.serializeRequest(req, serialVersion); err != nil {
				return nil, err
			}
			c.logger.Fine("falling back to protocol version %d", serialVersion)
			continue
		}

		// A rejected signature gets one provider refresh before the error
		// is reported.
		if kverr.Is(err, kverr.InvalidAuthorization) && !authRefreshed {
			authRefreshed = true
			if rerr := c.AuthorizationProvider.Refresh(); rerr == nil {
				c.logger.Fine("refreshed authorization after rejected signature")
				continue
			}
			return nil, err
		}

		// A throttling error means the server-side view of the table's
		// usage is at its limit. Bring the local limiters in line.
		if c.RateLimitingEnabled && kverr.IsThrottling(err) {
			if kverr.Is(err, kverr.ReadLimitExceeded) {
				if rl := req.GetReadRateLimiter(); rl != nil {
					rl.SetCurrentRate(100.0)
				}
			}
			if kverr.Is(err, kverr.WriteLimitExceeded) {
				if rl := req.GetWriteRateLimiter(); rl != nil {
					rl.SetCurrentRate(100.0)
				}
			}
		}

		if !c.RetryHandler.ShouldRetry(req, numRetries, err) {
			return nil, err
		}

		delay := c.RetryHandler.Delay(req, numRetries, err)
		if elapsed := time.Since(startTime); delay > timeout-elapsed {
			delay = timeout - elapsed
		}
		if delay > 0 {
			if werr := shouldRetryAfter(ctx, delay); werr != nil {
				return nil, kverr.NewWithCause(kverr.RequestTimeout, err,
					"request canceled while waiting to retry: %v", werr)
			}
			retryTime += delay
		}
		numRetries++
		c.logger.Fine("retry %d for request %T after %v: %v", numRetries, req, delay, err)
	}
}

// doRequest performs a single signed HTTP exchange and decodes the response.
func (c *Client) doRequest(ctx context.Context, req Request, data []byte,
	serialVersion int16, timeout time.Duration) (Result, error) {

	httpReq, err := httputil.NewPostRequest(c.requestURL, data)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set(requestIDHeader, uuid.NewString())
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("Accept", "application/octet-stream")
	httpReq.Header.Set("Connection", "keep-alive")
	httpReq.Host = c.serverHost

	if err = c.AuthorizationProvider.SignHTTPRequest(httpReq); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpResp, err := c.executor.Do(httpReq.WithContext(reqCtx))
	if err != nil {
		// Transport level failures are reported as retryable service
		// errors so transient network conditions get retried.
		return nil, kverr.NewWithCause(kverr.ServiceUnavailable, err,
			"error sending request to %s: %v", c.requestURL, err)
	}

	return c.processResponse(httpResp, req, serialVersion)
}

// processResponse decodes an HTTP response into an operation result or an
// error.
func (c *Client) processResponse(httpResp *http.Response, req Request, serialVersion int16) (Result, error) {
	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		return nil, kverr.NewWithCause(kverr.ServiceUnavailable, err,
			"error reading response body: %v", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		if httpResp.StatusCode >= 500 {
			return nil, kverr.New(kverr.ServiceUnavailable,
				"service unavailable, HTTP status %d", httpResp.StatusCode)
		}
		return nil, kverr.New(kverr.UnknownError,
			"unexpected HTTP response status %d", httpResp.StatusCode)
	}

	return c.processOKResponse(body, req, serialVersion)
}

// processOKResponse decodes the binary response payload. The payload starts
// with a status code byte; zero means success and the operation result
// follows, otherwise an error message follows.
func (c *Client) processOKResponse(body []byte, req Request, serialVersion int16) (Result, error) {
	r := binary.NewReader(body)

	code, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	if kverr.ErrorCode(code) == kverr.NoError {
		return req.deserialize(r, serialVersion)
	}

	msg, err := r.ReadNonNilString()
	if err != nil {
		return nil, err
	}
	return nil, wrapResponseError(r, kverr.ErrorCode(code), msg)
}

// wrapResponseError converts a server-reported error code and message into
// an error, reading the retry hint attached to throttling errors.
func wrapResponseError(r *binary.Reader, code kverr.ErrorCode, msg string) error {
	e := kverr.New(code, "%s", msg)

	if kverr.IsThrottling(e) {
		// Throttling errors carry a server-suggested delay in
		// milliseconds. Zero means the server has no suggestion.
		if ms, err := r.ReadPackedInt(); err == nil && ms > 0 {
			e.RetryAfter = time.Duration(ms) * time.Millisecond
		}
	}
	return e
}

// admitRequest waits until the request's rate limiters are below their
// limits, returning the time spent waiting.
func (c *Client) admitRequest(req Request, timeout time.Duration) (delayed time.Duration, err error) {
	if req.doesReads() {
		if rl := req.GetReadRateLimiter(); rl != nil {
			d, err := rl.ConsumeUnitsWithTimeout(0, timeout, false)
			delayed += d
			if err != nil {
				return delayed, err
			}
		}
	}
	if req.doesWrites() {
		if rl := req.GetWriteRateLimiter(); rl != nil {
			d, err := rl.ConsumeUnitsWithTimeout(0, timeout, false)
			delayed += d
			if err != nil {
				return delayed, err
			}
		}
	}
	return delayed, nil
}

// consumeLimiterUnits charges the cost the server actually reported to the
// request's rate limiters, returning the time spent waiting.
//
// With a positive timeout the charge may block to pay down the consumed
// units; the units are charged even if the wait times out, so later requests
// pay the remaining debt. With no timeout budget left the units are charged
// without waiting.
func (c *Client) consumeLimiterUnits(req Request, capacity Capacity, timeout time.Duration) (delayed time.Duration) {
	if rl := req.GetReadRateLimiter(); rl != nil && capacity.ReadUnits > 0 {
		delayed += consumeUnits(rl, int64(capacity.ReadUnits), timeout)
	}
	if rl := req.GetWriteRateLimiter(); rl != nil && capacity.WriteUnits > 0 {
		delayed += consumeUnits(rl, int64(capacity.WriteUnits), timeout)
	}
	return delayed
}

func consumeUnits(rl common.RateLimiter, units int64, timeout time.Duration) time.Duration {
	if timeout <= 0 {
		rl.ConsumeUnitsUnconditionally(units)
		return 0
	}
	// The error on timeout is ignored: with alwaysConsume set the units
	// were charged and the accumulated debt delays later requests.
	d, _ := rl.ConsumeUnitsWithTimeout(units, timeout, true)
	return d
}

// attachRateLimiters attaches the rate limiters cached for the request's
// table, if any.
func (c *Client) attachRateLimiters(req Request) {
	tableName := req.getTableName()
	if tableName == "" {
		return
	}

	c.rlMutex.Lock()
	defer c.rlMutex.Unlock()

	if pair, ok := c.rateLimiterMap[strings.ToLower(tableName)]; ok {
		req.SetReadRateLimiter(pair.ReadLimiter)
		req.SetWriteRateLimiter(pair.WriteLimiter)
	}
}

// updateRateLimiters creates or resizes the rate limiters for a table from
// the limits reported in a TableResult.
func (c *Client) updateRateLimiters(res *TableResult) {
	if res.TableName == "" {
		return
	}

	key := strings.ToLower(res.TableName)

	c.rlMutex.Lock()
	defer c.rlMutex.Unlock()

	if res.Limits.ReadUnits == 0 && res.Limits.WriteUnits == 0 {
		delete(c.rateLimiterMap, key)
		return
	}

	pct := c.RateLimiterPercentage
	if pct <= 0 || pct > 100 {
		pct = 100
	}
	readRate := float64(res.Limits.ReadUnits) * pct / 100
	writeRate := float64(res.Limits.WriteUnits) * pct / 100

	if pair, ok := c.rateLimiterMap[key]; ok {
		pair.ReadLimiter.SetLimitPerSecond(readRate)
		pair.WriteLimiter.SetLimitPerSecond(writeRate)
		return
	}

	if len(c.rateLimiterMap) >= rateLimiterMapLimit {
		// Evict an arbitrary entry to bound the map. Entries for tables
		// still in use are recreated on the next table metadata result.
		for k := range c.rateLimiterMap {
			delete(c.rateLimiterMap, k)
			break
		}
	}

	// A 30 second burst window smooths the delays for workloads that
	// alternate between idle and busy periods.
	c.rateLimiterMap[key] = common.RateLimiterPair{
		ReadLimiter:  common.NewRateLimiterWithDuration(readRate, 30),
		WriteLimiter: common.NewRateLimiterWithDuration(writeRate, 30),
	}
}
