//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package keystonedb

import (
	"math/rand"
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
)

// RetryHandler is consulted by the request handling system when a retryable
// error is returned. It controls the number of retries as well as the
// frequency of retries using a delaying algorithm.
//
// A default RetryHandler is always configured on a Client instance and can
// be controlled or overridden using Config.RetryHandler.
//
// It is not recommended that applications rely on a RetryHandler for
// regulating provisioned throughput. It is best to add rate limiting to the
// application based on a table's capacity and access patterns to avoid
// throttling errors, see Config.RateLimitingEnabled.
//
// Implementations of this interface must be immutable so they can be shared.
type RetryHandler interface {
	// MaxNumRetries returns the maximum number of retries that this handler
	// instance will allow before the error is reported to the application.
	MaxNumRetries() uint

	// ShouldRetry indicates whether the request should continue to retry
	// upon receiving the specified error and having attempted the specified
	// number of retries.
	ShouldRetry(req Request, numRetries uint, err error) bool

	// Delay is called when a retryable error is reported and ShouldRetry has
	// returned true. It returns the delay to wait before the next attempt;
	// the request handling system performs the actual wait so it can observe
	// context cancellation while waiting.
	Delay(req Request, numRetries uint, err error) time.Duration
}

const (
	// defaultRetryBaseDelay is the first backoff step when no fixed retry
	// interval is configured. Each subsequent retry doubles it.
	defaultRetryBaseDelay = time.Second

	// defaultMaxBackoff caps the exponential backoff delay.
	defaultMaxBackoff = 32 * time.Second
)

// DefaultRetryHandler is the default implementation of the RetryHandler
// interface.
//
// With a zero retry interval it delays retries with a capped exponential
// backoff plus a randomized jitter, honoring a server-suggested delay for
// throttling errors when one is present.
type DefaultRetryHandler struct {
	maxNumRetries uint
	retryInterval time.Duration
	maxBackoff    time.Duration
}

// NewDefaultRetryHandler creates a DefaultRetryHandler with the specified
// maximum number of retries and retry interval.
//
// A zero retry interval selects the exponential backoff algorithm, which is
// the recommended setting. A non-zero interval must be greater than or equal
// to 1 millisecond and is used as a fixed delay between retries.
func NewDefaultRetryHandler(maxNumRetries uint, retryInterval time.Duration) (*DefaultRetryHandler, error) {
	if retryInterval != 0 && retryInterval < time.Millisecond {
		return nil, kverr.NewIllegalArgument("retry interval must be 0 or at least 1 millisecond, got %v", retryInterval)
	}

	return &DefaultRetryHandler{
		maxNumRetries: maxNumRetries,
		retryInterval: retryInterval,
		maxBackoff:    defaultMaxBackoff,
	}, nil
}

// MaxNumRetries returns the maximum number of retries that this handler
// will allow before the error is reported to the application.
func (r DefaultRetryHandler) MaxNumRetries() uint {
	return r.maxNumRetries
}

// ShouldRetry reports whether the request should continue to retry upon
// receiving the specified error and having attempted the specified number
// of retries.
//
// Only errors classified retryable are retried, and only for requests whose
// operations are safe to re-submit. OperationLimitExceeded is not retried
// even though it is a throttling error, because the limit it reports applies
// to DDL operations and clears on a much longer time scale than a retry loop.
func (r DefaultRetryHandler) ShouldRetry(req Request, numRetries uint, err error) bool {
	e, ok := err.(*kverr.Error)
	if !ok || !e.Retryable() {
		return false
	}
	if e.Code == kverr.OperationLimitExceeded {
		return false
	}
	if !req.shouldRetry() {
		return false
	}

	return numRetries < r.maxNumRetries
}

// Delay returns the delay to wait before the next attempt.
//
// A server-suggested delay attached to a throttling error takes precedence.
// Otherwise, if a non-zero retryInterval is configured, that fixed interval
// is used. Otherwise the delay is an exponential backoff capped at the
// handler's maximum, plus a randomized jitter of up to one second to spread
// out retries from concurrent requests against the same table.
func (r DefaultRetryHandler) Delay(req Request, numRetries uint, err error) time.Duration {
	if e, ok := err.(*kverr.Error); ok && kverr.IsThrottling(err) && e.RetryAfter > 0 {
		return e.RetryAfter
	}

	if r.retryInterval > 0 {
		return r.retryInterval
	}

	d := computeBackoffDelay(numRetries, defaultRetryBaseDelay, r.maxBackoff)
	return d + time.Duration(rand.Intn(1000))*time.Millisecond
}

// computeBackoffDelay returns the deterministic part of the exponential
// backoff delay: baseDelay doubled per retry, capped at maxBackoff.
//
// numRetries starts at 1 for the first retry.
func computeBackoffDelay(numRetries uint, baseDelay, maxBackoff time.Duration) time.Duration {
	if numRetries < 1 {
		numRetries = 1
	}
	d := baseDelay
	for i := uint(1); i < numRetries; i++ {
		d *= 2
		if maxBackoff > 0 && d >= maxBackoff {
			return maxBackoff
		}
	}
	if maxBackoff > 0 && d > maxBackoff {
		d = maxBackoff
	}
	return d
}
