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

	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
)

func TestBackoffDelayMonotone(t *testing.T) {
	prev := time.Duration(0)
	for n := uint(1); n <= 10; n++ {
		d := computeBackoffDelay(n, time.Second, 32*time.Second)
		assert.GreaterOrEqualf(t, d, prev, "backoff delay decreased at retry %d", n)
		assert.LessOrEqualf(t, d, 32*time.Second, "backoff delay exceeds cap at retry %d", n)
		prev = d
	}

	assert.Equal(t, time.Second, computeBackoffDelay(1, time.Second, 32*time.Second))
	assert.Equal(t, 2*time.Second, computeBackoffDelay(2, time.Second, 32*time.Second))
	assert.Equal(t, 32*time.Second, computeBackoffDelay(10, time.Second, 32*time.Second))
}

// TestRetryBudget checks the retry budget semantics: a handler created for
// 2 retries allows exactly 3 attempts in total.
func TestRetryBudget(t *testing.T) {
	h, err := NewDefaultRetryHandler(2, 0)
	assert.NoError(t, err)

	req := &GetRequest{}
	e := kverr.New(kverr.ServerError, "transient server error")

	// The first attempt has failed: numRetries is 0.
	assert.True(t, h.ShouldRetry(req, 0, e), "first retry should be allowed")
	assert.True(t, h.ShouldRetry(req, 1, e), "second retry should be allowed")
	assert.False(t, h.ShouldRetry(req, 2, e), "third retry should not be allowed")
}

func TestRetryNonRetryableErrors(t *testing.T) {
	h, err := NewDefaultRetryHandler(5, 0)
	assert.NoError(t, err)

	req := &GetRequest{}
	for _, code := range []kverr.ErrorCode{
		kverr.IllegalArgument,
		kverr.TableNotFound,
		kverr.BadProtocolMessage,
		kverr.RequestSizeLimitExceeded,
	} {
		e := kverr.New(code, "some error")
		assert.Falsef(t, h.ShouldRetry(req, 0, e), "%v should not be retried", code)
	}

	// An error that is not a driver error is never retried.
	assert.False(t, h.ShouldRetry(req, 0, assert.AnError))
}

// Throttling errors are retryable in general, but the limit reported by
// OperationLimitExceeded clears on a much longer time scale than the retry
// loop, so it is reported to the application immediately.
func TestRetryOperationLimit(t *testing.T) {
	h, err := NewDefaultRetryHandler(5, 0)
	assert.NoError(t, err)

	req := &GetRequest{}
	assert.True(t, h.ShouldRetry(req, 0, kverr.New(kverr.ReadLimitExceeded, "throttled")))
	assert.False(t, h.ShouldRetry(req, 0, kverr.New(kverr.OperationLimitExceeded, "too many DDL operations")))
}

// Requests whose operations are not safe to re-submit are never retried,
// regardless of the error.
func TestRetryRespectsRequestType(t *testing.T) {
	h, err := NewDefaultRetryHandler(5, 0)
	assert.NoError(t, err)

	e := kverr.New(kverr.ServerError, "transient server error")
	assert.False(t, h.ShouldRetry(&TableRequest{}, 0, e))
	assert.False(t, h.ShouldRetry(&MultiDeleteRequest{}, 0, e))
	assert.True(t, h.ShouldRetry(&PutRequest{}, 0, e))
}

func TestRetryDelayHonorsServerHint(t *testing.T) {
	h, err := NewDefaultRetryHandler(5, 0)
	assert.NoError(t, err)

	e := kverr.New(kverr.WriteLimitExceeded, "throttled")
	e.RetryAfter = 250 * time.Millisecond
	assert.Equal(t, 250*time.Millisecond, h.Delay(&PutRequest{}, 0, e),
		"a server-suggested delay should be used as is")

	// Without a hint the backoff applies.
	e2 := kverr.New(kverr.WriteLimitExceeded, "throttled")
	d := h.Delay(&PutRequest{}, 1, e2)
	assert.GreaterOrEqual(t, d, time.Second)
	assert.LessOrEqual(t, d, 2*time.Second)
}

func TestRetryDelayFixedInterval(t *testing.T) {
	h, err := NewDefaultRetryHandler(5, 10*time.Millisecond)
	assert.NoError(t, err)

	e := kverr.New(kverr.ServerError, "transient server error")
	for n := uint(0); n < 4; n++ {
		assert.Equal(t, 10*time.Millisecond, h.Delay(&GetRequest{}, n, e))
	}
}

func TestRetryHandlerValidation(t *testing.T) {
	_, err := NewDefaultRetryHandler(5, time.Microsecond)
	assert.Error(t, err, "sub-millisecond retry interval should be rejected")

	h, err := NewDefaultRetryHandler(3, 0)
	assert.NoError(t, err)
	assert.Equal(t, uint(3), h.MaxNumRetries())
}
