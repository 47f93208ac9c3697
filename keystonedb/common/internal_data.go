//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package common

import (
	"time"
)

// InternalRequestDataInt gives all request types a set of common internal
// data: rate limiters and cumulative retry bookkeeping.
type InternalRequestDataInt interface {
	RateLimiterPairInt
	GetRetryTime() time.Duration
	SetRetryTime(d time.Duration)
}

// InternalRequestData is the struct that gets embedded in every request type.
type InternalRequestData struct {
	RateLimiterPair
	retryTime time.Duration
}

// GetRetryTime returns the time spent in the client in retries so far.
func (ird *InternalRequestData) GetRetryTime() time.Duration {
	return ird.retryTime
}

// SetRetryTime sets the time spent in the client in retries so far.
func (ird *InternalRequestData) SetRetryTime(d time.Duration) {
	ird.retryTime = d
}
