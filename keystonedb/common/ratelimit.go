//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package common provides supporting types shared by the driver packages:
// client-side rate limiting and per-request internal bookkeeping.
package common

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiterPairInt gives all request types access to a pair of rate
// limiters, one accounting read units and one accounting write units.
type RateLimiterPairInt interface {
	GetReadRateLimiter() RateLimiter
	GetWriteRateLimiter() RateLimiter
	SetReadRateLimiter(rl RateLimiter)
	SetWriteRateLimiter(rl RateLimiter)
}

// RateLimiterPair is the struct that gets embedded in every request type.
// Either limiter may be nil, meaning the corresponding direction is not
// limited.
type RateLimiterPair struct {
	ReadLimiter  RateLimiter
	WriteLimiter RateLimiter
}

// GetReadRateLimiter returns the read limiter for a request, which may be nil.
func (rlp *RateLimiterPair) GetReadRateLimiter() RateLimiter {
	return rlp.ReadLimiter
}

// GetWriteRateLimiter returns the write limiter for a request, which may be nil.
func (rlp *RateLimiterPair) GetWriteRateLimiter() RateLimiter {
	return rlp.WriteLimiter
}

// SetReadRateLimiter sets a read rate limiter instance to use during
// request execution.
func (rlp *RateLimiterPair) SetReadRateLimiter(rl RateLimiter) {
	rlp.ReadLimiter = rl
}

// SetWriteRateLimiter sets a write rate limiter instance to use during
// request execution.
func (rlp *RateLimiterPair) SetWriteRateLimiter(rl RateLimiter) {
	rlp.WriteLimiter = rl
}

// RateLimiter paces operations against a throughput limit expressed in
// units per second.
//
// # Thread safety
//
// Implementations must be safe for use by multiple goroutines concurrently.
// Many goroutines may share one limiter instance so that all of them
// together do not exceed a given limit.
//
// # Typical usage
//
// The simplest use is to consume a number of units, blocking until they are
// available:
//
//	delay := limiter.ConsumeUnits(units)
//
// When the cost of an operation is only known after it completed, first wait
// until the limiter is below its limit, then report the observed cost:
//
//	_, err := limiter.ConsumeUnitsWithTimeout(0, timeout, false)
//	if err != nil {
//	    // could not get under the limit within the timeout
//	}
//	units := ... do the operation, observe its cost ...
//	limiter.ConsumeUnitsUnconditionally(units)
//
// The unconditional consume may drive the limiter over its limit; later
// consumes pay the debt by waiting.
//
// # Burst capacity
//
// A limiter accrues unused capacity for a configurable duration. With a
// limit of 100 units per second and a duration of 5 seconds, a limiter left
// idle for 5 seconds allows an immediate consume of 500 units with no delay.
type RateLimiter interface {

	// ConsumeUnits consumes a number of units, blocking until the units
	// are available. It returns the amount of time blocked, or 0 if the
	// units were immediately available.
	ConsumeUnits(units int64) time.Duration

	// TryConsumeUnits consumes the specified number of units if they are
	// immediately available and returns true, otherwise consumes nothing
	// and returns false.
	// With units set to zero it polls whether the limiter is currently
	// below its limit. Negative units are given back to the limiter.
	TryConsumeUnits(units int64) bool

	// ConsumeUnitsWithTimeout attempts to consume a number of units,
	// blocking until the units are available or the specified timeout
	// expires. It returns the amount of time blocked.
	//
	// Negative units are given back to the limiter. A timeout of 0 blocks
	// indefinitely. If alwaysConsume is true the units are consumed even
	// when the call times out.
	ConsumeUnitsWithTimeout(units int64, timeout time.Duration, alwaysConsume bool) (time.Duration, error)

	// ConsumeUnitsUnconditionally consumes units without checking or
	// waiting. The consumed amount is applied regardless of the limiter's
	// current over/under limit state and may drive it over the limit.
	// Negative units are given back.
	ConsumeUnitsUnconditionally(units int64)

	// GetLimitPerSecond returns the configured limit in units per second.
	GetLimitPerSecond() float64

	// SetLimitPerSecond sets a new limit in units per second.
	// Changing the limit may lead to spiky behavior and affects other
	// goroutines currently operating on the same limiter instance.
	SetLimitPerSecond(rateLimitPerSecond float64)

	// GetDuration returns the burst duration in seconds.
	GetDuration() float64

	// SetDuration sets the burst duration, which controls how much unused
	// capacity from the past the limiter accrues.
	SetDuration(durationSecs float64)

	// GetCurrentRate returns the current usage as a percentage of the
	// limit. A value above 100 means the limiter is over its limit.
	GetCurrentRate() float64

	// SetCurrentRate sets the current usage as a percentage of the limit.
	// A value above 100 puts the limiter over its limit. This does not
	// modify the limit itself.
	SetCurrentRate(rateToSet float64)

	// Reset restores the limiter to its freshly constructed state, with
	// the full burst capacity available.
	Reset()
}

const nanosPerSecFloat = 1000000000.0

// TokenBucketLimiter is a token bucket implementation of RateLimiter.
//
// The bucket holds up to ratePerSec*durationSecs tokens, one token per unit,
// and refills continuously at ratePerSec. A new limiter starts with a full
// bucket. Consuming more tokens than the bucket holds leaves the token count
// negative; the deficit translates into the delay callers must wait.
type TokenBucketLimiter struct {
	mux sync.Mutex

	// ratePerSec is the refill rate in units per second.
	// A non-positive rate disables the limiter.
	ratePerSec float64

	// durationSecs is the burst window. Bucket capacity is
	// ratePerSec*durationSecs, never less than one token.
	durationSecs float64

	// tokens is the current token count. It goes negative when units are
	// consumed unconditionally beyond the available capacity.
	tokens float64

	// lastRefillNano is the time of the last refill in Unix nanoseconds.
	lastRefillNano int64
}

var _ RateLimiter = (*TokenBucketLimiter)(nil)

// NewRateLimiter creates a token bucket limiter with a burst duration of
// one second, so it allows unused units from within the last second to be
// consumed at once.
func NewRateLimiter(rateLimitPerSec float64) *TokenBucketLimiter {
	return NewRateLimiterWithDuration(rateLimitPerSec, 1.0)
}

// NewRateLimiterWithDuration creates a token bucket limiter with the
// specified burst duration in seconds.
func NewRateLimiterWithDuration(rateLimitPerSec, durationSecs float64) *TokenBucketLimiter {
	rl := &TokenBucketLimiter{
		ratePerSec:   rateLimitPerSec,
		durationSecs: durationSecs,
	}
	rl.enforceMinimumDuration()
	rl.Reset()
	return rl
}

// capacity returns the maximum token count.
// The caller must hold the mutex or otherwise own the limiter.
func (rl *TokenBucketLimiter) capacity() float64 {
	return rl.ratePerSec * rl.durationSecs
}

// enforceMinimumDuration widens the duration so that the bucket holds at
// least one token, keeping a consume of a single unit able to succeed.
func (rl *TokenBucketLimiter) enforceMinimumDuration() {
	if rl.ratePerSec > 0 && rl.capacity() < 1.0 {
		rl.durationSecs = 1.0 / rl.ratePerSec
	}
}

// refill adds the tokens accrued since the last refill, capped at capacity.
// The caller must hold the mutex.
func (rl *TokenBucketLimiter) refill(nowNanos int64) {
	elapsed := nowNanos - rl.lastRefillNano
	rl.lastRefillNano = nowNanos
	if elapsed <= 0 {
		return
	}

	rl.tokens += float64(elapsed) / nanosPerSecFloat * rl.ratePerSec
	if max := rl.capacity(); rl.tokens > max {
		rl.tokens = max
	}
}

// consumeInternal updates the token count and returns the time the caller
// needs to wait for the consume to be paid for. It returns immediately in
// all cases.
//
// The units are actually consumed when the wait is zero, when alwaysConsume
// is set, when timeout is zero (wait without bound) or when the wait fits
// within the timeout. They are not consumed when the caller is going to
// give up.
func (rl *TokenBucketLimiter) consumeInternal(units int64, timeout time.Duration,
	alwaysConsume bool, nowNanos int64) time.Duration {

	if rl.ratePerSec <= 0 {
		return 0
	}

	rl.mux.Lock()
	defer rl.mux.Unlock()

	rl.refill(nowNanos)

	if units < 0 {
		rl.tokens -= float64(units)
		if max := rl.capacity(); rl.tokens > max {
			rl.tokens = max
		}
		return 0
	}

	needed := float64(units)
	if rl.tokens >= needed {
		rl.tokens -= needed
		return 0
	}

	// Not enough tokens. The deficit determines the wait.
	deficit := needed - rl.tokens
	sleepTime := time.Duration(deficit / rl.ratePerSec * nanosPerSecFloat)

	if alwaysConsume || timeout == 0 || sleepTime < timeout {
		rl.tokens -= needed
	}
	return sleepTime
}

// ConsumeUnits consumes a number of units, blocking until the units are
// available. It returns the amount of time blocked, or 0 if the units were
// immediately available.
func (rl *TokenBucketLimiter) ConsumeUnits(units int64) time.Duration {
	sleepTime := rl.consumeInternal(units, 0, false, time.Now().UnixNano())
	if sleepTime > 0 {
		time.Sleep(sleepTime)
	}
	return sleepTime
}

// TryConsumeUnits consumes the specified number of units if they are
// immediately available and returns true, otherwise consumes nothing and
// returns false.
func (rl *TokenBucketLimiter) TryConsumeUnits(units int64) bool {
	return rl.consumeInternal(units, 1, false, time.Now().UnixNano()) == 0
}

// ConsumeUnitsWithTimeout attempts to consume a number of units, blocking
// until the units are available or the specified timeout expires.
// It returns the amount of time blocked.
func (rl *TokenBucketLimiter) ConsumeUnitsWithTimeout(units int64, timeout time.Duration,
	alwaysConsume bool) (time.Duration, error) {

	sleepTime := rl.consumeInternal(units, timeout, alwaysConsume, time.Now().UnixNano())
	if sleepTime == 0 {
		return 0, nil
	}

	// When the required wait exceeds the timeout, sleep up to the timeout
	// and report the failure. The units may have been consumed already if
	// alwaysConsume is set.
	if timeout > 0 && sleepTime >= timeout {
		time.Sleep(timeout)
		return timeout, fmt.Errorf("timed out waiting %v for %d units in rate limiter", timeout, units)
	}

	time.Sleep(sleepTime)
	return sleepTime, nil
}

// ConsumeUnitsUnconditionally consumes units without checking or waiting.
// This is used to reconcile an estimated cost with the cost the server
// actually reported; it may drive the limiter over its limit.
func (rl *TokenBucketLimiter) ConsumeUnitsUnconditionally(units int64) {
	rl.consumeInternal(units, 0, true, time.Now().UnixNano())
}

// GetLimitPerSecond returns the configured limit in units per second.
func (rl *TokenBucketLimiter) GetLimitPerSecond() float64 {
	rl.mux.Lock()
	defer rl.mux.Unlock()
	return rl.ratePerSec
}

// SetLimitPerSecond sets a new limit in units per second, clamping the
// available tokens to the new capacity.
func (rl *TokenBucketLimiter) SetLimitPerSecond(rateLimitPerSecond float64) {
	rl.mux.Lock()
	defer rl.mux.Unlock()

	rl.ratePerSec = rateLimitPerSecond
	rl.enforceMinimumDuration()
	if max := rl.capacity(); rl.tokens > max {
		rl.tokens = max
	}
}

// GetDuration returns the burst duration in seconds.
func (rl *TokenBucketLimiter) GetDuration() float64 {
	rl.mux.Lock()
	defer rl.mux.Unlock()
	return rl.durationSecs
}

// SetDuration sets the burst duration, clamping the available tokens to the
// new capacity.
func (rl *TokenBucketLimiter) SetDuration(durationSecs float64) {
	rl.mux.Lock()
	defer rl.mux.Unlock()

	rl.durationSecs = durationSecs
	rl.enforceMinimumDuration()
	if max := rl.capacity(); rl.tokens > max {
		rl.tokens = max
	}
}

// GetCurrentRate returns the current usage as a percentage of the limit.
func (rl *TokenBucketLimiter) GetCurrentRate() float64 {
	rl.mux.Lock()
	defer rl.mux.Unlock()

	if rl.ratePerSec <= 0 {
		return 0.0
	}
	rl.refill(time.Now().UnixNano())

	rate := 100.0 * (1.0 - rl.tokens/rl.capacity())
	if rate < 0.0 {
		return 0.0
	}
	return rate
}

// SetCurrentRate sets the current usage as a percentage of the limit.
// A value above 100 puts the limiter over its limit.
func (rl *TokenBucketLimiter) SetCurrentRate(percent float64) {
	rl.mux.Lock()
	defer rl.mux.Unlock()

	rl.lastRefillNano = time.Now().UnixNano()
	rl.tokens = rl.capacity() * (1.0 - percent/100.0)
}

// Reset restores the limiter to its freshly constructed state with a full
// bucket.
func (rl *TokenBucketLimiter) Reset() {
	rl.mux.Lock()
	defer rl.mux.Unlock()

	rl.tokens = rl.capacity()
	rl.lastRefillNano = time.Now().UnixNano()
}

func (rl *TokenBucketLimiter) String() string {
	rl.mux.Lock()
	defer rl.mux.Unlock()
	return fmt.Sprintf("tokens=%.3f, limit=%v, duration=%v, rate=%.2f",
		rl.tokens, rl.ratePerSec, rl.durationSecs, 100.0*(1.0-rl.tokens/rl.capacity()))
}
