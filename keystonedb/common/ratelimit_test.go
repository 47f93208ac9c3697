//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// The tests below drive consumeInternal with a synthetic clock so they are
// deterministic and never sleep.

func TestRateLimiterStartsFull(t *testing.T) {
	rl := NewRateLimiterWithDuration(100, 1.0)
	now := time.Now().UnixNano()

	// Half the burst capacity is immediately available on a fresh limiter.
	delay := rl.consumeInternal(50, 0, false, now)
	assert.Equalf(t, time.Duration(0), delay, "consuming half the capacity of a fresh limiter should not delay")
}

func TestRateLimiterDeficitDelay(t *testing.T) {
	rl := NewRateLimiterWithDuration(100, 1.0)
	now := time.Now().UnixNano()

	// Consuming twice the burst capacity leaves a deficit of one full
	// capacity, which takes capacity/rate = 1s to pay off.
	delay := rl.consumeInternal(200, 0, false, now)
	assert.InDeltaf(t, float64(time.Second), float64(delay), float64(10*time.Millisecond),
		"consuming 2x capacity should delay for about capacity/rate")
}

func TestRateLimiterEmptyBucket(t *testing.T) {
	rl := NewRateLimiterWithDuration(10, 1.0)
	now := time.Now().UnixNano()

	// Drain the bucket, then ask for 3 more units at 10 units/sec.
	delay := rl.consumeInternal(10, 0, false, now)
	assert.Equalf(t, time.Duration(0), delay, "draining exactly the capacity should not delay")

	delay = rl.consumeInternal(3, 0, false, now)
	assert.InDeltaf(t, float64(300*time.Millisecond), float64(delay), float64(time.Millisecond),
		"3 units at 10 units/sec from an empty bucket should delay about 300ms")
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiterWithDuration(100, 1.0)
	now := time.Now().UnixNano()

	rl.consumeInternal(100, 0, false, now)

	// After 500ms, 50 units have accrued.
	later := now + 500*int64(time.Millisecond)
	delay := rl.consumeInternal(50, 0, false, later)
	assert.Equalf(t, time.Duration(0), delay, "refilled units should be immediately available")

	delay = rl.consumeInternal(1, 0, false, later)
	assert.Truef(t, delay > 0, "the bucket should be empty again after the refilled units are consumed")
}

func TestRateLimiterRefillCappedAtCapacity(t *testing.T) {
	rl := NewRateLimiterWithDuration(100, 1.0)
	now := time.Now().UnixNano()

	rl.consumeInternal(100, 0, false, now)

	// A long idle period accrues no more than one burst capacity.
	muchLater := now + 60*int64(time.Second)
	delay := rl.consumeInternal(150, 0, false, muchLater)
	assert.Truef(t, delay > 0, "refill must be capped at the burst capacity")
}

func TestRateLimiterUnconditionalConsume(t *testing.T) {
	rl := NewRateLimiterWithDuration(100, 1.0)
	now := time.Now().UnixNano()

	// An unconditional consume beyond capacity leaves the limiter over
	// its limit; the next consume pays the debt.
	delay := rl.consumeInternal(300, 0, true, now)
	assert.Truef(t, delay > 0, "consuming over capacity should report a delay")

	delay = rl.consumeInternal(1, 0, false, now)
	assert.Truef(t, delay >= 2*time.Second, "the deficit from the unconditional consume must carry over")
}

func TestRateLimiterGiveBack(t *testing.T) {
	rl := NewRateLimiterWithDuration(100, 1.0)
	now := time.Now().UnixNano()

	rl.consumeInternal(100, 0, false, now)
	rl.consumeInternal(-60, 0, false, now)

	delay := rl.consumeInternal(60, 0, false, now)
	assert.Equalf(t, time.Duration(0), delay, "given back units should be consumable without delay")
}

func TestRateLimiterTimeoutDoesNotConsume(t *testing.T) {
	rl := NewRateLimiterWithDuration(100, 1.0)
	now := time.Now().UnixNano()

	rl.consumeInternal(100, 0, false, now)

	// The wait for 100 more units is 1s, beyond the 10ms timeout, so the
	// units must not be consumed.
	delay := rl.consumeInternal(100, 10*time.Millisecond, false, now)
	assert.Truef(t, delay >= time.Second, "expected a delay beyond the timeout")

	// Capacity accrued over the next second must cover a full consume,
	// proving the timed out consume above did not take the tokens.
	later := now + int64(time.Second)
	delay = rl.consumeInternal(100, 0, false, later)
	assert.Equalf(t, time.Duration(0), delay, "a timed out consume must not take tokens")
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiterWithDuration(0, 1.0)
	assert.Equalf(t, time.Duration(0), rl.consumeInternal(1000000, 0, false, time.Now().UnixNano()),
		"a limiter with a non-positive rate must never delay")
}

func TestRateLimiterCurrentRate(t *testing.T) {
	rl := NewRateLimiterWithDuration(100, 1.0)
	assert.InDeltaf(t, 0.0, rl.GetCurrentRate(), 1.0, "a fresh limiter is at 0%% usage")

	rl.SetCurrentRate(50.0)
	assert.InDeltaf(t, 50.0, rl.GetCurrentRate(), 1.0, "usage should be settable")

	rl.SetCurrentRate(150.0)
	assert.Truef(t, rl.GetCurrentRate() > 100.0, "usage above 100%% puts the limiter over its limit")
	assert.Falsef(t, rl.TryConsumeUnits(0), "an over-limit limiter must fail the poll")
}

func TestRateLimiterMinimumDuration(t *testing.T) {
	// With a rate below one unit per second the duration widens so a
	// single unit can still be consumed.
	rl := NewRateLimiterWithDuration(0.5, 1.0)
	assert.Truef(t, rl.TryConsumeUnits(1), "a fresh low-rate limiter must allow one unit")
}

func TestRateLimiterPair(t *testing.T) {
	var pair RateLimiterPair
	assert.Nil(t, pair.GetReadRateLimiter())
	assert.Nil(t, pair.GetWriteRateLimiter())

	r := NewRateLimiter(100)
	w := NewRateLimiter(50)
	pair.SetReadRateLimiter(r)
	pair.SetWriteRateLimiter(w)
	assert.Equal(t, RateLimiter(r), pair.GetReadRateLimiter())
	assert.Equal(t, RateLimiter(w), pair.GetWriteRateLimiter())
}
