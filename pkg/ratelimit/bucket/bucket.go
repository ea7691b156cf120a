// Package bucket implements a token bucket rate limiter.
package bucket

import (
	"context"
	"math"
	"sync"
	"time"

	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
)

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration options for creating a new Bucket.
type Config struct {
	// Rate is the number of tokens added per second.
	Rate float64

	// Burst is the maximum number of tokens that can be stored.
	Burst int

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock

	// InitialTokens is the number of tokens to start with.
	// If negative, starts with full capacity.
	InitialTokens int
}

// Bucket refills at a fixed rate up to its burst size. Each event takes one
// token. It is safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	clock      Clock
}

// New creates a full bucket with the given rate and burst.
func New(rate float64, burst int) (*Bucket, error) {
	return NewWithConfig(Config{Rate: rate, Burst: burst, InitialTokens: -1})
}

// NewWithConfig creates a bucket from config after validating it.
func NewWithConfig(config Config) (*Bucket, error) {
	if config.Rate <= 0 || math.IsInf(config.Rate, 0) || math.IsNaN(config.Rate) {
		return nil, tserrors.NewValidationError("bucket", "rate", config.Rate, "rate must be a positive number").
			WithHint("leave the limiter out entirely for unlimited throughput")
	}
	if config.Burst <= 0 {
		return nil, tserrors.NewValidationError("bucket", "burst", config.Burst, "burst must be positive").
			WithHint("burst determines how many tokens can be consumed instantly")
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}

	initial := float64(config.InitialTokens)
	if config.InitialTokens < 0 || config.InitialTokens > config.Burst {
		initial = float64(config.Burst)
	}

	return &Bucket{
		rate:       config.Rate,
		burst:      config.Burst,
		tokens:     initial,
		lastUpdate: config.Clock.Now(),
		clock:      config.Clock,
	}, nil
}

// Allow takes a token if one is available and reports whether it did.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.clock.Now())
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Wait takes a token, sleeping until one is available. It returns ctx.Err()
// if ctx ends first, in which case the token is given back.
func (b *Bucket) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delay := b.reserve()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		b.release()
		return ctx.Err()
	}
}

// Tokens returns the number of tokens currently available. It is negative
// while waiters hold reservations on future tokens.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(b.clock.Now())
	return b.tokens
}

// Rate returns the refill rate in tokens per second.
func (b *Bucket) Rate() float64 {
	return b.rate
}

// Burst returns the bucket capacity.
func (b *Bucket) Burst() int {
	return b.burst
}

// reserve takes a token, possibly driving the balance negative, and returns
// how long the caller has to wait before using it.
func (b *Bucket) reserve() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.clock.Now())
	b.tokens--
	if b.tokens >= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) * -b.tokens / b.rate)
}

func (b *Bucket) release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.clock.Now())
	b.tokens = math.Min(b.tokens+1, float64(b.burst))
}

// refill adds tokens for the time elapsed since the last update.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastUpdate)
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.tokens+elapsed.Seconds()*b.rate, float64(b.burst))
	b.lastUpdate = now
}
