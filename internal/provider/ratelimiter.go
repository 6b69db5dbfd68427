package provider

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces outgoing listing calls so one run stays inside the
// source's request quota. Tokens accrue one per interval up to burst.
type RateLimiter struct {
	mu       sync.Mutex
	burst    int
	tokens   int
	interval time.Duration
	last     time.Time

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewRateLimiter(burst int, interval time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &RateLimiter{
		burst:    burst,
		tokens:   burst,
		interval: interval,
		last:     time.Now(),
		now:      time.Now,
		after:    time.After,
	}
}

// NewPerMinuteLimiter spreads perMinute requests evenly over a minute.
func NewPerMinuteLimiter(perMinute int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return NewRateLimiter(perMinute, time.Minute/time.Duration(perMinute))
}

// Wait takes one token, sleeping until the next one accrues if the bucket
// is empty. It returns ctx.Err() if ctx ends first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		delay, ok := r.take()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.after(delay):
		}
	}
}

// Available reports the tokens currently in the bucket.
func (r *RateLimiter) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accrue()
	return r.tokens
}

func (r *RateLimiter) take() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accrue()
	if r.tokens > 0 {
		r.tokens--
		return 0, true
	}
	delay := r.interval - r.now().Sub(r.last)
	if delay <= 0 {
		delay = time.Millisecond
	}
	return delay, false
}

func (r *RateLimiter) accrue() {
	elapsed := r.now().Sub(r.last)
	n := int(elapsed / r.interval)
	if n <= 0 {
		return
	}
	r.tokens = min(r.tokens+n, r.burst)
	r.last = r.last.Add(time.Duration(n) * r.interval)
}
