package store

import (
	"context"
	"sync"
	"time"

	"github.com/gitgov-dev/gitgov-core/record"
)

// inMemoryRateLimiter is adapted from the teacher's server/ratelimit.go
// limiter, repurposed from per-user HTTP throttling to
// per-backend-instance throttling of hosted-API calls (SPEC_FULL.md
// "Rate limiting for the hosted-API backend"). It is a fixed-window
// counter: the count resets once a full window has passed since the
// window's first request.
type inMemoryRateLimiter struct {
	mutex       sync.Mutex
	windowStart time.Time
	count       int
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

func newInMemoryRateLimiter(maxRequests int, window time.Duration, now func() time.Time) *inMemoryRateLimiter {
	if now == nil {
		now = time.Now
	}
	return &inMemoryRateLimiter{maxRequests: maxRequests, window: window, now: now}
}

func (l *inMemoryRateLimiter) allow() bool {
	now := l.now()

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 1
		return true
	}
	if l.count >= l.maxRequests {
		return false
	}
	l.count++
	return true
}

// RateLimited wraps a Store so that every operation is subject to a shared
// fixed-window budget, protecting a hosted backend's API rate limit from
// a single misbehaving sync loop.
type RateLimited struct {
	inner   Store
	limiter *inMemoryRateLimiter
}

// NewRateLimited wraps inner with a limiter of maxRequests per window.
func NewRateLimited(inner Store, maxRequests int, window time.Duration) *RateLimited {
	return &RateLimited{inner: inner, limiter: newInMemoryRateLimiter(maxRequests, window, nil)}
}

func (r *RateLimited) checkBudget() error {
	if !r.limiter.allow() {
		return record.NewKindError(record.ErrInvalidData, "rate limit exceeded for store backend")
	}
	return nil
}

func (r *RateLimited) Put(ctx context.Context, id string, w *record.Wrapper) (*PutResult, error) {
	if err := r.checkBudget(); err != nil {
		return nil, err
	}
	return r.inner.Put(ctx, id, w)
}

func (r *RateLimited) Get(ctx context.Context, id string) (*record.Wrapper, error) {
	if err := r.checkBudget(); err != nil {
		return nil, err
	}
	return r.inner.Get(ctx, id)
}

func (r *RateLimited) List(ctx context.Context) ([]string, error) {
	if err := r.checkBudget(); err != nil {
		return nil, err
	}
	return r.inner.List(ctx)
}

func (r *RateLimited) Delete(ctx context.Context, id string) error {
	if err := r.checkBudget(); err != nil {
		return err
	}
	return r.inner.Delete(ctx, id)
}

func (r *RateLimited) Exists(ctx context.Context, id string) (bool, error) {
	if err := r.checkBudget(); err != nil {
		return false, err
	}
	return r.inner.Exists(ctx, id)
}

var _ Store = (*RateLimited)(nil)
