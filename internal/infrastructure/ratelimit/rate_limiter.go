package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionFund      = "escrow_fund"
	ActionEscrow    = "escrow_action"
	ActionUpload    = "document_upload"
	ActionMilestone = "milestone_update"
)

// Policy is a refill rate and a burst size.
type Policy struct {
	Every time.Duration
	Burst int
}

// Per minute: 5 fundings, 20 escrow actions, 10 uploads, 30 milestone updates.
var defaultPolicies = map[string]Policy{
	ActionFund:      {Every: 12 * time.Second, Burst: 5},
	ActionEscrow:    {Every: 3 * time.Second, Burst: 20},
	ActionUpload:    {Every: 6 * time.Second, Burst: 10},
	ActionMilestone: {Every: 2 * time.Second, Burst: 30},
}

var fallbackPolicy = Policy{Every: 3 * time.Second, Burst: 20}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user and action.
type RateLimiter struct {
	buckets  map[string]*bucket
	policies map[string]Policy
	mutex    sync.Mutex
	now      func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithPolicies(defaultPolicies)
}

func NewRateLimiterWithPolicies(policies map[string]Policy) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		policies: policies,
		now:      time.Now,
	}
}

// Allow consumes a token for the user's action. When none is left it returns
// false and how long until the next token.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	key := userID + ":" + action
	now := rl.now()

	rl.mutex.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		policy, ok := rl.policies[action]
		if !ok {
			policy = fallbackPolicy
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Every(policy.Every), policy.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mutex.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup removes buckets that haven't been used for an hour.
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > time.Hour {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) StartCleanupRoutine(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
