package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter 控制请求速率，避免触发交易所限流。
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// TokenBucketLimiter 令牌桶限流，等待可随 ctx 取消。
type TokenBucketLimiter struct {
	l *rate.Limiter
}

func NewTokenBucketLimiter(rps float64, burst int) *TokenBucketLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{l: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	return l.l.Wait(ctx)
}
