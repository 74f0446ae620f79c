// Package limiter provides token-bucket request throttling for the
// Flight server's gRPC interceptor chain.
package limiter

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/framesift/framesift/internal/metrics"
)

// Config sizes the token bucket. RPS zero disables limiting entirely;
// Burst zero means one full second of requests.
type Config struct {
	RPS   int
	Burst int
}

// RateLimiter gates requests through one shared token bucket.
type RateLimiter struct {
	limiter *rate.Limiter
	enabled bool
}

// New builds a limiter from config.
func New(cfg Config) *RateLimiter {
	if cfg.RPS <= 0 {
		return &RateLimiter{enabled: false}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RPS
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		enabled: true,
	}
}

// Enabled reports whether the limiter actually gates anything.
func (l *RateLimiter) Enabled() bool {
	return l.enabled
}

// wait blocks until a token is available or the context ends.
func (l *RateLimiter) wait(ctx context.Context) error {
	if !l.enabled {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return status.FromContextError(err).Err()
		}
		metrics.RateLimitRequestsTotal.WithLabelValues("throttled").Inc()
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
	return nil
}

// UnaryInterceptor gates unary RPCs, GetFlightInfo included.
func (l *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := l.wait(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor gates streaming RPCs, which covers DoAction and
// DoGet. The token is charged once per stream, not per message.
func (l *RateLimiter) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := l.wait(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}
