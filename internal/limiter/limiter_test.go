package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewDisabled(t *testing.T) {
	l := New(Config{RPS: 0})
	assert.False(t, l.Enabled())

	l = New(Config{RPS: 10, Burst: 20})
	assert.True(t, l.Enabled())
	assert.Equal(t, float64(10), float64(l.limiter.Limit()))
	assert.Equal(t, 20, l.limiter.Burst())
}

func TestBurstDefaultsToRPS(t *testing.T) {
	l := New(Config{RPS: 5})
	assert.Equal(t, 5, l.limiter.Burst())
}

func TestUnaryInterceptorBlocksPastBurst(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	interceptor := l.UnaryInterceptor()

	handler := func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	}

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	assert.NoError(t, err)

	// Bucket is empty and refilling would blow the short deadline, so the
	// limiter refuses outright.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{}, handler)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
}

func TestWaitHonorsCancelledContext(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	require.NoError(t, l.wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.wait(ctx)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Canceled, st.Code())
}

func TestStreamInterceptorDisabledPassthrough(t *testing.T) {
	l := New(Config{})
	interceptor := l.StreamInterceptor()

	called := false
	err := interceptor(nil, fakeStream{ctx: context.Background()}, &grpc.StreamServerInfo{},
		func(srv any, ss grpc.ServerStream) error {
			called = true
			return nil
		})
	assert.NoError(t, err)
	assert.True(t, called)
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s fakeStream) Context() context.Context { return s.ctx }
