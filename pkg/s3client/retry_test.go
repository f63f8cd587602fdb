package s3client

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "slow down", err: &smithy.GenericAPIError{Code: "SlowDown"}, want: true},
		{name: "service unavailable", err: &smithy.GenericAPIError{Code: "ServiceUnavailable"}, want: true},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: false},
		{name: "bad digest", err: &smithy.GenericAPIError{Code: "BadDigest"}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestCalculateDelay(t *testing.T) {
	p := retryPolicy{maxRetries: 5, baseDelay: 100 * time.Millisecond, maxDelay: time.Second}

	for attempt := 0; attempt < 3; attempt++ {
		base := float64(p.baseDelay) * float64(int(1)<<attempt)
		d := p.calculateDelay(attempt)
		assert.GreaterOrEqual(t, float64(d), base*0.75)
		assert.LessOrEqual(t, float64(d), base*1.25)
	}
	assert.Equal(t, time.Second, p.calculateDelay(10))
}

func TestWithRetry(t *testing.T) {
	p := retryPolicy{maxRetries: 2, baseDelay: time.Millisecond, maxDelay: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		got, err := withRetry(context.Background(), p, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, &smithy.GenericAPIError{Code: "SlowDown"}
			}
			return 42, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), p, func() (int, error) {
			calls++
			return 0, &smithy.GenericAPIError{Code: "SlowDown"}
		})
		assert.ErrorContains(t, err, "max retries exceeded")
		assert.Equal(t, "SlowDown", ErrorCode(err))
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := retryPolicy{maxRetries: 2, baseDelay: time.Hour, maxDelay: time.Hour}
		_, err := withRetry(ctx, slow, func() (int, error) {
			return 0, &smithy.GenericAPIError{Code: "SlowDown"}
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
