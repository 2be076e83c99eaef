package oracle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/docket/internal/model"
)

type countingClient struct {
	calls atomic.Int64
}

func (c *countingClient) Judge(_ context.Context, _ *Request) (*Response, error) {
	c.calls.Add(1)
	return &Response{Recommendation: model.RecommendApprove, Confidence: 0.9}, nil
}

func TestRateLimited_DelegatesWithinBudget(t *testing.T) {
	inner := &countingClient{}
	limited := NewRateLimited(inner, 60)
	defer limited.Close()

	for i := 0; i < 3; i++ {
		resp, err := limited.Judge(context.Background(), judgeRequest())
		require.NoError(t, err)
		assert.Equal(t, model.RecommendApprove, resp.Recommendation)
	}
	assert.Equal(t, int64(3), inner.calls.Load())
}

func TestRateLimited_BlocksWhenExhausted(t *testing.T) {
	inner := &countingClient{}
	// One request per minute: the bucket starts with a single token.
	limited := NewRateLimited(inner, 1)
	defer limited.Close()

	_, err := limited.Judge(context.Background(), judgeRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	_, err = limited.Judge(ctx, judgeRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), inner.calls.Load(), "no oracle call is made on a canceled wait")
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := newRateLimiter(6000) // refill every 10ms
	defer rl.Close()

	for rl.tryAcquire() {
	}
	require.False(t, rl.tryAcquire())

	assert.Eventually(t, rl.tryAcquire, time.Second, 5*time.Millisecond)
}
