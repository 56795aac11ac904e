package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: 3,
	}
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	src := newFakeSource("u1")
	src.err = errors.New("pq: too many connections")
	b := NewBreakerSource(src, testBreakerConfig("test-open"), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.AttributesByIDs(ctx, []string{"u1"})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	calls := src.batchCalls.Load()
	_, err := b.AttributesByIDs(ctx, []string{"u1"})
	assert.ErrorIs(t, err, ErrDependencyFailure)
	assert.Equal(t, calls, src.batchCalls.Load(), "open breaker must not reach the store")

	_, err = b.GetUserAttributes(ctx, "u1")
	assert.ErrorIs(t, err, ErrDependencyFailure)
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	src := newFakeSource()
	b := NewBreakerSource(src, testBreakerConfig("test-notfound"), nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := b.GetUserAttributes(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerPassesResults(t *testing.T) {
	src := newFakeSource("u1")
	b := NewBreakerSource(src, testBreakerConfig("test-pass"), nil)
	ctx := context.Background()

	rec, err := b.GetUserAttributes(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.ID)

	tags, err := b.GetTagSet(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, tags, 1)

	p, err := b.GetPersonality(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "switch", p.Archetype)

	src.users["u1"].Personality = nil
	p, err = b.GetPersonality(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, p)

	all, err := b.AttributesByIDs(ctx, []string{"u1", "nobody"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
