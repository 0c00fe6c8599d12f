package verification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/doclearn/doclearn/internal/server/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(cache.NewCache(client), 15*time.Minute), mr
}

func TestIssueAndConsume(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Equal(t, 15*time.Minute, mr.TTL("verify:code:u1"))

	require.NoError(t, s.Consume(ctx, "u1", code))
	assert.ErrorIs(t, s.Consume(ctx, "u1", code), ErrCodeExpired)
}

func TestConsume_Mismatch(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, "u1")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, s.Consume(ctx, "u1", wrong), ErrCodeMismatch)
	require.NoError(t, s.Consume(ctx, "u1", code))
}

func TestConsume_Expired(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, "u1")
	require.NoError(t, err)
	mr.FastForward(16 * time.Minute)

	assert.ErrorIs(t, s.Consume(ctx, "u1", code), ErrCodeExpired)
}

func TestConsume_TooManyAttempts(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, "u1")
	require.NoError(t, err)

	for i := 0; i < maxAttempts; i++ {
		_ = s.Consume(ctx, "u1", "bad")
	}
	assert.ErrorIs(t, s.Consume(ctx, "u1", code), ErrTooManyAttempts)

	// a fresh code resets the counter
	code, err = s.Issue(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, s.Consume(ctx, "u1", code))
}
