package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsearch/backend/internal/domain"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(maxSize int) (*UserCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewUserCache(maxSize, time.Minute)
	c.now = clock.Now
	return c, clock
}

func TestUserCache(t *testing.T) {
	ctx := context.Background()

	t.Run("按 ID 与地址命中", func(t *testing.T) {
		c, _ := newTestCache(0)
		require.NoError(t, c.CacheUser(ctx, &domain.User{ID: "u1", Address: "jane@example.com"}))

		user, err := c.GetCachedUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", user.Address)

		id, err := c.GetCachedUserID(ctx, "Jane@Example.com")
		require.NoError(t, err)
		assert.Equal(t, "u1", id)
	})

	t.Run("过期后未命中", func(t *testing.T) {
		c, clock := newTestCache(0)
		require.NoError(t, c.CacheUser(ctx, &domain.User{ID: "u1", Address: "jane@example.com"}))

		clock.Advance(2 * time.Minute)
		_, err := c.GetCachedUser(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = c.GetCachedUserID(ctx, "jane@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		c.cleanup()
		assert.Equal(t, 0, c.Len())
	})

	t.Run("超过容量淘汰最早过期条目", func(t *testing.T) {
		c, clock := newTestCache(2)
		require.NoError(t, c.CacheUser(ctx, &domain.User{ID: "u1", Address: "a@x.com"}))
		clock.Advance(time.Second)
		require.NoError(t, c.CacheUser(ctx, &domain.User{ID: "u2", Address: "b@x.com"}))
		clock.Advance(time.Second)
		require.NoError(t, c.CacheUser(ctx, &domain.User{ID: "u3", Address: "c@x.com"}))

		assert.Equal(t, 2, c.Len())
		_, err := c.GetCachedUser(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = c.GetCachedUserID(ctx, "a@x.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("删除", func(t *testing.T) {
		c, _ := newTestCache(0)
		require.NoError(t, c.CacheUser(ctx, &domain.User{ID: "u1", Address: "jane@example.com"}))
		require.NoError(t, c.DeleteCachedUser(ctx, "u1", "jane@example.com"))

		_, err := c.GetCachedUser(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
