package hybrid

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/storage/memory"
)

type fakeCache struct {
	users     map[string]domain.User
	addresses map[string]string
	hits      int
	readErr   error
}

func newFakeCache() *fakeCache {
	return &fakeCache{users: map[string]domain.User{}, addresses: map[string]string{}}
}

func (c *fakeCache) CacheUser(_ context.Context, user *domain.User) error {
	c.users[user.ID] = *user
	c.addresses[user.Address] = user.ID
	return nil
}

func (c *fakeCache) GetCachedUser(_ context.Context, userID string) (*domain.User, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	user, ok := c.users[userID]
	if !ok {
		return nil, fmt.Errorf("miss: %w", domain.ErrNotFound)
	}
	c.hits++
	return &user, nil
}

func (c *fakeCache) GetCachedUserID(_ context.Context, address string) (string, error) {
	if c.readErr != nil {
		return "", c.readErr
	}
	id, ok := c.addresses[address]
	if !ok {
		return "", fmt.Errorf("miss: %w", domain.ErrNotFound)
	}
	return id, nil
}

func (c *fakeCache) DeleteCachedUser(_ context.Context, userID, address string) error {
	delete(c.users, userID)
	delete(c.addresses, address)
	return nil
}

func TestStore_UserReadThrough(t *testing.T) {
	ctx := context.Background()
	base := memory.NewStore()
	cache := newFakeCache()
	store := NewStore(base, cache, nil)

	user := &domain.User{Username: "jane", Address: "jane@example.com"}
	require.NoError(t, store.SaveUser(ctx, user))

	t.Run("首次读取回填缓存", func(t *testing.T) {
		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "jane", got.Username)
		assert.Equal(t, 0, cache.hits)
		assert.Contains(t, cache.users, user.ID)
	})

	t.Run("再次读取命中缓存", func(t *testing.T) {
		got, err := store.GetUserByAddress(ctx, "jane@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, 1, cache.hits)
	})

	t.Run("更新地址后旧缓存失效", func(t *testing.T) {
		user.Address = "jane.doe@example.com"
		require.NoError(t, store.SaveUser(ctx, user))
		assert.NotContains(t, cache.users, user.ID)
		assert.NotContains(t, cache.addresses, "jane@example.com")

		_, err := store.GetUserByAddress(ctx, "jane@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("用户不存在", func(t *testing.T) {
		_, err := store.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStore_CacheFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	base := memory.NewStore()
	user := &domain.User{Username: "bob", Address: "bob@example.com"}
	require.NoError(t, base.SaveUser(ctx, user))

	cache := newFakeCache()
	cache.readErr = errors.New("connection refused")
	store := NewStore(base, cache, nil)

	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
}
