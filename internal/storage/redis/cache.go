package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"mailsearch/backend/internal/domain"
)

// DefaultUserTTL 用户缓存的默认有效期
const DefaultUserTTL = 5 * time.Minute

// Cache 缓存搜索编译阶段使用的用户身份记录
type Cache struct {
	client *Client
	ttl    time.Duration
}

// NewCache 基于 Client 创建用户缓存，ttl <= 0 时使用默认有效期
func NewCache(client *Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func userKey(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

func addressKey(address string) string {
	return fmt.Sprintf("user:address:%s", strings.ToLower(strings.TrimSpace(address)))
}

// CacheUser 缓存用户信息及地址映射
func (c *Cache) CacheUser(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	pipe := c.client.rdb.TxPipeline()
	pipe.Set(ctx, userKey(user.ID), data, c.ttl)
	pipe.Set(ctx, addressKey(user.Address), user.ID, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// GetCachedUser 获取缓存的用户信息，未命中时返回 domain.ErrNotFound
func (c *Cache) GetCachedUser(ctx context.Context, userID string) (*domain.User, error) {
	data, err := c.client.rdb.Get(ctx, userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("user %s not in cache: %w", userID, domain.ErrNotFound)
		}
		return nil, err
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &user, nil
}

// GetCachedUserID 根据地址获取缓存的用户 ID
func (c *Cache) GetCachedUserID(ctx context.Context, address string) (string, error) {
	id, err := c.client.rdb.Get(ctx, addressKey(address)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", fmt.Errorf("address %s not in cache: %w", address, domain.ErrNotFound)
		}
		return "", err
	}
	return id, nil
}

// DeleteCachedUser 删除用户缓存，address 为空时仅删除 ID 键
func (c *Cache) DeleteCachedUser(ctx context.Context, userID, address string) error {
	keys := []string{userKey(userID)}
	if address != "" {
		keys = append(keys, addressKey(address))
	}
	return c.client.rdb.Del(ctx, keys...).Err()
}
