package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mailsearch/backend/internal/domain"
)

// UserCache 进程内用户缓存（L1 缓存）
//
// 未配置 Redis 时作为 hybrid.Store 的缓存实现。
// 条目按 TTL 过期，超过容量时淘汰最早过期的条目。
type UserCache struct {
	mu        sync.RWMutex
	users     map[string]cacheEntry // userID -> entry
	addresses map[string]string     // address -> userID
	maxSize   int
	ttl       time.Duration
	now       func() time.Time
}

type cacheEntry struct {
	user      domain.User
	expiresAt time.Time
}

// NewUserCache 创建本地用户缓存
//
// 参数:
//   - maxSize: 最大缓存条目数，<= 0 表示不限制
//   - ttl: 条目有效期
func NewUserCache(maxSize int, ttl time.Duration) *UserCache {
	return &UserCache{
		users:     make(map[string]cacheEntry),
		addresses: make(map[string]string),
		maxSize:   maxSize,
		ttl:       ttl,
		now:       time.Now,
	}
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// CacheUser 缓存用户信息及地址映射
func (c *UserCache) CacheUser(_ context.Context, user *domain.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.users[user.ID]; !exists && c.maxSize > 0 && len(c.users) >= c.maxSize {
		c.evictLocked(now)
	}

	c.users[user.ID] = cacheEntry{user: *user, expiresAt: now.Add(c.ttl)}
	c.addresses[normalize(user.Address)] = user.ID
	return nil
}

// GetCachedUser 获取缓存的用户信息，未命中或已过期时返回 domain.ErrNotFound
func (c *UserCache) GetCachedUser(_ context.Context, userID string) (*domain.User, error) {
	c.mu.RLock()
	entry, ok := c.users[userID]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, fmt.Errorf("user %s not in cache: %w", userID, domain.ErrNotFound)
	}
	user := entry.user
	return &user, nil
}

// GetCachedUserID 根据地址获取缓存的用户 ID
func (c *UserCache) GetCachedUserID(_ context.Context, address string) (string, error) {
	c.mu.RLock()
	id, ok := c.addresses[normalize(address)]
	var entry cacheEntry
	if ok {
		entry, ok = c.users[id]
	}
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return "", fmt.Errorf("address %s not in cache: %w", address, domain.ErrNotFound)
	}
	return id, nil
}

// DeleteCachedUser 删除用户缓存
func (c *UserCache) DeleteCachedUser(_ context.Context, userID, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.users, userID)
	if address != "" {
		delete(c.addresses, normalize(address))
	}
	return nil
}

// Len 当前缓存条目数（含尚未清理的过期条目）
func (c *UserCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}

// Run 定期清理过期条目，直到 ctx 结束
func (c *UserCache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *UserCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, entry := range c.users {
		if now.After(entry.expiresAt) {
			c.removeLocked(id, entry)
		}
	}
}

// evictLocked 先清理过期条目，仍然满时淘汰最早过期的一条
func (c *UserCache) evictLocked(now time.Time) {
	var (
		oldestID string
		oldest   cacheEntry
	)
	for id, entry := range c.users {
		if now.After(entry.expiresAt) {
			c.removeLocked(id, entry)
			continue
		}
		if oldestID == "" || entry.expiresAt.Before(oldest.expiresAt) {
			oldestID, oldest = id, entry
		}
	}
	if len(c.users) >= c.maxSize && oldestID != "" {
		c.removeLocked(oldestID, oldest)
	}
}

func (c *UserCache) removeLocked(id string, entry cacheEntry) {
	delete(c.users, id)
	addr := normalize(entry.user.Address)
	if c.addresses[addr] == id {
		delete(c.addresses, addr)
	}
}
