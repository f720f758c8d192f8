package hybrid

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/storage"
)

// UserCache 用户身份缓存，redis.Cache 为其生产实现
type UserCache interface {
	CacheUser(ctx context.Context, user *domain.User) error
	GetCachedUser(ctx context.Context, userID string) (*domain.User, error)
	GetCachedUserID(ctx context.Context, address string) (string, error)
	DeleteCachedUser(ctx context.Context, userID, address string) error
}

// Store 混合存储实现，数据库负责持久化，Redis 缓存用户身份查询
//
// 搜索编译与 SMTP 投递都会先查询用户，这两条路径走缓存；
// 其余操作直接委托给底层存储。
type Store struct {
	storage.Store
	cache  UserCache
	logger *zap.Logger
}

// NewStore 创建混合存储实例
func NewStore(base storage.Store, cache UserCache, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{Store: base, cache: cache, logger: logger}
}

// SaveUser 保存用户并使旧缓存失效
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	var oldAddress string
	if user.ID != "" {
		if old, err := s.Store.GetUser(ctx, user.ID); err == nil {
			oldAddress = old.Address
		}
	}

	if err := s.Store.SaveUser(ctx, user); err != nil {
		return err
	}

	if oldAddress != "" && oldAddress != user.Address {
		s.evict(ctx, user.ID, oldAddress)
	}
	s.evict(ctx, user.ID, user.Address)
	return nil
}

// GetUser 根据 ID 获取用户，优先读取缓存
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if user, err := s.cache.GetCachedUser(ctx, id); err == nil {
		return user, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("user cache read failed", zap.String("user_id", id), zap.Error(err))
	}

	user, err := s.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, user)
	return user, nil
}

// GetUserByAddress 根据地址获取用户，优先读取缓存的地址映射
func (s *Store) GetUserByAddress(ctx context.Context, address string) (*domain.User, error) {
	if id, err := s.cache.GetCachedUserID(ctx, address); err == nil {
		if user, err := s.cache.GetCachedUser(ctx, id); err == nil {
			return user, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("user cache read failed", zap.String("address", address), zap.Error(err))
	}

	user, err := s.Store.GetUserByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, user)
	return user, nil
}

func (s *Store) fill(ctx context.Context, user *domain.User) {
	if err := s.cache.CacheUser(ctx, user); err != nil {
		s.logger.Warn("user cache write failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *Store) evict(ctx context.Context, id, address string) {
	if err := s.cache.DeleteCachedUser(ctx, id, address); err != nil {
		s.logger.Warn("user cache evict failed", zap.String("user_id", id), zap.Error(err))
	}
}
