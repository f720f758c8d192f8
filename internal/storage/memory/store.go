package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mailsearch/backend/internal/domain"
)

// Store 使用内存保存用户、邮箱与邮件数据，主要用于开发验证和测试。
type Store struct {
	mu        sync.RWMutex
	users     map[string]*domain.User    // userID -> user
	byAddress map[string]string          // address -> userID
	mailboxes map[string]*domain.Mailbox // mailboxID -> mailbox
	byPath    map[string]string          // userID + path -> mailboxID
	messages  map[int64]*domain.Message  // messageID -> message
	nextID    int64
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:     make(map[string]*domain.User),
		byAddress: make(map[string]string),
		mailboxes: make(map[string]*domain.Mailbox),
		byPath:    make(map[string]string),
		messages:  make(map[int64]*domain.Message),
	}
}

// SaveUser 保存用户，ID 为空时自动生成。
func (s *Store) SaveUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.Address = strings.ToLower(strings.TrimSpace(user.Address))
	user.UpdatedAt = time.Now()

	if old, ok := s.users[user.ID]; ok {
		delete(s.byAddress, old.Address)
	}
	copied := *user
	s.users[user.ID] = &copied
	s.byAddress[user.Address] = user.ID
	return nil
}

// GetUser 根据 ID 获取用户。
func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	copied := *user
	return &copied, nil
}

// GetUserByAddress 根据投递地址获取用户。
func (s *Store) GetUserByAddress(ctx context.Context, address string) (*domain.User, error) {
	s.mu.RLock()
	id, ok := s.byAddress[strings.ToLower(strings.TrimSpace(address))]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user %s: %w", address, domain.ErrNotFound)
	}
	return s.GetUser(ctx, id)
}

// SaveMailbox 保存邮箱，ID 为空时自动生成。
func (s *Store) SaveMailbox(_ context.Context, mailbox *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mailbox.ID == "" {
		mailbox.ID = uuid.NewString()
	}
	if mailbox.CreatedAt.IsZero() {
		mailbox.CreatedAt = time.Now()
	}
	if mailbox.UIDNext <= 0 {
		mailbox.UIDNext = 1
	}

	copied := *mailbox
	s.mailboxes[mailbox.ID] = &copied
	s.byPath[pathKey(mailbox.UserID, mailbox.Path)] = mailbox.ID
	return nil
}

// GetMailbox 根据 ID 获取邮箱。
func (s *Store) GetMailbox(_ context.Context, id string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mailbox, ok := s.mailboxes[id]
	if !ok {
		return nil, fmt.Errorf("mailbox %s: %w", id, domain.ErrNotFound)
	}
	copied := *mailbox
	return &copied, nil
}

// GetMailboxByPath 根据用户与路径获取邮箱。
func (s *Store) GetMailboxByPath(ctx context.Context, userID, path string) (*domain.Mailbox, error) {
	s.mu.RLock()
	id, ok := s.byPath[pathKey(userID, path)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mailbox %s: %w", path, domain.ErrNotFound)
	}
	return s.GetMailbox(ctx, id)
}

// CountMailboxes 统计用户名下满足条件的邮箱数量。
func (s *Store) CountMailboxes(_ context.Context, userID string, query domain.MailboxQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, mb := range s.mailboxes {
		if mb.UserID == userID && matchesMailboxQuery(mb, query) {
			count++
		}
	}
	return count, nil
}

// ListMailboxIDs 返回用户名下满足条件的邮箱 ID（升序）。
func (s *Store) ListMailboxIDs(_ context.Context, userID string, query domain.MailboxQuery) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for _, mb := range s.mailboxes {
		if mb.UserID == userID && matchesMailboxQuery(mb, query) {
			ids = append(ids, mb.ID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func matchesMailboxQuery(mb *domain.Mailbox, query domain.MailboxQuery) bool {
	if len(query.SpecialUse) > 0 && !slices.Contains(query.SpecialUse, mb.SpecialUse) {
		return false
	}
	return !slices.Contains(query.ExcludeSpecialUse, mb.SpecialUse)
}

func pathKey(userID, path string) string {
	return userID + "\x00" + path
}

// Close 关闭存储（内存实现无需释放资源）。
func (s *Store) Close() error {
	return nil
}

// Health 检查存储健康状态。
func (s *Store) Health() error {
	return nil
}
