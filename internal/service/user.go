package service

import (
	"context"
	"errors"
	"strings"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/storage"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrAddressTaken   = errors.New("address already registered")
)

// defaultMailboxes 新用户默认创建的邮箱
var defaultMailboxes = []struct {
	path       string
	specialUse domain.SpecialUse
}{
	{domain.InboxPath, domain.SpecialUseNone},
	{"Sent", domain.SpecialUseSent},
	{"Drafts", domain.SpecialUseDrafts},
	{"Junk", domain.SpecialUseJunk},
	{"Trash", domain.SpecialUseTrash},
}

// UserService 用户开户
type UserService struct {
	store storage.Store
}

// NewUserService 创建用户服务
func NewUserService(store storage.Store) *UserService {
	return &UserService{store: store}
}

// CreateUserInput 创建用户输入
type CreateUserInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Address  string `json:"address"`
}

// Create 创建用户及默认邮箱
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, []domain.Mailbox, error) {
	address := strings.ToLower(strings.TrimSpace(input.Address))
	local, host, ok := strings.Cut(address, "@")
	if !ok || local == "" || host == "" {
		return nil, nil, ErrInvalidAddress
	}

	if _, err := s.store.GetUserByAddress(ctx, address); err == nil {
		return nil, nil, ErrAddressTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}

	username := strings.TrimSpace(input.Username)
	if username == "" {
		username = local
	}

	user := &domain.User{Username: username, Name: strings.TrimSpace(input.Name), Address: address}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, nil, err
	}

	mailboxes := make([]domain.Mailbox, 0, len(defaultMailboxes))
	for _, def := range defaultMailboxes {
		mb := &domain.Mailbox{UserID: user.ID, Path: def.path, SpecialUse: def.specialUse}
		if err := s.store.SaveMailbox(ctx, mb); err != nil {
			return nil, nil, err
		}
		mailboxes = append(mailboxes, *mb)
	}

	return user, mailboxes, nil
}

// Get 根据 ID 获取用户
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.store.GetUser(ctx, id)
}
