package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/filter"
	"mailsearch/backend/internal/storage"
)

// MockStore 模拟存储接口
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveUser(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockStore) GetUserByAddress(ctx context.Context, address string) (*domain.User, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockStore) CountMailboxes(ctx context.Context, userID string, query domain.MailboxQuery) (int64, error) {
	args := m.Called(ctx, userID, query)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListMailboxIDs(ctx context.Context, userID string, query domain.MailboxQuery) ([]string, error) {
	args := m.Called(ctx, userID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// 实现其他必需的接口方法（简化版）
func (m *MockStore) SaveMailbox(ctx context.Context, mailbox *domain.Mailbox) error { return nil }
func (m *MockStore) GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error) {
	return nil, domain.ErrNotFound
}
func (m *MockStore) GetMailboxByPath(ctx context.Context, userID, path string) (*domain.Mailbox, error) {
	return nil, domain.ErrNotFound
}
func (m *MockStore) SaveMessage(ctx context.Context, message *domain.Message) error { return nil }
func (m *MockStore) FindMessages(ctx context.Context, pred filter.Predicate, opts storage.FindOptions) ([]domain.Message, error) {
	return nil, nil
}
func (m *MockStore) CountMessages(ctx context.Context, pred filter.Predicate) (int64, error) {
	return 0, nil
}
func (m *MockStore) MaxMessageID(ctx context.Context) (int64, bool, error) { return 0, false, nil }
func (m *MockStore) UpdateSearchIndexes(ctx context.Context, updates []domain.SearchIndexUpdate) (int64, error) {
	return 0, nil
}
func (m *MockStore) Close() error  { return nil }
func (m *MockStore) Health() error { return nil }

var (
	eligibleQuery = domain.MailboxQuery{ExcludeSpecialUse: domain.UnsearchableSpecialUses()}
	excludedQuery = domain.MailboxQuery{SpecialUse: domain.UnsearchableSpecialUses()}
)
