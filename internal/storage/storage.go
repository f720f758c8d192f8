package storage

import (
	"context"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/filter"
)

// SortOrder 邮件结果排序
type SortOrder int

const (
	SortIDAsc  SortOrder = iota // 按 ID 升序
	SortIDDesc                  // 按 ID 降序
)

// FindOptions 邮件查询选项。Limit 为 0 表示不限制。
type FindOptions struct {
	Sort   SortOrder
	Limit  int
	Offset int
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	SaveUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByAddress(ctx context.Context, address string) (*domain.User, error)
}

// MailboxRepository 定义邮箱数据存取操作。
type MailboxRepository interface {
	SaveMailbox(ctx context.Context, mailbox *domain.Mailbox) error
	GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error)
	GetMailboxByPath(ctx context.Context, userID, path string) (*domain.Mailbox, error)
	CountMailboxes(ctx context.Context, userID string, query domain.MailboxQuery) (int64, error)
	ListMailboxIDs(ctx context.Context, userID string, query domain.MailboxQuery) ([]string, error)
}

// MessageRepository 定义邮件数据存取操作。
type MessageRepository interface {
	// SaveMessage 保存新邮件，分配自增 ID 以及邮箱内的 UID
	SaveMessage(ctx context.Context, message *domain.Message) error
	FindMessages(ctx context.Context, pred filter.Predicate, opts FindOptions) ([]domain.Message, error)
	CountMessages(ctx context.Context, pred filter.Predicate) (int64, error)
}

// SearchIndexRepository 定义搜索字段迁移所需的操作。
type SearchIndexRepository interface {
	// MaxMessageID 返回当前最大邮件 ID，没有邮件时 ok 为 false
	MaxMessageID(ctx context.Context) (id int64, ok bool, err error)
	// UpdateSearchIndexes 无序批量写入搜索字段，每条更新都会被尝试，
	// 返回实际发生变化的记录数以及所有失败合并后的错误
	UpdateSearchIndexes(ctx context.Context, updates []domain.SearchIndexUpdate) (int64, error)
}

// Store 定义完整的存储接口。
type Store interface {
	UserRepository
	MailboxRepository
	MessageRepository
	SearchIndexRepository

	// 工具方法
	Close() error
	Health() error
}
