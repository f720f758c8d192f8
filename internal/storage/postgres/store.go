package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailsearch/backend/internal/config"
	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/filter"
	"mailsearch/backend/internal/storage"
)

// Store PostgreSQL 存储实现
type Store struct {
	db *gorm.DB
}

// messageRecord messages 表结构，搜索字段展开为独立列
type messageRecord struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	UserID         string          `gorm:"type:varchar(36);not null;index:idx_messages_user"`
	MailboxID      string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_messages_mailbox_uid"`
	UID            int64           `gorm:"not null;uniqueIndex:idx_messages_mailbox_uid"`
	ThreadID       string          `gorm:"type:varchar(998);index"`
	Subject        string          `gorm:"type:text"`
	Text           string          `gorm:"type:text"`
	Envelope       domain.Envelope `gorm:"type:jsonb;serializer:json"`
	InternalDate   time.Time       `gorm:"index"`
	Size           int64
	HasAttachments bool
	Flagged        bool `gorm:"index"`
	Unseen         bool
	Searchable     bool

	SearchIndexed  bool           `gorm:"not null;default:false;index"`
	SearchFrom     pq.StringArray `gorm:"type:text[]"`
	SearchFromName string         `gorm:"type:text"`
	SearchTo       pq.StringArray `gorm:"type:text[]"`
	SearchToName   string         `gorm:"type:text"`
	SearchCc       pq.StringArray `gorm:"type:text[]"`
	SearchCcName   string         `gorm:"type:text"`
	SearchSubject  string         `gorm:"type:text"`

	CreatedAt time.Time
}

// TableName 表名
func (messageRecord) TableName() string {
	return "messages"
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(cfg.DSN), cfg)
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Mailbox{},
		&messageRecord{},
	)
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// ========== User Repository ==========

// SaveUser 保存用户
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Save(user).Error
}

// GetUser 根据 ID 获取用户
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err, "user "+id)
	}
	return &user, nil
}

// GetUserByAddress 根据投递地址获取用户
func (s *Store) GetUserByAddress(ctx context.Context, address string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("address = LOWER(?)", address).First(&user).Error; err != nil {
		return nil, notFound(err, "user "+address)
	}
	return &user, nil
}

// ========== Mailbox Repository ==========

// SaveMailbox 保存邮箱
func (s *Store) SaveMailbox(ctx context.Context, mailbox *domain.Mailbox) error {
	if mailbox.ID == "" {
		mailbox.ID = uuid.NewString()
	}
	if mailbox.UIDNext <= 0 {
		mailbox.UIDNext = 1
	}
	return s.db.WithContext(ctx).Save(mailbox).Error
}

// GetMailbox 根据 ID 获取邮箱
func (s *Store) GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error) {
	var mailbox domain.Mailbox
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&mailbox).Error; err != nil {
		return nil, notFound(err, "mailbox "+id)
	}
	return &mailbox, nil
}

// GetMailboxByPath 根据用户与路径获取邮箱
func (s *Store) GetMailboxByPath(ctx context.Context, userID, path string) (*domain.Mailbox, error) {
	var mailbox domain.Mailbox
	if err := s.db.WithContext(ctx).Where("user_id = ? AND path = ?", userID, path).First(&mailbox).Error; err != nil {
		return nil, notFound(err, "mailbox "+path)
	}
	return &mailbox, nil
}

func (s *Store) mailboxQuery(ctx context.Context, userID string, query domain.MailboxQuery) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&domain.Mailbox{}).Where("user_id = ?", userID)
	if len(query.SpecialUse) > 0 {
		q = q.Where("special_use IN ?", query.SpecialUse)
	}
	if len(query.ExcludeSpecialUse) > 0 {
		q = q.Where("special_use NOT IN ?", query.ExcludeSpecialUse)
	}
	return q
}

// CountMailboxes 统计用户名下满足条件的邮箱数量
func (s *Store) CountMailboxes(ctx context.Context, userID string, query domain.MailboxQuery) (int64, error) {
	var count int64
	if err := s.mailboxQuery(ctx, userID, query).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count mailboxes: %w", err)
	}
	return count, nil
}

// ListMailboxIDs 返回用户名下满足条件的邮箱 ID
func (s *Store) ListMailboxIDs(ctx context.Context, userID string, query domain.MailboxQuery) ([]string, error) {
	ids := make([]string, 0)
	if err := s.mailboxQuery(ctx, userID, query).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}
	return ids, nil
}

// ========== Message Repository ==========

// SaveMessage 保存新邮件，UID 在同一事务内从邮箱分配
func (s *Store) SaveMessage(ctx context.Context, message *domain.Message) error {
	rec := toRecord(message)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var uid sql.NullInt64
		var res *gorm.DB
		if rec.UID == 0 {
			res = tx.Raw(`UPDATE mailboxes SET uid_next = uid_next + 1 WHERE id = ? RETURNING uid_next - 1`, rec.MailboxID).Scan(&uid)
		} else {
			res = tx.Raw(`UPDATE mailboxes SET uid_next = GREATEST(uid_next, ?::bigint + 1) WHERE id = ? RETURNING ?::bigint`, rec.UID, rec.MailboxID, rec.UID).Scan(&uid)
		}
		if res.Error != nil {
			return res.Error
		}
		if !uid.Valid {
			return fmt.Errorf("mailbox %s: %w", rec.MailboxID, domain.ErrNotFound)
		}
		rec.UID = uid.Int64
		return tx.Create(rec).Error
	})
	if err != nil {
		return err
	}

	message.ID = rec.ID
	message.UID = rec.UID
	message.CreatedAt = rec.CreatedAt
	return nil
}

// FindMessages 返回满足谓词的邮件
func (s *Store) FindMessages(ctx context.Context, pred filter.Predicate, opts storage.FindOptions) ([]domain.Message, error) {
	where, args, err := translate(pred)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Model(&messageRecord{}).Where(where, args...)
	if opts.Sort == storage.SortIDDesc {
		q = q.Order("id DESC")
	} else {
		q = q.Order("id ASC")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var records []messageRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}

	messages := make([]domain.Message, 0, len(records))
	for i := range records {
		messages = append(messages, records[i].toMessage())
	}
	return messages, nil
}

// CountMessages 统计满足谓词的邮件数量
func (s *Store) CountMessages(ctx context.Context, pred filter.Predicate) (int64, error) {
	where, args, err := translate(pred)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&messageRecord{}).Where(where, args...).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// ========== Search Index Repository ==========

// MaxMessageID 返回当前最大邮件 ID
func (s *Store) MaxMessageID(ctx context.Context) (int64, bool, error) {
	var maxID sql.NullInt64
	if err := s.db.WithContext(ctx).Model(&messageRecord{}).Select("MAX(id)").Scan(&maxID).Error; err != nil {
		return 0, false, fmt.Errorf("max message id: %w", err)
	}
	return maxID.Int64, maxID.Valid, nil
}

// UpdateSearchIndexes 逐条写入搜索字段，单条失败不影响其余更新
func (s *Store) UpdateSearchIndexes(ctx context.Context, updates []domain.SearchIndexUpdate) (int64, error) {
	var modified int64
	var errs []error

	for _, u := range updates {
		res := s.db.WithContext(ctx).Model(&messageRecord{}).
			Where("id = ?", u.MessageID).
			Updates(searchColumns(&u.Search))
		if res.Error != nil {
			errs = append(errs, fmt.Errorf("message %d: %w", u.MessageID, res.Error))
			continue
		}
		if res.RowsAffected == 0 {
			errs = append(errs, fmt.Errorf("message %d: %w", u.MessageID, domain.ErrNotFound))
			continue
		}
		modified += res.RowsAffected
	}

	return modified, errors.Join(errs...)
}

// ========== 工具方法 ==========

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func searchColumns(index *domain.SearchIndex) map[string]any {
	return map[string]any{
		"search_indexed":   true,
		"search_from":      pq.StringArray(index.From),
		"search_from_name": index.FromName,
		"search_to":        pq.StringArray(index.To),
		"search_to_name":   index.ToName,
		"search_cc":        pq.StringArray(index.Cc),
		"search_cc_name":   index.CcName,
		"search_subject":   index.Subject,
	}
}

func toRecord(m *domain.Message) *messageRecord {
	rec := &messageRecord{
		UserID:         m.UserID,
		MailboxID:      m.MailboxID,
		UID:            m.UID,
		ThreadID:       m.ThreadID,
		Subject:        m.Subject,
		Text:           m.Text,
		Envelope:       m.Envelope,
		InternalDate:   m.InternalDate,
		Size:           m.Size,
		HasAttachments: m.HasAttachments,
		Flagged:        m.Flagged,
		Unseen:         m.Unseen,
		Searchable:     m.Searchable,
	}
	if m.Search != nil {
		rec.SearchIndexed = true
		rec.SearchFrom = m.Search.From
		rec.SearchFromName = m.Search.FromName
		rec.SearchTo = m.Search.To
		rec.SearchToName = m.Search.ToName
		rec.SearchCc = m.Search.Cc
		rec.SearchCcName = m.Search.CcName
		rec.SearchSubject = m.Search.Subject
	}
	return rec
}

func (r *messageRecord) toMessage() domain.Message {
	m := domain.Message{
		ID:             r.ID,
		UserID:         r.UserID,
		MailboxID:      r.MailboxID,
		UID:            r.UID,
		ThreadID:       r.ThreadID,
		Subject:        r.Subject,
		Text:           r.Text,
		Envelope:       r.Envelope,
		InternalDate:   r.InternalDate,
		Size:           r.Size,
		HasAttachments: r.HasAttachments,
		Flagged:        r.Flagged,
		Unseen:         r.Unseen,
		Searchable:     r.Searchable,
		CreatedAt:      r.CreatedAt,
	}
	if r.SearchIndexed {
		m.Search = &domain.SearchIndex{
			From:     emptyToNil(r.SearchFrom),
			FromName: r.SearchFromName,
			To:       emptyToNil(r.SearchTo),
			ToName:   r.SearchToName,
			Cc:       emptyToNil(r.SearchCc),
			CcName:   r.SearchCcName,
			Subject:  r.SearchSubject,
		}
	}
	return m
}

func emptyToNil(values pq.StringArray) []string {
	if len(values) == 0 {
		return nil
	}
	return []string(values)
}
