package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/envelope"
	"mailsearch/backend/internal/monitoring"
	"mailsearch/backend/internal/storage"
)

// MessageService 封装邮件入库逻辑。
type MessageService struct {
	store   storage.Store
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewMessageService 创建邮件业务服务。
func NewMessageService(store storage.Store, logger *zap.Logger, metrics *monitoring.Metrics) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{store: store, logger: logger, metrics: metrics}
}

// CreateMessageInput 定义创建邮件的输入。
type CreateMessageInput struct {
	MailboxID    string
	Raw          []byte
	Flagged      bool
	Seen         bool
	InternalDate time.Time
}

// Create 解析原始邮件并保存，搜索字段在入库时生成。
//
// 垃圾邮件与废纸篓中的邮件不参与全局搜索。
func (s *MessageService) Create(ctx context.Context, input CreateMessageInput) (*domain.Message, error) {
	mailbox, err := s.store.GetMailbox(ctx, input.MailboxID)
	if err != nil {
		return nil, err
	}

	parsed, err := envelope.Parse(input.Raw)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	if input.InternalDate.IsZero() {
		input.InternalDate = time.Now().UTC()
	}

	thread := parsed.Envelope.InReplyTo
	if thread == "" {
		thread = parsed.Envelope.MessageID
	}

	message := &domain.Message{
		UserID:         mailbox.UserID,
		MailboxID:      mailbox.ID,
		ThreadID:       thread,
		Subject:        parsed.Subject,
		Text:           parsed.Text,
		Envelope:       parsed.Envelope,
		InternalDate:   input.InternalDate,
		Size:           parsed.Size,
		HasAttachments: parsed.HasAttachments,
		Flagged:        input.Flagged,
		Unseen:         !input.Seen,
		Searchable:     mailbox.Searchable(),
		Search:         envelope.ExtractSearchIndex(&parsed.Envelope, parsed.Subject),
	}

	if err := s.store.SaveMessage(ctx, message); err != nil {
		return nil, err
	}
	s.metrics.RecordMessageIndexed()

	return message, nil
}

// Deliver 把邮件投递到收件地址所属用户的收件箱，收件箱不存在时自动创建。
func (s *MessageService) Deliver(ctx context.Context, recipient string, raw []byte) (*domain.Message, error) {
	user, err := s.store.GetUserByAddress(ctx, recipient)
	if err != nil {
		return nil, err
	}

	inbox, err := s.store.GetMailboxByPath(ctx, user.ID, domain.InboxPath)
	if errors.Is(err, domain.ErrNotFound) {
		inbox = &domain.Mailbox{UserID: user.ID, Path: domain.InboxPath}
		err = s.store.SaveMailbox(ctx, inbox)
	}
	if err != nil {
		return nil, err
	}

	message, err := s.Create(ctx, CreateMessageInput{MailboxID: inbox.ID, Raw: raw})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("邮件已投递",
		zap.String("recipient", recipient),
		zap.String("mailboxID", inbox.ID),
		zap.Int64("messageID", message.ID),
		zap.Int64("uid", message.UID),
	)
	return message, nil
}
