package smtp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"mailsearch/backend/internal/domain"
)

// DefaultMaxMessageBytes 单封邮件默认大小上限
const DefaultMaxMessageBytes = 10 << 20

// deliverTimeout 单个收件人的入库超时时间
const deliverTimeout = 30 * time.Second

// UserLookup 按地址查找收件用户
type UserLookup interface {
	GetUserByAddress(ctx context.Context, address string) (*domain.User, error)
}

// Deliverer 把原始邮件投递到收件用户的收件箱
type Deliverer interface {
	Deliver(ctx context.Context, recipient string, raw []byte) (*domain.Message, error)
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 只接收发往系统内用户地址的邮件，不提供中继。
// 邮件入库时同步生成搜索字段。
type Backend struct {
	users           UserLookup
	messages        Deliverer
	limiter         *ConnectionLimiter
	maxMessageBytes int64
	logger          *zap.Logger
}

// NewBackend 创建 SMTP Backend。
//
// 参数:
//   - users: 收件人查询
//   - messages: 邮件投递
//   - limiter: 连接限流器，为 nil 时不限流
//   - maxMessageBytes: 单封邮件大小上限，<= 0 时使用默认值
//   - logger: 日志记录器
func NewBackend(users UserLookup, messages Deliverer, limiter *ConnectionLimiter, maxMessageBytes int64, logger *zap.Logger) *Backend {
	if maxMessageBytes <= 0 {
		maxMessageBytes = DefaultMaxMessageBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		users:           users,
		messages:        messages,
		limiter:         limiter,
		maxMessageBytes: maxMessageBytes,
		logger:          logger,
	}
}

// NewSession 创建新的 SMTP 会话，超出连接限制时返回 421。
func (b *Backend) NewSession(_ *gosmtp.Conn) (gosmtp.Session, error) {
	if b.limiter != nil && !b.limiter.Acquire() {
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []string
	closed      bool
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令，只接受系统内存在的用户地址。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	local, host, ok := strings.Cut(addr, "@")
	if !ok || local == "" || host == "" {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	if _, err := s.backend.users.GetUserByAddress(ctx, addr); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &gosmtp.SMTPError{
				Code:         550,
				EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
				Message:      "recipient mailbox not found",
			}
		}
		s.backend.logger.Error("recipient lookup failed", zap.String("recipient", addr), zap.Error(err))
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
			Message:      "temporary lookup failure",
		}
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 读取邮件内容并逐个投递给收件人。
func (s *session) Data(r io.Reader) error {
	limit := s.backend.maxMessageBytes
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return err
	}
	if int64(len(raw)) > limit {
		return &gosmtp.SMTPError{
			Code:         552,
			EnhancedCode: gosmtp.EnhancedCode{5, 3, 4},
			Message:      "message exceeds fixed maximum message size",
		}
	}

	for _, rcpt := range s.recipients {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		message, err := s.backend.messages.Deliver(ctx, rcpt, bytes.Clone(raw))
		cancel()
		if err != nil {
			s.backend.logger.Error("message delivery failed",
				zap.String("from", s.fromAddress),
				zap.String("recipient", rcpt),
				zap.Error(err),
			)
			return &gosmtp.SMTPError{
				Code:         451,
				EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
				Message:      "failed to store message",
			}
		}

		s.backend.logger.Info("message received",
			zap.String("from", s.fromAddress),
			zap.String("recipient", rcpt),
			zap.Int64("messageID", message.ID),
			zap.Int("size", len(raw)),
		)
	}

	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束，释放连接许可。
func (s *session) Logout() error {
	if !s.closed && s.backend.limiter != nil {
		s.backend.limiter.Release()
	}
	s.closed = true
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
