package envelope

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/backendutil"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"mailsearch/backend/internal/domain"
)

// Parsed 原始邮件的解析结果
type Parsed struct {
	Envelope       domain.Envelope
	Subject        string // 已解码主题
	Text           string // 纯文本正文
	HasAttachments bool
	Size           int64
}

// Parse 解析原始 RFC 5322 邮件
//
// 信封通过 IMAP ENVELOPE 规则从邮件头生成；正文只保留第一个 text/plain 部分。
// 未知字符集不会导致失败，对应部分按原样读取。
//
// 参数:
//   - raw: 原始邮件内容
//
// 返回值:
//   - *Parsed: 解析结果
//   - error: 邮件头无法解析时返回错误
func Parse(raw []byte) (*Parsed, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message header: %w", err)
	}
	defer mr.Close()

	env, err := backendutil.FetchEnvelope(mr.Header.Header.Header)
	if err != nil {
		return nil, fmt.Errorf("build envelope: %w", err)
	}

	parsed := &Parsed{
		Envelope: FromIMAP(env),
		Size:     int64(len(raw)),
	}

	// 解码失败时保留原始主题
	if subject, err := mr.Header.Subject(); err == nil {
		parsed.Subject = subject
	} else {
		parsed.Subject = env.Subject
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			// 正文损坏不影响信封
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			if parsed.Text != "" || (ct != "" && !strings.HasPrefix(ct, "text/plain")) {
				continue
			}
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			parsed.Text = string(body)
		case *mail.AttachmentHeader:
			parsed.HasAttachments = true
		}
	}

	return parsed, nil
}

// FromIMAP 把 IMAP 信封转换为领域模型
func FromIMAP(env *imap.Envelope) domain.Envelope {
	if env == nil {
		return domain.Envelope{}
	}
	return domain.Envelope{
		Date:      env.Date,
		Subject:   env.Subject,
		From:      fromIMAPAddresses(env.From),
		Sender:    fromIMAPAddresses(env.Sender),
		ReplyTo:   fromIMAPAddresses(env.ReplyTo),
		To:        fromIMAPAddresses(env.To),
		Cc:        fromIMAPAddresses(env.Cc),
		Bcc:       fromIMAPAddresses(env.Bcc),
		InReplyTo: env.InReplyTo,
		MessageID: env.MessageId,
	}
}

func fromIMAPAddresses(list []*imap.Address) []domain.Address {
	if len(list) == 0 {
		return nil
	}
	out := make([]domain.Address, 0, len(list))
	for _, a := range list {
		if a == nil {
			continue
		}
		out = append(out, domain.Address{
			Name:    a.PersonalName,
			Route:   a.AtDomainList,
			Mailbox: a.MailboxName,
			Host:    a.HostName,
		})
	}
	return out
}
