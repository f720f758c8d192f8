package domain

import "time"

// Address 信封地址条目，字段顺序对应 IMAP ENVELOPE 中的地址结构：
// 显示名称、源路由、本地部分、域名。
type Address struct {
	Name    string `json:"name,omitempty"`
	Route   string `json:"route,omitempty"`
	Mailbox string `json:"mailbox,omitempty"`
	Host    string `json:"host,omitempty"`
}

// Envelope 邮件信封（IMAP ENVELOPE 结构）。
type Envelope struct {
	Date      time.Time `json:"date"`
	Subject   string    `json:"subject,omitempty"` // 原始主题（可能含 RFC 2047 编码字）
	From      []Address `json:"from,omitempty"`
	Sender    []Address `json:"sender,omitempty"`
	ReplyTo   []Address `json:"replyTo,omitempty"`
	To        []Address `json:"to,omitempty"`
	Cc        []Address `json:"cc,omitempty"`
	Bcc       []Address `json:"bcc,omitempty"`
	InReplyTo string    `json:"inReplyTo,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
}

// SearchIndex 邮件的反规范化搜索字段。
//
// 所有值均为小写且去除首尾空白；空字段表示该方面没有数据。
type SearchIndex struct {
	From     []string `json:"from,omitempty"`
	FromName string   `json:"fromName,omitempty"`
	To       []string `json:"to,omitempty"`
	ToName   string   `json:"toName,omitempty"`
	Cc       []string `json:"cc,omitempty"`
	CcName   string   `json:"ccName,omitempty"`
	Subject  string   `json:"subject,omitempty"`
}

// SearchIndexUpdate 迁移阶段按邮件 ID 写入的搜索字段。
type SearchIndexUpdate struct {
	MessageID int64
	Search    SearchIndex
}
