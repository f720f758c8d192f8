package domain

import "time"

// Message 表示存储在邮箱中的一封邮件。
type Message struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"userId"`
	MailboxID      string    `json:"mailboxId"`
	UID            int64     `json:"uid"`
	ThreadID       string    `json:"thread,omitempty"`
	Subject        string    `json:"subject"` // 已解码主题
	Text           string    `json:"-"`       // 纯文本正文，仅用于全文检索
	Envelope       Envelope  `json:"envelope"`
	InternalDate   time.Time `json:"internalDate"`
	Size           int64     `json:"size"`
	HasAttachments bool      `json:"hasAttachments"`
	Flagged        bool      `json:"flagged"`
	Unseen         bool      `json:"unseen"`
	Searchable     bool      `json:"searchable"`
	// Search 为 nil 表示该邮件尚未生成搜索字段
	Search    *SearchIndex `json:"search,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}
